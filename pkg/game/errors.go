package game

import "errors"

// Rule violations. Every one of these is returned before any mutation,
// so a failed operation leaves the game state untouched.
var (
	// ErrAlreadySeated is returned when a joining participant already holds a seat.
	ErrAlreadySeated = errors.New("participant already holds a seat")

	// ErrGameFull is returned when both seats are occupied.
	ErrGameFull = errors.New("both seats are occupied")

	// ErrNotStartable is returned when a ready signal arrives outside the
	// waiting-to-start state.
	ErrNotStartable = errors.New("game is not waiting to start")

	// ErrNotSeated is returned when the acting participant holds no seat.
	ErrNotSeated = errors.New("participant holds no seat")

	// ErrNotInProgress is returned when a move arrives outside the active state.
	ErrNotInProgress = errors.New("game is not in progress")

	// ErrWrongTurn is returned when the acting participant's seat is not on turn.
	ErrWrongTurn = errors.New("not this participant's turn")

	// ErrIllegalPosition is returned when a drop targets a column that is
	// out of range or already full.
	ErrIllegalPosition = errors.New("illegal board position")
)

// InvariantError reports an internal-consistency violation: a state the
// engine's own validation should have made unreachable. It is a
// programming defect, not a rule violation, and is deliberately a
// distinct type so callers never confuse it with an ordinary rejection.
type InvariantError struct {
	Reason string
}

func (e *InvariantError) Error() string {
	return "engine invariant violated: " + e.Reason
}

// IsInvariantError reports whether err is an InvariantError.
func IsInvariantError(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}
