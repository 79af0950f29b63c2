package game

// Engine is the state machine for a single two-player drop-four game:
// seat assignment, the readiness gate, move validation under the
// gravity rule, win/tie detection, and departure handling.
//
// The engine is purely synchronous and performs no I/O. It assumes the
// caller serializes all operations against one instance; independent
// instances are fully isolated. Every operation validates before it
// mutates, so a returned error guarantees the state is unchanged.
type Engine struct {
	state GameState

	// prior is a read-only snapshot of the previous instance played by
	// (some of) the same participants. It informs seat continuity and
	// the first-mover flip and is never written to.
	prior *GameState
}

// NewEngineOptions contains options for creating a new Engine.
type NewEngineOptions struct {
	// Prior is an optional snapshot of a completed or abandoned
	// previous game instance.
	Prior *GameState
}

// NewEngine creates an empty game in the waiting-for-participants state.
func NewEngine(opts NewEngineOptions) *Engine {
	return &Engine{
		state: GameState{
			Status:     WaitingForParticipants,
			FirstMover: First,
			Seats:      make(map[Role]ParticipantRef),
			Ready:      make(map[Role]bool),
		},
		prior: opts.Prior,
	}
}

// State returns a deep-copied snapshot of the current game state.
func (e *Engine) State() GameState {
	return e.state.clone()
}

// Join seats a participant. A participant who held a seat in the prior
// game is given the same seat when it is free; otherwise the first free
// seat in role order. When the second seat fills, the game transitions
// to waiting-to-start.
func (e *Engine) Join(p ParticipantRef) error {
	if _, seated := e.state.seatOf(p); seated {
		return ErrAlreadySeated
	}
	if len(e.state.Seats) == 2 {
		return ErrGameFull
	}

	role, err := e.pickSeat(p)
	if err != nil {
		return err
	}
	e.state.Seats[role] = p

	if len(e.state.Seats) == 2 && e.state.Status == WaitingForParticipants {
		e.state.Status = WaitingToStart
	}
	return nil
}

// pickSeat chooses the seat for a joining participant. Both seats being
// taken here contradicts the occupancy check in Join, so that branch is
// an invariant violation rather than an ordinary rejection.
func (e *Engine) pickSeat(p ParticipantRef) (Role, error) {
	if e.prior != nil {
		if priorRole, held := e.prior.seatOf(p); held {
			if _, taken := e.state.Seats[priorRole]; !taken {
				return priorRole, nil
			}
		}
	}
	for _, role := range [2]Role{First, Second} {
		if _, taken := e.state.Seats[role]; !taken {
			return role, nil
		}
	}
	return First, &InvariantError{Reason: "seat assignment with both seats occupied"}
}

// MarkReady records a seated participant's ready signal while the game
// is waiting to start. The first mover is recomputed on every call so
// the result is independent of the order the two signals arrive in.
// When both seats are ready the game becomes active.
func (e *Engine) MarkReady(p ParticipantRef) error {
	if e.state.Status != WaitingToStart {
		return ErrNotStartable
	}
	role, seated := e.state.seatOf(p)
	if !seated {
		return ErrNotSeated
	}

	e.state.Ready[role] = true
	e.state.FirstMover = e.deriveFirstMover()

	if e.state.Ready[First] && e.state.Ready[Second] {
		e.state.Status = Active
	}
	return nil
}

// deriveFirstMover flips the prior game's first mover when any current
// seat occupant also took part in the prior game; a fresh pairing
// defaults to the first role.
func (e *Engine) deriveFirstMover() Role {
	if e.prior == nil {
		return First
	}
	for _, ref := range e.state.Seats {
		if _, held := e.prior.seatOf(ref); held {
			return e.prior.FirstMover.Other()
		}
	}
	return First
}

// ApplyMove validates and applies a drop in the given column for the
// seated participant p. The landing row is derived from the column's
// current stack height. On success the move is appended to the log and
// the board is re-evaluated for a win or tie in the same step.
func (e *Engine) ApplyMove(p ParticipantRef, column int) error {
	if e.state.Status != Active {
		return ErrNotInProgress
	}
	role, seated := e.state.seatOf(p)
	if !seated {
		return ErrNotSeated
	}
	if role != e.turn() {
		return ErrWrongTurn
	}
	if column < 0 || column >= BoardWidth {
		return ErrIllegalPosition
	}

	board := BoardFromMoves(e.state.Moves)
	row := board.dropRow(column)
	if row < 0 {
		return ErrIllegalPosition
	}

	move := Move{Role: role, Column: column, Row: row}
	e.state.Moves = append(e.state.Moves, move)
	board[row][column] = role.cell()
	e.evaluate(&board, role)
	return nil
}

// turn is the role on move: the first mover on an empty log, otherwise
// the opposite of the last logged move. Strict alternation falls out of
// the log itself; no separate turn field exists to drift.
func (e *Engine) turn() Role {
	if len(e.state.Moves) == 0 {
		return e.state.FirstMover
	}
	return e.state.Moves[len(e.state.Moves)-1].Role.Other()
}

// evaluate finishes the game if the board now holds a winning run or is
// full. The role that just moved is credited with the win: under strict
// alternation only the mover can have completed a run. The tie check
// runs once, after the full scan, so a winless full board is always
// detected.
func (e *Engine) evaluate(board *Board, mover Role) {
	if board.hasWin() {
		winner := e.state.Seats[mover]
		e.state.Winner = &winner
		e.state.Status = Finished
		return
	}
	if len(e.state.Moves) == BoardCells {
		e.state.Status = Finished
	}
}

// Leave handles a seated participant departing. While active, the
// departure forfeits the game to the remaining seat's occupant. Before
// the game starts, the seat and its readiness are simply cleared. A
// finished game is frozen and unaffected.
func (e *Engine) Leave(p ParticipantRef) error {
	role, seated := e.state.seatOf(p)
	if !seated {
		return ErrNotSeated
	}

	switch e.state.Status {
	case Finished:
		// frozen
	case Active:
		delete(e.state.Seats, role)
		if winner, ok := e.state.Seats[role.Other()]; ok {
			e.state.Winner = &winner
		}
		e.state.Status = Finished
	case WaitingToStart:
		delete(e.state.Seats, role)
		delete(e.state.Ready, role)
		e.state.Status = WaitingForParticipants
	case WaitingForParticipants:
		delete(e.state.Seats, role)
		delete(e.state.Ready, role)
	}
	return nil
}
