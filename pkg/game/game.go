package game

// Board dimensions for the standard drop-four grid.
const (
	BoardWidth  = 7
	BoardHeight = 6
	BoardCells  = BoardWidth * BoardHeight
)

// winLength is the run length that ends the game.
const winLength = 4

// Role is one of the two fixed seats. The first role drops the first
// piece in a fresh game with no prior instance.
type Role int

const (
	First Role = iota
	Second
)

// Other returns the opposing role.
func (r Role) Other() Role {
	if r == First {
		return Second
	}
	return First
}

func (r Role) String() string {
	switch r {
	case First:
		return "first"
	case Second:
		return "second"
	default:
		return "unknown"
	}
}

// ParticipantRef is an opaque participant identity supplied by the
// session layer. The engine only ever compares refs for equality.
type ParticipantRef string

// Status is the lifecycle state of a game instance.
type Status int

const (
	WaitingForParticipants Status = iota
	WaitingToStart
	Active
	Finished
)

func (s Status) String() string {
	switch s {
	case WaitingForParticipants:
		return "waiting_for_participants"
	case WaitingToStart:
		return "waiting_to_start"
	case Active:
		return "active"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// Move is one accepted drop. Row 0 is the top of the grid and
// BoardHeight-1 is the floor.
type Move struct {
	Role   Role `json:"role"`
	Column int  `json:"column"`
	Row    int  `json:"row"`
}

// GameState is a point-in-time snapshot of a game instance. Snapshots
// returned by the engine are deep copies and never alias engine
// internals, so they are safe to hold across later operations and to
// hand to a finished game's successor as its prior state.
type GameState struct {
	Status     Status                  `json:"status"`
	FirstMover Role                    `json:"firstMover"`
	Seats      map[Role]ParticipantRef `json:"seats"`
	Ready      map[Role]bool           `json:"ready"`
	Winner     *ParticipantRef         `json:"winner,omitempty"`
	Moves      []Move                  `json:"moves"`
}

// clone deep-copies a snapshot.
func (s *GameState) clone() GameState {
	out := GameState{
		Status:     s.Status,
		FirstMover: s.FirstMover,
		Seats:      make(map[Role]ParticipantRef, len(s.Seats)),
		Ready:      make(map[Role]bool, len(s.Ready)),
		Moves:      make([]Move, len(s.Moves)),
	}
	for role, ref := range s.Seats {
		out.Seats[role] = ref
	}
	for role, ready := range s.Ready {
		out.Ready[role] = ready
	}
	copy(out.Moves, s.Moves)
	if s.Winner != nil {
		w := *s.Winner
		out.Winner = &w
	}
	return out
}

// seatOf returns the role held by p, if any.
func (s *GameState) seatOf(p ParticipantRef) (Role, bool) {
	for _, role := range [2]Role{First, Second} {
		if ref, ok := s.Seats[role]; ok && ref == p {
			return role, true
		}
	}
	return First, false
}
