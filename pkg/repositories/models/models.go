package models

// GameRecord is the stored result of one finished game instance.
// Moves holds the JSON-encoded move log so a finished game can be
// replayed by deriving the board from it.
type GameRecord struct {
	ID         string  `json:"id"`
	SessionID  string  `json:"session_id"`
	FirstRef   string  `json:"first_ref"`
	FirstName  string  `json:"first_name"`
	SecondRef  string  `json:"second_ref"`
	SecondName string  `json:"second_name"`
	WinnerRef  *string `json:"winner_ref,omitempty"`
	Tie        bool    `json:"tie"`
	MoveCount  int     `json:"move_count"`
	Moves      string  `json:"moves"`
	StartedAt  int64   `json:"started_at"`
	FinishedAt int64   `json:"finished_at"`
}
