package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/kmerrick/dropfour/pkg/game"
	"github.com/kmerrick/dropfour/pkg/log"
	"github.com/kmerrick/dropfour/pkg/repositories"
	"github.com/kmerrick/dropfour/pkg/session"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// SessionSummary is the list view of a live session.
type SessionSummary struct {
	ID        string      `json:"id"`
	Status    game.Status `json:"status"`
	Seated    int         `json:"seated"`
	MoveCount int         `json:"moveCount"`
}

// SessionDetail is the full view of a live session, including the
// derived board.
type SessionDetail struct {
	ID    string         `json:"id"`
	State game.GameState `json:"state"`
	Board game.Board     `json:"board"`
}

func HandleListGames(repository repositories.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultListLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			parsed, err := strconv.Atoi(v)
			if err != nil || parsed < 1 {
				http.Error(w, "Invalid limit", http.StatusBadRequest)
				return
			}
			limit = parsed
		}
		if limit > maxListLimit {
			limit = maxListLimit
		}

		records, err := repository.ListGameRecords(r.Context(), limit)
		if err != nil {
			log.Error("Failed to list game records: %v", err)
			http.Error(w, "Failed to list games", http.StatusInternalServerError)
			return
		}

		writeJSON(w, records)
	}
}

func HandleGetGame(repository repositories.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID := mux.Vars(r)["gameID"]

		record, err := repository.GetGameRecord(r.Context(), gameID)
		if err != nil {
			if repositories.IsNotFound(err) {
				http.Error(w, "Game not found", http.StatusNotFound)
				return
			}
			log.Error("Failed to get game record: %v", err)
			http.Error(w, "Failed to get game", http.StatusInternalServerError)
			return
		}

		writeJSON(w, record)
	}
}

func HandleListSessions(manager *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions := manager.ListSessions()
		summaries := make([]SessionSummary, 0, len(sessions))
		for _, s := range sessions {
			state := s.State()
			summaries = append(summaries, SessionSummary{
				ID:        s.ID(),
				Status:    state.Status,
				Seated:    len(state.Seats),
				MoveCount: len(state.Moves),
			})
		}

		writeJSON(w, summaries)
	}
}

func HandleGetSession(manager *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := mux.Vars(r)["sessionID"]

		s, err := manager.GetSession(sessionID)
		if err != nil {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}

		state := s.State()
		writeJSON(w, SessionDetail{
			ID:    s.ID(),
			State: state,
			Board: game.BoardFromMoves(state.Moves),
		})
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Failed to encode response: %v", err)
	}
}
