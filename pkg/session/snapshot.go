package session

import (
	"sync"

	"github.com/kmerrick/dropfour/pkg/game"
)

// SnapshotStore publishes the session loop's latest game state for
// readers on other goroutines, such as the HTTP API.
type SnapshotStore struct {
	mu    sync.RWMutex
	state game.GameState
}

func (s *SnapshotStore) set(state game.GameState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *SnapshotStore) get() game.GameState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}
