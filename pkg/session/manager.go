package session

import (
	"context"
	"sync"
	"time"

	"github.com/kmerrick/dropfour/pkg/clients"
	"github.com/kmerrick/dropfour/pkg/game"
	"github.com/kmerrick/dropfour/pkg/queue"
	"github.com/kmerrick/dropfour/pkg/repositories/models"
)

const (
	// DefaultTickInterval is how often a session drains its inbox.
	DefaultTickInterval = 50 * time.Millisecond
	// DefaultCommandQueueCapacity bounds a session's pending commands.
	DefaultCommandQueueCapacity = 256
)

// Manager tracks live sessions and routes clients to them.
type Manager struct {
	clientManager *clients.ClientManager
	tickInterval  time.Duration
	moveTimeout   time.Duration
	saveChan      chan<- *models.GameRecord

	sessions     map[string]*Session
	sessionsLock sync.RWMutex
	// memberships maps a client to the session it joined so
	// disconnects can be routed without a session ID.
	memberships map[uint32]string
}

// NewManagerOptions contains options for creating a new Manager.
type NewManagerOptions struct {
	ClientManager *clients.ClientManager
	TickInterval  time.Duration
	MoveTimeout   time.Duration
	SaveChan      chan<- *models.GameRecord
}

// NewManager creates a new Manager.
func NewManager(opts NewManagerOptions) *Manager {
	tickInterval := opts.TickInterval
	if tickInterval <= 0 {
		tickInterval = DefaultTickInterval
	}
	return &Manager{
		clientManager: opts.ClientManager,
		tickInterval:  tickInterval,
		moveTimeout:   opts.MoveTimeout,
		saveChan:      opts.SaveChan,
		sessions:      make(map[string]*Session),
		memberships:   make(map[uint32]string),
	}
}

// CreateSession starts a new session and its loop goroutine. The
// session stops when the context is canceled.
func (m *Manager) CreateSession(ctx context.Context) *Session {
	s := NewSession(NewSessionOptions{
		ClientManager: m.clientManager,
		CommandQueue:  queue.NewInMemoryQueue(DefaultCommandQueueCapacity),
		TickInterval:  m.tickInterval,
		MoveTimeout:   m.moveTimeout,
		SaveChan:      m.saveChan,
	})

	m.sessionsLock.Lock()
	m.sessions[s.ID()] = s
	m.sessionsLock.Unlock()

	go s.Run(ctx)
	return s
}

// GetSession retrieves a session by ID.
func (m *Manager) GetSession(id string) (*Session, error) {
	m.sessionsLock.RLock()
	defer m.sessionsLock.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// ListSessions returns all live sessions.
func (m *Manager) ListSessions() []*Session {
	m.sessionsLock.RLock()
	defer m.sessionsLock.RUnlock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// FindOpenSession returns a session with a free seat, creating a fresh
// one when every live session is full or finished.
func (m *Manager) FindOpenSession(ctx context.Context) *Session {
	for _, s := range m.ListSessions() {
		state := s.State()
		if state.Status != game.Finished && len(state.Seats) < 2 {
			return s
		}
	}
	return m.CreateSession(ctx)
}

// RouteToMember enqueues a command onto the session its sender joined.
func (m *Manager) RouteToMember(cmd *Command) error {
	m.sessionsLock.RLock()
	sessionID, ok := m.memberships[cmd.ClientID]
	m.sessionsLock.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}

	s, err := m.GetSession(sessionID)
	if err != nil {
		return err
	}
	return s.Enqueue(cmd)
}

// Route enqueues a client command onto its session's inbox. A join
// command binds the client to the session first.
func (m *Manager) Route(sessionID string, cmd *Command) error {
	s, err := m.GetSession(sessionID)
	if err != nil {
		return err
	}

	m.sessionsLock.Lock()
	m.memberships[cmd.ClientID] = sessionID
	m.sessionsLock.Unlock()

	return s.Enqueue(cmd)
}

// Disconnect routes a dropped connection to the session the client
// joined, if any.
func (m *Manager) Disconnect(clientID uint32) error {
	m.sessionsLock.Lock()
	sessionID, ok := m.memberships[clientID]
	delete(m.memberships, clientID)
	m.sessionsLock.Unlock()
	if !ok {
		return nil
	}

	s, err := m.GetSession(sessionID)
	if err != nil {
		return nil
	}
	return s.Disconnect(clientID)
}
