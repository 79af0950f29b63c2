package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/kmerrick/dropfour/pkg/clients"
	"github.com/kmerrick/dropfour/pkg/game"
	"github.com/kmerrick/dropfour/pkg/messages"
	"github.com/kmerrick/dropfour/pkg/queue"
	"github.com/kmerrick/dropfour/pkg/repositories/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionHarness struct {
	session       *Session
	clientManager *clients.ClientManager
	saveChan      chan *models.GameRecord
	now           time.Time
}

func newSessionHarness(t *testing.T, moveTimeout time.Duration) *sessionHarness {
	t.Helper()
	cm := clients.NewClientManager()
	saveChan := make(chan *models.GameRecord, 4)
	s := NewSession(NewSessionOptions{
		ClientManager: cm,
		CommandQueue:  queue.NewInMemoryQueue(DefaultCommandQueueCapacity),
		TickInterval:  DefaultTickInterval,
		MoveTimeout:   moveTimeout,
		SaveChan:      saveChan,
	})
	return &sessionHarness{
		session:       s,
		clientManager: cm,
		saveChan:      saveChan,
		now:           time.Now(),
	}
}

func (h *sessionHarness) tick() {
	h.now = h.now.Add(DefaultTickInterval)
	h.session.tick(h.now)
}

func (h *sessionHarness) connect(t *testing.T, name string) *clients.Client {
	t.Helper()
	return h.clientManager.AddClient(name)
}

func (h *sessionHarness) enqueue(t *testing.T, clientID uint32, msgType string, payload interface{}) {
	t.Helper()
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		raw = b
	}
	require.NoError(t, h.session.Enqueue(&Command{
		ClientID: clientID,
		Type:     msgType,
		Payload:  raw,
	}))
}

func (h *sessionHarness) join(t *testing.T, c *clients.Client) {
	t.Helper()
	h.enqueue(t, c.ID, messages.MessageTypeClientJoin, &messages.ClientJoin{Name: c.Name})
}

func (h *sessionHarness) ready(t *testing.T, c *clients.Client) {
	t.Helper()
	h.enqueue(t, c.ID, messages.MessageTypeClientReady, nil)
}

func (h *sessionHarness) move(t *testing.T, c *clients.Client, column int) {
	t.Helper()
	h.enqueue(t, c.ID, messages.MessageTypeClientMove, &messages.ClientMove{Column: column})
}

// startGame connects two clients and walks them through join and ready.
func (h *sessionHarness) startGame(t *testing.T) (*clients.Client, *clients.Client) {
	t.Helper()
	alice := h.connect(t, "alice")
	bob := h.connect(t, "bob")
	h.join(t, alice)
	h.join(t, bob)
	h.ready(t, alice)
	h.ready(t, bob)
	h.tick()
	require.Equal(t, game.Active, h.session.State().Status)
	return alice, bob
}

func drainUpdates(t *testing.T, c *clients.Client) []*messages.Message {
	t.Helper()
	var msgs []*messages.Message
	for {
		select {
		case b := <-c.Send:
			msg, err := messages.DeserializeMessage(b)
			require.NoError(t, err)
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

func TestSessionLifecycle(t *testing.T) {
	h := newSessionHarness(t, 0)

	alice := h.connect(t, "alice")
	h.join(t, alice)
	h.tick()

	state := h.session.State()
	assert.Equal(t, game.WaitingForParticipants, state.Status)
	assert.Equal(t, alice.Ref, state.Seats[game.First])

	bob := h.connect(t, "bob")
	h.join(t, bob)
	h.tick()
	assert.Equal(t, game.WaitingToStart, h.session.State().Status)

	h.ready(t, alice)
	h.ready(t, bob)
	h.tick()

	state = h.session.State()
	assert.Equal(t, game.Active, state.Status)
	assert.Equal(t, game.First, state.FirstMover)
}

func TestSessionBroadcastsUpdates(t *testing.T) {
	h := newSessionHarness(t, 0)
	alice, bob := h.startGame(t)

	drainUpdates(t, alice)
	drainUpdates(t, bob)

	h.move(t, alice, 3)
	h.tick()

	for _, c := range []*clients.Client{alice, bob} {
		msgs := drainUpdates(t, c)
		require.Len(t, msgs, 1)
		require.Equal(t, messages.MessageTypeServerUpdate, msgs[0].Type)

		update := &messages.ServerGameUpdate{}
		require.NoError(t, json.Unmarshal(msgs[0].Payload, update))
		assert.Equal(t, h.session.ID(), update.SessionID)
		require.Len(t, update.State.Moves, 1)
		assert.Equal(t, 3, update.State.Moves[0].Column)
		assert.Equal(t, game.CellFirst, update.Board[game.BoardHeight-1][3])
	}
}

func TestSessionRejectsInvalidCommands(t *testing.T) {
	h := newSessionHarness(t, 0)
	alice, bob := h.startGame(t)
	drainUpdates(t, alice)
	drainUpdates(t, bob)

	// Bob moving out of turn is rejected and produces no update.
	h.move(t, bob, 0)
	h.tick()

	state := h.session.State()
	assert.Empty(t, state.Moves)

	msgs := drainUpdates(t, bob)
	require.Len(t, msgs, 1)
	require.Equal(t, messages.MessageTypeServerError, msgs[0].Type)

	serverErr := &messages.ServerError{}
	require.NoError(t, json.Unmarshal(msgs[0].Payload, serverErr))
	assert.Equal(t, messages.MessageTypeClientMove, serverErr.Request)
	assert.Empty(t, drainUpdates(t, alice))
}

func TestSessionGameRecordOnWin(t *testing.T) {
	h := newSessionHarness(t, 0)
	alice, bob := h.startGame(t)

	// Alice wins with four in a row across the bottom.
	columns := []int{0, 6, 1, 6, 2, 6, 3}
	movers := []*clients.Client{alice, bob}
	for i, col := range columns {
		h.move(t, movers[i%2], col)
		h.tick()
	}

	state := h.session.State()
	require.Equal(t, game.Finished, state.Status)
	require.NotNil(t, state.Winner)
	assert.Equal(t, alice.Ref, *state.Winner)

	select {
	case record := <-h.saveChan:
		assert.Equal(t, h.session.ID(), record.SessionID)
		assert.Equal(t, string(alice.Ref), record.FirstRef)
		assert.Equal(t, "alice", record.FirstName)
		assert.Equal(t, string(bob.Ref), record.SecondRef)
		assert.Equal(t, "bob", record.SecondName)
		require.NotNil(t, record.WinnerRef)
		assert.Equal(t, string(alice.Ref), *record.WinnerRef)
		assert.False(t, record.Tie)
		assert.Equal(t, 7, record.MoveCount)

		var moves []game.Move
		require.NoError(t, json.Unmarshal([]byte(record.Moves), &moves))
		assert.Len(t, moves, 7)
	default:
		t.Fatal("expected a game record")
	}

	// The record is emitted exactly once.
	h.tick()
	assert.Empty(t, h.saveChan)
}

func TestSessionDisconnectForfeits(t *testing.T) {
	h := newSessionHarness(t, 0)
	alice, bob := h.startGame(t)

	h.clientManager.RemoveClient(bob.ID)
	require.NoError(t, h.session.Disconnect(bob.ID))
	h.tick()

	state := h.session.State()
	require.Equal(t, game.Finished, state.Status)
	require.NotNil(t, state.Winner)
	assert.Equal(t, alice.Ref, *state.Winner)

	// The record still names both seats.
	select {
	case record := <-h.saveChan:
		assert.Equal(t, string(alice.Ref), record.FirstRef)
		assert.Equal(t, string(bob.Ref), record.SecondRef)
		require.NotNil(t, record.WinnerRef)
		assert.Equal(t, string(alice.Ref), *record.WinnerRef)
	default:
		t.Fatal("expected a game record")
	}
}

func TestSessionDisconnectBeforeStart(t *testing.T) {
	h := newSessionHarness(t, 0)
	alice := h.connect(t, "alice")
	bob := h.connect(t, "bob")
	h.join(t, alice)
	h.join(t, bob)
	h.tick()
	require.Equal(t, game.WaitingToStart, h.session.State().Status)

	h.clientManager.RemoveClient(bob.ID)
	require.NoError(t, h.session.Disconnect(bob.ID))
	h.tick()

	state := h.session.State()
	assert.Equal(t, game.WaitingForParticipants, state.Status)
	assert.NotContains(t, state.Seats, game.Second)
	assert.Empty(t, h.saveChan)
}

func TestSessionMoveClockForfeit(t *testing.T) {
	moveTimeout := 10 * DefaultTickInterval
	h := newSessionHarness(t, moveTimeout)
	alice, bob := h.startGame(t)

	// Bob plays so the clock runs against Alice.
	h.move(t, alice, 0)
	h.tick()
	h.move(t, bob, 1)
	h.tick()

	// Idle ticks up to the deadline leave the game running.
	for i := 0; i < 5; i++ {
		h.tick()
	}
	require.Equal(t, game.Active, h.session.State().Status)

	h.now = h.now.Add(moveTimeout)
	h.tick()

	state := h.session.State()
	require.Equal(t, game.Finished, state.Status)
	require.NotNil(t, state.Winner)
	assert.Equal(t, bob.Ref, *state.Winner)
}

func TestSessionRematch(t *testing.T) {
	h := newSessionHarness(t, 0)
	alice, bob := h.startGame(t)

	columns := []int{0, 6, 1, 6, 2, 6, 3}
	movers := []*clients.Client{alice, bob}
	for i, col := range columns {
		h.move(t, movers[i%2], col)
		h.tick()
	}
	require.Equal(t, game.Finished, h.session.State().Status)
	<-h.saveChan

	h.enqueue(t, alice.ID, messages.MessageTypeClientRematch, nil)
	h.tick()

	state := h.session.State()
	assert.Equal(t, game.WaitingForParticipants, state.Status)
	assert.Empty(t, state.Moves)
	assert.Nil(t, state.Winner)

	// Both players rejoin their old seats and the opening move flips.
	h.join(t, alice)
	h.join(t, bob)
	h.ready(t, alice)
	h.ready(t, bob)
	h.tick()

	state = h.session.State()
	require.Equal(t, game.Active, state.Status)
	assert.Equal(t, alice.Ref, state.Seats[game.First])
	assert.Equal(t, bob.Ref, state.Seats[game.Second])
	assert.Equal(t, game.Second, state.FirstMover)

	// The second game produces its own record.
	h.move(t, bob, 0)
	h.move(t, alice, 1)
	h.move(t, bob, 0)
	h.move(t, alice, 1)
	h.move(t, bob, 0)
	h.move(t, alice, 1)
	h.move(t, bob, 0)
	h.tick()

	state = h.session.State()
	require.Equal(t, game.Finished, state.Status)
	require.NotNil(t, state.Winner)
	assert.Equal(t, bob.Ref, *state.Winner)

	select {
	case record := <-h.saveChan:
		require.NotNil(t, record.WinnerRef)
		assert.Equal(t, string(bob.Ref), *record.WinnerRef)
		assert.Equal(t, 7, record.MoveCount)
	default:
		t.Fatal("expected a record for the rematch game")
	}
}

func TestSessionRematchRequiresFinishedGame(t *testing.T) {
	h := newSessionHarness(t, 0)
	alice, bob := h.startGame(t)
	drainUpdates(t, alice)
	drainUpdates(t, bob)

	h.enqueue(t, alice.ID, messages.MessageTypeClientRematch, nil)
	h.tick()

	assert.Equal(t, game.Active, h.session.State().Status)

	msgs := drainUpdates(t, alice)
	require.Len(t, msgs, 1)
	assert.Equal(t, messages.MessageTypeServerError, msgs[0].Type)
}

func TestManagerRouting(t *testing.T) {
	cm := clients.NewClientManager()
	m := NewManager(NewManagerOptions{ClientManager: cm})

	s := NewSession(NewSessionOptions{
		ClientManager: cm,
		CommandQueue:  queue.NewInMemoryQueue(DefaultCommandQueueCapacity),
		TickInterval:  DefaultTickInterval,
	})
	m.sessionsLock.Lock()
	m.sessions[s.ID()] = s
	m.sessionsLock.Unlock()

	got, err := m.GetSession(s.ID())
	require.NoError(t, err)
	assert.Equal(t, s, got)

	_, err = m.GetSession("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	alice := cm.AddClient("alice")
	require.NoError(t, m.Route(s.ID(), &Command{
		ClientID: alice.ID,
		Type:     messages.MessageTypeClientJoin,
		Payload:  json.RawMessage(`{"name":"alice"}`),
	}))
	assert.Equal(t, 1, s.commandQueue.Size())

	assert.ErrorIs(t, m.Route("nope", &Command{}), ErrSessionNotFound)

	sessions := m.ListSessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, s.ID(), sessions[0].ID())
}
