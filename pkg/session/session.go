package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kmerrick/dropfour/pkg/clients"
	"github.com/kmerrick/dropfour/pkg/game"
	"github.com/kmerrick/dropfour/pkg/log"
	"github.com/kmerrick/dropfour/pkg/messages"
	"github.com/kmerrick/dropfour/pkg/queue"
	"github.com/kmerrick/dropfour/pkg/repositories/models"
)

// Command is one client request routed to a session's inbox.
type Command struct {
	ClientID uint32
	Type     string
	Payload  json.RawMessage
}

// Session owns a single game engine and the clients attached to it.
// The engine requires all calls against one instance to be serialized;
// the session guarantees that by funneling every command through its
// queue and draining the queue from a single loop. Successive games
// between the same participants stay in one session, each new engine
// receiving the previous game's final snapshot as its prior state.
type Session struct {
	id            string
	clientManager *clients.ClientManager
	commandQueue  queue.Queue
	tickInterval  time.Duration
	moveTimeout   time.Duration
	saveChan      chan<- *models.GameRecord

	engine  *game.Engine
	members map[uint32]*clients.Client

	startedAt  time.Time
	lastMoveAt time.Time
	wasActive  bool
	recorded   bool
	// Seat identities captured when the game activates. The final
	// snapshot alone cannot supply them: a forfeit vacates a seat
	// before the game finishes.
	seatRefs map[game.Role]game.ParticipantRef

	snapshot SnapshotStore
}

// NewSessionOptions contains options for creating a new Session.
type NewSessionOptions struct {
	ClientManager *clients.ClientManager
	CommandQueue  queue.Queue
	TickInterval  time.Duration
	// MoveTimeout forfeits the game against a participant whose turn
	// sits idle past the deadline. Zero disables the move clock.
	MoveTimeout time.Duration
	SaveChan    chan<- *models.GameRecord
}

// NewSession creates a session wrapping a fresh engine with no prior game.
func NewSession(opts NewSessionOptions) *Session {
	s := &Session{
		id:            uuid.NewString(),
		clientManager: opts.ClientManager,
		commandQueue:  opts.CommandQueue,
		tickInterval:  opts.TickInterval,
		moveTimeout:   opts.MoveTimeout,
		saveChan:      opts.SaveChan,
		engine:        game.NewEngine(game.NewEngineOptions{}),
		members:       make(map[uint32]*clients.Client),
	}
	s.snapshot.set(s.engine.State())
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Enqueue adds a command to the session inbox.
func (s *Session) Enqueue(cmd *Command) error {
	return s.commandQueue.Enqueue(cmd)
}

// State returns the snapshot published by the last completed tick. It
// is safe to call from any goroutine; it never touches the engine.
func (s *Session) State() game.GameState {
	return s.snapshot.get()
}

// Run drives the session loop until the context is canceled.
func (s *Session) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			s.tick(t)
		}
	}
}

// tick runs one iteration of the session loop. Lifecycle observation
// follows each mutation source so the move clock never sees an active
// game whose start was not yet stamped.
func (s *Session) tick(t time.Time) {
	changed := s.processCommands(t)
	if changed {
		s.observe(s.engine.State(), t)
	}
	if s.checkMoveClock(t) {
		changed = true
		s.observe(s.engine.State(), t)
	}
	if !changed {
		return
	}

	state := s.engine.State()
	s.snapshot.set(state)
	s.broadcast(state)
}

// processCommands drains the inbox and applies each command to the
// engine, reporting whether any of them changed the game state.
func (s *Session) processCommands(t time.Time) bool {
	pending, err := s.commandQueue.ReadAllMessages()
	if err != nil {
		log.Error("Failed to read session commands: %v", err)
		return false
	}

	changed := false
	for _, item := range pending {
		cmd, ok := item.(*Command)
		if !ok {
			log.Error("Failed to cast item to session.Command")
			continue
		}
		if s.handleCommand(cmd, t) {
			changed = true
		}
	}
	return changed
}

func (s *Session) handleCommand(cmd *Command, t time.Time) bool {
	// A departure must still apply after the connection is gone, so it
	// resolves through the loop-owned membership map rather than the
	// client manager.
	if cmd.Type == messages.MessageTypeClientLeave {
		return s.handleLeave(cmd.ClientID)
	}

	client, err := s.clientManager.GetClientByID(cmd.ClientID)
	if err != nil {
		// The client disconnected with commands still queued.
		log.Debug("Dropping %s command: %v", cmd.Type, err)
		return false
	}

	switch cmd.Type {
	case messages.MessageTypeClientJoin:
		return s.handleJoin(client, cmd)
	case messages.MessageTypeClientReady:
		return s.reportRuleError(client, cmd.Type, s.engine.MarkReady(client.Ref))
	case messages.MessageTypeClientMove:
		return s.handleMove(client, cmd, t)
	case messages.MessageTypeClientRematch:
		return s.handleRematch(client)
	default:
		log.Warn("Unhandled command type: %s", cmd.Type)
		return false
	}
}

func (s *Session) handleLeave(clientID uint32) bool {
	member, ok := s.members[clientID]
	if !ok {
		return false
	}
	delete(s.members, clientID)

	err := s.engine.Leave(member.Ref)
	if err == nil {
		return true
	}
	if game.IsInvariantError(err) {
		log.Error("Engine invariant violation in session %s: %v", s.id, err)
	} else {
		log.Debug("Rejected leave from client %d: %v", clientID, err)
	}
	return false
}

func (s *Session) handleJoin(client *clients.Client, cmd *Command) bool {
	join := &messages.ClientJoin{}
	if err := json.Unmarshal(cmd.Payload, join); err != nil {
		log.Error("Failed to unmarshal join payload: %v", err)
		s.sendError(client, cmd.Type, "malformed join request")
		return false
	}

	if !s.reportRuleError(client, cmd.Type, s.engine.Join(client.Ref)) {
		return false
	}
	s.members[client.ID] = client
	return true
}

func (s *Session) handleMove(client *clients.Client, cmd *Command, t time.Time) bool {
	move := &messages.ClientMove{}
	if err := json.Unmarshal(cmd.Payload, move); err != nil {
		log.Error("Failed to unmarshal move payload: %v", err)
		s.sendError(client, cmd.Type, "malformed move request")
		return false
	}

	if !s.reportRuleError(client, cmd.Type, s.engine.ApplyMove(client.Ref, move.Column)) {
		return false
	}
	s.lastMoveAt = t
	return true
}

// handleRematch swaps in a fresh engine seeded with the finished game
// as its prior, preserving seat continuity and flipping the opening
// move. Participants join and ready up again through the usual flow.
func (s *Session) handleRematch(client *clients.Client) bool {
	state := s.engine.State()
	if state.Status != game.Finished {
		s.sendError(client, messages.MessageTypeClientRematch, "game is not finished")
		return false
	}

	log.Info("Session %s starting rematch", s.id)
	s.engine = game.NewEngine(game.NewEngineOptions{Prior: &state})
	s.wasActive = false
	s.recorded = false
	return true
}

// checkMoveClock forfeits the game against the participant on turn when
// the move deadline has passed. The stall is handled as a departure, so
// the engine's ordinary forfeit rule applies.
func (s *Session) checkMoveClock(t time.Time) bool {
	if s.moveTimeout <= 0 {
		return false
	}
	state := s.engine.State()
	if state.Status != game.Active {
		return false
	}
	if t.Sub(s.lastMoveAt) <= s.moveTimeout {
		return false
	}

	stalled := state.Seats[turnOf(&state)]
	log.Info("Session %s move clock expired for %s", s.id, stalled)
	if err := s.engine.Leave(stalled); err != nil {
		log.Error("Failed to forfeit stalled participant: %v", err)
		return false
	}
	return true
}

// observe tracks lifecycle transitions: stamping game start and
// emitting a result record the first time a game reaches finished.
func (s *Session) observe(state game.GameState, t time.Time) {
	if state.Status == game.Active && !s.wasActive {
		s.wasActive = true
		s.startedAt = t
		s.lastMoveAt = t
		s.seatRefs = map[game.Role]game.ParticipantRef{}
		for role, ref := range state.Seats {
			s.seatRefs[role] = ref
		}
	}
	if state.Status == game.Finished && s.wasActive && !s.recorded {
		s.recorded = true
		s.emitRecord(&state, t)
	}
}

func (s *Session) emitRecord(state *game.GameState, t time.Time) {
	if s.saveChan == nil {
		return
	}

	movesJSON, err := json.Marshal(state.Moves)
	if err != nil {
		log.Error("Failed to marshal move log: %v", err)
		return
	}

	record := &models.GameRecord{
		ID:         uuid.NewString(),
		SessionID:  s.id,
		Tie:        state.Winner == nil && len(state.Moves) == game.BoardCells,
		MoveCount:  len(state.Moves),
		Moves:      string(movesJSON),
		StartedAt:  s.startedAt.UnixMilli(),
		FinishedAt: t.UnixMilli(),
	}
	if state.Winner != nil {
		winner := string(*state.Winner)
		record.WinnerRef = &winner
	}
	s.fillSeats(record)

	select {
	case s.saveChan <- record:
	default:
		log.Error("Save channel is full, dropping record for session %s", s.id)
	}
}

// fillSeats records both seats' identities from the refs captured at
// activation, with display names resolved from the attached members.
func (s *Session) fillSeats(record *models.GameRecord) {
	names := map[game.ParticipantRef]string{}
	for _, member := range s.members {
		names[member.Ref] = member.Name
	}

	if ref, ok := s.seatRefs[game.First]; ok {
		record.FirstRef = string(ref)
		record.FirstName = names[ref]
	}
	if ref, ok := s.seatRefs[game.Second]; ok {
		record.SecondRef = string(ref)
		record.SecondName = names[ref]
	}
}

// broadcast sends the current snapshot to every attached client.
func (s *Session) broadcast(state game.GameState) {
	update := &messages.ServerGameUpdate{
		SessionID: s.id,
		State:     state,
		Board:     game.BoardFromMoves(state.Moves),
	}
	payload, err := json.Marshal(update)
	if err != nil {
		log.Error("Failed to marshal game update: %v", err)
		return
	}

	msg := &messages.Message{
		ClientID: messages.ServerClientID,
		Type:     messages.MessageTypeServerUpdate,
		Payload:  payload,
	}
	b, err := messages.SerializeMessage(msg)
	if err != nil {
		log.Error("Failed to serialize game update: %v", err)
		return
	}

	for _, member := range s.members {
		select {
		case member.Send <- b:
		default:
			log.Warn("Send buffer full for client %d, dropping update", member.ID)
		}
	}
}

// reportRuleError forwards an engine rejection to the client and
// reports whether the operation succeeded. Invariant violations are
// programming defects and get logged at error level.
func (s *Session) reportRuleError(client *clients.Client, request string, err error) bool {
	if err == nil {
		return true
	}
	if game.IsInvariantError(err) {
		log.Error("Engine invariant violation in session %s: %v", s.id, err)
	} else {
		log.Debug("Rejected %s from client %d: %v", request, client.ID, err)
	}
	s.sendError(client, request, err.Error())
	return false
}

func (s *Session) sendError(client *clients.Client, request, message string) {
	payload, err := json.Marshal(&messages.ServerError{
		Request: request,
		Message: message,
	})
	if err != nil {
		log.Error("Failed to marshal error message: %v", err)
		return
	}
	msg := &messages.Message{
		ClientID: messages.ServerClientID,
		Type:     messages.MessageTypeServerError,
		Payload:  payload,
	}
	b, err := messages.SerializeMessage(msg)
	if err != nil {
		log.Error("Failed to serialize error message: %v", err)
		return
	}
	select {
	case client.Send <- b:
	default:
		log.Warn("Send buffer full for client %d, dropping error", client.ID)
	}
}

// Disconnect handles a client dropping its connection: a joined
// participant departs the game, an unattached client is ignored once
// the command reaches the loop.
func (s *Session) Disconnect(clientID uint32) error {
	return s.Enqueue(&Command{
		ClientID: clientID,
		Type:     messages.MessageTypeClientLeave,
	})
}

// turnOf resolves whose turn a snapshot is on.
func turnOf(state *game.GameState) game.Role {
	if len(state.Moves) == 0 {
		return state.FirstMover
	}
	return state.Moves[len(state.Moves)-1].Role.Other()
}

// ErrSessionNotFound is returned when routing to an unknown session.
var ErrSessionNotFound = errors.New("session not found")
