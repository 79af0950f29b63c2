package messages

import (
	"encoding/json"

	"github.com/kmerrick/dropfour/pkg/game"
)

const (
	// MessageBufferSize represents the maximum size of a serialized message
	MessageBufferSize = 4096
)

// Message types
const (
	MessageTypeClientPing    = "ping"
	MessageTypeServerPong    = "pong"
	MessageTypeClientJoin    = "join"
	MessageTypeClientReady   = "ready"
	MessageTypeClientMove    = "move"
	MessageTypeClientLeave   = "leave"
	MessageTypeClientRematch = "rematch"
	MessageTypeServerWelcome = "welcome"
	MessageTypeServerUpdate  = "update"
	MessageTypeServerError   = "error"
)

// ServerClientID is the ClientID used on messages originating from the server.
const ServerClientID = 0

// Message represents a generic message for serialization/deserialization
type Message struct {
	ClientID uint32          `json:"clientID"`
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
}

// ClientJoin asks to be seated in the session's current game.
type ClientJoin struct {
	Name string `json:"name"`
}

// ClientMove drops a piece in the given column. The acting seat is
// resolved from the sending client, never from the payload.
type ClientMove struct {
	Column int `json:"column"`
}

// ServerWelcome acknowledges a new connection with its assigned IDs.
type ServerWelcome struct {
	ClientID       uint32 `json:"clientID"`
	ParticipantRef string `json:"participantRef"`
}

// ServerGameUpdate broadcasts the full game snapshot after any change.
type ServerGameUpdate struct {
	SessionID string         `json:"sessionID"`
	State     game.GameState `json:"state"`
	Board     game.Board     `json:"board"`
}

// ServerError reports a rejected request back to its sender.
type ServerError struct {
	Request string `json:"request"`
	Message string `json:"message"`
}
