package clients

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/kmerrick/dropfour/pkg/game"
)

const (
	// SendBufferSize is the per-client outbound message buffer.
	SendBufferSize = 64
)

// Client represents a connected client. Send is drained by the
// connection's writer goroutine; a full buffer drops the message rather
// than stalling the session loop.
type Client struct {
	ID   uint32
	Name string
	Ref  game.ParticipantRef
	Send chan []byte
}

// ClientManager tracks connected clients and resolves their stable
// participant identities. A display name maps to the same
// ParticipantRef for the lifetime of the manager, so a player who
// reconnects keeps their seat identity across game instances.
type ClientManager struct {
	clients     map[uint32]*Client
	clientsLock sync.RWMutex
	nextID      uint32

	refs     map[string]game.ParticipantRef
	refsLock sync.Mutex
}

// NewClientManager creates a new ClientManager
func NewClientManager() *ClientManager {
	return &ClientManager{
		clients: make(map[uint32]*Client),
		nextID:  1,
		refs:    make(map[string]game.ParticipantRef),
	}
}

// AddClient registers a new connection under the given display name and
// returns the client record.
func (cm *ClientManager) AddClient(name string) *Client {
	cm.clientsLock.Lock()
	defer cm.clientsLock.Unlock()

	client := &Client{
		ID:   cm.nextID,
		Name: name,
		Ref:  cm.ResolveRef(name),
		Send: make(chan []byte, SendBufferSize),
	}
	cm.nextID++
	cm.clients[client.ID] = client
	return client
}

// RemoveClient removes a client from the manager. The Send channel is
// left open since the session loop may still hold a reference; the
// connection's writer goroutine exits on its own context instead.
func (cm *ClientManager) RemoveClient(clientID uint32) {
	cm.clientsLock.Lock()
	defer cm.clientsLock.Unlock()
	delete(cm.clients, clientID)
}

// GetClients returns a list of all connected clients
func (cm *ClientManager) GetClients() []*Client {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()
	clients := make([]*Client, 0, len(cm.clients))
	for _, client := range cm.clients {
		clients = append(clients, client)
	}
	return clients
}

// GetClientByID retrieves a client by its ID
func (cm *ClientManager) GetClientByID(clientID uint32) (*Client, error) {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()
	client, ok := cm.clients[clientID]
	if !ok {
		return nil, fmt.Errorf("client %d is not connected", clientID)
	}
	return client, nil
}

// Exists reports whether a client ID is connected.
func (cm *ClientManager) Exists(clientID uint32) bool {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()
	_, ok := cm.clients[clientID]
	return ok
}

// ResolveRef returns the stable participant identity for a display
// name, creating one on first use.
func (cm *ClientManager) ResolveRef(name string) game.ParticipantRef {
	cm.refsLock.Lock()
	defer cm.refsLock.Unlock()

	if ref, ok := cm.refs[name]; ok {
		return ref
	}
	ref := game.ParticipantRef(uuid.NewString())
	cm.refs[name] = ref
	return ref
}
