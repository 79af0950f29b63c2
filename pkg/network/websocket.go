package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kmerrick/dropfour/pkg/clients"
	"github.com/kmerrick/dropfour/pkg/log"
	"github.com/kmerrick/dropfour/pkg/messages"
	"github.com/kmerrick/dropfour/pkg/session"
	"nhooyr.io/websocket"
)

const (
	// pingInterval keeps idle connections alive through proxies.
	pingInterval = 15 * time.Second
)

// WSServer accepts WebSocket connections and bridges them to game
// sessions: inbound messages become session commands, and each
// connection's writer drains the client's send buffer.
type WSServer struct {
	port           int
	tls            *TLSConfig
	clientManager  *clients.ClientManager
	sessionManager *session.Manager
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

// NewWSServerOptions contains options for creating a new WSServer.
type NewWSServerOptions struct {
	Port           int
	TLS            *TLSConfig
	ClientManager  *clients.ClientManager
	SessionManager *session.Manager
}

// NewWSServer creates a new WebSocket server.
func NewWSServer(opts NewWSServerOptions) *WSServer {
	return &WSServer{
		port:           opts.Port,
		tls:            opts.TLS,
		clientManager:  opts.ClientManager,
		sessionManager: opts.SessionManager,
	}
}

// Start starts the WebSocket server and blocks until the context is
// canceled or the listener fails.
func (s *WSServer) Start(ctx context.Context) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		s.handleConnection(ctx, w, r)
	})

	addr := fmt.Sprintf(":%d", s.port)
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		server.Shutdown(ctx)
	}()

	var listenAndServe func() error
	if s.tls != nil {
		log.Info("WebSocket server listening on %s with TLS", addr)
		listenAndServe = func() error {
			return server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		}
	} else {
		log.Info("WebSocket server listening on %s", addr)
		listenAndServe = server.ListenAndServe
	}
	if err := listenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("WebSocket server closed")
			return
		}
		log.Error("WebSocket server error: %v", err)
	}
}

func (s *WSServer) handleConnection(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "missing name query parameter", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Error("Failed to accept WebSocket connection: %v", err)
		return
	}
	conn.SetReadLimit(messages.MessageBufferSize)

	client := s.clientManager.AddClient(name)
	log.Debug("Client %d (%s) connected from %s", client.ID, name, r.RemoteAddr)

	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		if err := s.sessionManager.Disconnect(client.ID); err != nil {
			log.Error("Failed to route disconnect for client %d: %v", client.ID, err)
		}
		s.clientManager.RemoveClient(client.ID)
		conn.Close(websocket.StatusNormalClosure, "")
		log.Debug("Client %d disconnected", client.ID)
	}()

	if err := s.sendWelcome(ctx, conn, client); err != nil {
		log.Error("Failed to send welcome to client %d: %v", client.ID, err)
		return
	}

	go s.writePump(ctx, conn, client)
	s.readPump(ctx, conn, client)
}

func (s *WSServer) sendWelcome(ctx context.Context, conn *websocket.Conn, client *clients.Client) error {
	payload, err := json.Marshal(&messages.ServerWelcome{
		ClientID:       client.ID,
		ParticipantRef: string(client.Ref),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal welcome: %v", err)
	}
	b, err := messages.SerializeMessage(&messages.Message{
		ClientID: messages.ServerClientID,
		Type:     messages.MessageTypeServerWelcome,
		Payload:  payload,
	})
	if err != nil {
		return fmt.Errorf("failed to serialize welcome: %v", err)
	}
	return conn.Write(ctx, websocket.MessageBinary, b)
}

// writePump drains the client's send buffer onto the connection and
// keeps it alive with pings.
func (s *WSServer) writePump(ctx context.Context, conn *websocket.Conn, client *clients.Client) {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case b := <-client.Send:
			if err := conn.Write(ctx, websocket.MessageBinary, b); err != nil {
				log.Debug("Failed to write to client %d: %v", client.ID, err)
				return
			}
		case <-ping.C:
			if err := conn.Ping(ctx); err != nil {
				log.Debug("Failed to ping client %d: %v", client.ID, err)
				return
			}
		}
	}
}

// readPump reads messages from the connection and routes them until
// the connection drops.
func (s *WSServer) readPump(ctx context.Context, conn *websocket.Conn, client *clients.Client) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == -1 && !errors.Is(err, context.Canceled) {
				log.Error("Error reading from client %d: %v", client.ID, err)
			}
			return
		}

		msg, err := messages.DeserializeMessage(data)
		if err != nil {
			log.Error("Failed to deserialize message from client %d: %v", client.ID, err)
			continue
		}

		if err := s.routeMessage(ctx, client, msg); err != nil {
			log.Error("Failed to route %s from client %d: %v", msg.Type, client.ID, err)
		}
	}
}

// routeMessage turns an inbound message into a session command. A join
// is matched against a session with a free seat; everything else goes
// to the session the client already joined.
func (s *WSServer) routeMessage(ctx context.Context, client *clients.Client, msg *messages.Message) error {
	cmd := &session.Command{
		ClientID: client.ID,
		Type:     msg.Type,
		Payload:  msg.Payload,
	}

	switch msg.Type {
	case messages.MessageTypeClientPing:
		return s.sendPong(client)
	case messages.MessageTypeClientJoin:
		open := s.sessionManager.FindOpenSession(ctx)
		return s.sessionManager.Route(open.ID(), cmd)
	case messages.MessageTypeClientReady,
		messages.MessageTypeClientMove,
		messages.MessageTypeClientLeave,
		messages.MessageTypeClientRematch:
		return s.sessionManager.RouteToMember(cmd)
	default:
		return fmt.Errorf("unhandled message type: %s", msg.Type)
	}
}

func (s *WSServer) sendPong(client *clients.Client) error {
	b, err := messages.SerializeMessage(&messages.Message{
		ClientID: messages.ServerClientID,
		Type:     messages.MessageTypeServerPong,
	})
	if err != nil {
		return fmt.Errorf("failed to serialize pong: %v", err)
	}
	select {
	case client.Send <- b:
		return nil
	default:
		return fmt.Errorf("send buffer full for client %d", client.ID)
	}
}
