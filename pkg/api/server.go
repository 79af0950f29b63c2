package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/kmerrick/dropfour/pkg/api/handlers"
	"github.com/kmerrick/dropfour/pkg/api/middleware"
	"github.com/kmerrick/dropfour/pkg/log"
	"github.com/kmerrick/dropfour/pkg/repositories"
	"github.com/kmerrick/dropfour/pkg/session"
)

type APIServer struct {
	server *http.Server
	tls    *TLSConfig
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewAPIServerOptions struct {
	Port           int
	TLS            *TLSConfig
	Repository     repositories.Repository
	SessionManager *session.Manager
}

// NewAPIServer creates a new http.Server for handling API requests
func NewAPIServer(opts NewAPIServerOptions) *APIServer {
	router := mux.NewRouter()
	router.Use(middleware.CORS)

	router.HandleFunc("/games", handlers.HandleListGames(opts.Repository)).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/games/{gameID}", handlers.HandleGetGame(opts.Repository)).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/sessions", handlers.HandleListSessions(opts.SessionManager)).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/sessions/{sessionID}", handlers.HandleGetSession(opts.SessionManager)).Methods(http.MethodGet, http.MethodOptions)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}
	return &APIServer{
		server: server,
		tls:    opts.TLS,
	}
}

// Start starts the APIServer
func (s *APIServer) Start() {
	var listenAndServe func() error
	if s.tls != nil {
		log.Info("API server listening on %s with TLS", s.server.Addr)
		listenAndServe = func() error {
			return s.server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		}
	} else {
		log.Info("API server listening on %s", s.server.Addr)
		listenAndServe = s.server.ListenAndServe
	}
	if err := listenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("API server closed")
			return
		}
		log.Error("API server error: %v", err)
	}
}

// Stop stops the APIServer
func (s *APIServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
