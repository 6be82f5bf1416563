// Package api exposes the matchmaking and room operations over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/cuberace/cuberace/pkg/log"
	"github.com/cuberace/cuberace/pkg/matchmaking"
	"github.com/cuberace/cuberace/pkg/rooms"
)

// ServerOptions are the options for creating a Server.
type ServerOptions struct {
	Matchmaker *matchmaking.Matchmaker
	Rooms      *rooms.Manager
	Port       int
}

// Server serves the HTTP API.
type Server struct {
	matchmaker *matchmaking.Matchmaker
	rooms      *rooms.Manager
	httpServer *http.Server
}

// NewServer creates a Server listening on the configured port.
func NewServer(opts ServerOptions) *Server {
	s := &Server{
		matchmaker: opts.Matchmaker,
		rooms:      opts.Rooms,
	}
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: s.Handler(),
	}
	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/matchmake/start", s.handleMatchmakeStart).Methods(http.MethodPost)
	r.HandleFunc("/matchmake/poll", s.handleMatchmakePoll).Methods(http.MethodGet)
	r.HandleFunc("/match_friends", s.handleMatchFriends).Methods(http.MethodPost)
	r.HandleFunc("/room/{roomId}", s.handleGetRoom).Methods(http.MethodGet)
	r.HandleFunc("/remove_player", s.handleRemovePlayer).Methods(http.MethodPost)
	r.HandleFunc("/delete_game_room", s.handleDeleteGameRoom).Methods(http.MethodPost)
	return r
}

// Start serves until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	log.Info("api server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server failed: %v", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
