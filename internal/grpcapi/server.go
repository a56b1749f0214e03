// Package grpcapi provides the internal RPC channel between the Virga CLI
// and a resident view server sharing the same workspace files. The CLI
// nudges the server to reload after each mutation; the server additionally
// answers read queries over its filtered view.
package grpcapi

import (
	"fmt"
	"net"
	"os"

	"google.golang.org/grpc"

	"github.com/virga-tools/virga/internal/core"
	"github.com/virga-tools/virga/internal/filter"
	"github.com/virga-tools/virga/internal/store"
)

// Server wraps the gRPC server of a resident view process.
type Server struct {
	grpcServer *grpc.Server
	listener   net.Listener
	handler    *Handler
}

// NewServer creates a view server bound to a unix socket. A stale socket
// file from a crashed previous instance is removed first.
func NewServer(socketPath string, engine *core.Engine, st *store.Store, filters *filter.Engine) (*Server, error) {
	if _, err := os.Stat(socketPath); err == nil {
		os.Remove(socketPath)
	}

	lis, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", socketPath, err)
	}

	s := grpc.NewServer()
	svc := NewService(engine, st, filters)
	h := NewHandler(svc)
	h.RegisterWithGRPC(s)

	return &Server{
		grpcServer: s,
		listener:   lis,
		handler:    h,
	}, nil
}

// Serve starts serving RPC requests.
func (s *Server) Serve() error {
	return s.grpcServer.Serve(s.listener)
}

// Stop gracefully stops the server.
func (s *Server) Stop() {
	s.grpcServer.GracefulStop()
}

// Handler returns the dispatch handler for direct in-process access.
func (s *Server) Handler() *Handler {
	return s.handler
}
