// Package server exposes the command dispatcher over a WebSocket listener.
// Each accepted connection gets its own read loop; every text frame is one
// command, answered with one envelope on the same connection.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"newsfetcher/internal/dispatcher"
)

const shutdownGrace = 5 * time.Second

// Server accepts WebSocket connections and feeds their messages to the
// dispatcher.
type Server struct {
	addr string
	disp *dispatcher.Dispatcher
}

// New creates a server listening on addr once Run is called.
func New(addr string, disp *dispatcher.Dispatcher) *Server {
	return &Server{addr: addr, disp: disp}
}

// Run serves until ctx is canceled, then shuts the listener down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:        s.addr,
		Handler:     s,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("command server listening", "addr", s.addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// ServeHTTP upgrades the connection and runs the per-connection loop.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Error("websocket handshake failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	slog.Info("new connection", "remote", r.RemoteAddr)

	// The request context doubles as the connection context: a dropped
	// connection cancels any in-flight poll dispatched from it.
	s.handleConnection(r.Context(), conn, r.RemoteAddr)
}

func (s *Server) handleConnection(ctx context.Context, conn *websocket.Conn, remote string) {
	defer conn.Close(websocket.StatusNormalClosure, "")

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure || errors.Is(err, context.Canceled) {
				slog.Info("connection closed", "remote", remote)
			} else {
				slog.Warn("error receiving message", "remote", remote, "error", err)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		resp := s.disp.Dispatch(ctx, data)
		if err := conn.Write(ctx, websocket.MessageText, resp.Encode()); err != nil {
			slog.Warn("failed to send response", "remote", remote, "error", err)
			return
		}
	}
}
