// Package api exposes a running simulation over HTTP: Prometheus metrics,
// a JSON status document and a websocket stream of rider events.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/i5heu/GoMonitorQueue/internal/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/websocket"
)

// StatusFunc returns the document served at /api/status.
type StatusFunc func() any

// Server is the HTTP front of a simulation.
type Server struct {
	addr   string
	gather prometheus.Gatherer
	status StatusFunc
	bus    *events.Bus
	log    *slog.Logger

	mu        sync.RWMutex
	wsClients map[*websocket.Conn]bool
}

// NewServer wires the endpoints. bus and status may be nil.
func NewServer(addr string, gather prometheus.Gatherer, status StatusFunc, bus *events.Bus, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Server{
		addr:      addr,
		gather:    gather,
		status:    status,
		bus:       bus,
		log:       log,
		wsClients: make(map[*websocket.Conn]bool),
	}
}

// Handler returns the routes without listening; tests use it directly.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.gather, promhttp.HandlerOpts{}))
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.Handle("/ws", websocket.Handler(s.handleWebSocket))
	return mux
}

// Start serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		s.closeClients()
	}()

	s.log.Info("API server listening", "addr", ln.Addr().String())
	if err := server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		http.Error(w, "no status available", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, s.status())
}

// handleWebSocket streams bus events to one client. The optional query
// parameter types restricts the stream, e.g. /ws?types=rider_riding.
func (s *Server) handleWebSocket(ws *websocket.Conn) {
	defer ws.Close()
	if s.bus == nil {
		return
	}
	types, err := events.ParseTypes(ws.Request().URL.Query().Get("types"))
	if err != nil {
		s.log.Warn("rejecting websocket client", "err", err)
		_ = websocket.JSON.Send(ws, map[string]string{"error": err.Error()})
		return
	}

	sub := s.bus.Subscribe(types...)
	defer s.bus.Unsubscribe(sub)

	s.mu.Lock()
	s.wsClients[ws] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.wsClients, ws)
		s.mu.Unlock()
	}()

	// The client never sends anything; a read error means it went away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			var msg string
			if err := websocket.Message.Receive(ws, &msg); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := websocket.Message.Send(ws, string(data)); err != nil {
				return
			}
		}
	}
}

// ClientCount returns the number of connected websocket clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.wsClients)
}

func (s *Server) closeClients() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for ws := range s.wsClients {
		_ = ws.Close()
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("failed to encode JSON", "err", err)
	}
}
