// Package control serves the minimal JSON control surface: status,
// positions, performance, trade history, and balance reads, a
// bearer-token-protected start/stop pair, and a WebSocket feed that
// emits periodic status snapshots. Routing and the broadcast-to-
// clients shape follow the teacher's risk dashboard; the bearer
// middleware and the route set are this build's own, sized to what
// the control surface actually exposes.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"tradingengine/internal/engine"
	"tradingengine/internal/model"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Engine is the narrow port onto internal/engine.Engine this surface
// reads its start/stop/status controls through.
type Engine interface {
	Start()
	Stop()
	Status() engine.Status
}

// Store is the narrow persistence port backing the read-only
// positions/performance/trades/balance endpoints.
type Store interface {
	OpenPositions(ctx context.Context) ([]model.Position, error)
	ListTrades(ctx context.Context, symbol string, limit int) ([]model.Trade, error)
	GetDailyPerformance(ctx context.Context, date time.Time) (model.DailyPerformance, error)
	LatestBalance(ctx context.Context) (model.CapitalSnapshot, bool, error)
}

// Server wires the routes above a net/http.Server, following the
// teacher's dashboard construction (one mux.Router, one
// websocket.Upgrader, a broadcast channel fanned out to every
// connected client on a fixed interval).
type Server struct {
	engine Engine
	store  Store
	token  string

	httpServer *http.Server
	upgrader   websocket.Upgrader

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]struct{}

	stop chan struct{}
}

// New builds a Server listening on port. token is the bearer value
// POST /start and POST /stop require; an empty token disables that
// check (local/dev use only).
func New(engine Engine, store Store, port int, token string) *Server {
	s := &Server{
		engine:   engine,
		store:    store,
		token:    token,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:  make(map[*websocket.Conn]struct{}),
		stop:     make(chan struct{}),
	}

	r := mux.NewRouter()
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/positions", s.handlePositions).Methods(http.MethodGet)
	r.HandleFunc("/performance", s.handlePerformance).Methods(http.MethodGet)
	r.HandleFunc("/trades", s.handleTrades).Methods(http.MethodGet)
	r.HandleFunc("/balance", s.handleBalance).Methods(http.MethodGet)
	r.HandleFunc("/start", s.requireBearer(s.handleStart)).Methods(http.MethodPost)
	r.HandleFunc("/stop", s.requireBearer(s.handleStop)).Methods(http.MethodPost)
	r.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Run starts the HTTP listener and the WebSocket broadcast loop,
// blocking until ctx is cancelled, then shuts both down.
func (s *Server) Run(ctx context.Context) {
	go s.broadcastLoop()

	go func() {
		log.Info().Str("addr", s.httpServer.Addr).Msg("control: listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("control: server failed")
		}
	}()

	<-ctx.Done()
	close(s.stop)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("control: graceful shutdown failed")
	}

	s.clientsMu.Lock()
	for c := range s.clients {
		c.Close()
	}
	s.clients = make(map[*websocket.Conn]struct{})
	s.clientsMu.Unlock()
}

func (s *Server) requireBearer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			next(w, r)
			return
		}
		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if got == "" || got != s.token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("control: failed to encode response")
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.engine.Status())
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.store.OpenPositions(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, positions)
}

func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	perf, err := s.store.GetDailyPerformance(r.Context(), today)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, perf)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	symbol := r.URL.Query().Get("symbol")
	trades, err := s.store.ListTrades(r.Context(), symbol, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, trades)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	snap, ok, err := s.store.LatestBalance(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		writeJSON(w, model.CapitalSnapshot{})
		return
	}
	writeJSON(w, snap)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.engine.Start()
	writeJSON(w, map[string]string{"status": "started"})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.engine.Stop()
	writeJSON(w, map[string]string{"status": "stopped"})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("control: websocket upgrade failed")
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = struct{}{}
	s.clientsMu.Unlock()

	if data, err := json.Marshal(s.engine.Status()); err == nil {
		_ = conn.WriteMessage(websocket.TextMessage, data)
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.clientsMu.Lock()
	delete(s.clients, conn)
	s.clientsMu.Unlock()
	conn.Close()
}

// broadcastLoop pushes a status snapshot to every connected client
// every five seconds, following the teacher's fixed-interval
// collector/broadcaster split (here collapsed to one loop since the
// status snapshot is cheap to read).
func (s *Server) broadcastLoop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			data, err := json.Marshal(s.engine.Status())
			if err != nil {
				continue
			}
			s.clientsMu.Lock()
			for c := range s.clients {
				if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
					c.Close()
					delete(s.clients, c)
				}
			}
			s.clientsMu.Unlock()
		}
	}
}
