// Package api provides the HTTP and WebSocket adapter in front of the
// simulation runner, the live loop, and the bot state controller
// (spec §13). It is a thin transport shell: all domain logic lives
// in internal/simulation, internal/liveloop, and internal/botstate.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/juanpimr2/intraday-engine/internal/botstate"
	"github.com/juanpimr2/intraday-engine/internal/liveloop"
	"github.com/juanpimr2/intraday-engine/internal/simulation"
	"github.com/juanpimr2/intraday-engine/pkg/types"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Client is one connected WebSocket subscriber.
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
	Subs map[string]bool
}

// BacktestState tracks one run submitted through the API.
type BacktestState struct {
	ID      string
	Config  types.BacktestConfig
	Status  string
	Started time.Time
	Result  *types.BacktestResult
	Err     error
}

// Message is the WebSocket envelope: request, response, or event.
type Message struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Method    string      `json:"method"`
	Payload   interface{} `json:"payload,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// Server is the HTTP/WebSocket API server.
type Server struct {
	mu         sync.RWMutex
	logger     *zap.Logger
	config     *types.ServerConfig
	router     *mux.Router
	httpServer *http.Server
	upgrader   websocket.Upgrader

	clients   map[string]*Client
	backtests map[string]*BacktestState

	bars  simulation.BarSource
	state *botstate.State
	loop  *liveloop.Loop
}

// NewServer creates an API server wired to a bar source for on-demand
// backtests and, optionally, a live loop for bot control.
func NewServer(logger *zap.Logger, config *types.ServerConfig, bars simulation.BarSource, loop *liveloop.Loop) *Server {
	state := botstate.New()
	if loop != nil {
		state = loop.State()
	}

	s := &Server{
		logger:    logger,
		config:    config,
		router:    mux.NewRouter(),
		clients:   make(map[string]*Client),
		backtests: make(map[string]*BacktestState),
		bars:      bars,
		state:     state,
		loop:      loop,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/v1/health", s.handleHealth).Methods("GET")

	s.router.HandleFunc("/api/v1/backtest/run", s.handleRunBacktest).Methods("POST")
	s.router.HandleFunc("/api/v1/backtest/{id}", s.handleGetBacktest).Methods("GET")
	s.router.HandleFunc("/api/v1/backtest/{id}/trades", s.handleGetBacktestTrades).Methods("GET")

	s.router.HandleFunc("/api/v1/bot/start", s.handleBotStart).Methods("POST")
	s.router.HandleFunc("/api/v1/bot/stop", s.handleBotStop).Methods("POST")
	s.router.HandleFunc("/api/v1/bot/status", s.handleBotStatus).Methods("GET")

	if s.config.EnableMetrics {
		s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	}

	s.router.HandleFunc(s.config.WebSocketPath, s.handleWebSocket)
}

// Start runs the HTTP server, blocking until it returns an error.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	handler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting API server", zap.String("addr", addr))
	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the server, closing every WebSocket connection first.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	for _, client := range s.clients {
		client.Conn.Close()
	}
	s.mu.Unlock()

	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// handleRunBacktest decodes a BacktestConfig, runs it in the background
// against the server's BarSource, and broadcasts a completion event.
func (s *Server) handleRunBacktest(w http.ResponseWriter, r *http.Request) {
	var cfg types.BacktestConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}

	state := &BacktestState{ID: cfg.ID, Config: cfg, Status: "running", Started: time.Now()}
	s.mu.Lock()
	s.backtests[cfg.ID] = state
	s.mu.Unlock()

	go s.runBacktestAsync(state)

	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":      cfg.ID,
		"status":  "running",
		"started": state.Started.Unix(),
	})
}

func (s *Server) runBacktestAsync(state *BacktestState) {
	runner := simulation.NewRunner(state.Config, s.bars, simulation.NoopSink{})
	result, err := runner.Run()

	s.mu.Lock()
	if err != nil {
		state.Status = "failed"
		state.Err = err
		s.logger.Error("backtest run failed", zap.String("id", state.ID), zap.Error(err))
	} else {
		state.Status = "completed"
		state.Result = &result
	}
	s.mu.Unlock()

	s.broadcast(&Message{
		ID:        uuid.New().String(),
		Type:      "event",
		Method:    "backtest:complete",
		Payload:   map[string]interface{}{"id": state.ID, "status": state.Status},
		Timestamp: time.Now().UnixMilli(),
	})
}

func (s *Server) handleGetBacktest(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.mu.RLock()
	state, ok := s.backtests[id]
	s.mu.RUnlock()
	if !ok {
		http.Error(w, "backtest not found", http.StatusNotFound)
		return
	}

	response := map[string]interface{}{
		"id":      state.ID,
		"status":  state.Status,
		"started": state.Started.Unix(),
	}
	if state.Result != nil {
		response["result"] = state.Result
	}
	if state.Err != nil {
		response["error"] = state.Err.Error()
	}
	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleGetBacktestTrades(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.mu.RLock()
	state, ok := s.backtests[id]
	s.mu.RUnlock()
	if !ok {
		http.Error(w, "backtest not found", http.StatusNotFound)
		return
	}
	if state.Result == nil {
		http.Error(w, "backtest not complete", http.StatusBadRequest)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":     id,
		"trades": state.Result.TradeList,
		"count":  len(state.Result.TradeList),
	})
}

func (s *Server) handleBotStart(w http.ResponseWriter, r *http.Request) {
	s.state.Start(time.Now())
	json.NewEncoder(w).Encode(s.state.Status())
}

func (s *Server) handleBotStop(w http.ResponseWriter, r *http.Request) {
	s.state.Stop(time.Now())
	json.NewEncoder(w).Encode(s.state.Status())
}

func (s *Server) handleBotStatus(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(s.state.Status())
}

// BroadcastSink fans out simulation/live-loop records to every connected
// WebSocket client as "event" messages, satisfying simulation.Sink and
// liveloop's Sink parameter. Record persistence itself is out of scope
// here (spec §6's Persistence sink is external); this only broadcasts.
type BroadcastSink struct {
	server *Server
}

// NewBroadcastSink wraps server for use as a simulation/live-loop Sink.
func NewBroadcastSink(server *Server) *BroadcastSink {
	return &BroadcastSink{server: server}
}

func (b *BroadcastSink) SaveTrade(trade types.Trade) {
	b.server.broadcast(&Message{
		ID: uuid.New().String(), Type: "event", Method: "trade:closed",
		Payload: trade, Timestamp: time.Now().UnixMilli(),
	})
}

func (b *BroadcastSink) SaveEquityPoint(point types.EquityPoint) {
	b.server.broadcast(&Message{
		ID: uuid.New().String(), Type: "event", Method: "equity:update",
		Payload: point, Timestamp: time.Now().UnixMilli(),
	})
}

func (b *BroadcastSink) SaveSignal(sig types.Signal) {
	b.server.broadcast(&Message{
		ID: uuid.New().String(), Type: "event", Method: "signal:new",
		Payload: sig, Timestamp: time.Now().UnixMilli(),
	})
}

// broadcast sends msg to every connected client's send buffer, dropping
// it for clients whose buffer is full rather than blocking.
func (s *Server) broadcast(msg *Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, client := range s.clients {
		select {
		case client.Send <- payload:
		default:
		}
	}
}
