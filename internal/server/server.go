// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeranaias/docchat-tui/internal/api"
	"github.com/jeranaias/docchat-tui/internal/endpoint"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is the listen address used when none is configured.
	DefaultAddr = "127.0.0.1:8000"

	// MaxRequestBodySize bounds the send body (1MB).
	MaxRequestBodySize = 1 << 20

	// BotSender is the sender name on streamed frames.
	BotSender = "bot"
)

// ============================================================================
// SERVER
// ============================================================================

// Config configures a Server.
type Config struct {
	Addr string
	// APIKey is required as a bearer token on sends and as the api_key
	// query parameter on direct sockets. Empty disables both checks.
	APIKey   string
	SendPath string
	// RateLimit is sends per second per channel; zero disables limiting.
	RateLimit rate.Limit
	Burst     int
	// ChunkWords splits answers into frames of this many words; zero sends
	// each answer as a single frame.
	ChunkWords int
	ChunkDelay time.Duration
	Answer     AnswerFunc
}

// Server is the development backend.
type Server struct {
	cfg     Config
	logger  *zap.Logger
	router  chi.Router
	hub     *Hub
	limiter *ChannelLimiter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	server *http.Server
}

// New creates a Server with routes installed.
func New(cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.SendPath == "" {
		cfg.SendPath = api.DefaultSendPath
	}
	if cfg.Answer == nil {
		cfg.Answer = EchoAnswer
	}
	logger = logger.Named("server")

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		hub:     NewHub(logger),
		limiter: NewChannelLimiter(cfg.RateLimit, cfg.Burst),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(s.logger))
	r.Use(Recovery(s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Get(endpoint.ProxyPath, s.handleProxySocket)
	r.Get(endpoint.DirectPath, s.handleDirectSocket)
	r.With(BearerAuth(s.cfg.APIKey, s.logger)).Post(s.cfg.SendPath, s.handleSend)

	s.router = r
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the socket registry.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.cfg.Addr
}

// ============================================================================
// SOCKET HANDLERS
// ============================================================================

func (s *Server) handleProxySocket(w http.ResponseWriter, r *http.Request) {
	session := r.URL.Query().Get("session")
	if session == "" {
		writeDetail(w, http.StatusBadRequest, "session is required")
		return
	}
	s.serveSocket(w, r, session)
}

func (s *Server) handleDirectSocket(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := endpoint.Params{SessionID: q.Get("session"), BucketName: q.Get("bucket"), FilePath: q.Get("path")}
	if missing := p.Missing(); len(missing) > 0 {
		writeDetail(w, http.StatusBadRequest, "missing query parameters: "+strings.Join(missing, ", "))
		return
	}
	if s.cfg.APIKey != "" && !ValidateBearerToken(q.Get("api_key"), s.cfg.APIKey) {
		writeDetail(w, http.StatusUnauthorized, "Invalid API key")
		return
	}
	s.serveSocket(w, r, p.SessionID)
}

func (s *Server) serveSocket(w http.ResponseWriter, r *http.Request, session string) {
	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	unregister := s.hub.Register(session, ws)
	defer unregister()
	s.logger.Info("socket connected", zap.String("session", session))

	// Client messages are not part of the protocol; CloseRead discards
	// them and reports when the peer goes away.
	ctx := ws.CloseRead(s.ctx)
	_ = s.hub.Send(ctx, session, Frame{Sender: BotSender, Message: "connected", Type: "info"})
	<-ctx.Done()

	s.logger.Info("socket disconnected", zap.String("session", session))
	_ = ws.Close(websocket.StatusNormalClosure, "")
}

// ============================================================================
// SEND HANDLER
// ============================================================================

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req api.SendRequest
	body := http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if !s.limiter.Allow(req.Channel) {
		s.logger.Info("send rate limited", zap.String("channel", req.Channel))
		writeDetail(w, http.StatusTooManyRequests, "rate limited")
		return
	}
	if !s.hub.Has(req.Channel) {
		writeDetail(w, http.StatusConflict, "no streaming connection for channel "+req.Channel)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.stream(req)
	}()
}

// stream writes the answer for req to its channel as start, stream and
// end frames.
func (s *Server) stream(req api.SendRequest) {
	send := func(typ, msg string) bool {
		err := s.hub.Send(s.ctx, req.Channel, Frame{Sender: BotSender, Message: msg, Type: typ})
		if err != nil {
			s.logger.Warn("stream write failed", zap.String("channel", req.Channel), zap.Error(err))
			return false
		}
		return true
	}

	if !send("start", "") {
		return
	}
	for _, piece := range chunk(s.cfg.Answer(req), s.cfg.ChunkWords) {
		if s.cfg.ChunkDelay > 0 {
			select {
			case <-time.After(s.cfg.ChunkDelay):
			case <-s.ctx.Done():
				return
			}
		}
		if !send("stream", piece) {
			return
		}
	}
	send("end", "")
}

// ============================================================================
// HEALTH HANDLER
// ============================================================================

// HealthResponse is the health check body.
type HealthResponse struct {
	Status  string `json:"status"`
	Sockets int    `json:"sockets"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Sockets: s.hub.Len()})
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	s.logger.Info("server start", zap.String("addr", ln.Addr().String()), zap.String("send_path", s.cfg.SendPath))

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown stops streaming, closes sockets and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutdown")
	s.cancel()
	s.hub.CloseAll()

	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	s.wg.Wait()
	return err
}

// ============================================================================
// HELPERS
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDetail writes a {"detail": "..."} error body.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
