// Package gateway serves the voice websocket and the HTTP API.
package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/soyeahso/foodvoice/internal/config"
	"github.com/soyeahso/foodvoice/internal/domain"
	"github.com/soyeahso/foodvoice/internal/hooks"
	"github.com/soyeahso/foodvoice/internal/logging"
	"github.com/soyeahso/foodvoice/internal/order"
	"github.com/soyeahso/foodvoice/internal/planner"
	"github.com/soyeahso/foodvoice/internal/version"
	"github.com/soyeahso/foodvoice/internal/voice"
)

// Planner turns a free-text request into an order draft.
type Planner interface {
	Run(ctx context.Context, request string) (*planner.Result, error)
}

// OrderRunner executes drafts, synchronously or in the background.
type OrderRunner interface {
	Run(ctx context.Context, sessionID string, d *order.Draft) (string, *order.Summary, error)
	Start(ctx context.Context, sessionID string, d *order.Draft, notify func(order.Update)) (string, error)
}

// OrderLookup reads stored order runs.
type OrderLookup interface {
	Get(ctx context.Context, id string) (*domain.OrderRecord, error)
	List(ctx context.Context, limit int) ([]domain.OrderRecord, error)
}

// Server is the foodvoice HTTP + WebSocket server.
type Server struct {
	cfg      config.Config
	auth     ResolvedAuth
	log      *logging.Logger
	rootLog  *logging.Logger
	clients  *ClientRegistry
	sessions *voice.Registry
	version  string

	voice   voice.Deps
	planner Planner
	orders  OrderRunner
	lookup  OrderLookup
	hooks   *hooks.Manager

	startedAt   time.Time
	httpServer  *http.Server
	upgrader    websocket.Upgrader
	authLimiter *authRateLimiter
}

// ServerOption configures the gateway server.
type ServerOption func(*Server)

// WithVoice sets the collaborators each voice session is built from.
func WithVoice(deps voice.Deps) ServerOption {
	return func(s *Server) {
		s.voice = deps
	}
}

// WithSessions shares a session registry with the caller.
func WithSessions(reg *voice.Registry) ServerOption {
	return func(s *Server) {
		s.sessions = reg
	}
}

// WithPlanner enables POST /orders/plan.
func WithPlanner(p Planner) ServerOption {
	return func(s *Server) {
		s.planner = p
	}
}

// WithOrders enables POST /orders.
func WithOrders(r OrderRunner) ServerOption {
	return func(s *Server) {
		s.orders = r
	}
}

// WithOrderLookup enables GET /orders and GET /orders/{id}.
func WithOrderLookup(l OrderLookup) ServerOption {
	return func(s *Server) {
		s.lookup = l
	}
}

// WithHooks sets the hook manager for lifecycle events.
func WithHooks(hm *hooks.Manager) ServerOption {
	return func(s *Server) {
		s.hooks = hm
	}
}

// New creates a new gateway server.
func New(cfg config.Config, log *logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:         cfg,
		auth:        ResolveAuth(cfg.Gateway.Auth),
		log:         log.Sub("gateway"),
		rootLog:     log,
		clients:     NewClientRegistry(log.Sub("clients")),
		version:     version.Version,
		startedAt:   time.Now(),
		authLimiter: newAuthRateLimiter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:   16 * 1024,
			WriteBufferSize:  16 * 1024,
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin:      checkWebSocketOrigin(cfg.Gateway.AllowedOrigins),
		},
	}

	for _, opt := range opts {
		opt(s)
	}
	if s.sessions == nil {
		s.sessions = voice.NewRegistry()
	}
	return s
}

// Sessions returns the live voice sessions.
func (s *Server) Sessions() *voice.Registry {
	return s.sessions
}

// checkWebSocketOrigin allows requests without an Origin header (non-browser
// clients) and browser requests whose Origin is in allowed.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return isOriginAllowed(origin, allowed)
	}
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.GatewayConfig) string {
	switch cfg.Bind {
	case "lan", "auto":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return net.JoinHostPort(host, fmt.Sprint(cfg.Port))
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Handler returns the routed HTTP handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerHTTPRoutes(mux)
	return withMiddleware(mux, s.log, s.cfg.Gateway.AllowedOrigins)
}

// Start begins listening for HTTP and WebSocket connections.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg.Gateway)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	if s.cfg.Gateway.TLS.Enabled {
		cert, err := tls.LoadX509KeyPair(s.cfg.Gateway.TLS.CertPath, s.cfg.Gateway.TLS.KeyPath)
		if err != nil {
			ln.Close()
			return fmt.Errorf("loading TLS certificate: %w", err)
		}
		ln = tls.NewListener(ln, &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		})
		s.log.Info().Msg("TLS enabled")
	} else if s.cfg.Gateway.Bind != "loopback" && s.auth.Required() {
		s.log.Warn().Msg("TLS is not enabled, the gateway token travels in cleartext")
	}

	s.startedAt = time.Now()
	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Gateway.Bind).
		Bool("auth", s.auth.Required()).
		Bool("voice", s.voiceReady()).
		Msg("gateway server ready")
	s.hooks.Emit(ctx, hooks.EventGatewayStart, map[string]any{"addr": ln.Addr().String()})

	go s.pruneAuthFailures(ctx)
	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		s.hooks.Emit(context.Background(), hooks.EventGatewayStop, nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.clients.CloseAll()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) pruneAuthFailures(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.authLimiter.prune()
		}
	}
}

// Addr returns the server's listen address, or empty string if not started.
func (s *Server) Addr() string {
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return ""
}

func (s *Server) voiceReady() bool {
	return s.voice.Engine != nil && s.voice.Open != nil
}

// handleVoice authenticates, upgrades and runs one voice session.
func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	if !s.authLimiter.allow(r.RemoteAddr) {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("rate limited, too many failed auth attempts")
		writeError(w, http.StatusTooManyRequests, "too many requests")
		return
	}
	authResult := Authorize(s.auth, tokenFromRequest(r))
	if !authResult.OK {
		s.authLimiter.recordFailure(r.RemoteAddr)
		s.log.Warn().Str("remote", r.RemoteAddr).Str("reason", authResult.Reason).Msg("voice auth failed")
		writeError(w, http.StatusUnauthorized, authResult.Reason)
		return
	}
	if !s.voiceReady() {
		writeError(w, http.StatusServiceUnavailable, "voice pipeline not configured")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Time{})

	client := NewClient(conn, authResult, r.RemoteAddr)
	s.clients.Add(client)
	defer func() {
		s.clients.Remove(client.ConnID)
		_ = client.Close()
	}()

	s.serveVoice(r.Context(), client)
}

// serveVoice runs a session for client until the connection drops.
func (s *Server) serveVoice(ctx context.Context, client *Client) {
	sess := voice.NewSession(s.cfg.Voice, s.cfg.TTS, s.cfg.LLM)
	client.SessionID = sess.ID
	s.sessions.Add(sess)
	defer s.sessions.Remove(sess.ID)

	deps := s.voice
	deps.Hooks = s.hooks
	deps.Voice = s.cfg.Voice
	deps.Log = s.rootLog
	ctrl := voice.NewController(sess, client, deps)
	ctrl.Start(ctx)
	defer func() {
		ctrl.Close()
		ctrl.Wait()
	}()

	log := s.log.With("sessionId", sess.ID)
	for {
		mt, data, err := client.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				log.Debug().Msg("client closed connection")
			} else {
				log.Warn().Err(err).Msg("read error")
			}
			return
		}
		switch mt {
		case websocket.TextMessage:
			ctrl.HandleMessage(data)
		case websocket.BinaryMessage:
			ctrl.HandleAudio(data)
		}
	}
}
