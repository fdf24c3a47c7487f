// ABOUTME: Gateway orchestrates the Courier process: wiring, the HTTP listener, and graceful shutdown
// ABOUTME: Start/stop shape is grounded on the donor's Gateway.New/Run/Shutdown, generalized from dual gRPC+HTTP to a single HTTP server

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/2389/courier/internal/auth"
	"github.com/2389/courier/internal/broadcast"
	"github.com/2389/courier/internal/channel"
	"github.com/2389/courier/internal/config"
	"github.com/2389/courier/internal/conn"
	"github.com/2389/courier/internal/metrics"
	"github.com/2389/courier/internal/ratelimit"
	"github.com/2389/courier/internal/validate"
)

// publisherIDHeader is the required header naming the publisher service
// identifier on every ingress request.
const publisherIDHeader = "X-Publisher-Id"

// healthState is the Lifecycle Supervisor's health status, reported on
// GET /health.
type healthState int32

const (
	stateHealthy healthState = iota
	stateDegraded
	stateShuttingDown
)

func (s healthState) String() string {
	switch s {
	case stateHealthy:
		return "healthy"
	case stateDegraded:
		return "degraded"
	case stateShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}

// Gateway wires every Courier component together and serves them behind one
// HTTP listener: WebSocket upgrade for subscribers, JSON ingress for
// publishers, and the control surface.
type Gateway struct {
	config *config.Config
	logger *slog.Logger

	registry      *channel.Registry
	engine        *broadcast.Engine
	eventValidate *validate.EventValidator
	limiter       *ratelimit.Limiter
	authorizer    *auth.Authorizer
	tokenVerifier auth.TokenVerifier
	connManager   *conn.Manager
	stats         *metrics.Collector
	upgrader      websocket.Upgrader

	httpServer *http.Server
	startedAt  time.Time

	state       atomic.Int32
	shutdownCtx context.Context
	cancelConns context.CancelFunc
	connWG      sync.WaitGroup
	janitorWG   sync.WaitGroup
}

// New wires every component from cfg and builds the HTTP handler. It does
// not start listening; call Run for that.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	registry := channel.NewRegistry(logger.With("component", "registry"), channel.Limits{
		MaxClientsPerChannel: cfg.Server.MaxClientsPerChannel,
		MaxTotalClients:      cfg.Server.MaxTotalClients,
	})
	for _, raw := range cfg.Channels.Preconfigured {
		name, err := channel.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("channels.preconfigured %q: %w", raw, err)
		}
		registry.EnsureChannel(name)
	}

	frameValidator := validate.NewFrameValidator(validate.Limits{
		MaxBytes:        cfg.Validation.MaxEventBytes,
		MaxStringLength: cfg.Validation.MaxStringLength,
		MaxArrayLength:  cfg.Validation.MaxArrayLength,
		MaxNestingDepth: cfg.Validation.MaxNestingDepth,
	})
	eventValidator := validate.NewEventValidator(validate.EventConfig{
		Limits: validate.Limits{
			MaxBytes:        cfg.Validation.MaxEventBytes,
			MaxStringLength: cfg.Validation.MaxStringLength,
			MaxArrayLength:  cfg.Validation.MaxArrayLength,
			MaxNestingDepth: cfg.Validation.MaxNestingDepth,
		},
		AllowedTypes:       cfg.Validation.AllowedEventTypes,
		RequireSourceMatch: cfg.Validation.RequireSourceMatch,
	})

	rlCfg := ratelimit.Config{
		Default: ratelimit.BucketConfig{
			TokensPerSecond: cfg.RateLimit.Default.TokensPerSecond,
			BurstSize:       cfg.RateLimit.Default.BurstSize,
		},
		PerType: make(map[string]ratelimit.BucketConfig, len(cfg.RateLimit.PerType)),
	}
	for msgType, bucket := range cfg.RateLimit.PerType {
		rlCfg.PerType[msgType] = ratelimit.BucketConfig{
			TokensPerSecond: bucket.TokensPerSecond,
			BurstSize:       bucket.BurstSize,
		}
	}
	limiter := ratelimit.New(rlCfg)

	var tokenVerifier auth.TokenVerifier
	if cfg.Auth.Required {
		jwtVerifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.Secret), time.Duration(cfg.Auth.LeewaySeconds)*time.Second)
		if err != nil {
			return nil, fmt.Errorf("creating token verifier: %w", err)
		}
		tokenVerifier = jwtVerifier
	}
	authorizer := auth.NewAuthorizer(nil)

	statsCollector := metrics.NewCollector()

	heartbeat := time.Duration(cfg.Server.HeartbeatIntervalSeconds) * time.Second
	connManager := conn.NewManager(registry, frameValidator, statsCollector, logger.With("component", "conn"), heartbeat, cfg.Subscriber.AllowLegacyPing)

	engine := broadcast.NewEngine(registry, logger.With("component", "broadcast"))

	shutdownCtx, cancelConns := context.WithCancel(context.Background())

	g := &Gateway{
		config:        cfg,
		logger:        logger.With("component", "gateway"),
		registry:      registry,
		engine:        engine,
		eventValidate: eventValidator,
		limiter:       limiter,
		authorizer:    authorizer,
		tokenVerifier: tokenVerifier,
		connManager:   connManager,
		stats:         statsCollector,
		upgrader:      websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		startedAt:     time.Now(),
		shutdownCtx:   shutdownCtx,
		cancelConns:   cancelConns,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/publish", g.handlePublish)
	mux.HandleFunc("/publish/", g.handlePublish)
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/stats", g.handleStats)
	mux.HandleFunc("/subscribe/", g.handleSubscribe)

	g.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return g, nil
}

func (g *Gateway) healthState() healthState {
	return healthState(g.state.Load())
}

func (g *Gateway) isShuttingDown() bool {
	return g.healthState() == stateShuttingDown
}

// Run starts the HTTP listener and blocks until ctx is canceled or the
// server fails. It performs graceful shutdown before returning.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", g.config.Addr(), err)
	}

	g.janitorWG.Add(1)
	go g.runJanitor()

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("courier listening", "addr", g.config.Addr())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
			return
		}
		errCh <- nil
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		g.logger.Info("shutdown signal received")
	case serveErr = <-errCh:
	}

	deadline := time.Duration(g.config.Server.ShutdownDeadlineSeconds) * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), deadline)
	defer cancel()

	if err := g.Shutdown(shutdownCtx); err != nil {
		g.logger.Error("shutdown error", "error", err)
		if serveErr == nil {
			serveErr = err
		}
	}

	return serveErr
}

// runJanitor periodically prunes empty ephemeral channels past their grace
// period and evicts rate limit buckets idle past their TTL. It is the one
// place this component introduces a goroutine the donor's equivalent
// packages don't have, since neither of those housekeeping tasks has a
// natural trigger from request traffic. Stops when shutdownCtx is canceled.
func (g *Gateway) runJanitor() {
	defer g.janitorWG.Done()

	interval := g.config.Server.ChannelPruneInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-g.shutdownCtx.Done():
			return
		case <-ticker.C:
			pruned := g.registry.PruneEmpty(g.config.Server.ChannelPruneGrace())
			evicted := g.limiter.EvictIdle(g.config.Server.RateLimitBucketTTL())
			if pruned > 0 || evicted > 0 {
				g.logger.Debug("janitor sweep", "channels_pruned", pruned, "buckets_evicted", evicted)
			}
		}
	}
}

// Shutdown executes the Lifecycle Supervisor's shutdown sequence: flip
// health to shutting_down, stop accepting connections, cancel every active
// subscriber's receive loop (each closes with a going-away status), and
// wait for drain up to ctx's deadline.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down courier")
	g.state.Store(int32(stateShuttingDown))

	if err := g.httpServer.Shutdown(ctx); err != nil {
		g.logger.Warn("http server shutdown", "error", err)
	}

	g.cancelConns()

	drained := make(chan struct{})
	go func() {
		g.connWG.Wait()
		g.janitorWG.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown deadline exceeded with connections still draining")
	}
}
