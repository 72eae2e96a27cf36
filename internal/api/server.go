package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/automation-creator/internal/audit"
	"github.com/nerrad567/automation-creator/internal/automation"
	"github.com/nerrad567/automation-creator/internal/infrastructure/config"
	"github.com/nerrad567/automation-creator/internal/infrastructure/logging"
	"github.com/nerrad567/automation-creator/internal/session"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// defaultSubmissionTimeout bounds a background submission when Deps leaves
// SubmissionTimeout unset.
const defaultSubmissionTimeout = 2 * time.Minute

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Panel    config.PanelConfig
	Logger   *logging.Logger
	Sessions *session.Manager

	// Automations is the history of generated automations. Optional: the
	// /automations routes are only mounted when it is set, since a panel
	// talking to a remote host has no local history.
	Automations automation.Repository

	// Audit records panel operations. Optional: nil disables the trail and
	// the /audit route.
	Audit audit.Repository

	// Metrics is the Prometheus scrape handler, mounted at MetricsPath.
	// Optional.
	Metrics     http.Handler
	MetricsPath string

	// SubmissionTimeout bounds each background submission.
	SubmissionTimeout time.Duration

	Version string
}

// Server is the HTTP API server for the automation creator.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg               config.APIConfig
	secCfg            config.SecurityConfig
	panelCfg          config.PanelConfig
	logger            *logging.Logger
	sessions          *session.Manager
	automations       automation.Repository
	auditRepo         audit.Repository
	auditCh           chan *audit.Entry
	auditDone         chan struct{}
	metrics           http.Handler
	metricsPath       string
	submissionTimeout time.Duration
	version           string
	server            *http.Server
	hub               *Hub
	tickets           *ticketStore

	// baseCtx parents background submissions; cancelled by Close.
	ctxMu   sync.RWMutex
	baseCtx context.Context
	cancel  context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The WebSocket hub is created here and subscribed to every session state
// change, so New must run before sessions are opened. The server is not
// started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, session manager)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}

	timeout := deps.SubmissionTimeout
	if timeout <= 0 {
		timeout = defaultSubmissionTimeout
	}

	s := &Server{
		cfg:               deps.Config,
		secCfg:            deps.Security,
		panelCfg:          deps.Panel,
		logger:            deps.Logger,
		sessions:          deps.Sessions,
		automations:       deps.Automations,
		auditRepo:         deps.Audit,
		metrics:           deps.Metrics,
		metricsPath:       deps.MetricsPath,
		submissionTimeout: timeout,
		version:           deps.Version,
		tickets:           newTicketStore(),
		baseCtx:           context.Background(),
	}

	s.hub = NewHub(deps.WS, deps.Logger, s.sessionSnapshot)

	if s.metrics != nil && s.metricsPath == "" {
		s.metricsPath = "/metrics"
	}
	if s.auditRepo != nil {
		s.auditCh = make(chan *audit.Entry, auditChanSize)
	}

	s.sessions.OnStateChange(func(st session.State) {
		s.hub.PublishState(st)
	})

	return s, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub and ticket cleanup, then launches the HTTP
// listener in a background goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Parent of the hub and of background submissions
//
// Returns:
//   - error: If the server fails to start
func (s *Server) Start(ctx context.Context) error {
	srvCtx, cancel := context.WithCancel(ctx)
	s.ctxMu.Lock()
	s.baseCtx, s.cancel = srvCtx, cancel
	s.ctxMu.Unlock()

	go s.hub.Run(srvCtx)
	if s.auditRepo != nil {
		s.auditDone = make(chan struct{})
		go s.drainAuditLog(srvCtx)
	}

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It cancels background submissions and the hub, then waits up to 10
// seconds for in-flight requests to complete.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	s.ctxMu.RLock()
	cancel := s.cancel
	s.ctxMu.RUnlock()
	if cancel != nil {
		cancel()
	}

	ctx, done := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer done()

	s.logger.Info("API server shutting down")
	err := s.server.Shutdown(ctx)

	if s.auditDone != nil {
		select {
		case <-s.auditDone:
		case <-ctx.Done():
			s.logger.Warn("audit entries not flushed before shutdown deadline")
		}
	}

	if err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

// submissionContext returns the context a background submission runs under.
func (s *Server) submissionContext() (context.Context, context.CancelFunc) {
	s.ctxMu.RLock()
	parent := s.baseCtx
	s.ctxMu.RUnlock()
	return context.WithTimeout(parent, s.submissionTimeout)
}
