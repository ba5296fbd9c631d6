// Package server initializes and runs the review workflow server.
// It opens the configured storage, wires the services, and serves gRPC and
// the Prometheus metrics endpoint until a shutdown signal arrives.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hungtran3011/research-review-sub001/internal/common"
	"github.com/hungtran3011/research-review-sub001/internal/logging"
	"github.com/hungtran3011/research-review-sub001/internal/server/auth"
	"github.com/hungtran3011/research-review-sub001/internal/server/config"
	"github.com/hungtran3011/research-review-sub001/internal/server/metrics"
	"github.com/hungtran3011/research-review-sub001/internal/server/repositories/memory"
	"github.com/hungtran3011/research-review-sub001/internal/server/repositories/repomanager"
	"github.com/hungtran3011/research-review-sub001/internal/server/services"
	"github.com/hungtran3011/research-review-sub001/internal/server/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	gs "github.com/hungtran3011/research-review-sub001/internal/server/grpc"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config          *config.Config
	logger          logging.Logger
	repomanager     repomanager.RepositoryManager
	registry        *prometheus.Registry
	tokens          *services.TokenService
	workflow        *services.WorkflowService
	manuscripts     *services.ManuscriptService
	shutdownTracing func(context.Context) error
}

// OpenStorage returns the repository manager selected by c.Storage. The
// Postgres schema is migrated before it is returned.
func OpenStorage(ctx context.Context, c *config.Config, l logging.Logger) (repomanager.RepositoryManager, error) {
	switch c.Storage {
	case config.StorageMemory:
		l.Warn(ctx, "using in-memory storage, data is lost on restart")
		return memory.NewRepositoryManager(), nil
	case config.StoragePostgres:
		m, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		if err := m.RunMigrations(ctx); err != nil {
			m.Close()
			return nil, fmt.Errorf("migrations error: %w", err)
		}
		return m, nil
	}
	return nil, fmt.Errorf("%w: unknown storage %q", common.ErrorValidation, c.Storage)
}

// NewTokenService builds the session token service from c.
func NewTokenService(c *config.Config, m repomanager.RepositoryManager, opts ...services.Option) (*services.TokenService, error) {
	issuer, err := auth.NewIssuer([]byte(c.SecretKey), c.Issuer, c.AccessTokenValidityDuration)
	if err != nil {
		return nil, err
	}
	hasher, err := auth.NewHasher([]byte(c.DigestKey))
	if err != nil {
		return nil, err
	}
	return services.NewTokenService(m, issuer, hasher, c, opts...), nil
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	shutdownTracing, err := telemetry.Setup(ctx, common.ServiceName, c.OTLPEndpoint)
	if err != nil {
		return nil, fmt.Errorf("tracing init error: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mtr, err := metrics.New(registry)
	if err != nil {
		return nil, fmt.Errorf("metrics init error: %w", err)
	}

	m, err := OpenStorage(ctx, c, logger)
	if err != nil {
		return nil, err
	}

	opts := []services.Option{services.WithLogger(logger), services.WithMetrics(mtr)}

	hasher, err := auth.NewHasher([]byte(c.DigestKey))
	if err != nil {
		m.Close()
		return nil, err
	}
	ts, err := NewTokenService(c, m, opts...)
	if err != nil {
		m.Close()
		return nil, err
	}
	is := services.NewInvitationService(m, hasher, c, opts...)
	rs := services.NewRosterService(m, opts...)
	ws := services.NewWorkflowService(m, is, rs, services.NewLogNotifier(logger), services.NewLogEmailer(logger), opts...)
	ms := services.NewManuscriptService(m, c, opts...)

	return &App{
		config:          c,
		logger:          logger,
		repomanager:     m,
		registry:        registry,
		tokens:          ts,
		workflow:        ws,
		manuscripts:     ms,
		shutdownTracing: shutdownTracing,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s, err := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.tokens, app.workflow, app.manuscripts, app.config.RequestTimeout)

	if err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	} else {

		if err := s.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}
}

func (app *App) startMetricsServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if app.config.MetricsAddr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(app.registry))
	srv := &http.Server{Addr: app.config.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "metrics server shutdown", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting metrics server", "address", app.config.MetricsAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startMetricsServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.close()
}

// close releases storage and flushes traces.
func (app *App) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.repomanager.Close(); err != nil {
		app.logger.Error(ctx, "storage close", "error", err)
	}
	if err := app.shutdownTracing(ctx); err != nil {
		app.logger.Error(ctx, "tracing shutdown", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
