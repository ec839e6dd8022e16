package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/repo-analyzer/config"
	"github.com/target/repo-analyzer/internal/adapters/cleanup"
	"github.com/target/repo-analyzer/internal/adapters/gitgateway"
	"github.com/target/repo-analyzer/internal/adapters/oidc"
	"github.com/target/repo-analyzer/internal/adapters/procrunner"
	"github.com/target/repo-analyzer/internal/core"
	"github.com/target/repo-analyzer/internal/data"
	"github.com/target/repo-analyzer/internal/data/cryptoutil"
	"github.com/target/repo-analyzer/internal/observability/notify/pagerduty"
	"github.com/target/repo-analyzer/internal/observability/notify/slack"
	"github.com/target/repo-analyzer/internal/observability/statsd"
	"github.com/target/repo-analyzer/internal/service"
	"github.com/target/repo-analyzer/internal/service/failurenotifier"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Analysis      *service.AnalysisService
	Artifacts     *service.ArtifactService
	Keys          *service.KeyService
	Pool          *service.WorkerPool
	Registry      core.JobRegistry
	Verifier      *oidc.Verifier // nil when bearer auth is off
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink     *statsd.Client
	MetricsConfig   config.ObservabilityMetricsConfig
	FailureNotifier *failurenotifier.Service
	NotifierConfig  config.ObservabilityNotificationsConfig
}

// Sink returns the metrics sink, or nil when metrics are off. The nil check keeps a nil client
// from turning into a non-nil interface.
//
//nolint:ireturn // statsd.Sink is the consumer-facing type
func (o ObservabilityContainer) Sink() statsd.Sink {
	if o.MetricsSink == nil {
		return nil
	}
	return o.MetricsSink
}

// Notifier returns the failure notifier as an interface, nil when none was built.
func (o ObservabilityContainer) Notifier() service.FailureNotifier {
	if o.FailureNotifier == nil {
		return nil
	}
	return o.FailureNotifier
}

// Close releases the metrics socket.
func (o ObservabilityContainer) Close() error {
	if o.MetricsSink == nil {
		return nil
	}
	return o.MetricsSink.Close()
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB               // Required when the keystore backend is postgres
	RedisClient redis.UniversalClient // Required when the registry backend is redis
	Verifier    *oidc.Verifier        // Optional
	Logger      *slog.Logger
}

// pipelineAdapters groups the adapters an analysis pipeline drives.
type pipelineAdapters struct {
	Gateway   *gitgateway.Gateway
	Runner    *procrunner.Runner
	Cleaner   *cleanup.Manager
	Artifacts *data.FileArtifactStore
}

// buildObservability configures metrics and notification adapters.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  cfg.Metrics.Prefix,
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	return ObservabilityContainer{
		MetricsSink:     metricsSink,
		MetricsConfig:   cfg.Metrics,
		FailureNotifier: buildFailureNotifier(obsLogger, cfg.Notifications),
		NotifierConfig:  cfg.Notifications,
	}
}

func buildFailureNotifier(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig) *failurenotifier.Service {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = slog.Default()
	}

	if !cfg.Enabled {
		return failurenotifier.NewService(failurenotifier.Options{
			Logger: baseLogger.With("component", "failure_notifier"),
		})
	}

	sinks := make([]failurenotifier.SinkRegistration, 0, 2)

	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL:      cfg.Slack.WebhookURL,
			Channel:         cfg.Slack.Channel,
			Username:        cfg.Slack.Username,
			Timeout:         cfg.Timeout,
			RetryLimit:      cfg.RetryLimit,
			StatusURLPrefix: cfg.Slack.StatusURLPrefix,
		})
		if err != nil {
			baseLogger.Error("failed to initialise slack notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{
				Name: "slack",
				Sink: client,
			})
		}
	}

	if cfg.PagerDuty.Enabled {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			baseLogger.Error("failed to initialise pagerduty notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{
				Name: "pagerduty",
				Sink: client,
			})
		}
	}

	return failurenotifier.NewService(failurenotifier.Options{
		Logger: baseLogger.With("component", "failure_notifier"),
		Sinks:  sinks,
		// Jobs dropped at shutdown are expected, not incidents.
		SkipCanceled: true,
	})
}

// buildRegistry selects the job registry backend.
//
//nolint:ireturn // the backend is chosen at runtime
func buildRegistry(cfg config.RegistryConfig, client redis.UniversalClient) (core.JobRegistry, error) {
	switch cfg.Backend {
	case config.RegistryBackendRedis:
		if client == nil {
			return nil, errors.New("redis registry backend selected but redis is not connected")
		}
		return data.NewRedisJobRegistry(data.RedisJobRegistryOptions{
			Client: client,
			Prefix: cfg.KeyPrefix,
		})
	default:
		return data.NewMemoryJobRegistry(data.MemoryJobRegistryOptions{}), nil
	}
}

// buildKeyRepo selects the key store backend.
//
//nolint:ireturn // the backend is chosen at runtime
func buildKeyRepo(cfg config.KeystoreConfig, db *sql.DB, logger *slog.Logger) (core.KeyRepository, error) {
	if !cfg.UsesPostgres() {
		return data.NewMemoryKeyRepo(nil), nil
	}
	if db == nil {
		return nil, errors.New("postgres keystore selected but the database is not connected")
	}
	enc, sealed, err := cryptoutil.NewFromSecret(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("keystore encryptor: %w", err)
	}
	if !sealed && logger != nil {
		logger.Warn("keystore encryption key is empty; API keys are stored unencrypted")
	}
	return data.NewKeyRepo(db, enc), nil
}

func buildPipelineAdapters(cfg config.AnalysisConfig, cleanupCfg config.CleanupConfig, logger *slog.Logger) (pipelineAdapters, error) {
	gateway, err := gitgateway.New(gitgateway.Options{
		ReposDir:       cfg.ReposDir,
		Depth:          cfg.CloneDepth,
		SSHKeyPath:     cfg.SSHKeyPath,
		SSHKeyPassword: cfg.SSHKeyPassword,
		Logger:         logger,
	})
	if err != nil {
		return pipelineAdapters{}, fmt.Errorf("create repository gateway: %w", err)
	}
	artifacts, err := data.NewFileArtifactStore(cfg.OutputDir)
	if err != nil {
		return pipelineAdapters{}, fmt.Errorf("create artifact store: %w", err)
	}
	return pipelineAdapters{
		Gateway: gateway,
		Runner:  procrunner.New(procrunner.Options{Logger: logger}),
		Cleaner: cleanup.New(cleanup.Options{
			InitialDelay: cleanupCfg.InitialDelay,
			MaxAttempts:  cleanupCfg.MaxAttempts,
			RetryDelay:   cleanupCfg.RetryDelay,
			Logger:       logger,
		}),
		Artifacts: artifacts,
	}, nil
}

func toolConfig(cfg config.AnalysisConfig) service.ToolConfig {
	return service.ToolConfig{
		ProjectRoot: cfg.ProjectRoot,
		MetricsDir:  cfg.MetricsDir,
		ScriptName:  cfg.ScriptName,
		Executable:  cfg.ToolExecutable,
		Home:        cfg.ToolHome,
		Platform:    cfg.ToolPlatform,
	}
}

// NewServices wires the analysis pipeline, key store and artifact access for the server.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps with config are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	observability := buildObservability(logger, cfg.Observability)

	registry, err := buildRegistry(cfg.Registry, deps.RedisClient)
	if err != nil {
		return ServiceContainer{}, err
	}
	keyRepo, err := buildKeyRepo(cfg.Keystore, deps.DB, logger)
	if err != nil {
		return ServiceContainer{}, err
	}
	adapters, err := buildPipelineAdapters(cfg.Analysis, cfg.Cleanup, logger)
	if err != nil {
		return ServiceContainer{}, err
	}

	pool := service.NewWorkerPool(service.WorkerPoolOptions{
		Workers:   cfg.Analysis.Workers,
		QueueSize: cfg.Analysis.QueueSize,
		Logger:    logger,
	})

	analysis, err := service.NewAnalysisService(service.AnalysisServiceOptions{
		Registry:   registry,
		Gateway:    adapters.Gateway,
		Runner:     adapters.Runner,
		Cleaner:    adapters.Cleaner,
		Artifacts:  adapters.Artifacts,
		Tool:       toolConfig(cfg.Analysis),
		Dispatcher: pool,
		Metrics:    observability.Sink(),
		Notifier:   observability.Notifier(),
		Heartbeat:  cfg.Analysis.Heartbeat,
		Logger:     logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create analysis service: %w", err)
	}

	keys, err := service.NewKeyService(service.KeyServiceOptions{Repo: keyRepo, Logger: logger})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create key service: %w", err)
	}
	artifacts, err := service.NewArtifactService(service.ArtifactServiceOptions{
		Store:  adapters.Artifacts,
		Logger: logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create artifact service: %w", err)
	}

	return ServiceContainer{
		Analysis:      analysis,
		Artifacts:     artifacts,
		Keys:          keys,
		Pool:          pool,
		Registry:      registry,
		Verifier:      deps.Verifier,
		Observability: observability,
	}, nil
}

// NewStandaloneAnalysis builds an AnalysisService for a single synchronous run: an in-memory
// registry, no worker pool and no notifications.
func NewStandaloneAnalysis(cfg *config.AppConfig, logger *slog.Logger) (*service.AnalysisService, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	adapters, err := buildPipelineAdapters(cfg.Analysis, cfg.Cleanup, logger)
	if err != nil {
		return nil, err
	}
	return service.NewAnalysisService(service.AnalysisServiceOptions{
		Registry:  data.NewMemoryJobRegistry(data.MemoryJobRegistryOptions{}),
		Gateway:   adapters.Gateway,
		Runner:    adapters.Runner,
		Cleaner:   adapters.Cleaner,
		Artifacts: adapters.Artifacts,
		Tool:      toolConfig(cfg.Analysis),
		Logger:    logger,
	})
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

const (
	// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
	shutdownWaitTimeout = 15 * time.Second
)

// serviceStartupDeps groups dependencies for service startup.
type serviceStartupDeps struct {
	ctx             context.Context
	cfg             *ServiceOrchestrationConfig
	logger          *slog.Logger
	enabledServices map[config.ServiceMode]bool
	errCh           chan error
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	mode config.ServiceMode
	name string
	done <-chan struct{}
}

// startHTTPServerIfEnabled starts the HTTP server if enabled.
func startHTTPServerIfEnabled(deps *serviceStartupDeps) *http.Server {
	if deps == nil || deps.cfg == nil || !deps.enabledServices[config.ServiceModeHTTP] {
		return nil
	}
	return StartHTTPServer(&HTTPServerConfig{
		Config:   deps.cfg.Config,
		Services: deps.cfg.Services,
		Logger:   deps.logger,
	})
}

func launchBackground(ctx context.Context, deps *serviceStartupDeps, descriptor backgroundService) <-chan struct{} {
	if deps == nil || !deps.enabledServices[descriptor.mode] {
		return nil
	}
	logger := deps.logger
	if logger == nil {
		logger = slog.Default()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := descriptor.start(ctx); err != nil {
			errMsg := fmt.Errorf("%s failed: %w", descriptor.name, err)
			select {
			case deps.errCh <- errMsg:
			case <-ctx.Done():
			default:
				logger.WarnContext(ctx, "dropping background service error", "service", descriptor.name, "error", errMsg)
			}
		}
	}()

	logger.InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)
	return done
}

func startBackgroundServices(deps *serviceStartupDeps, services []backgroundService) []backgroundServiceHandle {
	if deps == nil {
		return nil
	}
	handles := make([]backgroundServiceHandle, 0, len(services))

	for _, svc := range services {
		done := launchBackground(deps.ctx, deps, svc)
		if done == nil {
			continue
		}

		handles = append(handles, backgroundServiceHandle{
			mode: svc.mode,
			name: svc.name,
			done: done,
		})
	}

	return handles
}

// newWorkerPoolBackgroundService runs the analysis pool alongside the HTTP API that feeds it.
func newWorkerPoolBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeHTTP,
		name: "analysis worker pool",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil || deps.cfg.Services.Pool == nil {
				return nil
			}
			return RunWorkerPool(ctx, WorkerPoolConfig{
				Pool:    deps.cfg.Services.Pool,
				Logger:  deps.logger,
				Metrics: deps.cfg.Services.Observability.Sink(),
			})
		},
	}
}

func newReaperBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeReaper,
		name: "reaper",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil || deps.cfg.Services.Registry == nil {
				return nil
			}
			var registryCfg config.RegistryConfig
			if deps.cfg.Config != nil {
				registryCfg = deps.cfg.Config.Registry
			}
			return RunReaper(ctx, ReaperConfig{
				Registry: deps.cfg.Services.Registry,
				Logger:   deps.logger,
				Config:   registryCfg,
				Metrics:  deps.cfg.Services.Observability.Sink(),
				Notifier: deps.cfg.Services.Observability.Notifier(),
			})
		},
	}
}

func buildBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	if deps == nil {
		return nil
	}
	return []backgroundService{
		newWorkerPoolBackgroundService(deps),
		newReaperBackgroundService(deps),
	}
}

// ServiceStartupResult holds the results of starting all services.
type ServiceStartupResult struct {
	HTTPServer *http.Server
	Background []backgroundServiceHandle
}

// startServices starts all enabled services and returns their completion channels.
func startServices(deps *serviceStartupDeps) ServiceStartupResult {
	return ServiceStartupResult{
		HTTPServer: startHTTPServerIfEnabled(deps),
		Background: startBackgroundServices(deps, buildBackgroundServices(deps)),
	}
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until ctx ends, a shutdown signal is received or a service fails.
func RunServicesWithShutdown(ctx context.Context, cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	serviceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}

	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	errCh := make(chan error, errorChannelBufferSize(enabledServices))

	result := startServices(&serviceStartupDeps{
		ctx:             serviceCtx,
		cfg:             cfg,
		logger:          logger,
		enabledServices: enabledServices,
		errCh:           errCh,
	})

	return waitForShutdown(shutdownConfig{
		ctx:         serviceCtx,
		cancel:      cancel,
		errCh:       errCh,
		httpServer:  result.HTTPServer,
		logger:      logger,
		backgrounds: result.Background,
	})
}

func errorChannelCapacity(enabled map[config.ServiceMode]bool) int {
	count := 0
	for _, mode := range config.ValidServiceModes() {
		if enabled[mode] {
			count++
		}
	}
	// The worker pool rides along with the HTTP service.
	if enabled[config.ServiceModeHTTP] {
		count++
	}
	return count
}

func errorChannelBufferSize(enabled map[config.ServiceMode]bool) int {
	size := errorChannelCapacity(enabled) + 1
	if size < 1 {
		return 1
	}
	return size
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	ctx         context.Context
	cancel      context.CancelFunc
	errCh       <-chan error
	httpServer  *http.Server
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
	waitTimeout time.Duration // Optional: defaults to shutdownWaitTimeout
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		return gracefulStop(cfg)
	case <-cfg.ctx.Done():
		cfg.logger.Info("context done, shutting down services...")
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop stops accepting requests first so no new analysis is submitted, then cancels the
// background services and waits for them.
func gracefulStop(cfg shutdownConfig) error {
	var httpErr error
	if cfg.httpServer != nil {
		httpErr = ShutdownHTTPServer(ShutdownConfig{
			Context: context.Background(),
			Server:  cfg.httpServer,
			Logger:  cfg.logger,
		})
	}

	if cfg.cancel != nil {
		cfg.cancel()
	}

	timeout := cfg.waitTimeout
	if timeout <= 0 {
		timeout = shutdownWaitTimeout
	}
	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, timeout, cfg.logger)
	}

	return httpErr
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, timeout time.Duration, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(timeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
