package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/repo-analyzer/config"
	"github.com/target/repo-analyzer/internal/data"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAppConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	cfg := &config.AppConfig{
		Services: "http,reaper",
		Analysis: config.AnalysisConfig{ProjectRoot: t.TempDir()},
		HTTP:     config.HTTPConfig{Addr: "127.0.0.1:0"},
	}
	cfg.Sanitize()
	return cfg
}

func TestErrorChannelCapacity(t *testing.T) {
	tests := []struct {
		name  string
		modes []config.ServiceMode
		want  int
	}{
		{
			name: "no services enabled",
			want: 0,
		},
		{
			name:  "http counts the worker pool",
			modes: []config.ServiceMode{config.ServiceModeHTTP},
			want:  2,
		},
		{
			name:  "reaper only",
			modes: []config.ServiceMode{config.ServiceModeReaper},
			want:  1,
		},
		{
			name:  "all services enabled",
			modes: []config.ServiceMode{config.ServiceModeHTTP, config.ServiceModeReaper},
			want:  3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enabled := make(map[config.ServiceMode]bool, len(tt.modes))
			for _, mode := range tt.modes {
				enabled[mode] = true
			}

			if got := errorChannelCapacity(enabled); got != tt.want {
				t.Fatalf("errorChannelCapacity(%v) = %d, want %d", tt.modes, got, tt.want)
			}
			if got := errorChannelBufferSize(enabled); got != tt.want+1 {
				t.Fatalf("errorChannelBufferSize(%v) = %d, want %d", tt.modes, got, tt.want+1)
			}
		})
	}
}

func TestBuildRegistry(t *testing.T) {
	reg, err := buildRegistry(config.RegistryConfig{Backend: config.RegistryBackendMemory}, nil)
	require.NoError(t, err)
	assert.IsType(t, &data.MemoryJobRegistry{}, reg)

	_, err = buildRegistry(config.RegistryConfig{Backend: config.RegistryBackendRedis}, nil)
	require.ErrorContains(t, err, "redis is not connected")

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })
	reg, err = buildRegistry(config.RegistryConfig{Backend: config.RegistryBackendRedis, KeyPrefix: "t:"}, client)
	require.NoError(t, err)
	assert.IsType(t, &data.RedisJobRegistry{}, reg)
}

func TestBuildKeyRepo(t *testing.T) {
	repo, err := buildKeyRepo(config.KeystoreConfig{Backend: config.KeystoreBackendMemory}, nil, discardLogger())
	require.NoError(t, err)
	assert.IsType(t, &data.MemoryKeyRepo{}, repo)

	_, err = buildKeyRepo(config.KeystoreConfig{Backend: config.KeystoreBackendPostgres}, nil, discardLogger())
	require.ErrorContains(t, err, "database is not connected")

	// sql.Open does not dial, so no server is needed.
	db, err := sql.Open("pgx", "postgres://u:p@127.0.0.1:1/db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo, err = buildKeyRepo(config.KeystoreConfig{
		Backend:       config.KeystoreBackendPostgres,
		EncryptionKey: "passphrase",
	}, db, discardLogger())
	require.NoError(t, err)
	require.IsType(t, &data.KeyRepo{}, repo)

	sealed, err := repo.(*data.KeyRepo).Enc.Seal("sk-test")
	require.NoError(t, err)
	assert.NotEqual(t, "sk-test", sealed)
}

func TestBuildFailureNotifier(t *testing.T) {
	disabled := buildFailureNotifier(discardLogger(), config.ObservabilityNotificationsConfig{})
	assert.False(t, disabled.Enabled())

	enabled := buildFailureNotifier(discardLogger(), config.ObservabilityNotificationsConfig{
		Enabled: true,
		Timeout: time.Second,
		Slack: config.SlackNotificationConfig{
			Enabled:    true,
			WebhookURL: "https://hooks.slack.example/services/T/B/X",
		},
		PagerDuty: config.PagerDutyNotificationConfig{
			Enabled:    true,
			RoutingKey: "rk",
			Source:     "repoanalyzer",
			Component:  "analysis",
		},
	})
	assert.True(t, enabled.Enabled())
}

func TestBuildObservability_MetricsDisabled(t *testing.T) {
	obs := buildObservability(discardLogger(), config.ObservabilityConfig{})
	assert.Nil(t, obs.MetricsSink)
	assert.Nil(t, obs.Sink())
	assert.NotNil(t, obs.FailureNotifier)
	assert.NoError(t, obs.Close())
}

func TestNewServices(t *testing.T) {
	_, err := NewServices(nil)
	require.Error(t, err)

	cfg := testAppConfig(t)
	c, err := NewServices(&ServiceDeps{Config: cfg, Logger: discardLogger()})
	require.NoError(t, err)

	assert.NotNil(t, c.Analysis)
	assert.NotNil(t, c.Artifacts)
	assert.NotNil(t, c.Keys)
	assert.NotNil(t, c.Pool)
	assert.IsType(t, &data.MemoryJobRegistry{}, c.Registry)
	assert.Nil(t, c.Verifier)

	rs := routerServices(c, discardLogger())
	assert.NotNil(t, rs.Analysis)
	assert.Nil(t, rs.Verifier, "a nil verifier must stay a nil interface")
}

func TestNewStandaloneAnalysis(t *testing.T) {
	svc, err := NewStandaloneAnalysis(testAppConfig(t), discardLogger())
	require.NoError(t, err)
	require.NotNil(t, svc)

	// No dispatcher: asynchronous submission is unavailable.
	_, err = svc.Submit(context.Background(), "https://github.com/acme/widgets.git")
	require.Error(t, err)
}

func TestBuildHTTPHandler(t *testing.T) {
	cfg := testAppConfig(t)
	cfg.HTTP.CompressionEnabled = true
	c, err := NewServices(&ServiceDeps{Config: cfg, Logger: discardLogger()})
	require.NoError(t, err)

	h := buildHTTPHandler(httpHandlerConfig{
		Logger:   discardLogger(),
		Services: routerServices(c, discardLogger()),
		HTTP:     cfg.HTTP,
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","message":"API is running"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status?repoUrl=https://github.com/acme/none", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"PENDING"`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNewServer_UsesConfiguredTimeouts(t *testing.T) {
	srv := newServer(http.NotFoundHandler(), config.HTTPConfig{
		ReadTimeout:  time.Second,
		WriteTimeout: 2 * time.Second,
		IdleTimeout:  3 * time.Second,
	})
	assert.Equal(t, ":8080", srv.Addr)
	assert.Equal(t, time.Second, srv.ReadTimeout)
	assert.Equal(t, 2*time.Second, srv.WriteTimeout)
	assert.Equal(t, 3*time.Second, srv.IdleTimeout)
}

func TestLaunchBackground(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps := &serviceStartupDeps{
		ctx:             ctx,
		logger:          discardLogger(),
		enabledServices: map[config.ServiceMode]bool{config.ServiceModeReaper: true},
		errCh:           make(chan error, 1),
	}

	skipped := launchBackground(ctx, deps, backgroundService{
		mode:  config.ServiceModeHTTP,
		name:  "disabled",
		start: func(context.Context) error { return nil },
	})
	assert.Nil(t, skipped)

	done := launchBackground(ctx, deps, backgroundService{
		mode:  config.ServiceModeReaper,
		name:  "reaper",
		start: func(context.Context) error { return errors.New("boom") },
	})
	require.NotNil(t, done)
	<-done

	select {
	case err := <-deps.errCh:
		assert.ErrorContains(t, err, "reaper failed: boom")
	default:
		t.Fatal("expected background error to be reported")
	}
}

func TestGracefulStop_TimesOutOnStuckService(t *testing.T) {
	stuck := make(chan struct{})
	defer close(stuck)

	start := time.Now()
	err := gracefulStop(shutdownConfig{
		ctx:         context.Background(),
		cancel:      func() {},
		logger:      discardLogger(),
		backgrounds: []backgroundServiceHandle{{name: "stuck", done: stuck}},
		waitTimeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunServicesWithShutdown_StopsOnContextCancel(t *testing.T) {
	cfg := testAppConfig(t)
	c, err := NewServices(&ServiceDeps{Config: cfg, Logger: discardLogger()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- RunServicesWithShutdown(ctx, &ServiceOrchestrationConfig{
			Config:   cfg,
			Services: c,
			Logger:   discardLogger(),
		})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("services did not stop")
	}

	// The pool is closed after shutdown.
	_, err = c.Analysis.Submit(context.Background(), "https://github.com/acme/widgets.git")
	require.Error(t, err)
}

func TestRunServicesWithShutdown_Validation(t *testing.T) {
	require.Error(t, RunServicesWithShutdown(context.Background(), nil))
	require.Error(t, RunServicesWithShutdown(context.Background(), &ServiceOrchestrationConfig{}))
}
