package config

import (
	"path/filepath"
	"reflect"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestParseServices(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    map[ServiceMode]bool
		expectError bool
	}{
		{
			name:     "single service - http",
			input:    "http",
			expected: map[ServiceMode]bool{ServiceModeHTTP: true},
		},
		{
			name:     "single service - reaper",
			input:    "reaper",
			expected: map[ServiceMode]bool{ServiceModeReaper: true},
		},
		{
			name:  "services with spaces and duplicates",
			input: " http , reaper ,http",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:   true,
				ServiceModeReaper: true,
			},
		},
		{
			name:        "empty string",
			input:       "",
			expectError: true,
		},
		{
			name:        "only spaces and commas",
			input:       " , , ",
			expectError: true,
		},
		{
			name:        "invalid service name",
			input:       "http,scheduler",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseServices(tt.input)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestConfig_ServiceEnabledMethods(t *testing.T) {
	tests := []struct {
		name           string
		services       string
		jobTTL         time.Duration
		expectedHTTP   bool
		expectedReaper bool
	}{
		{name: "default", services: "http,reaper", jobTTL: time.Hour, expectedHTTP: true, expectedReaper: true},
		{name: "http only", services: "http", jobTTL: time.Hour, expectedHTTP: true},
		{name: "reaper without ttl", services: "reaper", jobTTL: 0, expectedReaper: true},
		{name: "invalid", services: "invalid-service", jobTTL: time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := AppConfig{Services: tt.services, Registry: RegistryConfig{JobTTL: tt.jobTTL}}
			if got := cfg.IsHTTPServerEnabled(); got != tt.expectedHTTP {
				t.Errorf("IsHTTPServerEnabled(): expected %v, got %v", tt.expectedHTTP, got)
			}
			if got := cfg.IsReaperEnabled(); got != tt.expectedReaper {
				t.Errorf("IsReaperEnabled(): expected %v, got %v", tt.expectedReaper, got)
			}
		})
	}
}

func TestValidServiceModes(t *testing.T) {
	expected := []ServiceMode{ServiceModeHTTP, ServiceModeReaper}
	if got := ValidServiceModes(); !reflect.DeepEqual(got, expected) {
		t.Errorf("expected %v, got %v", expected, got)
	}
}

func TestAppConfig_ParseEnv(t *testing.T) {
	root := t.TempDir()
	t.Setenv("ANALYSIS_PROJECT_ROOT", root)
	t.Setenv("ANALYSIS_OUTPUT_DIR", "artifacts")
	t.Setenv("ANALYSIS_TOOL_HOME", "/opt/scitools")
	t.Setenv("ANALYSIS_WORKERS", "2")
	t.Setenv("ANALYSIS_HEARTBEAT", "1h")
	t.Setenv("CLEANUP_MAX_ATTEMPTS", "7")
	t.Setenv("CLEANUP_RETRY_DELAY", "250ms")
	t.Setenv("REGISTRY_BACKEND", "Redis")
	t.Setenv("REGISTRY_JOB_TTL", "2h")
	t.Setenv("KEYSTORE_BACKEND", "postgres")
	t.Setenv("AUTH_OIDC_ISSUER", "https://login.example.com/.well-known/openid-configuration")
	t.Setenv("DB_NAME", "analyzer_test")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Analysis.ProjectRoot != root {
		t.Errorf("ProjectRoot = %q, want %q", cfg.Analysis.ProjectRoot, root)
	}
	if want := filepath.Join(root, "artifacts"); cfg.Analysis.OutputDir != want {
		t.Errorf("OutputDir = %q, want %q", cfg.Analysis.OutputDir, want)
	}
	if want := filepath.Join(root, "repos"); cfg.Analysis.ReposDir != want {
		t.Errorf("ReposDir = %q, want %q", cfg.Analysis.ReposDir, want)
	}
	if want := filepath.Join(root, "chromeext_metrics"); cfg.Analysis.MetricsDir != want {
		t.Errorf("MetricsDir = %q, want %q", cfg.Analysis.MetricsDir, want)
	}
	if cfg.Analysis.ToolHome != filepath.Clean("/opt/scitools") {
		t.Errorf("ToolHome = %q", cfg.Analysis.ToolHome)
	}
	if cfg.Analysis.ScriptName != "understandMetrics.py" || cfg.Analysis.ToolExecutable != "upython" {
		t.Errorf("unexpected tool defaults: %+v", cfg.Analysis)
	}
	if cfg.Analysis.Workers != 2 || cfg.Analysis.CloneDepth != 10 || cfg.Analysis.QueueSize != 64 {
		t.Errorf("unexpected pool settings: %+v", cfg.Analysis)
	}
	if cfg.Analysis.Heartbeat != 10*time.Minute {
		t.Errorf("Heartbeat = %v, want clamp to 10m", cfg.Analysis.Heartbeat)
	}
	if cfg.Cleanup.MaxAttempts != 7 || cfg.Cleanup.RetryDelay != 250*time.Millisecond || cfg.Cleanup.InitialDelay != 3*time.Second {
		t.Errorf("unexpected cleanup config: %+v", cfg.Cleanup)
	}
	if cfg.Registry.Backend != RegistryBackendRedis || cfg.Registry.JobTTL != 2*time.Hour {
		t.Errorf("unexpected registry config: %+v", cfg.Registry)
	}
	if !cfg.Keystore.UsesPostgres() {
		t.Errorf("expected postgres keystore")
	}
	if cfg.Auth.Issuer != "https://login.example.com" || !cfg.Auth.Enabled() {
		t.Errorf("unexpected auth config: %+v", cfg.Auth)
	}
	if cfg.Postgres.Name != "analyzer_test" {
		t.Errorf("DB name = %q", cfg.Postgres.Name)
	}
}

func TestAppConfig_InvalidBackend(t *testing.T) {
	t.Setenv("REGISTRY_BACKEND", "etcd")
	var cfg AppConfig
	if err := env.Parse(&cfg); err == nil {
		t.Fatal("expected parse error for unknown registry backend")
	}
}

func TestAnalysisConfig_Sanitize(t *testing.T) {
	cfg := AnalysisConfig{ProjectRoot: "/srv/app", CloneDepth: -1, Workers: 0, QueueSize: 0, ScriptName: " "}
	cfg.Sanitize()

	if cfg.CloneDepth != 10 || cfg.Workers != 4 || cfg.QueueSize != 64 {
		t.Errorf("expected numeric defaults, got %+v", cfg)
	}
	if cfg.ScriptName != "understandMetrics.py" {
		t.Errorf("ScriptName = %q", cfg.ScriptName)
	}
	if cfg.ToolHome != "" {
		t.Errorf("ToolHome should stay empty, got %q", cfg.ToolHome)
	}
	if cfg.ToolPlatform == "" {
		t.Error("expected platform default")
	}
}

func TestDefaultToolPlatform(t *testing.T) {
	tests := map[string]string{
		"windows": "pc-win64",
		"darwin":  "macosx",
		"linux":   "linux64",
		"freebsd": "linux64",
	}
	for goos, want := range tests {
		if got := DefaultToolPlatform(goos); got != want {
			t.Errorf("DefaultToolPlatform(%q) = %q, want %q", goos, got, want)
		}
	}
}

func TestRegistryConfig_Sanitize(t *testing.T) {
	cfg := RegistryConfig{JobTTL: -time.Hour, StaleRunningTTL: time.Minute, ReapInterval: time.Second}
	cfg.Sanitize()

	if cfg.Backend != RegistryBackendMemory || cfg.KeyPrefix != "repoanalyzer:" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.JobTTL != 0 || cfg.EvictionEnabled() {
		t.Errorf("negative ttl should disable eviction: %+v", cfg)
	}
	if cfg.StaleRunningTTL != 30*time.Minute || cfg.ReapInterval != time.Minute {
		t.Errorf("expected clamped durations: %+v", cfg)
	}
}

func TestCleanupConfig_Sanitize(t *testing.T) {
	cfg := CleanupConfig{InitialDelay: -time.Second, MaxAttempts: 0, RetryDelay: -1}
	cfg.Sanitize()
	if cfg.InitialDelay != 0 || cfg.MaxAttempts != 1 || cfg.RetryDelay != 0 {
		t.Errorf("unexpected cleanup config: %+v", cfg)
	}

	cfg = CleanupConfig{MaxAttempts: 100}
	cfg.Sanitize()
	if cfg.MaxAttempts != 20 {
		t.Errorf("MaxAttempts = %d, want 20", cfg.MaxAttempts)
	}
}

func TestHTTPConfig_Sanitize(t *testing.T) {
	cfg := HTTPConfig{CompressionLevel: 42}
	cfg.Sanitize()
	if cfg.Addr != ":8080" || cfg.ReadTimeout != 15*time.Second || cfg.CompressionLevel != 9 {
		t.Errorf("unexpected http config: %+v", cfg)
	}
}

func TestObservabilityMetricsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " ",
	}

	cfg.Sanitize()

	if cfg.Enabled {
		t.Fatalf("expected enabled to be false when address is empty")
	}

	cfg = ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " statsd:1234 ",
		Prefix:        " .repoanalyzer. ",
	}

	cfg.Sanitize()

	if !cfg.IsEnabled() {
		t.Fatalf("expected metrics to remain enabled")
	}
	if cfg.StatsdAddress != "statsd:1234" {
		t.Fatalf("expected address to be trimmed, got %q", cfg.StatsdAddress)
	}
	if cfg.Prefix != "repoanalyzer" {
		t.Fatalf("expected prefix to be trimmed, got %q", cfg.Prefix)
	}
}

func TestObservabilityNotificationsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityNotificationsConfig{
		Enabled:    true,
		Timeout:    0,
		RetryLimit: -1,
		Slack: SlackNotificationConfig{
			Enabled:    true,
			WebhookURL: " ",
		},
		PagerDuty: PagerDutyNotificationConfig{
			Enabled:    true,
			RoutingKey: " key ",
		},
	}

	cfg.Sanitize()

	if cfg.Timeout != 5*time.Second || cfg.RetryLimit != 0 {
		t.Fatalf("unexpected timeout/retry: %+v", cfg)
	}
	if cfg.Slack.Enabled {
		t.Fatal("slack should be disabled without a webhook")
	}
	if cfg.Slack.Username != "repoanalyzer" {
		t.Fatalf("unexpected slack username %q", cfg.Slack.Username)
	}
	if !cfg.PagerDuty.Enabled || cfg.PagerDuty.RoutingKey != "key" {
		t.Fatalf("unexpected pagerduty config: %+v", cfg.PagerDuty)
	}
	if cfg.PagerDuty.Source != "repoanalyzer" {
		t.Fatalf("unexpected pagerduty source %q", cfg.PagerDuty.Source)
	}

	cfg.Enabled = false
	cfg.Sanitize()
	if cfg.PagerDuty.Enabled {
		t.Fatal("disabled notifications must disable every sink")
	}
}
