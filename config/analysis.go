package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const (
	defaultMetricsDirName = "chromeext_metrics"
	defaultScriptName     = "understandMetrics.py"
	defaultToolExecutable = "upython"
	defaultOutputDirName  = "output"
	defaultReposDirName   = "repos"
	defaultCloneDepth     = 10
	defaultWorkers        = 4
	defaultQueueSize      = 64
	// maxHeartbeat stays well below the minimum registry STALE_RUNNING_TTL.
	maxHeartbeat = 10 * time.Minute
)

// AnalysisConfig locates the external metrics tool and the directories the pipeline writes to.
// Relative paths are resolved against ProjectRoot.
type AnalysisConfig struct {
	// ProjectRoot defaults to the working directory.
	ProjectRoot string `env:"PROJECT_ROOT"`

	// MetricsDir holds the tool script. Defaults to <root>/chromeext_metrics.
	MetricsDir string `env:"METRICS_DIR"`
	ScriptName string `env:"SCRIPT_NAME" envDefault:"understandMetrics.py"`

	// ToolExecutable is the interpreter; a bare name is looked up on PATH.
	ToolExecutable string `env:"TOOL_EXECUTABLE" envDefault:"upython"`
	// ToolHome is the SciTools installation directory. Optional.
	ToolHome string `env:"TOOL_HOME"`
	// ToolPlatform names the bin subdirectory under ToolHome. Defaults from GOOS.
	ToolPlatform string `env:"TOOL_PLATFORM"`

	OutputDir string `env:"OUTPUT_DIR"`
	ReposDir  string `env:"REPOS_DIR"`

	// SSHKeyPath authenticates git@ clones. Optional.
	SSHKeyPath     string `env:"SSH_KEY_PATH"`
	SSHKeyPassword string `env:"SSH_KEY_PASSWORD"`

	CloneDepth int `env:"CLONE_DEPTH" envDefault:"10"`
	Workers    int `env:"WORKERS"     envDefault:"4"`
	QueueSize  int `env:"QUEUE_SIZE"  envDefault:"64"`

	// Heartbeat refreshes a running job's registry entry while the tool runs. Negative disables it.
	Heartbeat time.Duration `env:"HEARTBEAT" envDefault:"1m"`
}

// Sanitize fills derived paths and clamps numeric settings.
func (a *AnalysisConfig) Sanitize() {
	a.ProjectRoot = strings.TrimSpace(a.ProjectRoot)
	if a.ProjectRoot == "" {
		if wd, err := os.Getwd(); err == nil {
			a.ProjectRoot = wd
		}
	}
	if abs, err := filepath.Abs(a.ProjectRoot); err == nil {
		a.ProjectRoot = abs
	}

	a.MetricsDir = a.resolve(a.MetricsDir, defaultMetricsDirName)
	a.OutputDir = a.resolve(a.OutputDir, defaultOutputDirName)
	a.ReposDir = a.resolve(a.ReposDir, defaultReposDirName)
	if a.ToolHome = strings.TrimSpace(a.ToolHome); a.ToolHome != "" {
		a.ToolHome = a.resolve(a.ToolHome, "")
	}

	if a.ScriptName = strings.TrimSpace(a.ScriptName); a.ScriptName == "" {
		a.ScriptName = defaultScriptName
	}
	if a.ToolExecutable = strings.TrimSpace(a.ToolExecutable); a.ToolExecutable == "" {
		a.ToolExecutable = defaultToolExecutable
	}
	if a.ToolPlatform = strings.TrimSpace(a.ToolPlatform); a.ToolPlatform == "" {
		a.ToolPlatform = DefaultToolPlatform(runtime.GOOS)
	}

	if a.CloneDepth < 1 {
		a.CloneDepth = defaultCloneDepth
	}
	if a.Workers < 1 {
		a.Workers = defaultWorkers
	}
	if a.QueueSize < 1 {
		a.QueueSize = defaultQueueSize
	}
	if a.Heartbeat > maxHeartbeat {
		a.Heartbeat = maxHeartbeat
	}
}

func (a *AnalysisConfig) resolve(p, fallback string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		p = fallback
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(a.ProjectRoot, p)
}

// DefaultToolPlatform maps a GOOS value to the SciTools bin directory name.
func DefaultToolPlatform(goos string) string {
	switch goos {
	case "windows":
		return "pc-win64"
	case "darwin":
		return "macosx"
	default:
		return "linux64"
	}
}

// CleanupConfig controls working tree removal after a job.
type CleanupConfig struct {
	// InitialDelay lets the tool release file handles before the first pass.
	InitialDelay time.Duration `env:"INITIAL_DELAY" envDefault:"3s"`
	MaxAttempts  int           `env:"MAX_ATTEMPTS"  envDefault:"5"`
	RetryDelay   time.Duration `env:"RETRY_DELAY"   envDefault:"1s"`
}

// Sanitize applies guardrails to cleanup configuration values.
func (c *CleanupConfig) Sanitize() {
	if c.InitialDelay < 0 {
		c.InitialDelay = 0
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.MaxAttempts > 20 {
		c.MaxAttempts = 20
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
}
