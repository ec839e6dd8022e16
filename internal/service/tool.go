package service

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/target/repo-analyzer/internal/core"
)

// Environment variables extended for the metrics tool.
const (
	envPythonPath = "PYTHONPATH"
	envPath       = "PATH"
	envToolHome   = "SCITOOLS_DIR"
)

// ToolSetupError reports that the metrics tool could not be located. It aborts a job before
// any repository is acquired.
type ToolSetupError struct {
	msg string
}

func (e *ToolSetupError) Error() string { return e.msg }

// ErrorClass implements the observability Classifier.
func (e *ToolSetupError) ErrorClass() string { return "tool_setup" }

func setupErrorf(format string, args ...any) error {
	return &ToolSetupError{msg: fmt.Sprintf(format, args...)}
}

// ToolConfig locates the external metrics tool.
type ToolConfig struct {
	ProjectRoot string
	MetricsDir  string
	ScriptName  string
	Executable  string
	// Home is the tool installation directory. Optional.
	Home string
	// Platform names the bin subdirectory under Home.
	Platform string
	// Getenv reads the parent environment. Optional: defaults to os.Getenv.
	Getenv func(string) string
}

// ToolInvocation is a resolved tool: everything but the repository path.
type ToolInvocation struct {
	Executable string
	Script     string
	Dir        string
	Env        []string
}

// Command returns the invocation for one working tree.
func (t ToolInvocation) Command(treePath string) core.Command {
	return core.Command{
		Path: t.Executable,
		Args: []string{t.Script, treePath},
		Dir:  t.Dir,
		Env:  append([]string(nil), t.Env...),
	}
}

// Resolve validates the configured directories and builds the invocation. Errors are
// *ToolSetupError.
func (c ToolConfig) Resolve(logger *slog.Logger) (ToolInvocation, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !isDir(c.ProjectRoot) {
		return ToolInvocation{}, setupErrorf("Current working directory is invalid: %s", c.ProjectRoot)
	}
	if !isDir(c.MetricsDir) {
		return ToolInvocation{}, setupErrorf("Metrics directory not found at expected location: %s", c.MetricsDir)
	}

	script := filepath.Join(c.MetricsDir, c.ScriptName)
	if _, err := os.Stat(script); err != nil {
		logger.Error("tool script not found in metrics directory", "script", script)
		return ToolInvocation{}, setupErrorf("Cannot locate %s script.", c.ScriptName)
	}

	return ToolInvocation{
		Executable: c.executable(logger),
		Script:     script,
		Dir:        c.workingDir(logger),
		Env:        c.environment(),
	}, nil
}

func (c ToolConfig) executable(logger *slog.Logger) string {
	exe := c.Executable
	if filepath.IsAbs(exe) {
		if _, err := os.Stat(exe); err != nil {
			logger.Warn("tool executable not found at configured path", "executable", exe)
		}
		return exe
	}
	if _, err := exec.LookPath(exe); err != nil {
		logger.Warn("tool executable not found at configured path, relying on PATH", "executable", exe)
	}
	return exe
}

func (c ToolConfig) workingDir(logger *slog.Logger) string {
	if c.Home != "" && isDir(c.Home) {
		return c.Home
	}
	if c.Home != "" {
		logger.Warn("configured tool home does not exist, falling back to project root",
			"tool_home", c.Home,
			"project_root", c.ProjectRoot,
		)
	}
	return c.ProjectRoot
}

// environment returns the KEY=VALUE overrides layered on the parent environment. Search paths
// are extended, never replaced.
func (c ToolConfig) environment() []string {
	getenv := c.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	env := []string{envPythonPath + "=" + appendPathList(getenv(envPythonPath), c.MetricsDir)}
	if c.Home != "" {
		bin := filepath.Join(c.Home, "bin", c.Platform)
		env = append(env,
			envToolHome+"="+c.Home,
			envPath+"="+appendPathList(getenv(envPath), bin),
		)
	}
	return env
}

// appendPathList adds entry to a path list unless it is already present.
func appendPathList(list, entry string) string {
	if list == "" {
		return entry
	}
	for _, p := range filepath.SplitList(list) {
		if p == entry {
			return list
		}
	}
	return strings.TrimRight(list, string(os.PathListSeparator)) + string(os.PathListSeparator) + entry
}

func isDir(p string) bool {
	if p == "" {
		return false
	}
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}
