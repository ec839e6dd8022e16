// Package procrunner runs external tools as subprocesses and captures their output.
package procrunner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/target/repo-analyzer/internal/core"
	"golang.org/x/sync/errgroup"
)

// maxLoggedStderr bounds how much stderr is copied into a single log record.
const maxLoggedStderr = 4096

// Options configures a Runner.
type Options struct {
	Logger *slog.Logger // Optional: defaults to slog.Default()
}

// Runner implements core.ProcessRunner on top of os/exec.
type Runner struct {
	logger *slog.Logger
}

var _ core.ProcessRunner = (*Runner)(nil)

// New constructs a Runner.
func New(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{logger: logger.With("component", "process_runner")}
}

// Run starts cmd and drains stdout and stderr on independent goroutines until both reach EOF,
// then waits for the process. A non-zero exit code is returned in the result with a nil error.
func (r *Runner) Run(ctx context.Context, cmd core.Command) (core.ProcessResult, error) {
	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = MergeEnv(os.Environ(), cmd.Env)

	stdout, err := c.StdoutPipe()
	if err != nil {
		return core.ProcessResult{}, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := c.StderrPipe()
	if err != nil {
		return core.ProcessResult{}, fmt.Errorf("stderr pipe: %w", err)
	}

	r.logger.DebugContext(ctx, "starting process",
		"command", cmd.Path+" "+strings.Join(cmd.Args, " "),
		"dir", cmd.Dir,
	)
	if err := c.Start(); err != nil {
		return core.ProcessResult{}, fmt.Errorf("start %s: %w", cmd.Path, err)
	}

	var outBuf, errBuf bytes.Buffer
	var g errgroup.Group
	g.Go(func() error {
		_, copyErr := io.Copy(&outBuf, stdout)
		return copyErr
	})
	g.Go(func() error {
		_, copyErr := io.Copy(&errBuf, stderr)
		return copyErr
	})
	drainErr := g.Wait()

	// Wait closes the pipes, so it runs only after both readers are done.
	waitErr := c.Wait()

	res := core.ProcessResult{
		ExitCode: 0,
		Stdout:   outBuf.String(),
		Stderr:   errBuf.String(),
	}
	if drainErr != nil {
		r.logger.WarnContext(ctx, "incomplete process output", "error", drainErr)
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return res, fmt.Errorf("wait %s: %w", cmd.Path, waitErr)
		}
		res.ExitCode = exitErr.ExitCode()
	}

	if res.ExitCode != 0 {
		r.logger.ErrorContext(ctx, "process failed",
			"exit_code", res.ExitCode,
			"stderr", truncate(res.Stderr, maxLoggedStderr),
		)
		r.logger.WarnContext(ctx, "process error classified",
			"classification", ClassifyStderr(res.Stderr),
		)
	}
	return res, nil
}

// MergeEnv layers KEY=VALUE overrides onto base. Overridden keys keep their position; new keys
// are appended in order.
func MergeEnv(base, overrides []string) []string {
	if len(overrides) == 0 {
		return base
	}
	out := make([]string, 0, len(base)+len(overrides))
	index := make(map[string]int, len(base))
	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		if i, ok := index[k]; ok {
			out[i] = kv
			continue
		}
		index[k] = len(out)
		out = append(out, kv)
	}
	for _, kv := range overrides {
		k, _, _ := strings.Cut(kv, "=")
		if i, ok := index[k]; ok {
			out[i] = kv
			continue
		}
		index[k] = len(out)
		out = append(out, kv)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}
