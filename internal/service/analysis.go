package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/target/repo-analyzer/internal/core"
	"github.com/target/repo-analyzer/internal/domain/model"
	apperrors "github.com/target/repo-analyzer/internal/errors"
	"github.com/target/repo-analyzer/internal/observability/metrics"
	"github.com/target/repo-analyzer/internal/observability/notify"
	"github.com/target/repo-analyzer/internal/observability/statsd"
	"github.com/target/repo-analyzer/internal/service/failurenotifier"
)

// Status messages reported through the registry.
const (
	MsgInitializing  = "Initializing analysis..."
	MsgAnalyzing     = "Analyzing commits..."
	MsgCanceled      = "Analysis canceled before start"
	MsgQueueFull     = "Analysis rejected: too many analyses are queued. Try again later."
	MsgBothSucceeded = "Analysis completed successfully for both commits."
	MsgLatestOnly    = "Analysis completed for latest commit only. Previous commit analysis failed."
	MsgPreviousOnly  = "Analysis completed for previous commit only. Latest commit analysis failed."
	MsgBothFailed    = "Analysis failed for both commits. Could not generate metrics."
	criticalPrefix   = "Critical error: "
)

// sidecarSuffix names the database the metrics tool writes next to the working tree.
const sidecarSuffix = ".und"

// defaultHeartbeat is how often a running tool refreshes its registry entry. It must stay well
// below the registry's stale-running TTL.
const defaultHeartbeat = time.Minute

// Dispatcher queues work for background execution.
type Dispatcher interface {
	Submit(t Task) (*Handle, error)
}

// FailureNotifier receives failed jobs.
type FailureNotifier interface {
	NotifyJobFailure(ctx context.Context, payload notify.JobFailurePayload)
}

// AnalysisServiceOptions groups dependencies for AnalysisService.
type AnalysisServiceOptions struct {
	Registry  core.JobRegistry       // Required
	Gateway   core.RepositoryGateway // Required
	Runner    core.ProcessRunner     // Required
	Cleaner   core.Cleaner           // Required
	Artifacts core.ArtifactStore     // Required
	Tool      ToolConfig

	Dispatcher Dispatcher      // Optional: required by Submit
	Metrics    statsd.Sink     // Optional
	Notifier   FailureNotifier // Optional
	// Heartbeat is the Running-entry refresh interval while the tool runs. Zero means one
	// minute; negative disables it.
	Heartbeat time.Duration
	NewRunID  func() string // Optional: defaults to uuid.NewString
	Now       func() time.Time
	Logger    *slog.Logger
}

// AnalysisService orchestrates repository analysis jobs.
type AnalysisService struct {
	registry   core.JobRegistry
	gateway    core.RepositoryGateway
	runner     core.ProcessRunner
	cleaner    core.Cleaner
	artifacts  core.ArtifactStore
	tool       ToolConfig
	dispatcher Dispatcher
	metrics    statsd.Sink
	notifier   FailureNotifier
	heartbeat  time.Duration
	newRunID   func() string
	now        func() time.Time
	logger     *slog.Logger
}

// NewAnalysisService constructs an AnalysisService.
func NewAnalysisService(opts AnalysisServiceOptions) (*AnalysisService, error) {
	switch {
	case opts.Registry == nil:
		return nil, errors.New("job registry is required")
	case opts.Gateway == nil:
		return nil, errors.New("repository gateway is required")
	case opts.Runner == nil:
		return nil, errors.New("process runner is required")
	case opts.Cleaner == nil:
		return nil, errors.New("cleaner is required")
	case opts.Artifacts == nil:
		return nil, errors.New("artifact store is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	heartbeat := opts.Heartbeat
	if heartbeat == 0 {
		heartbeat = defaultHeartbeat
	}
	newRunID := opts.NewRunID
	if newRunID == nil {
		newRunID = uuid.NewString
	}
	return &AnalysisService{
		registry:   opts.Registry,
		gateway:    opts.Gateway,
		runner:     opts.Runner,
		cleaner:    opts.Cleaner,
		artifacts:  opts.Artifacts,
		tool:       opts.Tool,
		dispatcher: opts.Dispatcher,
		metrics:    opts.Metrics,
		notifier:   opts.Notifier,
		heartbeat:  heartbeat,
		newRunID:   newRunID,
		now:        now,
		logger:     logger.With("component", "analysis_service"),
	}, nil
}

// Submission acknowledges an accepted analysis request.
type Submission struct {
	ID      string
	RepoURL string
	Handle  *Handle
}

// Submit registers a Running job and queues the pipeline. It returns as soon as the job is
// queued; callers poll Status.
func (s *AnalysisService) Submit(ctx context.Context, repoURL string) (Submission, error) {
	if s.dispatcher == nil {
		return Submission{}, apperrors.Internal("analysis dispatcher is not configured")
	}
	url, err := normalizeRepoURL(repoURL)
	if err != nil {
		return Submission{}, err
	}
	run, err := s.start(ctx, url)
	if err != nil {
		return Submission{}, err
	}

	h, err := s.dispatcher.Submit(Task{
		ID:       run.ID,
		Run:      func(ctx context.Context) { s.Run(ctx, run) },
		OnCancel: func() { s.finalizeUnstarted(run, MsgCanceled, context.Canceled) },
	})
	if err != nil {
		msg := MsgQueueFull
		if errors.Is(err, ErrPoolClosed) {
			msg = MsgCanceled
		}
		s.finalizeUnstarted(run, msg, err)
		return Submission{}, apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "analysis queue unavailable")
	}
	s.logger.InfoContext(ctx, "analysis queued", "job_id", run.ID, "run_id", run.RunID, "repo_url", url)
	return Submission{ID: run.ID, RepoURL: url, Handle: h}, nil
}

// Analyze runs one job on the calling goroutine and returns the final entry.
func (s *AnalysisService) Analyze(ctx context.Context, repoURL string) (model.Job, error) {
	url, err := normalizeRepoURL(repoURL)
	if err != nil {
		return model.Job{}, err
	}
	run, err := s.start(ctx, url)
	if err != nil {
		return model.Job{}, err
	}
	s.Run(ctx, run)
	return s.registry.Get(ctx, run.ID)
}

// Status returns the job for repoURL, or a Pending entry when none was submitted.
func (s *AnalysisService) Status(ctx context.Context, repoURL string) (model.Job, error) {
	url := strings.TrimSpace(repoURL)
	if url == "" {
		return model.Job{}, apperrors.ValidationField("repoUrl", "repoUrl is required")
	}
	job, err := s.registry.Get(ctx, model.JobIDFromURL(url))
	if err != nil {
		return model.Job{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "read job status")
	}
	return job, nil
}

// start registers a new run of the job for url.
func (s *AnalysisService) start(ctx context.Context, url string) (model.StartJob, error) {
	run := model.StartJob{
		ID:       model.JobIDFromURL(url),
		RunID:    s.newRunID(),
		RepoURL:  url,
		Message:  MsgInitializing,
		Progress: model.ProgressStarted,
	}
	ok, err := s.registry.TryStart(ctx, run)
	if err != nil {
		return model.StartJob{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "register job")
	}
	if !ok {
		metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
			JobType:    model.JobTypeRepoAnalysis,
			Transition: metrics.TransitionRejected,
			Result:     metrics.ResultNoop,
			RepoURL:    url,
		})
		return model.StartJob{}, apperrors.Conflictf("Analysis already running for: %s", url)
	}
	return run, nil
}

func normalizeRepoURL(raw string) (string, error) {
	url := strings.TrimSpace(raw)
	if url == "" {
		return "", apperrors.ValidationField("repoUrl", "Repository URL is required")
	}
	if !model.SupportedRepoURL(url) {
		return "", apperrors.ValidationField("repoUrl", "Analysis currently only supports Git URLs, not local paths.")
	}
	return url, nil
}

// Run executes the pipeline for a registered run. The terminal status is written before any
// cleanup starts, so pollers never wait on file deletion. Every registry write is scoped to
// run.RunID, so a run the reaper gave up on cannot overwrite a newer entry.
func (s *AnalysisService) Run(ctx context.Context, run model.StartJob) (res model.JobResult) {
	startedAt := s.now()
	id, repoURL := run.ID, run.RepoURL
	p := &pipeline{
		svc:     s,
		id:      id,
		runID:   run.RunID,
		repoURL: repoURL,
		logger:  s.logger.With("job_id", id, "run_id", run.RunID),
		outputs: []string{},
	}
	metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
		JobType:    model.JobTypeRepoAnalysis,
		Transition: metrics.TransitionStarted,
		Result:     metrics.ResultNoop,
		RepoURL:    repoURL,
	})
	p.logger.InfoContext(ctx, "analysis started", "repo_url", repoURL)

	defer func() {
		if r := recover(); r != nil {
			p.logger.ErrorContext(ctx, "analysis pipeline panicked", "panic", r, "stack", string(debug.Stack()))
			res = p.critical(ctx, fmt.Errorf("unexpected panic: %v", r))
		}
		res.RunID = p.runID
		applied := s.finalize(ctx, id, res)
		p.release(ctx)
		s.recordOutcome(ctx, p, res, applied, s.now().Sub(startedAt))
	}()

	return p.execute(ctx)
}

// finalize writes res and reports whether the registry accepted it.
func (s *AnalysisService) finalize(ctx context.Context, id string, res model.JobResult) bool {
	err := s.registry.Finalize(ctx, id, res)
	switch {
	case err == nil:
		return true
	case errors.Is(err, model.ErrRunSuperseded):
		s.logger.WarnContext(ctx, "job entry owned by another run, result discarded",
			"job_id", id, "run_id", res.RunID, "status", res.Status)
	default:
		s.logger.ErrorContext(ctx, "failed to finalize job", "job_id", id, "status", res.Status, "error", err)
	}
	return false
}

// finalizeUnstarted closes out a run whose pipeline never ran.
func (s *AnalysisService) finalizeUnstarted(run model.StartJob, msg string, cause error) {
	ctx := context.Background()
	res := model.JobResult{Status: model.JobStatusFailed, Message: msg, OutputFiles: []string{}, RunID: run.RunID}
	applied := s.finalize(ctx, run.ID, res)
	s.logger.WarnContext(ctx, "analysis dropped before start", "job_id", run.ID, "reason", msg)
	metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
		JobType:    model.JobTypeRepoAnalysis,
		Transition: metrics.TransitionFinished,
		Result:     metrics.ResultError,
		RepoURL:    run.RepoURL,
		Err:        cause,
	})
	if applied {
		s.notifyFailure(ctx, run.ID)
	}
}

func (s *AnalysisService) recordOutcome(ctx context.Context, p *pipeline, res model.JobResult, applied bool, took time.Duration) {
	result := metrics.ResultSuccess
	switch {
	case res.Status == model.JobStatusFailed:
		result = metrics.ResultError
	case len(res.OutputFiles) < p.attempted:
		result = metrics.ResultPartial
	}
	metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
		JobType:    model.JobTypeRepoAnalysis,
		Transition: metrics.TransitionFinished,
		Result:     result,
		RepoURL:    p.repoURL,
		Duration:   took,
		Err:        p.err,
	})
	p.logger.InfoContext(ctx, "analysis finished",
		"status", res.Status,
		"message", res.Message,
		"output_files", res.OutputFiles,
		"duration", took,
		"recorded", applied,
	)
	if applied && res.Status == model.JobStatusFailed {
		s.notifyFailure(ctx, p.id)
	}
}

func (s *AnalysisService) notifyFailure(ctx context.Context, id string) {
	if s.notifier == nil {
		return
	}
	job, err := s.registry.Get(ctx, id)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load job for notification", "job_id", id, "error", err)
		return
	}
	s.notifier.NotifyJobFailure(ctx, failurenotifier.PayloadFromJob(job))
}

// pipeline holds the per-job state of one Run.
type pipeline struct {
	svc     *AnalysisService
	id      string
	runID   string
	repoURL string
	logger  *slog.Logger

	tree        core.WorkingTree
	repo        core.Repository
	cleanupOwed bool
	outputs     []string
	attempted   int
	err         error
}

// commitTarget is one entry of the ordered per-commit plan.
type commitTarget struct {
	commit        string
	role          model.ArtifactRole
	startProgress int
	endProgress   int
}

func (p *pipeline) execute(ctx context.Context) model.JobResult {
	tool, err := p.svc.tool.Resolve(p.logger)
	if err != nil {
		return p.critical(ctx, err)
	}

	tree, err := p.svc.gateway.Acquire(ctx, p.repoURL)
	if err != nil {
		return p.critical(ctx, err)
	}
	p.tree = tree
	p.cleanupOwed = true
	p.progress(ctx, model.ProgressAcquired)

	repo, err := p.svc.gateway.Open(ctx, tree.Path)
	if err != nil {
		return p.critical(ctx, err)
	}
	p.repo = repo

	head, err := repo.ResolveHead(ctx)
	if err != nil {
		return p.critical(ctx, err)
	}
	parent, hasParent, err := repo.ResolveParent(ctx, head)
	if err != nil {
		p.logger.WarnContext(ctx, "could not resolve parent commit, analyzing head only", "commit", head, "error", err)
		hasParent = false
	}

	// A missing parent counts as a succeeded previous stage.
	previousOK, latestOK := !hasParent, false

	// The targets share one working tree: they run strictly in order, never concurrently.
	for _, t := range planCommits(head, parent, hasParent) {
		p.progress(ctx, t.startProgress)
		ok := p.analyzeCommit(ctx, tool, t)
		p.progress(ctx, t.endProgress)
		switch t.role {
		case model.ArtifactRolePrevious:
			previousOK = ok
		case model.ArtifactRoleLatest:
			latestOK = ok
		}
	}

	return aggregate(previousOK, latestOK, p.outputs)
}

// planCommits orders the parent (when present) before the head.
func planCommits(head, parent string, hasParent bool) []commitTarget {
	plan := make([]commitTarget, 0, 2)
	if hasParent {
		plan = append(plan, commitTarget{
			commit:        parent,
			role:          model.ArtifactRolePrevious,
			startProgress: model.ProgressPreviousStart,
			endProgress:   model.ProgressPreviousFinish,
		})
	}
	return append(plan, commitTarget{
		commit:        head,
		role:          model.ArtifactRoleLatest,
		startProgress: model.ProgressLatestStart,
		endProgress:   model.ProgressLatestFinish,
	})
}

func aggregate(previousOK, latestOK bool, outputs []string) model.JobResult {
	res := model.JobResult{Status: model.JobStatusCompleted, OutputFiles: append([]string{}, outputs...)}
	switch {
	case previousOK && latestOK:
		res.Message = MsgBothSucceeded
	case latestOK:
		res.Message = MsgLatestOnly
	case previousOK:
		res.Message = MsgPreviousOnly
	default:
		res.Status = model.JobStatusFailed
		res.Message = MsgBothFailed
	}
	return res
}

// analyzeCommit checks out t, runs the tool and saves its output. Failures are recorded on the
// job and reported as false; they never abort the other commit.
func (p *pipeline) analyzeCommit(ctx context.Context, tool ToolInvocation, t commitTarget) bool {
	logger := p.logger.With("commit", t.commit, "role", t.role)
	started := p.svc.now()
	p.attempted++
	p.update(ctx, model.JobStatusRunning, MsgAnalyzing)

	out, err := p.runTool(ctx, tool, t.commit)
	if err != nil {
		logger.WarnContext(ctx, "commit analysis failed", "error", err)
		p.update(ctx, model.JobStatusRunning,
			fmt.Sprintf("Commit %s analysis failed: %s", model.ShortCommit(t.commit), err.Error()))
		p.emitCommit(t.role, metrics.ResultError, started, err)
		return false
	}

	name := model.ArtifactName(p.tree.RepoName, t.role)
	if err := p.svc.artifacts.Save(ctx, name, []byte(out)); err != nil {
		logger.ErrorContext(ctx, "failed to save analysis artifact", "artifact", name, "error", err)
		p.update(ctx, model.JobStatusFailed,
			"Failed to save results for commit "+model.ShortCommit(t.commit))
		p.emitCommit(t.role, metrics.ResultError, started, err)
		return false
	}

	p.outputs = append(p.outputs, name)
	logger.InfoContext(ctx, "commit analysis saved", "artifact", name, "bytes", len(out))
	p.emitCommit(t.role, metrics.ResultSuccess, started, nil)
	return true
}

func (p *pipeline) runTool(ctx context.Context, tool ToolInvocation, commit string) (string, error) {
	if err := p.repo.Checkout(ctx, commit); err != nil {
		return "", &CommitError{Commit: commit, Err: err}
	}
	stop := p.heartbeat(ctx)
	res, err := p.svc.runner.Run(ctx, tool.Command(p.tree.Path))
	stop()
	if err != nil {
		return "", &CommitError{Commit: commit, Err: err}
	}
	out := strings.TrimSpace(res.Stdout)
	if res.ExitCode != 0 {
		return "", &ScriptError{ExitCode: res.ExitCode}
	}
	if out == "" {
		return "", &ScriptError{EmptyOutput: true}
	}
	return out, nil
}

// heartbeat refreshes the Running entry until stop is called, so a long tool run is not
// mistaken for a stalled one. It gives up once another run owns the entry.
func (p *pipeline) heartbeat(ctx context.Context) (stop func()) {
	interval := p.svc.heartbeat
	if interval <= 0 || p.runID == "" {
		return func() {}
	}
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				owned, err := p.svc.registry.Touch(ctx, p.id, p.runID)
				if err != nil {
					p.logger.WarnContext(ctx, "failed to refresh job entry", "error", err)
					continue
				}
				if !owned {
					p.logger.WarnContext(ctx, "job entry no longer owned by this run")
					return
				}
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}

func (p *pipeline) critical(ctx context.Context, err error) model.JobResult {
	p.err = err
	p.logger.ErrorContext(ctx, "analysis aborted", "error", err)
	return model.JobResult{
		Status:      model.JobStatusFailed,
		Message:     criticalPrefix + err.Error(),
		OutputFiles: append([]string{}, p.outputs...),
	}
}

// release closes the repository and removes the sidecar and working tree. Errors are logged only.
func (p *pipeline) release(ctx context.Context) {
	if p.repo != nil {
		if err := p.repo.Close(); err != nil {
			p.logger.WarnContext(ctx, "failed to close repository", "error", err)
		}
	}
	if !p.cleanupOwed {
		return
	}
	if err := p.svc.cleaner.Delete(ctx, p.tree.Path+sidecarSuffix, p.tree.Path); err != nil {
		p.logger.WarnContext(ctx, "working tree cleanup incomplete", "tree", p.tree.Path, "error", err)
	}
}

func (p *pipeline) update(ctx context.Context, status model.JobStatus, msg string) {
	u := model.JobUpdate{Status: status, Message: msg, RunID: p.runID}
	if err := p.svc.registry.Update(ctx, p.id, u); err != nil {
		p.logger.WarnContext(ctx, "failed to update job status", "status", status, "error", err)
	}
}

func (p *pipeline) progress(ctx context.Context, value int) {
	if err := p.svc.registry.UpdateRunProgress(ctx, p.id, p.runID, value); err != nil {
		p.logger.WarnContext(ctx, "failed to update job progress", "progress", value, "error", err)
	}
}

func (p *pipeline) emitCommit(role model.ArtifactRole, result string, started time.Time, err error) {
	metrics.EmitCommitAnalysis(p.svc.metrics, metrics.CommitMetric{
		Role:     string(role),
		Result:   result,
		Duration: p.svc.now().Sub(started),
		Err:      err,
	})
}

// ScriptError reports a tool run that finished without usable output.
type ScriptError struct {
	ExitCode    int
	EmptyOutput bool
}

func (e *ScriptError) Error() string {
	if e.EmptyOutput {
		return "Python script returned empty output"
	}
	return fmt.Sprintf("Python script failed (exit code %d)", e.ExitCode)
}

// ErrorClass implements the observability Classifier.
func (e *ScriptError) ErrorClass() string {
	if e.EmptyOutput {
		return "script_empty_output"
	}
	return "script_exit"
}

// CommitError wraps a checkout or process failure for one commit.
type CommitError struct {
	Commit string
	Err    error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("Error processing commit %s: %v", e.Commit, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }
