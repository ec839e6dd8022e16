// Package model defines the core data types and structures used throughout the repository analysis system.
package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// JobStatus represents the current status of an analysis job.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobStatus string

const (
	// JobStatusPending indicates no analysis has been submitted for the repository yet.
	JobStatusPending JobStatus = "PENDING"
	// JobStatusRunning indicates the analysis pipeline is in flight.
	JobStatusRunning JobStatus = "RUNNING"
	// JobStatusCompleted indicates at least one commit analysis produced an artifact.
	JobStatusCompleted JobStatus = "COMPLETED"
	// JobStatusFailed indicates the pipeline aborted or both commit analyses failed.
	JobStatusFailed JobStatus = "FAILED"
)

// JobTypeRepoAnalysis is the job type tag used for lifecycle metrics.
const JobTypeRepoAnalysis = "repo_analysis"

// Progress checkpoints reported by the analysis pipeline.
const (
	ProgressStarted        = 5
	ProgressAcquired       = 25
	ProgressPreviousStart  = 40
	ProgressPreviousFinish = 55
	ProgressLatestStart    = 65
	ProgressLatestFinish   = 85
	ProgressDone           = 100
)

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusPending || s == JobStatusRunning || s == JobStatusCompleted ||
		s == JobStatusFailed
}

// Terminal reports whether no further transitions are expected from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// UnmarshalText implements encoding.TextUnmarshaler and accepts any letter case.
func (s *JobStatus) UnmarshalText(text []byte) error {
	v := JobStatus(strings.ToUpper(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid JobStatus: %q", string(text))
	}
	*s = v
	return nil
}

// Job is the tracked state of one repository analysis request.
type Job struct {
	ID          string    `json:"id"`
	RepoURL     string    `json:"repoUrl,omitempty"`
	Status      JobStatus `json:"status"`
	Message     string    `json:"message"`
	Progress    int       `json:"progress"`
	OutputFiles []string  `json:"outputFiles"`
	CreatedAt   time.Time `json:"createdAt,omitzero"`
	UpdatedAt   time.Time `json:"updatedAt,omitzero"`
	// RunID identifies the pipeline run that owns a Running entry. It is cleared once the run
	// is finalized, by the pipeline or by the reaper.
	RunID string `json:"runId,omitempty"`
}

// ErrRunSuperseded is returned by registry writes scoped to a run that no longer owns the entry.
var ErrRunSuperseded = errors.New("job run superseded")

// OwnedBy reports whether a write scoped to runID may modify j. An empty runID is unscoped.
func (j *Job) OwnedBy(runID string) bool {
	return runID == "" || j.RunID == runID
}

// PendingJob returns the synthetic entry reported for jobs that were never submitted.
func PendingJob(id string) Job {
	return Job{
		ID:          id,
		Status:      JobStatusPending,
		Message:     "No analysis has been started for this repository.",
		OutputFiles: []string{},
	}
}

// Clone returns a deep copy of j so callers can mutate it without touching shared state.
func (j Job) Clone() Job {
	out := j
	out.OutputFiles = append([]string(nil), j.OutputFiles...)
	if out.OutputFiles == nil {
		out.OutputFiles = []string{}
	}
	return out
}

// JobUpdate describes a status/message write against a registry entry.
type JobUpdate struct {
	Status  JobStatus
	Message string
	RunID   string // Optional: skip the write unless this run owns the entry
}

// ApplyUpdate merges u into j following the sticky-failure rule: once j is Failed, only
// another Failed update may change status or message. It reports whether j changed.
func ApplyUpdate(j *Job, u JobUpdate) bool {
	if j.Status == JobStatusFailed && u.Status != JobStatusFailed {
		return false
	}
	j.Status = u.Status
	j.Message = u.Message
	return true
}

// JobResult is the single finalization write that replaces an entry wholesale.
type JobResult struct {
	Status      JobStatus
	Message     string
	OutputFiles []string
	RunID       string // Optional: refuse the write unless this run owns the entry
}

// StaleRunning reports whether j is a Running entry whose last write predates cutoff.
func (j *Job) StaleRunning(cutoff time.Time) bool {
	return j.Status == JobStatusRunning && !j.UpdatedAt.IsZero() && j.UpdatedAt.Before(cutoff)
}

// Expired reports whether j is a terminal entry whose last write predates cutoff.
func (j *Job) Expired(cutoff time.Time) bool {
	return j.Status.Terminal() && !j.UpdatedAt.IsZero() && j.UpdatedAt.Before(cutoff)
}

var (
	schemePrefix = regexp.MustCompile(`^https?://`)
	unsafeIDRune = regexp.MustCompile(`[^a-zA-Z0-9.-]`)
)

// JobIDFromURL derives the deterministic registry key for a repository URL.
// The http(s) scheme is stripped and every character outside [a-zA-Z0-9.-] becomes '_'.
func JobIDFromURL(repoURL string) string {
	id := schemePrefix.ReplaceAllString(repoURL, "")
	return unsafeIDRune.ReplaceAllString(id, "_")
}

// SupportedRepoURL reports whether raw is an http(s) or git@ repository URL. Local paths and
// other schemes are rejected.
func SupportedRepoURL(raw string) bool {
	return strings.HasPrefix(raw, "http://") ||
		strings.HasPrefix(raw, "https://") ||
		strings.HasPrefix(raw, "git@")
}

// ArtifactRole identifies which commit of the pair an artifact describes.
type ArtifactRole string

const (
	// ArtifactRolePrevious is the first parent of the head commit.
	ArtifactRolePrevious ArtifactRole = "previous"
	// ArtifactRoleLatest is the resolved head commit.
	ArtifactRoleLatest ArtifactRole = "latest"
)

// Suffix returns the file-name suffix for the role, e.g. "_latest".
func (r ArtifactRole) Suffix() string { return "_" + string(r) }

// ArtifactName builds the artifact file name for a repository base name and role.
func ArtifactName(repoBase string, role ArtifactRole) string {
	return repoBase + role.Suffix() + ".json"
}

// ShortCommit abbreviates a commit id to seven characters for messages.
func ShortCommit(id string) string {
	if len(id) <= 7 {
		return id
	}
	return id[:7]
}

// StartJob is the registration written when a submission is accepted.
type StartJob struct {
	ID       string
	RunID    string
	RepoURL  string
	Message  string
	Progress int
}
