// Package metrics emits the analysis job metrics.
package metrics

import (
	"net/url"
	"strings"
	"time"

	giturls "github.com/whilp/git-urls"
	"golang.org/x/net/publicsuffix"

	obserrors "github.com/target/repo-analyzer/internal/observability/errors"
	"github.com/target/repo-analyzer/internal/observability/statsd"
)

// Result tag values.
const (
	ResultSuccess = "success"
	ResultPartial = "partial"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// Transition tag values.
const (
	TransitionStarted  = "started"
	TransitionRejected = "rejected"
	TransitionFinished = "finished"
)

// JobMetric describes one job lifecycle event.
type JobMetric struct {
	JobType    string
	Transition string
	Result     string
	RepoURL    string
	Duration   time.Duration
	Err        error
}

// EmitJobLifecycle emits job.transition and, when Duration is set, job.duration.
func EmitJobLifecycle(sink statsd.Sink, in JobMetric) {
	if sink == nil {
		return
	}
	tags := map[string]string{
		"job_type":   in.JobType,
		"transition": in.Transition,
		"result":     in.Result,
	}
	if host := RepoHostTag(in.RepoURL); host != "" {
		tags["repo_host"] = host
	}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("job.transition", 1, tags)
	if in.Duration > 0 {
		sink.Timing("job.duration", in.Duration, CloneTags(tags))
	}
}

// CommitMetric describes the outcome of analysing one commit.
type CommitMetric struct {
	Role     string
	Result   string
	Duration time.Duration
	Err      error
}

// EmitCommitAnalysis emits analysis.commit and analysis.commit_duration.
func EmitCommitAnalysis(sink statsd.Sink, in CommitMetric) {
	if sink == nil {
		return
	}
	tags := map[string]string{"role": in.Role, "result": in.Result}
	if in.Err != nil {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}
	sink.Count("analysis.commit", 1, tags)
	if in.Duration > 0 {
		sink.Timing("analysis.commit_duration", in.Duration, CloneTags(tags))
	}
}

// RepoHostTag reduces a repository URL to its registrable domain ("github.com",
// "gitlab.example.co.uk" → "example.co.uk") so the tag stays low-cardinality. Unparseable
// input yields "".
func RepoHostTag(repoURL string) string {
	repoURL = strings.TrimSpace(repoURL)
	if repoURL == "" {
		return ""
	}
	u, err := giturls.Parse(repoURL)
	if err != nil || u.Hostname() == "" {
		u, err = url.Parse(repoURL)
		if err != nil || u.Hostname() == "" {
			return ""
		}
	}
	host := strings.ToLower(u.Hostname())
	if domain, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return domain
	}
	return host
}

// CloneTags copies tags, dropping blank keys.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		if k != "" {
			out[k] = v
		}
	}
	return out
}
