// Package httpx provides the HTTP handlers and middleware for the repository analysis API.
package httpx

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/target/repo-analyzer/internal/domain/model"
	"github.com/target/repo-analyzer/internal/service"
)

// AnalysisAPI is the slice of service.AnalysisService the handlers use.
type AnalysisAPI interface {
	Submit(ctx context.Context, repoURL string) (service.Submission, error)
	Status(ctx context.Context, repoURL string) (model.Job, error)
}

// ArtifactAPI serves stored analysis artifacts.
type ArtifactAPI interface {
	Query(ctx context.Context, name, expr string) ([]byte, error)
}

// AnalysisHandlers provides HTTP handlers for submitting analyses and reading their results.
type AnalysisHandlers struct {
	Svc       AnalysisAPI
	Artifacts ArtifactAPI
	Logger    *slog.Logger
}

type analyzeRequest struct {
	RepoURL string `json:"repoUrl"`
}

type analyzeResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Analyze queues an analysis and answers 202 without waiting for it. repoUrl comes from a JSON
// body, a form body, or the query string, in that order.
func (h *AnalysisHandlers) Analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !DecodeRequest(w, r, &req) {
		return
	}
	req.RepoURL = firstNonEmpty(req.RepoURL, r.Form.Get("repoUrl"))

	sub, err := h.Svc.Submit(r.Context(), req.RepoURL)
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, analyzeResponse{
		Message: fmt.Sprintf("Analysis started for: %s. Check status using ID: %s", sub.RepoURL, sub.ID),
		ID:      sub.ID,
	})
}

// Status reports the job for ?repoUrl=. With ?check=true it only confirms the service is up.
func (h *AnalysisHandlers) Status(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if check, _ := strconv.ParseBool(q.Get("check")); check {
		WriteJSON(w, http.StatusOK, messageResponse{Message: "Backend service is available"})
		return
	}

	job, err := h.Svc.Status(r.Context(), q.Get("repoUrl"))
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	if job.OutputFiles == nil {
		job.OutputFiles = []string{}
	}
	WriteJSON(w, http.StatusOK, job)
}

// Result serves an artifact by file name, projected through ?query= when given.
func (h *AnalysisHandlers) Result(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")
	body, err := h.Artifacts.Query(r.Context(), name, strings.TrimSpace(r.URL.Query().Get("query")))
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	writeRawJSON(w, http.StatusOK, body)
}
