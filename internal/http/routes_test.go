package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/repo-analyzer/internal/data"
	"github.com/target/repo-analyzer/internal/domain/model"
	apperrors "github.com/target/repo-analyzer/internal/errors"
	"github.com/target/repo-analyzer/internal/service"
)

const repoURL = "https://github.com/acme/widget"

type stubAnalysis struct {
	submitErr error
	jobs      map[string]model.Job
	submitted []string
}

func (s *stubAnalysis) Submit(_ context.Context, u string) (service.Submission, error) {
	if s.submitErr != nil {
		return service.Submission{}, s.submitErr
	}
	if strings.TrimSpace(u) == "" {
		return service.Submission{}, apperrors.ValidationField("repoUrl", "Repository URL is required")
	}
	s.submitted = append(s.submitted, u)
	return service.Submission{ID: model.JobIDFromURL(u), RepoURL: u}, nil
}

func (s *stubAnalysis) Status(_ context.Context, u string) (model.Job, error) {
	if strings.TrimSpace(u) == "" {
		return model.Job{}, apperrors.ValidationField("repoUrl", "repoUrl is required")
	}
	if job, ok := s.jobs[u]; ok {
		return job, nil
	}
	return model.PendingJob(model.JobIDFromURL(u)), nil
}

type stubVerifier struct {
	token string
}

func (v stubVerifier) Verify(_ context.Context, raw string) (model.Principal, error) {
	if raw != v.token {
		return model.Principal{}, errors.New("token rejected")
	}
	return model.Principal{Subject: "z001234"}, nil
}

type routerFixture struct {
	analysis *stubAnalysis
	store    *data.FileArtifactStore
	keys     *service.KeyService
	handler  http.Handler
}

func newRouterFixture(t *testing.T, verifier TokenVerifier) *routerFixture {
	t.Helper()
	store, err := data.NewFileArtifactStore(filepath.Join(t.TempDir(), "output"))
	require.NoError(t, err)
	artifacts, err := service.NewArtifactService(service.ArtifactServiceOptions{Store: store})
	require.NoError(t, err)
	keys, err := service.NewKeyService(service.KeyServiceOptions{Repo: data.NewMemoryKeyRepo(nil)})
	require.NoError(t, err)

	f := &routerFixture{analysis: &stubAnalysis{jobs: map[string]model.Job{}}, store: store, keys: keys}
	f.handler = NewRouter(RouterServices{
		Analysis:  f.analysis,
		Artifacts: artifacts,
		Keys:      keys,
		Verifier:  verifier,
	})
	return f
}

func (f *routerFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestRouter_Health(t *testing.T) {
	f := newRouterFixture(t, nil)

	for _, path := range []string{"/api", "/api/"} {
		rec := f.do(httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "API is running", decodeBody(t, rec)["message"])
	}

	rec := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, healthResponse, rec.Body.String())
}

func TestRouter_Analyze(t *testing.T) {
	formReq := func() *http.Request {
		form := url.Values{"repoUrl": {repoURL}}
		req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req
	}

	tests := []struct {
		name string
		req  func() *http.Request
	}{
		{
			name: "json body",
			req:  func() *http.Request { return postJSON("/api/analyze", `{"repoUrl":"`+repoURL+`"}`) },
		},
		{
			name: "json body with charset",
			req: func() *http.Request {
				req := postJSON("/api/analyze", `{"repoUrl":"`+repoURL+`"}`)
				req.Header.Set("Content-Type", "application/json; charset=utf-8")
				return req
			},
		},
		{
			name: "json body with extra fields",
			req: func() *http.Request {
				return postJSON("/api/analyze", `{"repoUrl":"`+repoURL+`","branch":"main","source":"extension"}`)
			},
		},
		{
			name: "form body",
			req:  formReq,
		},
		{
			name: "query string",
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/analyze?repoUrl="+url.QueryEscape(repoURL), nil)
			},
		},
		{
			name: "query string fills an empty json body",
			req: func() *http.Request {
				return postJSON("/api/analyze?repoUrl="+url.QueryEscape(repoURL), `{}`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRouterFixture(t, nil)

			rec := f.do(tt.req())
			require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

			body := decodeBody(t, rec)
			assert.Equal(t, "github.com_acme_widget", body["id"])
			assert.Equal(t,
				"Analysis started for: "+repoURL+". Check status using ID: github.com_acme_widget",
				body["message"])
			assert.Equal(t, []string{repoURL}, f.analysis.submitted)
		})
	}
}

func TestRouter_AnalyzeErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		submitErr  error
		wantStatus int
		wantError  string
	}{
		{
			name:       "malformed body",
			body:       `{"repoUrl":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing repoUrl",
			body:       `{"url":"x"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Repository URL is required",
		},
		{
			name:       "validation",
			body:       `{"repoUrl":"/tmp/local"}`,
			submitErr:  apperrors.ValidationField("repoUrl", "Analysis currently only supports Git URLs, not local paths."),
			wantStatus: http.StatusBadRequest,
			wantError:  "Analysis currently only supports Git URLs, not local paths.",
		},
		{
			name:       "already running",
			body:       `{"repoUrl":"` + repoURL + `"}`,
			submitErr:  apperrors.Conflictf("Analysis already running for: %s", repoURL),
			wantStatus: http.StatusConflict,
			wantError:  "Analysis already running for: " + repoURL,
		},
		{
			name:       "queue full",
			body:       `{"repoUrl":"` + repoURL + `"}`,
			submitErr:  apperrors.Wrap(service.ErrQueueFull, apperrors.ErrCodeUnavailable, "analysis queue unavailable"),
			wantStatus: http.StatusServiceUnavailable,
			wantError:  "analysis queue unavailable",
		},
		{
			name:       "unexpected error hides cause",
			body:       `{"repoUrl":"` + repoURL + `"}`,
			submitErr:  errors.New("redis: connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRouterFixture(t, nil)
			f.analysis.submitErr = tt.submitErr

			rec := f.do(postJSON("/api/analyze", tt.body))
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, decodeBody(t, rec)["error"])
			}
		})
	}
}

func TestRouter_Status(t *testing.T) {
	f := newRouterFixture(t, nil)
	f.analysis.jobs[repoURL] = model.Job{
		ID:          "github.com_acme_widget",
		Status:      model.JobStatusCompleted,
		Message:     "Analysis completed successfully.",
		Progress:    100,
		OutputFiles: []string{"widget_previous.json", "widget_latest.json"},
	}

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/status?repoUrl="+url.QueryEscape(repoURL), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "COMPLETED", body["status"])
	assert.InDelta(t, 100, body["progress"], 0)
	assert.Equal(t, []any{"widget_previous.json", "widget_latest.json"}, body["outputFiles"])

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/status?repoUrl="+url.QueryEscape("https://gitlab.com/x/y"), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, "PENDING", body["status"])
	assert.Equal(t, []any{}, body["outputFiles"])

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/status?check=true", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Backend service is available", decodeBody(t, rec)["message"])

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_Results(t *testing.T) {
	f := newRouterFixture(t, nil)
	require.NoError(t, f.store.Save(context.Background(), "widget_latest.json",
		[]byte(`{"summary":{"loc":42},"files":[{"name":"a.js"}]}`)))

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/results/widget_latest.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"summary":{"loc":42},"files":[{"name":"a.js"}]}`, rec.Body.String())

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/results/widget_latest.json?query="+url.QueryEscape("summary.loc"), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `42`, rec.Body.String())

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/results/widget_latest.json?query="+url.QueryEscape("files[?"), nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/results/widget_previous.json", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/results/..%5Csecret.json", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_KeyLifecycle(t *testing.T) {
	f := newRouterFixture(t, nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/register-app", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	id, _ := decodeBody(t, rec)["uuid"].(string)
	require.NotEmpty(t, id)

	// Query string parameters, as the extension sends them.
	rec = f.do(httptest.NewRequest(http.MethodPost,
		"/api/add-llm-key?uuid="+id+"&llmKey=sk-abcdefghijklmnopqrstuvwxyz", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "LLM key updated successfully", decodeBody(t, rec)["message"])

	// Form body.
	form := url.Values{"uuid": {id}, "githubKey": {"ghp_0123456789"}}
	req := httptest.NewRequest(http.MethodPost, "/api/add-github-key", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = f.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "GitHub key updated successfully", decodeBody(t, rec)["message"])

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/get-keys?uuid="+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"githubApiKey":"ghp_0123456789","openaiLlmApiKey":"sk-abcdefghijklmnopqrstuvwxyz"}`,
		rec.Body.String())
}

func TestRouter_KeyErrors(t *testing.T) {
	f := newRouterFixture(t, nil)
	reg, err := f.keys.Register(context.Background())
	require.NoError(t, err)

	rec := f.do(postJSON("/api/add-github-key", `{"uuid":"`+reg.UUID+`","githubKey":"not-a-token"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid GitHub API key format", decodeBody(t, rec)["error"])

	rec = f.do(postJSON("/api/add-llm-key", `{"uuid":"`+reg.UUID+`","llmKey":"sk-short"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid OpenAI API key format", decodeBody(t, rec)["error"])

	rec = f.do(postJSON("/api/add-llm-key", `{"uuid":"2b4e5c4e-8f61-4f1a-9a55-4c1a0c6b0d11","llmKey":"sk-abcdefghijklmnopqrstuvwxyz"}`))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "UUID not found", decodeBody(t, rec)["error"])

	rec = f.do(postJSON("/api/add-llm-key", `{"uuid":`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/get-keys?uuid=nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "UUID not found", decodeBody(t, rec)["error"])

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/get-keys", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_BearerProtectsKeyRoutes(t *testing.T) {
	f := newRouterFixture(t, stubVerifier{token: "good"})

	rec := f.do(httptest.NewRequest(http.MethodGet, "/register-app", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")

	req := httptest.NewRequest(http.MethodGet, "/register-app", nil)
	req.Header.Set("Authorization", "Bearer bad")
	rec = f.do(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_token", decodeBody(t, rec)["code"])

	req = httptest.NewRequest(http.MethodGet, "/register-app", nil)
	req.Header.Set("Authorization", "bearer good")
	rec = f.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Analysis routes stay open.
	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/status?check=true", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_CORS(t *testing.T) {
	f := newRouterFixture(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/analyze", nil)
	req.Header.Set("Origin", "chrome-extension://abc")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := f.do(req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api", nil))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
