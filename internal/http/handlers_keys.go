package httpx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/target/repo-analyzer/internal/domain/model"
)

// KeyAPI is the slice of service.KeyService the handlers use.
type KeyAPI interface {
	Register(ctx context.Context) (model.AppRegistration, error)
	SetLLMKey(ctx context.Context, id, key string) error
	SetGitHubKey(ctx context.Context, id, key string) error
	GetKeys(ctx context.Context, id string) (model.APIKeys, error)
}

// KeyHandlers provides HTTP handlers for app registration and API key storage.
type KeyHandlers struct {
	Svc    KeyAPI
	Logger *slog.Logger
}

// keyRequest accepts parameters from the query string, a form body or a JSON body.
type keyRequest struct {
	UUID      string `json:"uuid"`
	LLMKey    string `json:"llmKey"`
	GitHubKey string `json:"githubKey"`
}

type registerResponse struct {
	UUID string `json:"uuid"`
}

type keysResponse struct {
	GitHubAPIKey    string `json:"githubApiKey"`
	OpenAILLMAPIKey string `json:"openaiLlmApiKey"`
}

// Register issues a new app registration id.
func (h *KeyHandlers) Register(w http.ResponseWriter, r *http.Request) {
	reg, err := h.Svc.Register(r.Context())
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, registerResponse{UUID: reg.UUID})
}

// AddLLMKey stores the OpenAI key for a registration.
func (h *KeyHandlers) AddLLMKey(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeKeyRequest(w, r)
	if !ok {
		return
	}
	if err := h.Svc.SetLLMKey(r.Context(), req.UUID, req.LLMKey); err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, messageResponse{Message: "LLM key updated successfully"})
}

// AddGitHubKey stores the GitHub token for a registration.
func (h *KeyHandlers) AddGitHubKey(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeKeyRequest(w, r)
	if !ok {
		return
	}
	if err := h.Svc.SetGitHubKey(r.Context(), req.UUID, req.GitHubKey); err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, messageResponse{Message: "GitHub key updated successfully"})
}

// GetKeys returns the stored keys; unset keys are empty strings.
func (h *KeyHandlers) GetKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.Svc.GetKeys(r.Context(), r.URL.Query().Get("uuid"))
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, keysResponse{GitHubAPIKey: keys.GitHubKey, OpenAILLMAPIKey: keys.LLMKey})
}

func decodeKeyRequest(w http.ResponseWriter, r *http.Request) (keyRequest, bool) {
	var req keyRequest
	if !DecodeRequest(w, r, &req) {
		return keyRequest{}, false
	}
	req.UUID = firstNonEmpty(req.UUID, r.Form.Get("uuid"))
	req.LLMKey = firstNonEmpty(req.LLMKey, r.Form.Get("llmKey"))
	req.GitHubKey = firstNonEmpty(req.GitHubKey, r.Form.Get("githubKey"))
	return req, true
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
