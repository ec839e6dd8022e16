package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/target/repo-analyzer/internal/domain/model"
)

// TokenVerifier validates a raw bearer token and returns the caller it identifies.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (model.Principal, error)
}

// RequireBearer returns a middleware that rejects requests without a valid bearer token with
// 401. The verified principal is stored in the request context.
func RequireBearer(verifier TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				unauthorized(w, "authentication_required", "authentication required")
				return
			}

			p, err := verifier.Verify(r.Context(), raw)
			if err != nil {
				logger.WarnContext(r.Context(), "bearer token rejected", "path", r.URL.Path, "error", err)
				unauthorized(w, "invalid_token", "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(SetPrincipalInContext(r.Context(), p)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter, code, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="repoanalyzer"`)
	WriteError(w, ErrorParams{Code: http.StatusUnauthorized, ErrCode: code, Err: errors.New(msg)})
}
