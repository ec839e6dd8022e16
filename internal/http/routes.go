package httpx

import (
	"log/slog"
	"net/http"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Analysis  AnalysisAPI
	Artifacts ArtifactAPI
	Keys      KeyAPI
	// Optional: when set, the registration and key endpoints require a bearer token.
	Verifier TokenVerifier
	Logger   *slog.Logger // Optional
}

// NewRouter creates and configures the API router. Cross-cutting middleware (recover,
// logging, compression) is applied by the caller.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "http")

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))
	mux.HandleFunc("GET /api", apiRootHandler)
	mux.HandleFunc("GET /api/{$}", apiRootHandler)

	registerAnalysisRoutes(mux, &AnalysisHandlers{
		Svc:       services.Analysis,
		Artifacts: services.Artifacts,
		Logger:    logger,
	})

	var protect func(http.Handler) http.Handler
	if services.Verifier != nil {
		protect = RequireBearer(services.Verifier, logger)
	}
	registerKeyRoutes(mux, &KeyHandlers{Svc: services.Keys, Logger: logger}, protect)

	return CORS(mux)
}

func registerAnalysisRoutes(mux *http.ServeMux, h *AnalysisHandlers) {
	mux.HandleFunc("POST /api/analyze", h.Analyze)
	mux.HandleFunc("GET /api/status", h.Status)
	mux.HandleFunc("GET /api/results/{filename}", h.Result)
}

func registerKeyRoutes(mux *http.ServeMux, h *KeyHandlers, protect func(http.Handler) http.Handler) {
	wrap := func(fn http.HandlerFunc) http.Handler {
		if protect == nil {
			return fn
		}
		return protect(fn)
	}
	mux.Handle("GET /register-app", wrap(h.Register))
	mux.Handle("POST /api/add-llm-key", wrap(h.AddLLMKey))
	mux.Handle("POST /api/add-github-key", wrap(h.AddGitHubKey))
	mux.Handle("GET /api/get-keys", wrap(h.GetKeys))
}
