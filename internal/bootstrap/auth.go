package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/target/repo-analyzer/config"
	"github.com/target/repo-analyzer/internal/adapters/oidc"
)

// AuthConfig contains configuration for the bearer token verifier.
type AuthConfig struct {
	Auth   config.AuthConfig
	Logger *slog.Logger
}

// BuildVerifier discovers the OIDC issuer and returns a verifier for the key endpoints.
// It returns nil, nil when no issuer is configured so the endpoints stay open.
func BuildVerifier(ctx context.Context, cfg AuthConfig) (*oidc.Verifier, error) {
	if !cfg.Auth.Enabled() {
		if cfg.Logger != nil {
			cfg.Logger.WarnContext(ctx, "OIDC issuer not configured; key endpoints are unauthenticated")
		}
		return nil, nil
	}

	v, err := oidc.NewVerifier(ctx, oidc.VerifierConfig{
		Issuer:            cfg.Auth.Issuer,
		ClientID:          cfg.Auth.ClientID,
		SkipClientIDCheck: cfg.Auth.SkipClientIDCheck,
	})
	if err != nil {
		return nil, fmt.Errorf("build oidc verifier: %w", err)
	}

	if cfg.Logger != nil {
		cfg.Logger.InfoContext(ctx, "bearer authentication enabled",
			"issuer", cfg.Auth.Issuer,
			"skip_client_id_check", cfg.Auth.SkipClientIDCheck,
		)
	}
	return v, nil
}
