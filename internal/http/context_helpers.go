package httpx

import (
	"context"

	"github.com/target/repo-analyzer/internal/domain/model"
)

// principalKey is an unexported context key type to avoid collisions across packages.
type principalKey struct{}

// SetPrincipalInContext returns a child context that carries the verified caller.
func SetPrincipalInContext(ctx context.Context, p model.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the caller established by RequireBearer, if any.
func PrincipalFromContext(ctx context.Context) (model.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(model.Principal)
	return p, ok
}
