package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/target/repo-analyzer/internal/core"
	"github.com/target/repo-analyzer/internal/data"
	apperrors "github.com/target/repo-analyzer/internal/errors"
)

// ArtifactServiceOptions groups dependencies for ArtifactService.
type ArtifactServiceOptions struct {
	Store  core.ArtifactStore // Required
	Logger *slog.Logger       // Optional
}

// ArtifactService serves stored analysis artifacts, optionally projected with a JMESPath
// expression.
type ArtifactService struct {
	store  core.ArtifactStore
	logger *slog.Logger
}

// NewArtifactService constructs an ArtifactService.
func NewArtifactService(opts ArtifactServiceOptions) (*ArtifactService, error) {
	if opts.Store == nil {
		return nil, errors.New("artifact store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ArtifactService{store: opts.Store, logger: logger.With("component", "artifact_service")}, nil
}

// Get returns the raw artifact bytes. The name is checked before the store is consulted.
func (s *ArtifactService) Get(ctx context.Context, name string) ([]byte, error) {
	if err := data.ValidateArtifactName(name); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid artifact name")
	}
	b, err := s.store.Read(ctx, name)
	if err != nil {
		return nil, s.mapReadError(ctx, name, err)
	}
	return b, nil
}

// Query evaluates expr against the artifact document and returns the JSON-encoded result.
// A blank expression returns the artifact unchanged.
func (s *ArtifactService) Query(ctx context.Context, name, expr string) ([]byte, error) {
	expr = strings.TrimSpace(expr)
	if expr != "" {
		// Compile first so a bad expression never costs a read.
		if _, err := jmespath.Compile(expr); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid query")
		}
	}

	raw, err := s.Get(ctx, name)
	if err != nil || expr == "" {
		return raw, err
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "artifact is not valid JSON")
	}
	result, err := jmespath.Search(expr, doc)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "query failed")
	}
	out, err := json.Marshal(result)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "encode query result")
	}
	return out, nil
}

func (s *ArtifactService) mapReadError(ctx context.Context, name string, err error) error {
	switch {
	case errors.Is(err, data.ErrInvalidArtifactName):
		return apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid artifact name")
	case errors.Is(err, data.ErrArtifactOutsideDir):
		s.logger.WarnContext(ctx, "artifact request resolved outside output directory", "artifact", name)
		return apperrors.Wrap(err, apperrors.ErrCodeForbidden, "access denied")
	case errors.Is(err, data.ErrArtifactNotFound):
		return apperrors.Wrapf(err, apperrors.ErrCodeNotFound, "artifact %s not found", name)
	default:
		s.logger.ErrorContext(ctx, "failed to read artifact", "artifact", name, "error", err)
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "read artifact")
	}
}
