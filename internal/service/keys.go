package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/target/repo-analyzer/internal/core"
	"github.com/target/repo-analyzer/internal/domain/model"
	apperrors "github.com/target/repo-analyzer/internal/errors"
)

const msgUUIDNotFound = "UUID not found"

// KeyServiceOptions groups dependencies for KeyService.
type KeyServiceOptions struct {
	Repo   core.KeyRepository // Required
	Logger *slog.Logger       // Optional
	// NewID overrides registration id generation. Optional: defaults to uuid.NewString.
	NewID func() string
}

// KeyService manages app registrations and their third-party API keys.
type KeyService struct {
	repo   core.KeyRepository
	logger *slog.Logger
	newID  func() string
}

// NewKeyService constructs a KeyService.
func NewKeyService(opts KeyServiceOptions) (*KeyService, error) {
	if opts.Repo == nil {
		return nil, errors.New("key repository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &KeyService{repo: opts.Repo, logger: logger.With("component", "key_service"), newID: newID}, nil
}

// Register creates a registration under a fresh random UUID.
func (s *KeyService) Register(ctx context.Context) (model.AppRegistration, error) {
	reg, err := s.repo.CreateRegistration(ctx, s.newID())
	if err != nil {
		return model.AppRegistration{}, err
	}
	s.logger.InfoContext(ctx, "app registered", "uuid", reg.UUID)
	return reg, nil
}

// SetLLMKey stores an OpenAI-style key for a registration.
func (s *KeyService) SetLLMKey(ctx context.Context, id, key string) error {
	return s.setKey(ctx, id, model.KeyKindLLM, key)
}

// SetGitHubKey stores a GitHub token for a registration.
func (s *KeyService) SetGitHubKey(ctx context.Context, id, key string) error {
	return s.setKey(ctx, id, model.KeyKindGitHub, key)
}

func (s *KeyService) setKey(ctx context.Context, id string, kind model.KeyKind, key string) error {
	id, err := parseRegistrationID(id)
	if err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	if !kind.Validate(key) {
		return apperrors.ValidationField("key", invalidKeyMessage(kind))
	}
	if err := s.repo.SetKey(ctx, core.SetKeyParams{UUID: id, Kind: kind, Key: key}); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "api key updated", "uuid", id, "kind", kind)
	return nil
}

// GetKeys returns the stored keys for a registration.
func (s *KeyService) GetKeys(ctx context.Context, id string) (model.APIKeys, error) {
	id, err := parseRegistrationID(id)
	if err != nil {
		return model.APIKeys{}, err
	}
	return s.repo.GetKeys(ctx, id)
}

// parseRegistrationID canonicalizes id. Ids that are not UUIDs cannot have been issued, so
// they report NotFound like any other unknown registration.
func parseRegistrationID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", apperrors.ValidationField("uuid", "uuid is required")
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", apperrors.NotFound(msgUUIDNotFound)
	}
	return parsed.String(), nil
}

func invalidKeyMessage(kind model.KeyKind) string {
	if kind == model.KeyKindGitHub {
		return "Invalid GitHub API key format"
	}
	return "Invalid OpenAI API key format"
}
