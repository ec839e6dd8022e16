package data

import (
	"context"
	"fmt"
	"sync"

	"github.com/target/repo-analyzer/internal/core"
	"github.com/target/repo-analyzer/internal/domain/model"
	apperrors "github.com/target/repo-analyzer/internal/errors"
)

// MemoryKeyRepo is an in-process core.KeyRepository for local runs and tests.
type MemoryKeyRepo struct {
	mu    sync.RWMutex
	keys  map[string]*model.APIKeys
	regs  map[string]model.AppRegistration
	clock TimeProvider
}

var _ core.KeyRepository = (*MemoryKeyRepo)(nil)

// NewMemoryKeyRepo creates an empty store. clock may be nil.
func NewMemoryKeyRepo(clock TimeProvider) *MemoryKeyRepo {
	if clock == nil {
		clock = RealTimeProvider{}
	}
	return &MemoryKeyRepo{
		keys:  make(map[string]*model.APIKeys),
		regs:  make(map[string]model.AppRegistration),
		clock: clock,
	}
}

func (r *MemoryKeyRepo) CreateRegistration(_ context.Context, id string) (model.AppRegistration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.regs[id]; ok {
		return model.AppRegistration{}, apperrors.Conflict("This value already exists.")
	}
	reg := model.AppRegistration{UUID: id, CreatedAt: r.clock.Now()}
	r.regs[id] = reg
	r.keys[id] = &model.APIKeys{UUID: id}
	return reg, nil
}

func (r *MemoryKeyRepo) SetKey(_ context.Context, params core.SetKeyParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k, ok := r.keys[params.UUID]
	if !ok {
		return apperrors.NotFound(ErrUUIDNotFound)
	}
	switch params.Kind {
	case model.KeyKindLLM:
		k.LLMKey = params.Key
	case model.KeyKindGitHub:
		k.GitHubKey = params.Key
	default:
		return apperrors.ValidationField("kind", fmt.Sprintf("unknown key kind %q", params.Kind))
	}
	k.UpdatedAt = r.clock.Now()
	return nil
}

func (r *MemoryKeyRepo) GetKeys(_ context.Context, id string) (model.APIKeys, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	k, ok := r.keys[id]
	if !ok {
		return model.APIKeys{}, apperrors.NotFound(ErrUUIDNotFound)
	}
	return *k, nil
}
