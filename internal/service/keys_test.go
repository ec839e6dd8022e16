package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/repo-analyzer/internal/core"
	"github.com/target/repo-analyzer/internal/data"
	"github.com/target/repo-analyzer/internal/domain/model"
	apperrors "github.com/target/repo-analyzer/internal/errors"
	"github.com/target/repo-analyzer/internal/mocks"
)

const testAppID = "0b6c3c3e-7f43-4d5c-9a53-2a8f0f1d9e11"

func newKeyService(t *testing.T, repo core.KeyRepository) *KeyService {
	t.Helper()
	svc, err := NewKeyService(KeyServiceOptions{Repo: repo})
	require.NoError(t, err)
	return svc
}

func TestKeyService_RoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := newKeyService(t, data.NewMemoryKeyRepo(nil))

	reg, err := svc.Register(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, reg.UUID)

	require.NoError(t, svc.SetLLMKey(ctx, reg.UUID, "sk-abcdefghijklmnopqrstuv"))
	require.NoError(t, svc.SetGitHubKey(ctx, reg.UUID, "ghp_token"))

	keys, err := svc.GetKeys(ctx, reg.UUID)
	require.NoError(t, err)
	assert.Equal(t, "sk-abcdefghijklmnopqrstuv", keys.LLMKey)
	assert.Equal(t, "ghp_token", keys.GitHubKey)

	// Writing one slot leaves the other alone.
	require.NoError(t, svc.SetGitHubKey(ctx, reg.UUID, "0123456789abcdefABCDEF0123456789abcdefAB"))
	keys, err = svc.GetKeys(ctx, reg.UUID)
	require.NoError(t, err)
	assert.Equal(t, "sk-abcdefghijklmnopqrstuv", keys.LLMKey)
	assert.Equal(t, "0123456789abcdefABCDEF0123456789abcdefAB", keys.GitHubKey)
}

func TestKeyService_Register_UsesGenerator(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockKeyRepository(ctrl)
	repo.EXPECT().CreateRegistration(gomock.Any(), testAppID).Return(model.AppRegistration{UUID: testAppID}, nil)

	svc, err := NewKeyService(KeyServiceOptions{Repo: repo, NewID: func() string { return testAppID }})
	require.NoError(t, err)

	reg, err := svc.Register(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testAppID, reg.UUID)
}

func TestKeyService_SetKeyValidation(t *testing.T) {
	tests := []struct {
		name    string
		set     func(*KeyService) error
		wantMsg string
	}{
		{
			name:    "short llm key",
			set:     func(s *KeyService) error { return s.SetLLMKey(context.Background(), testAppID, "sk-short") },
			wantMsg: "Invalid OpenAI API key format",
		},
		{
			name:    "llm key without prefix",
			set:     func(s *KeyService) error { return s.SetLLMKey(context.Background(), testAppID, "pk-abcdefghijklmnopqrstuv") },
			wantMsg: "Invalid OpenAI API key format",
		},
		{
			name:    "github key of wrong length",
			set:     func(s *KeyService) error { return s.SetGitHubKey(context.Background(), testAppID, "abc123") },
			wantMsg: "Invalid GitHub API key format",
		},
		{
			name:    "blank github key",
			set:     func(s *KeyService) error { return s.SetGitHubKey(context.Background(), testAppID, "   ") },
			wantMsg: "Invalid GitHub API key format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// The repository must not be touched for malformed keys.
			ctrl := gomock.NewController(t)
			svc := newKeyService(t, mocks.NewMockKeyRepository(ctrl))

			err := tt.set(svc)
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestKeyService_UnknownRegistration(t *testing.T) {
	ctx := context.Background()
	svc := newKeyService(t, data.NewMemoryKeyRepo(nil))

	err := svc.SetLLMKey(ctx, testAppID, "sk-abcdefghijklmnopqrstuv")
	assert.True(t, apperrors.IsNotFound(err))
	assert.Contains(t, err.Error(), "UUID not found")

	_, err = svc.GetKeys(ctx, "not-a-uuid")
	assert.True(t, apperrors.IsNotFound(err))

	_, err = svc.GetKeys(ctx, " ")
	assert.True(t, apperrors.IsValidation(err))
}

func TestKeyService_CanonicalizesID(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockKeyRepository(ctrl)
	repo.EXPECT().SetKey(gomock.Any(), core.SetKeyParams{
		UUID: testAppID,
		Kind: model.KeyKindGitHub,
		Key:  "ghp_x",
	}).Return(nil)

	svc := newKeyService(t, repo)
	require.NoError(t, svc.SetGitHubKey(context.Background(), " 0B6C3C3E-7F43-4D5C-9A53-2A8F0F1D9E11 ", " ghp_x "))
}

func TestNewKeyService_RequiresRepo(t *testing.T) {
	_, err := NewKeyService(KeyServiceOptions{})
	require.Error(t, err)
}
