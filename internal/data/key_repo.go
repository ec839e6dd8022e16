package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/target/repo-analyzer/internal/core"
	"github.com/target/repo-analyzer/internal/data/cryptoutil"
	"github.com/target/repo-analyzer/internal/data/pgxutil"
	"github.com/target/repo-analyzer/internal/domain/model"
	apperrors "github.com/target/repo-analyzer/internal/errors"
)

// ErrUUIDNotFound is the message used for every lookup of an unregistered app.
const ErrUUIDNotFound = "UUID not found"

// KeyRepo stores app registrations and their sealed API keys in Postgres.
type KeyRepo struct {
	DB  *sql.DB
	Enc cryptoutil.Encryptor
}

var _ core.KeyRepository = (*KeyRepo)(nil)

// NewKeyRepo creates a KeyRepo. A nil encryptor stores keys with the noop marker.
func NewKeyRepo(db *sql.DB, enc cryptoutil.Encryptor) *KeyRepo {
	if enc == nil {
		enc = cryptoutil.NoopEncryptor{}
	}
	return &KeyRepo{DB: db, Enc: enc}
}

// CreateRegistration inserts a new registration row.
func (r *KeyRepo) CreateRegistration(ctx context.Context, id string) (model.AppRegistration, error) {
	var reg model.AppRegistration
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx,
			`INSERT INTO app_registrations (uuid) VALUES ($1) RETURNING uuid::text, created_at`, id,
		).Scan(&reg.UUID, &reg.CreatedAt)
	})
	if err != nil {
		return model.AppRegistration{}, apperrors.MapDBError(err)
	}
	return reg, nil
}

// SetKey seals and upserts one key slot, leaving the other slot untouched.
func (r *KeyRepo) SetKey(ctx context.Context, params core.SetKeyParams) error {
	query, err := setKeyQuery(params.Kind)
	if err != nil {
		return err
	}
	sealed, err := r.Enc.Seal(params.Key)
	if err != nil {
		return fmt.Errorf("seal %s key: %w", params.Kind, err)
	}

	_, err = r.DB.ExecContext(ctx, query, params.UUID, sealed)
	if err != nil {
		mapped := apperrors.MapDBError(err)
		if apperrors.IsForeignKey(mapped) {
			return apperrors.Wrap(err, apperrors.ErrCodeNotFound, ErrUUIDNotFound)
		}
		return mapped
	}
	return nil
}

func setKeyQuery(kind model.KeyKind) (string, error) {
	switch kind {
	case model.KeyKindLLM:
		return `INSERT INTO api_keys (uuid, llm_key, updated_at) VALUES ($1, $2, now())
			ON CONFLICT (uuid) DO UPDATE SET llm_key = EXCLUDED.llm_key, updated_at = now()`, nil
	case model.KeyKindGitHub:
		return `INSERT INTO api_keys (uuid, github_key, updated_at) VALUES ($1, $2, now())
			ON CONFLICT (uuid) DO UPDATE SET github_key = EXCLUDED.github_key, updated_at = now()`, nil
	}
	return "", apperrors.ValidationField("kind", fmt.Sprintf("unknown key kind %q", kind))
}

// GetKeys returns the opened keys for a registration; slots never written are empty.
func (r *KeyRepo) GetKeys(ctx context.Context, id string) (model.APIKeys, error) {
	var (
		keys      model.APIKeys
		llm, gh   string
		updatedAt *time.Time
	)
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx, `
			SELECT r.uuid::text, COALESCE(k.llm_key, ''), COALESCE(k.github_key, ''), k.updated_at
			FROM app_registrations r
			LEFT JOIN api_keys k ON k.uuid = r.uuid
			WHERE r.uuid = $1`, id,
		).Scan(&keys.UUID, &llm, &gh, &updatedAt)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return model.APIKeys{}, apperrors.NotFound(ErrUUIDNotFound)
	}
	if err != nil {
		return model.APIKeys{}, apperrors.MapDBError(err)
	}

	if keys.LLMKey, err = r.Enc.Open(llm); err != nil {
		return model.APIKeys{}, fmt.Errorf("open llm key: %w", err)
	}
	if keys.GitHubKey, err = r.Enc.Open(gh); err != nil {
		return model.APIKeys{}, fmt.Errorf("open github key: %w", err)
	}
	if updatedAt != nil {
		keys.UpdatedAt = *updatedAt
	}
	return keys, nil
}

// Health pings the database.
func (r *KeyRepo) Health(ctx context.Context) error {
	return r.DB.PingContext(ctx)
}
