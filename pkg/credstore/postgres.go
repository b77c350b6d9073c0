package credstore

import (
	"context"
	"embed"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/mfakit/pkg/pg"
	"github.com/dmitrymomot/mfakit/pkg/twofactor"
)

// PostgresMigrations holds the goose migrations for PostgresStore.
//
//go:embed migrations/*.sql
var PostgresMigrations embed.FS

// MigrationsDir is the directory inside PostgresMigrations.
const MigrationsDir = "migrations"

// DB is the part of pgxpool.Pool (or pgx.Tx) the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps one row per account in two_factor_credentials.
type PostgresStore struct {
	db DB
}

// NewPostgresStore wraps a pgx pool or transaction.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// MigratePostgres creates or upgrades the credentials table.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool, cfg pg.Config, log *slog.Logger) error {
	return pg.Migrate(ctx, pool, PostgresMigrations, MigrationsDir, cfg, log)
}

const (
	selectRecordQuery = `
		SELECT enabled, secret, backup_code_hashes, created_at, updated_at
		FROM two_factor_credentials
		WHERE account_id = $1`

	upsertRecordQuery = `
		INSERT INTO two_factor_credentials (account_id, enabled, secret, backup_code_hashes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (account_id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			secret = EXCLUDED.secret,
			backup_code_hashes = EXCLUDED.backup_code_hashes,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at`

	// The conflict branch only fires for a disabled row, so an enabled
	// record is never overwritten and the statement affects no rows.
	createRecordQuery = `
		INSERT INTO two_factor_credentials (account_id, enabled, secret, backup_code_hashes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (account_id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			secret = EXCLUDED.secret,
			backup_code_hashes = EXCLUDED.backup_code_hashes,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at
		WHERE NOT two_factor_credentials.enabled`

	deleteRecordQuery = `DELETE FROM two_factor_credentials WHERE account_id = $1`

	swapBackupCodesQuery = `
		UPDATE two_factor_credentials
		SET backup_code_hashes = $3, updated_at = NOW()
		WHERE account_id = $1 AND enabled AND backup_code_hashes = $2`
)

func (s *PostgresStore) Get(ctx context.Context, accountID string) (*twofactor.Record, error) {
	if accountID == "" {
		return nil, ErrMissingAccountID
	}

	var rec twofactor.Record
	err := s.db.QueryRow(ctx, selectRecordQuery, accountID).Scan(
		&rec.Enabled,
		&rec.Secret,
		&rec.BackupCodeHashes,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Join(ErrQueryFailed, err)
	}
	return &rec, nil
}

func (s *PostgresStore) Put(ctx context.Context, accountID string, rec twofactor.Record) error {
	if err := checkPut(accountID, rec); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx, upsertRecordQuery,
		accountID,
		rec.Enabled,
		rec.Secret,
		nonNil(rec.BackupCodeHashes),
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return errors.Join(ErrQueryFailed, err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, accountID string, rec twofactor.Record) error {
	if err := checkPut(accountID, rec); err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, createRecordQuery,
		accountID,
		rec.Enabled,
		rec.Secret,
		nonNil(rec.BackupCodeHashes),
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return errors.Join(ErrQueryFailed, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyEnabled
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context, accountID string) error {
	if accountID == "" {
		return ErrMissingAccountID
	}
	if _, err := s.db.Exec(ctx, deleteRecordQuery, accountID); err != nil {
		return errors.Join(ErrQueryFailed, err)
	}
	return nil
}

// SwapBackupCodes is a single conditional UPDATE, so concurrent swaps against
// the same expected set cannot both match.
func (s *PostgresStore) SwapBackupCodes(ctx context.Context, accountID string, expected, next []string) (bool, error) {
	if accountID == "" {
		return false, ErrMissingAccountID
	}
	tag, err := s.db.Exec(ctx, swapBackupCodesQuery, accountID, nonNil(expected), nonNil(next))
	if err != nil {
		return false, errors.Join(ErrQueryFailed, err)
	}
	return tag.RowsAffected() == 1, nil
}
