package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/heartline/vault/internal/common"
	"github.com/heartline/vault/internal/dbx"
	"github.com/heartline/vault/internal/storage/migrations"
)

const pgUniqueViolation = "23505"

// Postgres is the production Gateway, backed by PostgreSQL through the pgx
// stdlib driver. Migrations are embedded and applied on construction.
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens the DSN and runs pending migrations.
func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	p := &Postgres{db: db}

	if err := p.RunMigrations(context.Background()); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return p, nil
}

// NewPostgresFromDB wraps an existing handle without running migrations.
// Used by tests.
func NewPostgresFromDB(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.UpContext(ctx, p.db, "."); err != nil {
		return err
	}

	return nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

// persistErr wraps a driver failure into the shared persistence sentinel.
func persistErr(err error) error {
	return fmt.Errorf("%w: %v", common.ErrPersistence, err)
}

func (p *Postgres) CreateUser(ctx context.Context, user *UserRow) error {
	query :=
		`INSERT INTO users (id, username, password_salt, password_hash, hash_iterations, kdf_salt, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 `

	_, err := p.db.ExecContext(ctx, query,
		user.ID, user.Username, user.PasswordSalt, user.PasswordHash,
		user.HashIterations, user.KDFSalt, user.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return common.ErrDuplicateUser
		}
		return persistErr(err)
	}

	return nil
}

func (p *Postgres) getUser(ctx context.Context, where string, arg any) (*UserRow, error) {
	query :=
		`SELECT id, username, password_salt, password_hash, hash_iterations, kdf_salt, created_at
		 FROM users WHERE ` + where

	user := &UserRow{}
	err := p.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Username, &user.PasswordSalt, &user.PasswordHash,
		&user.HashIterations, &user.KDFSalt, &user.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, persistErr(err)
	}

	return user, nil
}

func (p *Postgres) GetUser(ctx context.Context, username string) (*UserRow, error) {
	return p.getUser(ctx, "username = $1", username)
}

func (p *Postgres) GetUserByID(ctx context.Context, id string) (*UserRow, error) {
	return p.getUser(ctx, "id = $1", id)
}

func (p *Postgres) GetRecord(ctx context.Context, userID, fieldName string) (*RecordRow, error) {
	query :=
		`SELECT user_id, field_name, nonce, ciphertext, auth_tag, updated_at
		 FROM encrypted_records
		 WHERE user_id = $1 AND field_name = $2
		 `

	record := &RecordRow{}
	err := p.db.QueryRowContext(ctx, query, userID, fieldName).Scan(
		&record.UserID, &record.FieldName, &record.Nonce, &record.Ciphertext,
		&record.AuthTag, &record.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, persistErr(err)
	}

	return record, nil
}

func putRecord(ctx context.Context, db dbx.DBTX, record *RecordRow) error {
	query :=
		`INSERT INTO encrypted_records (user_id, field_name, nonce, ciphertext, auth_tag, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id, field_name)
		 DO UPDATE SET nonce = EXCLUDED.nonce, ciphertext = EXCLUDED.ciphertext,
		               auth_tag = EXCLUDED.auth_tag, updated_at = EXCLUDED.updated_at
		 `

	_, err := db.ExecContext(ctx, query,
		record.UserID, record.FieldName, record.Nonce, record.Ciphertext,
		record.AuthTag, record.UpdatedAt)
	return err
}

func (p *Postgres) PutRecord(ctx context.Context, record *RecordRow) error {
	if err := putRecord(ctx, p.db, record); err != nil {
		return persistErr(err)
	}
	return nil
}

func (p *Postgres) DeleteRecord(ctx context.Context, userID, fieldName string) error {
	query := `DELETE FROM encrypted_records WHERE user_id = $1 AND field_name = $2`

	if _, err := p.db.ExecContext(ctx, query, userID, fieldName); err != nil {
		return persistErr(err)
	}
	return nil
}

func (p *Postgres) ListRecords(ctx context.Context, userID string) ([]*RecordRow, error) {
	query :=
		`SELECT user_id, field_name, nonce, ciphertext, auth_tag, updated_at
		 FROM encrypted_records
		 WHERE user_id = $1
		 `

	rows, err := p.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, persistErr(err)
	}
	defer rows.Close()

	var out []*RecordRow
	for rows.Next() {
		record := &RecordRow{}
		if err := rows.Scan(&record.UserID, &record.FieldName, &record.Nonce,
			&record.Ciphertext, &record.AuthTag, &record.UpdatedAt); err != nil {
			return nil, persistErr(err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr(err)
	}

	return out, nil
}

func (p *Postgres) GetToken(ctx context.Context, tokenID string) (*TokenRow, error) {
	query :=
		`SELECT id, user_id, wrap_nonce, wrapped_key, wrap_tag, generation, issued_at, expires_at
		 FROM session_tokens
		 WHERE id = $1
		 `

	token := &TokenRow{}
	err := p.db.QueryRowContext(ctx, query, tokenID).Scan(
		&token.ID, &token.UserID, &token.WrapNonce, &token.WrappedKey,
		&token.WrapTag, &token.Generation, &token.IssuedAt, &token.ExpiresAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, persistErr(err)
	}

	return token, nil
}

func (p *Postgres) PutToken(ctx context.Context, token *TokenRow) error {
	query :=
		`INSERT INTO session_tokens (id, user_id, wrap_nonce, wrapped_key, wrap_tag, generation, issued_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 `

	_, err := p.db.ExecContext(ctx, query,
		token.ID, token.UserID, token.WrapNonce, token.WrappedKey,
		token.WrapTag, token.Generation, token.IssuedAt, token.ExpiresAt)

	if err != nil {
		return persistErr(err)
	}
	return nil
}

func (p *Postgres) DeleteToken(ctx context.Context, tokenID string) error {
	if _, err := p.db.ExecContext(ctx,
		`DELETE FROM session_tokens WHERE id = $1`, tokenID); err != nil {
		return persistErr(err)
	}
	return nil
}

func (p *Postgres) DeleteUserTokens(ctx context.Context, userID string) error {
	if _, err := p.db.ExecContext(ctx,
		`DELETE FROM session_tokens WHERE user_id = $1`, userID); err != nil {
		return persistErr(err)
	}
	return nil
}

// SwapTokenGeneration is a single conditional UPDATE, so the row transition
// is linearized by the database: of two concurrent swaps carrying the same
// expectedGen, the second one matches zero rows.
func (p *Postgres) SwapTokenGeneration(ctx context.Context, tokenID string, expectedGen int64, updated *TokenRow) error {
	query :=
		`UPDATE session_tokens
		 SET wrap_nonce = $1, wrapped_key = $2, wrap_tag = $3, generation = $4,
		     issued_at = $5, expires_at = $6
		 WHERE id = $7 AND generation = $8
		 `

	res, err := p.db.ExecContext(ctx, query,
		updated.WrapNonce, updated.WrappedKey, updated.WrapTag, updated.Generation,
		updated.IssuedAt, updated.ExpiresAt, tokenID, expectedGen)
	if err != nil {
		return persistErr(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return persistErr(err)
	}
	if n == 0 {
		return common.ErrNotFound
	}

	return nil
}

func (p *Postgres) RevokeToken(ctx context.Context, tokenID string) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE session_tokens SET generation = $1 WHERE id = $2`,
		RevokedGeneration, tokenID)
	if err != nil {
		return persistErr(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return persistErr(err)
	}
	if n == 0 {
		return common.ErrNotFound
	}

	return nil
}

func (p *Postgres) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM session_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, persistErr(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, persistErr(err)
	}
	return n, nil
}

// ReplaceUserKeys swaps the account's salts and hash together with the full
// re-encrypted record set in one transaction.
func (p *Postgres) ReplaceUserKeys(ctx context.Context, user *UserRow, records []*RecordRow) error {
	err := dbx.WithTx(ctx, p.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE users
			 SET password_salt = $1, password_hash = $2, hash_iterations = $3, kdf_salt = $4
			 WHERE id = $5`,
			user.PasswordSalt, user.PasswordHash, user.HashIterations, user.KDFSalt, user.ID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return common.ErrNotFound
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM encrypted_records WHERE user_id = $1`, user.ID); err != nil {
			return err
		}

		for _, record := range records {
			if err := putRecord(ctx, tx, record); err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrNotFound
		}
		return persistErr(err)
	}
	return nil
}
