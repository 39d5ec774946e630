package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the Postgres error code for unique-constraint breaches.
const uniqueViolation = "23505"

// Postgres is a pgx-backed AccountStore.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to databaseURL and pings it.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// Close releases the underlying pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// EnsureSchema creates the accounts table if it does not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS accounts (
			id UUID PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			salt BYTEA NOT NULL,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			primary_location_id TEXT NOT NULL DEFAULT '',
			birth_date TIMESTAMPTZ,
			refresh_token TEXT NOT NULL DEFAULT '',
			refresh_token_valid_to TIMESTAMPTZ,
			banned_until TIMESTAMPTZ,
			registered_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`CREATE INDEX IF NOT EXISTS accounts_banned_until_idx ON accounts(banned_until)`,
	}

	for _, query := range queries {
		if _, err := p.pool.Exec(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

const accountColumns = `
	id, username, password_hash, salt,
	first_name, last_name, primary_location_id, birth_date,
	refresh_token, refresh_token_valid_to, banned_until, registered_at
`

func scanAccount(row pgx.Row) (*Account, error) {
	var (
		account            Account
		birthDate          *time.Time
		refreshTokenValidTo *time.Time
	)
	err := row.Scan(
		&account.ID,
		&account.Username,
		&account.PasswordHash,
		&account.Salt,
		&account.Profile.FirstName,
		&account.Profile.LastName,
		&account.Profile.PrimaryLocationID,
		&birthDate,
		&account.RefreshToken,
		&refreshTokenValidTo,
		&account.BannedUntil,
		&account.RegisteredAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	if birthDate != nil {
		account.Profile.BirthDate = *birthDate
	}
	if refreshTokenValidTo != nil {
		account.RefreshTokenValidTo = *refreshTokenValidTo
	}
	return &account, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (p *Postgres) CreateAccount(ctx context.Context, account *Account) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	if account.RegisteredAt.IsZero() {
		account.RegisteredAt = time.Now().UTC()
	}

	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := p.pool.Exec(ctx, query,
		account.ID,
		account.Username,
		account.PasswordHash,
		account.Salt,
		account.Profile.FirstName,
		account.Profile.LastName,
		account.Profile.PrimaryLocationID,
		nullableTime(account.Profile.BirthDate),
		account.RefreshToken,
		nullableTime(account.RefreshTokenValidTo),
		account.BannedUntil,
		account.RegisteredAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateUsername
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (p *Postgres) FindByUsername(ctx context.Context, username string) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE username = $1`
	return scanAccount(p.pool.QueryRow(ctx, query, username))
}

func (p *Postgres) FindByID(ctx context.Context, id string) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(p.pool.QueryRow(ctx, query, id))
}

func (p *Postgres) UpdateAccount(ctx context.Context, account *Account) error {
	query := `
		UPDATE accounts SET
			password_hash = $2,
			salt = $3,
			first_name = $4,
			last_name = $5,
			primary_location_id = $6,
			birth_date = $7,
			refresh_token = $8,
			refresh_token_valid_to = $9,
			banned_until = $10
		WHERE id = $1
	`
	tag, err := p.pool.Exec(ctx, query,
		account.ID,
		account.PasswordHash,
		account.Salt,
		account.Profile.FirstName,
		account.Profile.LastName,
		account.Profile.PrimaryLocationID,
		nullableTime(account.Profile.BirthDate),
		account.RefreshToken,
		nullableTime(account.RefreshTokenValidTo),
		account.BannedUntil,
	)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE username = $1)`, username,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return exists, nil
}

func (p *Postgres) ListAccounts(ctx context.Context, filter Filter) ([]Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts`
	args := []any{}
	if filter.BannedOnly {
		query += ` WHERE banned_until IS NOT NULL AND banned_until > NOW()`
	}
	query += ` ORDER BY registered_at`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	return accounts, rows.Err()
}

func (p *Postgres) GetRefreshToken(ctx context.Context, username string) (string, time.Time, error) {
	var (
		token   string
		validTo *time.Time
	)
	err := p.pool.QueryRow(ctx,
		`SELECT refresh_token, refresh_token_valid_to FROM accounts WHERE username = $1`, username,
	).Scan(&token, &validTo)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", time.Time{}, ErrNotFound
		}
		return "", time.Time{}, fmt.Errorf("get refresh token: %w", err)
	}
	if validTo == nil {
		return token, time.Time{}, nil
	}
	return token, *validTo, nil
}

func (p *Postgres) SetRefreshToken(ctx context.Context, username, token string, validTo time.Time) error {
	var expiry *time.Time
	if token != "" {
		expiry = &validTo
	}
	tag, err := p.pool.Exec(ctx, `
		UPDATE accounts
		SET refresh_token = $2, refresh_token_valid_to = $3
		WHERE username = $1
	`, username, token, expiry)
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) GetPasswordSalt(ctx context.Context, username string) ([]byte, error) {
	var salt []byte
	err := p.pool.QueryRow(ctx,
		`SELECT salt FROM accounts WHERE username = $1`, username,
	).Scan(&salt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get password salt: %w", err)
	}
	return salt, nil
}

func (p *Postgres) GetBanExpiry(ctx context.Context, id string) (*time.Time, error) {
	var until *time.Time
	err := p.pool.QueryRow(ctx,
		`SELECT banned_until FROM accounts WHERE id = $1`, id,
	).Scan(&until)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get ban expiry: %w", err)
	}
	return until, nil
}

func (p *Postgres) SetBanExpiry(ctx context.Context, id string, until *time.Time) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE accounts SET banned_until = $2 WHERE id = $1`, id, until,
	)
	if err != nil {
		return fmt.Errorf("set ban expiry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
