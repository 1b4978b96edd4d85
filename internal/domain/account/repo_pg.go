package account

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink/carelink/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

// NewRepo returns a Postgres-backed Repository.
func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const uniqueViolation = "23505"

const accountCols = `id, email, password_hash, display_name, phone, role, status,
	otp_hash, otp_expires_at,
	two_factor_enabled, two_factor_secret, pending_two_factor_secret,
	last_login_at, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, a *Account) error {
	a.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO account (
			id, email, password_hash, display_name, phone, role, status,
			otp_hash, otp_expires_at,
			two_factor_enabled, two_factor_secret, pending_two_factor_secret
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		a.ID, a.Email, a.PasswordHash, a.DisplayName, a.Phone, a.Role, a.Status,
		a.OTPHash, a.OTPExpiresAt,
		a.TwoFactorEnabled, a.TwoFactorSecret, a.PendingTwoFactorSecret,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return scanAccount(r.conn(ctx).QueryRow(ctx,
		`SELECT `+accountCols+` FROM account WHERE id = $1`, id))
}

func (r *repoPG) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return scanAccount(r.conn(ctx).QueryRow(ctx,
		`SELECT `+accountCols+` FROM account WHERE email = $1`, email))
}

func (r *repoPG) Update(ctx context.Context, a *Account) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE account SET
			email=$2, display_name=$3, phone=$4, role=$5, status=$6, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.Email, a.DisplayName, a.Phone, a.Role, a.Status,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrEmailTaken
		}
	}
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM account WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Account, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM account`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+accountCols+` FROM account ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		a, err := scanAccountRow(rows)
		if err != nil {
			return nil, 0, err
		}
		accounts = append(accounts, a)
	}
	return accounts, total, nil
}

func (r *repoPG) SetOTP(ctx context.Context, id uuid.UUID, hash string, expiresAt *time.Time) error {
	return r.exec1(ctx, `
		UPDATE account SET otp_hash=$2, otp_expires_at=$3, updated_at=NOW()
		WHERE id = $1`, id, hash, expiresAt)
}

func (r *repoPG) SetTwoFactor(ctx context.Context, id uuid.UUID, enabled bool, secret, pending string) error {
	return r.exec1(ctx, `
		UPDATE account SET
			two_factor_enabled=$2, two_factor_secret=$3, pending_two_factor_secret=$4,
			updated_at=NOW()
		WHERE id = $1`, id, enabled, secret, pending)
}

func (r *repoPG) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	return r.exec1(ctx, `
		UPDATE account SET status=$2, updated_at=NOW() WHERE id = $1`, id, status)
}

func (r *repoPG) SetRole(ctx context.Context, id uuid.UUID, role string) error {
	return r.exec1(ctx, `
		UPDATE account SET role=$2, updated_at=NOW() WHERE id = $1`, id, role)
}

func (r *repoPG) SetLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.exec1(ctx, `
		UPDATE account SET last_login_at=$2, updated_at=NOW() WHERE id = $1`, id, at)
}

// exec1 runs a single-row UPDATE and maps zero affected rows to ErrNotFound.
func (r *repoPG) exec1(ctx context.Context, sql string, args ...interface{}) error {
	tag, err := r.conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(
		&a.ID, &a.Email, &a.PasswordHash, &a.DisplayName, &a.Phone, &a.Role, &a.Status,
		&a.OTPHash, &a.OTPExpiresAt,
		&a.TwoFactorEnabled, &a.TwoFactorSecret, &a.PendingTwoFactorSecret,
		&a.LastLoginAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func scanAccountRow(rows pgx.Rows) (*Account, error) {
	var a Account
	err := rows.Scan(
		&a.ID, &a.Email, &a.PasswordHash, &a.DisplayName, &a.Phone, &a.Role, &a.Status,
		&a.OTPHash, &a.OTPExpiresAt,
		&a.TwoFactorEnabled, &a.TwoFactorSecret, &a.PendingTwoFactorSecret,
		&a.LastLoginAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
