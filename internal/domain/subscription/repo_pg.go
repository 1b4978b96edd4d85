package subscription

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink/carelink/internal/platform/db"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func pickConn(ctx context.Context, pool *pgxpool.Pool) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

// -- Plans --

type planRepoPG struct {
	pool *pgxpool.Pool
}

// NewPlanRepo returns a Postgres-backed PlanRepository.
func NewPlanRepo(pool *pgxpool.Pool) PlanRepository {
	return &planRepoPG{pool: pool}
}

const planCols = `id, name, description, price_cents, currency, billing_period_days,
	active, created_at, updated_at`

func (r *planRepoPG) Create(ctx context.Context, p *Plan) error {
	p.ID = uuid.New()
	_, err := pickConn(ctx, r.pool).Exec(ctx, `
		INSERT INTO plan (id, name, description, price_cents, currency, billing_period_days, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		p.ID, p.Name, p.Description, p.PriceCents, p.Currency, p.BillingPeriodDays, p.Active,
	)
	return err
}

func (r *planRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Plan, error) {
	return scanPlan(pickConn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+planCols+` FROM plan WHERE id = $1`, id))
}

func (r *planRepoPG) Update(ctx context.Context, p *Plan) error {
	_, err := pickConn(ctx, r.pool).Exec(ctx, `
		UPDATE plan SET
			name=$2, description=$3, price_cents=$4, currency=$5,
			billing_period_days=$6, active=$7, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Name, p.Description, p.PriceCents, p.Currency, p.BillingPeriodDays, p.Active,
	)
	return err
}

func (r *planRepoPG) List(ctx context.Context, limit, offset int) ([]*Plan, int, error) {
	var total int
	if err := pickConn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM plan`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := pickConn(ctx, r.pool).Query(ctx,
		`SELECT `+planCols+` FROM plan ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var list []*Plan
	for rows.Next() {
		var p Plan
		err := rows.Scan(
			&p.ID, &p.Name, &p.Description, &p.PriceCents, &p.Currency, &p.BillingPeriodDays,
			&p.Active, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, &p)
	}
	return list, total, nil
}

func scanPlan(row pgx.Row) (*Plan, error) {
	var p Plan
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.PriceCents, &p.Currency, &p.BillingPeriodDays,
		&p.Active, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// -- Subscriptions --

type repoPG struct {
	pool *pgxpool.Pool
}

// NewRepo returns a Postgres-backed Repository.
func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const subCols = `id, patient_id, plan_id, status, started_at, next_billing_at,
	cancelled_at, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, s *Subscription) error {
	s.ID = uuid.New()
	_, err := pickConn(ctx, r.pool).Exec(ctx, `
		INSERT INTO subscription (id, patient_id, plan_id, status, started_at, next_billing_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		s.ID, s.PatientID, s.PlanID, s.Status, s.StartedAt, s.NextBillingAt,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	return scanSubscription(pickConn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+subCols+` FROM subscription WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, s *Subscription) error {
	_, err := pickConn(ctx, r.pool).Exec(ctx, `
		UPDATE subscription SET
			status=$2, next_billing_at=$3, cancelled_at=$4, updated_at=NOW()
		WHERE id = $1`,
		s.ID, s.Status, s.NextBillingAt, s.CancelledAt,
	)
	return err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Subscription, int, error) {
	var total int
	if err := pickConn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM subscription`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := pickConn(ctx, r.pool).Query(ctx,
		`SELECT `+subCols+` FROM subscription ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectSubscriptions(rows, total)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Subscription, int, error) {
	var total int
	if err := pickConn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM subscription WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := pickConn(ctx, r.pool).Query(ctx,
		`SELECT `+subCols+` FROM subscription WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectSubscriptions(rows, total)
}

func scanSubscription(row pgx.Row) (*Subscription, error) {
	var s Subscription
	err := row.Scan(
		&s.ID, &s.PatientID, &s.PlanID, &s.Status, &s.StartedAt, &s.NextBillingAt,
		&s.CancelledAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func collectSubscriptions(rows pgx.Rows, total int) ([]*Subscription, int, error) {
	var list []*Subscription
	for rows.Next() {
		var s Subscription
		err := rows.Scan(
			&s.ID, &s.PatientID, &s.PlanID, &s.Status, &s.StartedAt, &s.NextBillingAt,
			&s.CancelledAt, &s.CreatedAt, &s.UpdatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, &s)
	}
	return list, total, nil
}
