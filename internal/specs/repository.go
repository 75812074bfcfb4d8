package specs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-trade/meridian/internal/fx"
	"github.com/meridian-trade/meridian/internal/shared"
)

// PgRepository provides PostgreSQL backed persistence for specifications and
// deals. Milestone lists live in jsonb columns.
type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) CreateSpecification(ctx context.Context, spec *Specification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO specifications (id, quote_id, number, currency, total_excl_vat, total_incl_vat, total_profit, status, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		spec.ID, spec.QuoteID, spec.Number, string(spec.Currency),
		spec.TotalExclVAT, spec.TotalInclVAT, spec.TotalProfit,
		string(spec.Status), spec.CreatedBy, spec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("specs: create specification: %w", err)
	}
	return nil
}

func (r *PgRepository) GetSpecification(ctx context.Context, id uuid.UUID) (*Specification, error) {
	return r.scanSpecification(ctx, `WHERE id = $1`, id)
}

func (r *PgRepository) SpecificationByQuote(ctx context.Context, quoteID uuid.UUID) (*Specification, error) {
	return r.scanSpecification(ctx, `WHERE quote_id = $1`, quoteID)
}

func (r *PgRepository) scanSpecification(ctx context.Context, where string, arg any) (*Specification, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, quote_id, number, currency, total_excl_vat, total_incl_vat, total_profit, status, created_by, created_at, signed_at
		FROM specifications `+where, arg)

	var spec Specification
	var currency, status string
	err := row.Scan(
		&spec.ID, &spec.QuoteID, &spec.Number, &currency,
		&spec.TotalExclVAT, &spec.TotalInclVAT, &spec.TotalProfit,
		&status, &spec.CreatedBy, &spec.CreatedAt, &spec.SignedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("specs: get specification: %w", err)
	}
	spec.Currency, spec.Status = fx.Currency(currency), SpecStatus(status)
	return &spec, nil
}

func (r *PgRepository) UpdateSpecification(ctx context.Context, spec *Specification) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE specifications SET status = $2, signed_at = $3 WHERE id = $1`,
		spec.ID, string(spec.Status), spec.SignedAt,
	)
	if err != nil {
		return fmt.Errorf("specs: update specification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *PgRepository) CreateDeal(ctx context.Context, deal *Deal) error {
	payments, logistics, err := marshalMilestones(deal)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO deals (id, specification_id, quote_id, number, currency, payments, logistics, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		deal.ID, deal.SpecificationID, deal.QuoteID, deal.Number, string(deal.Currency),
		payments, logistics, string(deal.Status), deal.CreatedAt, deal.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("specs: create deal: %w", err)
	}
	return nil
}

func (r *PgRepository) GetDeal(ctx context.Context, id uuid.UUID) (*Deal, error) {
	return r.scanDeal(ctx, `WHERE id = $1`, id)
}

func (r *PgRepository) DealBySpecification(ctx context.Context, specID uuid.UUID) (*Deal, error) {
	return r.scanDeal(ctx, `WHERE specification_id = $1`, specID)
}

func (r *PgRepository) scanDeal(ctx context.Context, where string, arg any) (*Deal, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, specification_id, quote_id, number, currency, payments, logistics, status, created_at, updated_at
		FROM deals `+where, arg)

	var deal Deal
	var currency, status string
	var payments, logistics []byte
	err := row.Scan(
		&deal.ID, &deal.SpecificationID, &deal.QuoteID, &deal.Number, &currency,
		&payments, &logistics, &status, &deal.CreatedAt, &deal.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("specs: get deal: %w", err)
	}
	deal.Currency, deal.Status = fx.Currency(currency), DealStatus(status)
	if err := json.Unmarshal(payments, &deal.Payments); err != nil {
		return nil, fmt.Errorf("specs: decode payments: %w", err)
	}
	if err := json.Unmarshal(logistics, &deal.Logistics); err != nil {
		return nil, fmt.Errorf("specs: decode logistics: %w", err)
	}
	return &deal, nil
}

func (r *PgRepository) UpdateDeal(ctx context.Context, deal *Deal) error {
	payments, logistics, err := marshalMilestones(deal)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE deals SET payments = $2, logistics = $3, status = $4, updated_at = $5 WHERE id = $1`,
		deal.ID, payments, logistics, string(deal.Status), deal.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("specs: update deal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func marshalMilestones(deal *Deal) ([]byte, []byte, error) {
	payments, err := json.Marshal(deal.Payments)
	if err != nil {
		return nil, nil, fmt.Errorf("specs: marshal payments: %w", err)
	}
	logistics, err := json.Marshal(deal.Logistics)
	if err != nil {
		return nil, nil, fmt.Errorf("specs: marshal logistics: %w", err)
	}
	return payments, logistics, nil
}
