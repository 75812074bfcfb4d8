package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-trade/meridian/internal/fx"
	"github.com/meridian-trade/meridian/internal/platform/db"
	"github.com/meridian-trade/meridian/internal/quotes/calc"
	"github.com/meridian-trade/meridian/internal/shared"
	"github.com/meridian-trade/meridian/internal/workflow"
)

// Repository is the storage port for quotes.
type Repository interface {
	NextNumber(ctx context.Context) (string, error)
	Create(ctx context.Context, quote *Quote) error
	Get(ctx context.Context, id uuid.UUID) (*Quote, error)
	List(ctx context.Context, req ListQuotesRequest) ([]Quote, int, error)
	ReplaceInputs(ctx context.Context, quote *Quote) error
	SaveResults(ctx context.Context, quote *Quote, calculatedAt time.Time) error
}

// PgRepository provides PostgreSQL backed persistence for quotes and their
// product lines. Variable mappings and result snapshots live in jsonb
// columns.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository constructs a repository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// NextNumber draws the next quote number from the database sequence.
func (r *PgRepository) NextNumber(ctx context.Context) (string, error) {
	var seq int64
	if err := r.pool.QueryRow(ctx, `SELECT nextval('quote_number_seq')`).Scan(&seq); err != nil {
		return "", fmt.Errorf("quotes: next number: %w", err)
	}
	return fmt.Sprintf("Q-%s-%05d", time.Now().UTC().Format("2006"), seq), nil
}

// Create inserts a quote and its product lines in one transaction.
func (r *PgRepository) Create(ctx context.Context, quote *Quote) error {
	defaults, err := json.Marshal(quote.Defaults)
	if err != nil {
		return fmt.Errorf("quotes: marshal defaults: %w", err)
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO quotes (id, number, company_id, client_id, currency, status, defaults, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
			quote.ID, quote.Number, quote.CompanyID, quote.ClientID,
			string(quote.Currency), string(quote.Status), defaults,
			quote.CreatedBy, quote.CreatedAt)
		if err != nil {
			return fmt.Errorf("quotes: insert quote: %w", err)
		}
		return insertProducts(ctx, tx, quote)
	})
}

// Get loads a quote with its product lines.
func (r *PgRepository) Get(ctx context.Context, id uuid.UUID) (*Quote, error) {
	quote, err := scanQuote(r.pool.QueryRow(ctx, `
		SELECT id, number, company_id, client_id, currency, status, defaults, results, calculated_at, created_by, created_at, updated_at
		FROM quotes WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("quotes: get: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, quote_id, position, name, overrides, result
		FROM quote_products WHERE quote_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("quotes: load products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p Product
		var overrides, result []byte
		if err := rows.Scan(&p.ID, &p.QuoteID, &p.Position, &p.Name, &overrides, &result); err != nil {
			return nil, fmt.Errorf("quotes: scan product: %w", err)
		}
		if err := json.Unmarshal(overrides, &p.Overrides); err != nil {
			return nil, fmt.Errorf("quotes: decode overrides: %w", err)
		}
		if len(result) > 0 {
			p.Result = &calc.ProductResult{}
			if err := json.Unmarshal(result, p.Result); err != nil {
				return nil, fmt.Errorf("quotes: decode product result: %w", err)
			}
		}
		quote.Products = append(quote.Products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("quotes: load products: %w", err)
	}
	return quote, nil
}

// List returns quotes without product lines, newest first.
func (r *PgRepository) List(ctx context.Context, req ListQuotesRequest) ([]Quote, int, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}

	where := ""
	args := []any{limit, req.Offset}
	if req.Status != nil {
		where = "WHERE status = $3"
		args = append(args, *req.Status)
	}

	var total int
	countArgs := args[2:]
	countWhere := ""
	if req.Status != nil {
		countWhere = "WHERE status = $1"
	}
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM quotes `+countWhere, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("quotes: count: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, number, company_id, client_id, currency, status, defaults, results, calculated_at, created_by, created_at, updated_at
		FROM quotes `+where+` ORDER BY created_at DESC LIMIT $1 OFFSET $2`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("quotes: list: %w", err)
	}
	defer rows.Close()

	var quotes []Quote
	for rows.Next() {
		quote, err := scanQuote(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("quotes: scan: %w", err)
		}
		quotes = append(quotes, *quote)
	}
	return quotes, total, rows.Err()
}

// ReplaceInputs swaps a quote's defaults and product lines. The update is
// conditional on the status the caller loaded; a concurrent transition
// surfaces as shared.ErrConflict. Stored results are cleared since they no
// longer match the inputs.
func (r *PgRepository) ReplaceInputs(ctx context.Context, quote *Quote) error {
	defaults, err := json.Marshal(quote.Defaults)
	if err != nil {
		return fmt.Errorf("quotes: marshal defaults: %w", err)
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE quotes SET defaults = $1, results = NULL, calculated_at = NULL, updated_at = now()
			WHERE id = $2 AND status = $3`,
			defaults, quote.ID, string(quote.Status))
		if err != nil {
			return fmt.Errorf("quotes: update inputs: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrConflict
		}
		if _, err := tx.Exec(ctx, `DELETE FROM quote_products WHERE quote_id = $1`, quote.ID); err != nil {
			return fmt.Errorf("quotes: clear products: %w", err)
		}
		return insertProducts(ctx, tx, quote)
	})
}

// SaveResults stores the engine output snapshot for the quote and each
// product line.
func (r *PgRepository) SaveResults(ctx context.Context, quote *Quote, calculatedAt time.Time) error {
	results, err := json.Marshal(quote.Results)
	if err != nil {
		return fmt.Errorf("quotes: marshal results: %w", err)
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE quotes SET results = $1, calculated_at = $2, updated_at = now()
			WHERE id = $3`,
			results, calculatedAt, quote.ID)
		if err != nil {
			return fmt.Errorf("quotes: save results: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		for _, p := range quote.Products {
			result, err := json.Marshal(p.Result)
			if err != nil {
				return fmt.Errorf("quotes: marshal product result: %w", err)
			}
			if _, err := tx.Exec(ctx, `
				UPDATE quote_products SET result = $1 WHERE id = $2`, result, p.ID); err != nil {
				return fmt.Errorf("quotes: save product result: %w", err)
			}
		}
		return nil
	})
}

func insertProducts(ctx context.Context, tx pgx.Tx, quote *Quote) error {
	for _, p := range quote.Products {
		overrides, err := json.Marshal(p.Overrides)
		if err != nil {
			return fmt.Errorf("quotes: marshal overrides: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO quote_products (id, quote_id, position, name, overrides)
			VALUES ($1, $2, $3, $4, $5)`,
			p.ID, quote.ID, p.Position, p.Name, overrides); err != nil {
			return fmt.Errorf("quotes: insert product: %w", err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuote(row rowScanner) (*Quote, error) {
	var q Quote
	var currency, status string
	var defaults, results []byte
	if err := row.Scan(&q.ID, &q.Number, &q.CompanyID, &q.ClientID, &currency, &status,
		&defaults, &results, &q.CalculatedAt, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt); err != nil {
		return nil, err
	}
	q.Currency, q.Status = fx.Currency(currency), workflow.Status(status)
	if err := json.Unmarshal(defaults, &q.Defaults); err != nil {
		return nil, fmt.Errorf("decode defaults: %w", err)
	}
	if len(results) > 0 {
		q.Results = &calc.QuoteResult{}
		if err := json.Unmarshal(results, q.Results); err != nil {
			return nil, fmt.Errorf("decode results: %w", err)
		}
	}
	return &q, nil
}
