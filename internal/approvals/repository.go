package approvals

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-trade/meridian/internal/platform/db"
)

// PgRepository provides PostgreSQL backed persistence for approval flags and
// the append-only decision trail.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository constructs a repository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Flags loads the current approval flag per department. Departments with no
// row are not approved.
func (r *PgRepository) Flags(ctx context.Context, quoteID uuid.UUID, stage Stage) (Snapshot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT department, approved
		FROM quote_approvals
		WHERE quote_id = $1 AND stage = $2`, quoteID, string(stage))
	if err != nil {
		return nil, fmt.Errorf("approvals: load flags: %w", err)
	}
	defer rows.Close()

	flags := make(Snapshot)
	for rows.Next() {
		var dept string
		var approved bool
		if err := rows.Scan(&dept, &approved); err != nil {
			return nil, fmt.Errorf("approvals: scan flag: %w", err)
		}
		flags[Department(dept)] = approved
	}
	return flags, rows.Err()
}

// Apply records one decision: upserts the department's flag, clears the given
// downstream departments, supersedes the previous current decision rows and
// appends the new one, all in a single transaction. The flag rows are locked
// first so two concurrent reviewers serialize instead of double-applying.
func (r *PgRepository) Apply(ctx context.Context, decision Decision, clear []Department) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			SELECT 1 FROM quote_approvals
			WHERE quote_id = $1 AND stage = $2
			FOR UPDATE`, decision.QuoteID, string(decision.Stage)); err != nil {
			return fmt.Errorf("approvals: lock flags: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO quote_approvals (quote_id, stage, department, approved, decided_by, decided_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (quote_id, stage, department)
			DO UPDATE SET approved = EXCLUDED.approved, decided_by = EXCLUDED.decided_by, decided_at = EXCLUDED.decided_at`,
			decision.QuoteID, string(decision.Stage), string(decision.Department),
			decision.Approved, nullableUUID(decision.ActorID), decision.CreatedAt); err != nil {
			return fmt.Errorf("approvals: set flag: %w", err)
		}

		superseded := []Department{decision.Department}
		for _, dept := range clear {
			if _, err := tx.Exec(ctx, `
				UPDATE quote_approvals SET approved = FALSE, decided_by = NULL, decided_at = $4
				WHERE quote_id = $1 AND stage = $2 AND department = $3 AND approved`,
				decision.QuoteID, string(decision.Stage), string(dept), decision.CreatedAt); err != nil {
				return fmt.Errorf("approvals: clear %s: %w", dept, err)
			}
			superseded = append(superseded, dept)
		}

		for _, dept := range superseded {
			if _, err := tx.Exec(ctx, `
				UPDATE approval_decisions SET superseded = TRUE
				WHERE quote_id = $1 AND stage = $2 AND department = $3 AND NOT superseded`,
				decision.QuoteID, string(decision.Stage), string(dept)); err != nil {
				return fmt.Errorf("approvals: supersede %s: %w", dept, err)
			}
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO approval_decisions (id, quote_id, stage, department, approved, actor_id, comment, override, superseded, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, $9)`,
			decision.ID, decision.QuoteID, string(decision.Stage), string(decision.Department),
			decision.Approved, nullableUUID(decision.ActorID), decision.Comment,
			decision.Override, decision.CreatedAt); err != nil {
			return fmt.Errorf("approvals: append decision: %w", err)
		}
		return nil
	})
}

// Decisions returns the decision trail, oldest first.
func (r *PgRepository) Decisions(ctx context.Context, quoteID uuid.UUID, stage Stage) ([]Decision, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, quote_id, stage, department, approved, COALESCE(actor_id, $3), comment, override, superseded, created_at
		FROM approval_decisions
		WHERE quote_id = $1 AND stage = $2
		ORDER BY created_at, id`, quoteID, string(stage), uuid.Nil)
	if err != nil {
		return nil, fmt.Errorf("approvals: load decisions: %w", err)
	}
	defer rows.Close()

	var decisions []Decision
	for rows.Next() {
		var d Decision
		var stage, dept string
		if err := rows.Scan(&d.ID, &d.QuoteID, &stage, &dept, &d.Approved, &d.ActorID,
			&d.Comment, &d.Override, &d.Superseded, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("approvals: scan decision: %w", err)
		}
		d.Stage, d.Department = Stage(stage), Department(dept)
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

func nullableUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}
