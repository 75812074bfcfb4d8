package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-trade/meridian/internal/platform/db"
	"github.com/meridian-trade/meridian/internal/shared"
)

// PgRepository provides PostgreSQL backed persistence for quote statuses,
// transition history and fork-stage completions.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository constructs a repository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// GetStatus loads a quote's current status.
func (r *PgRepository) GetStatus(ctx context.Context, quoteID uuid.UUID) (Status, error) {
	var raw string
	err := r.pool.QueryRow(ctx, `SELECT status FROM quotes WHERE id = $1`, quoteID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", shared.ErrNotFound
		}
		return "", fmt.Errorf("workflow: get status: %w", err)
	}
	return ParseStatus(raw)
}

// UpdateStatus conditionally moves a quote and appends the history row in one
// transaction. A stale expected status yields shared.ErrConflict.
func (r *PgRepository) UpdateStatus(ctx context.Context, quoteID uuid.UUID, from, to Status, entry HistoryEntry) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE quotes SET status = $1, updated_at = now() WHERE id = $2 AND status = $3`,
			string(to), quoteID, string(from))
		if err != nil {
			return fmt.Errorf("workflow: update status: %w", err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM quotes WHERE id = $1)`, quoteID).Scan(&exists); err != nil {
				return fmt.Errorf("workflow: update status: %w", err)
			}
			if !exists {
				return shared.ErrNotFound
			}
			return shared.ErrConflict
		}

		var actorID any
		if entry.ActorID != uuid.Nil {
			actorID = entry.ActorID
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO quote_status_history (id, quote_id, from_status, to_status, actor_id, comment, auto, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			entry.ID, entry.QuoteID, string(entry.FromStatus), string(entry.ToStatus),
			actorID, entry.Comment, entry.Auto, entry.CreatedAt)
		if err != nil {
			return fmt.Errorf("workflow: append history: %w", err)
		}
		return nil
	})
}

// History returns a quote's transition history, oldest first.
func (r *PgRepository) History(ctx context.Context, quoteID uuid.UUID) ([]HistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, quote_id, from_status, to_status, COALESCE(actor_id, $2), comment, auto, created_at
		FROM quote_status_history
		WHERE quote_id = $1
		ORDER BY created_at, id`, quoteID, uuid.Nil)
	if err != nil {
		return nil, fmt.Errorf("workflow: load history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var from, to string
		if err := rows.Scan(&e.ID, &e.QuoteID, &from, &to, &e.ActorID, &e.Comment, &e.Auto, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("workflow: scan history: %w", err)
		}
		e.FromStatus, e.ToStatus = Status(from), Status(to)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ParallelStages reports which fork legs are complete.
func (r *PgRepository) ParallelStages(ctx context.Context, quoteID uuid.UUID) (Stages, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT stage FROM quote_stage_completions WHERE quote_id = $1`, quoteID)
	if err != nil {
		return Stages{}, fmt.Errorf("workflow: load stages: %w", err)
	}
	defer rows.Close()

	var stages Stages
	for rows.Next() {
		var stage string
		if err := rows.Scan(&stage); err != nil {
			return Stages{}, fmt.Errorf("workflow: scan stage: %w", err)
		}
		switch Stage(stage) {
		case StageLogistics:
			stages.Logistics = true
		case StageCustoms:
			stages.Customs = true
		}
	}
	return stages, rows.Err()
}

// CompleteStage records a fork-leg completion. The insert is idempotent via
// the (quote_id, stage) primary key; the returned state reflects the table
// after the insert.
func (r *PgRepository) CompleteStage(ctx context.Context, quoteID uuid.UUID, stage Stage, actorID uuid.UUID) (Stages, error) {
	var completedBy any
	if actorID != uuid.Nil {
		completedBy = actorID
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO quote_stage_completions (quote_id, stage, completed_by, completed_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (quote_id, stage) DO NOTHING`,
		quoteID, string(stage), completedBy)
	if err != nil {
		return Stages{}, fmt.Errorf("workflow: complete stage: %w", err)
	}
	return r.ParallelStages(ctx, quoteID)
}
