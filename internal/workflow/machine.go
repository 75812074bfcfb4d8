package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-trade/meridian/internal/observability"
	"github.com/meridian-trade/meridian/internal/shared"
)

// Actor identifies who is driving a transition.
type Actor struct {
	UserID uuid.UUID
	Roles  []string
}

// systemActor fires auto edges such as the parallel join.
var systemActor = Actor{Roles: []string{"admin"}}

// ErrWrongStatus marks a stage operation attempted while the quote is not in
// the status that stage belongs to.
var ErrWrongStatus = errors.New("quote is not in the required status")

// HistoryEntry is one append-only row of a quote's transition history.
type HistoryEntry struct {
	ID         uuid.UUID `json:"id"`
	QuoteID    uuid.UUID `json:"quote_id"`
	FromStatus Status    `json:"from_status"`
	ToStatus   Status    `json:"to_status"`
	ActorID    uuid.UUID `json:"actor_id"`
	Comment    string    `json:"comment,omitempty"`
	Auto       bool      `json:"auto"`
	CreatedAt  time.Time `json:"created_at"`
}

// Stages is the completion state of the logistics/customs fork.
type Stages struct {
	Logistics bool `json:"logistics"`
	Customs   bool `json:"customs"`
}

// Both reports whether the join condition holds.
func (s Stages) Both() bool { return s.Logistics && s.Customs }

// Stage names the two legs of the parallel fork.
type Stage string

const (
	StageLogistics Stage = "logistics"
	StageCustoms   Stage = "customs"
)

// Repository is the storage collaborator. UpdateStatus must apply the status
// change conditionally on the expected current status and append the history
// entry in the same transaction, returning shared.ErrConflict when the
// expected status is stale. CompleteStage must be an idempotent insert whose
// returned Stages reflect the state after the call.
type Repository interface {
	GetStatus(ctx context.Context, quoteID uuid.UUID) (Status, error)
	UpdateStatus(ctx context.Context, quoteID uuid.UUID, from, to Status, entry HistoryEntry) error
	History(ctx context.Context, quoteID uuid.UUID) ([]HistoryEntry, error)
	ParallelStages(ctx context.Context, quoteID uuid.UUID) (Stages, error)
	CompleteStage(ctx context.Context, quoteID uuid.UUID, stage Stage, actorID uuid.UUID) (Stages, error)
}

// Result reports the outcome of a transition attempt. Refused transitions are
// ordinary values: Applied false with a human-readable reason. Storage
// conflicts and infrastructure failures are errors.
type Result struct {
	Applied bool
	Reason  string
	From    Status
	To      Status
}

// Machine executes role-gated status transitions against the injected
// transition table. It holds no mutable state and is safe for concurrent use.
type Machine struct {
	cfg     *Config
	repo    Repository
	metrics *observability.Metrics
}

// NewMachine constructs a Machine. metrics may be nil.
func NewMachine(cfg *Config, repo Repository, metrics *observability.Metrics) *Machine {
	return &Machine{cfg: cfg, repo: repo, metrics: metrics}
}

// CanTransition checks an edge without touching storage. The reason is empty
// exactly when the transition is allowed.
func (m *Machine) CanTransition(from, to Status, roles []string) (bool, string) {
	if from.IsTerminal() {
		return false, "terminal state"
	}
	edge, ok := m.cfg.Edge(from, to)
	if !ok {
		return false, "no such transition"
	}
	if !edgeAllows(edge, roles) {
		return false, fmt.Sprintf("insufficient role: requires one of %s", strings.Join(edge.AllowedRoles, ", "))
	}
	return true, ""
}

// AllowedTargets lists the statuses the role set may reach from a status.
func (m *Machine) AllowedTargets(from Status, roles []string) []Status {
	if from.IsTerminal() {
		return nil
	}
	return m.cfg.AllowedTargets(from, roles)
}

// Transition validates and executes one status change. The current status is
// read first and used as the compare-and-swap expectation; a concurrent writer
// surfaces as shared.ErrConflict and is never retried here.
func (m *Machine) Transition(ctx context.Context, quoteID uuid.UUID, to Status, actor Actor, comment string) (Result, error) {
	from, err := m.repo.GetStatus(ctx, quoteID)
	if err != nil {
		return Result{}, fmt.Errorf("workflow: load status: %w", err)
	}

	res := Result{From: from, To: to}
	allowed, reason := m.CanTransition(from, to, actor.Roles)
	if !allowed {
		res.Reason = reason
		m.metrics.ObserveTransition(string(to), "refused")
		return res, nil
	}
	edge, _ := m.cfg.Edge(from, to)
	if edge.RequireComment && strings.TrimSpace(comment) == "" {
		res.Reason = "comment required"
		m.metrics.ObserveTransition(string(to), "refused")
		return res, nil
	}

	entry := HistoryEntry{
		ID:         uuid.New(),
		QuoteID:    quoteID,
		FromStatus: from,
		ToStatus:   to,
		ActorID:    actor.UserID,
		Comment:    strings.TrimSpace(comment),
		Auto:       edge.Auto,
		CreatedAt:  time.Now().UTC(),
	}
	if err := m.repo.UpdateStatus(ctx, quoteID, from, to, entry); err != nil {
		if errors.Is(err, shared.ErrConflict) {
			m.metrics.ObserveTransition(string(to), "conflict")
			return Result{}, fmt.Errorf("workflow: transition %s -> %s: %w", from, to, shared.ErrConflict)
		}
		return Result{}, fmt.Errorf("workflow: transition %s -> %s: %w", from, to, err)
	}

	res.Applied = true
	m.metrics.ObserveTransition(string(to), "applied")
	return res, nil
}

// History returns a quote's transition history, oldest first.
func (m *Machine) History(ctx context.Context, quoteID uuid.UUID) ([]HistoryEntry, error) {
	return m.repo.History(ctx, quoteID)
}

// ParallelStages reports the completion state of the logistics/customs fork.
func (m *Machine) ParallelStages(ctx context.Context, quoteID uuid.UUID) (Stages, error) {
	return m.repo.ParallelStages(ctx, quoteID)
}

// CompleteLogistics marks the logistics leg done and fires the join when both
// legs are complete. Completing an already-completed leg is a no-op.
func (m *Machine) CompleteLogistics(ctx context.Context, quoteID uuid.UUID, actor Actor) (Stages, error) {
	return m.completeStage(ctx, quoteID, StageLogistics, actor, "logistics")
}

// CompleteCustoms marks the customs leg done and fires the join when both
// legs are complete.
func (m *Machine) CompleteCustoms(ctx context.Context, quoteID uuid.UUID, actor Actor) (Stages, error) {
	return m.completeStage(ctx, quoteID, StageCustoms, actor, "customs")
}

func (m *Machine) completeStage(ctx context.Context, quoteID uuid.UUID, stage Stage, actor Actor, requiredRole string) (Stages, error) {
	status, err := m.repo.GetStatus(ctx, quoteID)
	if err != nil {
		return Stages{}, fmt.Errorf("workflow: load status: %w", err)
	}
	if status != StatusPendingLogCustoms {
		return Stages{}, fmt.Errorf("workflow: quote is %s, not %s: %w", status, StatusPendingLogCustoms, ErrWrongStatus)
	}
	if !hasAnyRole(actor.Roles, requiredRole, "admin") {
		return Stages{}, fmt.Errorf("workflow: completing the %s stage requires the %s role", stage, requiredRole)
	}

	stages, err := m.repo.CompleteStage(ctx, quoteID, stage, actor.UserID)
	if err != nil {
		return Stages{}, fmt.Errorf("workflow: complete %s: %w", stage, err)
	}
	if !stages.Both() {
		return stages, nil
	}

	// Join: exactly one auto transition. Two actors completing opposite legs
	// concurrently both observe Both() here; the conditional status update
	// lets the second one lose cleanly.
	_, err = m.Transition(ctx, quoteID, StatusPendingSalesReview, systemActor, "")
	if err != nil && errors.Is(err, shared.ErrConflict) {
		return stages, nil
	}
	if err != nil {
		return stages, err
	}
	return stages, nil
}

func hasAnyRole(roles []string, wanted ...string) bool {
	for _, role := range roles {
		role = strings.ToLower(strings.TrimSpace(role))
		for _, w := range wanted {
			if role == w {
				return true
			}
		}
	}
	return false
}
