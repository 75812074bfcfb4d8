package approvals

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Stage distinguishes the quote review round from the specification review
// round; both run the same five-department gate.
type Stage string

const (
	StageQuote         Stage = "quote"
	StageSpecification Stage = "specification"
)

// Decision is one approve/reject act. Decisions are append-only: a newer act
// for the same department marks the older rows superseded, never deletes
// them.
type Decision struct {
	ID         uuid.UUID  `json:"id"`
	QuoteID    uuid.UUID  `json:"quote_id"`
	Stage      Stage      `json:"stage"`
	Department Department `json:"department"`
	Approved   bool       `json:"approved"`
	ActorID    uuid.UUID  `json:"actor_id"`
	Comment    string     `json:"comment,omitempty"`
	Override   bool       `json:"override"`
	Superseded bool       `json:"superseded"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Snapshot is the current approval flag per department.
type Snapshot map[Department]bool

// AllApproved is a pure fold over the five flags.
func (s Snapshot) AllApproved() bool {
	for _, d := range Departments() {
		if !s[d] {
			return false
		}
	}
	return true
}

// Actor identifies who is deciding.
type Actor struct {
	UserID uuid.UUID
	Roles  []string
}

func (a Actor) isAdmin() bool {
	return a.holdsRole("admin")
}

// mayDecide reports whether the actor can act for the department: the
// matching department role, or admin.
func (a Actor) mayDecide(dept Department) bool {
	return a.isAdmin() || a.holdsRole(string(dept))
}

func (a Actor) holdsRole(want string) bool {
	for _, role := range a.Roles {
		if strings.EqualFold(strings.TrimSpace(role), want) {
			return true
		}
	}
	return false
}

// Outcome reports a decision attempt. Precondition failures are ordinary
// values, not errors: Applied false with the missing prerequisite named.
type Outcome struct {
	Applied bool
	Reason  string
}

// Repository is the storage collaborator. Both mutations must atomically
// update the flags and append the decision row, superseding the department's
// previous current decision in the same transaction.
type Repository interface {
	Flags(ctx context.Context, quoteID uuid.UUID, stage Stage) (Snapshot, error)
	Apply(ctx context.Context, decision Decision, clear []Department) error
	Decisions(ctx context.Context, quoteID uuid.UUID, stage Stage) ([]Decision, error)
}

// Ledger tracks per-department approval state for quotes and specifications.
type Ledger struct {
	repo Repository
}

// NewLedger constructs a Ledger.
func NewLedger(repo Repository) *Ledger {
	return &Ledger{repo: repo}
}

// Approve sets a department's flag once all its upstream prerequisites are
// approved. Only an actor holding the department's role (or admin) may
// decide; the check runs before any write so a refused decision leaves no
// trace. An admin actor also bypasses the prerequisite check; this is the
// operational escape hatch, recorded as an override on the decision row.
func (l *Ledger) Approve(ctx context.Context, quoteID uuid.UUID, stage Stage, dept Department, actor Actor) (Outcome, error) {
	if !actor.mayDecide(dept) {
		return Outcome{Reason: fmt.Sprintf("%s decisions require the %s role", dept, dept)}, nil
	}

	flags, err := l.repo.Flags(ctx, quoteID, stage)
	if err != nil {
		return Outcome{}, fmt.Errorf("approvals: load flags: %w", err)
	}

	override := actor.isAdmin()
	if !override {
		for _, prereq := range prerequisites[dept] {
			if !flags[prereq] {
				return Outcome{Reason: fmt.Sprintf("%s approval requires %s approval first", dept, prereq)}, nil
			}
		}
	}

	decision := Decision{
		ID:         uuid.New(),
		QuoteID:    quoteID,
		Stage:      stage,
		Department: dept,
		Approved:   true,
		ActorID:    actor.UserID,
		Override:   override && len(missingPrereqs(flags, dept)) > 0,
		CreatedAt:  time.Now().UTC(),
	}
	if err := l.repo.Apply(ctx, decision, nil); err != nil {
		return Outcome{}, fmt.Errorf("approvals: approve %s: %w", dept, err)
	}
	return Outcome{Applied: true}, nil
}

// Reject clears a department's flag and every flag strictly downstream of it.
// Siblings are untouched: rejecting logistics leaves customs as it was, but
// clears sales and control. A comment is mandatory, and the same role gate
// applies as for Approve.
func (l *Ledger) Reject(ctx context.Context, quoteID uuid.UUID, stage Stage, dept Department, actor Actor, comment string) (Outcome, error) {
	if !actor.mayDecide(dept) {
		return Outcome{Reason: fmt.Sprintf("%s decisions require the %s role", dept, dept)}, nil
	}

	comment = strings.TrimSpace(comment)
	if comment == "" {
		return Outcome{Reason: "rejection requires a comment"}, nil
	}

	decision := Decision{
		ID:         uuid.New(),
		QuoteID:    quoteID,
		Stage:      stage,
		Department: dept,
		Approved:   false,
		ActorID:    actor.UserID,
		Comment:    comment,
		CreatedAt:  time.Now().UTC(),
	}
	if err := l.repo.Apply(ctx, decision, Downstream(dept)); err != nil {
		return Outcome{}, fmt.Errorf("approvals: reject %s: %w", dept, err)
	}
	return Outcome{Applied: true}, nil
}

// AllApproved reports whether every department has approved.
func (l *Ledger) AllApproved(ctx context.Context, quoteID uuid.UUID, stage Stage) (bool, error) {
	flags, err := l.repo.Flags(ctx, quoteID, stage)
	if err != nil {
		return false, fmt.Errorf("approvals: load flags: %w", err)
	}
	return flags.AllApproved(), nil
}

// Snapshot returns the current flag per department.
func (l *Ledger) Snapshot(ctx context.Context, quoteID uuid.UUID, stage Stage) (Snapshot, error) {
	flags, err := l.repo.Flags(ctx, quoteID, stage)
	if err != nil {
		return nil, fmt.Errorf("approvals: load flags: %w", err)
	}
	snapshot := make(Snapshot, len(deptRank))
	for _, d := range Departments() {
		snapshot[d] = flags[d]
	}
	return snapshot, nil
}

// History returns the full decision trail, oldest first, superseded rows
// included.
func (l *Ledger) History(ctx context.Context, quoteID uuid.UUID, stage Stage) ([]Decision, error) {
	return l.repo.Decisions(ctx, quoteID, stage)
}

func missingPrereqs(flags Snapshot, dept Department) []Department {
	var missing []Department
	for _, prereq := range prerequisites[dept] {
		if !flags[prereq] {
			missing = append(missing, prereq)
		}
	}
	return missing
}
