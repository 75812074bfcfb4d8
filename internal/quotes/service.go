package quotes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-trade/meridian/internal/approvals"
	"github.com/meridian-trade/meridian/internal/fx"
	"github.com/meridian-trade/meridian/internal/observability"
	"github.com/meridian-trade/meridian/internal/quotes/calc"
	"github.com/meridian-trade/meridian/internal/quotes/vars"
	"github.com/meridian-trade/meridian/internal/shared"
	"github.com/meridian-trade/meridian/internal/workflow"
)

// Service orchestrates the quote lifecycle: input management, calculation,
// workflow transitions and department decisions.
type Service struct {
	repo     Repository
	resolver *vars.Resolver
	machine  *workflow.Machine
	ledger   *approvals.Ledger
	validate *validator.Validate
	metrics  *observability.Metrics
	audit    *shared.AuditLogger
	logger   *slog.Logger
}

// NewService constructs a Service. metrics and audit may be nil.
func NewService(
	repo Repository,
	resolver *vars.Resolver,
	machine *workflow.Machine,
	ledger *approvals.Ledger,
	metrics *observability.Metrics,
	audit *shared.AuditLogger,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:     repo,
		resolver: resolver,
		machine:  machine,
		ledger:   ledger,
		validate: validator.New(),
		metrics:  metrics,
		audit:    audit,
		logger:   logger,
	}
}

// Create registers a new draft quote.
func (s *Service) Create(ctx context.Context, req CreateQuoteRequest, actor workflow.Actor) (*Quote, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("quotes: validate create: %w", err)
	}
	currency, err := fx.ParseCurrency(req.Currency)
	if err != nil {
		return nil, fmt.Errorf("quotes: %w", err)
	}

	number, err := s.repo.NextNumber(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	quote := &Quote{
		ID:        uuid.New(),
		Number:    number,
		CompanyID: req.CompanyID,
		ClientID:  req.ClientID,
		Currency:  currency,
		Status:    workflow.StatusDraft,
		Defaults:  withQuoteCurrency(req.Defaults, currency),
		CreatedBy: actor.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	quote.Products = buildProducts(quote.ID, req.Products)

	if err := s.repo.Create(ctx, quote); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actor, "quote.create", quote.ID, map[string]any{"number": quote.Number})
	return quote, nil
}

// Get loads one quote with product lines.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Quote, error) {
	return s.repo.Get(ctx, id)
}

// List returns quotes matching the filter plus the total count.
func (s *Service) List(ctx context.Context, req ListQuotesRequest) ([]Quote, int, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, 0, fmt.Errorf("quotes: validate list: %w", err)
	}
	if req.Status != nil {
		if _, err := workflow.ParseStatus(*req.Status); err != nil {
			return nil, 0, fmt.Errorf("quotes: %w", err)
		}
	}
	return s.repo.List(ctx, req)
}

// UpdateInputs replaces a quote's defaults and product lines while it is
// still editable. Stored results are invalidated.
func (s *Service) UpdateInputs(ctx context.Context, id uuid.UUID, req UpdateQuoteRequest, actor workflow.Actor) (*Quote, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("quotes: validate update: %w", err)
	}

	quote, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !quote.Editable() {
		return nil, fmt.Errorf("quotes: quote %s is %s and no longer editable: %w", quote.Number, quote.Status, shared.ErrConflict)
	}

	if req.Defaults != nil {
		quote.Defaults = withQuoteCurrency(*req.Defaults, quote.Currency)
	}
	if req.Products != nil {
		quote.Products = buildProducts(quote.ID, *req.Products)
	}
	quote.Results = nil
	quote.CalculatedAt = nil

	if err := s.repo.ReplaceInputs(ctx, quote); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actor, "quote.update_inputs", quote.ID, nil)
	return quote, nil
}

// Calculate resolves the quote's variables, runs the engine over every
// product line and persists the result snapshot. Resolution and calculation
// failures leave the stored snapshot untouched.
func (s *Service) Calculate(ctx context.Context, id uuid.UUID, actor workflow.Actor) (*Quote, error) {
	quote, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	inputs, err := s.resolver.Resolve(ctx, vars.QuoteVars{
		Defaults: quote.Defaults,
		Products: productVars(quote.Products),
		AsOf:     time.Now().UTC(),
	})
	if err != nil {
		s.metrics.ObserveCalculation("resolution_error")
		return nil, fmt.Errorf("quotes: resolve %s: %w", quote.Number, err)
	}

	result, err := calc.CalculateQuote(inputs)
	if err != nil {
		s.metrics.ObserveCalculation("calculation_error")
		return nil, fmt.Errorf("quotes: calculate %s: %w", quote.Number, err)
	}

	now := time.Now().UTC()
	quote.Results = result
	quote.CalculatedAt = &now
	for i := range quote.Products {
		quote.Products[i].Result = &result.Products[i]
	}
	if err := s.repo.SaveResults(ctx, quote, now); err != nil {
		return nil, err
	}

	s.metrics.ObserveCalculation("ok")
	s.recordAudit(ctx, actor, "quote.calculate", quote.ID, map[string]any{
		"products": len(quote.Products),
	})
	return quote, nil
}

// Transition moves the quote along the workflow graph.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, req TransitionRequest, actor workflow.Actor) (workflow.Result, error) {
	if err := s.validate.Struct(req); err != nil {
		return workflow.Result{}, fmt.Errorf("quotes: validate transition: %w", err)
	}
	to, err := workflow.ParseStatus(req.To)
	if err != nil {
		return workflow.Result{}, fmt.Errorf("quotes: %w", err)
	}

	res, err := s.machine.Transition(ctx, id, to, actor, req.Comment)
	if err != nil {
		return workflow.Result{}, err
	}
	if res.Applied {
		s.recordAudit(ctx, actor, "quote.transition", id, map[string]any{
			"from": string(res.From), "to": string(res.To),
		})
	}
	return res, nil
}

// History returns the quote's transition log.
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]workflow.HistoryEntry, error) {
	return s.machine.History(ctx, id)
}

// Stages reports the logistics/customs fork state.
func (s *Service) Stages(ctx context.Context, id uuid.UUID) (workflow.Stages, error) {
	return s.machine.ParallelStages(ctx, id)
}

// Approve records one department's approval and advances the workflow where
// the department's gate is what the quote is waiting on. Logistics and
// customs approvals complete their fork legs; the join fires the transition
// itself.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, req DecisionRequest, actor workflow.Actor) (approvals.Outcome, error) {
	dept, err := approvals.ParseDepartment(req.Department)
	if err != nil {
		return approvals.Outcome{}, fmt.Errorf("quotes: %w", err)
	}

	outcome, err := s.ledger.Approve(ctx, id, approvals.StageQuote, dept, approvals.Actor{UserID: actor.UserID, Roles: actor.Roles})
	if err != nil || !outcome.Applied {
		return outcome, err
	}
	s.recordAudit(ctx, actor, "quote.approve", id, map[string]any{"department": string(dept)})

	if err := s.advanceAfterApproval(ctx, id, dept, actor); err != nil {
		return outcome, err
	}
	return outcome, nil
}

// Reject records one department's rejection, rolling back every strictly
// downstream approval. The quote stays in its current pending status for
// re-work; moving it to the rejected terminal is a separate transition.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, req DecisionRequest, actor workflow.Actor) (approvals.Outcome, error) {
	dept, err := approvals.ParseDepartment(req.Department)
	if err != nil {
		return approvals.Outcome{}, fmt.Errorf("quotes: %w", err)
	}

	outcome, err := s.ledger.Reject(ctx, id, approvals.StageQuote, dept, approvals.Actor{UserID: actor.UserID, Roles: actor.Roles}, req.Comment)
	if err != nil || !outcome.Applied {
		return outcome, err
	}
	s.recordAudit(ctx, actor, "quote.reject", id, map[string]any{
		"department": string(dept), "comment": req.Comment,
	})
	return outcome, nil
}

// Approvals returns the current per-department flags.
func (s *Service) Approvals(ctx context.Context, id uuid.UUID) (approvals.Snapshot, error) {
	return s.ledger.Snapshot(ctx, id, approvals.StageQuote)
}

// Decisions returns the full decision trail for the quote review round.
func (s *Service) Decisions(ctx context.Context, id uuid.UUID) ([]approvals.Decision, error) {
	return s.ledger.History(ctx, id, approvals.StageQuote)
}

// advanceAfterApproval maps a department approval onto the workflow step it
// unblocks. Refused or conflicting transitions are not errors here: the
// ledger is the source of truth and the workflow catches up on the next
// approval.
func (s *Service) advanceAfterApproval(ctx context.Context, id uuid.UUID, dept approvals.Department, actor workflow.Actor) error {
	switch dept {
	case approvals.DeptProcurement:
		return s.tryTransition(ctx, id, workflow.StatusPendingLogCustoms, actor)
	case approvals.DeptLogistics:
		_, err := s.machine.CompleteLogistics(ctx, id, actor)
		return s.ignoreOutOfPhase(err, id)
	case approvals.DeptCustoms:
		_, err := s.machine.CompleteCustoms(ctx, id, actor)
		return s.ignoreOutOfPhase(err, id)
	case approvals.DeptSales:
		return s.tryTransition(ctx, id, workflow.StatusPendingQuoteControl, actor)
	case approvals.DeptControl:
		return s.tryTransition(ctx, id, workflow.StatusPendingApproval, actor)
	}
	return nil
}

// ignoreOutOfPhase swallows stage completions recorded outside the fork
// status (an admin override path); the approval itself already stands.
func (s *Service) ignoreOutOfPhase(err error, id uuid.UUID) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, workflow.ErrWrongStatus) {
		if s.logger != nil {
			s.logger.Debug("stage completion outside fork status",
				slog.String("quote_id", id.String()), slog.Any("error", err))
		}
		return nil
	}
	return err
}

func (s *Service) tryTransition(ctx context.Context, id uuid.UUID, to workflow.Status, actor workflow.Actor) error {
	res, err := s.machine.Transition(ctx, id, to, actor, "")
	if err != nil {
		return err
	}
	if !res.Applied && s.logger != nil {
		s.logger.Debug("post-approval transition not applied",
			slog.String("quote_id", id.String()), slog.String("to", string(to)), slog.String("reason", res.Reason))
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actor workflow.Actor, action string, quoteID uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	entry := shared.AuditLog{
		ActorID:  actor.UserID.String(),
		Action:   action,
		Entity:   "quote",
		EntityID: quoteID.String(),
		Meta:     meta,
		At:       time.Now().UTC(),
	}
	if err := s.audit.Record(ctx, entry); err != nil && s.logger != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func withQuoteCurrency(defaults map[string]any, currency fx.Currency) map[string]any {
	out := make(map[string]any, len(defaults)+1)
	for k, v := range defaults {
		out[k] = v
	}
	out[vars.VarQuoteCurrency] = string(currency)
	return out
}

func buildProducts(quoteID uuid.UUID, reqs []CreateProductRequest) []Product {
	products := make([]Product, len(reqs))
	for i, p := range reqs {
		overrides := p.Overrides
		if overrides == nil {
			overrides = map[string]any{}
		}
		products[i] = Product{
			ID:        uuid.New(),
			QuoteID:   quoteID,
			Position:  i + 1,
			Name:      p.Name,
			Overrides: overrides,
		}
	}
	return products
}

func productVars(products []Product) []vars.ProductVars {
	out := make([]vars.ProductVars, len(products))
	for i, p := range products {
		out[i] = vars.ProductVars{Name: p.Name, Overrides: p.Overrides}
	}
	return out
}
