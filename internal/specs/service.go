package specs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-trade/meridian/internal/quotes"
	"github.com/meridian-trade/meridian/internal/quotes/vars"
	"github.com/meridian-trade/meridian/internal/shared"
	"github.com/meridian-trade/meridian/internal/workflow"
)

// Repository persists specifications and deals.
type Repository interface {
	CreateSpecification(ctx context.Context, spec *Specification) error
	GetSpecification(ctx context.Context, id uuid.UUID) (*Specification, error)
	SpecificationByQuote(ctx context.Context, quoteID uuid.UUID) (*Specification, error)
	UpdateSpecification(ctx context.Context, spec *Specification) error
	CreateDeal(ctx context.Context, deal *Deal) error
	GetDeal(ctx context.Context, id uuid.UUID) (*Deal, error)
	DealBySpecification(ctx context.Context, specID uuid.UUID) (*Deal, error)
	UpdateDeal(ctx context.Context, deal *Deal) error
}

// QuoteStore is the slice of the quote service the spec lifecycle needs.
type QuoteStore interface {
	Get(ctx context.Context, id uuid.UUID) (*quotes.Quote, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, entry shared.AuditLog) error
}

// Service manages the specification and deal lifecycle that follows an
// approved quote.
type Service struct {
	repo   Repository
	quotes QuoteStore
	audit  AuditRecorder
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, qs QuoteStore, audit AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, quotes: qs, audit: audit, logger: logger, now: time.Now}
}

// CreateFromQuote snapshots an approved quote into a numbered specification.
// The quote must carry calculation results and sit at the signature gate.
func (s *Service) CreateFromQuote(ctx context.Context, quoteID uuid.UUID, actorID uuid.UUID) (*Specification, error) {
	q, err := s.quotes.Get(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	switch q.Status {
	case workflow.StatusPendingSignature, workflow.StatusSigned:
	default:
		return nil, fmt.Errorf("quote %s is in %s: %w", q.Number, q.Status, shared.ErrConflict)
	}
	if q.Results == nil {
		return nil, fmt.Errorf("quote %s has no calculation snapshot: %w", q.Number, shared.ErrConflict)
	}
	if existing, err := s.repo.SpecificationByQuote(ctx, quoteID); err == nil {
		return existing, nil
	}

	spec := &Specification{
		ID:           uuid.New(),
		QuoteID:      q.ID,
		Number:       "SP-" + q.Number,
		Currency:     q.Currency,
		TotalExclVAT: q.Results.TotalExclVAT,
		TotalInclVAT: q.Results.TotalInclVAT,
		TotalProfit:  q.Results.TotalProfit,
		Status:       SpecDraft,
		CreatedBy:    actorID,
		CreatedAt:    s.now(),
	}
	if err := s.repo.CreateSpecification(ctx, spec); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "specification.create", spec.ID)
	return spec, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Specification, error) {
	return s.repo.GetSpecification(ctx, id)
}

func (s *Service) ByQuote(ctx context.Context, quoteID uuid.UUID) (*Specification, error) {
	return s.repo.SpecificationByQuote(ctx, quoteID)
}

// MarkSigned records client signature on the specification.
func (s *Service) MarkSigned(ctx context.Context, specID uuid.UUID, actorID uuid.UUID) (*Specification, error) {
	spec, err := s.repo.GetSpecification(ctx, specID)
	if err != nil {
		return nil, err
	}
	if spec.Status == SpecSigned {
		return spec, nil
	}
	now := s.now()
	spec.Status = SpecSigned
	spec.SignedAt = &now
	if err := s.repo.UpdateSpecification(ctx, spec); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "specification.sign", spec.ID)
	return spec, nil
}

// ActivateDeal converts a signed specification into an active deal with
// payment milestones derived from the quote's payment schedule.
func (s *Service) ActivateDeal(ctx context.Context, specID uuid.UUID, actorID uuid.UUID) (*Deal, error) {
	spec, err := s.repo.GetSpecification(ctx, specID)
	if err != nil {
		return nil, err
	}
	if spec.Status != SpecSigned {
		return nil, fmt.Errorf("specification %s is not signed: %w", spec.Number, shared.ErrConflict)
	}
	if existing, err := s.repo.DealBySpecification(ctx, specID); err == nil {
		return existing, nil
	}
	q, err := s.quotes.Get(ctx, spec.QuoteID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	deal := &Deal{
		ID:              uuid.New(),
		SpecificationID: spec.ID,
		QuoteID:         spec.QuoteID,
		Number:          "D-" + q.Number,
		Currency:        spec.Currency,
		Payments:        paymentSchedule(q.Defaults, spec.TotalInclVAT, now),
		Logistics:       emptyLogistics(),
		Status:          DealActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.CreateDeal(ctx, deal); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "deal.activate", deal.ID)
	return deal, nil
}

func (s *Service) Deal(ctx context.Context, id uuid.UUID) (*Deal, error) {
	return s.repo.GetDeal(ctx, id)
}

// RecordPayment marks a payment milestone as settled. When the last payment
// lands and the goods are delivered the deal rolls up to completed.
func (s *Service) RecordPayment(ctx context.Context, dealID uuid.UUID, kind PaymentKind, actorID uuid.UUID) (*Deal, error) {
	deal, err := s.repo.GetDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if deal.Status != DealActive {
		return nil, fmt.Errorf("deal %s is %s: %w", deal.Number, deal.Status, shared.ErrConflict)
	}
	found := false
	now := s.now()
	for i := range deal.Payments {
		if deal.Payments[i].Kind == kind {
			found = true
			if deal.Payments[i].PaidAt == nil {
				deal.Payments[i].PaidAt = &now
			}
		}
	}
	if !found {
		return nil, fmt.Errorf("deal %s has no %s milestone: %w", deal.Number, kind, shared.ErrNotFound)
	}
	return s.saveRollup(ctx, deal, actorID, "deal.payment."+string(kind))
}

// RecordLogistics marks a shipment milestone as reached.
func (s *Service) RecordLogistics(ctx context.Context, dealID uuid.UUID, kind LogisticsKind, actorID uuid.UUID) (*Deal, error) {
	deal, err := s.repo.GetDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if deal.Status != DealActive {
		return nil, fmt.Errorf("deal %s is %s: %w", deal.Number, deal.Status, shared.ErrConflict)
	}
	found := false
	now := s.now()
	for i := range deal.Logistics {
		if deal.Logistics[i].Kind == kind {
			found = true
			if deal.Logistics[i].OccurredAt == nil {
				deal.Logistics[i].OccurredAt = &now
			}
		}
	}
	if !found {
		return nil, fmt.Errorf("deal %s has no %s milestone: %w", deal.Number, kind, shared.ErrNotFound)
	}
	return s.saveRollup(ctx, deal, actorID, "deal.logistics."+string(kind))
}

// CancelDeal closes an active deal without completion.
func (s *Service) CancelDeal(ctx context.Context, dealID uuid.UUID, actorID uuid.UUID) (*Deal, error) {
	deal, err := s.repo.GetDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if deal.Status == DealCancelled {
		return deal, nil
	}
	if deal.Status == DealCompleted {
		return nil, fmt.Errorf("deal %s is completed: %w", deal.Number, shared.ErrConflict)
	}
	deal.Status = DealCancelled
	deal.UpdatedAt = s.now()
	if err := s.repo.UpdateDeal(ctx, deal); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "deal.cancel", deal.ID)
	return deal, nil
}

func (s *Service) saveRollup(ctx context.Context, deal *Deal, actorID uuid.UUID, action string) (*Deal, error) {
	deal.UpdatedAt = s.now()
	if deal.Complete() {
		deal.Status = DealCompleted
	}
	if err := s.repo.UpdateDeal(ctx, deal); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, action, deal.ID)
	return deal, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID uuid.UUID, action string, entityID uuid.UUID) {
	if s.audit == nil {
		return
	}
	entry := shared.AuditLog{
		ActorID:  actorID.String(),
		Action:   action,
		Entity:   "specification",
		EntityID: entityID.String(),
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("audit record failed", "action", action, "error", err)
	}
}

// paymentSchedule maps the quote's payment slots onto the contract milestone
// kinds. Slot N of the quote schedule becomes milestone N in contract order;
// when the quote defines no schedule the full amount falls due as a single
// final payment.
func paymentSchedule(defaults map[string]any, total decimal.Decimal, signedAt time.Time) []PaymentMilestone {
	kinds := PaymentKinds()
	hundred := decimal.NewFromInt(100)
	var out []PaymentMilestone
	for i := 0; i < len(vars.PaymentPercentVars) && i < len(kinds); i++ {
		pct, ok := defaultDecimal(defaults, vars.PaymentPercentVars[i])
		if !ok || !pct.IsPositive() {
			continue
		}
		pct = vars.NormalizePercent(pct)
		m := PaymentMilestone{
			Kind:    kinds[i],
			Percent: pct,
			Amount:  total.Mul(pct).Div(hundred).Round(2),
		}
		if days, ok := defaultDecimal(defaults, vars.PaymentDaysVars[i]); ok {
			due := signedAt.AddDate(0, 0, int(days.IntPart()))
			m.DueAt = &due
		}
		out = append(out, m)
	}
	if len(out) == 0 {
		out = []PaymentMilestone{{Kind: PayFinal, Percent: hundred, Amount: total.Round(2)}}
	}
	return out
}

func defaultDecimal(defaults map[string]any, name string) (decimal.Decimal, bool) {
	raw, ok := defaults[name]
	if !ok || raw == nil {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(fmt.Sprint(raw))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

func emptyLogistics() []LogisticsMilestone {
	kinds := LogisticsKinds()
	out := make([]LogisticsMilestone, len(kinds))
	for i, k := range kinds {
		out[i] = LogisticsMilestone{Kind: k}
	}
	return out
}
