package quotes

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridian-trade/meridian/internal/approvals"
	"github.com/meridian-trade/meridian/internal/quotes/vars"
	"github.com/meridian-trade/meridian/internal/shared"
	"github.com/meridian-trade/meridian/internal/workflow"
)

// memStore backs the quote, workflow and approval ports with one in-memory
// record so the service wiring can be exercised end to end.
type memStore struct {
	mu        sync.Mutex
	seq       int64
	quote     *Quote
	history   []workflow.HistoryEntry
	stages    map[workflow.Stage]bool
	flags     map[approvals.Department]bool
	decisions []approvals.Decision
}

func newMemStore() *memStore {
	return &memStore{
		stages: make(map[workflow.Stage]bool),
		flags:  make(map[approvals.Department]bool),
	}
}

// quotes.Repository

func (s *memStore) NextNumber(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return fmt.Sprintf("Q-2026-%05d", s.seq), nil
}

func (s *memStore) Create(_ context.Context, quote *Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *quote
	s.quote = &cp
	return nil
}

func (s *memStore) Get(_ context.Context, id uuid.UUID) (*Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quote == nil || s.quote.ID != id {
		return nil, shared.ErrNotFound
	}
	cp := *s.quote
	return &cp, nil
}

func (s *memStore) List(context.Context, ListQuotesRequest) ([]Quote, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quote == nil {
		return nil, 0, nil
	}
	return []Quote{*s.quote}, 1, nil
}

func (s *memStore) ReplaceInputs(_ context.Context, quote *Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quote == nil || s.quote.Status != quote.Status {
		return shared.ErrConflict
	}
	cp := *quote
	cp.Status = s.quote.Status
	s.quote = &cp
	return nil
}

func (s *memStore) SaveResults(_ context.Context, quote *Quote, calculatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quote == nil {
		return shared.ErrNotFound
	}
	s.quote.Results = quote.Results
	s.quote.Products = quote.Products
	s.quote.CalculatedAt = &calculatedAt
	return nil
}

// workflow.Repository

func (s *memStore) GetStatus(context.Context, uuid.UUID) (workflow.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quote == nil {
		return "", shared.ErrNotFound
	}
	return s.quote.Status, nil
}

func (s *memStore) UpdateStatus(_ context.Context, _ uuid.UUID, from, to workflow.Status, entry workflow.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quote == nil || s.quote.Status != from {
		return shared.ErrConflict
	}
	s.quote.Status = to
	s.history = append(s.history, entry)
	return nil
}

func (s *memStore) History(context.Context, uuid.UUID) ([]workflow.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]workflow.HistoryEntry(nil), s.history...), nil
}

func (s *memStore) ParallelStages(context.Context, uuid.UUID) (workflow.Stages, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return workflow.Stages{Logistics: s.stages[workflow.StageLogistics], Customs: s.stages[workflow.StageCustoms]}, nil
}

func (s *memStore) CompleteStage(_ context.Context, _ uuid.UUID, stage workflow.Stage, _ uuid.UUID) (workflow.Stages, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stages[stage] = true
	return workflow.Stages{Logistics: s.stages[workflow.StageLogistics], Customs: s.stages[workflow.StageCustoms]}, nil
}

// approvals.Repository

func (s *memStore) Flags(context.Context, uuid.UUID, approvals.Stage) (approvals.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(approvals.Snapshot, len(s.flags))
	for d, v := range s.flags {
		out[d] = v
	}
	return out, nil
}

func (s *memStore) Apply(_ context.Context, decision approvals.Decision, clear []approvals.Department) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[decision.Department] = decision.Approved
	for _, dept := range clear {
		s.flags[dept] = false
	}
	s.decisions = append(s.decisions, decision)
	return nil
}

func (s *memStore) Decisions(context.Context, uuid.UUID, approvals.Stage) ([]approvals.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]approvals.Decision(nil), s.decisions...), nil
}

func newTestService(store *memStore) *Service {
	machine := workflow.NewMachine(workflow.DefaultConfig(), store, nil)
	return NewService(store, vars.NewResolver(nil, nil), machine, approvals.NewLedger(store), nil, nil, nil)
}

func roleActor(roles ...string) workflow.Actor {
	return workflow.Actor{UserID: uuid.New(), Roles: roles}
}

func createRequest() CreateQuoteRequest {
	return CreateQuoteRequest{
		CompanyID: uuid.New(),
		ClientID:  uuid.New(),
		Currency:  "USD",
		Defaults: map[string]any{
			vars.VarExchangeRate:  "1.08",
			vars.VarMarkupPercent: "15",
		},
		Products: []CreateProductRequest{{
			Name: "Control valve",
			Overrides: map[string]any{
				vars.VarBasePrice:            "1000",
				vars.VarQuantity:             "10",
				vars.VarBasePriceCurrency:    "EUR",
				vars.VarBasePriceIncludesVAT: true,
				vars.VarSupplierVATPercent:   "20",
			},
		}},
	}
}

func TestCreateQuote(t *testing.T) {
	store := newMemStore()
	s := newTestService(store)

	quote, err := s.Create(context.Background(), createRequest(), roleActor("sales"))
	require.NoError(t, err)
	require.Equal(t, "Q-2026-00001", quote.Number)
	require.Equal(t, workflow.StatusDraft, quote.Status)
	require.Equal(t, "USD", quote.Defaults[vars.VarQuoteCurrency])
	require.Len(t, quote.Products, 1)
	require.Equal(t, 1, quote.Products[0].Position)
}

func TestCreateQuoteValidation(t *testing.T) {
	store := newMemStore()
	s := newTestService(store)

	req := createRequest()
	req.Products = nil
	_, err := s.Create(context.Background(), req, roleActor("sales"))
	require.Error(t, err)

	req = createRequest()
	req.Currency = "XXX"
	_, err = s.Create(context.Background(), req, roleActor("sales"))
	require.Error(t, err)
}

func TestCalculatePersistsSnapshot(t *testing.T) {
	store := newMemStore()
	s := newTestService(store)
	quote, err := s.Create(context.Background(), createRequest(), roleActor("sales"))
	require.NoError(t, err)

	calculated, err := s.Calculate(context.Background(), quote.ID, roleActor("sales"))
	require.NoError(t, err)
	require.NotNil(t, calculated.Results)
	require.NotNil(t, calculated.CalculatedAt)

	// 1000 EUR VAT-inclusive at 20% -> 833.33.. EUR -> 900 USD, qty 10,
	// markup 15 -> sale 1035/unit.
	require.Equal(t, "9000", calculated.Results.TotalPurchase.String())
	require.Equal(t, "10350", calculated.Results.TotalExclVAT.String())
	require.NotNil(t, calculated.Products[0].Result)
	require.Equal(t, "1035", calculated.Products[0].Result.SaleExclVATUnit.String())

	stored, err := s.Get(context.Background(), quote.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Results)
}

func TestCalculateResolutionErrorLeavesSnapshot(t *testing.T) {
	store := newMemStore()
	s := newTestService(store)
	req := createRequest()
	delete(req.Products[0].Overrides, vars.VarQuantity)
	quote, err := s.Create(context.Background(), req, roleActor("sales"))
	require.NoError(t, err)

	_, err = s.Calculate(context.Background(), quote.ID, roleActor("sales"))
	var verr *vars.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, vars.VarQuantity, verr.Field)

	stored, err := s.Get(context.Background(), quote.ID)
	require.NoError(t, err)
	require.Nil(t, stored.Results)
	require.Nil(t, stored.CalculatedAt)
}

func TestUpdateInputsFrozenAfterApproval(t *testing.T) {
	store := newMemStore()
	s := newTestService(store)
	quote, err := s.Create(context.Background(), createRequest(), roleActor("sales"))
	require.NoError(t, err)
	store.quote.Status = workflow.StatusApproved

	defaults := map[string]any{vars.VarMarkupPercent: "20"}
	_, err = s.UpdateInputs(context.Background(), quote.ID, UpdateQuoteRequest{Defaults: &defaults}, roleActor("sales"))
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestApprovalChainDrivesWorkflow(t *testing.T) {
	store := newMemStore()
	s := newTestService(store)
	quote, err := s.Create(context.Background(), createRequest(), roleActor("sales"))
	require.NoError(t, err)

	res, err := s.Transition(context.Background(), quote.ID, TransitionRequest{To: "pending_procurement"}, roleActor("sales"))
	require.NoError(t, err)
	require.True(t, res.Applied)

	steps := []struct {
		department string
		roles      []string
		wantStatus workflow.Status
	}{
		{"procurement", []string{"procurement"}, workflow.StatusPendingLogCustoms},
		{"logistics", []string{"logistics"}, workflow.StatusPendingLogCustoms},
		{"customs", []string{"customs"}, workflow.StatusPendingSalesReview},
		{"sales", []string{"sales"}, workflow.StatusPendingQuoteControl},
		{"control", []string{"control"}, workflow.StatusPendingApproval},
	}
	for _, step := range steps {
		outcome, err := s.Approve(context.Background(), quote.ID, DecisionRequest{Department: step.department}, roleActor(step.roles...))
		require.NoError(t, err, "approving %s", step.department)
		require.True(t, outcome.Applied, "approving %s", step.department)
		require.Equal(t, step.wantStatus, store.quote.Status, "after %s", step.department)
	}

	snapshot, err := s.Approvals(context.Background(), quote.ID)
	require.NoError(t, err)
	require.True(t, snapshot.AllApproved())
}

func TestApproveOutOfOrderDoesNotMoveWorkflow(t *testing.T) {
	store := newMemStore()
	s := newTestService(store)
	quote, err := s.Create(context.Background(), createRequest(), roleActor("sales"))
	require.NoError(t, err)
	store.quote.Status = workflow.StatusPendingProcurement

	outcome, err := s.Approve(context.Background(), quote.ID, DecisionRequest{Department: "sales"}, roleActor("sales"))
	require.NoError(t, err)
	require.False(t, outcome.Applied)
	require.Equal(t, workflow.StatusPendingProcurement, store.quote.Status)
}

func TestApproveForeignDepartmentIsRefused(t *testing.T) {
	store := newMemStore()
	s := newTestService(store)
	quote, err := s.Create(context.Background(), createRequest(), roleActor("sales"))
	require.NoError(t, err)
	store.quote.Status = workflow.StatusPendingProcurement

	outcome, err := s.Approve(context.Background(), quote.ID, DecisionRequest{Department: "procurement"}, roleActor("sales"))
	require.NoError(t, err)
	require.False(t, outcome.Applied)
	require.Contains(t, outcome.Reason, "procurement")
	require.Empty(t, store.decisions)
	require.False(t, store.flags[approvals.DeptProcurement])
	require.Equal(t, workflow.StatusPendingProcurement, store.quote.Status)
}

func TestApproveForeignDepartmentLeavesForkUntouched(t *testing.T) {
	store := newMemStore()
	s := newTestService(store)
	quote, err := s.Create(context.Background(), createRequest(), roleActor("sales"))
	require.NoError(t, err)
	store.flags[approvals.DeptProcurement] = true
	store.quote.Status = workflow.StatusPendingLogCustoms

	outcome, err := s.Approve(context.Background(), quote.ID, DecisionRequest{Department: "logistics"}, roleActor("sales"))
	require.NoError(t, err)
	require.False(t, outcome.Applied)
	require.False(t, store.flags[approvals.DeptLogistics], "refusal writes no flag")

	stages, err := s.Stages(context.Background(), quote.ID)
	require.NoError(t, err)
	require.False(t, stages.Logistics)
	require.False(t, stages.Customs)
}

func TestRejectForeignDepartmentDoesNotCascade(t *testing.T) {
	store := newMemStore()
	s := newTestService(store)
	quote, err := s.Create(context.Background(), createRequest(), roleActor("sales"))
	require.NoError(t, err)
	for _, d := range approvals.Departments() {
		store.flags[d] = true
	}
	store.quote.Status = workflow.StatusPendingQuoteControl

	outcome, err := s.Reject(context.Background(), quote.ID, DecisionRequest{Department: "procurement", Comment: "not my lane"}, roleActor("sales"))
	require.NoError(t, err)
	require.False(t, outcome.Applied)

	snapshot, err := s.Approvals(context.Background(), quote.ID)
	require.NoError(t, err)
	require.True(t, snapshot.AllApproved())
}

func TestRejectRollsBackWithoutStatusChange(t *testing.T) {
	store := newMemStore()
	s := newTestService(store)
	quote, err := s.Create(context.Background(), createRequest(), roleActor("sales"))
	require.NoError(t, err)
	for _, d := range approvals.Departments() {
		store.flags[d] = true
	}
	store.quote.Status = workflow.StatusPendingQuoteControl

	outcome, err := s.Reject(context.Background(), quote.ID, DecisionRequest{Department: "logistics", Comment: "reroute"}, roleActor("logistics"))
	require.NoError(t, err)
	require.True(t, outcome.Applied)

	snapshot, err := s.Approvals(context.Background(), quote.ID)
	require.NoError(t, err)
	require.True(t, snapshot[approvals.DeptProcurement])
	require.True(t, snapshot[approvals.DeptCustoms])
	require.False(t, snapshot[approvals.DeptSales])
	require.False(t, snapshot[approvals.DeptControl])
	require.Equal(t, workflow.StatusPendingQuoteControl, store.quote.Status)
}

func TestTransitionRefusalIsAValue(t *testing.T) {
	store := newMemStore()
	s := newTestService(store)
	quote, err := s.Create(context.Background(), createRequest(), roleActor("sales"))
	require.NoError(t, err)

	res, err := s.Transition(context.Background(), quote.ID, TransitionRequest{To: "approved"}, roleActor("sales"))
	require.NoError(t, err)
	require.False(t, res.Applied)
	require.NotEmpty(t, res.Reason)
}
