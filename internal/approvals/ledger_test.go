package approvals

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	mu        sync.Mutex
	flags     map[Department]bool
	decisions []Decision
}

func newMemRepo() *memRepo {
	return &memRepo{flags: make(map[Department]bool)}
}

func (r *memRepo) Flags(context.Context, uuid.UUID, Stage) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(Snapshot, len(r.flags))
	for d, v := range r.flags {
		out[d] = v
	}
	return out, nil
}

func (r *memRepo) Apply(_ context.Context, decision Decision, clear []Department) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flags[decision.Department] = decision.Approved
	superseded := map[Department]bool{decision.Department: true}
	for _, dept := range clear {
		r.flags[dept] = false
		superseded[dept] = true
	}
	for i := range r.decisions {
		if superseded[r.decisions[i].Department] {
			r.decisions[i].Superseded = true
		}
	}
	r.decisions = append(r.decisions, decision)
	return nil
}

func (r *memRepo) Decisions(context.Context, uuid.UUID, Stage) ([]Decision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Decision(nil), r.decisions...), nil
}

func deptActor(dept Department) Actor {
	return Actor{UserID: uuid.New(), Roles: []string{string(dept)}}
}

func approveAll(t *testing.T, l *Ledger, quoteID uuid.UUID) {
	t.Helper()
	for _, dept := range Departments() {
		out, err := l.Approve(context.Background(), quoteID, StageQuote, dept, deptActor(dept))
		require.NoError(t, err)
		require.True(t, out.Applied, "approving %s", dept)
	}
}

func TestApproveInOrder(t *testing.T) {
	repo := newMemRepo()
	l := NewLedger(repo)
	quoteID := uuid.New()

	approveAll(t, l, quoteID)

	all, err := l.AllApproved(context.Background(), quoteID, StageQuote)
	require.NoError(t, err)
	require.True(t, all)
}

func TestApproveOutOfOrderIsRefused(t *testing.T) {
	repo := newMemRepo()
	l := NewLedger(repo)
	quoteID := uuid.New()

	cases := []struct {
		dept    Department
		missing Department
	}{
		{DeptLogistics, DeptProcurement},
		{DeptCustoms, DeptProcurement},
		{DeptSales, DeptLogistics},
		{DeptControl, DeptSales},
	}
	for _, tc := range cases {
		out, err := l.Approve(context.Background(), quoteID, StageQuote, tc.dept, deptActor(tc.dept))
		require.NoError(t, err)
		require.False(t, out.Applied, "approving %s out of order", tc.dept)
		require.Contains(t, out.Reason, string(tc.missing))
	}
	require.Empty(t, repo.decisions)
}

func TestSalesRequiresBothSiblings(t *testing.T) {
	repo := newMemRepo()
	l := NewLedger(repo)
	quoteID := uuid.New()

	for _, dept := range []Department{DeptProcurement, DeptLogistics} {
		out, err := l.Approve(context.Background(), quoteID, StageQuote, dept, deptActor(dept))
		require.NoError(t, err)
		require.True(t, out.Applied)
	}

	out, err := l.Approve(context.Background(), quoteID, StageQuote, DeptSales, deptActor(DeptSales))
	require.NoError(t, err)
	require.False(t, out.Applied)
	require.Contains(t, out.Reason, "customs")
}

func TestRejectCascadesDownstreamOnly(t *testing.T) {
	repo := newMemRepo()
	l := NewLedger(repo)
	quoteID := uuid.New()
	approveAll(t, l, quoteID)

	out, err := l.Reject(context.Background(), quoteID, StageQuote, DeptLogistics, deptActor(DeptLogistics), "route changed")
	require.NoError(t, err)
	require.True(t, out.Applied)

	snapshot, err := l.Snapshot(context.Background(), quoteID, StageQuote)
	require.NoError(t, err)
	require.True(t, snapshot[DeptProcurement], "upstream untouched")
	require.True(t, snapshot[DeptCustoms], "sibling untouched")
	require.False(t, snapshot[DeptLogistics])
	require.False(t, snapshot[DeptSales])
	require.False(t, snapshot[DeptControl])
}

func TestRejectKeepsDecisionTrail(t *testing.T) {
	repo := newMemRepo()
	l := NewLedger(repo)
	quoteID := uuid.New()
	approveAll(t, l, quoteID)

	_, err := l.Reject(context.Background(), quoteID, StageQuote, DeptProcurement, deptActor(DeptProcurement), "supplier withdrew")
	require.NoError(t, err)

	history, err := l.History(context.Background(), quoteID, StageQuote)
	require.NoError(t, err)
	require.Len(t, history, 6, "decisions are appended, never deleted")

	last := history[len(history)-1]
	require.False(t, last.Approved)
	require.Equal(t, "supplier withdrew", last.Comment)
	require.False(t, last.Superseded)
	for _, d := range history[:5] {
		require.True(t, d.Superseded)
	}
}

func TestApproveRequiresDepartmentRole(t *testing.T) {
	repo := newMemRepo()
	l := NewLedger(repo)
	quoteID := uuid.New()
	salesOnly := Actor{UserID: uuid.New(), Roles: []string{string(DeptSales)}}

	out, err := l.Approve(context.Background(), quoteID, StageQuote, DeptProcurement, salesOnly)
	require.NoError(t, err)
	require.False(t, out.Applied)
	require.Contains(t, out.Reason, "procurement")
	require.Empty(t, repo.decisions, "refused decision leaves no trace")

	snapshot, err := l.Snapshot(context.Background(), quoteID, StageQuote)
	require.NoError(t, err)
	require.False(t, snapshot[DeptProcurement])
}

func TestRejectRequiresDepartmentRole(t *testing.T) {
	repo := newMemRepo()
	l := NewLedger(repo)
	quoteID := uuid.New()
	approveAll(t, l, quoteID)

	salesOnly := Actor{UserID: uuid.New(), Roles: []string{string(DeptSales)}}
	out, err := l.Reject(context.Background(), quoteID, StageQuote, DeptLogistics, salesOnly, "not my call")
	require.NoError(t, err)
	require.False(t, out.Applied)
	require.Contains(t, out.Reason, "logistics")

	snapshot, err := l.Snapshot(context.Background(), quoteID, StageQuote)
	require.NoError(t, err)
	require.True(t, snapshot.AllApproved(), "no rollback cascade from a refused rejection")
}

func TestAdminMayDecideForAnyDepartment(t *testing.T) {
	repo := newMemRepo()
	l := NewLedger(repo)
	quoteID := uuid.New()
	admin := Actor{UserID: uuid.New(), Roles: []string{"admin"}}

	out, err := l.Approve(context.Background(), quoteID, StageQuote, DeptProcurement, admin)
	require.NoError(t, err)
	require.True(t, out.Applied)

	out, err = l.Reject(context.Background(), quoteID, StageQuote, DeptProcurement, admin, "pricing stale")
	require.NoError(t, err)
	require.True(t, out.Applied)
}

func TestRejectRequiresComment(t *testing.T) {
	repo := newMemRepo()
	l := NewLedger(repo)

	out, err := l.Reject(context.Background(), uuid.New(), StageQuote, DeptSales, deptActor(DeptSales), "  ")
	require.NoError(t, err)
	require.False(t, out.Applied)
	require.NotEmpty(t, out.Reason)
	require.Empty(t, repo.decisions)
}

func TestAdminOverrideBypassesPrerequisites(t *testing.T) {
	repo := newMemRepo()
	l := NewLedger(repo)
	quoteID := uuid.New()
	admin := Actor{UserID: uuid.New(), Roles: []string{"admin"}}

	out, err := l.Approve(context.Background(), quoteID, StageQuote, DeptControl, admin)
	require.NoError(t, err)
	require.True(t, out.Applied)

	history, err := l.History(context.Background(), quoteID, StageQuote)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.True(t, history[0].Override)
}

func TestAdminApproveInOrderIsNotAnOverride(t *testing.T) {
	repo := newMemRepo()
	l := NewLedger(repo)
	quoteID := uuid.New()
	admin := Actor{UserID: uuid.New(), Roles: []string{"admin"}}

	out, err := l.Approve(context.Background(), quoteID, StageQuote, DeptProcurement, admin)
	require.NoError(t, err)
	require.True(t, out.Applied)

	history, err := l.History(context.Background(), quoteID, StageQuote)
	require.NoError(t, err)
	require.False(t, history[0].Override)
}

func TestSnapshotAllApprovedFold(t *testing.T) {
	s := Snapshot{}
	require.False(t, s.AllApproved())

	for _, d := range Departments() {
		s[d] = true
	}
	require.True(t, s.AllApproved())

	s[DeptCustoms] = false
	require.False(t, s.AllApproved())
}

func TestDownstreamSets(t *testing.T) {
	require.Equal(t, []Department{DeptLogistics, DeptCustoms, DeptSales, DeptControl}, Downstream(DeptProcurement))
	require.Equal(t, []Department{DeptSales, DeptControl}, Downstream(DeptLogistics))
	require.Equal(t, []Department{DeptSales, DeptControl}, Downstream(DeptCustoms))
	require.Equal(t, []Department{DeptControl}, Downstream(DeptSales))
	require.Empty(t, Downstream(DeptControl))
}

func TestStagesAreIndependentPerLedgerCall(t *testing.T) {
	repo := newMemRepo()
	l := NewLedger(repo)
	quoteID := uuid.New()

	out, err := l.Approve(context.Background(), quoteID, StageSpecification, DeptProcurement, deptActor(DeptProcurement))
	require.NoError(t, err)
	require.True(t, out.Applied)
	require.Equal(t, StageSpecification, repo.decisions[0].Stage)
}
