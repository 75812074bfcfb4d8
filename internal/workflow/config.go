package workflow

import (
	"fmt"
	"sort"
	"strings"
)

// Edge is one legal transition in the workflow graph.
type Edge struct {
	From           Status
	To             Status
	AllowedRoles   []string
	RequireComment bool
	// Auto marks edges fired by the system (the parallel join) rather than a
	// user action. Auto edges still carry the roles allowed to trigger the
	// completion that fires them.
	Auto bool
}

// Config is the immutable transition table. Build it once with NewConfig (or
// DefaultConfig) at process start and inject it into the Machine; it is safe
// for concurrent use.
type Config struct {
	edges map[Status]map[Status]Edge
}

// NewConfig validates and indexes an edge list. It rejects duplicate
// (from, to) pairs, edges out of terminal statuses, unknown statuses, edges
// that do not advance the status rank (which would break acyclicity), and
// graphs whose only entry point is not draft.
func NewConfig(edges []Edge) (*Config, error) {
	indexed := make(map[Status]map[Status]Edge, len(edges))
	hasIncoming := make(map[Status]bool)

	for _, e := range edges {
		if !e.From.Valid() {
			return nil, fmt.Errorf("workflow: edge from unknown status %q", e.From)
		}
		if !e.To.Valid() {
			return nil, fmt.Errorf("workflow: edge to unknown status %q", e.To)
		}
		if e.From.IsTerminal() {
			return nil, fmt.Errorf("workflow: edge out of terminal status %q", e.From)
		}
		if statusOrder[e.To] <= statusOrder[e.From] {
			return nil, fmt.Errorf("workflow: edge %s -> %s does not advance", e.From, e.To)
		}
		if len(e.AllowedRoles) == 0 {
			return nil, fmt.Errorf("workflow: edge %s -> %s has no allowed roles", e.From, e.To)
		}
		if _, dup := indexed[e.From][e.To]; dup {
			return nil, fmt.Errorf("workflow: duplicate edge %s -> %s", e.From, e.To)
		}
		if indexed[e.From] == nil {
			indexed[e.From] = make(map[Status]Edge)
		}
		roles := make([]string, len(e.AllowedRoles))
		for i, role := range e.AllowedRoles {
			roles[i] = strings.ToLower(strings.TrimSpace(role))
		}
		e.AllowedRoles = roles
		indexed[e.From][e.To] = e
		hasIncoming[e.To] = true
	}

	for from := range indexed {
		if from != StatusDraft && !hasIncoming[from] {
			return nil, fmt.Errorf("workflow: status %q is unreachable", from)
		}
	}
	return &Config{edges: indexed}, nil
}

// DefaultConfig builds the production transition table.
//
// Rejection is always a forward edge into the rejected terminal; re-work after
// a department rejection happens through the approval ledger rollback while
// the quote stays in its pending status. Cancellation is available to sales,
// management and admin from every status before signature; a signed quote can
// only proceed to deal.
func DefaultConfig() *Config {
	edges := []Edge{
		{From: StatusDraft, To: StatusPendingProcurement, AllowedRoles: []string{"sales", "admin"}},

		{From: StatusPendingProcurement, To: StatusPendingLogCustoms, AllowedRoles: []string{"procurement", "admin"}},
		{From: StatusPendingProcurement, To: StatusRejected, AllowedRoles: []string{"procurement", "admin"}, RequireComment: true},

		{From: StatusPendingLogCustoms, To: StatusPendingSalesReview, AllowedRoles: []string{"logistics", "customs", "admin"}, Auto: true},
		{From: StatusPendingLogCustoms, To: StatusRejected, AllowedRoles: []string{"logistics", "customs", "admin"}, RequireComment: true},

		{From: StatusPendingSalesReview, To: StatusPendingQuoteControl, AllowedRoles: []string{"sales", "admin"}},
		{From: StatusPendingSalesReview, To: StatusRejected, AllowedRoles: []string{"sales", "admin"}, RequireComment: true},

		{From: StatusPendingQuoteControl, To: StatusPendingApproval, AllowedRoles: []string{"control", "admin"}},
		{From: StatusPendingQuoteControl, To: StatusRejected, AllowedRoles: []string{"control", "admin"}, RequireComment: true},

		{From: StatusPendingApproval, To: StatusApproved, AllowedRoles: []string{"management", "admin"}},
		{From: StatusPendingApproval, To: StatusRejected, AllowedRoles: []string{"management", "admin"}, RequireComment: true},

		{From: StatusApproved, To: StatusSentToClient, AllowedRoles: []string{"sales", "admin"}},

		{From: StatusSentToClient, To: StatusNegotiation, AllowedRoles: []string{"sales", "admin"}},
		{From: StatusSentToClient, To: StatusPendingSpecControl, AllowedRoles: []string{"sales", "admin"}},
		{From: StatusSentToClient, To: StatusRejected, AllowedRoles: []string{"sales", "admin"}, RequireComment: true},

		{From: StatusNegotiation, To: StatusPendingSpecControl, AllowedRoles: []string{"sales", "admin"}},
		{From: StatusNegotiation, To: StatusRejected, AllowedRoles: []string{"sales", "admin"}, RequireComment: true},

		{From: StatusPendingSpecControl, To: StatusPendingSignature, AllowedRoles: []string{"control", "admin"}},
		{From: StatusPendingSpecControl, To: StatusRejected, AllowedRoles: []string{"control", "admin"}, RequireComment: true},

		{From: StatusPendingSignature, To: StatusSigned, AllowedRoles: []string{"sales", "management", "admin"}},
		{From: StatusPendingSignature, To: StatusRejected, AllowedRoles: []string{"sales", "management", "admin"}, RequireComment: true},

		{From: StatusSigned, To: StatusDeal, AllowedRoles: []string{"sales", "management", "admin"}},
	}
	for _, s := range AllStatuses() {
		if s.IsTerminal() || s == StatusSigned {
			continue
		}
		edges = append(edges, Edge{From: s, To: StatusCancelled, AllowedRoles: []string{"sales", "management", "admin"}})
	}

	cfg, err := NewConfig(edges)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Edge returns the edge between two statuses, if one exists.
func (c *Config) Edge(from, to Status) (Edge, bool) {
	e, ok := c.edges[from][to]
	return e, ok
}

// Targets lists every status reachable from a status in one step, in rank
// order, regardless of roles.
func (c *Config) Targets(from Status) []Status {
	targets := make([]Status, 0, len(c.edges[from]))
	for to := range c.edges[from] {
		targets = append(targets, to)
	}
	sort.Slice(targets, func(i, j int) bool {
		return statusOrder[targets[i]] < statusOrder[targets[j]]
	})
	return targets
}

// AllowedTargets lists the statuses the given role set may move a quote to
// from the given status.
func (c *Config) AllowedTargets(from Status, roles []string) []Status {
	var targets []Status
	for _, to := range c.Targets(from) {
		if edgeAllows(c.edges[from][to], roles) {
			targets = append(targets, to)
		}
	}
	return targets
}

func edgeAllows(e Edge, roles []string) bool {
	for _, role := range roles {
		role = strings.ToLower(strings.TrimSpace(role))
		for _, allowed := range e.AllowedRoles {
			if role == allowed {
				return true
			}
		}
	}
	return false
}
