package workflow

import (
	"fmt"
	"strings"
)

// Status is a quote's position in the department workflow.
type Status string

const (
	StatusDraft               Status = "draft"
	StatusPendingProcurement  Status = "pending_procurement"
	StatusPendingLogCustoms   Status = "pending_logistics_and_customs"
	StatusPendingSalesReview  Status = "pending_sales_review"
	StatusPendingQuoteControl Status = "pending_quote_control"
	StatusPendingApproval     Status = "pending_approval"
	StatusApproved            Status = "approved"
	StatusSentToClient        Status = "sent_to_client"
	StatusNegotiation         Status = "negotiation"
	StatusPendingSpecControl  Status = "pending_spec_control"
	StatusPendingSignature    Status = "pending_signature"
	StatusSigned              Status = "signed"
	StatusDeal                Status = "deal"
	StatusRejected            Status = "rejected"
	StatusCancelled           Status = "cancelled"
)

// statusOrder assigns every status a topological rank. Every edge in the
// transition graph goes from a lower rank to a strictly higher one, which
// keeps the graph acyclic by construction. The two failure terminals share
// the highest ranks.
var statusOrder = map[Status]int{
	StatusDraft:               0,
	StatusPendingProcurement:  1,
	StatusPendingLogCustoms:   2,
	StatusPendingSalesReview:  3,
	StatusPendingQuoteControl: 4,
	StatusPendingApproval:     5,
	StatusApproved:            6,
	StatusSentToClient:        7,
	StatusNegotiation:         8,
	StatusPendingSpecControl:  9,
	StatusPendingSignature:    10,
	StatusSigned:              11,
	StatusDeal:                12,
	StatusRejected:            13,
	StatusCancelled:           14,
}

// AllStatuses lists every workflow status in rank order.
func AllStatuses() []Status {
	return []Status{
		StatusDraft, StatusPendingProcurement, StatusPendingLogCustoms,
		StatusPendingSalesReview, StatusPendingQuoteControl, StatusPendingApproval,
		StatusApproved, StatusSentToClient, StatusNegotiation,
		StatusPendingSpecControl, StatusPendingSignature, StatusSigned,
		StatusDeal, StatusRejected, StatusCancelled,
	}
}

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := statusOrder[s]; !ok {
		return "", fmt.Errorf("workflow: unknown status %q", raw)
	}
	return s, nil
}

// IsTerminal reports whether a status ends the workflow.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusDeal, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// Valid reports whether the status is a member of the closed set.
func (s Status) Valid() bool {
	_, ok := statusOrder[s]
	return ok
}

func (s Status) String() string { return string(s) }
