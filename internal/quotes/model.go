package quotes

import (
	"time"

	"github.com/google/uuid"

	"github.com/meridian-trade/meridian/internal/fx"
	"github.com/meridian-trade/meridian/internal/quotes/calc"
	"github.com/meridian-trade/meridian/internal/workflow"
)

// Quote is one commercial quotation: a client, a currency, quote-level
// calculation defaults and a set of product lines. Calculation results are
// stored as a snapshot next to the inputs that produced them.
type Quote struct {
	ID           uuid.UUID         `json:"id"`
	Number       string            `json:"number"`
	CompanyID    uuid.UUID         `json:"company_id"`
	ClientID     uuid.UUID         `json:"client_id"`
	Currency     fx.Currency       `json:"currency"`
	Status       workflow.Status   `json:"status"`
	Defaults     map[string]any    `json:"defaults"`
	Products     []Product         `json:"products,omitempty"`
	Results      *calc.QuoteResult `json:"results,omitempty"`
	CalculatedAt *time.Time        `json:"calculated_at,omitempty"`
	CreatedBy    uuid.UUID         `json:"created_by"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Product is one product line with its variable overrides and, once the
// engine has run, its per-product result snapshot.
type Product struct {
	ID        uuid.UUID           `json:"id"`
	QuoteID   uuid.UUID           `json:"quote_id"`
	Position  int                 `json:"position"`
	Name      string              `json:"name"`
	Overrides map[string]any      `json:"overrides"`
	Result    *calc.ProductResult `json:"result,omitempty"`
}

// Editable reports whether the quote's inputs may still change. Departments
// fill in their variables while the quote is in draft or under review; from
// management approval onward the inputs are frozen.
func (q *Quote) Editable() bool {
	switch q.Status {
	case workflow.StatusDraft, workflow.StatusPendingProcurement,
		workflow.StatusPendingLogCustoms, workflow.StatusPendingSalesReview,
		workflow.StatusPendingQuoteControl:
		return true
	}
	return false
}
