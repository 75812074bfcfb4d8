package specs

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-trade/meridian/internal/fx"
)

// Specification is the contractual document generated after a quote clears
// the department gate: a numbered snapshot of the quote's totals at signature
// time.
type Specification struct {
	ID           uuid.UUID       `json:"id"`
	QuoteID      uuid.UUID       `json:"quote_id"`
	Number       string          `json:"number"`
	Currency     fx.Currency     `json:"currency"`
	TotalExclVAT decimal.Decimal `json:"total_excl_vat"`
	TotalInclVAT decimal.Decimal `json:"total_incl_vat"`
	TotalProfit  decimal.Decimal `json:"total_profit"`
	Status       SpecStatus      `json:"status"`
	CreatedBy    uuid.UUID       `json:"created_by"`
	CreatedAt    time.Time       `json:"created_at"`
	SignedAt     *time.Time      `json:"signed_at,omitempty"`
}

// SpecStatus tracks a specification from draft to signature.
type SpecStatus string

const (
	SpecDraft  SpecStatus = "draft"
	SpecSigned SpecStatus = "signed"
)

// PaymentKind names the five contract payment milestones.
type PaymentKind string

const (
	PayAdvance  PaymentKind = "advance"
	PayShipment PaymentKind = "shipment"
	PayCustoms  PaymentKind = "customs"
	PayDelivery PaymentKind = "delivery"
	PayFinal    PaymentKind = "final"
)

// PaymentKinds lists the milestone kinds in contract order.
func PaymentKinds() []PaymentKind {
	return []PaymentKind{PayAdvance, PayShipment, PayCustoms, PayDelivery, PayFinal}
}

// PaymentMilestone is one payment step of a deal.
type PaymentMilestone struct {
	Kind    PaymentKind     `json:"kind"`
	Percent decimal.Decimal `json:"percent"`
	Amount  decimal.Decimal `json:"amount"`
	DueAt   *time.Time      `json:"due_at,omitempty"`
	PaidAt  *time.Time      `json:"paid_at,omitempty"`
}

// LogisticsKind names the tracked shipment milestones.
type LogisticsKind string

const (
	LogPickup    LogisticsKind = "pickup"
	LogAtHub     LogisticsKind = "at_hub"
	LogCleared   LogisticsKind = "customs_cleared"
	LogDelivered LogisticsKind = "delivered"
)

// LogisticsKinds lists the shipment milestones in route order.
func LogisticsKinds() []LogisticsKind {
	return []LogisticsKind{LogPickup, LogAtHub, LogCleared, LogDelivered}
}

// LogisticsMilestone is one shipment step of a deal.
type LogisticsMilestone struct {
	Kind       LogisticsKind `json:"kind"`
	OccurredAt *time.Time    `json:"occurred_at,omitempty"`
}

// DealStatus tracks a deal from activation to completion.
type DealStatus string

const (
	DealActive    DealStatus = "active"
	DealCompleted DealStatus = "completed"
	DealCancelled DealStatus = "cancelled"
)

// Deal is the executed contract: the specification plus payment and shipment
// milestone tracking.
type Deal struct {
	ID              uuid.UUID            `json:"id"`
	SpecificationID uuid.UUID            `json:"specification_id"`
	QuoteID         uuid.UUID            `json:"quote_id"`
	Number          string               `json:"number"`
	Currency        fx.Currency          `json:"currency"`
	Payments        []PaymentMilestone   `json:"payments"`
	Logistics       []LogisticsMilestone `json:"logistics"`
	Status          DealStatus           `json:"status"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// Complete reports whether every payment is settled and the goods are
// delivered.
func (d *Deal) Complete() bool {
	for _, p := range d.Payments {
		if p.PaidAt == nil {
			return false
		}
	}
	for _, l := range d.Logistics {
		if l.Kind == LogDelivered && l.OccurredAt == nil {
			return false
		}
	}
	return true
}
