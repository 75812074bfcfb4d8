package quotes

import (
	"github.com/google/uuid"
)

type CreateQuoteRequest struct {
	CompanyID uuid.UUID             `json:"company_id" validate:"required"`
	ClientID  uuid.UUID             `json:"client_id" validate:"required"`
	Currency  string                `json:"currency" validate:"required,len=3"`
	Defaults  map[string]any        `json:"defaults"`
	Products  []CreateProductRequest `json:"products" validate:"required,min=1,dive"`
}

type CreateProductRequest struct {
	Name      string         `json:"name" validate:"required,max=255"`
	Overrides map[string]any `json:"overrides"`
}

type UpdateQuoteRequest struct {
	Defaults *map[string]any         `json:"defaults,omitempty"`
	Products *[]CreateProductRequest `json:"products,omitempty" validate:"omitempty,min=1,dive"`
}

type ListQuotesRequest struct {
	Status *string `json:"status,omitempty"`
	Limit  int     `json:"limit" validate:"gte=0,lte=500"`
	Offset int     `json:"offset" validate:"gte=0"`
}

type TransitionRequest struct {
	To      string `json:"to" validate:"required"`
	Comment string `json:"comment,omitempty" validate:"max=2000"`
}

type DecisionRequest struct {
	Department string `json:"department" validate:"required"`
	Comment    string `json:"comment,omitempty" validate:"max=2000"`
}
