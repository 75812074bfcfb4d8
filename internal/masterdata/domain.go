package masterdata

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-trade/meridian/internal/fx"
)

// ListFilters represents standard list page filters.
type ListFilters struct {
	Limit    int
	Offset   int
	Search   string
	IsActive *bool

	// Entity specific filters
	SupplierID *uuid.UUID
	Country    string
}

// Company is a selling legal entity on our side of the contract.
type Company struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Country   string    `json:"country"`
	Address   string    `json:"address"`
	TaxID     string    `json:"tax_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Client is a buyer company quotes are issued to.
type Client struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Country   string    `json:"country"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Supplier is a vendor goods are purchased from.
type Supplier struct {
	ID        uuid.UUID   `json:"id"`
	Code      string      `json:"code"`
	Name      string      `json:"name"`
	Country   string      `json:"country"`
	Currency  fx.Currency `json:"currency"`
	Email     string      `json:"email"`
	IsActive  bool        `json:"is_active"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// CatalogItem is a purchasable product template. Quote lines start from a
// catalog item and override its variables per deal.
type CatalogItem struct {
	ID         uuid.UUID       `json:"id"`
	SKU        string          `json:"sku"`
	Name       string          `json:"name"`
	SupplierID uuid.UUID       `json:"supplier_id"`
	Currency   fx.Currency     `json:"currency"`
	BasePrice  decimal.Decimal `json:"base_price"`
	WeightKg   decimal.Decimal `json:"weight_kg"`
	VATPercent decimal.Decimal `json:"vat_percent"`
	IsActive   bool            `json:"is_active"`
	DeletedAt  *time.Time      `json:"deleted_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Repository interface for master data operations.
type Repository interface {
	ListCompanies(ctx context.Context, filters ListFilters) ([]Company, int, error)
	GetCompany(ctx context.Context, id uuid.UUID) (Company, error)
	CreateCompany(ctx context.Context, company Company) (Company, error)
	UpdateCompany(ctx context.Context, id uuid.UUID, company Company) error
	DeleteCompany(ctx context.Context, id uuid.UUID) error

	ListClients(ctx context.Context, filters ListFilters) ([]Client, int, error)
	GetClient(ctx context.Context, id uuid.UUID) (Client, error)
	CreateClient(ctx context.Context, client Client) (Client, error)
	UpdateClient(ctx context.Context, id uuid.UUID, client Client) error
	DeleteClient(ctx context.Context, id uuid.UUID) error

	ListSuppliers(ctx context.Context, filters ListFilters) ([]Supplier, int, error)
	GetSupplier(ctx context.Context, id uuid.UUID) (Supplier, error)
	CreateSupplier(ctx context.Context, supplier Supplier) (Supplier, error)
	UpdateSupplier(ctx context.Context, id uuid.UUID, supplier Supplier) error
	DeleteSupplier(ctx context.Context, id uuid.UUID) error

	ListCatalogItems(ctx context.Context, filters ListFilters) ([]CatalogItem, int, error)
	GetCatalogItem(ctx context.Context, id uuid.UUID) (CatalogItem, error)
	CreateCatalogItem(ctx context.Context, item CatalogItem) (CatalogItem, error)
	UpdateCatalogItem(ctx context.Context, id uuid.UUID, item CatalogItem) error
	DeleteCatalogItem(ctx context.Context, id uuid.UUID) error
}

// Service interface for master data business logic.
type Service interface {
	ListCompanies(ctx context.Context, filters ListFilters) ([]Company, int, error)
	GetCompany(ctx context.Context, id uuid.UUID) (Company, error)
	CreateCompany(ctx context.Context, company Company) (Company, error)
	UpdateCompany(ctx context.Context, id uuid.UUID, company Company) error
	DeleteCompany(ctx context.Context, id uuid.UUID) error

	ListClients(ctx context.Context, filters ListFilters) ([]Client, int, error)
	GetClient(ctx context.Context, id uuid.UUID) (Client, error)
	CreateClient(ctx context.Context, client Client) (Client, error)
	UpdateClient(ctx context.Context, id uuid.UUID, client Client) error
	DeleteClient(ctx context.Context, id uuid.UUID) error

	ListSuppliers(ctx context.Context, filters ListFilters) ([]Supplier, int, error)
	GetSupplier(ctx context.Context, id uuid.UUID) (Supplier, error)
	CreateSupplier(ctx context.Context, supplier Supplier) (Supplier, error)
	UpdateSupplier(ctx context.Context, id uuid.UUID, supplier Supplier) error
	DeleteSupplier(ctx context.Context, id uuid.UUID) error

	ListCatalogItems(ctx context.Context, filters ListFilters) ([]CatalogItem, int, error)
	GetCatalogItem(ctx context.Context, id uuid.UUID) (CatalogItem, error)
	CreateCatalogItem(ctx context.Context, item CatalogItem) (CatalogItem, error)
	UpdateCatalogItem(ctx context.Context, id uuid.UUID, item CatalogItem) error
	DeleteCatalogItem(ctx context.Context, id uuid.UUID) error
}
