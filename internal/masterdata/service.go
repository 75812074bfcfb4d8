package masterdata

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/meridian-trade/meridian/internal/fx"
	"github.com/meridian-trade/meridian/internal/platform/httpx"
)

// service implements Service interface
type service struct {
	repo Repository
}

// NewService creates a new master data service
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// Company operations
func (s *service) ListCompanies(ctx context.Context, filters ListFilters) ([]Company, int, error) {
	return s.repo.ListCompanies(ctx, normalize(filters))
}

func (s *service) GetCompany(ctx context.Context, id uuid.UUID) (Company, error) {
	return s.repo.GetCompany(ctx, id)
}

func (s *service) CreateCompany(ctx context.Context, company Company) (Company, error) {
	if err := validateCompany(company); err != nil {
		return Company{}, err
	}
	return s.repo.CreateCompany(ctx, company)
}

func (s *service) UpdateCompany(ctx context.Context, id uuid.UUID, company Company) error {
	if err := validateCompany(company); err != nil {
		return err
	}
	return s.repo.UpdateCompany(ctx, id, company)
}

func (s *service) DeleteCompany(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteCompany(ctx, id)
}

// Client operations
func (s *service) ListClients(ctx context.Context, filters ListFilters) ([]Client, int, error) {
	return s.repo.ListClients(ctx, normalize(filters))
}

func (s *service) GetClient(ctx context.Context, id uuid.UUID) (Client, error) {
	return s.repo.GetClient(ctx, id)
}

func (s *service) CreateClient(ctx context.Context, client Client) (Client, error) {
	if err := validateClient(client); err != nil {
		return Client{}, err
	}
	return s.repo.CreateClient(ctx, client)
}

func (s *service) UpdateClient(ctx context.Context, id uuid.UUID, client Client) error {
	if err := validateClient(client); err != nil {
		return err
	}
	return s.repo.UpdateClient(ctx, id, client)
}

func (s *service) DeleteClient(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteClient(ctx, id)
}

// Supplier operations
func (s *service) ListSuppliers(ctx context.Context, filters ListFilters) ([]Supplier, int, error) {
	return s.repo.ListSuppliers(ctx, normalize(filters))
}

func (s *service) GetSupplier(ctx context.Context, id uuid.UUID) (Supplier, error) {
	return s.repo.GetSupplier(ctx, id)
}

func (s *service) CreateSupplier(ctx context.Context, supplier Supplier) (Supplier, error) {
	if err := validateSupplier(supplier); err != nil {
		return Supplier{}, err
	}
	return s.repo.CreateSupplier(ctx, supplier)
}

func (s *service) UpdateSupplier(ctx context.Context, id uuid.UUID, supplier Supplier) error {
	if err := validateSupplier(supplier); err != nil {
		return err
	}
	return s.repo.UpdateSupplier(ctx, id, supplier)
}

func (s *service) DeleteSupplier(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteSupplier(ctx, id)
}

// Catalog operations
func (s *service) ListCatalogItems(ctx context.Context, filters ListFilters) ([]CatalogItem, int, error) {
	return s.repo.ListCatalogItems(ctx, normalize(filters))
}

func (s *service) GetCatalogItem(ctx context.Context, id uuid.UUID) (CatalogItem, error) {
	return s.repo.GetCatalogItem(ctx, id)
}

func (s *service) CreateCatalogItem(ctx context.Context, item CatalogItem) (CatalogItem, error) {
	if err := validateCatalogItem(item); err != nil {
		return CatalogItem{}, err
	}
	return s.repo.CreateCatalogItem(ctx, item)
}

func (s *service) UpdateCatalogItem(ctx context.Context, id uuid.UUID, item CatalogItem) error {
	if err := validateCatalogItem(item); err != nil {
		return err
	}
	return s.repo.UpdateCatalogItem(ctx, id, item)
}

func (s *service) DeleteCatalogItem(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteCatalogItem(ctx, id)
}

func normalize(filters ListFilters) ListFilters {
	if filters.Limit <= 0 || filters.Limit > 500 {
		filters.Limit = 50
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}
	filters.Search = strings.TrimSpace(filters.Search)
	return filters
}

func validateCompany(c Company) error {
	if strings.TrimSpace(c.Code) == "" {
		return fmt.Errorf("company code is required: %w", httpx.ErrValidation)
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("company name is required: %w", httpx.ErrValidation)
	}
	return nil
}

func validateClient(c Client) error {
	if strings.TrimSpace(c.Code) == "" {
		return fmt.Errorf("client code is required: %w", httpx.ErrValidation)
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("client name is required: %w", httpx.ErrValidation)
	}
	if c.Email != "" && !strings.Contains(c.Email, "@") {
		return fmt.Errorf("client email is malformed: %w", httpx.ErrValidation)
	}
	return nil
}

func validateSupplier(s Supplier) error {
	if strings.TrimSpace(s.Code) == "" {
		return fmt.Errorf("supplier code is required: %w", httpx.ErrValidation)
	}
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("supplier name is required: %w", httpx.ErrValidation)
	}
	if _, err := fx.ParseCurrency(string(s.Currency)); err != nil {
		return fmt.Errorf("supplier currency: %w", httpx.ErrValidation)
	}
	return nil
}

func validateCatalogItem(i CatalogItem) error {
	if strings.TrimSpace(i.SKU) == "" {
		return fmt.Errorf("catalog item sku is required: %w", httpx.ErrValidation)
	}
	if strings.TrimSpace(i.Name) == "" {
		return fmt.Errorf("catalog item name is required: %w", httpx.ErrValidation)
	}
	if i.SupplierID == uuid.Nil {
		return fmt.Errorf("catalog item supplier is required: %w", httpx.ErrValidation)
	}
	if _, err := fx.ParseCurrency(string(i.Currency)); err != nil {
		return fmt.Errorf("catalog item currency: %w", httpx.ErrValidation)
	}
	if i.BasePrice.IsNegative() {
		return fmt.Errorf("catalog item base price must not be negative: %w", httpx.ErrValidation)
	}
	if i.WeightKg.IsNegative() {
		return fmt.Errorf("catalog item weight must not be negative: %w", httpx.ErrValidation)
	}
	return nil
}
