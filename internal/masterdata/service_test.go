package masterdata_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-trade/meridian/internal/fx"
	"github.com/meridian-trade/meridian/internal/masterdata"
	"github.com/meridian-trade/meridian/internal/platform/httpx"
	"github.com/meridian-trade/meridian/internal/shared"
)

type memRepo struct {
	mu        sync.Mutex
	suppliers map[uuid.UUID]masterdata.Supplier
	items     map[uuid.UUID]masterdata.CatalogItem
}

func newMemRepo() *memRepo {
	return &memRepo{
		suppliers: make(map[uuid.UUID]masterdata.Supplier),
		items:     make(map[uuid.UUID]masterdata.CatalogItem),
	}
}

func (m *memRepo) ListCompanies(context.Context, masterdata.ListFilters) ([]masterdata.Company, int, error) {
	return nil, 0, nil
}
func (m *memRepo) GetCompany(context.Context, uuid.UUID) (masterdata.Company, error) {
	return masterdata.Company{}, shared.ErrNotFound
}
func (m *memRepo) CreateCompany(_ context.Context, c masterdata.Company) (masterdata.Company, error) {
	c.ID = uuid.New()
	return c, nil
}
func (m *memRepo) UpdateCompany(context.Context, uuid.UUID, masterdata.Company) error { return nil }
func (m *memRepo) DeleteCompany(context.Context, uuid.UUID) error                     { return nil }

func (m *memRepo) ListClients(context.Context, masterdata.ListFilters) ([]masterdata.Client, int, error) {
	return nil, 0, nil
}
func (m *memRepo) GetClient(context.Context, uuid.UUID) (masterdata.Client, error) {
	return masterdata.Client{}, shared.ErrNotFound
}
func (m *memRepo) CreateClient(_ context.Context, c masterdata.Client) (masterdata.Client, error) {
	c.ID = uuid.New()
	return c, nil
}
func (m *memRepo) UpdateClient(context.Context, uuid.UUID, masterdata.Client) error { return nil }
func (m *memRepo) DeleteClient(context.Context, uuid.UUID) error                    { return nil }

func (m *memRepo) ListSuppliers(_ context.Context, filters masterdata.ListFilters) ([]masterdata.Supplier, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []masterdata.Supplier
	for _, s := range m.suppliers {
		if filters.IsActive != nil && s.IsActive != *filters.IsActive {
			continue
		}
		out = append(out, s)
	}
	return out, len(out), nil
}

func (m *memRepo) GetSupplier(_ context.Context, id uuid.UUID) (masterdata.Supplier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.suppliers[id]
	if !ok {
		return masterdata.Supplier{}, shared.ErrNotFound
	}
	return s, nil
}

func (m *memRepo) CreateSupplier(_ context.Context, s masterdata.Supplier) (masterdata.Supplier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = uuid.New()
	m.suppliers[s.ID] = s
	return s, nil
}

func (m *memRepo) UpdateSupplier(_ context.Context, id uuid.UUID, s masterdata.Supplier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.suppliers[id]; !ok {
		return shared.ErrNotFound
	}
	s.ID = id
	m.suppliers[id] = s
	return nil
}

func (m *memRepo) DeleteSupplier(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.suppliers[id]
	if !ok {
		return shared.ErrNotFound
	}
	s.IsActive = false
	m.suppliers[id] = s
	return nil
}

func (m *memRepo) ListCatalogItems(context.Context, masterdata.ListFilters) ([]masterdata.CatalogItem, int, error) {
	return nil, 0, nil
}

func (m *memRepo) GetCatalogItem(_ context.Context, id uuid.UUID) (masterdata.CatalogItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return masterdata.CatalogItem{}, shared.ErrNotFound
	}
	return item, nil
}

func (m *memRepo) CreateCatalogItem(_ context.Context, item masterdata.CatalogItem) (masterdata.CatalogItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item.ID = uuid.New()
	m.items[item.ID] = item
	return item, nil
}

func (m *memRepo) UpdateCatalogItem(context.Context, uuid.UUID, masterdata.CatalogItem) error {
	return nil
}
func (m *memRepo) DeleteCatalogItem(context.Context, uuid.UUID) error { return nil }

func TestCreateSupplierValidation(t *testing.T) {
	svc := masterdata.NewService(newMemRepo())

	_, err := svc.CreateSupplier(context.Background(), masterdata.Supplier{Name: "Hanwha Trading"})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.CreateSupplier(context.Background(), masterdata.Supplier{
		Code: "HANWHA", Name: "Hanwha Trading", Currency: fx.Currency("XXX"),
	})
	require.ErrorIs(t, err, httpx.ErrValidation)

	supplier, err := svc.CreateSupplier(context.Background(), masterdata.Supplier{
		Code: "HANWHA", Name: "Hanwha Trading", Country: "KR", Currency: fx.Currency("USD"), IsActive: true,
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, supplier.ID)
}

func TestDeactivateSupplier(t *testing.T) {
	repo := newMemRepo()
	svc := masterdata.NewService(repo)

	supplier, err := svc.CreateSupplier(context.Background(), masterdata.Supplier{
		Code: "ZENITH", Name: "Zenith Components", Currency: fx.Currency("CNY"), IsActive: true,
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteSupplier(context.Background(), supplier.ID))

	got, err := svc.GetSupplier(context.Background(), supplier.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)

	active := true
	listed, _, err := svc.ListSuppliers(context.Background(), masterdata.ListFilters{IsActive: &active})
	require.NoError(t, err)
	require.Empty(t, listed)
}

func TestCreateCatalogItemValidation(t *testing.T) {
	svc := masterdata.NewService(newMemRepo())
	supplierID := uuid.New()

	_, err := svc.CreateCatalogItem(context.Background(), masterdata.CatalogItem{
		SKU: "PMP-100", Name: "Centrifugal pump", Currency: fx.Currency("EUR"),
	})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.CreateCatalogItem(context.Background(), masterdata.CatalogItem{
		SKU: "PMP-100", Name: "Centrifugal pump", SupplierID: supplierID,
		Currency: fx.Currency("EUR"), BasePrice: decimal.NewFromInt(-1),
	})
	require.ErrorIs(t, err, httpx.ErrValidation)

	item, err := svc.CreateCatalogItem(context.Background(), masterdata.CatalogItem{
		SKU: "PMP-100", Name: "Centrifugal pump", SupplierID: supplierID,
		Currency: fx.Currency("EUR"), BasePrice: decimal.NewFromInt(1000),
		WeightKg: decimal.NewFromInt(120), IsActive: true,
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, item.ID)
}
