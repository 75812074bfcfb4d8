package masterdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-trade/meridian/internal/fx"
	"github.com/meridian-trade/meridian/internal/shared"
)

// repo implements Repository interface
type repo struct {
	db *pgxpool.Pool
}

// NewRepository creates a new master data repository
func NewRepository(db *pgxpool.Pool) Repository {
	return &repo{db: db}
}

// mapUnique converts unique constraint violations on codes and SKUs into the
// conflict sentinel so handlers can answer 409.
func mapUnique(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.ErrConflict
	}
	return err
}

// Company operations
func (r *repo) ListCompanies(ctx context.Context, filters ListFilters) ([]Company, int, error) {
	where, args := searchClause(filters, "code", "name")
	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM companies`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("masterdata: count companies: %w", err)
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, code, name, country, address, tax_id, created_at, updated_at FROM companies`+
			where+pageClause(filters, len(args)), append(args, filters.Limit, filters.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("masterdata: list companies: %w", err)
	}
	defer rows.Close()

	var companies []Company
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.Country, &c.Address, &c.TaxID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		companies = append(companies, c)
	}
	return companies, total, rows.Err()
}

func (r *repo) GetCompany(ctx context.Context, id uuid.UUID) (Company, error) {
	var c Company
	err := r.db.QueryRow(ctx,
		`SELECT id, code, name, country, address, tax_id, created_at, updated_at FROM companies WHERE id = $1`, id,
	).Scan(&c.ID, &c.Code, &c.Name, &c.Country, &c.Address, &c.TaxID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Company{}, shared.ErrNotFound
	}
	return c, err
}

func (r *repo) CreateCompany(ctx context.Context, company Company) (Company, error) {
	company.ID = uuid.New()
	now := time.Now()
	_, err := r.db.Exec(ctx, `
		INSERT INTO companies (id, code, name, country, address, tax_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		company.ID, company.Code, company.Name, company.Country, company.Address, company.TaxID, now, now)
	if err != nil {
		return Company{}, fmt.Errorf("masterdata: create company: %w", mapUnique(err))
	}
	company.CreatedAt, company.UpdatedAt = now, now
	return company, nil
}

func (r *repo) UpdateCompany(ctx context.Context, id uuid.UUID, company Company) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE companies SET code = $2, name = $3, country = $4, address = $5, tax_id = $6, updated_at = $7
		WHERE id = $1`,
		id, company.Code, company.Name, company.Country, company.Address, company.TaxID, time.Now())
	if err != nil {
		return fmt.Errorf("masterdata: update company: %w", mapUnique(err))
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repo) DeleteCompany(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM companies WHERE id = $1`, id)
	return err
}

// Client operations
func (r *repo) ListClients(ctx context.Context, filters ListFilters) ([]Client, int, error) {
	where, args := searchClause(filters, "code", "name")
	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM clients`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("masterdata: count clients: %w", err)
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, code, name, country, email, phone, address, is_active, created_at, updated_at FROM clients`+
			where+pageClause(filters, len(args)), append(args, filters.Limit, filters.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("masterdata: list clients: %w", err)
	}
	defer rows.Close()

	var clients []Client
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.Country, &c.Email, &c.Phone, &c.Address, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		clients = append(clients, c)
	}
	return clients, total, rows.Err()
}

func (r *repo) GetClient(ctx context.Context, id uuid.UUID) (Client, error) {
	var c Client
	err := r.db.QueryRow(ctx,
		`SELECT id, code, name, country, email, phone, address, is_active, created_at, updated_at FROM clients WHERE id = $1`, id,
	).Scan(&c.ID, &c.Code, &c.Name, &c.Country, &c.Email, &c.Phone, &c.Address, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Client{}, shared.ErrNotFound
	}
	return c, err
}

func (r *repo) CreateClient(ctx context.Context, client Client) (Client, error) {
	client.ID = uuid.New()
	now := time.Now()
	_, err := r.db.Exec(ctx, `
		INSERT INTO clients (id, code, name, country, email, phone, address, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		client.ID, client.Code, client.Name, client.Country, client.Email, client.Phone, client.Address, client.IsActive, now, now)
	if err != nil {
		return Client{}, fmt.Errorf("masterdata: create client: %w", mapUnique(err))
	}
	client.CreatedAt, client.UpdatedAt = now, now
	return client, nil
}

func (r *repo) UpdateClient(ctx context.Context, id uuid.UUID, client Client) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE clients SET code = $2, name = $3, country = $4, email = $5, phone = $6, address = $7, is_active = $8, updated_at = $9
		WHERE id = $1`,
		id, client.Code, client.Name, client.Country, client.Email, client.Phone, client.Address, client.IsActive, time.Now())
	if err != nil {
		return fmt.Errorf("masterdata: update client: %w", mapUnique(err))
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repo) DeleteClient(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `UPDATE clients SET is_active = false, updated_at = now() WHERE id = $1`, id)
	return err
}

// Supplier operations
func (r *repo) ListSuppliers(ctx context.Context, filters ListFilters) ([]Supplier, int, error) {
	where, args := searchClause(filters, "code", "name")
	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM suppliers`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("masterdata: count suppliers: %w", err)
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, code, name, country, currency, email, is_active, created_at, updated_at FROM suppliers`+
			where+pageClause(filters, len(args)), append(args, filters.Limit, filters.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("masterdata: list suppliers: %w", err)
	}
	defer rows.Close()

	var suppliers []Supplier
	for rows.Next() {
		var s Supplier
		var currency string
		if err := rows.Scan(&s.ID, &s.Code, &s.Name, &s.Country, &currency, &s.Email, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, 0, err
		}
		s.Currency = fx.Currency(currency)
		suppliers = append(suppliers, s)
	}
	return suppliers, total, rows.Err()
}

func (r *repo) GetSupplier(ctx context.Context, id uuid.UUID) (Supplier, error) {
	var s Supplier
	var currency string
	err := r.db.QueryRow(ctx,
		`SELECT id, code, name, country, currency, email, is_active, created_at, updated_at FROM suppliers WHERE id = $1`, id,
	).Scan(&s.ID, &s.Code, &s.Name, &s.Country, &currency, &s.Email, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, shared.ErrNotFound
	}
	s.Currency = fx.Currency(currency)
	return s, err
}

func (r *repo) CreateSupplier(ctx context.Context, supplier Supplier) (Supplier, error) {
	supplier.ID = uuid.New()
	now := time.Now()
	_, err := r.db.Exec(ctx, `
		INSERT INTO suppliers (id, code, name, country, currency, email, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		supplier.ID, supplier.Code, supplier.Name, supplier.Country, string(supplier.Currency), supplier.Email, supplier.IsActive, now, now)
	if err != nil {
		return Supplier{}, fmt.Errorf("masterdata: create supplier: %w", mapUnique(err))
	}
	supplier.CreatedAt, supplier.UpdatedAt = now, now
	return supplier, nil
}

func (r *repo) UpdateSupplier(ctx context.Context, id uuid.UUID, supplier Supplier) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE suppliers SET code = $2, name = $3, country = $4, currency = $5, email = $6, is_active = $7, updated_at = $8
		WHERE id = $1`,
		id, supplier.Code, supplier.Name, supplier.Country, string(supplier.Currency), supplier.Email, supplier.IsActive, time.Now())
	if err != nil {
		return fmt.Errorf("masterdata: update supplier: %w", mapUnique(err))
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repo) DeleteSupplier(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `UPDATE suppliers SET is_active = false, updated_at = now() WHERE id = $1`, id)
	return err
}

// Catalog operations
func (r *repo) ListCatalogItems(ctx context.Context, filters ListFilters) ([]CatalogItem, int, error) {
	where, args := searchClause(filters, "sku", "name")
	if filters.SupplierID != nil {
		if where == "" {
			where = fmt.Sprintf(" WHERE supplier_id = $%d", len(args)+1)
		} else {
			where += fmt.Sprintf(" AND supplier_id = $%d", len(args)+1)
		}
		args = append(args, *filters.SupplierID)
	}
	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM catalog_items`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("masterdata: count catalog items: %w", err)
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, sku, name, supplier_id, currency, base_price, weight_kg, vat_percent, is_active, deleted_at, created_at, updated_at FROM catalog_items`+
			where+pageClause(filters, len(args)), append(args, filters.Limit, filters.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("masterdata: list catalog items: %w", err)
	}
	defer rows.Close()

	var items []CatalogItem
	for rows.Next() {
		item, err := scanCatalogItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

func (r *repo) GetCatalogItem(ctx context.Context, id uuid.UUID) (CatalogItem, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, sku, name, supplier_id, currency, base_price, weight_kg, vat_percent, is_active, deleted_at, created_at, updated_at
		FROM catalog_items WHERE id = $1`, id)
	item, err := scanCatalogItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return CatalogItem{}, shared.ErrNotFound
	}
	return item, err
}

func (r *repo) CreateCatalogItem(ctx context.Context, item CatalogItem) (CatalogItem, error) {
	item.ID = uuid.New()
	now := time.Now()
	_, err := r.db.Exec(ctx, `
		INSERT INTO catalog_items (id, sku, name, supplier_id, currency, base_price, weight_kg, vat_percent, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		item.ID, item.SKU, item.Name, item.SupplierID, string(item.Currency),
		item.BasePrice, item.WeightKg, item.VATPercent, item.IsActive, now, now)
	if err != nil {
		return CatalogItem{}, fmt.Errorf("masterdata: create catalog item: %w", mapUnique(err))
	}
	item.CreatedAt, item.UpdatedAt = now, now
	return item, nil
}

func (r *repo) UpdateCatalogItem(ctx context.Context, id uuid.UUID, item CatalogItem) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE catalog_items SET sku = $2, name = $3, supplier_id = $4, currency = $5, base_price = $6, weight_kg = $7, vat_percent = $8, is_active = $9, updated_at = $10
		WHERE id = $1 AND deleted_at IS NULL`,
		id, item.SKU, item.Name, item.SupplierID, string(item.Currency),
		item.BasePrice, item.WeightKg, item.VATPercent, item.IsActive, time.Now())
	if err != nil {
		return fmt.Errorf("masterdata: update catalog item: %w", mapUnique(err))
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repo) DeleteCatalogItem(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `UPDATE catalog_items SET deleted_at = now(), is_active = false WHERE id = $1 AND deleted_at IS NULL`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCatalogItem(row rowScanner) (CatalogItem, error) {
	var item CatalogItem
	var currency string
	err := row.Scan(&item.ID, &item.SKU, &item.Name, &item.SupplierID, &currency,
		&item.BasePrice, &item.WeightKg, &item.VATPercent, &item.IsActive,
		&item.DeletedAt, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return CatalogItem{}, err
	}
	item.Currency = fx.Currency(currency)
	return item, nil
}

func searchClause(filters ListFilters, columns ...string) (string, []any) {
	var clauses []string
	var args []any
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		n := len(args)
		var ors []string
		for _, col := range columns {
			ors = append(ors, fmt.Sprintf("%s ILIKE $%d", col, n))
		}
		clauses = append(clauses, "("+joinOr(ors)+")")
	}
	if filters.IsActive != nil {
		args = append(args, *filters.IsActive)
		clauses = append(clauses, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if filters.Country != "" {
		args = append(args, filters.Country)
		clauses = append(clauses, fmt.Sprintf("country = $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	where := " WHERE " + clauses[0]
	for _, c := range clauses[1:] {
		where += " AND " + c
	}
	return where, args
}

func joinOr(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += " OR " + p
	}
	return out
}

func pageClause(filters ListFilters, argCount int) string {
	return fmt.Sprintf(" ORDER BY name LIMIT $%d OFFSET $%d", argCount+1, argCount+2)
}
