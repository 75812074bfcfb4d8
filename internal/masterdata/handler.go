package masterdata

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meridian-trade/meridian/internal/platform/httpx"
	"github.com/meridian-trade/meridian/internal/rbac"
)

// Handler manages master data endpoints.
type Handler struct {
	logger  *slog.Logger
	service Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers master data routes.
func (h *Handler) MountRoutes(r chi.Router) {
	read := []rbac.Role{rbac.RoleSales, rbac.RoleProcurement, rbac.RoleLogistics,
		rbac.RoleCustoms, rbac.RoleControl, rbac.RoleManagement}
	write := []rbac.Role{rbac.RoleSales, rbac.RoleProcurement, rbac.RoleManagement}

	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(read...))
		r.Get("/companies", h.listCompanies)
		r.Get("/companies/{id}", h.showCompany)
		r.Get("/clients", h.listClients)
		r.Get("/clients/{id}", h.showClient)
		r.Get("/suppliers", h.listSuppliers)
		r.Get("/suppliers/{id}", h.showSupplier)
		r.Get("/catalog", h.listCatalogItems)
		r.Get("/catalog/{id}", h.showCatalogItem)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(write...))
		r.Post("/companies", h.createCompany)
		r.Put("/companies/{id}", h.updateCompany)
		r.Delete("/companies/{id}", h.deleteCompany)
		r.Post("/clients", h.createClient)
		r.Put("/clients/{id}", h.updateClient)
		r.Delete("/clients/{id}", h.deleteClient)
		r.Post("/suppliers", h.createSupplier)
		r.Put("/suppliers/{id}", h.updateSupplier)
		r.Delete("/suppliers/{id}", h.deleteSupplier)
		r.Post("/catalog", h.createCatalogItem)
		r.Put("/catalog/{id}", h.updateCatalogItem)
		r.Delete("/catalog/{id}", h.deleteCatalogItem)
	})
}

func (h *Handler) listCompanies(w http.ResponseWriter, r *http.Request) {
	companies, total, err := h.service.ListCompanies(r.Context(), listFilters(r))
	if err != nil {
		h.respondError(w, "list companies", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"companies": companies, "total": total})
}

func (h *Handler) showCompany(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	company, err := h.service.GetCompany(r.Context(), id)
	if err != nil {
		h.respondError(w, "get company", err)
		return
	}
	httpx.JSON(w, http.StatusOK, company)
}

func (h *Handler) createCompany(w http.ResponseWriter, r *http.Request) {
	var req Company
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Body", err.Error())
		return
	}
	company, err := h.service.CreateCompany(r.Context(), req)
	if err != nil {
		h.respondError(w, "create company", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, company)
}

func (h *Handler) updateCompany(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req Company
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Body", err.Error())
		return
	}
	if err := h.service.UpdateCompany(r.Context(), id, req); err != nil {
		h.respondError(w, "update company", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteCompany(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteCompany(r.Context(), id); err != nil {
		h.respondError(w, "delete company", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listClients(w http.ResponseWriter, r *http.Request) {
	clients, total, err := h.service.ListClients(r.Context(), listFilters(r))
	if err != nil {
		h.respondError(w, "list clients", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"clients": clients, "total": total})
}

func (h *Handler) showClient(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	client, err := h.service.GetClient(r.Context(), id)
	if err != nil {
		h.respondError(w, "get client", err)
		return
	}
	httpx.JSON(w, http.StatusOK, client)
}

func (h *Handler) createClient(w http.ResponseWriter, r *http.Request) {
	var req Client
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Body", err.Error())
		return
	}
	client, err := h.service.CreateClient(r.Context(), req)
	if err != nil {
		h.respondError(w, "create client", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, client)
}

func (h *Handler) updateClient(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req Client
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Body", err.Error())
		return
	}
	if err := h.service.UpdateClient(r.Context(), id, req); err != nil {
		h.respondError(w, "update client", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteClient(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteClient(r.Context(), id); err != nil {
		h.respondError(w, "delete client", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, total, err := h.service.ListSuppliers(r.Context(), listFilters(r))
	if err != nil {
		h.respondError(w, "list suppliers", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"suppliers": suppliers, "total": total})
}

func (h *Handler) showSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	supplier, err := h.service.GetSupplier(r.Context(), id)
	if err != nil {
		h.respondError(w, "get supplier", err)
		return
	}
	httpx.JSON(w, http.StatusOK, supplier)
}

func (h *Handler) createSupplier(w http.ResponseWriter, r *http.Request) {
	var req Supplier
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Body", err.Error())
		return
	}
	supplier, err := h.service.CreateSupplier(r.Context(), req)
	if err != nil {
		h.respondError(w, "create supplier", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, supplier)
}

func (h *Handler) updateSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req Supplier
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Body", err.Error())
		return
	}
	if err := h.service.UpdateSupplier(r.Context(), id, req); err != nil {
		h.respondError(w, "update supplier", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteSupplier(r.Context(), id); err != nil {
		h.respondError(w, "delete supplier", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listCatalogItems(w http.ResponseWriter, r *http.Request) {
	filters := listFilters(r)
	if raw := r.URL.Query().Get("supplier_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Filter", "supplier_id must be a UUID")
			return
		}
		filters.SupplierID = &id
	}
	items, total, err := h.service.ListCatalogItems(r.Context(), filters)
	if err != nil {
		h.respondError(w, "list catalog items", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
}

func (h *Handler) showCatalogItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	item, err := h.service.GetCatalogItem(r.Context(), id)
	if err != nil {
		h.respondError(w, "get catalog item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) createCatalogItem(w http.ResponseWriter, r *http.Request) {
	var req CatalogItem
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Body", err.Error())
		return
	}
	item, err := h.service.CreateCatalogItem(r.Context(), req)
	if err != nil {
		h.respondError(w, "create catalog item", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) updateCatalogItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req CatalogItem
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Body", err.Error())
		return
	}
	if err := h.service.UpdateCatalogItem(r.Context(), id, req); err != nil {
		h.respondError(w, "update catalog item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteCatalogItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteCatalogItem(r.Context(), id); err != nil {
		h.respondError(w, "delete catalog item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func listFilters(r *http.Request) ListFilters {
	q := r.URL.Query()
	filters := ListFilters{
		Search:  q.Get("search"),
		Country: q.Get("country"),
	}
	filters.Limit, _ = strconv.Atoi(q.Get("limit"))
	filters.Offset, _ = strconv.Atoi(q.Get("offset"))
	if raw := q.Get("is_active"); raw != "" {
		active := raw == "true" || raw == "1"
		filters.IsActive = &active
	}
	return filters
}
