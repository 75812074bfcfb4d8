package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meridian-trade/meridian/internal/platform/httpx"
	"github.com/meridian-trade/meridian/internal/quotes"
	"github.com/meridian-trade/meridian/internal/rbac"
	"github.com/meridian-trade/meridian/internal/shared"
)

const maxWorkbookBytes = 10 << 20

// QuoteStore is the slice of the quote service reconciliation needs.
type QuoteStore interface {
	Get(ctx context.Context, id uuid.UUID) (*quotes.Quote, error)
}

// Handler exposes workbook export and reconciliation endpoints.
type Handler struct {
	logger *slog.Logger
	quotes QuoteStore
	rbac   rbac.Middleware
}

func NewHandler(logger *slog.Logger, quotes QuoteStore, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, quotes: quotes, rbac: rbac}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.RoleSales, rbac.RoleControl, rbac.RoleManagement))
		r.Get("/quotes/{id}/export.xlsx", h.Export)
		r.Post("/quotes/{id}/reconcile", h.Reconcile)
	})
}

// Export streams the quote calculation sheet as an XLSX attachment.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	quote, ok := h.loadCalculated(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", XLSXContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.xlsx", quote.Number))
	if err := ExportQuote(quote, w); err != nil {
		h.logger.Error("export quote workbook", slog.Any("error", err))
	}
}

// Reconcile accepts a reference workbook upload and reports deviations from
// the stored calculation.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	quote, ok := h.loadCalculated(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxWorkbookBytes); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Upload", err.Error())
		return
	}
	file, _, err := r.FormFile("workbook")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Upload", "workbook file is required")
		return
	}
	defer file.Close()

	ref, err := LoadReference(file)
	if err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unreadable Workbook", err.Error())
		return
	}
	report := Compare(ref, quote.Results)
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) loadCalculated(w http.ResponseWriter, r *http.Request) (*quotes.Quote, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "quote id must be a UUID")
		return nil, false
	}
	quote, err := h.quotes.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("load quote", slog.Any("error", err))
		httpx.RespondError(w, err)
		return nil, false
	}
	if quote.Results == nil {
		httpx.RespondError(w, fmt.Errorf("quote %s has not been calculated: %w", quote.Number, shared.ErrConflict))
		return nil, false
	}
	return quote, true
}
