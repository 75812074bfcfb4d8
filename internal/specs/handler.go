package specs

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meridian-trade/meridian/internal/platform/httpx"
	"github.com/meridian-trade/meridian/internal/rbac"
	"github.com/meridian-trade/meridian/internal/shared"
)

// Handler exposes specifications and deals as a JSON API.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

func (h *Handler) MountRoutes(r chi.Router) {
	read := []rbac.Role{rbac.RoleSales, rbac.RoleProcurement, rbac.RoleLogistics,
		rbac.RoleCustoms, rbac.RoleControl, rbac.RoleManagement}

	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(read...))
		r.Get("/specifications/{id}", h.Show)
		r.Get("/quotes/{id}/specification", h.ByQuote)
		r.Get("/deals/{id}", h.ShowDeal)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.RoleSales))
		r.Post("/quotes/{id}/specification", h.Create)
		r.Post("/specifications/{id}/sign", h.Sign)
		r.Post("/specifications/{id}/deal", h.Activate)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.RoleSales, rbac.RoleLogistics, rbac.RoleCustoms, rbac.RoleManagement))
		r.Post("/deals/{id}/payments/{kind}", h.Payment)
		r.Post("/deals/{id}/logistics/{kind}", h.Logistics)
		r.Post("/deals/{id}/cancel", h.Cancel)
	})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	spec, err := h.service.CreateFromQuote(r.Context(), id, h.actorID(r))
	if err != nil {
		h.respondError(w, "create specification", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, spec)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	spec, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get specification", err)
		return
	}
	httpx.JSON(w, http.StatusOK, spec)
}

func (h *Handler) ByQuote(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	spec, err := h.service.ByQuote(r.Context(), id)
	if err != nil {
		h.respondError(w, "get specification by quote", err)
		return
	}
	httpx.JSON(w, http.StatusOK, spec)
}

func (h *Handler) Sign(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	spec, err := h.service.MarkSigned(r.Context(), id, h.actorID(r))
	if err != nil {
		h.respondError(w, "sign specification", err)
		return
	}
	httpx.JSON(w, http.StatusOK, spec)
}

func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	deal, err := h.service.ActivateDeal(r.Context(), id, h.actorID(r))
	if err != nil {
		h.respondError(w, "activate deal", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, deal)
}

func (h *Handler) ShowDeal(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	deal, err := h.service.Deal(r.Context(), id)
	if err != nil {
		h.respondError(w, "get deal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, deal)
}

func (h *Handler) Payment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	deal, err := h.service.RecordPayment(r.Context(), id, PaymentKind(chi.URLParam(r, "kind")), h.actorID(r))
	if err != nil {
		h.respondError(w, "record payment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, deal)
}

func (h *Handler) Logistics(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	deal, err := h.service.RecordLogistics(r.Context(), id, LogisticsKind(chi.URLParam(r, "kind")), h.actorID(r))
	if err != nil {
		h.respondError(w, "record logistics milestone", err)
		return
	}
	httpx.JSON(w, http.StatusOK, deal)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	deal, err := h.service.CancelDeal(r.Context(), id, h.actorID(r))
	if err != nil {
		h.respondError(w, "cancel deal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, deal)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) actorID(r *http.Request) uuid.UUID {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		if id, err := uuid.Parse(sess.User()); err == nil {
			return id
		}
	}
	return uuid.Nil
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
