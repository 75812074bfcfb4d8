package quotes

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-trade/meridian/internal/approvals"
	"github.com/meridian-trade/meridian/internal/platform/httpx"
	"github.com/meridian-trade/meridian/internal/quotes/calc"
	"github.com/meridian-trade/meridian/internal/quotes/vars"
	"github.com/meridian-trade/meridian/internal/rbac"
	"github.com/meridian-trade/meridian/internal/shared"
	"github.com/meridian-trade/meridian/internal/workflow"
)

// Handler exposes the quote lifecycle as a JSON API.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateQuoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Body", err.Error())
		return
	}

	quote, err := h.service.Create(r.Context(), req, h.actor(r))
	if err != nil {
		h.respondError(w, "create quote", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, quote)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	req := ListQuotesRequest{
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	}
	if status := r.URL.Query().Get("status"); status != "" {
		req.Status = &status
	}

	quotes, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.respondError(w, "list quotes", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"quotes": quotes, "total": total})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	quote, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get quote", err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	var req UpdateQuoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Body", err.Error())
		return
	}

	quote, err := h.service.UpdateInputs(r.Context(), id, req, h.actor(r))
	if err != nil {
		h.respondError(w, "update quote", err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	quote, err := h.service.Calculate(r.Context(), id, h.actor(r))
	if err != nil {
		h.respondError(w, "calculate quote", err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	var req TransitionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Body", err.Error())
		return
	}

	res, err := h.service.Transition(r.Context(), id, req, h.actor(r))
	if err != nil {
		h.respondError(w, "transition quote", err)
		return
	}
	if !res.Applied {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Transition Refused", res.Reason)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"from": res.From, "to": res.To})
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	history, err := h.service.History(r.Context(), id)
	if err != nil {
		h.respondError(w, "quote history", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"history": history})
}

func (h *Handler) Stages(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	stages, err := h.service.Stages(r.Context(), id)
	if err != nil {
		h.respondError(w, "quote stages", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stages)
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.service.Approve)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.service.Reject)
}

func (h *Handler) Approvals(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	snapshot, err := h.service.Approvals(r.Context(), id)
	if err != nil {
		h.respondError(w, "quote approvals", err)
		return
	}
	httpx.JSON(w, http.StatusOK, snapshot)
}

func (h *Handler) Decisions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	decisions, err := h.service.Decisions(r.Context(), id)
	if err != nil {
		h.respondError(w, "quote decisions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"decisions": decisions})
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id uuid.UUID, req DecisionRequest, actor workflow.Actor) (approvals.Outcome, error)) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	var req DecisionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Body", err.Error())
		return
	}

	outcome, err := fn(r.Context(), id, req, h.actor(r))
	if err != nil {
		h.respondError(w, "quote decision", err)
		return
	}
	if !outcome.Applied {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Decision Refused", outcome.Reason)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) quoteID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "quote id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) actor(r *http.Request) workflow.Actor {
	actor := workflow.Actor{Roles: rbac.RolesFromContext(r.Context())}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		if id, err := uuid.Parse(sess.User()); err == nil {
			actor.UserID = id
		}
	}
	return actor
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	var verr *vars.ValidationError
	var cerr *calc.CalculationError
	switch {
	case errors.As(err, &verr), errors.As(err, &cerr):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Calculation Failed", err.Error())
	case isValidationError(err):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func isValidationError(err error) bool {
	var fieldErrs validator.ValidationErrors
	return errors.As(err, &fieldErrs)
}

func queryInt(r *http.Request, name string) int {
	v, _ := strconv.Atoi(r.URL.Query().Get(name))
	return v
}
