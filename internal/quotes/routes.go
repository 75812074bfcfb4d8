package quotes

import (
	"github.com/go-chi/chi/v5"

	"github.com/meridian-trade/meridian/internal/rbac"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.RoleSales, rbac.RoleProcurement, rbac.RoleLogistics,
			rbac.RoleCustoms, rbac.RoleControl, rbac.RoleManagement))
		r.Get("/quotes", h.List)
		r.Get("/quotes/{id}", h.Show)
		r.Get("/quotes/{id}/history", h.History)
		r.Get("/quotes/{id}/stages", h.Stages)
		r.Get("/quotes/{id}/approvals", h.Approvals)
		r.Get("/quotes/{id}/decisions", h.Decisions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.RoleSales))
		r.Post("/quotes", h.Create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.RoleSales, rbac.RoleProcurement, rbac.RoleLogistics, rbac.RoleCustoms))
		r.Put("/quotes/{id}", h.Update)
		r.Post("/quotes/{id}/calculate", h.Calculate)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.RoleSales, rbac.RoleProcurement, rbac.RoleLogistics,
			rbac.RoleCustoms, rbac.RoleControl, rbac.RoleManagement))
		r.Post("/quotes/{id}/transition", h.Transition)
		r.Post("/quotes/{id}/approve", h.Approve)
		r.Post("/quotes/{id}/reject", h.Reject)
	})
}
