package features

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fleetgrid/fleetgrid/internal/platform/httpx"
	"github.com/fleetgrid/fleetgrid/internal/roles"
	"github.com/fleetgrid/fleetgrid/internal/shared"
	"github.com/fleetgrid/fleetgrid/internal/tenants"
)

// TenantSource loads the caller's tenant for gating decisions.
type TenantSource interface {
	Get(ctx context.Context, id int64) (tenants.Tenant, error)
}

// Handler exposes feature-access checks to clients.
type Handler struct {
	logger  *slog.Logger
	gate    *Gate
	tenants TenantSource
	rbac    roles.Middleware
}

// NewHandler constructs the features handler.
func NewHandler(logger *slog.Logger, gate *Gate, tenantSource TenantSource, rbac roles.Middleware) *Handler {
	return &Handler{logger: logger, gate: gate, tenants: tenantSource, rbac: rbac}
}

// MountRoutes registers feature routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(roles.RoleViewer))
		r.Get("/{key}", h.handleCheck)
		r.Post("/{key}/prompt", h.handlePrompt)
	})
}

type accessResponse struct {
	Feature string  `json:"feature"`
	Allowed bool    `json:"allowed"`
	Prompt  *Prompt `json:"prompt,omitempty"`
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.loadTenant(w, r)
	if !ok {
		return
	}
	key := Key(chi.URLParam(r, "key"))
	role := roles.FromContext(r.Context())
	allowed := h.gate.CanAccess(role, tenant, key)
	resp := accessResponse{Feature: string(key), Allowed: allowed}
	if !allowed {
		if prompt, ok := prompts[key]; ok {
			resp.Prompt = &prompt
		}
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePrompt(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.loadTenant(w, r)
	if !ok {
		return
	}
	key := Key(chi.URLParam(r, "key"))
	prompt, ok := h.gate.PromptUpgrade(r.Context(), tenant.ID, key)
	if !ok {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	httpx.JSON(w, http.StatusOK, prompt)
}

func (h *Handler) loadTenant(w http.ResponseWriter, r *http.Request) (tenants.Tenant, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return tenants.Tenant{}, false
	}
	tenantID, err := strconv.ParseInt(sess.Get(shared.TenantIDKey), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return tenants.Tenant{}, false
	}
	tenant, err := h.tenants.Get(r.Context(), tenantID)
	if err != nil {
		if h.logger != nil {
			h.logger.Error("features: load tenant", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return tenants.Tenant{}, false
	}
	return tenant, true
}
