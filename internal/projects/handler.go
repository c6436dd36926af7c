package projects

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fleetgrid/fleetgrid/internal/equipment"
	"github.com/fleetgrid/fleetgrid/internal/features"
	"github.com/fleetgrid/fleetgrid/internal/platform/httpx"
	"github.com/fleetgrid/fleetgrid/internal/roles"
	"github.com/fleetgrid/fleetgrid/internal/shared"
	"github.com/fleetgrid/fleetgrid/internal/tenants"
)

// FeatureGate decides feature access for the templates endpoint.
type FeatureGate interface {
	CanAccess(role roles.Role, tenant tenants.Tenant, key features.Key) bool
	PromptUpgrade(ctx context.Context, tenantID int64, key features.Key) (features.Prompt, bool)
}

// TenantSource loads the tenant record for gating decisions.
type TenantSource interface {
	Get(ctx context.Context, id int64) (tenants.Tenant, error)
}

// Handler wires HTTP endpoints for projects.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      roles.Middleware
	gate      FeatureGate
	tenants   TenantSource
	validator *validator.Validate
}

// NewHandler constructs a project handler.
func NewHandler(logger *slog.Logger, service *Service, rbac roles.Middleware, gate FeatureGate, tenantSource TenantSource) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, gate: gate, tenants: tenantSource, validator: validator.New()}
}

// MountRoutes registers project routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(roles.RoleViewer))
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
		r.Get("/templates", h.handleTemplates)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(roles.RoleEditor))
		r.Post("/", h.handleCreate)
		r.Put("/{id}/status", h.handleSetStatus)
		r.Post("/{id}/equipment/{equipmentID}", h.handleAssign)
		r.Delete("/{id}/equipment/{equipmentID}", h.handleRelease)
	})
}

type projectPayload struct {
	Name     string     `json:"name" validate:"required"`
	Site     string     `json:"site"`
	StartsAt *time.Time `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at"`
}

type statusPayload struct {
	Status string `json:"status" validate:"required,oneof=planned active completed archived"`
}

func tenantFromSession(r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(sess.Get(shared.TenantIDKey), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromSession(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	list, err := h.service.List(r.Context(), tenantID)
	if err != nil {
		h.logger.Error("projects: list", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"projects": list})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromSession(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	project, err := h.service.Get(r.Context(), tenantID, id)
	if err != nil {
		h.respondServiceError(w, "get", err)
		return
	}
	httpx.JSON(w, http.StatusOK, project)
}

func (h *Handler) handleTemplates(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromSession(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	tenant, err := h.tenants.Get(r.Context(), tenantID)
	if err != nil {
		h.respondServiceError(w, "templates", err)
		return
	}
	role := roles.FromContext(r.Context())
	if !h.gate.CanAccess(role, tenant, features.KeyProjectTemplates) {
		prompt, _ := h.gate.PromptUpgrade(r.Context(), tenantID, features.KeyProjectTemplates)
		httpx.JSON(w, http.StatusForbidden, map[string]any{"allowed": false, "prompt": prompt})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"templates": Templates()})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromSession(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var payload projectPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	created, err := h.service.Create(r.Context(), tenantID, CreateInput{
		Name:     payload.Name,
		Site:     payload.Site,
		StartsAt: payload.StartsAt,
		EndsAt:   payload.EndsAt,
	})
	if err != nil {
		h.respondServiceError(w, "create", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromSession(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	var payload statusPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.SetStatus(r.Context(), tenantID, id, Status(payload.Status)); err != nil {
		h.respondServiceError(w, "status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": payload.Status})
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromSession(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	projectID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	equipmentID, err := strconv.ParseInt(chi.URLParam(r, "equipmentID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	item, err := h.service.AssignEquipment(r.Context(), tenantID, projectID, equipmentID)
	if err != nil {
		h.respondServiceError(w, "assign", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleRelease(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromSession(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	equipmentID, err := strconv.ParseInt(chi.URLParam(r, "equipmentID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	item, err := h.service.ReleaseEquipment(r.Context(), tenantID, equipmentID)
	if err != nil {
		h.respondServiceError(w, "release", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, equipment.ErrNotFound), errors.Is(err, tenants.ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	default:
		h.logger.Error("projects: "+op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
