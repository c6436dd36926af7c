package compliance

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fleetgrid/fleetgrid/internal/platform/httpx"
	"github.com/fleetgrid/fleetgrid/internal/roles"
	"github.com/fleetgrid/fleetgrid/internal/shared"
)

// Handler wires HTTP endpoints for compliance alerts.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    roles.Middleware
}

// NewHandler constructs the compliance handler.
func NewHandler(logger *slog.Logger, service *Service, rbac roles.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers compliance routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(roles.RoleViewer))
		r.Get("/alerts", h.handleList)
		r.Get("/updates", h.handleListUpdates)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(roles.RoleOperator))
		r.Post("/alerts/{id}/acknowledge", h.handleAcknowledge)
		r.Post("/alerts/{id}/resolve", h.handleResolve)
	})
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
	alerts, err := h.service.List(r.Context(), tenantID)
	if err != nil {
		h.logger.Error("compliance: list alerts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

func (h *Handler) handleListUpdates(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromSession(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	updates, err := h.service.ListUpdates(r.Context(), tenantID, limit)
	if err != nil {
		h.logger.Error("compliance: list updates", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"updates": updates})
}

func (h *Handler) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
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
	alert, err := h.service.Acknowledge(r.Context(), tenantID, id)
	if err != nil {
		h.respondServiceError(w, "acknowledge", err)
		return
	}
	httpx.JSON(w, http.StatusOK, alert)
}

type resolveRequest struct {
	Note string `json:"note"`
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
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
	var req resolveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	alert, err := h.service.Resolve(r.Context(), tenantID, id, req.Note)
	if err != nil {
		h.respondServiceError(w, "resolve", err)
		return
	}
	httpx.JSON(w, http.StatusOK, alert)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrInvalidTransition):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error("compliance: "+op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
