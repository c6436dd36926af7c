package equipment

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fleetgrid/fleetgrid/internal/platform/httpx"
	"github.com/fleetgrid/fleetgrid/internal/roles"
	"github.com/fleetgrid/fleetgrid/internal/shared"
)

// Handler wires HTTP endpoints for the equipment registry.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      roles.Middleware
	validator *validator.Validate
}

// NewHandler constructs an equipment handler.
func NewHandler(logger *slog.Logger, service *Service, rbac roles.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers equipment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(roles.RoleViewer))
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(roles.RoleEditor))
		r.Post("/", h.handleCreate)
		r.Put("/{id}", h.handleUpdate)
	})
}

type equipmentPayload struct {
	Name                string     `json:"name" validate:"required"`
	Serial              string     `json:"serial" validate:"required"`
	Category            string     `json:"category"`
	NextMaintenance     *time.Time `json:"next_maintenance"`
	CertificationExpiry *time.Time `json:"certification_expiry"`
}

type updatePayload struct {
	Name                string     `json:"name"`
	Category            string     `json:"category"`
	Status              string     `json:"status"`
	LastMaintenance     *time.Time `json:"last_maintenance"`
	NextMaintenance     *time.Time `json:"next_maintenance"`
	CertificationExpiry *time.Time `json:"certification_expiry"`
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
		h.logger.Error("equipment: list", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"equipment": list})
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
	item, err := h.service.Get(r.Context(), tenantID, id)
	if err != nil {
		h.respondServiceError(w, "get", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromSession(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var payload equipmentPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	created, err := h.service.Create(r.Context(), tenantID, CreateInput{
		Name:                payload.Name,
		Serial:              payload.Serial,
		Category:            payload.Category,
		NextMaintenance:     payload.NextMaintenance,
		CertificationExpiry: payload.CertificationExpiry,
	})
	if err != nil {
		h.respondServiceError(w, "create", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
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
	var payload updatePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	updated, err := h.service.Update(r.Context(), tenantID, id, UpdateInput{
		Name:                payload.Name,
		Category:            payload.Category,
		Status:              Status(payload.Status),
		LastMaintenance:     payload.LastMaintenance,
		NextMaintenance:     payload.NextMaintenance,
		CertificationExpiry: payload.CertificationExpiry,
	})
	if err != nil {
		h.respondServiceError(w, "update", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrDuplicateSerial):
		httpx.RespondError(w, httpx.ErrDuplicate)
	case errors.Is(err, ErrAssetLimit):
		httpx.Problem(w, http.StatusPaymentRequired, "Plan Limit Reached", err.Error())
	default:
		h.logger.Error("equipment: "+op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
