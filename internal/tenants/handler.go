package tenants

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

// Handler wires HTTP endpoints for tenant subscription management.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      roles.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac roles.Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		rbac:      rbac,
		validator: validator.New(),
	}
}

// MountRoutes registers tenant routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(roles.RoleViewer))
		r.Get("/", h.handleGet)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(roles.RoleManager))
		r.Post("/trial", h.handleStartTrial)
		r.Post("/upgrade", h.handleUpgrade)
		r.Put("/settings", h.handleSettings)
	})
}

type tenantResponse struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Tier        string     `json:"tier"`
	Status      string     `json:"status"`
	TrialEndsAt *time.Time `json:"trial_ends_at,omitempty"`
	Features    []string   `json:"features"`
	Theme       string     `json:"theme"`
}

func toResponse(t Tenant) tenantResponse {
	return tenantResponse{
		ID:          t.ID,
		Name:        t.Name,
		Tier:        string(t.Tier),
		Status:      string(t.Status),
		TrialEndsAt: t.TrialEndsAt,
		Features:    t.Features,
		Theme:       t.Theme,
	}
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	tenantID, actorID, ok := sessionIdentity(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	_ = actorID
	tenant, err := h.service.Get(r.Context(), tenantID)
	if err != nil {
		h.respondServiceError(w, "get tenant", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(tenant))
}

func (h *Handler) handleStartTrial(w http.ResponseWriter, r *http.Request) {
	tenantID, actorID, ok := sessionIdentity(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	tenant, err := h.service.StartTrial(r.Context(), tenantID, actorID)
	if err != nil {
		h.respondServiceError(w, "start trial", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(tenant))
}

type upgradeRequest struct {
	Tier       string `json:"tier" validate:"required"`
	PaymentRef string `json:"payment_ref" validate:"required"`
}

func (h *Handler) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	tenantID, actorID, ok := sessionIdentity(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req upgradeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	tier, err := ParseTier(req.Tier)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	tenant, err := h.service.ConfirmUpgrade(r.Context(), tenantID, tier, req.PaymentRef, actorID)
	if err != nil {
		h.respondServiceError(w, "confirm upgrade", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(tenant))
}

type settingsRequest struct {
	Features []string `json:"features"`
	Theme    string   `json:"theme" validate:"required"`
}

func (h *Handler) handleSettings(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := sessionIdentity(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req settingsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	tenant, err := h.service.UpdateSettings(r.Context(), tenantID, req.Features, req.Theme)
	if err != nil {
		h.respondServiceError(w, "update settings", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(tenant))
}

func (h *Handler) respondServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrTrialNotAllowed), errors.Is(err, ErrInvalidTransition):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		if h.logger != nil {
			h.logger.Error("tenants: "+op, slog.Any("error", err))
		}
		httpx.RespondError(w, err)
	}
}

// sessionIdentity extracts tenant and user IDs from the request session.
func sessionIdentity(r *http.Request) (tenantID, userID int64, ok bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		return 0, 0, false
	}
	userID, err := strconv.ParseInt(sess.User(), 10, 64)
	if err != nil {
		return 0, 0, false
	}
	tenantID, err = strconv.ParseInt(sess.Get(shared.TenantIDKey), 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return tenantID, userID, true
}
