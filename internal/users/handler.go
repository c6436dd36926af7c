package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fleetgrid/fleetgrid/internal/platform/httpx"
	"github.com/fleetgrid/fleetgrid/internal/roles"
	"github.com/fleetgrid/fleetgrid/internal/shared"
	"github.com/fleetgrid/fleetgrid/internal/tenants"
)

// Handler wires HTTP endpoints for member management.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      roles.Middleware
	validator *validator.Validate
}

// NewHandler constructs a users handler.
func NewHandler(logger *slog.Logger, service *Service, rbac roles.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers member routes. All routes require admin.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(roles.RoleAdmin))
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
		r.Post("/", h.handleInvite)
		r.Put("/{id}/role", h.handleChangeRole)
		r.Post("/{id}/deactivate", h.handleDeactivate)
		r.Post("/{id}/reactivate", h.handleReactivate)
	})
}

type invitePayload struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role"`
}

type rolePayload struct {
	Role string `json:"role" validate:"required"`
}

type userResponse struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
}

func toResponse(u User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      string(u.Role),
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

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

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := sessionIdentity(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	list, err := h.service.List(r.Context(), tenantID)
	if err != nil {
		h.logger.Error("users: list", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]userResponse, 0, len(list))
	for _, u := range list {
		out = append(out, toResponse(u))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": out})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := sessionIdentity(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	u, err := h.service.Get(r.Context(), tenantID, id)
	if err != nil {
		h.respondServiceError(w, "get", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(u))
}

func (h *Handler) handleInvite(w http.ResponseWriter, r *http.Request) {
	tenantID, actorID, ok := sessionIdentity(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var payload invitePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	created, err := h.service.Invite(r.Context(), tenantID, actorID, InviteInput{
		Email:    payload.Email,
		Name:     payload.Name,
		Password: payload.Password,
		Role:     roles.Role(payload.Role),
	})
	if err != nil {
		h.respondServiceError(w, "invite", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(created))
}

func (h *Handler) handleChangeRole(w http.ResponseWriter, r *http.Request) {
	tenantID, actorID, ok := sessionIdentity(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	var payload rolePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	role, err := roles.Parse(payload.Role)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	updated, err := h.service.ChangeRole(r.Context(), tenantID, actorID, id, role)
	if err != nil {
		h.respondServiceError(w, "role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(updated))
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	tenantID, actorID, ok := sessionIdentity(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	updated, err := h.service.Deactivate(r.Context(), tenantID, actorID, id)
	if err != nil {
		h.respondServiceError(w, "deactivate", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(updated))
}

func (h *Handler) handleReactivate(w http.ResponseWriter, r *http.Request) {
	tenantID, actorID, ok := sessionIdentity(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	updated, err := h.service.Reactivate(r.Context(), tenantID, actorID, id)
	if err != nil {
		h.respondServiceError(w, "reactivate", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(updated))
}

func (h *Handler) respondServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, tenants.ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrDuplicateEmail):
		httpx.RespondError(w, httpx.ErrDuplicate)
	case errors.Is(err, ErrUserLimit):
		httpx.Problem(w, http.StatusPaymentRequired, "Plan Limit Reached", err.Error())
	case errors.Is(err, ErrLastAdmin):
		httpx.RespondError(w, httpx.ErrConflict)
	default:
		h.logger.Error("users: "+op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
