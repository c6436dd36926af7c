package notifications

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
)

// Handler wires HTTP endpoints for notifications and preferences.
type Handler struct {
	logger    *slog.Logger
	repo      RepositoryPort
	prefs     *PrefStore
	rbac      roles.Middleware
	validator *validator.Validate
}

// NewHandler constructs the notifications handler.
func NewHandler(logger *slog.Logger, repo RepositoryPort, prefs *PrefStore, rbac roles.Middleware) *Handler {
	return &Handler{logger: logger, repo: repo, prefs: prefs, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers notification routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(roles.RoleViewer))
		r.Get("/", h.handleList)
		r.Post("/{id}/read", h.handleMarkRead)
		r.Get("/preferences", h.handleGetPrefs)
		r.Post("/preferences/types/{type}/toggle", h.handleToggleType)
		r.Post("/preferences/types/{type}/channels/{channel}/toggle", h.handleToggleChannel)
		r.Post("/preferences/categories/{category}", h.handleSetCategory)
	})
}

func currentUserID(r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(sess.User(), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	total, err := h.repo.CountForUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("notifications: count", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	page, perPage := shared.ParsePageQuery(r.URL.Query())
	pagination := shared.NewPagination(page, perPage, total)
	list, err := h.repo.ListForUser(r.Context(), userID, pagination.PerPage, pagination.Offset())
	if err != nil {
		h.logger.Error("notifications: list", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"notifications": list, "pagination": pagination})
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.repo.MarkRead(r.Context(), userID, id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("notifications: mark read", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type prefsResponse struct {
	Preferences []Preference        `json:"preferences"`
	Categories  map[string]category `json:"categories"`
}

type category struct {
	Enabled          bool `json:"enabled"`
	PartiallyEnabled bool `json:"partially_enabled"`
}

func (h *Handler) respondPrefs(w http.ResponseWriter, prefs *PrefSet) {
	cats := make(map[string]category)
	for _, cat := range []Category{CategoryMaintenance, CategoryCompliance, CategoryProjects, CategoryBilling, CategorySystem} {
		cats[string(cat)] = category{
			Enabled:          prefs.CategoryEnabled(cat),
			PartiallyEnabled: prefs.CategoryPartiallyEnabled(cat),
		}
	}
	httpx.JSON(w, http.StatusOK, prefsResponse{Preferences: prefs.List(), Categories: cats})
}

func (h *Handler) handleGetPrefs(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	h.respondPrefs(w, h.prefs.Load(r.Context(), userID))
}

func (h *Handler) handleToggleType(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	prefs := h.prefs.Load(r.Context(), userID)
	prefs.ToggleType(Type(chi.URLParam(r, "type")))
	if err := h.prefs.Save(r.Context(), userID, prefs); err != nil {
		h.logger.Error("notifications: save prefs", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.respondPrefs(w, prefs)
}

func (h *Handler) handleToggleChannel(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	prefs := h.prefs.Load(r.Context(), userID)
	err := prefs.ToggleChannel(Type(chi.URLParam(r, "type")), Channel(chi.URLParam(r, "channel")))
	if err != nil {
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
		return
	}
	if err := h.prefs.Save(r.Context(), userID, prefs); err != nil {
		h.logger.Error("notifications: save prefs", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.respondPrefs(w, prefs)
}

type setCategoryRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

func (h *Handler) handleSetCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req setCategoryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	prefs := h.prefs.Load(r.Context(), userID)
	prefs.SetCategory(Category(chi.URLParam(r, "category")), *req.Enabled)
	if err := h.prefs.Save(r.Context(), userID, prefs); err != nil {
		h.logger.Error("notifications: save prefs", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.respondPrefs(w, prefs)
}
