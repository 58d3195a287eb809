// AngelaMos | 2026
// handler.go

package user

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/reportriser/backend/internal/core"
	"github.com/reportriser/backend/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RegisterRoutes mounts the self-service account endpoints.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/users/me", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.GetMe)
		r.Put("/", h.UpdateMe)
		r.Delete("/", h.DeleteMe)
		r.Get("/usage", h.GetUsage)
	})
}

// RegisterAdminRoutes mounts account management for operators. Tier
// changes go through the entitlement engine like billing does.
func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/users", func(r chi.Router) {
		r.Use(authenticator, adminOnly)

		r.Get("/", h.ListUsers)
		r.Route("/{userID}", func(r chi.Router) {
			r.Get("/", h.GetUser)
			r.Put("/", h.UpdateUser)
			r.Put("/tier", h.UpdateUserTier)
			r.Delete("/", h.DeleteUser)
		})
	})
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.GetMe(r.Context(), middleware.GetUserID(r.Context()))
	respondUser(w, u, err)
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	u, err := h.service.UpdateMe(r.Context(), middleware.GetUserID(r.Context()), req)
	respondUser(w, u, err)
}

func (h *Handler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteMe(r.Context(), middleware.GetUserID(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	core.NoContent(w)
}

// GetUsage reports quota consumption and whether to show an upgrade prompt.
func (h *Handler) GetUsage(w http.ResponseWriter, r *http.Request) {
	usage, err := h.service.Usage(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	core.OK(w, usage)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := ListUsersParams{
		Page:     queryInt(q.Get("page"), 1),
		PageSize: queryInt(q.Get("page_size"), 20),
		Search:   q.Get("search"),
		Role:     q.Get("role"),
		Tier:     q.Get("tier"),
	}

	users, total, err := h.service.ListUsers(r.Context(), params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(w, ToUserResponseList(users), params.Page, params.PageSize, total)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.GetUser(r.Context(), chi.URLParam(r, "userID"))
	respondUser(w, u, err)
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	u, err := h.service.UpdateUser(r.Context(), chi.URLParam(r, "userID"), req)
	respondUser(w, u, err)
}

func (h *Handler) UpdateUserTier(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserTierRequest
	if !h.decode(w, r, &req) {
		return
	}

	u, err := h.service.UpdateUserTier(r.Context(), chi.URLParam(r, "userID"), req.Tier)
	respondUser(w, u, err)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	targetID := chi.URLParam(r, "userID")

	if err := h.service.CanDeleteUser(ctx, middleware.GetUserID(ctx), targetID); err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.DeleteUser(ctx, targetID); err != nil {
		writeError(w, err)
		return
	}
	core.NoContent(w)
}

// decode reads and validates the body, writing a 400 when it returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return false
	}
	return true
}

func respondUser(w http.ResponseWriter, u *User, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	core.OK(w, ToUserResponse(u))
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "user")
	case errors.Is(err, core.ErrInvalidInput):
		core.BadRequest(w, "unknown tier")
	case errors.Is(err, core.ErrForbidden):
		core.Forbidden(w, "insufficient permissions")
	case errors.Is(err, core.ErrUnauthorized):
		core.Unauthorized(w, "authentication required")
	default:
		core.InternalServerError(w, err)
	}
}

func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
