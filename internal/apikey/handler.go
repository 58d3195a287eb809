// AngelaMos | 2026
// handler.go

package apikey

import (
	"encoding/json"
	"errors"
	"net/http"

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

// RegisterRoutes mounts /api-keys. Key management requires a bearer token;
// a key cannot mint further keys.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/api-keys", func(r chi.Router) {
		r.Use(authenticator)

		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Delete("/{keyID}", h.Revoke)
	})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req CreateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	key, raw, err := h.service.Create(r.Context(), userID, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrForbidden):
			core.Forbidden(w, "API access is not included in your plan")
		case errors.Is(err, core.ErrNotFound):
			core.NotFound(w, "user")
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.Created(w, CreatedKeyResponse{
		KeyResponse: ToKeyResponse(key),
		Key:         raw,
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	keys, err := h.service.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToKeyResponseList(keys))
}

func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	err := h.service.Revoke(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "keyID"),
	)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "api key")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}
