// AngelaMos | 2026
// handler.go

package audit

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/reportriser/backend/internal/core"
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

// RegisterRoutes mounts the public audit. limiter throttles anonymous
// callers since each audit costs an upstream lab run.
func (h *Handler) RegisterRoutes(r chi.Router, limiter func(http.Handler) http.Handler) {
	r.With(limiter).Get("/audit", h.Audit)
}

type auditQuery struct {
	URL string `validate:"required,http_url,max=2048"`
}

func (h *Handler) Audit(w http.ResponseWriter, r *http.Request) {
	q := auditQuery{URL: strings.TrimSpace(r.URL.Query().Get("url"))}
	if err := h.validator.Struct(q); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	result, err := h.service.Audit(r.Context(), q.URL)
	if err != nil {
		core.JSONError(w, core.UpstreamError("could not measure site performance", err))
		return
	}

	core.OK(w, result)
}
