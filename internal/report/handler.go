// AngelaMos | 2026
// handler.go

package report

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/reportriser/backend/internal/core"
	"github.com/reportriser/backend/internal/entitlement"
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

// RegisterRoutes mounts /reports behind authenticator, which may accept a
// bearer token or an API key.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/reports", func(r chi.Router) {
		r.Use(authenticator)

		r.Post("/", h.Generate)
		r.Get("/", h.List)
		r.Get("/{reportID}", h.Get)
		r.Get("/{reportID}/download", h.Download)
	})
}

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	result, err := h.service.Generate(r.Context(), userID, req)
	if err != nil {
		writeGenerateError(w, err)
		return
	}

	if !result.Decision.Allowed {
		core.JSONError(w, denialError(result.Decision))
		return
	}

	core.Created(w, GenerateResponse{
		Report:  ToReportResponse(result.Report),
		ROI:     result.ROI,
		Vitals:  result.Vitals,
		Emailed: result.Emailed,
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	reports, err := h.service.List(r.Context(), userID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToReportResponseList(reports))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	rep, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "reportID"))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "report")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToReportResponse(rep))
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	rep, body, err := h.service.Open(r.Context(), userID, chi.URLParam(r, "reportID"))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "report")
			return
		}
		core.InternalServerError(w, err)
		return
	}
	defer body.Close() //nolint:errcheck // read-only stream

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+rep.DownloadName()+`"`)
	if rep.SizeBytes > 0 {
		w.Header().Set("Content-Length", strconv.Itoa(rep.SizeBytes))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, body); err != nil {
		slog.Warn("report download interrupted",
			"report_id", rep.ID,
			"error", err,
		)
	}
}

func denialError(d entitlement.Decision) *core.AppError {
	return core.QuotaExceededError(d.Reason, DenialDetails{
		Action:    d.Action,
		Reason:    d.Reason,
		Limit:     d.Limit,
		UpgradeTo: string(d.UpgradeTo),
	})
}

func writeGenerateError(w http.ResponseWriter, err error) {
	var upstream *UpstreamDataError
	var composition *CompositionError

	switch {
	case errors.As(err, &upstream):
		core.JSONError(w, core.UpstreamError(
			"could not load "+upstream.Source+" data for the "+string(upstream.Section)+" section",
			err,
		))
	case errors.As(err, &composition):
		core.JSONError(w, core.UnprocessableError(
			"report input for the "+string(composition.Section)+" section is invalid",
			err,
		))
	case errors.Is(err, ErrEmailNotIncluded):
		core.Forbidden(w, "email delivery requires a plan with email scheduling")
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "user")
	default:
		core.InternalServerError(w, err)
	}
}
