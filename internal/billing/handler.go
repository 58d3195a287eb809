// AngelaMos | 2026
// handler.go

package billing

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/reportriser/backend/internal/core"
)

const (
	signatureHeader  = "Stripe-Signature"
	maxWebhookBody   = 64 << 10
	defaultTolerance = 5 * time.Minute
)

type HandlerConfig struct {
	Service   *Service
	Secret    string
	Tolerance time.Duration
	Now       func() time.Time
}

type Handler struct {
	service   *Service
	secret    string
	tolerance time.Duration
	now       func() time.Time
}

func NewHandler(cfg HandlerConfig) *Handler {
	tolerance := cfg.Tolerance
	if tolerance <= 0 {
		tolerance = defaultTolerance
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Handler{
		service:   cfg.Service,
		secret:    cfg.Secret,
		tolerance: tolerance,
		now:       now,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/billing/webhook", h.Webhook)
}

type webhookAck struct {
	Received bool `json:"received"`
	Handled  bool `json:"handled"`
}

func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		core.BadRequest(w, "invalid payload")
		return
	}

	err = VerifySignature(payload, r.Header.Get(signatureHeader), h.secret, h.tolerance, h.now())
	if err != nil {
		slog.Warn("rejected billing webhook", "error", err)
		core.BadRequest(w, "invalid signature")
		return
	}

	var evt Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		core.BadRequest(w, "invalid payload")
		return
	}

	handled, err := h.service.HandleEvent(r.Context(), evt)
	if err != nil {
		if errors.Is(err, core.ErrInvalidInput) {
			core.BadRequest(w, "malformed event object")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, webhookAck{Received: true, Handled: handled})
}
