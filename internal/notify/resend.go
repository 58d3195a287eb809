// AngelaMos | 2026
// resend.go

package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/reportriser/backend/internal/core"
)

const (
	defaultResendURL = "https://api.resend.com"
	defaultTimeout   = 10 * time.Second
	maxErrorBody     = 4 << 10
)

type ResendOptions struct {
	APIKey     string
	BaseURL    string
	From       string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// ResendMailer delivers through the Resend HTTP API.
type ResendMailer struct {
	apiKey     string
	baseURL    string
	from       string
	httpClient *http.Client
}

func NewResendMailer(opts ResendOptions) *ResendMailer {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultResendURL
	}

	return &ResendMailer{
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		from:       opts.From,
		httpClient: httpClient,
	}
}

type resendRequest struct {
	From        string             `json:"from"`
	To          []string           `json:"to"`
	Subject     string             `json:"subject"`
	HTML        string             `json:"html,omitempty"`
	Text        string             `json:"text,omitempty"`
	Attachments []resendAttachment `json:"attachments,omitempty"`
}

// Content is base64 encoded.
type resendAttachment struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

func (m *ResendMailer) Send(ctx context.Context, msg Message) error {
	ctx, span := core.StartSpan(ctx, "notify.resend.send",
		attribute.String("email.subject", msg.Subject),
	)
	defer span.End()

	attachments := make([]resendAttachment, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		attachments = append(attachments, resendAttachment{
			Filename: a.Filename,
			Content:  base64.StdEncoding.EncodeToString(a.Content),
		})
	}

	payload, err := json.Marshal(resendRequest{
		From:        m.from,
		To:          []string{msg.To},
		Subject:     msg.Subject,
		HTML:        msg.HTML,
		Text:        msg.Text,
		Attachments: attachments,
	})
	if err != nil {
		return fmt.Errorf("encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		m.baseURL+"/emails",
		bytes.NewReader(payload),
	)
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		core.SetSpanError(ctx, err)
		return fmt.Errorf("call resend: %w", core.ErrUpstream)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		err := fmt.Errorf("resend status %d: %s: %w",
			resp.StatusCode, strings.TrimSpace(string(body)), core.ErrUpstream)
		core.SetSpanError(ctx, err)
		return err
	}

	return nil
}
