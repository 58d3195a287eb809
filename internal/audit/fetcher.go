// AngelaMos | 2026
// fetcher.go

package audit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/net/html/charset"

	"github.com/reportriser/backend/internal/core"
)

const (
	defaultFetchTimeout = 10 * time.Second
	maxPageBytes        = 5 << 20
	auditUserAgent      = "Mozilla/5.0 (compatible; ReportRiserAudit/1.0; +https://reportriser.com)"
)

type PageChecker interface {
	Check(ctx context.Context, pageURL string) (*OnPage, error)
}

// HTTPPageChecker downloads a page and runs AnalyzeHTML over it, decoding
// legacy charsets to UTF-8 first.
type HTTPPageChecker struct {
	client *http.Client
}

func NewHTTPPageChecker(client *http.Client) *HTTPPageChecker {
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	return &HTTPPageChecker{client: client}
}

func (c *HTTPPageChecker) Check(ctx context.Context, pageURL string) (*OnPage, error) {
	ctx, span := core.StartSpan(ctx, "audit.page.fetch",
		attribute.String("site.url", pageURL),
	)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build page request: %w", err)
	}
	req.Header.Set("User-Agent", auditUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.client.Do(req)
	if err != nil {
		core.SetSpanError(ctx, err)
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("fetch page: status %d", resp.StatusCode)
	}

	body, err := charset.NewReader(
		io.LimitReader(resp.Body, maxPageBytes),
		resp.Header.Get("Content-Type"),
	)
	if err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}

	page, err := AnalyzeHTML(body)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	return page, nil
}
