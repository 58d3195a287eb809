// AngelaMos | 2026
// pagespeed.go

package vitals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/reportriser/backend/internal/core"
)

const (
	defaultPageSpeedURL = "https://www.googleapis.com/pagespeedonline/v5/runPagespeed"
	defaultStrategy     = "mobile"
	defaultTimeout      = 30 * time.Second
	maxResponseBytes    = 16 << 20
)

var ErrMalformedResponse = errors.New("malformed pagespeed response")

type Provider interface {
	Fetch(ctx context.Context, siteURL string) (Measurement, error)
}

type PageSpeedOptions struct {
	APIKey     string
	BaseURL    string
	Strategy   string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// PageSpeedClient reads lab vitals from the PageSpeed Insights v5 API.
type PageSpeedClient struct {
	apiKey     string
	baseURL    string
	strategy   string
	httpClient *http.Client
}

func NewPageSpeedClient(opts PageSpeedOptions) *PageSpeedClient {
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
		baseURL = defaultPageSpeedURL
	}

	strategy := strings.TrimSpace(opts.Strategy)
	if strategy == "" {
		strategy = defaultStrategy
	}

	return &PageSpeedClient{
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		strategy:   strategy,
		httpClient: httpClient,
	}
}

type pageSpeedResponse struct {
	LighthouseResult *struct {
		Audits map[string]struct {
			NumericValue *float64 `json:"numericValue"`
		} `json:"audits"`
		Categories map[string]struct {
			Score *float64 `json:"score"`
		} `json:"categories"`
	} `json:"lighthouseResult"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *PageSpeedClient) Fetch(
	ctx context.Context,
	siteURL string,
) (Measurement, error) {
	ctx, span := core.StartSpan(ctx, "vitals.pagespeed.fetch",
		attribute.String("site.url", siteURL),
		attribute.String("pagespeed.strategy", c.strategy),
	)
	defer span.End()

	q := url.Values{}
	q.Set("url", siteURL)
	q.Set("strategy", c.strategy)
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}
	for _, category := range []string{"performance", "accessibility", "seo"} {
		q.Add("category", category)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		c.baseURL+"?"+q.Encode(),
		nil,
	)
	if err != nil {
		return Measurement{}, fmt.Errorf("build pagespeed request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		core.SetSpanError(ctx, err)
		return Measurement{}, fmt.Errorf("call pagespeed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Measurement{}, fmt.Errorf("read pagespeed response: %w", err)
	}

	var payload pageSpeedResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return Measurement{}, fmt.Errorf("decode pagespeed response: %w", ErrMalformedResponse)
	}

	if resp.StatusCode != http.StatusOK {
		msg := resp.Status
		if payload.Error != nil && payload.Error.Message != "" {
			msg = payload.Error.Message
		}
		err := fmt.Errorf("pagespeed status %d: %s", resp.StatusCode, msg)
		core.SetSpanError(ctx, err)
		return Measurement{}, err
	}

	m, err := payload.measurement()
	if err != nil {
		core.SetSpanError(ctx, err)
		return Measurement{}, err
	}

	return m, nil
}

func (p pageSpeedResponse) measurement() (Measurement, error) {
	if p.LighthouseResult == nil {
		return Measurement{}, fmt.Errorf("missing lighthouseResult: %w", ErrMalformedResponse)
	}

	audit := func(name string) float64 {
		a, ok := p.LighthouseResult.Audits[name]
		if !ok || a.NumericValue == nil {
			return 0
		}
		return *a.NumericValue
	}

	category := func(name string) (int, error) {
		c, ok := p.LighthouseResult.Categories[name]
		if !ok || c.Score == nil {
			return 0, fmt.Errorf("missing %s category: %w", name, ErrMalformedResponse)
		}
		return int(math.Round(*c.Score * 100)), nil
	}

	scores := &LighthouseScores{}
	var err error
	if scores.Performance, err = category("performance"); err != nil {
		return Measurement{}, err
	}
	if scores.Accessibility, err = category("accessibility"); err != nil {
		return Measurement{}, err
	}
	if scores.SEO, err = category("seo"); err != nil {
		return Measurement{}, err
	}

	return Measurement{
		LCP:    roundTo(audit("largest-contentful-paint")/1000, 2),
		FID:    roundTo(audit("max-potential-fid")/1000, 2),
		CLS:    roundTo(audit("cumulative-layout-shift"), 3),
		Scores: scores,
	}, nil
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
