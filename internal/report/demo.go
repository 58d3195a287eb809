// AngelaMos | 2026
// demo.go

package report

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/reportriser/backend/internal/analytics"
	"github.com/reportriser/backend/internal/core"
	"github.com/reportriser/backend/internal/entitlement"
	"github.com/reportriser/backend/internal/roi"
	"github.com/reportriser/backend/internal/vitals"
)

const (
	demoOrderValue  = 150
	demoKeywordsMax = 3
)

// DemoResult is the public showcase of a premium report.
type DemoResult struct {
	Site           string   `json:"site"`
	Traffic        int      `json:"traffic"`
	Conversions    int      `json:"conversions"`
	Revenue        float64  `json:"revenue"`
	ConversionRate float64  `json:"conversion_rate"`
	CWVScore       int      `json:"cwv_score"`
	TopKeywords    []string `json:"top_keywords"`
	Growth         string   `json:"growth"`
	Summary        string   `json:"summary"`
}

// Demo composes a premium report from the fixed storefront dataset. It
// never touches accounts, quotas or storage.
type Demo struct {
	compositor *Compositor
	renderer   Renderer
	data       analytics.Provider
}

func NewDemo(compositor *Compositor, renderer Renderer) *Demo {
	return &Demo{
		compositor: compositor,
		renderer:   renderer,
		data:       analytics.DemoProvider{},
	}
}

func (d *Demo) Build(ctx context.Context) (DemoResult, *Document, error) {
	site := analytics.DemoSite

	traffic, err := d.data.Traffic(ctx, site)
	if err != nil {
		return DemoResult{}, nil, fmt.Errorf("demo traffic: %w", err)
	}
	search, err := d.data.Search(ctx, site)
	if err != nil {
		return DemoResult{}, nil, fmt.Errorf("demo search: %w", err)
	}
	conversions, err := d.data.Conversions(ctx, site)
	if err != nil {
		return DemoResult{}, nil, fmt.Errorf("demo conversions: %w", err)
	}
	assessment := vitals.Assess(vitals.FallbackMeasurement())

	doc, err := d.compositor.Compose(ctx, Inputs{
		SiteURL:       site,
		Tier:          entitlement.TierPremium,
		AvgOrderValue: demoOrderValue,
		Traffic:       &traffic,
		Search:        &search,
		Conversions:   &conversions,
		Vitals:        &assessment,
	})
	if err != nil {
		return DemoResult{}, nil, err
	}

	summary := roi.Summarize(traffic.TotalUsers, conversions.Conversions, demoOrderValue)
	h := doc.Highlights()

	keywords := make([]string, 0, demoKeywordsMax)
	for _, k := range search.TopKeywords {
		if len(keywords) == demoKeywordsMax {
			break
		}
		keywords = append(keywords, k.Keyword)
	}

	return DemoResult{
		Site:           site,
		Traffic:        traffic.TotalUsers,
		Conversions:    conversions.Conversions,
		Revenue:        summary.Revenue,
		ConversionRate: summary.ConversionRate,
		CWVScore:       assessment.Score,
		TopKeywords:    keywords,
		Growth:         fmt.Sprintf("%+.0f%%", h.GrowthPercent),
		Summary:        summary.Text,
	}, doc, nil
}

type DemoHandler struct {
	demo *Demo
}

func NewDemoHandler(demo *Demo) *DemoHandler {
	return &DemoHandler{demo: demo}
}

// RegisterRoutes mounts the unauthenticated demo behind limiter.
func (h *DemoHandler) RegisterRoutes(r chi.Router, limiter func(http.Handler) http.Handler) {
	r.With(limiter).Get("/demo", h.Summary)
	r.With(limiter).Get("/demo/pdf", h.PDF)
}

func (h *DemoHandler) Summary(w http.ResponseWriter, r *http.Request) {
	result, _, err := h.demo.Build(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}
	core.OK(w, result)
}

func (h *DemoHandler) PDF(w http.ResponseWriter, r *http.Request) {
	_, doc, err := h.demo.Build(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	body, err := h.demo.renderer.Render(doc)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	w.Header().Set("Content-Type", h.demo.renderer.ContentType())
	w.Header().Set("Content-Disposition",
		`inline; filename="demo_report`+h.demo.renderer.Extension()+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(body); err != nil {
		slog.Warn("demo download interrupted", "error", err)
	}
}
