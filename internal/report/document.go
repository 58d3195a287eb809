// AngelaMos | 2026
// document.go

package report

import (
	"fmt"
	"time"

	"github.com/reportriser/backend/internal/entitlement"
)

type SectionKind string

const (
	SectionTitle     SectionKind = "title"
	SectionHeader    SectionKind = "header"
	SectionROI       SectionKind = "roi_summary"
	SectionVitals    SectionKind = "vitals"
	SectionTraffic   SectionKind = "traffic"
	SectionTopPages  SectionKind = "top_pages"
	SectionKeywords  SectionKind = "keywords"
	SectionWatermark SectionKind = "watermark"
)

// SectionOrder is the fixed order sections appear in a document.
var SectionOrder = []SectionKind{
	SectionTitle,
	SectionHeader,
	SectionROI,
	SectionVitals,
	SectionTraffic,
	SectionTopPages,
	SectionKeywords,
	SectionWatermark,
}

type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
	// Relative column widths; empty means equal widths.
	Weights []float64 `json:"-"`
}

type Section struct {
	Kind       SectionKind `json:"kind"`
	Heading    string      `json:"heading,omitempty"`
	Paragraphs []string    `json:"paragraphs,omitempty"`
	Tables     []Table     `json:"tables,omitempty"`
	Callout    string      `json:"callout,omitempty"`
	// Starts on a fresh page when rendered.
	PageBreak bool `json:"-"`
}

// Highlights are the headline numbers kept with the report history row.
type Highlights struct {
	VitalsScore   int     `json:"vitals_score"`
	Revenue       float64 `json:"revenue"`
	GrowthPercent float64 `json:"growth_percent"`
	Traffic       int     `json:"traffic"`
	Conversions   int     `json:"conversions"`
}

// Document is an assembled report. It is immutable once Compose returns.
type Document struct {
	title       string
	siteURL     string
	tier        entitlement.Tier
	generatedAt time.Time
	highlights  Highlights
	sections    []Section
}

func (d *Document) Title() string { return d.title }
func (d *Document) SiteURL() string { return d.siteURL }
func (d *Document) Tier() entitlement.Tier { return d.tier }
func (d *Document) GeneratedAt() time.Time { return d.generatedAt }
func (d *Document) Highlights() Highlights { return d.highlights }
func (d *Document) Len() int { return len(d.sections) }

// Sections returns a deep copy of the ordered sections.
func (d *Document) Sections() []Section {
	out := make([]Section, len(d.sections))
	for i, s := range d.sections {
		out[i] = copySection(s)
	}
	return out
}

func (d *Document) Section(kind SectionKind) (Section, bool) {
	for _, s := range d.sections {
		if s.Kind == kind {
			return copySection(s), true
		}
	}
	return Section{}, false
}

func (d *Document) Has(kind SectionKind) bool {
	_, ok := d.Section(kind)
	return ok
}

func copySection(s Section) Section {
	s.Paragraphs = append([]string(nil), s.Paragraphs...)

	tables := make([]Table, len(s.Tables))
	for i, t := range s.Tables {
		rows := make([][]string, len(t.Rows))
		for j, r := range t.Rows {
			rows[j] = append([]string(nil), r...)
		}
		tables[i] = Table{
			Columns: append([]string(nil), t.Columns...),
			Rows:    rows,
			Weights: append([]float64(nil), t.Weights...),
		}
	}
	if len(tables) == 0 {
		tables = nil
	}
	s.Tables = tables

	return s
}

// CompositionError aborts assembly. No partial document is returned.
type CompositionError struct {
	Section SectionKind
	Err     error
}

func (e *CompositionError) Error() string {
	return fmt.Sprintf("compose %s section: %v", e.Section, e.Err)
}

func (e *CompositionError) Unwrap() error {
	return e.Err
}

// UpstreamDataError is a collaborator failure tied to the section whose
// input it was meant to supply.
type UpstreamDataError struct {
	Source  string
	Section SectionKind
	Err     error
}

func (e *UpstreamDataError) Error() string {
	return fmt.Sprintf("%s data for %s section: %v", e.Source, e.Section, e.Err)
}

func (e *UpstreamDataError) Unwrap() error {
	return e.Err
}
