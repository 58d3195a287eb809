// AngelaMos | 2026
// dto.go

package report

import (
	"time"

	"github.com/reportriser/backend/internal/roi"
	"github.com/reportriser/backend/internal/vitals"
)

type GenerateRequest struct {
	SiteURL       string   `json:"site_url"                  validate:"required,http_url,max=2048"`
	AvgOrderValue *float64 `json:"avg_order_value,omitempty" validate:"omitempty,gt=0,lte=1000000"`
	EmailReport   bool     `json:"email_report,omitempty"`
}

type ReportResponse struct {
	ID            string    `json:"id"`
	SiteURL       string    `json:"site_url"`
	Tier          string    `json:"tier"`
	Filename      string    `json:"filename"`
	SizeBytes     int       `json:"size_bytes"`
	VitalsScore   int       `json:"vitals_score"`
	Revenue       float64   `json:"revenue"`
	GrowthPercent float64   `json:"growth_percent"`
	DownloadURL   string    `json:"download_url"`
	CreatedAt     time.Time `json:"created_at"`
}

type GenerateResponse struct {
	Report  ReportResponse    `json:"report"`
	ROI     roi.Summary       `json:"roi"`
	Vitals  vitals.Assessment `json:"vitals"`
	Emailed bool              `json:"emailed"`
}

// DenialDetails is attached to a QUOTA_EXCEEDED error.
type DenialDetails struct {
	Action    string `json:"action"`
	Reason    string `json:"reason"`
	Limit     int    `json:"limit"`
	UpgradeTo string `json:"upgrade_to,omitempty"`
}

func ToReportResponse(r *Report) ReportResponse {
	return ReportResponse{
		ID:            r.ID,
		SiteURL:       r.SiteURL,
		Tier:          r.Tier,
		Filename:      r.Filename,
		SizeBytes:     r.SizeBytes,
		VitalsScore:   r.VitalsScore,
		Revenue:       r.Revenue,
		GrowthPercent: r.GrowthPercent,
		DownloadURL:   "/v1/reports/" + r.ID + "/download",
		CreatedAt:     r.CreatedAt,
	}
}

func ToReportResponseList(reports []Report) []ReportResponse {
	responses := make([]ReportResponse, 0, len(reports))
	for _, r := range reports {
		responses = append(responses, ToReportResponse(&r))
	}
	return responses
}
