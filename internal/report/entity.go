// AngelaMos | 2026
// entity.go

package report

import (
	"time"
)

type Report struct {
	ID            string    `db:"id"`
	UserID        string    `db:"user_id"`
	SiteURL       string    `db:"site_url"`
	Tier          string    `db:"tier"`
	ArtifactKey   string    `db:"artifact_key"`
	Filename      string    `db:"filename"`
	SizeBytes     int       `db:"size_bytes"`
	VitalsScore   int       `db:"vitals_score"`
	Revenue       float64   `db:"revenue"`
	GrowthPercent float64   `db:"growth_percent"`
	CreatedAt     time.Time `db:"created_at"`
}

// DownloadName is the attachment name offered to browsers.
func (r *Report) DownloadName() string {
	return "seo-report-" + r.ID + ".pdf"
}
