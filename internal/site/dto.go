// AngelaMos | 2026
// dto.go

package site

import (
	"time"
)

type AddSiteRequest struct {
	URL string `json:"url" validate:"required,http_url,max=2048"`
}

type SiteResponse struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

type SiteListResponse struct {
	Sites []SiteResponse `json:"sites"`
	Used  int            `json:"used"`
	Limit int            `json:"limit"`
}

func ToSiteResponse(s *Site) SiteResponse {
	return SiteResponse{
		ID:        s.ID,
		URL:       s.URL,
		CreatedAt: s.CreatedAt,
	}
}

func ToSiteResponseList(sites []Site) []SiteResponse {
	responses := make([]SiteResponse, 0, len(sites))
	for _, s := range sites {
		responses = append(responses, ToSiteResponse(&s))
	}
	return responses
}
