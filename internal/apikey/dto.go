// AngelaMos | 2026
// dto.go

package apikey

import (
	"time"
)

type CreateKeyRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

type KeyResponse struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Prefix     string     `json:"prefix"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// CreatedKeyResponse carries the full key. It is returned exactly once.
type CreatedKeyResponse struct {
	KeyResponse
	Key string `json:"key"`
}

func ToKeyResponse(k *APIKey) KeyResponse {
	return KeyResponse{
		ID:         k.ID,
		Name:       k.Name,
		Prefix:     k.Prefix,
		LastUsedAt: k.LastUsedAt,
		CreatedAt:  k.CreatedAt,
	}
}

func ToKeyResponseList(keys []APIKey) []KeyResponse {
	out := make([]KeyResponse, len(keys))
	for i := range keys {
		out[i] = ToKeyResponse(&keys[i])
	}
	return out
}
