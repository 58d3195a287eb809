// AngelaMos | 2026
// entity.go

package apikey

import (
	"time"
)

// APIKey is a long-lived credential for programmatic report generation.
// Only the prefix is stored in clear; the secret half is an argon2id hash.
type APIKey struct {
	ID         string     `db:"id"`
	UserID     string     `db:"user_id"`
	Name       string     `db:"name"`
	Prefix     string     `db:"prefix"`
	SecretHash string     `db:"secret_hash"`
	LastUsedAt *time.Time `db:"last_used_at"`
	CreatedAt  time.Time  `db:"created_at"`
	RevokedAt  *time.Time `db:"revoked_at"`
}

func (k *APIKey) IsRevoked() bool {
	return k.RevokedAt != nil
}
