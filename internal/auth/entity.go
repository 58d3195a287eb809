// AngelaMos | 2026
// entity.go

package auth

import (
	"time"
)

// MagicLink is a pending single-use login. Only the SHA-256 hash of the
// emailed token is stored.
type MagicLink struct {
	ID        string     `db:"id"`
	Email     string     `db:"email"`
	TokenHash string     `db:"token_hash"`
	ExpiresAt time.Time  `db:"expires_at"`
	CreatedAt time.Time  `db:"created_at"`
	UsedAt    *time.Time `db:"used_at"`
}

func (l *MagicLink) IsExpired() bool {
	return time.Now().After(l.ExpiresAt)
}
