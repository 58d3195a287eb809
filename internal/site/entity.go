// AngelaMos | 2026
// entity.go

package site

import (
	"time"
)

type Site struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	URL       string    `db:"url"`
	CreatedAt time.Time `db:"created_at"`
}
