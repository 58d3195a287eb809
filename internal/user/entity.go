// AngelaMos | 2026
// entity.go

package user

import (
	"time"

	"github.com/reportriser/backend/internal/entitlement"
)

type User struct {
	ID                   string           `db:"id"`
	Email                string           `db:"email"`
	Name                 string           `db:"name"`
	Role                 string           `db:"role"`
	Tier                 entitlement.Tier `db:"tier"`
	ReportsUsed          int              `db:"reports_used"`
	SitesUsed            int              `db:"sites_used"`
	TokenVersion         int              `db:"token_version"`
	StripeCustomerID     *string          `db:"stripe_customer_id"`
	StripeSubscriptionID *string          `db:"stripe_subscription_id"`
	CreatedAt            time.Time        `db:"created_at"`
	UpdatedAt            time.Time        `db:"updated_at"`
	DeletedAt            *time.Time       `db:"deleted_at"`
}

func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) Account() entitlement.Account {
	return entitlement.Account{
		UserID:      u.ID,
		Tier:        u.Tier,
		ReportsUsed: u.ReportsUsed,
		SitesUsed:   u.SitesUsed,
	}
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type TierCount struct {
	Tier  entitlement.Tier `db:"tier"  json:"tier"`
	Users int              `db:"users" json:"users"`
}
