// AngelaMos | 2026
// tier.go

package entitlement

import (
	"fmt"
	"strings"
)

type Tier string

const (
	TierFree       Tier = "free"
	TierStarter    Tier = "starter"
	TierPremium    Tier = "premium"
	TierEnterprise Tier = "enterprise"
)

// Ladder is the upgrade order, cheapest first.
var Ladder = []Tier{TierFree, TierStarter, TierPremium, TierEnterprise}

// Unlimited marks a numeric limit that is never enforced.
const Unlimited = -1

type Capability string

const (
	CapabilityEmailScheduling Capability = "email_scheduling"
	CapabilityWhiteLabel      Capability = "white_label"
	CapabilityAPIAccess       Capability = "api_access"
)

type Limits struct {
	MaxReportsPerPeriod int  `json:"max_reports_per_period"`
	MaxSites            int  `json:"max_sites"`
	EmailScheduling     bool `json:"email_scheduling"`
	WhiteLabel          bool `json:"white_label"`
	APIAccess           bool `json:"api_access"`
	MaxSeats            int  `json:"max_seats"`
}

func (l Limits) ReportsUnlimited() bool {
	return l.MaxReportsPerPeriod == Unlimited
}

func (l Limits) SitesUnlimited() bool {
	return l.MaxSites == Unlimited
}

func (l Limits) Has(c Capability) bool {
	switch c {
	case CapabilityEmailScheduling:
		return l.EmailScheduling
	case CapabilityWhiteLabel:
		return l.WhiteLabel
	case CapabilityAPIAccess:
		return l.APIAccess
	default:
		return false
	}
}

var limitsTable = map[Tier]Limits{
	TierFree: {
		MaxReportsPerPeriod: 1,
		MaxSites:            1,
		MaxSeats:            1,
	},
	TierStarter: {
		MaxReportsPerPeriod: 50,
		MaxSites:            3,
		MaxSeats:            1,
	},
	TierPremium: {
		MaxReportsPerPeriod: Unlimited,
		MaxSites:            20,
		EmailScheduling:     true,
		MaxSeats:            3,
	},
	TierEnterprise: {
		MaxReportsPerPeriod: Unlimited,
		MaxSites:            Unlimited,
		EmailScheduling:     true,
		WhiteLabel:          true,
		APIAccess:           true,
		MaxSeats:            Unlimited,
	},
}

// ConfigurationError reports a tier value with no limits record. It is
// logged by the Engine and never returned to request handlers.
type ConfigurationError struct {
	Value string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("unknown tier %q, falling back to %s limits", e.Value, TierFree)
}

func (t Tier) Valid() bool {
	_, ok := limitsTable[t]
	return ok
}

func (t Tier) String() string {
	return string(t)
}

func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return TierFree, &ConfigurationError{Value: s}
	}
	return t, nil
}

// LimitsFor never fails: unknown tiers get the free limits.
func LimitsFor(t Tier) Limits {
	if l, ok := limitsTable[t]; ok {
		return l
	}
	return limitsTable[TierFree]
}

// ResolveLimits is LimitsFor with the fallback surfaced as a
// *ConfigurationError alongside the free limits.
func ResolveLimits(t Tier) (Limits, error) {
	if l, ok := limitsTable[t]; ok {
		return l, nil
	}
	return limitsTable[TierFree], &ConfigurationError{Value: string(t)}
}

func HasCapability(t Tier, c Capability) bool {
	return LimitsFor(t).Has(c)
}

// RecommendedUpgradeTier returns the next rung of the ladder, or false at
// the top. Unknown tiers are treated as free.
func RecommendedUpgradeTier(current Tier) (Tier, bool) {
	if !current.Valid() {
		current = TierFree
	}

	for i, t := range Ladder {
		if t == current && i+1 < len(Ladder) {
			return Ladder[i+1], true
		}
	}

	return "", false
}
