// AngelaMos | 2026
// engine.go

package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/reportriser/backend/internal/core"
)

const (
	ActionGenerateReport = "generate_report"
	ActionAddSite        = "add_site"

	upgradePromptPercent = 80.0
)

type Account struct {
	UserID      string `db:"id"`
	Tier        Tier   `db:"tier"`
	ReportsUsed int    `db:"reports_used"`
	SitesUsed   int    `db:"sites_used"`
}

// Decision is the outcome of an admission check. A denial is an expected
// business result, not an error.
type Decision struct {
	Allowed   bool   `json:"allowed"`
	Action    string `json:"action"`
	Reason    string `json:"reason,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	UpgradeTo Tier   `json:"upgrade_to,omitempty"`
}

// SiteRegistry is the per-user site store and quota ledger. Calls made
// through the value handed to Registry.Atomically run as one unit.
type SiteRegistry interface {
	IsSiteRegistered(ctx context.Context, userID, siteURL string) (bool, error)
	CountSites(ctx context.Context, userID string) (int, error)
	RegisterSite(ctx context.Context, userID, siteURL string) error
	IncrementSiteUsage(ctx context.Context, userID string) error
	// IncrementReportsUsed bumps the counter only while it is below limit
	// (any value when limit is Unlimited) and reports whether it did.
	IncrementReportsUsed(ctx context.Context, userID string, limit int) (bool, error)
	// DB is the unit's own connection, for writes that must commit or
	// roll back together with the counters.
	DB() core.DBTX
}

type Registry interface {
	// Atomically locks the user's row and calls fn with the account as
	// read under that lock. An error from fn undoes every write.
	Atomically(
		ctx context.Context,
		userID string,
		fn func(ctx context.Context, reg SiteRegistry, locked Account) error,
	) error
}

type AccountStore interface {
	SetTier(ctx context.Context, userID string, tier Tier) error
	SetTierBySubscription(
		ctx context.Context,
		subscriptionID string,
		tier Tier,
	) error
}

type EngineConfig struct {
	Registry Registry
	Accounts AccountStore
	Logger   *slog.Logger
	Metrics  *core.Metrics
}

type Engine struct {
	registry Registry
	accounts AccountStore
	logger   *slog.Logger
	metrics  *core.Metrics
}

func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		registry: cfg.Registry,
		accounts: cfg.Accounts,
		logger:   logger,
		metrics:  cfg.Metrics,
	}
}

func (e *Engine) LimitsFor(t Tier) Limits {
	limits, err := ResolveLimits(t)
	if err != nil {
		var cfgErr *ConfigurationError
		if errors.As(err, &cfgErr) {
			e.logger.Warn("tier has no limits record",
				"tier", cfgErr.Value,
				"fallback", TierFree,
			)
		}
	}
	return limits
}

func (e *Engine) CanGenerateReport(acct Account) Decision {
	limits := e.LimitsFor(acct.Tier)

	if limits.ReportsUnlimited() ||
		acct.ReportsUsed < limits.MaxReportsPerPeriod {
		return allow(ActionGenerateReport)
	}

	return e.deny(acct.Tier, ActionGenerateReport, limits.MaxReportsPerPeriod)
}

// errDenied rolls a unit back when an admission is refused.
var errDenied = errors.New("admission denied")

// CheckSite reports whether siteURL could be admitted right now without
// registering it.
func (e *Engine) CheckSite(
	ctx context.Context,
	acct Account,
	siteURL string,
) (Decision, error) {
	var decision Decision

	err := e.registry.Atomically(ctx, acct.UserID,
		func(ctx context.Context, reg SiteRegistry, locked Account) error {
			limits := e.LimitsFor(locked.Tier)

			_, fits, err := siteFits(ctx, reg, acct.UserID, siteURL, limits)
			if err != nil {
				return err
			}

			decision = allow(ActionAddSite)
			if !fits {
				decision = e.deny(locked.Tier, ActionAddSite, limits.MaxSites)
			}
			return nil
		},
	)
	if err != nil {
		return Decision{}, fmt.Errorf("check site: %w", err)
	}

	return decision, nil
}

// CanAddSite admits a site for the account. An already registered URL is
// allowed without touching any counter; otherwise the count check, the
// registration and the usage increment run inside one Registry unit
// against the tier read under the row lock.
func (e *Engine) CanAddSite(
	ctx context.Context,
	acct Account,
	siteURL string,
) (Decision, error) {
	var decision Decision

	err := e.registry.Atomically(ctx, acct.UserID,
		func(ctx context.Context, reg SiteRegistry, locked Account) error {
			limits := e.LimitsFor(locked.Tier)

			known, fits, err := siteFits(ctx, reg, acct.UserID, siteURL, limits)
			if err != nil {
				return err
			}
			if !fits {
				decision = e.deny(locked.Tier, ActionAddSite, limits.MaxSites)
				return nil
			}

			decision = allow(ActionAddSite)
			if known {
				return nil
			}
			return registerSite(ctx, reg, acct.UserID, siteURL)
		},
	)
	if err != nil {
		return Decision{}, fmt.Errorf("admit site: %w", err)
	}

	return decision, nil
}

// RecordReport admits siteURL and consumes one report from the quota in a
// single unit, running commit inside it once both are granted. A denial,
// or an error from commit, leaves the sites and both counters unchanged.
func (e *Engine) RecordReport(
	ctx context.Context,
	acct Account,
	siteURL string,
	commit func(ctx context.Context, db core.DBTX) error,
) (Decision, error) {
	var decision Decision

	err := e.registry.Atomically(ctx, acct.UserID,
		func(ctx context.Context, reg SiteRegistry, locked Account) error {
			limits := e.LimitsFor(locked.Tier)

			if !limits.ReportsUnlimited() &&
				locked.ReportsUsed >= limits.MaxReportsPerPeriod {
				decision = e.deny(locked.Tier, ActionGenerateReport, limits.MaxReportsPerPeriod)
				return errDenied
			}

			known, fits, err := siteFits(ctx, reg, acct.UserID, siteURL, limits)
			if err != nil {
				return err
			}
			if !fits {
				decision = e.deny(locked.Tier, ActionAddSite, limits.MaxSites)
				return errDenied
			}
			if !known {
				if err := registerSite(ctx, reg, acct.UserID, siteURL); err != nil {
					return err
				}
			}

			ok, err := reg.IncrementReportsUsed(ctx, acct.UserID, limits.MaxReportsPerPeriod)
			if err != nil {
				return fmt.Errorf("increment reports used: %w", err)
			}
			if !ok {
				decision = e.deny(locked.Tier, ActionGenerateReport, limits.MaxReportsPerPeriod)
				return errDenied
			}

			if commit != nil {
				if err := commit(ctx, reg.DB()); err != nil {
					return err
				}
			}

			decision = allow(ActionGenerateReport)
			return nil
		},
	)
	if errors.Is(err, errDenied) {
		return decision, nil
	}
	if err != nil {
		return Decision{}, fmt.Errorf("record report: %w", err)
	}

	return decision, nil
}

// siteFits reports whether siteURL is already registered and whether the
// account may hold it under limits.
func siteFits(
	ctx context.Context,
	reg SiteRegistry,
	userID, siteURL string,
	limits Limits,
) (known, fits bool, err error) {
	known, err = reg.IsSiteRegistered(ctx, userID, siteURL)
	if err != nil {
		return false, false, fmt.Errorf("check site registration: %w", err)
	}
	if known || limits.SitesUnlimited() {
		return known, true, nil
	}

	count, err := reg.CountSites(ctx, userID)
	if err != nil {
		return false, false, fmt.Errorf("count sites: %w", err)
	}

	return false, count < limits.MaxSites, nil
}

func registerSite(ctx context.Context, reg SiteRegistry, userID, siteURL string) error {
	if err := reg.RegisterSite(ctx, userID, siteURL); err != nil {
		return fmt.Errorf("register site: %w", err)
	}
	if err := reg.IncrementSiteUsage(ctx, userID); err != nil {
		return fmt.Errorf("increment site usage: %w", err)
	}
	return nil
}

func (e *Engine) UsagePercentage(acct Account) float64 {
	limits := e.LimitsFor(acct.Tier)

	if limits.ReportsUnlimited() || limits.MaxReportsPerPeriod <= 0 {
		return 0
	}

	pct := float64(acct.ReportsUsed) / float64(limits.MaxReportsPerPeriod) * 100
	return math.Min(100, pct)
}

// ShouldPromptUpgrade is true for free accounts only once the limit is
// reached, and for paid accounts from 80% usage.
func (e *Engine) ShouldPromptUpgrade(acct Account) bool {
	limits := e.LimitsFor(acct.Tier)

	if acct.Tier == TierFree || !acct.Tier.Valid() {
		return !limits.ReportsUnlimited() &&
			acct.ReportsUsed >= limits.MaxReportsPerPeriod
	}

	return e.UsagePercentage(acct) >= upgradePromptPercent
}

func (e *Engine) SetTier(ctx context.Context, userID string, tier Tier) error {
	if !tier.Valid() {
		return fmt.Errorf("set tier %q: %w", tier, core.ErrInvalidInput)
	}

	if err := e.accounts.SetTier(ctx, userID, tier); err != nil {
		return fmt.Errorf("set tier: %w", err)
	}

	e.logger.Info("tier assigned", "user_id", userID, "tier", tier)
	return nil
}

func (e *Engine) SetTierBySubscription(
	ctx context.Context,
	subscriptionID string,
	tier Tier,
) error {
	if !tier.Valid() {
		return fmt.Errorf("set tier %q: %w", tier, core.ErrInvalidInput)
	}

	if err := e.accounts.SetTierBySubscription(ctx, subscriptionID, tier); err != nil {
		return fmt.Errorf("set tier by subscription: %w", err)
	}

	e.logger.Info("tier assigned",
		"subscription_id", subscriptionID,
		"tier", tier,
	)
	return nil
}

type Usage struct {
	Tier                Tier    `json:"tier"`
	Limits              Limits  `json:"limits"`
	ReportsUsed         int     `json:"reports_used"`
	SitesUsed           int     `json:"sites_used"`
	UsagePercentage     float64 `json:"usage_percentage"`
	ShouldPromptUpgrade bool    `json:"should_prompt_upgrade"`
	RecommendedUpgrade  *Tier   `json:"recommended_upgrade"`
}

func (e *Engine) Usage(acct Account) Usage {
	u := Usage{
		Tier:                acct.Tier,
		Limits:              e.LimitsFor(acct.Tier),
		ReportsUsed:         acct.ReportsUsed,
		SitesUsed:           acct.SitesUsed,
		UsagePercentage:     e.UsagePercentage(acct),
		ShouldPromptUpgrade: e.ShouldPromptUpgrade(acct),
	}

	if next, ok := RecommendedUpgradeTier(acct.Tier); ok {
		u.RecommendedUpgrade = &next
	}

	return u
}

func allow(action string) Decision {
	return Decision{Allowed: true, Action: action}
}

func (e *Engine) deny(tier Tier, action string, limit int) Decision {
	d := Decision{
		Allowed: false,
		Action:  action,
		Limit:   limit,
		Reason:  denialReason(action, limit),
	}

	if next, ok := RecommendedUpgradeTier(tier); ok {
		d.UpgradeTo = next
	}

	if e.metrics != nil {
		e.metrics.AdmissionsDenied.WithLabelValues(action, string(tier)).Inc()
	}

	return d
}

func denialReason(action string, limit int) string {
	switch action {
	case ActionAddSite:
		return fmt.Sprintf(
			"You've reached your limit of %d sites. Upgrade to add more sites.",
			limit,
		)
	default:
		return fmt.Sprintf(
			"You've reached your monthly limit of %d reports. Upgrade to generate more reports.",
			limit,
		)
	}
}
