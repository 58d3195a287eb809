// AngelaMos | 2026
// service.go

package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/reportriser/backend/internal/core"
	"github.com/reportriser/backend/internal/entitlement"
)

const priceMetadataKey = "price_id"

type TierSetter interface {
	SetTier(ctx context.Context, userID string, tier entitlement.Tier) error
	SetTierBySubscription(ctx context.Context, subscriptionID string, tier entitlement.Tier) error
}

type SubscriptionLinker interface {
	LinkSubscription(ctx context.Context, userID, customerID, subscriptionID string) error
}

// UpgradeNotifier tells the account owner about a new plan.
type UpgradeNotifier interface {
	SendUpgradeNotice(ctx context.Context, userID string, tier entitlement.Tier) error
}

type ServiceConfig struct {
	Tiers       TierSetter
	Links       SubscriptionLinker
	Notifier    UpgradeNotifier
	TierPrices  map[string]string
	DefaultTier string
	Logger      *slog.Logger
}

type Service struct {
	tiers       TierSetter
	links       SubscriptionLinker
	notifier    UpgradeNotifier
	priceTiers  map[string]entitlement.Tier
	defaultTier entitlement.Tier
	logger      *slog.Logger
}

func NewService(cfg ServiceConfig) *Service {
	priceTiers := make(map[string]entitlement.Tier, len(cfg.TierPrices))
	for name, price := range cfg.TierPrices {
		tier, err := entitlement.ParseTier(name)
		if err != nil || price == "" {
			continue
		}
		priceTiers[price] = tier
	}

	def, err := entitlement.ParseTier(cfg.DefaultTier)
	if err != nil || def == entitlement.TierFree {
		def = entitlement.TierStarter
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		tiers:       cfg.Tiers,
		links:       cfg.Links,
		notifier:    cfg.Notifier,
		priceTiers:  priceTiers,
		defaultTier: def,
		logger:      logger,
	}
}

// TierForPrice maps a Stripe price id to a tier, falling back to the
// default paid tier for unknown or missing prices.
func (s *Service) TierForPrice(priceID string) entitlement.Tier {
	if tier, ok := s.priceTiers[strings.TrimSpace(priceID)]; ok {
		return tier
	}
	return s.defaultTier
}

// HandleEvent applies a verified webhook event. It reports whether the
// event type was acted on; unknown types are not an error.
func (s *Service) HandleEvent(ctx context.Context, evt Event) (bool, error) {
	switch evt.Type {
	case EventCheckoutCompleted:
		return true, s.checkoutCompleted(ctx, evt)
	case EventSubscriptionDeleted:
		return true, s.subscriptionDeleted(ctx, evt)
	default:
		s.logger.Debug("ignoring billing event", "event_id", evt.ID, "type", evt.Type)
		return false, nil
	}
}

func (s *Service) checkoutCompleted(ctx context.Context, evt Event) error {
	var sess checkoutSession
	if err := json.Unmarshal(evt.Data.Object, &sess); err != nil {
		return fmt.Errorf("decode checkout session: %w", core.ErrInvalidInput)
	}

	if sess.ClientReferenceID == "" {
		return fmt.Errorf("checkout session %s has no client reference: %w",
			sess.ID, core.ErrInvalidInput)
	}

	tier := s.TierForPrice(sess.Metadata[priceMetadataKey])

	if err := s.tiers.SetTier(ctx, sess.ClientReferenceID, tier); err != nil {
		return fmt.Errorf("upgrade account: %w", err)
	}

	if sess.Subscription != "" || sess.Customer != "" {
		err := s.links.LinkSubscription(ctx, sess.ClientReferenceID, sess.Customer, sess.Subscription)
		if err != nil {
			return fmt.Errorf("link subscription: %w", err)
		}
	}

	s.logger.Info("subscription started",
		"event_id", evt.ID,
		"user_id", sess.ClientReferenceID,
		"tier", tier,
	)

	s.notifyUpgrade(ctx, sess.ClientReferenceID, tier)
	return nil
}

// notifyUpgrade is best effort; the tier change stands if mail fails.
func (s *Service) notifyUpgrade(ctx context.Context, userID string, tier entitlement.Tier) {
	if s.notifier == nil {
		return
	}

	if err := s.notifier.SendUpgradeNotice(ctx, userID, tier); err != nil {
		s.logger.Warn("upgrade notice not sent",
			"user_id", userID,
			"tier", tier,
			"error", err,
		)
	}
}

func (s *Service) subscriptionDeleted(ctx context.Context, evt Event) error {
	var sub subscription
	if err := json.Unmarshal(evt.Data.Object, &sub); err != nil || sub.ID == "" {
		return fmt.Errorf("decode subscription: %w", core.ErrInvalidInput)
	}

	err := s.tiers.SetTierBySubscription(ctx, sub.ID, entitlement.TierFree)
	if errors.Is(err, core.ErrNotFound) {
		s.logger.Warn("cancelled subscription has no account",
			"event_id", evt.ID,
			"subscription_id", sub.ID,
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("downgrade account: %w", err)
	}

	s.logger.Info("subscription cancelled", "event_id", evt.ID, "subscription_id", sub.ID)
	return nil
}
