// AngelaMos | 2026
// service.go

package apikey

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/reportriser/backend/internal/core"
	"github.com/reportriser/backend/internal/entitlement"
	"github.com/reportriser/backend/internal/middleware"
)

const (
	keyScheme    = "rr_"
	prefixBytes  = 9
	secretBytes  = 32
	apiKeyRole   = "user"
	keySeparator = "."
)

type AccountReader interface {
	GetAccount(ctx context.Context, userID string) (entitlement.Account, error)
}

type Service struct {
	repo     Repository
	accounts AccountReader
	logger   *slog.Logger
}

func NewService(repo Repository, accounts AccountReader, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, accounts: accounts, logger: logger}
}

// Create issues a key for users whose tier carries API access. The returned
// plaintext is never stored.
func (s *Service) Create(
	ctx context.Context,
	userID, name string,
) (*APIKey, string, error) {
	acct, err := s.accounts.GetAccount(ctx, userID)
	if err != nil {
		return nil, "", err
	}

	if !entitlement.HasCapability(acct.Tier, entitlement.CapabilityAPIAccess) {
		return nil, "", fmt.Errorf("create api key: %w", core.ErrForbidden)
	}

	prefix, err := core.GenerateSecureToken(prefixBytes)
	if err != nil {
		return nil, "", fmt.Errorf("generate key prefix: %w", err)
	}

	secret, err := core.GenerateSecureToken(secretBytes)
	if err != nil {
		return nil, "", fmt.Errorf("generate key secret: %w", err)
	}

	hash, err := core.HashSecret(secret)
	if err != nil {
		return nil, "", fmt.Errorf("hash key secret: %w", err)
	}

	key := &APIKey{
		ID:         uuid.New().String(),
		UserID:     userID,
		Name:       strings.TrimSpace(name),
		Prefix:     prefix,
		SecretHash: hash,
	}

	if err := s.repo.Create(ctx, key); err != nil {
		return nil, "", err
	}

	s.logger.Info("api key created", "user_id", userID, "key_id", key.ID)
	return key, FormatKey(prefix, secret), nil
}

func FormatKey(prefix, secret string) string {
	return keyScheme + prefix + keySeparator + secret
}

// ParseKey splits rr_<prefix>.<secret>.
func ParseKey(raw string) (prefix, secret string, ok bool) {
	rest, found := strings.CutPrefix(raw, keyScheme)
	if !found {
		return "", "", false
	}

	prefix, secret, found = strings.Cut(rest, keySeparator)
	if !found || prefix == "" || secret == "" {
		return "", "", false
	}

	return prefix, secret, true
}

// VerifyAPIKey resolves a raw key to its owner. Unknown prefixes still pay
// the argon2 cost so response timing does not reveal which prefixes exist.
// A key whose owner was downgraded out of API access yields ErrForbidden.
func (s *Service) VerifyAPIKey(
	ctx context.Context,
	raw string,
) (*middleware.APIKeyPrincipal, error) {
	prefix, secret, ok := ParseKey(raw)
	if !ok {
		return nil, fmt.Errorf("verify api key: %w", core.ErrUnauthorized)
	}

	key, err := s.repo.GetByPrefix(ctx, prefix)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}

	var hash *string
	if key != nil {
		hash = &key.SecretHash
	}

	match, err := core.VerifySecretTimingSafe(secret, hash)
	if err != nil {
		return nil, fmt.Errorf("verify api key: %w", err)
	}
	if !match || key == nil {
		return nil, fmt.Errorf("verify api key: %w", core.ErrUnauthorized)
	}

	acct, err := s.accounts.GetAccount(ctx, key.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("verify api key: %w", core.ErrUnauthorized)
		}
		return nil, err
	}

	if !entitlement.HasCapability(acct.Tier, entitlement.CapabilityAPIAccess) {
		return nil, fmt.Errorf("verify api key: %w", core.ErrForbidden)
	}

	if err := s.repo.TouchLastUsed(ctx, key.ID); err != nil {
		s.logger.Warn("failed to record api key use", "key_id", key.ID, "error", err)
	}

	return &middleware.APIKeyPrincipal{
		KeyID:  key.ID,
		UserID: key.UserID,
		Role:   apiKeyRole,
		Tier:   string(acct.Tier),
	}, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]APIKey, error) {
	return s.repo.ListForUser(ctx, userID)
}

func (s *Service) Revoke(ctx context.Context, userID, keyID string) error {
	if _, err := uuid.Parse(keyID); err != nil {
		return fmt.Errorf("revoke api key: %w", core.ErrNotFound)
	}
	return s.repo.Revoke(ctx, keyID, userID)
}

var _ middleware.APIKeyVerifier = (*Service)(nil)
