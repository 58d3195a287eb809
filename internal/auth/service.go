// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/reportriser/backend/internal/core"
	"github.com/reportriser/backend/internal/middleware"
)

const (
	magicTokenBytes  = 32
	defaultLinkTTL   = time.Hour
	blacklistKeyBase = "blacklist:"
)

type UserInfo struct {
	ID           string
	Email        string
	Name         string
	Role         string
	Tier         string
	TokenVersion int
}

type UserProvider interface {
	GetByID(ctx context.Context, id string) (*UserInfo, error)
	GetOrCreateByEmail(
		ctx context.Context,
		email string,
	) (info *UserInfo, created bool, err error)
	IncrementTokenVersion(ctx context.Context, userID string) error
}

type Mailer interface {
	SendMagicLink(ctx context.Context, to, link string, ttl time.Duration) error
}

type ServiceConfig struct {
	Repo      Repository
	JWT       *JWTManager
	Users     UserProvider
	Redis     *redis.Client
	Mailer    Mailer
	LinkTTL   time.Duration
	VerifyURL string
	Logger    *slog.Logger
}

type Service struct {
	repo      Repository
	jwt       *JWTManager
	users     UserProvider
	redis     *redis.Client
	mailer    Mailer
	linkTTL   time.Duration
	verifyURL string
	logger    *slog.Logger
}

func NewService(cfg ServiceConfig) *Service {
	ttl := cfg.LinkTTL
	if ttl <= 0 {
		ttl = defaultLinkTTL
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		repo:      cfg.Repo,
		jwt:       cfg.JWT,
		users:     cfg.Users,
		redis:     cfg.Redis,
		mailer:    cfg.Mailer,
		linkTTL:   ttl,
		verifyURL: cfg.VerifyURL,
		logger:    logger,
	}
}

// RequestMagicLink stores a hashed single-use token and mails the login
// link. The plaintext token only ever exists in the email.
func (s *Service) RequestMagicLink(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	token, err := core.GenerateSecureToken(magicTokenBytes)
	if err != nil {
		return fmt.Errorf("generate magic token: %w", err)
	}

	link := &MagicLink{
		ID:        uuid.New().String(),
		Email:     email,
		TokenHash: core.HashToken(token),
		ExpiresAt: time.Now().Add(s.linkTTL),
	}

	if err := s.repo.Create(ctx, link); err != nil {
		return err
	}

	loginURL, err := s.buildLink(token)
	if err != nil {
		return err
	}

	if err := s.mailer.SendMagicLink(ctx, email, loginURL, s.linkTTL); err != nil {
		return fmt.Errorf("send magic link: %w", err)
	}

	s.logger.Info("magic link issued", "link_id", link.ID)
	return nil
}

func (s *Service) buildLink(token string) (string, error) {
	u, err := url.Parse(s.verifyURL)
	if err != nil {
		return "", fmt.Errorf("parse verify url: %w", err)
	}

	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Verify redeems a magic-link token, creating a free-tier user on first
// login, and issues an access token.
func (s *Service) Verify(ctx context.Context, token string) (*AuthResponse, error) {
	if token == "" {
		return nil, fmt.Errorf("verify magic link: %w", core.ErrTokenInvalid)
	}

	link, err := s.repo.Consume(ctx, core.HashToken(token))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("verify magic link: %w", core.ErrTokenInvalid)
		}
		return nil, err
	}

	user, created, err := s.users.GetOrCreateByEmail(ctx, link.Email)
	if err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}

	issued, err := s.jwt.CreateAccessToken(AccessTokenClaims{
		UserID:       user.ID,
		Role:         user.Role,
		Tier:         user.Tier,
		TokenVersion: user.TokenVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}

	if created {
		s.logger.Info("user signed up", "user_id", user.ID)
	}

	return &AuthResponse{
		User: UserResponse{
			ID:    user.ID,
			Email: user.Email,
			Name:  user.Name,
			Role:  user.Role,
			Tier:  user.Tier,
		},
		Tokens: TokenResponse{
			AccessToken: issued.Token,
			TokenType:   "Bearer",
			ExpiresIn:   int(time.Until(issued.ExpiresAt).Seconds()),
			ExpiresAt:   issued.ExpiresAt,
		},
		NewUser: created,
	}, nil
}

// VerifyAccessToken checks the signature, the logout blacklist and the
// user's token version.
func (s *Service) VerifyAccessToken(
	ctx context.Context,
	raw string,
) (*middleware.AccessTokenClaims, error) {
	claims, err := s.jwt.VerifyAccessToken(ctx, raw)
	if err != nil {
		return nil, err
	}

	if claims.TokenID != "" && s.redis != nil {
		revoked, err := s.IsAccessTokenBlacklisted(ctx, claims.TokenID)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, fmt.Errorf("verify token: %w", core.ErrTokenRevoked)
		}
	}

	if err := s.ValidateTokenVersion(ctx, claims.UserID, claims.TokenVersion); err != nil {
		return nil, err
	}

	return claims, nil
}

func (s *Service) Logout(ctx context.Context, claims *middleware.AccessTokenClaims) error {
	if claims == nil || claims.TokenID == "" {
		return nil
	}
	return s.RevokeAccessToken(ctx, claims.TokenID, claims.ExpiresAt)
}

// LogoutAll invalidates every token issued to the user so far.
func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	if err := s.users.IncrementTokenVersion(ctx, userID); err != nil {
		return fmt.Errorf("increment token version: %w", err)
	}
	return nil
}

func (s *Service) RevokeAccessToken(
	ctx context.Context,
	jti string,
	expiresAt time.Time,
) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}

	if err := s.redis.Set(ctx, blacklistKeyBase+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}

	return nil
}

func (s *Service) IsAccessTokenBlacklisted(
	ctx context.Context,
	jti string,
) (bool, error) {
	exists, err := s.redis.Exists(ctx, blacklistKeyBase+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}

	return exists > 0, nil
}

func (s *Service) ValidateTokenVersion(
	ctx context.Context,
	userID string,
	tokenVersion int,
) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("validate token version: %w", core.ErrTokenRevoked)
		}
		return fmt.Errorf("get user: %w", err)
	}

	if tokenVersion < user.TokenVersion {
		return fmt.Errorf("validate token version: %w", core.ErrTokenRevoked)
	}

	return nil
}

func (s *Service) GetCurrentUser(
	ctx context.Context,
	userID string,
) (*UserResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &UserResponse{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
		Tier:  user.Tier,
	}, nil
}

var _ middleware.TokenVerifier = (*Service)(nil)
