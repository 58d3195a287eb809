// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/reportriser/backend/internal/auth"
	"github.com/reportriser/backend/internal/core"
	"github.com/reportriser/backend/internal/entitlement"
)

type Service struct {
	repo   Repository
	engine *entitlement.Engine
}

func NewService(repo Repository, engine *entitlement.Engine) *Service {
	return &Service{repo: repo, engine: engine}
}

func (s *Service) GetByID(
	ctx context.Context,
	id string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

// GetOrCreateByEmail returns the account for email, creating a free-tier
// user on first login. created reports whether a row was inserted.
func (s *Service) GetOrCreateByEmail(
	ctx context.Context,
	email string,
) (info *auth.UserInfo, created bool, err error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		return toUserInfo(user), false, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return nil, false, err
	}

	user = &User{
		ID:    uuid.New().String(),
		Email: email,
		Name:  nameFromEmail(email),
		Role:  RoleUser,
		Tier:  entitlement.TierFree,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if !errors.Is(err, core.ErrDuplicateKey) {
			return nil, false, err
		}
		// lost a race with a concurrent first login
		existing, getErr := s.repo.GetByEmail(ctx, email)
		if getErr != nil {
			return nil, false, getErr
		}
		return toUserInfo(existing), false, nil
	}

	return toUserInfo(user), true, nil
}

func (s *Service) IncrementTokenVersion(
	ctx context.Context,
	userID string,
) error {
	return s.repo.IncrementTokenVersion(ctx, userID)
}

func (s *Service) GetAccount(
	ctx context.Context,
	userID string,
) (entitlement.Account, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return entitlement.Account{}, err
	}
	return user.Account(), nil
}

// EmailFor resolves the address account mail is sent to.
func (s *Service) EmailFor(ctx context.Context, userID string) (string, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.Email, nil
}

func (s *Service) Usage(
	ctx context.Context,
	userID string,
) (entitlement.Usage, error) {
	acct, err := s.GetAccount(ctx, userID)
	if err != nil {
		return entitlement.Usage{}, err
	}
	return s.engine.Usage(acct), nil
}

func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateUser(
	ctx context.Context,
	id string,
	req UpdateUserRequest,
) (*User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		user.Name = *req.Name
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *Service) UpdateUserTier(
	ctx context.Context,
	id, tier string,
) (*User, error) {
	t, err := entitlement.ParseTier(tier)
	if err != nil {
		return nil, fmt.Errorf("update tier: %w", core.ErrInvalidInput)
	}

	if err := s.engine.SetTier(ctx, id, t); err != nil {
		return nil, err
	}

	return s.repo.GetByID(ctx, id)
}

func (s *Service) LinkSubscription(
	ctx context.Context,
	userID, customerID, subscriptionID string,
) error {
	return s.repo.LinkSubscription(ctx, userID, customerID, subscriptionID)
}

func (s *Service) CountByTier(ctx context.Context) ([]TierCount, error) {
	return s.repo.CountByTier(ctx)
}

func (s *Service) DeleteUser(ctx context.Context, id string) error {
	return s.repo.SoftDelete(ctx, id)
}

func (s *Service) ListUsers(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	return s.repo.List(ctx, params)
}

func (s *Service) GetMe(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, fmt.Errorf("get me: %w", core.ErrUnauthorized)
	}

	return s.repo.GetByID(ctx, userID)
}

func (s *Service) UpdateMe(
	ctx context.Context,
	userID string,
	req UpdateUserRequest,
) (*User, error) {
	if userID == "" {
		return nil, fmt.Errorf("update me: %w", core.ErrUnauthorized)
	}

	return s.UpdateUser(ctx, userID, req)
}

func (s *Service) DeleteMe(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("delete me: %w", core.ErrUnauthorized)
	}

	return s.repo.SoftDelete(ctx, userID)
}

func (s *Service) CanDeleteUser(
	ctx context.Context,
	requesterID, targetID string,
) error {
	if requesterID == targetID {
		return nil
	}

	requester, err := s.repo.GetByID(ctx, requesterID)
	if err != nil {
		return err
	}

	if !requester.IsAdmin() {
		return fmt.Errorf("delete user: %w", core.ErrForbidden)
	}

	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return err
	}

	if target.IsAdmin() {
		return fmt.Errorf("cannot delete admin users: %w", core.ErrForbidden)
	}

	return nil
}

func nameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if local == "" {
		return email
	}
	return local
}

func toUserInfo(u *User) *auth.UserInfo {
	return &auth.UserInfo{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		Role:         u.Role,
		Tier:         string(u.Tier),
		TokenVersion: u.TokenVersion,
	}
}

var _ auth.UserProvider = (*Service)(nil)
