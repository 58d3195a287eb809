// AngelaMos | 2026
// dto.go

package auth

import (
	"time"
)

type MagicLinkRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

type MagicLinkResponse struct {
	Message string `json:"message"`
}

type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int       `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	Tier  string `json:"tier"`
}

type AuthResponse struct {
	User    UserResponse  `json:"user"`
	Tokens  TokenResponse `json:"tokens"`
	NewUser bool          `json:"new_user"`
}
