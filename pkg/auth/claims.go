package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/tinysprouts/tinysprouts-backend/pkg/types"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID string
	Phone  types.PhoneNumber
	Name   string
	JTI    string
}

// AccessTokenClaims represents the typed JWT issued to signed-in shoppers.
type AccessTokenClaims struct {
	UserID string `json:"user_id"`
	Phone  string `json:"phone"`
	Name   string `json:"name,omitempty"`
	jwt.RegisteredClaims
}
