package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenClaims represents the claims the FoodSearch backend embeds in
// the access tokens it issues. The storefront never mints these.
type AccessTokenClaims struct {
	Username string `json:"username"`
	IsStaff  bool   `json:"is_staff"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}
