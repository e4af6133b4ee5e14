package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// Issuer is stamped into every token this API mints.
const Issuer = "voiceforge-api"

// APIClaims is the payload of the HMAC-signed bearer tokens used by
// first-party clients. There is no external identity provider; the token
// itself carries the caller's identity.
type APIClaims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// NewAPIClaims builds the claims for a freshly minted token.
func NewAPIClaims(userID, email string) APIClaims {
	return APIClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: Issuer,
		},
	}
}

// ParseToken verifies an HMAC-signed bearer token against the shared
// secret and returns its claims. Tokens signed with any other method are
// rejected outright.
func ParseToken(tokenString, secret string) (*APIClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &APIClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*APIClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}
