// server/internal/auth/auth.go
package auth

import (
	"errors"

	"github.com/freightbid/bidding-api/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

type JWTClaims struct {
	UserID        string `json:"userID"`
	Role          string `json:"role"`
	ShipperID     string `json:"shipperID,omitempty"`
	TransporterID string `json:"transporterID,omitempty"`
	jwt.RegisteredClaims
}

// ParseToken validates the bearer token and resolves the acting
// identity. Operators are the superusers of the negotiation flow.
func ParseToken(secret, tokenString string) (*models.Actor, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid or expired token")
	}
	return &models.Actor{
		UserID:        claims.UserID,
		Role:          claims.Role,
		ShipperID:     claims.ShipperID,
		TransporterID: claims.TransporterID,
		Superuser:     claims.Role == models.RoleOperator,
	}, nil
}
