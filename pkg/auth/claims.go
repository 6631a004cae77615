package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/maison-pos/pkg/enums"
)

// RegisterTokenPayload captures the data available when minting a register session token.
type RegisterTokenPayload struct {
	StaffID    uuid.UUID
	RegisterID string
	Role       enums.StaffRole
	SessionID  string
}

// RegisterTokenClaims binds an operator session to one physical register.
type RegisterTokenClaims struct {
	StaffID    uuid.UUID       `json:"staff_id"`
	RegisterID string          `json:"register_id"`
	Role       enums.StaffRole `json:"role"`
	jwt.RegisteredClaims
}

// SessionID returns the session identifier carried in the jti claim.
func (c *RegisterTokenClaims) SessionID() string {
	return c.ID
}
