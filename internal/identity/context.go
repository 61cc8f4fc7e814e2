package identity

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Caller is the authenticated principal of a request, built from the access
// token claims and passed explicitly into services.
type Caller struct {
	ID      uuid.UUID
	Email   string
	IsAdmin bool
}

// GetUserID extracts the user UUID from JWT claims in context.
func GetUserID(c *fiber.Ctx) (uuid.UUID, error) {
	claims, err := claimsFrom(c)
	if err != nil {
		return uuid.Nil, err
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, errors.New("missing sub claim")
	}

	return uuid.Parse(sub)
}

// GetCaller extracts the full caller identity from JWT claims in context.
func GetCaller(c *fiber.Ctx) (Caller, error) {
	id, err := GetUserID(c)
	if err != nil {
		return Caller{}, err
	}
	claims, _ := claimsFrom(c)
	email, _ := claims["email"].(string)
	isAdmin, _ := claims["is_admin"].(bool)
	return Caller{ID: id, Email: email, IsAdmin: isAdmin}, nil
}

func claimsFrom(c *fiber.Ctx) (jwt.MapClaims, error) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok || token == nil {
		return nil, errors.New("invalid token in context")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid claims")
	}
	return claims, nil
}
