package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const (
	RoleAdmin     = "admin"
	RoleOrganizer = "organizer"

	InternalTokenHeader = "X-Internal-Token"
)

// Principal is the authenticated caller extracted from the bearer token.
type Principal struct {
	ID    uuid.UUID
	Email string
	Role  string
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

func Protected(secret string) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:   []byte(secret),
		ErrorHandler: jwtError,
	})
}

func jwtError(c *fiber.Ctx, err error) error {
	if err.Error() == "Missing or malformed JWT" {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"status": "error", "code": "unauthenticated", "message": "Missing or malformed JWT"})
	}
	return c.Status(fiber.StatusUnauthorized).
		JSON(fiber.Map{"status": "error", "code": "unauthenticated", "message": "Invalid or expired JWT"})
}

// CurrentPrincipal reads the principal stored by Protected. ok is false when
// the token is absent or its claims are malformed.
func CurrentPrincipal(c *fiber.Ctx) (Principal, bool) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok || token == nil {
		return Principal{}, false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, false
	}
	return PrincipalFromClaims(claims)
}

func PrincipalFromClaims(claims jwt.MapClaims) (Principal, bool) {
	rawID, _ := claims["user_id"].(string)
	id, err := uuid.Parse(rawID)
	if err != nil {
		return Principal{}, false
	}
	role, _ := claims["role"].(string)
	email, _ := claims["email"].(string)
	return Principal{ID: id, Email: email, Role: strings.ToLower(role)}, true
}

func AdminRequired() fiber.Handler {
	return roleRequired(RoleAdmin, "Forbidden: Admin access required")
}

func OrganizerRequired() fiber.Handler {
	return roleRequired(RoleOrganizer, "Forbidden: Organizer access required")
}

func roleRequired(role, message string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, ok := CurrentPrincipal(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).
				JSON(fiber.Map{"status": "error", "code": "unauthenticated", "message": "Invalid token claims"})
		}
		if p.Role != role {
			return c.Status(fiber.StatusForbidden).
				JSON(fiber.Map{"status": "error", "code": "forbidden", "message": message})
		}
		c.Locals("principal", p)
		return c.Next()
	}
}

// InternalTokenRequired guards service-to-service endpoints such as ticket
// sale ingestion. An empty configured token rejects every call.
func InternalTokenRequired(token string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		got := c.Get(InternalTokenHeader)
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			return c.Status(fiber.StatusUnauthorized).
				JSON(fiber.Map{"status": "error", "code": "unauthenticated", "message": "Invalid internal token"})
		}
		return c.Next()
	}
}
