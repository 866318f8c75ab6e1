package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/videoflix/backend/internal/auth"
	"github.com/videoflix/backend/pkg/response"
)

// AuthMiddleware authenticates requests by the access token cookie. An
// Authorization bearer header is accepted for non-browser clients.
type AuthMiddleware struct {
	cookieName string
	verifiers  []auth.TokenVerifier
}

// NewAuthMiddleware tries the verifiers in order; the first that accepts
// the token wins.
func NewAuthMiddleware(cookieName string, verifiers ...auth.TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{
		cookieName: cookieName,
		verifiers:  verifiers,
	}
}

// Authenticate validates the JWT and stores the user in the request context
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, ok := m.token(c)
		if !ok {
			return response.Unauthorized(c, "Authentication credentials were not provided")
		}
		if len(m.verifiers) == 0 {
			return response.Unauthorized(c, "Authentication not configured")
		}

		for _, v := range m.verifiers {
			claims, err := v.Validate(tokenString)
			if err != nil {
				continue
			}
			c.Locals("userId", claims.UserID)
			c.Locals("email", claims.Email)
			c.Locals("claims", claims)
			return c.Next()
		}

		return response.Unauthorized(c, "Invalid or expired token")
	}
}

func (m *AuthMiddleware) token(c *fiber.Ctx) (string, bool) {
	if cookie := c.Cookies(m.cookieName); cookie != "" {
		return cookie, true
	}

	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// GetUserID extracts user ID from context
func GetUserID(c *fiber.Ctx) string {
	if userID, ok := c.Locals("userId").(string); ok {
		return userID
	}
	return ""
}

// GetUserEmail extracts user email from context
func GetUserEmail(c *fiber.Ctx) string {
	if email, ok := c.Locals("email").(string); ok {
		return email
	}
	return ""
}
