package middleware

import (
	"strings"

	"github.com/ahmetk3436/routerwatch/internal/routeros"
	"github.com/gofiber/fiber/v2"
)

const SessionCookie = "session"

// CredentialKey holds the verified routeros.Credential in fiber locals.
const CredentialKey = "credential"

type Verifier interface {
	Verify(token string) (routeros.Credential, error)
}

// SessionProtected rejects requests without a valid session token and
// stores the device credential in the request locals.
func SessionProtected(v Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := TokenFrom(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   true,
				"message": "Missing session token",
			})
		}

		cred, err := v.Verify(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   true,
				"message": "Invalid or expired session",
			})
		}

		c.Locals(CredentialKey, cred)
		return c.Next()
	}
}

// TokenFrom reads the session token from the cookie, a Bearer header or the
// token query parameter, in that order. Browsers cannot set headers on a
// websocket upgrade, hence the query fallback.
func TokenFrom(c *fiber.Ctx) string {
	if token := c.Cookies(SessionCookie); token != "" {
		return token
	}
	if auth := c.Get(fiber.HeaderAuthorization); auth != "" {
		if token := strings.TrimPrefix(auth, "Bearer "); token != auth {
			return strings.TrimSpace(token)
		}
	}
	return c.Query("token")
}

func Credential(c *fiber.Ctx) (routeros.Credential, bool) {
	cred, ok := c.Locals(CredentialKey).(routeros.Credential)
	return cred, ok
}
