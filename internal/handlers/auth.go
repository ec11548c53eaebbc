package handlers

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ahmetk3436/routerwatch/internal/auth"
	"github.com/ahmetk3436/routerwatch/internal/middleware"
	"github.com/ahmetk3436/routerwatch/internal/routeros"
	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	auth         *auth.Authenticator
	defaultPort  int
	cookieSecure bool
}

func NewAuthHandler(a *auth.Authenticator, defaultPort int, cookieSecure bool) *AuthHandler {
	if defaultPort <= 0 {
		defaultPort = routeros.DefaultPort
	}
	return &AuthHandler{auth: a, defaultPort: defaultPort, cookieSecure: cookieSecure}
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req struct {
		Host     string `json:"host"`
		User     string `json:"user"`
		Username string `json:"username"`
		Password string `json:"password"`
		Port     int    `json:"port"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.User == "" {
		req.User = req.Username
	}
	if req.Port <= 0 {
		req.Port = h.defaultPort
	}

	cred := routeros.Credential{
		Host:     strings.TrimSpace(req.Host),
		User:     strings.TrimSpace(req.User),
		Password: req.Password,
		Port:     req.Port,
	}

	token, err := h.auth.Login(c.UserContext(), cred)
	if err != nil {
		slog.Warn("Login failed", "host", cred.Host, "user", cred.User, "error", err)
		// A refused login is the user's problem, not a gateway failure.
		if errors.Is(err, routeros.ErrConnectFailure) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		}
		return respondError(c, err)
	}

	slog.Info("Login succeeded", "host", cred.Host, "user", cred.User)
	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(auth.SessionTTL),
		HTTPOnly: true,
		Secure:   h.cookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	return c.JSON(fiber.Map{
		"token": token,
		"user":  userView(cred),
	})
}

// Logout only clears the cookie. The upstream connection may be shared
// with other sessions of the same identity and stays in the registry.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   h.cookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.JSON(fiber.Map{"success": true})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	cred, ok := middleware.Credential(c)
	if !ok {
		return unauthorized(c)
	}
	return c.JSON(fiber.Map{"user": userView(cred)})
}

func userView(cred routeros.Credential) fiber.Map {
	return fiber.Map{
		"host":     cred.Host,
		"user":     cred.User,
		"port":     cred.Port,
		"identity": cred.Identity(),
	}
}
