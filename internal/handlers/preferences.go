package handlers

import (
	"github.com/ahmetk3436/routerwatch/internal/middleware"
	"github.com/ahmetk3436/routerwatch/internal/models"
	"github.com/ahmetk3436/routerwatch/internal/services"
	"github.com/gofiber/fiber/v2"
)

type PreferencesHandler struct {
	prefs *services.PreferencesStore
}

func NewPreferencesHandler(prefs *services.PreferencesStore) *PreferencesHandler {
	return &PreferencesHandler{prefs: prefs}
}

func (h *PreferencesHandler) Get(c *fiber.Ctx) error {
	cred, ok := middleware.Credential(c)
	if !ok {
		return unauthorized(c)
	}
	return c.JSON(fiber.Map{"preferences": h.prefs.Get(cred.Identity())})
}

// Update merges the fields present in the body; omitted fields keep their
// stored or default value.
func (h *PreferencesHandler) Update(c *fiber.Ctx) error {
	cred, ok := middleware.Credential(c)
	if !ok {
		return unauthorized(c)
	}
	var req models.Preferences
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	prefs, err := h.prefs.Update(c.UserContext(), cred.Identity(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"preferences": prefs})
}

func (h *PreferencesHandler) Reset(c *fiber.Ctx) error {
	cred, ok := middleware.Credential(c)
	if !ok {
		return unauthorized(c)
	}
	prefs, err := h.prefs.Reset(c.UserContext(), cred.Identity())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"preferences": prefs})
}
