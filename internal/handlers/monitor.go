package handlers

import (
	"github.com/ahmetk3436/routerwatch/internal/services"
	"github.com/gofiber/fiber/v2"
)

// NodeHandler exposes the node monitor over REST. The same operations are
// available as websocket events.
type NodeHandler struct {
	nodes *services.NodeMonitor
}

func NewNodeHandler(nodes *services.NodeMonitor) *NodeHandler {
	return &NodeHandler{nodes: nodes}
}

type nodeRequest struct {
	IP   string `json:"ip"`
	Name string `json:"name"`
}

func (h *NodeHandler) ListNodes(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"nodes": h.nodes.List()})
}

func (h *NodeHandler) CreateNode(c *fiber.Ctx) error {
	var req nodeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	node, err := h.nodes.Add(c.UserContext(), req.IP, req.Name)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(node)
}

func (h *NodeHandler) UpdateNode(c *fiber.Ctx) error {
	var req nodeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	node, err := h.nodes.Edit(c.UserContext(), c.Params("id"), req.IP, req.Name)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(node)
}

// DeleteNode removes by IP, matching the remove-node event.
func (h *NodeHandler) DeleteNode(c *fiber.Ctx) error {
	if err := h.nodes.Remove(c.UserContext(), c.Params("ip")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}
