// Package web provides the HTTP handlers of the workflow generation API.
package web

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/dukex/flowgen/pkg/catalog"
	"github.com/dukex/flowgen/pkg/services"
)

type APIHandlers struct {
	generation    *services.Generation
	conversations *services.Conversations
	health        *services.Health
	catalog       *catalog.Catalog
	validator     *validator.Validate
}

func NewAPIHandlers(
	generation *services.Generation,
	conversations *services.Conversations,
	health *services.Health,
	cat *catalog.Catalog,
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		generation:    generation,
		conversations: conversations,
		health:        health,
		catalog:       cat,
		validator:     validate,
	}
}

// GenerateWorkflow handles create-or-continue: a conversation id with a
// current workflow version behaves as an edit of it.
func (h *APIHandlers) GenerateWorkflow(c fiber.Ctx) error {
	var req GenerateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid JSON body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return unprocessable(c, err.Error())
	}

	result, err := h.generation.Generate(c.Context(), req.ConversationID, req.Query)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(TransformWorkflowResponse(result))
}

// EditWorkflow applies an edit instruction to a conversation's current
// workflow version.
func (h *APIHandlers) EditWorkflow(c fiber.Ctx) error {
	var req EditWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid JSON body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return unprocessable(c, err.Error())
	}

	result, err := h.generation.Edit(c.Context(), req.ConversationID, req.Instruction)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(TransformWorkflowResponse(result))
}

// GetConversation returns a conversation's turn history and current
// workflow version.
func (h *APIHandlers) GetConversation(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "conversation id is required")
	}

	view, err := h.conversations.Get(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(TransformConversationResponse(view))
}

// GetConversationVersions returns the full workflow version history.
func (h *APIHandlers) GetConversationVersions(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "conversation id is required")
	}

	versions, err := h.conversations.Versions(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"versions": versions})
}

// DeleteConversation soft-deletes a conversation. Idempotent: repeated
// deletes return 204 as well.
func (h *APIHandlers) DeleteConversation(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "conversation id is required")
	}

	if err := h.conversations.Delete(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// GetCatalog lists the tool operations available for retrieval, optionally
// filtered by category.
func (h *APIHandlers) GetCatalog(c fiber.Ctx) error {
	operations := h.catalog.All()

	if category := c.Query("category"); category != "" {
		operations = h.catalog.ByCategory(category)
	}

	return c.JSON(fiber.Map{
		"operations": operations,
		"count":      len(operations),
	})
}

// HealthCheck reports per-collaborator reachability. 503 when any
// collaborator is down.
func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	report := h.health.Check(c.Context())

	status := fiber.StatusOK
	if !report.Healthy {
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(report)
}
