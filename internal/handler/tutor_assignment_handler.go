package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/tutorhub-api/internal/dto"
	"github.com/noah-isme/tutorhub-api/internal/service"
	"github.com/noah-isme/tutorhub-api/internal/utils"
)

// TutorAssignmentHandler wires teacher, provider and directory routes of the assignment workflow.
type TutorAssignmentHandler struct {
	service service.TutorAssignmentService
	logger  zerolog.Logger
}

// NewTutorAssignmentHandler constructs the handler.
func NewTutorAssignmentHandler(service service.TutorAssignmentService, logger zerolog.Logger) *TutorAssignmentHandler {
	return &TutorAssignmentHandler{
		service: service,
		logger:  logger.With().Str("component", "tutor_assignment_handler").Logger(),
	}
}

// RegisterTeacher attaches the routes teachers use to route referrals.
func (h *TutorAssignmentHandler) RegisterTeacher(router fiber.Router) {
	router.Post("", h.create)
	router.Get("", h.listForTeacher)
}

// RegisterProvider attaches the routes tutors and counselors use to answer assignments.
func (h *TutorAssignmentHandler) RegisterProvider(router fiber.Router) {
	router.Get("", h.listForProvider)
	router.Post("/:id/accept", h.accept)
	router.Post("/:id/decline", h.decline)
	router.Patch("/:id/status", h.updateStatus)
}

// ListProviders serves the provider directory.
func (h *TutorAssignmentHandler) ListProviders(c *fiber.Ctx) error {
	providers, err := h.service.ListProviders(c.UserContext(), c.Query("role"))
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "providers retrieved", providers)
}

func (h *TutorAssignmentHandler) create(c *fiber.Ctx) error {
	teacherID := userIDFromContext(c)
	if teacherID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	var payload dto.TutorAssignmentCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	assignment, err := h.service.Create(c.UserContext(), teacherID, payload)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "assignment created", assignment)
}

func (h *TutorAssignmentHandler) listForTeacher(c *fiber.Ctx) error {
	teacherID := userIDFromContext(c)
	if teacherID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	assignments, err := h.service.ListForTeacher(c.UserContext(), teacherID)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "assignments retrieved", assignments)
}

func (h *TutorAssignmentHandler) listForProvider(c *fiber.Ctx) error {
	providerID := userIDFromContext(c)
	if providerID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	assignments, err := h.service.ListForProvider(c.UserContext(), providerID)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "assignments retrieved", assignments)
}

func (h *TutorAssignmentHandler) accept(c *fiber.Ctx) error {
	providerID := userIDFromContext(c)
	if providerID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	assignment, err := h.service.Accept(c.UserContext(), id, providerID)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "assignment accepted", assignment)
}

func (h *TutorAssignmentHandler) decline(c *fiber.Ctx) error {
	providerID := userIDFromContext(c)
	if providerID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.TutorAssignmentDeclineRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	assignment, err := h.service.Decline(c.UserContext(), id, providerID, payload)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "assignment declined", assignment)
}

func (h *TutorAssignmentHandler) updateStatus(c *fiber.Ctx) error {
	providerID := userIDFromContext(c)
	if providerID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.TutorAssignmentStatusRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	assignment, err := h.service.UpdateStatus(c.UserContext(), id, providerID, payload)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "assignment status updated", assignment)
}
