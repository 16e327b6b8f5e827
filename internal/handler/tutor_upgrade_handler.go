package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/tutorhub-api/internal/dto"
	"github.com/noah-isme/tutorhub-api/internal/service"
	"github.com/noah-isme/tutorhub-api/internal/utils"
)

// TutorUpgradeHandler serves the tutor side of the advanced tier upgrade.
type TutorUpgradeHandler struct {
	eligibility  service.EligibilityService
	applications service.UpgradeApplicationService
	logger       zerolog.Logger
}

// NewTutorUpgradeHandler constructs the handler.
func NewTutorUpgradeHandler(eligibility service.EligibilityService, applications service.UpgradeApplicationService, logger zerolog.Logger) *TutorUpgradeHandler {
	return &TutorUpgradeHandler{
		eligibility:  eligibility,
		applications: applications,
		logger:       logger.With().Str("component", "tutor_upgrade_handler").Logger(),
	}
}

// Register attaches the tutor upgrade routes. submitGuards run before submission only.
func (h *TutorUpgradeHandler) Register(router fiber.Router, submitGuards ...fiber.Handler) {
	router.Get("/eligibility", h.eligibilityCheck)

	submit := append(append([]fiber.Handler{}, submitGuards...), h.submit)
	router.Post("/applications", submit...)
	router.Get("/applications", h.list)
	router.Get("/applications/:id", h.get)
	router.Post("/applications/:id/documents", h.attachDocument)
}

func (h *TutorUpgradeHandler) eligibilityCheck(c *fiber.Ctx) error {
	tutorID := userIDFromContext(c)
	if tutorID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	verdict, err := h.eligibility.Check(c.UserContext(), tutorID)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "eligibility evaluated", verdict)
}

func (h *TutorUpgradeHandler) submit(c *fiber.Ctx) error {
	tutorID := userIDFromContext(c)
	if tutorID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	var payload dto.UpgradeApplicationSubmitRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	application, err := h.applications.Submit(c.UserContext(), tutorID, payload)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "upgrade application submitted", application)
}

func (h *TutorUpgradeHandler) list(c *fiber.Ctx) error {
	tutorID := userIDFromContext(c)
	if tutorID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	applications, err := h.applications.ListForTutor(c.UserContext(), tutorID)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "upgrade applications retrieved", applications)
}

func (h *TutorUpgradeHandler) get(c *fiber.Ctx) error {
	tutorID := userIDFromContext(c)
	if tutorID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	application, err := h.applications.GetForTutor(c.UserContext(), id, tutorID)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "upgrade application retrieved", application)
}

func (h *TutorUpgradeHandler) attachDocument(c *fiber.Ctx) error {
	tutorID := userIDFromContext(c)
	if tutorID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	file, err := c.FormFile("file")
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", []service.ValidationError{{Field: "file", Message: "is required"}})
	}

	document, err := h.applications.AttachDocument(c.UserContext(), id, tutorID, file)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "document attached", document)
}
