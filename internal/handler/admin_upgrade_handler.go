package handler

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/tutorhub-api/internal/dto"
	"github.com/noah-isme/tutorhub-api/internal/service"
	"github.com/noah-isme/tutorhub-api/internal/utils"
)

// AdminUpgradeHandler exposes the upgrade application review queue to admins.
type AdminUpgradeHandler struct {
	queue        service.UpgradeReviewQueueService
	applications service.UpgradeApplicationService
	logger       zerolog.Logger
	now          func() time.Time
}

// NewAdminUpgradeHandler constructs the handler.
func NewAdminUpgradeHandler(queue service.UpgradeReviewQueueService, applications service.UpgradeApplicationService, logger zerolog.Logger) *AdminUpgradeHandler {
	return &AdminUpgradeHandler{
		queue:        queue,
		applications: applications,
		logger:       logger.With().Str("component", "admin_upgrade_handler").Logger(),
		now:          time.Now,
	}
}

// Register attaches review queue routes.
func (h *AdminUpgradeHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/stats", h.stats)
	router.Get("/export", h.export)
	router.Post("/bulk-review", h.bulkReview)
	router.Get("/:id", h.get)
	router.Post("/:id/review", h.review)
}

func (h *AdminUpgradeHandler) list(c *fiber.Ctx) error {
	req, err := listRequestFromQuery(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	page, err := h.queue.List(c.UserContext(), req)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "upgrade applications retrieved", page)
}

func (h *AdminUpgradeHandler) stats(c *fiber.Ctx) error {
	stats, err := h.queue.Stats(c.UserContext())
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "upgrade application stats retrieved", stats)
}

func (h *AdminUpgradeHandler) export(c *fiber.Ctx) error {
	req, err := listRequestFromQuery(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var buf bytes.Buffer
	rows, err := h.queue.Export(c.UserContext(), req, &buf)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	filename := fmt.Sprintf("upgrade-applications-%s.csv", h.now().UTC().Format("20060102"))
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	c.Set("X-Total-Count", strconv.Itoa(rows))

	return c.Status(fiber.StatusOK).Send(buf.Bytes())
}

func (h *AdminUpgradeHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	detail, err := h.queue.Get(c.UserContext(), id)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "upgrade application retrieved", detail)
}

func (h *AdminUpgradeHandler) review(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.UpgradeReviewRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	application, err := h.applications.Review(c.UserContext(), id, payload, activityActorFromContext(c))
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "upgrade application reviewed", application)
}

func (h *AdminUpgradeHandler) bulkReview(c *fiber.Ctx) error {
	var payload dto.UpgradeBulkReviewRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.queue.BulkReview(c.UserContext(), payload, activityActorFromContext(c))
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	message := "bulk review completed"
	if len(result.Failed) > 0 {
		message = "bulk review completed with failures"
	}

	return utils.SendSuccess(c, message, result)
}

func listRequestFromQuery(c *fiber.Ctx) (dto.UpgradeApplicationListRequest, error) {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return dto.UpgradeApplicationListRequest{}, fmt.Errorf("invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return dto.UpgradeApplicationListRequest{}, fmt.Errorf("invalid page_size")
	}

	return dto.UpgradeApplicationListRequest{
		Status:    c.Query("status"),
		Search:    c.Query("search"),
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
		SortField: c.Query("sort"),
		SortOrder: c.Query("order"),
		Page:      page,
		PageSize:  pageSize,
	}, nil
}
