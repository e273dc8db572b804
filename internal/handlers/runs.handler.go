package handlers

import (
	"errors"

	"dgisync/internal/app"
	runsController "dgisync/internal/controllers/runs"
	"dgisync/internal/handlers/middleware"
	"dgisync/internal/services"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/gofiber/fiber/v2"
)

type RunsHandler struct {
	Handler
	runsController runsController.RunsControllerInterface
}

func NewRunsHandler(app app.App, router fiber.Router) *RunsHandler {
	return newRunsHandler(app.Controllers.Runs, app.Middleware, router)
}

func newRunsHandler(
	controller runsController.RunsControllerInterface,
	mw middleware.Middleware,
	router fiber.Router,
) *RunsHandler {
	return &RunsHandler{
		runsController: controller,
		Handler: Handler{
			log:        logger.New("handlers").File("runs_handler"),
			router:     router,
			middleware: mw,
		},
	}
}

func (h *RunsHandler) Register() {
	h.router.Get("/status", h.getStatus)

	runs := h.router.Group("/runs")
	runs.Get("", h.listRuns)
	runs.Get("/latest", h.getLatestRun)
	runs.Post("/trigger", h.triggerRun)
}

func (h *RunsHandler) getStatus(c *fiber.Ctx) error {
	status, err := h.runsController.Status(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read ingestion status",
		})
	}

	return c.JSON(status)
}

func (h *RunsHandler) listRuns(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	if limit < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "limit must not be negative",
		})
	}

	runs, err := h.runsController.ListRuns(c.UserContext(), limit)
	if err != nil {
		return h.historyError(c, err)
	}

	return c.JSON(fiber.Map{"runs": runs})
}

func (h *RunsHandler) getLatestRun(c *fiber.Ctx) error {
	run, err := h.runsController.LatestRun(c.UserContext())
	if err != nil {
		if errors.Is(err, runsController.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "No ingestion runs recorded",
			})
		}
		return h.historyError(c, err)
	}

	return c.JSON(run)
}

func (h *RunsHandler) triggerRun(c *fiber.Ctx) error {
	log := h.log.Function("triggerRun").With("traceId", middleware.GetTraceID(c))

	if err := h.runsController.Trigger(); err != nil {
		log.Er("failed to trigger ingestion", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Ingestion job is not available",
		})
	}

	log.Info("Ingestion triggered")
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "Ingestion started",
	})
}

func (h *RunsHandler) historyError(c *fiber.Ctx, err error) error {
	if errors.Is(err, services.ErrHistoryDisabled) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Run history is not configured",
		})
	}

	h.log.Function("historyError").Er("failed to read run history", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Failed to read run history",
	})
}
