package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/tutorhub-api/internal/config"
	"github.com/noah-isme/tutorhub-api/internal/handler"
	"github.com/noah-isme/tutorhub-api/internal/middleware"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	TutorUpgradeHandler    *handler.TutorUpgradeHandler
	AdminUpgradeHandler    *handler.AdminUpgradeHandler
	UpgradeEventsHandler   *handler.UpgradeEventsHandler
	TutorAssignmentHandler *handler.TutorAssignmentHandler
	HealthProbes           map[string]handler.HealthProbe
	JWTMiddleware          fiber.Handler
	SubmitLimiter          fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = middleware.JWTProtected(cfg.JWTSecret)
	}

	if deps.TutorUpgradeHandler != nil {
		tutor := api.Group("/tutor/upgrade", jwtMiddleware, middleware.RequireRole(models.RoleTutor))
		var guards []fiber.Handler
		if deps.SubmitLimiter != nil {
			guards = append(guards, deps.SubmitLimiter)
		}
		deps.TutorUpgradeHandler.Register(tutor, guards...)
	}

	if deps.AdminUpgradeHandler != nil {
		admin := api.Group("/admin/upgrade-applications", jwtMiddleware, middleware.RequireRole(models.RoleAdmin))
		if deps.UpgradeEventsHandler != nil {
			deps.UpgradeEventsHandler.Register(admin)
		}
		deps.AdminUpgradeHandler.Register(admin)
	}

	if deps.TutorAssignmentHandler != nil {
		api.Get("/providers", jwtMiddleware, middleware.WithAuth(deps.TutorAssignmentHandler.ListProviders, middleware.AuthOptions{
			Roles: []string{models.RoleTeacher, models.RoleAdmin},
		}))

		teacher := api.Group("/teacher/assignments", jwtMiddleware, middleware.RequireRole(models.RoleTeacher))
		deps.TutorAssignmentHandler.RegisterTeacher(teacher)

		provider := api.Group("/provider/assignments", jwtMiddleware, middleware.RequireRole(models.RoleTutor, models.RoleCounselor))
		deps.TutorAssignmentHandler.RegisterProvider(provider)
	}
}
