package services

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	fiberSwagger "github.com/gofiber/swagger"

	_ "github.com/appforge-labs/forge_api/docs"
	"github.com/appforge-labs/forge_api/services/handlers"
	"github.com/appforge-labs/forge_api/shared"
)

type HttpService struct {
	context.DefaultService

	appSvc        *AppService
	reviewSvc     *ReviewService
	rateLimitSvc  *RateLimitService
	monitoringSvc *MonitoringService

	port int
	app  *fiber.App
}

// AuthProvider decouples the http service from the middleware package.
type AuthProvider interface {
	RequiredAuth() fiber.Handler
	OptionalAuth() fiber.Handler
	RequireRole(role string) fiber.Handler
}

const HTTP_SVC = "http_svc"

func (svc HttpService) Id() string {
	return HTTP_SVC
}

func (svc *HttpService) Configure(ctx *context.Context) error {
	if port := os.Getenv("HTTP_PORT"); port != "" {
		var err error
		if svc.port, err = strconv.Atoi(port); err != nil {
			return err
		}
	} else {
		svc.port = 8000
	}

	return svc.DefaultService.Configure(ctx)
}

func (svc *HttpService) Start() error {
	svc.appSvc = svc.Service(APP_SVC).(*AppService)
	svc.reviewSvc = svc.Service(REVIEW_SVC).(*ReviewService)
	svc.rateLimitSvc = svc.Service(RATE_LIMIT_SVC).(*RateLimitService)
	svc.monitoringSvc = svc.Service(MONITORING_SVC).(*MonitoringService)
	auth := svc.Service("auth").(AuthProvider)

	app := fiber.New(fiber.Config{
		AppName:      "forge_api",
		JSONEncoder:  shared.JSONMarshal,
		JSONDecoder:  shared.JSONUnmarshal,
		ErrorHandler: svc.handleError,
	})
	svc.app = app

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(svc.monitoringSvc.FiberMiddleware())

	app.Get("/ping", svc.ping)
	app.Get("/swagger/*", fiberSwagger.HandlerDefault)

	appHandler := handlers.NewAppHandler(svc.appSvc)
	reviewHandler := handlers.NewReviewHandler(svc.reviewSvc)
	adminHandler := handlers.NewAdminHandler(svc.appSvc, svc.reviewSvc, svc.rateLimitSvc)

	v1 := app.Group("/api/v1", svc.rateLimitSvc.RateLimit(shared.EndpointGeneral))

	v1.Get("/ping", svc.ping)

	// Session introspection. Token probing is throttled like a login
	// endpoint, so the group carries the auth class.
	authRoutes := v1.Group("/auth", svc.rateLimitSvc.RateLimit(shared.EndpointAuth))
	authRoutes.Get("/session", auth.RequiredAuth(), svc.session)

	// Storefront
	v1.Get("/apps", appHandler.ListApps)
	v1.Get("/apps/:appId", appHandler.GetApp)
	v1.Get("/apps/:appId/reviews", reviewHandler.GetAppReviews)

	// Developer portal
	v1.Post("/apps", auth.RequiredAuth(), svc.rateLimitSvc.UserRateLimit(shared.EndpointUpload), appHandler.CreateApp)

	// Review pipeline. The review and reply classes are enforced inside the
	// orchestrator as step one of submission, not as route middleware.
	v1.Post("/apps/:appId/reviews", auth.OptionalAuth(), reviewHandler.SubmitReview)
	v1.Post("/reviews/:reviewId/replies", auth.OptionalAuth(), reviewHandler.SubmitReply)

	// Admin console
	admin := v1.Group("/admin", auth.RequiredAuth(), auth.RequireRole("admin"))
	admin.Get("/apps", adminHandler.ListApps)
	admin.Patch("/apps/:appId/status", adminHandler.UpdateAppStatus)
	admin.Delete("/reviews/:reviewId", adminHandler.DeleteReview)
	admin.Get("/rate-limits", adminHandler.GetRateLimitStats)
	admin.Delete("/rate-limits/:identifier/:endpointType", adminHandler.RemoveRateLimit)
	admin.Post("/rate-limits/cleanup", adminHandler.CleanupRateLimits)

	app.Use(func(c *fiber.Ctx) error {
		return shared.ResponseNotFound(c)
	})

	return app.Listen(fmt.Sprintf(":%v", svc.port))
}

func (svc *HttpService) Shutdown() {
	if svc.app != nil {
		_ = svc.app.Shutdown()
	}
}

// @Summary Ping
// @Description This endpoint checks the health of the service
// @Tags health
// @Accept  json
// @Produce json
// @Success 200 {object} shared.Response{data=string}
// @Router /ping [get]
func (svc *HttpService) ping(c *fiber.Ctx) error {
	c.Set("Cache-Control", "max-age=10")

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", "pong")
}

// @Summary Session
// @Description Verifies the bearer token and returns the session user id
// @Tags auth
// @Accept json
// @Produce json
// @Security Bearer
// @Success 200 {object} shared.Response
// @Failure 401 {object} shared.Response
// @Router /api/v1/auth/session [get]
func (svc *HttpService) session(c *fiber.Ctx) error {
	userID, _ := c.Locals(shared.UserID).(string)

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", fiber.Map{"user_id": userID})
}

func (svc *HttpService) handleError(c *fiber.Ctx, err error) error {
	if appErr, ok := shared.GetAppError(err); ok {
		return shared.ResponseJSON(c, appErr.StatusCode, appErr.Message, appErr.Data)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return shared.ResponseJSON(c, fiberErr.Code, fiberErr.Message, nil)
	}

	// Internal details stay out of the response body
	return shared.ResponseJSON(c, fiber.StatusInternalServerError, "Internal Server Error", nil)
}
