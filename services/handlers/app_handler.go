package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/appforge-labs/forge_api/dto"
	"github.com/appforge-labs/forge_api/shared"
)

type AppHandler struct {
	appSvc AppServiceInterface
}

func NewAppHandler(appSvc AppServiceInterface) *AppHandler {
	return &AppHandler{
		appSvc: appSvc,
	}
}

// @Summary List Apps
// @Description List approved storefront apps
// @Tags apps
// @Accept json
// @Produce json
// @Param category query string false "Filter by category"
// @Param limit query int false "Limit results"
// @Success 200 {object} shared.Response{data=dto.AppListResponse}
// @Router /api/v1/apps [get]
func (h *AppHandler) ListApps(c *fiber.Ctx) error {
	category := c.Query("category")
	limit := c.QueryInt("limit")

	apps, err := h.appSvc.ListApps(category, limit)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", apps)
}

// @Summary Get App
// @Description Get a single app listing
// @Tags apps
// @Accept json
// @Produce json
// @Param appId path string true "App ID"
// @Success 200 {object} shared.Response{data=dto.AppResponse}
// @Router /api/v1/apps/{appId} [get]
func (h *AppHandler) GetApp(c *fiber.Ctx) error {
	appID := c.Params("appId")

	app, err := h.appSvc.GetApp(appID)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", app)
}

// @Summary Submit App
// @Description Submit a new app listing; it stays pending until approved
// @Tags apps
// @Accept json
// @Produce json
// @Security Bearer
// @Param Authorization header string true "User Bearer Token" default(Bearer <user_token>)
// @Param createRequest body dto.CreateAppRequest true "App submission"
// @Success 201 {object} shared.Response{data=dto.AppResponse}
// @Router /api/v1/apps [post]
func (h *AppHandler) CreateApp(c *fiber.Ctx) error {
	userID, _ := c.Locals(shared.UserID).(string)

	var req dto.CreateAppRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request")
	}

	app, err := h.appSvc.CreateApp(userID, req)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusCreated, "Created", app)
}
