package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/appforge-labs/forge_api/dto"
	"github.com/appforge-labs/forge_api/shared"
)

type AdminHandler struct {
	appSvc       AppServiceInterface
	reviewSvc    ReviewServiceInterface
	rateLimitSvc RateLimitAdminInterface
}

func NewAdminHandler(appSvc AppServiceInterface, reviewSvc ReviewServiceInterface, rateLimitSvc RateLimitAdminInterface) *AdminHandler {
	return &AdminHandler{
		appSvc:       appSvc,
		reviewSvc:    reviewSvc,
		rateLimitSvc: rateLimitSvc,
	}
}

// @Summary List Apps By Status
// @Description Admin list screen for pending/approved/rejected apps
// @Tags admin
// @Accept json
// @Produce json
// @Security Bearer
// @Param status query string false "Listing status" default(pending)
// @Success 200 {object} shared.Response{data=dto.AppListResponse}
// @Router /api/v1/admin/apps [get]
func (h *AdminHandler) ListApps(c *fiber.Ctx) error {
	status := c.Query("status", shared.AppStatusPending)

	apps, err := h.appSvc.ListAppsByStatus(status)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", apps)
}

// @Summary Update App Status
// @Description Approve or reject an app listing
// @Tags admin
// @Accept json
// @Produce json
// @Security Bearer
// @Param appId path string true "App ID"
// @Param statusRequest body dto.UpdateAppStatusRequest true "Status update"
// @Success 200 {object} shared.Response
// @Router /api/v1/admin/apps/{appId}/status [patch]
func (h *AdminHandler) UpdateAppStatus(c *fiber.Ctx) error {
	appID := c.Params("appId")

	var req dto.UpdateAppStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request")
	}

	if err := h.appSvc.UpdateAppStatus(appID, req); err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", nil)
}

// @Summary Delete Review
// @Description Remove a review; the app's aggregate rating is recomputed
// @Tags admin
// @Accept json
// @Produce json
// @Security Bearer
// @Param reviewId path string true "Review ID"
// @Success 200 {object} shared.Response
// @Router /api/v1/admin/reviews/{reviewId} [delete]
func (h *AdminHandler) DeleteReview(c *fiber.Ctx) error {
	reviewID := c.Params("reviewId")

	if err := h.reviewSvc.DeleteReview(reviewID); err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", nil)
}

// @Summary Rate Limit Stats
// @Description Current rate limit configuration and record counts
// @Tags admin
// @Accept json
// @Produce json
// @Security Bearer
// @Success 200 {object} shared.Response
// @Router /api/v1/admin/rate-limits [get]
func (h *AdminHandler) GetRateLimitStats(c *fiber.Ctx) error {
	return shared.ResponseJSON(c, fiber.StatusOK, "Rate limit statistics", h.rateLimitSvc.Stats())
}

// @Summary Remove Rate Limit
// @Description Drop the rate limit window for an identifier/class pair
// @Tags admin
// @Accept json
// @Produce json
// @Security Bearer
// @Param identifier path string true "Identifier"
// @Param endpointType path string true "Endpoint class"
// @Success 200 {object} shared.Response
// @Router /api/v1/admin/rate-limits/{identifier}/{endpointType} [delete]
func (h *AdminHandler) RemoveRateLimit(c *fiber.Ctx) error {
	identifier := c.Params("identifier")
	endpointType := c.Params("endpointType")

	if identifier == "" || endpointType == "" {
		return shared.ResponseBadRequest(c, "Missing identifier or endpoint type")
	}

	if err := h.rateLimitSvc.ResetRateLimit(identifier, endpointType); err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Rate limit removed", nil)
}

// @Summary Cleanup Rate Limits
// @Description Delete rate limit windows idle for more than 24 hours
// @Tags admin
// @Accept json
// @Produce json
// @Security Bearer
// @Success 200 {object} shared.Response
// @Router /api/v1/admin/rate-limits/cleanup [post]
func (h *AdminHandler) CleanupRateLimits(c *fiber.Ctx) error {
	if err := h.rateLimitSvc.CleanupOldRecords(); err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Rate limits cleaned up successfully", nil)
}
