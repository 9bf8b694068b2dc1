package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/appforge-labs/forge_api/dto"
	"github.com/appforge-labs/forge_api/services"
	"github.com/appforge-labs/forge_api/shared"
)

type ReviewHandler struct {
	reviewSvc ReviewServiceInterface
}

func NewReviewHandler(reviewSvc ReviewServiceInterface) *ReviewHandler {
	return &ReviewHandler{
		reviewSvc: reviewSvc,
	}
}

// @Summary Submit Review
// @Description Submit a review for an app; guests allowed. The trust pipeline decides whether it is published, held or marked spam.
// @Tags reviews
// @Accept json
// @Produce json
// @Param appId path string true "App ID"
// @Param reviewRequest body dto.SubmitReviewRequest true "Review request"
// @Success 201 {object} shared.Response{data=dto.ReviewResponse}
// @Failure 400 {object} dto.ValidationErrorResponse
// @Failure 429 {object} shared.Response
// @Router /api/v1/apps/{appId}/reviews [post]
func (h *ReviewHandler) SubmitReview(c *fiber.Ctx) error {
	appID := c.Params("appId")

	var req dto.SubmitReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request")
	}

	userID, _ := c.Locals(shared.UserID).(string)
	clientIP := services.GetClientIP(c)
	fingerprint := services.FingerprintFromRequest(c)

	review, err := h.reviewSvc.SubmitReview(c.UserContext(), appID, clientIP, fingerprint, userID, req)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusCreated, "Created", review)
}

// @Summary Submit Reply
// @Description Reply to an existing review
// @Tags reviews
// @Accept json
// @Produce json
// @Param reviewId path string true "Review ID"
// @Param replyRequest body dto.SubmitReplyRequest true "Reply request"
// @Success 201 {object} shared.Response{data=dto.ReplyResponse}
// @Failure 429 {object} shared.Response
// @Router /api/v1/reviews/{reviewId}/replies [post]
func (h *ReviewHandler) SubmitReply(c *fiber.Ctx) error {
	reviewID := c.Params("reviewId")

	var req dto.SubmitReplyRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request")
	}

	userID, _ := c.Locals(shared.UserID).(string)
	clientIP := services.GetClientIP(c)

	reply, err := h.reviewSvc.SubmitReply(c.UserContext(), reviewID, clientIP, userID, req)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusCreated, "Created", reply)
}

// @Summary Get App Reviews
// @Description List reviews for an app; spam reviews are hidden
// @Tags reviews
// @Accept json
// @Produce json
// @Param appId path string true "App ID"
// @Success 200 {object} shared.Response{data=dto.ReviewListResponse}
// @Router /api/v1/apps/{appId}/reviews [get]
func (h *ReviewHandler) GetAppReviews(c *fiber.Ctx) error {
	appID := c.Params("appId")

	reviews, err := h.reviewSvc.GetAppReviews(appID)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", reviews)
}
