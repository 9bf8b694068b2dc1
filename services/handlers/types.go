package handlers

import (
	"context"

	"github.com/appforge-labs/forge_api/dto"
)

type ReviewServiceInterface interface {
	SubmitReview(ctx context.Context, appID, clientIP, fingerprint, userID string, req dto.SubmitReviewRequest) (*dto.ReviewResponse, error)
	SubmitReply(ctx context.Context, reviewID, clientIP, userID string, req dto.SubmitReplyRequest) (*dto.ReplyResponse, error)
	GetAppReviews(appID string) (*dto.ReviewListResponse, error)
	DeleteReview(reviewID string) error
}

type AppServiceInterface interface {
	ListApps(category string, limit int) (*dto.AppListResponse, error)
	ListAppsByStatus(status string) (*dto.AppListResponse, error)
	GetApp(appID string) (*dto.AppResponse, error)
	CreateApp(developerID string, req dto.CreateAppRequest) (*dto.AppResponse, error)
	UpdateAppStatus(appID string, req dto.UpdateAppStatusRequest) error
}

type RateLimitAdminInterface interface {
	Stats() map[string]interface{}
	CleanupOldRecords() error
	ResetRateLimit(identifier, endpointType string) error
}
