package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	appContext "github.com/alphabatem/common/context"
	"gorm.io/gorm"

	"github.com/appforge-labs/forge_api/dto"
	"github.com/appforge-labs/forge_api/model"
	"github.com/appforge-labs/forge_api/shared"
	log "github.com/sirupsen/logrus"
)

// ReviewService orchestrates a review submission: rate limit, validation,
// resubmission guard, trust factors, score, persistence and the aggregate
// rating recompute on the owning application.
type ReviewService struct {
	appContext.DefaultService

	sqlSvc       *PostgresService
	redisSvc     *RedisService
	rateLimitSvc *RateLimitService
	trustSvc     *TrustService

	now func() time.Time
}

// Identity is what the session collaborator hands the pipeline. Guests have
// IsLoggedIn=false and no account age.
type Identity struct {
	IsLoggedIn      bool
	UserID          string
	IsEmailVerified bool
	AccountAgeDays  *int
}

const REVIEW_SVC = "review_svc"

const (
	maxMessageLength  = 500
	maxUserNameLength = 100
	minReplyLength    = 5

	// Resubmission guard window: a tight double-click safeguard, separate
	// from the 24h duplicate-content signal.
	resubmissionWindow = 60 * time.Second

	// Ledger delta applied when a submission lands in spam.
	spamScoreDelta = 3

	// Ledger level at which a pair counts as a suspicious source.
	suspiciousScoreThreshold = 5
)

func (svc ReviewService) Id() string {
	return REVIEW_SVC
}

func (svc *ReviewService) Configure(ctx *appContext.Context) error {
	svc.now = time.Now
	return svc.DefaultService.Configure(ctx)
}

func (svc *ReviewService) Start() error {
	svc.sqlSvc = svc.Service(POSTGRES_SVC).(*PostgresService)
	svc.redisSvc = svc.Service(REDIS_SVC).(*RedisService)
	svc.rateLimitSvc = svc.Service(RATE_LIMIT_SVC).(*RateLimitService)
	svc.trustSvc = svc.Service(TRUST_SVC).(*TrustService)
	return nil
}

// ==================== SUBMISSION ORCHESTRATION ====================

// SubmitReview runs the submission state machine strictly in order. Rate
// limiting fails open; everything from validation onward fails closed.
func (svc *ReviewService) SubmitReview(ctx context.Context, appID, clientIP, fingerprint, userID string, req dto.SubmitReviewRequest) (*dto.ReviewResponse, error) {
	// Step 1: rate limit by requester IP
	allowed, info := svc.rateLimitSvc.Check(clientIP, shared.EndpointReview)
	if !allowed {
		recordRateLimitDenied(shared.EndpointReview)
		data := map[string]interface{}{}
		if info != nil && info.ResetTime != nil {
			data["reset_at"] = info.ResetTime.Unix()
		}
		return nil, shared.NewRateLimitError("Too many reviews submitted. Please try again later.", data)
	}

	// Step 2: structural validation
	if err := req.Validate(); err != nil {
		return nil, shared.NewValidationError("Validation failed", dto.FormatValidationErrors(err))
	}

	// Length bounds apply to the sanitized text: escaping can expand the
	// input past what the raw-input validator saw.
	userName := shared.SanitizeText(req.UserName)
	if userName == "" {
		return nil, shared.NewValidationError("Validation failed", []dto.ValidationError{
			{Field: "user", Message: "user name must not be empty"},
		})
	}
	if utf8.RuneCountInString(userName) > maxUserNameLength {
		return nil, shared.NewValidationError("Validation failed", []dto.ValidationError{
			{Field: "user", Message: fmt.Sprintf("user name must be at most %d characters", maxUserNameLength)},
		})
	}

	message := shared.SanitizeText(req.Message)
	if message == "" {
		return nil, shared.NewValidationError("Validation failed", []dto.ValidationError{
			{Field: "message", Message: "message must not be empty"},
		})
	}
	if utf8.RuneCountInString(message) > maxMessageLength {
		return nil, shared.NewValidationError("Validation failed", []dto.ValidationError{
			{Field: "message", Message: fmt.Sprintf("message must be at most %d characters", maxMessageLength)},
		})
	}

	app, err := svc.sqlSvc.GetApp(appID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("App not found")
		}
		return nil, err
	}

	// Step 3: 60-second resubmission guard
	if svc.isResubmission(ctx, app.ID, userName) {
		return nil, shared.NewConflictError("Duplicate submission detected. Please wait a minute before resubmitting.")
	}

	// Step 4: trust factors
	identity := svc.resolveIdentity(userID)

	isDuplicate, err := svc.trustSvc.IsDuplicateReview(app.ID, clientIP, fingerprint, message)
	if err != nil {
		return nil, err
	}

	var spamUserID *string
	if identity.IsLoggedIn {
		spamUserID = &identity.UserID
	}
	hasSpamHistory, err := svc.trustSvc.HasSpamHistory(spamUserID, clientIP)
	if err != nil {
		return nil, err
	}

	factors := TrustFactors{
		IsLoggedIn:      identity.IsLoggedIn,
		IsEmailVerified: identity.IsEmailVerified,
		IsSuspiciousIP:  svc.isSuspiciousSource(clientIP, fingerprint),
		IsDuplicate:     isDuplicate,
		HasSpamHistory:  hasSpamHistory,
		AccountAgeDays:  identity.AccountAgeDays,
	}

	// Step 5: score, decide, persist
	score := CalculateTrustScore(factors)
	status := GetModerationStatus(score)

	review := &model.Review{
		AppID:            app.ID,
		UserName:         userName,
		Rating:           req.Rating,
		Message:          message,
		IPAddress:        clientIP,
		Fingerprint:      fingerprint,
		TrustScore:       score,
		ModerationStatus: status,
		IsSpam:           status == shared.ModerationSpam,
		CreatedAt:        svc.now(),
		UpdatedAt:        svc.now(),
	}
	if identity.IsLoggedIn {
		review.UserID = &identity.UserID
	}

	if _, err := svc.sqlSvc.CreateReview(review); err != nil {
		return nil, err
	}

	if review.IsSpam {
		// Taint the source pair; the ledger only ever accumulates
		if err := svc.trustSvc.UpdateSuspiciousScore(clientIP, fingerprint, spamScoreDelta); err != nil {
			log.Printf("Failed to update suspicious score for %s: %v", clientIP, err)
		}
	}

	recordReviewSubmitted(status)

	log.WithFields(log.Fields{
		"review_id":         review.ID,
		"app_id":            app.ID,
		"trust_score":       score,
		"moderation_status": status,
	}).Info("Review submitted")

	// Step 6: refresh the denormalized aggregate
	if err := svc.RecomputeAppStats(app.ID); err != nil {
		return nil, err
	}

	resp := mapReviewToResponse(review)
	return &resp, nil
}

// isResubmission is the tight double-click safeguard: one submission per
// (app, user name) per 60 seconds. The redis guard is authoritative; if
// redis is down the reviews table is consulted instead so the guard never
// blocks the flow outright.
func (svc *ReviewService) isResubmission(ctx context.Context, appID, userName string) bool {
	key := fmt.Sprintf("review_guard:%s:%s", appID, userName)

	acquired, err := svc.redisSvc.AcquireGuard(ctx, key, resubmissionWindow)
	if err == nil {
		return !acquired
	}

	log.Printf("Resubmission guard unavailable, falling back to store: %v", err)
	recent, dbErr := svc.sqlSvc.HasRecentReviewByName(appID, userName, svc.now().Add(-resubmissionWindow))
	if dbErr != nil {
		log.Printf("Resubmission fallback check failed: %v", dbErr)
		return false
	}
	return recent
}

// resolveIdentity loads trust-relevant identity fields for a session user.
// An unknown or missing user id degrades to a guest identity.
func (svc *ReviewService) resolveIdentity(userID string) Identity {
	if userID == "" {
		return Identity{}
	}

	user, err := svc.sqlSvc.GetUser(userID)
	if err != nil {
		log.Printf("Identity lookup failed for %s: %v", userID, err)
		return Identity{}
	}

	age := user.AccountAgeDays(svc.now())
	return Identity{
		IsLoggedIn:      true,
		UserID:          user.ID,
		IsEmailVerified: user.EmailVerified,
		AccountAgeDays:  &age,
	}
}

// isSuspiciousSource combines the static denylist with the accumulated
// ledger score for the (ip, fingerprint) pair.
func (svc *ReviewService) isSuspiciousSource(ip, fingerprint string) bool {
	if IsSuspiciousIP(ip) {
		return true
	}

	score, err := svc.trustSvc.GetSuspiciousScore(ip, fingerprint)
	if err != nil {
		log.Printf("Suspicious score lookup failed for %s: %v", ip, err)
		return false
	}
	return score >= suspiciousScoreThreshold
}

// ==================== REPLIES ====================

func (svc *ReviewService) SubmitReply(ctx context.Context, reviewID, clientIP, userID string, req dto.SubmitReplyRequest) (*dto.ReplyResponse, error) {
	identifier := userID
	if identifier == "" {
		identifier = clientIP
	}
	allowed, info := svc.rateLimitSvc.Check(identifier, shared.EndpointReply)
	if !allowed {
		recordRateLimitDenied(shared.EndpointReply)
		data := map[string]interface{}{}
		if info != nil && info.ResetTime != nil {
			data["reset_at"] = info.ResetTime.Unix()
		}
		return nil, shared.NewRateLimitError("Too many replies submitted. Please try again later.", data)
	}

	if err := req.Validate(); err != nil {
		return nil, shared.NewValidationError("Validation failed", dto.FormatValidationErrors(err))
	}

	comment := shared.SanitizeText(req.Comment)
	if utf8.RuneCountInString(comment) < minReplyLength {
		return nil, shared.NewValidationError("Validation failed", []dto.ValidationError{
			{Field: "comment", Message: fmt.Sprintf("comment must be at least %d characters", minReplyLength)},
		})
	}

	userName := shared.SanitizeText(req.UserName)
	if userName == "" {
		return nil, shared.NewValidationError("Validation failed", []dto.ValidationError{
			{Field: "user_name", Message: "user name must not be empty"},
		})
	}
	if utf8.RuneCountInString(userName) > maxUserNameLength {
		return nil, shared.NewValidationError("Validation failed", []dto.ValidationError{
			{Field: "user_name", Message: fmt.Sprintf("user name must be at most %d characters", maxUserNameLength)},
		})
	}

	review, err := svc.sqlSvc.GetReview(reviewID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("Review not found")
		}
		return nil, err
	}

	reply := &model.Reply{
		ReviewID:    review.ID,
		UserName:    userName,
		IsDeveloper: svc.isAppDeveloper(review.AppID, userID),
		Comment:     comment,
	}
	if userID != "" {
		reply.UserID = &userID
	}

	if _, err := svc.sqlSvc.CreateReply(reply); err != nil {
		return nil, err
	}

	resp := mapReplyToResponse(reply)
	return &resp, nil
}

// isAppDeveloper marks replies from the listing's own developer. The claim
// is derived from the session, never from the request body.
func (svc *ReviewService) isAppDeveloper(appID, userID string) bool {
	if userID == "" {
		return false
	}

	app, err := svc.sqlSvc.GetApp(appID)
	if err != nil {
		return false
	}
	return app.DeveloperID == userID
}

// ==================== QUERIES & DELETION ====================

func (svc *ReviewService) GetAppReviews(appID string) (*dto.ReviewListResponse, error) {
	app, err := svc.sqlSvc.GetApp(appID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("App not found")
		}
		return nil, err
	}

	reviews, err := svc.sqlSvc.GetAppReviews(app.ID, false)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.ReviewResponse, len(reviews))
	for i := range reviews {
		responses[i] = mapReviewToResponse(&reviews[i])
	}

	return &dto.ReviewListResponse{
		Reviews:      responses,
		Rating:       app.Rating,
		ReviewsCount: app.ReviewsCount,
	}, nil
}

// DeleteReview is the owner/admin removal path. The same aggregate recompute
// runs afterwards, including the zero-reviews-remaining reset.
func (svc *ReviewService) DeleteReview(reviewID string) error {
	review, err := svc.sqlSvc.GetReview(reviewID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return shared.NewNotFoundError("Review not found")
		}
		return err
	}

	if err := svc.sqlSvc.DeleteReview(review.ID); err != nil {
		return err
	}

	return svc.RecomputeAppStats(review.AppID)
}

// ==================== AGGREGATE RATING ====================

// RecomputeAppStats scans every review for the app and rewrites the
// denormalized mean (one decimal) and count. Not incremental; two racing
// recomputes converge because the scan is the source of truth.
func (svc *ReviewService) RecomputeAppStats(appID string) error {
	ratings, err := svc.sqlSvc.AppReviewRatings(appID)
	if err != nil {
		return err
	}

	rating := 0.0
	if len(ratings) > 0 {
		sum := 0
		for _, r := range ratings {
			sum += r
		}
		rating = math.Round(float64(sum)/float64(len(ratings))*10) / 10
	}

	return svc.sqlSvc.UpdateAppStats(appID, rating, len(ratings))
}

// ==================== MAPPERS ====================

func mapReviewToResponse(review *model.Review) dto.ReviewResponse {
	replies := make([]dto.ReplyResponse, len(review.Replies))
	for i := range review.Replies {
		replies[i] = mapReplyToResponse(&review.Replies[i])
	}

	return dto.ReviewResponse{
		ID:               review.ID,
		AppID:            review.AppID,
		UserID:           review.UserID,
		UserName:         review.UserName,
		Rating:           review.Rating,
		Message:          review.Message,
		TrustScore:       review.TrustScore,
		ModerationStatus: review.ModerationStatus,
		Replies:          replies,
		CreatedAt:        review.CreatedAt,
	}
}

func mapReplyToResponse(reply *model.Reply) dto.ReplyResponse {
	return dto.ReplyResponse{
		ReplyID:     reply.ID,
		UserID:      reply.UserID,
		UserName:    reply.UserName,
		IsDeveloper: reply.IsDeveloper,
		Comment:     reply.Comment,
		CreatedAt:   reply.CreatedAt,
	}
}
