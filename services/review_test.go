package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge-labs/forge_api/dto"
	"github.com/appforge-labs/forge_api/model"
	"github.com/appforge-labs/forge_api/shared"
)

func seedTestApp(t *testing.T, store *PostgresService, developerID string) *model.Application {
	t.Helper()
	app, err := store.CreateApp(&model.Application{
		Name:        "Taskboard Pro",
		Slug:        "taskboard-pro",
		DeveloperID: developerID,
		Category:    "productivity",
		Status:      shared.AppStatusApproved,
	})
	require.NoError(t, err)
	return app
}

func seedTestUser(t *testing.T, store *PostgresService, id string, verified bool, createdAt time.Time) *model.User {
	t.Helper()
	user := &model.User{
		ID:            id,
		Email:         id + "@example.com",
		Username:      id,
		EmailVerified: verified,
		Role:          "user",
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
	require.NoError(t, store.Db().Create(user).Error)
	return user
}

func requireAppError(t *testing.T, err error, statusCode int) *shared.AppError {
	t.Helper()
	require.Error(t, err)
	appErr, ok := shared.GetAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	require.Equal(t, statusCode, appErr.StatusCode)
	return appErr
}

func TestSubmitReview_GuestClean(t *testing.T) {
	store := newTestStore(t)
	clock := newTestClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := newTestReviewService(store, clock)
	app := seedTestApp(t, store, "dev-1")

	resp, err := svc.SubmitReview(context.Background(), app.ID, "10.0.0.1", "fp-a", "", dto.SubmitReviewRequest{
		Rating:   4,
		Message:  "Solid task manager, syncs well",
		UserName: "alice",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, resp.TrustScore)
	assert.Equal(t, shared.ModerationPending, resp.ModerationStatus)
	assert.Nil(t, resp.UserID)
	assert.Equal(t, "alice", resp.UserName)

	// Aggregate refreshed on the parent listing
	updated, err := store.GetApp(app.ID)
	require.NoError(t, err)
	assert.Equal(t, 4.0, updated.Rating)
	assert.Equal(t, 1, updated.ReviewsCount)
}

func TestSubmitReview_LoggedInVerified(t *testing.T) {
	store := newTestStore(t)
	clock := newTestClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := newTestReviewService(store, clock)
	app := seedTestApp(t, store, "dev-1")
	user := seedTestUser(t, store, "user-1", true, clock.Now().Add(-30*24*time.Hour))

	resp, err := svc.SubmitReview(context.Background(), app.ID, "10.0.0.1", "fp-a", user.ID, dto.SubmitReviewRequest{
		Rating:   5,
		Message:  "Been using it daily for a month",
		UserName: "alice",
	})
	require.NoError(t, err)

	// Logged in (+5) and verified (+3) clears the publish threshold
	assert.Equal(t, 8, resp.TrustScore)
	assert.Equal(t, shared.ModerationApproved, resp.ModerationStatus)
	require.NotNil(t, resp.UserID)
	assert.Equal(t, user.ID, *resp.UserID)
}

func TestSubmitReview_NewAccountHeldForModeration(t *testing.T) {
	store := newTestStore(t)
	clock := newTestClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := newTestReviewService(store, clock)
	app := seedTestApp(t, store, "dev-1")
	user := seedTestUser(t, store, "user-new", false, clock.Now().Add(-2*24*time.Hour))

	resp, err := svc.SubmitReview(context.Background(), app.ID, "10.0.0.1", "fp-a", user.ID, dto.SubmitReviewRequest{
		Rating:   5,
		Message:  "First impressions are great",
		UserName: "newbie",
	})
	require.NoError(t, err)

	// +5 logged in, -2 young account, unverified
	assert.Equal(t, 3, resp.TrustScore)
	assert.Equal(t, shared.ModerationPending, resp.ModerationStatus)
}

func TestSubmitReview_SuspiciousGuestWithSpamHistory(t *testing.T) {
	store := newTestStore(t)
	clock := newTestClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := newTestReviewService(store, clock)
	app := seedTestApp(t, store, "dev-1")

	// Prior spam from the same IP
	_, err := store.CreateReview(&model.Review{
		AppID:            app.ID,
		UserName:         "bot",
		Rating:           1,
		Message:          "click here for free coins",
		IPAddress:        "192.0.2.1",
		Fingerprint:      "fp-old",
		ModerationStatus: shared.ModerationSpam,
		IsSpam:           true,
		CreatedAt:        clock.Now().Add(-48 * time.Hour),
	})
	require.NoError(t, err)

	resp, err := svc.SubmitReview(context.Background(), app.ID, "192.0.2.1", "fp-a", "", dto.SubmitReviewRequest{
		Rating:   1,
		Message:  "totally legit opinion",
		UserName: "bot2",
	})
	require.NoError(t, err)

	// +1 guest, -10 suspicious IP, -8 spam history
	assert.Equal(t, -17, resp.TrustScore)
	assert.Equal(t, shared.ModerationSpam, resp.ModerationStatus)

	// The spam outcome taints the (ip, fingerprint) ledger
	score, err := store.GetSuspiciousScore("192.0.2.1", "fp-a")
	require.NoError(t, err)
	assert.Equal(t, 3, score)

	// And the review never shows on the storefront
	listed, err := store.GetAppReviews(app.ID, false)
	require.NoError(t, err)
	for _, r := range listed {
		assert.NotEqual(t, resp.ID, r.ID)
	}
}

func TestSubmitReview_DuplicateContentSuppressed(t *testing.T) {
	store := newTestStore(t)
	clock := newTestClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := newTestReviewService(store, clock)
	app := seedTestApp(t, store, "dev-1")

	first, err := svc.SubmitReview(context.Background(), app.ID, "10.0.0.1", "fp-a", "", dto.SubmitReviewRequest{
		Rating:   5,
		Message:  "Best app I have ever used, five stars",
		UserName: "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, shared.ModerationPending, first.ModerationStatus)

	// Same text from the same IP under a different name within 24h
	second, err := svc.SubmitReview(context.Background(), app.ID, "10.0.0.1", "fp-b", "", dto.SubmitReviewRequest{
		Rating:   5,
		Message:  "Best app I have ever used, five stars",
		UserName: "bob",
	})
	require.NoError(t, err)

	// +1 guest, -5 duplicate
	assert.Equal(t, -4, second.TrustScore)
	assert.Equal(t, shared.ModerationSpam, second.ModerationStatus)
}

func TestSubmitReview_RateLimited(t *testing.T) {
	store := newTestStore(t)
	clock := newTestClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := newTestReviewService(store, clock)
	app := seedTestApp(t, store, "dev-1")

	names := []string{"alice", "bob", "carol"}
	for i, name := range names {
		_, err := svc.SubmitReview(context.Background(), app.ID, "10.0.0.1", "fp-a", "", dto.SubmitReviewRequest{
			Rating:   4,
			Message:  "review number " + name,
			UserName: name,
		})
		require.NoError(t, err, "submission %d should pass", i+1)
	}

	_, err := svc.SubmitReview(context.Background(), app.ID, "10.0.0.1", "fp-a", "", dto.SubmitReviewRequest{
		Rating:   4,
		Message:  "one too many",
		UserName: "dave",
	})
	appErr := requireAppError(t, err, http.StatusTooManyRequests)
	assert.Contains(t, appErr.Message, "Too many reviews")
}

func TestSubmitReview_ResubmissionGuard(t *testing.T) {
	store := newTestStore(t)
	clock := newTestClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := newTestReviewService(store, clock)
	app := seedTestApp(t, store, "dev-1")

	_, err := svc.SubmitReview(context.Background(), app.ID, "10.0.0.1", "fp-a", "", dto.SubmitReviewRequest{
		Rating:   4,
		Message:  "first submission",
		UserName: "alice",
	})
	require.NoError(t, err)

	// Same (app, name) again inside the 60 second window
	_, err = svc.SubmitReview(context.Background(), app.ID, "10.0.0.1", "fp-a", "", dto.SubmitReviewRequest{
		Rating:   4,
		Message:  "second submission",
		UserName: "alice",
	})
	requireAppError(t, err, http.StatusConflict)

	// Past the window the same name may submit again
	clock.Advance(61 * time.Second)
	_, err = svc.SubmitReview(context.Background(), app.ID, "10.0.0.1", "fp-a", "", dto.SubmitReviewRequest{
		Rating:   5,
		Message:  "changed my mind, even better",
		UserName: "alice",
	})
	require.NoError(t, err)
}

func TestSubmitReview_AppNotFound(t *testing.T) {
	store := newTestStore(t)
	clock := newTestClock(time.Now())
	svc := newTestReviewService(store, clock)

	_, err := svc.SubmitReview(context.Background(), "no-such-app", "10.0.0.1", "fp-a", "", dto.SubmitReviewRequest{
		Rating:   4,
		Message:  "hello",
		UserName: "alice",
	})
	requireAppError(t, err, http.StatusNotFound)
}

func TestSubmitReview_Validation(t *testing.T) {
	store := newTestStore(t)
	clock := newTestClock(time.Now())
	svc := newTestReviewService(store, clock)
	app := seedTestApp(t, store, "dev-1")

	// Each case submits from its own IP so the review budget stays out of
	// the way; every rejection here must be a 400, never a 429.
	tests := []struct {
		name string
		req  dto.SubmitReviewRequest
	}{
		{"rating below range", dto.SubmitReviewRequest{Rating: 0, Message: "hello", UserName: "alice"}},
		{"rating above range", dto.SubmitReviewRequest{Rating: 6, Message: "hello", UserName: "alice"}},
		{"message empty once tags stripped", dto.SubmitReviewRequest{Rating: 4, Message: "<script></script>  ", UserName: "alice"}},
		{"message over the cap after sanitization", dto.SubmitReviewRequest{Rating: 4, Message: strings.Repeat("a", 501), UserName: "alice"}},
		{"name over the cap once escaped", dto.SubmitReviewRequest{Rating: 4, Message: "hello there", UserName: strings.Repeat("&", 60)}},
		{"name empty once tags stripped", dto.SubmitReviewRequest{Rating: 4, Message: "hello there", UserName: "<i></i>"}},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ip := fmt.Sprintf("10.0.1.%d", i+1)
			_, err := svc.SubmitReview(context.Background(), app.ID, ip, "fp-a", "", tt.req)
			requireAppError(t, err, http.StatusBadRequest)
		})
	}
}

func TestSubmitReview_MultibyteMessageCountedInCharacters(t *testing.T) {
	store := newTestStore(t)
	clock := newTestClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := newTestReviewService(store, clock)
	app := seedTestApp(t, store, "dev-1")

	// 200 CJK characters are 600 bytes but well inside the 500-character cap
	resp, err := svc.SubmitReview(context.Background(), app.ID, "10.0.0.1", "fp-a", "", dto.SubmitReviewRequest{
		Rating:   5,
		Message:  strings.Repeat("好", 200),
		UserName: "chen",
	})
	require.NoError(t, err)
	assert.Equal(t, shared.ModerationPending, resp.ModerationStatus)
}

func TestSubmitReply(t *testing.T) {
	store := newTestStore(t)
	clock := newTestClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := newTestReviewService(store, clock)
	app := seedTestApp(t, store, "dev-1")

	review, err := svc.SubmitReview(context.Background(), app.ID, "10.0.0.1", "fp-a", "", dto.SubmitReviewRequest{
		Rating:   3,
		Message:  "crashes on startup sometimes",
		UserName: "alice",
	})
	require.NoError(t, err)

	// Reply from the listing's developer gets the badge
	reply, err := svc.SubmitReply(context.Background(), review.ID, "10.0.0.9", "dev-1", dto.SubmitReplyRequest{
		Comment:  "Thanks for the report, fixed in 1.2.1",
		UserName: "Pixel Studio",
	})
	require.NoError(t, err)
	assert.True(t, reply.IsDeveloper)
	assert.Equal(t, "Thanks for the report, fixed in 1.2.1", reply.Comment)

	// Guest reply carries no badge even if the name claims otherwise
	reply, err = svc.SubmitReply(context.Background(), review.ID, "10.0.0.9", "", dto.SubmitReplyRequest{
		Comment:  "same here, also crashing",
		UserName: "Pixel Studio",
	})
	require.NoError(t, err)
	assert.False(t, reply.IsDeveloper)

	// Replies come back attached to the review in order
	got, err := store.GetReview(review.ID)
	require.NoError(t, err)
	require.Len(t, got.Replies, 2)
	assert.True(t, got.Replies[0].IsDeveloper)

	// Too-short comment
	_, err = svc.SubmitReply(context.Background(), review.ID, "10.0.0.9", "", dto.SubmitReplyRequest{
		Comment:  "+1",
		UserName: "bob",
	})
	requireAppError(t, err, http.StatusBadRequest)

	// Unknown review
	_, err = svc.SubmitReply(context.Background(), "no-such-review", "10.0.0.9", "", dto.SubmitReplyRequest{
		Comment:  "hello there",
		UserName: "bob",
	})
	requireAppError(t, err, http.StatusNotFound)
}

func TestGetAppReviews_HidesSpam(t *testing.T) {
	store := newTestStore(t)
	clock := newTestClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := newTestReviewService(store, clock)
	app := seedTestApp(t, store, "dev-1")

	_, err := store.CreateReview(&model.Review{
		AppID:            app.ID,
		UserName:         "alice",
		Rating:           5,
		Message:          "good",
		IPAddress:        "10.0.0.1",
		ModerationStatus: shared.ModerationApproved,
		CreatedAt:        clock.Now(),
	})
	require.NoError(t, err)

	_, err = store.CreateReview(&model.Review{
		AppID:            app.ID,
		UserName:         "bot",
		Rating:           1,
		Message:          "spam spam",
		IPAddress:        "192.0.2.1",
		ModerationStatus: shared.ModerationSpam,
		IsSpam:           true,
		CreatedAt:        clock.Now(),
	})
	require.NoError(t, err)

	list, err := svc.GetAppReviews(app.ID)
	require.NoError(t, err)
	require.Len(t, list.Reviews, 1)
	assert.Equal(t, "alice", list.Reviews[0].UserName)

	_, err = svc.GetAppReviews("no-such-app")
	requireAppError(t, err, http.StatusNotFound)
}

func TestRecomputeAppStats(t *testing.T) {
	store := newTestStore(t)
	clock := newTestClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := newTestReviewService(store, clock)
	app := seedTestApp(t, store, "dev-1")

	ids := make([]string, 0, 3)
	for _, rating := range []int{5, 4, 4} {
		review, err := store.CreateReview(&model.Review{
			AppID:            app.ID,
			UserName:         "u",
			Rating:           rating,
			Message:          "m",
			ModerationStatus: shared.ModerationApproved,
			CreatedAt:        clock.Now(),
		})
		require.NoError(t, err)
		ids = append(ids, review.ID)
	}

	require.NoError(t, svc.RecomputeAppStats(app.ID))

	updated, err := store.GetApp(app.ID)
	require.NoError(t, err)
	// mean of 5,4,4 is 4.333..., rounded to one decimal
	assert.Equal(t, 4.3, updated.Rating)
	assert.Equal(t, 3, updated.ReviewsCount)

	// Deleting reviews recomputes, down to the zero case
	require.NoError(t, svc.DeleteReview(ids[0]))
	updated, err = store.GetApp(app.ID)
	require.NoError(t, err)
	assert.Equal(t, 4.0, updated.Rating)
	assert.Equal(t, 2, updated.ReviewsCount)

	require.NoError(t, svc.DeleteReview(ids[1]))
	require.NoError(t, svc.DeleteReview(ids[2]))
	updated, err = store.GetApp(app.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, updated.Rating)
	assert.Equal(t, 0, updated.ReviewsCount)

	// Deleting an unknown review is a 404, not a recompute
	err = svc.DeleteReview("no-such-review")
	requireAppError(t, err, http.StatusNotFound)
}
