package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge-labs/forge_api/model"
	"github.com/appforge-labs/forge_api/shared"
)

func intPtr(v int) *int { return &v }

func TestCalculateTrustScore(t *testing.T) {
	tests := []struct {
		name    string
		factors TrustFactors
		want    int
	}{
		{
			name:    "clean guest",
			factors: TrustFactors{},
			want:    1,
		},
		{
			name:    "logged in unverified",
			factors: TrustFactors{IsLoggedIn: true},
			want:    5,
		},
		{
			name:    "logged in verified",
			factors: TrustFactors{IsLoggedIn: true, IsEmailVerified: true},
			want:    8,
		},
		{
			name:    "verified but brand new account",
			factors: TrustFactors{IsLoggedIn: true, IsEmailVerified: true, AccountAgeDays: intPtr(2)},
			want:    6,
		},
		{
			name:    "account exactly at age threshold carries no penalty",
			factors: TrustFactors{IsLoggedIn: true, AccountAgeDays: intPtr(7)},
			want:    5,
		},
		{
			name:    "guest from suspicious source",
			factors: TrustFactors{IsSuspiciousIP: true},
			want:    -9,
		},
		{
			name:    "guest duplicate",
			factors: TrustFactors{IsDuplicate: true},
			want:    -4,
		},
		{
			name:    "suspicious guest with spam history",
			factors: TrustFactors{IsSuspiciousIP: true, HasSpamHistory: true},
			want:    -17,
		},
		{
			name: "everything negative at once",
			factors: TrustFactors{
				IsSuspiciousIP: true,
				IsDuplicate:    true,
				HasSpamHistory: true,
				AccountAgeDays: intPtr(0),
			},
			want: 1 - 10 - 5 - 8 - 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculateTrustScore(tt.factors))
		})
	}
}

func TestCalculateTrustScore_SuspiciousIPDelta(t *testing.T) {
	// Flipping the suspicious flag moves the score by exactly the penalty,
	// independent of the other factors.
	base := TrustFactors{IsLoggedIn: true, IsEmailVerified: true, HasSpamHistory: true}
	flipped := base
	flipped.IsSuspiciousIP = true

	assert.Equal(t, -10, CalculateTrustScore(flipped)-CalculateTrustScore(base))
}

func TestGetModerationStatus(t *testing.T) {
	assert.Equal(t, shared.ModerationApproved, GetModerationStatus(8))
	assert.Equal(t, shared.ModerationApproved, GetModerationStatus(5))
	assert.Equal(t, shared.ModerationPending, GetModerationStatus(4))
	assert.Equal(t, shared.ModerationPending, GetModerationStatus(1))
	assert.Equal(t, shared.ModerationPending, GetModerationStatus(0))
	assert.Equal(t, shared.ModerationSpam, GetModerationStatus(-1))
	assert.Equal(t, shared.ModerationSpam, GetModerationStatus(-17))
}

func TestIsSuspiciousIP(t *testing.T) {
	for _, ip := range []string{"0.0.0.0", "255.255.255.255", "192.0.2.1", "198.51.100.1", "203.0.113.1"} {
		assert.True(t, IsSuspiciousIP(ip), ip)
	}

	assert.False(t, IsSuspiciousIP("203.0.113.2"))
	assert.False(t, IsSuspiciousIP("8.8.8.8"))
	assert.False(t, IsSuspiciousIP(""))
}

func TestFingerprint(t *testing.T) {
	fp := Fingerprint("Mozilla/5.0", "en-US", "gzip, deflate")

	// SHA-256 hex
	assert.Len(t, fp, 64)

	// Stable across calls
	assert.Equal(t, fp, Fingerprint("Mozilla/5.0", "en-US", "gzip, deflate"))

	// Any component change produces a different value
	assert.NotEqual(t, fp, Fingerprint("Mozilla/5.1", "en-US", "gzip, deflate"))
	assert.NotEqual(t, fp, Fingerprint("Mozilla/5.0", "en-GB", "gzip, deflate"))
	assert.NotEqual(t, fp, Fingerprint("Mozilla/5.0", "en-US", "br"))

	// Missing headers still hash to something stable
	assert.Len(t, Fingerprint("", "", ""), 64)
}

func TestSuspiciousScoreLedger(t *testing.T) {
	store := newTestStore(t)
	clock := newTestClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := newTestTrustService(store, clock)

	// Never-seen pair reads as zero
	score, err := svc.GetSuspiciousScore("10.0.0.1", "fp-a")
	require.NoError(t, err)
	assert.Equal(t, 0, score)

	require.NoError(t, svc.UpdateSuspiciousScore("10.0.0.1", "fp-a", 3))
	require.NoError(t, svc.UpdateSuspiciousScore("10.0.0.1", "fp-a", 3))

	score, err = svc.GetSuspiciousScore("10.0.0.1", "fp-a")
	require.NoError(t, err)
	assert.Equal(t, 6, score)

	// Same IP with a different fingerprint is a separate accumulator
	score, err = svc.GetSuspiciousScore("10.0.0.1", "fp-b")
	require.NoError(t, err)
	assert.Equal(t, 0, score)

	// Negative deltas decrement through the same upsert
	require.NoError(t, svc.UpdateSuspiciousScore("10.0.0.2", "fp-c", 3))
	require.NoError(t, svc.UpdateSuspiciousScore("10.0.0.2", "fp-c", -1))

	score, err = svc.GetSuspiciousScore("10.0.0.2", "fp-c")
	require.NoError(t, err)
	assert.Equal(t, 2, score)
}

func TestIsDuplicateReview(t *testing.T) {
	store := newTestStore(t)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := newTestClock(start)
	svc := newTestTrustService(store, clock)

	seed := &model.Review{
		AppID:            "app-1",
		UserName:         "alice",
		Rating:           5,
		Message:          "Great app, works offline too",
		IPAddress:        "10.0.0.1",
		Fingerprint:      "fp-a",
		ModerationStatus: shared.ModerationPending,
		CreatedAt:        start.Add(-1 * time.Hour),
	}
	_, err := store.CreateReview(seed)
	require.NoError(t, err)

	// Same app, same message, same IP
	dup, err := svc.IsDuplicateReview("app-1", "10.0.0.1", "fp-other", "Great app, works offline too")
	require.NoError(t, err)
	assert.True(t, dup)

	// Same message from a different IP but matching fingerprint
	dup, err = svc.IsDuplicateReview("app-1", "10.9.9.9", "fp-a", "Great app, works offline too")
	require.NoError(t, err)
	assert.True(t, dup)

	// Different message text is not a duplicate
	dup, err = svc.IsDuplicateReview("app-1", "10.0.0.1", "fp-a", "Great app, works offline")
	require.NoError(t, err)
	assert.False(t, dup)

	// Different app is not a duplicate
	dup, err = svc.IsDuplicateReview("app-2", "10.0.0.1", "fp-a", "Great app, works offline too")
	require.NoError(t, err)
	assert.False(t, dup)

	// Neither IP nor fingerprint matching is not a duplicate
	dup, err = svc.IsDuplicateReview("app-1", "10.9.9.9", "fp-other", "Great app, works offline too")
	require.NoError(t, err)
	assert.False(t, dup)

	// Outside the 24 hour window the match expires
	clock.Advance(24 * time.Hour)
	dup, err = svc.IsDuplicateReview("app-1", "10.0.0.1", "fp-a", "Great app, works offline too")
	require.NoError(t, err)
	assert.False(t, dup)
}

func TestHasSpamHistory(t *testing.T) {
	store := newTestStore(t)
	clock := newTestClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := newTestTrustService(store, clock)

	spammerID := "user-spammer"
	_, err := store.CreateReview(&model.Review{
		AppID:            "app-1",
		UserID:           &spammerID,
		UserName:         "spammer",
		Rating:           1,
		Message:          "buy now",
		IPAddress:        "10.0.0.1",
		Fingerprint:      "fp-a",
		ModerationStatus: shared.ModerationSpam,
		IsSpam:           true,
		CreatedAt:        clock.Now().Add(-48 * time.Hour),
	})
	require.NoError(t, err)

	// Logged-in users are checked by identity only, even from a tainted IP
	has, err := svc.HasSpamHistory(&spammerID, "203.0.113.50")
	require.NoError(t, err)
	assert.True(t, has)

	cleanID := "user-clean"
	has, err = svc.HasSpamHistory(&cleanID, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, has, "logged-in check must not fall through to the IP")

	// Guests are checked by IP only
	has, err = svc.HasSpamHistory(nil, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = svc.HasSpamHistory(nil, "10.0.0.2")
	require.NoError(t, err)
	assert.False(t, has)

	// Non-spam history does not count
	_, err = store.CreateReview(&model.Review{
		AppID:            "app-1",
		UserName:         "bob",
		Rating:           4,
		Message:          "nice",
		IPAddress:        "10.0.0.3",
		Fingerprint:      "fp-b",
		ModerationStatus: shared.ModerationApproved,
		CreatedAt:        clock.Now(),
	})
	require.NoError(t, err)

	has, err = svc.HasSpamHistory(nil, "10.0.0.3")
	require.NoError(t, err)
	assert.False(t, has)
}
