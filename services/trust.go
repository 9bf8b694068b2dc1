package services

import (
	"time"

	"github.com/alphabatem/common/context"

	"github.com/appforge-labs/forge_api/shared"
)

// TrustService combines duplicate detection, spam history, the suspicious
// score ledger and the scoring table into a single moderation signal.
type TrustService struct {
	context.DefaultService

	sqlSvc *PostgresService

	now func() time.Time
}

// TrustFactors are the inputs to the scoring table. AccountAgeDays is a
// pointer because age is only known for logged-in users.
type TrustFactors struct {
	IsLoggedIn      bool
	IsEmailVerified bool
	IsSuspiciousIP  bool
	IsDuplicate     bool
	HasSpamHistory  bool
	AccountAgeDays  *int
}

const TRUST_SVC = "trust_svc"

// Scoring table. Logged-in and guest baselines are mutually exclusive; every
// other factor stacks independently.
const (
	scoreLoggedIn      = 5
	scoreGuest         = 1
	scoreEmailVerified = 3
	scoreSuspiciousIP  = -10
	scoreDuplicate     = -5
	scoreYoungAccount  = -2
	scoreSpamHistory   = -8

	youngAccountDays = 7

	approveThreshold = 5
)

// Window for the duplicate-content check.
const duplicateWindow = 24 * time.Hour

// Exact-match denylist of non-routable/test addresses. A stub heuristic, not
// a reputation feed.
var suspiciousIPs = map[string]bool{
	"0.0.0.0":         true,
	"255.255.255.255": true,
	"192.0.2.1":       true,
	"198.51.100.1":    true,
	"203.0.113.1":     true,
}

func (svc TrustService) Id() string {
	return TRUST_SVC
}

func (svc *TrustService) Configure(ctx *context.Context) error {
	svc.now = time.Now
	return svc.DefaultService.Configure(ctx)
}

func (svc *TrustService) Start() error {
	svc.sqlSvc = svc.Service(POSTGRES_SVC).(*PostgresService)
	return nil
}

// ==================== SCORE ENGINE ====================

// CalculateTrustScore is pure and order-independent; the result is unbounded
// in both directions.
func CalculateTrustScore(factors TrustFactors) int {
	score := 0

	if factors.IsLoggedIn {
		score += scoreLoggedIn
	} else {
		score += scoreGuest
	}

	if factors.IsEmailVerified {
		score += scoreEmailVerified
	}

	if factors.IsSuspiciousIP {
		score += scoreSuspiciousIP
	}

	if factors.IsDuplicate {
		score += scoreDuplicate
	}

	if factors.AccountAgeDays != nil && *factors.AccountAgeDays < youngAccountDays {
		score += scoreYoungAccount
	}

	if factors.HasSpamHistory {
		score += scoreSpamHistory
	}

	return score
}

// GetModerationStatus is the sole authority for auto-publish vs. hold vs.
// suppress.
func GetModerationStatus(score int) string {
	switch {
	case score >= approveThreshold:
		return shared.ModerationApproved
	case score >= 0:
		return shared.ModerationPending
	default:
		return shared.ModerationSpam
	}
}

// ==================== SIGNAL CHECKS ====================

func IsSuspiciousIP(ip string) bool {
	return suspiciousIPs[ip]
}

// IsDuplicateReview reports whether the same app received byte-identical
// message text from the same IP or fingerprint within the last 24 hours.
// A hit lowers the trust score; it does not block submission.
func (svc *TrustService) IsDuplicateReview(appID, ip, fingerprint, message string) (bool, error) {
	return svc.sqlSvc.HasDuplicateReview(appID, ip, fingerprint, message, svc.now().Add(-duplicateWindow))
}

// HasSpamHistory checks lifetime spam flags. Logged-in users are checked by
// identity only, guests by IP only; the two paths never mix.
func (svc *TrustService) HasSpamHistory(userID *string, ip string) (bool, error) {
	if userID != nil && *userID != "" {
		return svc.sqlSvc.HasSpamReviewsByUser(*userID)
	}
	return svc.sqlSvc.HasSpamReviewsByIP(ip)
}

// ==================== SUSPICIOUS SCORE LEDGER ====================

// UpdateSuspiciousScore applies an atomic delta to the (ip, fingerprint)
// accumulator. No decay: once tainted, a pair stays tainted unless offset by
// positive deltas, which no current caller produces.
func (svc *TrustService) UpdateSuspiciousScore(ip, fingerprint string, delta int) error {
	return svc.sqlSvc.UpsertSuspiciousScore(ip, fingerprint, delta, svc.now())
}

func (svc *TrustService) GetSuspiciousScore(ip, fingerprint string) (int, error) {
	return svc.sqlSvc.GetSuspiciousScore(ip, fingerprint)
}
