package services

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"

	"github.com/appforge-labs/forge_api/dto"
	"github.com/appforge-labs/forge_api/shared"
	log "github.com/sirupsen/logrus"
)

// RateLimitService implements fixed-window request counting against the
// database, keyed by (identifier, endpoint class). Storage failures fail
// open: a lost check is tolerable, a blocked user flow is not.
type RateLimitService struct {
	context.DefaultService

	configs map[string]*RateLimitConfig
	mutex   sync.RWMutex

	sqlSvc *PostgresService

	now func() time.Time
}

type RateLimitConfig struct {
	EndpointType string
	MaxRequests  int
	WindowSize   time.Duration
	Description  string
}

const RATE_LIMIT_SVC = "rate_limit_svc"

// Retention for idle window rows before the sweep removes them.
const rateLimitRetention = 24 * time.Hour

func (svc RateLimitService) Id() string {
	return RATE_LIMIT_SVC
}

func (svc *RateLimitService) Configure(ctx *context.Context) error {
	svc.configs = make(map[string]*RateLimitConfig)
	svc.now = time.Now
	return svc.DefaultService.Configure(ctx)
}

func (svc *RateLimitService) Start() error {
	svc.sqlSvc = svc.Service(POSTGRES_SVC).(*PostgresService)
	svc.initDefaultConfigs()

	go svc.startCleanupJob()

	return nil
}

// ==================== CONFIGURATION ====================

// Budgets are compiled-in constants, not runtime-tunable.
func (svc *RateLimitService) initDefaultConfigs() {
	svc.mutex.Lock()
	defer svc.mutex.Unlock()

	svc.configs = map[string]*RateLimitConfig{
		shared.EndpointGeneral: {
			EndpointType: shared.EndpointGeneral,
			MaxRequests:  100,
			WindowSize:   15 * time.Minute,
			Description:  "General API rate limit per IP",
		},
		shared.EndpointAuth: {
			EndpointType: shared.EndpointAuth,
			MaxRequests:  5,
			WindowSize:   15 * time.Minute,
			Description:  "Authentication attempts rate limit",
		},
		shared.EndpointReview: {
			EndpointType: shared.EndpointReview,
			MaxRequests:  3,
			WindowSize:   60 * time.Minute,
			Description:  "Review submission rate limit",
		},
		shared.EndpointReply: {
			EndpointType: shared.EndpointReply,
			MaxRequests:  10,
			WindowSize:   60 * time.Minute,
			Description:  "Review reply rate limit",
		},
		shared.EndpointUpload: {
			EndpointType: shared.EndpointUpload,
			MaxRequests:  10,
			WindowSize:   60 * time.Minute,
			Description:  "App submission rate limit",
		},
	}
}

func (svc *RateLimitService) getConfig(endpointType string) *RateLimitConfig {
	svc.mutex.RLock()
	defer svc.mutex.RUnlock()
	return svc.configs[endpointType]
}

// ==================== CORE RATE LIMITING LOGIC ====================

// IsAllowed runs one fixed-window check and durably persists the updated
// count before returning. Storage errors propagate; callers that must not
// block the user flow go through Check instead.
func (svc *RateLimitService) IsAllowed(identifier, endpointType string) (bool, *dto.RateLimitInfo, error) {
	config := svc.getConfig(endpointType)
	if config == nil {
		// No config means no limit for this class
		return true, &dto.RateLimitInfo{
			Allowed:   true,
			Remaining: -1,
		}, nil
	}

	// Create, reset and increment are each a single conditional write, so a
	// concurrent request for the same key can win any step. Re-read and
	// retry a couple of times before giving up.
	for attempt := 0; attempt < 3; attempt++ {
		now := svc.now()
		expiredBefore := now.Add(-config.WindowSize)

		rateLimit, err := svc.sqlSvc.GetRateLimit(identifier, endpointType)
		if err != nil {
			return false, nil, err
		}

		// First request for this key: open a window with count=1
		if rateLimit == nil {
			created, err := svc.sqlSvc.CreateRateLimitWindow(identifier, endpointType, now)
			if err != nil {
				return false, nil, err
			}
			if created {
				resetTime := now.Add(config.WindowSize)
				return true, &dto.RateLimitInfo{
					Allowed:   true,
					Remaining: config.MaxRequests - 1,
					ResetTime: &resetTime,
				}, nil
			}
			continue
		}

		// Window expired: reset in place
		if !rateLimit.WindowStart.After(expiredBefore) {
			reset, err := svc.sqlSvc.ResetRateLimitWindow(identifier, endpointType, expiredBefore, now)
			if err != nil {
				return false, nil, err
			}
			if reset {
				resetTime := now.Add(config.WindowSize)
				return true, &dto.RateLimitInfo{
					Allowed:   true,
					Remaining: config.MaxRequests - 1,
					ResetTime: &resetTime,
				}, nil
			}
			continue
		}

		// Live window at capacity: deny until the window boundary
		if rateLimit.RequestCount >= config.MaxRequests {
			resetTime := rateLimit.WindowStart.Add(config.WindowSize)
			return false, &dto.RateLimitInfo{
				Allowed:   false,
				Remaining: 0,
				ResetTime: &resetTime,
			}, nil
		}

		incremented, err := svc.sqlSvc.IncrementRateLimit(identifier, endpointType, expiredBefore, config.MaxRequests, now)
		if err != nil {
			return false, nil, err
		}
		if incremented {
			resetTime := rateLimit.WindowStart.Add(config.WindowSize)
			return true, &dto.RateLimitInfo{
				Allowed:   true,
				Remaining: config.MaxRequests - rateLimit.RequestCount - 1,
				ResetTime: &resetTime,
			}, nil
		}
	}

	return false, nil, fmt.Errorf("rate limit check contention for %s/%s", identifier, endpointType)
}

// Check is the fail-open variant used on the primary user flow: any storage
// error is logged and the request is allowed as if no history existed.
func (svc *RateLimitService) Check(identifier, endpointType string) (bool, *dto.RateLimitInfo) {
	allowed, info, err := svc.IsAllowed(identifier, endpointType)
	if err != nil {
		log.Printf("Rate limit check error for %s (%s): %v", endpointType, identifier, err)
		return true, svc.failOpenInfo(endpointType)
	}
	return allowed, info
}

func (svc *RateLimitService) failOpenInfo(endpointType string) *dto.RateLimitInfo {
	remaining := -1
	if config := svc.getConfig(endpointType); config != nil {
		remaining = config.MaxRequests
	}
	return &dto.RateLimitInfo{
		Allowed:   true,
		Remaining: remaining,
	}
}

// ==================== MIDDLEWARE FUNCTIONS ====================

// RateLimit limits a route group by endpoint class, keyed on client IP.
func (svc *RateLimitService) RateLimit(endpointType string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier := GetClientIP(c)

		allowed, info := svc.Check(identifier, endpointType)
		svc.addRateLimitHeaders(c, info)

		if !allowed {
			recordRateLimitDenied(endpointType)
			return svc.handleRateLimitExceeded(c, endpointType, info)
		}

		return c.Next()
	}
}

// UserRateLimit keys on the authenticated user when present, falling back to
// the client IP for guests.
func (svc *RateLimitService) UserRateLimit(endpointType string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier := ""
		if userID, ok := c.Locals(shared.UserID).(string); ok && userID != "" {
			identifier = userID
		}
		if identifier == "" {
			identifier = GetClientIP(c)
		}

		allowed, info := svc.Check(identifier, endpointType)
		svc.addRateLimitHeaders(c, info)

		if !allowed {
			recordRateLimitDenied(endpointType)
			return svc.handleRateLimitExceeded(c, endpointType, info)
		}

		return c.Next()
	}
}

// ==================== HELPER FUNCTIONS ====================

func (svc *RateLimitService) addRateLimitHeaders(c *fiber.Ctx, info *dto.RateLimitInfo) {
	if info == nil {
		return
	}

	if info.Remaining >= 0 {
		c.Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
	}

	if info.ResetTime != nil {
		c.Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
		if !info.Allowed {
			retryAfter := int(time.Until(*info.ResetTime).Seconds())
			if retryAfter > 0 {
				c.Set("Retry-After", strconv.Itoa(retryAfter))
			}
		}
	}
}

func (svc *RateLimitService) handleRateLimitExceeded(c *fiber.Ctx, endpointType string, info *dto.RateLimitInfo) error {
	message := svc.getRateLimitMessage(endpointType)

	response := map[string]interface{}{
		"error":   "Rate limit exceeded",
		"message": message,
	}
	if info != nil && info.ResetTime != nil {
		response["reset_at"] = info.ResetTime.Unix()
	}

	return shared.ResponseJSON(c, fiber.StatusTooManyRequests, message, response)
}

func (svc *RateLimitService) getRateLimitMessage(endpointType string) string {
	messages := map[string]string{
		shared.EndpointGeneral: "Too many requests. Please slow down.",
		shared.EndpointAuth:    "Too many login attempts. Please try again later.",
		shared.EndpointReview:  "Too many reviews submitted. Please try again later.",
		shared.EndpointReply:   "Too many replies submitted. Please try again later.",
		shared.EndpointUpload:  "Too many app submissions. Please try again later.",
	}

	if message, exists := messages[endpointType]; exists {
		return message
	}

	return "Too many requests. Please try again later."
}

// ==================== UTILITY FUNCTIONS ====================

func GetClientIP(c *fiber.Ctx) string {
	// Check for forwarded IP first (for load balancers/proxies)
	forwarded := c.Get("X-Forwarded-For")
	if forwarded != "" {
		ips := strings.Split(forwarded, ",")
		if len(ips) > 0 {
			ip := strings.TrimSpace(ips[0])
			if ip != "" {
				return ip
			}
		}
	}

	realIP := c.Get("X-Real-IP")
	if realIP != "" {
		return realIP
	}

	cfIP := c.Get("CF-Connecting-IP")
	if cfIP != "" {
		return cfIP
	}

	return c.IP()
}

// ==================== ADMIN FUNCTIONS ====================

func (svc *RateLimitService) Stats() map[string]interface{} {
	svc.mutex.RLock()
	configs := make(map[string]*RateLimitConfig, len(svc.configs))
	for k, v := range svc.configs {
		configs[k] = v
	}
	svc.mutex.RUnlock()

	totalRecords, err := svc.sqlSvc.CountRateLimits()
	if err != nil {
		log.Printf("Failed to count rate limit records: %v", err)
	}

	return map[string]interface{}{
		"configs":       configs,
		"total_records": totalRecords,
		"timestamp":     svc.now(),
	}
}

func (svc *RateLimitService) ResetRateLimit(identifier, endpointType string) error {
	return svc.sqlSvc.DeleteRateLimit(identifier, endpointType)
}

// ==================== BACKGROUND JOBS ====================

func (svc *RateLimitService) CleanupOldRecords() error {
	return svc.sqlSvc.CleanupOldRateLimits(svc.now().Add(-rateLimitRetention))
}

func (svc *RateLimitService) startCleanupJob() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		if err := svc.CleanupOldRecords(); err != nil {
			log.Printf("Rate limit cleanup error: %v", err)
		}
	}
}
