package services

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/appforge-labs/forge_api/model"

	"github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// PostgresService is the persistence adapter: every collection the trust
// pipeline touches (applications, users, reviews, rate-limit windows,
// suspicious scores) goes through here. It holds no trust logic itself.
type PostgresService struct {
	context.DefaultService
	db *gorm.DB

	database string
}

const POSTGRES_SVC = "postgres_svc"

func (ds PostgresService) Id() string {
	return POSTGRES_SVC
}

func (ds PostgresService) Db() *gorm.DB {
	return ds.db
}

func (ds *PostgresService) Configure(ctx *context.Context) error {
	ds.database = os.Getenv("DATABASE_URL")
	if ds.database == "" {
		// Fallback to individual environment variables
		host := os.Getenv("DB_HOST")
		if host == "" {
			host = "localhost"
		}
		port := os.Getenv("DB_PORT")
		if port == "" {
			port = "5432"
		}
		user := os.Getenv("DB_USER")
		if user == "" {
			user = "postgres"
		}
		password := os.Getenv("DB_PASSWORD")
		if password == "" {
			password = "postgres"
		}
		dbname := os.Getenv("DB_NAME")
		if dbname == "" {
			dbname = "forge_api"
		}
		sslmode := os.Getenv("DB_SSLMODE")
		if sslmode == "" {
			sslmode = "disable"
		}
		timezone := os.Getenv("DB_TIMEZONE")
		if timezone == "" {
			timezone = "UTC"
		}

		ds.database = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
			host, user, password, dbname, port, sslmode, timezone)
	}

	return ds.DefaultService.Configure(ctx)
}

func (ds *PostgresService) Start() (err error) {
	// Retry connection with exponential backoff
	maxRetries := 10
	retryDelay := time.Second

	for attempt := 1; attempt <= maxRetries; attempt++ {
		log.Printf("Attempting to connect to database (attempt %d/%d)...", attempt, maxRetries)

		ds.db, err = gorm.Open(postgres.Open(ds.database), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Error),
		})

		if err == nil {
			sqlDB, dbErr := ds.db.DB()
			if dbErr == nil {
				pingErr := sqlDB.Ping()
				if pingErr == nil {
					log.Println("Successfully connected to database")
					break
				}
				err = pingErr
			} else {
				err = dbErr
			}
		}

		if attempt == maxRetries {
			log.Printf("Failed to connect to database after %d attempts: %v", maxRetries, err)
			return err
		}

		log.Printf("Database connection failed: %v. Retrying in %v...", err, retryDelay)
		time.Sleep(retryDelay)

		retryDelay *= 2
		if retryDelay > 10*time.Second {
			retryDelay = 10 * time.Second
		}
	}

	if err := ds.Migrate(); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		return err
	}

	log.Println("Database connected and migrated successfully")
	return nil
}

// Migrate runs AutoMigrate for every collection. Split out so tests can run
// the same schema against an in-memory database.
func (ds *PostgresService) Migrate() error {
	return ds.db.AutoMigrate(
		&model.User{},
		&model.Application{},
		&model.Review{},
		&model.Reply{},
		&model.RateLimit{},
		&model.SuspiciousScore{},
	)
}

// WithDb swaps the underlying handle. Used by tests to point the adapter at
// an in-memory database.
func (ds *PostgresService) WithDb(db *gorm.DB) *PostgresService {
	ds.db = db
	return ds
}

func (ds *PostgresService) Shutdown() {
	sqlDB, err := ds.db.DB()
	if err == nil {
		sqlDB.Close()
	}
}

func (ds *PostgresService) HandleError(err error) error {
	if err == nil {
		return nil
	}

	var statusCode int
	var errorType string

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		statusCode = http.StatusNotFound
		errorType = "NOT_FOUND"
	case errors.Is(err, gorm.ErrDuplicatedKey):
		statusCode = http.StatusConflict
		errorType = "CONFLICT"
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		statusCode = http.StatusBadRequest
		errorType = "FOREIGN_KEY_VIOLATION"
	default:
		if strings.Contains(err.Error(), "duplicate key value violates unique constraint") ||
			strings.Contains(err.Error(), "UNIQUE constraint failed") {
			statusCode = http.StatusConflict
			errorType = "UNIQUE_CONSTRAINT"
		} else if strings.Contains(err.Error(), "connection refused") {
			statusCode = http.StatusServiceUnavailable
			errorType = "DATABASE_CONNECTION_ERROR"
		} else {
			statusCode = http.StatusInternalServerError
			errorType = "INTERNAL_ERROR"
		}
	}

	logEntry := log.WithFields(log.Fields{
		"status_code": statusCode,
		"error_type":  errorType,
		"error":       err.Error(),
	})

	if statusCode >= 500 {
		logEntry.Error("Database error occurred")
	} else {
		logEntry.Warn("Database operation failed")
	}

	return fmt.Errorf("%s: %w", errorType, err)
}

// ==================== USER METHODS ====================

func (ds *PostgresService) GetUser(userID string) (*model.User, error) {
	var user model.User
	if err := ds.db.Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, ds.HandleError(err)
	}
	return &user, nil
}

// ==================== APPLICATION METHODS ====================

func (ds *PostgresService) CreateApp(app *model.Application) (*model.Application, error) {
	if app.ID == "" {
		app.ID = uuid.New().String()
	}
	app.CreatedAt = time.Now()
	app.UpdatedAt = time.Now()

	if err := ds.db.Create(app).Error; err != nil {
		return nil, ds.HandleError(err)
	}
	return app, nil
}

func (ds *PostgresService) GetApp(id string) (*model.Application, error) {
	var app model.Application
	if err := ds.db.Where("id = ?", id).First(&app).Error; err != nil {
		return nil, ds.HandleError(err)
	}
	return &app, nil
}

func (ds *PostgresService) ListApps(status, category string, limit int) ([]model.Application, error) {
	query := ds.db.Model(&model.Application{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if category != "" {
		query = query.Where("category = ?", category)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var apps []model.Application
	if err := query.Order("rating DESC, reviews_count DESC").Find(&apps).Error; err != nil {
		return nil, ds.HandleError(err)
	}
	return apps, nil
}

func (ds *PostgresService) UpdateAppStatus(id, status string) error {
	res := ds.db.Model(&model.Application{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()})
	if res.Error != nil {
		return ds.HandleError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ds.HandleError(gorm.ErrRecordNotFound)
	}
	return nil
}

// UpdateAppStats writes the denormalized rating aggregate. Last write wins
// under concurrent recomputes; the reviews table stays the source of truth.
func (ds *PostgresService) UpdateAppStats(id string, rating float64, reviewsCount int) error {
	return ds.HandleError(ds.db.Model(&model.Application{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"rating":        rating,
			"reviews_count": reviewsCount,
			"updated_at":    time.Now(),
		}).Error)
}

// ==================== REVIEW METHODS ====================

func (ds *PostgresService) CreateReview(review *model.Review) (*model.Review, error) {
	if review.ID == "" {
		review.ID = uuid.New().String()
	}
	if err := ds.db.Create(review).Error; err != nil {
		return nil, ds.HandleError(err)
	}
	return review, nil
}

func (ds *PostgresService) GetReview(id string) (*model.Review, error) {
	var review model.Review
	err := ds.db.Preload("Replies", func(db *gorm.DB) *gorm.DB {
		return db.Order("replies.created_at ASC")
	}).Where("id = ?", id).First(&review).Error
	if err != nil {
		return nil, ds.HandleError(err)
	}
	return &review, nil
}

// GetAppReviews returns reviews for the storefront; spam reviews are hidden
// unless includeSpam is set (admin view).
func (ds *PostgresService) GetAppReviews(appID string, includeSpam bool) ([]model.Review, error) {
	query := ds.db.Preload("Replies", func(db *gorm.DB) *gorm.DB {
		return db.Order("replies.created_at ASC")
	}).Where("app_id = ?", appID)
	if !includeSpam {
		query = query.Where("moderation_status <> ?", "spam")
	}

	var reviews []model.Review
	if err := query.Order("created_at DESC").Find(&reviews).Error; err != nil {
		return nil, ds.HandleError(err)
	}
	return reviews, nil
}

func (ds *PostgresService) DeleteReview(id string) error {
	if err := ds.db.Where("review_id = ?", id).Delete(&model.Reply{}).Error; err != nil {
		return ds.HandleError(err)
	}
	res := ds.db.Where("id = ?", id).Delete(&model.Review{})
	if res.Error != nil {
		return ds.HandleError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ds.HandleError(gorm.ErrRecordNotFound)
	}
	return nil
}

// AppReviewRatings scans every rating for the app. The aggregate recompute is
// deliberately a full scan, not incremental.
func (ds *PostgresService) AppReviewRatings(appID string) ([]int, error) {
	var ratings []int
	err := ds.db.Model(&model.Review{}).Where("app_id = ?", appID).Pluck("rating", &ratings).Error
	if err != nil {
		return nil, ds.HandleError(err)
	}
	return ratings, nil
}

// HasRecentReviewByName backs the 60-second resubmission guard when the redis
// guard is unavailable.
func (ds *PostgresService) HasRecentReviewByName(appID, userName string, since time.Time) (bool, error) {
	var count int64
	err := ds.db.Model(&model.Review{}).
		Where("app_id = ? AND user_name = ? AND created_at > ?", appID, userName, since).
		Count(&count).Error
	if err != nil {
		return false, ds.HandleError(err)
	}
	return count > 0, nil
}

// HasDuplicateReview reports whether the same app received a byte-identical
// message from the same IP or fingerprint since the cutoff. Exact-text match
// only; paraphrases are not caught.
func (ds *PostgresService) HasDuplicateReview(appID, ip, fingerprint, message string, since time.Time) (bool, error) {
	var count int64
	err := ds.db.Model(&model.Review{}).
		Where("app_id = ? AND created_at > ? AND message = ?", appID, since, message).
		Where("ip_address = ? OR fingerprint = ?", ip, fingerprint).
		Count(&count).Error
	if err != nil {
		return false, ds.HandleError(err)
	}
	return count > 0, nil
}

// HasSpamReviewsByUser checks lifetime spam flags for a known user.
func (ds *PostgresService) HasSpamReviewsByUser(userID string) (bool, error) {
	var count int64
	err := ds.db.Model(&model.Review{}).
		Where("user_id = ? AND is_spam = ?", userID, true).
		Count(&count).Error
	if err != nil {
		return false, ds.HandleError(err)
	}
	return count > 0, nil
}

// HasSpamReviewsByIP is the guest fallback; guests have no identity to check.
func (ds *PostgresService) HasSpamReviewsByIP(ip string) (bool, error) {
	var count int64
	err := ds.db.Model(&model.Review{}).
		Where("ip_address = ? AND is_spam = ?", ip, true).
		Count(&count).Error
	if err != nil {
		return false, ds.HandleError(err)
	}
	return count > 0, nil
}

// ==================== REPLY METHODS ====================

func (ds *PostgresService) CreateReply(reply *model.Reply) (*model.Reply, error) {
	if reply.ID == "" {
		reply.ID = uuid.New().String()
	}
	reply.CreatedAt = time.Now()

	if err := ds.db.Create(reply).Error; err != nil {
		return nil, ds.HandleError(err)
	}
	return reply, nil
}

// ==================== RATE LIMIT METHODS ====================

func (ds *PostgresService) GetRateLimit(identifier, endpointType string) (*model.RateLimit, error) {
	var rateLimit model.RateLimit
	err := ds.db.Where("identifier = ? AND endpoint_type = ?", identifier, endpointType).
		First(&rateLimit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, ds.HandleError(err)
	}
	return &rateLimit, nil
}

// CreateRateLimitWindow inserts a fresh window with count=1. Returns false
// without error when a concurrent request created the row first.
func (ds *PostgresService) CreateRateLimitWindow(identifier, endpointType string, now time.Time) (bool, error) {
	rateLimit := model.RateLimit{
		ID:           uuid.New().String(),
		Identifier:   identifier,
		EndpointType: endpointType,
		RequestCount: 1,
		WindowStart:  now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	res := ds.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "identifier"}, {Name: "endpoint_type"}},
		DoNothing: true,
	}).Create(&rateLimit)
	if res.Error != nil {
		return false, ds.HandleError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// IncrementRateLimit bumps the counter in place iff the window is still live
// and under the cap. A single conditional UPDATE keeps concurrent increments
// for the same key linearizable; the window invariant depends on this.
func (ds *PostgresService) IncrementRateLimit(identifier, endpointType string, windowNotBefore time.Time, maxRequests int, now time.Time) (bool, error) {
	res := ds.db.Model(&model.RateLimit{}).
		Where("identifier = ? AND endpoint_type = ? AND window_start > ? AND request_count < ?",
			identifier, endpointType, windowNotBefore, maxRequests).
		Updates(map[string]interface{}{
			"request_count": gorm.Expr("request_count + 1"),
			"updated_at":    now,
		})
	if res.Error != nil {
		return false, ds.HandleError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ResetRateLimitWindow starts a new window iff the current one has expired.
func (ds *PostgresService) ResetRateLimitWindow(identifier, endpointType string, expiredBefore, now time.Time) (bool, error) {
	res := ds.db.Model(&model.RateLimit{}).
		Where("identifier = ? AND endpoint_type = ? AND window_start <= ?",
			identifier, endpointType, expiredBefore).
		Updates(map[string]interface{}{
			"request_count": 1,
			"window_start":  now,
			"updated_at":    now,
		})
	if res.Error != nil {
		return false, ds.HandleError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (ds *PostgresService) DeleteRateLimit(identifier, endpointType string) error {
	return ds.HandleError(ds.db.Where("identifier = ? AND endpoint_type = ?", identifier, endpointType).
		Delete(&model.RateLimit{}).Error)
}

// CleanupOldRateLimits drops windows idle past the cutoff. Advisory
// housekeeping: stale windows also reset naturally on next access.
func (ds *PostgresService) CleanupOldRateLimits(idleSince time.Time) error {
	return ds.HandleError(ds.db.Where("updated_at < ?", idleSince).
		Delete(&model.RateLimit{}).Error)
}

func (ds *PostgresService) CountRateLimits() (int64, error) {
	var count int64
	err := ds.db.Model(&model.RateLimit{}).Count(&count).Error
	return count, ds.HandleError(err)
}

// ==================== SUSPICIOUS SCORE METHODS ====================

// UpsertSuspiciousScore atomically creates the (ip, fingerprint) record with
// the delta or adds the delta to the existing score, refreshing last_seen.
func (ds *PostgresService) UpsertSuspiciousScore(ip, fingerprint string, delta int, now time.Time) error {
	record := model.SuspiciousScore{
		ID:              uuid.New().String(),
		IPAddress:       ip,
		Fingerprint:     fingerprint,
		SuspiciousScore: delta,
		LastSeen:        now,
		CreatedAt:       now,
	}

	err := ds.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "ip_address"}, {Name: "fingerprint"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"suspicious_score": gorm.Expr("suspicious_scores.suspicious_score + ?", delta),
			"last_seen":        now,
		}),
	}).Create(&record).Error

	return ds.HandleError(err)
}

// GetSuspiciousScore returns 0 for never-seen pairs.
func (ds *PostgresService) GetSuspiciousScore(ip, fingerprint string) (int, error) {
	var record model.SuspiciousScore
	err := ds.db.Where("ip_address = ? AND fingerprint = ?", ip, fingerprint).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, ds.HandleError(err)
	}
	return record.SuspiciousScore, nil
}
