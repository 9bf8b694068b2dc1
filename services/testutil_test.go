package services

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testClock is a hand-cranked clock for exercising windows and guards.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock(start time.Time) *testClock {
	return &testClock{t: start}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// newTestStore opens a per-test in-memory database and runs the full schema
// migration against it. The database name is derived from the test name so
// parallel tests never share state.
func newTestStore(t *testing.T) *PostgresService {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	store := (&PostgresService{}).WithDb(db)
	require.NoError(t, store.Migrate())

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return store
}

// newBrokenStore opens a database without running migrations, so every query
// fails. Used to exercise fail-open paths.
func newBrokenStore(t *testing.T) *PostgresService {
	t.Helper()

	dsn := fmt.Sprintf("file:%s_broken?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return (&PostgresService{}).WithDb(db)
}

func newTestRateLimitService(store *PostgresService, clock *testClock) *RateLimitService {
	svc := &RateLimitService{
		sqlSvc: store,
		now:    clock.Now,
	}
	svc.initDefaultConfigs()
	return svc
}

func newTestTrustService(store *PostgresService, clock *testClock) *TrustService {
	return &TrustService{
		sqlSvc: store,
		now:    clock.Now,
	}
}

// newTestReviewService wires the full submission pipeline against the test
// store. The redis client is left uninitialized so the resubmission guard
// falls back to the reviews table, which the clock controls.
func newTestReviewService(store *PostgresService, clock *testClock) *ReviewService {
	return &ReviewService{
		sqlSvc:       store,
		redisSvc:     &RedisService{},
		rateLimitSvc: newTestRateLimitService(store, clock),
		trustSvc:     newTestTrustService(store, clock),
		now:          clock.Now,
	}
}
