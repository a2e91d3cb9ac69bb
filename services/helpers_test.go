package services

import (
	"path/filepath"
	"testing"
	"time"

	"level-publish-system/auth"
	"level-publish-system/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "levels.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.Level{}, &models.Like{}, &models.Profile{}))
	return db
}

// testClock ticks one second per call so orderings are deterministic.
type testClock struct {
	t time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func alice() *auth.Identity { return &auth.Identity{UserID: "u-alice", Name: "Alice"} }
func bob() *auth.Identity   { return &auth.Identity{UserID: "u-bob", Name: "Bob"} }

func newTestLevelService(t *testing.T) (*LevelService, *testClock) {
	clock := newTestClock()
	svc := NewLevelService(newTestDB(t), false)
	svc.Now = clock.Now
	return svc, clock
}

func countLikes(t *testing.T, db *gorm.DB, levelID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.Like{}).Where("level_id = ?", levelID).Count(&n).Error)
	return n
}
