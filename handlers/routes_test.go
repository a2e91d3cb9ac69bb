package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"level-publish-system/middleware"
	"level-publish-system/models"
	"level-publish-system/services"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestApp(t *testing.T) *fiber.App {
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

	levelService := services.NewLevelService(db, false)
	socialService := services.NewSocialService(db)
	profileService := services.NewProfileService(db, nil)

	app := fiber.New()
	app.Use(middleware.UserContextMiddleware())
	SetupLevelRoutes(app, levelService, socialService)
	SetupUserRoutes(app, profileService, levelService)
	return app
}

type call struct {
	method string
	path   string
	body   string
	user   string
}

func do(t *testing.T, app *fiber.App, c call) (int, any) {
	t.Helper()
	var reader io.Reader
	if c.body != "" {
		reader = strings.NewReader(c.body)
	}
	req := httptest.NewRequest(c.method, c.path, reader)
	if c.body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.user != "" {
		req.Header.Set("X-User-ID", c.user)
		req.Header.Set("X-User-Name", strings.TrimPrefix(c.user, "u-"))
	}
	resp, err := app.Test(req)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestLevelRoutes_Lifecycle(t *testing.T) {
	app := newTestApp(t)

	status, out := do(t, app, call{method: http.MethodPut, path: "/levels/7", body: `{"data":{"title":"Sky"}}`})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Contains(t, out.(map[string]any)["error"], "authentication required")

	status, out = do(t, app, call{method: http.MethodPut, path: "/levels/7", body: `{"data":{"title":"Sky"}}`, user: "u-alice"})
	require.Equal(t, fiber.StatusOK, status, out)
	level := out.(map[string]any)
	assert.Equal(t, "7", level["id"])
	assert.Equal(t, true, level["isPublished"])
	assert.Equal(t, "u-alice", level["authorId"])

	status, _ = do(t, app, call{method: http.MethodPut, path: "/levels/7", body: `{"data":{}}`, user: "u-bob"})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = do(t, app, call{method: http.MethodPut, path: "/levels/8", body: `not json`, user: "u-alice"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, out = do(t, app, call{method: http.MethodGet, path: "/levels"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, out, 1)

	status, out = do(t, app, call{method: http.MethodGet, path: "/users/u-alice/levels"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, out, 1)

	status, out = do(t, app, call{method: http.MethodPost, path: "/levels/7/unpublish"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, false, out.(map[string]any)["isPublished"])

	status, out = do(t, app, call{method: http.MethodGet, path: "/levels"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, out, 0)

	status, _ = do(t, app, call{method: http.MethodDelete, path: "/levels/7"})
	assert.Equal(t, fiber.StatusNoContent, status)

	status, _ = do(t, app, call{method: http.MethodGet, path: "/levels/7"})
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestLevelRoutes_LikesAndCounters(t *testing.T) {
	app := newTestApp(t)
	status, _ := do(t, app, call{method: http.MethodPut, path: "/levels/1", body: `{"data":{}}`, user: "u-alice"})
	require.Equal(t, fiber.StatusOK, status)

	status, _ = do(t, app, call{method: http.MethodPost, path: "/levels/1/like"})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, out := do(t, app, call{method: http.MethodPost, path: "/levels/1/like", user: "u-bob"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, map[string]any{"liked": true, "likes": float64(1)}, out)

	status, out = do(t, app, call{method: http.MethodGet, path: "/levels/1/likes", user: "u-bob"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, map[string]any{"liked": true, "likes": float64(1)}, out)

	status, out = do(t, app, call{method: http.MethodPost, path: "/levels/1/like", user: "u-bob"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, map[string]any{"liked": false, "likes": float64(0)}, out)

	status, out = do(t, app, call{method: http.MethodGet, path: "/levels/1/likes"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, map[string]any{"likes": float64(0)}, out)

	status, out = do(t, app, call{method: http.MethodPost, path: "/levels/1/attempts"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, map[string]any{"attempts": float64(1)}, out)

	status, out = do(t, app, call{method: http.MethodPost, path: "/levels/1/clears"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, map[string]any{"clears": float64(1)}, out)

	status, _ = do(t, app, call{method: http.MethodPost, path: "/levels/404/attempts"})
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestUserRoutes_Profiles(t *testing.T) {
	app := newTestApp(t)

	status, _ := do(t, app, call{method: http.MethodGet, path: "/me/profile"})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, out := do(t, app, call{method: http.MethodGet, path: "/users/u-alice/profile"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Nil(t, out)

	status, out = do(t, app, call{method: http.MethodPut, path: "/me/profile", body: `{"name":"Zoë","avatarUrl":"https://cdn/z.png"}`, user: "u-alice"})
	require.Equal(t, fiber.StatusOK, status, out)
	assert.Equal(t, "Zoë", out.(map[string]any)["name"])

	status, out = do(t, app, call{method: http.MethodGet, path: "/users/u-alice/profile"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, map[string]any{"id": "u-alice", "name": "Zoë", "avatarUrl": "https://cdn/z.png"}, out)

	status, out = do(t, app, call{method: http.MethodGet, path: "/users/search?q=zoe"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, out, 1)

	status, _ = do(t, app, call{method: http.MethodPost, path: "/me/avatar", user: "u-alice"})
	assert.Equal(t, fiber.StatusBadRequest, status)
}
