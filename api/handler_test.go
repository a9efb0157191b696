package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"fintrack/config"
	"fintrack/database"
	"fintrack/middleware"
	"fintrack/models"
	"fintrack/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Server: config.ServerConfig{Port: ":8080", Mode: gin.TestMode},
		Database: config.DatabaseConfig{
			Driver:   "sqlite",
			UserPath: filepath.Join(dir, "user.db"),
			DataPath: filepath.Join(dir, "data.db"),
		},
		Session: config.SessionConfig{Secret: "test-secret"},
		CORS:    config.CORSConfig{AllowOrigins: []string{"http://localhost:3000"}},
	}
	cfg.ApplyDefaults()
	return cfg
}

func setupTestDB(t *testing.T, cfg *config.Config) *database.DB {
	t.Helper()
	db, err := database.Init(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB, mock
}

func setUsernameMiddleware(username string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUsernameKey, username)
		c.Next()
	}
}

func mustCreateUser(t *testing.T, users *repository.UserRepository, username string) *models.User {
	t.Helper()
	u, err := users.Create(context.Background(), repository.NewUser{
		Username: username,
		Password: "password123",
		Email:    username + "@example.com",
		Name:     "Test User",
	})
	require.NoError(t, err)
	return u
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func TestRespondError_Mapping(t *testing.T) {
	cases := []struct {
		err     error
		code    int
		message string
	}{
		{&repository.AccountInUseError{Transactions: 2}, 409, "Cannot delete account: 2 transactions exist. Delete transactions first."},
		{errors.New("boom"), 500, "Failed to do it"},
		{repository.ErrNoFieldsToUpdate, 400, "No valid fields to update"},
	}
	for _, tc := range cases {
		router := gin.New()
		router.GET("/x", func(c *gin.Context) { respondError(c, tc.err, "Failed to do it") })
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/x", nil))

		assert.Equal(t, tc.code, w.Code)
		assert.Equal(t, tc.message, decodeResponse(t, w)["message"])
	}
}

func TestAccountHandler_List_DatabaseError(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	mock.ExpectQuery("SELECT .* FROM `accounts`").
		WithArgs("alice").
		WillReturnError(errors.New("connection refused"))

	router := gin.New()
	router.Use(setUsernameMiddleware("alice"))
	router.GET("/accounts", NewAccountHandler(testConfig(t), repository.NewFinanceRepository(gormDB)).List)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/accounts", nil))

	assert.Equal(t, 500, w.Code)
	resp := decodeResponse(t, w)
	// 内部错误详情不返回给客户端
	assert.Equal(t, "Failed to fetch accounts", resp["message"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountHandler_Create_MissingName(t *testing.T) {
	gormDB, mock := setupMockDB(t)

	router := gin.New()
	router.Use(setUsernameMiddleware("alice"))
	router.POST("/accounts", NewAccountHandler(testConfig(t), repository.NewFinanceRepository(gormDB)).Create)

	req := httptest.NewRequest("POST", "/accounts", bytes.NewBufferString(`{"type":"checking"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 400, w.Code)
	assert.Equal(t, "Account name is required", decodeResponse(t, w)["message"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestParseID(t *testing.T) {
	router := gin.New()
	router.GET("/items/:id", func(c *gin.Context) {
		if id, ok := parseID(c, "id"); ok {
			Success(c, id)
		}
	})

	for path, code := range map[string]int{"/items/7": 200, "/items/0": 400, "/items/-1": 400, "/items/abc": 400} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
		assert.Equal(t, code, w.Code, path)
	}
}

func TestParseFlexibleTime(t *testing.T) {
	d, dateOnly, err := parseFlexibleTime("2024-01-15")
	require.NoError(t, err)
	assert.True(t, dateOnly)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), d)

	ts, dateOnly, err := parseFlexibleTime("2024-01-15T12:30:00+02:00")
	require.NoError(t, err)
	assert.False(t, dateOnly)
	assert.Equal(t, time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), ts)

	ts, _, err = parseFlexibleTime("2024-01-15 08:05:09")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 8, 5, 9, 0, time.UTC), ts)

	_, _, err = parseFlexibleTime("15/01/2024")
	assert.Error(t, err)

	end, err := parseEndTime("2024-01-31")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC), end)
}
