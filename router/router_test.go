package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"fintrack/config"
	"fintrack/database"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func setupTestRouter(t *testing.T) *gin.Engine {
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

	db, err := database.Init(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return SetupRouter(cfg, db)
}

func doRequest(r *gin.Engine, method, path, body, token string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = new(bytes.Buffer)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) apiResponse {
	t.Helper()
	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(resp.Data, data))
	}
	return resp
}

// register 注册用户并返回 token
func register(t *testing.T, r *gin.Engine, username string) string {
	t.Helper()
	w := doRequest(r, "POST", "/api/auth/register",
		fmt.Sprintf(`{"username":%q,"password":"password123","email":"%s@example.com","name":"Test"}`, username, username), "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var data struct {
		Token string `json:"token"`
	}
	decode(t, w, &data)
	require.NotEmpty(t, data.Token)
	return data.Token
}

func createID(t *testing.T, r *gin.Engine, path, body, token string) uint {
	t.Helper()
	w := doRequest(r, "POST", path, body, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var data struct {
		ID uint `json:"id"`
	}
	decode(t, w, &data)
	require.NotZero(t, data.ID)
	return data.ID
}

func TestHealth(t *testing.T) {
	r := setupTestRouter(t)
	w := doRequest(r, "GET", "/api/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestAccountEntryBalanceFlow(t *testing.T) {
	r := setupTestRouter(t)
	token := register(t, r, "alice")

	accountID := createID(t, r, "/api/accounts", `{"name":"Checking","type":"checking","currency":"USD"}`, token)
	createID(t, r, "/api/entries",
		fmt.Sprintf(`{"to_account_id":%d,"amount":20,"currency":"USD","category":"Salary","entry_type":"income","date":"2024-01-15"}`, accountID), token)

	w := doRequest(r, "GET", fmt.Sprintf("/api/accounts/%d/balance", accountID), "", token)
	require.Equal(t, http.StatusOK, w.Code)
	var balance struct {
		AccountID uint    `json:"account_id"`
		Balance   float64 `json:"balance"`
	}
	decode(t, w, &balance)
	assert.Equal(t, accountID, balance.AccountID)
	assert.Equal(t, 20.0, balance.Balance)

	// 截止日期早于交易日期
	w = doRequest(r, "GET", fmt.Sprintf("/api/accounts/%d/balance?end_date=2024-01-14", accountID), "", token)
	decode(t, w, &balance)
	assert.Equal(t, 0.0, balance.Balance)

	w = doRequest(r, "GET", "/api/accounts", "", token)
	var accounts []struct {
		Name    string  `json:"name"`
		Balance float64 `json:"balance"`
	}
	decode(t, w, &accounts)
	require.Len(t, accounts, 1)
	assert.Equal(t, 20.0, accounts[0].Balance)

	// 仍有交易引用时不能删除账户
	w = doRequest(r, "DELETE", fmt.Sprintf("/api/accounts/%d", accountID), "", token)
	assert.Equal(t, http.StatusConflict, w.Code)
	resp := decode(t, w, nil)
	assert.Equal(t, "Cannot delete account: 1 transactions exist. Delete transactions first.", resp.Message)

	w = doRequest(r, "GET", "/api/finance/last-updated", "", token)
	var meta struct {
		LastUpdated *string `json:"last_updated"`
	}
	decode(t, w, &meta)
	assert.NotNil(t, meta.LastUpdated)
}

func TestBalanceHistory_DaysValidation(t *testing.T) {
	r := setupTestRouter(t)
	token := register(t, r, "alice")
	accountID := createID(t, r, "/api/accounts", `{"name":"Cash"}`, token)

	w := doRequest(r, "GET", fmt.Sprintf("/api/accounts/%d/balance/history?days=7", accountID), "", token)
	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		Days    int               `json:"days"`
		History []json.RawMessage `json:"history"`
	}
	decode(t, w, &data)
	assert.Equal(t, 7, data.Days)
	assert.Len(t, data.History, 8)

	for _, days := range []string{"0", "366", "abc"} {
		w = doRequest(r, "GET", fmt.Sprintf("/api/accounts/%d/balance/history?days=%s", accountID, days), "", token)
		assert.Equal(t, http.StatusBadRequest, w.Code, days)
	}
}

func TestAuthFailures(t *testing.T) {
	r := setupTestRouter(t)

	w := doRequest(r, "GET", "/api/accounts", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Token is missing", decode(t, w, nil).Message)

	w = doRequest(r, "GET", "/api/accounts", "", "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Token is invalid", decode(t, w, nil).Message)

	register(t, r, "alice")
	w = doRequest(r, "POST", "/api/auth/login", `{"username":"alice","password":"wrong-password"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid username or password", decode(t, w, nil).Message)

	w = doRequest(r, "POST", "/api/auth/register", `{"username":"alice","password":"password123"}`, "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestOwnershipIsolation(t *testing.T) {
	r := setupTestRouter(t)
	alice := register(t, r, "alice")
	bob := register(t, r, "bob")

	accountID := createID(t, r, "/api/accounts", `{"name":"Alice only"}`, alice)
	entryID := createID(t, r, "/api/entries", `{"amount":5,"currency":"USD"}`, alice)

	w := doRequest(r, "GET", fmt.Sprintf("/api/accounts/%d", accountID), "", bob)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Account not found", decode(t, w, nil).Message)

	w = doRequest(r, "DELETE", fmt.Sprintf("/api/entries/%d", entryID), "", bob)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(r, "GET", "/api/entries", "", bob)
	var entries []json.RawMessage
	decode(t, w, &entries)
	assert.Empty(t, entries)
}

func TestEntryValidationAndUpdate(t *testing.T) {
	r := setupTestRouter(t)
	token := register(t, r, "alice")

	w := doRequest(r, "POST", "/api/entries", `{"currency":"USD"}`, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, "POST", "/api/entries", `{"amount":1,"currency":"USD","date":"15/01/2024"}`, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	entryID := createID(t, r, "/api/entries", `{"amount":12.5,"currency":"USD","category":"Food","timestamp":"2024-03-01T08:00:00Z"}`, token)

	w = doRequest(r, "PUT", fmt.Sprintf("/api/entries/%d", entryID), `{}`, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No valid fields to update", decode(t, w, nil).Message)

	w = doRequest(r, "PUT", fmt.Sprintf("/api/entries/%d", entryID), `{"category":"Groceries"}`, token)
	require.Equal(t, http.StatusOK, w.Code)
	var entry struct {
		Category string  `json:"category"`
		Amount   float64 `json:"amount"`
		Date     string  `json:"date"`
	}
	decode(t, w, &entry)
	assert.Equal(t, "Groceries", entry.Category)
	assert.Equal(t, 12.5, entry.Amount)
	assert.Equal(t, "2024-03-01", entry.Date)

	w = doRequest(r, "DELETE", fmt.Sprintf("/api/entries/%d", entryID), "", token)
	assert.Equal(t, http.StatusOK, w.Code)
	w = doRequest(r, "GET", fmt.Sprintf("/api/entries/%d", entryID), "", token)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Entry not found", decode(t, w, nil).Message)
}

func TestBulkCreateAndSearch(t *testing.T) {
	r := setupTestRouter(t)
	token := register(t, r, "alice")

	body := `{"entries":[
		{"amount":10,"currency":"USD","category":"Food","description":"lunch","date":"2024-01-10"},
		{"amount":250,"currency":"USD","category":"Rent","description":"january rent","date":"2024-01-01","entry_type":"bill"},
		{"amount":40,"currency":"EUR","category":"Fun Food","description":"dinner","date":"2024-02-05"}
	]}`
	w := doRequest(r, "POST", "/api/entries/bulk", body, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var bulk struct {
		IDs   []uint `json:"ids"`
		Count int    `json:"count"`
	}
	decode(t, w, &bulk)
	assert.Equal(t, 3, bulk.Count)

	type result struct {
		Category string  `json:"category"`
		Amount   float64 `json:"amount"`
	}

	var found []result
	decode(t, doRequest(r, "GET", "/api/entries/search?category=food", "", token), &found)
	assert.Len(t, found, 2)

	decode(t, doRequest(r, "GET", "/api/entries/search?amount_min=20&amount_max=100", "", token), &found)
	require.Len(t, found, 1)
	assert.Equal(t, 40.0, found[0].Amount)

	decode(t, doRequest(r, "GET", "/api/entries/search?start_date=2024-01-01&end_date=2024-01-31&limit=1", "", token), &found)
	require.Len(t, found, 1)
	assert.Equal(t, "Food", found[0].Category)

	w = doRequest(r, "GET", "/api/entries/search?start_date=January", "", token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var limits struct {
		StartDate *string `json:"start_date"`
		EndDate   *string `json:"end_date"`
	}
	decode(t, doRequest(r, "GET", "/api/entries/date-limits", "", token), &limits)
	require.NotNil(t, limits.StartDate)
	assert.Equal(t, "2024-01-01", *limits.StartDate)
	assert.Equal(t, "2024-02-05", *limits.EndDate)

	var spending struct {
		TotalSpending     float64 `json:"total_spending"`
		TotalTransactions int64   `json:"total_transactions"`
	}
	decode(t, doRequest(r, "GET", "/api/analytics/spending-by-category?start_date=2024-01-01&end_date=2024-01-31", "", token), &spending)
	assert.Equal(t, 260.0, spending.TotalSpending)
	assert.Equal(t, int64(2), spending.TotalTransactions)

	// 任一条无效则整批不写入
	w = doRequest(r, "POST", "/api/entries/bulk", `{"entries":[{"amount":1,"currency":"USD"},{"amount":2,"currency":"USD","date":"bad"}]}`, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var all []json.RawMessage
	decode(t, doRequest(r, "GET", "/api/entries", "", token), &all)
	assert.Len(t, all, 3)
}

func TestTagsAndEntryTags(t *testing.T) {
	r := setupTestRouter(t)
	token := register(t, r, "alice")

	tagID := createID(t, r, "/api/tags", `{"name":"travel"}`, token)
	w := doRequest(r, "POST", "/api/tags", `{"name":"travel"}`, token)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Tag 'travel' already exists for this user", decode(t, w, nil).Message)

	entryID := createID(t, r, "/api/entries", `{"amount":99,"currency":"USD"}`, token)
	tagPath := fmt.Sprintf("/api/entries/%d/tags", entryID)

	w = doRequest(r, "POST", tagPath, fmt.Sprintf(`{"tag_id":%d}`, tagID), token)
	assert.Equal(t, http.StatusCreated, w.Code)
	// 重复添加不报错
	w = doRequest(r, "POST", tagPath, fmt.Sprintf(`{"tag_id":%d}`, tagID), token)
	assert.Equal(t, http.StatusCreated, w.Code)

	var tags []struct {
		Name string `json:"name"`
	}
	decode(t, doRequest(r, "GET", tagPath, "", token), &tags)
	require.Len(t, tags, 1)
	assert.Equal(t, "travel", tags[0].Name)

	w = doRequest(r, "POST", tagPath, `{"tag_id":9999}`, token)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(r, "DELETE", fmt.Sprintf("%s/%d", tagPath, tagID), "", token)
	assert.Equal(t, http.StatusOK, w.Code)
	w = doRequest(r, "DELETE", fmt.Sprintf("%s/%d", tagPath, tagID), "", token)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Tag association not found", decode(t, w, nil).Message)
}

func TestInvestmentsAndBudgets(t *testing.T) {
	r := setupTestRouter(t)
	token := register(t, r, "alice")

	createID(t, r, "/api/investments", `{"asset_type":"stock","symbol":"AAPL","quantity":10,"value":1895.5,"currency":"USD"}`, token)
	var investments []struct {
		Symbol string `json:"symbol"`
	}
	decode(t, doRequest(r, "GET", "/api/investments", "", token), &investments)
	require.Len(t, investments, 1)
	assert.Equal(t, "AAPL", investments[0].Symbol)

	w := doRequest(r, "POST", "/api/budgets", `{"name":"Groceries"}`, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	createID(t, r, "/api/budgets", `{"name":"Groceries","category":"Food","amount":400,"period":"monthly"}`, token)
	var budgets []json.RawMessage
	decode(t, doRequest(r, "GET", "/api/budgets", "", token), &budgets)
	assert.Len(t, budgets, 1)
}

func TestSessionCookieFallback(t *testing.T) {
	r := setupTestRouter(t)
	register(t, r, "alice")

	w := doRequest(r, "POST", "/api/auth/login", `{"username":"alice","password":"password123"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	var session *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "fintrack_session" {
			session = c
		}
	}
	require.NotNil(t, session)

	// 只带 Cookie 也能访问受保护接口
	w = doRequest(r, "GET", "/api/users/profile", "", "", session)
	require.Equal(t, http.StatusOK, w.Code)
	var profile struct {
		Username string `json:"username"`
	}
	decode(t, w, &profile)
	assert.Equal(t, "alice", profile.Username)

	w = doRequest(r, "POST", "/api/auth/token", "", "", session)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, "GET", "/api/auth/session", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRotateKeysInvalidatesOldTokens(t *testing.T) {
	r := setupTestRouter(t)
	oldToken := register(t, r, "alice")

	w := doRequest(r, "POST", "/api/auth/keys/rotate", "", oldToken)
	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		Token string `json:"token"`
	}
	decode(t, w, &data)

	w = doRequest(r, "GET", "/api/accounts", "", oldToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = doRequest(r, "GET", "/api/accounts", "", data.Token)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, "POST", "/api/auth/verify", fmt.Sprintf(`{"token":%q}`, oldToken), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Token is invalid", decode(t, w, nil).Message)
}

func TestExportCSVAndXLSX(t *testing.T) {
	r := setupTestRouter(t)
	token := register(t, r, "alice")
	accountID := createID(t, r, "/api/accounts", `{"name":"Wallet"}`, token)
	createID(t, r, "/api/entries",
		fmt.Sprintf(`{"from_account_id":%d,"amount":1234.5,"currency":"USD","category":"Travel","description":"flight","date":"2024-05-01"}`, accountID), token)
	createID(t, r, "/api/entries", `{"amount":3,"currency":"XYZ","category":"Misc","date":"2024-05-02"}`, token)

	w := doRequest(r, "GET", "/api/entries/export/csv", "", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, "\xEF\xBB\xBF"))
	assert.Contains(t, body, "ID,Date,Time,Type,Category")
	assert.Contains(t, body, "$1,234.50")
	assert.Contains(t, body, "Wallet")
	assert.Contains(t, body, "3.00 XYZ")

	w = doRequest(r, "GET", "/api/entries/export/xlsx?category=travel", "", token)
	require.Equal(t, http.StatusOK, w.Code)
	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Entries")
	require.NoError(t, err)
	require.Len(t, rows, 3) // 表头、一条交易、合计
	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, "Travel", rows[1][4])
	assert.Equal(t, "Total", rows[2][0])
}
