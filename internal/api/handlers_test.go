package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjfulfillment/internal/common/auth"
	"sjfulfillment/internal/common/config"
	"sjfulfillment/internal/common/logger"
	"sjfulfillment/internal/models"
	"sjfulfillment/internal/notifications"
	"sjfulfillment/internal/stockmonitor"
	"sjfulfillment/internal/webhooks"
)

type testServer struct {
	server    *Server
	notifMock sqlmock.Sqlmock
	whMock    sqlmock.Sqlmock
	tokens    *auth.TokenManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, notifMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	whDB, whMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { whDB.Close() })

	log := logger.NewTestLogger(t)
	cfg := &config.Config{}
	cfg.App.Name = "sjfulfillment-test"
	cfg.Webhooks = config.WebhookConfig{
		Workers:         1,
		QueueSize:       16,
		DeliveryTimeout: 2,
		BreakerMaxFails: 3,
		BreakerCooldown: 60,
	}
	cfg.StockMonitor = config.StockMonitorConfig{Enabled: true, DefaultThreshold: 10}

	store := notifications.NewStore(db, log)
	webhookStore := webhooks.NewStore(whDB)
	dispatcher := webhooks.NewDispatcher(webhookStore, cfg.Webhooks, log)
	t.Cleanup(dispatcher.Close)
	monitor := stockmonitor.New(db, store, dispatcher, cfg.StockMonitor, log)
	tokens := auth.NewTokenManager("test-secret", "sjfulfillment", time.Hour)

	server := NewServer(Deps{
		Config:       cfg,
		Store:        store,
		WebhookStore: webhookStore,
		Dispatcher:   dispatcher,
		Monitor:      monitor,
		Tokens:       tokens,
		Logger:       log,
	})

	return &testServer{server: server, notifMock: notifMock, whMock: whMock, tokens: tokens}
}

func (ts *testServer) token(t *testing.T, userID, role, merchantID string) string {
	t.Helper()
	token, err := ts.tokens.Issue(userID, role, merchantID)
	require.NoError(t, err)
	return token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.server.App().Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]interface{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp.StatusCode, decoded
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestAuth_MissingToken(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, http.MethodGet, "/api/v1/notifications", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "missing authorization header", body["message"])
}

func TestAuth_BadToken(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, http.MethodGet, "/api/v1/notifications", "not-a-real-token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "invalid or expired token", body["message"])
}

func notificationListRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "title", "message", "type", "priority",
		"recipient_id", "recipient_role", "is_global", "metadata", "created_at", "is_read",
	})
}

func TestListNotifications(t *testing.T) {
	ts := newTestServer(t)
	now := time.Now().UTC()

	ts.notifMock.ExpectQuery("SELECT n.id, n.title").
		WithArgs("user-1", models.RoleStaff, 20, 0).
		WillReturnRows(notificationListRows().
			AddRow("n-1", "Order shipped", "Order 42 left the warehouse", models.NotificationTypeOrderUpdate,
				models.PriorityMedium, "user-1", "", false, []byte(`{}`), now, false).
			AddRow("n-2", "Maintenance", "Planned downtime tonight", models.NotificationTypeSystemAlert,
				models.PriorityLow, "", "", true, []byte(`{}`), now.Add(-time.Hour), true),
		)
	ts.notifMock.ExpectQuery("SELECT COUNT").
		WithArgs("user-1", models.RoleStaff).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	status, body := ts.do(t, http.MethodGet, "/api/v1/notifications", ts.token(t, "user-1", models.RoleStaff, ""), nil)
	require.Equal(t, http.StatusOK, status)

	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["unreadCount"])
	list := data["notifications"].([]interface{})
	require.Len(t, list, 2)

	first := list[0].(map[string]interface{})
	assert.Equal(t, "n-1", first["id"])
	assert.Equal(t, false, first["isRead"])
	assert.NoError(t, ts.notifMock.ExpectationsWereMet())
}

func TestMarkAllRead(t *testing.T) {
	ts := newTestServer(t)

	ts.notifMock.ExpectExec("INSERT INTO notification_reads").
		WithArgs("user-1", models.RoleStaff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	status, body := ts.do(t, http.MethodPut, "/api/v1/notifications/mark-all-read", ts.token(t, "user-1", models.RoleStaff, ""), nil)
	require.Equal(t, http.StatusOK, status)

	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(3), data["count"])
	assert.NoError(t, ts.notifMock.ExpectationsWereMet())
}

func TestCreateNotification_RequiresAdmin(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, http.MethodPost, "/api/v1/notifications",
		ts.token(t, "user-1", models.RoleStaff, ""),
		map[string]interface{}{"title": "x", "message": "y", "type": models.NotificationTypeSystemAlert, "isGlobal": true})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "insufficient permissions", body["message"])
}

func TestCreateNotification_TargetingValidation(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.token(t, "admin-1", models.RoleAdmin, "")

	tests := []struct {
		name    string
		body    map[string]interface{}
		message string
	}{
		{
			name: "role and global together",
			body: map[string]interface{}{
				"title": "x", "message": "y", "type": models.NotificationTypeSystemAlert,
				"recipientRole": models.RoleStaff, "isGlobal": true,
			},
			message: "recipientRole and isGlobal are mutually exclusive",
		},
		{
			name: "no targeting at all",
			body: map[string]interface{}{
				"title": "x", "message": "y", "type": models.NotificationTypeSystemAlert,
			},
			message: "Either recipientRole or isGlobal must be specified",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := ts.do(t, http.MethodPost, "/api/v1/notifications", admin, tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, tt.message, body["message"])
		})
	}
}

func TestCreateNotification_Global(t *testing.T) {
	ts := newTestServer(t)

	ts.notifMock.ExpectExec("INSERT INTO notifications").
		WithArgs(sqlmock.AnyArg(), "Maintenance window", "Planned downtime at midnight",
			models.NotificationTypeSystemAlert, models.PriorityMedium, "", "", true,
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	status, body := ts.do(t, http.MethodPost, "/api/v1/notifications",
		ts.token(t, "admin-1", models.RoleAdmin, ""),
		map[string]interface{}{
			"title":    "Maintenance window",
			"message":  "Planned downtime at midnight",
			"type":     models.NotificationTypeSystemAlert,
			"isGlobal": true,
		})
	require.Equal(t, http.StatusCreated, status)

	data := body["data"].(map[string]interface{})
	assert.Equal(t, true, data["isGlobal"])
	assert.NotEmpty(t, data["id"])
	assert.NoError(t, ts.notifMock.ExpectationsWereMet())
}

func TestWebhooks_RequireMerchantAdmin(t *testing.T) {
	ts := newTestServer(t)

	status, _ := ts.do(t, http.MethodGet, "/api/v1/webhooks", ts.token(t, "user-1", models.RoleStaff, "merchant-1"), nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestCreateWebhook_RequiresURL(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, http.MethodPost, "/api/v1/webhooks",
		ts.token(t, "user-1", models.RoleMerchantAdmin, "merchant-1"),
		map[string]interface{}{"name": "no url"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "url is required", body["message"])
}

func webhookRow(id, merchantID string, active bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "merchant_id", "name", "url", "active", "events", "created_at"}).
		AddRow(id, merchantID, "test hook", "http://127.0.0.1:1/hook", active, "{}", time.Now().UTC())
}

func TestTestWebhook(t *testing.T) {
	ts := newTestServer(t)
	merchant := ts.token(t, "user-1", models.RoleMerchantAdmin, "merchant-1")

	t.Run("unknown registration", func(t *testing.T) {
		ts.whMock.ExpectQuery("SELECT id, merchant_id, name, url").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		status, _ := ts.do(t, http.MethodPost, "/api/v1/webhooks/missing/test", merchant, nil)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("owned by another merchant", func(t *testing.T) {
		ts.whMock.ExpectQuery("SELECT id, merchant_id, name, url").
			WithArgs("wh-1").
			WillReturnRows(webhookRow("wh-1", "merchant-2", true))

		status, body := ts.do(t, http.MethodPost, "/api/v1/webhooks/wh-1/test", merchant, nil)
		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, "webhook belongs to another merchant", body["message"])
	})

	t.Run("inactive registration", func(t *testing.T) {
		ts.whMock.ExpectQuery("SELECT id, merchant_id, name, url").
			WithArgs("wh-1").
			WillReturnRows(webhookRow("wh-1", "merchant-1", false))

		status, body := ts.do(t, http.MethodPost, "/api/v1/webhooks/wh-1/test", merchant, nil)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "webhook registration is not active", body["message"])
	})

	t.Run("queues delivery", func(t *testing.T) {
		ts.whMock.ExpectQuery("SELECT id, merchant_id, name, url").
			WithArgs("wh-1").
			WillReturnRows(webhookRow("wh-1", "merchant-1", true))

		status, body := ts.do(t, http.MethodPost, "/api/v1/webhooks/wh-1/test", merchant, nil)
		require.Equal(t, http.StatusAccepted, status)

		data := body["data"].(map[string]interface{})
		assert.Equal(t, "wh-1", data["registrationId"])
		assert.Equal(t, TestWebhookEvent, data["event"])
	})
}

func TestAdmin_RequiresAdminRole(t *testing.T) {
	ts := newTestServer(t)

	status, _ := ts.do(t, http.MethodPost, "/api/v1/admin/stock-scan",
		ts.token(t, "user-1", models.RoleMerchantAdmin, "merchant-1"), nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestStockScan(t *testing.T) {
	ts := newTestServer(t)

	ts.notifMock.ExpectQuery("SELECT sku, merchant_id, warehouse_id").
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"sku", "merchant_id", "warehouse_id", "product_name", "quantity", "threshold"}))

	status, body := ts.do(t, http.MethodPost, "/api/v1/admin/stock-scan",
		ts.token(t, "admin-1", models.RoleAdmin, ""), nil)
	require.Equal(t, http.StatusOK, status)

	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(0), data["itemsLow"])
	assert.NoError(t, ts.notifMock.ExpectationsWereMet())
}

func TestWebhookDeliveries_AuditNotConfigured(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, http.MethodGet, "/api/v1/admin/webhook-deliveries",
		ts.token(t, "admin-1", models.RoleAdmin, ""), nil)
	assert.Equal(t, http.StatusInternalServerError, status)
	// 5xx responses never leak internal details.
	assert.Equal(t, "Internal server error", body["message"])
}
