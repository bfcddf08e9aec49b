package webhooks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjfulfillment/internal/common/config"
	"sjfulfillment/internal/common/logger"
	"sjfulfillment/internal/models"
)

// resultCollector gathers delivery results across worker goroutines.
type resultCollector struct {
	mu      sync.Mutex
	results []models.DeliveryResult
	signal  chan struct{}
}

func newResultCollector() *resultCollector {
	return &resultCollector{signal: make(chan struct{}, 64)}
}

func (rc *resultCollector) collect(r models.DeliveryResult) {
	rc.mu.Lock()
	rc.results = append(rc.results, r)
	rc.mu.Unlock()
	rc.signal <- struct{}{}
}

func (rc *resultCollector) wait(t *testing.T, n int) []models.DeliveryResult {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for i := 0; i < n; i++ {
		select {
		case <-rc.signal:
		case <-deadline:
			t.Fatalf("timed out waiting for %d delivery results", n)
		}
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make([]models.DeliveryResult, len(rc.results))
	copy(out, rc.results)
	return out
}

func testWebhookConfig() config.WebhookConfig {
	return config.WebhookConfig{
		Workers:         2,
		QueueSize:       16,
		DeliveryTimeout: 2,
		BreakerMaxFails: 3,
		BreakerCooldown: 60,
	}
}

func newTestDispatcher(t *testing.T, mock func(sqlmock.Sqlmock), opts ...DispatcherOption) *Dispatcher {
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	if mock != nil {
		mock(sqlMock)
	}

	d := NewDispatcher(NewStore(db), testWebhookConfig(), logger.NewTestLogger(t), opts...)
	t.Cleanup(d.Close)
	return d
}

func TestDispatcher_Trigger_DeliversToActiveEndpoints(t *testing.T) {
	var mu sync.Mutex
	received := map[string]int{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		received[r.Header.Get("X-Webhook-Event")]++
		mu.Unlock()
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Webhook-Delivery"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	collector := newResultCollector()
	now := time.Now().UTC()
	d := newTestDispatcher(t, func(m sqlmock.Sqlmock) {
		// The active-only filter lives in the SQL; the store never hands the
		// dispatcher an inactive registration.
		m.ExpectQuery("SELECT id, merchant_id, name, url").
			WithArgs("merchant-1").
			WillReturnRows(registrationRows().
				AddRow("wh-1", "merchant-1", "active", server.URL, true, "{}", now),
			)
	}, WithResultFunc(collector.collect))

	enqueued := d.Trigger(context.Background(), "merchant-1", "order.updated", map[string]interface{}{"orderId": "o-1"})
	assert.Equal(t, 1, enqueued)

	results := collector.wait(t, 1)
	require.Len(t, results, 1)
	assert.Equal(t, models.DeliveryStatusDelivered, results[0].Status)
	assert.Equal(t, http.StatusOK, results[0].HTTPStatus)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, received["order.updated"])
}

func TestDispatcher_Trigger_FailureDoesNotReachCaller(t *testing.T) {
	okServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer okServer.Close()

	failServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failServer.Close()

	collector := newResultCollector()
	now := time.Now().UTC()
	d := newTestDispatcher(t, func(m sqlmock.Sqlmock) {
		m.ExpectQuery("SELECT id, merchant_id, name, url").
			WithArgs("merchant-1").
			WillReturnRows(registrationRows().
				AddRow("wh-ok", "merchant-1", "ok", okServer.URL, true, "{}", now).
				AddRow("wh-bad", "merchant-1", "bad", failServer.URL, true, "{}", now),
			)
	}, WithResultFunc(collector.collect))

	// Trigger never surfaces delivery errors to the caller.
	enqueued := d.Trigger(context.Background(), "merchant-1", "order.updated", nil)
	assert.Equal(t, 2, enqueued)

	results := collector.wait(t, 2)
	byID := map[string]models.DeliveryResult{}
	for _, r := range results {
		byID[r.RegistrationID] = r
	}

	assert.Equal(t, models.DeliveryStatusDelivered, byID["wh-ok"].Status)
	assert.Equal(t, models.DeliveryStatusFailed, byID["wh-bad"].Status)
	assert.Equal(t, http.StatusBadGateway, byID["wh-bad"].HTTPStatus)
}

func TestDispatcher_Trigger_UnreachableEndpoint(t *testing.T) {
	collector := newResultCollector()
	now := time.Now().UTC()
	d := newTestDispatcher(t, func(m sqlmock.Sqlmock) {
		m.ExpectQuery("SELECT id, merchant_id, name, url").
			WithArgs("merchant-1").
			WillReturnRows(registrationRows().
				// Nothing listens on this port.
				AddRow("wh-1", "merchant-1", "dead", "http://127.0.0.1:1/hook", true, "{}", now),
			)
	}, WithResultFunc(collector.collect))

	d.Trigger(context.Background(), "merchant-1", "order.updated", nil)

	results := collector.wait(t, 1)
	require.Len(t, results, 1)
	assert.NotEqual(t, models.DeliveryStatusDelivered, results[0].Status)
	assert.NotEmpty(t, results[0].Error)
}

func TestDispatcher_Trigger_LookupFailureReturnsZero(t *testing.T) {
	d := newTestDispatcher(t, func(m sqlmock.Sqlmock) {
		m.ExpectQuery("SELECT id, merchant_id, name, url").
			WithArgs("merchant-1").
			WillReturnError(assert.AnError)
	})

	// A broken registration lookup is logged, not propagated.
	enqueued := d.Trigger(context.Background(), "merchant-1", "order.updated", nil)
	assert.Equal(t, 0, enqueued)
}

func TestDispatcher_BreakerShortCircuitsFailingEndpoint(t *testing.T) {
	failServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failServer.Close()

	collector := newResultCollector()
	now := time.Now().UTC()
	reg := &models.WebhookRegistration{
		ID: "wh-flaky", MerchantID: "merchant-1", URL: failServer.URL,
		Active: true, CreatedAt: now,
	}

	d := newTestDispatcher(t, nil, WithResultFunc(collector.collect))

	// BreakerMaxFails consecutive failures trip the breaker; the next
	// attempt is skipped without touching the endpoint.
	attempts := testWebhookConfig().BreakerMaxFails + 1
	for i := 0; i < attempts; i++ {
		require.True(t, d.TriggerOne(reg, "order.updated", nil))
		collector.wait(t, 1)
	}

	collector.mu.Lock()
	last := collector.results[len(collector.results)-1]
	collector.mu.Unlock()
	assert.Equal(t, models.DeliveryStatusSkipped, last.Status)
}

func TestDispatcher_TriggerOne(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	collector := newResultCollector()
	d := newTestDispatcher(t, nil, WithResultFunc(collector.collect))

	reg := &models.WebhookRegistration{
		ID: "wh-1", MerchantID: "merchant-1", URL: server.URL, Active: true,
	}
	require.True(t, d.TriggerOne(reg, "test.webhook", map[string]interface{}{"test": true}))

	results := collector.wait(t, 1)
	assert.Equal(t, models.DeliveryStatusDelivered, results[0].Status)
	assert.Equal(t, "test.webhook", results[0].Event)
}
