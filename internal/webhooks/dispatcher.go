package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	commonhttp "sjfulfillment/internal/common/http"
	"sjfulfillment/internal/common/config"
	"sjfulfillment/internal/common/logger"
	"sjfulfillment/internal/common/metrics"
	"sjfulfillment/internal/models"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
)

// ResultFunc observes every delivery attempt. It is the extension point
// where a retry queue would hook in; the default sink only logs and audits.
type ResultFunc func(models.DeliveryResult)

type deliveryJob struct {
	reg   models.WebhookRegistration
	event models.WebhookEvent
}

// Dispatcher delivers event payloads to merchant webhook endpoints through
// an in-process queue and worker pool. Triggering is a handoff: the caller
// enqueues and returns; delivery outcome never reaches the caller. One slow
// or failing endpoint cannot stall another because every attempt runs under
// its own timeout and repeatedly failing endpoints are short-circuited.
type Dispatcher struct {
	store    *Store
	client   *commonhttp.Client
	cfg      config.WebhookConfig
	logger   logger.Logger
	onResult ResultFunc

	jobs chan deliveryJob
	wg   sync.WaitGroup

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// DispatcherOption configures optional dispatcher collaborators.
type DispatcherOption func(*Dispatcher)

// WithResultFunc registers a delivery-result observer.
func WithResultFunc(fn ResultFunc) DispatcherOption {
	return func(d *Dispatcher) { d.onResult = fn }
}

func NewDispatcher(store *Store, cfg config.WebhookConfig, log logger.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		store:    store,
		client:   commonhttp.NewClient(time.Duration(cfg.DeliveryTimeout) * time.Second),
		cfg:      cfg,
		logger:   log.WithFields(map[string]interface{}{"component": "webhook-dispatcher"}),
		jobs:     make(chan deliveryJob, cfg.QueueSize),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
	for _, opt := range opts {
		opt(d)
	}

	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}

	return d
}

// Trigger resolves the merchant's active registrations for the event and
// enqueues one delivery per endpoint. It returns the number of deliveries
// enqueued. Lookup and delivery failures are logged, never returned, so the
// triggering business action always succeeds regardless of webhook outcome.
func (d *Dispatcher) Trigger(ctx context.Context, merchantID, event string, payload map[string]interface{}) int {
	regs, err := d.store.ActiveForEvent(ctx, merchantID, event)
	if err != nil {
		d.logger.Error("webhook lookup failed", map[string]interface{}{
			"merchantId": merchantID,
			"event":      event,
			"error":      err.Error(),
		})
		return 0
	}
	if len(regs) == 0 {
		return 0
	}

	ev := models.WebhookEvent{
		ID:         uuid.New().String(),
		Event:      event,
		MerchantID: merchantID,
		Timestamp:  time.Now().UTC(),
		Data:       payload,
	}

	enqueued := 0
	for _, reg := range regs {
		select {
		case d.jobs <- deliveryJob{reg: *reg, event: ev}:
			enqueued++
			metrics.WebhookQueueDepth.Inc()
		default:
			d.logger.Warn("webhook queue full, dropping delivery", map[string]interface{}{
				"registrationId": reg.ID,
				"event":          event,
			})
			metrics.WebhookDeliveries.WithLabelValues(event, models.DeliveryStatusSkipped).Inc()
		}
	}

	return enqueued
}

// TriggerOne enqueues a delivery for a single registration, bypassing event
// subscription filtering. The webhook test endpoint uses it to exercise one
// endpoint in isolation. Returns false if the queue is full.
func (d *Dispatcher) TriggerOne(reg *models.WebhookRegistration, event string, payload map[string]interface{}) bool {
	ev := models.WebhookEvent{
		ID:         uuid.New().String(),
		Event:      event,
		MerchantID: reg.MerchantID,
		Timestamp:  time.Now().UTC(),
		Data:       payload,
	}

	select {
	case d.jobs <- deliveryJob{reg: *reg, event: ev}:
		metrics.WebhookQueueDepth.Inc()
		return true
	default:
		d.logger.Warn("webhook queue full, dropping delivery", map[string]interface{}{
			"registrationId": reg.ID,
			"event":          event,
		})
		metrics.WebhookDeliveries.WithLabelValues(event, models.DeliveryStatusSkipped).Inc()
		return false
	}
}

// Close drains the queue and stops the workers. Trigger must not be called
// after Close.
func (d *Dispatcher) Close() {
	close(d.jobs)
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for job := range d.jobs {
		metrics.WebhookQueueDepth.Dec()
		result := d.deliver(job)

		metrics.WebhookDeliveries.WithLabelValues(result.Event, result.Status).Inc()
		metrics.WebhookDeliveryDuration.WithLabelValues(result.Event).
			Observe(float64(result.DurationMS) / 1000)

		if result.Status == models.DeliveryStatusDelivered {
			d.logger.Debug("webhook delivered", map[string]interface{}{
				"registrationId": result.RegistrationID,
				"event":          result.Event,
				"httpStatus":     result.HTTPStatus,
			})
		} else {
			d.logger.Warn("webhook delivery failed", map[string]interface{}{
				"registrationId": result.RegistrationID,
				"event":          result.Event,
				"status":         result.Status,
				"error":          result.Error,
			})
		}

		if d.onResult != nil {
			d.onResult(result)
		}
	}
}

// deliver performs one POST to the registration URL under the per-attempt
// timeout and the registration's circuit breaker.
func (d *Dispatcher) deliver(job deliveryJob) models.DeliveryResult {
	result := models.DeliveryResult{
		RegistrationID: job.reg.ID,
		MerchantID:     job.reg.MerchantID,
		URL:            job.reg.URL,
		Event:          job.event.Event,
		EventID:        job.event.ID,
		AttemptedAt:    time.Now().UTC(),
	}

	start := time.Now()
	status, err := d.breakerFor(job.reg.ID).Execute(func() (interface{}, error) {
		return d.post(job.reg.URL, &job.event)
	})
	result.DurationMS = time.Since(start).Milliseconds()

	if err != nil {
		switch {
		case err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests:
			result.Status = models.DeliveryStatusSkipped
		case isTimeout(err):
			result.Status = models.DeliveryStatusTimeout
		default:
			result.Status = models.DeliveryStatusFailed
		}
		result.Error = err.Error()
		if code, ok := status.(int); ok {
			result.HTTPStatus = code
		}
		return result
	}

	result.Status = models.DeliveryStatusDelivered
	result.HTTPStatus = status.(int)
	return result
}

// post sends the event envelope and returns the response status code. Any
// non-2xx response is an error so the breaker counts it as a failure.
func (d *Dispatcher) post(url string, event *models.WebhookEvent) (int, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(d.cfg.DeliveryTimeout)*time.Second)
	defer cancel()

	resp, err := d.client.PostJSON(ctx, url, map[string]string{
		"X-Webhook-Event":    event.Event,
		"X-Webhook-Delivery": event.ID,
	}, body)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("endpoint returned %s", resp.Status)
	}
	return resp.StatusCode, nil
}

func (d *Dispatcher) breakerFor(registrationID string) *gobreaker.CircuitBreaker {
	d.mu.Lock()
	defer d.mu.Unlock()

	if br, ok := d.breakers[registrationID]; ok {
		return br
	}

	br := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    registrationID,
		Timeout: time.Duration(d.cfg.BreakerCooldown) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(d.cfg.BreakerMaxFails)
		},
	})
	d.breakers[registrationID] = br
	return br
}

func isTimeout(err error) bool {
	type timeout interface{ Timeout() bool }
	if te, ok := err.(timeout); ok {
		return te.Timeout()
	}
	return err == context.DeadlineExceeded
}
