package models

import "time"

// WebhookRegistration is a merchant-configured endpoint that receives event
// payloads. An empty Events list subscribes the endpoint to all events.
type WebhookRegistration struct {
	ID         string    `json:"id"`
	MerchantID string    `json:"merchantId"`
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	Active     bool      `json:"active"`
	Events     []string  `json:"events"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Accepts reports whether the registration subscribes to the given event.
func (w *WebhookRegistration) Accepts(event string) bool {
	if len(w.Events) == 0 {
		return true
	}
	for _, e := range w.Events {
		if e == event {
			return true
		}
	}
	return false
}

// WebhookEvent is the payload envelope delivered to a registration's URL.
type WebhookEvent struct {
	ID         string                 `json:"id"`
	Event      string                 `json:"event"`
	MerchantID string                 `json:"merchantId"`
	Timestamp  time.Time              `json:"timestamp"`
	Data       map[string]interface{} `json:"data"`
}

// DeliveryStatus values for a single delivery attempt.
const (
	DeliveryStatusDelivered = "delivered"
	DeliveryStatusFailed    = "failed"
	DeliveryStatusTimeout   = "timeout"
	DeliveryStatusSkipped   = "skipped" // breaker open
)

// DeliveryResult records the outcome of one delivery attempt. It is not
// durable state; it flows to the result callback and the audit index.
type DeliveryResult struct {
	RegistrationID string    `json:"registrationId"`
	MerchantID     string    `json:"merchantId"`
	URL            string    `json:"url"`
	Event          string    `json:"event"`
	EventID        string    `json:"eventId"`
	Status         string    `json:"status"`
	HTTPStatus     int       `json:"httpStatus,omitempty"`
	Error          string    `json:"error,omitempty"`
	DurationMS     int64     `json:"durationMs"`
	AttemptedAt    time.Time `json:"attemptedAt"`
}
