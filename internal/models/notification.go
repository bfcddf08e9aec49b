package models

import "time"

// Notification types
const (
	NotificationTypeOrderUpdate  = "ORDER_UPDATE"
	NotificationTypeStockAlert   = "STOCK_ALERT"
	NotificationTypeSystemAlert  = "SYSTEM_ALERT"
	NotificationTypeBillingAlert = "BILLING_ALERT"
)

// Priorities
const (
	PriorityLow    = "LOW"
	PriorityMedium = "MEDIUM"
	PriorityHigh   = "HIGH"
)

// Notification is a persisted notification record. Its audience is fixed at
// creation: exactly one of RecipientID, RecipientRole, or IsGlobal is set.
// Read state lives in notification_reads, not on this row, so a broadcast
// can be read by some users and unread by others.
type Notification struct {
	ID            string                 `json:"id"`
	Title         string                 `json:"title"`
	Message       string                 `json:"message"`
	Type          string                 `json:"type"`
	Priority      string                 `json:"priority"`
	RecipientID   string                 `json:"recipientId,omitempty"`
	RecipientRole string                 `json:"recipientRole,omitempty"`
	IsGlobal      bool                   `json:"isGlobal"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	IsRead        bool                   `json:"isRead"`
	CreatedAt     time.Time              `json:"createdAt"`
}

// CreateNotificationInput is the creation contract for the notification store.
type CreateNotificationInput struct {
	Title         string                 `json:"title"`
	Message       string                 `json:"message"`
	Type          string                 `json:"type"`
	Priority      string                 `json:"priority"`
	RecipientID   string                 `json:"recipientId,omitempty"`
	RecipientRole string                 `json:"recipientRole,omitempty"`
	IsGlobal      bool                   `json:"isGlobal,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}
