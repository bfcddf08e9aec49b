// Package stockmonitor scans stock levels and raises notifications and
// webhook events for items at or below their low-stock threshold. It has no
// scheduler of its own: an admin action or an external cron invokes Scan.
package stockmonitor

import (
	"context"
	"database/sql"

	"sjfulfillment/internal/common/config"
	"sjfulfillment/internal/common/errors"
	"sjfulfillment/internal/common/logger"
	"sjfulfillment/internal/models"
	"sjfulfillment/internal/notifications"
	"sjfulfillment/internal/webhooks"
)

// EventStockLow is the webhook event raised for merchants with low stock.
const EventStockLow = "stock.low"

// ScanReport summarizes one scan pass.
type ScanReport struct {
	ItemsLow             int `json:"itemsLow"`
	MerchantsAffected    int `json:"merchantsAffected"`
	NotificationsCreated int `json:"notificationsCreated"`
	WebhooksEnqueued     int `json:"webhooksEnqueued"`
}

type Monitor struct {
	db         *sql.DB
	store      *notifications.Store
	dispatcher *webhooks.Dispatcher
	cfg        config.StockMonitorConfig
	logger     logger.Logger
}

func New(db *sql.DB, store *notifications.Store, dispatcher *webhooks.Dispatcher, cfg config.StockMonitorConfig, log logger.Logger) *Monitor {
	return &Monitor{
		db:         db,
		store:      store,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     log.WithFields(map[string]interface{}{"component": "stock-monitor"}),
	}
}

// Scan finds every stock row at or below threshold in one pass, raises a
// STOCK_ALERT notification for each affected merchant's admins, and triggers
// a stock.low webhook per merchant. Notification and webhook failures are
// logged per merchant; the scan itself keeps going.
func (m *Monitor) Scan(ctx context.Context) (*ScanReport, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT sku, merchant_id, warehouse_id, product_name, quantity, COALESCE(threshold, $1)
		FROM stock_items
		WHERE quantity <= COALESCE(threshold, $1)
		ORDER BY merchant_id`,
		m.cfg.DefaultThreshold,
	)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("stock scan", err)
	}
	defer rows.Close()

	byMerchant := make(map[string][]models.StockItem)
	var order []string
	for rows.Next() {
		var item models.StockItem
		if err := rows.Scan(&item.SKU, &item.MerchantID, &item.WarehouseID, &item.ProductName, &item.Quantity, &item.Threshold); err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan stock row", err)
		}
		if _, seen := byMerchant[item.MerchantID]; !seen {
			order = append(order, item.MerchantID)
		}
		byMerchant[item.MerchantID] = append(byMerchant[item.MerchantID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("stock scan", err)
	}

	report := &ScanReport{MerchantsAffected: len(byMerchant)}
	for _, merchantID := range order {
		items := byMerchant[merchantID]
		report.ItemsLow += len(items)
		report.NotificationsCreated += m.notifyMerchant(ctx, merchantID, items)
		report.WebhooksEnqueued += m.dispatcher.Trigger(ctx, merchantID, EventStockLow, stockPayload(items))
	}

	m.logger.Info("stock scan complete", map[string]interface{}{
		"itemsLow":          report.ItemsLow,
		"merchantsAffected": report.MerchantsAffected,
	})

	return report, nil
}

// notifyMerchant creates one direct STOCK_ALERT per merchant admin user.
func (m *Monitor) notifyMerchant(ctx context.Context, merchantID string, items []models.StockItem) int {
	rows, err := m.db.QueryContext(ctx,
		`SELECT id FROM users WHERE merchant_id = $1 AND role = $2`,
		merchantID, models.RoleMerchantAdmin,
	)
	if err != nil {
		m.logger.Error("merchant admin lookup failed", map[string]interface{}{
			"merchantId": merchantID,
			"error":      err.Error(),
		})
		return 0
	}
	defer rows.Close()

	var adminIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			m.logger.Error("merchant admin scan failed", map[string]interface{}{
				"merchantId": merchantID,
				"error":      err.Error(),
			})
			return 0
		}
		adminIDs = append(adminIDs, id)
	}
	if err := rows.Err(); err != nil {
		m.logger.Error("merchant admin lookup failed", map[string]interface{}{
			"merchantId": merchantID,
			"error":      err.Error(),
		})
		return 0
	}

	priority := models.PriorityMedium
	for _, item := range items {
		if item.Quantity == 0 {
			priority = models.PriorityHigh
			break
		}
	}

	created := 0
	for _, adminID := range adminIDs {
		_, err := m.store.Create(ctx, &models.CreateNotificationInput{
			Title:       "Low stock alert",
			Message:     stockMessage(items),
			Type:        models.NotificationTypeStockAlert,
			Priority:    priority,
			RecipientID: adminID,
			Metadata: map[string]interface{}{
				"merchantId": merchantID,
				"itemCount":  len(items),
			},
		})
		if err != nil {
			m.logger.Error("stock notification failed", map[string]interface{}{
				"merchantId": merchantID,
				"userId":     adminID,
				"error":      err.Error(),
			})
			continue
		}
		created++
	}
	return created
}

func stockMessage(items []models.StockItem) string {
	if len(items) == 1 {
		item := items[0]
		return item.ProductName + " (" + item.SKU + ") is low on stock"
	}
	return "Multiple items are at or below their stock threshold"
}

func stockPayload(items []models.StockItem) map[string]interface{} {
	list := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		list = append(list, map[string]interface{}{
			"sku":         item.SKU,
			"warehouseId": item.WarehouseID,
			"productName": item.ProductName,
			"quantity":    item.Quantity,
			"threshold":   item.Threshold,
		})
	}
	return map[string]interface{}{"items": list}
}
