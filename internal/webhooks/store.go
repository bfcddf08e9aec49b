// Package webhooks implements merchant webhook registrations and the
// best-effort event dispatcher that delivers payloads to them.
package webhooks

import (
	"context"
	"database/sql"
	"time"

	"sjfulfillment/internal/common/errors"
	"sjfulfillment/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Store persists webhook registrations. Each registration is owned by
// exactly one merchant.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create registers a new webhook endpoint for a merchant.
func (s *Store) Create(ctx context.Context, merchantID, name, url string, events []string) (*models.WebhookRegistration, error) {
	if merchantID == "" || url == "" {
		return nil, errors.NewValidationError("merchantId and url are required")
	}

	reg := &models.WebhookRegistration{
		ID:         uuid.New().String(),
		MerchantID: merchantID,
		Name:       name,
		URL:        url,
		Active:     true,
		Events:     events,
		CreatedAt:  time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO webhook_registrations (id, merchant_id, name, url, active, events, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		reg.ID, reg.MerchantID, reg.Name, reg.URL, reg.Active, pq.Array(reg.Events), reg.CreatedAt,
	)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("create webhook", err)
	}

	return reg, nil
}

// GetByID returns one registration or a not-found error.
func (s *Store) GetByID(ctx context.Context, id string) (*models.WebhookRegistration, error) {
	var reg models.WebhookRegistration
	err := s.db.QueryRowContext(ctx, `
		SELECT id, merchant_id, name, url, active, events, created_at
		FROM webhook_registrations
		WHERE id = $1`, id,
	).Scan(&reg.ID, &reg.MerchantID, &reg.Name, &reg.URL, &reg.Active, pq.Array(&reg.Events), &reg.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("webhook registration", id)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get webhook", err)
	}
	return &reg, nil
}

// ListByMerchant returns every registration owned by a merchant.
func (s *Store) ListByMerchant(ctx context.Context, merchantID string) ([]*models.WebhookRegistration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, merchant_id, name, url, active, events, created_at
		FROM webhook_registrations
		WHERE merchant_id = $1
		ORDER BY created_at DESC`, merchantID,
	)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list webhooks", err)
	}
	defer rows.Close()

	return scanRegistrations(rows)
}

// ActiveForEvent returns the merchant's active registrations subscribed to
// the given event. Event filtering happens in Go so an empty subscription
// list keeps meaning "all events".
func (s *Store) ActiveForEvent(ctx context.Context, merchantID, event string) ([]*models.WebhookRegistration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, merchant_id, name, url, active, events, created_at
		FROM webhook_registrations
		WHERE merchant_id = $1 AND active`, merchantID,
	)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("load active webhooks", err)
	}
	defer rows.Close()

	regs, err := scanRegistrations(rows)
	if err != nil {
		return nil, err
	}

	matched := regs[:0]
	for _, reg := range regs {
		if reg.Accepts(event) {
			matched = append(matched, reg)
		}
	}
	return matched, nil
}

// Delete removes a registration, scoped to its owning merchant.
func (s *Store) Delete(ctx context.Context, id, merchantID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM webhook_registrations
		WHERE id = $1 AND merchant_id = $2`, id, merchantID,
	)
	if err != nil {
		return errors.NewQueryExecutionFailedError("delete webhook", err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return errors.NewQueryExecutionFailedError("delete webhook", err)
	}
	if count == 0 {
		return errors.NewNotFoundError("webhook registration", id)
	}
	return nil
}

func scanRegistrations(rows *sql.Rows) ([]*models.WebhookRegistration, error) {
	var regs []*models.WebhookRegistration
	for rows.Next() {
		var reg models.WebhookRegistration
		if err := rows.Scan(&reg.ID, &reg.MerchantID, &reg.Name, &reg.URL, &reg.Active, pq.Array(&reg.Events), &reg.CreatedAt); err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan webhook", err)
		}
		regs = append(regs, &reg)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("scan webhooks", err)
	}
	return regs, nil
}
