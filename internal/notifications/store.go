// Package notifications implements the notification store: creation with
// audience targeting, per-user inbox queries, and read-state tracking.
package notifications

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"sjfulfillment/internal/common/errors"
	"sjfulfillment/internal/common/logger"
	"sjfulfillment/internal/common/metrics"
	"sjfulfillment/internal/models"

	"github.com/google/uuid"
)

// Store persists notifications and read-state in PostgreSQL. Read state is
// per-(user, notification): a notification_reads row marks a notification
// read for one user, leaving it unread for everyone else in the audience.
type Store struct {
	db       *sql.DB
	logger   logger.Logger
	cache    *UnreadCache
	channels *ChannelSender
}

// Option configures optional store collaborators.
type Option func(*Store)

// WithUnreadCache attaches a redis-backed unread-count cache.
func WithUnreadCache(c *UnreadCache) Option {
	return func(s *Store) { s.cache = c }
}

// WithChannelSender attaches email/SMS fan-out for direct notifications.
func WithChannelSender(c *ChannelSender) Option {
	return func(s *Store) { s.channels = c }
}

func NewStore(db *sql.DB, log logger.Logger, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "notification-store"}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// validateInput enforces the creation contract: title/message/type present
// and exactly one targeting mode set.
func validateInput(input *models.CreateNotificationInput) error {
	if input.Title == "" || input.Message == "" || input.Type == "" {
		return errors.NewValidationError("title, message and type are required")
	}

	modes := 0
	if input.RecipientID != "" {
		modes++
	}
	if input.RecipientRole != "" {
		modes++
	}
	if input.IsGlobal {
		modes++
	}
	if modes == 0 {
		return errors.NewValidationError("a recipient, recipientRole or isGlobal target is required")
	}
	if modes > 1 {
		return errors.NewValidationError("only one of recipientId, recipientRole or isGlobal may be set")
	}

	switch input.Priority {
	case "":
		input.Priority = models.PriorityMedium
	case models.PriorityLow, models.PriorityMedium, models.PriorityHigh:
	default:
		return errors.NewValidationError("priority must be LOW, MEDIUM or HIGH")
	}

	return nil
}

// Create persists a notification. The audience is fixed here and never
// changes afterwards. For HIGH-priority direct notifications the configured
// email/SMS channels are attempted as well; channel failures are logged and
// never fail the create.
func (s *Store) Create(ctx context.Context, input *models.CreateNotificationInput) (*models.Notification, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	n := &models.Notification{
		ID:            uuid.New().String(),
		Title:         input.Title,
		Message:       input.Message,
		Type:          input.Type,
		Priority:      input.Priority,
		RecipientID:   input.RecipientID,
		RecipientRole: input.RecipientRole,
		IsGlobal:      input.IsGlobal,
		Metadata:      input.Metadata,
		CreatedAt:     time.Now().UTC(),
	}

	metadataJSON, err := json.Marshal(n.Metadata)
	if err != nil {
		return nil, errors.NewValidationError("metadata is not serializable")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, title, message, type, priority, recipient_id, recipient_role, is_global, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9, $10)`,
		n.ID, n.Title, n.Message, n.Type, n.Priority,
		n.RecipientID, n.RecipientRole, n.IsGlobal, metadataJSON, n.CreatedAt,
	)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("create notification", err)
	}

	metrics.NotificationsCreated.WithLabelValues(n.Type, targetLabel(n)).Inc()

	if s.cache != nil {
		s.invalidateUnread(ctx, n)
	}

	if s.channels != nil && n.RecipientID != "" && n.Priority == models.PriorityHigh {
		s.sendChannels(ctx, n)
	}

	return n, nil
}

// CreateForRole creates a notification visible to every user holding a role.
func (s *Store) CreateForRole(ctx context.Context, role string, input *models.CreateNotificationInput) (*models.Notification, error) {
	input.RecipientID = ""
	input.RecipientRole = role
	input.IsGlobal = false
	return s.Create(ctx, input)
}

// CreateGlobal creates a notification visible to every user.
func (s *Store) CreateGlobal(ctx context.Context, input *models.CreateNotificationInput) (*models.Notification, error) {
	input.RecipientID = ""
	input.RecipientRole = ""
	input.IsGlobal = true
	return s.Create(ctx, input)
}

// visibilityClause matches notifications addressed to the user directly, to
// the user's role, or to everyone. Placeholders: $1 userID, $2 role.
const visibilityClause = `(n.recipient_id = $1 OR n.recipient_role = $2 OR n.is_global)`

// ListForUser returns one page of the user's inbox, newest first, each row
// annotated with the caller's read state. Out-of-range offsets produce an
// empty page, not an error.
func (s *Store) ListForUser(ctx context.Context, userID, role string, limit, offset int, unreadOnly bool) ([]*models.Notification, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT n.id, n.title, n.message, n.type, n.priority,
		       COALESCE(n.recipient_id, ''), COALESCE(n.recipient_role, ''),
		       n.is_global, n.metadata, n.created_at,
		       (r.user_id IS NOT NULL) AS is_read
		FROM notifications n
		LEFT JOIN notification_reads r ON r.notification_id = n.id AND r.user_id = $1
		WHERE ` + visibilityClause
	if unreadOnly {
		query += ` AND r.user_id IS NULL`
	}
	query += `
		ORDER BY n.created_at DESC
		LIMIT $3 OFFSET $4`

	rows, err := s.db.QueryContext(ctx, query, userID, role, limit, offset)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list notifications", err)
	}
	defer rows.Close()

	result := make([]*models.Notification, 0, limit)
	for rows.Next() {
		var n models.Notification
		var metadataJSON []byte
		if err := rows.Scan(
			&n.ID, &n.Title, &n.Message, &n.Type, &n.Priority,
			&n.RecipientID, &n.RecipientRole, &n.IsGlobal,
			&metadataJSON, &n.CreatedAt, &n.IsRead,
		); err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan notification", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &n.Metadata); err != nil {
				s.logger.Warn("bad metadata json", map[string]interface{}{
					"notificationId": n.ID,
				})
			}
		}
		result = append(result, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("list notifications", err)
	}

	return result, nil
}

// UnreadCount returns how many notifications visible to the user are unread.
// The count is served from the redis cache when fresh.
func (s *Store) UnreadCount(ctx context.Context, userID, role string) (int, error) {
	if s.cache != nil {
		if count, ok := s.cache.Get(ctx, userID); ok {
			return count, nil
		}
	}

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM notifications n
		LEFT JOIN notification_reads r ON r.notification_id = n.id AND r.user_id = $1
		WHERE `+visibilityClause+` AND r.user_id IS NULL`,
		userID, role,
	).Scan(&count)
	if err != nil {
		return 0, errors.NewQueryExecutionFailedError("unread count", err)
	}

	if s.cache != nil {
		s.cache.Set(ctx, userID, count)
	}

	return count, nil
}

// MarkAllRead flips every visible unread notification to read for the user
// and returns how many were flipped. It is a single bulk insert, not a
// read-then-write loop, so concurrent creates cannot lose updates. Calling
// it again immediately returns 0.
func (s *Store) MarkAllRead(ctx context.Context, userID, role string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_reads (notification_id, user_id, read_at)
		SELECT n.id, $1, NOW()
		FROM notifications n
		LEFT JOIN notification_reads r ON r.notification_id = n.id AND r.user_id = $1
		WHERE `+visibilityClause+` AND r.user_id IS NULL
		ON CONFLICT (notification_id, user_id) DO NOTHING`,
		userID, role,
	)
	if err != nil {
		return 0, errors.NewQueryExecutionFailedError("mark all read", err)
	}

	count, err := res.RowsAffected()
	if err != nil {
		return 0, errors.NewQueryExecutionFailedError("mark all read", err)
	}

	if count > 0 {
		metrics.NotificationsMarkedRead.Add(float64(count))
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, userID)
	}

	return count, nil
}

func targetLabel(n *models.Notification) string {
	switch {
	case n.IsGlobal:
		return "global"
	case n.RecipientRole != "":
		return "role"
	default:
		return "direct"
	}
}

// invalidateUnread drops stale cached unread counts. A direct notification
// touches one user's count; a broadcast touches everyone's.
func (s *Store) invalidateUnread(ctx context.Context, n *models.Notification) {
	if n.RecipientID != "" {
		s.cache.Invalidate(ctx, n.RecipientID)
		return
	}
	if err := s.cache.InvalidateAll(ctx); err != nil {
		s.logger.Warn("unread cache flush failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// sendChannels looks up the recipient's contact details and attempts the
// configured email/SMS channels. Channel failures are logged only.
func (s *Store) sendChannels(ctx context.Context, n *models.Notification) {
	var email, phone sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT email, phone FROM users WHERE id = $1`, n.RecipientID,
	).Scan(&email, &phone)
	if err != nil {
		s.logger.Warn("recipient contact lookup failed", map[string]interface{}{
			"recipientId": n.RecipientID,
			"error":       err.Error(),
		})
		return
	}

	s.channels.Send(ctx, email.String, phone.String, n)
}
