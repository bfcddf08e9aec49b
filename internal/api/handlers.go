package api

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"sjfulfillment/internal/common/errors"
	"sjfulfillment/internal/models"
)

// listNotifications returns one page of the caller's inbox plus the unread
// count. Query params: limit, offset, unreadOnly.
func (s *Server) listNotifications(c *fiber.Ctx) error {
	claims := claimsFrom(c)

	limit := c.QueryInt("limit", 20)
	offset := c.QueryInt("offset", 0)
	unreadOnly := c.QueryBool("unreadOnly", false)

	list, err := s.store.ListForUser(c.Context(), claims.UserID, claims.Role, limit, offset, unreadOnly)
	if err != nil {
		return s.fail(c, err)
	}

	unread, err := s.store.UnreadCount(c.Context(), claims.UserID, claims.Role)
	if err != nil {
		return s.fail(c, err)
	}

	return s.respond(c, http.StatusOK, "Notifications retrieved", fiber.Map{
		"notifications": list,
		"unreadCount":   unread,
		"limit":         limit,
		"offset":        offset,
	})
}

// markAllRead flips every visible unread notification to read for the
// caller and returns how many were flipped.
func (s *Server) markAllRead(c *fiber.Ctx) error {
	claims := claimsFrom(c)

	count, err := s.store.MarkAllRead(c.Context(), claims.UserID, claims.Role)
	if err != nil {
		return s.fail(c, err)
	}

	return s.respond(c, http.StatusOK, "All notifications marked as read", fiber.Map{
		"count": count,
	})
}

type createNotificationRequest struct {
	Title         string                 `json:"title"`
	Message       string                 `json:"message"`
	Type          string                 `json:"type"`
	Priority      string                 `json:"priority"`
	RecipientRole string                 `json:"recipientRole"`
	IsGlobal      bool                   `json:"isGlobal"`
	Metadata      map[string]interface{} `json:"metadata"`
}

// createNotification creates a role-targeted or global notification. Direct
// single-recipient notifications are created by internal callers only, so
// recipientId is not accepted here.
func (s *Server) createNotification(c *fiber.Ctx) error {
	var req createNotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, errors.NewValidationError("invalid request body"))
	}

	if req.RecipientRole != "" && req.IsGlobal {
		return s.fail(c, errors.NewValidationError("recipientRole and isGlobal are mutually exclusive"))
	}
	if req.RecipientRole == "" && !req.IsGlobal {
		return s.fail(c, errors.NewValidationError("Either recipientRole or isGlobal must be specified"))
	}

	input := &models.CreateNotificationInput{
		Title:    req.Title,
		Message:  req.Message,
		Type:     req.Type,
		Priority: req.Priority,
		Metadata: req.Metadata,
	}

	var (
		n   *models.Notification
		err error
	)
	if req.IsGlobal {
		n, err = s.store.CreateGlobal(c.Context(), input)
	} else {
		n, err = s.store.CreateForRole(c.Context(), req.RecipientRole, input)
	}
	if err != nil {
		return s.fail(c, err)
	}

	return s.respond(c, http.StatusCreated, "Notification created", n)
}
