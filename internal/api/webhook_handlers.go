package api

import (
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"sjfulfillment/internal/common/errors"
	"sjfulfillment/internal/webhooks"
)

// TestWebhookEvent is the synthetic event name used by the test endpoint.
const TestWebhookEvent = "test.webhook"

func (s *Server) listWebhooks(c *fiber.Ctx) error {
	claims := claimsFrom(c)

	regs, err := s.webhookStore.ListByMerchant(c.Context(), claims.MerchantID)
	if err != nil {
		return s.fail(c, err)
	}

	return s.respond(c, http.StatusOK, "Webhooks retrieved", regs)
}

type createWebhookRequest struct {
	Name   string   `json:"name"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

func (s *Server) createWebhook(c *fiber.Ctx) error {
	claims := claimsFrom(c)

	var req createWebhookRequest
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, errors.NewValidationError("invalid request body"))
	}
	if req.URL == "" {
		return s.fail(c, errors.NewValidationError("url is required"))
	}

	reg, err := s.webhookStore.Create(c.Context(), claims.MerchantID, req.Name, req.URL, req.Events)
	if err != nil {
		return s.fail(c, err)
	}

	return s.respond(c, http.StatusCreated, "Webhook registered", reg)
}

func (s *Server) deleteWebhook(c *fiber.Ctx) error {
	claims := claimsFrom(c)

	if err := s.webhookStore.Delete(c.Context(), c.Params("id"), claims.MerchantID); err != nil {
		return s.fail(c, err)
	}

	return s.respond(c, http.StatusOK, "Webhook deleted", nil)
}

type testWebhookRequest struct {
	Data map[string]interface{} `json:"data"`
}

// testWebhook synthesizes a test.webhook event and enqueues delivery to one
// registration. The response does not wait for, or reflect, the delivery
// outcome; delivery is observable through the audit log.
func (s *Server) testWebhook(c *fiber.Ctx) error {
	claims := claimsFrom(c)

	reg, err := s.webhookStore.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	if reg.MerchantID != claims.MerchantID {
		return s.fail(c, errors.NewForbiddenError("webhook belongs to another merchant"))
	}
	if !reg.Active {
		return s.fail(c, errors.NewValidationError("webhook registration is not active"))
	}

	var req testWebhookRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return s.fail(c, errors.NewValidationError("invalid request body"))
		}
	}
	if req.Data == nil {
		req.Data = map[string]interface{}{"test": true}
	}

	if err := webhooks.ValidateEventPayload(TestWebhookEvent, req.Data); err != nil {
		return s.fail(c, err)
	}

	if !s.dispatcher.TriggerOne(reg, TestWebhookEvent, req.Data) {
		return s.fail(c, errors.NewInternalError(errDispatchQueueFull))
	}

	return s.respond(c, http.StatusAccepted, "Test event queued for delivery", fiber.Map{
		"registrationId": reg.ID,
		"event":          TestWebhookEvent,
	})
}

var errDispatchQueueFull = fmt.Errorf("dispatch queue full")
