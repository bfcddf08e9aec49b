package api

import (
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"sjfulfillment/internal/common/errors"
)

// stockScan runs one stock-level pass. The monitor has no scheduler of its
// own; this endpoint (or an external cron hitting it) drives it.
func (s *Server) stockScan(c *fiber.Ctx) error {
	report, err := s.monitor.Scan(c.Context())
	if err != nil {
		return s.fail(c, err)
	}

	return s.respond(c, http.StatusOK, "Stock scan complete", report)
}

// webhookDeliveries searches the delivery audit index. Optional query
// params: merchantId, event, size.
func (s *Server) webhookDeliveries(c *fiber.Ctx) error {
	if s.audit == nil {
		return s.fail(c, errors.NewInternalError(fmt.Errorf("delivery audit log is not configured")))
	}

	results, err := s.audit.Search(
		c.Context(),
		c.Query("merchantId"),
		c.Query("event"),
		c.QueryInt("size", 50),
	)
	if err != nil {
		return s.fail(c, errors.NewInternalError(err))
	}

	return s.respond(c, http.StatusOK, "Webhook deliveries retrieved", results)
}
