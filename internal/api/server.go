// Package api exposes the notification and webhook service over an
// authenticated JSON HTTP surface.
package api

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"sjfulfillment/internal/common/auth"
	"sjfulfillment/internal/common/config"
	"sjfulfillment/internal/common/errors"
	"sjfulfillment/internal/common/logger"
	"sjfulfillment/internal/common/metrics"
	"sjfulfillment/internal/notifications"
	"sjfulfillment/internal/stockmonitor"
	"sjfulfillment/internal/webhooks"
)

// Server wires the HTTP surface to the domain components. All collaborators
// are injected; the server owns no global state.
type Server struct {
	app          *fiber.App
	cfg          *config.Config
	store        *notifications.Store
	webhookStore *webhooks.Store
	dispatcher   *webhooks.Dispatcher
	monitor      *stockmonitor.Monitor
	audit        *webhooks.AuditSink
	tokens       *auth.TokenManager
	errs         *errors.ErrorHandler
	logger       logger.Logger
}

// Deps carries the server's collaborators. Audit may be nil when
// Elasticsearch is not configured.
type Deps struct {
	Config       *config.Config
	Store        *notifications.Store
	WebhookStore *webhooks.Store
	Dispatcher   *webhooks.Dispatcher
	Monitor      *stockmonitor.Monitor
	Audit        *webhooks.AuditSink
	Tokens       *auth.TokenManager
	Logger       logger.Logger
}

func NewServer(deps Deps) *Server {
	app := fiber.New(fiber.Config{
		AppName:               deps.Config.App.Name,
		DisableStartupMessage: true,
	})

	s := &Server{
		app:          app,
		cfg:          deps.Config,
		store:        deps.Store,
		webhookStore: deps.WebhookStore,
		dispatcher:   deps.Dispatcher,
		monitor:      deps.Monitor,
		audit:        deps.Audit,
		tokens:       deps.Tokens,
		errs:         errors.NewErrorHandler(deps.Logger),
		logger:       deps.Logger.WithFields(map[string]interface{}{"component": "api"}),
	}

	app.Use(recover.New())
	app.Use(s.requestMetrics())
	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": s.cfg.App.Name})
	})

	api := s.app.Group("/api/v1")
	api.Use(JWTAuth(s.tokens))

	notifs := api.Group("/notifications")
	notifs.Get("", s.listNotifications)
	notifs.Put("/mark-all-read", s.markAllRead)
	notifs.Post("", RequireRole(RoleAdmin), s.createNotification)

	hooks := api.Group("/webhooks", RequireRole(RoleMerchantAdmin))
	hooks.Get("", s.listWebhooks)
	hooks.Post("", s.createWebhook)
	hooks.Delete("/:id", s.deleteWebhook)
	hooks.Post("/:id/test", s.testWebhook)

	admin := api.Group("/admin", RequireRole(RoleAdmin))
	admin.Post("/stock-scan", s.stockScan)
	admin.Get("/webhook-deliveries", s.webhookDeliveries)
}

// Listen blocks serving HTTP on the configured port.
func (s *Server) Listen() error {
	return s.app.Listen(fmt.Sprintf(":%d", s.cfg.HTTP.Port))
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) requestMetrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		metrics.HTTPRequests.WithLabelValues(
			c.Method(),
			c.Route().Path,
			strconv.Itoa(c.Response().StatusCode()),
		).Inc()
		return err
	}
}
