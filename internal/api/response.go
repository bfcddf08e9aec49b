package api

import "github.com/gofiber/fiber/v2"

// successResponse is the uniform success envelope.
type successResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (s *Server) respond(c *fiber.Ctx, status int, message string, data interface{}) error {
	return c.Status(status).JSON(successResponse{Message: message, Data: data})
}

// fail renders the uniform error envelope via the error handler, which maps
// error codes to statuses and logs unexpected failures.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	status, body := s.errs.HandleHTTPError(err, c.Path())
	return c.Status(status).JSON(body)
}
