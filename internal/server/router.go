package server

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sub-hub/sub-hub/internal/subfetch"
)

// AppOptions controls how the Fiber application should behave on a specific port.
type AppOptions struct {
	Logger         *logrus.Logger
	Service        *subfetch.Service
	DefaultRetries int
	MaxBatchURLs   int
	ListenPort     int
}

const contextKeyRequestID = "_subhub_request_id"

// NewApp builds a Fiber application with request-ID middleware and the
// subscription fetch routes.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Service == nil {
		return nil, errors.New("fetch service is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}
	if opts.DefaultRetries < 1 {
		opts.DefaultRetries = subfetch.DefaultMaxRetries
	}
	if opts.MaxBatchURLs < 1 {
		opts.MaxBatchURLs = 32
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())

	handler := NewSubHandler(opts.Service, opts.Logger, opts.DefaultRetries, opts.MaxBatchURLs)
	app.Get("/sub", handler.HandleSub)
	app.Post("/sub/batch", handler.HandleBatch)

	return app, nil
}

// requestIDMiddleware 为每个请求生成 UUID，并回写 X-Request-ID 响应头。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
