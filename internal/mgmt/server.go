// Package mgmt exposes the management API: probes, metrics and an
// authenticated admin surface over users, activities, contacts and
// broadcasts.
package mgmt

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/focuslabs/focusbot/internal/health"
	"github.com/focuslabs/focusbot/internal/metrics"
	"github.com/focuslabs/focusbot/internal/store"
)

// ServerConfig holds configuration for the management API server.
type ServerConfig struct {
	ListenAddr  string
	Auth        AuthConfig
	CORSOrigins string
}

// ProblemDetail is an RFC 7807 style error body.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// Server is the management API Fiber application.
type Server struct {
	app    *fiber.App
	config ServerConfig
	logger zerolog.Logger
}

// NewServer creates and configures a management API server.
func NewServer(cfg ServerConfig, st *store.Store, checker *health.Checker, mts *metrics.Metrics, answerer ContactAnswerer, logger zerolog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(logger),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})

	s := &Server{
		app:    app,
		config: cfg,
		logger: logger.With().Str("component", "mgmt").Logger(),
	}

	app.Use(recover.New(recover.Config{EnableStackTrace: true}))

	if cfg.CORSOrigins != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CORSOrigins,
			AllowHeaders: "Origin, Content-Type, Accept, Authorization",
			AllowMethods: "GET, POST, OPTIONS",
		}))
	}

	app.Use(NewAuthMiddleware(cfg.Auth, s.logger))

	h := NewHandlers(st, checker, answerer, s.logger)

	app.Get("/healthz", h.Liveness)
	app.Get("/readyz", h.Readiness)

	if mts != nil {
		metricsHandler := fasthttpadaptor.NewFastHTTPHandler(mts.Handler())
		app.Get("/metrics", func(c *fiber.Ctx) error {
			metricsHandler(c.Context())
			return nil
		})
	}

	v1 := app.Group("/api/v1")
	v1.Get("/users", h.ListUsers)
	v1.Get("/users/:id", h.GetUser)
	v1.Get("/activities", h.ListActivities)
	v1.Get("/summary", h.Summary)
	v1.Get("/contacts", h.ListContacts)
	v1.Post("/contacts/:id/answer", h.AnswerContact)
	v1.Post("/broadcasts", h.CreateBroadcast)
	v1.Get("/broadcasts/:id", h.GetBroadcast)

	return s
}

// Start starts the server. Blocks until stopped.
func (s *Server) Start() error {
	addr := s.config.ListenAddr
	if addr == "" {
		addr = ":8090"
	}
	s.logger.Info().Str("addr", addr).Msg("management API listening")
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App returns the underlying Fiber app, useful for testing.
func (s *Server) App() *fiber.App {
	return s.app
}

func errorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		logger.Error().
			Err(err).
			Int("status", code).
			Str("path", c.Path()).
			Str("method", c.Method()).
			Msg("unhandled error")

		detail := err.Error()
		if code == fiber.StatusInternalServerError {
			detail = "An internal error occurred"
		}
		return c.Status(code).JSON(ProblemDetail{
			Type:     "internal_error",
			Title:    "Internal Server Error",
			Status:   code,
			Detail:   detail,
			Instance: c.Path(),
		})
	}
}

func problemResponse(c *fiber.Ctx, status int, errType, title, detail string) error {
	return c.Status(status).JSON(ProblemDetail{
		Type:     errType,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Path(),
	})
}
