// Package httpapi is the read-mostly collaborator facade: entity
// listings, a cycle trigger and a snapshot trigger over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/autocorp/engine/internal/company"
	"github.com/autocorp/engine/internal/cycle"
	"github.com/autocorp/engine/internal/health"
	"github.com/autocorp/engine/internal/metrics"
	"github.com/autocorp/engine/internal/requestid"
)

// CycleRunner is the slice of the cycle driver the API needs.
type CycleRunner interface {
	RunCycle(ctx context.Context) (cycle.CycleResult, error)
}

// Config holds server configuration.
type Config struct {
	ListenAddr string
	// APIKey, when set, requires a matching bearer token on /api routes.
	APIKey string
	// SnapshotDir is where POST /api/v1/snapshot writes.
	SnapshotDir string
}

// Server is the collaborator-facing Fiber application.
type Server struct {
	app     *fiber.App
	state   *company.State
	driver  CycleRunner
	checker *health.Checker
	cfg     Config
	logger  zerolog.Logger
}

// NewServer creates and configures the API server. checker may be nil,
// in which case /readyz always reports ready.
func NewServer(cfg Config, state *company.State, driver CycleRunner, checker *health.Checker, m *metrics.Metrics, logger zerolog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})

	s := &Server{
		app:     app,
		state:   state,
		driver:  driver,
		checker: checker,
		cfg:     cfg,
		logger:  logger.With().Str("component", "httpapi").Logger(),
	}

	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(func(c *fiber.Ctx) error {
		_, reqID := requestid.New(c.Context())
		c.Set("X-Request-ID", reqID)
		c.Locals("request_id", reqID)
		return c.Next()
	})
	app.Use(s.authMiddleware())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/readyz", s.readiness)
	if m != nil {
		app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
	}

	v1 := app.Group("/api/v1")
	v1.Get("/workers", s.listWorkers)
	v1.Get("/locations", s.listLocations)
	v1.Get("/tasks", s.listTasks)
	v1.Get("/services", s.listServices)
	v1.Get("/ideas", s.listIdeas)
	v1.Get("/ledger", s.getLedger)
	v1.Get("/events", s.listEvents)
	v1.Post("/cycles", s.runCycle)
	v1.Post("/snapshot", s.saveSnapshot)

	return s
}

// authMiddleware validates the bearer token on /api routes when a key is
// configured. Probe and metrics endpoints stay open.
func (s *Server) authMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if s.cfg.APIKey == "" || !strings.HasPrefix(c.Path(), "/api/") {
			return c.Next()
		}
		header := c.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token != s.cfg.APIKey {
			s.logger.Warn().Str("path", c.Path()).Msg("unauthorized request")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
		}
		return c.Next()
	}
}

func (s *Server) readiness(c *fiber.Ctx) error {
	if s.checker == nil {
		return c.JSON(fiber.Map{"status": "ready"})
	}
	results := s.checker.RunAll(c.Context())
	for _, st := range results {
		if st == health.StatusDown {
			return c.Status(fiber.StatusServiceUnavailable).
				JSON(fiber.Map{"status": "not_ready", "checks": results})
		}
	}
	return c.JSON(fiber.Map{"status": "ready", "checks": results})
}

func (s *Server) listWorkers(c *fiber.Ctx) error {
	workers := s.state.WorkersCopy()
	return c.JSON(fiber.Map{"workers": workers, "total": len(workers)})
}

func (s *Server) listLocations(c *fiber.Ctx) error {
	locations := s.state.LocationsCopy()
	return c.JSON(fiber.Map{"locations": locations, "total": len(locations)})
}

func (s *Server) listTasks(c *fiber.Ctx) error {
	tasks := s.state.TasksCopy()
	if status := c.Query("status"); status != "" {
		filtered := tasks[:0]
		for _, t := range tasks {
			if string(t.Status) == status {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}
	return c.JSON(fiber.Map{"tasks": tasks, "total": len(tasks)})
}

func (s *Server) listServices(c *fiber.Ctx) error {
	services := s.state.ServicesCopy()
	return c.JSON(fiber.Map{"services": services, "total": len(services)})
}

func (s *Server) listIdeas(c *fiber.Ctx) error {
	ideas := s.state.IdeasCopy()
	return c.JSON(fiber.Map{"ideas": ideas, "total": len(ideas)})
}

func (s *Server) getLedger(c *fiber.Ctx) error {
	return c.JSON(s.state.LedgerCopy())
}

func (s *Server) listEvents(c *fiber.Ctx) error {
	events := s.state.EventsCopy()
	return c.JSON(fiber.Map{"events": events, "total": len(events)})
}

func (s *Server) runCycle(c *fiber.Ctx) error {
	result, err := s.driver.RunCycle(c.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("cycle failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(result)
}

func (s *Server) saveSnapshot(c *fiber.Ctx) error {
	if err := s.state.Snapshot().Save(s.cfg.SnapshotDir); err != nil {
		s.logger.Error().Err(err).Msg("snapshot failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"saved": s.cfg.SnapshotDir})
}

// Start starts the server. Blocks until stopped.
func (s *Server) Start() error {
	addr := s.cfg.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	s.logger.Info().Str("addr", addr).Msg("API server starting")
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the Fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}
