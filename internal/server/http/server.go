// Package httpserver is the REST management surface: config entries, the
// config and options flows, sensor states and the trip log.
package httpserver

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/bonusdrive/internal/entry"
	"github.com/and161185/bonusdrive/internal/model"
	"github.com/and161185/bonusdrive/internal/sensor"
	"github.com/and161185/bonusdrive/internal/service"
)

// EntryService is the config flow used by the handlers.
type EntryService interface {
	Create(ctx context.Context, in service.CreateInput) (*model.Entry, error)
	UpdateOptions(ctx context.Context, id uuid.UUID, in service.OptionsInput) (*model.Entry, error)
	Reauthenticate(ctx context.Context, id uuid.UUID, password, source string) error
	Remove(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*model.Entry, error)
	List(ctx context.Context) ([]model.Entry, error)
	Trips(ctx context.Context, id uuid.UUID, limit int) ([]model.TripRecord, error)
}

// Runtime exposes running entries.
type Runtime interface {
	Status(id uuid.UUID) (entry.Status, error)
	Statuses() []entry.Status
	States(id uuid.UUID) ([]sensor.State, error)
	Refresh(ctx context.Context, id uuid.UUID) error
}

// TokenVerifier checks a bearer token and returns its subject.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Server wires the services into fiber handlers.
type Server struct {
	app     *fiber.App
	entries EntryService
	runtime Runtime
	log     *zap.Logger
}

// New builds the fiber app and registers every route.
func New(entries EntryService, rt Runtime, v TokenVerifier, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{entries: entries, runtime: rt, log: log}
	s.app = fiber.New(fiber.Config{
		AppName:      "bonusdrived",
		ErrorHandler: s.handleError,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})
	s.app.Use(recover.New())
	s.app.Use(requestLogger(log))
	s.registerRoutes(v)
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.log.Info("http listening", zap.String("addr", addr))
	return s.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerRoutes(v TokenVerifier) {
	s.app.Get("/health", s.health)

	api := s.app.Group("/api/v1", BearerAuth(v))
	api.Get("/entries", s.listEntries)
	api.Post("/entries", s.createEntry)
	api.Get("/entries/:id", s.getEntry)
	api.Delete("/entries/:id", s.deleteEntry)
	api.Patch("/entries/:id/options", s.updateOptions)
	api.Post("/entries/:id/reauth", s.reauth)
	api.Post("/entries/:id/refresh", s.refresh)
	api.Get("/entries/:id/states", s.states)
	api.Get("/entries/:id/trips", s.trips)
}

func (s *Server) health(c fiber.Ctx) error {
	loaded := 0
	for _, st := range s.runtime.Statuses() {
		if st.State == model.EntryLoaded {
			loaded++
		}
	}
	return c.JSON(fiber.Map{"status": "ok", "entries_loaded": loaded})
}
