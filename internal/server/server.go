// Package server exposes sessions over HTTP: upload an image, get back the
// accepted code and the names of the persisted artifact and record.
package server

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/petasbytes/fig2code/internal/conversation"
	"github.com/petasbytes/fig2code/internal/fsops"
	"github.com/petasbytes/fig2code/internal/runner"
	"github.com/petasbytes/fig2code/internal/safety"
	"github.com/petasbytes/fig2code/internal/session"
)

// Generator is the part of session.Service the server needs.
type Generator interface {
	Generate(ctx context.Context, req session.Request) (*session.Outcome, error)
}

// Server is the fiber app plus a cap on concurrent sessions.
type Server struct {
	config Config
	gen    Generator
	store  *fsops.Store
	sem    *semaphore.Weighted
	logger *zap.Logger
	app    *fiber.App
}

// ErrorResponse is the JSON body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// GenerateResponse describes a persisted session.
type GenerateResponse struct {
	RunID    string             `json:"run_id"`
	Code     string             `json:"code"`
	Doc      string             `json:"doc,omitempty"`
	Artifact string             `json:"artifact"`
	Record   string             `json:"record"`
	Attempts int                `json:"attempts"`
	Usage    conversation.Usage `json:"usage"`
	CostUSD  float64            `json:"cost_usd"`
}

// New creates a Server and registers its routes.
func New(config Config, gen Generator, store *fsops.Store, logger *zap.Logger) *Server {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = 1
	}
	if config.MaxUploadMB < 1 {
		config.MaxUploadMB = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             config.MaxUploadMB << 20,
	})

	s := &Server{
		config: config,
		gen:    gen,
		store:  store,
		sem:    semaphore.NewWeighted(int64(config.MaxConcurrent)),
		logger: logger,
		app:    app,
	}

	app.Use(fiberrecover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"status": "ok"})
	})
	app.Post("/api/generate", s.handleGenerate)
	app.Get("/api/records", s.handleListRecords)
	app.Get("/api/artifacts/:name", s.handleGetArtifact)

	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App { return s.app }

// Run listens on the configured address until Shutdown.
func (s *Server) Run() error {
	s.logger.Info("starting server",
		zap.String("listen", s.config.ListenAddr),
		zap.Int("max_concurrent", s.config.MaxConcurrent),
		zap.String("output_root", s.store.Root()),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	return s.app.ShutdownWithTimeout(timeout)
}

func (s *Server) handleGenerate(c *fiber.Ctx) error {
	fh, err := c.FormFile("image")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "multipart field \"image\" is required"})
	}
	f, err := fh.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "could not read upload"})
	}
	data, err := io.ReadAll(f)
	_ = f.Close()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "could not read upload"})
	}

	if !s.sem.TryAcquire(1) {
		return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{Error: "too many sessions in progress"})
	}
	defer s.sem.Release(1)

	name := filepath.Base(fh.Filename)
	start := time.Now()
	out, err := s.gen.Generate(c.UserContext(), session.Request{ImageName: name, Image: data})
	if err != nil {
		status, body := errorStatus(err)
		s.logger.Warn("generate failed", zap.String("image", name), zap.Int("status", status), zap.Error(err))
		return c.Status(status).JSON(body)
	}
	s.logger.Info("generate done",
		zap.String("image", name),
		zap.String("run_id", out.RunID),
		zap.Duration("duration", time.Since(start)),
	)

	return c.JSON(GenerateResponse{
		RunID:    out.RunID,
		Code:     out.Result.Code,
		Doc:      out.Doc,
		Artifact: out.Artifact,
		Record:   out.Record,
		Attempts: out.Result.Attempts,
		Usage:    out.Result.Usage,
		CostUSD:  out.Cost.USD,
	})
}

func (s *Server) handleListRecords(c *fiber.Ctx) error {
	names, err := s.store.ListFiles("", ".json")
	if err != nil {
		s.logger.Error("list records", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "internal error"})
	}
	return c.JSON(names)
}

func (s *Server) handleGetArtifact(c *fiber.Ctx) error {
	name := c.Params("name")
	data, err := s.store.ReadFile(name)
	if err != nil {
		status, body := errorStatus(err)
		return c.Status(status).JSON(body)
	}
	c.Type(filepath.Ext(name))
	return c.Send(data)
}

// errorStatus maps domain errors to an HTTP status and body.
func errorStatus(err error) (int, ErrorResponse) {
	var (
		pe safety.PolicyError
		te *runner.TransportError
	)
	switch {
	case errors.As(err, &pe):
		if pe.Code == safety.CodeNotAFile {
			return fiber.StatusNotFound, ErrorResponse{Error: pe.Message, Code: pe.Code}
		}
		return fiber.StatusBadRequest, ErrorResponse{Error: pe.Message, Code: pe.Code}
	case errors.Is(err, conversation.ErrUnsupportedMediaType):
		return fiber.StatusUnsupportedMediaType, ErrorResponse{Error: err.Error()}
	case errors.As(err, &te):
		return fiber.StatusBadGateway, ErrorResponse{Error: "model invocation failed"}
	case errors.Is(err, runner.ErrRetriesExhausted):
		return fiber.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()}
	case errors.Is(err, fs.ErrNotExist):
		return fiber.StatusNotFound, ErrorResponse{Error: "not found"}
	}
	return fiber.StatusInternalServerError, ErrorResponse{Error: "internal error"}
}
