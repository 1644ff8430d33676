package api

import (
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	swagger "github.com/go-swagno/swagno-fiber/swagger"
	"github.com/saturnino-fabrica-de-software/facestream/internal/api/docs"
	"github.com/saturnino-fabrica-de-software/facestream/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/facestream/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/facestream/internal/database"
	"github.com/saturnino-fabrica-de-software/facestream/internal/ws"
)

type Dependencies struct {
	Hub      *ws.Hub
	Sessions ws.MessageHandler
	// DB is optional; when set /ready pings it.
	DB database.Pinger
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// OutboundBuffer is the per-connection send queue length.
	OutboundBuffer int
	// SessionRateLimit caps session opens per client IP per minute; 0
	// disables it.
	SessionRateLimit int
}

type Router struct {
	app         *fiber.App
	logger      *slog.Logger
	deps        *Dependencies
	rateLimiter *middleware.RateLimiter
}

func NewRouter(logger *slog.Logger, deps *Dependencies) *Router {
	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(logger),
		AppName:               "Facestream",
		DisableStartupMessage: true,
	})

	return &Router{
		app:    app,
		logger: logger,
		deps:   deps,
	}
}

func (r *Router) Setup() {
	r.app.Use(requestid.New())
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(middleware.Logger(r.logger))
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	sw := docs.NewSwagger()
	swagger.SwaggerHandler(r.app, sw.MustToJson())

	var (
		sessions handler.SessionCounter
		db       database.Pinger
	)
	if r.deps != nil && r.deps.Hub != nil {
		sessions = r.deps.Hub
	}
	if r.deps != nil && r.deps.DB != nil {
		db = r.deps.DB
	}
	healthHandler := handler.NewHealthHandler(sessions, db)
	r.app.Get("/health", healthHandler.Health)
	r.app.Get("/ready", healthHandler.Ready)

	if r.deps == nil {
		return
	}

	if r.deps.Metrics != nil {
		r.app.Get("/metrics", adaptor.HTTPHandler(r.deps.Metrics))
	}

	if r.deps.Hub != nil && r.deps.Sessions != nil {
		var handlers []fiber.Handler
		if r.deps.SessionRateLimit > 0 {
			cfg := middleware.DefaultRateLimiterConfig()
			cfg.Max = r.deps.SessionRateLimit
			r.rateLimiter = middleware.NewRateLimiter(cfg)
			handlers = append(handlers, r.rateLimiter.Handler())
		}
		handlers = append(handlers, ws.UpgradeMiddleware(), ws.Handler(r.deps.Hub, r.deps.Sessions, r.deps.OutboundBuffer, r.logger))
		r.app.Get("/ws", handlers...)
	}
}

func (r *Router) App() *fiber.App {
	return r.app
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

// ListenTLS serves HTTPS and WSS with the given certificate pair.
func (r *Router) ListenTLS(addr, certFile, keyFile string) error {
	return r.app.ListenTLS(addr, certFile, keyFile)
}

func (r *Router) Shutdown() error {
	if r.rateLimiter != nil {
		r.rateLimiter.Stop()
	}
	return r.app.Shutdown()
}
