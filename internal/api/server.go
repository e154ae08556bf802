package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/naperu/wabarelay/internal/domain"
	"github.com/naperu/wabarelay/internal/media"
	"github.com/naperu/wabarelay/internal/service"
	"github.com/naperu/wabarelay/internal/ws"
	"github.com/naperu/wabarelay/pkg/config"
	"go.uber.org/zap"
)

type Server struct {
	app      *fiber.App
	cfg      *config.Config
	services *service.Services
	hub      *ws.Hub
	files    *media.Store
	logger   *zap.Logger

	// ctx ends long-lived streams on shutdown.
	ctx    context.Context
	cancel context.CancelFunc
}

func NewServer(cfg *config.Config, services *service.Services, hub *ws.Hub, files *media.Store, log *zap.Logger) *Server {
	log = log.Named("api")
	app := fiber.New(fiber.Config{
		AppName:               "wabarelay",
		BodyLimit:             cfg.MaxUploadSize,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(log),
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "15:04:05",
	}))

	app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             "DENY",
		ReferrerPolicy:            "strict-origin-when-cross-origin",
		CrossOriginEmbedderPolicy: "unsafe-none",
		CrossOriginOpenerPolicy:   "same-origin",
		// Staged media is fetched by the gateway and embedded by viewers.
		CrossOriginResourcePolicy: "cross-origin",
		PermissionPolicy:          "geolocation=(), microphone=(), camera=()",
	}))

	// 500 requests per minute per IP, streams and gateway traffic excluded
	app.Use(limiter.New(limiter.Config{
		Max:        500,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"error":   "too many requests, please slow down",
			})
		},
		Next: func(c *fiber.Ctx) bool {
			path := c.Path()
			return path == "/webhook" || path == "/api/events" ||
				strings.HasPrefix(path, "/ws") || strings.HasPrefix(path, "/uploads/")
		},
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.Origins(), ","),
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Upgrade,Connection",
	}))

	ctx, cancel := context.WithCancel(context.Background())
	server := &Server{
		app:      app,
		cfg:      cfg,
		services: services,
		hub:      hub,
		files:    files,
		logger:   log,
		ctx:      ctx,
		cancel:   cancel,
	}

	server.setupRoutes()
	return server
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, domain.ErrBadInput):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrUpstream):
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

func errorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := statusFor(err)
		if code >= fiber.StatusInternalServerError {
			log.Error("request failed",
				zap.String("method", c.Method()), zap.String("path", c.Path()), zap.Int("status", code), zap.Error(err))
		}
		return c.Status(code).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}
}

func (s *Server) setupRoutes() {
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"viewers": s.hub.Count(),
			"time":    time.Now(),
		})
	})

	// Gateway webhook
	s.app.Get("/webhook", s.handleVerifyWebhook)
	s.app.Post("/webhook", s.handleWebhook)

	api := s.app.Group("/api")

	api.Get("/events", s.handleEvents)

	api.Get("/chats", s.handleGetChats)
	api.Get("/contacts", s.handleGetContacts)

	chat := api.Group("/chat")
	chat.Post("/pin", s.handleToggle("isPinned"))
	chat.Post("/mute", s.handleToggle("isMuted"))
	chat.Post("/block", s.handleToggle("isBlocked"))
	chat.Post("/add-participant/:waId", s.handleAddParticipant)
	chat.Post("/remove-participant/:waId", s.handleRemoveParticipant)

	messages := api.Group("/messages")
	messages.Post("/", s.handleSaveMessage)
	messages.Post("/delete", s.handleDeleteMessage)
	messages.Post("/react", s.handleReact)
	messages.Get("/:chatId", s.handleGetMessages)

	// Files
	s.app.Get("/download/:name", s.handleDownload)
	s.app.Static("/uploads", s.files.Root())

	// WebSocket route
	s.app.Use("/ws", wsUpgrade)
	s.app.Get("/ws", websocket.New(s.hub.Serve))
}

// wsUpgrade rejects plain HTTP requests to the WebSocket route.
func wsUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown ends open streams and stops accepting requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	return s.app.ShutdownWithContext(ctx)
}
