package main

import (
	"context"
	"os"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/user/darkpool/backend/internal/auth"
	"github.com/user/darkpool/backend/internal/config"
	"github.com/user/darkpool/backend/internal/database"
	"github.com/user/darkpool/backend/internal/exchange"
	"github.com/user/darkpool/backend/internal/handlers"
	"github.com/user/darkpool/backend/internal/middleware"
	"github.com/user/darkpool/backend/internal/sealed"
	"github.com/user/darkpool/backend/internal/settlement"
	internalws "github.com/user/darkpool/backend/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	log.Logger = logger

	ctx := context.Background()
	if err := database.InitDB(ctx, cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("connect to database")
	}
	defer database.CloseDB()

	// The plain value service stands in for the homomorphic backend; the
	// engine is identical against either.
	svc := sealed.NewPlain()
	transfers := settlement.NewMemory()

	hub := internalws.NewHub()
	go hub.Run()

	engine := exchange.New(svc, transfers, logger)
	engine.Recorder = database.NewJournal()
	engine.Events = internalws.EngineSink{Hub: hub}
	if err := engine.SetFeeRate(cfg.FeeRateBps); err != nil {
		log.Fatal().Err(err).Msg("configure fee rate")
	}

	tokens := auth.NewService(cfg.JWTSecret)
	authHandler := &handlers.AuthHandler{Tokens: tokens}
	exchangeHandler := &handlers.ExchangeHandler{Engine: engine}
	pairHandler := &handlers.PairHandler{Engine: engine}

	app := fiber.New()

	// --- WebSocket routes ---
	wsGroup := app.Group("/ws")
	wsGroup.Use("/", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	wsGroup.Get("/events", websocket.New(handlers.EventsWSEndpoint(hub)))

	// --- API routes ---
	api := app.Group("/api")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("darkpool API is healthy!")
	})

	// Auth routes (public)
	authGroup := api.Group("/auth")
	authGroup.Post("/signup", authHandler.Signup)
	authGroup.Post("/login", authHandler.Login)

	// Market views (public)
	api.Get("/pairs", pairHandler.ListActivePairs)
	api.Get("/pairs/:id", pairHandler.GetPair)

	// Oracle callback (public; gated by signature verification)
	api.Post("/oracle/callback", exchangeHandler.RevealCallback)

	// --- Protected routes ---
	api.Use(middleware.Protected(tokens))

	api.Post("/deposits", exchangeHandler.Deposit)
	api.Post("/withdrawals", exchangeHandler.Withdraw)
	api.Post("/reveals/balance", exchangeHandler.RequestBalanceReveal)

	ordersGroup := api.Group("/orders")
	ordersGroup.Post("/", exchangeHandler.PlaceOrder)
	ordersGroup.Get("/", exchangeHandler.GetOrders)
	ordersGroup.Get("/:id", exchangeHandler.GetOrderByID)
	ordersGroup.Delete("/:id", exchangeHandler.CancelOrder)

	api.Get("/pairs/:id/orders", pairHandler.GetPairOrders)

	// --- Admin routes ---
	admin := api.Group("/admin", middleware.AdminOnly(cfg.AdminUsername))
	admin.Post("/pairs", pairHandler.CreatePair)
	admin.Post("/pairs/:id/toggle", pairHandler.TogglePair)
	admin.Put("/fee-rate", pairHandler.SetFeeRate)
	admin.Put("/fee-collector", pairHandler.SetFeeCollector)

	log.Info().Str("addr", cfg.ListenAddr).Msg("starting server")
	log.Fatal().Err(app.Listen(cfg.ListenAddr)).Msg("server stopped")
}
