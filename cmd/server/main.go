package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fruteria-backend/internal/cache"
	"fruteria-backend/internal/config"
	"fruteria-backend/internal/database"
	"fruteria-backend/internal/httpx"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func setupLogger(cfg *config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.IsProduction() {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("configuración inválida")
	}
	setupLogger(cfg)

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("base de datos")
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("migración")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// redis es opcional: si no responde, las estadísticas van sin caché
	statsCache, err := cache.New(ctx, cfg.RedisURL, cfg.StatsCacheTTL)
	if err != nil {
		log.Warn().Err(err).Msg("redis no disponible, estadísticas sin caché")
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: httpx.ErrorHandler,
		AppName:      "fruteria-backend",
	})

	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(httpx.RequestLogger())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	}))

	registerRoutes(app, cfg, db, statsCache)

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Str("env", cfg.AppEnv).Msg("servidor escuchando")
		if err := app.Listen(":" + cfg.HTTPPort); err != nil {
			log.Error().Err(err).Msg("servidor detenido")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("apagando servidor")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
	if err := statsCache.Close(); err != nil {
		log.Error().Err(err).Msg("cerrando redis")
	}
	if err := database.Close(db); err != nil {
		log.Error().Err(err).Msg("cerrando base de datos")
	}
}
