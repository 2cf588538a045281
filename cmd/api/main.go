package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/inventario-core/internal/application/inventory"
	"github.com/jhoicas/inventario-core/internal/infrastructure/cache"
	"github.com/jhoicas/inventario-core/internal/infrastructure/metrics"
	"github.com/jhoicas/inventario-core/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/inventario-core/internal/interfaces/http"
	"github.com/jhoicas/inventario-core/pkg/config"
	"github.com/jhoicas/inventario-core/pkg/jwt"
	"github.com/jhoicas/inventario-core/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	signer, err := jwt.NewSigner(cfg.JWT.Secret, cfg.JWT.Issuer, time.Duration(cfg.JWT.Expiration)*time.Minute)
	if err != nil {
		log.Fatal().Err(err).Msg("configurar JWT")
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB, postgres.WithSlowQueryLog(log, cfg.DB.SlowQuery))
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	txRunner := postgres.NewTxRunner(pool, cfg.Inventory.StatementTimeout)
	opts := []inventory.Option{inventory.WithMaxKitDepth(cfg.Inventory.KitMaxDepth)}

	var invMetrics *metrics.InventoryMetrics
	if cfg.Metrics.Enabled {
		invMetrics = metrics.New(true)
		opts = append(opts, inventory.WithMetrics(invMetrics))
	}

	// Caché de disponibilidad opcional; sin Redis las lecturas van siempre a la BD.
	if cfg.Redis.Enabled() {
		client, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis no disponible, caché desactivada")
		} else {
			defer client.Close()
			opts = append(opts, inventory.WithAvailabilityCache(cache.NewRedisAvailabilityCache(client, cfg.Redis.TTL, log)))
		}
	}

	coord := inventory.NewStockCoordinator(txRunner, postgres.NewReadRepositories(pool), log, opts...)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Inventario Core API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		if err := pool.Ping(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "down", "service": cfg.App.Name})
		}
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	deps := httpRouter.RouterDeps{
		Coordinator: coord,
		Sales:       inventory.NewSaleService(coord),
		Purchases:   inventory.NewPurchaseService(coord),
		Reconciler:  inventory.NewReconciler(txRunner, log),
		Log:         log,
		Auth:        signer,
		MetricsPath: cfg.Metrics.Path,
	}
	if invMetrics != nil {
		deps.MetricsHandler = invMetrics.Handler()
	}
	httpRouter.Router(app, deps)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("apagando: se terminan las transacciones en curso")

	// las transacciones de stock no se cortan a la mitad; Fiber espera a los handlers activos
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}
	log.Info().Msg("aplicación detenida")
}
