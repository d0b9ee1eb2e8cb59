package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"

	"coursepay_backend/internals/bootstrap"
	"coursepay_backend/internals/configs"
	database "coursepay_backend/internals/databases"
	"coursepay_backend/internals/features/payment/zoyktech/scheduler"
	helper "coursepay_backend/internals/helpers"
	middlewares "coursepay_backend/internals/middlewares"
	routes "coursepay_backend/internals/route"
)

func main() {
	configs.LoadEnv()

	app := fiber.New(fiber.Config{
		// 🚀 JSON super cepat
		JSONEncoder:             sonic.Marshal,
		JSONDecoder:             sonic.Unmarshal,
		DisableStartupMessage:   true,
		ErrorHandler:            helper.ErrorHandler,
		ProxyHeader:             fiber.HeaderXForwardedFor,
		EnableTrustedProxyCheck: true,
		TrustedProxies:          []string{"0.0.0.0/0"},
	})

	app.Use(compress.New(compress.Config{Level: compress.LevelDefault}))
	middlewares.SetupMiddlewares(app)
	app.Use(middlewares.GlobalRateLimiter())

	// 🔌 DB connect + pool + warm-up + migrate
	database.ConnectDB()
	database.TunePool()
	database.WarmUpQueries()
	database.AutoMigrate(database.DB, bootstrap.Models()...)

	svc, err := bootstrap.Build(context.Background(), database.DB)
	if err != nil {
		log.Fatalf("❌ wiring failed: %v", err)
	}

	// ⏱ sweep scheduler setelah DB siap
	sweepCron, err := scheduler.StartSweepCron(svc.SweepConfig, svc.Sweeper)
	if err != nil {
		log.Fatalf("❌ sweep cron: %v", err)
	}

	// ✅ Routes
	routes.SetupRoutes(app, database.DB, svc)

	// 🔒 Keep-Alive & timeout koneksi server
	app.Server().ReadTimeout = 15 * time.Second
	app.Server().WriteTimeout = 30 * time.Second
	app.Server().IdleTimeout = 90 * time.Second

	port := configs.GetEnv("PORT", "3000")

	// Start server non-blocking
	go func() {
		log.Printf("✅ Listening on :%s", port)
		if err := app.Listen("0.0.0.0:" + port); err != nil {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown: HTTP → cron → mail → DB
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("🛑 shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = app.ShutdownWithContext(ctx)
	scheduler.StopSweepCron(ctx, sweepCron)
	svc.Close(ctx)
	database.Close()
}
