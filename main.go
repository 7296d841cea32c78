// Package main provides the main entry point for the Kaminari web push service
//
// @title Kaminari Push API
// @version 1.0
// @description Web push dispatcher: subscriptions, broadcasts, A/B campaigns and automation flows.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/amirphl/Kaminari/app/bootstrap"
	"github.com/amirphl/Kaminari/app/handlers"
	"github.com/amirphl/Kaminari/app/middleware"
	"github.com/amirphl/Kaminari/app/router"
	"github.com/amirphl/Kaminari/app/scheduler"
	"github.com/amirphl/Kaminari/config"
	"github.com/amirphl/Kaminari/utils"
	"github.com/gofiber/fiber/v3"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, closeLog := bootstrap.NewLogger(cfg.Logging)
	defer closeLog()
	logger.Printf("Starting Kaminari %s (%s)...", cfg.Deployment.Version, cfg.Deployment.Environment)

	app, err := initializeApplication(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize application: %v", err)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := app.router.Start(address); err != nil {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	logger.Println("Shutting down gracefully...")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Printf("Error during shutdown: %v", err)
	}

	logger.Println("Server stopped")
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig, logger *log.Logger) (*Application, error) {
	var stopFuncs []func()

	db, err := bootstrap.InitializeDatabase(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	rc, err := bootstrap.InitializeCache(cfg.Cache, logger)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		stopFuncs = append(stopFuncs, bootstrap.StartCacheHealthMonitor(context.Background(), rc, 0, logger))
	} else {
		logger.Println("Redis disabled: send and tick locks are process-local")
	}

	repos := bootstrap.NewRepositories(db)
	push := bootstrap.NewPushService(cfg.Push, logger)

	flows, err := bootstrap.NewFlows(cfg, repos, rc, push, logger)
	if err != nil {
		return nil, err
	}
	logger.Printf("Token service initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	timeout := cfg.Server.RequestTimeout
	h := router.Handlers{
		Push:       handlers.NewPushHandler(flows.Subscribers, timeout),
		Broadcast:  handlers.NewBroadcastHandler(flows.Broadcast, flows.History, timeout),
		ABCampaign: handlers.NewABCampaignHandler(flows.ABCampaign, timeout),
		Automation: handlers.NewAutomationHandler(flows.Automation, cfg.Scheduler.AutomationTimeout),
		Admin:      handlers.NewAdminHandler(flows.AdminAuth, timeout),
	}

	authMiddleware := middleware.NewAuthMiddleware(flows.Tokens, flows.AdminAuth, cfg.Admin.CronSecret)

	appRouter := router.NewFiberRouter(cfg, h, authMiddleware)

	if cfg.Scheduler.AutomationEnabled {
		schedLogger, closer := utils.NewLogger(cfg.Logging, "scheduler")
		sched, err := scheduler.NewAutomationScheduler(flows.Automation, cfg.Scheduler, schedLogger)
		if err != nil {
			return nil, err
		}
		stopScheduler := sched.Start(context.Background())
		stopFuncs = append(stopFuncs, stopScheduler, func() { _ = closer.Close() })
	}

	return &Application{
		router:    appRouter,
		config:    cfg,
		server:    appRouter.GetApp(),
		stopFuncs: stopFuncs,
	}, nil
}
