// Package bootstrap opens the stores and assembles the business flows shared by the
// HTTP server and the operator CLI
package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/amirphl/Kaminari/app/services"
	businessflow "github.com/amirphl/Kaminari/business_flow"
	"github.com/amirphl/Kaminari/config"
	"github.com/amirphl/Kaminari/repository"
	"github.com/amirphl/Kaminari/utils"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// InitializeDatabase opens the postgres pool and verifies connectivity
func InitializeDatabase(cfg config.DatabaseConfig, logger *log.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = log.Default()
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(logger, gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// InitializeCache connects to redis when the cache is enabled; it returns nil, nil otherwise
func InitializeCache(cfg config.CacheConfig, logger *log.Logger) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}
	if logger == nil {
		logger = log.Default()
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Printf("Redis connection established (db=%d)", cfg.RedisDB)
	return rc, nil
}

// StartCacheHealthMonitor pings redis periodically; the returned function stops it
func StartCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration, logger *log.Logger) func() {
	if client == nil {
		return func() {}
	}
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					logger.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// Repositories groups the stores
type Repositories struct {
	Subscribers   repository.SubscriberRepository
	Notifications repository.NotificationRepository
	ABCampaigns   repository.ABCampaignRepository
	Flows         repository.AutomationFlowRepository
	Markers       repository.AutomationSentMarkerRepository
	Audit         repository.AuditLogRepository
}

// NewRepositories builds every repository on db
func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Subscribers:   repository.NewSubscriberRepository(db),
		Notifications: repository.NewNotificationRepository(db),
		ABCampaigns:   repository.NewABCampaignRepository(db),
		Flows:         repository.NewAutomationFlowRepository(db),
		Markers:       repository.NewAutomationSentMarkerRepository(db),
		Audit:         repository.NewAuditLogRepository(db),
	}
}

// Flows groups the business flows
type Flows struct {
	Subscribers businessflow.SubscriberFlow
	Broadcast   businessflow.BroadcastFlow
	History     businessflow.NotificationHistoryFlow
	ABCampaign  businessflow.ABCampaignFlow
	Automation  businessflow.AutomationFlow
	AdminAuth   businessflow.AdminAuthFlow
	Tokens      services.TokenService
}

// NewPushService builds the delivery engine on the real web push transport
func NewPushService(cfg config.PushConfig, logger *log.Logger) services.PushService {
	return services.NewPushService(
		services.NewWebPushTransport(cfg),
		services.PushServiceOptions{
			Workers:        cfg.Workers,
			RatePerSecond:  cfg.RatePerSecond,
			RateBurst:      cfg.RateBurst,
			RequestTimeout: cfg.RequestTimeout,
		},
		logger,
	)
}

// NewFlows wires repositories, redis (may be nil) and the push engine into the flows
func NewFlows(cfg *config.ProductionConfig, repos Repositories, rc *redis.Client, push services.PushService, logger *log.Logger) (*Flows, error) {
	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	locker := businessflow.NewLocker(rc, cfg.Cache)
	countCache := businessflow.NewSubscriberCountCache(rc, cfg.Cache)
	auditor := businessflow.NewAuditor(repos.Audit, logger)

	automation := businessflow.NewAutomationFlow(
		repos.Flows,
		repos.Markers,
		repos.Subscribers,
		push,
		cfg.Push.Icon,
		cfg.Push.Badge,
		logger,
	)

	broadcast := businessflow.NewBroadcastFlow(
		repos.Subscribers,
		repos.Notifications,
		push,
		countCache,
		cfg.Push.Icon,
		cfg.Push.Badge,
		logger,
	)

	abCampaign := businessflow.NewABCampaignFlow(
		repos.ABCampaigns,
		repos.Subscribers,
		push,
		businessflow.NewTimeSeededPartitioner(),
		locker,
		cfg.Scheduler.LockTTL,
		logger,
	)

	return &Flows{
		Subscribers: businessflow.NewSubscriberFlow(repos.Subscribers, countCache, cfg.Push.VAPIDPublicKey, logger),
		Broadcast:   businessflow.WithBroadcastAudit(broadcast, auditor),
		History:     businessflow.NewNotificationHistoryFlow(repos.Notifications),
		ABCampaign:  businessflow.WithABCampaignAudit(abCampaign, auditor),
		Automation: businessflow.WithTickLock(
			businessflow.WithAutomationAudit(automation, auditor),
			locker,
			cfg.Scheduler.LockTTL,
			logger,
		),
		AdminAuth: businessflow.NewAdminAuthFlow(cfg.Admin, tokenService, auditor, logger),
		Tokens:    tokenService,
	}, nil
}

// NewLogger returns the process logger and a closer for its rotating file
func NewLogger(cfg config.LoggingConfig) (*log.Logger, func()) {
	logger, closer := utils.NewLogger(cfg, "")
	log.SetOutput(logger.Writer())
	log.SetFlags(utils.LogFlags)
	return logger, func() { _ = closer.Close() }
}
