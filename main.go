package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"groupbuy-backend/config"
	"groupbuy-backend/database"
	"groupbuy-backend/events"
	"groupbuy-backend/handlers"
	"groupbuy-backend/lock"
	"groupbuy-backend/logging"
	"groupbuy-backend/metrics"
	"groupbuy-backend/middleware"
	"groupbuy-backend/retry"
	"groupbuy-backend/services"
	"groupbuy-backend/settlement"
	"groupbuy-backend/store"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logging.Setup(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		fatal("Invalid configuration", err)
	}

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		fatal("Failed to connect to database", err)
	}
	st := store.New(db)

	// Connect to Redis (optional, won't crash if unavailable)
	rdb := database.ConnectRedis(cfg)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	publisher := buildPublisher(cfg, st, rdb)
	defer publisher.Close()

	engine := settlement.NewEngine(st, settlement.Options{
		FeeRate:       cfg.PlatformFeeRate,
		PenaltyRate:   cfg.NoShowPenaltyRate,
		GroupOnSettle: cfg.GroupOnSettle,
		Retry: retry.Policy{
			MaxAttempts: cfg.SettleMaxAttempts,
			BaseDelay:   cfg.SettleBaseDelay,
			MaxDelay:    cfg.SettleMaxDelay,
		},
		Locker:    lock.NewLocker(rdb, cfg.SettleLockTTL),
		Publisher: publisher,
		Metrics:   m,
	})
	h := handlers.New(st, engine, handlers.Options{
		Collateral:     cfg.CollateralAmount,
		ReconcileSplit: cfg.SplitReconcile,
	})

	// Setup router
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(), middleware.CORSMiddleware())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": cfg.AppName,
		})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))

	api := r.Group("/api")
	api.Use(middleware.AuthRequired(middleware.NewJWTManager(cfg.JWTSecret, 24*time.Hour)))
	h.Register(api)

	if cfg.GatewaySecret != "" {
		internal := r.Group("/internal")
		internal.Use(middleware.ScopeRequired(middleware.NewJWTManager(cfg.GatewaySecret, time.Hour), middleware.ScopeDeposit))
		h.RegisterInternal(internal)
	} else {
		slog.Warn("GATEWAY_SECRET not set, wallet deposits are disabled")
	}

	// Start server
	addr := "0.0.0.0:" + cfg.Port
	slog.Info("Server starting", "service", cfg.AppName, "addr", addr, "events", cfg.EventsBackend)
	if err := r.Run(addr); err != nil {
		fatal("Failed to start server", err)
	}
}

// buildPublisher fans events out to the configured broker and to member
// notifications.
func buildPublisher(cfg *config.Config, st *store.Store, rdb *redis.Client) events.Publisher {
	var multi events.Multi

	switch cfg.EventsBackend {
	case "redis":
		if rdb != nil {
			multi = append(multi, events.NewRedisPublisher(rdb, events.DefaultChannel))
		} else {
			slog.Warn("EVENTS_BACKEND=redis but redis is unavailable, events will only be logged")
		}
	case "kafka":
		multi = append(multi, events.NewKafkaPublisher(events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)))
	}
	if len(multi) == 0 {
		multi = append(multi, events.Log{})
	}

	var push services.PushSender
	if cfg.FirebaseCredPath != "" {
		fcm, err := services.NewFCMSender(context.Background(), cfg.FirebaseCredPath)
		if err != nil {
			slog.Warn("Firebase not initialized", "error", err)
		} else {
			push = fcm
		}
	}
	var email services.EmailSender
	if cfg.SendGridAPIKey != "" {
		email = services.NewSendGridSender(cfg.SendGridAPIKey, cfg.SendGridFrom, cfg.AppName)
	}
	if push != nil || email != nil {
		multi = append(multi, services.NewNotificationService(st, push, email, cfg.AppName))
	}
	return multi
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
