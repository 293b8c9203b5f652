package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/maxnet-vpn/maxnet/internal/application/entitlement/usecases"
	"github.com/maxnet-vpn/maxnet/internal/infrastructure/cache"
	"github.com/maxnet-vpn/maxnet/internal/infrastructure/config"
	"github.com/maxnet-vpn/maxnet/internal/infrastructure/database"
	"github.com/maxnet-vpn/maxnet/internal/infrastructure/ipam"
	"github.com/maxnet-vpn/maxnet/internal/infrastructure/lock"
	"github.com/maxnet-vpn/maxnet/internal/infrastructure/notification"
	"github.com/maxnet-vpn/maxnet/internal/infrastructure/repository"
	"github.com/maxnet-vpn/maxnet/internal/infrastructure/scheduler"
	"github.com/maxnet-vpn/maxnet/internal/infrastructure/wireguard"
	"github.com/maxnet-vpn/maxnet/internal/shared/db"
	"github.com/maxnet-vpn/maxnet/internal/shared/logger"
)

const lockTTL = 30 * time.Second

func main() {
	env := "development"
	if len(os.Args) > 1 {
		env = os.Args[1]
	}
	if envVar := os.Getenv("ENV"); envVar != "" {
		env = envVar
	}

	cfg, err := config.Load(env)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(&cfg.Logger); err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	log := logger.NewLogger()
	log.Infow("starting lifecycle worker", "environment", env)

	if err := database.Init(&cfg.Database); err != nil {
		logger.Fatal("failed to initialize database", "error", err)
	}
	defer database.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Fatal("failed to connect to redis", "error", err)
	}
	log.Infow("redis connection established", "address", cfg.Redis.GetAddr())

	entitlementRepo := repository.NewEntitlementRepository(database.Get(), log)
	allocator := ipam.NewPoolAllocator(database.Get(), log)

	controller := wireguard.NewDeviceController(
		cfg.WireGuard.InterfaceName,
		cfg.WireGuard.ControlTimeoutDuration(),
		log,
	)
	store := wireguard.NewConfigStore(cfg.WireGuard.ConfigPath, log)
	reconciler := wireguard.NewPeerReconciler(controller, store, log)

	mutex := lock.NewRedisMutex(redisClient, lockTTL)
	marker := cache.NewReminderDeduplicator(redisClient)
	notifier := notification.NewTelegramNotifier(cfg.Telegram, log)

	txManager := db.NewTransactionManager(database.Get())

	expireUC := usecases.NewExpireEntitlementsUseCase(
		entitlementRepo, allocator, reconciler, notifier, txManager, log,
	)
	remindUC := usecases.NewRemindExpiringUseCase(
		entitlementRepo, marker, notifier, cfg.Jobs.ReminderLeadDuration(), log,
	)

	expirySched := scheduler.NewExpiryScheduler(expireUC, mutex, cfg.Jobs.ExpiryIntervalDuration(), log)
	reminderSched := scheduler.NewReminderScheduler(remindUC, mutex, cfg.Jobs.ReminderIntervalDuration(), log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	expirySched.Start(ctx)
	reminderSched.Start(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Infow("received signal, shutting down", "signal", sig)

	expirySched.Stop()
	reminderSched.Stop()

	log.Infow("lifecycle worker stopped")
}
