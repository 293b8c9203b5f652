package http

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/maxnet-vpn/maxnet/internal/application/entitlement/usecases"
	"github.com/maxnet-vpn/maxnet/internal/domain/entitlement"
	"github.com/maxnet-vpn/maxnet/internal/infrastructure/config"
	"github.com/maxnet-vpn/maxnet/internal/infrastructure/ipam"
	"github.com/maxnet-vpn/maxnet/internal/infrastructure/lock"
	"github.com/maxnet-vpn/maxnet/internal/infrastructure/notification"
	"github.com/maxnet-vpn/maxnet/internal/infrastructure/ratelimit"
	"github.com/maxnet-vpn/maxnet/internal/infrastructure/repository"
	"github.com/maxnet-vpn/maxnet/internal/infrastructure/wireguard"
	"github.com/maxnet-vpn/maxnet/internal/interfaces/http/handlers"
	shareddb "github.com/maxnet-vpn/maxnet/internal/shared/db"
	"github.com/maxnet-vpn/maxnet/internal/shared/logger"
)

// Container wires the HTTP surface together: infrastructure clients,
// repositories, use cases and handlers. It owns the Redis client and
// releases it on Shutdown; the database handle is owned by the caller.
type Container struct {
	engine *gin.Engine
	db     *gorm.DB
	cfg    *config.Config
	log    logger.Interface
	redis  *redis.Client

	// Repositories
	entitlementRepo entitlement.Repository
	eventRepo       *repository.ProcessedEventRepositoryImpl
	promoRepo       entitlement.PromoCodeRepository

	// Infrastructure services
	allocator  *ipam.PoolAllocator
	keyGen     *wireguard.KeyGenerator
	reconciler *wireguard.PeerReconciler
	renderer   *wireguard.ClientConfigBuilder
	mutex      *lock.RedisMutex
	limiter    *ratelimit.RedisRateLimiter
	notifier   *notification.TelegramNotifier
	txManager  *shareddb.TransactionManager

	// Use cases
	grantNewUC    *usecases.GrantNewUseCase
	cancelUC      *usecases.CancelUseCase
	manualGrantUC *usecases.ManualGrantUseCase
	activateUC    *usecases.AdminActivateUseCase
	deactivateUC  *usecases.AdminDeactivateUseCase
	deleteUC      *usecases.AdminDeleteUseCase
	getUC         *usecases.GetEntitlementUseCase
	listRecentUC  *usecases.ListRecentUseCase
	latestUC      *usecases.GetLatestActiveForSubjectUseCase
	poolStatsUC   *usecases.PoolStatsUseCase
	createPromoUC *usecases.CreatePromoCodesUseCase
	listPromoUC   *usecases.ListPromoCodesUseCase
	redeemPromoUC *usecases.RedeemPromoUseCase

	// Handlers
	webhookHandler *handlers.WebhookHandler
	adminHandler   *handlers.AdminHandler
	healthHandler  *handlers.HealthHandler
}

// NewContainer creates a Container with all dependencies wired together.
func NewContainer(db *gorm.DB, cfg *config.Config, log logger.Interface) (*Container, error) {
	c := &Container{
		engine: gin.New(),
		db:     db,
		cfg:    cfg,
		log:    log,
	}

	if err := c.initInfrastructure(); err != nil {
		return nil, err
	}
	c.initUseCases()
	c.initHandlers()

	return c, nil
}

func (c *Container) initInfrastructure() error {
	c.redis = redis.NewClient(&redis.Options{
		Addr:     c.cfg.Redis.GetAddr(),
		Password: c.cfg.Redis.Password,
		DB:       c.cfg.Redis.DB,
	})
	if err := c.redis.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	c.log.Infow("redis connection established", "address", c.cfg.Redis.GetAddr())

	c.entitlementRepo = repository.NewEntitlementRepository(c.db, c.log)
	c.eventRepo = repository.NewProcessedEventRepository(c.db, c.log)
	c.promoRepo = repository.NewPromoCodeRepository(c.db, c.log)

	c.allocator = ipam.NewPoolAllocator(c.db, c.log)
	c.keyGen = wireguard.NewKeyGenerator()
	controller := wireguard.NewDeviceController(
		c.cfg.WireGuard.InterfaceName,
		c.cfg.WireGuard.ControlTimeoutDuration(),
		c.log,
	)
	store := wireguard.NewConfigStore(c.cfg.WireGuard.ConfigPath, c.log)
	c.reconciler = wireguard.NewPeerReconciler(controller, store, c.log)
	c.renderer = wireguard.NewClientConfigBuilder(&c.cfg.WireGuard)
	c.mutex = lock.NewRedisMutex(c.redis, lockTTL)
	c.limiter = ratelimit.NewRedisRateLimiter(c.redis)
	c.notifier = notification.NewTelegramNotifier(c.cfg.Telegram, c.log)
	c.txManager = shareddb.NewTransactionManager(c.db)

	return nil
}

func (c *Container) initUseCases() {
	c.grantNewUC = usecases.NewGrantNewUseCase(
		c.entitlementRepo, c.eventRepo, c.allocator, c.keyGen,
		c.reconciler, c.renderer, c.mutex, c.notifier, c.log,
	)
	c.cancelUC = usecases.NewCancelUseCase(
		c.entitlementRepo, c.eventRepo, c.allocator, c.reconciler,
		c.notifier, c.txManager, c.log,
	)
	c.manualGrantUC = usecases.NewManualGrantUseCase(
		c.entitlementRepo, c.allocator, c.keyGen,
		c.reconciler, c.renderer, c.mutex, c.notifier, c.log,
	)
	c.activateUC = usecases.NewAdminActivateUseCase(
		c.entitlementRepo, c.allocator, c.reconciler, c.renderer, c.log,
	)
	c.deactivateUC = usecases.NewAdminDeactivateUseCase(
		c.entitlementRepo, c.allocator, c.reconciler, c.log,
	)
	c.deleteUC = usecases.NewAdminDeleteUseCase(
		c.entitlementRepo, c.allocator, c.reconciler, c.log,
	)
	c.getUC = usecases.NewGetEntitlementUseCase(c.entitlementRepo)
	c.listRecentUC = usecases.NewListRecentUseCase(c.entitlementRepo)
	c.latestUC = usecases.NewGetLatestActiveForSubjectUseCase(c.entitlementRepo)
	c.poolStatsUC = usecases.NewPoolStatsUseCase(c.allocator)
	c.createPromoUC = usecases.NewCreatePromoCodesUseCase(c.promoRepo, c.log)
	c.listPromoUC = usecases.NewListPromoCodesUseCase(c.promoRepo)
	c.redeemPromoUC = usecases.NewRedeemPromoUseCase(
		c.entitlementRepo, c.promoRepo, c.mutex, c.notifier, c.txManager, c.log,
	)
}

func (c *Container) initHandlers() {
	c.webhookHandler = handlers.NewWebhookHandler(
		c.grantNewUC, c.cancelUC, c.cfg.Webhook.Secret, c.log,
	)
	c.adminHandler = handlers.NewAdminHandler(
		c.manualGrantUC, c.activateUC, c.deactivateUC, c.deleteUC,
		c.getUC, c.listRecentUC, c.latestUC, c.poolStatsUC,
		c.createPromoUC, c.listPromoUC, c.redeemPromoUC, c.log,
	)
	c.healthHandler = handlers.NewHealthHandler(c.db)
}

// SeedPool ensures every address of the configured client network has a pool
// row, preserving existing allocation state. Run once at startup.
func (c *Container) SeedPool(ctx context.Context) error {
	added, err := c.allocator.Seed(ctx, c.cfg.WireGuard.ClientNetwork, c.cfg.WireGuard.ServerAddress)
	if err != nil {
		return fmt.Errorf("failed to seed address pool: %w", err)
	}
	if added > 0 {
		c.log.Infow("address pool seeded", "added", added, "network", c.cfg.WireGuard.ClientNetwork)
	}
	return nil
}

// Shutdown releases resources owned by the container.
func (c *Container) Shutdown() {
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			c.log.Warnw("failed to close redis client", "error", err)
		}
	}
}
