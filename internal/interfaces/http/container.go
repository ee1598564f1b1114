package http

import (
	"context"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/payops/payops/internal/application/ledger"
	"github.com/payops/payops/internal/infrastructure/auth"
	"github.com/payops/payops/internal/infrastructure/cache"
	"github.com/payops/payops/internal/infrastructure/config"
	"github.com/payops/payops/internal/infrastructure/lock"
	"github.com/payops/payops/internal/infrastructure/metrics"
	"github.com/payops/payops/internal/infrastructure/permission"
	"github.com/payops/payops/internal/infrastructure/pubsub"
	"github.com/payops/payops/internal/infrastructure/scheduler"
	"github.com/payops/payops/internal/infrastructure/seeds"
	"github.com/payops/payops/internal/interfaces/http/middleware"
	"github.com/payops/payops/internal/shared/biztime"
	shareddb "github.com/payops/payops/internal/shared/db"
	"github.com/payops/payops/internal/shared/logger"
)

// Container holds all infrastructure components, repositories, use cases,
// handlers and background jobs. It wires everything together and provides
// Shutdown for graceful termination.
type Container struct {
	// Core infrastructure
	engine *gin.Engine
	db     *gorm.DB
	cfg    *config.Config
	log    logger.Interface
	redis  *redis.Client
	txMgr  *shareddb.TransactionManager
	clock  biztime.Clock

	// Repositories
	repos *repositories

	// Use cases
	ucs *allUseCases

	// Handlers
	hdlrs *allHandlers

	// Middlewares
	authMiddleware       *middleware.AuthMiddleware
	permissionMiddleware *middleware.PermissionMiddleware
	rateLimiter          *middleware.RateLimiter

	// Engine infrastructure services
	jwtSvc       *auth.JWTService
	enforcer     *permission.Enforcer
	metrics      *metrics.Engine
	locker       lock.Locker
	ledger       *ledger.Service
	ruleCache    *cache.CachedRoutingRuleRepository
	eventBus     pubsub.EventBus
	ruleInvalBus *pubsub.RuleInvalidationBus
	seeder       *seeds.Seeder

	// Background jobs
	schedulerManager *scheduler.SchedulerManager

	// Cross-instance routing rule invalidation
	ruleInvalCancel   context.CancelFunc
	ruleInvalCancelMu sync.Mutex
}

// NewContainer creates a Container with all dependencies wired together.
// The sections run in dependency order: infrastructure first, then the engine
// use cases, the HTTP surface and finally the scheduled jobs.
func NewContainer(db *gorm.DB, cfg *config.Config, log logger.Interface) *Container {
	c := &Container{
		engine: gin.New(),
		db:     db,
		cfg:    cfg,
		log:    log,
		clock:  biztime.SystemClock(),
	}

	// Section 1: Infrastructure - Redis, Repositories, Caches, Locks, Bus
	c.initInfrastructure()

	// Section 2: Engine - Routing, Retry, Dunning, Suspension, Outbox
	c.initEngine()

	// Section 3: HTTP - Auth, Permissions, Handlers
	c.initHTTP()

	// Section 4: Scheduler - Sweeps, Outbox Drain, Maintenance
	c.initScheduler()

	return c
}

// Engine returns the gin engine with all routes registered by SetupRoutes.
func (c *Container) Engine() *gin.Engine {
	return c.engine
}

// Scheduler returns the process scheduler. Jobs are registered but not started.
func (c *Container) Scheduler() *scheduler.SchedulerManager {
	return c.schedulerManager
}

// Seeder applies seed files through the regular use cases.
func (c *Container) Seeder() *seeds.Seeder {
	return c.seeder
}

// JWT returns the token service used by the API.
func (c *Container) JWT() *auth.JWTService {
	return c.jwtSvc
}
