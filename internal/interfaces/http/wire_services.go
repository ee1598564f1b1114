package http

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	dunningUsecases "github.com/payops/payops/internal/application/dunning/usecases"
	ingestUsecases "github.com/payops/payops/internal/application/ingest/usecases"
	"github.com/payops/payops/internal/application/ledger"
	policyUsecases "github.com/payops/payops/internal/application/policy/usecases"
	retryUsecases "github.com/payops/payops/internal/application/retry/usecases"
	routingUsecases "github.com/payops/payops/internal/application/routing/usecases"
	sideeffectUsecases "github.com/payops/payops/internal/application/sideeffect/usecases"
	suspensionUsecases "github.com/payops/payops/internal/application/suspension/usecases"
	"github.com/payops/payops/internal/domain/shared/services"
	"github.com/payops/payops/internal/infrastructure/auth"
	"github.com/payops/payops/internal/infrastructure/cache"
	"github.com/payops/payops/internal/infrastructure/config"
	"github.com/payops/payops/internal/infrastructure/lifecycle"
	"github.com/payops/payops/internal/infrastructure/lock"
	"github.com/payops/payops/internal/infrastructure/metrics"
	"github.com/payops/payops/internal/infrastructure/notification"
	"github.com/payops/payops/internal/infrastructure/permission"
	"github.com/payops/payops/internal/infrastructure/pubsub"
	"github.com/payops/payops/internal/infrastructure/scheduler"
	"github.com/payops/payops/internal/infrastructure/seeds"
	"github.com/payops/payops/internal/interfaces/http/middleware"
	shareddb "github.com/payops/payops/internal/shared/db"
	"github.com/payops/payops/internal/shared/goroutine"
	"github.com/payops/payops/internal/shared/logger"
)

const (
	cacheKeyPrefix       = "payops:"
	paymentLinkRetention = 30 * 24 * time.Hour
)

// ============================================================
// Section 1: Infrastructure - Redis, Repositories, Caches, Locks, Bus
// ============================================================

// initInfrastructure connects Redis, builds the repositories and puts the
// read-heavy ones behind their caches.
func (c *Container) initInfrastructure() {
	cfg := c.cfg
	log := c.log

	c.redis = initRedis(cfg, log)
	c.txMgr = shareddb.NewTransactionManager(c.db)
	c.metrics = metrics.New()
	c.locker = lock.NewRedisLocker(c.redis, cacheKeyPrefix, cfg.Engine.LockTTL, log)

	c.repos = newRepositories(c.db, log)

	c.repos.policyRepo = cache.NewCachedRetryPolicyRepository(c.repos.policyRepo, c.redis, cacheKeyPrefix, cfg.Engine.PolicyCacheTTL, log)
	c.repos.configRepo = cache.NewCachedDunningConfigRepository(c.repos.configRepo, c.redis, cacheKeyPrefix, cfg.Engine.PolicyCacheTTL, log)

	c.ruleInvalBus = pubsub.NewRuleInvalidationBus(c.redis, cacheKeyPrefix, log)
	c.ruleCache = cache.NewCachedRoutingRuleRepository(c.repos.ruleRepo, cfg.Engine.RoutingCacheSize, cfg.Engine.PolicyCacheTTL, log)
	c.ruleCache.SetPublisher(c.ruleInvalBus)
	c.repos.ruleRepo = c.ruleCache

	c.ledger = ledger.NewService(c.repos.auditRepo, c.repos.idempotencyRepo, c.repos.alertRepo, c.clock, log).
		WithAlertDeduplication(cache.NewAlertDeduplicator(c.redis, cacheKeyPrefix), cfg.Engine.AlertDedupWindow)

	bus, err := pubsub.NewEventBus(context.Background(), cfg.EventBus, c.redis, log)
	if err != nil {
		log.Fatalw("failed to create event bus", "error", err, "driver", cfg.EventBus.Driver)
	}
	c.eventBus = bus

	c.startRuleInvalidationSubscriber()
}

func initRedis(cfg *config.Config, log logger.Interface) *redis.Client {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalw("failed to connect to Redis", "error", err)
	}
	log.Infow("Redis connection established successfully")

	return redisClient
}

// startRuleInvalidationSubscriber drops cached routing rules changed by
// other instances.
func (c *Container) startRuleInvalidationSubscriber() {
	ctx, cancel := context.WithCancel(context.Background())
	c.ruleInvalCancelMu.Lock()
	c.ruleInvalCancel = cancel
	c.ruleInvalCancelMu.Unlock()

	goroutine.SafeGo(c.log, "rule-invalidation-subscriber", func() {
		err := c.ruleInvalBus.Subscribe(ctx, c.ruleCache.Invalidate)
		logSubscriberExit(c.log, "rule invalidation", err)
	})
}

// ============================================================
// Section 2: Engine - Routing, Retry, Dunning, Suspension, Outbox
// ============================================================

// initEngine builds the engine use cases. Every state change goes through
// the transaction manager and the ledger.
func (c *Container) initEngine() {
	cfg := c.cfg.Engine
	log := c.log
	r := c.repos
	ucs := &allUseCases{}
	c.ucs = ucs

	// Routing
	ucs.evaluateRoutingUC = routingUsecases.NewEvaluateRoutingUseCase(r.ruleRepo, r.overrideRepo, r.decisionRepo, c.ledger, c.metrics, c.clock, log)
	ucs.testRoutingUC = routingUsecases.NewTestRoutingUseCase(r.ruleRepo, r.overrideRepo, c.clock, log)
	ucs.createRuleUC = routingUsecases.NewCreateRoutingRuleUseCase(r.ruleRepo, c.txMgr, c.ledger, log)
	ucs.updateRuleUC = routingUsecases.NewUpdateRoutingRuleUseCase(r.ruleRepo, c.txMgr, c.ledger, log)
	ucs.deleteRuleUC = routingUsecases.NewDeleteRoutingRuleUseCase(r.ruleRepo, c.txMgr, c.ledger, log)
	ucs.listRulesUC = routingUsecases.NewListRoutingRulesUseCase(r.ruleRepo, log)
	ucs.upsertOverrideUC = routingUsecases.NewUpsertProviderOverrideUseCase(r.overrideRepo, c.txMgr, c.ledger, log)
	ucs.deleteOverrideUC = routingUsecases.NewDeleteProviderOverrideUseCase(r.overrideRepo, c.txMgr, c.ledger, log)

	// Retry
	ucs.openScheduleUC = retryUsecases.NewOpenRetryScheduleUseCase(r.policyRepo, r.scheduleRepo, c.txMgr, c.ledger, c.metrics, c.clock, log)
	ucs.recordAttemptUC = retryUsecases.NewRecordAttemptUseCase(r.scheduleRepo, r.attemptRepo, c.txMgr, c.locker, c.ledger, c.metrics, c.clock, log)
	ucs.applySignalUC = retryUsecases.NewApplySignalUseCase(r.scheduleRepo, r.attemptRepo, c.txMgr, c.locker, c.ledger, c.metrics, c.clock, log)
	ucs.resolveScheduleUC = retryUsecases.NewResolveRetryScheduleUseCase(r.scheduleRepo, r.attemptRepo, c.txMgr, c.locker, c.ledger, c.metrics, c.clock, log)
	ucs.getScheduleUC = retryUsecases.NewGetRetryScheduleUseCase(r.scheduleRepo, r.attemptRepo, r.reminderRepo, log)
	ucs.sweepRetriesUC = retryUsecases.NewSweepRetriesUseCase(
		r.scheduleRepo,
		r.attemptRepo,
		c.txMgr,
		c.locker,
		ucs.evaluateRoutingUC,
		retryUsecases.NewDecisionLogPaymentSource(r.decisionRepo),
		retryUsecases.NewOutboxRetryExecutor(r.outboxRepo, c.clock),
		c.ledger,
		c.metrics,
		c.clock,
		retryUsecases.SweepConfig{
			BatchSize:   cfg.SweepBatchSize,
			Parallelism: cfg.SweepParallelism,
			StaleAfter:  cfg.SubmissionStaleTTL,
		},
		log,
	)

	// Dunning
	tokens := services.NewTokenGenerator()
	ucs.linkIssuer = dunningUsecases.NewPaymentLinkIssuer(r.linkRepo, tokens, cfg.PaymentLinkBaseURL, cfg.PaymentLinkTTL, c.clock, log)
	ucs.orchestrator = dunningUsecases.NewOrchestrator(
		r.configRepo,
		r.runRepo,
		r.paymentScheduleRepo,
		r.scheduleRepo,
		r.outboxRepo,
		ucs.linkIssuer,
		c.txMgr,
		c.locker,
		c.ledger,
		c.metrics,
		c.clock,
		cfg.ContactFallbackText,
		log,
	)
	ucs.paymentFailureUC = dunningUsecases.NewHandlePaymentFailureUseCase(ucs.orchestrator)
	ucs.paymentSuccessUC = dunningUsecases.NewHandlePaymentSuccessUseCase(ucs.orchestrator)
	ucs.cancelRunUC = dunningUsecases.NewCancelDunningRunUseCase(ucs.orchestrator)
	ucs.getRunUC = dunningUsecases.NewGetDunningRunUseCase(r.runRepo, r.configRepo, r.reminderRepo, log)
	ucs.sweepDunningUC = dunningUsecases.NewSweepDunningUseCase(ucs.orchestrator, dunningUsecases.SweepDunningConfig{
		BatchSize:   cfg.SweepBatchSize,
		Parallelism: cfg.SweepParallelism,
	})
	ucs.redeemLinkUC = dunningUsecases.NewRedeemPaymentLinkUseCase(r.linkRepo, tokens, c.txMgr, c.clock, log)
	ucs.purgePaymentLinkUC = dunningUsecases.NewPurgePaymentLinksUseCase(r.linkRepo, paymentLinkRetention, c.clock, log)

	// Policies, configs and bundles
	ucs.upsertPolicyUC = policyUsecases.NewUpsertRetryPolicyUseCase(r.policyRepo, c.txMgr, c.ledger, log)
	ucs.listPoliciesUC = policyUsecases.NewListRetryPoliciesUseCase(r.policyRepo, log)
	ucs.resolvePolicyUC = policyUsecases.NewResolveRetryPolicyUseCase(r.policyRepo)
	ucs.upsertConfigUC = policyUsecases.NewUpsertDunningConfigUseCase(r.configRepo, c.txMgr, c.ledger, log)
	ucs.listConfigsUC = policyUsecases.NewListDunningConfigsUseCase(r.configRepo, log)
	ucs.upsertBundleUC = policyUsecases.NewUpsertServiceBundleUseCase(r.bundleRepo, c.clock, log)
	ucs.listBundlesUC = policyUsecases.NewListServiceBundlesUseCase(r.bundleRepo)

	// Ingest and suspension
	ucs.handlePaymentEventUC = ingestUsecases.NewHandlePaymentEventUseCase(
		r.scheduleRepo,
		ucs.openScheduleUC,
		ucs.recordAttemptUC,
		ucs.paymentFailureUC,
		ucs.paymentSuccessUC,
		log,
	)
	ucs.nonPaymentUC = suspensionUsecases.NewHandleServiceNonPaymentUseCase(
		r.bundleRepo,
		r.lineRepo,
		r.invoiceRepo,
		r.paymentScheduleRepo,
		r.outboxRepo,
		c.txMgr,
		c.locker,
		c.ledger,
		c.clock,
		log,
	)

	// Outbox
	renderer := notification.NewRenderer(log)
	ucs.dispatchUC = sideeffectUsecases.NewDispatchSideEffectsUseCase(
		r.outboxRepo,
		r.reminderRepo,
		c.txMgr,
		notification.NewSMTPEmailSender(c.cfg.Notification.SMTP, renderer, log),
		notification.NewHTTPSMSSender(c.cfg.Notification.SMS, cfg.NotifyTimeout, renderer, log),
		lifecycle.NewHTTPNotifier(c.cfg.Lifecycle, log),
		c.eventBus,
		c.ledger,
		c.metrics,
		c.clock,
		sideeffectUsecases.DispatchConfig{
			BatchSize:    cfg.OutboxBatchSize,
			MaxAttempts:  cfg.OutboxMaxAttempts,
			InitialDelay: cfg.OutboxInitialDelay,
			MaxDelay:     cfg.OutboxMaxDelay,
			Timeout:      cfg.NotifyTimeout,
		},
		log,
	)

	c.seeder = seeds.NewSeeder(ucs.upsertPolicyUC, ucs.upsertConfigUC, ucs.createRuleUC, ucs.listRulesUC, ucs.upsertBundleUC, log)
}

// ============================================================
// Section 3: HTTP - Auth, Permissions, Handlers
// ============================================================

// initHTTP builds the middlewares and handlers. Default role grants are
// stored on first start.
func (c *Container) initHTTP() {
	cfg := c.cfg
	log := c.log

	c.jwtSvc = auth.NewJWTService(cfg.Auth.JWT)
	c.authMiddleware = middleware.NewAuthMiddleware(c.jwtSvc, cfg.Auth.WebhookKey, log)

	enforcer, err := permission.NewEnforcer(c.db, cfg.Auth.RBACModel, log)
	if err != nil {
		log.Fatalw("failed to create permission enforcer", "error", err)
	}
	if err := enforcer.InitDefaultPolicies(); err != nil {
		log.Fatalw("failed to initialize default permission policies", "error", err)
	}
	c.enforcer = enforcer
	c.permissionMiddleware = middleware.NewPermissionMiddleware(enforcer, log)

	// A zero limit lets every request through.
	c.rateLimiter = middleware.NewRateLimiter(c.redis, cacheKeyPrefix, cfg.Server.RateLimitPerMinute, time.Minute)

	c.hdlrs = newHandlers(c.ucs, c.ledger, log)
}

// ============================================================
// Section 4: Scheduler - Sweeps, Outbox Drain, Maintenance
// ============================================================

// initScheduler registers the periodic jobs. The caller decides whether the
// scheduler runs in this process.
func (c *Container) initScheduler() {
	log := c.log
	cfg := c.cfg.Engine

	manager, err := scheduler.NewSchedulerManager(scheduler.Intervals{
		Sweep:  cfg.SweepInterval,
		Outbox: cfg.OutboxInterval,
	}, log)
	if err != nil {
		log.Fatalw("failed to create scheduler manager", "error", err)
	}

	if err := manager.RegisterSweepJobs(c.retrySweepJob(), c.dunningSweepJob()); err != nil {
		log.Fatalw("failed to register sweep jobs", "error", err)
	}
	if err := manager.RegisterOutboxJob(c.outboxDrainJob()); err != nil {
		log.Fatalw("failed to register outbox job", "error", err)
	}
	if err := manager.RegisterMaintenanceJobs(c.purgeLinksJob()); err != nil {
		log.Fatalw("failed to register maintenance jobs", "error", err)
	}
	c.schedulerManager = manager
}

func (c *Container) retrySweepJob() scheduler.BatchJob {
	return scheduler.BatchJobFunc(func(ctx context.Context) (int, error) {
		result, err := c.ucs.sweepRetriesUC.Execute(ctx)
		if err != nil {
			return 0, err
		}
		return result.Submitted + result.Expired, nil
	})
}

func (c *Container) dunningSweepJob() scheduler.BatchJob {
	return scheduler.BatchJobFunc(func(ctx context.Context) (int, error) {
		result, err := c.ucs.sweepDunningUC.Execute(ctx)
		if err != nil {
			return 0, err
		}
		return result.Executed, nil
	})
}

func (c *Container) outboxDrainJob() scheduler.BatchJob {
	return scheduler.BatchJobFunc(func(ctx context.Context) (int, error) {
		result, err := c.ucs.dispatchUC.Execute(ctx)
		if err != nil {
			return 0, err
		}
		return result.Delivered, nil
	})
}

func (c *Container) purgeLinksJob() scheduler.BatchJob {
	return scheduler.BatchJobFunc(func(ctx context.Context) (int, error) {
		n, err := c.ucs.purgePaymentLinkUC.Execute(ctx)
		return int(n), err
	})
}

// SweepResult summarizes one manual run of every periodic job.
type SweepResult struct {
	Retries *retryUsecases.SweepRetriesResult   `json:"retries"`
	Dunning *dunningUsecases.SweepDunningResult `json:"dunning"`
	Outbox  *sideeffectUsecases.DispatchResult  `json:"outbox"`
}

// SweepOnce runs the retry sweep, the dunning sweep and one outbox drain in
// the same order as the scheduler.
func (c *Container) SweepOnce(ctx context.Context) (*SweepResult, error) {
	retries, err := c.ucs.sweepRetriesUC.Execute(ctx)
	if err != nil {
		return nil, err
	}
	dunning, err := c.ucs.sweepDunningUC.Execute(ctx)
	if err != nil {
		return nil, err
	}
	drained, err := c.ucs.dispatchUC.Execute(ctx)
	if err != nil {
		return nil, err
	}
	return &SweepResult{Retries: retries, Dunning: dunning, Outbox: drained}, nil
}

// Shutdown stops the scheduler and the subscribers, then closes the bus and
// Redis. The database is closed by the caller that opened it.
func (c *Container) Shutdown() {
	if c.schedulerManager != nil {
		if err := c.schedulerManager.Stop(); err != nil {
			c.log.Errorw("failed to stop scheduler", "error", err)
		}
	}

	c.ruleInvalCancelMu.Lock()
	if c.ruleInvalCancel != nil {
		c.ruleInvalCancel()
		c.ruleInvalCancel = nil
	}
	c.ruleInvalCancelMu.Unlock()

	if c.eventBus != nil {
		if err := c.eventBus.Close(); err != nil {
			c.log.Warnw("failed to close event bus", "error", err)
		}
	}

	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			c.log.Warnw("failed to close Redis connection", "error", err)
		}
	}

	c.log.Infow("container shut down")
}

func logSubscriberExit(log logger.Interface, name string, err error) {
	if err != nil && err != context.Canceled {
		log.Errorw("subscriber exited", "subscriber", name, "error", err)
		return
	}
	log.Infow("subscriber stopped", "subscriber", name)
}
