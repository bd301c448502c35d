package di

import (
	"github.com/gin-gonic/gin"
	"github.com/upgrade-events/Upgrade-Events/internal/events"
	"github.com/upgrade-events/Upgrade-Events/internal/handler"
	"github.com/upgrade-events/Upgrade-Events/internal/notify"
	"github.com/upgrade-events/Upgrade-Events/internal/render"
	"github.com/upgrade-events/Upgrade-Events/internal/repository"
	"github.com/upgrade-events/Upgrade-Events/internal/service"
	"github.com/upgrade-events/Upgrade-Events/internal/storage"
	"github.com/upgrade-events/Upgrade-Events/internal/worker"
	"github.com/upgrade-events/Upgrade-Events/pkg/config"
	"github.com/upgrade-events/Upgrade-Events/pkg/database"
	"github.com/upgrade-events/Upgrade-Events/pkg/kafka"
	"github.com/upgrade-events/Upgrade-Events/pkg/middleware"
	"github.com/upgrade-events/Upgrade-Events/pkg/redis"
	"github.com/upgrade-events/Upgrade-Events/pkg/telemetry"
)

// Container holds all dependencies of the ticketing service
type Container struct {
	// Infrastructure
	DB       *database.PostgresDB
	Redis    *redis.Client
	Producer *kafka.Producer
	Audit    *middleware.AuditLogger

	// Repositories
	Store    repository.Store
	Cache    repository.AvailabilityCache
	Sessions repository.StaffSessionStore

	// Services
	LedgerService      service.LedgerService
	TicketService      service.TicketService
	OrderService       service.OrderService
	EventService       service.EventService
	CheckinService     service.CheckinService
	StaffAccessService service.StaffAccessService

	// Workers
	ExpiryWorker *worker.ExpiryWorker

	// Handlers
	HealthHandler *handler.HealthHandler
	EventHandler  *handler.EventHandler
	OrderHandler  *handler.OrderHandler
	TicketHandler *handler.TicketHandler
	StaffHandler  *handler.StaffHandler
}

// ContainerConfig contains configuration for building the container.
// Redis, Producer, Storage and Mailer are optional.
type ContainerConfig struct {
	Config   *config.Config
	DB       *database.PostgresDB
	Redis    *redis.Client
	Producer *kafka.Producer
	Storage  storage.ObjectStorage
	Mailer   notify.TicketMailer
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	c := &Container{
		DB:       cfg.DB,
		Redis:    cfg.Redis,
		Producer: cfg.Producer,
	}
	rules := cfg.Config.Ticketing
	metrics := telemetry.MustTicketingMetrics()

	// Initialize repositories
	c.Store = repository.NewPostgresStore(c.DB.Pool())
	if c.Redis != nil {
		c.Cache = repository.NewRedisAvailabilityCache(c.Redis, rules.AvailabilityCacheTTL)
		c.Sessions = repository.NewRedisStaffSessionStore(c.Redis)
	} else {
		c.Sessions = repository.NewMemoryStaffSessionStore(nil)
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if c.Producer != nil {
		publisher = events.NewKafkaPublisher(c.Producer)
	}

	// Initialize services
	c.LedgerService = service.NewLedgerService(c.Store, c.Cache, metrics)
	c.TicketService = service.NewTicketService(&service.TicketServiceConfig{
		Store:     c.Store,
		Mailer:    cfg.Mailer,
		Renderer:  render.NewPDFRenderer(),
		Metrics:   metrics,
		PublicURL: cfg.Config.App.PublicURL,
	})
	c.OrderService = service.NewOrderService(&service.OrderServiceConfig{
		Store:              c.Store,
		Tickets:            c.TicketService,
		Storage:            cfg.Storage,
		Publisher:          publisher,
		Cache:              c.Cache,
		Metrics:            metrics,
		MaxTicketsPerBuyer: rules.MaxTicketsPerBuyer,
	})
	c.EventService = service.NewEventService(&service.EventServiceConfig{
		Store:   c.Store,
		Storage: cfg.Storage,
		Cache:   c.Cache,
		Metrics: metrics,
	})
	c.CheckinService = service.NewCheckinService(&service.CheckinServiceConfig{
		Store:     c.Store,
		Publisher: publisher,
		Metrics:   metrics,
	})
	c.StaffAccessService = service.NewStaffAccessService(&service.StaffAccessServiceConfig{
		Store:        c.Store,
		Sessions:     c.Sessions,
		WindowBefore: rules.StaffWindowBefore,
		WindowAfter:  rules.StaffWindowAfter,
		SessionTTL:   rules.StaffSessionTTL,
	})

	// Initialize workers
	c.ExpiryWorker = worker.NewExpiryWorker(c.OrderService, &worker.ExpiryWorkerConfig{
		ScanInterval: rules.ExpirySweepInterval,
		BatchSize:    rules.ExpiryBatchSize,
		PendingTTL:   rules.PendingOrderTTL,
	})

	c.Audit = middleware.NewAuditLogger(middleware.DefaultAuditConfig(c.DB.Pool()))

	// Initialize handlers
	checks := map[string]handler.HealthChecker{"postgres": c.DB}
	if c.Redis != nil {
		checks["redis"] = c.Redis
	}
	c.HealthHandler = handler.NewHealthHandler(checks, c.ExpiryWorker)
	c.EventHandler = handler.NewEventHandler(c.EventService, c.LedgerService)
	c.OrderHandler = handler.NewOrderHandler(c.OrderService)
	c.TicketHandler = handler.NewTicketHandler(c.TicketService)
	c.StaffHandler = handler.NewStaffHandler(c.StaffAccessService, c.CheckinService)

	return c
}

// Router builds the HTTP surface over the container's handlers
func (c *Container) Router(cfg *config.Config) *gin.Engine {
	return handler.NewRouter(&handler.RouterConfig{
		JWT:         &middleware.JWTConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer},
		Audit:       c.Audit,
		CORS:        middleware.DefaultCORSConfig(cfg.App.CORSOrigins...),
		StaffLogin:  middleware.StaffLoginRateLimitConfig(cfg.Ticketing.StaffLoginsPerMinute, c.Redis),
		Events:      c.EventHandler,
		Orders:      c.OrderHandler,
		Tickets:     c.TicketHandler,
		Staff:       c.StaffHandler,
		Health:      c.HealthHandler,
		StaffAccess: c.StaffAccessService,
	})
}

// Close releases the resources the container owns
func (c *Container) Close() {
	_ = c.Audit.Close()
	if c.Producer != nil {
		c.Producer.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	c.DB.Close()
}
