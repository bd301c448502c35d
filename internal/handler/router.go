package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/upgrade-events/Upgrade-Events/internal/domain"
	"github.com/upgrade-events/Upgrade-Events/internal/service"
	"github.com/upgrade-events/Upgrade-Events/pkg/middleware"
	"github.com/upgrade-events/Upgrade-Events/pkg/telemetry"
)

// RouterConfig holds everything the HTTP surface is built from
type RouterConfig struct {
	JWT   *middleware.JWTConfig
	Audit *middleware.AuditLogger // optional
	CORS  middleware.CORSConfig

	// StaffLogin limits staff code attempts per client
	StaffLogin middleware.RateLimitConfig

	Events  *EventHandler
	Orders  *OrderHandler
	Tickets *TicketHandler
	Staff   *StaffHandler
	Health  *HealthHandler

	// StaffAccess resolves X-Staff-Session tokens
	StaffAccess service.StaffAccessService
}

// NewRouter builds the gin engine with every route under /api/v1
func NewRouter(cfg *RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.CORS))
	router.Use(telemetry.PrometheusMiddleware())
	if cfg.Audit != nil {
		router.Use(middleware.AuditMiddleware(cfg.Audit))
	}

	router.GET("/health", cfg.Health.Health)
	router.GET("/ready", cfg.Health.Ready)
	router.GET("/metrics", telemetry.PrometheusHandler())

	v1 := router.Group("/api/v1")

	// Public catalogue
	v1.GET("/events", cfg.Events.List)
	v1.GET("/events/:id", cfg.Events.Get)
	v1.GET("/availability/:kind/:id", cfg.Events.Availability)

	// Door staff authenticate with a staff code, not a JWT
	v1.POST("/staff/sessions", middleware.RateLimit(cfg.StaffLogin), cfg.Staff.OpenSession)
	staff := v1.Group("/staff", StaffSessionMiddleware(cfg.StaffAccess))
	{
		staff.POST("/scan", cfg.Staff.Scan)
		staff.GET("/stats", cfg.Staff.StaffStats)
	}

	authed := v1.Group("", middleware.JWTMiddleware(cfg.JWT))
	{
		authed.POST("/orders", cfg.Orders.Create)
		authed.GET("/orders/me", cfg.Orders.ListMine)
		authed.GET("/orders/:id", cfg.Orders.Get)
		authed.POST("/orders/:id/cancel", cfg.Orders.Cancel)
		authed.POST("/orders/:id/payment-proof", cfg.Orders.SubmitPaymentProof)
		authed.GET("/tickets/:id/pdf", cfg.Tickets.DownloadPDF)
	}

	managers := authed.Group("", middleware.RequireRole(domain.RoleOwner, domain.RoleAdmin))
	{
		managers.POST("/events", cfg.Events.Create)
		managers.GET("/owner/events", cfg.Events.ListMine)
		managers.GET("/events/:id/stats", cfg.Events.Stats)
		managers.POST("/events/:id/image", cfg.Events.UploadImage)

		managers.GET("/owner/orders/pending", cfg.Orders.ListPending)
		managers.POST("/orders/:id/confirm", cfg.Orders.Confirm)
		managers.POST("/orders/:id/reject", cfg.Orders.Reject)
		managers.POST("/orders/:id/send", cfg.Orders.Send)
		managers.POST("/orders/:id/mark-sent", cfg.Orders.MarkSent)

		managers.POST("/events/:id/staff-codes", cfg.Staff.IssueCode)
		managers.GET("/events/:id/staff-codes", cfg.Staff.ListCodes)
		managers.POST("/staff-codes/:id/deactivate", cfg.Staff.DeactivateCode)
		managers.POST("/staff-codes/:id/reactivate", cfg.Staff.ReactivateCode)
		managers.DELETE("/staff-codes/:id", cfg.Staff.DeleteCode)

		managers.GET("/events/:id/checkin-stats", cfg.Staff.CheckinStats)
		managers.GET("/events/:id/staff-actions", cfg.Staff.Actions)
		managers.GET("/events/:id/attendees", cfg.Staff.Attendees)
	}

	admins := authed.Group("", middleware.RequireRole(domain.RoleAdmin))
	{
		admins.POST("/events/:id/approve", cfg.Events.Approve)
		admins.POST("/events/:id/reject", cfg.Events.Reject)
	}

	return router
}
