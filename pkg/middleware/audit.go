package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/upgrade-events/Upgrade-Events/pkg/logger"
	"go.uber.org/zap"
)

// AuditAction represents the type of organizer action being audited
type AuditAction string

const (
	AuditActionCreate     AuditAction = "create"
	AuditActionUpdate     AuditAction = "update"
	AuditActionDelete     AuditAction = "delete"
	AuditActionConfirm    AuditAction = "confirm"
	AuditActionReject     AuditAction = "reject"
	AuditActionCancel     AuditAction = "cancel"
	AuditActionApprove    AuditAction = "approve"
	AuditActionSend       AuditAction = "send"
	AuditActionDeactivate AuditAction = "deactivate"
	AuditActionReactivate AuditAction = "reactivate"
	AuditActionView       AuditAction = "view"
)

// Context keys for audit data
const (
	ContextKeyAuditResourceType = "audit_resource_type"
	ContextKeyAuditResourceID   = "audit_resource_id"
	ContextKeyAuditMetadata     = "audit_metadata"
	contextKeyAuditSkip         = "audit_skip"
)

// AuditEntry represents a single audit log entry
type AuditEntry struct {
	ID           string                 `json:"id"`
	UserID       *string                `json:"user_id,omitempty"`
	UserEmail    string                 `json:"user_email,omitempty"`
	UserRole     string                 `json:"user_role,omitempty"`
	Action       AuditAction            `json:"action"`
	ResourceType string                 `json:"resource_type"`
	ResourceID   *string                `json:"resource_id,omitempty"`
	Status       int                    `json:"status"`
	IPAddress    string                 `json:"ip_address,omitempty"`
	UserAgent    string                 `json:"user_agent,omitempty"`
	RequestID    string                 `json:"request_id,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// AuditConfig holds configuration for the audit middleware
type AuditConfig struct {
	// DB receives audit rows; nil keeps entries only in test mode
	DB *pgxpool.Pool
	// BufferSize is the size of the async audit buffer (default: 1000)
	BufferSize int
	// FlushInterval is how often to flush the buffer (default: 5 seconds)
	FlushInterval time.Duration
	// BatchSize is the maximum number of entries per batch (default: 100)
	BatchSize int
	// SkipPaths is a list of path prefixes to skip
	SkipPaths []string
	// SkipMethods is a list of HTTP methods to skip (default: GET, HEAD, OPTIONS)
	SkipMethods []string
	// Logger reports flush failures
	Logger *logger.Logger
}

// DefaultAuditConfig returns default configuration
func DefaultAuditConfig(db *pgxpool.Pool) *AuditConfig {
	return &AuditConfig{
		DB:            db,
		BufferSize:    1000,
		FlushInterval: 5 * time.Second,
		BatchSize:     100,
		SkipPaths:     []string{"/health", "/metrics", "/api/v1/staff/scan"},
		SkipMethods:   []string{http.MethodGet, http.MethodHead, http.MethodOptions},
	}
}

// AuditLogger writes organizer actions to audit_logs asynchronously
type AuditLogger struct {
	config    *AuditConfig
	buffer    chan *AuditEntry
	wg        sync.WaitGroup
	closeOnce sync.Once
	dropped   int64
	mu        sync.Mutex

	testMode    bool
	testEntries []*AuditEntry
}

// NewAuditLogger creates a new audit logger and starts its flush worker
func NewAuditLogger(config *AuditConfig) *AuditLogger {
	if config.BufferSize <= 0 {
		config.BufferSize = 1000
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 5 * time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.Logger == nil {
		config.Logger = logger.Get()
	}

	al := &AuditLogger{
		config: config,
		buffer: make(chan *AuditEntry, config.BufferSize),
	}

	al.wg.Add(1)
	go al.worker()

	return al
}

// Log adds an audit entry to the buffer without blocking; entries are dropped when full
func (al *AuditLogger) Log(entry *AuditEntry) {
	select {
	case al.buffer <- entry:
	default:
		al.mu.Lock()
		al.dropped++
		al.mu.Unlock()
	}
}

// Dropped returns how many entries were discarded because the buffer was full
func (al *AuditLogger) Dropped() int64 {
	al.mu.Lock()
	defer al.mu.Unlock()
	return al.dropped
}

// Close flushes pending entries and stops the worker
func (al *AuditLogger) Close() error {
	al.closeOnce.Do(func() {
		close(al.buffer)
		al.wg.Wait()
	})
	return nil
}

// SetTestMode collects entries in memory instead of writing to the database
func (al *AuditLogger) SetTestMode(enabled bool) {
	al.mu.Lock()
	defer al.mu.Unlock()
	al.testMode = enabled
	al.testEntries = nil
}

// GetTestEntries returns entries collected in test mode
func (al *AuditLogger) GetTestEntries() []*AuditEntry {
	al.mu.Lock()
	defer al.mu.Unlock()
	result := make([]*AuditEntry, len(al.testEntries))
	copy(result, al.testEntries)
	return result
}

func (al *AuditLogger) worker() {
	defer al.wg.Done()

	ticker := time.NewTicker(al.config.FlushInterval)
	defer ticker.Stop()

	batch := make([]*AuditEntry, 0, al.config.BatchSize)

	for {
		select {
		case entry, ok := <-al.buffer:
			if !ok {
				al.flush(batch)
				return
			}
			batch = append(batch, entry)
			if len(batch) >= al.config.BatchSize {
				al.flush(batch)
				batch = make([]*AuditEntry, 0, al.config.BatchSize)
			}
		case <-ticker.C:
			if len(batch) > 0 {
				al.flush(batch)
				batch = make([]*AuditEntry, 0, al.config.BatchSize)
			}
		}
	}
}

const insertAuditSQL = `
	INSERT INTO audit_logs (
		id, user_id, user_email, user_role, action, resource_type, resource_id,
		status, ip_address, user_agent, request_id, metadata, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`

func (al *AuditLogger) flush(entries []*AuditEntry) {
	if len(entries) == 0 {
		return
	}

	al.mu.Lock()
	if al.testMode {
		al.testEntries = append(al.testEntries, entries...)
		al.mu.Unlock()
		return
	}
	al.mu.Unlock()

	if al.config.DB == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	batch := &pgx.Batch{}
	for _, e := range entries {
		metadata, err := json.Marshal(e.Metadata)
		if err != nil || string(metadata) == "null" {
			metadata = []byte("{}")
		}
		batch.Queue(insertAuditSQL,
			e.ID, e.UserID, e.UserEmail, e.UserRole, string(e.Action), e.ResourceType, e.ResourceID,
			e.Status, e.IPAddress, e.UserAgent, e.RequestID, metadata, e.CreatedAt,
		)
	}

	if err := al.config.DB.SendBatch(ctx, batch).Close(); err != nil {
		al.config.Logger.Warn("failed to write audit batch", zap.Int("entries", len(entries)), zap.Error(err))
	}
}

// AuditMiddleware records successful mutating requests made by authenticated users
func AuditMiddleware(al *AuditLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		config := al.config

		for _, path := range config.SkipPaths {
			if strings.HasPrefix(c.Request.URL.Path, path) {
				c.Next()
				return
			}
		}
		for _, method := range config.SkipMethods {
			if c.Request.Method == method {
				c.Next()
				return
			}
		}

		startTime := time.Now()
		c.Next()

		if skip, ok := c.Get(contextKeyAuditSkip); ok && skip == true {
			return
		}
		if c.Writer.Status() >= http.StatusBadRequest {
			return
		}

		entry := &AuditEntry{
			ID:        uuid.NewString(),
			Action:    actionFor(c.Request.Method, c.Request.URL.Path),
			Status:    c.Writer.Status(),
			IPAddress: clientIP(c),
			UserAgent: c.GetHeader("User-Agent"),
			RequestID: c.GetString(string(logger.RequestIDKey)),
			CreatedAt: startTime,
		}

		if userID, ok := GetUserID(c); ok && userID != "" {
			entry.UserID = &userID
		}
		entry.UserEmail, _ = GetEmail(c)
		entry.UserRole, _ = GetRole(c)

		resourceType, resourceID := resourceFromPath(c.Request.URL.Path)
		entry.ResourceType = resourceType
		if resourceID != "" {
			entry.ResourceID = &resourceID
		}
		if rt, ok := c.Get(ContextKeyAuditResourceType); ok {
			entry.ResourceType, _ = rt.(string)
		}
		if rid, ok := c.Get(ContextKeyAuditResourceID); ok {
			if s, ok := rid.(string); ok && s != "" {
				entry.ResourceID = &s
			}
		}
		if meta, ok := c.Get(ContextKeyAuditMetadata); ok {
			entry.Metadata, _ = meta.(map[string]interface{})
		}

		al.Log(entry)
	}
}

var pathActions = []struct {
	suffix string
	action AuditAction
}{
	{"/confirm", AuditActionConfirm},
	{"/reject", AuditActionReject},
	{"/cancel", AuditActionCancel},
	{"/approve", AuditActionApprove},
	{"/send", AuditActionSend},
	{"/deactivate", AuditActionDeactivate},
	{"/reactivate", AuditActionReactivate},
}

func actionFor(method, path string) AuditAction {
	for _, pa := range pathActions {
		if strings.HasSuffix(path, pa.suffix) {
			return pa.action
		}
	}

	switch method {
	case http.MethodPost:
		return AuditActionCreate
	case http.MethodPut, http.MethodPatch:
		return AuditActionUpdate
	case http.MethodDelete:
		return AuditActionDelete
	default:
		return AuditActionView
	}
}

// resourceFromPath maps /api/v1/orders/12/confirm to ("order", "12")
func resourceFromPath(path string) (string, string) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) >= 2 && parts[0] == "api" && strings.HasPrefix(parts[1], "v") {
		parts = parts[2:]
	}
	if len(parts) == 0 || parts[0] == "" {
		return "unknown", ""
	}

	resourceType := strings.TrimSuffix(parts[0], "s")
	if len(parts) > 1 && isNumeric(parts[1]) {
		return resourceType, parts[1]
	}
	return resourceType, ""
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func clientIP(c *gin.Context) string {
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := c.GetHeader("X-Real-IP"); xri != "" {
		return xri
	}
	ip, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return ip
}

// SetAuditResource overrides the resource recorded for the current request
func SetAuditResource(c *gin.Context, resourceType, resourceID string) {
	c.Set(ContextKeyAuditResourceType, resourceType)
	c.Set(ContextKeyAuditResourceID, resourceID)
}

// SetAuditMetadata attaches extra metadata to the current request's audit entry
func SetAuditMetadata(c *gin.Context, metadata map[string]interface{}) {
	c.Set(ContextKeyAuditMetadata, metadata)
}

// SkipAudit marks the current request to skip audit logging
func SkipAudit(c *gin.Context) {
	c.Set(contextKeyAuditSkip, true)
}
