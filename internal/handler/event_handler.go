package handler

import (
	"context"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/upgrade-events/Upgrade-Events/internal/domain"
	"github.com/upgrade-events/Upgrade-Events/internal/dto"
	"github.com/upgrade-events/Upgrade-Events/internal/service"
	"github.com/upgrade-events/Upgrade-Events/pkg/middleware"
	"github.com/upgrade-events/Upgrade-Events/pkg/response"
)

var imageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}

// EventHandler handles event-related HTTP requests
type EventHandler struct {
	eventService  service.EventService
	ledgerService service.LedgerService
}

// NewEventHandler creates a new EventHandler
func NewEventHandler(eventService service.EventService, ledgerService service.LedgerService) *EventHandler {
	return &EventHandler{
		eventService:  eventService,
		ledgerService: ledgerService,
	}
}

// List handles GET /events - lists events currently on sale
func (h *EventHandler) List(c *gin.Context) {
	var query dto.ListEventsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, response.ValidationFailed(bindingDetails(err)))
		return
	}
	query.SetDefaults()

	events, total, err := h.eventService.ListAvailable(c.Request.Context(), &query)
	if err != nil {
		respondError(c, err, "Failed to list events")
		return
	}

	c.JSON(http.StatusOK, response.Paginated(events, query.Page, query.Limit, int64(total)))
}

// Get handles GET /events/:id - an event with live table and bus availability
func (h *EventHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	detail, err := h.eventService.GetEvent(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to get event")
		return
	}

	c.JSON(http.StatusOK, response.Success(detail))
}

// Availability handles GET /availability/:kind/:id?quantity=
func (h *EventHandler) Availability(c *gin.Context) {
	kind := domain.ResourceKind(c.Param("kind"))
	if !kind.IsValid() {
		c.JSON(http.StatusBadRequest, response.BadRequest("Unknown resource kind"))
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var query dto.AvailabilityQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, response.ValidationFailed(bindingDetails(err)))
		return
	}

	availability, err := h.ledgerService.CheckAvailability(c.Request.Context(), kind, id, query.Quantity)
	if err != nil {
		respondError(c, err, "Failed to check availability")
		return
	}

	c.JSON(http.StatusOK, response.Success(availability))
}

// Create handles POST /events - creates a pending event (owner or admin)
func (h *EventHandler) Create(c *gin.Context) {
	owner, ok := actor(c)
	if !ok {
		return
	}

	var req dto.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ValidationFailed(bindingDetails(err)))
		return
	}

	detail, err := h.eventService.CreateEvent(c.Request.Context(), owner, &req)
	if err != nil {
		respondError(c, err, "Failed to create event")
		return
	}

	middleware.SetAuditResource(c, "event", strconv.FormatInt(detail.ID, 10))
	c.JSON(http.StatusCreated, response.Success(detail))
}

// ListMine handles GET /owner/events - the caller's events
func (h *EventHandler) ListMine(c *gin.Context) {
	owner, ok := actor(c)
	if !ok {
		return
	}

	events, err := h.eventService.ListMine(c.Request.Context(), owner)
	if err != nil {
		respondError(c, err, "Failed to list events")
		return
	}

	c.JSON(http.StatusOK, response.List(events, len(events)))
}

// Approve handles POST /events/:id/approve (admin)
func (h *EventHandler) Approve(c *gin.Context) {
	h.moderate(c, h.eventService.Approve)
}

// Reject handles POST /events/:id/reject (admin)
func (h *EventHandler) Reject(c *gin.Context) {
	h.moderate(c, h.eventService.Reject)
}

func (h *EventHandler) moderate(c *gin.Context, action func(ctx context.Context, admin domain.Actor, eventID int64) (*domain.Event, error)) {
	admin, ok := actor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	event, err := action(c.Request.Context(), admin, id)
	if err != nil {
		respondError(c, err, "Failed to update event")
		return
	}

	c.JSON(http.StatusOK, response.Success(event))
}

// Stats handles GET /events/:id/stats - ticket sales by order status
func (h *EventHandler) Stats(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	stats, err := h.eventService.Stats(c.Request.Context(), a, id)
	if err != nil {
		respondError(c, err, "Failed to get event stats")
		return
	}

	c.JSON(http.StatusOK, response.Success(stats))
}

// UploadImage handles POST /events/:id/image - multipart field "file"
func (h *EventHandler) UploadImage(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	file, ok := formFile(c, imageExtensions)
	if !ok {
		return
	}
	defer file.Close()

	event, err := h.eventService.UploadImage(c.Request.Context(), a, id, file.name, file)
	if err != nil {
		respondError(c, err, "Failed to upload image")
		return
	}

	c.JSON(http.StatusOK, response.Success(event))
}

// upload is an opened multipart file together with its client-side name
type upload struct {
	multipart.File
	name string
}

// formFile opens the "file" form field, enforcing size and extension.
// It writes the 400 itself.
func formFile(c *gin.Context, allowed map[string]bool) (*upload, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("A file is required (max 10MB)"))
		return nil, false
	}
	if header.Size > maxUploadSize {
		c.JSON(http.StatusBadRequest, response.BadRequest("File is larger than 10MB"))
		return nil, false
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowed[ext] {
		c.JSON(http.StatusBadRequest, response.BadRequest("Unsupported file type "+ext))
		return nil, false
	}

	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Could not read uploaded file"))
		return nil, false
	}
	return &upload{File: f, name: header.Filename}, true
}
