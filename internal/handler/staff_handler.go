package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/upgrade-events/Upgrade-Events/internal/domain"
	"github.com/upgrade-events/Upgrade-Events/internal/dto"
	"github.com/upgrade-events/Upgrade-Events/internal/service"
	"github.com/upgrade-events/Upgrade-Events/pkg/middleware"
	"github.com/upgrade-events/Upgrade-Events/pkg/response"
)

// StaffHandler handles staff access codes and door scanning
type StaffHandler struct {
	staffAccess service.StaffAccessService
	checkin     service.CheckinService
}

// NewStaffHandler creates a new StaffHandler
func NewStaffHandler(staffAccess service.StaffAccessService, checkin service.CheckinService) *StaffHandler {
	return &StaffHandler{
		staffAccess: staffAccess,
		checkin:     checkin,
	}
}

// IssueCode handles POST /events/:id/staff-codes
func (h *StaffHandler) IssueCode(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	eventID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req dto.IssueStaffCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ValidationFailed(bindingDetails(err)))
		return
	}

	view, err := h.staffAccess.Issue(c.Request.Context(), a, eventID, req.Name)
	if err != nil {
		respondError(c, err, "Failed to create staff code")
		return
	}

	middleware.SetAuditResource(c, "staff_access_code", strconv.FormatInt(view.ID, 10))
	c.JSON(http.StatusCreated, response.Success(view))
}

// ListCodes handles GET /events/:id/staff-codes
func (h *StaffHandler) ListCodes(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	eventID, ok := parseID(c, "id")
	if !ok {
		return
	}

	views, err := h.staffAccess.ListByEvent(c.Request.Context(), a, eventID)
	if err != nil {
		respondError(c, err, "Failed to list staff codes")
		return
	}

	c.JSON(http.StatusOK, response.List(views, len(views)))
}

// DeactivateCode handles POST /staff-codes/:id/deactivate
func (h *StaffHandler) DeactivateCode(c *gin.Context) {
	h.manageCode(c, "deactivated", h.staffAccess.Deactivate)
}

// ReactivateCode handles POST /staff-codes/:id/reactivate
func (h *StaffHandler) ReactivateCode(c *gin.Context) {
	h.manageCode(c, "reactivated", h.staffAccess.Reactivate)
}

// DeleteCode handles DELETE /staff-codes/:id
func (h *StaffHandler) DeleteCode(c *gin.Context) {
	h.manageCode(c, "deleted", h.staffAccess.Delete)
}

func (h *StaffHandler) manageCode(c *gin.Context, done string, action func(ctx context.Context, actor domain.Actor, codeID int64) error) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := action(c.Request.Context(), a, id); err != nil {
		respondError(c, err, "Failed to update staff code")
		return
	}

	middleware.SetAuditResource(c, "staff_access_code", strconv.FormatInt(id, 10))
	c.JSON(http.StatusOK, response.Success(gin.H{"id": id, "message": "Staff code " + done}))
}

// OpenSession handles POST /staff/sessions - exchanges a staff code for a scan session
func (h *StaffHandler) OpenSession(c *gin.Context) {
	var req dto.StaffSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ValidationFailed(bindingDetails(err)))
		return
	}

	session, err := h.staffAccess.OpenSession(c.Request.Context(), req.Code)
	if err != nil {
		respondError(c, err, "Failed to open staff session")
		return
	}

	middleware.SkipAudit(c)
	c.JSON(http.StatusCreated, response.Success(session))
}

// Scan handles POST /staff/scan - check-in, check-out or bus lookup
func (h *StaffHandler) Scan(c *gin.Context) {
	cred, ok := GetStaffCredential(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Unauthorized("Staff session required"))
		return
	}

	var req dto.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ValidationFailed(bindingDetails(err)))
		return
	}

	result, err := h.checkin.Scan(c.Request.Context(), req.ValidationCode, cred, domain.ScanDirection(req.Direction))
	if err != nil {
		respondError(c, err, "Failed to scan ticket")
		return
	}

	// door scans land in staff_actions
	middleware.SkipAudit(c)
	c.JSON(http.StatusOK, response.Success(result))
}

// StaffStats handles GET /staff/stats - check-in counters for the session's event
func (h *StaffHandler) StaffStats(c *gin.Context) {
	cred, ok := GetStaffCredential(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Unauthorized("Staff session required"))
		return
	}

	stats, err := h.checkin.StaffStats(c.Request.Context(), cred)
	if err != nil {
		respondError(c, err, "Failed to get check-in stats")
		return
	}

	c.JSON(http.StatusOK, response.Success(stats))
}

// CheckinStats handles GET /events/:id/checkin-stats
func (h *StaffHandler) CheckinStats(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	eventID, ok := parseID(c, "id")
	if !ok {
		return
	}

	stats, err := h.checkin.Stats(c.Request.Context(), a, eventID)
	if err != nil {
		respondError(c, err, "Failed to get check-in stats")
		return
	}

	c.JSON(http.StatusOK, response.Success(stats))
}

// Actions handles GET /events/:id/staff-actions - the latest door scans
func (h *StaffHandler) Actions(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	eventID, ok := parseID(c, "id")
	if !ok {
		return
	}

	actions, err := h.checkin.ListActions(c.Request.Context(), a, eventID)
	if err != nil {
		respondError(c, err, "Failed to list staff actions")
		return
	}

	c.JSON(http.StatusOK, response.List(actions, len(actions)))
}

// Attendees handles GET /events/:id/attendees
func (h *StaffHandler) Attendees(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	eventID, ok := parseID(c, "id")
	if !ok {
		return
	}

	attendees, err := h.checkin.ListAttendees(c.Request.Context(), a, eventID)
	if err != nil {
		respondError(c, err, "Failed to list attendees")
		return
	}

	c.JSON(http.StatusOK, response.List(attendees, len(attendees)))
}
