package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/upgrade-events/Upgrade-Events/internal/service"
	"github.com/upgrade-events/Upgrade-Events/pkg/middleware"
)

// TicketHandler serves ticket downloads
type TicketHandler struct {
	ticketService service.TicketService
}

// NewTicketHandler creates a new TicketHandler
func NewTicketHandler(ticketService service.TicketService) *TicketHandler {
	return &TicketHandler{
		ticketService: ticketService,
	}
}

// DownloadPDF handles GET /tickets/:id/pdf
func (h *TicketHandler) DownloadPDF(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	pdf, err := h.ticketService.RenderPDF(c.Request.Context(), a, id)
	if err != nil {
		respondError(c, err, "Failed to render ticket")
		return
	}

	middleware.SkipAudit(c)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="ticket-%d.pdf"`, id))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
