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

var proofExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".pdf": true}

// OrderHandler handles order-related HTTP requests
type OrderHandler struct {
	orderService service.OrderService
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orderService service.OrderService) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
	}
}

// Create handles POST /orders - places a pending order and reserves its tickets
func (h *OrderHandler) Create(c *gin.Context) {
	buyer, ok := actor(c)
	if !ok {
		return
	}

	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ValidationFailed(bindingDetails(err)))
		return
	}
	if valid, msg := req.Validate(); !valid {
		c.JSON(http.StatusBadRequest, response.BadRequest(msg))
		return
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), buyer, &req)
	if err != nil {
		respondError(c, err, "Failed to create order")
		return
	}

	c.JSON(http.StatusCreated, response.Success(order))
}

// ListMine handles GET /orders/me - the caller's orders
func (h *OrderHandler) ListMine(c *gin.Context) {
	buyer, ok := actor(c)
	if !ok {
		return
	}

	orders, err := h.orderService.ListMyOrders(c.Request.Context(), buyer)
	if err != nil {
		respondError(c, err, "Failed to list orders")
		return
	}

	c.JSON(http.StatusOK, response.List(orders, len(orders)))
}

// ListPending handles GET /owner/orders/pending - orders awaiting review
func (h *OrderHandler) ListPending(c *gin.Context) {
	owner, ok := actor(c)
	if !ok {
		return
	}

	orders, err := h.orderService.ListPendingForOwner(c.Request.Context(), owner)
	if err != nil {
		respondError(c, err, "Failed to list pending orders")
		return
	}

	c.JSON(http.StatusOK, response.List(orders, len(orders)))
}

// Get handles GET /orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	h.withOrder(c, "Failed to get order", h.orderService.GetOrder)
}

// Cancel handles POST /orders/:id/cancel - the buyer withdraws a pending order
func (h *OrderHandler) Cancel(c *gin.Context) {
	h.withOrder(c, "Failed to cancel order", h.orderService.CancelOrder)
}

// Confirm handles POST /orders/:id/confirm (owner or admin)
func (h *OrderHandler) Confirm(c *gin.Context) {
	h.withOrder(c, "Failed to confirm order", h.orderService.ConfirmOrder)
}

// Reject handles POST /orders/:id/reject (owner or admin)
func (h *OrderHandler) Reject(c *gin.Context) {
	h.withOrder(c, "Failed to reject order", h.orderService.RejectOrder)
}

// MarkSent handles POST /orders/:id/mark-sent - releases the ticket downloads
func (h *OrderHandler) MarkSent(c *gin.Context) {
	h.withOrder(c, "Failed to send order tickets", h.orderService.SendOrderTickets)
}

// Send handles POST /orders/:id/send - confirms, issues codes and e-mails tickets.
// Per-ticket e-mail failures are reported in the result, not as an error.
func (h *OrderHandler) Send(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	result, err := h.orderService.ConfirmAndSend(c.Request.Context(), a, id)
	if err != nil {
		respondError(c, err, "Failed to send tickets")
		return
	}

	middleware.SetAuditResource(c, "order", strconv.FormatInt(id, 10))
	middleware.SetAuditMetadata(c, map[string]interface{}{
		"emails_sent": result.EmailsSent,
		"failures":    len(result.Errors),
	})
	c.JSON(http.StatusOK, response.Success(result))
}

// SubmitPaymentProof handles POST /orders/:id/payment-proof - multipart field "file"
func (h *OrderHandler) SubmitPaymentProof(c *gin.Context) {
	buyer, ok := actor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	file, ok := formFile(c, proofExtensions)
	if !ok {
		return
	}
	defer file.Close()

	order, err := h.orderService.SubmitPaymentProof(c.Request.Context(), buyer, id, file.name, file)
	if err != nil {
		respondError(c, err, "Failed to upload payment proof")
		return
	}

	c.JSON(http.StatusOK, response.Success(order))
}

type orderAction func(ctx context.Context, actor domain.Actor, orderID int64) (*domain.Order, error)

func (h *OrderHandler) withOrder(c *gin.Context, fallback string, action orderAction) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	order, err := action(c.Request.Context(), a, id)
	if err != nil {
		respondError(c, err, fallback)
		return
	}

	middleware.SetAuditResource(c, "order", strconv.FormatInt(id, 10))
	c.JSON(http.StatusOK, response.Success(order))
}
