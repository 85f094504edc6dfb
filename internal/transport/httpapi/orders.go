package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
)

const defaultPageSize = 20

func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return badRequest(err)
	}
	return nil
}

// bindOptionalJSON допускает пустое тело.
func bindOptionalJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return badRequest(err)
	}
	return nil
}

func pagination(c *gin.Context) (limit, offset int, err error) {
	limit, err = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if err != nil || limit < 0 {
		return 0, 0, domain.NewValidationError("limit", "must be a non-negative integer")
	}
	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		return 0, 0, domain.NewValidationError("offset", "must be a non-negative integer")
	}
	return limit, offset, nil
}

func (h *Handler) placeOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}

	res, err := h.svc.Checkout.PlaceOrder(c.Request.Context(), checkout.PlaceOrderRequest{
		Items:            toLineItems(req.Items),
		PaymentMethod:    domain.PaymentMethod(req.PaymentMethod),
		PaymentID:        req.PaymentID,
		GatewayOrderID:   req.GatewayOrderID,
		PaymentSignature: req.PaymentSignature,
		TotalAmountMinor: req.TotalAmount,
		Shipping:         req.ShippingAddress,
		CouponCode:       req.CouponCode,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusCreated, "Order placed successfully", placeOrderResponse{
		OrderID:       res.OrderID,
		OrderNumber:   res.OrderNumber,
		Status:        string(res.Status),
		PaymentStatus: string(res.PaymentStatus),
		TotalAmount:   res.TotalMinor,
		Discount:      res.DiscountMinor,
	})
}

func (h *Handler) validateOrder(c *gin.Context) {
	var req validateOrderRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}

	report, err := h.svc.Checkout.CheckAvailability(c.Request.Context(), toLineItems(req.Items))
	if err != nil {
		h.fail(c, err)
		return
	}
	available := true
	for _, item := range report {
		available = available && item.OK
	}
	message := "All items are available"
	if !available {
		message = "Some items are unavailable"
	}
	h.ok(c, http.StatusOK, message, validateOrderResponse{Available: available, Items: report})
}

func (h *Handler) listOrders(c *gin.Context) {
	limit, offset, err := pagination(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	orders, err := h.svc.Checkout.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Orders fetched successfully", toOrderList(orders))
}

func (h *Handler) listAllOrders(c *gin.Context) {
	limit, offset, err := pagination(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	orders, err := h.svc.Checkout.ListAll(c.Request.Context(), limit, offset)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Orders fetched successfully", toOrderList(orders))
}

func (h *Handler) getOrder(c *gin.Context) {
	details, err := h.svc.Checkout.Get(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Order fetched successfully", toOrderDetails(details, h.now()))
}

func (h *Handler) cancelOrder(c *gin.Context) {
	var req cancelOrderRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}

	res, err := h.svc.Checkout.Cancel(c.Request.Context(), c.Param("orderId"), req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	message := "Order cancelled successfully"
	if res.RefundMinor > 0 {
		message = "Order cancelled and amount refunded to wallet"
	}
	h.ok(c, http.StatusOK, message, cancelOrderResponse{
		OrderID:      res.OrderID,
		OrderNumber:  res.OrderNumber,
		Status:       string(res.Status),
		RefundAmount: res.RefundMinor,
	})
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}

	order, err := h.svc.Checkout.UpdateStatus(c.Request.Context(), c.Param("orderId"), domain.OrderStatus(req.Status))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Order status updated successfully", toOrderResponse(order))
}
