package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func (h *Handler) createOrderPayment(c *gin.Context) {
	intent, err := h.svc.Checkout.CreatePaymentIntent(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Payment order created", toIntentResponse(intent))
}

func (h *Handler) retryPayment(c *gin.Context) {
	intent, err := h.svc.Checkout.RetryPayment(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Payment retry initiated", toIntentResponse(intent))
}

// createPayment открывает интент до создания заказа (сначала оплата, потом оформление).
func (h *Handler) createPayment(c *gin.Context) {
	var req createPaymentRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}

	intent, err := h.svc.Checkout.CreateStandalonePayment(c.Request.Context(), req.Amount, req.Receipt)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Payment order created", toIntentResponse(intent))
}

func (h *Handler) paymentFailure(c *gin.Context) {
	var req paymentFailureRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	ref := strings.TrimSpace(req.OrderID)
	if ref == "" {
		ref = strings.TrimSpace(req.GatewayOrderID)
	}
	if ref == "" {
		h.fail(c, domain.NewValidationError("orderId", "orderId or razorpay_order_id is required"))
		return
	}

	res, err := h.svc.Checkout.RecordPaymentFailure(c.Request.Context(), ref, req.Error)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Payment failure recorded", paymentFailureResponse{
		OrderID:           res.OrderID,
		OrderNumber:       res.OrderNumber,
		RetryWindowEnds:   res.RetryWindowEnds,
		AttemptsRemaining: res.AttemptsRemaining,
	})
}

func (h *Handler) verifyPayment(c *gin.Context) {
	var req verifyPaymentRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}

	res, err := h.svc.Checkout.VerifyPayment(c.Request.Context(), req.confirmation())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Payment verified successfully", toVerifyResponse(res))
}

func (h *Handler) verifyRetryPayment(c *gin.Context) {
	var req verifyPaymentRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	if strings.TrimSpace(req.OrderID) == "" {
		h.fail(c, domain.ErrOrderIDRequired)
		return
	}

	res, err := h.svc.Checkout.VerifyRetryPayment(c.Request.Context(), req.OrderID, req.confirmation())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Payment verified successfully", toVerifyResponse(res))
}
