package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/storefront/internal/service/wallet"
)

func (h *Handler) getWallet(c *gin.Context) {
	view, err := h.svc.Wallet.GetWallet(c.Request.Context(), "", 0)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Wallet fetched successfully", toWalletResponse(view))
}

func (h *Handler) refundWallet(c *gin.Context) {
	var req refundRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}

	txn, balance, err := h.svc.Wallet.Refund(c.Request.Context(), wallet.RefundRequest{
		UserID:      c.Param("userId"),
		AmountMinor: req.Amount,
		OrderID:     req.OrderID,
		Description: req.Description,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Amount refunded to wallet", refundResponse{
		Transaction: toTransactionResponse(txn),
		Balance:     balance,
	})
}
