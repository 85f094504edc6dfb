package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.svc.Catalog.GetProduct(c.Request.Context(), c.Param("productId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Product fetched successfully", toProductResponse(product))
}

func (h *Handler) createProduct(c *gin.Context) {
	var req createProductRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}

	product, err := h.svc.Catalog.CreateProduct(c.Request.Context(), req.toDomain())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusCreated, "Product created successfully", toProductResponse(product))
}

func (h *Handler) blockProduct(c *gin.Context) {
	var req blockProductRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	if req.Blocked == nil {
		h.fail(c, domain.NewValidationError("blocked", "is required"))
		return
	}

	product, err := h.svc.Catalog.SetBlocked(c.Request.Context(), c.Param("productId"), *req.Blocked)
	if err != nil {
		h.fail(c, err)
		return
	}
	message := "Product unblocked successfully"
	if product.Blocked {
		message = "Product blocked successfully"
	}
	h.ok(c, http.StatusOK, message, toProductResponse(product))
}

func (h *Handler) repriceProduct(c *gin.Context) {
	product, changed, err := h.svc.Catalog.Reprice(c.Request.Context(), c.Param("productId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Product prices recalculated", repriceResponse{
		Product: toProductResponse(product),
		Changed: changed,
	})
}

func (h *Handler) validateCoupon(c *gin.Context) {
	var req validateCouponRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}

	p, _ := domain.PrincipalFrom(c.Request.Context())
	quote, err := h.svc.Coupons.Validate(c.Request.Context(), req.Code, p.UserID, req.CartTotal)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Coupon applied successfully", quote)
}

func (h *Handler) createCoupon(c *gin.Context) {
	var req couponPayload
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}

	created, err := h.svc.Coupons.Create(c.Request.Context(), req.toDomain())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusCreated, "Coupon created successfully", fromCoupon(created))
}
