package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/service/coupon"
	"github.com/vladislavdragonenkov/storefront/internal/service/wallet"
)

const (
	// EnvProduction: окружение, в котором детали ошибок не отдаются клиенту.
	EnvProduction = "production"

	defaultIdempotencyTTL = 24 * time.Hour
)

// Services: прикладные сервисы, которые обслуживает API.
type Services struct {
	Checkout *checkout.Service
	Wallet   *wallet.Service
	Catalog  *catalog.Service
	Coupons  *coupon.Service
}

// Config: параметры HTTP API.
type Config struct {
	Environment    string
	CORSOrigins    []string
	IdempotencyTTL time.Duration
}

// Metrics: метрики HTTP. *metrics.HTTPMetrics удовлетворяет интерфейсу.
type Metrics interface {
	Started()
	Observe(method, route string, status int, elapsed time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) Started()                                   {}
func (noopMetrics) Observe(string, string, int, time.Duration) {}

// Option настраивает Handler.
type Option func(*Handler)

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMetrics включает метрики запросов.
func WithMetrics(m Metrics) Option {
	return func(h *Handler) {
		if m != nil {
			h.metrics = m
		}
	}
}

// WithIdempotency включает обработку заголовка Idempotency-Key.
func WithIdempotency(repo domain.IdempotencyRepository) Option {
	return func(h *Handler) { h.idem = repo }
}

// WithClock подменяет часы (для тестов).
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// Handler связывает маршруты gin с сервисами.
type Handler struct {
	svc     Services
	cfg     Config
	idem    domain.IdempotencyRepository
	metrics Metrics
	logger  *log.Entry
	now     func() time.Time
}

// NewHandler создаёт обработчики API.
func NewHandler(svc Services, cfg Config, opts ...Option) *Handler {
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = defaultIdempotencyTTL
	}
	h := &Handler{
		svc:     svc,
		cfg:     cfg,
		metrics: noopMetrics{},
		logger:  log.WithField("component", "http"),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewRouter собирает gin engine со всеми маршрутами /api/v1.
func NewRouter(svc Services, cfg Config, opts ...Option) *gin.Engine {
	return NewHandler(svc, cfg, opts...).Router()
}

// Router регистрирует маршруты и middleware.
func (h *Handler) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.observe(), h.accessLog())
	if c, ok := corsConfig(h.cfg.CORSOrigins); ok {
		router.Use(cors.New(c))
	}
	router.NoRoute(func(c *gin.Context) {
		h.respond(c, http.StatusNotFound, envelope{Message: "route not found"})
	})

	api := router.Group("/api/v1", h.authenticate())
	api.GET("/products/:productId", h.getProduct)

	user := api.Group("", h.requireUser())
	{
		user.POST("/orders", h.idempotent(), h.placeOrder)
		user.GET("/orders", h.listOrders)
		user.POST("/orders/validate", h.validateOrder)
		user.GET("/orders/:orderId", h.getOrder)
		user.PUT("/orders/:orderId/cancel", h.idempotent(), h.cancelOrder)
		user.POST("/orders/:orderId/payment", h.idempotent(), h.createOrderPayment)
		user.POST("/orders/:orderId/retry-payment", h.idempotent(), h.retryPayment)

		user.POST("/create-payment", h.idempotent(), h.createPayment)
		user.POST("/payment-failure", h.idempotent(), h.paymentFailure)
		user.POST("/verify-payment", h.idempotent(), h.verifyPayment)
		user.POST("/verify-retry-payment", h.idempotent(), h.verifyRetryPayment)

		user.GET("/wallet", h.getWallet)
		user.POST("/coupons/validate", h.validateCoupon)
	}

	admin := api.Group("/admin", h.requireAdmin())
	{
		admin.GET("/orders", h.listAllOrders)
		admin.PUT("/orders/:orderId/status", h.updateOrderStatus)
		admin.POST("/wallets/:userId/refund", h.idempotent(), h.refundWallet)
		admin.POST("/products", h.createProduct)
		admin.PUT("/products/:productId/block", h.blockProduct)
		admin.POST("/products/:productId/reprice", h.repriceProduct)
		admin.POST("/coupons", h.createCoupon)
	}

	return router
}

func corsConfig(origins []string) (cors.Config, bool) {
	var allowed []string
	for _, origin := range origins {
		if origin = strings.TrimSpace(origin); origin != "" {
			allowed = append(allowed, origin)
		}
	}
	if len(allowed) == 0 {
		return cors.Config{}, false
	}

	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", idempotencyHeader, userIDHeader, roleHeader},
		ExposeHeaders: []string{replayedHeader},
		MaxAge:        12 * time.Hour,
	}
	for _, origin := range allowed {
		if origin == "*" {
			c.AllowAllOrigins = true
			return c, true
		}
	}
	c.AllowOrigins = allowed
	c.AllowCredentials = true
	return c, true
}
