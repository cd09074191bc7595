package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ericogbekene/Bakery-projectBE/internal/gateway"
	"github.com/ericogbekene/Bakery-projectBE/internal/models"
	"github.com/ericogbekene/Bakery-projectBE/internal/service"
	"github.com/ericogbekene/Bakery-projectBE/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Catalog is the read-only product surface exposed over HTTP
type Catalog interface {
	GetProducts(ctx context.Context) ([]models.Product, error)
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetCategories(ctx context.Context) ([]models.Category, error)
}

// Handler contains HTTP handlers
type Handler struct {
	carts    *service.CartService
	checkout *service.CheckoutService
	payments *service.PaymentService
	catalog  Catalog
}

// NewHandler creates a new HTTP handler
func NewHandler(carts *service.CartService, checkout *service.CheckoutService, payments *service.PaymentService, catalog Catalog) *Handler {
	return &Handler{
		carts:    carts,
		checkout: checkout,
		payments: payments,
		catalog:  catalog,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(sessionMiddleware())
	{
		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)
		v1.GET("/categories", h.listCategories)

		v1.POST("/cart/items", h.addCartItem)
		v1.DELETE("/cart/items/:productID", h.removeCartItem)
		v1.GET("/cart", h.getCart)
		v1.POST("/cart/discount", h.applyDiscount)
		v1.POST("/cart/clear", h.clearCart)

		v1.POST("/orders", h.createOrder)
		v1.GET("/orders/:id", h.getOrder)

		v1.POST("/payments/initialize", h.initializePayment)
		v1.GET("/payments/verify/:reference", h.verifyPayment)
		v1.POST("/payments/webhook", h.paymentWebhook)
		v1.POST("/payments/refund/:reference", h.refundPayment)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// listProducts returns the available catalog
func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.catalog.GetProducts(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// getProduct returns one product by ID
func (h *Handler) getProduct(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	product, err := h.catalog.GetProductByID(c.Request.Context(), id)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// listCategories returns all categories
func (h *Handler) listCategories(c *gin.Context) {
	categories, err := h.catalog.GetCategories(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

type addCartItemRequest struct {
	ProductID        int64 `json:"product_id" binding:"required"`
	Quantity         int   `json:"quantity" binding:"required,min=1"`
	OverrideQuantity bool  `json:"override_quantity"`
}

// addCartItem adds or updates a cart line
func (h *Handler) addCartItem(c *gin.Context) {
	var req addCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.renderBindError(c, err)
		return
	}

	err := h.carts.Add(c.Request.Context(), sessionID(c), req.ProductID, req.Quantity, req.OverrideQuantity)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Product added/updated successfully."})
}

// removeCartItem removes a cart line. Removing an absent product is a
// no-op, so the response is 200 either way.
func (h *Handler) removeCartItem(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Param("productID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	if err := h.carts.Remove(c.Request.Context(), sessionID(c), productID); err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Product removed successfully."})
}

// getCart returns the current cart snapshot with totals
func (h *Handler) getCart(c *gin.Context) {
	detail, err := h.carts.Detail(c.Request.Context(), sessionID(c))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

type discountRequest struct {
	Code string `json:"code" binding:"required"`
}

// applyDiscount stores a discount code on the session
func (h *Handler) applyDiscount(c *gin.Context) {
	var req discountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.renderBindError(c, err)
		return
	}

	discount, err := h.carts.ApplyDiscount(c.Request.Context(), sessionID(c), req.Code)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"discount": discount})
}

// clearCart erases the session cart
func (h *Handler) clearCart(c *gin.Context) {
	if err := h.carts.Clear(c.Request.Context(), sessionID(c)); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cart cleared successfully."})
}

// createOrder handles checkout
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.renderBindError(c, err)
		return
	}

	resp, err := h.checkout.Checkout(c.Request.Context(), sessionID(c), &req)
	if err != nil {
		if errors.Is(err, store.ErrProductNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Cart references a product that no longer exists",
				"details": err.Error(),
			})
			return
		}
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	order, items, err := h.checkout.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order": order,
		"items": items,
	})
}

type initializePaymentRequest struct {
	OrderID int64           `json:"order_id" binding:"required"`
	Email   string          `json:"email" binding:"required,email"`
	Amount  decimal.Decimal `json:"amount" binding:"required"`
}

// initializePayment starts a payment through the gateway
func (h *Handler) initializePayment(c *gin.Context) {
	var req initializePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.renderBindError(c, err)
		return
	}
	if !req.Amount.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Amount must be positive"})
		return
	}

	resp, err := h.payments.Initialize(c.Request.Context(), req.OrderID, req.Email, req.Amount)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// verifyPayment pulls the settled state of a charge from the gateway
func (h *Handler) verifyPayment(c *gin.Context) {
	resp, err := h.payments.Verify(c.Request.Context(), c.Param("reference"))
	if err != nil {
		h.renderError(c, err)
		return
	}

	if !resp.Settled {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":       "Payment verification failed",
			"transaction": resp.Transaction,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Payment verified successfully.",
		"transaction": resp.Transaction,
	})
}

// paymentWebhook handles gateway-signed payment events
func (h *Handler) paymentWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	err = h.payments.HandleWebhook(c.Request.Context(), body, c.GetHeader(gateway.SignatureHeader))
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Event processed"})
}

// refundPayment refunds a transaction through the gateway
func (h *Handler) refundPayment(c *gin.Context) {
	txn, err := h.payments.Refund(c.Request.Context(), c.Param("reference"))
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": txn})
}

// renderBindError reports request validation failures with field-level
// detail where the validator provides it.
func (h *Handler) renderBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Invalid request body",
			"fields": fields,
		})
		return
	}

	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request body",
		"details": err.Error(),
	})
}

// renderError maps service and store errors onto the response taxonomy:
// not-found, conflict, validation, gateway failure, internal.
func (h *Handler) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrProductNotFound),
		errors.Is(err, store.ErrOrderNotFound),
		errors.Is(err, store.ErrTransactionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.Is(err, service.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cart is empty"})

	case errors.Is(err, service.ErrOrderAlreadyPaid),
		errors.Is(err, service.ErrNotRefundable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	case errors.Is(err, service.ErrInvalidSignature),
		errors.Is(err, service.ErrMalformedPayload),
		errors.Is(err, service.ErrUnhandledEvent):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	default:
		var gwErr *gateway.Error
		if errors.As(err, &gwErr) {
			c.JSON(http.StatusBadGateway, gin.H{
				"error":   "Payment gateway error",
				"details": gwErr.Error(),
				"payload": gwErr.Payload,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal error",
			"details": err.Error(),
		})
	}
}
