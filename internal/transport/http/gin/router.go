package httpgin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spkstore/checkout-go/internal/domain"
	"github.com/spkstore/checkout-go/internal/gateway/midtrans"
	redisrepo "github.com/spkstore/checkout-go/internal/repository/redis"
	"github.com/spkstore/checkout-go/internal/service"
	"github.com/spkstore/checkout-go/internal/service/checkout"
	"github.com/spkstore/checkout-go/internal/service/orders"
	"github.com/spkstore/checkout-go/internal/service/query"
	"github.com/spkstore/checkout-go/internal/service/reconcile"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public API
	r.GET("/tickets/:id/availability", handleSlotAvailability(svcs))
	r.GET("/products/variants/:id/stock", handleVariantStock(svcs))

	// The gateway calls this one; it authenticates with its signature, not a
	// session.
	r.POST("/payments/notifications", handlePaymentNotification(svcs))

	co := r.Group("/checkout", AuthRequired())
	{
		co.POST("/tickets", handleTicketCheckout(svcs, idem))
		co.POST("/products", handleProductCheckout(svcs, idem))
	}

	ord := r.Group("/orders", AuthRequired())
	{
		ord.GET("/:number", handleGetOrder(svcs))
		ord.POST("/:number/sync", handleSyncOrder(svcs))
	}

	adm := r.Group("/admin", AuthRequired(), AdminOnly())
	{
		adm.POST("/pickups/complete", handleCompletePickup(svcs))
	}

	return r
}

// --- Handlers with Swagger annotations ---

// @Summary  Slot availability for a ticket and date
// @Param    id    path   int     true  "Ticket ID"
// @Param    date  query  string  true  "YYYY-MM-DD"
// @Success  200  {array}  query.Slot
// @Router   /tickets/{id}/availability [get]
func handleSlotAvailability(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ticketID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		date := c.Query("date")
		if date == "" {
			badRequest(c, "missing date")
			return
		}
		slots, err := svcs.Query.SlotAvailability(c.Request.Context(), ticketID, date)
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 15s
		writeJSONWithCache(c, http.StatusOK, slots, "public, max-age=15", true)
	}
}

// @Summary  Sellable stock for a product variant
// @Param    id  path  int  true  "Variant ID"
// @Success  200  {object}  query.VariantStock
// @Failure  404  {object}  ErrorResponse
// @Router   /products/variants/{id}/stock [get]
func handleVariantStock(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		variantID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		v, err := svcs.Query.VariantStock(c.Request.Context(), variantID)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, v, "public, max-age=15", true)
	}
}

// @Summary  Ticket checkout (idempotent)
// @Param    req body  CreateTicketOrderRequest true "payload"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} CheckoutResponse
// @Failure  400 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "insufficient capacity / idem in progress"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Failure  502 {object} ErrorResponse "payment gateway unavailable"
// @Router   /checkout/tickets [post]
func handleTicketCheckout(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateTicketOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		userID := c.GetString("user_id")
		rlKey := "ip:" + c.ClientIP()

		runCheckout(c, idem, userID, func() (*checkout.Result, error) {
			items := make([]checkout.TicketItem, 0, len(req.Items))
			for _, it := range req.Items {
				items = append(items, checkout.TicketItem{
					TicketID: it.TicketID,
					Name:     it.Name,
					Price:    it.Price,
					Quantity: it.Quantity,
					Date:     it.Date,
					TimeSlot: it.TimeSlot,
				})
			}
			return svcs.Checkout.CreateTicketOrder(
				c.Request.Context(),
				userID,
				customerFromInput(req.Customer),
				items,
				rlKey,
			)
		})
	}
}

// @Summary  Product checkout (idempotent)
// @Param    req body  CreateProductOrderRequest true "payload"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} CheckoutResponse
// @Failure  400 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "insufficient stock / idem in progress"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Failure  502 {object} ErrorResponse "payment gateway unavailable"
// @Router   /checkout/products [post]
func handleProductCheckout(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateProductOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		userID := c.GetString("user_id")
		rlKey := "ip:" + c.ClientIP()

		runCheckout(c, idem, userID, func() (*checkout.Result, error) {
			items := make([]checkout.ProductItem, 0, len(req.Items))
			for _, it := range req.Items {
				items = append(items, checkout.ProductItem{
					VariantID: it.VariantID,
					Name:      it.Name,
					Price:     it.Price,
					Quantity:  it.Quantity,
				})
			}
			return svcs.Checkout.CreateProductOrder(
				c.Request.Context(),
				userID,
				customerFromInput(req.Customer),
				items,
				rlKey,
			)
		})
	}
}

// runCheckout wraps a checkout call with the Idempotency-Key protocol: replay
// a stored result, refuse concurrent use of the same key, release the lock
// when the attempt fails so the client can retry.
func runCheckout(
	c *gin.Context,
	idem *redisrepo.IdempotencyStore,
	userID string,
	create func() (*checkout.Result, error),
) {
	idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	var idemStorageKey string
	if idem != nil && idemKey != "" {
		idemStorageKey = redisrepo.KeyIdemCheckout(userID, idemKey)

		if replayIdem(c, idem, idemStorageKey, idemKey) {
			return
		}

		locked, err := idem.AcquireLock(c.Request.Context(), idemStorageKey, 60*time.Second)
		if err != nil {
			respondErr(c, err)
			return
		}
		if !locked {
			if replayIdem(c, idem, idemStorageKey, idemKey) {
				return
			}
			c.Header("Retry-After", "1")
			c.JSON(http.StatusConflict, ErrorResponse{Error: "idempotency key in progress"})
			return
		}
	}

	res, err := create()
	if err != nil {
		if idemStorageKey != "" && idem != nil {
			_ = idem.Release(c.Request.Context(), idemStorageKey)
		}
		if isRateLimitedErr(err) {
			c.Header("Retry-After", "60")
			c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: err.Error()})
			return
		}
		respondErr(c, err)
		return
	}

	resp := CheckoutResponse{
		OrderNumber:      res.OrderNumber,
		Token:            res.Token,
		RedirectURL:      res.RedirectURL,
		PaymentExpiresAt: res.PaymentExpires,
	}

	if idemStorageKey != "" && idem != nil {
		b, _ := json.Marshal(resp)
		_ = idem.SaveResult(c.Request.Context(), idemStorageKey, string(b))
		c.Header("Idempotency-Key", idemKey)
	}

	c.JSON(http.StatusCreated, resp)
}

func replayIdem(c *gin.Context, idem *redisrepo.IdempotencyStore, storageKey, idemKey string) bool {
	payload, ok, _ := idem.GetResult(c.Request.Context(), storageKey)
	if !ok {
		return false
	}

	c.Header("Idempotency-Key", idemKey)
	c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))

	return true
}

// @Summary  Payment gateway notification
// @Param    req body  webhookPayload true "gateway payload"
// @Success  200 {object} map[string]string
// @Failure  403 {object} ErrorResponse "invalid signature"
// @Failure  404 {object} ErrorResponse "unknown order"
// @Router   /payments/notifications [post]
func handlePaymentNotification(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.GetRawData()
		if err != nil {
			badRequest(c, "unreadable body")
			return
		}

		var p webhookPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			badRequest(c, "invalid json")
			return
		}
		if p.OrderID == "" {
			badRequest(c, "missing order_id")
			return
		}

		ev := domain.GatewayEvent{
			OrderNumber:       p.OrderID,
			TransactionStatus: p.TransactionStatus,
			FraudStatus:       p.FraudStatus,
			StatusCode:        midtrans.NormalizeStatusCode(p.StatusCode),
			GrossAmount:       midtrans.NormalizeGross(p.GrossAmount),
			SignatureKey:      p.SignatureKey,
			Raw:               raw,
		}

		if err := svcs.Reconcile.HandleNotification(c.Request.Context(), ev); err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// @Summary  Get order
// @Param    number  path  string  true  "Order number"
// @Success  200 {object} OrderResponse
// @Failure  403 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse
// @Router   /orders/{number} [get]
func handleGetOrder(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, err := svcs.Orders.GetOrder(
			c.Request.Context(),
			c.GetString("user_id"),
			c.Param("number"),
			c.GetBool("is_admin"),
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, orderToResponse(o))
	}
}

// @Summary  Poll the gateway and reconcile the order
// @Param    number  path  string  true  "Order number"
// @Success  200 {object} OrderResponse
// @Failure  403 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse
// @Failure  502 {object} ErrorResponse "gateway unreachable"
// @Router   /orders/{number}/sync [post]
func handleSyncOrder(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		hold, err := svcs.Reconcile.SyncStatus(
			c.Request.Context(),
			c.GetString("user_id"),
			c.Param("number"),
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, holdToResponse(hold, nil))
	}
}

// @Summary  Complete a pickup by code
// @Param    req body  CompletePickupRequest true "payload"
// @Success  200 {object} OrderResponse
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "not paid / already picked up"
// @Failure  410 {object} ErrorResponse "pickup window expired"
// @Router   /admin/pickups/complete [post]
func handleCompletePickup(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CompletePickupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		completedBy := req.CompletedBy
		if completedBy == "" {
			completedBy = c.GetString("user_id")
		}

		hold, err := svcs.Orders.CompletePickup(c.Request.Context(), req.PickupCode, completedBy)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, holdToResponse(hold, nil))
	}
}

// --- Helpers ---

func customerFromInput(in CustomerInput) domain.Customer {
	return domain.Customer{Name: in.Name, Email: in.Email, Phone: in.Phone}
}

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	s := c.Param(name)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func isRateLimitedErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "rate limited")
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	switch {
	// checkout service
	case errors.Is(err, checkout.ErrInvalidLineItem):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	case errors.Is(err, checkout.ErrInsufficientStock):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
		return
	case errors.Is(err, midtrans.ErrUnavailable):
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "payment gateway unavailable"})
		return
	// reconcile service
	case errors.Is(err, reconcile.ErrInvalidSignature):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "invalid signature"})
		return
	case errors.Is(err, reconcile.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "order not found"})
		return
	case errors.Is(err, reconcile.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden"})
		return
	// orders service
	case errors.Is(err, orders.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "order not found"})
		return
	case errors.Is(err, orders.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden"})
		return
	case errors.Is(err, orders.ErrNotPaid):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "order is not paid"})
		return
	case errors.Is(err, orders.ErrPickupCompleted):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "pickup already completed"})
		return
	case errors.Is(err, orders.ErrPickupExpired):
		c.JSON(http.StatusGone, ErrorResponse{Error: "pickup window expired"})
		return
	// query service
	case errors.Is(err, query.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
		return
	}

	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}
