package handlers

import (
	"errors"
	"net/http"

	"checkout-svc/checkout"
	"checkout-svc/coupons"
	"checkout-svc/middleware"
	"checkout-svc/models"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type CheckoutHandler struct {
	sessions     *checkout.SessionStore
	orchestrator *checkout.Orchestrator
	coupons      *coupons.Lookup
	logger       *zap.Logger
}

func NewCheckoutHandler(
	sessions *checkout.SessionStore,
	orchestrator *checkout.Orchestrator,
	couponLookup *coupons.Lookup,
	logger *zap.Logger,
) *CheckoutHandler {
	return &CheckoutHandler{
		sessions:     sessions,
		orchestrator: orchestrator,
		coupons:      couponLookup,
		logger:       logger,
	}
}

type createSessionRequest struct {
	Cart       []models.CartLine         `json:"cart" binding:"required,min=1,dive"`
	Shipping   *models.ShippingSelection `json:"shipping"`
	CouponCode string                    `json:"coupon_code"`
}

type sessionResponse struct {
	SessionID string               `json:"session_id"`
	Subtotal  float64              `json:"subtotal"`
	Discount  float64              `json:"discount"`
	Shipping  float64              `json:"shipping"`
	Total     float64              `json:"total"`
	State     models.CheckoutState `json:"state"`
}

func (h *CheckoutHandler) CreateSession(c *gin.Context) {
	ctx, span := otel.Tracer("checkout-svc").Start(c.Request.Context(), "CreateCheckoutSession")
	defer span.End()

	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var coupon *models.Coupon
	if req.CouponCode != "" && h.coupons != nil {
		found, err := h.coupons.ByCode(ctx, req.CouponCode)
		if errors.Is(err, coupons.ErrCouponNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cupom não encontrado"})
			return
		}
		if err != nil {
			span.RecordError(err)
			h.logger.Error("Failed to look up coupon", zap.String("code", req.CouponCode), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		coupon = found
	}

	session := h.sessions.Create(middleware.UserID(c), req.Cart, req.Shipping, coupon)
	span.SetAttributes(attribute.String("session.id", session.ID))

	h.logger.Info("Checkout session created",
		zap.String("session_id", session.ID),
		zap.Int("user_id", session.UserID),
		zap.Int("cart_lines", len(req.Cart)),
	)
	c.JSON(http.StatusCreated, h.sessionResponse(session))
}

func (h *CheckoutHandler) GetSession(c *gin.Context) {
	session, ok := h.loadSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.sessionResponse(session))
}

type submitRequest struct {
	Form          models.ShippingForm `json:"form"`
	PaymentMethod string              `json:"payment_method" binding:"required"`
	BillingType   string              `json:"billing_type"`
}

// Submit runs the checkout saga. Failures come back with the state
// machine already reset to the shipping step; the response always
// carries the resulting state.
func (h *CheckoutHandler) Submit(c *gin.Context) {
	ctx, span := otel.Tracer("checkout-svc").Start(c.Request.Context(), "SubmitCheckout")
	defer span.End()

	session, ok := h.loadSession(c)
	if !ok {
		return
	}

	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	state, err := h.orchestrator.Submit(ctx, session, checkout.SubmitRequest{
		Form:          req.Form,
		PaymentMethod: req.PaymentMethod,
		BillingType:   req.BillingType,
	})
	if err != nil {
		h.submitError(c, span.SpanContext().TraceID().String(), session.ID, state, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *CheckoutHandler) submitError(c *gin.Context, traceID, sessionID string, state models.CheckoutState, err error) {
	var validationErr *checkout.ValidationError
	var couponErr *checkout.CouponRejectedError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"state": state, "field_errors": validationErr.Fields})
	case errors.As(err, &couponErr):
		c.JSON(http.StatusConflict, gin.H{"state": state, "error": couponErr.Message})
	case errors.Is(err, checkout.ErrSubmitInFlight):
		c.JSON(http.StatusConflict, gin.H{"state": state, "error": "Pedido já está sendo processado"})
	case errors.Is(err, checkout.ErrSessionExpired):
		c.JSON(http.StatusGone, gin.H{"error": "Sessão de checkout expirada"})
	case errors.Is(err, checkout.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Carrinho vazio"})
	case errors.Is(err, checkout.ErrPaymentDeclined):
		c.JSON(http.StatusPaymentRequired, gin.H{"state": state, "error": state.Error})
	default:
		h.logger.Error("Checkout submission failed",
			zap.String("trace_id", traceID),
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		c.JSON(http.StatusBadGateway, gin.H{"state": state, "error": state.Error})
	}
}

// Cancel stops any scheduled payment poll and drops the session.
func (h *CheckoutHandler) Cancel(c *gin.Context) {
	session, ok := h.loadSession(c)
	if !ok {
		return
	}
	h.sessions.Delete(session.ID)
	h.logger.Info("Checkout session cancelled", zap.String("session_id", session.ID))
	c.Status(http.StatusNoContent)
}

// ShippingQuotes is a stub collaborator: fixed carrier options keyed
// only by a well-formed postal code.
func (h *CheckoutHandler) ShippingQuotes(c *gin.Context) {
	postalCode := c.Query("postal_code")
	if postalCode == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "postal_code is required"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"options": []models.ShippingSelection{
		{Carrier: "Correios", Service: "PAC", Price: 15.90, DeliveryTimeDays: 8},
		{Carrier: "Correios", Service: "SEDEX", Price: 27.50, DeliveryTimeDays: 3},
	}})
}

func (h *CheckoutHandler) loadSession(c *gin.Context) (*checkout.Session, bool) {
	session, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Checkout session not found"})
		return nil, false
	}
	if session.UserID != middleware.UserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return nil, false
	}
	return session, true
}

func (h *CheckoutHandler) sessionResponse(session *checkout.Session) sessionResponse {
	subtotal := models.Subtotal(session.Cart)
	var discount float64
	if session.Coupon != nil {
		discount = session.Coupon.DiscountFor(subtotal)
	}
	var shipping float64
	if session.Shipping != nil {
		shipping = session.Shipping.Price
	}
	return sessionResponse{
		SessionID: session.ID,
		Subtotal:  subtotal,
		Discount:  discount,
		Shipping:  shipping,
		Total:     models.Round2(subtotal - discount + shipping),
		State:     session.State(),
	}
}
