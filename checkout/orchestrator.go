package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"checkout-svc/coupons"
	"checkout-svc/kafka"
	"checkout-svc/middleware"
	"checkout-svc/models"
	"checkout-svc/rails"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var (
	ErrSubmitInFlight  = errors.New("a checkout submission is already in flight")
	ErrSessionExpired  = errors.New("checkout session expired")
	ErrPaymentDeclined = errors.New("payment declined")
	ErrEmptyCart       = errors.New("cart is empty")
)

// ValidationError carries the field-level errors that blocked a
// submission before any remote call.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("checkout form validation failed (%d fields)", len(e.Fields))
}

// CouponRejectedError carries the reservation service's message, which
// is surfaced verbatim to the user.
type CouponRejectedError struct {
	Message string
}

func (e *CouponRejectedError) Error() string {
	return "coupon rejected: " + e.Message
}

type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) (duplicate bool, err error)
	CreateItems(ctx context.Context, orderID int, lines []models.CartLine) error
	DeleteOrder(ctx context.Context, orderID int) error
}

type CouponReserver interface {
	Reserve(ctx context.Context, couponID int) (coupons.Reservation, error)
	Release(ctx context.Context, couponID int) error
}

type DirectRail interface {
	GeneratePayment(ctx context.Context, req rails.DirectPaymentRequest) (*models.DirectTransferPayment, error)
}

type GatewayRail interface {
	CreatePayment(ctx context.Context, req rails.GatewayPaymentRequest) (*models.GatewayPayment, error)
	ChargeCard(ctx context.Context, req rails.CardChargeRequest) (*models.CardChargeResult, error)
	PaymentStatus(ctx context.Context, paymentID string) (string, error)
}

// Orchestrator drives the checkout saga: order creation, coupon
// reservation, item creation, payment-rail routing and the polling
// watcher, with one compensation per step.
type Orchestrator struct {
	orders   OrderStore
	reserver CouponReserver
	direct   DirectRail
	gateway  GatewayRail
	producer sarama.SyncProducer
	logger   *zap.Logger

	pollInterval    time.Duration
	maxPollAttempts int
}

func NewOrchestrator(
	orders OrderStore,
	reserver CouponReserver,
	direct DirectRail,
	gateway GatewayRail,
	producer sarama.SyncProducer,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		orders:          orders,
		reserver:        reserver,
		direct:          direct,
		gateway:         gateway,
		producer:        producer,
		logger:          logger,
		pollInterval:    2 * time.Second,
		maxPollAttempts: 30,
	}
}

// SubmitRequest carries the submit inputs. They are copied onto the
// session only after the in-flight gate is acquired, so a rejected
// re-entry can never alter a running saga's inputs.
type SubmitRequest struct {
	Form          models.ShippingForm
	PaymentMethod string
	BillingType   string
}

// Submit runs validation and the order/coupon saga for the session,
// then routes to the selected payment rail. It returns the resulting
// checkout state; on failure the state is deterministically back at the
// shipping step with a user-facing message.
func (o *Orchestrator) Submit(ctx context.Context, session *Session, req SubmitRequest) (models.CheckoutState, error) {
	ctx, span := otel.Tracer("checkout-svc").Start(ctx, "SubmitCheckout")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", session.ID),
		attribute.String("payment.method", req.PaymentMethod),
	)

	if session.Expired() {
		return session.State(), ErrSessionExpired
	}
	if len(session.Cart) == 0 {
		return session.State(), ErrEmptyCart
	}

	if !session.tryBeginSubmit() {
		return session.State(), ErrSubmitInFlight
	}
	defer session.finishSubmit()

	// The gate is held: only this submission touches the inputs now.
	session.Form = req.Form
	session.PaymentMethod = req.PaymentMethod
	session.BillingType = req.BillingType

	if fieldErrs := Validate(session.Form, session.Shipping, session.PaymentMethod, session.BillingType); len(fieldErrs) > 0 {
		middleware.RecordCheckoutSubmission("validation_error")
		state := models.ShippingStateWithErrors(fieldErrs, "Verifique os campos destacados")
		session.setState(state)
		return state, &ValidationError{Fields: fieldErrs}
	}

	// The card path shows "in flight" before any network call, order
	// creation included.
	if session.PaymentMethod == models.PaymentMethodGateway && session.BillingType == models.BillingTypeCard {
		session.setState(models.ProcessingState())
	}

	// Totals are recomputed from the live cart, coupon and shipping at
	// submit time; preview numbers are never trusted.
	subtotal := models.Subtotal(session.Cart)
	var discount float64
	if session.Coupon != nil {
		discount = session.Coupon.DiscountFor(subtotal)
	}
	total := models.Round2(subtotal - discount + session.Shipping.Price)
	span.SetAttributes(attribute.Float64("order.total", total))

	order := o.buildOrder(session, total, discount)
	duplicate, err := o.orders.CreateOrder(ctx, order)
	if err != nil {
		span.RecordError(err)
		return o.failToShipping(session, "Não foi possível criar o pedido", err)
	}
	span.SetAttributes(attribute.Int("order.id", order.ID))

	if duplicate {
		// A previous submission with this attempt key already created
		// the order, reserved the coupon and wrote the items; only the
		// rail initiation is (re)attempted.
		o.logger.Info("Resubmission matched existing order",
			zap.String("session_id", session.ID),
			zap.Int("order_id", order.ID),
		)
	} else {
		if session.Coupon != nil {
			reservation, err := o.reserver.Reserve(ctx, session.Coupon.ID)
			if err != nil {
				span.RecordError(err)
				o.deleteOrder(ctx, order.ID)
				return o.failToShipping(session, "Não foi possível validar o cupom", err)
			}
			if !reservation.Success {
				middleware.RecordCouponReservation("rejected")
				o.deleteOrder(ctx, order.ID)
				middleware.RecordCheckoutSubmission("coupon_rejected")
				state := models.ShippingStateWithErrors(nil, reservation.Message)
				session.setState(state)
				return state, &CouponRejectedError{Message: reservation.Message}
			}
			middleware.RecordCouponReservation("reserved")
		}

		if err := o.orders.CreateItems(ctx, order.ID, session.Cart); err != nil {
			span.RecordError(err)
			o.compensate(ctx, session, order)
			return o.failToShipping(session, "Não foi possível registrar os itens do pedido", err)
		}

		o.publishEvent(ctx, order, "order_created")
	}

	return o.route(ctx, session, order, total)
}

func (o *Orchestrator) buildOrder(session *Session, total, discount float64) *models.Order {
	order := &models.Order{
		UserID:             session.UserID,
		TotalAmount:        total,
		Status:             models.OrderStatusPending,
		PaymentStatus:      models.PaymentStatusPending,
		PaymentMethod:      session.PaymentMethod,
		ShippingCarrier:    session.Shipping.Carrier,
		ShippingService:    session.Shipping.Service,
		ShippingCost:       session.Shipping.Price,
		ShippingName:       session.Form.Name,
		ShippingPhone:      session.Form.Phone,
		ShippingPostalCode: session.Form.PostalCode,
		ShippingStreet:     session.Form.Street,
		ShippingNumber:     session.Form.Number,
		ShippingCity:       session.Form.City,
		ShippingState:      session.Form.State,
		DiscountAmount:     discount,
		AttemptKey:         session.AttemptKey(),
	}
	if session.Coupon != nil {
		couponID := session.Coupon.ID
		order.CouponID = &couponID
	}
	return order
}

// route dispatches to the selected payment rail. On rail
// failure the whole saga is compensated so no orphaned pending order
// survives.
func (o *Orchestrator) route(ctx context.Context, session *Session, order *models.Order, total float64) (models.CheckoutState, error) {
	switch session.PaymentMethod {
	case models.PaymentMethodDirectTransfer:
		return o.routeDirectTransfer(ctx, session, order)
	case models.PaymentMethodGateway:
		if session.BillingType == models.BillingTypeCard {
			return o.routeCard(ctx, session, order, total)
		}
		return o.routeGatewayBilling(ctx, session, order, total)
	default:
		// Unreachable after validation; kept as a hard failure.
		o.compensate(ctx, session, order)
		return o.failToShipping(session, "Método de pagamento inválido",
			fmt.Errorf("unknown payment method %q", session.PaymentMethod))
	}
}

func (o *Orchestrator) routeDirectTransfer(ctx context.Context, session *Session, order *models.Order) (models.CheckoutState, error) {
	payment, err := o.direct.GeneratePayment(ctx, rails.DirectPaymentRequest{
		OrderID:       order.ID,
		Amount:        order.TotalAmount,
		CustomerName:  session.Form.Name,
		CustomerEmail: session.Form.Email,
		CustomerPhone: session.Form.Phone,
	})
	if err != nil {
		o.compensate(ctx, session, order)
		return o.failToShipping(session, "Não foi possível gerar o pagamento", err)
	}

	session.clearCart()
	state := models.AwaitingDirectTransferState(order.ID, payment)
	session.setState(state)

	o.publishEvent(ctx, order, "payment_initiated")
	o.notifyOperator(ctx, session, order)
	middleware.RecordCheckoutSubmission("direct_transfer")
	return state, nil
}

func (o *Orchestrator) routeCard(ctx context.Context, session *Session, order *models.Order, total float64) (models.CheckoutState, error) {
	result, err := o.gateway.ChargeCard(ctx, rails.CardChargeRequest{
		OrderID:       order.ID,
		Amount:        total,
		CustomerName:  session.Form.Name,
		CustomerEmail: session.Form.Email,
		CustomerPhone: session.Form.Phone,
		TaxID:         session.Form.TaxID,
		PostalCode:    session.Form.PostalCode,
		Street:        session.Form.Street,
		Number:        session.Form.Number,
		City:          session.Form.City,
		State:         session.Form.State,
		CardNumber:    session.Form.CardNumber,
		CardHolder:    session.Form.CardHolder,
		CardExpiry:    session.Form.CardExpiry,
		CardCVV:       session.Form.CardCVV,
		Installments:  session.Form.Installments,
	})
	if err != nil {
		o.compensate(ctx, session, order)
		return o.failToShipping(session, "Não foi possível processar o cartão", err)
	}

	switch result.Status {
	case models.CardStatusApproved:
		session.clearCart()
		state := models.ConfirmationState(order.ID, total, models.PaymentMethodGateway, "")
		session.setState(state)
		o.publishEvent(ctx, order, "payment_confirmed")
		middleware.RecordCheckoutSubmission("card_approved")
		return state, nil

	case models.CardStatusPending:
		session.clearCart()
		o.publishEvent(ctx, order, "payment_initiated")
		o.watchPayment(session, order.ID, total, result.PaymentID)
		middleware.RecordCheckoutSubmission("card_pending")
		return session.State(), nil

	default:
		// Declined. The form (card fields included) stays on the
		// session for correction.
		o.compensate(ctx, session, order)
		state, _ := o.failToShipping(session, "Pagamento recusado pela operadora", nil)
		return state, ErrPaymentDeclined
	}
}

func (o *Orchestrator) routeGatewayBilling(ctx context.Context, session *Session, order *models.Order, total float64) (models.CheckoutState, error) {
	payment, err := o.gateway.CreatePayment(ctx, rails.GatewayPaymentRequest{
		OrderID:       order.ID,
		Amount:        total,
		CustomerName:  session.Form.Name,
		CustomerEmail: session.Form.Email,
		CustomerPhone: session.Form.Phone,
		TaxID:         session.Form.TaxID,
		BillingType:   session.BillingType,
	})
	if err != nil {
		o.compensate(ctx, session, order)
		return o.failToShipping(session, "Não foi possível iniciar o pagamento", err)
	}

	session.clearCart()
	o.publishEvent(ctx, order, "payment_initiated")

	var state models.CheckoutState
	if session.BillingType == models.BillingTypeTransfer && payment.TransferQR != nil {
		state = models.AwaitingGatewayState(order.ID, payment)
	} else {
		link := payment.VoucherURL
		if link == "" {
			link = payment.InvoiceURL
		}
		state = models.ConfirmationState(order.ID, total, models.PaymentMethodGateway, link)
	}
	session.setState(state)
	middleware.RecordCheckoutSubmission(session.BillingType)
	return state, nil
}

// compensate undoes every saga step performed so far: the order row
// (cascading to its items) and, when one was applied, the coupon
// reservation.
func (o *Orchestrator) compensate(ctx context.Context, session *Session, order *models.Order) {
	o.deleteOrder(ctx, order.ID)
	if session.Coupon != nil {
		if err := o.reserver.Release(ctx, session.Coupon.ID); err != nil {
			o.logger.Error("Failed to release coupon reservation",
				zap.Int("coupon_id", session.Coupon.ID),
				zap.Int("order_id", order.ID),
				zap.Error(err),
			)
		}
	}
	o.publishEvent(ctx, order, "order_compensated")
}

func (o *Orchestrator) deleteOrder(ctx context.Context, orderID int) {
	if err := o.orders.DeleteOrder(ctx, orderID); err != nil {
		o.logger.Error("Failed to delete order during compensation",
			zap.Int("order_id", orderID),
			zap.Error(err),
		)
	}
}

func (o *Orchestrator) failToShipping(session *Session, userMsg string, err error) (models.CheckoutState, error) {
	middleware.RecordCheckoutSubmission("failed")
	state := models.ShippingStateWithErrors(nil, userMsg)
	session.setState(state)
	if err != nil {
		err = fmt.Errorf("checkout failed: %w", err)
	}
	return state, err
}

func (o *Orchestrator) publishEvent(ctx context.Context, order *models.Order, eventType string) {
	if o.producer == nil {
		return
	}
	event := models.OrderEvent{
		OrderID:       order.ID,
		UserID:        order.UserID,
		TotalAmount:   order.TotalAmount,
		PaymentMethod: order.PaymentMethod,
		EventType:     eventType,
	}
	if err := kafka.PublishEvent(ctx, o.producer, kafka.TopicCheckoutEvents, event, o.logger); err != nil {
		o.logger.Error("Failed to publish checkout event",
			zap.String("event_type", eventType),
			zap.Int("order_id", order.ID),
			zap.Error(err),
		)
	}
}

// notifyOperator fires the best-effort operator deep link after a
// direct-transfer payment is generated. No retry, no error
// propagation: a failure here never fails the checkout.
func (o *Orchestrator) notifyOperator(ctx context.Context, session *Session, order *models.Order) {
	if o.producer == nil {
		return
	}
	notification := models.OperatorNotification{
		OrderID:      order.ID,
		Amount:       order.TotalAmount,
		CustomerName: session.Form.Name,
		Phone:        session.Form.Phone,
		City:         session.Form.City,
	}
	detached := context.WithoutCancel(ctx)
	go func() {
		if err := kafka.PublishEvent(detached, o.producer, kafka.TopicOperatorNotifications, notification, o.logger); err != nil {
			o.logger.Warn("Operator notification failed",
				zap.Int("order_id", order.ID),
				zap.Error(err),
			)
		}
	}()
}
