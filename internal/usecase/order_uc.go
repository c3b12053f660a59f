package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/chineduo/solarhub/internal/adapters/payments/paystack"
	"github.com/chineduo/solarhub/internal/domain"
	"github.com/chineduo/solarhub/internal/metrics"
)

// PaymentGateway is what the lifecycle needs from Paystack: start a hosted
// checkout and ask the source of truth whether it was paid.
type PaymentGateway interface {
	Initialize(ctx context.Context, req paystack.InitRequest) (*paystack.Authorization, error)
	Verify(ctx context.Context, reference string) (*paystack.Verification, error)
}

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// paymentReference builds a gateway reference that is unique per attempt,
// prefixed so the webhook can tell session-first traffic apart at a glance.
func paymentReference(prefix string, now time.Time) string {
	return fmt.Sprintf("%s_%d_%s", prefix, now.Unix(), strings.ToLower(uuid.NewString()[:8]))
}

type OrderUC struct {
	Orders   domain.OrderRepo
	Products domain.ProductRepo
	Promos   domain.PromotionRepo
	Gateway  PaymentGateway
	Sessions *SessionCodec
	Notify   *Notifier

	ShippingFee float64
	CallbackURL string

	Clock func() time.Time
}

func (uc *OrderUC) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock()
	}
	return time.Now()
}

type CheckoutItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

type CheckoutRequest struct {
	CustomerEmail string             `json:"customer_email"`
	CustomerPhone string             `json:"customer_phone"`
	FirstName     string             `json:"first_name"`
	LastName      string             `json:"last_name"`
	Fulfillment   domain.Fulfillment `json:"fulfillment"`
	PaymentMethod string             `json:"payment_method"`
	PromoCode     string             `json:"promo_code"`
	Items         []CheckoutItem     `json:"items"`
}

func (r *CheckoutRequest) validate() error {
	fields := map[string]string{}
	if !emailRe.MatchString(r.CustomerEmail) {
		fields["customer_email"] = "valid email is required"
	}
	if strings.TrimSpace(r.FirstName) == "" {
		fields["first_name"] = "required"
	}
	if strings.TrimSpace(r.LastName) == "" {
		fields["last_name"] = "required"
	}
	if len(r.Items) == 0 {
		fields["items"] = "at least one item is required"
	}
	for i, it := range r.Items {
		if it.ProductID == uuid.Nil {
			fields[fmt.Sprintf("items.%d.product_id", i)] = "required"
		}
		if it.Quantity < 1 {
			fields[fmt.Sprintf("items.%d.quantity", i)] = "must be at least 1"
		}
	}
	if err := r.Fulfillment.Validate(); err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			for k, v := range ve.Fields {
				fields[k] = v
			}
		} else {
			return err
		}
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

// buildDraft prices the cart from the catalog, never from the client:
// unit prices, stock checks and the promo discount all come from current
// server-side state.
func (uc *OrderUC) buildDraft(ctx context.Context, req CheckoutRequest) (*OrderDraft, error) {
	draft := &OrderDraft{
		CustomerEmail: strings.ToLower(strings.TrimSpace(req.CustomerEmail)),
		CustomerPhone: strings.TrimSpace(req.CustomerPhone),
		FirstName:     strings.TrimSpace(req.FirstName),
		LastName:      strings.TrimSpace(req.LastName),
		Fulfillment:   req.Fulfillment,
		PaymentMethod: req.PaymentMethod,
	}
	if draft.PaymentMethod == "" {
		draft.PaymentMethod = "paystack"
	}
	subtotal := 0.0
	for _, it := range req.Items {
		p, err := uc.Products.FindByID(ctx, it.ProductID)
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", it.ProductID, err)
		}
		if !p.Active {
			return nil, fmt.Errorf("product %s is not available: %w", p.Name, domain.ErrNotFound)
		}
		if p.Stock < it.Quantity {
			return nil, domain.NewInsufficientStock(p.Name, it.Quantity, p.Stock)
		}
		snapshot, _ := json.Marshal(p)
		draft.Items = append(draft.Items, OrderDraftItem{
			ProductID:    p.ID,
			ProductName:  p.Name,
			ProductPrice: p.Price,
			Quantity:     it.Quantity,
			Snapshot:     snapshot,
		})
		subtotal += p.Price * float64(it.Quantity)
	}
	draft.Subtotal = subtotal
	if req.Fulfillment.Method == domain.FulfillmentDelivery {
		draft.ShippingFee = uc.ShippingFee
	}
	if code := strings.TrimSpace(req.PromoCode); code != "" {
		promo, err := uc.Promos.FindByCode(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("promo code %q: %w", code, err)
		}
		if !promo.IsValid(uc.now()) || !promo.CanApplyToAmount(subtotal) {
			return nil, &domain.ValidationError{Fields: map[string]string{"promo_code": "code is not applicable to this order"}}
		}
		draft.PromoCode = promo.PromoCode
		draft.DiscountAmount = promo.Discount(subtotal)
	}
	draft.TotalAmount = draft.Subtotal + draft.ShippingFee - draft.DiscountAmount
	return draft, nil
}

func (uc *OrderUC) orderFromDraft(d *OrderDraft) *domain.Order {
	o := &domain.Order{
		ID:             uuid.New(),
		OrderNumber:    domain.NewOrderNumber(),
		CustomerEmail:  d.CustomerEmail,
		CustomerPhone:  d.CustomerPhone,
		FirstName:      d.FirstName,
		LastName:       d.LastName,
		ShippingFee:    d.ShippingFee,
		DiscountAmount: d.DiscountAmount,
		Currency:       "NGN",
		Status:         domain.OrderStatusPending,
		PaymentStatus:  domain.PaymentStatusPending,
		PaymentMethod:  d.PaymentMethod,
		PromoCode:      d.PromoCode,
	}
	o.SetFulfillment(d.Fulfillment)
	for _, it := range d.Items {
		o.Items = append(o.Items, domain.OrderItem{
			ID:              uuid.New(),
			OrderID:         o.ID,
			ProductID:       it.ProductID,
			ProductName:     it.ProductName,
			ProductPrice:    it.ProductPrice,
			Quantity:        it.Quantity,
			ProductSnapshot: it.Snapshot,
		})
	}
	o.RecalculateTotals()
	return o
}

// CheckoutResult is what the storefront needs to hand the customer off to
// the hosted payment page.
type CheckoutResult struct {
	OrderNumber      string  `json:"order_number,omitempty"`
	Reference        string  `json:"reference"`
	AuthorizationURL string  `json:"authorization_url"`
	AccessCode       string  `json:"access_code"`
	Amount           float64 `json:"amount"`
	Currency         string  `json:"currency"`
}

// InitializeCheckout is the eager flow: the order row exists as pending
// before the customer ever sees the payment page. Abandoned checkouts leave
// pending rows behind.
func (uc *OrderUC) InitializeCheckout(ctx context.Context, req CheckoutRequest) (*domain.Order, *CheckoutResult, error) {
	if err := req.validate(); err != nil {
		return nil, nil, err
	}
	draft, err := uc.buildDraft(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	o := uc.orderFromDraft(draft)
	o.PaystackReference = paymentReference("order", uc.now())
	auth, err := uc.Gateway.Initialize(ctx, paystack.InitRequest{
		Email:       o.CustomerEmail,
		Amount:      o.TotalAmount,
		Currency:    o.Currency,
		Reference:   o.PaystackReference,
		CallbackURL: uc.CallbackURL,
		Metadata: map[string]any{
			"order_id":      o.ID.String(),
			"order_number":  o.OrderNumber,
			"customer_name": o.CustomerName(),
		},
	})
	if err != nil {
		return nil, nil, err
	}
	o.PaystackAccessCode = auth.AccessCode
	if err := uc.Orders.Create(ctx, o); err != nil {
		return nil, nil, fmt.Errorf("create order: %w", err)
	}
	uc.Notify.NewOrder(ctx, o)
	return o, &CheckoutResult{
		OrderNumber:      o.OrderNumber,
		Reference:        o.PaystackReference,
		AuthorizationURL: auth.AuthorizationURL,
		AccessCode:       auth.AccessCode,
		Amount:           o.TotalAmount,
		Currency:         o.Currency,
	}, nil
}

// InitializeCheckoutSession is the session-first flow: nothing is persisted.
// The whole draft travels in the gateway metadata and only a verified
// payment materializes an order.
func (uc *OrderUC) InitializeCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	draft, err := uc.buildDraft(ctx, req)
	if err != nil {
		return nil, err
	}
	md, err := uc.Sessions.EncodeOrderSession(*draft)
	if err != nil {
		return nil, err
	}
	reference := paymentReference("order_session", uc.now())
	auth, err := uc.Gateway.Initialize(ctx, paystack.InitRequest{
		Email:       draft.CustomerEmail,
		Amount:      draft.TotalAmount,
		Currency:    "NGN",
		Reference:   reference,
		CallbackURL: uc.CallbackURL,
		Metadata:    md,
	})
	if err != nil {
		return nil, err
	}
	return &CheckoutResult{
		Reference:        reference,
		AuthorizationURL: auth.AuthorizationURL,
		AccessCode:       auth.AccessCode,
		Amount:           draft.TotalAmount,
		Currency:         "NGN",
	}, nil
}

// VerifyPayment is the client-driven confirmation path for an existing
// order. It trusts only the gateway verify call, never the redirect.
func (uc *OrderUC) VerifyPayment(ctx context.Context, reference string) (*domain.Order, error) {
	if _, err := uc.Orders.FindByReference(ctx, reference); err != nil {
		return nil, err
	}
	v, err := uc.Gateway.Verify(ctx, reference)
	if err != nil {
		return nil, err
	}
	if v.Status != "success" {
		o, err := uc.recordFailure(ctx, reference, v.Raw)
		if err != nil {
			return nil, err
		}
		return o, fmt.Errorf("payment %s: %w", v.Status, domain.ErrGatewayFailure)
	}
	return uc.confirmPaid(ctx, reference, v.Channel, v.Raw)
}

// VerifyAndCreateFromSession is the session-first confirmation path: verify
// with the gateway, decode the draft out of the metadata, then materialize
// exactly one paid order for the reference.
func (uc *OrderUC) VerifyAndCreateFromSession(ctx context.Context, reference string) (*domain.Order, error) {
	v, err := uc.Gateway.Verify(ctx, reference)
	if err != nil {
		return nil, err
	}
	if v.Status != "success" {
		return nil, fmt.Errorf("payment %s: %w", v.Status, domain.ErrGatewayFailure)
	}
	draft, err := uc.Sessions.DecodeOrderSession(v.Metadata)
	if err != nil {
		return nil, err
	}
	return uc.materializeSession(ctx, reference, draft, v.Channel, v.Raw)
}

// HandleGatewaySuccess routes a confirmed charge from the webhook: an
// existing row gets the idempotent transition, a session reference gets
// materialized. Both legs converge with the client-driven verify paths.
func (uc *OrderUC) HandleGatewaySuccess(ctx context.Context, event paystack.WebhookEvent, raw []byte) (*domain.Order, error) {
	reference := event.Data.Reference
	if _, err := uc.Orders.FindByReference(ctx, reference); err == nil {
		return uc.confirmPaid(ctx, reference, event.Data.Channel, raw)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	draft, err := uc.Sessions.DecodeOrderSession(event.Data.Metadata)
	if err != nil {
		return nil, err
	}
	return uc.materializeSession(ctx, reference, draft, event.Data.Channel, raw)
}

// HandleGatewayFailure records a failed charge against an existing order.
// Session references have nothing to fail: no row, no side effect.
func (uc *OrderUC) HandleGatewayFailure(ctx context.Context, reference string, raw []byte) error {
	_, err := uc.recordFailure(ctx, reference, raw)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}

func (uc *OrderUC) confirmPaid(ctx context.Context, reference, channel string, raw []byte) (*domain.Order, error) {
	now := uc.now()
	o, transitioned, err := uc.Orders.ConfirmPayment(ctx, reference, func(o *domain.Order) error {
		if err := o.MarkPaid(now); err != nil {
			return err
		}
		if channel != "" {
			o.PaymentMethod = channel
		}
		if len(raw) > 0 {
			o.PaystackResponse = raw
		}
		return nil
	})
	if err != nil {
		metrics.PaymentsFailed.WithLabelValues("order").Inc()
		return nil, err
	}
	if !transitioned {
		return o, nil
	}
	metrics.PaymentsConfirmed.WithLabelValues("order").Inc()
	uc.consumePromo(ctx, o.PromoCode)
	uc.Notify.OrderPaid(ctx, o)
	return o, nil
}

func (uc *OrderUC) materializeSession(ctx context.Context, reference string, draft *OrderDraft, channel string, raw []byte) (*domain.Order, error) {
	if existing, err := uc.Orders.FindByReference(ctx, reference); err == nil {
		return existing, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	now := uc.now()
	o := uc.orderFromDraft(draft)
	o.PaystackReference = reference
	o.PaystackResponse = raw
	if channel != "" {
		o.PaymentMethod = channel
	}
	o.Status = domain.OrderStatusPaid
	o.PaymentStatus = domain.PaymentStatusPaid
	o.PaidAt = &now
	if err := uc.Orders.CreatePaid(ctx, o); err != nil {
		// Lost a race with the webhook: the unique reference makes the
		// duplicate insert fail, and the winner's row is the answer.
		if existing, ferr := uc.Orders.FindByReference(ctx, reference); ferr == nil {
			return existing, nil
		}
		metrics.PaymentsFailed.WithLabelValues("order").Inc()
		return nil, fmt.Errorf("materialize order session: %w", err)
	}
	metrics.PaymentsConfirmed.WithLabelValues("order").Inc()
	uc.consumePromo(ctx, o.PromoCode)
	uc.Notify.NewOrder(ctx, o)
	uc.Notify.OrderPaid(ctx, o)
	return o, nil
}

func (uc *OrderUC) recordFailure(ctx context.Context, reference string, raw []byte) (*domain.Order, error) {
	o, err := uc.Orders.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if o.IsPaid() {
		return o, nil
	}
	o.MarkPaymentFailed()
	if len(raw) > 0 {
		o.PaystackResponse = raw
	}
	if err := uc.Orders.Save(ctx, o); err != nil {
		return nil, err
	}
	metrics.PaymentsFailed.WithLabelValues("order").Inc()
	return o, nil
}

// consumePromo burns one use of the code after payment actually bound to a
// persisted order. Validation at quote time never touches the counter.
func (uc *OrderUC) consumePromo(ctx context.Context, code string) {
	if code == "" || uc.Promos == nil {
		return
	}
	if err := uc.Promos.IncrementUsage(ctx, code); err != nil {
		log.Error().Err(err).Str("promo_code", code).Msg("promo usage increment failed")
	}
}

func (uc *OrderUC) Get(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return uc.Orders.FindByID(ctx, id)
}

func (uc *OrderUC) GetByNumber(ctx context.Context, number string) (*domain.Order, error) {
	return uc.Orders.FindByNumber(ctx, number)
}

func (uc *OrderUC) List(ctx context.Context, f domain.OrderFilter) ([]domain.Order, int64, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 || f.PageSize > 100 {
		f.PageSize = 20
	}
	return uc.Orders.Search(ctx, f)
}

// UpdateStatus is the admin fulfillment action. Transitions outside the
// table reject with ErrInvalidTransition.
func (uc *OrderUC) UpdateStatus(ctx context.Context, id uuid.UUID, to domain.OrderStatus) (*domain.Order, error) {
	o, err := uc.Orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := o.Status
	if err := o.TransitionStatus(to, uc.now()); err != nil {
		return nil, err
	}
	if err := uc.Orders.Save(ctx, o); err != nil {
		return nil, err
	}
	uc.Notify.OrderStatusChanged(ctx, o, from, to)
	return o, nil
}

func (uc *OrderUC) Cancel(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	o, err := uc.Orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.CanBeCancelled() {
		return nil, domain.NewInvalidTransition(string(o.Status), string(domain.OrderStatusCancelled))
	}
	return uc.UpdateStatus(ctx, id, domain.OrderStatusCancelled)
}
