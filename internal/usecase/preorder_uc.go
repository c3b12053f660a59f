package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chineduo/solarhub/internal/adapters/payments/paystack"
	"github.com/chineduo/solarhub/internal/domain"
	"github.com/chineduo/solarhub/internal/metrics"
)

type PreOrderUC struct {
	PreOrders domain.PreOrderRepo
	Gateway   PaymentGateway
	Sessions  *SessionCodec
	Notify    *Notifier

	CallbackURL string
	FrontendURL string

	Clock func() time.Time
}

func (uc *PreOrderUC) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock()
	}
	return time.Now()
}

type PlacePreOrderRequest struct {
	PreOrderID    uuid.UUID          `json:"pre_order_id"`
	CustomerEmail string             `json:"customer_email"`
	CustomerPhone string             `json:"customer_phone"`
	FirstName     string             `json:"first_name"`
	LastName      string             `json:"last_name"`
	Quantity      int                `json:"quantity"`
	Fulfillment   domain.Fulfillment `json:"fulfillment"`
	Notes         string             `json:"notes"`
}

func (r *PlacePreOrderRequest) validate() error {
	fields := map[string]string{}
	if r.PreOrderID == uuid.Nil {
		fields["pre_order_id"] = "required"
	}
	if !emailRe.MatchString(r.CustomerEmail) {
		fields["customer_email"] = "valid email is required"
	}
	if strings.TrimSpace(r.FirstName) == "" {
		fields["first_name"] = "required"
	}
	if strings.TrimSpace(r.LastName) == "" {
		fields["last_name"] = "required"
	}
	if r.Quantity < 1 {
		fields["quantity"] = "must be at least 1"
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

func (uc *PreOrderUC) ListCatalog(ctx context.Context, query string, page, pageSize int) ([]domain.PreOrder, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return uc.PreOrders.ListCatalog(ctx, query, page, pageSize)
}

func (uc *PreOrderUC) GetCatalog(ctx context.Context, id uuid.UUID) (*domain.PreOrder, error) {
	return uc.PreOrders.FindCatalogByID(ctx, id)
}

func (uc *PreOrderUC) SaveCatalog(ctx context.Context, p *domain.PreOrder) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.ProductName == "" || p.PreOrderPrice <= 0 {
		return &domain.ValidationError{Fields: map[string]string{"product_name": "name and a positive price are required"}}
	}
	if p.DepositPercentage < 0 || p.DepositPercentage > 100 {
		return &domain.ValidationError{Fields: map[string]string{"deposit_percentage": "must be between 0 and 100"}}
	}
	return uc.PreOrders.SaveCatalog(ctx, p)
}

// reservationFromRequest freezes the catalog terms into a new reservation.
// Later catalog edits never change what this customer owes.
func (uc *PreOrderUC) reservationFromRequest(ctx context.Context, req PlacePreOrderRequest) (*domain.CustomerPreOrder, error) {
	item, err := uc.PreOrders.FindCatalogByID(ctx, req.PreOrderID)
	if err != nil {
		return nil, err
	}
	p := &domain.CustomerPreOrder{
		ID:             uuid.New(),
		PreOrderNumber: domain.NewPreOrderNumber(),
		PreOrderID:     item.ID,
		PreOrder:       item,
		CustomerEmail:  strings.ToLower(strings.TrimSpace(req.CustomerEmail)),
		CustomerPhone:  strings.TrimSpace(req.CustomerPhone),
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		Currency:       "NGN",
		Status:         domain.PreOrderStatusPending,
		PaymentStatus:  domain.PreOrderPaymentPending,
		Notes:          strings.TrimSpace(req.Notes),
	}
	p.SetFulfillment(req.Fulfillment)
	p.ComputeAmounts(item.PreOrderPrice, req.Quantity, item.DepositPercentage)
	return p, nil
}

// Place is the eager flow: the reservation exists as pending before any
// payment. The gateway reference is assigned up front so the unique index
// never sees two empty values.
func (uc *PreOrderUC) Place(ctx context.Context, req PlacePreOrderRequest) (*domain.CustomerPreOrder, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	p, err := uc.reservationFromRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	p.PaystackReference = paymentReference("pre", uc.now())
	if err := uc.PreOrders.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create pre-order: %w", err)
	}
	uc.Notify.NewPreOrder(ctx, p)
	return p, nil
}

// InitializePayment starts a hosted checkout for an existing reservation.
// paymentType deposit charges the frozen deposit; full charges whatever is
// still owed (total, or the remaining balance after a deposit).
func (uc *PreOrderUC) InitializePayment(ctx context.Context, number string, paymentType domain.PaymentType) (*domain.CustomerPreOrder, *CheckoutResult, error) {
	p, err := uc.PreOrders.FindByNumber(ctx, number)
	if err != nil {
		return nil, nil, err
	}
	amount, err := uc.chargeAmount(p, paymentType)
	if err != nil {
		return nil, nil, err
	}
	reference := paymentReference("pre", uc.now())
	auth, err := uc.Gateway.Initialize(ctx, paystack.InitRequest{
		Email:       p.CustomerEmail,
		Amount:      amount,
		Currency:    p.Currency,
		Reference:   reference,
		CallbackURL: uc.CallbackURL,
		Metadata: map[string]any{
			"type":                  "pre_order_payment",
			"customer_pre_order_id": p.ID.String(),
			"pre_order_number":      p.PreOrderNumber,
			"payment_type":          string(paymentType),
		},
	})
	if err != nil {
		return nil, nil, err
	}
	p.PaystackReference = reference
	p.PaystackAccessCode = auth.AccessCode
	p.PaymentMethod = "paystack"
	if err := uc.PreOrders.Save(ctx, p); err != nil {
		return nil, nil, err
	}
	return p, &CheckoutResult{
		OrderNumber:      p.PreOrderNumber,
		Reference:        reference,
		AuthorizationURL: auth.AuthorizationURL,
		AccessCode:       auth.AccessCode,
		Amount:           amount,
		Currency:         p.Currency,
	}, nil
}

func (uc *PreOrderUC) chargeAmount(p *domain.CustomerPreOrder, paymentType domain.PaymentType) (float64, error) {
	switch paymentType {
	case domain.PaymentTypeDeposit:
		if p.IsDepositPaid() {
			return 0, domain.ErrAlreadyPaid
		}
		if p.DepositAmount <= 0 {
			return 0, &domain.ValidationError{Fields: map[string]string{"payment_type": "this item has no deposit option"}}
		}
		return p.DepositAmount, nil
	case domain.PaymentTypeFull:
		amount, _, err := p.AmountDue()
		return amount, err
	default:
		return 0, &domain.ValidationError{Fields: map[string]string{"payment_type": "must be deposit or full"}}
	}
}

// InitializeSession is the session-first flow: the reservation draft rides
// in the gateway metadata and only a verified payment creates the row.
func (uc *PreOrderUC) InitializeSession(ctx context.Context, req PlacePreOrderRequest, paymentType domain.PaymentType) (*CheckoutResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	item, err := uc.PreOrders.FindCatalogByID(ctx, req.PreOrderID)
	if err != nil {
		return nil, err
	}
	scratch := &domain.CustomerPreOrder{}
	scratch.ComputeAmounts(item.PreOrderPrice, req.Quantity, item.DepositPercentage)
	var amount float64
	switch paymentType {
	case domain.PaymentTypeDeposit:
		if scratch.DepositAmount <= 0 {
			return nil, &domain.ValidationError{Fields: map[string]string{"payment_type": "this item has no deposit option"}}
		}
		amount = scratch.DepositAmount
	case domain.PaymentTypeFull:
		amount = scratch.TotalAmount
	default:
		return nil, &domain.ValidationError{Fields: map[string]string{"payment_type": "must be deposit or full"}}
	}
	md, err := uc.Sessions.EncodePreOrderSession(PreOrderDraft{
		PreOrderID:      item.ID,
		ProductName:     item.ProductName,
		CustomerEmail:   strings.ToLower(strings.TrimSpace(req.CustomerEmail)),
		CustomerPhone:   strings.TrimSpace(req.CustomerPhone),
		FirstName:       strings.TrimSpace(req.FirstName),
		LastName:        strings.TrimSpace(req.LastName),
		Quantity:        req.Quantity,
		UnitPrice:       scratch.UnitPrice,
		DepositAmount:   scratch.DepositAmount,
		RemainingAmount: scratch.RemainingAmount,
		TotalAmount:     scratch.TotalAmount,
		Fulfillment:     req.Fulfillment,
		Notes:           strings.TrimSpace(req.Notes),
		PaymentType:     paymentType,
		PaymentAmount:   amount,
	})
	if err != nil {
		return nil, err
	}
	reference := paymentReference("pre_session", uc.now())
	auth, err := uc.Gateway.Initialize(ctx, paystack.InitRequest{
		Email:       req.CustomerEmail,
		Amount:      amount,
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
		Amount:           amount,
		Currency:         "NGN",
	}, nil
}

// VerifyPayment confirms a charge against an existing reservation from the
// client redirect. The verify call, not the redirect, decides the outcome.
func (uc *PreOrderUC) VerifyPayment(ctx context.Context, reference string) (*domain.CustomerPreOrder, error) {
	if _, err := uc.PreOrders.FindByReference(ctx, reference); err != nil {
		return nil, err
	}
	v, err := uc.Gateway.Verify(ctx, reference)
	if err != nil {
		return nil, err
	}
	if v.Status != "success" {
		p, err := uc.recordFailure(ctx, reference, v.Raw)
		if err != nil {
			return nil, err
		}
		return p, fmt.Errorf("payment %s: %w", v.Status, domain.ErrGatewayFailure)
	}
	return uc.applyPayment(ctx, reference, metadataPaymentType(v.Metadata), v.Channel, v.Raw)
}

// VerifyAndCreateFromSession materializes a session-first reservation after
// the gateway confirms the charge. At most one row per reference exists.
func (uc *PreOrderUC) VerifyAndCreateFromSession(ctx context.Context, reference string) (*domain.CustomerPreOrder, error) {
	v, err := uc.Gateway.Verify(ctx, reference)
	if err != nil {
		return nil, err
	}
	if v.Status != "success" {
		return nil, fmt.Errorf("payment %s: %w", v.Status, domain.ErrGatewayFailure)
	}
	draft, err := uc.Sessions.DecodePreOrderSession(v.Metadata)
	if err != nil {
		return nil, err
	}
	return uc.materializeSession(ctx, reference, draft, v.Channel, v.Raw)
}

// HandleGatewaySuccess routes a confirmed charge delivered by webhook:
// existing rows get the idempotent milestone, session references get
// materialized.
func (uc *PreOrderUC) HandleGatewaySuccess(ctx context.Context, event paystack.WebhookEvent, raw []byte) (*domain.CustomerPreOrder, error) {
	reference := event.Data.Reference
	if _, err := uc.PreOrders.FindByReference(ctx, reference); err == nil {
		return uc.applyPayment(ctx, reference, metadataPaymentType(event.Data.Metadata), event.Data.Channel, raw)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	draft, err := uc.Sessions.DecodePreOrderSession(event.Data.Metadata)
	if err != nil {
		return nil, err
	}
	return uc.materializeSession(ctx, reference, draft, event.Data.Channel, raw)
}

func (uc *PreOrderUC) HandleGatewayFailure(ctx context.Context, reference string, raw []byte) error {
	_, err := uc.recordFailure(ctx, reference, raw)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}

func metadataPaymentType(md map[string]any) domain.PaymentType {
	if t, _ := md["payment_type"].(string); t == string(domain.PaymentTypeDeposit) {
		return domain.PaymentTypeDeposit
	}
	return domain.PaymentTypeFull
}

func (uc *PreOrderUC) applyPayment(ctx context.Context, reference string, paymentType domain.PaymentType, channel string, raw []byte) (*domain.CustomerPreOrder, error) {
	now := uc.now()
	p, transitioned, err := uc.PreOrders.ApplyPayment(ctx, reference, func(p *domain.CustomerPreOrder) error {
		var terr error
		if paymentType == domain.PaymentTypeDeposit {
			terr = p.MarkDepositPaid(now)
		} else {
			terr = p.MarkFullyPaid(now)
		}
		if terr != nil {
			return terr
		}
		if channel != "" {
			p.PaymentMethod = channel
		}
		if len(raw) > 0 {
			p.PaystackResponse = raw
		}
		return nil
	})
	if err != nil {
		metrics.PaymentsFailed.WithLabelValues(metricKind(paymentType)).Inc()
		return nil, err
	}
	if !transitioned {
		return p, nil
	}
	metrics.PaymentsConfirmed.WithLabelValues(metricKind(paymentType)).Inc()
	uc.notifyMilestone(ctx, p, paymentType)
	return p, nil
}

func metricKind(t domain.PaymentType) string {
	if t == domain.PaymentTypeDeposit {
		return "pre_order_deposit"
	}
	return "pre_order_full"
}

func (uc *PreOrderUC) notifyMilestone(ctx context.Context, p *domain.CustomerPreOrder, paymentType domain.PaymentType) {
	if paymentType == domain.PaymentTypeDeposit {
		uc.Notify.PreOrderDepositPaid(ctx, p)
		return
	}
	uc.Notify.PreOrderFullyPaid(ctx, p)
}

func (uc *PreOrderUC) materializeSession(ctx context.Context, reference string, draft *PreOrderDraft, channel string, raw []byte) (*domain.CustomerPreOrder, error) {
	if existing, err := uc.PreOrders.FindByReference(ctx, reference); err == nil {
		return existing, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	now := uc.now()
	p := &domain.CustomerPreOrder{
		ID:                uuid.New(),
		PreOrderNumber:    domain.NewPreOrderNumber(),
		PreOrderID:        draft.PreOrderID,
		CustomerEmail:     draft.CustomerEmail,
		CustomerPhone:     draft.CustomerPhone,
		FirstName:         draft.FirstName,
		LastName:          draft.LastName,
		Quantity:          draft.Quantity,
		UnitPrice:         draft.UnitPrice,
		DepositAmount:     draft.DepositAmount,
		RemainingAmount:   draft.RemainingAmount,
		TotalAmount:       draft.TotalAmount,
		Currency:          "NGN",
		Status:            domain.PreOrderStatusPending,
		PaymentStatus:     domain.PreOrderPaymentPending,
		Notes:             draft.Notes,
		PaymentMethod:     "paystack",
		PaystackReference: reference,
		PaystackResponse:  raw,
	}
	p.SetFulfillment(draft.Fulfillment)
	if channel != "" {
		p.PaymentMethod = channel
	}
	var terr error
	if draft.PaymentType == domain.PaymentTypeDeposit {
		terr = p.MarkDepositPaid(now)
	} else {
		terr = p.MarkFullyPaid(now)
	}
	if terr != nil {
		return nil, terr
	}
	if err := uc.PreOrders.Create(ctx, p); err != nil {
		// Webhook and redirect raced; the unique reference picks one winner.
		if existing, ferr := uc.PreOrders.FindByReference(ctx, reference); ferr == nil {
			return existing, nil
		}
		metrics.PaymentsFailed.WithLabelValues(metricKind(draft.PaymentType)).Inc()
		return nil, fmt.Errorf("materialize pre-order session: %w", err)
	}
	metrics.PaymentsConfirmed.WithLabelValues(metricKind(draft.PaymentType)).Inc()
	uc.Notify.NewPreOrder(ctx, p)
	uc.notifyMilestone(ctx, p, draft.PaymentType)
	return p, nil
}

func (uc *PreOrderUC) recordFailure(ctx context.Context, reference string, raw []byte) (*domain.CustomerPreOrder, error) {
	p, err := uc.PreOrders.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if p.IsDepositPaid() {
		return p, nil
	}
	p.MarkPaymentFailed()
	if len(raw) > 0 {
		p.PaystackResponse = raw
	}
	if err := uc.PreOrders.Save(ctx, p); err != nil {
		return nil, err
	}
	kind := domain.PaymentTypeFull
	if p.DepositAmount > 0 {
		kind = domain.PaymentTypeDeposit
	}
	metrics.PaymentsFailed.WithLabelValues(metricKind(kind)).Inc()
	return p, nil
}

func (uc *PreOrderUC) Get(ctx context.Context, number string) (*domain.CustomerPreOrder, error) {
	return uc.PreOrders.FindByNumber(ctx, number)
}

func (uc *PreOrderUC) ListByEmail(ctx context.Context, email string) ([]domain.CustomerPreOrder, error) {
	return uc.PreOrders.ListByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

// AmountDue reports what a reservation still owes, for the storefront's
// pay-remaining screen.
func (uc *PreOrderUC) AmountDue(ctx context.Context, number string) (*domain.CustomerPreOrder, float64, error) {
	p, err := uc.PreOrders.FindByNumber(ctx, number)
	if err != nil {
		return nil, 0, err
	}
	amount, _, err := p.AmountDue()
	if err != nil {
		return nil, 0, err
	}
	return p, amount, nil
}

// PaymentLink carries a signed deep link for settling the remaining
// balance without re-authentication.
type PaymentLink struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
	Amount    float64   `json:"amount"`
}

// GeneratePaymentToken issues the remaining-balance deep link. Only a
// reservation that is ready for pickup with its deposit paid qualifies.
func (uc *PreOrderUC) GeneratePaymentToken(ctx context.Context, number string) (*PaymentLink, error) {
	p, err := uc.PreOrders.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if !p.CanPayRemaining() {
		if p.IsFullyPaid() {
			return nil, domain.ErrAlreadyPaid
		}
		return nil, domain.NewInvalidTransition(string(p.Status), "pay_remaining")
	}
	token, exp := uc.Sessions.IssueRemainingToken(p, uc.now())
	return &PaymentLink{
		Token:     token,
		URL:       strings.TrimRight(uc.FrontendURL, "/") + "/pre-orders/pay-remaining?token=" + token,
		ExpiresAt: exp,
		Amount:    p.RemainingAmount,
	}, nil
}

// ExchangePaymentToken resolves a deep-link token back to its reservation.
// The state is re-validated at exchange time: a token issued while eligible
// is worthless once the balance is settled or the reservation moved on.
func (uc *PreOrderUC) ExchangePaymentToken(ctx context.Context, token string) (*domain.CustomerPreOrder, float64, error) {
	claim, err := uc.Sessions.ParseRemainingToken(token, uc.now())
	if err != nil {
		return nil, 0, err
	}
	p, err := uc.PreOrders.FindByNumber(ctx, claim.PreOrderNumber)
	if err != nil {
		return nil, 0, err
	}
	if !strings.EqualFold(p.CustomerEmail, claim.CustomerEmail) {
		return nil, 0, domain.ErrMalformedSession
	}
	if !p.CanPayRemaining() {
		if p.IsFullyPaid() {
			return nil, 0, domain.ErrAlreadyPaid
		}
		return nil, 0, domain.NewInvalidTransition(string(p.Status), "pay_remaining")
	}
	return p, p.RemainingAmount, nil
}

// UpdateStatus is the admin fulfillment action over the reservation's
// transition table.
func (uc *PreOrderUC) UpdateStatus(ctx context.Context, number string, to domain.PreOrderStatus) (*domain.CustomerPreOrder, error) {
	p, err := uc.PreOrders.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	from := p.Status
	if err := p.TransitionStatus(to, uc.now()); err != nil {
		return nil, err
	}
	if err := uc.PreOrders.Save(ctx, p); err != nil {
		return nil, err
	}
	uc.Notify.PreOrderStatusChanged(ctx, p, from, to)
	// Reaching the pickup point is the customer's cue to settle up; send
	// the deep link along with the status mail.
	if to == domain.PreOrderStatusReadyForPickup && p.CanPayRemaining() {
		if link, lerr := uc.GeneratePaymentToken(ctx, p.PreOrderNumber); lerr == nil {
			uc.Notify.email(ctx, p.CustomerEmail,
				fmt.Sprintf("Pre-order %s is ready - balance due", p.PreOrderNumber),
				fmt.Sprintf("Hi %s,\n\nYour pre-order %s is ready for pickup. Remaining balance: %.2f %s.\nPay here: %s\nThe link expires %s.\n",
					p.FirstName, p.PreOrderNumber, p.RemainingAmount, p.Currency, link.URL, link.ExpiresAt.Format(time.RFC1123)))
		}
	}
	return p, nil
}
