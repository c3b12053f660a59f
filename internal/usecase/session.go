package usecase

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chineduo/solarhub/internal/domain"
)

// Session metadata type discriminators. The gateway's metadata channel is a
// dumb pass-through store; these tags are how the verify path knows what to
// materialize.
const (
	sessionTypeOrder    = "order_session"
	sessionTypePreOrder = "pre_order_session"
)

// OrderDraft is an unconfirmed checkout: everything needed to materialize
// an Order after the gateway confirms payment, and nothing else.
type OrderDraft struct {
	Type           string             `json:"type"`
	CustomerEmail  string             `json:"customer_email"`
	CustomerPhone  string             `json:"customer_phone"`
	FirstName      string             `json:"first_name"`
	LastName       string             `json:"last_name"`
	Subtotal       float64            `json:"subtotal"`
	ShippingFee    float64            `json:"shipping_fee"`
	DiscountAmount float64            `json:"discount_amount"`
	TotalAmount    float64            `json:"total_amount"`
	Fulfillment    domain.Fulfillment `json:"fulfillment"`
	PaymentMethod  string             `json:"payment_method"`
	PromoCode      string             `json:"promo_code,omitempty"`
	Items          []OrderDraftItem   `json:"cart_items"`
}

type OrderDraftItem struct {
	ProductID    uuid.UUID       `json:"product_id"`
	ProductName  string          `json:"product_name"`
	ProductPrice float64         `json:"product_price"`
	Quantity     int             `json:"quantity"`
	Snapshot     json.RawMessage `json:"product_snapshot,omitempty"`
}

// PreOrderDraft is the reservation counterpart, including the amounts
// frozen at initialization time.
type PreOrderDraft struct {
	Type            string             `json:"type"`
	PreOrderID      uuid.UUID          `json:"pre_order_id"`
	ProductName     string             `json:"product_name"`
	CustomerEmail   string             `json:"customer_email"`
	CustomerPhone   string             `json:"customer_phone"`
	FirstName       string             `json:"first_name"`
	LastName        string             `json:"last_name"`
	Quantity        int                `json:"quantity"`
	UnitPrice       float64            `json:"unit_price"`
	DepositAmount   float64            `json:"deposit_amount"`
	RemainingAmount float64            `json:"remaining_amount"`
	TotalAmount     float64            `json:"total_amount"`
	Fulfillment     domain.Fulfillment `json:"fulfillment"`
	Notes           string             `json:"notes,omitempty"`
	PaymentType     domain.PaymentType `json:"payment_type"`
	PaymentAmount   float64            `json:"payment_amount"`
}

// SessionCodec round-trips checkout drafts through the gateway metadata
// channel, and signs the remaining-balance deep-link tokens.
type SessionCodec struct {
	tokenSecret []byte
	tokenTTL    time.Duration
}

func NewSessionCodec(tokenSecret string, tokenTTL time.Duration) *SessionCodec {
	if tokenTTL <= 0 {
		tokenTTL = 72 * time.Hour
	}
	return &SessionCodec{tokenSecret: []byte(tokenSecret), tokenTTL: tokenTTL}
}

func (c *SessionCodec) EncodeOrderSession(d OrderDraft) (map[string]any, error) {
	d.Type = sessionTypeOrder
	return toMetadata(d)
}

func (c *SessionCodec) DecodeOrderSession(md map[string]any) (*OrderDraft, error) {
	var d OrderDraft
	if err := fromMetadata(md, &d); err != nil {
		return nil, err
	}
	if d.Type != sessionTypeOrder {
		return nil, fmt.Errorf("session type %q: %w", d.Type, domain.ErrMalformedSession)
	}
	if len(d.Items) == 0 || d.CustomerEmail == "" {
		return nil, fmt.Errorf("incomplete order session: %w", domain.ErrMalformedSession)
	}
	return &d, nil
}

func (c *SessionCodec) EncodePreOrderSession(d PreOrderDraft) (map[string]any, error) {
	d.Type = sessionTypePreOrder
	return toMetadata(d)
}

func (c *SessionCodec) DecodePreOrderSession(md map[string]any) (*PreOrderDraft, error) {
	var d PreOrderDraft
	if err := fromMetadata(md, &d); err != nil {
		return nil, err
	}
	if d.Type != sessionTypePreOrder {
		return nil, fmt.Errorf("session type %q: %w", d.Type, domain.ErrMalformedSession)
	}
	if d.PreOrderID == uuid.Nil || d.CustomerEmail == "" || d.Quantity < 1 {
		return nil, fmt.Errorf("incomplete pre-order session: %w", domain.ErrMalformedSession)
	}
	return &d, nil
}

// SessionType peeks at the discriminator without decoding the full draft.
func SessionType(md map[string]any) string {
	t, _ := md["type"].(string)
	return t
}

func toMetadata(v any) (map[string]any, error) {
	buf, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	var md map[string]any
	if err := json.Unmarshal(buf, &md); err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return md, nil
}

func fromMetadata(md map[string]any, out any) error {
	if md == nil {
		return domain.ErrMalformedSession
	}
	buf, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedSession, err)
	}
	if err := json.Unmarshal(buf, out); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedSession, err)
	}
	return nil
}

// RemainingClaim is the payload of a remaining-balance deep-link token:
// enough to find the reservation and pin down what the holder may pay.
type RemainingClaim struct {
	PreOrderNumber string             `json:"pre_order_number"`
	CustomerEmail  string             `json:"customer_email"`
	PaymentType    domain.PaymentType `json:"payment_type"`
	ExpiresAt      int64              `json:"expires_at"`
}

// IssueRemainingToken signs a time-limited claim for paying a reservation's
// remaining balance without re-authentication.
func (c *SessionCodec) IssueRemainingToken(p *domain.CustomerPreOrder, now time.Time) (string, time.Time) {
	exp := now.Add(c.tokenTTL)
	claim := RemainingClaim{
		PreOrderNumber: p.PreOrderNumber,
		CustomerEmail:  p.CustomerEmail,
		PaymentType:    domain.PaymentTypeFull,
		ExpiresAt:      exp.Unix(),
	}
	payload, _ := json.Marshal(claim)
	body := base64.RawURLEncoding.EncodeToString(payload)
	return body + "." + c.sign(body), exp
}

// ParseRemainingToken fails closed: bad shape, bad signature or an elapsed
// expiry all reject before any lookup happens.
func (c *SessionCodec) ParseRemainingToken(token string, now time.Time) (*RemainingClaim, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return nil, domain.ErrMalformedSession
	}
	if !hmac.Equal([]byte(c.sign(parts[0])), []byte(parts[1])) {
		return nil, domain.ErrMalformedSession
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, domain.ErrMalformedSession
	}
	var claim RemainingClaim
	if err := json.Unmarshal(payload, &claim); err != nil {
		return nil, domain.ErrMalformedSession
	}
	if now.Unix() >= claim.ExpiresAt {
		return nil, domain.ErrExpiredToken
	}
	return &claim, nil
}

func (c *SessionCodec) sign(body string) string {
	mac := hmac.New(sha256.New, c.tokenSecret)
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}
