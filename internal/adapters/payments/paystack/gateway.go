package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chineduo/solarhub/internal/domain"
)

const defaultBaseURL = "https://api.paystack.co"

// Config carries the gateway credentials explicitly so nothing in the
// payment path reads ambient process state.
type Config struct {
	SecretKey     string
	WebhookSecret string
	BaseURL       string
}

type Gateway struct {
	cfg        Config
	httpClient *http.Client
}

func NewGateway(cfg Config) *Gateway {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Gateway{cfg: cfg, httpClient: &http.Client{Timeout: 10 * time.Second}}
}

type InitRequest struct {
	Email       string
	Amount      float64 // major units; converted to kobo on the wire
	Currency    string
	Reference   string
	CallbackURL string
	Metadata    map[string]any
}

type Authorization struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

type Verification struct {
	Status   string
	Channel  string
	Metadata map[string]any
	Raw      []byte
}

type initPayload struct {
	Email       string         `json:"email"`
	Amount      int64          `json:"amount"`
	Currency    string         `json:"currency"`
	Reference   string         `json:"reference"`
	CallbackURL string         `json:"callback_url,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type initResponse struct {
	Status bool `json:"status"`
	Data   struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
	Message string `json:"message"`
}

type verifyResponse struct {
	Status bool `json:"status"`
	Data   struct {
		Status   string         `json:"status"`
		Channel  string         `json:"channel"`
		Metadata map[string]any `json:"metadata"`
	} `json:"data"`
	Message string `json:"message"`
}

func (g *Gateway) Initialize(ctx context.Context, req InitRequest) (*Authorization, error) {
	if g.cfg.SecretKey == "" {
		return nil, errors.New("paystack secret key missing")
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("amount %.2f not payable", req.Amount)
	}
	if req.Currency == "" {
		req.Currency = "NGN"
	}
	payload := initPayload{
		Email:       req.Email,
		Amount:      int64(req.Amount*100 + 0.5),
		Currency:    req.Currency,
		Reference:   req.Reference,
		CallbackURL: req.CallbackURL,
		Metadata:    req.Metadata,
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal init payload: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/transaction/initialize", bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.cfg.SecretKey)
	httpReq.Header.Set("Content-Type", "application/json")
	res, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayFailure, err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, fmt.Errorf("%w: initialize status %d: %s", domain.ErrGatewayFailure, res.StatusCode, string(body))
	}
	var pr initResponse
	if err := json.NewDecoder(res.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("%w: decode initialize response: %v", domain.ErrGatewayFailure, err)
	}
	if pr.Data.AuthorizationURL == "" || pr.Data.AccessCode == "" {
		return nil, fmt.Errorf("%w: incomplete initialize response", domain.ErrGatewayFailure)
	}
	return &Authorization{
		AuthorizationURL: pr.Data.AuthorizationURL,
		AccessCode:       pr.Data.AccessCode,
		Reference:        pr.Data.Reference,
	}, nil
}

func (g *Gateway) Verify(ctx context.Context, reference string) (*Verification, error) {
	if reference == "" {
		return nil, errors.New("reference missing")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+"/transaction/verify/"+reference, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.cfg.SecretKey)
	res, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayFailure, err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read verify response: %v", domain.ErrGatewayFailure, err)
	}
	if res.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: verify status %d: %s", domain.ErrGatewayFailure, res.StatusCode, string(body))
	}
	var vr verifyResponse
	if err := json.Unmarshal(body, &vr); err != nil {
		return nil, fmt.Errorf("%w: decode verify response: %v", domain.ErrGatewayFailure, err)
	}
	return &Verification{
		Status:   vr.Data.Status,
		Channel:  vr.Data.Channel,
		Metadata: vr.Data.Metadata,
		Raw:      body,
	}, nil
}

// ValidateSignature checks the x-paystack-signature header: an HMAC-SHA512
// of the raw body under the webhook secret, compared in constant time.
func (g *Gateway) ValidateSignature(body []byte, signature string) error {
	if signature == "" {
		return domain.ErrSignatureMismatch
	}
	mac := hmac.New(sha512.New, []byte(g.cfg.WebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return domain.ErrSignatureMismatch
	}
	return nil
}

// WebhookEvent is the push payload shape: event name plus the transaction
// data echoed back from initialize.
type WebhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string         `json:"reference"`
		Status    string         `json:"status"`
		Channel   string         `json:"channel"`
		Metadata  map[string]any `json:"metadata"`
	} `json:"data"`
}

func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var evt WebhookEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, fmt.Errorf("parse webhook event: %w", err)
	}
	if evt.Event == "" {
		return nil, errors.New("webhook event missing event name")
	}
	return &evt, nil
}
