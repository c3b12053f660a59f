package httpserver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chineduo/solarhub/internal/domain"
)

// recordingValidator accepts only the one signature it was built with and
// counts how often it was consulted.
type recordingValidator struct {
	accept string
	calls  int
}

func (v *recordingValidator) ValidateSignature(_ []byte, signature string) error {
	v.calls++
	if signature != v.accept {
		return domain.ErrSignatureMismatch
	}
	return nil
}

func postWebhook(s *Server, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	if signature != "" {
		req.Header.Set("x-paystack-signature", signature)
	}
	rec := httptest.NewRecorder()
	s.paystackWebhook(rec, req)
	return rec
}

func TestWebhookRejectsBadSignatureBeforeProcessing(t *testing.T) {
	// usecases deliberately nil: touching them on a rejected delivery
	// would panic the test
	s := &Server{Webhook: &recordingValidator{accept: "good"}}

	rec := postWebhook(s, `{"event":"charge.success","data":{"reference":"order_1_ab"}}`, "forged")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postWebhook(s, `{"event":"charge.success","data":{"reference":"order_1_ab"}}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookRejectsMalformedPayload(t *testing.T) {
	s := &Server{Webhook: &recordingValidator{accept: "good"}}

	rec := postWebhook(s, `not json`, "good")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postWebhook(s, `{"data":{}}`, "good")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookIgnoresUnknownEvents(t *testing.T) {
	v := &recordingValidator{accept: "good"}
	s := &Server{Webhook: v}

	rec := postWebhook(s, `{"event":"transfer.success","data":{"reference":"x"}}`, "good")
	assert.Equal(t, http.StatusOK, rec.Code, "unknown events are acknowledged, not retried")
	assert.Equal(t, 1, v.calls)
}

func TestAdminOnlyMiddleware(t *testing.T) {
	handler := adminOnly("s3cret")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer s3cret")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("wrong token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer nope")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unset token disables the surface", func(t *testing.T) {
		disabled := adminOnly("")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer ")
		rec := httptest.NewRecorder()
		disabled.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestRateLimit(t *testing.T) {
	handler := rateLimit(3)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// a different caller has its own bucket
	req = httptest.NewRequest(http.MethodPost, "/checkout", nil)
	req.RemoteAddr = "10.0.0.2:5000"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
