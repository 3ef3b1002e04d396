package payment

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/carebook/carebook-api/internal/pkg/gateway"
)

func TestWebhookRejectsBadSignature(t *testing.T) {
	h := NewHandler(nil, "webhook-secret")

	body := []byte(`{"type":"payment.captured","data":{}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway", bytes.NewReader(body))
	req.Header.Set(signatureHeader, "deadbeef")
	w := httptest.NewRecorder()

	h.Webhook(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad signature, got %d", w.Code)
	}
}

func TestWebhookAcknowledgesUnknownEvents(t *testing.T) {
	h := NewHandler(nil, "webhook-secret")

	body := []byte(`{"type":"payment.settled","data":{}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway", bytes.NewReader(body))
	req.Header.Set(signatureHeader, gateway.GenerateSignature(body, "webhook-secret"))
	w := httptest.NewRecorder()

	h.Webhook(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for unknown event type, got %d", w.Code)
	}
}
