package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/storelane/checkout/internal/apperr"
)

// ProviderClient talks to the payment provider's HTTP API and verifies its
// webhook signatures. Signatures use the provider's scheme:
// header "t=<unix>,v1=<hex hmac-sha256>" over "<t>.<payload>".
type ProviderClient struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string

	// Tolerance bounds webhook timestamp age; 0 disables the check.
	Tolerance time.Duration

	HTTPClient *http.Client
	nowFunc    func() time.Time
}

// NewProviderClient builds a client with sane defaults.
func NewProviderClient(baseURL, apiKey, webhookSecret string) *ProviderClient {
	return &ProviderClient{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		APIKey:        apiKey,
		WebhookSecret: webhookSecret,
		Tolerance:     5 * time.Minute,
		HTTPClient:    &http.Client{Timeout: 10 * time.Second},
		nowFunc:       time.Now,
	}
}

type createIntentRequest struct {
	AmountMinor int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Metadata    map[string]string `json:"metadata"`
}

type createIntentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
}

// CreatePaymentIntent registers an intent with the provider. The idempotency
// key is forwarded so provider-side retries collapse too.
func (c *ProviderClient) CreatePaymentIntent(ctx context.Context, amountMinor int64, currency, orderRef, idempotencyKey string) (*PaymentIntent, error) {
	payload, err := json.Marshal(createIntentRequest{
		AmountMinor: amountMinor,
		Currency:    strings.ToLower(currency),
		Metadata:    map[string]string{"order_public_id": orderRef},
	})
	if err != nil {
		return nil, apperr.Unexpected("intent_request_encode_failed", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/payment_intents", bytes.NewReader(payload))
	if err != nil {
		return nil, apperr.Unexpected("intent_request_build_failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, apperr.Unexpected("provider_unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperr.Unexpected("provider_response_read_failed", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, apperr.Unexpected("provider_rejected_intent", fmt.Errorf("provider returned %d: %s", resp.StatusCode, body))
	}

	var out createIntentResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, apperr.Unexpected("provider_response_decode_failed", err)
	}
	return &PaymentIntent{IntentID: out.ID, ClientSecret: out.ClientSecret}, nil
}

// webhookEnvelope is the provider's webhook wire shape.
type webhookEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID              string            `json:"id"`
			CheckoutSession string            `json:"checkout_session,omitempty"`
			Metadata        map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// ParseWebhookEvent verifies the signature header and decodes the payload.
// Any verification or decode failure is BadRequest; the provider retrying an
// unverifiable payload will never make it verifiable.
func (c *ProviderClient) ParseWebhookEvent(payload []byte, signatureHeader string) (*WebhookEvent, error) {
	ts, sig, err := parseSignatureHeader(signatureHeader)
	if err != nil {
		return nil, apperr.BadRequest("invalid_webhook_signature", err)
	}

	if c.Tolerance > 0 {
		age := c.nowFunc().UTC().Sub(time.Unix(ts, 0))
		if age > c.Tolerance || age < -c.Tolerance {
			return nil, apperr.BadRequest("invalid_webhook_signature", fmt.Errorf("timestamp outside tolerance"))
		}
	}

	mac := hmac.New(sha256.New, []byte(c.WebhookSecret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	expected := mac.Sum(nil)

	got, err := hex.DecodeString(sig)
	if err != nil || !hmac.Equal(expected, got) {
		return nil, apperr.BadRequest("invalid_webhook_signature", fmt.Errorf("signature mismatch"))
	}

	var env webhookEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, apperr.BadRequest("malformed_webhook_payload", err)
	}
	if env.ID == "" || env.Type == "" {
		return nil, apperr.BadRequest("malformed_webhook_payload", fmt.Errorf("missing event id or type"))
	}

	return &WebhookEvent{
		EventID:           env.ID,
		Type:              env.Type,
		OrderRef:          env.Data.Object.Metadata["order_public_id"],
		PaymentRef:        env.Data.Object.ID,
		CheckoutSessionID: env.Data.Object.CheckoutSession,
	}, nil
}

func parseSignatureHeader(header string) (int64, string, error) {
	var ts int64
	var sig string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			v, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return 0, "", fmt.Errorf("bad timestamp: %w", err)
			}
			ts = v
		case "v1":
			sig = kv[1]
		}
	}
	if ts == 0 || sig == "" {
		return 0, "", fmt.Errorf("missing t or v1 component")
	}
	return ts, sig, nil
}

// SignPayload produces a valid signature header for payload at the given
// time. Used by tests and local tooling to emulate the provider.
func SignPayload(secret string, payload []byte, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}
