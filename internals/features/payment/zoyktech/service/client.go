package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"

	"coursepay_backend/internals/configs"
)

// StatusChecker asks the provider for the current state of an order.
type StatusChecker interface {
	CheckStatus(ctx context.Context, providerOrderID string) (map[string]any, error)
}

// PaymentGateway starts a C2B collection at the provider.
type PaymentGateway interface {
	InitiatePayment(ctx context.Context, payload map[string]any) (map[string]any, []byte, error)
}

type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	body := e.Body
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	return fmt.Sprintf("zoyktech: http %d: %s", e.StatusCode, body)
}

type ZoyktechClient struct {
	http *resty.Client
	cfg  configs.ZoyktechConfig
}

func NewZoyktechClient(cfg configs.ZoyktechConfig) *ZoyktechClient {
	return NewZoyktechClientWithBaseURL(cfg, cfg.BaseURL())
}

func NewZoyktechClientWithBaseURL(cfg configs.ZoyktechConfig, baseURL string) *ZoyktechClient {
	hc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		SetJSONMarshaler(sonic.Marshal).
		SetRetryCount(0)
	if cfg.Debug {
		hc.SetDebug(true)
	}
	return &ZoyktechClient{http: hc, cfg: cfg}
}

// InitiatePayment posts a signed payload to /{public_id}/payment_c2b and
// returns the decoded answer plus the raw body.
func (c *ZoyktechClient) InitiatePayment(ctx context.Context, payload map[string]any) (map[string]any, []byte, error) {
	return c.post(ctx, "/"+c.cfg.PublicID+"/payment_c2b", payload)
}

// CheckStatus queries /{public_id}/payment_status for providerOrderID.
func (c *ZoyktechClient) CheckStatus(ctx context.Context, providerOrderID string) (map[string]any, error) {
	payload := map[string]any{
		"merchant_id": c.cfg.MerchantID,
		"order_id":    providerOrderID,
	}
	payload[SignatureField] = Sign(payload, c.cfg.SecretKey)

	out, _, err := c.post(ctx, "/"+c.cfg.PublicID+"/payment_status", payload)
	return out, err
}

func (c *ZoyktechClient) post(ctx context.Context, path string, payload map[string]any) (map[string]any, []byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post(path)
	if err != nil {
		return nil, nil, fmt.Errorf("zoyktech: %s: %w", path, err)
	}
	raw := resp.Body()
	if resp.IsError() {
		return nil, raw, &ProviderError{StatusCode: resp.StatusCode(), Body: string(raw)}
	}

	out, err := decodeJSONObject(raw)
	if err != nil {
		return nil, raw, fmt.Errorf("zoyktech: invalid response from %s: %w", path, err)
	}
	return out, raw, nil
}

// decodeJSONObject keeps numbers as json.Number so integers survive.
func decodeJSONObject(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("empty JSON object")
	}
	return out, nil
}
