// Package stripe implements the alternate card processor adapter on top of
// the payment intents API.
package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fbr-shop/payment-service/internal/provider"
)

const Name = "stripe"

const SignatureHeader = "Stripe-Signature"

type Config struct {
	BaseURL       string
	SecretKey     string
	WebhookSecret string
	Timeout       time.Duration
}

type Client struct {
	logger *slog.Logger
	cfg    Config
	http   *http.Client
}

func New(logger *slog.Logger, cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.stripe.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		logger: logger.With(slog.String("provider", Name)),
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) Name() string { return Name }

func (c *Client) SignatureHeader() string { return SignatureHeader }

type intentResponse struct {
	ID           string            `json:"id"`
	ClientSecret string            `json:"client_secret"`
	Amount       int64             `json:"amount"`
	Currency     string            `json:"currency"`
	Status       string            `json:"status"`
	Metadata     map[string]string `json:"metadata"`
}

func (c *Client) CreatePayment(ctx context.Context, details provider.OrderDetails) (provider.PaymentIntent, error) {
	metadata, err := provider.FlattenMetadata(details)
	if err != nil {
		return provider.PaymentIntent{}, err
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(provider.MinorUnits(details.Amount), 10))
	form.Set("currency", strings.ToLower(details.Currency))
	form.Set("receipt_email", details.Email)
	form.Set("automatic_payment_methods[enabled]", "true")
	for k, v := range metadata {
		form.Set("metadata["+k+"]", v)
	}

	var res intentResponse
	if err := c.do(ctx, http.MethodPost, "/v1/payment_intents", form, &res); err != nil {
		return provider.PaymentIntent{}, err
	}
	return toIntent(res), nil
}

func (c *Client) GetPayment(ctx context.Context, id string) (provider.PaymentIntent, error) {
	var res intentResponse
	if err := c.do(ctx, http.MethodGet, "/v1/payment_intents/"+url.PathEscape(id), nil, &res); err != nil {
		return provider.PaymentIntent{}, err
	}
	return toIntent(res), nil
}

// VerifyWebhookSignature implements the t=<ts>,v1=<hex> scheme: the HMAC is
// computed over "<ts>.<raw body>" and compared in constant time against every
// v1 candidate in the header. Missing header never verifies.
func (c *Client) VerifyWebhookSignature(rawBody []byte, header http.Header) bool {
	signatureHeader := header.Get(SignatureHeader)
	if signatureHeader == "" {
		return false
	}

	var timestamp string
	var candidates [][]byte
	for _, part := range strings.Split(signatureHeader, ",") {
		part = strings.TrimSpace(part)
		if value, ok := strings.CutPrefix(part, "t="); ok {
			timestamp = value
			continue
		}
		if value, ok := strings.CutPrefix(part, "v1="); ok {
			decoded, err := hex.DecodeString(value)
			if err != nil {
				continue
			}
			candidates = append(candidates, decoded)
		}
	}
	if timestamp == "" || len(candidates) == 0 {
		return false
	}

	mac := hmac.New(sha256.New, []byte(c.cfg.WebhookSecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(rawBody)
	expected := mac.Sum(nil)

	for _, candidate := range candidates {
		if hmac.Equal(expected, candidate) {
			return true
		}
	}
	return false
}

type webhookPayload struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string            `json:"id"`
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

func (c *Client) ParseWebhook(rawBody []byte) (provider.WebhookEvent, error) {
	var p webhookPayload
	if err := json.Unmarshal(rawBody, &p); err != nil {
		return provider.WebhookEvent{}, fmt.Errorf("failed to parse webhook payload: %w", err)
	}
	return provider.WebhookEvent{
		ID:        p.ID,
		Type:      p.Type,
		PaymentID: p.Data.Object.ID,
		OrderID:   p.Data.Object.Metadata["order_id"],
		Metadata:  p.Data.Object.Metadata,
	}, nil
}

func toIntent(res intentResponse) provider.PaymentIntent {
	return provider.PaymentIntent{
		ID:           res.ID,
		ClientSecret: res.ClientSecret,
		// responses carry minor units, converted back here and nowhere else
		Amount:   provider.FromMinorUnits(res.Amount),
		Currency: strings.ToUpper(res.Currency),
		State:    res.Status,
		Metadata: res.Metadata,
	}
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, dest any) error {
	var reader io.Reader
	if form != nil {
		reader = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", Name, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		raw, _ := io.ReadAll(res.Body)
		return &provider.ProviderError{Provider: Name, Status: res.StatusCode, Body: string(raw)}
	}

	if err := json.NewDecoder(res.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", Name, err)
	}
	return nil
}
