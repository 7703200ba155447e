// Package yookassa is a thin client for the YooKassa v3 payments API. Only
// the two calls the bot needs are implemented: redirect-payment creation and
// status re-verification by id.
package yookassa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/domain/payment"
)

const defaultBaseURL = "https://api.yookassa.ru/v3"

// Payment is the subset of the provider's payment object the bot reads.
type Payment struct {
	ID           string            `json:"id"`
	Status       payment.Status    `json:"status"`
	Confirmation confirmation      `json:"confirmation"`
	Metadata     map[string]string `json:"metadata"`
}

type confirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

type amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type createRequest struct {
	Amount       amount            `json:"amount"`
	Capture      bool              `json:"capture"`
	Confirmation confirmation      `json:"confirmation"`
	Description  string            `json:"description"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	shopID     string
	secretKey  string
	returnURL  string
	log        *zap.Logger
}

func NewClient(shopID, secretKey, returnURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultBaseURL,
		shopID:     shopID,
		secretKey:  secretKey,
		returnURL:  returnURL,
		log:        logger.With(zap.String("component", "yookassa")),
	}
}

// SetBaseURL points the client at a different endpoint (tests).
func (c *Client) SetBaseURL(u string) { c.baseURL = u }

// CreatePayment issues a redirect-based payment for the given amount in
// minor units. A fresh idempotence key is generated per call, so a caller
// retry cannot double-charge. Returns the provider payment id and the
// redirect URL the buyer must open.
func (c *Client) CreatePayment(ctx context.Context, amountMinor int64, description string, metadata map[string]string) (string, string, error) {
	body := createRequest{
		Amount:       amount{Value: formatAmount(amountMinor), Currency: "RUB"},
		Capture:      true,
		Confirmation: confirmation{Type: "redirect", ReturnURL: c.returnURL},
		Description:  description,
		Metadata:     metadata,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", "", fmt.Errorf("yookassa: marshal create request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments", bytes.NewReader(payload))
	if err != nil {
		return "", "", fmt.Errorf("yookassa: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotence-Key", uuid.NewString())
	req.SetBasicAuth(c.shopID, c.secretKey)

	var p Payment
	if err := c.do(req, &p); err != nil {
		c.log.Error("payment_create_failed",
			zap.Int64("amount_minor", amountMinor),
			zap.Error(err),
		)
		return "", "", err
	}
	if p.ID == "" || p.Confirmation.ConfirmationURL == "" {
		c.log.Error("payment_create_incomplete_response", zap.String("payment_id", p.ID))
		return "", "", fmt.Errorf("yookassa: incomplete create response")
	}

	c.log.Info("payment_created",
		zap.String("payment_id", p.ID),
		zap.Int64("amount_minor", amountMinor),
	)
	return p.ID, p.Confirmation.ConfirmationURL, nil
}

// FindPayment re-verifies a payment's true status directly against the
// provider, independent of any webhook payload.
func (c *Client) FindPayment(ctx context.Context, paymentID string) (payment.Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/payments/"+paymentID, nil)
	if err != nil {
		return "", fmt.Errorf("yookassa: build request: %w", err)
	}
	req.SetBasicAuth(c.shopID, c.secretKey)

	var p Payment
	if err := c.do(req, &p); err != nil {
		return "", err
	}
	return p.Status, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("yookassa: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("yookassa: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("yookassa: status %d: %s", resp.StatusCode, truncate(data, 256))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("yookassa: decode response: %w", err)
	}
	return nil
}

// formatAmount renders minor units as the provider's decimal string,
// e.g. 100000 -> "1000.00".
func formatAmount(minor int64) string {
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
