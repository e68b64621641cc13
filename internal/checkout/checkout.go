// Package checkout предоставляет клиент платёжного провайдера с hosted-checkout.
package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client инкапсулирует HTTP-взаимодействие с платёжным провайдером.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

// Session описывает созданную провайдером сессию оплаты.
type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// NewClient создаёт клиент платёжного провайдера по указанному адресу API.
func NewClient(baseURL, secretKey string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreateSession создаёт сессию hosted-checkout и возвращает URL для редиректа.
func (c *Client) CreateSession(ctx context.Context, priceID, customerEmail, successURL, cancelURL string) (string, error) {
	if c == nil || c.baseURL == "" || c.secretKey == "" {
		return "", fmt.Errorf("checkout client not configured")
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("line_items[0][price]", priceID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("customer_email", customerEmail)
	form.Set("success_url", successURL)
	form.Set("cancel_url", cancelURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Idempotency-Key", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if session.URL == "" {
		return "", fmt.Errorf("provider returned empty session url")
	}

	return session.URL, nil
}
