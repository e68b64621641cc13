// Package mailer предоставляет клиент исходящей почты поверх HTTP API.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client инкапсулирует HTTP-взаимодействие с почтовым сервисом.
// Отправка одноразовая: без очереди, без повторов, ошибка транспорта
// возвращается вызывающему синхронно.
type Client struct {
	baseURL    string
	apiKey     string
	from       string
	httpClient *http.Client
}

// NewClient создаёт клиент почтового сервиса по указанному адресу API.
func NewClient(baseURL, apiKey, from string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		from:    from,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type sendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// Send отправляет одно письмо указанному получателю.
func (c *Client) Send(ctx context.Context, to, subject, html string) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("mailer client not configured")
	}

	body, err := json.Marshal(sendRequest{
		From:    c.from,
		To:      to,
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return nil
}
