// HTTP client for the external SMS gateway used to deliver one-time codes.
//
// Env:
//   - SMS_API_URL: gateway send endpoint
//   - SMS_API_TOKEN: bearer token
//   - SMS_SENDER: sender name shown to the recipient
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shop-admin/backend/internal/config"
	"github.com/shop-admin/backend/internal/template"
)

type SMSClient struct {
	apiURL     string
	apiToken   string
	sender     string
	httpClient *http.Client
}

type smsMessage struct {
	To   string `json:"to"`
	From string `json:"from"`
	Body string `json:"body"`
}

type smsResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	ID    string `json:"id,omitempty"`
}

func NewSMSClient(cfg config.SMSConfig) *SMSClient {
	return &SMSClient{
		apiURL:   cfg.APIURL,
		apiToken: cfg.APIToken,
		sender:   cfg.Sender,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *SMSClient) IsConfigured() bool {
	return c.apiURL != "" && c.apiToken != ""
}

// SendCode renders the OTP message body and posts it to the gateway.
func (c *SMSClient) SendCode(ctx context.Context, recipient, code string, ttl time.Duration) error {
	body := template.RenderOTPMessage(template.OTPData{
		Code:    code,
		Minutes: int(ttl.Minutes()),
		App:     c.sender,
	})

	payload, err := json.Marshal(smsMessage{
		To:   recipient,
		From: c.sender,
		Body: body,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var gatewayResp smsResponse
	if err := json.Unmarshal(raw, &gatewayResp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if !gatewayResp.OK {
		return fmt.Errorf("sms gateway error: %s", gatewayResp.Error)
	}
	return nil
}
