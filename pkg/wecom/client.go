// WeComRelay - webhook to WeCom group-bot relay
// License: MIT
//
// Copyright (c) 2026 WeComRelay contributors

package wecom

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"wecomrelay/pkg/logger"
)

const maxAckBytes = 1 << 20

// StatusError is returned when the webhook answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook returned status %d: %s", e.StatusCode, e.Body)
}

// APIError is returned when the transport succeeded but the acknowledgement
// does not carry errcode 0.
type APIError struct {
	ErrCode    int
	ErrMsg     string
	HasErrCode bool
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("企业微信发送失败: %s", e.Body)
}

type Ack struct {
	ErrCode *int   `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

type Client struct {
	webhookURL string
	timeout    time.Duration
	httpClient *http.Client
}

func NewClient(webhookURL string, timeout time.Duration) *Client {
	return &Client{
		webhookURL: webhookURL,
		timeout:    timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Send posts env to the webhook and checks both the HTTP status and the
// errcode in the acknowledgement. Nothing is retried.
func (c *Client) Send(ctx context.Context, env Envelope) (*Ack, error) {
	if c.webhookURL == "" {
		return nil, fmt.Errorf("webhook URL not configured")
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAckBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	logger.DebugCF("wecom", "Webhook responded", map[string]interface{}{
		logger.FieldStatus:   resp.StatusCode,
		logger.FieldDuration: time.Since(started).Milliseconds(),
		"timeout":            c.timeout.String(),
	})

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return parseAck(body)
}

func parseAck(body []byte) (*Ack, error) {
	var ack Ack
	if err := json.Unmarshal(body, &ack); err != nil {
		return nil, fmt.Errorf("failed to parse acknowledgement %q: %w", string(body), err)
	}
	if ack.ErrCode == nil {
		return nil, &APIError{ErrMsg: ack.ErrMsg, Body: string(body)}
	}
	if *ack.ErrCode != 0 {
		return nil, &APIError{ErrCode: *ack.ErrCode, ErrMsg: ack.ErrMsg, HasErrCode: true, Body: string(body)}
	}
	return &ack, nil
}

// IsTimeout reports whether err came from the client timeout or a context deadline.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
