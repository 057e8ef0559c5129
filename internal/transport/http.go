package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/pkg/httpretry"
)

// httpPermanentCodes are provider error codes that retrying cannot fix.
var httpPermanentCodes = map[string]bool{
	"sender_not_verified": true,
	"sender_mismatch":     true,
	"invalid_api_key":     true,
}

// HTTPConfig configures the JSON API transport.
type HTTPConfig struct {
	Endpoint   string
	APIKey     string
	MaxRetries int
	Timeout    time.Duration
}

// HTTP posts messages to a JSON mail API. Throttling and 5xx responses
// are retried inside the call by the retry client.
type HTTP struct {
	endpoint string
	apiKey   string
	client   httpretry.HTTPDoer
}

// NewHTTP creates an HTTP transport.
func NewHTTP(cfg HTTPConfig) *HTTP {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return NewHTTPWithClient(cfg.Endpoint, cfg.APIKey,
		httpretry.NewRetryClient(&http.Client{Timeout: timeout}, cfg.MaxRetries))
}

// NewHTTPWithClient creates an HTTP transport using the given client.
func NewHTTPWithClient(endpoint, apiKey string, client httpretry.HTTPDoer) *HTTP {
	return &HTTP{endpoint: endpoint, apiKey: apiKey, client: client}
}

type httpSendRequest struct {
	To       string            `json:"to"`
	From     string            `json:"from"`
	FromName string            `json:"from_name,omitempty"`
	Subject  string            `json:"subject"`
	HTML     string            `json:"html"`
	Tags     map[string]string `json:"tags,omitempty"`
}

type httpSendResponse struct {
	MessageID string `json:"message_id"`
	Error     *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Send delivers one message.
func (h *HTTP) Send(ctx context.Context, msg *domain.EmailMessage) (*domain.SendResult, error) {
	payload, err := json.Marshal(httpSendRequest{
		To:       msg.To,
		From:     msg.FromEmail,
		FromName: msg.FromName,
		Subject:  msg.Subject,
		HTML:     msg.HTMLBody,
		Tags:     map[string]string{"campaign_id": msg.CampaignID, "queue_item_id": msg.QueueItemID},
	})
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.apiKey)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http send: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var out httpSendResponse
	_ = json.Unmarshal(body, &out)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return &domain.SendResult{
			MessageID: out.MessageID,
			Transport: domain.TransportHTTP,
			SentAt:    time.Now().UTC(),
		}, nil
	}

	sendErr := fmt.Errorf("http send: status %d", resp.StatusCode)
	if out.Error != nil {
		sendErr = fmt.Errorf("http send: status %d: %s", resp.StatusCode, out.Error.Message)
		if httpPermanentCodes[out.Error.Code] {
			return nil, Permanent(out.Error.Code, sendErr)
		}
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, Permanent("unauthorized", sendErr)
	}
	return nil, sendErr
}
