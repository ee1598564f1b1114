package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/payops/payops/internal/domain/outbox"
	sharedConfig "github.com/payops/payops/internal/shared/config"
	"github.com/payops/payops/internal/shared/logger"
	"github.com/payops/payops/internal/shared/utils"
)

var ErrSMSNotConfigured = errors.New("sms gateway not configured")

// maxSMSLength keeps messages within one concatenated SMS.
const maxSMSLength = 459

type smsRequest struct {
	To        string `json:"to"`
	From      string `json:"from,omitempty"`
	Text      string `json:"text"`
	Reference string `json:"reference,omitempty"`
}

type smsResponse struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error,omitempty"`
}

// HTTPSMSSender posts rendered messages to a JSON SMS gateway.
type HTTPSMSSender struct {
	config   sharedConfig.SMSConfig
	client   *http.Client
	renderer *Renderer
	logger   logger.Interface
}

func NewHTTPSMSSender(cfg sharedConfig.SMSConfig, timeout time.Duration, renderer *Renderer, log logger.Interface) *HTTPSMSSender {
	return &HTTPSMSSender{
		config:   cfg,
		client:   &http.Client{Timeout: timeout},
		renderer: renderer,
		logger:   log,
	}
}

func (s *HTTPSMSSender) SendSMS(ctx context.Context, msg outbox.Message) (string, error) {
	if s.config.GatewayURL == "" {
		return "", ErrSMSNotConfigured
	}
	rendered, err := s.renderer.Render(msg)
	if err != nil {
		return "", err
	}
	text := rendered.Text
	if len(text) > maxSMSLength {
		text = text[:maxSMSLength]
	}

	body, err := json.Marshal(smsRequest{
		To:        msg.Recipient,
		From:      s.config.SenderID,
		Text:      text,
		Reference: msg.DunningRunID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode sms request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.GatewayURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call sms gateway: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var out smsResponse
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode >= 300 {
		s.logger.Warnw("sms gateway rejected message",
			"status", resp.StatusCode,
			"client_id", msg.ClientID,
			"recipient", utils.MaskPhone(msg.Recipient),
			"error", out.Error,
		)
		return "", fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, out.Error)
	}
	return out.MessageID, nil
}
