// Package lifecycle tells the subscription-management system about
// suspensions decided by the dunning engine.
package lifecycle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/payops/payops/internal/domain/outbox"
	sharedConfig "github.com/payops/payops/internal/shared/config"
	"github.com/payops/payops/internal/shared/constants"
	"github.com/payops/payops/internal/shared/logger"
)

type suspendRequest struct {
	OrganizationID string    `json:"organization_id"`
	Reason         string    `json:"reason"`
	EffectiveDate  time.Time `json:"effective_date"`
}

// HTTPNotifier posts suspensions to the lifecycle API. The idempotency key
// lets the remote side ignore redelivered notifications.
type HTTPNotifier struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  logger.Interface
}

func NewHTTPNotifier(cfg sharedConfig.LifecycleConfig, log logger.Interface) *HTTPNotifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPNotifier{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		logger:  log,
	}
}

func (n *HTTPNotifier) NotifySuspension(ctx context.Context, idempotencyKey, organizationID string, s outbox.Suspension) error {
	if n.baseURL == "" {
		n.logger.Warnw("lifecycle system not configured, suspension not forwarded",
			"subscription_id", s.SubscriptionID,
		)
		return nil
	}
	endpoint, err := url.JoinPath(n.baseURL, "subscriptions", url.PathEscape(s.SubscriptionID), "suspend")
	if err != nil {
		return fmt.Errorf("failed to build lifecycle url: %w", err)
	}
	body, err := json.Marshal(suspendRequest{
		OrganizationID: organizationID,
		Reason:         s.Reason,
		EffectiveDate:  s.EffectiveDate,
	})
	if err != nil {
		return fmt.Errorf("failed to encode suspension: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build lifecycle request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(constants.HeaderIdempotencyKey, idempotencyKey)
	if n.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+n.apiKey)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call lifecycle system: %w", err)
	}
	defer resp.Body.Close()

	// 409 means the subscription is already suspended.
	if resp.StatusCode == http.StatusConflict {
		return nil
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("lifecycle system returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	n.logger.Infow("suspension forwarded",
		"subscription_id", s.SubscriptionID,
		"reason", s.Reason,
	)
	return nil
}
