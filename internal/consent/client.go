// Package consent gates the audio pipeline on the external consent service.
package consent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/meshychat/meshy/internal/backoff"
	"github.com/meshychat/meshy/internal/breaker"
	"github.com/meshychat/meshy/internal/domain"
)

const requestTimeout = 10 * time.Second

// Client queries per-user consent capabilities. With bypass set every
// capability reads as granted and no network call is made; this exists for
// tests and local development only.
type Client struct {
	baseURL  string
	bypass   bool
	http     *http.Client
	strategy backoff.Strategy
	breaker  *breaker.Breaker
}

func NewClient(baseURL string, bypass bool) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		bypass:   bypass,
		http:     &http.Client{Timeout: requestTimeout},
		strategy: backoff.Fast,
		breaker:  breaker.New(5, 30*time.Second),
	}
}

// GetConsentStatus resolves the capabilities for one user. When the service
// is not configured, consent is denied rather than assumed.
func (c *Client) GetConsentStatus(ctx context.Context, userID string) (*domain.ConsentStatus, error) {
	if c.bypass {
		return &domain.ConsentStatus{
			CanTranscribeAudio:         true,
			CanTranslateAudio:          true,
			CanGenerateTranslatedAudio: true,
			CanUseVoiceCloning:         true,
			HasVoiceDataConsent:        true,
		}, nil
	}
	if c.baseURL == "" {
		return nil, fmt.Errorf("consent service not configured: %w", domain.ErrConsentRequired)
	}

	url := fmt.Sprintf("%s/api/v1/users/%s/consent", c.baseURL, userID)

	// A sustained outage opens the breaker and calls fail fast; the audio
	// pipeline reads every error here as denial.
	var status domain.ConsentStatus
	err := c.breaker.Do(func() error {
		return backoff.RetryWithCallback(ctx, c.strategy, func(ctx context.Context, attempt int) error {
			return c.fetch(ctx, url, &status)
		}, func(attempt int, err error, delay time.Duration) {
			slog.Warn("consent: status check failed, retrying",
				"user_id", userID, "attempt", attempt, "delay", delay, "error", err)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("consent status for %s: %w", userID, err)
	}
	return &status, nil
}

func (c *Client) fetch(ctx context.Context, url string, status *domain.ConsentStatus) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("consent service request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("consent service returned %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(status); err != nil {
		return fmt.Errorf("decode consent response: %w", err)
	}
	return nil
}
