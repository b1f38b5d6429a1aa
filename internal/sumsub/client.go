package sumsub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/louiezhelee-uway/kyc-system/config"
	"github.com/louiezhelee-uway/kyc-system/internal/signature"
	"github.com/louiezhelee-uway/kyc-system/models"
)

const (
	maxAttempts      = 3
	initialBackoff   = time.Second
	errorBodyPreview = 300
)

// ProviderError carries the provider's HTTP status and a truncated response
// body for diagnostics.
type ProviderError struct {
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("sumsub api error: status %d: %s", e.Status, e.Body)
}

type Client struct {
	Config *config.Config
	Logger *zap.SugaredLogger

	httpClient *http.Client
	signer     signature.Signer
}

func NewClient(cfg *config.Config, logger *zap.SugaredLogger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		Config:     cfg,
		Logger:     logger,
		httpClient: &http.Client{Timeout: timeout},
		signer:     signature.Signer{Secret: cfg.SumsubSecretKey},
	}
}

type applicantResponse struct {
	ID string `json:"id"`
}

type accessTokenResponse struct {
	Token string `json:"token"`
}

// CreateApplicant registers the buyer with the provider and returns the
// provider-side applicant id. The externally visible identity is
// "order_<uuid>" so real order numbers never leave the system.
func (c *Client) CreateApplicant(ctx context.Context, order *models.Order) (string, error) {
	payload := map[string]any{
		"externalUserId": "order_" + order.UUID,
		"email":          order.BuyerEmail,
		"phone":          order.BuyerPhone,
		"firstName":      order.BuyerName,
		"lastName":       "",
		"country":        "CN",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal applicant payload: %w", err)
	}

	path := "/resources/applicants?levelName=" + url.QueryEscape(c.Config.SumsubLevelName)
	respBody, err := c.do(ctx, http.MethodPost, path, body, "application/json")
	if err != nil {
		return "", err
	}

	var applicant applicantResponse
	if err := json.Unmarshal(respBody, &applicant); err != nil {
		return "", fmt.Errorf("failed to decode applicant response: %w", err)
	}
	if applicant.ID == "" {
		return "", fmt.Errorf("applicant response has no id")
	}

	return applicant.ID, nil
}

// MintAccessToken returns a short-lived token for the client-side widget. The
// token is never cached: the session manager mints a fresh one on every page
// load and refresh.
func (c *Client) MintAccessToken(ctx context.Context, applicantID string, ttl time.Duration) (string, error) {
	payload := map[string]any{
		"ttlInSecs":   int(ttl.Seconds()),
		"redirectUrl": c.Config.AppDomain + "/verification/complete",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal token payload: %w", err)
	}

	path := fmt.Sprintf("/resources/applicants/%s/tokens", url.PathEscape(applicantID))
	respBody, err := c.do(ctx, http.MethodPost, path, body, "application/json")
	if err != nil {
		return "", err
	}

	var token accessTokenResponse
	if err := json.Unmarshal(respBody, &token); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if token.Token == "" {
		return "", fmt.Errorf("token response has no token")
	}

	return token.Token, nil
}

// FetchReviewResult returns the provider's structured review payload for a
// completed applicant.
func (c *Client) FetchReviewResult(ctx context.Context, applicantID string) (json.RawMessage, error) {
	path := fmt.Sprintf("/resources/applicants/%s/review", url.PathEscape(applicantID))
	respBody, err := c.do(ctx, http.MethodGet, path, nil, "application/json")
	if err != nil {
		return nil, err
	}
	return json.RawMessage(respBody), nil
}

// FetchReportArtifact downloads one report file for a terminal applicant.
func (c *Client) FetchReportArtifact(ctx context.Context, applicantID string, lang string, format models.ReportFormat) ([]byte, error) {
	path := fmt.Sprintf("/resources/applicants/%s/summary/report?report=applicantReport&lang=%s",
		url.PathEscape(applicantID), url.QueryEscape(lang))
	return c.do(ctx, http.MethodGet, path, nil, format.ContentType())
}

// do sends one signed request with bounded retries. Transient failures (429,
// 5xx, transport errors, timeouts) back off exponentially; every attempt
// regenerates the timestamp and signature so a retry never reuses a stale one.
func (c *Client) do(ctx context.Context, method string, path string, body []byte, accept string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := initialBackoff << (attempt - 1)
			c.Logger.Infow("retrying sumsub request", "method", method, "path", path, "attempt", attempt+1, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		respBody, retryable, err := c.doOnce(ctx, method, path, body, accept)
		if err == nil {
			return respBody, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("sumsub request failed after %d attempts: %w", maxAttempts, lastErr)
}

func (c *Client) doOnce(ctx context.Context, method string, path string, body []byte, accept string) ([]byte, bool, error) {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig, err := c.signer.Sign(ts, method, path, body)
	if err != nil {
		return nil, false, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.Config.SumsubAPIURL+path, reader)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-App-Token", c.Config.SumsubAppToken)
	req.Header.Set("X-App-Access-Sig", sig)
	req.Header.Set("X-App-Access-Ts", ts)
	req.Header.Set("Accept", accept)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return respBody, false, nil
	}

	perr := &ProviderError{Status: resp.StatusCode, Body: truncate(respBody, errorBodyPreview)}
	return nil, transient(resp.StatusCode), perr
}

func transient(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
