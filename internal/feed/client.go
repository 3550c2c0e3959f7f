package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/keepstack/keepsync/pkg/errors"
	"github.com/keepstack/keepsync/pkg/validator"
)

const (
	defaultTimeout  = 10 * time.Second
	insightsPath    = "/v1/insights"
	maxResponseSize = 4 << 20 // 4 MiB
)

// Client fetches the current list of insight records from the remote service.
// Implementations are stateless; a failed fetch must leave no trace.
type Client interface {
	Fetch(ctx context.Context) ([]Record, error)
}

// HTTPConfig configures the HTTP feed client.
type HTTPConfig struct {
	BaseURL      string
	DeviceID     string
	DeviceSecret string
	Timeout      time.Duration
}

// HTTPClient is the production feed client. Every failure mode, whether a
// transport error, a non-2xx response, or a malformed payload, is reported as
// a single fetch error so the caller can treat the cycle as a no-op.
type HTTPClient struct {
	baseURL string
	tokens  *tokenSource
	client  *http.Client
}

// NewHTTPClient constructs an HTTP feed client.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("feed client: base url is required")
	}

	tokens, err := newTokenSource(cfg.DeviceID, cfg.DeviceSecret)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &HTTPClient{
		baseURL: baseURL,
		tokens:  tokens,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Fetch retrieves the insight list. The request carries a bounded timeout so a
// hung call cannot block the single-flight poll cycle indefinitely.
func (c *HTTPClient) Fetch(ctx context.Context) ([]Record, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+insightsPath, nil)
	if err != nil {
		return nil, apperrors.ErrFetch.WithInternal(fmt.Errorf("feed client: build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	token, err := c.tokens.Token()
	if err != nil {
		return nil, apperrors.ErrFetch.WithInternal(fmt.Errorf("feed client: sign token: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperrors.ErrFetch.WithInternal(fmt.Errorf("feed client: request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperrors.ErrFetch.WithInternal(fmt.Errorf("feed client: unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, apperrors.ErrFetch.WithInternal(fmt.Errorf("feed client: read body: %w", err))
	}

	records, err := decodeRecords(body)
	if err != nil {
		return nil, apperrors.ErrFetch.WithInternal(err)
	}
	return records, nil
}

func decodeRecords(body []byte) ([]Record, error) {
	var records []Record
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("feed client: decode payload: %w", err)
	}

	for i, record := range records {
		if err := validator.ValidateStruct(record); err != nil {
			return nil, fmt.Errorf("feed client: record %d invalid: %w", i, err)
		}
	}
	return records, nil
}
