package practicum

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"hwbot/internal/homework"
	logx "hwbot/pkg/logx"
)

const (
	DefaultEndpoint = "https://practicum.yandex.ru/api/user_api/homework_statuses/"
	defaultTimeout  = 30 * time.Second

	maxResponseBodySize = 1 << 20 // 1MB
)

type Config struct {
	Endpoint string
	Token    string
	// Timeout bounds one request. The caller's context still applies.
	Timeout time.Duration
}

// Client fetches homework statuses from the review API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        logx.Logger
}

func New(cfg Config, log logx.Logger) *Client {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg: cfg,
		// per-request timeouts come from the context
		httpClient: &http.Client{},
		log:        log,
	}
}

// Fetch requests updates since from and returns the decoded JSON body.
//
// Transport failures (including an unreadable or non-JSON body) are returned
// as *homework.APIError; a non-200 answer as *homework.StatusCodeError.
// The shape of the body is not checked here.
func (c *Client) Fetch(ctx context.Context, from time.Time) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	u, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return nil, &homework.APIError{Err: fmt.Errorf("invalid endpoint: %w", err)}
	}
	q := u.Query()
	q.Set("from_date", strconv.FormatInt(from.Unix(), 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &homework.APIError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Authorization", "OAuth "+c.cfg.Token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &homework.APIError{Err: fmt.Errorf("request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	c.log.Debug("api response",
		logx.Int("status", resp.StatusCode),
		logx.Int64("from_date", from.Unix()),
		logx.Duration("latency", time.Since(start)),
	)
	if resp.StatusCode != http.StatusOK {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBodySize))
		return nil, &homework.StatusCodeError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, &homework.APIError{Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &homework.APIError{Err: fmt.Errorf("decode response: %w", err)}
	}
	return payload, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
