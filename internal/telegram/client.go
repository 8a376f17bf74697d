package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Config holds Bot API client configuration.
type Config struct {
	BaseURL        string
	Token          string
	PollTimeout    time.Duration // server-side hold time for getUpdates
	Timeout        time.Duration // per-request budget on top of the hold
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Client talks to the Telegram Bot API. It covers the handful of
// methods the pipeline needs: getUpdates for the polling transport,
// getFile for media resolution, and webhook registration.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string

	pollTimeout    time.Duration
	timeout        time.Duration
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration

	logger *slog.Logger
}

// New creates a Bot API client.
func New(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		httpClient:     &http.Client{},
		baseURL:        cfg.BaseURL,
		token:          cfg.Token,
		pollTimeout:    cfg.PollTimeout,
		timeout:        cfg.Timeout,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger.With("component", "telegram"),
	}
}

// GetUpdates long-polls the update feed starting at offset. The call
// blocks server-side for up to the configured poll timeout; passing
// the next offset confirms everything before it.
func (c *Client) GetUpdates(ctx context.Context, offset int64, limit int) ([]Update, error) {
	params := url.Values{}
	params.Set("offset", strconv.FormatInt(offset, 10))
	params.Set("limit", strconv.Itoa(limit))
	params.Set("timeout", strconv.Itoa(int(c.pollTimeout.Seconds())))
	params.Set("allowed_updates", `["channel_post","edited_channel_post"]`)

	ctx, cancel := context.WithTimeout(ctx, c.pollTimeout+c.timeout)
	defer cancel()

	var resp updatesResponse
	if err := c.call(ctx, "getUpdates", params, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// Resolve turns an opaque file handle into a retrievable URL via
// getFile. Retries transient failures with exponential backoff within
// the caller's context budget.
func (c *Client) Resolve(ctx context.Context, fileID string) (string, error) {
	params := url.Values{}
	params.Set("file_id", fileID)

	var resp fileResponse
	var err error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		err = c.call(ctx, "getFile", params, &resp)
		if err == nil {
			break
		}

		if attempt == c.maxAttempts {
			return "", fmt.Errorf("after %d attempts: %w", c.maxAttempts, err)
		}

		backoff := c.calculateBackoff(attempt)
		c.logger.Warn("getFile failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
	}

	if resp.Result.Path == "" {
		return "", fmt.Errorf("getFile returned no path for %q", fileID)
	}
	return fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, c.token, resp.Result.Path), nil
}

// SetWebhook points the bot's webhook at url, dropping any pending
// updates queued against the previous endpoint first.
func (c *Client) SetWebhook(ctx context.Context, webhookURL string) error {
	if err := c.DeleteWebhook(ctx, true); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}

	params := url.Values{}
	params.Set("url", webhookURL)
	params.Set("allowed_updates", `["channel_post","edited_channel_post"]`)

	var resp apiResponse
	if err := c.call(ctx, "setWebhook", params, &resp); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}

// DeleteWebhook removes the webhook so getUpdates polling works again.
func (c *Client) DeleteWebhook(ctx context.Context, dropPending bool) error {
	params := url.Values{}
	params.Set("drop_pending_updates", strconv.FormatBool(dropPending))

	var resp apiResponse
	return c.call(ctx, "deleteWebhook", params, &resp)
}

type apiResult interface {
	ok() (bool, string, int)
}

func (r apiResponse) ok() (bool, string, int) { return r.OK, r.Description, r.ErrorCode }

func (c *Client) call(ctx context.Context, method string, params url.Values, out apiResult) error {
	endpoint := fmt.Sprintf("%s/bot%s/%s?%s", c.baseURL, c.token, method, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: execute request: %w", method, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}

	if ok, desc, code := out.ok(); !ok {
		return fmt.Errorf("%s: api error %d: %s", method, code, desc)
	}
	return nil
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := c.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > c.maxBackoff {
		backoff = c.maxBackoff
	}
	return backoff
}
