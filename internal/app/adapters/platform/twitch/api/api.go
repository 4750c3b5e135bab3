package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"hyperion/internal/app/adapters/metrics"
	"hyperion/internal/app/infrastructure/storage"
	"hyperion/internal/app/ports"
	"hyperion/pkg/logger"
)

const defaultValidateURL = "https://id.twitch.tv/oauth2/validate"

type Options struct {
	HelixURL    string
	HistoryURL  string
	ValidateURL string

	OAuth    string
	ClientID string

	// Limit paces Helix calls. Twitch grants 800 points per minute to an app
	// token, every call used here costs one point.
	Limit rate.Limit
	Burst int

	UserCacheTTL time.Duration
}

type Twitch struct {
	log     logger.Logger
	opts    Options
	client  *http.Client
	limiter *rate.Limiter
	users   *storage.Cache[*ports.TwitchUser]
}

var _ ports.APIPort = (*Twitch)(nil)

func NewTwitch(log logger.Logger, client *http.Client, opts Options) *Twitch {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.ValidateURL == "" {
		opts.ValidateURL = defaultValidateURL
	}
	if opts.Limit == 0 {
		opts.Limit = rate.Every(time.Minute / 800)
		opts.Burst = 20
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.UserCacheTTL <= 0 {
		opts.UserCacheTTL = time.Hour
	}
	opts.HelixURL = strings.TrimRight(opts.HelixURL, "/")
	opts.HistoryURL = strings.TrimRight(opts.HistoryURL, "/")
	opts.OAuth = strings.TrimPrefix(opts.OAuth, "oauth:")

	return &Twitch{
		log:     log,
		opts:    opts,
		client:  client,
		limiter: rate.NewLimiter(opts.Limit, opts.Burst),
		users:   storage.NewCache[*ports.TwitchUser](1024, opts.UserCacheTTL),
	}
}

const (
	maxRetries  = 5
	baseBackoff = time.Second
	maxBackoff  = 30 * time.Second
)

type twitchRequest struct {
	Method string
	URL    string
	Body   []byte
}

type TwitchAPIError struct {
	Error   string `json:"error"`
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// doTwitchRequest sends an authenticated Helix request, retrying on 429 until
// the Ratelimit-Reset moment. The body is replayed on every attempt.
func (t *Twitch) doTwitchRequest(ctx context.Context, reqData twitchRequest, target any) (int, error) {
	t.log.Trace("Preparing Twitch request",
		slog.String("method", reqData.Method),
		slog.String("url", reqData.URL),
	)

	if err := t.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	for attempt := 1; attempt <= maxRetries; attempt++ {
		var body io.Reader
		if reqData.Body != nil {
			body = bytes.NewReader(reqData.Body)
		}

		req, err := http.NewRequestWithContext(ctx, reqData.Method, reqData.URL, body)
		if err != nil {
			t.log.Error("Failed to create HTTP request", err, slog.String("method", reqData.Method), slog.String("url", reqData.URL))
			return 0, err
		}
		req.Header.Set("Authorization", "Bearer "+t.opts.OAuth)
		req.Header.Set("Client-Id", t.opts.ClientID)
		if reqData.Body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		t.log.Debug("Sending Twitch request", slog.Int("attempt", attempt), slog.String("method", reqData.Method), slog.String("url", reqData.URL))

		start := time.Now()
		resp, err := t.client.Do(req)
		if err != nil {
			metrics.HelixRequestDuration.WithLabelValues(reqData.Method, "error").Observe(time.Since(start).Seconds())
			return 0, fmt.Errorf("%s %s: %w", reqData.Method, reqData.URL, err)
		}

		raw, err := io.ReadAll(resp.Body)
		if cerr := resp.Body.Close(); cerr != nil {
			t.log.Error("Failed to close response body", cerr)
		}
		metrics.HelixRequestDuration.WithLabelValues(reqData.Method, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())
		if err != nil {
			return resp.StatusCode, fmt.Errorf("read response body: %w", err)
		}

		t.log.Trace("Response received", slog.Int("status", resp.StatusCode), slog.String("body", string(raw)))
		switch resp.StatusCode {
		case http.StatusOK, http.StatusAccepted, http.StatusNoContent:
			if target == nil || len(raw) == 0 {
				return resp.StatusCode, nil
			}
			if err := json.Unmarshal(raw, target); err != nil {
				return resp.StatusCode, fmt.Errorf("decode response: %w", err)
			}
			return resp.StatusCode, nil

		case http.StatusTooManyRequests:
			wait := calcWaitDuration(resp.Header.Get("Ratelimit-Reset"), time.Now())
			if wait <= 0 {
				wait = time.Duration(attempt) * baseBackoff
			}
			if wait > maxBackoff {
				wait = maxBackoff
			}

			t.log.Warn("Rate limit hit, backing off", slog.Int("attempt", attempt), slog.Duration("wait", wait))
			select {
			case <-ctx.Done():
				return resp.StatusCode, ctx.Err()
			case <-time.After(wait):
			}

		default:
			return resp.StatusCode, apiError(resp.StatusCode, raw)
		}
	}

	t.log.Error("Twitch request failed after max retries", ErrRateLimited,
		slog.Int("maxRetries", maxRetries),
		slog.String("url", reqData.URL),
	)
	return http.StatusTooManyRequests, fmt.Errorf("%w: gave up after %d attempts", ErrRateLimited, maxRetries)
}

// getJSON is a plain GET for endpoints outside Helix, which take no Client-Id.
func (t *Twitch) getJSON(ctx context.Context, url string, header http.Header, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return apiError(resp.StatusCode, raw)
	}
	return json.Unmarshal(raw, target)
}

func apiError(status int, raw []byte) error {
	msg := strings.TrimSpace(string(raw))
	var apiErr TwitchAPIError
	if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Message != "" {
		msg = apiErr.Message
	}

	switch status {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrBadRequest, msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrConflict, msg)
	default:
		return fmt.Errorf("twitch API returned %d: %s", status, msg)
	}
}

func calcWaitDuration(resetHeader string, now time.Time) time.Duration {
	if resetHeader == "" {
		return 0
	}

	ts, err := strconv.ParseInt(resetHeader, 10, 64)
	if err != nil {
		return 0
	}

	resetTime := time.Unix(ts, 0)
	if resetTime.Before(now) {
		return 0
	}
	return resetTime.Sub(now)
}
