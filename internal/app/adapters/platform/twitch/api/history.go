package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
)

type recentMessagesResponse struct {
	Messages  []string `json:"messages"`
	Error     *string  `json:"error"`
	ErrorCode *string  `json:"error_code"`
}

// GetRecentMessages fetches raw IRC lines recently sent to channel from the
// history service. A limit of zero disables the lookup.
func (t *Twitch) GetRecentMessages(ctx context.Context, channel string, limit int) ([]string, error) {
	if limit <= 0 || t.opts.HistoryURL == "" {
		return nil, nil
	}

	channel = strings.ToLower(strings.TrimPrefix(channel, "#"))
	if channel == "" {
		return nil, errors.New("channel is required")
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))

	var resp recentMessagesResponse
	if err := t.getJSON(ctx, t.opts.HistoryURL+"/"+url.PathEscape(channel)+"?"+params.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("recent messages for %s: %w", channel, err)
	}

	// Сервис может вернуть ошибку вместе с частью истории.
	if resp.Error != nil && *resp.Error != "" {
		if len(resp.Messages) == 0 {
			return nil, fmt.Errorf("recent messages for %s: %s", channel, *resp.Error)
		}
		t.log.Warn("Recent messages returned with error", slog.String("channel", channel), slog.String("error", *resp.Error))
	}

	return resp.Messages, nil
}
