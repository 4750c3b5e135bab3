package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"hyperion/internal/app/ports"
)

type usersResponse struct {
	Data []ports.TwitchUser `json:"data"`
}

// ValidateToken checks the configured OAuth token and returns whom it belongs
// to. Twitch expects this to be called on startup and hourly afterwards.
func (t *Twitch) ValidateToken(ctx context.Context) (*ports.TokenInfo, error) {
	if t.opts.OAuth == "" {
		return nil, errors.New("empty access token")
	}

	header := http.Header{}
	header.Set("Authorization", "OAuth "+t.opts.OAuth)

	var info ports.TokenInfo
	if err := t.getJSON(ctx, t.opts.ValidateURL, header, &info); err != nil {
		return nil, fmt.Errorf("validate token: %w", err)
	}
	return &info, nil
}

// GetUserByLogin resolves a login through Helix. Lookups are cached.
func (t *Twitch) GetUserByLogin(ctx context.Context, login string) (*ports.TwitchUser, error) {
	login = strings.ToLower(strings.TrimPrefix(login, "#"))
	if login == "" {
		return nil, errors.New("login is required")
	}

	return t.users.GetOrLoad(ctx, login, func(ctx context.Context) (*ports.TwitchUser, error) {
		params := url.Values{}
		params.Set("login", login)

		var resp usersResponse
		if _, err := t.doTwitchRequest(ctx, twitchRequest{
			Method: http.MethodGet,
			URL:    t.opts.HelixURL + "/users?" + params.Encode(),
		}, &resp); err != nil {
			return nil, fmt.Errorf("get user %s: %w", login, err)
		}

		if len(resp.Data) == 0 {
			return nil, fmt.Errorf("user %s: %w", login, ErrNotFound)
		}
		return &resp.Data[0], nil
	})
}
