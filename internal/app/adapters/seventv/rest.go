package seventv

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"hyperion/internal/app/ports"
)

var ErrUserNotFound = errors.New("7tv: user not found")

// GetUser returns the 7TV account linked to a Twitch user id, including its
// active emote set. Results are cached.
func (sv *SevenTV) GetUser(ctx context.Context, twitchID string) (*ports.User, error) {
	if twitchID == "" {
		return nil, errors.New("twitch id is required")
	}

	return sv.users.GetOrLoad(ctx, twitchID, func(ctx context.Context) (*ports.User, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, sv.opts.APIURL+"/users/twitch/"+url.PathEscape(twitchID), nil)
		if err != nil {
			return nil, err
		}

		resp, err := sv.opts.Client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("get 7tv user: %w", err)
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
		case http.StatusNotFound:
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, twitchID)
		default:
			raw, _ := io.ReadAll(resp.Body)
			return nil, fmt.Errorf("7tv returned %d: %s", resp.StatusCode, string(raw))
		}

		var user ports.User
		if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
			return nil, fmt.Errorf("decode 7tv user: %w", err)
		}
		return &user, nil
	})
}

// SendPresence marks the 7TV user as present in a Twitch channel so other 7TV
// clients there receive the user's cosmetics.
func (sv *SevenTV) SendPresence(ctx context.Context, userID, channelID string) error {
	if userID == "" || channelID == "" {
		return errors.New("user id and channel id are required")
	}

	body, err := json.Marshal(presenceRequest{
		Kind: 1,
		Data: presenceData{Platform: "TWITCH", ID: channelID},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sv.opts.APIURL+"/users/"+url.PathEscape(userID)+"/presences", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := sv.opts.Client.Do(req)
	if err != nil {
		return fmt.Errorf("send presence: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("send presence: 7tv returned %d: %s", resp.StatusCode, string(raw))
	}
	return nil
}
