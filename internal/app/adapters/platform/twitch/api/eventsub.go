package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"hyperion/internal/app/ports"
)

type eventSubResponse struct {
	Data         []ports.EventSubSubscription `json:"data"`
	Total        int                          `json:"total"`
	TotalCost    int                          `json:"total_cost"`
	MaxTotalCost int                          `json:"max_total_cost"`
}

func (t *Twitch) CreateEventSubSubscription(ctx context.Context, req ports.EventSubRequest) (*ports.EventSubSubscription, error) {
	if req.Transport.Method == "" {
		req.Transport.Method = "websocket"
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal subscription body: %w", err)
	}

	var resp eventSubResponse
	if _, err := t.doTwitchRequest(ctx, twitchRequest{
		Method: http.MethodPost,
		URL:    t.opts.HelixURL + "/eventsub/subscriptions",
		Body:   body,
	}, &resp); err != nil {
		return nil, fmt.Errorf("create %s subscription: %w", req.Type, err)
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("create subscription: empty response")
	}
	return &resp.Data[0], nil
}

func (t *Twitch) DeleteEventSubSubscription(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("subscription id is required")
	}

	params := url.Values{}
	params.Set("id", id)

	_, err := t.doTwitchRequest(ctx, twitchRequest{
		Method: http.MethodDelete,
		URL:    t.opts.HelixURL + "/eventsub/subscriptions?" + params.Encode(),
	}, nil)
	return err
}
