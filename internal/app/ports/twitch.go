package ports

import (
	"context"
	"time"
)

// EventSubAPIPort is the Helix side-channel used to create and delete
// EventSub subscriptions bound to a websocket session.
type EventSubAPIPort interface {
	CreateEventSubSubscription(ctx context.Context, req EventSubRequest) (*EventSubSubscription, error)
	DeleteEventSubSubscription(ctx context.Context, id string) error
}

type APIPort interface {
	EventSubAPIPort

	ValidateToken(ctx context.Context) (*TokenInfo, error)
	GetUserByLogin(ctx context.Context, login string) (*TwitchUser, error)
	GetRecentMessages(ctx context.Context, channel string, limit int) ([]string, error)
}

type IRCPort interface {
	Join(ctx context.Context, login string) error
	Part(login string) error
	Replay(lines []string) int
	WaitJoined(ctx context.Context, login string, timeout time.Duration) bool
	Connected() bool
}

type EventSubPort interface {
	SubscribeAll(ctx context.Context, channel string, reqs []SubscriptionRequest) int
	UnsubscribeAll(ctx context.Context, channel string)
	WaitSession(ctx context.Context) (string, error)
	Connected() bool
	SessionID() string
}

// SubscriptionRequest is one kind to subscribe to with its condition.
type SubscriptionRequest struct {
	Kind      string
	Condition map[string]string
}

type EventSubRequest struct {
	Type      string            `json:"type"`
	Version   string            `json:"version"`
	Condition map[string]string `json:"condition"`
	Transport EventSubTransport `json:"transport"`
}

type EventSubTransport struct {
	Method    string `json:"method"`
	SessionID string `json:"session_id,omitempty"`
}

type EventSubSubscription struct {
	ID        string            `json:"id"`
	Status    string            `json:"status"`
	Type      string            `json:"type"`
	Version   string            `json:"version"`
	Condition map[string]string `json:"condition"`
	Transport EventSubTransport `json:"transport"`
	CreatedAt time.Time         `json:"created_at"`
	Cost      int               `json:"cost"`
}

type TokenInfo struct {
	ClientID  string   `json:"client_id"`
	Login     string   `json:"login"`
	UserID    string   `json:"user_id"`
	Scopes    []string `json:"scopes"`
	ExpiresIn int      `json:"expires_in"`
}

type TwitchUser struct {
	ID              string    `json:"id"`
	Login           string    `json:"login"`
	DisplayName     string    `json:"display_name"`
	Type            string    `json:"type"`
	BroadcasterType string    `json:"broadcaster_type"`
	ProfileImageURL string    `json:"profile_image_url"`
	CreatedAt       time.Time `json:"created_at"`
}
