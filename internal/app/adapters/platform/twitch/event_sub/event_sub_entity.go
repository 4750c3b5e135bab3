package event_sub

import (
	"encoding/json"
	"time"

	"hyperion/internal/app/ports"
)

const (
	messageWelcome      = "session_welcome"
	messageKeepalive    = "session_keepalive"
	messageNotification = "notification"
	messageReconnect    = "session_reconnect"
	messageRevocation   = "revocation"
)

type EventSubMessage struct {
	Metadata Metadata        `json:"metadata"`
	Payload  json.RawMessage `json:"payload"`
}

type Metadata struct {
	MessageID           string    `json:"message_id"`
	MessageType         string    `json:"message_type"`
	MessageTimestamp    time.Time `json:"message_timestamp"`
	SubscriptionType    string    `json:"subscription_type,omitempty"`
	SubscriptionVersion string    `json:"subscription_version,omitempty"`
}

type Session struct {
	ID                      string  `json:"id"`
	Status                  string  `json:"status"`
	KeepaliveTimeoutSeconds int     `json:"keepalive_timeout_seconds"`
	ReconnectURL            *string `json:"reconnect_url"`
}

type SessionPayload struct {
	Session Session `json:"session"`
}

type RevocationPayload struct {
	Subscription ports.EventSubSubscription `json:"subscription"`
}

// Notification is one event delivered on the session. Payload is the
// notification payload exactly as received.
type Notification struct {
	MessageID    string                     `json:"message_id"`
	Timestamp    time.Time                  `json:"timestamp"`
	Subscription ports.EventSubSubscription `json:"subscription"`
	Event        json.RawMessage            `json:"event"`
	Payload      json.RawMessage            `json:"-"`
}

func (n Notification) Type() string {
	return n.Subscription.Type
}

// Subscription is what the registry keeps per "{channel}:{kind}".
type Subscription struct {
	ID        string
	Kind      string
	Condition map[string]string
}

type StreamMessageEvent struct {
	BroadcasterUserID    string `json:"broadcaster_user_id"`
	BroadcasterUserLogin string `json:"broadcaster_user_login"`
	Type                 string `json:"type,omitempty"`
}

type ChannelUpdateEvent struct {
	BroadcasterUserID    string `json:"broadcaster_user_id"`
	BroadcasterUserLogin string `json:"broadcaster_user_login"`
	Title                string `json:"title"`
	Language             string `json:"language"`
	CategoryName         string `json:"category_name"`
}

type ChannelModerateEvent struct {
	BroadcasterUserID    string `json:"broadcaster_user_id"`
	BroadcasterUserLogin string `json:"broadcaster_user_login"`
	ModeratorUserName    string `json:"moderator_user_name"`
	Action               string `json:"action"`
	Timeout              *struct {
		Username  string    `json:"user_name"`
		ExpiresAt time.Time `json:"expires_at"`
		Reason    string    `json:"reason"`
	} `json:"timeout,omitempty"`
	Ban *struct {
		Username string `json:"user_name"`
		Reason   string `json:"reason"`
	} `json:"ban,omitempty"`
}
