package ports

import (
	"context"
	"encoding/json"
)

type SevenTVPort interface {
	Subscribe(channel, kind string, condition map[string]string) error
	UnsubscribeAll(channel string)
	GetUser(ctx context.Context, twitchID string) (*User, error)
	SendPresence(ctx context.Context, userID, channelID string) error
	TrackEmoteSet(channel string, set EmoteSet)
	Connected() bool
}

// User is the Twitch connection of a 7TV account as returned by
// /v3/users/twitch/{id}. ID is the Twitch user id, User.ID the 7TV one.
type User struct {
	ID          string      `json:"id"`
	Platform    string      `json:"platform"`
	Username    string      `json:"username"`
	DisplayName string      `json:"display_name"`
	LinkedAt    int64       `json:"linked_at"`
	EmoteCap    int         `json:"emote_capacity"`
	EmoteSetID  string      `json:"emote_set_id"`
	EmoteSet    EmoteSet    `json:"emote_set"`
	User        SevenTVUser `json:"user"`
}

type SevenTVUser struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

type EmoteSet struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Flags      int      `json:"flags"`
	Tags       []string `json:"tags"`
	Immutable  bool     `json:"immutable"`
	Privileged bool     `json:"privileged"`
	Emotes     []Emote  `json:"emotes"`
}

type Emote struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Flags     int       `json:"flags"`
	Timestamp int64     `json:"timestamp"`
	ActorID   string    `json:"actor_id"`
	Data      EmoteData `json:"data"`
}

type EmoteData struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Flags    int    `json:"flags"`
	Listed   bool   `json:"listed"`
	Animated bool   `json:"animated"`
	Host     Host   `json:"host"`
}

type Host struct {
	URL   string     `json:"url"`
	Files []HostFile `json:"files"`
}

type HostFile struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

type SevenTVMessage struct {
	Op int             `json:"op"`
	T  int64           `json:"t,omitempty"`
	D  json.RawMessage `json:"d"`
}

// EmoteSetUpdate is the body of an emote_set.update dispatch.
type EmoteSetUpdate struct {
	ID      string        `json:"id"`
	Kind    int           `json:"kind"`
	Pushed  []ChangeField `json:"pushed"`
	Pulled  []ChangeField `json:"pulled"`
	Updated []ChangeField `json:"updated"`
}

type ChangeField struct {
	Key      string          `json:"key"`
	Index    *int            `json:"index"`
	Value    json.RawMessage `json:"value"`
	OldValue json.RawMessage `json:"old_value"`
}
