package config

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

type Config struct {
	App       App       `json:"app"`
	Log       Log       `json:"log"`
	Proxy     *Proxy    `json:"proxy"`
	Twitch    Twitch    `json:"twitch"`
	SevenTV   SevenTV   `json:"seventv"`
	Reconnect Reconnect `json:"reconnect"`
}

type App struct {
	LogLevel  string `json:"log_level" env:"HYPERION_LOG_LEVEL"`
	GinMode   string `json:"gin_mode"`
	OAuth     string `json:"oauth" env:"HYPERION_OAUTH"`
	ClientID  string `json:"client_id" env:"HYPERION_CLIENT_ID"`
	Login     string `json:"login"`   // filled from the token when empty
	UserID    string `json:"user_id"` // filled from the token when empty
	AuthToken string `json:"auth_token" env:"HYPERION_AUTH_TOKEN"`
	HTTPAddr  string `json:"http_addr" env:"HYPERION_HTTP_ADDR"`
}

type Log struct {
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

type Proxy struct {
	Address string `json:"address"`
	Port    int    `json:"port"`
}

type Twitch struct {
	IRCAddr            string    `json:"irc_addr"`
	IRCTLS             bool      `json:"irc_tls"`
	EventSubURL        string    `json:"eventsub_url"`
	HelixURL           string    `json:"helix_url"`
	HistoryURL         string    `json:"history_url"`
	HistoryLimit       int       `json:"history_limit"`
	MaxConnectFailures int       `json:"max_connect_failures"`
	Channels           []Channel `json:"channels" env:"-"`
}

type Channel struct {
	Login string `json:"login"`
	IsMod bool   `json:"is_mod"`
}

type SevenTV struct {
	Enabled   bool   `json:"enabled"`
	EventsURL string `json:"events_url"`
	APIURL    string `json:"api_url"`
	Presence  bool   `json:"presence"`
}

type Reconnect struct {
	Initial       time.Duration `json:"initial"`
	Max           time.Duration `json:"max"`
	Multiplier    float64       `json:"multiplier"`
	Randomization float64       `json:"randomization"`
}

// NewBackOff builds a fresh exponential policy. Every reconnect loop owns its
// own instance.
func (r Reconnect) NewBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.Initial
	b.MaxInterval = r.Max
	b.Multiplier = r.Multiplier
	b.RandomizationFactor = r.Randomization
	b.Reset()
	return b
}

// HasChannel reports whether login is in the join list.
func (t *Twitch) HasChannel(login string) bool {
	for _, ch := range t.Channels {
		if ch.Login == login {
			return true
		}
	}
	return false
}
