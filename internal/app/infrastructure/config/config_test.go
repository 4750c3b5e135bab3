package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, modify func(cfg *Config)) string {
	t.Helper()

	cfg := (&Manager{}).GetDefault()
	cfg.App.OAuth = "token"
	cfg.App.ClientID = "client"
	if modify != nil {
		modify(cfg)
	}

	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

func TestNewWritesDefaults(t *testing.T) {
	t.Setenv("HYPERION_OAUTH", "from-env")
	t.Setenv("HYPERION_CLIENT_ID", "client-env")

	path := filepath.Join(t.TempDir(), "config.json")

	m, err := New(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", m.Get().App.OAuth)
	assert.Equal(t, "irc.chat.twitch.tv:6697", m.Get().Twitch.IRCAddr)

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestNewRequiresCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	_, err := New(path)
	assert.ErrorContains(t, err, "app.oauth is required")
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, func(cfg *Config) {
		cfg.App.HTTPAddr = "127.0.0.1:1"
	})
	t.Setenv("HYPERION_HTTP_ADDR", "0.0.0.0:9000")
	t.Setenv("HYPERION_LOG_LEVEL", "debug")

	m, err := New(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", m.Get().App.HTTPAddr)
	assert.Equal(t, "debug", m.Get().App.LogLevel)
	assert.Equal(t, "token", m.Get().App.OAuth)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(cfg *Config)
		wantErr string
	}{
		{"ok", func(*Config) {}, ""},
		{"bad log level", func(cfg *Config) { cfg.App.LogLevel = "loud" }, "app.log_level"},
		{"relative url", func(cfg *Config) { cfg.Twitch.EventSubURL = "/ws" }, "twitch.eventsub_url"},
		{"disabled 7tv skips its urls", func(cfg *Config) { cfg.SevenTV.Enabled = false; cfg.SevenTV.APIURL = "" }, ""},
		{"history limit", func(cfg *Config) { cfg.Twitch.HistoryLimit = 801 }, "twitch.history_limit"},
		{"duplicate channel", func(cfg *Config) {
			cfg.Twitch.Channels = []Channel{{Login: "forsen"}, {Login: "forsen", IsMod: true}}
		}, "twice"},
		{"empty channel", func(cfg *Config) { cfg.Twitch.Channels = []Channel{{}} }, "twitch.channels.login"},
		{"initial above max", func(cfg *Config) { cfg.Reconnect.Initial = time.Minute }, "reconnect.initial"},
		{"proxy port", func(cfg *Config) { cfg.Proxy = &Proxy{Address: "127.0.0.1"} }, "proxy.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Manager{}
			cfg := m.GetDefault()
			cfg.App.OAuth = "token"
			cfg.App.ClientID = "client"
			tt.modify(cfg)

			err := m.validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestUpdatePersists(t *testing.T) {
	path := writeConfig(t, nil)

	m, err := New(path)
	require.NoError(t, err)

	require.NoError(t, m.Update(func(cfg *Config) {
		cfg.Twitch.Channels = append(cfg.Twitch.Channels, Channel{Login: "pajlada", IsMod: true})
	}))
	assert.True(t, m.Get().Twitch.HasChannel("pajlada"))

	again, err := New(path)
	require.NoError(t, err)
	assert.Equal(t, []Channel{{Login: "pajlada", IsMod: true}}, again.Get().Twitch.Channels)

	err = m.Update(func(cfg *Config) { cfg.Reconnect.Multiplier = 0 })
	assert.ErrorContains(t, err, "invalid config update")
}

func TestReconnectBackOff(t *testing.T) {
	r := Reconnect{Initial: 100 * time.Millisecond, Max: time.Second, Multiplier: 2}

	b := r.NewBackOff()
	assert.Equal(t, 100*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 200*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 400*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 800*time.Millisecond, b.NextBackOff())
	assert.Equal(t, time.Second, b.NextBackOff())

	b.Reset()
	assert.Equal(t, 100*time.Millisecond, b.NextBackOff())
}
