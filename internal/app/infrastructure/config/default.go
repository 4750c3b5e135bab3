package config

import "time"

func (m *Manager) GetDefault() *Config {
	return &Config{
		App: App{
			LogLevel: "info",
			GinMode:  "release",
			HTTPAddr: "127.0.0.1:8085",
		},
		Log: Log{
			File:       "logs/hyperion.log",
			MaxSizeMB:  64,
			MaxBackups: 32,
			MaxAgeDays: 30,
		},
		Twitch: Twitch{
			IRCAddr:      "irc.chat.twitch.tv:6697",
			IRCTLS:       true,
			EventSubURL:  "wss://eventsub.wss.twitch.tv/ws",
			HelixURL:     "https://api.twitch.tv/helix",
			HistoryURL:   "https://recent-messages.robotty.de/api/v2/recent-messages",
			HistoryLimit: 100,
			Channels:     []Channel{},
		},
		SevenTV: SevenTV{
			Enabled:   true,
			EventsURL: "wss://events.7tv.io/v3",
			APIURL:    "https://7tv.io/v3",
			Presence:  true,
		},
		Reconnect: Reconnect{
			Initial:       500 * time.Millisecond,
			Max:           30 * time.Second,
			Multiplier:    2,
			Randomization: 0.3,
		},
	}
}
