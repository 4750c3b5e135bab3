package config

import (
	"errors"
	"fmt"
	"net/url"
)

func (m *Manager) validate(cfg *Config) error {
	// app
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if cfg.App.LogLevel != "" && !validLevels[cfg.App.LogLevel] {
		return fmt.Errorf("app.log_level must be one of trace, debug, info, warn, error; got %s", cfg.App.LogLevel)
	}
	if cfg.App.OAuth == "" {
		return errors.New("app.oauth is required")
	}
	if cfg.App.ClientID == "" {
		return errors.New("app.client_id is required")
	}

	// log
	if cfg.Log.MaxSizeMB < 0 || cfg.Log.MaxBackups < 0 || cfg.Log.MaxAgeDays < 0 {
		return errors.New("log.max_size_mb, log.max_backups and log.max_age_days must not be negative")
	}

	// proxy
	if cfg.Proxy != nil && cfg.Proxy.Address != "" && (cfg.Proxy.Port <= 0 || cfg.Proxy.Port > 65535) {
		return fmt.Errorf("proxy.port must be in [1,65535]; got %d", cfg.Proxy.Port)
	}

	// twitch
	if cfg.Twitch.IRCAddr == "" {
		return errors.New("twitch.irc_addr is required")
	}
	urls := map[string]string{
		"twitch.eventsub_url": cfg.Twitch.EventSubURL,
		"twitch.helix_url":    cfg.Twitch.HelixURL,
		"twitch.history_url":  cfg.Twitch.HistoryURL,
	}
	if cfg.SevenTV.Enabled {
		urls["seventv.events_url"] = cfg.SevenTV.EventsURL
		urls["seventv.api_url"] = cfg.SevenTV.APIURL
	}
	for name, raw := range urls {
		if err := validateURL(raw); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if cfg.Twitch.HistoryLimit < 0 || cfg.Twitch.HistoryLimit > 800 {
		return fmt.Errorf("twitch.history_limit must be in [0,800]; got %d", cfg.Twitch.HistoryLimit)
	}
	if cfg.Twitch.MaxConnectFailures < 0 {
		return errors.New("twitch.max_connect_failures must not be negative")
	}
	if cfg.Twitch.Channels == nil {
		cfg.Twitch.Channels = []Channel{}
	}
	seen := make(map[string]struct{}, len(cfg.Twitch.Channels))
	for _, ch := range cfg.Twitch.Channels {
		if ch.Login == "" {
			return errors.New("twitch.channels.login is required")
		}
		if _, ok := seen[ch.Login]; ok {
			return fmt.Errorf("twitch.channels contains %s twice", ch.Login)
		}
		seen[ch.Login] = struct{}{}
	}

	// reconnect
	if cfg.Reconnect.Initial <= 0 || cfg.Reconnect.Max <= 0 {
		return errors.New("reconnect.initial and reconnect.max must be positive")
	}
	if cfg.Reconnect.Initial > cfg.Reconnect.Max {
		return errors.New("reconnect.initial must not exceed reconnect.max")
	}
	if cfg.Reconnect.Multiplier < 1 {
		return errors.New("reconnect.multiplier must be >= 1")
	}
	if cfg.Reconnect.Randomization < 0 || cfg.Reconnect.Randomization > 1 {
		return errors.New("reconnect.randomization must be in [0,1]")
	}

	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%q is not an absolute url", raw)
	}
	return nil
}
