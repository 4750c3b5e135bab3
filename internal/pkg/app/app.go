package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/net/proxy"

	router "hyperion/internal/app/adapters/http"
	"hyperion/internal/app/adapters/http/handlers"
	"hyperion/internal/app/adapters/http/relay"
	"hyperion/internal/app/adapters/metrics"
	"hyperion/internal/app/adapters/platform/twitch"
	"hyperion/internal/app/adapters/platform/twitch/api"
	"hyperion/internal/app/adapters/platform/twitch/event_sub"
	"hyperion/internal/app/adapters/platform/twitch/irc"
	"hyperion/internal/app/adapters/seventv"
	"hyperion/internal/app/infrastructure/config"
	"hyperion/internal/app/ports"
	"hyperion/pkg/logger"
)

const DefaultConfigPath = "config.json"

// Run starts every feed and the HTTP server and blocks until ctx is
// cancelled.
func Run(ctx context.Context, configPath string) error {
	manager, err := config.New(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := manager.Get()

	log := logger.New(logger.Options{
		Level:      cfg.App.LogLevel,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer log.Close()

	gin.SetMode(cfg.App.GinMode)

	dialer, err := newDialer(cfg.Proxy)
	if err != nil {
		log.Error("Failed to configure proxy", err)
		return err
	}

	client := &http.Client{
		Timeout: 15 * time.Second,
		Transport: &http.Transport{
			DialContext:         dialer.DialContext,
			MaxIdleConns:        32,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
	wsDialer := &websocket.Dialer{
		NetDialContext:   dialer.DialContext,
		HandshakeTimeout: 10 * time.Second,
	}

	helix := api.NewTwitch(logger.NewPrefixedLogger(log, "helix"), client, api.Options{
		HelixURL:   cfg.Twitch.HelixURL,
		HistoryURL: cfg.Twitch.HistoryURL,
		OAuth:      cfg.App.OAuth,
		ClientID:   cfg.App.ClientID,
	})

	login, userID := cfg.App.Login, cfg.App.UserID
	if login == "" || userID == "" {
		token, err := helix.ValidateToken(ctx)
		if err != nil {
			log.Error("Failed to validate token", err)
			return err
		}
		login, userID = token.Login, token.UserID
		log.Info("Token validated", slog.String("login", login), slog.String("user_id", userID), slog.Int("expires_in", token.ExpiresIn))
	}

	chat := irc.New(logger.NewPrefixedLogger(log, "irc"), irc.Options{
		Addr:    cfg.Twitch.IRCAddr,
		TLS:     cfg.Twitch.IRCTLS,
		Login:   login,
		OAuth:   cfg.App.OAuth,
		Dialer:  dialer,
		BackOff: cfg.Reconnect.NewBackOff(),
	})

	es := event_sub.New(logger.NewPrefixedLogger(log, "eventsub"), event_sub.Options{
		URL:                cfg.Twitch.EventSubURL,
		Login:              login,
		UserID:             userID,
		API:                helix,
		Dialer:             wsDialer,
		BackOff:            cfg.Reconnect.NewBackOff(),
		MaxConnectFailures: cfg.Twitch.MaxConnectFailures,
	})

	var stv *seventv.SevenTV
	if cfg.SevenTV.Enabled {
		stv = seventv.New(logger.NewPrefixedLogger(log, "7tv"), seventv.Options{
			EventsURL: cfg.SevenTV.EventsURL,
			APIURL:    cfg.SevenTV.APIURL,
			Dialer:    wsDialer,
			Client:    client,
			BackOff:   cfg.Reconnect.NewBackOff(),
		})
	}

	hub := relay.NewHub(logger.NewPrefixedLogger(log, "relay"))

	feeds := map[string]handlers.Feed{
		metrics.FeedIRC:      chat,
		metrics.FeedEventSub: es,
	}
	var (
		sevenTVPort ports.SevenTVPort
		emotes      handlers.EmoteSource
	)
	if stv != nil {
		feeds[metrics.FeedSevenTV] = stv
		sevenTVPort = stv
		emotes = stv
	}

	tw := twitch.New(logger.NewPrefixedLogger(log, "twitch"), helix, chat, es, sevenTVPort, twitch.Options{
		UserID:          userID,
		HistoryLimit:    cfg.Twitch.HistoryLimit,
		SevenTVPresence: cfg.SevenTV.Presence,
	})

	h := handlers.New(logger.NewPrefixedLogger(log, "http"), tw, feeds, emotes, hub)
	r := router.NewRouter(logger.NewPrefixedLogger(log, "http"), h, router.Options{
		Addr:      cfg.App.HTTPAddr,
		AuthToken: cfg.App.AuthToken,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	goRun := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	goRun(func() { hub.Run(ctx) })

	chat.Connect(ctx)
	es.Connect(ctx)
	goRun(func() { relayIRC(hub, chat.Messages()) })
	goRun(func() { relayEventSub(hub, es.Events()) })
	if stv != nil {
		stv.Connect(ctx)
		goRun(func() { relaySevenTV(hub, stv.Events()) })
	}

	errCh := make(chan error, 1)
	goRun(func() {
		if err := r.Run(ctx); err != nil {
			errCh <- err
			cancel()
		}
	})

	joinConfigured(ctx, log, tw, cfg.Twitch.Channels)

	<-ctx.Done()
	log.Info("Shutting down")
	wg.Wait()

	select {
	case err := <-errCh:
		log.Error("HTTP server failed", err)
		return err
	default:
		return nil
	}
}

func joinConfigured(ctx context.Context, log logger.Logger, tw *twitch.Twitch, channels []config.Channel) {
	var wg sync.WaitGroup
	for _, ch := range channels {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := tw.JoinByLogin(ctx, ch.Login, ch.IsMod); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				log.Error("Failed to join configured channel", err, slog.String("channel", ch.Login))
			}
		}()
	}
	wg.Wait()
}

// Очереди закрываются фидами при остановке, range завершится сам.
func relayIRC(hub ports.RelayPort, messages <-chan irc.ServerMessage) {
	for msg := range messages {
		hub.Broadcast(ports.Event{Source: ports.SourceIRC, Type: msg.Command(), Data: msg})
	}
}

func relayEventSub(hub ports.RelayPort, events <-chan event_sub.Notification) {
	for n := range events {
		hub.Broadcast(ports.Event{Source: ports.SourceEventSub, Type: n.Type(), Data: n})
	}
}

func relaySevenTV(hub ports.RelayPort, events <-chan seventv.Dispatch) {
	for d := range events {
		hub.Broadcast(ports.Event{Source: ports.SourceSevenTV, Type: d.Type, Data: d})
	}
}

// newDialer returns a plain dialer, or a SOCKS5 one when a proxy is
// configured. The same dialer serves HTTP, both websockets and IRC.
func newDialer(p *config.Proxy) (proxy.ContextDialer, error) {
	base := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	if p == nil || p.Address == "" || p.Port == 0 {
		return base, nil
	}

	d, err := proxy.SOCKS5("tcp", net.JoinHostPort(p.Address, strconv.Itoa(p.Port)), nil, base)
	if err != nil {
		return nil, fmt.Errorf("socks5 proxy: %w", err)
	}

	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, errors.New("socks5 proxy: dialer does not support contexts")
	}
	return cd, nil
}
