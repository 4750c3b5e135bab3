package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"hyperion/internal/app/adapters/platform/twitch"
	"hyperion/internal/app/adapters/platform/twitch/api"
	"hyperion/pkg/logger"
)

type ChannelManager interface {
	JoinByLogin(ctx context.Context, login string, isMod bool) error
	Leave(ctx context.Context, login string) error
	Channels() []twitch.JoinRequest
}

// Feed is a live connection shown on /healthz. Feeds that also have a
// SessionID() string method report it.
type Feed interface {
	Connected() bool
	QueueLen() int
}

type EmoteSource interface {
	Emotes(channel string) []string
	CountEmotes(channel string, words []string) int
	IsOnlyEmotes(channel string, words []string) bool
}

type Relay interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
	Clients() int
}

type Handlers struct {
	log      logger.Logger
	channels ChannelManager
	feeds    map[string]Feed
	emotes   EmoteSource
	relay    Relay
	started  time.Time
}

// New builds the handlers. emotes may be nil when 7TV is disabled.
func New(log logger.Logger, channels ChannelManager, feeds map[string]Feed, emotes EmoteSource, relay Relay) *Handlers {
	return &Handlers{
		log:      log,
		channels: channels,
		feeds:    feeds,
		emotes:   emotes,
		relay:    relay,
		started:  time.Now(),
	}
}

type feedStatus struct {
	Connected  bool   `json:"connected"`
	SessionID  string `json:"session_id,omitempty"`
	QueueDepth int    `json:"queue_depth"`
}

type health struct {
	Status       string                `json:"status"`
	Uptime       string                `json:"uptime"`
	Feeds        map[string]feedStatus `json:"feeds"`
	Channels     int                   `json:"channels"`
	RelayClients int                   `json:"relay_clients"`
}

func (h *Handlers) health() health {
	res := health{
		Status:       "ok",
		Uptime:       time.Since(h.started).Truncate(time.Second).String(),
		Feeds:        make(map[string]feedStatus, len(h.feeds)),
		Channels:     len(h.channels.Channels()),
		RelayClients: h.relay.Clients(),
	}

	for name, f := range h.feeds {
		st := feedStatus{Connected: f.Connected(), QueueDepth: f.QueueLen()}
		if s, ok := f.(interface{ SessionID() string }); ok {
			st.SessionID = s.SessionID()
		}
		if !st.Connected {
			res.Status = "degraded"
		}
		res.Feeds[name] = st
	}
	return res
}

// Healthz answers 503 while any feed is disconnected.
func (h *Handlers) Healthz(c *gin.Context) {
	res := h.health()

	code := http.StatusOK
	if res.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, res)
}

func (h *Handlers) ListChannels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"channels": h.channels.Channels()})
}

func (h *Handlers) JoinChannel(c *gin.Context) {
	login := strings.ToLower(c.Param("login"))
	isMod := c.Query("mod") == "true"

	if err := h.channels.JoinByLogin(c.Request.Context(), login, isMod); err != nil {
		code := http.StatusBadGateway
		if errors.Is(err, api.ErrNotFound) {
			code = http.StatusNotFound
		}
		h.log.Warn("Failed to join channel", slog.String("channel", login), slog.Any("error", err))
		c.JSON(code, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"channel": login, "is_mod": isMod})
}

func (h *Handlers) LeaveChannel(c *gin.Context) {
	login := strings.ToLower(c.Param("login"))

	if err := h.channels.Leave(c.Request.Context(), login); err != nil {
		h.log.Warn("Failed to leave channel", slog.String("channel", login), slog.Any("error", err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) Emotes(c *gin.Context) {
	if h.emotes == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "7tv is disabled"})
		return
	}

	login := strings.ToLower(c.Param("login"))
	res := gin.H{"channel": login, "emotes": h.emotes.Emotes(login)}

	// ?text= проверяет сообщение против набора канала.
	if text, ok := c.GetQuery("text"); ok {
		words := strings.Fields(text)
		res["emote_count"] = h.emotes.CountEmotes(login, words)
		res["emote_only"] = h.emotes.IsOnlyEmotes(login, words)
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handlers) Events(c *gin.Context) {
	h.relay.ServeWS(c.Writer, c.Request)
}

func (h *Handlers) feedNames() []string {
	names := make([]string, 0, len(h.feeds))
	for name := range h.feeds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
