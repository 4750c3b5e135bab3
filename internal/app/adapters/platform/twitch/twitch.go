package twitch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"hyperion/internal/app/ports"
	"hyperion/pkg/logger"
)

const defaultJoinTimeout = 10 * time.Second

type JoinRequest struct {
	ID    string `json:"id"`
	Login string `json:"login"`
	IsMod bool   `json:"is_mod"`
}

type Options struct {
	// UserID is the token owner, used as user_id and moderator_user_id.
	UserID string

	HistoryLimit    int
	SevenTVPresence bool
	JoinTimeout     time.Duration
}

// Twitch joins and leaves channels across every feed: IRC, EventSub and,
// when configured, 7TV.
type Twitch struct {
	log  logger.Logger
	opts Options

	api      ports.APIPort
	irc      ports.IRCPort
	eventSub ports.EventSubPort
	sevenTV  ports.SevenTVPort

	mu       sync.Mutex
	channels map[string]JoinRequest
}

// New wires the feeds together. sevenTV may be nil.
func New(log logger.Logger, api ports.APIPort, irc ports.IRCPort, eventSub ports.EventSubPort, sevenTV ports.SevenTVPort, opts Options) *Twitch {
	if opts.JoinTimeout <= 0 {
		opts.JoinTimeout = defaultJoinTimeout
	}

	return &Twitch{
		log:      log,
		opts:     opts,
		api:      api,
		irc:      irc,
		eventSub: eventSub,
		sevenTV:  sevenTV,
		channels: make(map[string]JoinRequest),
	}
}

func (t *Twitch) API() ports.APIPort {
	return t.api
}

func (t *Twitch) IRC() ports.IRCPort {
	return t.irc
}

// Channels returns the joined channels sorted by login.
func (t *Twitch) Channels() []JoinRequest {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]JoinRequest, 0, len(t.channels))
	for _, ch := range t.channels {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Login < out[j].Login })
	return out
}

// JoinByLogin resolves the broadcaster id through Helix and joins.
func (t *Twitch) JoinByLogin(ctx context.Context, login string, isMod bool) error {
	user, err := t.api.GetUserByLogin(ctx, login)
	if err != nil {
		return err
	}
	return t.Join(ctx, JoinRequest{ID: user.ID, Login: user.Login, IsMod: isMod})
}

// Join replays recent history, joins the IRC channel and subscribes to the
// channel's EventSub and 7TV events. Only the IRC join is fatal, everything
// else is logged and skipped.
func (t *Twitch) Join(ctx context.Context, req JoinRequest) error {
	req.Login = normalizeLogin(req.Login)
	if req.Login == "" || req.ID == "" {
		return errors.New("channel login and id are required")
	}

	t.mu.Lock()
	t.channels[req.Login] = req
	t.mu.Unlock()

	// История до JOIN, чтобы она шла в очереди раньше живых сообщений.
	t.replayHistory(ctx, req.Login)

	if err := t.irc.Join(ctx, req.Login); err != nil {
		t.mu.Lock()
		delete(t.channels, req.Login)
		t.mu.Unlock()
		return fmt.Errorf("join #%s: %w", req.Login, err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		t.subscribeEventSub(ctx, req)
	}()
	go func() {
		defer wg.Done()
		t.subscribeSevenTV(ctx, req)
	}()

	if t.irc.Connected() && !t.irc.WaitJoined(ctx, req.Login, t.opts.JoinTimeout) {
		t.log.Warn("JOIN was not confirmed in time", slog.String("channel", req.Login))
	}
	wg.Wait()

	t.log.Info("Joined channel", slog.String("channel", req.Login), slog.Bool("is_mod", req.IsMod))
	return nil
}

// Leave drops the channel's EventSub and 7TV subscriptions and parts IRC.
func (t *Twitch) Leave(ctx context.Context, login string) error {
	login = normalizeLogin(login)

	t.mu.Lock()
	_, ok := t.channels[login]
	delete(t.channels, login)
	t.mu.Unlock()

	t.eventSub.UnsubscribeAll(ctx, login)
	if t.sevenTV != nil {
		t.sevenTV.UnsubscribeAll(login)
	}
	if err := t.irc.Part(login); err != nil {
		return fmt.Errorf("part #%s: %w", login, err)
	}

	if ok {
		t.log.Info("Left channel", slog.String("channel", login))
	}
	return nil
}

func (t *Twitch) replayHistory(ctx context.Context, login string) {
	if t.opts.HistoryLimit <= 0 {
		return
	}

	lines, err := t.api.GetRecentMessages(ctx, login, t.opts.HistoryLimit)
	if err != nil {
		t.log.Warn("Failed to load recent messages", slog.String("channel", login), slog.Any("error", err))
		return
	}

	n := t.irc.Replay(lines)
	t.log.Debug("Replayed recent messages", slog.String("channel", login), slog.Int("count", n), slog.Int("total", len(lines)))
}

func (t *Twitch) subscribeEventSub(ctx context.Context, req JoinRequest) {
	wctx, cancel := context.WithTimeout(ctx, t.opts.JoinTimeout)
	defer cancel()

	if _, err := t.eventSub.WaitSession(wctx); err != nil {
		t.log.Warn("No EventSub session, channel events skipped", slog.String("channel", req.Login), slog.Any("error", err))
		return
	}

	t.eventSub.SubscribeAll(ctx, req.Login, eventSubRequests(req, t.opts.UserID))
}

func (t *Twitch) subscribeSevenTV(ctx context.Context, req JoinRequest) {
	if t.sevenTV == nil {
		return
	}

	cond := map[string]string{"ctx": "channel", "platform": "TWITCH", "id": req.ID}
	for _, kind := range []string{"cosmetic.create", "entitlement.create"} {
		if err := t.sevenTV.Subscribe(req.Login, kind, cond); err != nil {
			t.log.Error("Failed to subscribe to 7TV event", err, slog.String("channel", req.Login), slog.String("event", kind))
		}
	}

	user, err := t.sevenTV.GetUser(ctx, req.ID)
	if err != nil {
		t.log.Debug("Channel has no 7TV account", slog.String("channel", req.Login), slog.Any("error", err))
	} else if user.EmoteSet.ID != "" {
		t.sevenTV.TrackEmoteSet(req.Login, user.EmoteSet)
		if err := t.sevenTV.Subscribe(req.Login, "emote_set.*", map[string]string{"object_id": user.EmoteSet.ID}); err != nil {
			t.log.Error("Failed to subscribe to 7TV emote set", err, slog.String("channel", req.Login))
		}
	}

	if t.opts.SevenTVPresence {
		t.sendPresence(ctx, req)
	}
}

func (t *Twitch) sendPresence(ctx context.Context, req JoinRequest) {
	if t.opts.UserID == "" {
		return
	}

	self, err := t.sevenTV.GetUser(ctx, t.opts.UserID)
	if err != nil {
		t.log.Debug("No 7TV account for the token owner, presence skipped", slog.Any("error", err))
		return
	}
	if err := t.sevenTV.SendPresence(ctx, self.User.ID, req.ID); err != nil {
		t.log.Warn("Failed to send 7TV presence", slog.String("channel", req.Login), slog.Any("error", err))
	}
}

// eventSubRequests lists what a channel is subscribed to. Moderator kinds need
// the token owner to moderate the channel.
func eventSubRequests(req JoinRequest, userID string) []ports.SubscriptionRequest {
	broadcaster := map[string]string{"broadcaster_user_id": req.ID}
	user := map[string]string{"broadcaster_user_id": req.ID, "user_id": userID}
	moderator := map[string]string{"broadcaster_user_id": req.ID, "moderator_user_id": userID}

	reqs := []ports.SubscriptionRequest{
		{Kind: "channel.chat.user_message_hold", Condition: user},
		{Kind: "channel.chat.user_message_update", Condition: user},
		{Kind: "channel.subscription.end", Condition: broadcaster},
		{Kind: "channel.update", Condition: broadcaster},
		{Kind: "stream.offline", Condition: broadcaster},
		{Kind: "stream.online", Condition: broadcaster},
	}
	if !req.IsMod {
		return reqs
	}

	for _, kind := range []string{
		"automod.message.hold",
		"automod.message.update",
		"channel.moderate",
		"channel.suspicious_user.message",
		"channel.suspicious_user.update",
		"channel.unban_request.create",
		"channel.unban_request.resolve",
		"channel.warning.acknowledge",
	} {
		reqs = append(reqs, ports.SubscriptionRequest{Kind: kind, Condition: moderator})
	}
	return reqs
}

func normalizeLogin(login string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(login, "#")))
}
