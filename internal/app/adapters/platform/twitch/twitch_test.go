package twitch

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyperion/internal/app/ports"
	"hyperion/pkg/logger"
)

type fakeAPI struct {
	history    []string
	historyErr error
	users      map[string]*ports.TwitchUser
}

func (f *fakeAPI) CreateEventSubSubscription(context.Context, ports.EventSubRequest) (*ports.EventSubSubscription, error) {
	return nil, errors.New("not used")
}

func (f *fakeAPI) DeleteEventSubSubscription(context.Context, string) error {
	return nil
}

func (f *fakeAPI) ValidateToken(context.Context) (*ports.TokenInfo, error) {
	return &ports.TokenInfo{}, nil
}

func (f *fakeAPI) GetUserByLogin(_ context.Context, login string) (*ports.TwitchUser, error) {
	if u, ok := f.users[login]; ok {
		return u, nil
	}
	return nil, errors.New("not found")
}

func (f *fakeAPI) GetRecentMessages(context.Context, string, int) ([]string, error) {
	return f.history, f.historyErr
}

type fakeIRC struct {
	mu       sync.Mutex
	calls    []string
	replayed []string
	joinErr  error
}

func (f *fakeIRC) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeIRC) Join(_ context.Context, login string) error {
	f.record("join:" + login)
	return f.joinErr
}

func (f *fakeIRC) Part(login string) error {
	f.record("part:" + login)
	return nil
}

func (f *fakeIRC) Replay(lines []string) int {
	f.record("replay")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replayed = append(f.replayed, lines...)
	return len(lines)
}

func (f *fakeIRC) WaitJoined(context.Context, string, time.Duration) bool { return true }

func (f *fakeIRC) Connected() bool { return true }

type fakeEventSub struct {
	mu           sync.Mutex
	noSession    bool
	subscribed   map[string][]ports.SubscriptionRequest
	unsubscribed []string
}

func (f *fakeEventSub) SubscribeAll(_ context.Context, channel string, reqs []ports.SubscriptionRequest) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribed == nil {
		f.subscribed = make(map[string][]ports.SubscriptionRequest)
	}
	f.subscribed[channel] = reqs
	return len(reqs)
}

func (f *fakeEventSub) UnsubscribeAll(_ context.Context, channel string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed = append(f.unsubscribed, channel)
}

func (f *fakeEventSub) WaitSession(ctx context.Context) (string, error) {
	if f.noSession {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return "session", nil
}

func (f *fakeEventSub) Connected() bool   { return !f.noSession }
func (f *fakeEventSub) SessionID() string { return "session" }

type sevenTVSub struct {
	channel, kind string
	cond          map[string]string
}

type fakeSevenTV struct {
	mu           sync.Mutex
	users        map[string]*ports.User
	subs         []sevenTVSub
	tracked      map[string]string
	presence     [][2]string
	unsubscribed []string
}

func (f *fakeSevenTV) Subscribe(channel, kind string, cond map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, sevenTVSub{channel: channel, kind: kind, cond: cond})
	return nil
}

func (f *fakeSevenTV) UnsubscribeAll(channel string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed = append(f.unsubscribed, channel)
}

func (f *fakeSevenTV) GetUser(_ context.Context, twitchID string) (*ports.User, error) {
	if u, ok := f.users[twitchID]; ok {
		return u, nil
	}
	return nil, errors.New("user not found")
}

func (f *fakeSevenTV) SendPresence(_ context.Context, userID, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presence = append(f.presence, [2]string{userID, channelID})
	return nil
}

func (f *fakeSevenTV) TrackEmoteSet(channel string, set ports.EmoteSet) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tracked == nil {
		f.tracked = make(map[string]string)
	}
	f.tracked[channel] = set.ID
}

func (f *fakeSevenTV) Connected() bool { return true }

func newTestLogger() logger.Logger {
	return logger.New(logger.Options{Level: "error", Stdout: io.Discard})
}

func kinds(reqs []ports.SubscriptionRequest) []string {
	out := make([]string, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.Kind)
	}
	return out
}

func TestJoin(t *testing.T) {
	api := &fakeAPI{history: []string{"@a PRIVMSG #streamer :hi", "@b PRIVMSG #streamer :yo"}}
	irc := &fakeIRC{}
	es := &fakeEventSub{}
	stv := &fakeSevenTV{users: map[string]*ports.User{
		"100": {ID: "100", EmoteSet: ports.EmoteSet{ID: "set-1"}},
		"1":   {ID: "1", User: ports.SevenTVUser{ID: "stv-self"}},
	}}

	tw := New(newTestLogger(), api, irc, es, stv, Options{UserID: "1", HistoryLimit: 50, SevenTVPresence: true})

	require.NoError(t, tw.Join(context.Background(), JoinRequest{ID: "100", Login: "#Streamer"}))

	assert.Equal(t, []string{"replay", "join:streamer"}, irc.calls)
	assert.Equal(t, api.history, irc.replayed)

	reqs := es.subscribed["streamer"]
	assert.Equal(t, []string{
		"channel.chat.user_message_hold",
		"channel.chat.user_message_update",
		"channel.subscription.end",
		"channel.update",
		"stream.offline",
		"stream.online",
	}, kinds(reqs))
	assert.Equal(t, map[string]string{"broadcaster_user_id": "100", "user_id": "1"}, reqs[0].Condition)
	assert.Equal(t, map[string]string{"broadcaster_user_id": "100"}, reqs[3].Condition)

	require.Len(t, stv.subs, 3)
	assert.Equal(t, "cosmetic.create", stv.subs[0].kind)
	assert.Equal(t, map[string]string{"ctx": "channel", "platform": "TWITCH", "id": "100"}, stv.subs[0].cond)
	assert.Equal(t, "entitlement.create", stv.subs[1].kind)
	assert.Equal(t, "emote_set.*", stv.subs[2].kind)
	assert.Equal(t, map[string]string{"object_id": "set-1"}, stv.subs[2].cond)
	assert.Equal(t, "set-1", stv.tracked["streamer"])
	assert.Equal(t, [][2]string{{"stv-self", "100"}}, stv.presence)

	assert.Equal(t, []JoinRequest{{ID: "100", Login: "streamer"}}, tw.Channels())
}

func TestJoinModeratorKinds(t *testing.T) {
	reqs := eventSubRequests(JoinRequest{ID: "100", Login: "streamer", IsMod: true}, "1")

	require.Len(t, reqs, 14)
	for _, r := range reqs[6:] {
		assert.Equal(t, map[string]string{"broadcaster_user_id": "100", "moderator_user_id": "1"}, r.Condition, r.Kind)
	}
	assert.Contains(t, kinds(reqs), "channel.moderate")
	assert.Contains(t, kinds(reqs), "automod.message.hold")
}

func TestJoinWithoutSevenTVAccount(t *testing.T) {
	irc := &fakeIRC{}
	stv := &fakeSevenTV{}

	tw := New(newTestLogger(), &fakeAPI{}, irc, &fakeEventSub{}, stv, Options{UserID: "1"})
	require.NoError(t, tw.Join(context.Background(), JoinRequest{ID: "100", Login: "streamer"}))

	// Без аккаунта 7TV остаются только подписки по каналу.
	require.Len(t, stv.subs, 2)
	assert.Empty(t, stv.tracked)
	assert.Empty(t, stv.presence)
	assert.Equal(t, []string{"join:streamer"}, irc.calls)
}

func TestJoinWithoutEventSubSession(t *testing.T) {
	es := &fakeEventSub{noSession: true}

	tw := New(newTestLogger(), &fakeAPI{}, &fakeIRC{}, es, nil, Options{UserID: "1", JoinTimeout: 50 * time.Millisecond})
	require.NoError(t, tw.Join(context.Background(), JoinRequest{ID: "100", Login: "streamer"}))

	assert.Empty(t, es.subscribed)
	assert.Len(t, tw.Channels(), 1)
}

func TestJoinErrors(t *testing.T) {
	tests := []struct {
		name string
		irc  *fakeIRC
		req  JoinRequest
	}{
		{name: "empty login", irc: &fakeIRC{}, req: JoinRequest{ID: "100"}},
		{name: "empty id", irc: &fakeIRC{}, req: JoinRequest{Login: "streamer"}},
		{name: "irc join fails", irc: &fakeIRC{joinErr: errors.New("closed")}, req: JoinRequest{ID: "100", Login: "streamer"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			es := &fakeEventSub{}
			tw := New(newTestLogger(), &fakeAPI{}, tt.irc, es, nil, Options{})

			assert.Error(t, tw.Join(context.Background(), tt.req))
			assert.Empty(t, tw.Channels())
			assert.Empty(t, es.subscribed)
		})
	}
}

func TestHistoryFailureDoesNotBlockJoin(t *testing.T) {
	irc := &fakeIRC{}
	api := &fakeAPI{historyErr: errors.New("history down")}

	tw := New(newTestLogger(), api, irc, &fakeEventSub{}, nil, Options{HistoryLimit: 10})
	require.NoError(t, tw.Join(context.Background(), JoinRequest{ID: "100", Login: "streamer"}))

	assert.Equal(t, []string{"join:streamer"}, irc.calls)
}

func TestJoinByLogin(t *testing.T) {
	api := &fakeAPI{users: map[string]*ports.TwitchUser{
		"streamer": {ID: "100", Login: "streamer"},
	}}
	es := &fakeEventSub{}

	tw := New(newTestLogger(), api, &fakeIRC{}, es, nil, Options{UserID: "1"})

	require.NoError(t, tw.JoinByLogin(context.Background(), "streamer", true))
	assert.Len(t, es.subscribed["streamer"], 14)

	assert.Error(t, tw.JoinByLogin(context.Background(), "nobody", false))
}

func TestLeave(t *testing.T) {
	irc := &fakeIRC{}
	es := &fakeEventSub{}
	stv := &fakeSevenTV{}

	tw := New(newTestLogger(), &fakeAPI{}, irc, es, stv, Options{})
	require.NoError(t, tw.Join(context.Background(), JoinRequest{ID: "100", Login: "streamer"}))

	require.NoError(t, tw.Leave(context.Background(), "#Streamer"))

	assert.Empty(t, tw.Channels())
	assert.Equal(t, []string{"streamer"}, es.unsubscribed)
	assert.Equal(t, []string{"streamer"}, stv.unsubscribed)
	assert.Equal(t, []string{"join:streamer", "part:streamer"}, irc.calls)
}
