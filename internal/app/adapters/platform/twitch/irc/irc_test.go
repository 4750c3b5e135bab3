package irc

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyperion/pkg/logger"
)

type fakeServer struct {
	ln    net.Listener
	conns chan *fakeConn
}

type fakeConn struct {
	net.Conn
	r *bufio.Reader
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	s := &fakeServer{ln: ln, conns: make(chan *fakeConn, 4)}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			s.conns <- &fakeConn{Conn: conn, r: bufio.NewReader(conn)}
		}
	}()
	return s
}

func (s *fakeServer) accept(t *testing.T) *fakeConn {
	t.Helper()

	select {
	case c := <-s.conns:
		t.Cleanup(func() { _ = c.Close() })
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("client did not connect")
		return nil
	}
}

func (f *fakeConn) expect(t *testing.T, want string) {
	t.Helper()

	_ = f.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := f.r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, want, strings.TrimRight(line, "\r\n"))
}

func (f *fakeConn) send(t *testing.T, line string) {
	t.Helper()

	_, err := io.WriteString(f, line+"\r\n")
	require.NoError(t, err)
}

func testLogger() logger.Logger {
	return logger.New(logger.Options{Level: "error", Stdout: io.Discard})
}

func nextOf[T ServerMessage](t *testing.T, ch <-chan ServerMessage) T {
	t.Helper()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case msg, ok := <-ch:
			require.True(t, ok, "message stream closed")
			if v, ok := msg.(T); ok {
				return v
			}
		case <-timeout:
			var zero T
			t.Fatalf("no %T received", zero)
			return zero
		}
	}
}

func newTestClient(t *testing.T, srv *fakeServer) *Client {
	t.Helper()

	return New(testLogger(), Options{
		Addr:    srv.ln.Addr().String(),
		Login:   "Bot",
		OAuth:   "oauth:tok",
		BackOff: &backoff.ZeroBackOff{},
	})
}

func expectHandshake(t *testing.T, conn *fakeConn) {
	t.Helper()

	conn.expect(t, "CAP REQ :twitch.tv/tags twitch.tv/commands twitch.tv/membership")
	conn.expect(t, "PASS oauth:tok")
	conn.expect(t, "NICK bot")
}

func TestClientSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := newFakeServer(t)
	c := newTestClient(t, srv)

	require.NoError(t, c.Join(ctx, "#Forsen"))
	assert.Equal(t, []string{"forsen"}, c.Channels())

	c.Connect(ctx)

	conn := srv.accept(t)
	expectHandshake(t, conn)
	conn.expect(t, "JOIN #forsen")

	conn.send(t, ":tmi.twitch.tv 001 bot :Welcome, GLHF!")
	assert.Eventually(t, c.Connected, 2*time.Second, 10*time.Millisecond)

	conn.send(t, ":bot!bot@bot.tmi.twitch.tv JOIN #forsen")
	assert.True(t, c.WaitJoined(ctx, "forsen", 2*time.Second))
	// already joined on this connection
	assert.True(t, c.WaitJoined(ctx, "forsen", time.Millisecond))

	conn.send(t, "PING :tmi.twitch.tv")
	conn.expect(t, "PONG tmi.twitch.tv")

	conn.send(t, "@room-id=1 :a!a@a PRIVMSG forsen :dropped")
	conn.send(t, privmsg("", "hello"))

	msg := nextOf[*PrivmsgMessage](t, c.Messages())
	assert.Equal(t, "hello", msg.MessageText)
	assert.Equal(t, "forsen", msg.ChannelLogin)

	require.NoError(t, c.Join(ctx, "pajlada"))
	conn.expect(t, "JOIN #pajlada")

	require.NoError(t, c.Part("pajlada"))
	conn.expect(t, "PART #pajlada")
	assert.Equal(t, []string{"forsen"}, c.Channels())

	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-c.Messages():
			if !ok {
				assert.False(t, c.Connected())
				return
			}
		case <-deadline:
			t.Fatal("message stream was not closed after cancel")
		}
	}
}

func TestClientReconnectRejoins(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := newFakeServer(t)
	c := newTestClient(t, srv)
	require.NoError(t, c.Join(ctx, "forsen"))
	c.Connect(ctx)

	conn := srv.accept(t)
	expectHandshake(t, conn)
	conn.expect(t, "JOIN #forsen")

	conn.send(t, ":tmi.twitch.tv RECONNECT")
	nextOf[*ReconnectMessage](t, c.Messages())

	again := srv.accept(t)
	expectHandshake(t, again)
	again.expect(t, "JOIN #forsen")
}

func TestClientWaitJoined(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := newFakeServer(t)
	c := newTestClient(t, srv)
	c.Connect(ctx)

	conn := srv.accept(t)
	expectHandshake(t, conn)

	joined := make(chan bool, 1)
	go func() { joined <- c.WaitJoined(ctx, "forsen", 2*time.Second) }()

	assert.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.waiters["forsen"]) == 1
	}, 2*time.Second, 5*time.Millisecond)

	conn.send(t, ":someone!someone@someone.tmi.twitch.tv JOIN #forsen")
	conn.send(t, ":bot!bot@bot.tmi.twitch.tv JOIN #forsen")

	select {
	case ok := <-joined:
		assert.True(t, ok)
	case <-time.After(3 * time.Second):
		t.Fatal("WaitJoined did not return")
	}

	assert.False(t, c.WaitJoined(ctx, "pajlada", 20*time.Millisecond))

	c.mu.Lock()
	assert.Empty(t, c.waiters)
	c.mu.Unlock()
}

func TestAnonymousLogin(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := newFakeServer(t)
	c := New(testLogger(), Options{Addr: srv.ln.Addr().String(), BackOff: &backoff.ZeroBackOff{}})
	assert.True(t, strings.HasPrefix(c.nick, "justinfan"))

	c.Connect(ctx)

	conn := srv.accept(t)
	conn.expect(t, "CAP REQ :twitch.tv/tags twitch.tv/commands twitch.tv/membership")
	conn.expect(t, "NICK "+c.nick)
}

func TestReplay(t *testing.T) {
	c := New(testLogger(), Options{Addr: "127.0.0.1:1"})

	n := c.Replay([]string{
		privmsg("historical=1", "old message"),
		"",
		"PRIVMSG nochannel :broken",
		"@historical=1;room-id=1;tmi-sent-ts=1 :tmi.twitch.tv CLEARCHAT #forsen",
	})
	assert.Equal(t, 2, n)

	first := nextOf[*PrivmsgMessage](t, c.Messages())
	assert.True(t, first.IsRecent)
	assert.Equal(t, "old message", first.MessageText)

	second := nextOf[*ClearChatMessage](t, c.Messages())
	assert.True(t, second.IsRecent)
}

func TestWriteWithoutConnection(t *testing.T) {
	c := New(testLogger(), Options{Addr: "127.0.0.1:1"})

	assert.ErrorIs(t, c.write("PING"), ErrNotConnected)
	assert.NoError(t, c.Join(context.Background(), "forsen"))
	assert.NoError(t, c.Part("forsen"))
	assert.Empty(t, c.Channels())
}
