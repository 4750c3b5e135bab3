package irc

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"

	"hyperion/internal/app/adapters/metrics"
	"hyperion/pkg/logger"
	"hyperion/pkg/queue"
)

var (
	ErrNotConnected = errors.New("irc: not connected")
	errReconnect    = errors.New("server requested reconnect")
)

const (
	writeTimeout = 10 * time.Second
	// Twitch pings roughly every five minutes.
	defaultReadTimeout = 6 * time.Minute
)

// Dialer is satisfied by *net.Dialer and by proxy dialers from x/net/proxy.
type Dialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

type Options struct {
	Addr string
	TLS  bool

	// Login and OAuth authenticate the connection. An empty OAuth connects
	// anonymously as a justinfan user, which can read but not write.
	Login string
	OAuth string

	Dialer      Dialer
	BackOff     backoff.BackOff
	ReadTimeout time.Duration

	// JoinLimit paces JOIN commands, defaults to 20 per 10 seconds.
	JoinLimit rate.Limit
	JoinBurst int
}

// Client is a line protocol connection to Twitch chat. Every received line
// is parsed and pushed to Messages; lines that fail to parse are logged and
// dropped.
type Client struct {
	log   logger.Logger
	opts  Options
	nick  string
	joins *rate.Limiter
	out   *queue.Unbounded[ServerMessage]

	mu       sync.Mutex
	conn     net.Conn
	channels map[string]struct{}
	joined   map[string]struct{}
	waiters  map[string][]chan struct{}

	wmu       sync.Mutex
	connected atomic.Bool
}

func New(log logger.Logger, opts Options) *Client {
	if opts.Dialer == nil {
		opts.Dialer = &net.Dialer{Timeout: 10 * time.Second}
	}
	if opts.BackOff == nil {
		opts.BackOff = backoff.NewExponentialBackOff()
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = defaultReadTimeout
	}
	if opts.JoinLimit == 0 {
		opts.JoinLimit = rate.Every(10 * time.Second / 20)
		opts.JoinBurst = 20
	}
	if opts.JoinBurst <= 0 {
		opts.JoinBurst = 1
	}

	nick := strings.ToLower(opts.Login)
	if opts.OAuth == "" {
		nick = fmt.Sprintf("justinfan%d", 10000+rand.IntN(89999))
	}

	return &Client{
		log:      log,
		opts:     opts,
		nick:     nick,
		joins:    rate.NewLimiter(opts.JoinLimit, opts.JoinBurst),
		out:      queue.NewUnbounded[ServerMessage](),
		channels: make(map[string]struct{}),
		joined:   make(map[string]struct{}),
		waiters:  make(map[string][]chan struct{}),
	}
}

// Connect starts the reconnect loop and returns immediately. The loop ends,
// and Messages is closed, when ctx is cancelled.
func (c *Client) Connect(ctx context.Context) {
	go c.run(ctx)
}

func (c *Client) Messages() <-chan ServerMessage {
	return c.out.Out()
}

// Inject pushes a message that did not arrive on the socket, such as a
// replayed history line, into the same stream.
func (c *Client) Inject(msg ServerMessage) bool {
	ok := c.out.Push(msg)
	metrics.QueueDepth.WithLabelValues(metrics.FeedIRC).Set(float64(c.out.Len()))
	return ok
}

// Replay parses history lines and injects the ones that parse. It returns how
// many were accepted.
func (c *Client) Replay(lines []string) int {
	var n int
	for _, line := range lines {
		msg, err := ParseLine(line)
		if err != nil {
			c.log.Debug("Skipped history line", slog.String("line", line), slog.Any("error", err))
			continue
		}
		if c.Inject(msg) {
			n++
		}
	}
	return n
}

func (c *Client) Connected() bool {
	return c.connected.Load()
}

func (c *Client) QueueLen() int {
	return c.out.Len()
}

// Channels returns the tracked channel logins, sorted.
func (c *Client) Channels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

// Join tracks the channel and sends JOIN if a connection is up. Tracked
// channels are joined again after every reconnect.
func (c *Client) Join(ctx context.Context, login string) error {
	login = normalizeChannel(login)

	c.mu.Lock()
	_, had := c.channels[login]
	c.channels[login] = struct{}{}
	conn := c.conn
	c.mu.Unlock()

	if had || conn == nil {
		return nil
	}
	if err := c.joins.Wait(ctx); err != nil {
		return err
	}
	return c.write("JOIN #" + login)
}

func (c *Client) Part(login string) error {
	login = normalizeChannel(login)

	c.mu.Lock()
	_, had := c.channels[login]
	delete(c.channels, login)
	delete(c.joined, login)
	conn := c.conn
	c.mu.Unlock()

	if !had || conn == nil {
		return nil
	}
	return c.write("PART #" + login)
}

func (c *Client) run(ctx context.Context) {
	defer c.out.Close()

	for {
		err := c.connectAndListen(ctx)
		c.setConn(nil)
		if ctx.Err() != nil {
			c.log.Info("IRC client stopped")
			return
		}

		reason := "error"
		if errors.Is(err, errReconnect) {
			reason = "server"
		}
		metrics.Reconnects.WithLabelValues(metrics.FeedIRC, reason).Inc()

		wait := c.opts.BackOff.NextBackOff()
		c.log.Warn("IRC connection lost, retrying...", slog.Any("error", err), slog.Duration("backoff", wait))

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func (c *Client) connectAndListen(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.opts.Addr, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	handshake := []string{"CAP REQ :twitch.tv/tags twitch.tv/commands twitch.tv/membership"}
	if c.opts.OAuth != "" {
		handshake = append(handshake, "PASS oauth:"+strings.TrimPrefix(c.opts.OAuth, "oauth:"))
	}
	handshake = append(handshake, "NICK "+c.nick)
	for _, line := range handshake {
		if err := writeLine(conn, line); err != nil {
			return fmt.Errorf("handshake: %w", err)
		}
	}

	c.setConn(conn)
	go c.rejoin(ctx, c.Channels())

	return c.listen(conn)
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	conn, err := c.opts.Dialer.DialContext(ctx, "tcp", c.opts.Addr)
	if err != nil {
		return nil, err
	}
	if !c.opts.TLS {
		return conn, nil
	}

	host, _, err := net.SplitHostPort(c.opts.Addr)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	tlsConn := tls.Client(conn, &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12})
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return tlsConn, nil
}

func (c *Client) rejoin(ctx context.Context, channels []string) {
	for _, ch := range channels {
		if err := c.joins.Wait(ctx); err != nil {
			return
		}
		if err := c.write("JOIN #" + ch); err != nil {
			c.log.Warn("Failed to rejoin channel", slog.String("channel", ch), slog.Any("error", err))
			return
		}
	}
}

func (c *Client) listen(conn net.Conn) error {
	reader := bufio.NewReader(conn)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))

		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}

		if err := c.handleLine(line); err != nil {
			return err
		}
	}
}

func (c *Client) handleLine(line string) error {
	m, err := ParseMessage(line)
	if errors.Is(err, ErrEmptyLine) {
		return nil
	}
	if err != nil {
		metrics.ParseErrors.WithLabelValues("malformed_line").Inc()
		c.log.Warn("Dropped malformed IRC line", slog.String("line", line), slog.Any("error", err))
		return nil
	}

	msg, err := Parse(m)
	if err != nil {
		kind := "unknown"
		var pe *ParseError
		if errors.As(err, &pe) {
			kind = pe.Kind.String()
		}
		metrics.ParseErrors.WithLabelValues(kind).Inc()
		c.log.Warn("Dropped unparsable IRC line", slog.String("kind", kind), slog.Any("error", err))
		return nil
	}
	metrics.IRCMessages.WithLabelValues(m.Command).Inc()

	switch v := msg.(type) {
	case *PingMessage:
		pong := Message{Command: "PONG", Params: m.Params}
		if err := c.write(pong.String()); err != nil {
			return err
		}
	case *ReconnectMessage:
		c.Inject(msg)
		return errReconnect
	case *JoinMessage:
		if v.UserLogin == c.nick {
			c.notifyJoined(v.ChannelLogin)
		}
	case *NoticeMessage:
		if v.ChannelLogin == nil && isAuthFailure(v.MessageText) {
			c.log.Error("Login authentication to IRC failed", nil, slog.String("notice", v.MessageText))
		}
	case *GenericMessage:
		// RPL_WELCOME
		if m.Command == "001" {
			c.opts.BackOff.Reset()
			c.connected.Store(true)
			metrics.FeedConnected.WithLabelValues(metrics.FeedIRC).Set(1)
			c.log.Info("Connected to IRC chat Twitch", slog.String("nick", c.nick))
		}
	}

	c.Inject(msg)
	return nil
}

func isAuthFailure(text string) bool {
	return strings.Contains(text, "Login authentication failed") ||
		strings.Contains(text, "Improperly formatted auth")
}

func (c *Client) setConn(conn net.Conn) {
	c.mu.Lock()
	c.conn = conn
	if conn == nil {
		clear(c.joined)
	}
	c.mu.Unlock()

	if conn == nil {
		c.connected.Store(false)
		metrics.FeedConnected.WithLabelValues(metrics.FeedIRC).Set(0)
	}
}

func (c *Client) write(line string) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()

	return writeLine(conn, line)
}

func writeLine(conn net.Conn, line string) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err := io.WriteString(conn, line+"\r\n")
	return err
}

func normalizeChannel(login string) string {
	return strings.ToLower(strings.TrimPrefix(login, "#"))
}
