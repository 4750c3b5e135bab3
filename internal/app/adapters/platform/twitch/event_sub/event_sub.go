package event_sub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"

	"hyperion/internal/app/adapters/metrics"
	"hyperion/internal/app/domain/subscription"
	"hyperion/internal/app/ports"
	"hyperion/pkg/logger"
	"hyperion/pkg/queue"
)

var (
	ErrNoSession = errors.New("eventsub: no session")
	ErrHandoff   = errors.New("eventsub: reconnect handoff failed")

	errDial = errors.New("dial")
)

const (
	defaultKeepalive = 10 * time.Second
	keepaliveGrace   = 5 * time.Second
	handshakeTimeout = 10 * time.Second
)

type Options struct {
	URL string

	// Login and UserID identify the token owner. The mandatory user.update
	// subscription is keyed under Login.
	Login  string
	UserID string

	API     ports.EventSubAPIPort
	Dialer  *websocket.Dialer
	BackOff backoff.BackOff

	// MaxConnectFailures stops the loop after that many dials in a row have
	// failed. Zero retries forever.
	MaxConnectFailures int
}

// EventSub keeps one websocket session to Twitch EventSub alive and the
// registered subscriptions attached to it.
type EventSub struct {
	log  logger.Logger
	opts Options
	subs *subscription.Registry[Subscription]
	out  *queue.Unbounded[Notification]

	mu           sync.Mutex
	sessionID    string
	reconnecting bool
	ready        chan struct{} // closed while a session is established

	connected atomic.Bool
	keepalive atomic.Int64
}

var _ ports.EventSubPort = (*EventSub)(nil)

func New(log logger.Logger, opts Options) *EventSub {
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	}
	if opts.BackOff == nil {
		opts.BackOff = backoff.NewExponentialBackOff()
	}

	es := &EventSub{
		log:  log,
		opts: opts,
		subs: subscription.NewRegistry[Subscription](),
		out:  queue.NewUnbounded[Notification](),

		ready: make(chan struct{}),
	}
	es.keepalive.Store(int64(defaultKeepalive))

	return es
}

// Connect starts the reconnect loop in the background. Cancelling ctx closes
// the socket, ends the loop and closes Events.
func (es *EventSub) Connect(ctx context.Context) {
	go es.runEventLoop(ctx)
}

func (es *EventSub) Events() <-chan Notification {
	return es.out.Out()
}

func (es *EventSub) Connected() bool {
	return es.connected.Load()
}

func (es *EventSub) SessionID() string {
	es.mu.Lock()
	defer es.mu.Unlock()

	return es.sessionID
}

// WaitSession blocks until a session is established and returns its id.
func (es *EventSub) WaitSession(ctx context.Context) (string, error) {
	es.mu.Lock()
	ready := es.ready
	es.mu.Unlock()

	select {
	case <-ready:
		return es.SessionID(), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (es *EventSub) QueueLen() int {
	return es.out.Len()
}

func (es *EventSub) runEventLoop(ctx context.Context) {
	defer es.out.Close()

	var failures int
	for {
		err := es.connectAndHandleEvents(ctx)
		es.setDisconnected()
		if ctx.Err() != nil {
			es.log.Info("EventSub client stopped")
			return
		}

		reason := "error"
		switch {
		case errors.Is(err, errDial):
			failures++
			reason = "dial"
		case errors.Is(err, ErrHandoff):
			failures = 0
			reason = "handoff"
		default:
			failures = 0
		}

		if es.opts.MaxConnectFailures > 0 && failures >= es.opts.MaxConnectFailures {
			es.log.Error("Giving up on EventSub after repeated connect failures", err, slog.Int("failures", failures))
			return
		}
		metrics.Reconnects.WithLabelValues(metrics.FeedEventSub, reason).Inc()

		wait := es.opts.BackOff.NextBackOff()
		es.log.Warn("Websocket connection lost, retrying...", slog.Any("error", err), slog.Duration("backoff", wait))

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func (es *EventSub) connectAndHandleEvents(ctx context.Context) error {
	ws, err := es.dial(ctx, es.opts.URL)
	if err != nil {
		return fmt.Errorf("%w: %w", errDial, err)
	}

	es.connected.Store(true)
	metrics.FeedConnected.WithLabelValues(metrics.FeedEventSub).Set(1)
	es.log.Info("Connected to EventSub WebSocket")

	return es.readMessages(ctx, ws)
}

func (es *EventSub) dial(ctx context.Context, url string) (*websocket.Conn, error) {
	ws, resp, err := es.opts.Dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			if cerr := resp.Body.Close(); cerr != nil {
				es.log.Error("Failed to close response body", cerr)
			}
		}
		return nil, fmt.Errorf("websocket dial %s: %w", url, err)
	}
	return ws, nil
}

// readMessages serves frames in arrival order. A reconnect handoff swaps ws
// for the new connection and keeps reading from it.
func (es *EventSub) readMessages(ctx context.Context, ws *websocket.Conn) error {
	first := ws
	stop := context.AfterFunc(ctx, func() { _ = first.Close() })
	defer func() {
		stop()
		_ = ws.Close()
	}()

	for {
		_ = ws.SetReadDeadline(time.Now().Add(es.readTimeout()))

		_, data, err := ws.ReadMessage()
		if err != nil {
			return err
		}

		next, err := es.handleMessage(ctx, data)
		if err != nil {
			return err
		}
		if next != nil {
			stop()
			_ = ws.Close()

			ws = next
			stop = context.AfterFunc(ctx, func() { _ = next.Close() })
		}
	}
}

func (es *EventSub) handleMessage(ctx context.Context, data []byte) (*websocket.Conn, error) {
	var msg EventSubMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode EventSub message: %w", err)
	}
	metrics.Frames.WithLabelValues(metrics.FeedEventSub, msg.Metadata.MessageType).Inc()

	switch msg.Metadata.MessageType {
	case messageWelcome:
		var payload SessionPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return nil, fmt.Errorf("decode session_welcome payload: %w", err)
		}
		es.handleWelcome(ctx, payload.Session)

	case messageKeepalive:
		es.log.Trace("Received session_keepalive on EventSub")

	case messageNotification:
		n := Notification{Payload: msg.Payload}
		if err := json.Unmarshal(msg.Payload, &n); err != nil {
			es.log.Warn("Failed to decode EventSub notification", slog.Any("error", err))
			return nil, nil
		}
		n.MessageID, n.Timestamp = msg.Metadata.MessageID, msg.Metadata.MessageTimestamp

		es.logNotification(n)
		es.out.Push(n)
		metrics.QueueDepth.WithLabelValues(metrics.FeedEventSub).Set(float64(es.out.Len()))

	case messageReconnect:
		var payload SessionPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return nil, fmt.Errorf("decode session_reconnect payload: %w", err)
		}
		if payload.Session.ReconnectURL == nil || *payload.Session.ReconnectURL == "" {
			return nil, fmt.Errorf("%w: reconnect without url", ErrHandoff)
		}
		es.log.Debug("Received session_reconnect on EventSub")
		return es.handoff(ctx, *payload.Session.ReconnectURL)

	case messageRevocation:
		var payload RevocationPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			es.log.Warn("Failed to decode revocation payload", slog.Any("error", err))
			return nil, nil
		}
		es.revoke(payload.Subscription)

	default:
		es.log.Debug("Unknown EventSub message type", slog.String("type", msg.Metadata.MessageType))
	}

	return nil, nil
}

// handleWelcome stores the new session. A welcome that answers a reconnect
// handoff keeps the subscriptions Twitch already moved over; any other
// welcome starts a fresh session, so everything tracked is subscribed again.
func (es *EventSub) handleWelcome(ctx context.Context, session Session) {
	es.mu.Lock()
	handoff := es.reconnecting
	es.reconnecting = false

	// Drain before the session becomes visible: anything subscribed from
	// here on belongs to the new session and must not be restored twice.
	var prior []subscription.Entry[Subscription]
	if !handoff {
		prior = es.subs.SnapshotAndDrain()
	}
	es.sessionID = session.ID
	select {
	case <-es.ready:
	default:
		close(es.ready)
	}
	es.mu.Unlock()

	if session.KeepaliveTimeoutSeconds > 0 {
		es.keepalive.Store(int64(time.Duration(session.KeepaliveTimeoutSeconds) * time.Second))
	}
	es.opts.BackOff.Reset()

	es.log.Info("EventSub session established", slog.String("session_id", session.ID), slog.Bool("handoff", handoff))
	if handoff {
		return
	}

	go es.restore(ctx, prior)
}

// handoff opens the connection Twitch asked us to move to. Its first frame
// must be a welcome, anything else aborts.
func (es *EventSub) handoff(ctx context.Context, url string) (*websocket.Conn, error) {
	es.setReconnecting(true)

	next, err := es.dial(ctx, url)
	if err != nil {
		es.setReconnecting(false)
		return nil, fmt.Errorf("%w: %w", ErrHandoff, err)
	}

	fail := func(err error) (*websocket.Conn, error) {
		es.setReconnecting(false)
		_ = next.Close()
		return nil, fmt.Errorf("%w: %w", ErrHandoff, err)
	}

	stop := context.AfterFunc(ctx, func() { _ = next.Close() })
	defer stop()

	_ = next.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, data, err := next.ReadMessage()
	if err != nil {
		return fail(err)
	}

	var msg EventSubMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fail(err)
	}
	if msg.Metadata.MessageType != messageWelcome {
		return fail(fmt.Errorf("first frame was %q", msg.Metadata.MessageType))
	}

	var payload SessionPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fail(err)
	}
	metrics.Frames.WithLabelValues(metrics.FeedEventSub, messageWelcome).Inc()
	es.handleWelcome(ctx, payload.Session)

	return next, nil
}

func (es *EventSub) revoke(sub ports.EventSubSubscription) {
	removed := es.subs.RemoveFunc(func(_ string, v Subscription) bool {
		return v.ID == sub.ID
	})
	es.observeSubscriptions()

	for _, e := range removed {
		es.log.Warn("EventSub subscription revoked", slog.String("key", e.Key), slog.String("status", sub.Status))
	}
}

func (es *EventSub) readTimeout() time.Duration {
	return time.Duration(es.keepalive.Load()) + keepaliveGrace
}

func (es *EventSub) setReconnecting(v bool) {
	es.mu.Lock()
	es.reconnecting = v
	es.mu.Unlock()
}

func (es *EventSub) setDisconnected() {
	es.mu.Lock()
	es.sessionID = ""
	es.reconnecting = false
	select {
	case <-es.ready:
		es.ready = make(chan struct{})
	default:
	}
	es.mu.Unlock()

	es.connected.Store(false)
	metrics.FeedConnected.WithLabelValues(metrics.FeedEventSub).Set(0)
}

func (es *EventSub) observeSubscriptions() {
	metrics.Subscriptions.WithLabelValues(metrics.FeedEventSub).Set(float64(es.subs.Len()))
}
