package seventv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"

	"hyperion/internal/app/adapters/metrics"
	"hyperion/internal/app/domain/subscription"
	"hyperion/internal/app/infrastructure/storage"
	"hyperion/internal/app/ports"
	"hyperion/pkg/logger"
	"hyperion/pkg/queue"
)

var errEndOfStream = errors.New("end of stream")

const (
	defaultHeartbeat = 45 * time.Second
	writeTimeout     = 10 * time.Second
)

type Options struct {
	EventsURL string
	APIURL    string

	Dialer  *websocket.Dialer
	Client  *http.Client
	BackOff backoff.BackOff
}

// SevenTV keeps a session to the 7TV EventAPI and replays the tracked
// subscriptions across reconnects. It also wraps the few REST calls needed to
// join a channel.
type SevenTV struct {
	log  logger.Logger
	opts Options

	subs  *subscription.Registry[Subscription]
	cmds  *queue.Unbounded[ports.SevenTVMessage]
	out   *queue.Unbounded[Dispatch]
	users *storage.Cache[*ports.User]

	mu        sync.Mutex
	sessionID string

	// pending holds commands whose write failed. Only the session loop
	// touches it.
	pending []ports.SevenTVMessage

	connected atomic.Bool
	heartbeat atomic.Int64

	emotes *emoteIndex
}

var _ ports.SevenTVPort = (*SevenTV)(nil)

func New(log logger.Logger, opts Options) *SevenTV {
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.BackOff == nil {
		opts.BackOff = backoff.NewExponentialBackOff()
	}
	opts.APIURL = strings.TrimRight(opts.APIURL, "/")

	sv := &SevenTV{
		log:    log,
		opts:   opts,
		subs:   subscription.NewRegistry[Subscription](),
		cmds:   queue.NewUnbounded[ports.SevenTVMessage](),
		out:    queue.NewUnbounded[Dispatch](),
		users:  storage.NewCache[*ports.User](1024, 30*time.Minute),
		emotes: newEmoteIndex(),
	}
	sv.heartbeat.Store(int64(defaultHeartbeat))

	return sv
}

// Connect starts the reconnect loop in the background. The loop only ends
// when ctx is cancelled, then Events is closed.
func (sv *SevenTV) Connect(ctx context.Context) {
	go sv.runEventLoop(ctx)
}

func (sv *SevenTV) Events() <-chan Dispatch {
	return sv.out.Out()
}

func (sv *SevenTV) Connected() bool {
	return sv.connected.Load()
}

func (sv *SevenTV) SessionID() string {
	sv.mu.Lock()
	defer sv.mu.Unlock()

	return sv.sessionID
}

func (sv *SevenTV) QueueLen() int {
	return sv.out.Len()
}

// Subscribe tracks the subscription and queues the subscribe command. While
// disconnected the command is sent once a connection is up.
func (sv *SevenTV) Subscribe(channel, kind string, condition map[string]string) error {
	frame, err := command(opSubscribe, subscribePayload{Type: kind, Condition: condition})
	if err != nil {
		return err
	}

	sv.subs.Insert(subscription.Key(channel, kind), Subscription{Kind: kind, Condition: condition})
	sv.observeSubscriptions()
	sv.cmds.Push(frame)
	metrics.SubscribeRequests.WithLabelValues(metrics.FeedSevenTV, "subscribe", "queued").Inc()
	return nil
}

func (sv *SevenTV) Unsubscribe(channel, kind string) {
	sub, ok := sv.subs.Remove(subscription.Key(channel, kind))
	if !ok {
		return
	}
	sv.observeSubscriptions()
	sv.queueUnsubscribe(sub)
}

func (sv *SevenTV) UnsubscribeAll(channel string) {
	removed := sv.subs.RemoveAllWithPrefix(channel + ":")
	sv.observeSubscriptions()

	for _, e := range removed {
		sv.queueUnsubscribe(e.Value)
	}
	sv.emotes.forget(channel)
}

func (sv *SevenTV) queueUnsubscribe(sub Subscription) {
	frame, err := command(opUnsubscribe, subscribePayload{Type: sub.Kind, Condition: sub.Condition})
	if err != nil {
		sv.log.Error("Failed to encode unsubscribe", err, slog.String("event", sub.Kind))
		return
	}
	sv.cmds.Push(frame)
	metrics.SubscribeRequests.WithLabelValues(metrics.FeedSevenTV, "unsubscribe", "queued").Inc()
}

func (sv *SevenTV) runEventLoop(ctx context.Context) {
	defer func() {
		// Команды больше некому читать.
		sv.cmds.Stop()
		sv.out.Close()
	}()

	for {
		err := sv.connectAndHandleEvents(ctx)
		sv.setDisconnected()
		if ctx.Err() != nil {
			sv.log.Info("7TV client stopped")
			return
		}

		reason := "error"
		if errors.Is(err, errEndOfStream) {
			reason = "server"
		}
		metrics.Reconnects.WithLabelValues(metrics.FeedSevenTV, reason).Inc()

		wait := sv.opts.BackOff.NextBackOff()
		sv.log.Warn("7TV WS connection lost, retrying...", slog.Any("error", err), slog.Duration("backoff", wait))

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

type inbound struct {
	data []byte
	err  error
}

func (sv *SevenTV) connectAndHandleEvents(ctx context.Context) error {
	conn, resp, err := sv.opts.Dialer.DialContext(ctx, sv.opts.EventsURL, nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	sv.connected.Store(true)
	metrics.FeedConnected.WithLabelValues(metrics.FeedSevenTV).Set(1)
	sv.log.Info("Connected to 7TV EventAPI")

	if sessionID := sv.SessionID(); sessionID != "" {
		// Ответ на resume приходит ack'ом, ждать его не нужно.
		frame, err := command(opResume, resumePayload{SessionID: sessionID})
		if err != nil {
			return err
		}
		if err := sv.write(conn, frame); err != nil {
			return fmt.Errorf("send resume: %w", err)
		}
		if err := sv.flushPending(conn); err != nil {
			return err
		}
	} else {
		// A fresh session starts empty, the registry is all it needs.
		sv.pending = nil
		if err := sv.resubscribeAll(conn); err != nil {
			return err
		}
	}

	frames := make(chan inbound)
	done := make(chan struct{})
	defer close(done)
	go sv.readLoop(conn, frames, done)

	for {
		select {
		case frame, ok := <-sv.cmds.Out():
			if !ok {
				return nil
			}
			if err := sv.send(conn, frame); err != nil {
				return err
			}
		case in := <-frames:
			if in.err != nil {
				return in.err
			}
			if err := sv.handleMessage(conn, in.data); err != nil {
				return err
			}
		}
	}
}

// readLoop owns reads on conn and hands every frame to the session loop.
func (sv *SevenTV) readLoop(conn *websocket.Conn, frames chan<- inbound, done <-chan struct{}) {
	for {
		_ = conn.SetReadDeadline(time.Now().Add(3 * time.Duration(sv.heartbeat.Load())))

		_, data, err := conn.ReadMessage()
		select {
		case frames <- inbound{data: data, err: err}:
		case <-done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (sv *SevenTV) handleMessage(conn *websocket.Conn, data []byte) error {
	var msg ports.SevenTVMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("decode 7TV message: %w", err)
	}
	metrics.Frames.WithLabelValues(metrics.FeedSevenTV, opName(msg.Op)).Inc()

	switch msg.Op {
	case opDispatch:
		var d Dispatch
		if err := json.Unmarshal(msg.D, &d); err != nil {
			sv.log.Warn("Failed to decode 7TV dispatch", slog.Any("error", err))
			return nil
		}
		if d.Type == "emote_set.update" {
			sv.applyEmoteSetUpdate(d.Body)
		}
		sv.out.Push(d)
		metrics.QueueDepth.WithLabelValues(metrics.FeedSevenTV).Set(float64(sv.out.Len()))

	case opHello:
		var h Hello
		if err := json.Unmarshal(msg.D, &h); err != nil {
			return fmt.Errorf("decode hello: %w", err)
		}
		sv.mu.Lock()
		sv.sessionID = h.SessionID
		sv.mu.Unlock()
		if h.HeartbeatInterval > 0 {
			sv.heartbeat.Store(int64(time.Duration(h.HeartbeatInterval) * time.Millisecond))
		}
		sv.opts.BackOff.Reset()
		sv.log.Debug("Received Hello from 7TV", slog.String("session_id", h.SessionID))

	case opHeartbeat:
		sv.log.Trace("7TV heartbeat")

	case opAck:
		var ack Ack
		if err := json.Unmarshal(msg.D, &ack); err != nil {
			sv.log.Warn("Failed to decode 7TV ack", slog.Any("error", err))
			return nil
		}
		return sv.handleAck(conn, ack)

	case opError:
		var e ErrorPayload
		_ = json.Unmarshal(msg.D, &e)
		sv.log.Warn("7TV returned an error", slog.String("message", e.Message))

	case opReconnect:
		return fmt.Errorf("%w: server requested reconnect", errEndOfStream)

	case opEndOfStream:
		var eos EndOfStream
		if err := json.Unmarshal(msg.D, &eos); err != nil {
			sv.log.Warn("Failed to decode 7TV end of stream", slog.Any("error", err))
			return nil
		}
		if _, ok := resumableCodes[eos.Code]; ok {
			return fmt.Errorf("%w: %d %s", errEndOfStream, eos.Code, eos.Message)
		}
		sv.log.Warn("7TV closed the stream", slog.Int("code", eos.Code), slog.String("message", eos.Message))

	default:
		sv.log.Debug("Unhandled 7TV op", slog.Int("op", msg.Op))
	}

	return nil
}

func (sv *SevenTV) handleAck(conn *websocket.Conn, ack Ack) error {
	if ack.Command != "RESUME" {
		sv.log.Trace("Subscription acknowledged", slog.String("command", ack.Command))
		return nil
	}

	var res ResumeResult
	if err := json.Unmarshal(ack.Data, &res); err != nil || !res.Success {
		sv.log.Info("7TV session could not be resumed, subscribing again")
		return sv.resubscribeAll(conn)
	}

	sv.log.Info("7TV session resumed",
		slog.Int("dispatches_replayed", res.DispatchesReplayed),
		slog.Int("subscriptions_restored", res.SubscriptionsRestored),
	)
	return nil
}

func (sv *SevenTV) resubscribeAll(conn *websocket.Conn) error {
	for _, e := range sv.subs.Snapshot() {
		frame, err := command(opSubscribe, subscribePayload{Type: e.Value.Kind, Condition: e.Value.Condition})
		if err != nil {
			return err
		}
		if err := sv.write(conn, frame); err != nil {
			return fmt.Errorf("resubscribe %s: %w", e.Key, err)
		}
	}
	return nil
}

// send writes a queued command. On failure the command is kept and resent on
// the next resumed connection.
func (sv *SevenTV) send(conn *websocket.Conn, frame ports.SevenTVMessage) error {
	if err := sv.write(conn, frame); err != nil {
		sv.pending = append(sv.pending, frame)
		return fmt.Errorf("send op %d: %w", frame.Op, err)
	}
	return nil
}

func (sv *SevenTV) flushPending(conn *websocket.Conn) error {
	for len(sv.pending) > 0 {
		frame := sv.pending[0]
		if err := sv.write(conn, frame); err != nil {
			return fmt.Errorf("resend op %d: %w", frame.Op, err)
		}
		sv.pending = sv.pending[1:]
	}
	sv.pending = nil
	return nil
}

// write is only called from the session loop, so writes never overlap.
func (sv *SevenTV) write(conn *websocket.Conn, frame ports.SevenTVMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(frame)
}

func (sv *SevenTV) setDisconnected() {
	sv.connected.Store(false)
	metrics.FeedConnected.WithLabelValues(metrics.FeedSevenTV).Set(0)
}

func (sv *SevenTV) observeSubscriptions() {
	metrics.Subscriptions.WithLabelValues(metrics.FeedSevenTV).Set(float64(sv.subs.Len()))
}

func command(op int, payload any) (ports.SevenTVMessage, error) {
	d, err := json.Marshal(payload)
	if err != nil {
		return ports.SevenTVMessage{}, fmt.Errorf("encode op %d: %w", op, err)
	}
	return ports.SevenTVMessage{Op: op, D: d}, nil
}
