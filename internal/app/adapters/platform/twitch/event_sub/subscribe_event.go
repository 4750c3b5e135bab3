package event_sub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"hyperion/internal/app/adapters/metrics"
	"hyperion/internal/app/domain/subscription"
	"hyperion/internal/app/ports"
)

const userUpdate = "user.update"

// Kinds that only exist as version 2. Everything else is subscribed as 1.
var v2Events = map[string]struct{}{
	"automod.message.hold":   {},
	"automod.message.update": {},
	"channel.moderate":       {},
	"channel.channel_points_automatic_reward_redemption.add": {},
}

func versionOf(kind string) string {
	if _, ok := v2Events[kind]; ok {
		return "2"
	}
	return "1"
}

// Subscribe creates the subscription on the current session and tracks it
// under channel. It fails with ErrNoSession before the first welcome.
func (es *EventSub) Subscribe(ctx context.Context, channel, kind string, condition map[string]string) error {
	sessionID := es.SessionID()
	if sessionID == "" {
		return ErrNoSession
	}

	sub, err := es.opts.API.CreateEventSubSubscription(ctx, ports.EventSubRequest{
		Type:      kind,
		Version:   versionOf(kind),
		Condition: condition,
		Transport: ports.EventSubTransport{Method: "websocket", SessionID: sessionID},
	})
	if err != nil {
		metrics.SubscribeRequests.WithLabelValues(metrics.FeedEventSub, "subscribe", "error").Inc()
		return fmt.Errorf("subscribe %s for %s: %w", kind, channel, err)
	}
	metrics.SubscribeRequests.WithLabelValues(metrics.FeedEventSub, "subscribe", "ok").Inc()

	es.subs.Insert(subscription.Key(channel, kind), Subscription{
		ID:        sub.ID,
		Kind:      kind,
		Condition: condition,
	})
	es.observeSubscriptions()

	es.log.Debug("Subscribed to event", slog.String("channel", channel), slog.String("event", kind), slog.String("id", sub.ID))
	return nil
}

// SubscribeAll runs every request concurrently and returns how many
// succeeded. Failures are logged and not retried.
func (es *EventSub) SubscribeAll(ctx context.Context, channel string, reqs []ports.SubscriptionRequest) int {
	var (
		wg sync.WaitGroup
		ok atomic.Int32
	)

	for _, req := range reqs {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := es.Subscribe(ctx, channel, req.Kind, req.Condition); err != nil {
				es.log.Error("Failed to subscribe to event", err, slog.String("channel", channel), slog.String("event", req.Kind))
				return
			}
			ok.Add(1)
		}()
	}
	wg.Wait()

	n := int(ok.Load())
	es.log.Info("Subscribed to events", slog.String("channel", channel), slog.Int("ok", n), slog.Int("total", len(reqs)))
	return n
}

// Unsubscribe forgets the subscription and deletes it upstream. The local
// removal stands even if the delete fails.
func (es *EventSub) Unsubscribe(ctx context.Context, channel, kind string) error {
	sub, ok := es.subs.Remove(subscription.Key(channel, kind))
	if !ok {
		return nil
	}
	es.observeSubscriptions()

	return es.deleteRemote(ctx, channel, sub)
}

func (es *EventSub) UnsubscribeAll(ctx context.Context, channel string) {
	removed := es.subs.RemoveAllWithPrefix(channel + ":")
	es.observeSubscriptions()

	var wg sync.WaitGroup
	for _, e := range removed {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := es.deleteRemote(ctx, channel, e.Value); err != nil {
				es.log.Error("Failed to unsubscribe from event", err, slog.String("key", e.Key))
			}
		}()
	}
	wg.Wait()

	es.log.Info("Unsubscribed from channel events", slog.String("channel", channel), slog.Int("count", len(removed)))
}

func (es *EventSub) deleteRemote(ctx context.Context, channel string, sub Subscription) error {
	if err := es.opts.API.DeleteEventSubSubscription(ctx, sub.ID); err != nil {
		metrics.SubscribeRequests.WithLabelValues(metrics.FeedEventSub, "unsubscribe", "error").Inc()
		return fmt.Errorf("unsubscribe %s for %s: %w", sub.Kind, channel, err)
	}
	metrics.SubscribeRequests.WithLabelValues(metrics.FeedEventSub, "unsubscribe", "ok").Inc()
	return nil
}

// restore runs on a fresh session with the entries drained from the old one.
// The mandatory user.update subscription goes first and the rest follow.
func (es *EventSub) restore(ctx context.Context, prior []subscription.Entry[Subscription]) {
	es.observeSubscriptions()

	if es.opts.UserID != "" {
		if err := es.Subscribe(ctx, es.opts.Login, userUpdate, map[string]string{"user_id": es.opts.UserID}); err != nil {
			es.log.Error("Failed to subscribe to own user updates", err)
		}
	}

	var wg sync.WaitGroup
	for _, e := range prior {
		channel, kind := subscription.SplitKey(e.Key)
		if kind == userUpdate {
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := es.Subscribe(ctx, channel, kind, e.Value.Condition); err != nil {
				es.log.Error("Failed to restore subscription", err, slog.String("key", e.Key))
			}
		}()
	}
	wg.Wait()

	if len(prior) > 0 {
		es.log.Info("Restored subscriptions", slog.Int("count", es.subs.Len()))
	}
}
