package event_sub

import (
	"encoding/json"
	"log/slog"
)

// logNotification writes a human readable line for the few kinds worth
// seeing in the log. Everything is forwarded regardless.
func (es *EventSub) logNotification(n Notification) {
	switch n.Type() {
	case "stream.online", "stream.offline":
		var sm StreamMessageEvent
		if err := json.Unmarshal(n.Event, &sm); err != nil {
			es.log.Warn("Failed to decode stream event", slog.Any("error", err))
			return
		}
		es.log.Info("Stream state changed", slog.String("channel", sm.BroadcasterUserLogin), slog.String("event", n.Type()))
	case "channel.update":
		var upd ChannelUpdateEvent
		if err := json.Unmarshal(n.Event, &upd); err != nil {
			es.log.Warn("Failed to decode channel.update event", slog.Any("error", err))
			return
		}
		es.log.Info("Channel updated", slog.String("channel", upd.BroadcasterUserLogin), slog.String("title", upd.Title), slog.String("category", upd.CategoryName), slog.String("lang", upd.Language))
	case "channel.moderate":
		var modEvent ChannelModerateEvent
		if err := json.Unmarshal(n.Event, &modEvent); err != nil {
			es.log.Warn("Failed to decode channel.moderate event", slog.Any("error", err))
			return
		}
		es.logModerate(modEvent)
	default:
		es.log.Trace("EventSub notification", slog.String("type", n.Type()), slog.String("id", n.MessageID))
	}
}

func (es *EventSub) logModerate(modEvent ChannelModerateEvent) {
	switch modEvent.Action {
	case "delete":
		es.log.Info("The moderator deleted the user's message", slog.String("channel", modEvent.BroadcasterUserLogin), slog.String("mod_username", modEvent.ModeratorUserName))
	case "timeout":
		if modEvent.Timeout == nil {
			return
		}
		es.log.Info("The moderator muted the user", slog.String("channel", modEvent.BroadcasterUserLogin), slog.String("mod_username", modEvent.ModeratorUserName), slog.String("username", modEvent.Timeout.Username), slog.Time("expires_at", modEvent.Timeout.ExpiresAt), slog.String("reason", modEvent.Timeout.Reason))
	case "ban":
		if modEvent.Ban == nil {
			return
		}
		es.log.Info("The moderator banned the user", slog.String("channel", modEvent.BroadcasterUserLogin), slog.String("mod_username", modEvent.ModeratorUserName), slog.String("username", modEvent.Ban.Username), slog.String("reason", modEvent.Ban.Reason))
	default:
		es.log.Debug("Moderator action", slog.String("channel", modEvent.BroadcasterUserLogin), slog.String("action", modEvent.Action))
	}
}
