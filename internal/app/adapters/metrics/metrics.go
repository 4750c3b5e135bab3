package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	FeedIRC      = "irc"
	FeedEventSub = "eventsub"
	FeedSevenTV  = "seventv"
)

var (
	// FeedConnected - подключен ли фид (1) или нет (0).
	FeedConnected = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hyperion_feed_connected",
			Help: "Whether the feed currently holds a live connection",
		}, []string{"feed"},
	)

	// Reconnects - количество переподключений по фидам.
	Reconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyperion_feed_reconnects_total",
			Help: "Total number of connection attempts after the first one",
		}, []string{"feed", "reason"},
	)

	// Frames - входящие фреймы по фиду и типу.
	Frames = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyperion_feed_frames_total",
			Help: "Inbound websocket frames per feed and frame type",
		}, []string{"feed", "type"},
	)

	IRCMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyperion_irc_messages_total",
			Help: "Parsed IRC lines per command",
		}, []string{"command"},
	)

	ParseErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyperion_irc_parse_errors_total",
			Help: "IRC lines dropped because they could not be parsed, per error kind",
		}, []string{"kind"},
	)

	Subscriptions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hyperion_subscriptions",
			Help: "Subscriptions tracked locally per feed",
		}, []string{"feed"},
	)

	// SubscribeRequests - результат запросов subscribe/unsubscribe.
	SubscribeRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyperion_subscribe_requests_total",
			Help: "Subscribe and unsubscribe requests per feed, operation and result",
		}, []string{"feed", "op", "result"},
	)

	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hyperion_queue_depth",
			Help: "Events buffered in a fan-out queue and not yet consumed",
		}, []string{"queue"},
	)

	// HelixRequestDuration - время ответа Helix API.
	HelixRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hyperion_helix_request_seconds",
			Help:    "Latency of Helix API requests",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"method", "status"},
	)

	RelayClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hyperion_relay_clients",
		Help: "Websocket clients connected to the events relay",
	})
)

func BoolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
