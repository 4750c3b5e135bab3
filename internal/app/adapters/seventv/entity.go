package seventv

import "encoding/json"

// Opcodes of the 7TV EventAPI v3.
const (
	opDispatch    = 0
	opHello       = 1
	opHeartbeat   = 2
	opReconnect   = 4
	opAck         = 5
	opError       = 6
	opEndOfStream = 7
	opResume      = 34
	opSubscribe   = 35
	opUnsubscribe = 36
)

// End-of-stream codes after which the session can be resumed on a new
// connection.
var resumableCodes = map[int]struct{}{
	4000: {}, // server error
	4006: {}, // restart
	4008: {}, // timeout
}

func opName(op int) string {
	switch op {
	case opDispatch:
		return "dispatch"
	case opHello:
		return "hello"
	case opHeartbeat:
		return "heartbeat"
	case opReconnect:
		return "reconnect"
	case opAck:
		return "ack"
	case opError:
		return "error"
	case opEndOfStream:
		return "end_of_stream"
	default:
		return "unknown"
	}
}

type Hello struct {
	HeartbeatInterval int    `json:"heartbeat_interval"`
	SessionID         string `json:"session_id"`
	SubscriptionLimit int    `json:"subscription_limit"`
}

type EndOfStream struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type Ack struct {
	Command string          `json:"command"`
	Data    json.RawMessage `json:"data"`
}

type ResumeResult struct {
	Success               bool `json:"success"`
	DispatchesReplayed    int  `json:"dispatches_replayed"`
	SubscriptionsRestored int  `json:"subscriptions_restored"`
}

type ErrorPayload struct {
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields"`
}

// Dispatch is an event delivered by the EventAPI. Body is forwarded as
// received.
type Dispatch struct {
	Type string          `json:"type"`
	Body json.RawMessage `json:"body"`
}

type subscribePayload struct {
	Type      string            `json:"type"`
	Condition map[string]string `json:"condition"`
}

type resumePayload struct {
	SessionID string `json:"session_id"`
}

type Subscription struct {
	Kind      string
	Condition map[string]string
}

type presenceRequest struct {
	Kind      int          `json:"kind"`
	Passive   bool         `json:"passive"`
	SessionID *string      `json:"session_id"`
	Data      presenceData `json:"data"`
}

type presenceData struct {
	Platform string `json:"platform"`
	ID       string `json:"id"`
}
