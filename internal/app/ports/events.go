package ports

// Event is the envelope every feed is normalised to before it reaches the
// relay. Data is the typed payload of the source feed.
type Event struct {
	Source string `json:"source"`
	Type   string `json:"type"`
	Data   any    `json:"data"`
}

const (
	SourceIRC      = "irc"
	SourceEventSub = "eventsub"
	SourceSevenTV  = "seventv"
)

type RelayPort interface {
	Broadcast(ev Event)
}
