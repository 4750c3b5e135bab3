package irc

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

type BasicUser struct {
	ID    string `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
}

type Badge struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Emote is one emote occurrence. Start and End are a half-open range of
// character (rune) offsets into the message text.
type Emote struct {
	ID    string `json:"id"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	Code  string `json:"code"`
}

type ReplyParent struct {
	MessageID   string    `json:"message_id"`
	MessageText string    `json:"message_text"`
	User        BasicUser `json:"user"`
}

type ReplyThread struct {
	MessageID string    `json:"message_id"`
	User      BasicUser `json:"user"`
}

type Reply struct {
	Parent ReplyParent `json:"parent"`
	Thread ReplyThread `json:"thread"`
}

// Source describes the originating channel of a shared chat message.
type Source struct {
	MessageID string  `json:"message_id"`
	EventID   *string `json:"event_id,omitempty"`
	ChannelID string  `json:"channel_id"`
	Badges    []Badge `json:"badges"`
	BadgeInfo []Badge `json:"badge_info"`
}

// ParseEmotes decodes an emotes tag value (`id:start-end,start-end/id2:...`)
// against the message text it describes.
func ParseEmotes(tagValue, text string) ([]Emote, error) {
	m := &Message{Command: "PRIVMSG", Tags: map[string]string{"emotes": tagValue}, Params: []string{"", text}}
	return m.emotes("emotes", text)
}

// ParseBadges decodes a comma separated list of name/version pairs.
func ParseBadges(tagValue string) ([]Badge, error) {
	m := &Message{Command: "PRIVMSG", Tags: map[string]string{"badges": tagValue}}
	return m.badges("badges")
}

func decodeEmotes(src, text string) ([]Emote, bool) {
	emotes := []Emote{}
	if src == "" {
		return emotes, true
	}

	runes := []rune(text)
	for _, group := range strings.Split(src, "/") {
		id, ranges, ok := strings.Cut(group, ":")
		if !ok {
			return nil, false
		}

		for _, r := range strings.Split(ranges, ",") {
			rawStart, rawEnd, ok := strings.Cut(r, "-")
			if !ok {
				return nil, false
			}
			start, err := strconv.Atoi(rawStart)
			if err != nil || start < 0 {
				return nil, false
			}
			end, err := strconv.Atoi(rawEnd)
			if err != nil || end < start || end == math.MaxInt {
				return nil, false
			}
			// the wire format is inclusive
			end++

			emotes = append(emotes, Emote{
				ID:    id,
				Start: start,
				End:   end,
				Code:  runeSlice(runes, start, end),
			})
		}
	}

	sort.SliceStable(emotes, func(i, j int) bool {
		return emotes[i].Start < emotes[j].Start
	})
	return emotes, true
}

// runeSlice clamps to the text so out-of-range offsets yield a short code
// instead of panicking.
func runeSlice(runes []rune, start, end int) string {
	if start < 0 || end < start || start >= len(runes) {
		return ""
	}
	if end > len(runes) {
		end = len(runes)
	}
	return string(runes[start:end])
}

func decodeBadges(src string) ([]Badge, bool) {
	badges := []Badge{}
	if src == "" {
		return badges, true
	}

	for _, pair := range strings.Split(src, ",") {
		name, version, ok := strings.Cut(pair, "/")
		if !ok {
			return nil, false
		}
		badges = append(badges, Badge{Name: name, Version: version})
	}
	return badges, true
}
