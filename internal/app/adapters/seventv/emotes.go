package seventv

import (
	"encoding/json"
	"log/slog"
	"sort"
	"sync"

	"hyperion/internal/app/ports"
)

// emoteIndex maps joined channels to the names in their active emote set and
// follows emote_set.update dispatches.
type emoteIndex struct {
	mu       sync.RWMutex
	channels map[string]string              // channel -> set id
	sets     map[string]map[string]struct{} // set id -> emote names
}

func newEmoteIndex() *emoteIndex {
	return &emoteIndex{
		channels: make(map[string]string),
		sets:     make(map[string]map[string]struct{}),
	}
}

func (ix *emoteIndex) track(channel string, set ports.EmoteSet) {
	names := make(map[string]struct{}, len(set.Emotes))
	for _, e := range set.Emotes {
		names[e.Name] = struct{}{}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.channels[channel] = set.ID
	ix.sets[set.ID] = names
}

func (ix *emoteIndex) forget(channel string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	setID, ok := ix.channels[channel]
	if !ok {
		return
	}
	delete(ix.channels, channel)

	for _, id := range ix.channels {
		if id == setID {
			return
		}
	}
	delete(ix.sets, setID)
}

func (ix *emoteIndex) names(channel string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	set := ix.sets[ix.channels[channel]]
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (ix *emoteIndex) count(channel string, words []string) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	set := ix.sets[ix.channels[channel]]

	var emotes int
	for _, w := range words {
		if _, ok := set[w]; ok {
			emotes++
		}
	}
	return emotes
}

// apply reports false if the set is not tracked.
func (ix *emoteIndex) apply(upd ports.EmoteSetUpdate) (added, removed []string, ok bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	set, ok := ix.sets[upd.ID]
	if !ok {
		return nil, nil, false
	}

	for _, f := range upd.Pulled {
		if name := emoteName(f.Key, f.OldValue); name != "" {
			delete(set, name)
			removed = append(removed, name)
		}
	}
	for _, f := range upd.Updated {
		if name := emoteName(f.Key, f.OldValue); name != "" {
			delete(set, name)
		}
		if name := emoteName(f.Key, f.Value); name != "" {
			set[name] = struct{}{}
		}
	}
	for _, f := range upd.Pushed {
		if name := emoteName(f.Key, f.Value); name != "" {
			set[name] = struct{}{}
			added = append(added, name)
		}
	}
	return added, removed, true
}

func emoteName(key string, raw json.RawMessage) string {
	if key != "emotes" || len(raw) == 0 {
		return ""
	}

	var e ports.Emote
	if err := json.Unmarshal(raw, &e); err != nil {
		return ""
	}
	return e.Name
}

// TrackEmoteSet starts following the channel's active emote set.
func (sv *SevenTV) TrackEmoteSet(channel string, set ports.EmoteSet) {
	if set.ID == "" {
		return
	}
	sv.emotes.track(channel, set)
}

// Emotes lists the emote names active in channel, sorted.
func (sv *SevenTV) Emotes(channel string) []string {
	return sv.emotes.names(channel)
}

func (sv *SevenTV) CountEmotes(channel string, words []string) int {
	return sv.emotes.count(channel, words)
}

func (sv *SevenTV) IsOnlyEmotes(channel string, words []string) bool {
	return len(words) > 0 && sv.emotes.count(channel, words) == len(words)
}

func (sv *SevenTV) applyEmoteSetUpdate(body json.RawMessage) {
	var upd ports.EmoteSetUpdate
	if err := json.Unmarshal(body, &upd); err != nil {
		sv.log.Warn("Failed to decode emote_set.update", slog.Any("error", err))
		return
	}

	added, removed, ok := sv.emotes.apply(upd)
	if !ok {
		return
	}
	for _, name := range added {
		sv.log.Info("7TV: Emote added", slog.String("name", name), slog.String("set", upd.ID))
	}
	for _, name := range removed {
		sv.log.Info("7TV: Emote removed", slog.String("name", name), slog.String("set", upd.ID))
	}
}
