package irc

import (
	"strconv"
	"strings"
	"time"
)

const actionPrefix = "\x01ACTION "

func (m *Message) param(i int) (string, error) {
	if i >= len(m.Params) {
		e := newParseError(MissingParameter, m)
		e.Index = i
		return "", e
	}
	return m.Params[i], nil
}

// messageText returns parameter 1 with a CTCP ACTION envelope removed.
func (m *Message) messageText() (text string, isAction bool, err error) {
	text, err = m.param(1)
	if err != nil {
		return "", false, err
	}

	if strings.HasPrefix(text, actionPrefix) && strings.HasSuffix(text, "\x01") && len(text) > len(actionPrefix) {
		return text[len(actionPrefix) : len(text)-1], true, nil
	}
	return text, false, nil
}

func (m *Message) tag(key string) (string, error) {
	v, ok := m.Tags[key]
	if !ok {
		e := newParseError(MissingTag, m)
		e.Key = key
		return "", e
	}
	return v, nil
}

func (m *Message) nonEmptyTag(key string) (string, error) {
	v, err := m.tag(key)
	if err != nil {
		return "", err
	}
	if v == "" {
		e := newParseError(MissingTagValue, m)
		e.Key = key
		return "", e
	}
	return v, nil
}

// optionalNonEmptyTag reports ok=false when the tag is absent.
func (m *Message) optionalNonEmptyTag(key string) (v string, ok bool, err error) {
	if _, present := m.Tags[key]; !present {
		return "", false, nil
	}
	v, err = m.nonEmptyTag(key)
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (m *Message) malformed(key, value string) *ParseError {
	e := newParseError(MalformedTagValue, m)
	e.Key = key
	e.Value = value
	return e
}

func (m *Message) uintTag(key string, bitSize int) (uint64, error) {
	v, err := m.nonEmptyTag(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(v, 10, bitSize)
	if err != nil {
		return 0, m.malformed(key, v)
	}
	return n, nil
}

func (m *Message) optionalUintTag(key string, bitSize int) (*uint64, error) {
	if _, ok := m.Tags[key]; !ok {
		return nil, nil
	}
	n, err := m.uintTag(key, bitSize)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (m *Message) optionalIntTag(key string) (*int64, error) {
	v, ok, err := m.optionalNonEmptyTag(key)
	if err != nil || !ok {
		return nil, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, m.malformed(key, v)
	}
	return &n, nil
}

// boolTag parses the tag as a u8 and reports whether it is non-zero.
func (m *Message) boolTag(key string) (bool, error) {
	n, err := m.uintTag(key, 8)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (m *Message) optionalBoolTag(key string) (*bool, error) {
	n, err := m.optionalUintTag(key, 8)
	if err != nil || n == nil {
		return nil, err
	}
	b := *n > 0
	return &b, nil
}

// flag is an optional bool tag where absence means false.
func (m *Message) flag(key string) (bool, error) {
	b, err := m.optionalBoolTag(key)
	if err != nil || b == nil {
		return false, err
	}
	return *b, nil
}

// lenientBool swallows every error into nil, matching tags Twitch only
// sometimes sends.
func (m *Message) lenientBool(key string) *bool {
	b, err := m.boolTag(key)
	if err != nil {
		return nil
	}
	return &b
}

// timestamp parses a tmi-style millisecond epoch tag.
func (m *Message) timestamp(key string) (time.Time, error) {
	ms, err := m.uintTag(key, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(int64(ms)), nil
}

func (m *Message) channelLogin() (string, error) {
	p, err := m.param(0)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(p, "#") || len(p) < 2 {
		return "", newParseError(MalformedChannel, m)
	}
	return p[1:], nil
}

// optionalChannelLogin treats "*" as no channel, as sent in global NOTICEs.
func (m *Message) optionalChannelLogin() (*string, error) {
	p, err := m.param(0)
	if err != nil {
		return nil, err
	}
	if p == "*" {
		return nil, nil
	}
	login, err := m.channelLogin()
	if err != nil {
		return nil, err
	}
	return &login, nil
}

func (m *Message) prefixNick() (string, error) {
	if m.Prefix == nil {
		return "", newParseError(MissingPrefix, m)
	}
	if m.Prefix.IsHostOnly() {
		return "", newParseError(MissingNickname, m)
	}
	return m.Prefix.Nick, nil
}

func (m *Message) emotes(key, text string) ([]Emote, error) {
	v, err := m.tag(key)
	if err != nil {
		return nil, err
	}
	emotes, ok := decodeEmotes(v, text)
	if !ok {
		return nil, m.malformed(key, v)
	}
	return emotes, nil
}

func (m *Message) badges(key string) ([]Badge, error) {
	v, err := m.tag(key)
	if err != nil {
		return nil, err
	}
	badges, ok := decodeBadges(v)
	if !ok {
		return nil, m.malformed(key, v)
	}
	return badges, nil
}

func (m *Message) emoteSets(key string) (map[string]struct{}, error) {
	v, err := m.tag(key)
	if err != nil {
		return nil, err
	}

	sets := make(map[string]struct{})
	if v == "" {
		return sets, nil
	}
	for _, id := range strings.Split(v, ",") {
		sets[id] = struct{}{}
	}
	return sets, nil
}

func (m *Message) user(idKey, loginKey, nameKey string) (BasicUser, error) {
	var (
		u   BasicUser
		err error
	)
	if u.ID, err = m.nonEmptyTag(idKey); err != nil {
		return u, err
	}
	if u.Login, err = m.nonEmptyTag(loginKey); err != nil {
		return u, err
	}
	if u.Name, err = m.nonEmptyTag(nameKey); err != nil {
		return u, err
	}
	return u, nil
}

// sender combines the user-id and display-name tags with the prefix nickname.
func (m *Message) sender() (BasicUser, error) {
	var (
		u   BasicUser
		err error
	)
	if u.ID, err = m.nonEmptyTag("user-id"); err != nil {
		return u, err
	}
	if u.Login, err = m.prefixNick(); err != nil {
		return u, err
	}
	if u.Name, err = m.nonEmptyTag("display-name"); err != nil {
		return u, err
	}
	return u, nil
}

func (m *Message) reply() (*Reply, error) {
	if _, ok := m.Tags["reply-parent-msg-id"]; !ok {
		return nil, nil
	}

	var (
		r   Reply
		err error
	)
	if r.Parent.MessageID, err = m.tag("reply-parent-msg-id"); err != nil {
		return nil, err
	}
	if r.Parent.User, err = m.user("reply-parent-user-id", "reply-parent-user-login", "reply-parent-display-name"); err != nil {
		return nil, err
	}
	if r.Parent.MessageText, err = m.tag("reply-parent-msg-body"); err != nil {
		return nil, err
	}
	if r.Thread.MessageID, err = m.tag("reply-thread-parent-msg-id"); err != nil {
		return nil, err
	}
	if r.Thread.User, err = m.user("reply-thread-parent-user-id", "reply-thread-parent-user-login", "reply-thread-parent-display-name"); err != nil {
		return nil, err
	}
	return &r, nil
}

func (m *Message) source() (*Source, error) {
	if _, ok := m.Tags["source-id"]; !ok {
		return nil, nil
	}

	var (
		s   Source
		err error
	)
	if s.MessageID, err = m.nonEmptyTag("source-id"); err != nil {
		return nil, err
	}
	if v, ok := m.Tags["source-msg-id"]; ok {
		s.EventID = &v
	}
	if s.ChannelID, err = m.nonEmptyTag("source-room-id"); err != nil {
		return nil, err
	}

	// shared chat badges are informational, so a bad value is not fatal
	if s.Badges, err = m.badges("source-badges"); err != nil {
		s.Badges = []Badge{}
	}
	if s.BadgeInfo, err = m.badges("source-badge-info"); err != nil {
		s.BadgeInfo = []Badge{}
	}
	return &s, nil
}
