package irc

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrEmptyLine      = errors.New("empty IRC line")
	ErrMissingCommand = errors.New("IRC line has no command")
)

// Prefix is the message source. A host-only prefix (e.g. "tmi.twitch.tv") has
// an empty Nick.
type Prefix struct {
	Nick string `json:"nick,omitempty"`
	User string `json:"user,omitempty"`
	Host string `json:"host,omitempty"`
}

func (p *Prefix) IsHostOnly() bool {
	return p.Nick == ""
}

func (p *Prefix) String() string {
	if p.IsHostOnly() {
		return p.Host
	}

	var sb strings.Builder
	sb.WriteString(p.Nick)
	if p.User != "" {
		sb.WriteByte('!')
		sb.WriteString(p.User)
	}
	if p.Host != "" {
		sb.WriteByte('@')
		sb.WriteString(p.Host)
	}
	return sb.String()
}

func parsePrefix(src string) *Prefix {
	if !strings.ContainsAny(src, "!@") {
		return &Prefix{Host: src}
	}

	p := &Prefix{}
	rest := src
	if at := strings.IndexByte(rest, '@'); at != -1 {
		p.Host = rest[at+1:]
		rest = rest[:at]
	}
	if bang := strings.IndexByte(rest, '!'); bang != -1 {
		p.User = rest[bang+1:]
		rest = rest[:bang]
	}
	p.Nick = rest

	return p
}

// Message is one tokenized line of the Twitch IRC protocol. It is never
// mutated after ParseMessage returns it.
type Message struct {
	Tags    map[string]string `json:"tags"`
	Prefix  *Prefix           `json:"prefix,omitempty"`
	Command string            `json:"command"`
	Params  []string          `json:"params"`
}

// ParseMessage tokenizes `[@tags ][:prefix ]COMMAND [params...][ :trailing]`.
func ParseMessage(line string) (*Message, error) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return nil, ErrEmptyLine
	}

	msg := &Message{Tags: make(map[string]string)}
	rest := line

	if rest[0] == '@' {
		var rawTags string
		rawTags, rest, _ = strings.Cut(rest[1:], " ")
		parseTags(rawTags, msg.Tags)
		rest = strings.TrimLeft(rest, " ")
	}

	if rest != "" && rest[0] == ':' {
		var rawPrefix string
		rawPrefix, rest, _ = strings.Cut(rest[1:], " ")
		msg.Prefix = parsePrefix(rawPrefix)
		rest = strings.TrimLeft(rest, " ")
	}

	msg.Command, rest, _ = strings.Cut(rest, " ")
	if msg.Command == "" {
		return nil, ErrMissingCommand
	}

	for rest != "" {
		rest = strings.TrimLeft(rest, " ")
		if rest == "" {
			break
		}
		if rest[0] == ':' {
			msg.Params = append(msg.Params, rest[1:])
			break
		}

		var param string
		param, rest, _ = strings.Cut(rest, " ")
		msg.Params = append(msg.Params, param)
	}

	return msg, nil
}

func parseTags(src string, into map[string]string) {
	for _, pair := range strings.Split(src, ";") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		into[key] = unescapeTagValue(value)
	}
}

func unescapeTagValue(v string) string {
	if !strings.Contains(v, `\`) {
		return v
	}

	var sb strings.Builder
	sb.Grow(len(v))
	for i := 0; i < len(v); i++ {
		c := v[i]
		if c != '\\' {
			sb.WriteByte(c)
			continue
		}

		// a lone trailing backslash is dropped
		if i+1 == len(v) {
			break
		}

		i++
		switch v[i] {
		case ':':
			sb.WriteByte(';')
		case 's':
			sb.WriteByte(' ')
		case '\\':
			sb.WriteByte('\\')
		case 'r':
			sb.WriteByte('\r')
		case 'n':
			sb.WriteByte('\n')
		default:
			sb.WriteByte(v[i])
		}
	}
	return sb.String()
}

func escapeTagValue(v string) string {
	return tagEscaper.Replace(v)
}

var tagEscaper = strings.NewReplacer(
	`\`, `\\`,
	";", `\:`,
	" ", `\s`,
	"\r", `\r`,
	"\n", `\n`,
)

// String renders the message back into wire format. Tags are written in key
// order, so the output is stable but not necessarily byte-equal to the input.
func (m *Message) String() string {
	var sb strings.Builder

	if len(m.Tags) > 0 {
		keys := make([]string, 0, len(m.Tags))
		for k := range m.Tags {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteByte('@')
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(';')
			}
			sb.WriteString(k)
			sb.WriteByte('=')
			sb.WriteString(escapeTagValue(m.Tags[k]))
		}
		sb.WriteByte(' ')
	}

	if m.Prefix != nil {
		sb.WriteByte(':')
		sb.WriteString(m.Prefix.String())
		sb.WriteByte(' ')
	}

	sb.WriteString(m.Command)

	for i, p := range m.Params {
		sb.WriteByte(' ')
		last := i == len(m.Params)-1
		if last && (p == "" || strings.Contains(p, " ") || p[0] == ':') {
			sb.WriteByte(':')
		}
		sb.WriteString(p)
	}

	return sb.String()
}

// Tag returns the tag value and whether the tag was present.
func (m *Message) Tag(key string) (string, bool) {
	v, ok := m.Tags[key]
	return v, ok
}

// Param returns the parameter at index i, or "" if there is none.
func (m *Message) Param(i int) string {
	if i < 0 || i >= len(m.Params) {
		return ""
	}
	return m.Params[i]
}
