package irc

import "time"

type PrivmsgMessage struct {
	ChannelLogin       string    `json:"channel_login"`
	ChannelID          string    `json:"channel_id"`
	MessageText        string    `json:"message_text"`
	Reply              *Reply    `json:"reply,omitempty"`
	IsAction           bool      `json:"is_action"`
	IsFirstMsg         bool      `json:"is_first_msg"`
	IsReturningChatter bool      `json:"is_returning_chatter"`
	IsHighlighted      bool      `json:"is_highlighted"`
	IsMod              bool      `json:"is_mod"`
	IsSubscriber       bool      `json:"is_subscriber"`
	Sender             BasicUser `json:"sender"`
	BadgeInfo          []Badge   `json:"badge_info"`
	Badges             []Badge   `json:"badges"`
	Bits               *uint64   `json:"bits,omitempty"`
	NameColor          string    `json:"name_color"`
	Emotes             []Emote   `json:"emotes"`
	MessageID          string    `json:"message_id"`
	Deleted            bool      `json:"deleted"`
	IsRecent           bool      `json:"is_recent"`
	SourceOnly         *bool     `json:"source_only,omitempty"`
	Source             *Source   `json:"source,omitempty"`
	ServerTimestamp    time.Time `json:"server_timestamp"`
	rawLine
}

func parsePrivmsg(m *Message) (*PrivmsgMessage, error) {
	if err := expect(m, "PRIVMSG"); err != nil {
		return nil, err
	}

	msg := &PrivmsgMessage{rawLine: wrap(m)}

	var err error
	if msg.MessageText, msg.IsAction, err = m.messageText(); err != nil {
		return nil, err
	}
	if msg.ChannelLogin, err = m.channelLogin(); err != nil {
		return nil, err
	}
	if msg.ChannelID, err = m.nonEmptyTag("room-id"); err != nil {
		return nil, err
	}
	if msg.Sender, err = m.sender(); err != nil {
		return nil, err
	}
	if msg.BadgeInfo, msg.Badges, err = badgePair(m); err != nil {
		return nil, err
	}
	if msg.Bits, err = m.optionalUintTag("bits", 64); err != nil {
		return nil, err
	}
	if msg.NameColor, err = m.tag("color"); err != nil {
		return nil, err
	}
	if msg.Emotes, err = m.emotes("emotes", msg.MessageText); err != nil {
		return nil, err
	}
	if msg.ServerTimestamp, err = m.timestamp("tmi-sent-ts"); err != nil {
		return nil, err
	}
	if msg.MessageID, err = m.nonEmptyTag("id"); err != nil {
		return nil, err
	}
	if msg.Reply, err = m.reply(); err != nil {
		return nil, err
	}

	if b := m.lenientBool("first-msg"); b != nil {
		msg.IsFirstMsg = *b
	}
	if b := m.lenientBool("returning-chatter"); b != nil {
		msg.IsReturningChatter = *b
	}
	msg.IsHighlighted = m.Tags["msg-id"] == "highlighted-message"

	if msg.IsMod, err = m.boolTag("mod"); err != nil {
		return nil, err
	}
	if msg.IsSubscriber, err = m.boolTag("subscriber"); err != nil {
		return nil, err
	}
	if msg.Deleted, err = m.flag("rm-deleted"); err != nil {
		return nil, err
	}
	if msg.IsRecent, err = m.flag("historical"); err != nil {
		return nil, err
	}
	msg.SourceOnly = m.lenientBool("source-only")
	if msg.Source, err = m.source(); err != nil {
		return nil, err
	}

	return msg, nil
}

type WhisperMessage struct {
	RecipientLogin string    `json:"recipient_login"`
	Sender         BasicUser `json:"sender"`
	MessageID      string    `json:"message_id"`
	MessageText    string    `json:"message_text"`
	NameColor      string    `json:"name_color"`
	Badges         []Badge   `json:"badges"`
	Emotes         []Emote   `json:"emotes"`
	rawLine
}

func parseWhisper(m *Message) (*WhisperMessage, error) {
	if err := expect(m, "WHISPER"); err != nil {
		return nil, err
	}

	msg := &WhisperMessage{rawLine: wrap(m)}

	var err error
	if msg.MessageText, err = m.param(1); err != nil {
		return nil, err
	}
	if msg.Emotes, err = m.emotes("emotes", msg.MessageText); err != nil {
		return nil, err
	}
	if msg.RecipientLogin, err = m.param(0); err != nil {
		return nil, err
	}
	if msg.Sender, err = m.sender(); err != nil {
		return nil, err
	}
	if msg.MessageID, err = m.nonEmptyTag("message-id"); err != nil {
		return nil, err
	}
	if msg.NameColor, err = m.tag("color"); err != nil {
		return nil, err
	}
	if msg.Badges, err = m.badges("badges"); err != nil {
		return nil, err
	}

	return msg, nil
}
