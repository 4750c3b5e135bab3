package irc

import (
	"time"
)

type ClearChatActionKind string

const (
	ChatClear   ClearChatActionKind = "clear"
	UserBan     ClearChatActionKind = "ban"
	UserTimeout ClearChatActionKind = "timeout"
)

// ClearChatAction is a full chat clear, a permanent ban or a timeout.
// UserLogin and UserID are empty for ChatClear, Duration is only set for UserTimeout.
type ClearChatAction struct {
	Kind      ClearChatActionKind `json:"type"`
	UserLogin string              `json:"user_login,omitempty"`
	UserID    string              `json:"user_id,omitempty"`
	Duration  time.Duration       `json:"duration,omitempty"`
}

type ClearChatMessage struct {
	ChannelLogin    string          `json:"channel_login"`
	ChannelID       string          `json:"channel_id"`
	Action          ClearChatAction `json:"action"`
	IsRecent        bool            `json:"is_recent"`
	ServerTimestamp time.Time       `json:"server_timestamp"`
	rawLine
}

func parseClearChat(m *Message) (*ClearChatMessage, error) {
	if err := expect(m, "CLEARCHAT"); err != nil {
		return nil, err
	}

	action := ClearChatAction{Kind: ChatClear}
	if len(m.Params) > 1 {
		userID, err := m.nonEmptyTag("target-user-id")
		if err != nil {
			return nil, err
		}
		seconds, err := m.optionalUintTag("ban-duration", 64)
		if err != nil {
			return nil, err
		}

		action = ClearChatAction{Kind: UserBan, UserLogin: m.Params[1], UserID: userID}
		if seconds != nil {
			action.Kind = UserTimeout
			action.Duration = time.Duration(*seconds) * time.Second
		}
	}

	msg := &ClearChatMessage{Action: action, rawLine: wrap(m)}

	var err error
	if msg.ChannelLogin, err = m.channelLogin(); err != nil {
		return nil, err
	}
	if msg.ChannelID, err = m.nonEmptyTag("room-id"); err != nil {
		return nil, err
	}
	if msg.IsRecent, err = m.flag("historical"); err != nil {
		return nil, err
	}
	if msg.ServerTimestamp, err = m.timestamp("tmi-sent-ts"); err != nil {
		return nil, err
	}

	return msg, nil
}

type ClearMsgMessage struct {
	ChannelLogin    string    `json:"channel_login"`
	ChannelID       string    `json:"channel_id"`
	SenderLogin     string    `json:"sender_login"`
	MessageID       string    `json:"message_id"`
	MessageText     string    `json:"message_text"`
	IsAction        bool      `json:"is_action"`
	IsRecent        bool      `json:"is_recent"`
	ServerTimestamp time.Time `json:"server_timestamp"`
	rawLine
}

func parseClearMsg(m *Message) (*ClearMsgMessage, error) {
	if err := expect(m, "CLEARMSG"); err != nil {
		return nil, err
	}

	msg := &ClearMsgMessage{rawLine: wrap(m)}

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
	if msg.SenderLogin, err = m.nonEmptyTag("login"); err != nil {
		return nil, err
	}
	if msg.MessageID, err = m.nonEmptyTag("target-msg-id"); err != nil {
		return nil, err
	}
	if msg.ServerTimestamp, err = m.timestamp("tmi-sent-ts"); err != nil {
		return nil, err
	}
	if msg.IsRecent, err = m.flag("historical"); err != nil {
		return nil, err
	}

	return msg, nil
}
