package irc

import "time"

type NoticeMessage struct {
	ChannelLogin    *string    `json:"channel_login,omitempty"`
	MessageText     string     `json:"message_text"`
	MessageID       *string    `json:"message_id,omitempty"`
	Deleted         bool       `json:"deleted"`
	IsRecent        bool       `json:"is_recent"`
	RecentTimestamp *time.Time `json:"recent_timestamp,omitempty"`
	rawLine
}

func parseNotice(m *Message) (*NoticeMessage, error) {
	if err := expect(m, "NOTICE"); err != nil {
		return nil, err
	}

	msg := &NoticeMessage{rawLine: wrap(m)}

	var err error
	if msg.ChannelLogin, err = m.optionalChannelLogin(); err != nil {
		return nil, err
	}
	if msg.MessageText, err = m.param(1); err != nil {
		return nil, err
	}

	id, ok, err := m.optionalNonEmptyTag("msg-id")
	if err != nil {
		return nil, err
	}
	if ok {
		msg.MessageID = &id
	}

	if msg.Deleted, err = m.flag("rm-deleted"); err != nil {
		return nil, err
	}
	if msg.IsRecent, err = m.flag("historical"); err != nil {
		return nil, err
	}
	if ts, err := m.timestamp("rm-received-ts"); err == nil {
		msg.RecentTimestamp = &ts
	}

	return msg, nil
}
