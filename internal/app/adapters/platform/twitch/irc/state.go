package irc

import "time"

type GlobalUserStateMessage struct {
	UserID    string              `json:"user_id"`
	UserName  string              `json:"user_name"`
	BadgeInfo []Badge             `json:"badge_info"`
	Badges    []Badge             `json:"badges"`
	EmoteSets map[string]struct{} `json:"emote_sets"`
	NameColor string              `json:"name_color"`
	rawLine
}

func parseGlobalUserState(m *Message) (*GlobalUserStateMessage, error) {
	if err := expect(m, "GLOBALUSERSTATE"); err != nil {
		return nil, err
	}

	msg := &GlobalUserStateMessage{rawLine: wrap(m)}

	var err error
	if msg.UserID, err = m.nonEmptyTag("user-id"); err != nil {
		return nil, err
	}
	if msg.UserName, err = m.nonEmptyTag("display-name"); err != nil {
		return nil, err
	}
	if msg.BadgeInfo, msg.Badges, err = badgePair(m); err != nil {
		return nil, err
	}
	if msg.EmoteSets, err = m.emoteSets("emote-sets"); err != nil {
		return nil, err
	}
	if msg.NameColor, err = m.tag("color"); err != nil {
		return nil, err
	}

	return msg, nil
}

type UserStateMessage struct {
	ChannelLogin string              `json:"channel_login"`
	UserName     string              `json:"user_name"`
	BadgeInfo    []Badge             `json:"badge_info"`
	Badges       []Badge             `json:"badges"`
	EmoteSets    map[string]struct{} `json:"emote_sets"`
	NameColor    string              `json:"name_color"`
	rawLine
}

func parseUserState(m *Message) (*UserStateMessage, error) {
	if err := expect(m, "USERSTATE"); err != nil {
		return nil, err
	}

	msg := &UserStateMessage{rawLine: wrap(m)}

	var err error
	if msg.ChannelLogin, err = m.channelLogin(); err != nil {
		return nil, err
	}
	if msg.UserName, err = m.nonEmptyTag("display-name"); err != nil {
		return nil, err
	}
	if msg.BadgeInfo, msg.Badges, err = badgePair(m); err != nil {
		return nil, err
	}
	if msg.EmoteSets, err = m.emoteSets("emote-sets"); err != nil {
		return nil, err
	}
	if msg.NameColor, err = m.tag("color"); err != nil {
		return nil, err
	}

	return msg, nil
}

// RoomStateMessage only carries the modes that changed; a nil field was not
// part of the update. FollowersOnly is in minutes, -1 meaning disabled.
type RoomStateMessage struct {
	ChannelLogin    string         `json:"channel_login"`
	ChannelID       string         `json:"channel_id"`
	EmoteOnly       *bool          `json:"emote_only,omitempty"`
	FollowersOnly   *int64         `json:"followers_only,omitempty"`
	UniqueMode      *bool          `json:"unique_mode,omitempty"`
	SlowMode        *time.Duration `json:"slow_mode,omitempty"`
	SubscribersOnly *bool          `json:"subscribers_only,omitempty"`
	IsRecent        bool           `json:"is_recent"`
	rawLine
}

func parseRoomState(m *Message) (*RoomStateMessage, error) {
	if err := expect(m, "ROOMSTATE"); err != nil {
		return nil, err
	}

	msg := &RoomStateMessage{rawLine: wrap(m)}

	var err error
	if msg.ChannelLogin, err = m.channelLogin(); err != nil {
		return nil, err
	}
	if msg.ChannelID, err = m.nonEmptyTag("room-id"); err != nil {
		return nil, err
	}
	if msg.EmoteOnly, err = m.optionalBoolTag("emote-only"); err != nil {
		return nil, err
	}
	if msg.FollowersOnly, err = m.optionalIntTag("followers-only"); err != nil {
		return nil, err
	}
	if msg.UniqueMode, err = m.optionalBoolTag("r9k"); err != nil {
		return nil, err
	}

	slow, err := m.optionalUintTag("slow", 64)
	if err != nil {
		return nil, err
	}
	if slow != nil {
		d := time.Duration(*slow) * time.Second
		msg.SlowMode = &d
	}

	if msg.SubscribersOnly, err = m.optionalBoolTag("subs-only"); err != nil {
		return nil, err
	}
	if msg.IsRecent, err = m.flag("historical"); err != nil {
		return nil, err
	}

	return msg, nil
}

func badgePair(m *Message) (info, badges []Badge, err error) {
	if info, err = m.badges("badge-info"); err != nil {
		return nil, nil, err
	}
	if badges, err = m.badges("badges"); err != nil {
		return nil, nil, err
	}
	return info, badges, nil
}
