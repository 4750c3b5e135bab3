package irc

import "time"

// anonymousGifterID is the user id Twitch attributes anonymous gifts to.
const anonymousGifterID = "274598607"

// UserNoticeEvent is the closed set of USERNOTICE sub-events.
type UserNoticeEvent interface {
	Kind() string

	userNoticeEvent()
}

type noticeEvent struct{}

func (noticeEvent) userNoticeEvent() {}

type AnnouncementEvent struct {
	noticeEvent
	Color string `json:"color"`
}

type StandardPayForwardEvent struct {
	noticeEvent
	IsPriorGifterAnonymous bool      `json:"is_prior_gifter_anonymous"`
	PriorGifter            BasicUser `json:"prior_gifter"`
	Recipient              BasicUser `json:"recipient"`
}

type CommunityPayForwardEvent struct {
	noticeEvent
	Gifter BasicUser `json:"gifter"`
}

type CharityDonationEvent struct {
	noticeEvent
	CharityName      string `json:"charity_name"`
	DonationAmount   uint64 `json:"donation_amount"`
	DonationCurrency string `json:"donation_currency"`
	Exponent         uint64 `json:"exponent"`
}

type SubOrResubEvent struct {
	noticeEvent
	IsResub            bool    `json:"is_resub"`
	CumulativeMonths   uint64  `json:"cumulative_months"`
	StreakMonths       *uint64 `json:"streak_months,omitempty"`
	MultimonthTenure   *uint64 `json:"multimonth_tenure,omitempty"`
	MultimonthDuration *uint64 `json:"multimonth_duration,omitempty"`
	SubPlan            string  `json:"sub_plan"`
	SubPlanName        string  `json:"sub_plan_name"`
}

type RaidEvent struct {
	noticeEvent
	ViewerCount     uint64 `json:"viewer_count"`
	ProfileImageURL string `json:"profile_image_url"`
}

type UnraidEvent struct {
	noticeEvent
}

type SubGiftEvent struct {
	noticeEvent
	IsSenderAnonymous bool      `json:"is_sender_anonymous"`
	CumulativeMonths  uint64    `json:"cumulative_months"`
	Recipient         BasicUser `json:"recipient"`
	SubPlan           string    `json:"sub_plan"`
	SubPlanName       string    `json:"sub_plan_name"`
	NumGiftedMonths   uint64    `json:"num_gifted_months"`
	SenderTotalMonths uint64    `json:"sender_total_months"`
}

type SubMysteryGiftEvent struct {
	noticeEvent
	MassGiftCount    uint64  `json:"mass_gift_count"`
	SenderTotalGifts *uint64 `json:"sender_total_gifts,omitempty"`
	SubPlan          string  `json:"sub_plan"`
}

type AnonSubMysteryGiftEvent struct {
	noticeEvent
	MassGiftCount uint64 `json:"mass_gift_count"`
	SubPlan       string `json:"sub_plan"`
}

type PrimePaidUpgradeEvent struct {
	noticeEvent
	SubPlan string `json:"sub_plan"`
}

type SubGiftPromo struct {
	TotalGifts uint64 `json:"total_gifts"`
	PromoName  string `json:"promo_name"`
}

type GiftPaidUpgradeEvent struct {
	noticeEvent
	GifterLogin string        `json:"gifter_login"`
	GifterName  string        `json:"gifter_name"`
	Promotion   *SubGiftPromo `json:"promotion,omitempty"`
}

type AnonGiftPaidUpgradeEvent struct {
	noticeEvent
	Promotion *SubGiftPromo `json:"promotion,omitempty"`
}

type RitualEvent struct {
	noticeEvent
	RitualName string `json:"ritual_name"`
}

type BitsBadgeTierEvent struct {
	noticeEvent
	Threshold uint64 `json:"threshold"`
}

type OneTapGiftRedeemedEvent struct {
	noticeEvent
	Bits   uint32 `json:"bits"`
	GiftID string `json:"gift_id"`
}

type WatchStreakEvent struct {
	noticeEvent
	Streak uint32 `json:"streak"`
	Points uint32 `json:"points"`
}

// UnknownEvent is any id without a mapping, including viewer milestones
// other than watch streaks.
type UnknownEvent struct {
	noticeEvent
}

func (AnnouncementEvent) Kind() string        { return "announcement" }
func (StandardPayForwardEvent) Kind() string  { return "standard_pay_forward" }
func (CommunityPayForwardEvent) Kind() string { return "community_pay_forward" }
func (CharityDonationEvent) Kind() string     { return "charity_donation" }
func (SubOrResubEvent) Kind() string          { return "sub_or_resub" }
func (RaidEvent) Kind() string                { return "raid" }
func (UnraidEvent) Kind() string              { return "unraid" }
func (SubGiftEvent) Kind() string             { return "sub_gift" }
func (SubMysteryGiftEvent) Kind() string      { return "sub_mystery_gift" }
func (AnonSubMysteryGiftEvent) Kind() string  { return "anon_sub_mystery_gift" }
func (PrimePaidUpgradeEvent) Kind() string    { return "prime_paid_upgrade" }
func (GiftPaidUpgradeEvent) Kind() string     { return "gift_paid_upgrade" }
func (AnonGiftPaidUpgradeEvent) Kind() string { return "anon_gift_paid_upgrade" }
func (RitualEvent) Kind() string              { return "ritual" }
func (BitsBadgeTierEvent) Kind() string       { return "bits_badge_tier" }
func (OneTapGiftRedeemedEvent) Kind() string  { return "one_tap_gift_redeemed" }
func (WatchStreakEvent) Kind() string         { return "watch_streak" }
func (UnknownEvent) Kind() string             { return "unknown" }

type UserNoticeMessage struct {
	ChannelLogin  string          `json:"channel_login"`
	ChannelID     string          `json:"channel_id"`
	Sender        BasicUser       `json:"sender"`
	MessageText   *string         `json:"message_text,omitempty"`
	SystemMessage string          `json:"system_message"`
	Event         UserNoticeEvent `json:"event"`
	// EventType is Event.Kind(), kept alongside for JSON consumers.
	EventType       string    `json:"event_type"`
	EventID         string    `json:"event_id"`
	BadgeInfo       []Badge   `json:"badge_info"`
	Badges          []Badge   `json:"badges"`
	Emotes          []Emote   `json:"emotes"`
	NameColor       string    `json:"name_color"`
	MessageID       string    `json:"message_id"`
	Deleted         bool      `json:"deleted"`
	IsRecent        bool      `json:"is_recent"`
	SourceOnly      *bool     `json:"source_only,omitempty"`
	Source          *Source   `json:"source,omitempty"`
	ServerTimestamp time.Time `json:"server_timestamp"`
	rawLine
}

func parseUserNotice(m *Message) (*UserNoticeMessage, error) {
	if err := expect(m, "USERNOTICE"); err != nil {
		return nil, err
	}

	msg := &UserNoticeMessage{rawLine: wrap(m)}

	var err error
	if msg.Sender, err = m.user("user-id", "login", "display-name"); err != nil {
		return nil, err
	}

	msgID, err := m.nonEmptyTag("msg-id")
	if err != nil {
		return nil, err
	}
	msg.EventID = msgID
	if msgID == "sharedchatnotice" {
		if msg.EventID, err = m.nonEmptyTag("source-msg-id"); err != nil {
			return nil, err
		}
	}

	if msg.Event, err = m.userNoticeEvent(msg.EventID, msg.Sender); err != nil {
		return nil, err
	}
	msg.EventType = msg.Event.Kind()

	msg.Emotes = []Emote{}
	if len(m.Params) > 1 {
		text := m.Params[1]
		msg.MessageText = &text
		if msg.Emotes, err = m.emotes("emotes", text); err != nil {
			return nil, err
		}
	}

	if msg.SystemMessage, err = m.nonEmptyTag("system-msg"); err != nil {
		if msg.EventID != "announcement" {
			return nil, err
		}
		if msg.SystemMessage, err = m.param(1); err != nil {
			return nil, err
		}
	}

	if msg.ChannelLogin, err = m.channelLogin(); err != nil {
		return nil, err
	}
	if msg.ChannelID, err = m.nonEmptyTag("room-id"); err != nil {
		return nil, err
	}
	if msg.BadgeInfo, msg.Badges, err = badgePair(m); err != nil {
		return nil, err
	}
	if msg.NameColor, err = m.tag("color"); err != nil {
		return nil, err
	}
	if msg.MessageID, err = m.nonEmptyTag("id"); err != nil {
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
	if msg.ServerTimestamp, err = m.timestamp("tmi-sent-ts"); err != nil {
		return nil, err
	}

	return msg, nil
}

// tagReader accumulates the first error so long event field lists stay flat.
type tagReader struct {
	m   *Message
	err error
}

func (r *tagReader) str(key string) string {
	if r.err != nil {
		return ""
	}
	v, err := r.m.nonEmptyTag(key)
	r.err = err
	return v
}

func (r *tagReader) num(key string, bitSize int) uint64 {
	if r.err != nil {
		return 0
	}
	n, err := r.m.uintTag(key, bitSize)
	r.err = err
	return n
}

func (r *tagReader) optNum(key string) *uint64 {
	if r.err != nil {
		return nil
	}
	n, err := r.m.optionalUintTag(key, 64)
	r.err = err
	return n
}

func (r *tagReader) boolean(key string) bool {
	if r.err != nil {
		return false
	}
	b, err := r.m.boolTag(key)
	r.err = err
	return b
}

func (r *tagReader) user(prefix string) BasicUser {
	return BasicUser{
		ID:    r.str(prefix + "-id"),
		Login: r.str(prefix + "-user-name"),
		Name:  r.str(prefix + "-display-name"),
	}
}

func (r *tagReader) promo() *SubGiftPromo {
	total := r.optNum("msg-param-promo-gift-total")
	if r.err != nil {
		return nil
	}
	name, ok, err := r.m.optionalNonEmptyTag("msg-param-promo-name")
	if err != nil {
		r.err = err
		return nil
	}
	if total == nil || !ok {
		return nil
	}
	return &SubGiftPromo{TotalGifts: *total, PromoName: name}
}

func (m *Message) userNoticeEvent(id string, sender BasicUser) (UserNoticeEvent, error) {
	r := &tagReader{m: m}

	var ev UserNoticeEvent
	switch {
	case id == "announcement":
		ev = AnnouncementEvent{Color: r.str("msg-param-color")}

	case id == "standardpayforward":
		ev = StandardPayForwardEvent{
			IsPriorGifterAnonymous: r.boolean("msg-param-prior-gifter-anonymous"),
			PriorGifter:            r.user("msg-param-prior-gifter"),
			Recipient:              r.user("msg-param-recipient"),
		}

	case id == "communitypayforward":
		ev = CommunityPayForwardEvent{Gifter: r.user("msg-param-prior-gifter")}

	case id == "charitydonation":
		ev = CharityDonationEvent{
			CharityName:      r.str("msg-param-charity-name"),
			DonationAmount:   r.num("msg-param-donation-amount", 64),
			DonationCurrency: r.str("msg-param-donation-currency"),
			Exponent:         r.num("msg-param-exponent", 64),
		}

	case id == "sub" || id == "resub":
		e := SubOrResubEvent{
			IsResub:          id == "resub",
			CumulativeMonths: r.num("msg-param-cumulative-months", 64),
		}
		if r.boolean("msg-param-should-share-streak") {
			streak := r.num("msg-param-streak-months", 64)
			e.StreakMonths = &streak
		}
		e.MultimonthTenure = r.optNum("msg-param-multimonth-tenure")
		e.MultimonthDuration = r.optNum("msg-param-multimonth-duration")
		e.SubPlan = r.str("msg-param-sub-plan")
		e.SubPlanName = r.str("msg-param-sub-plan-name")
		ev = e

	case id == "raid":
		ev = RaidEvent{
			ViewerCount:     r.num("msg-param-viewerCount", 64),
			ProfileImageURL: r.str("msg-param-profileImageURL"),
		}

	case id == "unraid":
		ev = UnraidEvent{}

	case id == "subgift" || id == "anonsubgift":
		e := SubGiftEvent{
			IsSenderAnonymous: id == "anonsubgift" || sender.ID == anonymousGifterID,
			CumulativeMonths:  r.num("msg-param-months", 64),
			Recipient:         r.user("msg-param-recipient"),
			SubPlan:           r.str("msg-param-sub-plan"),
			SubPlanName:       r.str("msg-param-sub-plan-name"),
			NumGiftedMonths:   r.num("msg-param-gift-months", 64),
		}
		if n := r.optNum("msg-param-sender-count"); n != nil {
			e.SenderTotalMonths = *n
		}
		ev = e

	case id == "primepaidupgrade":
		ev = PrimePaidUpgradeEvent{SubPlan: r.str("msg-param-sub-plan")}

	case (id == "submysterygift" && sender.ID == anonymousGifterID) || id == "anonsubmysterygift":
		ev = AnonSubMysteryGiftEvent{
			MassGiftCount: r.num("msg-param-mass-gift-count", 64),
			SubPlan:       r.str("msg-param-sub-plan"),
		}

	case id == "submysterygift":
		e := SubMysteryGiftEvent{MassGiftCount: r.num("msg-param-mass-gift-count", 64)}
		if sender.Login != "twitch" {
			total := r.num("msg-param-sender-count", 64)
			e.SenderTotalGifts = &total
		} else if total, err := m.uintTag("msg-param-sender-count", 64); err == nil {
			e.SenderTotalGifts = &total
		}
		e.SubPlan = r.str("msg-param-sub-plan")
		ev = e

	case id == "giftpaidupgrade":
		ev = GiftPaidUpgradeEvent{
			GifterLogin: r.str("msg-param-sender-login"),
			GifterName:  r.str("msg-param-sender-name"),
			Promotion:   r.promo(),
		}

	case id == "anongiftpaidupgrade":
		ev = AnonGiftPaidUpgradeEvent{Promotion: r.promo()}

	case id == "ritual":
		ev = RitualEvent{RitualName: r.str("msg-param-ritual-name")}

	case id == "bitsbadgetier":
		ev = BitsBadgeTierEvent{Threshold: r.num("msg-param-threshold", 64)}

	case id == "onetapgiftredeemed":
		ev = OneTapGiftRedeemedEvent{
			Bits:   uint32(r.num("msg-param-bits-spent", 32)),
			GiftID: r.str("msg-param-gift-id"),
		}

	case id == "viewermilestone":
		if r.str("msg-param-category") == "watch-streak" {
			ev = WatchStreakEvent{
				Streak: uint32(r.num("msg-param-value", 32)),
				Points: uint32(r.num("msg-param-copoReward", 32)),
			}
		} else {
			ev = UnknownEvent{}
		}

	default:
		ev = UnknownEvent{}
	}

	if r.err != nil {
		return nil, r.err
	}
	return ev, nil
}
