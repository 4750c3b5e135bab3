package irc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const userNoticeTags = "badge-info=;badges=;color=#0000FF;display-name=Gifter;emotes=;id=note-1;login=gifter;mod=0;room-id=11148817;subscriber=0;tmi-sent-ts=1594583782376;user-id=12345;user-type="

func usernotice(extraTags, text string) string {
	line := "@" + userNoticeTags + ";" + extraTags + " :tmi.twitch.tv USERNOTICE #pajlada"
	if text != "" {
		line += " :" + text
	}
	return line
}

func ptr[T any](v T) *T {
	return &v
}

func TestParseUserNoticeCommon(t *testing.T) {
	line := usernotice("msg-id=resub;msg-param-cumulative-months=12;msg-param-should-share-streak=1;msg-param-streak-months=7;msg-param-sub-plan=1000;msg-param-sub-plan-name=The\\sSub;system-msg=Gifter\\ssubscribed.;emotes=25:6-10", "Great Kappa")

	msg := mustParse(t, line).(*UserNoticeMessage)

	assert.Equal(t, "pajlada", msg.ChannelLogin)
	assert.Equal(t, "11148817", msg.ChannelID)
	assert.Equal(t, BasicUser{ID: "12345", Login: "gifter", Name: "Gifter"}, msg.Sender)
	require.NotNil(t, msg.MessageText)
	assert.Equal(t, "Great Kappa", *msg.MessageText)
	assert.Equal(t, "Gifter subscribed.", msg.SystemMessage)
	assert.Equal(t, "resub", msg.EventID)
	assert.Equal(t, "sub_or_resub", msg.EventType)
	assert.Equal(t, []Emote{{ID: "25", Start: 6, End: 11, Code: "Kappa"}}, msg.Emotes)
	assert.Equal(t, "#0000FF", msg.NameColor)
	assert.Equal(t, "note-1", msg.MessageID)
	assert.Equal(t, int64(1594583782376), msg.ServerTimestamp.UnixMilli())
	assert.Nil(t, msg.Source)
	assert.Equal(t, SubOrResubEvent{
		IsResub:          true,
		CumulativeMonths: 12,
		StreakMonths:     ptr(uint64(7)),
		SubPlan:          "1000",
		SubPlanName:      "The Sub",
	}, msg.Event)
}

func TestParseUserNoticeEvents(t *testing.T) {
	const recipient = "msg-param-recipient-id=2;msg-param-recipient-user-name=rec;msg-param-recipient-display-name=Rec"

	tests := []struct {
		name string
		tags string
		text string
		want UserNoticeEvent
	}{
		{
			name: "sub without shared streak",
			tags: "msg-id=sub;msg-param-cumulative-months=1;msg-param-should-share-streak=0;msg-param-multimonth-duration=3;msg-param-sub-plan=Prime;msg-param-sub-plan-name=Channel\\sSub;system-msg=x",
			want: SubOrResubEvent{CumulativeMonths: 1, MultimonthDuration: ptr(uint64(3)), SubPlan: "Prime", SubPlanName: "Channel Sub"},
		},
		{
			name: "sub gift",
			tags: "msg-id=subgift;msg-param-months=4;" + recipient + ";msg-param-sub-plan=1000;msg-param-sub-plan-name=Sub;msg-param-gift-months=1;msg-param-sender-count=9;system-msg=x",
			want: SubGiftEvent{CumulativeMonths: 4, Recipient: BasicUser{ID: "2", Login: "rec", Name: "Rec"}, SubPlan: "1000", SubPlanName: "Sub", NumGiftedMonths: 1, SenderTotalMonths: 9},
		},
		{
			name: "sub gift from the anonymous gifter account",
			tags: "msg-id=subgift;user-id=274598607;login=ananonymousgifter;msg-param-months=1;" + recipient + ";msg-param-sub-plan=1000;msg-param-sub-plan-name=Sub;msg-param-gift-months=1;system-msg=x",
			want: SubGiftEvent{IsSenderAnonymous: true, CumulativeMonths: 1, Recipient: BasicUser{ID: "2", Login: "rec", Name: "Rec"}, SubPlan: "1000", SubPlanName: "Sub", NumGiftedMonths: 1},
		},
		{
			name: "anonsubgift",
			tags: "msg-id=anonsubgift;msg-param-months=1;" + recipient + ";msg-param-sub-plan=2000;msg-param-sub-plan-name=Sub;msg-param-gift-months=1;system-msg=x",
			want: SubGiftEvent{IsSenderAnonymous: true, CumulativeMonths: 1, Recipient: BasicUser{ID: "2", Login: "rec", Name: "Rec"}, SubPlan: "2000", SubPlanName: "Sub", NumGiftedMonths: 1},
		},
		{
			name: "mystery gift",
			tags: "msg-id=submysterygift;msg-param-mass-gift-count=5;msg-param-sender-count=50;msg-param-sub-plan=1000;system-msg=x",
			want: SubMysteryGiftEvent{MassGiftCount: 5, SenderTotalGifts: ptr(uint64(50)), SubPlan: "1000"},
		},
		{
			name: "mystery gift from twitch without sender count",
			tags: "msg-id=submysterygift;login=twitch;msg-param-mass-gift-count=20;msg-param-sub-plan=1000;system-msg=x",
			want: SubMysteryGiftEvent{MassGiftCount: 20, SubPlan: "1000"},
		},
		{
			name: "mystery gift from the anonymous gifter account",
			tags: "msg-id=submysterygift;user-id=274598607;login=ananonymousgifter;msg-param-mass-gift-count=10;msg-param-sub-plan=1000;system-msg=x",
			want: AnonSubMysteryGiftEvent{MassGiftCount: 10, SubPlan: "1000"},
		},
		{
			name: "raid",
			tags: "msg-id=raid;msg-param-viewerCount=430;msg-param-profileImageURL=https://example.com/a.png;system-msg=x",
			want: RaidEvent{ViewerCount: 430, ProfileImageURL: "https://example.com/a.png"},
		},
		{
			name: "unraid",
			tags: "msg-id=unraid;system-msg=x",
			want: UnraidEvent{},
		},
		{
			name: "gift paid upgrade with promotion",
			tags: "msg-id=giftpaidupgrade;msg-param-sender-login=g;msg-param-sender-name=G;msg-param-promo-gift-total=3;msg-param-promo-name=Spring;system-msg=x",
			want: GiftPaidUpgradeEvent{GifterLogin: "g", GifterName: "G", Promotion: &SubGiftPromo{TotalGifts: 3, PromoName: "Spring"}},
		},
		{
			name: "anon gift paid upgrade without promotion",
			tags: "msg-id=anongiftpaidupgrade;system-msg=x",
			want: AnonGiftPaidUpgradeEvent{},
		},
		{
			name: "ritual",
			tags: "msg-id=ritual;msg-param-ritual-name=new_chatter;system-msg=x",
			text: "HeyGuys",
			want: RitualEvent{RitualName: "new_chatter"},
		},
		{
			name: "bits badge tier",
			tags: "msg-id=bitsbadgetier;msg-param-threshold=10000;system-msg=x",
			want: BitsBadgeTierEvent{Threshold: 10000},
		},
		{
			name: "one tap gift",
			tags: "msg-id=onetapgiftredeemed;msg-param-bits-spent=50;msg-param-gift-id=heart;system-msg=x",
			want: OneTapGiftRedeemedEvent{Bits: 50, GiftID: "heart"},
		},
		{
			name: "watch streak",
			tags: "msg-id=viewermilestone;msg-param-category=watch-streak;msg-param-value=7;msg-param-copoReward=350;system-msg=x",
			want: WatchStreakEvent{Streak: 7, Points: 350},
		},
		{
			name: "other milestone",
			tags: "msg-id=viewermilestone;msg-param-category=something-else;system-msg=x",
			want: UnknownEvent{},
		},
		{
			name: "charity donation",
			tags: "msg-id=charitydonation;msg-param-charity-name=Doctors;msg-param-donation-amount=500;msg-param-donation-currency=USD;msg-param-exponent=2;system-msg=x",
			want: CharityDonationEvent{CharityName: "Doctors", DonationAmount: 500, DonationCurrency: "USD", Exponent: 2},
		},
		{
			name: "community pay forward",
			tags: "msg-id=communitypayforward;msg-param-prior-gifter-id=3;msg-param-prior-gifter-user-name=pg;msg-param-prior-gifter-display-name=PG;system-msg=x",
			want: CommunityPayForwardEvent{Gifter: BasicUser{ID: "3", Login: "pg", Name: "PG"}},
		},
		{
			name: "unmapped id",
			tags: "msg-id=newfeature;system-msg=x",
			want: UnknownEvent{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := mustParse(t, usernotice(tt.tags, tt.text)).(*UserNoticeMessage)
			assert.Equal(t, tt.want, msg.Event)
			assert.Equal(t, tt.want.Kind(), msg.EventType)
		})
	}
}

func TestParseUserNoticeWithoutText(t *testing.T) {
	msg := mustParse(t, usernotice("msg-id=unraid;system-msg=The\\sraid\\swas\\scancelled.", "")).(*UserNoticeMessage)

	assert.Nil(t, msg.MessageText)
	assert.Equal(t, []Emote{}, msg.Emotes)
	assert.Equal(t, "The raid was cancelled.", msg.SystemMessage)
}

func TestParseUserNoticeAnnouncement(t *testing.T) {
	t.Run("system message falls back to text", func(t *testing.T) {
		msg := mustParse(t, usernotice("msg-id=announcement;msg-param-color=PRIMARY", "Hello chat")).(*UserNoticeMessage)
		assert.Equal(t, "Hello chat", msg.SystemMessage)
		assert.Equal(t, AnnouncementEvent{Color: "PRIMARY"}, msg.Event)
	})

	t.Run("no text and no system message", func(t *testing.T) {
		pe := parseErr(t, usernotice("msg-id=announcement;msg-param-color=PRIMARY", ""))
		assert.Equal(t, MissingParameter, pe.Kind)
		assert.Equal(t, 1, pe.Index)
	})

	t.Run("other ids require system message", func(t *testing.T) {
		pe := parseErr(t, usernotice("msg-id=unraid", ""))
		assert.Equal(t, MissingTag, pe.Kind)
		assert.Equal(t, "system-msg", pe.Key)
	})
}

func TestParseUserNoticeSharedChat(t *testing.T) {
	line := usernotice("msg-id=sharedchatnotice;source-msg-id=announcement;msg-param-color=BLUE;source-id=src-9;source-room-id=99;source-badges=;source-badge-info=", "shared hello")

	msg := mustParse(t, line).(*UserNoticeMessage)

	assert.Equal(t, "announcement", msg.EventID)
	assert.Equal(t, "announcement", msg.EventType)
	assert.Equal(t, AnnouncementEvent{Color: "BLUE"}, msg.Event)
	assert.Equal(t, "shared hello", msg.SystemMessage)
	require.NotNil(t, msg.Source)
	assert.Equal(t, "src-9", msg.Source.MessageID)
	assert.Equal(t, "99", msg.Source.ChannelID)

	pe := parseErr(t, usernotice("msg-id=sharedchatnotice;system-msg=x", ""))
	assert.Equal(t, MissingTag, pe.Kind)
	assert.Equal(t, "source-msg-id", pe.Key)
}

func TestParseUserNoticeEventErrors(t *testing.T) {
	tests := []struct {
		name string
		tags string
		kind ParseErrorKind
		key  string
	}{
		{"sub missing months", "msg-id=sub;msg-param-should-share-streak=0;msg-param-sub-plan=1000;msg-param-sub-plan-name=x;system-msg=x", MissingTag, "msg-param-cumulative-months"},
		{"mystery gift missing sender count", "msg-id=submysterygift;msg-param-mass-gift-count=5;msg-param-sub-plan=1000;system-msg=x", MissingTag, "msg-param-sender-count"},
		{"raid viewer count not a number", "msg-id=raid;msg-param-viewerCount=many;msg-param-profileImageURL=x;system-msg=x", MalformedTagValue, "msg-param-viewerCount"},
		{"promotion name empty", "msg-id=anongiftpaidupgrade;msg-param-promo-gift-total=3;msg-param-promo-name=;system-msg=x", MissingTagValue, "msg-param-promo-name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pe := parseErr(t, usernotice(tt.tags, ""))
			assert.Equal(t, tt.kind, pe.Kind)
			assert.Equal(t, tt.key, pe.Key)
		})
	}
}
