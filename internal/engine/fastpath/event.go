package fastpath

import (
	"time"

	"github.com/tidwall/gjson"
)

// Event kinds the engine cares about
const (
	KindMessage = iota + 1
	KindJoin
)

// discordEpochMs is the Discord snowflake epoch
const discordEpochMs = 1420070400000

// FastEvent is a compact pre-parsed gateway event, small enough to
// copy by value through the ring buffer
type FastEvent struct {
	Kind            int
	GuildID         string
	ChannelID       string
	MessageID       string
	UserID          string
	Username        string
	Content         string
	TimestampMs     int64
	MentionUsers    int
	MentionRoles    int
	MentionEveryone bool
	Bot             bool
	AccountAgeMs    int64
	AvatarIsDefault bool
}

// ParseFrame screens a raw gateway frame and extracts the fields the
// engine needs. Returns nil for event types the engine ignores and
// for frames missing required fields; no error is ever surfaced to
// the gateway handler.
func ParseFrame(eventType string, raw []byte) *FastEvent {
	switch eventType {
	case "MESSAGE_CREATE":
		return parseMessage(raw)
	case "GUILD_MEMBER_ADD":
		return parseJoin(raw)
	default:
		return nil
	}
}

func parseMessage(raw []byte) *FastEvent {
	guildID := gjson.GetBytes(raw, "guild_id").String()
	authorID := gjson.GetBytes(raw, "author.id").String()
	if guildID == "" || authorID == "" {
		return nil // DM or malformed frame
	}

	ev := &FastEvent{
		Kind:            KindMessage,
		GuildID:         guildID,
		ChannelID:       gjson.GetBytes(raw, "channel_id").String(),
		MessageID:       gjson.GetBytes(raw, "id").String(),
		UserID:          authorID,
		Content:         gjson.GetBytes(raw, "content").String(),
		MentionUsers:    int(gjson.GetBytes(raw, "mentions.#").Int()),
		MentionRoles:    int(gjson.GetBytes(raw, "mention_roles.#").Int()),
		MentionEveryone: gjson.GetBytes(raw, "mention_everyone").Bool(),
		Bot:             gjson.GetBytes(raw, "author.bot").Bool(),
	}

	ev.TimestampMs = parseTimestamp(gjson.GetBytes(raw, "timestamp").String())
	if ev.TimestampMs == 0 {
		ev.TimestampMs = SnowflakeTimeMs(ev.MessageID)
	}
	if ev.TimestampMs == 0 {
		return nil
	}
	return ev
}

func parseJoin(raw []byte) *FastEvent {
	guildID := gjson.GetBytes(raw, "guild_id").String()
	userID := gjson.GetBytes(raw, "user.id").String()
	if guildID == "" || userID == "" {
		return nil
	}

	ev := &FastEvent{
		Kind:            KindJoin,
		GuildID:         guildID,
		UserID:          userID,
		Username:        gjson.GetBytes(raw, "user.username").String(),
		Bot:             gjson.GetBytes(raw, "user.bot").Bool(),
		AvatarIsDefault: gjson.GetBytes(raw, "user.avatar").String() == "",
	}

	ev.TimestampMs = parseTimestamp(gjson.GetBytes(raw, "joined_at").String())
	if ev.TimestampMs == 0 {
		ev.TimestampMs = time.Now().UnixMilli()
	}

	// Account creation time rides in the snowflake
	if created := SnowflakeTimeMs(userID); created > 0 {
		ev.AccountAgeMs = ev.TimestampMs - created
	}
	return ev
}

// SnowflakeTimeMs extracts the creation timestamp from a Discord
// snowflake id, 0 when the id is not numeric
func SnowflakeTimeMs(id string) int64 {
	if id == "" {
		return 0
	}
	var val uint64
	for i := 0; i < len(id); i++ {
		c := id[i]
		if c < '0' || c > '9' {
			return 0
		}
		val = val*10 + uint64(c-'0')
	}
	return int64(val>>22) + discordEpochMs
}

func parseTimestamp(s string) int64 {
	if s == "" {
		return 0
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}
