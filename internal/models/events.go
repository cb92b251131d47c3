package models

// MessageEvent is the inbound message seen by the engine.
// Built either from a discordgo MESSAGE_CREATE or from the fastpath
// frame pre-parser.
type MessageEvent struct {
	GuildID         string
	ChannelID       string
	MessageID       string
	AuthorID        string
	Content         string
	TimestampMs     int64
	MentionUsers    int
	MentionRoles    int
	MentionEveryone bool
	AuthorIsBot     bool
	AuthorIsAdmin   bool
}

// TotalMentions counts user + role mentions plus the everyone flag
func (m *MessageEvent) TotalMentions() int {
	total := m.MentionUsers + m.MentionRoles
	if m.MentionEveryone {
		total++
	}
	return total
}

// Valid reports whether the event carries the minimum fields the
// engine needs. Invalid events are skipped, never processed partially.
func (m *MessageEvent) Valid() bool {
	return m.GuildID != "" && m.AuthorID != "" && m.TimestampMs > 0
}

// JoinEvent is an inbound guild member join
type JoinEvent struct {
	GuildID         string
	MemberID        string
	Username        string
	AccountAgeMs    int64
	AvatarIsDefault bool
	TimestampMs     int64
	IsAdmin         bool
}

// Valid reports whether the join event is processable
func (j *JoinEvent) Valid() bool {
	return j.GuildID != "" && j.MemberID != "" && j.TimestampMs > 0
}
