package models

// MessageRecord is one remembered message inside a user's window
type MessageRecord struct {
	AuthorID    string   `json:"author_id"`
	Content     string   `json:"content"`
	TimestampMs int64    `json:"timestamp_ms"`
	Violations  []string `json:"violations,omitempty"`
}

// StrikeReason is one reason entry on a strike record
type StrikeReason struct {
	Text        string `json:"text"`
	TimestampMs int64  `json:"timestamp_ms"`
}

// StrikeRecord is the per-user disciplinary accumulator.
// Count only increases through AddStrike and only decreases through
// time-based decay.
type StrikeRecord struct {
	Count        int            `json:"count"`
	Reasons      []StrikeReason `json:"reasons"`
	LastUpdateMs int64          `json:"last_update_ms"`
}

// JoinRecord is one guild join inside the trailing join window
type JoinRecord struct {
	UserID       string `json:"user_id"`
	TimestampMs  int64  `json:"timestamp_ms"`
	AccountAgeMs int64  `json:"account_age_ms"`
}

// JoinCheck is one heuristic flag raised for a join
type JoinCheck struct {
	Type     string
	Severity string
}

// Join check type constants
const (
	CheckJoinRate       = "join_rate"
	CheckNewAccount     = "new_account"
	CheckSuspiciousName = "suspicious_name"
	CheckDefaultAvatar  = "default_avatar"
)

// RaidState is the per-guild raid mode snapshot.
// LockedChannels is non-empty only while Active is true.
type RaidState struct {
	Active         bool     `json:"active"`
	Level          int      `json:"level"`
	LockedChannels []string `json:"locked_channels,omitempty"`
}

// GuildSnapshot is the durable per-guild state written on every flush
// and reloaded verbatim on restart
type GuildSnapshot struct {
	GuildID    string                   `json:"guild_id"`
	Raid       RaidState                `json:"raid"`
	JoinWindow []JoinRecord             `json:"join_window,omitempty"`
	Strikes    map[string]*StrikeRecord `json:"strikes,omitempty"`
	SavedAtMs  int64                    `json:"saved_at_ms"`
}
