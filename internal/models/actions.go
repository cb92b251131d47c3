package models

// Enforcement action constants, in escalation order
const (
	ActionNone       = "none"
	ActionDelete     = "delete"
	ActionWarnDelete = "delete_warn"
	ActionTimeout    = "timeout"
	ActionKick       = "kick"
	ActionBan        = "ban"
)

// Interaction custom-id prefixes shared by the captcha challenge DM
// and the gateway handler that answers it. Both carry the guild id as
// their suffix.
const (
	CaptchaButtonPrefix = "guardcaptcha_"
	CaptchaModalPrefix  = "guardverify_"
)

// Raid event constants for the raid audit log
const (
	RaidEventActivated   = "activated"
	RaidEventLockdown    = "lockdown"
	RaidEventDeactivated = "deactivated"
	RaidEventMemberFlag  = "member_flagged"
)

// MessageVerdict is the result of evaluating one message event
type MessageVerdict struct {
	Violations   []Violation
	Action       string
	TotalStrikes int
}

// JoinVerdict is the result of evaluating one join event
type JoinVerdict struct {
	Checks         []JoinCheck
	Action         string
	RaidLevel      int
	JoinsPerMinute int
}

// ViolationLogEntry is an append-only audit record for a message violation
type ViolationLogEntry struct {
	ID        int64
	GuildID   string
	UserID    string
	Types     []string
	Action    string
	Strikes   int
	CreatedAt int64
}

// RaidLogEntry is an append-only audit record for a raid state event
type RaidLogEntry struct {
	ID        int64
	GuildID   string
	Event     string
	Level     int
	Details   string
	CreatedAt int64
}
