package engine

import (
	"time"

	"discord-guardian-bot/internal/config"
	"discord-guardian-bot/internal/models"
)

// Platform is the narrow surface the engine needs from Discord. Every
// call is best-effort: implementations run asynchronously and a
// failure never aborts the decision pipeline.
type Platform interface {
	DeleteMessage(channelID, messageID string)
	SendWarning(userID, content string)
	TimeoutMember(guildID, userID string, duration time.Duration, reason string)
	KickMember(guildID, userID, reason string)
	BanMember(guildID, userID, reason string)

	// Lockdown primitives. LockChannels reports each channel it
	// managed to deny send-message on through the callback so the
	// caller can record a precise revert set. The callback returns
	// whether the lock was recorded; on false the episode has already
	// ended and the implementation must revert that deny itself,
	// immediately, or the channel stays locked forever.
	LockChannels(guildID string, onLocked func(channelID string) bool)
	UnlockChannels(guildID string, channelIDs []string)

	// Graduated per-member raid responses
	AssignRole(guildID, userID, roleID string)
	SendCaptchaChallenge(guildID, userID string)

	// Notifications to the moderation log channel and the optional
	// external webhook
	NotifyViolation(channelID string, n *models.ViolationLogEntry)
	NotifyRaid(channelID string, n *models.RaidLogEntry)
	PostWebhook(url string, n *models.RaidLogEntry)
}

// Store is the durable persistence surface: periodic snapshots plus
// two rotating append-only audit logs per guild
type Store interface {
	SaveSnapshot(snap *models.GuildSnapshot) error
	LoadSnapshots() ([]*models.GuildSnapshot, error)
	AppendViolation(entry *models.ViolationLogEntry) error
	AppendRaidEvent(entry *models.RaidLogEntry) error
	RecentViolations(guildID string, limit int) ([]*models.ViolationLogEntry, error)
	RotateLogs(guildID string) error
	SaveGuildConfig(guildID string, cfg *config.Config) error
	LoadGuildConfigs() (map[string]*config.Config, error)
}

// Stats is the advisory hot-counter sink backing the dashboard.
// Losing its contents is acceptable.
type Stats interface {
	IncrViolation(guildID, violationType string)
	IncrAction(guildID, action string)
	RecordStrikes(guildID, userID string, total int)
	ViolationCounts(guildID string) (map[string]int64, error)
	TopOffenders(guildID string, n int64) ([]string, error)
}

// Exempter answers role/channel/user allowlist queries that need
// platform state the engine does not hold
type Exempter interface {
	IsExempt(guildID, userID, channelID string) bool
}

// DashboardSnapshot aggregates a guild's live moderation state with
// the 24h counters and audit tail from the backing stores
type DashboardSnapshot struct {
	GuildID         string
	RaidState       models.RaidState
	JoinsLastMinute int
	ViolationCounts map[string]int64
	TopOffenders    []models.ViolationLogEntry
	DayOffenders    []string // 24h strike leaderboard from the stats sink
	RecentAudit     []*models.ViolationLogEntry
	ActiveWindows   int
	CacheHitRate    float64
}
