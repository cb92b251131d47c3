package config

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the detection and enforcement engine.
// Zero values are never used directly; construct via Defaults() and
// overlay a file or partial update on top.
type Config struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Message spam thresholds (all inclusive, >=)
	MessagesPerSecond  int   `yaml:"messages_per_second" json:"messages_per_second"`
	MessagesPerMinute  int   `yaml:"messages_per_minute" json:"messages_per_minute"`
	CooldownMs         int64 `yaml:"cooldown_ms" json:"cooldown_ms"`
	DuplicateThreshold int   `yaml:"duplicate_threshold" json:"duplicate_threshold"`
	DuplicateWindowMs  int64 `yaml:"duplicate_window_ms" json:"duplicate_window_ms"`
	MentionThreshold   int   `yaml:"mention_threshold" json:"mention_threshold"`
	LinkThreshold      int   `yaml:"link_threshold" json:"link_threshold"`
	EmojiThreshold     int   `yaml:"emoji_threshold" json:"emoji_threshold"`

	// Strike ledger
	StrikeThreshold    int `yaml:"strike_threshold" json:"strike_threshold"`
	StrikeDecayMinutes int `yaml:"strike_decay_minutes" json:"strike_decay_minutes"`
	TimeoutMinutes     int `yaml:"timeout_minutes" json:"timeout_minutes"`

	// Join monitor / raid
	JoinRateLevels     [4]int   `yaml:"join_rate_levels" json:"join_rate_levels"`
	NewAccountAgeDays  int      `yaml:"new_account_age_days" json:"new_account_age_days"`
	RaidDurationMin    int      `yaml:"raid_duration_minutes" json:"raid_duration_minutes"`
	SuspiciousPatterns []string `yaml:"suspicious_name_patterns" json:"suspicious_name_patterns"`

	// Per-guild wiring
	LogChannelID string   `yaml:"log_channel_id" json:"log_channel_id"`
	VerifyRoleID string   `yaml:"verify_role_id" json:"verify_role_id"`
	WebhookURL   string   `yaml:"webhook_url" json:"webhook_url"`
	ExemptUsers  []string `yaml:"exempt_users" json:"exempt_users"`
	ExemptRoles  []string `yaml:"exempt_roles" json:"exempt_roles"`
	ExemptChans  []string `yaml:"exempt_channels" json:"exempt_channels"`
}

// Defaults returns the compiled-in configuration
func Defaults() Config {
	return Config{
		Enabled:            true,
		MessagesPerSecond:  5,
		MessagesPerMinute:  30,
		CooldownMs:         1000,
		DuplicateThreshold: 3,
		DuplicateWindowMs:  5000,
		MentionThreshold:   5,
		LinkThreshold:      3,
		EmojiThreshold:     8,
		StrikeThreshold:    5,
		StrikeDecayMinutes: 60,
		TimeoutMinutes:     30,
		JoinRateLevels:     [4]int{10, 15, 20, 25},
		NewAccountAgeDays:  7,
		RaidDurationMin:    30,
		SuspiciousPatterns: []string{
			`^[a-z]+\d{4,}$`,
			`(?i)discord\.gg`,
			`^(user|member|account)\d+$`,
			`^[a-zA-Z0-9]{18,}$`,
		},
	}
}

// TimeoutDuration is the timeout action length
func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.TimeoutMinutes) * time.Minute
}

// StrikeDecayWindowMs is the idle window after which one strike decays
func (c *Config) StrikeDecayWindowMs() int64 {
	return int64(c.StrikeDecayMinutes) * 60 * 1000
}

// NewAccountAgeMs is the account age below which a join is flagged new
func (c *Config) NewAccountAgeMs() int64 {
	return int64(c.NewAccountAgeDays) * 24 * 60 * 60 * 1000
}

// RaidDuration is how long raid mode stays armed without manual override
func (c *Config) RaidDuration() time.Duration {
	return time.Duration(c.RaidDurationMin) * time.Minute
}

// LoadFile overlays a YAML config file on top of the defaults.
// A missing or malformed file is never fatal: the defaults are
// returned and a warning is logged.
func LoadFile(path string, logger *zap.Logger) Config {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("config file unreadable, using defaults",
				zap.String("path", path), zap.Error(err))
		}
		return cfg
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logger.Warn("config file malformed, using defaults",
			zap.String("path", path), zap.Error(err))
		return Defaults()
	}

	if err := cfg.Validate(); err != nil {
		logger.Warn("config file invalid, using defaults",
			zap.String("path", path), zap.Error(err))
		return Defaults()
	}

	return cfg
}

// Validate rejects configurations the engine cannot run with
func (c *Config) Validate() error {
	if c.MessagesPerSecond < 1 || c.MessagesPerMinute < 1 {
		return fmt.Errorf("message rate limits must be >= 1")
	}
	if c.DuplicateThreshold < 2 {
		return fmt.Errorf("duplicate_threshold must be >= 2")
	}
	if c.StrikeThreshold < 1 {
		return fmt.Errorf("strike_threshold must be >= 1")
	}
	for i := 1; i < len(c.JoinRateLevels); i++ {
		if c.JoinRateLevels[i] <= c.JoinRateLevels[i-1] {
			return fmt.Errorf("join_rate_levels must be strictly increasing")
		}
	}
	return nil
}

// Partial is a sparse config update. Only non-nil fields are applied.
type Partial struct {
	Enabled            *bool     `json:"enabled,omitempty"`
	MessagesPerSecond  *int      `json:"messages_per_second,omitempty"`
	MessagesPerMinute  *int      `json:"messages_per_minute,omitempty"`
	DuplicateThreshold *int      `json:"duplicate_threshold,omitempty"`
	MentionThreshold   *int      `json:"mention_threshold,omitempty"`
	LinkThreshold      *int      `json:"link_threshold,omitempty"`
	EmojiThreshold     *int      `json:"emoji_threshold,omitempty"`
	StrikeThreshold    *int      `json:"strike_threshold,omitempty"`
	StrikeDecayMinutes *int      `json:"strike_decay_minutes,omitempty"`
	TimeoutMinutes     *int      `json:"timeout_minutes,omitempty"`
	JoinRateLevels     *[4]int   `json:"join_rate_levels,omitempty"`
	NewAccountAgeDays  *int      `json:"new_account_age_days,omitempty"`
	RaidDurationMin    *int      `json:"raid_duration_minutes,omitempty"`
	SuspiciousPatterns *[]string `json:"suspicious_name_patterns,omitempty"`
	LogChannelID       *string   `json:"log_channel_id,omitempty"`
	VerifyRoleID       *string   `json:"verify_role_id,omitempty"`
	WebhookURL         *string   `json:"webhook_url,omitempty"`
	ExemptUsers        *[]string `json:"exempt_users,omitempty"`
	ExemptRoles        *[]string `json:"exempt_roles,omitempty"`
	ExemptChans        *[]string `json:"exempt_channels,omitempty"`
}

// Apply returns a copy of c with the partial's non-nil fields applied.
// The result is validated; an invalid result is rejected and c is
// returned unchanged.
func (c Config) Apply(p *Partial) (Config, error) {
	out := c
	if p.Enabled != nil {
		out.Enabled = *p.Enabled
	}
	if p.MessagesPerSecond != nil {
		out.MessagesPerSecond = *p.MessagesPerSecond
	}
	if p.MessagesPerMinute != nil {
		out.MessagesPerMinute = *p.MessagesPerMinute
	}
	if p.DuplicateThreshold != nil {
		out.DuplicateThreshold = *p.DuplicateThreshold
	}
	if p.MentionThreshold != nil {
		out.MentionThreshold = *p.MentionThreshold
	}
	if p.LinkThreshold != nil {
		out.LinkThreshold = *p.LinkThreshold
	}
	if p.EmojiThreshold != nil {
		out.EmojiThreshold = *p.EmojiThreshold
	}
	if p.StrikeThreshold != nil {
		out.StrikeThreshold = *p.StrikeThreshold
	}
	if p.StrikeDecayMinutes != nil {
		out.StrikeDecayMinutes = *p.StrikeDecayMinutes
	}
	if p.TimeoutMinutes != nil {
		out.TimeoutMinutes = *p.TimeoutMinutes
	}
	if p.JoinRateLevels != nil {
		out.JoinRateLevels = *p.JoinRateLevels
	}
	if p.NewAccountAgeDays != nil {
		out.NewAccountAgeDays = *p.NewAccountAgeDays
	}
	if p.RaidDurationMin != nil {
		out.RaidDurationMin = *p.RaidDurationMin
	}
	if p.SuspiciousPatterns != nil {
		out.SuspiciousPatterns = *p.SuspiciousPatterns
	}
	if p.LogChannelID != nil {
		out.LogChannelID = *p.LogChannelID
	}
	if p.VerifyRoleID != nil {
		out.VerifyRoleID = *p.VerifyRoleID
	}
	if p.WebhookURL != nil {
		out.WebhookURL = *p.WebhookURL
	}
	if p.ExemptUsers != nil {
		out.ExemptUsers = *p.ExemptUsers
	}
	if p.ExemptRoles != nil {
		out.ExemptRoles = *p.ExemptRoles
	}
	if p.ExemptChans != nil {
		out.ExemptChans = *p.ExemptChans
	}

	if err := out.Validate(); err != nil {
		return c, err
	}
	return out, nil
}
