package engine

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"discord-guardian-bot/internal/config"
	"discord-guardian-bot/internal/engine/detector"
	"discord-guardian-bot/internal/engine/joins"
	"discord-guardian-bot/internal/engine/policy"
	"discord-guardian-bot/internal/engine/raid"
	"discord-guardian-bot/internal/engine/strikes"
	"discord-guardian-bot/internal/metrics"
	"discord-guardian-bot/internal/models"
)

// Engine is the abuse-detection and enforcement service. One instance
// per process owns all per-guild state; construction injects every
// collaborator, there are no package-level singletons.
type Engine struct {
	log      *zap.Logger
	platform Platform
	store    Store
	stats    Stats
	exempter Exempter

	detector *detector.Detector
	guilds   sync.Map // guildID -> *guildState
	defaults config.Config

	// Serializes message processing per user so a second offense from
	// the same user always observes the latest strike count. Entries
	// idle past userLockIdleMs are dropped by Sweep.
	userLocks sync.Map // "guildID:userID" -> *userLock
}

// userLockIdleMs is how long a user lock may go unused before Sweep
// drops it
const userLockIdleMs = 10 * 60 * 1000

type userLock struct {
	mu       sync.Mutex
	lastUsed atomic.Int64 // event-time ms of the last acquisition
}

// guildState bundles everything the engine tracks for one guild
type guildState struct {
	mu       sync.RWMutex
	cfg      config.Config
	patterns *config.PatternSet

	ledger *strikes.Ledger
	joins  *joins.Monitor
	raid   *raid.Manager
}

// New constructs the engine. store, stats and exempter may be nil for
// a purely in-memory instance (the simulator runs that way).
func New(log *zap.Logger, platform Platform, store Store, stats Stats, exempter Exempter, defaults config.Config) *Engine {
	return &Engine{
		log:      log,
		platform: platform,
		store:    store,
		stats:    stats,
		exempter: exempter,
		detector: detector.New(),
		defaults: defaults,
	}
}

func (e *Engine) guild(guildID string) *guildState {
	val, ok := e.guilds.Load(guildID)
	if !ok {
		gs := &guildState{
			cfg:    e.defaults,
			ledger: strikes.New(),
			joins:  joins.New(),
			raid:   raid.New(),
		}
		gs.patterns = config.CompilePatterns(gs.cfg.SuspiciousPatterns, e.log)
		val, _ = e.guilds.LoadOrStore(guildID, gs)
	}
	return val.(*guildState)
}

// snapshotConfig returns a copy of the guild config plus its compiled
// pattern set
func (gs *guildState) snapshotConfig() (config.Config, *config.PatternSet) {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	return gs.cfg, gs.patterns
}

// acquireUserLock returns the user's lock already held. A lock swept
// away between lookup and acquisition is detected by re-checking the
// map, so two holders can never end up on different mutexes.
func (e *Engine) acquireUserLock(guildID, userID string, nowMs int64) *userLock {
	key := guildID + ":" + userID
	for {
		val, _ := e.userLocks.LoadOrStore(key, &userLock{})
		ul := val.(*userLock)
		ul.mu.Lock()
		if cur, ok := e.userLocks.Load(key); ok && cur == val {
			ul.lastUsed.Store(nowMs)
			return ul
		}
		ul.mu.Unlock()
	}
}

// EvaluateMessage runs the full message pipeline: detect, accumulate
// strikes, pick an action, audit, then fire the platform calls. The
// local state update completes before any external call is issued.
// Returns nil when the event is skipped or clean.
func (e *Engine) EvaluateMessage(ev *models.MessageEvent) *models.MessageVerdict {
	start := time.Now()
	defer func() {
		metrics.EvaluateLatency.WithLabelValues("message").Observe(time.Since(start).Seconds())
	}()

	if ev == nil || !ev.Valid() {
		e.log.Warn("skipping malformed message event")
		return nil
	}
	if ev.AuthorIsBot || ev.AuthorIsAdmin {
		return nil
	}

	gs := e.guild(ev.GuildID)
	cfg, _ := gs.snapshotConfig()
	if !cfg.Enabled {
		return nil
	}
	if e.isExempt(&cfg, ev.GuildID, ev.AuthorID, ev.ChannelID) {
		return nil
	}

	ul := e.acquireUserLock(ev.GuildID, ev.AuthorID, ev.TimestampMs)
	violations := e.detector.Check(ev, &cfg)
	if len(violations) == 0 {
		ul.mu.Unlock()
		return nil
	}
	reason := strings.Join(models.ViolationTypes(violations), ", ")
	total := gs.ledger.AddStrike(ev.AuthorID, len(violations), reason, ev.TimestampMs)
	ul.mu.Unlock()

	decision := policy.Decide(violations, total, &cfg)

	for _, v := range violations {
		metrics.ViolationsDetected.WithLabelValues(v.Type).Inc()
		if e.stats != nil {
			e.stats.IncrViolation(ev.GuildID, v.Type)
		}
	}
	metrics.ActionsTaken.WithLabelValues(decision.Action).Inc()
	if e.stats != nil {
		e.stats.IncrAction(ev.GuildID, decision.Action)
		e.stats.RecordStrikes(ev.GuildID, ev.AuthorID, total)
	}

	entry := &models.ViolationLogEntry{
		GuildID:   ev.GuildID,
		UserID:    ev.AuthorID,
		Types:     models.ViolationTypes(violations),
		Action:    decision.Action,
		Strikes:   total,
		CreatedAt: ev.TimestampMs,
	}
	e.appendViolation(entry)

	e.log.Info("violation detected",
		zap.String("guild", ev.GuildID),
		zap.String("user", ev.AuthorID),
		zap.Strings("types", entry.Types),
		zap.String("action", decision.Action),
		zap.Int("strikes", total))

	e.enforce(ev, decision, total, &cfg)
	if cfg.LogChannelID != "" {
		e.platform.NotifyViolation(cfg.LogChannelID, entry)
	}

	return &models.MessageVerdict{
		Violations:   violations,
		Action:       decision.Action,
		TotalStrikes: total,
	}
}

// enforce fires the platform calls for one decision. Every call is
// independently fallible downstream; nothing here blocks the pipeline.
func (e *Engine) enforce(ev *models.MessageEvent, d *policy.Decision, total int, cfg *config.Config) {
	// Every action attempts deletion of the offending message
	e.platform.DeleteMessage(ev.ChannelID, ev.MessageID)

	switch d.Action {
	case models.ActionWarnDelete:
		e.platform.SendWarning(ev.AuthorID, d.Reason)
	case models.ActionTimeout:
		e.platform.TimeoutMember(ev.GuildID, ev.AuthorID, cfg.TimeoutDuration(), d.Reason)
	case models.ActionKick:
		e.platform.KickMember(ev.GuildID, ev.AuthorID, d.Reason)
	}
}

func (e *Engine) isExempt(cfg *config.Config, guildID, userID, channelID string) bool {
	for _, id := range cfg.ExemptUsers {
		if id == userID {
			return true
		}
	}
	for _, id := range cfg.ExemptChans {
		if id == channelID {
			return true
		}
	}
	if e.exempter != nil && e.exempter.IsExempt(guildID, userID, channelID) {
		return true
	}
	return false
}

// EvaluateJoin records a member join, classifies the raid level and
// drives the raid state machine. Admin accounts are counted in the
// join window (the window measures the guild, not the member) but are
// exempt from per-member responses. Returns nil for skipped events.
func (e *Engine) EvaluateJoin(ev *models.JoinEvent) *models.JoinVerdict {
	start := time.Now()
	defer func() {
		metrics.EvaluateLatency.WithLabelValues("join").Observe(time.Since(start).Seconds())
	}()

	if ev == nil || !ev.Valid() {
		e.log.Warn("skipping malformed join event")
		return nil
	}

	gs := e.guild(ev.GuildID)
	cfg, patterns := gs.snapshotConfig()
	if !cfg.Enabled {
		return nil
	}

	assessment := gs.joins.Record(ev, patterns, &cfg)
	metrics.JoinsObserved.Inc()

	// Guild-level transition first: the first join at level >= 3
	// activates raid mode with lockdown. Re-crossing the threshold
	// while active is a no-op.
	if assessment.RaidLevel >= 3 {
		if !e.activateRaid(ev.GuildID, gs, assessment.RaidLevel, &cfg, "join rate") {
			gs.raid.Escalate(assessment.RaidLevel)
		}
	}

	action := models.ActionNone
	if !ev.IsAdmin {
		action = e.memberResponse(ev, gs, assessment, &cfg)
	}

	if len(assessment.Checks) > 0 || assessment.RaidLevel > 0 {
		details := fmt.Sprintf("level=%d jpm=%d checks=%d", assessment.RaidLevel, assessment.JoinsPerMinute, len(assessment.Checks))
		e.appendRaidEvent(&models.RaidLogEntry{
			GuildID:   ev.GuildID,
			Event:     models.RaidEventMemberFlag,
			Level:     assessment.RaidLevel,
			Details:   details,
			CreatedAt: ev.TimestampMs,
		})
	}

	return &models.JoinVerdict{
		Checks:         assessment.Checks,
		Action:         action,
		RaidLevel:      assessment.RaidLevel,
		JoinsPerMinute: assessment.JoinsPerMinute,
	}
}

// memberResponse applies the graduated per-member raid response:
// verify role at level 1, captcha at level 2, ban for fresh accounts
// at level 4 during an active episode
func (e *Engine) memberResponse(ev *models.JoinEvent, gs *guildState, a joins.Assessment, cfg *config.Config) string {
	switch {
	case a.RaidLevel >= 4 && gs.raid.Active() && ev.AccountAgeMs < cfg.NewAccountAgeMs():
		e.platform.BanMember(ev.GuildID, ev.MemberID, "Raid defense: new account during active raid")
		metrics.ActionsTaken.WithLabelValues(models.ActionBan).Inc()
		return models.ActionBan
	case a.RaidLevel >= 2:
		e.platform.SendCaptchaChallenge(ev.GuildID, ev.MemberID)
		return "captcha"
	case a.RaidLevel == 1 && cfg.VerifyRoleID != "":
		e.platform.AssignRole(ev.GuildID, ev.MemberID, cfg.VerifyRoleID)
		return "verify"
	}
	return models.ActionNone
}

// activateRaid performs the Normal -> RaidMode transition. Returns
// false when an episode is already active (no stacked timers, no
// duplicate notifications).
func (e *Engine) activateRaid(guildID string, gs *guildState, level int, cfg *config.Config, trigger string) bool {
	activated := gs.raid.Activate(level, cfg.RaidDuration(), func() {
		e.deactivateRaid(guildID, gs, "timer expired")
	})
	if !activated {
		return false
	}

	metrics.RaidActivations.Inc()
	nowMs := time.Now().UnixMilli()

	entry := &models.RaidLogEntry{
		GuildID:   guildID,
		Event:     models.RaidEventActivated,
		Level:     level,
		Details:   "trigger: " + trigger,
		CreatedAt: nowMs,
	}
	e.appendRaidEvent(entry)
	e.log.Warn("raid mode activated",
		zap.String("guild", guildID), zap.Int("level", level), zap.String("trigger", trigger))

	if cfg.LogChannelID != "" {
		e.platform.NotifyRaid(cfg.LogChannelID, entry)
	}
	if cfg.WebhookURL != "" {
		e.platform.PostWebhook(cfg.WebhookURL, entry)
	}

	// Level 3 and above escalates into lockdown. Each channel that is
	// actually locked is recorded so deactivation reverts exactly that
	// set.
	if level >= 3 {
		e.appendRaidEvent(&models.RaidLogEntry{
			GuildID:   guildID,
			Event:     models.RaidEventLockdown,
			Level:     level,
			CreatedAt: nowMs,
		})
		e.platform.LockChannels(guildID, gs.raid.RecordLocked)
	}

	return true
}

// deactivateRaid performs the RaidMode -> Normal transition:
// idempotent, reverts every recorded channel, clears state atomically
func (e *Engine) deactivateRaid(guildID string, gs *guildState, trigger string) bool {
	locked, ok := gs.raid.Deactivate()
	if !ok {
		return false
	}

	if len(locked) > 0 {
		e.platform.UnlockChannels(guildID, locked)
	}

	cfg, _ := gs.snapshotConfig()
	entry := &models.RaidLogEntry{
		GuildID:   guildID,
		Event:     models.RaidEventDeactivated,
		Details:   "trigger: " + trigger,
		CreatedAt: time.Now().UnixMilli(),
	}
	e.appendRaidEvent(entry)
	e.log.Info("raid mode deactivated",
		zap.String("guild", guildID), zap.String("trigger", trigger))
	if cfg.LogChannelID != "" {
		e.platform.NotifyRaid(cfg.LogChannelID, entry)
	}
	return true
}

// ManualRaidMode force-activates (as a level-3 episode) or
// force-deactivates raid mode, bypassing the join-rate trigger but
// following the same side-effect and idempotency rules
func (e *Engine) ManualRaidMode(guildID string, activate bool) bool {
	gs := e.guild(guildID)
	if activate {
		cfg, _ := gs.snapshotConfig()
		return e.activateRaid(guildID, gs, 3, &cfg, "manual override")
	}
	return e.deactivateRaid(guildID, gs, "manual override")
}

// ManualLockdown force-activates a level-3 episode with a custom
// duration
func (e *Engine) ManualLockdown(guildID string, duration time.Duration) bool {
	gs := e.guild(guildID)
	cfg, _ := gs.snapshotConfig()
	if duration > 0 {
		cfg.RaidDurationMin = int(duration / time.Minute)
		if cfg.RaidDurationMin < 1 {
			cfg.RaidDurationMin = 1
		}
	}
	return e.activateRaid(guildID, gs, 3, &cfg, "manual lockdown")
}

// GetStrikes returns a copy of a user's strike record, nil if none
func (e *Engine) GetStrikes(guildID, userID string) *models.StrikeRecord {
	return e.guild(guildID).ledger.Get(userID)
}

// ResetStrikes clears a user's record (moderator override)
func (e *Engine) ResetStrikes(guildID, userID string) {
	e.guild(guildID).ledger.Reset(userID)
	e.log.Info("strikes reset", zap.String("guild", guildID), zap.String("user", userID))
}

// GetConfig returns a copy of the guild's effective config
func (e *Engine) GetConfig(guildID string) config.Config {
	cfg, _ := e.guild(guildID).snapshotConfig()
	return cfg
}

// UpdateConfig applies a partial config update, recompiles the name
// patterns and persists the result
func (e *Engine) UpdateConfig(guildID string, p *config.Partial) error {
	gs := e.guild(guildID)

	gs.mu.Lock()
	updated, err := gs.cfg.Apply(p)
	if err != nil {
		gs.mu.Unlock()
		return fmt.Errorf("invalid config update: %w", err)
	}
	gs.cfg = updated
	gs.patterns = config.CompilePatterns(updated.SuspiciousPatterns, e.log)
	gs.mu.Unlock()

	if e.store != nil {
		if err := e.store.SaveGuildConfig(guildID, &updated); err != nil {
			e.log.Warn("config persist failed", zap.String("guild", guildID), zap.Error(err))
		}
	}

	// Exemption lists may have changed; drop any cached copy
	if inv, ok := e.exempter.(interface{ Invalidate(guildID string) }); ok {
		inv.Invalidate(guildID)
	}
	return nil
}

// SetGuildConfig installs a full config, used at startup restore
func (e *Engine) SetGuildConfig(guildID string, cfg config.Config) {
	gs := e.guild(guildID)
	gs.mu.Lock()
	gs.cfg = cfg
	gs.patterns = config.CompilePatterns(cfg.SuspiciousPatterns, e.log)
	gs.mu.Unlock()
}

// GetDashboardSnapshot aggregates live stats for one guild
func (e *Engine) GetDashboardSnapshot(guildID string) *DashboardSnapshot {
	gs := e.guild(guildID)

	snap := &DashboardSnapshot{
		GuildID:         guildID,
		RaidState:       gs.raid.Status(),
		JoinsLastMinute: gs.joins.Size(),
		TopOffenders:    gs.ledger.TopOffenders(10),
		ActiveWindows:   e.detector.WindowCount(),
	}
	if e.stats != nil {
		counts, err := e.stats.ViolationCounts(guildID)
		if err != nil {
			e.log.Warn("dashboard stats unavailable", zap.String("guild", guildID), zap.Error(err))
		} else {
			snap.ViolationCounts = counts
		}
		leaders, err := e.stats.TopOffenders(guildID, 10)
		if err != nil {
			e.log.Warn("dashboard leaderboard unavailable", zap.String("guild", guildID), zap.Error(err))
		} else {
			snap.DayOffenders = leaders
		}
	}
	if e.store != nil {
		recent, err := e.store.RecentViolations(guildID, 20)
		if err != nil {
			e.log.Warn("dashboard audit tail unavailable", zap.String("guild", guildID), zap.Error(err))
		} else {
			snap.RecentAudit = recent
		}
	}
	if hr, ok := e.exempter.(interface{ HitRate() float64 }); ok {
		snap.CacheHitRate = hr.HitRate()
	}
	return snap
}

func (e *Engine) appendViolation(entry *models.ViolationLogEntry) {
	if e.store == nil {
		return
	}
	go func() {
		if err := e.store.AppendViolation(entry); err != nil {
			e.log.Warn("violation audit write failed", zap.Error(err))
		}
	}()
}

func (e *Engine) appendRaidEvent(entry *models.RaidLogEntry) {
	if e.store == nil {
		return
	}
	go func() {
		if err := e.store.AppendRaidEvent(entry); err != nil {
			e.log.Warn("raid audit write failed", zap.Error(err))
		}
	}()
}
