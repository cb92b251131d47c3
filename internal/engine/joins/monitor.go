package joins

import (
	"sync"

	"discord-guardian-bot/internal/config"
	"discord-guardian-bot/internal/models"
)

// joinWindowMs is the trailing window joins/minute is computed over
const joinWindowMs = 60_000

// slowBurnFactor promotes level 0 to 1 for suspicious joiners arriving
// just below the level-1 rate, catching slow-burn raids. Expressed as
// tenths (7 = 0.7x).
const slowBurnFactorTenths = 7

// Assessment is the outcome of recording one join
type Assessment struct {
	Checks         []models.JoinCheck
	RaidLevel      int
	JoinsPerMinute int
}

// Monitor tracks one guild's trailing join window and classifies each
// join against the configured raid thresholds
type Monitor struct {
	mu     sync.Mutex
	window []models.JoinRecord
}

// New creates an empty monitor
func New() *Monitor {
	return &Monitor{}
}

// Record adds a join to the window, prunes it to the trailing minute
// and runs every heuristic check. Checks are independent; all run.
func (m *Monitor) Record(ev *models.JoinEvent, patterns *config.PatternSet, cfg *config.Config) Assessment {
	m.mu.Lock()
	m.window = append(m.window, models.JoinRecord{
		UserID:       ev.MemberID,
		TimestampMs:  ev.TimestampMs,
		AccountAgeMs: ev.AccountAgeMs,
	})
	m.pruneLocked(ev.TimestampMs)
	jpm := len(m.window)
	m.mu.Unlock()

	var checks []models.JoinCheck

	level := raidLevel(jpm, cfg)
	if level >= 1 {
		checks = append(checks, models.JoinCheck{
			Type: models.CheckJoinRate, Severity: models.SeverityHigh,
		})
	}

	suspicious := false
	if ev.AccountAgeMs >= 0 && ev.AccountAgeMs < cfg.NewAccountAgeMs() {
		checks = append(checks, models.JoinCheck{
			Type: models.CheckNewAccount, Severity: models.SeverityMedium,
		})
		suspicious = true
	}
	if patterns != nil && patterns.Match(ev.Username) {
		checks = append(checks, models.JoinCheck{
			Type: models.CheckSuspiciousName, Severity: models.SeverityMedium,
		})
		suspicious = true
	}
	if ev.AvatarIsDefault {
		checks = append(checks, models.JoinCheck{
			Type: models.CheckDefaultAvatar, Severity: models.SeverityLow,
		})
	}

	// Slow-burn promotion: suspicious joiners at 0.7x the level-1 rate
	// still register as a level-1 signal
	if level == 0 && suspicious && jpm*10 >= cfg.JoinRateLevels[0]*slowBurnFactorTenths {
		level = 1
	}

	return Assessment{Checks: checks, RaidLevel: level, JoinsPerMinute: jpm}
}

// raidLevel maps joins/minute to a level in 0..4 against the four
// escalating thresholds
func raidLevel(jpm int, cfg *config.Config) int {
	level := 0
	for i, threshold := range cfg.JoinRateLevels {
		if jpm >= threshold {
			level = i + 1
		}
	}
	return level
}

func (m *Monitor) pruneLocked(nowMs int64) {
	cutoff := nowMs - joinWindowMs
	i := 0
	for i < len(m.window) && m.window[i].TimestampMs < cutoff {
		i++
	}
	if i > 0 {
		m.window = append(m.window[:0], m.window[i:]...)
	}
}

// Prune drops stale joins; called by the 30s sweep
func (m *Monitor) Prune(nowMs int64) {
	m.mu.Lock()
	m.pruneLocked(nowMs)
	m.mu.Unlock()
}

// Snapshot returns a copy of the current window for persistence
func (m *Monitor) Snapshot() []models.JoinRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.JoinRecord(nil), m.window...)
}

// Restore replaces the window from a persisted snapshot
func (m *Monitor) Restore(window []models.JoinRecord) {
	m.mu.Lock()
	m.window = append([]models.JoinRecord(nil), window...)
	m.mu.Unlock()
}

// Size returns the current window length
func (m *Monitor) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.window)
}
