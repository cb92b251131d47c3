package joins

import (
	"fmt"
	"testing"

	"go.uber.org/zap"

	"discord-guardian-bot/internal/config"
	"discord-guardian-bot/internal/models"
)

const dayMs = int64(24 * 60 * 60 * 1000)

func defaults() *config.Config {
	cfg := config.Defaults()
	return &cfg
}

func join(i int, tsMs int64) *models.JoinEvent {
	return &models.JoinEvent{
		GuildID:      "g1",
		MemberID:     fmt.Sprintf("member-%d", i),
		Username:     "regular_name",
		TimestampMs:  tsMs,
		AccountAgeMs: 30 * dayMs,
	}
}

func hasCheck(checks []models.JoinCheck, typ string) bool {
	for _, c := range checks {
		if c.Type == typ {
			return true
		}
	}
	return false
}

// burst records n joins spaced 10ms apart starting at base and returns
// the last assessment
func burst(m *Monitor, cfg *config.Config, n int, base int64) Assessment {
	var a Assessment
	for i := 0; i < n; i++ {
		a = m.Record(join(i, base+int64(i)*10), nil, cfg)
	}
	return a
}

func TestRaidLevelThresholds(t *testing.T) {
	cfg := defaults() // levels [10, 15, 20, 25]

	tests := []struct {
		joins int
		want  int
	}{
		{1, 0},
		{9, 0},
		{10, 1},
		{14, 1},
		{15, 2},
		{20, 3},
		{24, 3},
		{25, 4},
		{40, 4},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_joins", tt.joins), func(t *testing.T) {
			m := New()
			a := burst(m, cfg, tt.joins, 100_000)
			if a.RaidLevel != tt.want {
				t.Fatalf("%d joins/min: level %d, want %d", tt.joins, a.RaidLevel, tt.want)
			}
			if a.JoinsPerMinute != tt.joins {
				t.Fatalf("jpm = %d, want %d", a.JoinsPerMinute, tt.joins)
			}
		})
	}
}

func TestJoinRateCheckAtLevelOne(t *testing.T) {
	cfg := defaults()
	m := New()

	a := burst(m, cfg, 9, 100_000)
	if hasCheck(a.Checks, models.CheckJoinRate) {
		t.Fatal("join_rate flagged below level 1")
	}

	a = m.Record(join(9, 100_200), nil, cfg)
	if !hasCheck(a.Checks, models.CheckJoinRate) {
		t.Fatal("join_rate not flagged at level 1")
	}
}

func TestWindowSlidesOldJoinsOut(t *testing.T) {
	cfg := defaults()
	m := New()

	burst(m, cfg, 10, 100_000)

	// 61s later the old burst is out of the window
	a := m.Record(join(99, 100_000+61_000), nil, cfg)
	if a.JoinsPerMinute != 1 || a.RaidLevel != 0 {
		t.Fatalf("after window slide: jpm=%d level=%d", a.JoinsPerMinute, a.RaidLevel)
	}
}

func TestNewAccountCheck(t *testing.T) {
	cfg := defaults()
	m := New()

	ev := join(0, 100_000)
	ev.AccountAgeMs = 2 * dayMs
	a := m.Record(ev, nil, cfg)
	if !hasCheck(a.Checks, models.CheckNewAccount) {
		t.Fatal("2-day-old account not flagged")
	}

	ev = join(1, 100_100)
	ev.AccountAgeMs = 10 * dayMs
	a = m.Record(ev, nil, cfg)
	if hasCheck(a.Checks, models.CheckNewAccount) {
		t.Fatal("10-day-old account flagged")
	}
}

func TestUnknownAccountAgeNotFlagged(t *testing.T) {
	cfg := defaults()
	m := New()

	ev := join(0, 100_000)
	ev.AccountAgeMs = -1
	a := m.Record(ev, nil, cfg)
	if hasCheck(a.Checks, models.CheckNewAccount) {
		t.Fatal("unknown account age flagged as new")
	}
}

func TestSuspiciousNameCheck(t *testing.T) {
	cfg := defaults()
	patterns := config.CompilePatterns(cfg.SuspiciousPatterns, zap.NewNop())
	m := New()

	ev := join(0, 100_000)
	ev.Username = "user84921"
	a := m.Record(ev, patterns, cfg)
	if !hasCheck(a.Checks, models.CheckSuspiciousName) {
		t.Fatalf("suspicious name not flagged, checks=%+v", a.Checks)
	}

	ev = join(1, 100_100)
	a = m.Record(ev, patterns, cfg)
	if hasCheck(a.Checks, models.CheckSuspiciousName) {
		t.Fatal("plain name flagged")
	}
}

func TestDefaultAvatarCheck(t *testing.T) {
	cfg := defaults()
	m := New()

	ev := join(0, 100_000)
	ev.AvatarIsDefault = true
	a := m.Record(ev, nil, cfg)
	if !hasCheck(a.Checks, models.CheckDefaultAvatar) {
		t.Fatal("default avatar not flagged")
	}
}

func TestSlowBurnPromotion(t *testing.T) {
	cfg := defaults() // level 1 at 10 jpm, slow burn at 7

	m := New()
	burst(m, cfg, 6, 100_000)

	// Seventh joiner is suspicious: 7 jpm >= 0.7 * 10
	ev := join(6, 100_100)
	ev.AccountAgeMs = dayMs
	a := m.Record(ev, nil, cfg)
	if a.RaidLevel != 1 {
		t.Fatalf("slow-burn level = %d, want 1", a.RaidLevel)
	}
}

func TestSlowBurnNeedsSuspicion(t *testing.T) {
	cfg := defaults()
	m := New()

	// Seven clean joins at the slow-burn rate stay level 0
	a := burst(m, cfg, 7, 100_000)
	if a.RaidLevel != 0 {
		t.Fatalf("clean joins promoted to level %d", a.RaidLevel)
	}
}

func TestSlowBurnBelowRateNotPromoted(t *testing.T) {
	cfg := defaults()
	m := New()

	burst(m, cfg, 5, 100_000)

	// Sixth suspicious joiner: 6 jpm < 0.7 * 10
	ev := join(5, 100_100)
	ev.AccountAgeMs = dayMs
	a := m.Record(ev, nil, cfg)
	if a.RaidLevel != 0 {
		t.Fatalf("promoted at %d jpm, want level 0", a.JoinsPerMinute)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	cfg := defaults()
	m := New()
	burst(m, cfg, 12, 100_000)

	snap := m.Snapshot()

	restored := New()
	restored.Restore(snap)
	if restored.Size() != 12 {
		t.Fatalf("restored size = %d, want 12", restored.Size())
	}

	// The restored window carries the same rate state
	a := restored.Record(join(50, 100_200), nil, cfg)
	if a.JoinsPerMinute != 13 || a.RaidLevel != 1 {
		t.Fatalf("after restore: jpm=%d level=%d", a.JoinsPerMinute, a.RaidLevel)
	}
}

func TestPrune(t *testing.T) {
	cfg := defaults()
	m := New()
	burst(m, cfg, 8, 100_000)

	m.Prune(100_000 + 61_000)
	if m.Size() != 0 {
		t.Fatalf("size after prune = %d, want 0", m.Size())
	}
}

func BenchmarkRecord(b *testing.B) {
	cfg := defaults()
	patterns := config.CompilePatterns(cfg.SuspiciousPatterns, zap.NewNop())
	m := New()
	ev := join(0, 0)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		ev.TimestampMs = int64(i)
		m.Record(ev, patterns, cfg)
	}
}
