package raid

import (
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"discord-guardian-bot/internal/models"
)

func TestActivateOnce(t *testing.T) {
	m := New()

	if !m.Activate(3, time.Hour, nil) {
		t.Fatal("first activation refused")
	}
	if m.Activate(4, time.Hour, nil) {
		t.Fatal("second activation accepted while active")
	}

	s := m.Status()
	if !s.Active || s.Level != 3 {
		t.Fatalf("status = %+v, want active level 3", s)
	}
}

func TestEscalateOnlyUpward(t *testing.T) {
	m := New()
	m.Activate(1, time.Hour, nil)

	if !m.Escalate(3) {
		t.Fatal("upward escalation refused")
	}
	if m.Escalate(2) {
		t.Fatal("downward escalation accepted")
	}
	if m.Escalate(3) {
		t.Fatal("same-level escalation accepted")
	}
	if s := m.Status(); s.Level != 3 {
		t.Fatalf("level = %d, want 3", s.Level)
	}
}

func TestEscalateInactiveRefused(t *testing.T) {
	m := New()
	if m.Escalate(2) {
		t.Fatal("escalation accepted while inactive")
	}
}

func TestDeactivateReturnsLockedSet(t *testing.T) {
	m := New()
	m.Activate(4, time.Hour, nil)
	m.RecordLocked("c1")
	m.RecordLocked("c2")
	m.RecordLocked("c2") // duplicates collapse

	locked, ok := m.Deactivate()
	if !ok {
		t.Fatal("deactivation refused")
	}
	sort.Strings(locked)
	if len(locked) != 2 || locked[0] != "c1" || locked[1] != "c2" {
		t.Fatalf("locked = %v", locked)
	}

	if s := m.Status(); s.Active || s.Level != 0 || len(s.LockedChannels) != 0 {
		t.Fatalf("status after deactivation = %+v", s)
	}
}

func TestDeactivateIdempotent(t *testing.T) {
	m := New()
	m.Activate(3, time.Hour, nil)

	if _, ok := m.Deactivate(); !ok {
		t.Fatal("first deactivation refused")
	}
	if locked, ok := m.Deactivate(); ok || locked != nil {
		t.Fatalf("second deactivation returned (%v, %v)", locked, ok)
	}
}

func TestRecordLockedAfterEndIgnored(t *testing.T) {
	m := New()
	m.Activate(3, time.Hour, nil)
	m.Deactivate()

	if m.RecordLocked("c1") {
		t.Fatal("locked channel recorded after episode ended")
	}

	// The stale record must not surface in the next episode
	m.Activate(3, time.Hour, nil)
	locked, _ := m.Deactivate()
	if len(locked) != 0 {
		t.Fatalf("next episode inherited locked channels: %v", locked)
	}
}

func TestTimerExpiryFiresOnce(t *testing.T) {
	m := New()

	var fired int32
	m.Activate(2, 10*time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
		m.Deactivate()
	})

	time.Sleep(50 * time.Millisecond)
	if n := atomic.LoadInt32(&fired); n != 1 {
		t.Fatalf("onExpire fired %d times, want 1", n)
	}
	if m.Active() {
		t.Fatal("still active after expiry")
	}
}

func TestManualDeactivationCancelsTimer(t *testing.T) {
	m := New()

	var fired int32
	m.Activate(2, 20*time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
	})
	m.Deactivate()

	time.Sleep(60 * time.Millisecond)
	if n := atomic.LoadInt32(&fired); n != 0 {
		t.Fatalf("cancelled timer still fired %d times", n)
	}
}

func TestNewEpisodeAfterExpiry(t *testing.T) {
	m := New()

	m.Activate(1, time.Hour, nil)
	m.Deactivate()

	if !m.Activate(2, time.Hour, nil) {
		t.Fatal("re-activation after deactivation refused")
	}
	if s := m.Status(); s.Level != 2 {
		t.Fatalf("level = %d, want 2", s.Level)
	}
}

func TestRestoreReinstatesState(t *testing.T) {
	m := New()

	var fired int32
	m.Restore(models.RaidState{
		Active:         true,
		Level:          3,
		LockedChannels: []string{"c1", "c2"},
	}, 10*time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
	})

	s := m.Status()
	if !s.Active || s.Level != 3 || len(s.LockedChannels) != 2 {
		t.Fatalf("restored status = %+v", s)
	}

	// The re-armed timer still fires
	time.Sleep(50 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 1 {
		t.Fatal("restored timer did not fire")
	}
}

func TestRestoreInactiveIsNoop(t *testing.T) {
	m := New()
	m.Restore(models.RaidState{Active: false, Level: 2}, time.Hour, nil)
	if m.Active() {
		t.Fatal("inactive snapshot activated the manager")
	}
}

func TestConcurrentActivateDeactivate(t *testing.T) {
	m := New()

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.Activate(2, time.Hour, nil) {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("%d concurrent activations won, want 1", wins)
	}

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := m.Deactivate(); ok {
				atomic.AddInt32(&wins, -1)
			}
		}()
	}
	wg.Wait()

	if wins != 0 {
		t.Fatalf("deactivation wins mismatch: %d", wins)
	}
}
