package raid

import (
	"sync"
	"time"

	"discord-guardian-bot/internal/models"
)

// Manager is one guild's raid-mode state machine:
// Normal -> RaidMode (optionally Lockdown) -> Normal.
// Exactly one deactivation timer is armed per episode; re-activation
// while active is a no-op.
type Manager struct {
	mu             sync.Mutex
	active         bool
	level          int
	lockedChannels map[string]struct{}

	// cancel belongs to the current episode's timer goroutine. Closed
	// on deactivation so a pending timer can never fire stale.
	cancel chan struct{}
}

// New creates a manager in the Normal state
func New() *Manager {
	return &Manager{lockedChannels: make(map[string]struct{})}
}

// Activate enters raid mode at the given level and arms the
// deactivation timer. Returns false without side effects when already
// active: episodes never stack and the countdown never restarts.
// onExpire runs when the timer fires without a manual deactivation.
func (m *Manager) Activate(level int, duration time.Duration, onExpire func()) bool {
	m.mu.Lock()
	if m.active {
		m.mu.Unlock()
		return false
	}
	m.active = true
	m.level = level
	cancel := make(chan struct{})
	m.cancel = cancel
	m.mu.Unlock()

	go func() {
		timer := time.NewTimer(duration)
		defer timer.Stop()
		select {
		case <-timer.C:
			if onExpire != nil {
				onExpire()
			}
		case <-cancel:
		}
	}()

	return true
}

// Escalate raises the level of an already-active episode. No-op when
// inactive or when the new level is not higher.
func (m *Manager) Escalate(level int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active || level <= m.level {
		return false
	}
	m.level = level
	return true
}

// RecordLocked remembers a channel the lockdown denied send-message
// on, so deactivation can revert exactly that set. Ignored when the
// episode already ended.
func (m *Manager) RecordLocked(channelID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return false
	}
	m.lockedChannels[channelID] = struct{}{}
	return true
}

// Deactivate returns to Normal, cancelling the pending timer, and
// hands back the channels to revert. Active flag and locked set are
// cleared atomically. Idempotent: a second call returns (nil, false).
func (m *Manager) Deactivate() ([]string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return nil, false
	}

	locked := make([]string, 0, len(m.lockedChannels))
	for id := range m.lockedChannels {
		locked = append(locked, id)
	}

	m.active = false
	m.level = 0
	m.lockedChannels = make(map[string]struct{})
	if m.cancel != nil {
		close(m.cancel)
		m.cancel = nil
	}
	return locked, true
}

// Status returns the current state for dashboards and snapshots
func (m *Manager) Status() models.RaidState {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := models.RaidState{Active: m.active, Level: m.level}
	for id := range m.lockedChannels {
		state.LockedChannels = append(state.LockedChannels, id)
	}
	return state
}

// Active reports whether a raid episode is in progress
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Restore reinstates a persisted raid state after a restart. The
// deactivation timer is re-armed for the full duration so a crash
// mid-raid cannot leak a permanent lock.
func (m *Manager) Restore(state models.RaidState, duration time.Duration, onExpire func()) {
	if !state.Active {
		return
	}
	if m.Activate(state.Level, duration, onExpire) {
		m.mu.Lock()
		for _, id := range state.LockedChannels {
			m.lockedChannels[id] = struct{}{}
		}
		m.mu.Unlock()
	}
}
