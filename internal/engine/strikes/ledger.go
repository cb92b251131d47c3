package strikes

import (
	"sort"
	"sync"

	"discord-guardian-bot/internal/models"
)

// reasonCap bounds the reason history on one record, FIFO eviction
const reasonCap = 20

// Ledger accumulates disciplinary strikes per user. Count only grows
// through AddStrike and only shrinks through Decay, never below zero.
type Ledger struct {
	mu      sync.Mutex
	records map[string]*models.StrikeRecord // userID -> record
}

// New creates an empty ledger
func New() *Ledger {
	return &Ledger{records: make(map[string]*models.StrikeRecord)}
}

// AddStrike increments the user's count by weight, appends a reason
// entry and returns the new total. Weight is the number of violations
// in the triggering event.
func (l *Ledger) AddStrike(userID string, weight int, reason string, nowMs int64) int {
	if weight <= 0 {
		weight = 1
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[userID]
	if !ok {
		rec = &models.StrikeRecord{}
		l.records[userID] = rec
	}

	rec.Count += weight
	rec.LastUpdateMs = nowMs
	rec.Reasons = append(rec.Reasons, models.StrikeReason{Text: reason, TimestampMs: nowMs})
	if len(rec.Reasons) > reasonCap {
		rec.Reasons = append(rec.Reasons[:0], rec.Reasons[len(rec.Reasons)-reasonCap:]...)
	}

	return rec.Count
}

// Get returns a copy of the user's record, or nil if none exists
func (l *Ledger) Get(userID string) *models.StrikeRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[userID]
	if !ok {
		return nil
	}
	cp := *rec
	cp.Reasons = append([]models.StrikeReason(nil), rec.Reasons...)
	return &cp
}

// Reset clears a user's record entirely (manual moderator override)
func (l *Ledger) Reset(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.records, userID)
}

// Decay removes at most one strike from every user whose record has
// been idle longer than decayWindowMs, refreshing LastUpdateMs so the
// next strike comes off a full window later. Records that reach zero
// are removed. Returns how many users decayed.
func (l *Ledger) Decay(nowMs, decayWindowMs int64) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	decayed := 0
	for userID, rec := range l.records {
		if rec.Count <= 0 {
			delete(l.records, userID)
			continue
		}
		if nowMs-rec.LastUpdateMs < decayWindowMs {
			continue
		}
		rec.Count--
		rec.LastUpdateMs = nowMs
		decayed++
		if rec.Count == 0 {
			delete(l.records, userID)
		}
	}
	return decayed
}

// TopOffenders returns up to n users ordered by strike count descending
func (l *Ledger) TopOffenders(n int) []models.ViolationLogEntry {
	type pair struct {
		userID string
		count  int
	}

	l.mu.Lock()
	pairs := make([]pair, 0, len(l.records))
	for userID, rec := range l.records {
		pairs = append(pairs, pair{userID, rec.Count})
	}
	l.mu.Unlock()

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].count > pairs[j].count })
	if len(pairs) > n {
		pairs = pairs[:n]
	}

	out := make([]models.ViolationLogEntry, len(pairs))
	for i, p := range pairs {
		out[i] = models.ViolationLogEntry{UserID: p.userID, Strikes: p.count}
	}
	return out
}

// Snapshot returns a deep copy of every record, for the persistence
// flush. Safe against concurrent mutation.
func (l *Ledger) Snapshot() map[string]*models.StrikeRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]*models.StrikeRecord, len(l.records))
	for userID, rec := range l.records {
		cp := *rec
		cp.Reasons = append([]models.StrikeReason(nil), rec.Reasons...)
		out[userID] = &cp
	}
	return out
}

// Restore replaces the ledger contents with a previously persisted
// snapshot. Used once at startup.
func (l *Ledger) Restore(records map[string]*models.StrikeRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = make(map[string]*models.StrikeRecord, len(records))
	for userID, rec := range records {
		cp := *rec
		cp.Reasons = append([]models.StrikeReason(nil), rec.Reasons...)
		l.records[userID] = &cp
	}
}
