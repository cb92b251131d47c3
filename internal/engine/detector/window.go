package detector

import (
	"sync"

	"discord-guardian-bot/internal/models"
)

// windowCapacity bounds each user's message ring; oldest entries are
// silently evicted on overflow
const windowCapacity = 100

// windowRetentionMs is how long a message stays relevant to any check
const windowRetentionMs = 60_000

// userWindow holds one user's recent messages plus their cooldown
// state. All access goes through mu so one user's events never
// interleave.
type userWindow struct {
	mu       sync.Mutex
	messages []models.MessageRecord

	lastMessageMs     int64
	cooldownViolation int // consecutive cooldown trips
}

// pruneLocked drops entries older than the retention window.
// Caller holds mu.
func (w *userWindow) pruneLocked(nowMs int64) {
	cutoff := nowMs - windowRetentionMs
	i := 0
	for i < len(w.messages) && w.messages[i].TimestampMs < cutoff {
		i++
	}
	if i > 0 {
		w.messages = append(w.messages[:0], w.messages[i:]...)
	}
}

// appendLocked adds a record, truncating to the last windowCapacity
// entries. Caller holds mu.
func (w *userWindow) appendLocked(rec models.MessageRecord) {
	w.messages = append(w.messages, rec)
	if len(w.messages) > windowCapacity {
		w.messages = append(w.messages[:0], w.messages[len(w.messages)-windowCapacity:]...)
	}
}

// countSinceLocked counts messages at or after cutoff. Caller holds mu.
func (w *userWindow) countSinceLocked(cutoffMs int64) int {
	count := 0
	for i := len(w.messages) - 1; i >= 0; i-- {
		if w.messages[i].TimestampMs < cutoffMs {
			break
		}
		count++
	}
	return count
}

// countDuplicatesLocked counts prior messages within the window whose
// content matches case-insensitively. Caller holds mu.
func (w *userWindow) countDuplicatesLocked(content string, cutoffMs int64) int {
	count := 0
	for i := len(w.messages) - 1; i >= 0; i-- {
		if w.messages[i].TimestampMs < cutoffMs {
			break
		}
		if SameContent(w.messages[i].Content, content) {
			count++
		}
	}
	return count
}

// lastActivityMs returns the newest message timestamp, 0 when empty
func (w *userWindow) lastActivityMs() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.messages) == 0 {
		return w.lastMessageMs
	}
	return w.messages[len(w.messages)-1].TimestampMs
}
