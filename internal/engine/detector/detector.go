package detector

import (
	"sync"

	"discord-guardian-bot/internal/config"
	"discord-guardian-bot/internal/models"
)

// cooldownTripLimit is how many consecutive cooldown trips escalate
// into a distinct violation
const cooldownTripLimit = 3

// Detector runs every message heuristic against a user's recent
// window. Checks are independent: one message can raise several
// violations at once.
type Detector struct {
	windows sync.Map // "guildID:userID" -> *userWindow
}

// New creates a detector with no history
func New() *Detector {
	return &Detector{}
}

func (d *Detector) window(guildID, userID string) *userWindow {
	key := guildID + ":" + userID
	val, ok := d.windows.Load(key)
	if !ok {
		val, _ = d.windows.LoadOrStore(key, &userWindow{})
	}
	return val.(*userWindow)
}

// Check evaluates all heuristics for one message and returns the
// violations found. The message is always appended to the sender's
// window afterwards, whatever the outcome, so future duplicate and
// rate checks see it.
func (d *Detector) Check(ev *models.MessageEvent, cfg *config.Config) []models.Violation {
	w := d.window(ev.GuildID, ev.AuthorID)

	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(ev.TimestampMs)

	var violations []models.Violation

	// Per-second rate: prior messages in the last 1000ms plus this one
	if w.countSinceLocked(ev.TimestampMs-1000)+1 >= cfg.MessagesPerSecond {
		violations = append(violations, models.Violation{
			Type: models.ViolationRateSecond, Severity: models.SeverityMedium,
		})
	}

	// Per-minute rate
	if w.countSinceLocked(ev.TimestampMs-60_000)+1 >= cfg.MessagesPerMinute {
		violations = append(violations, models.Violation{
			Type: models.ViolationRateMinute, Severity: models.SeverityMedium,
		})
	}

	// Cooldown: messaging faster than the cooldown gap. Three
	// consecutive trips raise a distinct violation and reset the
	// counter; one clean gap resets it too.
	if w.lastMessageMs > 0 && ev.TimestampMs-w.lastMessageMs < cfg.CooldownMs {
		w.cooldownViolation++
		if w.cooldownViolation >= cooldownTripLimit {
			violations = append(violations, models.Violation{
				Type: models.ViolationCooldownAbuse, Severity: models.SeverityMedium,
			})
			w.cooldownViolation = 0
		}
	} else {
		w.cooldownViolation = 0
	}
	w.lastMessageMs = ev.TimestampMs

	// Duplicate content: prior identical messages in the window plus
	// this one
	if ev.Content != "" {
		dupes := w.countDuplicatesLocked(ev.Content, ev.TimestampMs-cfg.DuplicateWindowMs) + 1
		if dupes >= cfg.DuplicateThreshold {
			violations = append(violations, models.Violation{
				Type: models.ViolationDuplicate, Severity: models.SeverityMedium,
			})
		}
	}

	// Mention spam
	if ev.TotalMentions() >= cfg.MentionThreshold {
		violations = append(violations, models.Violation{
			Type: models.ViolationMentionSpam, Severity: models.SeverityHigh,
		})
	}

	// Link spam
	if CountLinks(ev.Content) >= cfg.LinkThreshold {
		violations = append(violations, models.Violation{
			Type: models.ViolationLinkSpam, Severity: models.SeverityMedium,
		})
	}

	// Emoji spam
	if CountEmojis(ev.Content) >= cfg.EmojiThreshold {
		violations = append(violations, models.Violation{
			Type: models.ViolationEmojiSpam, Severity: models.SeverityLow,
		})
	}

	w.appendLocked(models.MessageRecord{
		AuthorID:    ev.AuthorID,
		Content:     ev.Content,
		TimestampMs: ev.TimestampMs,
		Violations:  models.ViolationTypes(violations),
	})

	return violations
}

// Prune drops stale entries from every window and removes windows with
// no activity in the retention period. Called by the periodic sweep.
// Returns the number of windows removed.
func (d *Detector) Prune(nowMs int64) int {
	removed := 0
	d.windows.Range(func(key, val interface{}) bool {
		w := val.(*userWindow)
		if nowMs-w.lastActivityMs() > windowRetentionMs {
			d.windows.Delete(key)
			removed++
			return true
		}
		w.mu.Lock()
		w.pruneLocked(nowMs)
		w.mu.Unlock()
		return true
	})
	return removed
}

// WindowCount reports how many user windows are live, for metrics
func (d *Detector) WindowCount() int {
	count := 0
	d.windows.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}
