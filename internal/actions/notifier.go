package actions

import (
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"discord-guardian-bot/internal/metrics"
	"discord-guardian-bot/internal/models"
	"discord-guardian-bot/internal/utils"
)

type notification struct {
	channelID string
	embed     *discordgo.MessageEmbed
}

// NotifyViolation queues a violation embed for the moderation log
// channel. Queue overflow drops the notification with a metric bump;
// the pipeline never blocks on Discord.
func (e *Executor) NotifyViolation(channelID string, n *models.ViolationLogEntry) {
	e.enqueue(channelID, utils.ViolationEmbed(n))
}

// NotifyRaid queues a raid event embed
func (e *Executor) NotifyRaid(channelID string, n *models.RaidLogEntry) {
	e.enqueue(channelID, utils.RaidEmbed(n))
}

func (e *Executor) enqueue(channelID string, embed *discordgo.MessageEmbed) {
	select {
	case e.notifyQueue <- notification{channelID: channelID, embed: embed}:
	default:
		metrics.NotifyDropped.Inc()
	}
}

func (e *Executor) notifyWorker() {
	for n := range e.notifyQueue {
		if n.channelID == "" {
			continue
		}
		if _, err := e.session.ChannelMessageSendEmbed(n.channelID, n.embed); err != nil {
			metrics.ActionFailures.WithLabelValues("notify").Inc()
		}
	}
}

// CaptchaTracker remembers outstanding captcha challenges so a
// verification collaborator can check answers. Entries expire after
// ten minutes.
type CaptchaTracker struct {
	mu      sync.Mutex
	pending map[string]captchaEntry // "guildID:userID" -> entry
}

type captchaEntry struct {
	code   string
	issued time.Time
}

const captchaTTL = 10 * time.Minute

// NewCaptchaTracker creates an empty tracker
func NewCaptchaTracker() *CaptchaTracker {
	return &CaptchaTracker{pending: make(map[string]captchaEntry)}
}

// Track records the expected answer for a user's challenge
func (t *CaptchaTracker) Track(guildID, userID, code string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[guildID+":"+userID] = captchaEntry{code: code, issued: time.Now()}
}

// Verify checks an answer, consuming the challenge on success
func (t *CaptchaTracker) Verify(guildID, userID, answer string) bool {
	key := guildID + ":" + userID

	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.pending[key]
	if !ok || time.Since(entry.issued) > captchaTTL {
		delete(t.pending, key)
		return false
	}
	if entry.code != answer {
		return false
	}
	delete(t.pending, key)
	return true
}

// Prune drops expired challenges
func (t *CaptchaTracker) Prune() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, entry := range t.pending {
		if time.Since(entry.issued) > captchaTTL {
			delete(t.pending, key)
		}
	}
}
