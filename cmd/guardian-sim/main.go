package main

import (
	"flag"
	"fmt"
	"time"

	"go.uber.org/zap"

	"discord-guardian-bot/internal/config"
	"discord-guardian-bot/internal/engine"
	"discord-guardian-bot/internal/models"
)

// nopPlatform satisfies engine.Platform without a gateway; the
// simulator only measures the local decision pipeline
type nopPlatform struct{}

func (nopPlatform) DeleteMessage(string, string)                        {}
func (nopPlatform) SendWarning(string, string)                          {}
func (nopPlatform) TimeoutMember(string, string, time.Duration, string) {}
func (nopPlatform) KickMember(string, string, string)                   {}
func (nopPlatform) BanMember(string, string, string)                    {}
func (nopPlatform) LockChannels(guildID string, onLocked func(string) bool) {
	for i := 0; i < 10; i++ {
		onLocked(fmt.Sprintf("chan-%d", i))
	}
}
func (nopPlatform) UnlockChannels(string, []string)                   {}
func (nopPlatform) AssignRole(string, string, string)                 {}
func (nopPlatform) SendCaptchaChallenge(string, string)               {}
func (nopPlatform) NotifyViolation(string, *models.ViolationLogEntry) {}
func (nopPlatform) NotifyRaid(string, *models.RaidLogEntry)           {}
func (nopPlatform) PostWebhook(string, *models.RaidLogEntry)          {}

func main() {
	users := flag.Int("users", 50, "distinct spam senders")
	messages := flag.Int("messages", 20, "messages per sender")
	joins := flag.Int("joins", 40, "raid joins in one burst")
	flag.Parse()

	logger := zap.NewNop()
	eng := engine.New(logger, nopPlatform{}, nil, nil, nil, config.Defaults())

	guildID := "sim-guild"
	now := time.Now().UnixMilli()

	// Message storm: every sender fires a burst of identical messages
	start := time.Now()
	verdicts := 0
	for u := 0; u < *users; u++ {
		userID := fmt.Sprintf("user-%d", u)
		for m := 0; m < *messages; m++ {
			v := eng.EvaluateMessage(&models.MessageEvent{
				GuildID:     guildID,
				ChannelID:   "chan-0",
				MessageID:   fmt.Sprintf("msg-%d-%d", u, m),
				AuthorID:    userID,
				Content:     "free nitro click here",
				TimestampMs: now + int64(m*50),
			})
			if v != nil {
				verdicts++
			}
		}
	}
	msgElapsed := time.Since(start)

	total := *users * *messages
	fmt.Printf("messages: %d events, %d verdicts, %v total (%.1fµs/event)\n",
		total, verdicts, msgElapsed,
		float64(msgElapsed.Microseconds())/float64(total))

	// Join burst: enough fresh accounts in one minute to trip lockdown
	start = time.Now()
	raidLevel := 0
	for j := 0; j < *joins; j++ {
		v := eng.EvaluateJoin(&models.JoinEvent{
			GuildID:      guildID,
			MemberID:     fmt.Sprintf("raider-%d", j),
			Username:     fmt.Sprintf("user%06d", j),
			AccountAgeMs: int64(time.Hour / time.Millisecond),
			TimestampMs:  now + int64(j*100),
		})
		if v != nil && v.RaidLevel > raidLevel {
			raidLevel = v.RaidLevel
		}
	}
	joinElapsed := time.Since(start)

	snap := eng.GetDashboardSnapshot(guildID)
	fmt.Printf("joins: %d events, peak level %d, %v total (%.1fµs/event)\n",
		*joins, raidLevel, joinElapsed,
		float64(joinElapsed.Microseconds())/float64(*joins))
	fmt.Printf("raid active: %v, locked channels: %d, tracked offenders: %d\n",
		snap.RaidState.Active, len(snap.RaidState.LockedChannels), len(snap.TopOffenders))
}
