package actions

import (
	"bytes"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"discord-guardian-bot/internal/metrics"
	"discord-guardian-bot/internal/models"
	"discord-guardian-bot/internal/utils"
)

// Executor performs platform calls on behalf of the engine. Every
// method returns immediately; the real API call runs in a goroutine
// and a failure is logged and counted, never propagated back into the
// decision pipeline.
type Executor struct {
	session *discordgo.Session
	log     *zap.Logger
	http    *http.Client

	notifyQueue chan notification
	captchas    *CaptchaTracker
}

// New creates an executor and starts its notification worker
func New(session *discordgo.Session, logger *zap.Logger) *Executor {
	e := &Executor{
		session:     session,
		log:         logger,
		http:        &http.Client{Timeout: 10 * time.Second},
		notifyQueue: make(chan notification, 1000),
		captchas:    NewCaptchaTracker(),
	}
	go e.notifyWorker()
	go e.captchaPruner()
	return e
}

func (e *Executor) captchaPruner() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		e.captchas.Prune()
	}
}

// Captchas exposes the pending-captcha tracker so a verification
// collaborator can check answers
func (e *Executor) Captchas() *CaptchaTracker {
	return e.captchas
}

func (e *Executor) run(action string, call func() error) {
	go func() {
		if err := call(); err != nil {
			metrics.ActionFailures.WithLabelValues(action).Inc()
			e.log.Warn("platform call failed",
				zap.String("action", action), zap.Error(err))
		}
	}()
}

// DeleteMessage removes the offending message
func (e *Executor) DeleteMessage(channelID, messageID string) {
	if messageID == "" {
		return
	}
	e.run(models.ActionDelete, func() error {
		return e.session.ChannelMessageDelete(channelID, messageID)
	})
}

// SendWarning DMs the user the violation summary
func (e *Executor) SendWarning(userID, content string) {
	e.run("warn_dm", func() error {
		ch, err := e.session.UserChannelCreate(userID)
		if err != nil {
			return err
		}
		_, err = e.session.ChannelMessageSendEmbed(ch.ID, utils.WarningEmbed(content))
		return err
	})
}

// TimeoutMember applies a communication timeout
func (e *Executor) TimeoutMember(guildID, userID string, duration time.Duration, reason string) {
	e.run(models.ActionTimeout, func() error {
		until := time.Now().Add(duration)
		return e.session.GuildMemberTimeout(guildID, userID, &until)
	})
}

// KickMember removes the member from the guild
func (e *Executor) KickMember(guildID, userID, reason string) {
	e.run(models.ActionKick, func() error {
		return e.session.GuildMemberDeleteWithReason(guildID, userID, reason)
	})
}

// BanMember bans the member
func (e *Executor) BanMember(guildID, userID, reason string) {
	e.run(models.ActionBan, func() error {
		return e.session.GuildBanCreateWithReason(guildID, userID, reason, 0)
	})
}

// AssignRole grants the verification role to a flagged joiner
func (e *Executor) AssignRole(guildID, userID, roleID string) {
	e.run("assign_role", func() error {
		return e.session.GuildMemberRoleAdd(guildID, userID, roleID)
	})
}

// SendCaptchaChallenge DMs a generated captcha image to a joiner and
// tracks the expected answer. The button opens the code-entry modal
// handled on the gateway side.
func (e *Executor) SendCaptchaChallenge(guildID, userID string) {
	e.run("captcha", func() error {
		captcha, err := utils.GenerateCaptcha()
		if err != nil {
			return err
		}
		e.captchas.Track(guildID, userID, captcha.Code)

		ch, err := e.session.UserChannelCreate(userID)
		if err != nil {
			return err
		}
		_, err = e.session.ChannelMessageSendComplex(ch.ID, &discordgo.MessageSend{
			Embeds: []*discordgo.MessageEmbed{{
				Title:       "Raid Verification",
				Description: "This server is under raid protection. Solve the captcha below to verify yourself.",
				Image:       &discordgo.MessageEmbedImage{URL: "attachment://captcha.png"},
			}},
			Files: []*discordgo.File{
				{Name: "captcha.png", ContentType: "image/png", Reader: bytes.NewReader(captcha.Image)},
			},
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.Button{
							Label:    "Enter Verification Code",
							Style:    discordgo.PrimaryButton,
							CustomID: models.CaptchaButtonPrefix + guildID,
						},
					},
				},
			},
		})
		return err
	})
}

// LockChannels denies send-message on every text channel of the guild,
// reporting each channel actually locked through onLocked. A false
// return means the lock came too late to be recorded and is reverted
// on the spot.
func (e *Executor) LockChannels(guildID string, onLocked func(channelID string) bool) {
	e.run("lockdown", func() error {
		channels, err := e.session.GuildChannels(guildID)
		if err != nil {
			return err
		}
		for _, ch := range channels {
			if ch.Type != discordgo.ChannelTypeGuildText {
				continue
			}
			err := e.session.ChannelPermissionSet(ch.ID, guildID,
				discordgo.PermissionOverwriteTypeRole, 0, discordgo.PermissionSendMessages)
			if err != nil {
				metrics.ActionFailures.WithLabelValues("lock_channel").Inc()
				e.log.Warn("channel lock failed",
					zap.String("channel", ch.ID), zap.Error(err))
				continue
			}
			// The episode can end while this loop is still running. A
			// deny the engine refuses to record has no revert set
			// covering it, so it must come off right here.
			if !onLocked(ch.ID) {
				if err := e.session.ChannelPermissionDelete(ch.ID, guildID); err != nil {
					metrics.ActionFailures.WithLabelValues("unlock").Inc()
					e.log.Warn("late lock revert failed",
						zap.String("channel", ch.ID), zap.Error(err))
				}
			}
		}
		return nil
	})
}

// UnlockChannels clears the lockdown deny on the recorded channels.
// A channel that is gone or already reverted is a no-op.
func (e *Executor) UnlockChannels(guildID string, channelIDs []string) {
	e.run("unlock", func() error {
		for _, channelID := range channelIDs {
			err := e.session.ChannelPermissionDelete(channelID, guildID)
			if err != nil {
				e.log.Debug("channel unlock skipped",
					zap.String("channel", channelID), zap.Error(err))
			}
		}
		return nil
	})
}

// PostWebhook POSTs a raid event to the configured external webhook
func (e *Executor) PostWebhook(url string, n *models.RaidLogEntry) {
	e.run("webhook", func() error {
		payload, err := json.Marshal(map[string]interface{}{
			"guild_id":  n.GuildID,
			"event":     n.Event,
			"level":     n.Level,
			"details":   n.Details,
			"timestamp": n.CreatedAt,
		})
		if err != nil {
			return err
		}
		resp, err := e.http.Post(url, "application/json", bytes.NewReader(payload))
		if err != nil {
			return err
		}
		resp.Body.Close()
		return nil
	})
}
