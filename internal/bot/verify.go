package bot

import (
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"discord-guardian-bot/internal/models"
)

// interactionCreate answers the captcha challenge DM: the button opens
// a code-entry modal, the modal submit checks the answer and grants
// the verified role on success. Both custom ids carry the guild id,
// because the exchange happens in a DM where the interaction itself
// has none.
func (b *Bot) interactionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionMessageComponent:
		customID := i.MessageComponentData().CustomID
		if !strings.HasPrefix(customID, models.CaptchaButtonPrefix) {
			return
		}
		guildID := strings.TrimPrefix(customID, models.CaptchaButtonPrefix)
		err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseModal,
			Data: &discordgo.InteractionResponseData{
				CustomID: models.CaptchaModalPrefix + guildID,
				Title:    "Raid Verification",
				Components: []discordgo.MessageComponent{
					discordgo.ActionsRow{
						Components: []discordgo.MessageComponent{
							discordgo.TextInput{
								CustomID:  "verify_code",
								Label:     "Enter the code from the image",
								Style:     discordgo.TextInputShort,
								Required:  true,
								MaxLength: 10,
							},
						},
					},
				},
			},
		})
		if err != nil {
			b.Logger.Warn("captcha modal failed", zap.Error(err))
		}

	case discordgo.InteractionModalSubmit:
		data := i.ModalSubmitData()
		if !strings.HasPrefix(data.CustomID, models.CaptchaModalPrefix) {
			return
		}
		guildID := strings.TrimPrefix(data.CustomID, models.CaptchaModalPrefix)
		userID := interactionUserID(i)
		if userID == "" {
			return
		}
		code := modalInput(data)

		reply, roleID := b.resolveVerification(guildID, userID, code)
		if roleID != "" {
			if err := s.GuildMemberRoleAdd(guildID, userID, roleID); err != nil {
				b.Logger.Warn("verified role grant failed",
					zap.String("guild", guildID), zap.String("user", userID), zap.Error(err))
			}
		}
		err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{Content: reply},
		})
		if err != nil {
			b.Logger.Warn("captcha reply failed", zap.Error(err))
		}
	}
}

// resolveVerification checks the answer against the pending challenge
// and decides the reply plus the role to grant on success
func (b *Bot) resolveVerification(guildID, userID, code string) (reply, grantRole string) {
	if b.Verifier == nil || !b.Verifier.Verify(guildID, userID, strings.TrimSpace(code)) {
		return "Wrong or expired code. Rejoin the server to receive a new challenge.", ""
	}

	b.Logger.Info("member verified",
		zap.String("guild", guildID), zap.String("user", userID))
	cfg := b.Engine.GetConfig(guildID)
	return "You are verified. Welcome!", cfg.VerifyRoleID
}

// interactionUserID handles both DM and guild interactions; only one
// of User and Member is set
func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.User != nil {
		return i.User.ID
	}
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	return ""
}

func modalInput(data discordgo.ModalSubmitInteractionData) string {
	for _, row := range data.Components {
		ar, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, c := range ar.Components {
			if in, ok := c.(*discordgo.TextInput); ok {
				return in.Value
			}
		}
	}
	return ""
}
