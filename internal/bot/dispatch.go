package bot

import (
	"github.com/bwmarrin/discordgo"

	"discord-guardian-bot/internal/engine/fastpath"
	"discord-guardian-bot/internal/models"
)

// dispatch converts a ring event into the engine's model and runs the
// matching pipeline. Runs on the single consumer goroutine.
func (b *Bot) dispatch(evt fastpath.FastEvent) {
	switch evt.Kind {
	case fastpath.KindMessage:
		if evt.Bot {
			return
		}
		b.Engine.EvaluateMessage(&models.MessageEvent{
			GuildID:         evt.GuildID,
			ChannelID:       evt.ChannelID,
			MessageID:       evt.MessageID,
			AuthorID:        evt.UserID,
			Content:         evt.Content,
			TimestampMs:     evt.TimestampMs,
			MentionUsers:    evt.MentionUsers,
			MentionRoles:    evt.MentionRoles,
			MentionEveryone: evt.MentionEveryone,
			AuthorIsBot:     evt.Bot,
			AuthorIsAdmin:   b.memberIsAdmin(evt.GuildID, evt.UserID),
		})
	case fastpath.KindJoin:
		if evt.Bot {
			return
		}
		b.Engine.EvaluateJoin(&models.JoinEvent{
			GuildID:         evt.GuildID,
			MemberID:        evt.UserID,
			Username:        evt.Username,
			AccountAgeMs:    evt.AccountAgeMs,
			AvatarIsDefault: evt.AvatarIsDefault,
			TimestampMs:     evt.TimestampMs,
			IsAdmin:         b.memberIsAdmin(evt.GuildID, evt.UserID),
		})
	}
}

// memberIsAdmin checks the cached member's roles for administrator
// permission. Unknown members are not admins; detection errs toward
// checking rather than exempting.
func (b *Bot) memberIsAdmin(guildID, userID string) bool {
	guild, err := b.Session.State.Guild(guildID)
	if err != nil {
		return false
	}
	if guild.OwnerID == userID {
		return true
	}

	member, err := b.Session.State.Member(guildID, userID)
	if err != nil {
		return false
	}
	for _, roleID := range member.Roles {
		role, err := b.Session.State.Role(guildID, roleID)
		if err != nil {
			continue
		}
		if role.Permissions&discordgo.PermissionAdministrator != 0 {
			return true
		}
	}
	return false
}
