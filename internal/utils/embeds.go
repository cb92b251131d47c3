package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"discord-guardian-bot/internal/models"
)

const (
	colorRed    = 0xed4245
	colorOrange = 0xe67e22
	colorGreen  = 0x57f287
)

// ViolationEmbed builds the moderation-log embed for one violation
func ViolationEmbed(entry *models.ViolationLogEntry) *discordgo.MessageEmbed {
	names := make([]string, len(entry.Types))
	for i, t := range entry.Types {
		names[i] = models.GetViolationDisplayName(t)
	}

	return &discordgo.MessageEmbed{
		Title:     "🛡️ Violation Detected",
		Color:     colorRed,
		Timestamp: time.UnixMilli(entry.CreatedAt).Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "User", Value: "<@" + entry.UserID + ">", Inline: true},
			{Name: "Action", Value: entry.Action, Inline: true},
			{Name: "Strikes", Value: fmt.Sprintf("%d", entry.Strikes), Inline: true},
			{Name: "Violations", Value: strings.Join(names, "\n"), Inline: false},
		},
	}
}

// RaidEmbed builds the moderation-log embed for a raid state event
func RaidEmbed(entry *models.RaidLogEntry) *discordgo.MessageEmbed {
	title := "🚨 Raid Mode"
	color := colorOrange
	switch entry.Event {
	case models.RaidEventActivated:
		title = "🚨 Raid Mode Activated"
		color = colorRed
	case models.RaidEventLockdown:
		title = "🔒 Server Lockdown"
		color = colorRed
	case models.RaidEventDeactivated:
		title = "✅ Raid Mode Deactivated"
		color = colorGreen
	}

	embed := &discordgo.MessageEmbed{
		Title:     title,
		Color:     color,
		Timestamp: time.UnixMilli(entry.CreatedAt).Format(time.RFC3339),
	}
	if entry.Level > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Level", Value: fmt.Sprintf("%d", entry.Level), Inline: true,
		})
	}
	if entry.Details != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Details", Value: entry.Details, Inline: true,
		})
	}
	return embed
}

// WarningEmbed builds the DM sent alongside a delete+warn action
func WarningEmbed(reason string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "⚠️ Moderation Warning",
		Description: reason + "\n\nContinued violations will lead to a timeout or removal.",
		Color:       colorOrange,
	}
}
