package bot

import (
	"github.com/bwmarrin/discordgo"

	"discord-guardian-bot/internal/cache"
)

// Exempter answers the engine's allowlist queries by combining the
// cached per-guild exemption sets with the session's member roster
// for role membership
type Exempter struct {
	session *discordgo.Session
	cache   *cache.ExemptionCache
}

// NewExempter wires the exemption cache to the session
func NewExempter(session *discordgo.Session, c *cache.ExemptionCache) *Exempter {
	return &Exempter{session: session, cache: c}
}

// Invalidate drops the guild's cached allowlist after a config update
func (e *Exempter) Invalidate(guildID string) {
	e.cache.Invalidate(guildID)
}

// HitRate reports the allowlist cache's L1 hit ratio for the dashboard
func (e *Exempter) HitRate() float64 {
	return e.cache.HitRate()
}

// IsExempt reports whether the user or channel is allowlisted for the
// guild, including through any allowlisted role the member holds
func (e *Exempter) IsExempt(guildID, userID, channelID string) bool {
	set := e.cache.Get(guildID)

	if _, ok := set.Users[userID]; ok {
		return true
	}
	if _, ok := set.Channels[channelID]; ok {
		return true
	}
	if len(set.Roles) == 0 {
		return false
	}

	member, err := e.session.State.Member(guildID, userID)
	if err != nil {
		return false
	}
	for _, roleID := range member.Roles {
		if _, ok := set.Roles[roleID]; ok {
			return true
		}
	}
	return false
}
