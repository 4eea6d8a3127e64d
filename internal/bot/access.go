package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"attendancebot/internal/attendance"

	"github.com/bwmarrin/discordgo"
)

// access answers role and presence questions from the gateway state cache,
// falling back to the REST API when the cache misses.
type access struct {
	session      *discordgo.Session
	highRankRole string
}

func (a *access) member(guildID, userID string) (*discordgo.Member, error) {
	if m, err := a.session.State.Member(guildID, userID); err == nil {
		return m, nil
	}
	return a.session.GuildMember(guildID, userID)
}

func (a *access) roleName(guildID, roleID string) string {
	if role, err := a.session.State.Role(guildID, roleID); err == nil {
		return role.Name
	}
	roles, err := a.session.GuildRoles(guildID)
	if err != nil {
		return ""
	}
	for _, role := range roles {
		if role.ID == roleID {
			return role.Name
		}
	}
	return ""
}

// HasElevatedRole reports whether the member holds the configured high-rank role.
func (a *access) HasElevatedRole(_ context.Context, guildID, userID string) bool {
	m, err := a.member(guildID, userID)
	if err != nil {
		log.Print(formatLogMessage(guildID, fmt.Sprintf("Error getting guild member: %v", err), userID, ""))
		return false
	}
	return hasRoleNamed(m.Roles, a.highRankRole, func(id string) string {
		return a.roleName(guildID, id)
	})
}

// InVoiceChannel reports whether userID is connected to channelID right now.
func (a *access) InVoiceChannel(_ context.Context, guildID, channelID, userID string) (bool, error) {
	vs, err := a.session.State.VoiceState(guildID, userID)
	if errors.Is(err, discordgo.ErrStateNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return vs.ChannelID == channelID, nil
}

// voiceChannel resolves the monitored channel of a shift.
func (a *access) voiceChannel(channelID string) (*discordgo.Channel, error) {
	if ch, err := a.session.State.Channel(channelID); err == nil {
		return ch, nil
	}
	ch, err := a.session.Channel(channelID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", attendance.ErrVoiceChannelUnavailable, err)
	}
	return ch, nil
}

func hasRoleNamed(roleIDs []string, want string, nameOf func(id string) string) bool {
	for _, id := range roleIDs {
		if strings.EqualFold(nameOf(id), want) {
			return true
		}
	}
	return false
}
