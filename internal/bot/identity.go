package bot

import (
	"github.com/bwmarrin/discordgo"
)

// identity is how a user is shown in messages.
type identity struct {
	DisplayName string
	Mention     string
}

// identityResolver looks a user up in one source; ok is false on a miss.
type identityResolver interface {
	resolve(guildID, userID string) (identity, bool)
}

// identityChain tries each resolver in order and degrades to a raw id.
type identityChain []identityResolver

func (c identityChain) Resolve(guildID, userID string) identity {
	for _, r := range c {
		if id, ok := r.resolve(guildID, userID); ok {
			return id
		}
	}
	return fallbackIdentity(userID)
}

func fallbackIdentity(userID string) identity {
	return identity{
		DisplayName: "User " + userID,
		Mention:     "<@" + userID + ">",
	}
}

func newIdentityChain(s *discordgo.Session) identityChain {
	return identityChain{
		memberResolver{session: s},
		userResolver{session: s},
	}
}

// memberResolver reads the cached guild member, preferring the nickname.
type memberResolver struct {
	session *discordgo.Session
}

func (r memberResolver) resolve(guildID, userID string) (identity, bool) {
	if guildID == "" {
		return identity{}, false
	}
	m, err := r.session.State.Member(guildID, userID)
	if err != nil || m.User == nil {
		return identity{}, false
	}
	name := m.Nick
	if name == "" {
		name = m.User.Username
	}
	return identity{DisplayName: name, Mention: m.Mention()}, true
}

// userResolver asks the API for the global user.
type userResolver struct {
	session *discordgo.Session
}

func (r userResolver) resolve(_, userID string) (identity, bool) {
	u, err := r.session.User(userID)
	if err != nil || u == nil {
		return identity{}, false
	}
	return identity{DisplayName: u.Username, Mention: u.Mention()}, true
}
