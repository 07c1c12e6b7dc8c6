package discord

import (
	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
)

// voiceConn adapts a discordgo voice connection to the session's view
// of it. The channel is fixed at join time.
type voiceConn struct {
	session   *discordgo.Session
	guildID   string
	channelID string
	vc        *discordgo.VoiceConnection
}

func (c *voiceConn) ChannelID() string {
	return c.channelID
}

// MemberCount counts voice states in the connected channel. The bot's
// own state is included.
func (c *voiceConn) MemberCount() (int, error) {
	guild, err := c.session.State.Guild(c.guildID)
	if err != nil {
		return 0, errors.Wrapf(err, "guild state unavailable: %s", c.guildID)
	}

	count := 0
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID == c.channelID {
			count++
		}
	}
	return count, nil
}

func (c *voiceConn) Disconnect() error {
	return c.vc.Disconnect()
}

// Locator finds users in voice channels via the gateway state cache.
type Locator struct {
	session *discordgo.Session
}

// NewLocator creates a locator backed by the given gateway session.
func NewLocator(s *discordgo.Session) *Locator {
	return &Locator{session: s}
}

// UserVoiceChannel returns the voice channel the user occupies, if any.
func (l *Locator) UserVoiceChannel(guildID, userID string) (string, bool) {
	guild, err := l.session.State.Guild(guildID)
	if err != nil {
		return "", false
	}

	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID {
			return vs.ChannelID, true
		}
	}
	return "", false
}

// UserDisplayName returns the user's server nickname, falling back to
// their account name.
func (l *Locator) UserDisplayName(guildID, userID string) string {
	member, err := l.session.State.Member(guildID, userID)
	if err != nil || member == nil || member.User == nil {
		return "friend"
	}
	if member.Nick != "" {
		return member.Nick
	}
	if member.User.GlobalName != "" {
		return member.User.GlobalName
	}
	return member.User.Username
}
