package discord

import (
	"sync"

	"github.com/bwmarrin/discordgo"
	zlog "github.com/rs/zerolog/log"
)

// channelNotifier posts session messages to a fixed text channel.
type channelNotifier struct {
	session   *discordgo.Session
	channelID string
}

func (n *channelNotifier) Send(msg string) {
	if _, err := n.session.ChannelMessageSend(n.channelID, msg); err != nil {
		zlog.Warn().Msgf("discord: message send failed: channel=%s err=%v", n.channelID, err)
	}
}

// GuildNotifier posts messages to each guild's bound text channel. The
// auto-queue refill uses it to announce playlists outside any command
// context.
type GuildNotifier struct {
	mu       sync.RWMutex
	session  *discordgo.Session
	channels map[string]string
}

// NewGuildNotifier creates an unbound notifier. The bot attaches the
// gateway session when it starts.
func NewGuildNotifier() *GuildNotifier {
	return &GuildNotifier{channels: make(map[string]string)}
}

func (n *GuildNotifier) attach(s *discordgo.Session) {
	n.mu.Lock()
	n.session = s
	n.mu.Unlock()
}

// Bind points a guild's notifications at a text channel.
func (n *GuildNotifier) Bind(guildID, channelID string) {
	n.mu.Lock()
	n.channels[guildID] = channelID
	n.mu.Unlock()
}

// NotifyGuild sends a message to the guild's bound channel. Guilds
// without a bound channel are skipped.
func (n *GuildNotifier) NotifyGuild(guildID, msg string) {
	n.mu.RLock()
	session := n.session
	channelID := n.channels[guildID]
	n.mu.RUnlock()

	if session == nil || channelID == "" {
		zlog.Debug().Msgf("discord: no channel bound for guild: guild=%s", guildID)
		return
	}
	if _, err := session.ChannelMessageSend(channelID, msg); err != nil {
		zlog.Warn().Msgf("discord: guild message send failed: guild=%s err=%v", guildID, err)
	}
}
