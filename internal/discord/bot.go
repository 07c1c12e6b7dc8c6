// Package discord connects the playback engine to the Discord gateway:
// slash commands, voice connections, and the ffmpeg audio pipeline.
package discord

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/skoipy/skoipy/internal/app/generator"
	"github.com/skoipy/skoipy/internal/app/player"
	"github.com/skoipy/skoipy/internal/app/queue"
	"github.com/skoipy/skoipy/internal/app/registry"
	"github.com/skoipy/skoipy/internal/domain/messages"
	"github.com/skoipy/skoipy/internal/domain/track"
	"github.com/skoipy/skoipy/internal/infra/store"
)

const embedColor = 0x6e108a

// Discord caps embeds at 25 fields.
const maxQueueFields = 25

// SettingsStore persists per-guild configuration.
type SettingsStore interface {
	GetOrCreate(ctx context.Context, guildID string) (store.ServerConfig, error)
	SetSheetsID(ctx context.Context, guildID, sheetsID string) error
	SetOverrideID(ctx context.Context, guildID, overrideID string) error
	SetSkoipyAPIKey(ctx context.Context, guildID, apiKey string) error
	SetAutoGenerate(ctx context.Context, guildID string, enabled bool) error
}

// Options holds the bot's collaborators and configuration.
type Options struct {
	Store    SettingsStore
	Expander *generator.Expander
	Refill   queue.RefillSource
	Notifier *GuildNotifier
	Resolver player.Resolver
	Tracker  player.Tracker
	Audio    Settings
	Playback player.Config
	Sessions registry.Config
}

// Bot owns the gateway session and routes slash commands to playback
// sessions.
type Bot struct {
	session  *discordgo.Session
	registry *registry.Registry
	store    SettingsStore
	expander *generator.Expander
	refill   queue.RefillSource
	notifier *GuildNotifier
	resolver player.Resolver
	tracker  player.Tracker
	audio    Settings
	playback player.Config

	mu         sync.Mutex
	registered []*discordgo.ApplicationCommand
}

// NewBot creates the bot and its session registry. The gateway stays
// closed until Open is called.
func NewBot(token string, opts Options) (*Bot, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Discord session")
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentsGuildVoiceStates

	b := &Bot{
		session:  dg,
		store:    opts.Store,
		expander: opts.Expander,
		refill:   opts.Refill,
		notifier: opts.Notifier,
		resolver: opts.Resolver,
		tracker:  opts.Tracker,
		audio:    opts.Audio,
		playback: opts.Playback,
	}
	b.registry = registry.New(opts.Sessions, b, NewLocator(dg))
	if b.notifier != nil {
		b.notifier.attach(dg)
	}

	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onInteraction)

	return b, nil
}

// Registry exposes the session registry for the reaper and shutdown.
func (b *Bot) Registry() *registry.Registry {
	return b.registry
}

// Open connects to the gateway.
func (b *Bot) Open() error {
	if err := b.session.Open(); err != nil {
		return errors.Wrap(err, "failed to open gateway connection")
	}
	return nil
}

// Close tears down every session and disconnects from the gateway.
func (b *Bot) Close(ctx context.Context) error {
	b.registry.Close(ctx)
	return b.session.Close()
}

// NewSession joins the voice channel and assembles the playback
// pipeline for a guild. Implements the registry's session factory.
func (b *Bot) NewSession(ctx context.Context, guildID, voiceChannelID, textChannelID string) (*player.Session, error) {
	vc, err := b.session.ChannelVoiceJoin(guildID, voiceChannelID, false, true)
	if err != nil {
		return nil, errors.Wrap(err, "failed to join voice channel")
	}

	if b.notifier != nil {
		b.notifier.Bind(guildID, textChannelID)
	}

	q := queue.New(guildID, b.refill)
	if cfg, err := b.store.GetOrCreate(ctx, guildID); err == nil && cfg.AutoGenerate {
		q.SetAutoQueue(true, 0)
	}

	return player.NewSession(guildID, b.playback, player.Deps{
		Queue:    q,
		Conn:     &voiceConn{session: b.session, guildID: guildID, channelID: voiceChannelID, vc: vc},
		Audio:    newFFmpegPlayer(vc, b.audio),
		Notifier: &channelNotifier{session: b.session, channelID: textChannelID},
		Resolver: b.resolver,
		Tracker:  b.tracker,
	}), nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	zlog.Info().Msgf("discord: gateway ready: user=%s guilds=%d", r.User.Username, len(r.Guilds))

	registered, err := s.ApplicationCommandBulkOverwrite(r.User.ID, "", commands)
	if err != nil {
		zlog.Error().Msgf("discord: command registration failed: err=%v", err)
		return
	}
	b.mu.Lock()
	b.registered = registered
	b.mu.Unlock()
	zlog.Info().Msgf("discord: commands registered: count=%d", len(registered))
}

func (b *Bot) onInteraction(_ *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	if i.GuildID == "" {
		b.respondEphemeral(i, "This command only works in a server")
		return
	}
	// Handlers block on playlist expansion and playback start, so they
	// get their own goroutine.
	go b.handleCommand(i)
}

func (b *Bot) handleCommand(i *discordgo.InteractionCreate) {
	ctx := context.Background()
	data := i.ApplicationCommandData()
	opts := optionMap(data.Options)

	zlog.Debug().Msgf("discord: command received: guild=%s command=%s", i.GuildID, data.Name)

	switch data.Name {
	case "play":
		b.handlePlay(ctx, i, opts["url"].StringValue(), false)
	case "play_next":
		b.handlePlay(ctx, i, opts["url"].StringValue(), true)
	case "random":
		b.handleRandom(ctx, i, boolOption(opts, "shuffle"))
	case "skip":
		b.handleSkip(ctx, i)
	case "shuffle":
		b.handleShuffle(ctx, i)
	case "clear":
		b.handleClear(ctx, i)
	case "queue":
		b.handleQueue(ctx, i)
	case "leave":
		b.handleLeave(ctx, i)
	case "auto_queue":
		b.handleAutoQueue(ctx, i, opts["enabled"].BoolValue(), boolOption(opts, "shuffle"))
	case "auto_generate":
		b.handleAutoGenerate(ctx, i, opts["enabled"].BoolValue(), int(opts["generator_id"].IntValue()))
	case "generate_and_play":
		b.handleGenerateAndPlay(ctx, i, int(opts["generator_id"].IntValue()))
	case "set_sheet_id":
		b.handleSetSheetID(ctx, i, opts["id"].StringValue())
	case "set_override_sheet":
		b.handleSetOverrideSheet(ctx, i, opts["override_sheet_id"].StringValue())
	case "set_skoipy_api_key":
		b.handleSetSkoipyAPIKey(ctx, i, opts["skoipy_api_key"].StringValue())
	default:
		b.respondEphemeral(i, "Command not found")
	}
}

// lookupSession resolves the guild's session, creating one joined to
// the caller's voice channel when needed.
func (b *Bot) lookupSession(ctx context.Context, i *discordgo.InteractionCreate) (*player.Session, error) {
	return b.registry.GetOrCreate(ctx, i.GuildID, i.Member.User.ID, i.ChannelID)
}

func sessionErrorMessage(err error) string {
	if errors.Is(err, registry.ErrNotInVoiceChannel) {
		return messages.NotInVoice
	}
	return "Could not join your voice channel"
}

func expandErrorMessage(err error) string {
	if errors.Is(err, generator.ErrUnsupported) {
		return messages.Unsupported
	}
	return messages.FetchFailed
}

func (b *Bot) handlePlay(ctx context.Context, i *discordgo.InteractionCreate, url string, next bool) {
	b.deferResponse(i)

	s, err := b.lookupSession(ctx, i)
	if err != nil {
		b.editResponse(i, sessionErrorMessage(err))
		return
	}

	cfg, err := b.store.GetOrCreate(ctx, i.GuildID)
	if err != nil {
		zlog.Warn().Msgf("discord: config lookup failed: guild=%s err=%v", i.GuildID, err)
	}

	refs, err := b.expander.Expand(ctx, url, track.RequesterTypeUser, cfg.OverrideID)
	if err != nil {
		zlog.Warn().Msgf("discord: expand failed: guild=%s input=%q err=%v", i.GuildID, url, err)
		b.editResponse(i, expandErrorMessage(err))
		return
	}
	if len(refs) == 0 {
		b.editResponse(i, messages.FetchFailed)
		return
	}

	if next {
		b.editResponse(i, fmt.Sprintf("Queued %d track(s) to play next", len(refs)))
	} else {
		b.editResponse(i, fmt.Sprintf("Queued %d track(s)", len(refs)))
	}
	s.Play(ctx, refs, next)
}

func (b *Bot) handleRandom(ctx context.Context, i *discordgo.InteractionCreate, shuffleAfter bool) {
	b.deferResponse(i)

	s, err := b.lookupSession(ctx, i)
	if err != nil {
		b.editResponse(i, sessionErrorMessage(err))
		return
	}

	// A random queue always drops back to the random source for any
	// auto-refill that follows.
	enabled, _ := s.AutoQueue()
	s.SetAutoQueue(enabled, 0)

	refs, err := b.refill.Fetch(ctx, i.GuildID, 0)
	if err != nil {
		zlog.Warn().Msgf("discord: random fetch failed: guild=%s err=%v", i.GuildID, err)
		b.editResponse(i, expandErrorMessage(err))
		return
	}

	b.editResponse(i, fmt.Sprintf("Queued %d track(s)", len(refs)))
	s.Play(ctx, refs, false)
	if shuffleAfter {
		s.Shuffle()
	}
}

func (b *Bot) handleSkip(ctx context.Context, i *discordgo.InteractionCreate) {
	s, err := b.lookupSession(ctx, i)
	if err != nil {
		b.respondEphemeral(i, sessionErrorMessage(err))
		return
	}

	b.respondEphemeral(i, "Skipping...")
	s.Skip(ctx)
}

func (b *Bot) handleShuffle(ctx context.Context, i *discordgo.InteractionCreate) {
	s, err := b.lookupSession(ctx, i)
	if err != nil {
		b.respondEphemeral(i, sessionErrorMessage(err))
		return
	}

	s.Shuffle()
	b.respond(i, messages.QueueShuffled)
}

func (b *Bot) handleClear(ctx context.Context, i *discordgo.InteractionCreate) {
	s, err := b.lookupSession(ctx, i)
	if err != nil {
		b.respondEphemeral(i, sessionErrorMessage(err))
		return
	}

	s.Clear()
	b.respond(i, messages.QueueCleared)
}

func (b *Bot) handleQueue(ctx context.Context, i *discordgo.InteractionCreate) {
	s, err := b.lookupSession(ctx, i)
	if err != nil {
		b.respondEphemeral(i, sessionErrorMessage(err))
		return
	}

	current, _ := s.Current()
	b.respondEmbed(i, queueEmbed(current, s.QueueSnapshot()))
}

func (b *Bot) handleLeave(ctx context.Context, i *discordgo.InteractionCreate) {
	if _, ok := b.registry.Get(i.GuildID); !ok {
		b.respondEphemeral(i, "Skoipy is not in a voice channel")
		return
	}

	b.respondEphemeral(i, "Leaving the channel")
	b.registry.Remove(ctx, i.GuildID)
}

func (b *Bot) handleAutoQueue(ctx context.Context, i *discordgo.InteractionCreate, enabled, shuffleEach bool) {
	s, err := b.lookupSession(ctx, i)
	if err != nil {
		b.respondEphemeral(i, sessionErrorMessage(err))
		return
	}

	s.SetAutoQueue(enabled, 0)
	s.SetRefillShuffle(shuffleEach)
	if enabled {
		b.respond(i, "Auto queue enabled")
	} else {
		b.respond(i, "Auto queue disabled")
	}
}

func (b *Bot) handleAutoGenerate(ctx context.Context, i *discordgo.InteractionCreate, enabled bool, generatorID int) {
	s, err := b.lookupSession(ctx, i)
	if err != nil {
		b.respondEphemeral(i, sessionErrorMessage(err))
		return
	}

	if !enabled {
		generatorID = 0
	}
	s.SetAutoQueue(enabled, generatorID)
	if err := b.store.SetAutoGenerate(ctx, i.GuildID, enabled); err != nil {
		zlog.Warn().Msgf("discord: auto generate save failed: guild=%s err=%v", i.GuildID, err)
	}
	if enabled {
		b.respond(i, fmt.Sprintf("Auto generate enabled with generator %d", generatorID))
	} else {
		b.respond(i, "Auto generate disabled")
	}
}

func (b *Bot) handleGenerateAndPlay(ctx context.Context, i *discordgo.InteractionCreate, generatorID int) {
	b.deferResponse(i)

	s, err := b.lookupSession(ctx, i)
	if err != nil {
		b.editResponse(i, sessionErrorMessage(err))
		return
	}

	refs, err := b.refill.Fetch(ctx, i.GuildID, generatorID)
	if err != nil {
		zlog.Warn().Msgf("discord: playlist generation failed: guild=%s generator=%d err=%v",
			i.GuildID, generatorID, err)
		b.editResponse(i, "Could not generate a playlist. Did you set your Skoipy API key?")
		return
	}

	b.editResponse(i, fmt.Sprintf("Queued %d track(s)", len(refs)))
	s.Play(ctx, refs, false)
}

func (b *Bot) handleSetSheetID(ctx context.Context, i *discordgo.InteractionCreate, sheetID string) {
	if err := b.store.SetSheetsID(ctx, i.GuildID, sheetID); err != nil {
		zlog.Error().Msgf("discord: sheet id save failed: guild=%s err=%v", i.GuildID, err)
		b.respondEphemeral(i, "Could not save the sheet id")
		return
	}
	b.respond(i, fmt.Sprintf("Set sheets id to: %s", sheetID))
}

func (b *Bot) handleSetOverrideSheet(ctx context.Context, i *discordgo.InteractionCreate, sheetID string) {
	if err := b.store.SetOverrideID(ctx, i.GuildID, sheetID); err != nil {
		zlog.Error().Msgf("discord: override sheet save failed: guild=%s err=%v", i.GuildID, err)
		b.respondEphemeral(i, "Could not save the override sheet id")
		return
	}
	b.respond(i, fmt.Sprintf("Set override sheet id to: %s", sheetID))
}

func (b *Bot) handleSetSkoipyAPIKey(ctx context.Context, i *discordgo.InteractionCreate, apiKey string) {
	if err := b.store.SetSkoipyAPIKey(ctx, i.GuildID, apiKey); err != nil {
		zlog.Error().Msgf("discord: api key save failed: guild=%s err=%v", i.GuildID, err)
		b.respondEphemeral(i, "Could not save the API key")
		return
	}
	// The key is a secret, keep the confirmation out of the channel.
	b.respondEphemeral(i, "Skoipy API key saved")
}

// queueEmbed renders the pending queue, capped at Discord's field
// limit.
func queueEmbed(current *track.Track, pending []track.Reference) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: "Your Queue",
		Color: embedColor,
	}

	if current != nil {
		line := current.Title
		if artists := current.ArtistLine(); artists != "" {
			line = fmt.Sprintf("%s - %s", current.Title, artists)
		}
		embed.Description = fmt.Sprintf("Now playing: %s", line)
	} else if len(pending) == 0 {
		embed.Description = messages.QueueEmpty
	}

	for idx, ref := range pending {
		if idx == maxQueueFields {
			embed.Footer = &discordgo.MessageEmbedFooter{
				Text: fmt.Sprintf("...and %d more", len(pending)-maxQueueFields),
			}
			break
		}
		title := ref.Title
		if title == "" {
			title = ref.Query
		}
		artist := ref.Artist
		if artist == "" {
			artist = "unknown"
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("%d.) %s", idx+1, title),
			Value: artist,
		})
	}
	return embed
}

func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		m[opt.Name] = opt
	}
	return m
}

func boolOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) bool {
	if opt, ok := opts[name]; ok {
		return opt.BoolValue()
	}
	return false
}

func (b *Bot) respond(i *discordgo.InteractionCreate, content string) {
	err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content},
	})
	if err != nil {
		zlog.Warn().Msgf("discord: interaction response failed: err=%v", err)
	}
}

func (b *Bot) respondEphemeral(i *discordgo.InteractionCreate, content string) {
	err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		zlog.Warn().Msgf("discord: interaction response failed: err=%v", err)
	}
}

func (b *Bot) respondEmbed(i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
		},
	})
	if err != nil {
		zlog.Warn().Msgf("discord: interaction response failed: err=%v", err)
	}
}

func (b *Bot) deferResponse(i *discordgo.InteractionCreate) {
	err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		zlog.Warn().Msgf("discord: interaction defer failed: err=%v", err)
	}
}

func (b *Bot) editResponse(i *discordgo.InteractionCreate, content string) {
	_, err := b.session.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &content,
	})
	if err != nil {
		zlog.Warn().Msgf("discord: interaction edit failed: err=%v", err)
	}
}
