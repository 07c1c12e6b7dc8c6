package discord

import "github.com/bwmarrin/discordgo"

// commands is the full slash command surface, registered globally on
// startup.
var commands = []*discordgo.ApplicationCommand{
	{
		Name:        "random",
		Description: "Queues a random playlist from Google sheets",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Name:        "shuffle",
				Description: "Shuffle the playlist after queuing",
				Required:    false,
			},
		},
	},
	{
		Name:        "skip",
		Description: "Skips the current song",
	},
	{
		Name:        "play",
		Description: "Queue songs from specified URL",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "url",
				Description: "Song or album URL",
				Required:    true,
			},
		},
	},
	{
		Name:        "play_next",
		Description: "Add songs from specified URL to the front of the queue.",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "url",
				Description: "Song or album URL",
				Required:    true,
			},
		},
	},
	{
		Name:        "shuffle",
		Description: "Shuffles the current queue",
	},
	{
		Name:        "clear",
		Description: "Clears the current queue",
	},
	{
		Name:        "queue",
		Description: "Shows the current queue",
	},
	{
		Name:        "leave",
		Description: "Makes Skoipy leave the channel",
	},
	{
		Name:        "set_sheet_id",
		Description: "Sets the Google sheet used by the Random command",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "id",
				Description: "ID of the Google sheet being used",
				Required:    true,
			},
		},
	},
	{
		Name:        "auto_queue",
		Description: "When turned on, Skoipy will automatically queue up a playlist from your Google Sheet.",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Name:        "enabled",
				Description: "Set to True if you would like to enable auto queue for this session.",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Name:        "shuffle",
				Description: "Set to True if you would like to shuffle every playlist auto queued for this session.",
				Required:    false,
			},
		},
	},
	{
		Name:        "set_skoipy_api_key",
		Description: "Sets the API key used to generate Skoipy playlists",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "skoipy_api_key",
				Description: "Your Skoipy API key",
				Required:    true,
			},
		},
	},
	{
		Name:        "generate_and_play",
		Description: "Generates a new Skoipy playlist and adds the songs to the queue",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "generator_id",
				Description: "ID of the generator you would like to use for playlist generation",
				Required:    true,
			},
		},
	},
	{
		Name:        "auto_generate",
		Description: "Auto queues Skoipy generated playlists",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Name:        "enabled",
				Description: "Set to True if you would like to enable auto queue for this session.",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "generator_id",
				Description: "ID of the generator you would like to use for playlist generation",
				Required:    true,
			},
		},
	},
	{
		Name:        "set_override_sheet",
		Description: "Sets the Google Sheet id to check for any URL overrides",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "override_sheet_id",
				Description: "Your override Google Sheet id",
				Required:    true,
			},
		},
	},
}
