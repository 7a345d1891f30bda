package adapter

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"tallyd/internal/engine"
	"tallyd/internal/models"
	"tallyd/internal/providers"
	"tallyd/internal/structures"
)

// DiscordAdapter translates gateway events into normalized engine events
// and answers presence questions for restart recovery. With no token
// configured the adapter is inert and the HTTP ingest path remains the
// only event source.
type DiscordAdapter struct {
	session *discordgo.Session
	eng     *engine.Engine
	logger  providers.Logger
	enabled bool
}

func NewDiscordAdapter(conf *structures.Config, eng *engine.Engine, logger providers.Logger) (*DiscordAdapter, error) {
	if conf.Discord.Token == "" {
		logger.Infof(providers.TypeAdapter, "No Discord token configured, adapter disabled")
		return &DiscordAdapter{eng: eng, logger: logger}, nil
	}

	session, err := discordgo.New("Bot " + conf.Discord.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent
	session.StateEnabled = true

	a := &DiscordAdapter{
		session: session,
		eng:     eng,
		logger:  logger,
		enabled: true,
	}

	session.AddHandler(a.voiceStateUpdate)
	session.AddHandler(a.messageCreate)

	return a, nil
}

func (a *DiscordAdapter) Open() error {
	if !a.enabled {
		return nil
	}
	if err := a.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	a.logger.Infof(providers.TypeAdapter, "Discord gateway connected")
	return nil
}

func (a *DiscordAdapter) Close() error {
	if !a.enabled {
		return nil
	}
	return a.session.Close()
}

// voiceStateUpdate derives the presence kind from the before/after
// channel pair and forwards a normalized event.
func (a *DiscordAdapter) voiceStateUpdate(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	if vs.Member != nil && vs.Member.User != nil && vs.Member.User.Bot {
		return
	}

	before := ""
	if vs.BeforeUpdate != nil {
		before = vs.BeforeUpdate.ChannelID
	}
	after := vs.ChannelID

	ev := &models.PresenceEvent{
		UserID:    vs.UserID,
		GuildID:   vs.GuildID,
		Timestamp: time.Now().UTC(),
	}

	switch {
	case before == "" && after != "":
		ev.Kind = models.PresenceJoined
		ev.ChannelID = after
	case before != "" && after == "":
		ev.Kind = models.PresenceLeft
	case before != after:
		ev.Kind = models.PresenceMoved
		ev.FromChannelID = before
		ev.ChannelID = after
	default:
		// Mute/deafen toggles arrive as voice-state updates too; they
		// are not presence transitions.
		return
	}

	a.eng.ProcessPresence(ev)
}

func (a *DiscordAdapter) messageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}

	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	a.eng.ProcessMessage(&models.MessageEvent{
		UserID:    m.Author.ID,
		GuildID:   m.GuildID,
		Content:   m.Content,
		Timestamp: ts,
	})
}

// InChannel reports whether the user is currently in the given channel
// according to gateway state. When the adapter is disabled there is no
// presence signal, so recovery treats everyone as absent.
func (a *DiscordAdapter) InChannel(userID, guildID, channelID string) bool {
	if !a.enabled {
		return false
	}
	guild, err := a.session.State.Guild(guildID)
	if err != nil {
		return false
	}
	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID && vs.ChannelID == channelID {
			return true
		}
	}
	return false
}
