package discord

import (
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/PhazonicRidley/mod-mail-internal/pkg/config"
	"github.com/PhazonicRidley/mod-mail-internal/pkg/shared"
	"github.com/PhazonicRidley/mod-mail-internal/pkg/store"
	"github.com/PhazonicRidley/mod-mail-internal/pkg/topics"
)

// Bot wires the Discord session to the topic engine and the settings
// store. Every dependency is injected at creation; nothing lives in
// package state.
type Bot struct {
	session  *discordgo.Session
	store    *store.Store
	service  *topics.Service
	log      *zap.Logger
	activity string
}

// Create builds the session and the engine behind it. The session is not
// opened yet; callers Open after wiring is done.
func Create(cfg config.Config, st *store.Store, log *zap.Logger) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, err
	}
	dg.Identify.Intents = discordgo.IntentsGuilds

	b := &Bot{
		session:  dg,
		store:    st,
		service:  topics.New(st, &sessionPlatform{s: dg}, log),
		log:      log,
		activity: cfg.Activity,
	}
	dg.AddHandler(b.ready)
	dg.AddHandler(b.interactionCreate)
	return b, nil
}

// Service exposes the topic engine, used at boot for control recovery.
func (b *Bot) Service() *topics.Service {
	return b.service
}

func (b *Bot) Open() error {
	return b.session.Open()
}

func (b *Bot) Close() error {
	return b.session.Close()
}

func (b *Bot) ready(s *discordgo.Session, r *discordgo.Ready) {
	b.log.Info("bot has started", zap.String("user", r.User.Username))
	if b.activity != "" {
		if err := s.UpdateListeningStatus(b.activity); err != nil {
			b.log.Warn("failed to set activity", zap.Error(err))
		}
	}
}

// interactionCreate routes every incoming interaction: slash commands by
// name, components and modals by their custom id.
func (b *Bot) interactionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.GuildID == "" || i.Member == nil {
		b.respondEphemeral(i, "You cannot use this command outside of a server!")
		return
	}

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		switch data.Name {
		case "topic":
			b.handleTopicCommand(s, i, data)
		case "channel":
			b.handleChannelCommand(s, i, data)
		case "role":
			b.handleRoleCommand(s, i, data)
		default:
			b.log.Warn("unrecognized command", zap.String("command", data.Name))
		}
	case discordgo.InteractionMessageComponent:
		b.handleComponent(s, i)
	case discordgo.InteractionModalSubmit:
		b.handleModal(s, i)
	}
}

// actorFrom reads the invoking member fresh off the interaction, so role
// changes between invocations are always respected.
func actorFrom(i *discordgo.InteractionCreate) topics.Actor {
	return topics.Actor{
		ID:      i.Member.User.ID,
		RoleIDs: i.Member.Roles,
		IsAdmin: i.Member.Permissions&discordgo.PermissionAdministrator != 0,
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
		b.log.Warn("failed to respond to interaction", zap.Error(err))
	}
}

// respondErr renders a command failure. Expected control-flow failures go
// back verbatim as ephemeral responses and are not logged as errors;
// faults are logged with context and answered generically.
func (b *Bot) respondErr(i *discordgo.InteractionCreate, operation string, err error) {
	if !shared.Expected(err) {
		b.log.Error("command failed",
			zap.String("operation", operation),
			zap.String("guild_id", i.GuildID),
			zap.String("channel_id", i.ChannelID),
			zap.Error(err))
	}
	b.respondEphemeral(i, shared.UserMessage(err))
}
