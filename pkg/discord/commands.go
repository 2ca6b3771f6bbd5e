package discord

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/PhazonicRidley/mod-mail-internal/pkg/shared"
	"github.com/PhazonicRidley/mod-mail-internal/pkg/store"
	"github.com/PhazonicRidley/mod-mail-internal/pkg/topics"
)

const (
	modalEditPrefix  = "topic-edit:"
	modalClosePrefix = "topic-close:"
)

// RegisterCommands overwrites the application command set. Must run after
// Open, once the session knows its own application id.
func (b *Bot) RegisterCommands() error {
	adminOnly := int64(discordgo.PermissionAdministrator)
	noDMs := false
	threadTypes := []discordgo.ChannelType{
		discordgo.ChannelTypeGuildPublicThread,
		discordgo.ChannelTypeGuildPrivateThread,
	}

	commands := []*discordgo.ApplicationCommand{
		{
			Name:         "topic",
			Description:  "Manage discussion topics",
			DMPermission: &noDMs,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "create",
					Description: "Creates a new topic",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "topic_name",
							Description: "The name of your topic",
							Required:    true,
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "description_message",
							Description: "The message describing the topic",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "edit",
					Description: "Edits a topic message",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:         discordgo.ApplicationCommandOptionChannel,
							Name:         "thread",
							Description:  "The thread of the topic you want to edit",
							ChannelTypes: threadTypes,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "close",
					Description: "Closes a topic, either your own or any topic as an admin",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:         discordgo.ApplicationCommandOptionChannel,
							Name:         "thread",
							Description:  "The thread you wish to close",
							ChannelTypes: threadTypes,
						},
					},
				},
			},
		},
		{
			Name:                     "channel",
			Description:              "Used to manage the channel for topics",
			DMPermission:             &noDMs,
			DefaultMemberPermissions: &adminOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "set",
					Description: "Sets the active topic channel for this server",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:         discordgo.ApplicationCommandOptionChannel,
							Name:         "channel",
							Description:  "The forum channel to set",
							Required:     true,
							ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildForum},
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "unset",
					Description: "Unsets the active topic channel for this server",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "list",
					Description: "Lists the current topic channel",
				},
			},
		},
		{
			Name:                     "role",
			Description:              "Used to manage approved roles to make topics",
			DMPermission:             &noDMs,
			DefaultMemberPermissions: &adminOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "add",
					Description: "Allows a role to make new topics",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionRole,
							Name:        "role",
							Description: "The role to be added",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "remove",
					Description: "Removes a role from the topic whitelist",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionRole,
							Name:        "role",
							Description: "The role to remove",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "list",
					Description: "Lists all whitelisted roles that can make topics",
				},
			},
		},
	}

	_, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, "", commands)
	return err
}

func (b *Bot) handleTopicCommand(s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if len(data.Options) == 0 {
		return
	}
	sub := data.Options[0]
	switch sub.Name {
	case "create":
		b.topicCreate(s, i, sub)
	case "edit":
		b.topicEdit(s, i, sub)
	case "close":
		b.topicClose(s, i, sub)
	}
}

func (b *Bot) topicCreate(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	var name, message string
	for _, opt := range sub.Options {
		switch opt.Name {
		case "topic_name":
			name = opt.StringValue()
		case "description_message":
			message = opt.StringValue()
		}
	}

	// The interaction id is a platform-issued snowflake, unique per
	// guild-scope, and doubles as the topic id.
	threadID, err := b.service.Create(context.Background(), i.GuildID, actorFrom(i), i.ID, name, message)
	if err != nil {
		b.respondErr(i, "topic create", err)
		return
	}
	b.respondEphemeral(i, "Topic added in thread <#"+threadID+">, You have been automatically placed in favor of this topic.")
}

// topicEdit validates the target thread and the actor, then opens the
// editing modal. The real mutation happens on modal submit.
func (b *Bot) topicEdit(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	ctx := context.Background()
	actor := actorFrom(i)
	if err := b.service.Authorize(ctx, i.GuildID, actor); err != nil {
		b.respondErr(i, "topic edit", err)
		return
	}
	thread, err := b.service.ResolveThread(ctx, i.GuildID, suppliedThreadID(sub), i.ChannelID)
	if err != nil {
		b.respondErr(i, "topic edit", err)
		return
	}
	t, err := b.store.TopicByThread(ctx, thread.ID)
	if err != nil {
		b.respondErr(i, "topic edit", mapStoreErr(err))
		return
	}
	if t.AuthorID != actor.ID {
		b.respondEphemeral(i, "You cannot edit this topic as you did not create it.")
		return
	}
	b.openEditModal(i, t.ID)
}

// topicClose validates the target thread and the closer, then opens the
// closing modal for the mandatory remark.
func (b *Bot) topicClose(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	ctx := context.Background()
	actor := actorFrom(i)
	if err := b.service.Authorize(ctx, i.GuildID, actor); err != nil {
		b.respondErr(i, "topic close", err)
		return
	}
	thread, err := b.service.ResolveThread(ctx, i.GuildID, suppliedThreadID(sub), i.ChannelID)
	if err != nil {
		b.respondErr(i, "topic close", err)
		return
	}
	t, err := b.store.TopicByThread(ctx, thread.ID)
	if err != nil {
		b.respondErr(i, "topic close", mapStoreErr(err))
		return
	}
	if t.AuthorID != actor.ID && !actor.IsAdmin {
		b.respondEphemeral(i, "You don't have permission to close this topic, you are not the original poster or an administrator.")
		return
	}
	b.openCloseModal(i, t.ID)
}

// handleComponent routes anchor-post button presses. The binding registry
// is the identity check: a press on a topic that has been closed, or that
// recovery skipped as orphaned, finds no binding and is refused.
func (b *Bot) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	customID := i.MessageComponentData().CustomID
	topicID, action, ok := topics.ParseControlID(customID)
	if !ok {
		b.log.Warn("unrecognized component", zap.String("custom_id", customID))
		return
	}
	binding, ok := b.service.Controls().Lookup(topicID)
	if !ok {
		b.respondEphemeral(i, "This topic no longer exists.")
		return
	}

	ctx := context.Background()
	actor := actorFrom(i)
	switch action {
	case topics.ControlEndorse:
		if _, err := b.service.Endorse(ctx, i.GuildID, actor, topicID); err != nil {
			b.respondErr(i, "endorse", err)
			return
		}
		b.respondEphemeral(i, "Increased priority for this topic.")
	case topics.ControlWithdraw:
		if _, err := b.service.Withdraw(ctx, i.GuildID, actor, topicID); err != nil {
			b.respondErr(i, "withdraw", err)
			return
		}
		b.respondEphemeral(i, "Removed priority for this topic.")
	case topics.ControlEdit:
		if binding.AuthorID != actor.ID {
			b.respondEphemeral(i, "You are not the author of this topic and cannot edit it.")
			return
		}
		b.openEditModal(i, topicID)
	}
}

func (b *Bot) handleModal(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ModalSubmitData()
	switch {
	case strings.HasPrefix(data.CustomID, modalEditPrefix):
		b.submitEdit(i, strings.TrimPrefix(data.CustomID, modalEditPrefix), data)
	case strings.HasPrefix(data.CustomID, modalClosePrefix):
		b.submitClose(i, strings.TrimPrefix(data.CustomID, modalClosePrefix), data)
	default:
		b.log.Warn("unrecognized modal", zap.String("custom_id", data.CustomID))
	}
}

func (b *Bot) submitEdit(i *discordgo.InteractionCreate, topicID string, data discordgo.ModalSubmitInteractionData) {
	title := textInputValue(data, "topic_title")
	message := textInputValue(data, "topic_message")
	err := b.service.Edit(context.Background(), i.GuildID, actorFrom(i), topicID, title, message)
	if err != nil {
		b.respondErr(i, "topic edit", err)
		return
	}
	b.respondEphemeral(i, "Edited message.")
}

func (b *Bot) submitClose(i *discordgo.InteractionCreate, topicID string, data discordgo.ModalSubmitInteractionData) {
	remark := textInputValue(data, "conclusion_text")
	err := b.service.Close(context.Background(), i.GuildID, actorFrom(i), topicID, remark)
	if err != nil {
		b.respondErr(i, "topic close", err)
		return
	}
	b.respondEphemeral(i, "Topic closed.")
}

func (b *Bot) openEditModal(i *discordgo.InteractionCreate, topicID string) {
	err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: modalEditPrefix + topicID,
			Title:    "Editing topic",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID: "topic_title",
						Label:    "Topic Title",
						Style:    discordgo.TextInputShort,
						Required: false,
					},
				}},
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID: "topic_message",
						Label:    "Topic Message",
						Style:    discordgo.TextInputParagraph,
						Required: false,
					},
				}},
			},
		},
	})
	if err != nil {
		b.log.Error("failed to open editing modal", zap.String("topic_id", topicID), zap.Error(err))
	}
}

func (b *Bot) openCloseModal(i *discordgo.InteractionCreate, topicID string) {
	err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: modalClosePrefix + topicID,
			Title:    "Closing topic",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID: "conclusion_text",
						Label:    "Closing remarks",
						Style:    discordgo.TextInputParagraph,
						Required: true,
					},
				}},
			},
		},
	})
	if err != nil {
		b.log.Error("failed to open closing modal", zap.String("topic_id", topicID), zap.Error(err))
	}
}

// suppliedThreadID extracts the optional thread argument of edit/close.
func suppliedThreadID(sub *discordgo.ApplicationCommandInteractionDataOption) string {
	for _, opt := range sub.Options {
		if opt.Name == "thread" {
			return opt.ChannelValue(nil).ID
		}
	}
	return ""
}

// textInputValue digs a text input's value out of a modal submission.
func textInputValue(data discordgo.ModalSubmitInteractionData, customID string) string {
	for _, row := range data.Components {
		actionsRow, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, comp := range actionsRow.Components {
			input, ok := comp.(*discordgo.TextInput)
			if ok && input.CustomID == customID {
				return input.Value
			}
		}
	}
	return ""
}

// mapStoreErr covers the thread-to-topic lookups the glue does directly.
func mapStoreErr(err error) error {
	if errors.Is(err, store.ErrTopicNotFound) {
		return shared.Fail(shared.NotATopicThread, "That thread is not a tracked topic thread.")
	}
	return shared.Fault(err)
}
