package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"github.com/PhazonicRidley/mod-mail-internal/pkg/shared"
)

func (b *Bot) handleChannelCommand(s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if len(data.Options) == 0 {
		return
	}
	ctx := context.Background()
	sub := data.Options[0]
	switch sub.Name {
	case "set":
		var channelID string
		for _, opt := range sub.Options {
			if opt.Name == "channel" {
				channelID = opt.ChannelValue(nil).ID
			}
		}
		ch, err := b.session.Channel(channelID)
		if err != nil || ch.GuildID != i.GuildID {
			b.respondEphemeral(i, "You cannot set a channel outside this server.")
			return
		}
		if ch.Type != discordgo.ChannelTypeGuildForum {
			b.respondEphemeral(i, "The topic channel must be a forum channel.")
			return
		}
		if err := b.store.SetOutputChannel(ctx, i.GuildID, channelID); err != nil {
			b.respondErr(i, "channel set", shared.Fault(err))
			return
		}
		b.respondEphemeral(i, "Output channel set to: <#"+channelID+">")

	case "unset":
		cfg, err := b.store.GuildSettings(ctx, i.GuildID)
		if err != nil {
			b.respondErr(i, "channel unset", shared.Fault(err))
			return
		}
		if cfg.OutputChannelID == "" {
			b.respondEphemeral(i, "Output channel not set")
			return
		}
		if err := b.store.ClearOutputChannel(ctx, i.GuildID); err != nil {
			b.respondErr(i, "channel unset", shared.Fault(err))
			return
		}
		b.respondEphemeral(i, "Output channel unset")

	case "list":
		cfg, err := b.store.GuildSettings(ctx, i.GuildID)
		if err != nil {
			b.respondErr(i, "channel list", shared.Fault(err))
			return
		}
		if cfg.OutputChannelID == "" {
			b.respondEphemeral(i, "No channel has been set")
			return
		}
		b.respondEphemeral(i, "Channel has been set to: <#"+cfg.OutputChannelID+">")
	}
}

func (b *Bot) handleRoleCommand(s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if len(data.Options) == 0 {
		return
	}
	ctx := context.Background()
	sub := data.Options[0]
	switch sub.Name {
	case "add":
		role := roleOption(s, i.GuildID, sub)
		if role == nil {
			return
		}
		added, err := b.store.AddAllowedRole(ctx, i.GuildID, role.ID)
		if err != nil {
			b.respondErr(i, "role add", shared.Fault(err))
			return
		}
		if !added {
			b.respondEphemeral(i, "Role already added to the whitelist")
			return
		}
		b.respondEphemeral(i, "Users with role `"+role.Name+"` can now make topics.")

	case "remove":
		role := roleOption(s, i.GuildID, sub)
		if role == nil {
			return
		}
		removed, err := b.store.RemoveAllowedRole(ctx, i.GuildID, role.ID)
		if err != nil {
			b.respondErr(i, "role remove", shared.Fault(err))
			return
		}
		if !removed {
			b.respondEphemeral(i, "Role not on whitelist.")
			return
		}
		b.respondEphemeral(i, "`"+role.Name+"` removed from whitelist.")

	case "list":
		cfg, err := b.store.GuildSettings(ctx, i.GuildID)
		if err != nil {
			b.respondErr(i, "role list", shared.Fault(err))
			return
		}
		if len(cfg.AllowedRoleIDs) == 0 {
			b.respondEphemeral(i, "No roles saved.")
			return
		}
		b.respondEphemeral(i, renderRoleList(guildRoleNames(s, i.GuildID), cfg.AllowedRoleIDs))
	}
}

func roleOption(s *discordgo.Session, guildID string, sub *discordgo.ApplicationCommandInteractionDataOption) *discordgo.Role {
	for _, opt := range sub.Options {
		if opt.Name == "role" {
			return opt.RoleValue(s, guildID)
		}
	}
	return nil
}

func guildRoleNames(s *discordgo.Session, guildID string) map[string]string {
	names := make(map[string]string)
	roles, err := s.GuildRoles(guildID)
	if err != nil {
		return names
	}
	for _, role := range roles {
		names[role.ID] = role.Name
	}
	return names
}

// renderRoleList formats the whitelist, flagging ids whose role no longer
// exists in the guild.
func renderRoleList(names map[string]string, roleIDs []string) string {
	var out string
	for _, id := range roleIDs {
		if name, ok := names[id]; ok {
			out += "- `" + name + "` (" + id + ")\n"
		} else {
			out += ":warning: Role ID (" + id + ") no longer exists in server, please remove.\n"
		}
	}
	return out
}
