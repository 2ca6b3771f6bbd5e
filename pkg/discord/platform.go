package discord

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/PhazonicRidley/mod-mail-internal/pkg/topics"
)

// sessionPlatform adapts *discordgo.Session to the narrow surface the
// topic engine consumes.
type sessionPlatform struct {
	s *discordgo.Session
}

func (p *sessionPlatform) Channel(id string) (*discordgo.Channel, error) {
	if ch, err := p.s.State.Channel(id); err == nil {
		return ch, nil
	}
	return p.s.Channel(id)
}

func (p *sessionPlatform) Message(channelID, messageID string) (*discordgo.Message, error) {
	return p.s.ChannelMessage(channelID, messageID)
}

func (p *sessionPlatform) StartThread(parentID, name, content string, components []discordgo.MessageComponent) (*discordgo.Channel, error) {
	return p.s.ForumThreadStartComplex(parentID, &discordgo.ThreadStart{
		Name:                name,
		AutoArchiveDuration: 10080,
	}, &discordgo.MessageSend{
		Content:    content,
		Components: components,
	})
}

func (p *sessionPlatform) PinMessage(channelID, messageID string) error {
	return p.s.ChannelMessagePin(channelID, messageID)
}

func (p *sessionPlatform) EditMessage(channelID, messageID, content string) error {
	_, err := p.s.ChannelMessageEdit(channelID, messageID, content)
	if err != nil && isNotFound(err) {
		return fmt.Errorf("%w: %s/%s", topics.ErrMessageMissing, channelID, messageID)
	}
	return err
}

// isNotFound distinguishes a deleted target from a transient API failure.
func isNotFound(err error) bool {
	var rerr *discordgo.RESTError
	if !errors.As(err, &rerr) {
		return false
	}
	if rerr.Message != nil {
		switch rerr.Message.Code {
		case discordgo.ErrCodeUnknownChannel, discordgo.ErrCodeUnknownMessage:
			return true
		}
	}
	return rerr.Response != nil && rerr.Response.StatusCode == http.StatusNotFound
}

func (p *sessionPlatform) Reply(channelID, messageID, content string) error {
	_, err := p.s.ChannelMessageSendReply(channelID, content, &discordgo.MessageReference{
		ChannelID: channelID,
		MessageID: messageID,
	})
	return err
}

func (p *sessionPlatform) ReplyEmbed(channelID, messageID string, embed *discordgo.MessageEmbed) error {
	_, err := p.s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed},
		Reference: &discordgo.MessageReference{
			ChannelID: channelID,
			MessageID: messageID,
		},
	})
	return err
}

func (p *sessionPlatform) RenameThread(threadID, name string) error {
	_, err := p.s.ChannelEdit(threadID, &discordgo.ChannelEdit{Name: name})
	return err
}

func (p *sessionPlatform) LockThread(threadID, reason string) error {
	locked := true
	archived := true
	_, err := p.s.ChannelEdit(threadID, &discordgo.ChannelEdit{
		Locked:   &locked,
		Archived: &archived,
	}, discordgo.WithAuditLogReason(reason))
	return err
}
