package topics

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"github.com/PhazonicRidley/mod-mail-internal/pkg/shared"
)

// ResolveThread validates that a command targets a legitimate topic
// thread. When no thread is supplied the invoking channel is used, which
// covers commands run from inside the thread itself. The guild's output
// forum is the ground truth for what counts as a topic thread.
func (s *Service) ResolveThread(ctx context.Context, guildID, suppliedThreadID, invokedChannelID string) (*discordgo.Channel, error) {
	candidateID := suppliedThreadID
	if candidateID == "" {
		candidateID = invokedChannelID
	}

	candidate, err := s.platform.Channel(candidateID)
	if suppliedThreadID == "" {
		if err != nil || !candidate.IsThread() {
			return nil, shared.Fail(shared.NotInTopicThread, "Use this command inside a topic thread, or pass the thread explicitly.")
		}
	} else if err != nil {
		return nil, shared.Fail(shared.NotATopicThread, "That thread is not a tracked topic thread.")
	}

	cfg, err := s.store.GuildSettings(ctx, guildID)
	if err != nil {
		return nil, shared.Fault(err)
	}
	if cfg.OutputChannelID == "" {
		return nil, shared.Fail(shared.NoChannelConfigured, "No channel set or channel has been deleted")
	}
	if _, err := s.platform.Channel(cfg.OutputChannelID); err != nil {
		return nil, shared.Fail(shared.ChannelMissing, "The configured topic channel no longer exists.")
	}

	if !candidate.IsThread() || candidate.ParentID != cfg.OutputChannelID {
		return nil, shared.Fail(shared.NotATopicThread, "That thread is not a tracked topic thread.")
	}
	return candidate, nil
}
