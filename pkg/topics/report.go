package topics

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/PhazonicRidley/mod-mail-internal/models"
)

const statusThreadName = "Topic Priorities"

// PublishRanking recomputes the ranked snapshot of a guild's open topics
// and publishes it to the status thread, creating that thread if it has
// gone missing. Topics whose bound threads can no longer be located are
// pruned here; this is the only garbage-collection path for stale rows.
// Concurrent calls for the same guild collapse into one recompute, but a
// caller never settles for a recompute that began before its own state:
// joining an in-flight recompute would publish a snapshot read before the
// caller's mutation was persisted, and nothing else would republish it.
func (s *Service) PublishRanking(ctx context.Context, guildID string) error {
	target := s.invalidateRanking(guildID)
	for {
		gen, err, _ := s.flight.Do(guildID, func() (interface{}, error) {
			return s.rankingGeneration(guildID), s.publishRanking(ctx, guildID)
		})
		if err != nil {
			return err
		}
		// The completed recompute started from gen. If that predates this
		// caller's invalidation it may have read stale rows; go again.
		if gen.(uint64) >= target {
			return nil
		}
	}
}

func (s *Service) publishRanking(ctx context.Context, guildID string) error {
	cfg, err := s.store.GuildSettings(ctx, guildID)
	if err != nil {
		return err
	}
	if cfg.OutputChannelID == "" {
		return nil
	}

	open, err := s.store.OpenTopics(ctx, guildID)
	if err != nil {
		return err
	}

	// Prune rows whose threads are no longer reachable under the current
	// output channel.
	live := open[:0]
	for _, t := range open {
		ch, chErr := s.platform.Channel(t.ThreadID)
		if chErr != nil || !ch.IsThread() || ch.ParentID != cfg.OutputChannelID {
			s.log.Info("pruning topic with unreachable thread",
				zap.String("topic_id", t.ID), zap.String("thread_id", t.ThreadID))
			if delErr := s.store.DeleteTopic(ctx, t.ID, guildID); delErr != nil {
				s.log.Error("failed to prune stale topic", zap.String("topic_id", t.ID), zap.Error(delErr))
				continue
			}
			s.controls.Unregister(t.ID)
			continue
		}
		live = append(live, t)
	}

	content := renderRanking(live)
	return backoff.Retry(func() error {
		return s.writeSnapshot(ctx, guildID, cfg.OutputChannelID, cfg.StatusThreadID, content)
	}, s.retryPolicy(ctx, 3))
}

// writeSnapshot edits the existing status post in place, or creates the
// status thread and persists its id when none exists. The starter message
// of the status thread shares its id, so the thread id addresses both.
// Only a confirmed-gone status post triggers recreation; a transient edit
// failure is returned for retry so an incident cannot leak a duplicate
// status thread.
func (s *Service) writeSnapshot(ctx context.Context, guildID, outputChannelID, statusThreadID, content string) error {
	if statusThreadID != "" {
		err := s.platform.EditMessage(statusThreadID, statusThreadID, content)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrMessageMissing) {
			return err
		}
		// Status thread deleted out from under us; recreate it.
	}
	thread, err := s.platform.StartThread(outputChannelID, statusThreadName, content, nil)
	if err != nil {
		return err
	}
	return s.store.SetStatusThread(ctx, guildID, thread.ID)
}

// refreshRanking republishes after a ledger mutation. Snapshot failures
// never fail the command that triggered them; the ledger is already
// durable and the next mutation republishes.
func (s *Service) refreshRanking(ctx context.Context, guildID string) {
	if err := s.PublishRanking(ctx, guildID); err != nil {
		s.log.Error("failed to publish ranking snapshot",
			zap.String("guild_id", guildID), zap.Error(err))
	}
}

func renderRanking(open []models.Topic) string {
	if len(open) == 0 {
		return "No topics are currently open."
	}
	var b strings.Builder
	b.WriteString("Open topics, ranked by priority:\n")
	for i, t := range open {
		fmt.Fprintf(&b, "%d. <#%s> (priority level %d)\n", i+1, t.ThreadID, t.PriorityLevel)
	}
	return strings.TrimRight(b.String(), "\n")
}
