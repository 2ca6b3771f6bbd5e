package topics

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/PhazonicRidley/mod-mail-internal/models"
	"github.com/PhazonicRidley/mod-mail-internal/pkg/shared"
	"github.com/PhazonicRidley/mod-mail-internal/pkg/store"
)

// Closer identifies who is allowed to close a topic. Anything outside
// this enumeration is rejected at construction.
type Closer int

const (
	CloserOP Closer = iota
	CloserAdmin
)

func (c Closer) String() string {
	if c == CloserAdmin {
		return "admin"
	}
	return "op"
}

// closerFor decides the closer role for an actor, or fails with Forbidden.
func closerFor(actor Actor, t models.Topic) (Closer, error) {
	switch {
	case actor.ID == t.AuthorID:
		return CloserOP, nil
	case actor.IsAdmin:
		return CloserAdmin, nil
	default:
		return 0, shared.Fail(shared.Forbidden, "You don't have permission to close this topic, you are not the original poster or an administrator.")
	}
}

const closureColor = 0xE74C3C

// Create opens a new topic: a forum thread with the description as its
// anchor post, controls attached, the anchor pinned, and a row recording
// the creator's automatic endorsement.
func (s *Service) Create(ctx context.Context, guildID string, actor Actor, topicID, name, message string) (string, error) {
	cfg, err := s.authorize(ctx, guildID, actor)
	if err != nil {
		return "", err
	}

	thread, err := s.platform.StartThread(cfg.OutputChannelID, name, message, Controls(topicID))
	if err != nil {
		return "", shared.Fault(err)
	}
	// The starter message of a forum thread shares the thread's id.
	anchorID := thread.ID
	if err := s.platform.PinMessage(thread.ID, anchorID); err != nil {
		s.log.Warn("failed to pin anchor post",
			zap.String("topic_id", topicID), zap.String("thread_id", thread.ID), zap.Error(err))
	}

	t := models.Topic{
		ID:              topicID,
		GuildID:         guildID,
		AuthorID:        actor.ID,
		Message:         message,
		ThreadID:        thread.ID,
		AnchorMessageID: anchorID,
		PriorityLevel:   1,
		UsersInFavor:    []string{actor.ID},
	}
	if err := s.store.CreateTopic(ctx, t); err != nil {
		s.log.Error("topic row insert failed after thread creation",
			zap.String("topic_id", topicID), zap.String("thread_id", thread.ID), zap.Error(err))
		return "", shared.Fault(err)
	}

	s.controls.Register(Binding{
		TopicID:         t.ID,
		GuildID:         t.GuildID,
		AuthorID:        t.AuthorID,
		ThreadID:        t.ThreadID,
		AnchorMessageID: t.AnchorMessageID,
	})
	s.refreshRanking(ctx, guildID)
	return thread.ID, nil
}

// Endorse records the actor's support for a topic. The ledger update is a
// single atomic statement; duplicates surface as AlreadyEndorsed without
// mutating anything.
func (s *Service) Endorse(ctx context.Context, guildID string, actor Actor, topicID string) (int, error) {
	if _, err := s.authorize(ctx, guildID, actor); err != nil {
		return 0, err
	}
	priority, err := s.store.Endorse(ctx, topicID, actor.ID)
	if err != nil {
		return 0, mapLedgerErr(err)
	}
	s.refreshRanking(ctx, guildID)
	return priority, nil
}

// Withdraw removes the actor's endorsement.
func (s *Service) Withdraw(ctx context.Context, guildID string, actor Actor, topicID string) (int, error) {
	if _, err := s.authorize(ctx, guildID, actor); err != nil {
		return 0, err
	}
	priority, err := s.store.Withdraw(ctx, topicID, actor.ID)
	if err != nil {
		return 0, mapLedgerErr(err)
	}
	s.refreshRanking(ctx, guildID)
	return priority, nil
}

// Edit updates a topic's title and/or body. Only the author may edit.
// Blank submissions for both fields are a no-op reported as Cancelled.
// A body edit rewrites the anchor post and the persisted message; a title
// edit only renames the thread. Successful edits post a visible notice.
func (s *Service) Edit(ctx context.Context, guildID string, actor Actor, topicID, title, message string) error {
	if _, err := s.authorize(ctx, guildID, actor); err != nil {
		return err
	}
	t, err := s.store.Topic(ctx, topicID)
	if err != nil {
		return mapLedgerErr(err)
	}
	if actor.ID != t.AuthorID {
		return shared.Fail(shared.Forbidden, "You are not the author of this topic and cannot edit it.")
	}

	title = strings.TrimSpace(title)
	message = strings.TrimSpace(message)
	if title == "" && message == "" {
		return shared.Fail(shared.Cancelled, "Cancelled")
	}

	if title != "" {
		if err := s.platform.RenameThread(t.ThreadID, title); err != nil {
			return shared.Fault(err)
		}
	}
	if message != "" {
		if err := s.platform.EditMessage(t.ThreadID, t.AnchorMessageID, message); err != nil {
			return shared.Fault(err)
		}
		if err := s.store.UpdateMessage(ctx, t.ID, message); err != nil {
			return mapLedgerErr(err)
		}
	}

	if err := s.platform.Reply(t.ThreadID, t.AnchorMessageID, "Topic has been updated by original poster."); err != nil {
		s.log.Warn("failed to post edit notice",
			zap.String("topic_id", t.ID), zap.Error(err))
	}
	return nil
}

// Close concludes a topic: a closure notice carrying the remark and the
// final priority snapshot, the thread locked and archived, and the row
// deleted. Closure is irrecoverable; later votes on the id find nothing.
func (s *Service) Close(ctx context.Context, guildID string, actor Actor, topicID, remark string) error {
	if _, err := s.authorize(ctx, guildID, actor); err != nil {
		return err
	}
	t, err := s.store.Topic(ctx, topicID)
	if err != nil {
		return mapLedgerErr(err)
	}
	closer, err := closerFor(actor, t)
	if err != nil {
		return err
	}
	if strings.TrimSpace(remark) == "" {
		return shared.Fail(shared.Cancelled, "Closing remarks are required.")
	}

	// The delete is the authoritative close and goes first: if it cannot
	// be applied the topic stays fully open, with no notice posted and no
	// thread locked. Once the row is gone the visible side effects are
	// best-effort.
	err = backoff.Retry(func() error {
		err := s.store.DeleteTopic(ctx, t.ID, guildID)
		if errors.Is(err, store.ErrTopicNotFound) {
			return nil
		}
		return err
	}, s.retryPolicy(ctx, 4))
	if err != nil {
		s.log.Error("topic row delete failed, closure aborted",
			zap.String("topic_id", t.ID), zap.Error(err))
		return shared.Fault(err)
	}
	s.controls.Unregister(t.ID)

	if err := s.platform.ReplyEmbed(t.ThreadID, t.AnchorMessageID, closureEmbed(closer, remark, t.PriorityLevel)); err != nil {
		s.log.Warn("failed to post closure notice",
			zap.String("topic_id", t.ID), zap.String("thread_id", t.ThreadID), zap.Error(err))
	}
	if err := s.platform.LockThread(t.ThreadID, "Topic closed by "+closer.String()); err != nil {
		s.log.Warn("failed to lock closed topic thread",
			zap.String("topic_id", t.ID), zap.String("thread_id", t.ThreadID), zap.Error(err))
	}
	s.refreshRanking(ctx, guildID)
	return nil
}

func closureEmbed(closer Closer, remark string, priority int) *discordgo.MessageEmbed {
	description := "This topic was closed by the original poster."
	if closer == CloserAdmin {
		description = "This topic was closed by an administrator."
	}
	return &discordgo.MessageEmbed{
		Title:       "Topic closed",
		Description: description,
		Color:       closureColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Closing remarks", Value: remark, Inline: false},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Priority level: " + strconv.Itoa(priority),
		},
	}
}

// mapLedgerErr translates store sentinels into user-facing failures.
func mapLedgerErr(err error) error {
	switch {
	case errors.Is(err, store.ErrTopicNotFound):
		return shared.Fail(shared.TopicNotFound, "This topic no longer exists.")
	case errors.Is(err, store.ErrAlreadyEndorsed):
		return shared.Fail(shared.AlreadyEndorsed, "You have already increased priority for this topic.")
	case errors.Is(err, store.ErrNotEndorsed):
		return shared.Fail(shared.NotEndorsed, "You have not increased priority for this topic and cannot remove yourself.")
	default:
		return shared.Fault(err)
	}
}
