package topics

import (
	"context"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Control actions carried in component custom ids. The values match the
// button custom ids the anchor post is created with, so an interaction on
// a years-old post still parses.
const (
	ControlEndorse  = "add"
	ControlWithdraw = "remove"
	ControlEdit     = "edit"
)

// ControlID builds the custom id for one of a topic's buttons.
func ControlID(topicID, action string) string {
	return "topic:" + topicID + ":" + action
}

// ParseControlID splits a component custom id back into topic id and
// action. ok is false for custom ids that are not topic controls.
func ParseControlID(customID string) (topicID, action string, ok bool) {
	parts := strings.Split(customID, ":")
	if len(parts) != 3 || parts[0] != "topic" || parts[1] == "" {
		return "", "", false
	}
	switch parts[2] {
	case ControlEndorse, ControlWithdraw, ControlEdit:
		return parts[1], parts[2], true
	}
	return "", "", false
}

// Controls builds the interactive button row attached to a topic's anchor
// post. The topic id is baked into each custom id; the buttons never
// expire and survive restarts.
func Controls(topicID string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Give Priority",
					Style:    discordgo.SuccessButton,
					CustomID: ControlID(topicID, ControlEndorse),
					Emoji:    &discordgo.ComponentEmoji{Name: "⬆"},
				},
				discordgo.Button{
					Label:    "Remove Priority",
					Style:    discordgo.DangerButton,
					CustomID: ControlID(topicID, ControlWithdraw),
					Emoji:    &discordgo.ComponentEmoji{Name: "❌"},
				},
				discordgo.Button{
					Label:    "Edit",
					Style:    discordgo.PrimaryButton,
					CustomID: ControlID(topicID, ControlEdit),
					Emoji:    &discordgo.ComponentEmoji{Name: "\U0001f4dd"},
				},
			},
		},
	}
}

// Binding ties a live topic to its interactive controls. One binding per
// open topic; the topic id doubles as the control identity.
type Binding struct {
	TopicID         string
	GuildID         string
	AuthorID        string
	ThreadID        string
	AnchorMessageID string
}

// ControlRegistry is the transient topic-to-control map rebuilt at boot.
type ControlRegistry struct {
	mu       sync.RWMutex
	bindings map[string]Binding
}

func NewControlRegistry() *ControlRegistry {
	return &ControlRegistry{bindings: make(map[string]Binding)}
}

func (r *ControlRegistry) Register(b Binding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[b.TopicID] = b
}

func (r *ControlRegistry) Unregister(topicID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bindings, topicID)
}

func (r *ControlRegistry) Lookup(topicID string) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bindings[topicID]
	return b, ok
}

func (r *ControlRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bindings)
}

// Recover rebuilds control bindings for every persisted open topic so
// interactions created before the restart route to the right topic. It
// reads rows and verifies anchors but mutates nothing; a topic whose
// anchor post cannot be found is logged and skipped, never fatal. Safe to
// run again: registration overwrites in place.
func (s *Service) Recover(ctx context.Context) (int, error) {
	all, err := s.store.AllTopics(ctx)
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, t := range all {
		if _, err := s.platform.Message(t.ThreadID, t.AnchorMessageID); err != nil {
			s.log.Warn("skipping orphaned topic, anchor post not found",
				zap.String("topic_id", t.ID),
				zap.String("thread_id", t.ThreadID),
				zap.Error(err))
			continue
		}
		s.controls.Register(Binding{
			TopicID:         t.ID,
			GuildID:         t.GuildID,
			AuthorID:        t.AuthorID,
			ThreadID:        t.ThreadID,
			AnchorMessageID: t.AnchorMessageID,
		})
		recovered++
	}
	s.log.Info("control bindings recovered", zap.Int("count", recovered), zap.Int("persisted", len(all)))
	return recovered, nil
}
