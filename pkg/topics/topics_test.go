package topics

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/PhazonicRidley/mod-mail-internal/models"
	"github.com/PhazonicRidley/mod-mail-internal/pkg/store"
)

// memStore is an in-memory Store with the same semantics as the SQL
// implementation: ledger mutations are applied under one lock, so the
// priority counter can never drift from the favor set.
type memStore struct {
	mu       sync.Mutex
	settings map[string]models.Settings
	topics   map[string]models.Topic

	failEndorse error
	// deleteFails makes the next N DeleteTopic calls fail.
	deleteFails int
}

func newMemStore() *memStore {
	return &memStore{
		settings: make(map[string]models.Settings),
		topics:   make(map[string]models.Topic),
	}
}

func (m *memStore) GuildSettings(_ context.Context, guildID string) (models.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.settings[guildID]
	if !ok {
		return models.Settings{GuildID: guildID}, nil
	}
	return cfg, nil
}

func (m *memStore) SetStatusThread(_ context.Context, guildID, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg := m.settings[guildID]
	cfg.GuildID = guildID
	cfg.StatusThreadID = threadID
	m.settings[guildID] = cfg
	return nil
}

func (m *memStore) CreateTopic(_ context.Context, t models.Topic) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.topics[t.ID]; exists {
		return errors.New("duplicate topic id")
	}
	m.topics[t.ID] = t
	return nil
}

func (m *memStore) Topic(_ context.Context, id string) (models.Topic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.topics[id]
	if !ok {
		return models.Topic{}, store.ErrTopicNotFound
	}
	return t, nil
}

func (m *memStore) TopicByThread(_ context.Context, threadID string) (models.Topic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.topics {
		if t.ThreadID == threadID {
			return t, nil
		}
	}
	return models.Topic{}, store.ErrTopicNotFound
}

func (m *memStore) OpenTopics(_ context.Context, guildID string) ([]models.Topic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Topic
	for _, t := range m.topics {
		if t.GuildID == guildID {
			out = append(out, t)
		}
	}
	// Priority descending, id ascending, matching the SQL ordering.
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].PriorityLevel > out[i].PriorityLevel ||
				(out[j].PriorityLevel == out[i].PriorityLevel && out[j].ID < out[i].ID) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (m *memStore) AllTopics(_ context.Context) ([]models.Topic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Topic
	for _, t := range m.topics {
		out = append(out, t)
	}
	return out, nil
}

func (m *memStore) UpdateMessage(_ context.Context, id, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.topics[id]
	if !ok {
		return store.ErrTopicNotFound
	}
	t.Message = message
	m.topics[id] = t
	return nil
}

func (m *memStore) DeleteTopic(_ context.Context, id, guildID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteFails > 0 {
		m.deleteFails--
		return errors.New("deadlock detected")
	}
	t, ok := m.topics[id]
	if !ok || t.GuildID != guildID {
		return store.ErrTopicNotFound
	}
	delete(m.topics, id)
	return nil
}

func (m *memStore) Endorse(_ context.Context, id, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failEndorse != nil {
		return 0, m.failEndorse
	}
	t, ok := m.topics[id]
	if !ok {
		return 0, store.ErrTopicNotFound
	}
	if t.Endorsed(userID) {
		return 0, store.ErrAlreadyEndorsed
	}
	t.UsersInFavor = append(append([]string(nil), t.UsersInFavor...), userID)
	t.PriorityLevel++
	m.topics[id] = t
	return t.PriorityLevel, nil
}

func (m *memStore) Withdraw(_ context.Context, id, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.topics[id]
	if !ok {
		return 0, store.ErrTopicNotFound
	}
	if !t.Endorsed(userID) {
		return 0, store.ErrNotEndorsed
	}
	var remaining []string
	for _, u := range t.UsersInFavor {
		if u != userID {
			remaining = append(remaining, u)
		}
	}
	t.UsersInFavor = remaining
	t.PriorityLevel--
	m.topics[id] = t
	return t.PriorityLevel, nil
}

func (m *memStore) mustTopic(id string) models.Topic {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.topics[id]
}

func (m *memStore) topicCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.topics)
}

// fakePlatform records the Discord calls the engine makes.
type fakePlatform struct {
	mu       sync.Mutex
	channels map[string]*discordgo.Channel
	nextID   int

	replies  map[string][]string
	embeds   map[string][]*discordgo.MessageEmbed
	edits    map[string]string
	renames  map[string]string
	locked   map[string]string
	pins     []string
	missing  map[string]bool
	startErr error
	editErr  error
	embedErr error

	// onEdit, when set, runs at the top of EditMessage before any state is
	// touched. Set before spawning goroutines.
	onEdit func()
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		channels: make(map[string]*discordgo.Channel),
		replies:  make(map[string][]string),
		embeds:   make(map[string][]*discordgo.MessageEmbed),
		edits:    make(map[string]string),
		renames:  make(map[string]string),
		locked:   make(map[string]string),
		missing:  make(map[string]bool),
	}
}

func (p *fakePlatform) addForum(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels[id] = &discordgo.Channel{ID: id, Type: discordgo.ChannelTypeGuildForum}
}

func (p *fakePlatform) addThread(id, parentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels[id] = &discordgo.Channel{ID: id, ParentID: parentID, Type: discordgo.ChannelTypeGuildPublicThread}
}

func (p *fakePlatform) addText(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels[id] = &discordgo.Channel{ID: id, Type: discordgo.ChannelTypeGuildText}
}

func (p *fakePlatform) remove(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.channels, id)
}

func (p *fakePlatform) Channel(id string) (*discordgo.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.channels[id]
	if !ok {
		return nil, fmt.Errorf("unknown channel %s", id)
	}
	return ch, nil
}

func (p *fakePlatform) Message(channelID, messageID string) (*discordgo.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.missing[channelID+"/"+messageID] {
		return nil, errors.New("unknown message")
	}
	if _, ok := p.channels[channelID]; !ok {
		return nil, fmt.Errorf("unknown channel %s", channelID)
	}
	return &discordgo.Message{ID: messageID, ChannelID: channelID}, nil
}

func (p *fakePlatform) StartThread(parentID, name, content string, components []discordgo.MessageComponent) (*discordgo.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startErr != nil {
		return nil, p.startErr
	}
	if _, ok := p.channels[parentID]; !ok {
		return nil, fmt.Errorf("unknown channel %s", parentID)
	}
	p.nextID++
	id := "thread-" + strconv.Itoa(p.nextID)
	ch := &discordgo.Channel{ID: id, ParentID: parentID, Name: name, Type: discordgo.ChannelTypeGuildPublicThread}
	p.channels[id] = ch
	p.edits[id+"/"+id] = content
	return ch, nil
}

func (p *fakePlatform) PinMessage(channelID, messageID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pins = append(p.pins, channelID+"/"+messageID)
	return nil
}

func (p *fakePlatform) EditMessage(channelID, messageID, content string) error {
	if p.onEdit != nil {
		p.onEdit()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.editErr != nil {
		return p.editErr
	}
	key := channelID + "/" + messageID
	if _, ok := p.edits[key]; !ok {
		if _, chOK := p.channels[channelID]; !chOK {
			return fmt.Errorf("%w: %s", ErrMessageMissing, key)
		}
	}
	p.edits[key] = content
	return nil
}

func (p *fakePlatform) Reply(channelID, messageID, content string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies[channelID] = append(p.replies[channelID], content)
	return nil
}

func (p *fakePlatform) ReplyEmbed(channelID, messageID string, embed *discordgo.MessageEmbed) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.embedErr != nil {
		return p.embedErr
	}
	p.embeds[channelID] = append(p.embeds[channelID], embed)
	return nil
}

func (p *fakePlatform) RenameThread(threadID, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.renames[threadID] = name
	return nil
}

func (p *fakePlatform) LockThread(threadID, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locked[threadID] = reason
	return nil
}

const (
	testGuild = "guild-1"
	testForum = "forum-1"
	testRole  = "role-1"
)

// newTestService builds a service over a guild configured with an output
// forum and one whitelisted role.
func newTestService() (*Service, *memStore, *fakePlatform) {
	st := newMemStore()
	st.settings[testGuild] = models.Settings{
		GuildID:         testGuild,
		OutputChannelID: testForum,
		AllowedRoleIDs:  []string{testRole},
	}
	platform := newFakePlatform()
	platform.addForum(testForum)
	svc := New(st, platform, zap.NewNop())
	svc.retryBase = time.Millisecond
	return svc, st, platform
}

func member(id string) Actor {
	return Actor{ID: id, RoleIDs: []string{testRole}}
}

func admin(id string) Actor {
	return Actor{ID: id, IsAdmin: true}
}
