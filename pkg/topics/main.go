package topics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/PhazonicRidley/mod-mail-internal/models"
)

// ErrMessageMissing reports that the target of an EditMessage no longer
// exists, as opposed to a transient API failure. Platform implementations
// map their not-found responses to it.
var ErrMessageMissing = errors.New("message no longer exists")

// Store is the persistence surface the topic engine needs. *store.Store
// satisfies it; tests substitute fakes.
type Store interface {
	GuildSettings(ctx context.Context, guildID string) (models.Settings, error)
	SetStatusThread(ctx context.Context, guildID, threadID string) error
	CreateTopic(ctx context.Context, t models.Topic) error
	Topic(ctx context.Context, id string) (models.Topic, error)
	TopicByThread(ctx context.Context, threadID string) (models.Topic, error)
	OpenTopics(ctx context.Context, guildID string) ([]models.Topic, error)
	AllTopics(ctx context.Context) ([]models.Topic, error)
	UpdateMessage(ctx context.Context, id, message string) error
	DeleteTopic(ctx context.Context, id, guildID string) error
	Endorse(ctx context.Context, id, userID string) (int, error)
	Withdraw(ctx context.Context, id, userID string) (int, error)
}

// Platform is the slice of the Discord API the engine touches, kept
// narrow so the lifecycle logic stays testable without a live session.
type Platform interface {
	Channel(id string) (*discordgo.Channel, error)
	Message(channelID, messageID string) (*discordgo.Message, error)
	StartThread(parentID, name, content string, components []discordgo.MessageComponent) (*discordgo.Channel, error)
	PinMessage(channelID, messageID string) error
	EditMessage(channelID, messageID, content string) error
	Reply(channelID, messageID, content string) error
	ReplyEmbed(channelID, messageID string, embed *discordgo.MessageEmbed) error
	RenameThread(threadID, name string) error
	LockThread(threadID, reason string) error
}

// Actor is the invoking user as the engine cares about them. Role and
// admin data come fresh from the interaction, never from a cache.
type Actor struct {
	ID      string
	RoleIDs []string
	IsAdmin bool
}

// Service executes every topic-mutating operation. All dependencies are
// injected; there is no package-level session or store.
type Service struct {
	store    Store
	platform Platform
	controls *ControlRegistry
	log      *zap.Logger
	flight   singleflight.Group

	// rankingGen counts ledger mutations per guild. A snapshot recompute
	// records the generation it started from, so a recompute that raced a
	// mutation is detected and rerun instead of published as current.
	genMu      sync.Mutex
	rankingGen map[string]uint64

	retryBase time.Duration
}

func New(st Store, platform Platform, log *zap.Logger) *Service {
	return &Service{
		store:      st,
		platform:   platform,
		controls:   NewControlRegistry(),
		log:        log,
		rankingGen: make(map[string]uint64),
		retryBase:  500 * time.Millisecond,
	}
}

func (s *Service) rankingGeneration(guildID string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.rankingGen[guildID]
}

func (s *Service) invalidateRanking(guildID string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	s.rankingGen[guildID]++
	return s.rankingGen[guildID]
}

func (s *Service) retryPolicy(ctx context.Context, maxRetries uint64) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.retryBase
	return backoff.WithContext(backoff.WithMaxRetries(bo, maxRetries), ctx)
}

// Controls exposes the binding registry to the interaction router.
func (s *Service) Controls() *ControlRegistry {
	return s.controls
}
