package topics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PhazonicRidley/mod-mail-internal/models"
	"github.com/PhazonicRidley/mod-mail-internal/pkg/shared"
)

func TestResolveDefaultsToInvokingThread(t *testing.T) {
	svc, _, platform := newTestService()
	platform.addThread("thread-a", testForum)

	ch, err := svc.ResolveThread(context.Background(), testGuild, "", "thread-a")
	require.NoError(t, err)
	assert.Equal(t, "thread-a", ch.ID)
}

func TestResolveExplicitThreadWins(t *testing.T) {
	svc, _, platform := newTestService()
	platform.addThread("thread-a", testForum)
	platform.addText("text-1")

	ch, err := svc.ResolveThread(context.Background(), testGuild, "thread-a", "text-1")
	require.NoError(t, err)
	assert.Equal(t, "thread-a", ch.ID)
}

func TestResolveFromPlainChannel(t *testing.T) {
	svc, _, platform := newTestService()
	platform.addText("text-1")

	_, err := svc.ResolveThread(context.Background(), testGuild, "", "text-1")
	assert.Equal(t, shared.NotInTopicThread, shared.KindOf(err))
}

func TestResolveUnknownSuppliedThread(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.ResolveThread(context.Background(), testGuild, "thread-gone", "text-1")
	assert.Equal(t, shared.NotATopicThread, shared.KindOf(err))
}

func TestResolveNoChannelConfigured(t *testing.T) {
	svc, st, platform := newTestService()
	st.settings[testGuild] = models.Settings{GuildID: testGuild}
	platform.addThread("thread-a", testForum)

	_, err := svc.ResolveThread(context.Background(), testGuild, "thread-a", "")
	assert.Equal(t, shared.NoChannelConfigured, shared.KindOf(err))
}

func TestResolveOutputChannelDeleted(t *testing.T) {
	svc, _, platform := newTestService()
	platform.addThread("thread-a", testForum)
	platform.remove(testForum)

	_, err := svc.ResolveThread(context.Background(), testGuild, "thread-a", "")
	assert.Equal(t, shared.ChannelMissing, shared.KindOf(err))
}

func TestResolveThreadUnderWrongParent(t *testing.T) {
	svc, _, platform := newTestService()
	platform.addForum("forum-other")
	platform.addThread("thread-b", "forum-other")

	_, err := svc.ResolveThread(context.Background(), testGuild, "thread-b", "")
	assert.Equal(t, shared.NotATopicThread, shared.KindOf(err))
}

func TestResolveSuppliedNonThread(t *testing.T) {
	svc, _, platform := newTestService()
	platform.addText("text-1")

	_, err := svc.ResolveThread(context.Background(), testGuild, "text-1", "")
	assert.Equal(t, shared.NotATopicThread, shared.KindOf(err))
}
