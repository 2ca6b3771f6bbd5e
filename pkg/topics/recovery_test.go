package topics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PhazonicRidley/mod-mail-internal/models"
)

func TestParseControlID(t *testing.T) {
	topicID, action, ok := ParseControlID("topic:123456:add")
	require.True(t, ok)
	assert.Equal(t, "123456", topicID)
	assert.Equal(t, ControlEndorse, action)

	for _, bad := range []string{"", "topic:123456", "topic::add", "other:123456:add", "topic:123456:nuke"} {
		_, _, ok := ParseControlID(bad)
		assert.False(t, ok, "custom id %q should not parse", bad)
	}
}

func TestControlIDRoundTrip(t *testing.T) {
	for _, action := range []string{ControlEndorse, ControlWithdraw, ControlEdit} {
		topicID, got, ok := ParseControlID(ControlID("t-1", action))
		require.True(t, ok)
		assert.Equal(t, "t-1", topicID)
		assert.Equal(t, action, got)
	}
}

func TestRecoverRebindsPersistedTopics(t *testing.T) {
	svc, st, platform := newTestService()
	platform.addThread("thread-a", testForum)
	platform.addThread("thread-b", testForum)
	st.topics["t-1"] = models.Topic{
		ID: "t-1", GuildID: testGuild, AuthorID: "alice",
		ThreadID: "thread-a", AnchorMessageID: "thread-a",
		PriorityLevel: 2, UsersInFavor: []string{"alice", "bob"},
	}
	st.topics["t-2"] = models.Topic{
		ID: "t-2", GuildID: testGuild, AuthorID: "bob",
		ThreadID: "thread-b", AnchorMessageID: "thread-b",
		PriorityLevel: 1, UsersInFavor: []string{"bob"},
	}

	n, err := svc.Recover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, svc.Controls().Len())

	b, ok := svc.Controls().Lookup("t-1")
	require.True(t, ok)
	assert.Equal(t, "alice", b.AuthorID)
	assert.Equal(t, "thread-a", b.ThreadID)
}

func TestRecoverSkipsOrphans(t *testing.T) {
	svc, st, platform := newTestService()
	platform.addThread("thread-a", testForum)
	st.topics["t-1"] = models.Topic{
		ID: "t-1", GuildID: testGuild, AuthorID: "alice",
		ThreadID: "thread-a", AnchorMessageID: "thread-a",
		PriorityLevel: 1, UsersInFavor: []string{"alice"},
	}
	// Thread deleted while the bot was down.
	st.topics["t-2"] = models.Topic{
		ID: "t-2", GuildID: testGuild, AuthorID: "bob",
		ThreadID: "thread-gone", AnchorMessageID: "thread-gone",
		PriorityLevel: 1, UsersInFavor: []string{"bob"},
	}

	n, err := svc.Recover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok := svc.Controls().Lookup("t-2")
	assert.False(t, ok)
	// Recovery is read-only: the orphaned row survives until a snapshot
	// recompute prunes it.
	assert.Equal(t, 2, st.topicCount())
}

func TestRecoverIsIdempotent(t *testing.T) {
	svc, st, platform := newTestService()
	platform.addThread("thread-a", testForum)
	st.topics["t-1"] = models.Topic{
		ID: "t-1", GuildID: testGuild, AuthorID: "alice",
		ThreadID: "thread-a", AnchorMessageID: "thread-a",
		PriorityLevel: 1, UsersInFavor: []string{"alice"},
	}

	for i := 0; i < 2; i++ {
		n, err := svc.Recover(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	}
	assert.Equal(t, 1, svc.Controls().Len())
}
