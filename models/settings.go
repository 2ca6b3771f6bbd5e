package models

// Settings is the per-guild configuration row.
type Settings struct {
	GuildID string
	// OutputChannelID is the forum whose child threads are the
	// authoritative set of topic threads. Empty means unconfigured, and
	// everything that depends on it fails closed.
	OutputChannelID string
	AllowedRoleIDs  []string
	// StatusThreadID anchors the ranked-by-priority snapshot. Recreated
	// on demand if the thread disappears.
	StatusThreadID string
}
