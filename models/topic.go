package models

// Topic is a tracked discussion proposal, bound 1:1 to a forum thread for
// its entire lifetime. A row exists only while the topic is open; closing
// deletes it.
type Topic struct {
	ID              string
	GuildID         string
	AuthorID        string
	Message         string
	ThreadID        string
	AnchorMessageID string
	// PriorityLevel is a derived cache of len(UsersInFavor). It is only
	// ever written together with the set, in a single statement.
	PriorityLevel int
	UsersInFavor  []string
}

// Endorsed reports whether userID is already in favor of the topic.
func (t Topic) Endorsed(userID string) bool {
	for _, id := range t.UsersInFavor {
		if id == userID {
			return true
		}
	}
	return false
}
