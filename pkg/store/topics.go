package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/PhazonicRidley/mod-mail-internal/models"
)

const topicColumns = `id, guild_id, author_id, message, priority_level, anchor_message_id, thread_id, array_to_string(users_in_favor, ',')`

func scanTopic(row *sql.Row) (models.Topic, error) {
	var t models.Topic
	var favor string
	err := row.Scan(&t.ID, &t.GuildID, &t.AuthorID, &t.Message, &t.PriorityLevel, &t.AnchorMessageID, &t.ThreadID, &favor)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Topic{}, ErrTopicNotFound
	}
	if err != nil {
		return models.Topic{}, fmt.Errorf("scan topic: %w", err)
	}
	t.UsersInFavor = splitArray(favor)
	return t, nil
}

// CreateTopic inserts a freshly opened topic. The caller supplies the id
// (Discord interaction ids are unique) and the creator's auto-endorsement.
func (s *Store) CreateTopic(ctx context.Context, t models.Topic) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO topics (id, guild_id, author_id, message, priority_level, anchor_message_id, thread_id, users_in_favor)
		VALUES ($1, $2, $3, $4, $5, $6, $7, string_to_array($8, ','))
	`, t.ID, t.GuildID, t.AuthorID, t.Message, t.PriorityLevel, t.AnchorMessageID, t.ThreadID, joinArray(t.UsersInFavor))
	if err != nil {
		return fmt.Errorf("insert topic: %w", err)
	}
	return nil
}

// Topic reads one topic row by id.
func (s *Store) Topic(ctx context.Context, id string) (models.Topic, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+topicColumns+` FROM topics WHERE id = $1`, id)
	return scanTopic(row)
}

// TopicByThread reads the topic bound to threadID, if any.
func (s *Store) TopicByThread(ctx context.Context, threadID string) (models.Topic, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+topicColumns+` FROM topics WHERE thread_id = $1`, threadID)
	return scanTopic(row)
}

// OpenTopics returns every open topic for a guild ordered by descending
// priority, ties broken by id ascending so the ranking is deterministic.
func (s *Store) OpenTopics(ctx context.Context, guildID string) ([]models.Topic, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+topicColumns+` FROM topics
		WHERE guild_id = $1
		ORDER BY priority_level DESC, id ASC
	`, guildID)
	if err != nil {
		return nil, fmt.Errorf("query open topics: %w", err)
	}
	defer rows.Close()
	return collectTopics(rows)
}

// AllTopics returns every open topic across all guilds. Used once at boot
// to rebuild control bindings.
func (s *Store) AllTopics(ctx context.Context) ([]models.Topic, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+topicColumns+` FROM topics ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query all topics: %w", err)
	}
	defer rows.Close()
	return collectTopics(rows)
}

func collectTopics(rows *sql.Rows) ([]models.Topic, error) {
	var topics []models.Topic
	for rows.Next() {
		var t models.Topic
		var favor string
		if err := rows.Scan(&t.ID, &t.GuildID, &t.AuthorID, &t.Message, &t.PriorityLevel, &t.AnchorMessageID, &t.ThreadID, &favor); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		t.UsersInFavor = splitArray(favor)
		topics = append(topics, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate topics: %w", err)
	}
	return topics, nil
}

// UpdateMessage persists an edited topic body.
func (s *Store) UpdateMessage(ctx context.Context, id, message string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE topics SET message = $1 WHERE id = $2`, message, id)
	if err != nil {
		return fmt.Errorf("update topic message: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrTopicNotFound
	}
	return nil
}

// DeleteTopic removes a topic row. Closing is destructive: there is no
// closed state, only absence.
func (s *Store) DeleteTopic(ctx context.Context, id, guildID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM topics WHERE id = $1 AND guild_id = $2`, id, guildID)
	if err != nil {
		return fmt.Errorf("delete topic: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrTopicNotFound
	}
	return nil
}

// Endorse adds userID to the topic's favor set. The set insertion and the
// derived counter bump ride in one statement guarded by a membership
// predicate, so concurrent votes can never leave priority_level out of
// step with the set.
func (s *Store) Endorse(ctx context.Context, id, userID string) (int, error) {
	var priority int
	err := s.db.QueryRowContext(ctx, `
		UPDATE topics
		SET users_in_favor = array_append(users_in_favor, $2::text),
		    priority_level = priority_level + 1
		WHERE id = $1 AND NOT (users_in_favor @> ARRAY[$2::text])
		RETURNING priority_level
	`, id, userID).Scan(&priority)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, s.endorsementMiss(ctx, id, ErrAlreadyEndorsed)
	}
	if err != nil {
		return 0, fmt.Errorf("endorse topic: %w", err)
	}
	return priority, nil
}

// Withdraw removes userID from the topic's favor set, decrementing the
// derived counter in the same statement.
func (s *Store) Withdraw(ctx context.Context, id, userID string) (int, error) {
	var priority int
	err := s.db.QueryRowContext(ctx, `
		UPDATE topics
		SET users_in_favor = array_remove(users_in_favor, $2::text),
		    priority_level = priority_level - 1
		WHERE id = $1 AND users_in_favor @> ARRAY[$2::text]
		RETURNING priority_level
	`, id, userID).Scan(&priority)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, s.endorsementMiss(ctx, id, ErrNotEndorsed)
	}
	if err != nil {
		return 0, fmt.Errorf("withdraw from topic: %w", err)
	}
	return priority, nil
}

// endorsementMiss decides whether a guarded update matched nothing because
// the row is gone or because the membership predicate failed.
func (s *Store) endorsementMiss(ctx context.Context, id string, membership error) error {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM topics WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check topic existence: %w", err)
	}
	if !exists {
		return ErrTopicNotFound
	}
	return membership
}
