package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/PhazonicRidley/mod-mail-internal/models"
)

// EnsureGuild inserts a settings row for the guild if one does not exist.
// Called before every settings write, mirroring guild join.
func (s *Store) EnsureGuild(ctx context.Context, guildID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (guild_id) VALUES ($1)
		ON CONFLICT (guild_id) DO NOTHING
	`, guildID)
	if err != nil {
		return fmt.Errorf("ensure guild settings: %w", err)
	}
	return nil
}

// GuildSettings reads the settings row for a guild. A guild with no row
// reads as zero-value settings; callers fail closed on the empty output
// channel.
func (s *Store) GuildSettings(ctx context.Context, guildID string) (models.Settings, error) {
	var cfg models.Settings
	var outputChannel, statusThread sql.NullString
	var roles string
	err := s.db.QueryRowContext(ctx, `
		SELECT guild_id, output_channel_id, array_to_string(allowed_role_ids, ','), status_thread_id
		FROM settings WHERE guild_id = $1
	`, guildID).Scan(&cfg.GuildID, &outputChannel, &roles, &statusThread)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Settings{GuildID: guildID}, nil
	}
	if err != nil {
		return models.Settings{}, fmt.Errorf("read guild settings: %w", err)
	}
	cfg.OutputChannelID = outputChannel.String
	cfg.StatusThreadID = statusThread.String
	cfg.AllowedRoleIDs = splitArray(roles)
	return cfg, nil
}

// SetOutputChannel assigns the guild's topic forum.
func (s *Store) SetOutputChannel(ctx context.Context, guildID, channelID string) error {
	if err := s.EnsureGuild(ctx, guildID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `UPDATE settings SET output_channel_id = $1 WHERE guild_id = $2`, channelID, guildID)
	if err != nil {
		return fmt.Errorf("set output channel: %w", err)
	}
	return nil
}

// ClearOutputChannel unsets the guild's topic forum.
func (s *Store) ClearOutputChannel(ctx context.Context, guildID string) error {
	if err := s.EnsureGuild(ctx, guildID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `UPDATE settings SET output_channel_id = NULL WHERE guild_id = $1`, guildID)
	if err != nil {
		return fmt.Errorf("clear output channel: %w", err)
	}
	return nil
}

// AddAllowedRole appends a role to the whitelist if not already present.
// Returns false when the role was already whitelisted.
func (s *Store) AddAllowedRole(ctx context.Context, guildID, roleID string) (bool, error) {
	if err := s.EnsureGuild(ctx, guildID); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE settings SET allowed_role_ids = array_append(allowed_role_ids, $1::text)
		WHERE guild_id = $2 AND NOT (allowed_role_ids @> ARRAY[$1::text])
	`, roleID, guildID)
	if err != nil {
		return false, fmt.Errorf("add allowed role: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add allowed role: %w", err)
	}
	return n > 0, nil
}

// RemoveAllowedRole deletes a role from the whitelist. Returns false when
// the role was not whitelisted.
func (s *Store) RemoveAllowedRole(ctx context.Context, guildID, roleID string) (bool, error) {
	if err := s.EnsureGuild(ctx, guildID); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE settings SET allowed_role_ids = array_remove(allowed_role_ids, $1::text)
		WHERE guild_id = $2 AND allowed_role_ids @> ARRAY[$1::text]
	`, roleID, guildID)
	if err != nil {
		return false, fmt.Errorf("remove allowed role: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove allowed role: %w", err)
	}
	return n > 0, nil
}

// SetStatusThread records the thread anchoring the priority snapshot.
func (s *Store) SetStatusThread(ctx context.Context, guildID, threadID string) error {
	if err := s.EnsureGuild(ctx, guildID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `UPDATE settings SET status_thread_id = $1 WHERE guild_id = $2`, threadID, guildID)
	if err != nil {
		return fmt.Errorf("set status thread: %w", err)
	}
	return nil
}
