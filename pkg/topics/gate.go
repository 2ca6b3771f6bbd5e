package topics

import (
	"context"

	"github.com/PhazonicRidley/mod-mail-internal/models"
	"github.com/PhazonicRidley/mod-mail-internal/pkg/shared"
)

// authorize is the permission gate every mutating entry point passes
// through. It reads settings fresh on each call: roles and configuration
// can change between invocations, so nothing here may be cached.
func (s *Service) authorize(ctx context.Context, guildID string, actor Actor) (models.Settings, error) {
	cfg, err := s.store.GuildSettings(ctx, guildID)
	if err != nil {
		return models.Settings{}, shared.Fault(err)
	}
	if cfg.OutputChannelID == "" {
		return models.Settings{}, shared.Fail(shared.NoChannelConfigured, "No channel set or channel has been deleted")
	}
	if actor.IsAdmin {
		return cfg, nil
	}
	if len(cfg.AllowedRoleIDs) == 0 {
		return models.Settings{}, shared.Fail(shared.NoRolesConfigured, "No roles set, please have an admin set a role to use these commands")
	}
	if !intersects(actor.RoleIDs, cfg.AllowedRoleIDs) {
		return models.Settings{}, shared.Fail(shared.NotWhitelisted, "You cannot use this command.")
	}
	return cfg, nil
}

// Authorize runs the gate for callers outside the service, such as the
// pre-checks before opening a modal.
func (s *Service) Authorize(ctx context.Context, guildID string, actor Actor) error {
	_, err := s.authorize(ctx, guildID, actor)
	return err
}

func intersects(a, b []string) bool {
	for _, x := range a {
		if contains(b, x) {
			return true
		}
	}
	return false
}

func contains(slice []string, value string) bool {
	for _, item := range slice {
		if item == value {
			return true
		}
	}
	return false
}
