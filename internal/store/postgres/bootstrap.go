package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/larrybwosi/multitenancy-sub007/internal/domain"
	"github.com/larrybwosi/multitenancy-sub007/internal/store"
	"github.com/larrybwosi/multitenancy-sub007/internal/xid"
)

// TenantSeed describes the minimum rows a new organization needs before its
// admin can log in: settings, one location, one admin member and account.
type TenantSeed struct {
	OrganizationID string
	LocationName   string
	Timezone       string
	AdminName      string
	AdminUsername  string
	// AdminPassword may be plain text; it is upgraded to bcrypt on first login.
	AdminPassword string
}

// SeedTenant creates the tenant rows unless the organization already has
// settings, in which case it is a no-op and reports false.
func (s *Store) SeedTenant(ctx context.Context, seed TenantSeed) (bool, error) {
	if seed.OrganizationID == "" || seed.AdminUsername == "" || seed.AdminPassword == "" {
		return false, store.Invalid("organization, admin username and admin password are required")
	}
	if seed.Timezone == "" {
		seed.Timezone = "UTC"
	}
	if seed.LocationName == "" {
		seed.LocationName = "Main Store"
	}
	if seed.AdminName == "" {
		seed.AdminName = "Administrator"
	}

	created := false
	err := s.InTx(ctx, func(tx store.Tx) error {
		created = false
		if _, err := tx.GetSettings(ctx, seed.OrganizationID); err == nil {
			return nil
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		t := tx.(*pgTx)
		now := time.Now().UTC()
		location := domain.Location{
			ID:             xid.New("loc"),
			OrganizationID: seed.OrganizationID,
			Name:           seed.LocationName,
			Active:         true,
			CreatedAt:      now,
		}
		if _, err := t.tx.NamedExecContext(ctx, `
			INSERT INTO locations (`+locationColumns+`)
			VALUES (:id, :organization_id, :name, :active, :created_at)
		`, location); err != nil {
			return err
		}

		if err := tx.SaveSettings(ctx, domain.OrganizationSettings{
			OrganizationID:    seed.OrganizationID,
			DefaultTimezone:   seed.Timezone,
			DefaultLocationID: &location.ID,
			UpdatedAt:         now,
		}); err != nil {
			return err
		}

		member := domain.Member{
			ID:             xid.New("mem"),
			OrganizationID: seed.OrganizationID,
			Name:           seed.AdminName,
			Role:           domain.RoleAdmin,
			CreatedAt:      now,
		}
		if _, err := t.tx.NamedExecContext(ctx, `
			INSERT INTO members (`+memberColumns+`)
			VALUES (:id, :organization_id, :name, :role, :is_checked_in, :current_attendance_log_id,
				:current_check_in_location_id, :last_check_in_time, :created_at)
		`, member); err != nil {
			return err
		}

		if err := insertUser(ctx, t.tx, domain.UserAccount{
			Username:       seed.AdminUsername,
			Password:       seed.AdminPassword,
			Role:           domain.RoleAdmin,
			OrganizationID: seed.OrganizationID,
			MemberID:       member.ID,
			Active:         true,
			CreatedAt:      now,
		}); err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}
