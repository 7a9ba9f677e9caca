// Package seed bootstraps the reserved system organization that internal
// tooling operates under. Account provisioning never touches it.
package seed

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	organizationdomain "github.com/voundbrand/gatehouse/internal/organization/domain"
	quotadomain "github.com/voundbrand/gatehouse/internal/quota/domain"
)

const systemOrgName = "System"

// EnsureSystemOrg creates the system organization if it does not exist. The
// system slug is reserved so the allocator can never hand it to a tenant.
func EnsureSystemOrg(db *gorm.DB, node *snowflake.Node, slug string) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if slug == "" {
		return errors.New("system org slug is required")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var org organizationdomain.Organization
		err := tx.WithContext(ctx).Where("slug = ?", slug).First(&org).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		org = organizationdomain.Organization{
			ID:       node.Generate(),
			Name:     systemOrgName,
			Slug:     slug,
			PlanTier: quotadomain.TierEnterprise,
			IsSystem: true,
			Metadata: map[string]any{},
		}
		return tx.WithContext(ctx).Create(&org).Error
	})
}
