package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/spf13/viper"
	"github.com/voundbrand/gatehouse/internal/quota/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// defaultTiers is the built-in tier→limits table. An operator can override
// entries from a YAML file without touching the orchestrator.
var defaultTiers = map[string]domain.Limits{
	domain.TierFree: {
		StorageBytes: 250 * 1024 * 1024, // 250 MB
		MaxProjects:  3,
		MaxMembers:   5,
	},
	domain.TierPro: {
		StorageBytes: 50 * 1024 * 1024 * 1024, // 50 GB
		MaxProjects:  50,
		MaxMembers:   100,
	},
	domain.TierEnterprise: {
		StorageBytes: 1024 * 1024 * 1024 * 1024, // 1 TB
		MaxProjects:  500,
		MaxMembers:   1000,
	},
}

type initializer struct {
	log   *zap.Logger
	genID *snowflake.Node
	tiers map[string]domain.Limits
}

// New builds the quota initializer, loading tier overrides from the given
// YAML file when one is configured.
func New(log *zap.Logger, genID *snowflake.Node, tiersFile string) (domain.Initializer, error) {
	tiers := make(map[string]domain.Limits, len(defaultTiers))
	for name, limits := range defaultTiers {
		tiers[name] = limits
	}

	if strings.TrimSpace(tiersFile) != "" {
		v := viper.New()
		v.SetConfigFile(tiersFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
		var overrides map[string]domain.Limits
		if err := v.UnmarshalKey("tiers", &overrides); err != nil {
			return nil, err
		}
		for name, limits := range overrides {
			tiers[strings.ToLower(name)] = limits
			log.Info("quota tier override loaded", zap.String("tier", name))
		}
	}

	return &initializer{
		log:   log.Named("quota.initializer"),
		genID: genID,
		tiers: tiers,
	}, nil
}

func (s *initializer) LimitsFor(tier string) (domain.Limits, error) {
	limits, ok := s.tiers[strings.ToLower(strings.TrimSpace(tier))]
	if !ok {
		return domain.Limits{}, domain.ErrUnknownTier
	}
	return limits, nil
}

func (s *initializer) Initialize(ctx context.Context, tx *gorm.DB, tier string, orgID, accountID snowflake.ID) error {
	limits, err := s.LimitsFor(tier)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	rows := []domain.Quota{
		{
			ID:           s.genID.Generate(),
			OwnerType:    domain.OwnerTypeOrganization,
			OwnerID:      orgID,
			StorageBytes: limits.StorageBytes,
			MaxProjects:  limits.MaxProjects,
			MaxMembers:   limits.MaxMembers,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		{
			ID:           s.genID.Generate(),
			OwnerType:    domain.OwnerTypeAccount,
			OwnerID:      accountID,
			StorageBytes: limits.StorageBytes,
			MaxProjects:  limits.MaxProjects,
			MaxMembers:   limits.MaxMembers,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}

	return tx.WithContext(ctx).Create(&rows).Error
}
