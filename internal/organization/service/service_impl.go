package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/voundbrand/gatehouse/internal/organization/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxSlugLength    = 50
	maxSlugAttempts  = 25
	fallbackSlugBase = "workspace"
)

type service struct {
	log   *zap.Logger
	genID *snowflake.Node
}

func New(log *zap.Logger, genID *snowflake.Node) domain.Service {
	return &service{
		log:   log.Named("organization.service"),
		genID: genID,
	}
}

// AllocateSlug normalizes the display name and probes for an unused slug,
// appending -2, -3, ... on collision. The caller must run this inside the
// same transaction as the organization insert so the existence check and the
// insert are atomic.
func (s *service) AllocateSlug(ctx context.Context, repo domain.Repository, displayName string) (string, error) {
	base := slugify(displayName)

	for attempt := 1; attempt <= maxSlugAttempts; attempt++ {
		candidate := base
		if attempt > 1 {
			suffix := fmt.Sprintf("-%d", attempt)
			trimmed := base
			if len(trimmed)+len(suffix) > maxSlugLength {
				trimmed = strings.TrimRight(trimmed[:maxSlugLength-len(suffix)], "-")
			}
			candidate = trimmed + suffix
		}

		taken, err := repo.SlugExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}

	s.log.Warn("slug space exhausted", zap.String("display_name", displayName), zap.String("base", base))
	return "", domain.ErrSlugExhausted
}

func (s *service) GetOrCreateRole(ctx context.Context, repo domain.Repository, name string) (*domain.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	role, err := repo.FindRole(ctx, name)
	if err == nil {
		return role, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	role = &domain.Role{
		ID:        s.genID.Generate(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.CreateRole(ctx, role); err != nil {
		// A concurrent create keyed by the same name wins the race; read
		// it back instead of failing.
		if existing, findErr := repo.FindRole(ctx, name); findErr == nil {
			return existing, nil
		}
		return nil, err
	}
	return role, nil
}

func slugify(displayName string) string {
	base := slug.Make(strings.ReplaceAll(displayName, "'", ""))
	if len(base) > maxSlugLength {
		base = strings.TrimRight(base[:maxSlugLength], "-")
	}
	if base == "" {
		base = fallbackSlugBase
	}
	return base
}
