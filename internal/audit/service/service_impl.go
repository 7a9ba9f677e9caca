package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/voundbrand/gatehouse/internal/audit/domain"
	"github.com/voundbrand/gatehouse/internal/audit/repository"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	repo  repository.Repository
}

func New(log *zap.Logger, genID *snowflake.Node, repo repository.Repository) domain.Service {
	return &Service{
		log:   log.Named("audit.service"),
		genID: genID,
		repo:  repo,
	}
}

func (s *Service) Record(ctx context.Context, rec domain.Record) error {
	action := strings.TrimSpace(rec.Action)
	if action == "" {
		return domain.ErrInvalidAction
	}

	actorType := strings.TrimSpace(rec.ActorType)
	if actorType == "" {
		actorType = domain.ActorTypeSystem
	}
	targetType := strings.TrimSpace(rec.TargetType)
	if targetType == "" {
		targetType = "unknown"
	}

	payload := map[string]any{}
	for key, value := range rec.Metadata {
		if key == "" {
			continue
		}
		payload[key] = value
	}

	event := domain.Event{
		ID:         s.genID.Generate(),
		OrgID:      rec.OrgID,
		ActorType:  actorType,
		ActorID:    rec.ActorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   rec.TargetID,
		Outcome:    rec.Outcome,
		Metadata:   datatypes.JSONMap(payload),
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.repo.Insert(ctx, &event); err != nil {
		s.log.Warn("failed to write audit event", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) ListByAction(ctx context.Context, action string, limit int) ([]domain.Event, error) {
	if limit <= 0 || limit > 250 {
		limit = 50
	}
	return s.repo.ListByAction(ctx, strings.TrimSpace(action), limit)
}
