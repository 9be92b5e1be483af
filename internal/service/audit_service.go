package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"privlens/internal/repository"
)

// AuditLister is implemented by the audit repository.
type AuditLister interface {
	ListRecent(ctx context.Context, limit, offset int) ([]repository.AnalysisAudit, error)
	DeleteOlderThan(ctx context.Context, days int) (int64, error)
}

type AuditService struct {
	repo AuditLister
	log  zerolog.Logger
}

func NewAuditService(repo AuditLister, log zerolog.Logger) *AuditService {
	return &AuditService{repo: repo, log: log}
}

func (s *AuditService) ListRecent(ctx context.Context, limit, offset int) ([]repository.AnalysisAudit, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.repo.ListRecent(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	return rows, nil
}

// CleanupOld removes audit rows older than days.
func (s *AuditService) CleanupOld(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, fmt.Errorf("%w: retention days must be positive", ErrInvalidInput)
	}
	deleted, err := s.repo.DeleteOlderThan(ctx, days)
	if err != nil {
		s.log.Error().Err(err).Int("days", days).Msg("failed to cleanup old analysis audits")
		return 0, err
	}
	if deleted > 0 {
		s.log.Info().Int64("deleted_count", deleted).Int("days", days).Msg("cleaned up old analysis audits")
	}
	return deleted, nil
}
