package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/application/port"
	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/workflow"
)

// SweepService runs the periodic maintenance jobs: document expiration and
// SLA refresh / breach detection.
type SweepService struct {
	registry  *port.Registry
	documents port.DocumentStore
	sla       *SLAService
	executor  TransitionExecutor
	logger    *zap.Logger
	batchSize int
}

// NewSweepService creates a sweep service. The executor is bound later via
// SetExecutor, mirroring the scheduler.
func NewSweepService(registry *port.Registry, documents port.DocumentStore, sla *SLAService, logger *zap.Logger) *SweepService {
	return &SweepService{
		registry:  registry,
		documents: documents,
		sla:       sla,
		logger:    logger,
		batchSize: 200,
	}
}

// SetExecutor binds the transition executor used by ExpireDocuments.
func (s *SweepService) SetExecutor(executor TransitionExecutor) {
	s.executor = executor
}

// SetBatchSize overrides how many entities one sweep pass visits.
func (s *SweepService) SetBatchSize(n int) {
	if n > 0 {
		s.batchSize = n
	}
}

// ExpireDocuments transitions document packages whose signature window has
// elapsed to expired. Individual failures are logged and retried next sweep.
func (s *SweepService) ExpireDocuments(ctx context.Context, now time.Time) (int, error) {
	docs, err := s.documents.FindExpiring(ctx, now, s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to find expiring documents: %w", err)
	}

	expired := 0
	for _, doc := range docs {
		if err := s.executor.Execute(ctx, doc, workflow.DocExpired, "signature window elapsed"); err != nil {
			s.logger.Error("Failed to expire document package",
				zap.String("document_id", doc.ID),
				zap.Error(err))
			continue
		}
		expired++
	}

	if expired > 0 {
		s.logger.Info("Document expiration sweep completed", zap.Int("expired", expired))
	}
	return expired, nil
}

// RefreshSLAs recomputes stale SLA due dates across all workflow types and
// logs breaches. Returns how many entities were updated.
func (s *SweepService) RefreshSLAs(ctx context.Context, now time.Time) (int, error) {
	updated := 0
	for _, workflowType := range []workflow.Type{workflow.TypeApplication, workflow.TypeDocument, workflow.TypeFunding} {
		store, err := s.registry.Store(workflowType)
		if err != nil {
			return updated, err
		}

		entities, err := store.FindActive(ctx, s.batchSize)
		if err != nil {
			s.logger.Error("Failed to list active entities for SLA sweep",
				zap.String("workflow_type", workflowType.String()),
				zap.Error(err))
			continue
		}

		for _, e := range entities {
			due := s.sla.DueDate(e)
			if !slaDueEqual(e.Meta().SLADueAt, due) {
				if err := store.UpdateSLADue(ctx, e.Ref(), due); err != nil {
					s.logger.Error("Failed to update SLA due date",
						zap.String("entity", e.Ref().String()),
						zap.Error(err))
					continue
				}
				updated++
			}

			if due != nil && due.Before(now) {
				s.logger.Warn("SLA breached",
					zap.String("entity", e.Ref().String()),
					zap.String("state", e.Meta().CurrentState.String()),
					zap.Time("due_at", *due))
			}
		}
	}
	return updated, nil
}

func slaDueEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
