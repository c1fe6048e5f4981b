package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/entity"
	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/workflow"
)

// SLAState classifies how an entity is tracking against its SLA window.
type SLAState string

const (
	SLAOnTrack  SLAState = "on_track"
	SLAAtRisk   SLAState = "at_risk"
	SLABreached SLAState = "breached"
)

// atRiskFraction is the share of the SLA window below which remaining time is
// flagged at risk.
const atRiskFraction = 0.25

// SLAReport describes an entity's position against the SLA window of its
// current state.
type SLAReport struct {
	HasSLA         bool       `json:"has_sla"`
	Description    string     `json:"description,omitempty"`
	DueAt          *time.Time `json:"due_at,omitempty"`
	ElapsedHours   float64    `json:"elapsed_hours"`
	RemainingHours float64    `json:"remaining_hours"`
	Status         SLAState   `json:"status,omitempty"`
	Breached       bool       `json:"breached"`
}

// SLAService computes per-state service-level deadlines from the state
// tables.
type SLAService struct {
	tables workflow.Tables
	logger *zap.Logger
}

// NewSLAService creates an SLA service.
func NewSLAService(tables workflow.Tables, logger *zap.Logger) *SLAService {
	return &SLAService{tables: tables, logger: logger}
}

// DueDate returns when the entity's current state breaches its SLA, or nil
// when the state carries no SLA definition.
func (s *SLAService) DueDate(e entity.WorkflowEntity) *time.Time {
	table, err := s.tables.Get(e.WorkflowType())
	if err != nil {
		s.logger.Warn("SLA due date requested for unknown workflow type",
			zap.String("workflow_type", e.WorkflowType().String()),
			zap.Error(err))
		return nil
	}

	def, ok := table.SLA(e.Meta().CurrentState)
	if !ok {
		return nil
	}

	due := e.Meta().StateChangedAt.Add(time.Duration(def.Hours) * time.Hour)
	return &due
}

// Status reports the entity's SLA position as of now.
func (s *SLAService) Status(e entity.WorkflowEntity) SLAReport {
	return s.statusAt(e, time.Now().UTC())
}

func (s *SLAService) statusAt(e entity.WorkflowEntity, now time.Time) SLAReport {
	table, err := s.tables.Get(e.WorkflowType())
	if err != nil {
		return SLAReport{}
	}

	meta := e.Meta()
	def, ok := table.SLA(meta.CurrentState)
	if !ok {
		return SLAReport{}
	}

	window := time.Duration(def.Hours) * time.Hour
	due := meta.StateChangedAt.Add(window)
	elapsed := now.Sub(meta.StateChangedAt)
	remaining := due.Sub(now)

	report := SLAReport{
		HasSLA:         true,
		Description:    def.Description,
		DueAt:          &due,
		ElapsedHours:   elapsed.Hours(),
		RemainingHours: remaining.Hours(),
	}

	switch {
	case remaining < 0:
		report.Status = SLABreached
		report.Breached = true
	case remaining.Hours() < float64(def.Hours)*atRiskFraction:
		report.Status = SLAAtRisk
	default:
		report.Status = SLAOnTrack
	}

	return report
}
