package analysis

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bossom/bossom/internal/application"
	domain "github.com/bossom/bossom/internal/domain/analysis"
	"github.com/bossom/bossom/internal/domain/audit"
)

// Submitter is what the Service needs from the Gateway
type Submitter interface {
	Submit(ctx context.Context, image []byte, contentType, filename string) (*domain.AnalysisResult, error)
}

// Service implements the analyze use-case: one gateway submission plus an audit entry.
// Audit is optional; a failed audit write is logged and never changes the outcome.
type Service struct {
	Gateway Submitter
	Audit   audit.Repository
	Clock   application.Clock
	Logger  *zap.Logger
}

// AnalyzeCommand is one image submitted for analysis
type AnalyzeCommand struct {
	CaseID      string
	Image       []byte
	ContentType string
	Filename    string
	Source      audit.Source
}

func (s *Service) Analyze(ctx context.Context, cmd AnalyzeCommand) (*domain.AnalysisResult, error) {
	start := s.now()
	res, err := s.Gateway.Submit(ctx, cmd.Image, cmd.ContentType, cmd.Filename)
	elapsed := s.now().Sub(start)

	values := map[string]any{
		"filename":           cmd.Filename,
		"content_type":       cmd.ContentType,
		"size_bytes":         len(cmd.Image),
		"processing_time_ms": elapsed.Milliseconds(),
	}
	if err != nil {
		kind := domain.KindOf(err)
		values["analysis_status"] = "failed"
		values["error_kind"] = string(kind)
		s.logger().Warn("analysis failed",
			zap.String("case_id", cmd.CaseID),
			zap.String("kind", string(kind)),
			zap.Error(err))
	} else {
		values["analysis_status"] = "completed"
		values["birads_category"] = res.BiradsCategory
		values["confidence_score"] = res.ConfidenceScore
		values["roi_count"] = len(res.RegionsOfInterest)
		if cmd.CaseID == "" {
			cmd.CaseID = res.CaseID
		}
	}
	s.record(ctx, &audit.Entry{
		Action:       audit.ActionAnalyze,
		ResourceType: audit.ResourceAnalysis,
		ResourceID:   cmd.CaseID,
		NewValues:    values,
		IPAddress:    cmd.Source.IPAddress,
		UserAgent:    cmd.Source.UserAgent,
	})
	return res, err
}

func (s *Service) record(ctx context.Context, e *audit.Entry) {
	application.AuditRecorder{Repo: s.Audit, Clock: s.Clock, Logger: s.logger()}.Record(ctx, e)
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

func (s *Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
