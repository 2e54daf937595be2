package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bossom/bossom/internal/domain/audit"
)

const auditTimeout = 5 * time.Second

// AuditRecorder writes audit entries best-effort. A nil Repo disables it.
type AuditRecorder struct {
	Repo   audit.Repository
	Clock  Clock
	Logger *zap.Logger
}

// Record assigns ID and timestamp and saves e. It survives cancellation of ctx so an
// abandoned request still leaves its trail.
func (r AuditRecorder) Record(ctx context.Context, e *audit.Entry) {
	if r.Repo == nil {
		return
	}
	e.ID = uuid.NewString()
	if r.Clock != nil {
		e.CreatedAt = r.Clock.Now().UTC()
	} else {
		e.CreatedAt = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()
	if err := r.Repo.Save(ctx, e); err != nil && r.Logger != nil {
		r.Logger.Error("audit write failed",
			zap.String("action", string(e.Action)),
			zap.String("resource_id", e.ResourceID),
			zap.Error(err))
	}
}
