package analysis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/bossom/bossom/internal/application"
	domain "github.com/bossom/bossom/internal/domain/analysis"
	"github.com/bossom/bossom/internal/domain/audit"
)

type memAudit struct {
	mu      sync.Mutex
	entries []*audit.Entry
	err     error
}

func (m *memAudit) Save(_ context.Context, e *audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *memAudit) ListByResource(_ context.Context, resourceType, resourceID string, limit int) ([]*audit.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*audit.Entry
	for _, e := range m.entries {
		if e.ResourceType == resourceType && e.ResourceID == resourceID {
			out = append(out, e)
		}
	}
	return out, nil
}

func newTestService(t *testing.T, client domain.InferenceClient, repo audit.Repository) *Service {
	return &Service{
		Gateway: &Gateway{Client: client},
		Audit:   repo,
		Clock:   application.FixedClock{T: time.Date(2024, 10, 29, 9, 0, 0, 0, time.UTC)},
		Logger:  zaptest.NewLogger(t),
	}
}

func TestService_AnalyzeRecordsCompletedAudit(t *testing.T) {
	repo := &memAudit{}
	svc := newTestService(t, &fakeClient{body: readFixture(t, "valid_response.json")}, repo)

	res, err := svc.Analyze(context.Background(), AnalyzeCommand{
		Image:       pngBytes,
		ContentType: "image/png",
		Filename:    "left-cc.png",
		Source:      audit.Source{IPAddress: "10.0.0.7", UserAgent: "test"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Suspicious mass", res.OverallAssessment)

	entries, _ := repo.ListByResource(context.Background(), "analysis", "case-2024-001", 10)
	require.Len(t, entries, 1, "case id falls back to the one in the result")
	e := entries[0]
	assert.Equal(t, audit.ActionAnalyze, e.Action)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "10.0.0.7", e.IPAddress)
	assert.Equal(t, "completed", e.NewValues["analysis_status"])
	assert.Equal(t, 4, e.NewValues["birads_category"])
	assert.Equal(t, 1, e.NewValues["roi_count"])
}

func TestService_AnalyzeRecordsFailureKind(t *testing.T) {
	repo := &memAudit{}
	svc := newTestService(t, &fakeClient{err: domain.EndpointError(500, "")}, repo)

	_, err := svc.Analyze(context.Background(), AnalyzeCommand{CaseID: "c-1", Image: pngBytes, ContentType: "image/png"})
	assert.ErrorIs(t, err, domain.ErrEndpointError)

	require.Len(t, repo.entries, 1)
	assert.Equal(t, "c-1", repo.entries[0].ResourceID)
	assert.Equal(t, "failed", repo.entries[0].NewValues["analysis_status"])
	assert.Equal(t, "endpoint_error", repo.entries[0].NewValues["error_kind"])
}

func TestService_AuditFailureDoesNotChangeOutcome(t *testing.T) {
	repo := &memAudit{err: errors.New("db down")}
	svc := newTestService(t, &fakeClient{body: readFixture(t, "valid_response.json")}, repo)

	res, err := svc.Analyze(context.Background(), AnalyzeCommand{Image: pngBytes, ContentType: "image/png"})
	require.NoError(t, err)
	assert.NotNil(t, res)
}

func TestService_WithoutAudit(t *testing.T) {
	svc := &Service{Gateway: &Gateway{Client: &fakeClient{body: readFixture(t, "valid_response.json")}}}

	_, err := svc.Analyze(context.Background(), AnalyzeCommand{Image: pngBytes, ContentType: "image/png"})
	require.NoError(t, err)
}
