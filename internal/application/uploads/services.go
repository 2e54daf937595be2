package uploads

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bossom/bossom/internal/application"
	"github.com/bossom/bossom/internal/domain/analysis"
	"github.com/bossom/bossom/internal/domain/audit"
	domain "github.com/bossom/bossom/internal/domain/uploads"
)

const defaultConcurrency = 4

// File is one file of an upload request
type File struct {
	Name        string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// UploadCommand untuk upload gambar ke satu case
type UploadCommand struct {
	CaseID string
	Files  []File
	Source audit.Source
}

// Service moves accepted files into object storage and feeds transfer progress into the
// Collector. Files are transferred independently; one failing file never affects another.
type Service struct {
	Collector   *Collector
	Store       domain.ObjectStore
	Audit       audit.Repository
	Clock       application.Clock
	Logger      *zap.Logger
	Concurrency int
}

// Upload returns the final task snapshots in input order.
func (s *Service) Upload(ctx context.Context, cmd UploadCommand) ([]domain.UploadTask, error) {
	if s.Store == nil {
		return nil, fmt.Errorf("object store is not configured")
	}
	refs := make([]domain.FileRef, len(cmd.Files))
	for i, f := range cmd.Files {
		refs[i] = domain.FileRef{Name: f.Name, Size: f.Size}
	}
	tasks := s.Collector.Accept(refs)

	limit := s.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for i, t := range tasks {
		if t.Status != domain.StatusPending {
			continue
		}
		f := cmd.Files[i]
		id := t.ID
		g.Go(func() error {
			s.transfer(ctx, cmd.CaseID, id, f)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domain.UploadTask, len(tasks))
	for i, t := range tasks {
		snap, err := s.Collector.Get(t.ID)
		if err != nil {
			// removed while uploading
			snap = t
		}
		out[i] = snap
		s.recorder().Record(ctx, &audit.Entry{
			Action:       audit.ActionUpload,
			ResourceType: audit.ResourceImage,
			ResourceID:   snap.ID,
			NewValues: map[string]any{
				"case_id":       cmd.CaseID,
				"file_name":     snap.SourceFileRef,
				"file_size":     snap.Size,
				"upload_status": string(snap.Status),
				"error":         snap.Error,
			},
			IPAddress: cmd.Source.IPAddress,
			UserAgent: cmd.Source.UserAgent,
		})
	}
	return out, nil
}

func (s *Service) transfer(ctx context.Context, caseID, id string, f File) {
	log := s.logger().With(zap.String("task_id", id), zap.String("file", f.Name))

	fail := func(reason string, err error) {
		log.Warn("upload failed", zap.String("reason", reason), zap.Error(err))
		if _, ferr := s.Collector.Fail(id, reason); ferr != nil {
			log.Debug("fail after terminal", zap.Error(ferr))
		}
	}

	if _, err := s.Collector.ReportProgress(id, 0); err != nil {
		log.Debug("task vanished before transfer", zap.Error(err))
		return
	}
	if f.Open == nil {
		fail("file is not readable", nil)
		return
	}
	rc, err := f.Open()
	if err != nil {
		fail("file is not readable", err)
		return
	}
	defer rc.Close()

	var (
		mu   sync.Mutex
		last int
	)
	progress := func(written int64) {
		if f.Size <= 0 {
			return
		}
		pct := int(written * 100 / f.Size)
		// 100 means stored, which only the store's return value confirms
		if pct > 99 {
			pct = 99
		}
		mu.Lock()
		defer mu.Unlock()
		if pct <= last {
			return
		}
		if _, err := s.Collector.ReportProgress(id, pct); err == nil {
			last = pct
		}
	}

	key := ObjectKey(caseID, id, f.Name)
	ct := analysis.ContentTypeForFile(f.Name, f.ContentType)
	url, err := s.Store.Put(ctx, key, rc, f.Size, ct, progress)
	if err != nil {
		fail("failed to store file", err)
		return
	}
	if _, err := s.Collector.ReportProgress(id, 100); err != nil {
		log.Warn("completing task", zap.Error(err))
		return
	}
	if _, err := s.Collector.Attach(id, url); err != nil {
		log.Warn("attaching object url", zap.Error(err))
	}
}

// ObjectKey is cases/{caseID}/{taskID}{ext}
func ObjectKey(caseID, taskID, filename string) string {
	if strings.TrimSpace(caseID) == "" {
		caseID = "unassigned"
	}
	return fmt.Sprintf("cases/%s/%s%s", caseID, taskID, strings.ToLower(filepath.Ext(filename)))
}

func (s *Service) recorder() application.AuditRecorder {
	return application.AuditRecorder{Repo: s.Audit, Clock: s.Clock, Logger: s.logger()}
}

func (s *Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
