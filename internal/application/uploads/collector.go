package uploads

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	domain "github.com/bossom/bossom/internal/domain/uploads"
)

// DefaultAllowedExtensions mirrors the upload dropzone
var DefaultAllowedExtensions = []string{".dcm", ".dicom", ".jpg", ".jpeg", ".png", ".tiff"}

// DefaultMaxSize is 50MB
const DefaultMaxSize int64 = 50 << 20

// Collector tracks upload tasks in memory. Each task is its own cell with its own lock,
// so concurrent progress on different tasks never contends on a shared counter.
// The Collector performs no I/O.
type Collector struct {
	maxSize int64
	allowed map[string]bool
	newID   func() string
	now     func() time.Time

	mu    sync.RWMutex
	tasks map[string]*taskCell
}

type taskCell struct {
	mu   sync.Mutex
	task domain.UploadTask
	// finishedAt is set once the task turns terminal
	finishedAt time.Time
}

// NewCollector builds a Collector. maxSize <= 0 and an empty extension list fall back to defaults.
func NewCollector(maxSize int64, allowedExt []string) *Collector {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if len(allowedExt) == 0 {
		allowedExt = DefaultAllowedExtensions
	}
	allowed := make(map[string]bool, len(allowedExt))
	for _, ext := range allowedExt {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = true
	}
	return &Collector{
		maxSize: maxSize,
		allowed: allowed,
		newID:   uuid.NewString,
		now:     time.Now,
		tasks:   make(map[string]*taskCell),
	}
}

// Accept registers one task per file, in input order. Files over the size limit or with a
// disallowed extension get a task that is already in error.
func (c *Collector) Accept(files []domain.FileRef) []domain.UploadTask {
	out := make([]domain.UploadTask, 0, len(files))
	cells := make([]*taskCell, 0, len(files))
	for _, f := range files {
		t := domain.UploadTask{
			ID:            c.newID(),
			SourceFileRef: f.Name,
			Size:          f.Size,
			Status:        domain.StatusPending,
		}
		cell := &taskCell{task: t}
		if reason := c.reject(f); reason != "" {
			cell.task.Status = domain.StatusError
			cell.task.Error = reason
			cell.finishedAt = c.now()
		}
		cells = append(cells, cell)
		out = append(out, cell.task)
	}

	c.mu.Lock()
	for _, cell := range cells {
		c.tasks[cell.task.ID] = cell
	}
	c.mu.Unlock()
	return out
}

func (c *Collector) reject(f domain.FileRef) string {
	ext := strings.ToLower(filepath.Ext(f.Name))
	if !c.allowed[ext] {
		if ext == "" {
			return "file has no extension"
		}
		return fmt.Sprintf("file type %s is not allowed", ext)
	}
	if f.Size > c.maxSize {
		return fmt.Sprintf("file exceeds maximum size of %d MB", c.maxSize>>20)
	}
	if f.Size < 0 {
		return "invalid file size"
	}
	return ""
}

// ReportProgress moves a task forward. Progress must be in [0,100] and never below the
// last reported value; regressions are rejected, not clamped. Reaching 100 completes
// the task.
func (c *Collector) ReportProgress(id string, percent int) (domain.UploadTask, error) {
	if percent < 0 || percent > 100 {
		return domain.UploadTask{}, fmt.Errorf("%w: %d", domain.ErrProgressOutOfRange, percent)
	}
	cell, err := c.cell(id)
	if err != nil {
		return domain.UploadTask{}, err
	}

	cell.mu.Lock()
	defer cell.mu.Unlock()
	t := &cell.task
	if t.Status.Terminal() {
		return *t, fmt.Errorf("%w: %s is %s", domain.ErrTaskTerminal, id, t.Status)
	}
	if percent < t.Progress {
		return *t, fmt.Errorf("%w: %s from %d to %d", domain.ErrProgressRegression, id, t.Progress, percent)
	}
	t.Progress = percent
	t.Status = domain.StatusUploading
	if percent == 100 {
		t.Status = domain.StatusSuccess
		cell.finishedAt = c.now()
	}
	return *t, nil
}

// Fail moves a non-terminal task to error with reason attached.
func (c *Collector) Fail(id, reason string) (domain.UploadTask, error) {
	cell, err := c.cell(id)
	if err != nil {
		return domain.UploadTask{}, err
	}

	cell.mu.Lock()
	defer cell.mu.Unlock()
	t := &cell.task
	if t.Status.Terminal() {
		return *t, fmt.Errorf("%w: %s is %s", domain.ErrTaskTerminal, id, t.Status)
	}
	if strings.TrimSpace(reason) == "" {
		reason = "upload failed"
	}
	t.Status = domain.StatusError
	t.Error = reason
	cell.finishedAt = c.now()
	return *t, nil
}

// Attach records where a task's object ended up. Only successful tasks carry a URL.
func (c *Collector) Attach(id, objectURL string) (domain.UploadTask, error) {
	cell, err := c.cell(id)
	if err != nil {
		return domain.UploadTask{}, err
	}

	cell.mu.Lock()
	defer cell.mu.Unlock()
	if cell.task.Status != domain.StatusSuccess {
		return cell.task, fmt.Errorf("attach %s: task is %s", id, cell.task.Status)
	}
	cell.task.ObjectURL = objectURL
	return cell.task, nil
}

// Get returns a snapshot of one task
func (c *Collector) Get(id string) (domain.UploadTask, error) {
	cell, err := c.cell(id)
	if err != nil {
		return domain.UploadTask{}, err
	}
	cell.mu.Lock()
	defer cell.mu.Unlock()
	return cell.task, nil
}

// Remove discards a task
func (c *Collector) Remove(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tasks[id]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
	}
	delete(c.tasks, id)
	return nil
}

// Sweep drops terminal tasks that finished more than maxAge ago and returns how many
// were dropped. Tasks still pending or uploading are never swept.
func (c *Collector) Sweep(maxAge time.Duration) int {
	cutoff := c.now().Add(-maxAge)
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for id, cell := range c.tasks {
		cell.mu.Lock()
		expired := cell.task.Status.Terminal() && cell.finishedAt.Before(cutoff)
		cell.mu.Unlock()
		if expired {
			delete(c.tasks, id)
			n++
		}
	}
	return n
}

// Len is the number of tracked tasks
func (c *Collector) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tasks)
}

func (c *Collector) cell(id string) (*taskCell, error) {
	c.mu.RLock()
	cell, ok := c.tasks[id]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
	}
	return cell, nil
}
