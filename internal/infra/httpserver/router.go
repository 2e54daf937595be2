package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	appanalysis "github.com/bossom/bossom/internal/application/analysis"
	appuploads "github.com/bossom/bossom/internal/application/uploads"
	domain "github.com/bossom/bossom/internal/domain/analysis"
	"github.com/bossom/bossom/internal/domain/audit"
	domup "github.com/bossom/bossom/internal/domain/uploads"
	"github.com/bossom/bossom/internal/middleware"
)

// multipart bodies above this are spooled to disk by net/http
const maxMemory = 32 << 20

// room for multipart boundaries and the small text fields next to the files
const formOverhead = 1 << 20

const (
	defaultMaxUploadFiles = 20
	defaultAuditLimit     = 20
	maxAuditLimit         = 100
)

// Options for NewRouter. Nil fields switch the matching feature off.
type Options struct {
	CORSOrigins    []string
	MaxUploadBytes int64
	MaxUploadFiles int
	RateLimiter    *middleware.RateLimiter
	Checkers       map[string]middleware.HealthChecker
	AuditLog       audit.Repository
	Logger         *zap.Logger
}

type Router struct {
	analysisSvc *appanalysis.Service
	uploadSvc   *appuploads.Service
	opts        Options
	log         *zap.Logger
}

func NewRouter(analysisSvc *appanalysis.Service, uploadSvc *appuploads.Service, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = appuploads.DefaultMaxSize
	}
	if opts.MaxUploadFiles <= 0 {
		opts.MaxUploadFiles = defaultMaxUploadFiles
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	r := &Router{analysisSvc: analysisSvc, uploadSvc: uploadSvc, opts: opts, log: opts.Logger}

	mux := chi.NewRouter()
	mux.Use(chimw.RealIP)
	mux.Use(chimw.Recoverer)
	mux.Use(middleware.Logging(opts.Logger))
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	mux.Get("/health", middleware.LivenessHandler)
	mux.Get("/health/ready", middleware.ReadinessHandler(opts.Checkers))
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/api", func(rt chi.Router) {
		rt.Group(func(g chi.Router) {
			if opts.RateLimiter != nil {
				g.Use(middleware.RateLimit(opts.RateLimiter))
			}
			g.Post("/analyze", r.wrap(r.handleAnalyze))
		})
		rt.Post("/cases/{caseID}/images", r.wrap(r.handleUpload))
		rt.Get("/uploads/{taskID}", r.wrap(r.handleGetTask))
		rt.Delete("/uploads/{taskID}", r.wrap(r.handleDeleteTask))
		rt.Get("/audit/{resourceType}/{resourceID}", r.wrap(r.handleAuditLog))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// httpError is a handler level failure with a fixed status and message
type httpError struct {
	status  int
	message string
}

func (e *httpError) Error() string { return e.message }

func badRequest(msg string) error { return &httpError{status: http.StatusBadRequest, message: msg} }

func tooLarge(msg string) error {
	return &httpError{status: http.StatusRequestEntityTooLarge, message: msg}
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		var he *httpError
		if errors.As(err, &he) {
			writeJSON(w, he.status, map[string]any{"error": he.message})
			return
		}
		var ae *domain.Error
		if errors.As(err, &ae) {
			status, body := analysisErrorBody(ae)
			writeJSON(w, status, body)
			return
		}
		if errors.Is(err, domup.ErrTaskNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "upload task not found"})
			return
		}
		r.log.Error("unhandled error", zap.String("path", req.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal server error"})
	}
}

// analysisErrorBody maps each failure kind to its own status and a body the web client
// can branch on. Upstream bodies are never echoed back.
func analysisErrorBody(ae *domain.Error) (int, map[string]any) {
	body := map[string]any{"error": "Error analyzing image", "kind": string(ae.Kind)}
	switch ae.Kind {
	case domain.KindInvalidInput:
		body["error"] = ae.Message
		return http.StatusBadRequest, body
	case domain.KindEndpointUnreachable:
		return http.StatusInternalServerError, body
	case domain.KindEndpointError:
		body["upstreamStatus"] = ae.StatusCode
		return http.StatusBadGateway, body
	case domain.KindSchemaViolation:
		body["fields"] = ae.Fields
		return http.StatusBadGateway, body
	}
	return http.StatusBadGateway, body
}

// POST /api/analyze
// Body: multipart/form-data with file field "image" and optional "caseId"
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	if r.analysisSvc == nil {
		return &httpError{status: http.StatusServiceUnavailable, message: "analysis is not configured"}
	}
	req.Body = http.MaxBytesReader(w, req.Body, r.opts.MaxUploadBytes+formOverhead)
	if err := req.ParseMultipartForm(maxMemory); err != nil {
		if isTooLarge(err) {
			return tooLarge("image exceeds maximum size")
		}
		return badRequest("No image provided")
	}
	defer req.MultipartForm.RemoveAll()

	file, hdr, err := req.FormFile("image")
	if err != nil {
		return badRequest("No image provided")
	}
	defer file.Close()
	image, err := io.ReadAll(file)
	if err != nil {
		return err
	}
	// a zero-byte file part is the same as no image at all
	if len(image) == 0 {
		return badRequest("No image provided")
	}
	caseID := middleware.SanitizeString(req.FormValue("caseId"))
	if caseID != "" {
		if err := middleware.ValidateCaseID(caseID); err != nil {
			return badRequest(err.Error())
		}
	}

	filename := middleware.SanitizeFilename(hdr.Filename)
	res, err := r.analysisSvc.Analyze(req.Context(), appanalysis.AnalyzeCommand{
		CaseID:      caseID,
		Image:       image,
		ContentType: domain.ContentTypeForFile(filename, hdr.Header.Get("Content-Type")),
		Filename:    filename,
		Source:      source(req),
	})
	middleware.RecordAnalysis(string(domain.KindOf(err)))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, res)
	return nil
}

// POST /api/cases/{caseID}/images
// Body: multipart/form-data with one or more "files"
func (r *Router) handleUpload(w http.ResponseWriter, req *http.Request) error {
	if r.uploadSvc == nil {
		return &httpError{status: http.StatusServiceUnavailable, message: "uploads are not configured"}
	}
	caseID := chi.URLParam(req, "caseID")
	if err := middleware.ValidateCaseID(caseID); err != nil {
		return badRequest(err.Error())
	}
	limit := int64(r.opts.MaxUploadFiles)*r.opts.MaxUploadBytes + formOverhead
	req.Body = http.MaxBytesReader(w, req.Body, limit)
	if err := req.ParseMultipartForm(maxMemory); err != nil {
		if isTooLarge(err) {
			return tooLarge("upload exceeds maximum size")
		}
		return badRequest("No files provided")
	}
	defer req.MultipartForm.RemoveAll()

	headers := req.MultipartForm.File["files"]
	if len(headers) == 0 {
		return badRequest("No files provided")
	}
	if len(headers) > r.opts.MaxUploadFiles {
		return badRequest(fmt.Sprintf("at most %d files per upload", r.opts.MaxUploadFiles))
	}
	files := make([]appuploads.File, len(headers))
	for i, fh := range headers {
		files[i] = formFile(fh)
	}

	tasks, err := r.uploadSvc.Upload(req.Context(), appuploads.UploadCommand{
		CaseID: caseID,
		Files:  files,
		Source: source(req),
	})
	if err != nil {
		return err
	}
	for _, t := range tasks {
		middleware.RecordUpload(t.Status == domup.StatusSuccess)
	}
	writeJSON(w, http.StatusOK, map[string]any{"caseId": caseID, "tasks": tasks})
	return nil
}

// GET /api/uploads/{taskID}
func (r *Router) handleGetTask(w http.ResponseWriter, req *http.Request) error {
	if r.uploadSvc == nil {
		return &httpError{status: http.StatusServiceUnavailable, message: "uploads are not configured"}
	}
	id := chi.URLParam(req, "taskID")
	if err := middleware.ValidateTaskID(id); err != nil {
		return badRequest(err.Error())
	}
	task, err := r.uploadSvc.Collector.Get(id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, task)
	return nil
}

// DELETE /api/uploads/{taskID}
func (r *Router) handleDeleteTask(w http.ResponseWriter, req *http.Request) error {
	if r.uploadSvc == nil {
		return &httpError{status: http.StatusServiceUnavailable, message: "uploads are not configured"}
	}
	id := chi.URLParam(req, "taskID")
	if err := middleware.ValidateTaskID(id); err != nil {
		return badRequest(err.Error())
	}
	if err := r.uploadSvc.Collector.Remove(id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// GET /api/audit/{resourceType}/{resourceID}?limit=n
// Newest entries first, for the compliance screen.
func (r *Router) handleAuditLog(w http.ResponseWriter, req *http.Request) error {
	if r.opts.AuditLog == nil {
		return &httpError{status: http.StatusServiceUnavailable, message: "audit trail is not configured"}
	}
	resourceType := chi.URLParam(req, "resourceType")
	if resourceType != audit.ResourceAnalysis && resourceType != audit.ResourceImage {
		return badRequest("unknown resource type")
	}
	resourceID := chi.URLParam(req, "resourceID")
	if err := middleware.ValidateCaseID(resourceID); err != nil {
		return badRequest("invalid resource ID")
	}
	limit := defaultAuditLimit
	if v := req.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxAuditLimit {
			return badRequest(fmt.Sprintf("limit must be between 1 and %d", maxAuditLimit))
		}
		limit = n
	}

	entries, err := r.opts.AuditLog.ListByResource(req.Context(), resourceType, resourceID, limit)
	if err != nil {
		return fmt.Errorf("list audit entries: %w", err)
	}
	if entries == nil {
		entries = []*audit.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"resourceType": resourceType,
		"resourceId":   resourceID,
		"entries":      entries,
	})
	return nil
}

func formFile(fh *multipart.FileHeader) appuploads.File {
	return appuploads.File{
		Name:        middleware.SanitizeFilename(fh.Filename),
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

func source(req *http.Request) audit.Source {
	return audit.Source{IPAddress: middleware.ClientIP(req), UserAgent: req.UserAgent()}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
