package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics stores application metrics
type Metrics struct {
	RequestsTotal      uint64
	RequestsInProgress uint64
	RequestsSuccess    uint64
	RequestsFailed     uint64
	AnalysesTotal      uint64
	AnalysesFailed     uint64
	UploadsTotal       uint64
	UploadsFailed      uint64
	StartTime          time.Time

	mu             sync.Mutex
	analysesByKind map[string]uint64
}

var globalMetrics = &Metrics{
	StartTime:      time.Now(),
	analysesByKind: map[string]uint64{},
}

// IncrementRequests increments total request counter
func IncrementRequests() {
	atomic.AddUint64(&globalMetrics.RequestsTotal, 1)
}

// IncrementInProgress increments in-progress request counter
func IncrementInProgress() {
	atomic.AddUint64(&globalMetrics.RequestsInProgress, 1)
}

// DecrementInProgress decrements in-progress request counter
func DecrementInProgress() {
	atomic.AddUint64(&globalMetrics.RequestsInProgress, ^uint64(0))
}

func IncrementSuccess() {
	atomic.AddUint64(&globalMetrics.RequestsSuccess, 1)
}

func IncrementFailed() {
	atomic.AddUint64(&globalMetrics.RequestsFailed, 1)
}

// RecordAnalysis counts one submission; kind is empty on success
func RecordAnalysis(kind string) {
	atomic.AddUint64(&globalMetrics.AnalysesTotal, 1)
	if kind == "" {
		return
	}
	atomic.AddUint64(&globalMetrics.AnalysesFailed, 1)
	globalMetrics.mu.Lock()
	globalMetrics.analysesByKind[kind]++
	globalMetrics.mu.Unlock()
}

// RecordUpload counts one file of an upload request
func RecordUpload(ok bool) {
	atomic.AddUint64(&globalMetrics.UploadsTotal, 1)
	if !ok {
		atomic.AddUint64(&globalMetrics.UploadsFailed, 1)
	}
}

// GetMetrics returns current metrics
func GetMetrics() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	globalMetrics.mu.Lock()
	byKind := make(map[string]uint64, len(globalMetrics.analysesByKind))
	for k, v := range globalMetrics.analysesByKind {
		byKind[k] = v
	}
	globalMetrics.mu.Unlock()

	return map[string]interface{}{
		"requests_total":          atomic.LoadUint64(&globalMetrics.RequestsTotal),
		"requests_in_progress":    atomic.LoadUint64(&globalMetrics.RequestsInProgress),
		"requests_success":        atomic.LoadUint64(&globalMetrics.RequestsSuccess),
		"requests_failed":         atomic.LoadUint64(&globalMetrics.RequestsFailed),
		"analyses_total":          atomic.LoadUint64(&globalMetrics.AnalysesTotal),
		"analyses_failed":         atomic.LoadUint64(&globalMetrics.AnalysesFailed),
		"analyses_failed_by_kind": byKind,
		"uploads_total":           atomic.LoadUint64(&globalMetrics.UploadsTotal),
		"uploads_failed":          atomic.LoadUint64(&globalMetrics.UploadsFailed),
		"uptime_seconds":          time.Since(globalMetrics.StartTime).Seconds(),
		"memory": map[string]interface{}{
			"alloc_bytes":       m.Alloc,
			"total_alloc_bytes": m.TotalAlloc,
			"sys_bytes":         m.Sys,
			"num_gc":            m.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// MetricsMiddleware tracks request metrics
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		IncrementRequests()
		IncrementInProgress()
		defer DecrementInProgress()

		wrapped := wrap(w)
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			IncrementSuccess()
		} else {
			IncrementFailed()
		}
	})
}

// MetricsHandler returns metrics as JSON
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(GetMetrics())
}
