package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics stores application metrics
type Metrics struct {
	RequestsTotal      uint64
	RequestsInProgress uint64
	RequestsSuccess    uint64
	RequestsFailed     uint64
	SendsTotal         uint64
	UploadsTotal       uint64
	UploadsFailed      uint64
	ChatsFailed        uint64
	ProxyFailed        uint64
	StartTime          time.Time
}

var globalMetrics = &Metrics{
	StartTime: time.Now(),
}

// sessionGauge reports open sessions; set once at startup.
var sessionGauge atomic.Value

// SetSessionGauge registers the function reporting open chat sessions.
func SetSessionGauge(fn func() int) {
	sessionGauge.Store(fn)
}

func IncrementRequests() {
	atomic.AddUint64(&globalMetrics.RequestsTotal, 1)
}

func IncrementInProgress() {
	atomic.AddUint64(&globalMetrics.RequestsInProgress, 1)
}

func DecrementInProgress() {
	atomic.AddUint64(&globalMetrics.RequestsInProgress, ^uint64(0))
}

func IncrementSuccess() {
	atomic.AddUint64(&globalMetrics.RequestsSuccess, 1)
}

func IncrementFailed() {
	atomic.AddUint64(&globalMetrics.RequestsFailed, 1)
}

// IncrementSends counts messages sent from the chat page.
func IncrementSends() {
	atomic.AddUint64(&globalMetrics.SendsTotal, 1)
}

// IncrementUploads counts spreadsheet uploads, failed or not.
func IncrementUploads() {
	atomic.AddUint64(&globalMetrics.UploadsTotal, 1)
}

func IncrementUploadsFailed() {
	atomic.AddUint64(&globalMetrics.UploadsFailed, 1)
}

func IncrementChatsFailed() {
	atomic.AddUint64(&globalMetrics.ChatsFailed, 1)
}

// IncrementProxyFailed counts /api calls that never got a backend answer.
func IncrementProxyFailed() {
	atomic.AddUint64(&globalMetrics.ProxyFailed, 1)
}

// GetMetrics returns current metrics
func GetMetrics() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	sessions := 0
	if fn, ok := sessionGauge.Load().(func() int); ok && fn != nil {
		sessions = fn()
	}

	return map[string]interface{}{
		"requests_total":       atomic.LoadUint64(&globalMetrics.RequestsTotal),
		"requests_in_progress": atomic.LoadUint64(&globalMetrics.RequestsInProgress),
		"requests_success":     atomic.LoadUint64(&globalMetrics.RequestsSuccess),
		"requests_failed":      atomic.LoadUint64(&globalMetrics.RequestsFailed),
		"sends_total":          atomic.LoadUint64(&globalMetrics.SendsTotal),
		"uploads_total":        atomic.LoadUint64(&globalMetrics.UploadsTotal),
		"uploads_failed":       atomic.LoadUint64(&globalMetrics.UploadsFailed),
		"chats_failed":         atomic.LoadUint64(&globalMetrics.ChatsFailed),
		"proxy_failed":         atomic.LoadUint64(&globalMetrics.ProxyFailed),
		"sessions_open":        sessions,
		"uptime_seconds":       time.Since(globalMetrics.StartTime).Seconds(),
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

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

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
