package api

import (
	"net/http"
	"runtime"
	"time"
)

type healthResp struct {
	Status      string      `json:"status"`
	Environment string      `json:"environment"`
	Version     string      `json:"version"`
	Timestamp   string      `json:"timestamp"`
	Uptime      float64     `json:"uptime"`
	Database    string      `json:"database"`
	Runtime     runtimeInfo `json:"runtime_info"`
	Memory      memoryInfo  `json:"memory_info"`
}

type runtimeInfo struct {
	GoVersion  string `json:"go_version"`
	OS         string `json:"os"`
	Arch       string `json:"arch"`
	CPUCount   int    `json:"cpu_count"`
	Goroutines int    `json:"goroutines"`
}

type memoryInfo struct {
	Alloc     uint64 `json:"alloc"`
	Sys       uint64 `json:"sys"`
	HeapInUse uint64 `json:"heap_in_use"`
}

// getHealth reports liveness. It answers 503 when the database is unreachable.
func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) error {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	resp := healthResp{
		Status:      "healthy",
		Environment: s.environment,
		Version:     s.version,
		Timestamp:   s.now().UTC().Format(time.RFC3339),
		Uptime:      s.now().Sub(s.started).Seconds(),
		Database:    "ok",
		Runtime: runtimeInfo{
			GoVersion:  runtime.Version(),
			OS:         runtime.GOOS,
			Arch:       runtime.GOARCH,
			CPUCount:   runtime.NumCPU(),
			Goroutines: runtime.NumGoroutine(),
		},
		Memory: memoryInfo{
			Alloc:     mem.Alloc,
			Sys:       mem.Sys,
			HeapInUse: mem.HeapInuse,
		},
	}

	status := http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		s.log.WarnContext(r.Context(), "database ping failed", "error", err)
		resp.Status = "degraded"
		resp.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}
	return writeJSON(w, status, resp)
}
