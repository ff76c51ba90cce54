package routes

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"fileflow/logger"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	GoVersion string            `json:"go_version"`
	Uptime    string            `json:"uptime"`
	StartTime string            `json:"start_time"`
	Checks    map[string]string `json:"checks"`
}

// Global start time for uptime calculation
var startTime = time.Now()

// formatUptime formats a duration into days, hours, minutes, seconds
func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
}

// health reports 200 when every store answers, 503 otherwise.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"jobs": "ok"}
	healthy := true
	if err := s.Orchestrator.CheckHealth(); err != nil {
		logger.Errorf("Job registry health check failed: %v", err)
		checks["jobs"] = err.Error()
		healthy = false
	}
	if s.Records != nil {
		checks["records"] = "ok"
		if err := s.Records.CheckHealth(); err != nil {
			logger.Errorf("Records health check failed: %v", err)
			checks["records"] = err.Error()
			healthy = false
		}
	}

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   buildInfo().Version,
		GoVersion: runtime.Version(),
		Uptime:    formatUptime(time.Since(startTime)),
		StartTime: startTime.Format("2006-01-02 15:04:05 MST"),
		Checks:    checks,
	}
	status := http.StatusOK
	if !healthy {
		response.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}
