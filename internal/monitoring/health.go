package monitoring

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// HealthStatus represents the overall health status
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck represents a health check response
type HealthCheck struct {
	Status        HealthStatus     `json:"status"`
	Version       string           `json:"version"`
	Uptime        int64            `json:"uptime"`
	UptimeHuman   string           `json:"uptime_human"`
	Playlists     int              `json:"playlists"`
	ActiveSyncs   int              `json:"active_syncs"`
	MemoryUsageMB uint64           `json:"memory_usage_mb"`
	Checks        map[string]Check `json:"checks"`
	Timestamp     time.Time        `json:"timestamp"`
}

// Check represents an individual health check
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthChecker performs health checks
type HealthChecker struct {
	version      string
	startTime    time.Time
	downloadRoot string
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(version, downloadRoot string) *HealthChecker {
	return &HealthChecker{
		version:      version,
		startTime:    time.Now(),
		downloadRoot: downloadRoot,
	}
}

// Check performs all health checks and returns the result
func (h *HealthChecker) Check(playlists, activeSyncs int) *HealthCheck {
	checks := make(map[string]Check)
	overallStatus := HealthStatusHealthy

	rootCheck := h.checkDownloadRoot()
	checks["download_root"] = rootCheck
	if rootCheck.Status != "healthy" {
		overallStatus = HealthStatusUnhealthy
	}

	memCheck := h.checkMemory()
	checks["memory"] = memCheck
	if memCheck.Status == "degraded" && overallStatus == HealthStatusHealthy {
		overallStatus = HealthStatusDegraded
	}

	uptime := time.Since(h.startTime)

	return &HealthCheck{
		Status:        overallStatus,
		Version:       h.version,
		Uptime:        int64(uptime.Seconds()),
		UptimeHuman:   formatUptime(uptime),
		Playlists:     playlists,
		ActiveSyncs:   activeSyncs,
		MemoryUsageMB: currentMemoryMB(),
		Checks:        checks,
		Timestamp:     time.Now(),
	}
}

// checkDownloadRoot verifies the download root exists and is writable
func (h *HealthChecker) checkDownloadRoot() Check {
	if err := os.MkdirAll(h.downloadRoot, 0755); err != nil {
		return Check{Status: "unhealthy", Message: fmt.Sprintf("cannot create download root: %v", err)}
	}

	probe := filepath.Join(h.downloadRoot, ".health-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		return Check{Status: "unhealthy", Message: fmt.Sprintf("download root not writable: %v", err)}
	}
	_ = os.Remove(probe)

	return Check{Status: "healthy"}
}

// checkMemory flags unusually high heap usage
func (h *HealthChecker) checkMemory() Check {
	usageMB := currentMemoryMB()
	if usageMB > 1024 {
		return Check{Status: "degraded", Message: fmt.Sprintf("high memory usage: %d MB", usageMB)}
	}
	return Check{Status: "healthy"}
}

func currentMemoryMB() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Alloc / 1024 / 1024
}

func formatUptime(d time.Duration) string {
	d = d.Round(time.Second)
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	seconds := d - minutes*time.Minute

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds/time.Second)
}
