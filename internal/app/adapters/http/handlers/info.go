package handlers

import (
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/mem"
)

type debugInfo struct {
	OS            string  `json:"os"`
	Platform      string  `json:"platform"`
	KernelVersion string  `json:"kernel_version"`
	HostUptime    uint64  `json:"host_uptime_seconds"`
	CPUModel      string  `json:"cpu_model"`
	CPUCount      int     `json:"cpu_count"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemTotalMB    uint64  `json:"mem_total_mb"`
	MemUsedMB     uint64  `json:"mem_used_mb"`
	MemPercent    float64 `json:"mem_percent"`
	ProcessSysMB  uint64  `json:"process_sys_mb"`
	Goroutines    int     `json:"goroutines"`
	Uptime        string  `json:"uptime"`
}

// DebugInfo reports host and process resources. Collectors that fail leave
// their fields empty.
func (h *Handlers) DebugInfo(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	info := debugInfo{
		OS:           runtime.GOOS,
		CPUCount:     runtime.NumCPU(),
		ProcessSysMB: m.Sys / 1024 / 1024,
		Goroutines:   runtime.NumGoroutine(),
		Uptime:       time.Since(h.started).Truncate(time.Second).String(),
	}

	if hi, err := host.InfoWithContext(c.Request.Context()); err == nil {
		info.Platform = hi.Platform + " " + hi.PlatformVersion
		info.KernelVersion = hi.KernelVersion
		info.HostUptime = hi.Uptime
	} else {
		h.log.Debug("Host info is unavailable", slog.Any("error", err))
	}

	if ci, err := cpu.InfoWithContext(c.Request.Context()); err == nil && len(ci) > 0 {
		info.CPUModel = ci[0].ModelName
	}
	if percent, err := cpu.PercentWithContext(c.Request.Context(), 0, false); err == nil && len(percent) > 0 {
		info.CPUPercent = percent[0]
	}

	if vm, err := mem.VirtualMemoryWithContext(c.Request.Context()); err == nil {
		info.MemTotalMB = vm.Total / 1024 / 1024
		info.MemUsedMB = vm.Used / 1024 / 1024
		info.MemPercent = vm.UsedPercent
	}

	c.JSON(http.StatusOK, info)
}
