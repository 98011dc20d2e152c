package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

var startTime = time.Now()

// getSystemHealth handles GET /api/system/health
func (h *handlers) getSystemHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":     "ok",
		"uptime_sec": int64(time.Since(startTime).Seconds()),
		"goroutines": runtime.NumGoroutine(),
	}

	if cpuPercent, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(cpuPercent) > 0 {
		health["cpu_percent"] = cpuPercent[0]
	}
	if memStat, err := mem.VirtualMemory(); err == nil {
		health["mem_used_percent"] = memStat.UsedPercent
	}

	if last := h.rotationService.LastResult(); last != nil {
		health["last_cycle_id"] = last.CycleID
		health["last_cycle_at"] = last.CompletedAt
	}

	writeJSON(w, http.StatusOK, health)
}
