package httpserver

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
	apperrors "github.com/pscheid92/storepulse/internal/platform/errors"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

const (
	bytesPerMB          = 1024 * 1024
	systemSampleTimeout = 5 * time.Second
)

type systemReport struct {
	Host    hostReport    `json:"host"`
	Process processReport `json:"process"`
	Runtime runtimeReport `json:"runtime"`
}

type hostReport struct {
	CPUPercent    float64 `json:"cpuPercent"`
	MemoryTotalMB float64 `json:"memoryTotalMB"`
	MemoryUsedPct float64 `json:"memoryUsedPercent"`
}

type processReport struct {
	CPUPercent float64 `json:"cpuPercent"`
	RSSMB      float64 `json:"rssMB"`
	Threads    int32   `json:"threads"`
}

type runtimeReport struct {
	Goroutines  int     `json:"goroutines"`
	HeapAllocMB float64 `json:"heapAllocMB"`
	GoVersion   string  `json:"goVersion"`
	Connections int64   `json:"connections"`
	CapacityPct float64 `json:"capacityPercent"`
}

func (s *Server) registerSystemRoutes() {
	s.echo.GET("/api/system", s.handleSystem)
}

// handleSystem reports host and process resource usage. Concurrent requests
// share one sample.
func (s *Server) handleSystem(c echo.Context) error {
	ctx := c.Request().Context()

	result, err, _ := s.systemGroup.Do("system", func() (any, error) {
		// shared by every waiting request, so not bound to the first caller
		sampleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), systemSampleTimeout)
		defer cancel()
		return s.sampler(sampleCtx)
	})
	if err != nil {
		return apperrors.InternalError("failed to sample system resources", err)
	}
	return writeJSON(c, http.StatusOK, result)
}

func (s *Server) sampleSystem(ctx context.Context) (systemReport, error) {
	var report systemReport

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		report.Host.CPUPercent = percents[0]
	}

	vmem, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return systemReport{}, err
	}
	report.Host.MemoryTotalMB = float64(vmem.Total) / bytesPerMB
	report.Host.MemoryUsedPct = vmem.UsedPercent

	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return systemReport{}, err
	}
	if memInfo, err := proc.MemoryInfoWithContext(ctx); err == nil {
		report.Process.RSSMB = float64(memInfo.RSS) / bytesPerMB
	}
	if pct, err := proc.CPUPercentWithContext(ctx); err == nil {
		report.Process.CPUPercent = pct
	}
	if threads, err := proc.NumThreadsWithContext(ctx); err == nil {
		report.Process.Threads = threads
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	report.Runtime = runtimeReport{
		Goroutines:  runtime.NumGoroutine(),
		HeapAllocMB: float64(ms.HeapAlloc) / bytesPerMB,
		GoVersion:   runtime.Version(),
		Connections: s.limits.global.Current(),
		CapacityPct: s.limits.global.CapacityPct(),
	}

	return report, nil
}
