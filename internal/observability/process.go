// Package observability отдаёт метрики Prometheus и сводку по ресурсам процесса.
package observability

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

// ProcessStats ресурсы процесса загрузчика
type ProcessStats struct {
	StartTime time.Time
	proc      *process.Process
}

// ResourceSnapshot ресурсы в момент вызова Snapshot
type ResourceSnapshot struct {
	Uptime     time.Duration
	RSSMB      float64
	HeapMB     float64
	CPUPercent float64
	Goroutines int
	NumGC      uint32
}

// NewProcessStats создаёт сборщик для текущего процесса
func NewProcessStats() (*ProcessStats, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("gopsutil process: %w", err)
	}
	return &ProcessStats{StartTime: time.Now(), proc: proc}, nil
}

// Snapshot снимает текущие показатели
func (ps *ProcessStats) Snapshot() (ResourceSnapshot, error) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	snap := ResourceSnapshot{
		Uptime:     time.Since(ps.StartTime),
		HeapMB:     float64(m.HeapAlloc) / 1024 / 1024,
		Goroutines: runtime.NumGoroutine(),
		NumGC:      m.NumGC,
	}

	memInfo, err := ps.proc.MemoryInfo()
	if err != nil {
		return snap, fmt.Errorf("memory info: %w", err)
	}
	snap.RSSMB = float64(memInfo.RSS) / 1024 / 1024

	cpuPercent, err := ps.proc.CPUPercent()
	if err != nil {
		// Если не удалось получить метрику процесса, берём системную
		cpuPercents, sysErr := cpu.Percent(100*time.Millisecond, false)
		if sysErr == nil && len(cpuPercents) > 0 {
			cpuPercent = cpuPercents[0]
		}
	}
	snap.CPUPercent = cpuPercent

	return snap, nil
}

// String краткая строка для логов
func (s ResourceSnapshot) String() string {
	return fmt.Sprintf("uptime %s, RSS %.1f MB, heap %.1f MB, CPU %.1f%%, горутин %d, GC %d",
		FormatUptime(s.Uptime), s.RSSMB, s.HeapMB, s.CPUPercent, s.Goroutines, s.NumGC)
}

// FormatUptime форматирует длительность в виде "1д 2ч 3м 4с"
func FormatUptime(uptime time.Duration) string {
	days := int(uptime.Hours()) / 24
	hours := int(uptime.Hours()) % 24
	minutes := int(uptime.Minutes()) % 60
	seconds := int(uptime.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dд %dч %dм %dс", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dч %dм %dс", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dм %dс", minutes, seconds)
	default:
		return fmt.Sprintf("%dс", seconds)
	}
}
