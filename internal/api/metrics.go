package api

import (
	"os"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

// ServerMetrics содержит метрики процесса
type ServerMetrics struct {
	StartTime time.Time
}

// NewServerMetrics создает новый экземпляр метрик
func NewServerMetrics() *ServerMetrics {
	return &ServerMetrics{
		StartTime: time.Now(),
	}
}

// GetUptime возвращает время работы сервера
func (sm *ServerMetrics) GetUptime() time.Duration {
	return time.Since(sm.StartTime).Truncate(time.Second)
}

// MemoryStats - использование памяти в байтах и человекочитаемом виде
type MemoryStats struct {
	AllocBytes uint64 `json:"alloc_bytes"`
	Alloc      string `json:"alloc"`
	SysBytes   uint64 `json:"sys_bytes"`
	Sys        string `json:"sys"`
	NumGC      uint32 `json:"num_gc"`
}

// GetMemoryUsage возвращает использование памяти рантаймом Go
func (sm *ServerMetrics) GetMemoryUsage() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryStats{
		AllocBytes: m.Alloc,
		Alloc:      humanize.Bytes(m.Alloc),
		SysBytes:   m.Sys,
		Sys:        humanize.Bytes(m.Sys),
		NumGC:      m.NumGC,
	}
}

// GetCPUUsage возвращает использование CPU процессом в процентах
func (sm *ServerMetrics) GetCPUUsage() (float64, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, err
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		// Если не удалось получить метрику процесса, попробуем системную
		cpuPercents, err := cpu.Percent(100*time.Millisecond, false)
		if err != nil || len(cpuPercents) == 0 {
			return 0, err
		}
		return cpuPercents[0], nil
	}
	return cpuPercent, nil
}
