package observability

import (
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// ProcessStats is a snapshot of the current process's resource usage
type ProcessStats struct {
	RSSBytes      uint64
	VMSBytes      uint64
	CPUUserSec    float64
	CPUSystemSec  float64
	Threads       int32
	OpenFDs       int32
	HeapBytes     uint64
	SystemMemUsed float64 // percent
}

// CollectProcessStats reads resource usage for the current process. Fields
// the platform cannot report are left zero.
func CollectProcessStats() (ProcessStats, error) {
	var stats ProcessStats

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	stats.HeapBytes = ms.HeapAlloc

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return stats, err
	}

	if memInfo, err := proc.MemoryInfo(); err == nil {
		stats.RSSBytes = memInfo.RSS
		stats.VMSBytes = memInfo.VMS
	}
	if cpuTime, err := proc.Times(); err == nil {
		stats.CPUUserSec = cpuTime.User
		stats.CPUSystemSec = cpuTime.System
	}
	stats.Threads, _ = proc.NumThreads()
	stats.OpenFDs, _ = proc.NumFDs()

	if vm, err := mem.VirtualMemory(); err == nil {
		stats.SystemMemUsed = vm.UsedPercent
	}

	return stats, nil
}

// Fields renders the snapshot as zap fields for a session summary line
func (s ProcessStats) Fields() []zap.Field {
	return []zap.Field{
		zap.Uint64("rss_bytes", s.RSSBytes),
		zap.Uint64("heap_bytes", s.HeapBytes),
		zap.Float64("cpu_user_sec", s.CPUUserSec),
		zap.Float64("cpu_system_sec", s.CPUSystemSec),
		zap.Int32("threads", s.Threads),
		zap.Int32("open_fds", s.OpenFDs),
	}
}
