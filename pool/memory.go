package pool

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// MemorySample is a point-in-time record of process memory usage.
type MemorySample struct {
	Timestamp time.Time `json:"timestamp"`

	HeapAllocBytes uint64 `json:"heap_alloc_bytes"`
	HeapSysBytes   uint64 `json:"heap_sys_bytes"`
	SysBytes       uint64 `json:"sys_bytes"`
	RSSBytes       uint64 `json:"rss_bytes"`

	// TotalBytes is host memory; HeapPercent is heap allocation as a
	// percentage of it.
	TotalBytes  uint64  `json:"total_bytes"`
	HeapPercent float64 `json:"heap_percent"`

	NumGC uint32 `json:"num_gc"`
}

// Collection records one forced garbage collection with before/after
// deltas.
type Collection struct {
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Before     MemorySample  `json:"before"`
	After      MemorySample  `json:"after"`
	FreedBytes uint64        `json:"freed_bytes"`
}

// MemoryReport combines the current sample, retained history, collection
// records, and per-pool stats.
type MemoryReport struct {
	Current     MemorySample     `json:"current"`
	History     []MemorySample   `json:"history,omitempty"`
	Collections []Collection     `json:"collections,omitempty"`
	Pools       map[string]Stats `json:"pools,omitempty"`
}

// memorySample captures the current memory figures.
func memorySample(proc *process.Process) MemorySample {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	sample := MemorySample{
		Timestamp:      time.Now(),
		HeapAllocBytes: ms.HeapAlloc,
		HeapSysBytes:   ms.HeapSys,
		SysBytes:       ms.Sys,
		NumGC:          ms.NumGC,
	}

	if vm, err := mem.VirtualMemory(); err == nil && vm.Total > 0 {
		sample.TotalBytes = vm.Total
		sample.HeapPercent = float64(ms.HeapAlloc) / float64(vm.Total) * 100
	}
	if proc != nil {
		if info, err := proc.MemoryInfo(); err == nil {
			sample.RSSBytes = info.RSS
		}
	}
	return sample
}
