package metrics

import (
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
)

// SysHealth represents real-time system metrics.
type SysHealth struct {
	AllocMB      uint64
	TotalAllocMB uint64
	SysMB        uint64
	NumGC        uint32
	Goroutines   int
	DataDiskSize string

	OpenConns  int
	InUseConns int
	IdleConns  int
	WaitCount  int64
}

// GetSysHealth collects real-time health data. dataPath may be empty for
// stores that do not live on the local disk.
func GetSysHealth(dataPath string, pool sql.DBStats) SysHealth {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	h := SysHealth{
		AllocMB:      m.Alloc / 1024 / 1024,
		TotalAllocMB: m.TotalAlloc / 1024 / 1024,
		SysMB:        m.Sys / 1024 / 1024,
		NumGC:        m.NumGC,
		Goroutines:   runtime.NumGoroutine(),
		DataDiskSize: "n/a",
		OpenConns:    pool.OpenConnections,
		InUseConns:   pool.InUse,
		IdleConns:    pool.Idle,
		WaitCount:    pool.WaitCount,
	}
	if dataPath != "" {
		h.DataDiskSize = calculateDirSize(dataPath)
	}
	return h
}

// calculateDirSize sums regular files under path. Unreadable entries are skipped;
// a missing path reports "n/a".
func calculateDirSize(path string) string {
	if _, err := os.Stat(path); err != nil {
		return "n/a"
	}
	var size int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || !d.Type().IsRegular() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			size += info.Size()
		}
		return nil
	})
	return formatBytes(size)
}

func formatBytes(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
