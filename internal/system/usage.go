package system

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Usage is a point-in-time resource sample of the host and this process.
type Usage struct {
	CPUPercent    float64
	MemoryPercent float64
	MemoryUsed    uint64
	ProcessRSS    uint64
}

// Sample measures CPU load over interval and reads memory counters.
func Sample(ctx context.Context, interval time.Duration) (Usage, error) {
	var u Usage

	pct, err := cpu.PercentWithContext(ctx, interval, false)
	if err != nil {
		return u, fmt.Errorf("cpu: %w", err)
	}
	if len(pct) > 0 {
		u.CPUPercent = pct[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return u, fmt.Errorf("memory: %w", err)
	}
	u.MemoryPercent = vm.UsedPercent
	u.MemoryUsed = vm.Used

	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return u, fmt.Errorf("process: %w", err)
	}
	mi, err := proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return u, fmt.Errorf("process memory: %w", err)
	}
	u.ProcessRSS = mi.RSS
	return u, nil
}

// String formats the sample for the CLI report.
func (u Usage) String() string {
	return fmt.Sprintf("CPU %.1f%%, RAM %.1f%% (%s), процесс %s",
		u.CPUPercent, u.MemoryPercent, formatBytes(u.MemoryUsed), formatBytes(u.ProcessRSS))
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
