package telemetry

import (
	"context"
	"log/slog"
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

var meter = Meter("bankcap.perf_stats")
var cpuGauge, _ = meter.Float64Gauge("cpu_usage")
var memoryGauge, _ = meter.Int64Gauge("allocated_mb")
var hostMemoryGauge, _ = meter.Float64Gauge("host_memory_used_percent")

// RecordPerfStats takes a single sample of process and host usage and
// records it as gauges. Sampling failures are logged, never returned.
func RecordPerfStats(ctx context.Context) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	allocatedMb := int64(memStats.Alloc / 1_000_000)
	memoryGauge.Record(ctx, allocatedMb)

	attrs := []any{"allocated_mb", allocatedMb}

	cpuUsage, err := cpu.PercentWithContext(ctx, 0, false)
	if err == nil && len(cpuUsage) > 0 {
		cpuGauge.Record(ctx, cpuUsage[0])
		attrs = append(attrs, "cpu_percent", cpuUsage[0])
	} else if err != nil {
		slog.DebugContext(ctx, "failed to read cpu usage", "err", err)
	}

	vmem, err := mem.VirtualMemoryWithContext(ctx)
	if err == nil {
		hostMemoryGauge.Record(ctx, vmem.UsedPercent)
		attrs = append(attrs, "host_memory_percent", vmem.UsedPercent)
	} else {
		slog.DebugContext(ctx, "failed to read host memory", "err", err)
	}

	slog.DebugContext(ctx, "perf stats", attrs...)
}
