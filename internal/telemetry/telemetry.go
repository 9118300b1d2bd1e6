// Package telemetry writes optional per-tick and per-optimization metrics
// to InfluxDB (§4.14), grounded on the teacher's declared-but-unwired
// influxdata/influxdb-client-go/v2 dependency: never wired to anything in
// the original trading code, given a genuine home here.
package telemetry

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// Writer emits points to an InfluxDB bucket. A zero-value Writer (built by
// NewWriter with an empty url) is a no-op on every call, so telemetry is
// never on the hot path when disabled (§4.9).
type Writer struct {
	client  influxdb2.Client
	writeAPI api.WriteAPIBlocking
	enabled bool
}

// NewWriter connects to url/org/bucket. An empty url disables telemetry.
func NewWriter(url, token, org, bucket string) *Writer {
	if url == "" {
		return &Writer{}
	}
	client := influxdb2.NewClient(url, token)
	return &Writer{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		enabled:  true,
	}
}

// WriteTick records one sim_tick point.
func (w *Writer) WriteTick(ctx context.Context, simNow time.Time, tickDuration time.Duration, pendingOrders, activeIncidents int) {
	if !w.enabled {
		return
	}
	p := influxdb2.NewPoint(
		"sim_tick",
		map[string]string{},
		map[string]interface{}{
			"tick_ms":          tickDuration.Milliseconds(),
			"pending_orders":   pendingOrders,
			"active_incidents": activeIncidents,
		},
		simNow,
	)
	_ = w.writeAPI.WritePoint(ctx, p)
}

// OptimizeStats is the subset of optimizer.Stats telemetry cares about,
// kept separate to avoid a dependency from telemetry onto optimizer.
type OptimizeStats struct {
	Iterations int
	BestScore  float64
	ElapsedMs  int64
	Cancelled  bool
}

// WriteOptimize records one sim_optimize point after every optimizer run.
func (w *Writer) WriteOptimize(ctx context.Context, at time.Time, stats OptimizeStats) {
	if !w.enabled {
		return
	}
	p := influxdb2.NewPoint(
		"sim_optimize",
		map[string]string{},
		map[string]interface{}{
			"iterations": stats.Iterations,
			"best_score": stats.BestScore,
			"elapsed_ms": stats.ElapsedMs,
			"cancelled":  stats.Cancelled,
		},
		at,
	)
	_ = w.writeAPI.WritePoint(ctx, p)
}

// Close flushes and closes the underlying client.
func (w *Writer) Close() {
	if !w.enabled {
		return
	}
	w.client.Close()
}
