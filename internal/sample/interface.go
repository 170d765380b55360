package sample

import (
	"context"
	"time"
)

// PowerSample is one timestamped battery/AC reading. Optional fields carry
// an availability flag because not every platform reports them.
type PowerSample struct {
	Timestamp   time.Time
	HasBattery  bool
	Percent     float64
	IsCharging  bool
	ACConnected bool

	TemperatureC   float64
	HasTemperature bool

	CycleCount    int
	HasCycleCount bool

	CapacityPercent float64
	HasCapacity     bool
}

// ProcessSample is one per-process resource reading. Transient; samples are
// folded into sessions by the tracker rather than stored standalone.
type ProcessSample struct {
	PID           int32
	Name          string
	Command       string
	CPUPercent    float64
	MemoryPercent float64
}

// Source provides OS-level power and process readings. Implementations must
// honor context cancellation; the engine wraps every call in a bounded
// timeout.
type Source interface {
	PowerState(ctx context.Context) (PowerSample, error)
	Processes(ctx context.Context) ([]ProcessSample, error)
}
