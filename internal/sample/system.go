package sample

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"codeberg.org/mutker/battmon/internal/clock"
	"codeberg.org/mutker/battmon/internal/errors"
	"github.com/shirou/gopsutil/v3/process"
)

const defaultPowerSupplyRoot = "/sys/class/power_supply"

// SystemSource reads power state from the kernel power-supply class and
// per-process usage via gopsutil.
type SystemSource struct {
	root string
	clk  clock.Clock
}

// NewSystemSource creates a SystemSource reading from the default sysfs root.
func NewSystemSource(clk clock.Clock) *SystemSource {
	return &SystemSource{
		root: defaultPowerSupplyRoot,
		clk:  clk,
	}
}

// NewSystemSourceAt creates a SystemSource reading from an alternate
// power-supply directory. Used by tests.
func NewSystemSourceAt(root string, clk clock.Clock) *SystemSource {
	return &SystemSource{
		root: root,
		clk:  clk,
	}
}

// PowerState reads the first battery's uevent attributes. A machine without
// a battery yields a sample with HasBattery=false rather than an error, so
// the engine keeps running in degraded environments.
func (s *SystemSource) PowerState(ctx context.Context) (PowerSample, error) {
	errFactory := errors.New()

	if err := ctx.Err(); err != nil {
		return PowerSample{}, errFactory.Wrap(ErrSourceTimeout, err)
	}

	sampled := PowerSample{
		Timestamp:   s.clk.Now(),
		ACConnected: s.acOnline(),
	}

	matches, err := filepath.Glob(filepath.Join(s.root, "BAT*"))
	if err != nil || len(matches) == 0 {
		return sampled, nil
	}

	data, err := os.ReadFile(filepath.Join(matches[0], "uevent"))
	if err != nil {
		return sampled, errFactory.Wrap(ErrPowerRead, err)
	}

	props := parseUevent(string(data))

	sampled.HasBattery = true
	sampled.Percent, _ = strconv.ParseFloat(props["POWER_SUPPLY_CAPACITY"], 64)

	status := props["POWER_SUPPLY_STATUS"]
	sampled.IsCharging = status == "Charging" || status == "Full"

	// Temperature is reported in tenths of a degree Celsius.
	if raw, ok := props["POWER_SUPPLY_TEMP"]; ok {
		if tenths, err := strconv.ParseFloat(raw, 64); err == nil {
			sampled.TemperatureC = tenths / 10
			sampled.HasTemperature = true
		}
	}

	if raw, ok := props["POWER_SUPPLY_CYCLE_COUNT"]; ok {
		if cycles, err := strconv.Atoi(raw); err == nil && cycles > 0 {
			sampled.CycleCount = cycles
			sampled.HasCycleCount = true
		}
	}

	// Health: current full charge relative to design capacity.
	full, _ := strconv.ParseFloat(props["POWER_SUPPLY_CHARGE_FULL"], 64)
	design, _ := strconv.ParseFloat(props["POWER_SUPPLY_CHARGE_FULL_DESIGN"], 64)
	if full == 0 {
		full, _ = strconv.ParseFloat(props["POWER_SUPPLY_ENERGY_FULL"], 64)
		design, _ = strconv.ParseFloat(props["POWER_SUPPLY_ENERGY_FULL_DESIGN"], 64)
	}
	if full > 0 && design > 0 {
		sampled.CapacityPercent = full / design * 100
		sampled.HasCapacity = true
	}

	return sampled, nil
}

// Processes enumerates running processes with their CPU and memory usage.
// Processes that exit mid-enumeration are skipped rather than failing the
// whole batch.
func (s *SystemSource) Processes(ctx context.Context) ([]ProcessSample, error) {
	errFactory := errors.New()

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, errFactory.Wrap(ErrProcessList, err)
	}

	samples := make([]ProcessSample, 0, len(procs))
	for _, p := range procs {
		if err := ctx.Err(); err != nil {
			// Timed out partway through; return what we have so far.
			return samples, nil
		}

		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}

		cpu, err := p.CPUPercentWithContext(ctx)
		if err != nil {
			continue
		}

		mem, err := p.MemoryPercentWithContext(ctx)
		if err != nil {
			continue
		}

		cmdline, err := p.CmdlineWithContext(ctx)
		if err != nil {
			cmdline = ""
		}

		samples = append(samples, ProcessSample{
			PID:           p.Pid,
			Name:          name,
			Command:       cmdline,
			CPUPercent:    cpu,
			MemoryPercent: float64(mem),
		})
	}

	return samples, nil
}

func (s *SystemSource) acOnline() bool {
	matches, err := filepath.Glob(filepath.Join(s.root, "AC*", "online"))
	if err != nil {
		return false
	}
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err == nil && strings.TrimSpace(string(data)) == "1" {
			return true
		}
	}

	return false
}

func parseUevent(data string) map[string]string {
	props := make(map[string]string)
	for _, line := range strings.Split(data, "\n") {
		if k, v, ok := strings.Cut(line, "="); ok {
			props[k] = strings.TrimSpace(v)
		}
	}

	return props
}
