package alert

import "codeberg.org/mutker/battmon/internal/errors"

// Thresholds holds the tunable limits the built-in rules evaluate against.
type Thresholds struct {
	CriticalPercent       float64
	LowPercent            float64
	RapidDrainPerMinute   float64
	HighTemperatureC      float64
	HealthCapacityPercent float64
	CycleCountLimit       int
}

// DefaultThresholds returns the stock threshold set.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CriticalPercent:       10,
		LowPercent:            20,
		RapidDrainPerMinute:   5,
		HighTemperatureC:      45,
		HealthCapacityPercent: 80,
		CycleCountLimit:       1000,
	}
}

// ThresholdPatch is a partial threshold update. Nil fields are left as-is.
type ThresholdPatch struct {
	CriticalPercent       *float64
	LowPercent            *float64
	RapidDrainPerMinute   *float64
	HighTemperatureC      *float64
	HealthCapacityPercent *float64
	CycleCountLimit       *int
}

// Merge applies patch to t and returns the result, rejecting values that
// would make the rule set incoherent.
func (t Thresholds) Merge(patch ThresholdPatch) (Thresholds, error) {
	merged := t
	if patch.CriticalPercent != nil {
		merged.CriticalPercent = *patch.CriticalPercent
	}
	if patch.LowPercent != nil {
		merged.LowPercent = *patch.LowPercent
	}
	if patch.RapidDrainPerMinute != nil {
		merged.RapidDrainPerMinute = *patch.RapidDrainPerMinute
	}
	if patch.HighTemperatureC != nil {
		merged.HighTemperatureC = *patch.HighTemperatureC
	}
	if patch.HealthCapacityPercent != nil {
		merged.HealthCapacityPercent = *patch.HealthCapacityPercent
	}
	if patch.CycleCountLimit != nil {
		merged.CycleCountLimit = *patch.CycleCountLimit
	}

	if err := merged.Validate(); err != nil {
		return t, err
	}

	return merged, nil
}

// Validate checks the threshold set for internal consistency.
func (t Thresholds) Validate() error {
	errFactory := errors.New()

	if t.CriticalPercent <= 0 || t.CriticalPercent >= 100 {
		return errFactory.WithData(ErrInvalidThreshold, map[string]any{
			"field": "critical_percent", "value": t.CriticalPercent,
		})
	}
	if t.LowPercent <= t.CriticalPercent || t.LowPercent > 100 {
		return errFactory.WithData(ErrInvalidThreshold, map[string]any{
			"field": "low_percent", "value": t.LowPercent,
		})
	}
	if t.RapidDrainPerMinute <= 0 {
		return errFactory.WithData(ErrInvalidThreshold, map[string]any{
			"field": "rapid_drain_per_minute", "value": t.RapidDrainPerMinute,
		})
	}
	if t.HighTemperatureC <= 0 {
		return errFactory.WithData(ErrInvalidThreshold, map[string]any{
			"field": "high_temperature_c", "value": t.HighTemperatureC,
		})
	}
	if t.HealthCapacityPercent <= 0 || t.HealthCapacityPercent > 100 {
		return errFactory.WithData(ErrInvalidThreshold, map[string]any{
			"field": "health_capacity_percent", "value": t.HealthCapacityPercent,
		})
	}
	if t.CycleCountLimit <= 0 {
		return errFactory.WithData(ErrInvalidThreshold, map[string]any{
			"field": "cycle_count_limit", "value": t.CycleCountLimit,
		})
	}

	return nil
}
