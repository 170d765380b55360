package alert

import (
	"fmt"
	"time"

	"codeberg.org/mutker/battmon/internal/sample"
)

const fullyChargedPercent = 95

// Rule identifiers, in evaluation order.
const (
	RuleCriticalBattery = "critical_battery"
	RuleLowBattery      = "low_battery"
	RuleRapidDrain      = "rapid_drain"
	RuleHighTemperature = "high_temperature"
	RuleHealthWarning   = "health_warning"
	RuleCycleWarning    = "cycle_warning"
	RuleFullyCharged    = "fully_charged"
)

// BuiltinRules returns the stock rule set bound to the given thresholds.
// Rules are evaluated in the returned order.
func BuiltinRules(t Thresholds) []Rule {
	return []Rule{
		{
			ID:       RuleCriticalBattery,
			Severity: SeverityCritical,
			Cooldown: 10 * time.Minute,
			Predicate: func(cur, _ *sample.PowerSample) bool {
				return !cur.IsCharging && cur.Percent <= t.CriticalPercent
			},
			Message: func(cur *sample.PowerSample) string {
				return fmt.Sprintf("Battery critically low at %.0f%%", cur.Percent)
			},
			Action: "Connect the charger now",
		},
		{
			ID:       RuleLowBattery,
			Severity: SeverityWarning,
			Cooldown: 30 * time.Minute,
			Predicate: func(cur, _ *sample.PowerSample) bool {
				return !cur.IsCharging && cur.Percent <= t.LowPercent && cur.Percent > t.CriticalPercent
			},
			Message: func(cur *sample.PowerSample) string {
				return fmt.Sprintf("Battery low at %.0f%%", cur.Percent)
			},
			Action: "Consider connecting the charger",
		},
		{
			ID:       RuleRapidDrain,
			Severity: SeverityWarning,
			Cooldown: 15 * time.Minute,
			Predicate: func(cur, prev *sample.PowerSample) bool {
				if prev == nil || cur.IsCharging || prev.IsCharging {
					return false
				}
				minutes := cur.Timestamp.Sub(prev.Timestamp).Minutes()
				if minutes <= 0 {
					return false
				}

				return (prev.Percent-cur.Percent)/minutes >= t.RapidDrainPerMinute
			},
			Message: func(cur *sample.PowerSample) string {
				return fmt.Sprintf("Battery draining rapidly, now at %.0f%%", cur.Percent)
			},
			Action: "Check top consumers for runaway processes",
		},
		{
			ID:       RuleHighTemperature,
			Severity: SeverityWarning,
			Cooldown: 30 * time.Minute,
			Predicate: func(cur, _ *sample.PowerSample) bool {
				return cur.HasTemperature && cur.TemperatureC >= t.HighTemperatureC
			},
			Message: func(cur *sample.PowerSample) string {
				return fmt.Sprintf("Battery temperature high at %.1f°C", cur.TemperatureC)
			},
			Action: "Improve ventilation or reduce load",
		},
		{
			ID:       RuleHealthWarning,
			Severity: SeverityWarning,
			Cooldown: 24 * time.Hour,
			Predicate: func(cur, _ *sample.PowerSample) bool {
				return cur.HasCapacity && cur.CapacityPercent <= t.HealthCapacityPercent
			},
			Message: func(cur *sample.PowerSample) string {
				return fmt.Sprintf("Battery health degraded to %.0f%% of design capacity", cur.CapacityPercent)
			},
			Action: "Consider a battery replacement",
		},
		{
			ID:       RuleCycleWarning,
			Severity: SeverityWarning,
			Cooldown: 24 * time.Hour,
			Predicate: func(cur, _ *sample.PowerSample) bool {
				return cur.HasCycleCount && cur.CycleCount >= t.CycleCountLimit
			},
			Message: func(cur *sample.PowerSample) string {
				return fmt.Sprintf("Battery has completed %d charge cycles", cur.CycleCount)
			},
			Action: "Monitor battery health closely",
		},
		{
			ID:       RuleFullyCharged,
			Severity: SeverityInfo,
			Cooldown: 6 * time.Hour,
			Predicate: func(cur, _ *sample.PowerSample) bool {
				return cur.IsCharging && cur.Percent >= fullyChargedPercent
			},
			Message: func(cur *sample.PowerSample) string {
				return fmt.Sprintf("Battery fully charged at %.0f%%", cur.Percent)
			},
			Action: "Unplug the charger to preserve battery health",
		},
	}
}
