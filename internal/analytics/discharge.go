package analytics

import "codeberg.org/mutker/battmon/internal/sample"

// DischargeAnalysis summarizes battery drain over a window of samples.
// Rates are in percent per minute. MinutesToEmpty is only meaningful when
// HasEstimate is true: a window with no discharging pairs, or a non-positive
// average rate, yields no estimate.
type DischargeAnalysis struct {
	Pairs            int
	AvgRatePerMinute float64
	MinRatePerMinute float64
	MaxRatePerMinute float64
	CurrentPercent   float64
	MinutesToEmpty   float64
	HasEstimate      bool
}

// AnalyzeDischarge computes drain statistics over samples ordered oldest
// first. Each consecutive pair where both readings are on battery and not
// charging contributes (prevPercent-curPercent)/minutesElapsed; pairs with
// non-positive elapsed time are skipped.
func AnalyzeDischarge(samples []sample.PowerSample) DischargeAnalysis {
	var analysis DischargeAnalysis

	if len(samples) > 0 {
		analysis.CurrentPercent = samples[len(samples)-1].Percent
	}

	var sum float64
	for i := 1; i < len(samples); i++ {
		prev, cur := &samples[i-1], &samples[i]
		if !prev.HasBattery || !cur.HasBattery || prev.IsCharging || cur.IsCharging {
			continue
		}
		minutes := cur.Timestamp.Sub(prev.Timestamp).Minutes()
		if minutes <= 0 {
			continue
		}

		rate := (prev.Percent - cur.Percent) / minutes
		if analysis.Pairs == 0 || rate < analysis.MinRatePerMinute {
			analysis.MinRatePerMinute = rate
		}
		if analysis.Pairs == 0 || rate > analysis.MaxRatePerMinute {
			analysis.MaxRatePerMinute = rate
		}
		sum += rate
		analysis.Pairs++
	}

	if analysis.Pairs == 0 {
		return analysis
	}

	analysis.AvgRatePerMinute = sum / float64(analysis.Pairs)
	if analysis.AvgRatePerMinute > 0 {
		analysis.MinutesToEmpty = analysis.CurrentPercent / analysis.AvgRatePerMinute
		analysis.HasEstimate = true
	}

	return analysis
}
