package analytics

import (
	"strings"
	"time"

	"codeberg.org/mutker/battmon/internal/errors"
	"codeberg.org/mutker/battmon/internal/session"
)

const topConsumerLimit = 10

// Timeframe selects how far back usage insights look.
type Timeframe string

const (
	TimeframeHour Timeframe = "1h"
	TimeframeDay  Timeframe = "24h"
	TimeframeWeek Timeframe = "7d"
)

// Duration returns the window length for the timeframe.
func (t Timeframe) Duration() (time.Duration, error) {
	switch t {
	case TimeframeHour:
		return time.Hour, nil
	case TimeframeDay:
		return 24 * time.Hour, nil
	case TimeframeWeek:
		return 7 * 24 * time.Hour, nil
	default:
		return 0, errors.New().WithData(errors.ErrInvalidArgument, map[string]any{
			"timeframe": string(t),
		})
	}
}

// UsageInsights aggregates live-session activity over a timeframe, optionally
// narrowed to processes whose name matches a filter.
type UsageInsights struct {
	Timeframe     Timeframe
	FilterKey     string
	GeneratedAt   time.Time
	SessionCount  int
	TotalImpact   float64
	AvgCPUPercent float64
	AvgMemPercent float64
	TopConsumers  []session.Consumer
}

// ComputeUsageInsights builds insights from ranked consumers at time now.
// consumers must already be sorted heaviest first (tracker output order).
// Sessions last seen before the timeframe window are excluded.
func ComputeUsageInsights(consumers []session.Consumer, timeframe Timeframe, filterKey string, now time.Time) (UsageInsights, error) {
	window, err := timeframe.Duration()
	if err != nil {
		return UsageInsights{}, err
	}

	insights := UsageInsights{
		Timeframe:   timeframe,
		FilterKey:   filterKey,
		GeneratedAt: now,
	}

	cutoff := now.Add(-window)
	needle := strings.ToLower(filterKey)

	var cpuSum, memSum float64
	for _, c := range consumers {
		if c.LastSeenAt.Before(cutoff) {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(c.Name), needle) {
			continue
		}

		insights.SessionCount++
		insights.TotalImpact += c.Impact
		cpuSum += c.AvgCPU()
		memSum += c.AvgMem()
		if len(insights.TopConsumers) < topConsumerLimit {
			insights.TopConsumers = append(insights.TopConsumers, c)
		}
	}

	if insights.SessionCount > 0 {
		insights.AvgCPUPercent = cpuSum / float64(insights.SessionCount)
		insights.AvgMemPercent = memSum / float64(insights.SessionCount)
	}

	return insights, nil
}
