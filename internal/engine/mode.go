package engine

import (
	"time"

	"codeberg.org/mutker/battmon/internal/errors"
)

// Mode selects the sampling cadence for both timers.
type Mode string

const (
	ModeSaver       Mode = "saver"
	ModeBalanced    Mode = "balanced"
	ModePerformance Mode = "performance"
)

var modeIntervals = map[Mode]time.Duration{
	ModeSaver:       60 * time.Second,
	ModeBalanced:    30 * time.Second,
	ModePerformance: 10 * time.Second,
}

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if _, ok := modeIntervals[m]; !ok {
		return "", errors.New().WithData(errors.ErrInvalidMode, s)
	}

	return m, nil
}

// Interval returns the sampling interval for the mode.
func (m Mode) Interval() time.Duration {
	if d, ok := modeIntervals[m]; ok {
		return d
	}

	return modeIntervals[ModeBalanced]
}

func (m Mode) String() string {
	return string(m)
}

// Intervals returns the full mode-to-interval table.
func Intervals() map[Mode]time.Duration {
	table := make(map[Mode]time.Duration, len(modeIntervals))
	for m, d := range modeIntervals {
		table[m] = d
	}

	return table
}
