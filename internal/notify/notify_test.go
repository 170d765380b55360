package notify

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"codeberg.org/mutker/battmon/internal/alert"
	"codeberg.org/mutker/battmon/internal/logger"
)

func TestMain(m *testing.M) {
	logger.Init(false, false, true)
	os.Exit(m.Run())
}

type captureSink struct {
	got []alert.Alert
}

func (c *captureSink) Notify(a alert.Alert) {
	c.got = append(c.got, a)
}

func TestMultiFansOutInOrder(t *testing.T) {
	first := &captureSink{}
	second := &captureSink{}
	sink := Multi(first, second)

	a := alert.Alert{ID: "a1", RuleID: "low_battery", Severity: alert.SeverityWarning}
	sink.Notify(a)

	assert.Len(t, first.got, 1)
	assert.Len(t, second.got, 1)
	assert.Equal(t, "a1", first.got[0].ID)
}

func TestMultiSkipsNilSinks(t *testing.T) {
	kept := &captureSink{}
	sink := Multi(nil, kept, nil)

	sink.Notify(alert.Alert{ID: "a2"})

	assert.Len(t, kept.got, 1)
}

func TestMultiEmptyIsNoop(t *testing.T) {
	sink := Multi()

	assert.NotPanics(t, func() {
		sink.Notify(alert.Alert{ID: "a3"})
	})
}

func TestUrgencyMapping(t *testing.T) {
	assert.Equal(t, byte(2), urgencyFor(alert.SeverityCritical))
	assert.Equal(t, byte(1), urgencyFor(alert.SeverityWarning))
	assert.Equal(t, byte(0), urgencyFor(alert.SeverityInfo))
}
