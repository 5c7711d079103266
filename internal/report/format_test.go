package report_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"jornada/internal/report"
)

func TestFormatHMS(t *testing.T) {
	assert.Equal(t, "00:00:00", report.FormatHMS(0))
	assert.Equal(t, "00:45:00", report.FormatHMS(2700))
	assert.Equal(t, "01:01:01", report.FormatHMS(3661))
	assert.Equal(t, "25:00:00", report.FormatHMS(90000), "hours are unbounded, never wrapped at 24")
	assert.Equal(t, "00:00:00", report.FormatHMS(-5))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 50.0, report.Percent(1800, 3600))
	assert.Equal(t, 33.33, report.Percent(1, 3))
	assert.Equal(t, 0.0, report.Percent(0, 0), "zero total yields zero, not NaN")
	assert.Equal(t, 100.0, report.Percent(3600, 3600))
}

func TestHours(t *testing.T) {
	assert.Equal(t, 0.75, report.Hours(2700))
	assert.Equal(t, 1.5, report.Hours(5400))
	assert.Equal(t, 0.0, report.Hours(0))
	assert.Equal(t, 0.25, report.Hours(900))
}
