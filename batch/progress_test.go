package batch

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_Counts(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 4, 1)

	tracker.Start()
	tracker.Processed()
	tracker.Failed()
	tracker.Skipped(2)
	tracker.Finish()

	output := buf.String()
	assert.Contains(t, output, "4/4")
	assert.Contains(t, output, "100.0%")
	assert.Contains(t, output, "1 errors, 2 skipped")
	assert.Contains(t, output, "\n", "finish should print newline")
}

func TestProgressTracker_ReportInterval(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 100, 3)
	tracker.Start()

	tracker.Processed()
	tracker.Processed()
	assert.Empty(t, buf.String(), "should not print under interval")

	tracker.Processed()
	assert.Contains(t, buf.String(), "3/100")
}

func TestProgressTracker_CapsAtTotal(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 1, 1)
	tracker.Start()

	tracker.Processed()
	tracker.Processed()
	tracker.Finish()

	assert.NotContains(t, buf.String(), "2/1")
}

func TestProgressTracker_NotStarted(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 10, 0)

	tracker.Processed()
	tracker.Finish()

	assert.Empty(t, buf.String(), "should have no output when not started")
	assert.Zero(t, tracker.Elapsed())
}

func TestProgressTracker_ZeroTotal(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 0, 10)

	tracker.Start()
	tracker.Finish()

	assert.Contains(t, buf.String(), "0/0")
}
