package timestamp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var (
	testTime   = time.Date(2023, 1, 15, 12, 30, 45, 123000000, time.UTC)
	testTimeMs = int64(1673785845123)
)

func TestISO(t *testing.T) {
	assert.Equal(t, "2023-01-15T12:30:45.123Z", ISO(testTime))

	local := testTime.In(time.FixedZone("UTC+5", 5*3600))
	assert.Equal(t, "2023-01-15T12:30:45.123Z", ISO(local))

	whole := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-01T08:00:00.000Z", ISO(whole))
}

func TestToUnixMs(t *testing.T) {
	assert.Equal(t, testTimeMs, ToUnixMs(testTime))
	assert.Equal(t, int64(0), ToUnixMs(time.Time{}))
}

func TestFromUnixMs(t *testing.T) {
	assert.True(t, FromUnixMs(testTimeMs).Equal(testTime))
	assert.True(t, FromUnixMs(0).IsZero())
}

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected int64
	}{
		{"nil", nil, 0},
		{"milliseconds int64", testTimeMs, testTimeMs},
		{"seconds int64", int64(1673785845), 1673785845000},
		{"seconds int", 1673785845, 1673785845000},
		{"milliseconds float", float64(testTimeMs), testTimeMs},
		{"seconds float", 1673785845.5, 1673785845500},
		{"iso with millis", "2023-01-15T12:30:45.123Z", testTimeMs},
		{"rfc3339", "2023-01-15T12:30:45Z", 1673785845000},
		{"numeric string", "1673785845123", testTimeMs},
		{"garbage string", "yesterday", 0},
		{"empty string", "", 0},
		{"negative", int64(-5), 0},
		{"bool", true, 0},
		{"time", testTime, testTimeMs},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Parse(tt.input))
		})
	}
}

func TestParseTime(t *testing.T) {
	assert.True(t, ParseTime("2023-01-15T12:30:45.123Z").Equal(testTime))
	assert.True(t, ParseTime("nope").IsZero())
}
