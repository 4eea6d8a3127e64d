package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{0, "0m"},
		{59 * time.Second, "0m"},
		{5 * time.Minute, "5m"},
		{time.Hour, "1h 0m"},
		{65*time.Minute + 30*time.Second, "1h 5m"},
		{26*time.Hour + 59*time.Minute, "26h 59m"},
		{-3 * time.Minute, "0m"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, formatDuration(c.d), c.d.String())
	}
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "0%", formatPercent(0))
	assert.Equal(t, "25%", formatPercent(0.25))
	assert.Equal(t, "75%", formatPercent(0.75))
	assert.Equal(t, "100%", formatPercent(1))
}

func TestFormatLogMessage(t *testing.T) {
	assert.Equal(t, "[Guild] alice: hello", formatLogMessage("g1", "hello", "alice", "Guild"))
	assert.Equal(t, "[g1] hello", formatLogMessage("g1", "hello", "", ""))
	assert.Equal(t, "[global] hello", formatLogMessage("", "hello", "", ""))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "abc  ", truncateString("abc", 5))
	assert.Equal(t, "abc...", truncateString("abcdefgh", 6))
	assert.Equal(t, "héé...", truncateString("hééééééé", 6))
}

func TestFormatTable(t *testing.T) {
	got := formatTable([]string{"A", "BB"}, [][]string{{"x", "y"}})
	assert.Equal(t, "```\nA  BB  \n-------\nx  y   \n```", got)
}

func TestFormatTableWidensColumns(t *testing.T) {
	got := formatTable([]string{"N"}, [][]string{{"long"}, {"s"}})
	assert.Equal(t, "```\nN     \n------\nlong  \ns     \n```", got)
}

func TestVoiceTransition(t *testing.T) {
	tests := []struct {
		name           string
		before, after  string
		departed, came string
	}{
		{"join", "", "v1", "", "v1"},
		{"leave", "v1", "", "v1", ""},
		{"switch", "v1", "v2", "v1", "v2"},
		{"mute", "v1", "v1", "", ""},
		{"none", "", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			departed, arrived := voiceTransition(tt.before, tt.after)
			assert.Equal(t, tt.departed, departed)
			assert.Equal(t, tt.came, arrived)
		})
	}
}

func TestHasRoleNamed(t *testing.T) {
	names := map[string]string{"r1": "Member", "r2": "Brotato"}
	nameOf := func(id string) string { return names[id] }

	assert.True(t, hasRoleNamed([]string{"r1", "r2"}, "brotato", nameOf))
	assert.False(t, hasRoleNamed([]string{"r1"}, "brotato", nameOf))
	assert.False(t, hasRoleNamed(nil, "brotato", nameOf))
	assert.False(t, hasRoleNamed([]string{"missing"}, "brotato", nameOf))
}
