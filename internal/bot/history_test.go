package bot

import (
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendancebot/internal/db/models"
)

func archivedReport() *models.ShiftReport {
	return &models.ShiftReport{
		ShiftID:       "0f8e7a52-6d0c-4c4b-9a57-3f1f2f0a9b11",
		GuildID:       "g1",
		Title:         "Evening patrol",
		HostID:        "host",
		MinAttendance: 0.5,
		StartedAt:     t0,
		EndedAt:       t0.Add(time.Hour),
		PassedIDs:     []string{"b"},
		FailedIDs:     []string{"a"},
		Results: []*models.AttendeeResult{
			{AttendeeID: "a", PresenceSeconds: 600, Attendance: 0.25},
			{AttendeeID: "b", PresenceSeconds: 3600, Attendance: 1, Passed: true},
		},
	}
}

var archiveNames = names(map[string]string{"host": "Host", "a": "Amy", "b": "Bob"})

func TestHistoryRows(t *testing.T) {
	rows := historyRows([]*models.ShiftReport{archivedReport()}, archiveNames)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"2025-03-10 19:00", "Evening patrol", "Host", "1h 0m", "1/2", "0f8e7a52"}, rows[0])
}

func TestSortedResultsPassedFirst(t *testing.T) {
	report := archivedReport()
	sorted := sortedResults(report.Results, archiveNames)
	require.Len(t, sorted, 2)
	assert.Equal(t, "b", sorted[0].AttendeeID)
	assert.Equal(t, "a", sorted[1].AttendeeID)
	assert.Equal(t, "a", report.Results[0].AttendeeID, "input order is left alone")
}

func TestShiftDetail(t *testing.T) {
	detail := shiftDetail(archivedReport(), archiveNames)
	assert.True(t, strings.HasPrefix(detail, "# Evening patrol\n"))
	assert.Contains(t, detail, "Host: Host | Duration: 1h 0m | Minimum: 50%")
	assert.Contains(t, detail, "Bob")
	assert.Less(t, strings.Index(detail, "Bob"), strings.Index(detail, "Amy"))

	empty := archivedReport()
	empty.Results = nil
	assert.Contains(t, shiftDetail(empty, archiveNames), "No participants.")
}

func TestReportCSV(t *testing.T) {
	content, err := reportCSV(archivedReport(), archiveNames)
	require.NoError(t, err)
	records, err := csv.NewReader(strings.NewReader(string(content))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"Member ID", "Member", "Presence Seconds", "Attendance", "Passed"}, records[0])
	assert.Equal(t, []string{"b", "Bob", "3600", "1.00", "true"}, records[1])
	assert.Equal(t, []string{"a", "Amy", "600", "0.25", "false"}, records[2])
}

func TestClipMessage(t *testing.T) {
	assert.Equal(t, "ok", clipMessage("ok"))

	long := "```\n" + strings.Repeat("a", 3000)
	clipped := clipMessage(long)
	assert.LessOrEqual(t, len([]rune(clipped)), 2000)
	assert.True(t, strings.HasSuffix(clipped, "```"))
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abc", shortID("abc"))
	assert.Equal(t, "0f8e7a52", shortID("0f8e7a52-6d0c"))
}

func TestReportCSVQuotesNames(t *testing.T) {
	content, err := reportCSV(archivedReport(), names(map[string]string{"a": "Amy, \"the\" scout", "b": "Bob"}))
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(string(content))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "Amy, \"the\" scout", records[2][1])
}
