package attendance

import (
	"sort"
	"time"
)

// AttendeeResult is the final attendance of one attendee.
type AttendeeResult struct {
	AttendeeID string
	Presence   time.Duration
	Fraction   float64
	Attendance float64
	Passed     bool
}

// Report is the outcome of a finalized shift.
type Report struct {
	ShiftID       string
	GuildID       string
	Title         string
	HostID        string
	MinAttendance float64
	Start         time.Time
	End           time.Time
	Duration      time.Duration
	Passed        []AttendeeResult
	Failed        []AttendeeResult
}

// BuildReport scores every attendee of an ended shift over [start, end].
func BuildReport(shift *Shift) *Report {
	end := shift.StartTime
	if shift.EndTime != nil {
		end = *shift.EndTime
	}
	report := &Report{
		ShiftID:       shift.ID,
		GuildID:       shift.GuildID,
		Title:         shift.Title,
		HostID:        shift.HostID,
		MinAttendance: shift.MinAttendance,
		Start:         shift.StartTime,
		End:           end,
		Duration:      end.Sub(shift.StartTime),
	}

	ids := make([]string, 0, len(shift.Attendees))
	for id := range shift.Attendees {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		sessions := shift.Attendees[id].Sessions
		fraction := Fraction(sessions, shift.StartTime, end)
		res := AttendeeResult{
			AttendeeID: id,
			Presence:   Presence(sessions, shift.StartTime, end),
			Fraction:   fraction,
			Attendance: Quantize(fraction),
		}
		res.Passed = Passes(res.Attendance, shift.MinAttendance)
		if res.Passed {
			report.Passed = append(report.Passed, res)
		} else {
			report.Failed = append(report.Failed, res)
		}
	}
	return report
}
