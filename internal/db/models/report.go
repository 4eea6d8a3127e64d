package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ShiftReport is an archived, finalized shift.
type ShiftReport struct {
	ID            uuid.UUID      `db:"id"`
	ShiftID       string         `db:"shift_id"`
	GuildID       string         `db:"guild_id"`
	Title         string         `db:"title"`
	HostID        string         `db:"host_id"`
	MinAttendance float64        `db:"min_attendance"`
	StartedAt     time.Time      `db:"started_at"`
	EndedAt       time.Time      `db:"ended_at"`
	PassedIDs     pq.StringArray `db:"passed_ids"`
	FailedIDs     pq.StringArray `db:"failed_ids"`
	CreatedAt     time.Time      `db:"created_at"`
	Results       []*AttendeeResult
}

// AttendeeResult is one attendee line of an archived report.
type AttendeeResult struct {
	ReportID        uuid.UUID `db:"report_id"`
	AttendeeID      string    `db:"attendee_id"`
	PresenceSeconds int64     `db:"presence_seconds"`
	Attendance      float64   `db:"attendance"`
	Passed          bool      `db:"passed"`
}

// Duration is the length of the shift.
func (r *ShiftReport) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}
