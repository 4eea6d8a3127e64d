package attendance

import "time"

// State is the lifecycle state of a shift. The only transition is
// StateActive -> StateEnded.
type State int

const (
	StateActive State = iota
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Session is one continuous interval of verified presence. End is nil while
// the attendee is still present.
type Session struct {
	Start time.Time
	End   *time.Time
}

// Open reports whether the session has no end yet.
func (s Session) Open() bool {
	return s.End == nil
}

// AttendeeRecord holds the sessions of one attendee within one shift.
// Sessions are ordered by start and never overlap; only the last one may be open.
type AttendeeRecord struct {
	Sessions []Session
	// LeftAt is the earliest unresolved departure, nil while present.
	LeftAt *time.Time
}

// Shift is one monitored attendance session tied to a voice channel and a host.
type Shift struct {
	ID            string
	GuildID       string
	HostID        string
	Title         string
	ChannelID     string
	MinAttendance float64
	StartTime     time.Time
	EndTime       *time.Time
	State         State
	Attendees     map[string]*AttendeeRecord
}

// CreateParams describes a new shift.
type CreateParams struct {
	GuildID       string
	HostID        string
	Title         string
	ChannelID     string
	MinAttendance float64
}

// Ended reports whether the shift has been finalized.
func (s *Shift) Ended() bool {
	return s.State == StateEnded
}

// Clone returns a deep copy that is safe to hand to collaborators outside
// the registry lock.
func (s *Shift) Clone() *Shift {
	c := *s
	if s.EndTime != nil {
		c.EndTime = timePtr(*s.EndTime)
	}
	c.Attendees = make(map[string]*AttendeeRecord, len(s.Attendees))
	for id, rec := range s.Attendees {
		c.Attendees[id] = rec.clone()
	}
	return &c
}

func timePtr(t time.Time) *time.Time {
	return &t
}
