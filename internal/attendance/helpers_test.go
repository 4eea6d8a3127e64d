package attendance_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"attendancebot/internal/attendance"
)

var t0 = time.Date(2025, time.March, 10, 18, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type fakeTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// scheduler queues timers until the test fires them.
type scheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *scheduler) Schedule(delay time.Duration, fn func()) attendance.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{delay: delay, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

// FireAll runs every timer that is neither stopped nor fired.
func (s *scheduler) FireAll() int {
	s.mu.Lock()
	var due []*fakeTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	s.mu.Unlock()
	for _, t := range due {
		t.fn()
	}
	return len(due)
}

func (s *scheduler) Last() *fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.timers) == 0 {
		return nil
	}
	return s.timers[len(s.timers)-1]
}

func (s *scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type sink struct {
	mu        sync.Mutex
	changes   int
	reports   []*attendance.Report
	closed    []string
	notified  []string
	notifyErr error
}

func (s *sink) OnStateChanged(context.Context, *attendance.Shift) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changes++
	return nil
}

func (s *sink) OnReport(_ context.Context, _ *attendance.Shift, r *attendance.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
	return nil
}

func (s *sink) OnActionsClosed(_ context.Context, shift *attendance.Shift) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = append(s.closed, shift.ID)
	return nil
}

func (s *sink) OnGraceExpired(_ context.Context, attendeeID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notified = append(s.notified, attendeeID+"|"+title)
	return s.notifyErr
}

type roles map[string]bool

func (r roles) HasElevatedRole(_ context.Context, _, userID string) bool {
	return r[userID]
}

type presence struct {
	mu      sync.Mutex
	inVoice map[string]bool
	err     error
}

func (p *presence) Set(userID string, in bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inVoice == nil {
		p.inVoice = make(map[string]bool)
	}
	p.inVoice[userID] = in
}

func (p *presence) InVoiceChannel(_ context.Context, _, _, userID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inVoice[userID], p.err
}

type harness struct {
	reg      *attendance.Registry
	router   *attendance.Router
	clock    *clock
	sched    *scheduler
	sink     *sink
	presence *presence
}

const (
	host    = "host-1"
	officer = "officer-1"
	voice   = "voice-1"
)

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:    &clock{now: t0},
		sched:    &scheduler{},
		sink:     &sink{},
		presence: &presence{},
	}
	n := 0
	h.reg = attendance.NewRegistry(h.sink, roles{officer: true}, h.presence,
		attendance.WithClock(h.clock.Now),
		attendance.WithScheduler(h.sched),
		attendance.WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("shift-%d", n)
		}),
	)
	h.router = attendance.NewRouter(h.reg)
	return h
}

func (h *harness) create(t *testing.T, minAttendance float64) string {
	t.Helper()
	return h.createOn(t, voice, minAttendance)
}

func (h *harness) createOn(t *testing.T, channelID string, minAttendance float64) string {
	t.Helper()
	id, err := h.reg.Create(context.Background(), attendance.CreateParams{
		GuildID:       "guild-1",
		HostID:        host,
		Title:         "Evening patrol",
		ChannelID:     channelID,
		MinAttendance: minAttendance,
	})
	require.NoError(t, err)
	return id
}

func (h *harness) at(d time.Duration) time.Time {
	ts := t0.Add(d)
	h.clock.Set(ts)
	return ts
}

func (h *harness) record(t *testing.T, shiftID, userID string) *attendance.AttendeeRecord {
	t.Helper()
	shift, err := h.reg.Shift(shiftID)
	require.NoError(t, err)
	rec, ok := shift.Attendees[userID]
	require.True(t, ok, "attendee %s not registered", userID)
	return rec
}

func span(start, end time.Duration) attendance.Session {
	e := t0.Add(end)
	return attendance.Session{Start: t0.Add(start), End: &e}
}

func openFrom(start time.Duration) attendance.Session {
	return attendance.Session{Start: t0.Add(start)}
}

var errNotifyFailed = errors.New("dm closed")
