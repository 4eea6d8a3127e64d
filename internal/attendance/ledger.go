package attendance

import (
	"context"
	"time"
)

func newRecord(now time.Time) *AttendeeRecord {
	return &AttendeeRecord{Sessions: []Session{{Start: now}}}
}

// Present reports whether the last session is still open.
func (a *AttendeeRecord) Present() bool {
	n := len(a.Sessions)
	return n > 0 && a.Sessions[n-1].Open()
}

// startSession appends an open session unless one is already open.
func (a *AttendeeRecord) startSession(now time.Time) bool {
	if a.Present() {
		return false
	}
	a.Sessions = append(a.Sessions, Session{Start: now})
	return true
}

// closeSession ends the open session at the given instant, never before its start.
func (a *AttendeeRecord) closeSession(at time.Time) bool {
	if !a.Present() {
		return false
	}
	last := &a.Sessions[len(a.Sessions)-1]
	if at.Before(last.Start) {
		at = last.Start
	}
	last.End = timePtr(at)
	return true
}

// markLeft records a departure. The earliest unresolved departure wins so
// that late, out-of-order events never push the marker forward.
func (a *AttendeeRecord) markLeft(at time.Time) {
	if a.LeftAt == nil || at.Before(*a.LeftAt) {
		a.LeftAt = timePtr(at)
	}
}

func (a *AttendeeRecord) clearLeft() {
	a.LeftAt = nil
}

func (a *AttendeeRecord) clone() *AttendeeRecord {
	c := &AttendeeRecord{Sessions: make([]Session, len(a.Sessions))}
	for i, s := range a.Sessions {
		c.Sessions[i] = Session{Start: s.Start}
		if s.End != nil {
			c.Sessions[i].End = timePtr(*s.End)
		}
	}
	if a.LeftAt != nil {
		c.LeftAt = timePtr(*a.LeftAt)
	}
	return c
}

// Join registers userID in the shift. present must reflect whether the user
// is currently in the monitored voice channel; the caller checks it.
// A user keeps a single record per shift, so any earlier join is rejected
// even after leaving. A pending grace period of the user is discarded.
func (r *Registry) Join(ctx context.Context, shiftID, userID string, present bool) error {
	r.mu.Lock()
	shift, ok := r.shifts[shiftID]
	if !ok {
		r.mu.Unlock()
		return ErrShiftNotFound
	}
	if shift.Ended() {
		r.mu.Unlock()
		return ErrAlreadyEnded
	}
	if !present {
		r.mu.Unlock()
		return ErrNotPresentInChannel
	}
	if _, registered := shift.Attendees[userID]; registered {
		r.mu.Unlock()
		return ErrAlreadyRegistered
	}

	r.graces.cancel(userID)

	shift.Attendees[userID] = newRecord(r.now())
	snap := shift.Clone()
	r.mu.Unlock()

	r.notifyChanged(ctx, snap)
	return nil
}

// Leave is an explicit, user-declared departure. It closes the open session
// and does not open a grace period.
func (r *Registry) Leave(ctx context.Context, shiftID, userID string) error {
	r.mu.Lock()
	shift, ok := r.shifts[shiftID]
	if !ok {
		r.mu.Unlock()
		return ErrShiftNotFound
	}
	if shift.Ended() {
		r.mu.Unlock()
		return ErrAlreadyEnded
	}
	rec := shift.Attendees[userID]
	if rec == nil {
		r.mu.Unlock()
		return ErrNotRegistered
	}

	r.graces.cancelFor(userID, shiftID)

	now := r.now()
	rec.closeSession(now)
	rec.markLeft(now)
	snap := shift.Clone()
	r.mu.Unlock()

	r.notifyChanged(ctx, snap)
	return nil
}

// departLocked handles presence lost on the monitored channel. It closes the
// open session, marks the departure and opens a grace period.
// Caller holds r.mu.
func (r *Registry) departLocked(shift *Shift, attendeeID string, now time.Time) bool {
	rec := shift.Attendees[attendeeID]
	if rec == nil || !rec.Present() {
		return false
	}
	if _, pending := r.graces.get(attendeeID); pending {
		return false
	}
	rec.closeSession(now)
	rec.markLeft(now)
	r.openGraceLocked(attendeeID, shift.ID, now)
	return true
}

// resumeLocked handles presence regained while a grace period was pending.
// Caller holds r.mu and has already removed the grace period.
func (r *Registry) resumeLocked(shift *Shift, attendeeID string, now time.Time) {
	rec := shift.Attendees[attendeeID]
	if rec == nil {
		return
	}
	rec.clearLeft()
	rec.startSession(now)
}
