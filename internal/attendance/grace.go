package attendance

import (
	"context"
	"log"
	"time"
)

// gracePeriod tolerates a short involuntary disconnect of one attendee.
type gracePeriod struct {
	attendeeID string
	shiftID    string
	leftAt     time.Time
	timer      Timer
}

// graceBook tracks pending grace periods keyed by attendee id alone, so one
// attendee has at most one grace period across all shifts. It is guarded by
// the registry lock and never touches ledger data itself.
type graceBook struct {
	scheduler Scheduler
	window    time.Duration
	pending   map[string]*gracePeriod
}

func newGraceBook(s Scheduler, window time.Duration) *graceBook {
	return &graceBook{
		scheduler: s,
		window:    window,
		pending:   make(map[string]*gracePeriod),
	}
}

func (b *graceBook) get(attendeeID string) (*gracePeriod, bool) {
	g, ok := b.pending[attendeeID]
	return g, ok
}

func (b *graceBook) open(attendeeID, shiftID string, leftAt time.Time, onExpire func(*gracePeriod)) bool {
	if _, exists := b.pending[attendeeID]; exists {
		return false
	}
	g := &gracePeriod{attendeeID: attendeeID, shiftID: shiftID, leftAt: leftAt}
	g.timer = b.scheduler.Schedule(b.window, func() { onExpire(g) })
	b.pending[attendeeID] = g
	return true
}

// cancel stops and forgets the grace period of attendeeID, if any.
func (b *graceBook) cancel(attendeeID string) {
	g, ok := b.pending[attendeeID]
	if !ok {
		return
	}
	if g.timer != nil {
		g.timer.Stop()
	}
	delete(b.pending, attendeeID)
}

// cancelFor cancels only when the grace period targets shiftID.
func (b *graceBook) cancelFor(attendeeID, shiftID string) {
	if g, ok := b.pending[attendeeID]; ok && g.shiftID == shiftID {
		b.cancel(attendeeID)
	}
}

func (b *graceBook) forShift(shiftID string) []*gracePeriod {
	var out []*gracePeriod
	for _, g := range b.pending {
		if g.shiftID == shiftID {
			out = append(out, g)
		}
	}
	return out
}

func (b *graceBook) cancelShift(shiftID string) {
	for _, g := range b.forShift(shiftID) {
		b.cancel(g.attendeeID)
	}
}

func (b *graceBook) cancelAll() {
	for id := range b.pending {
		b.cancel(id)
	}
}

// openGraceLocked starts the grace window for an attendee who just left.
// Caller holds r.mu.
func (r *Registry) openGraceLocked(attendeeID, shiftID string, leftAt time.Time) {
	if !r.graces.open(attendeeID, shiftID, leftAt, r.expireGrace) {
		log.Printf("attendance: grace period for %s already pending, shift %s ignored", attendeeID, shiftID)
	}
}

// forceResolveLocked settles every grace period of a shift being finalized:
// the departure stands at the recorded leave time. Caller holds r.mu.
func (r *Registry) forceResolveLocked(shift *Shift) {
	for _, g := range r.graces.forShift(shift.ID) {
		if rec := shift.Attendees[g.attendeeID]; rec != nil {
			rec.closeSession(g.leftAt)
			rec.markLeft(g.leftAt)
		}
		r.graces.cancel(g.attendeeID)
	}
}

// stillPending reports whether g is the grace period currently on record.
// A cancelled or replaced grace period makes a timer fire stale.
func (r *Registry) stillPending(g *gracePeriod) bool {
	cur, ok := r.graces.get(g.attendeeID)
	return ok && cur == g && cur.shiftID == g.shiftID
}

// expireGrace runs when a grace window elapses without a processed return.
func (r *Registry) expireGrace(g *gracePeriod) {
	ctx := context.Background()

	r.mu.Lock()
	if !r.stillPending(g) {
		r.mu.Unlock()
		log.Printf("attendance: stale grace expiry for %s on shift %s ignored", g.attendeeID, g.shiftID)
		return
	}
	shift, ok := r.shifts[g.shiftID]
	if !ok || shift.Ended() {
		delete(r.graces.pending, g.attendeeID)
		r.mu.Unlock()
		return
	}
	guildID, channelID := shift.GuildID, shift.ChannelID
	r.mu.Unlock()

	present, err := r.presence.InVoiceChannel(ctx, guildID, channelID, g.attendeeID)
	if err != nil {
		log.Printf("attendance: presence check for %s on shift %s failed: %v", g.attendeeID, g.shiftID, err)
		present = false
	}

	r.mu.Lock()
	if !r.stillPending(g) {
		r.mu.Unlock()
		return
	}
	delete(r.graces.pending, g.attendeeID)
	shift, ok = r.shifts[g.shiftID]
	if !ok || shift.Ended() {
		r.mu.Unlock()
		return
	}
	if _, registered := shift.Attendees[g.attendeeID]; !registered {
		r.mu.Unlock()
		return
	}

	if present {
		// The return event has not been processed yet.
		r.resumeLocked(shift, g.attendeeID, r.now())
		snap := shift.Clone()
		r.mu.Unlock()
		r.notifyChanged(ctx, snap)
		return
	}

	title := shift.Title
	snap := shift.Clone()
	r.mu.Unlock()

	if err := r.sink.OnGraceExpired(ctx, g.attendeeID, title); err != nil {
		log.Printf("attendance: could not notify %s about recorded absence: %v", g.attendeeID, err)
	}
	r.notifyChanged(ctx, snap)
}
