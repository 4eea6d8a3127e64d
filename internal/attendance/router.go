package attendance

import (
	"context"
	"time"
)

// Router maps presence signals from voice channels onto the shifts that
// monitor them.
type Router struct {
	reg *Registry
}

func NewRouter(reg *Registry) *Router {
	return &Router{reg: reg}
}

// Depart handles attendeeID leaving channelID. Every active shift on that
// channel where the attendee is present is updated, as long as the attendee
// has no grace period pending anywhere.
func (rt *Router) Depart(ctx context.Context, attendeeID, channelID string, now time.Time) {
	r := rt.reg

	r.mu.Lock()
	var changed []*Shift
	for _, shift := range r.shifts {
		if shift.Ended() || shift.ChannelID != channelID {
			continue
		}
		if r.departLocked(shift, attendeeID, now) {
			changed = append(changed, shift.Clone())
		}
	}
	r.mu.Unlock()

	r.notifyChanged(ctx, changed...)
}

// Arrive handles attendeeID entering channelID. Only a pending grace period
// whose shift monitors that channel is resolved.
func (rt *Router) Arrive(ctx context.Context, attendeeID, channelID string, now time.Time) {
	r := rt.reg

	r.mu.Lock()
	g, ok := r.graces.get(attendeeID)
	if !ok {
		r.mu.Unlock()
		return
	}
	shift, ok := r.shifts[g.shiftID]
	if !ok || shift.Ended() || shift.ChannelID != channelID {
		r.mu.Unlock()
		return
	}
	r.graces.cancel(attendeeID)
	r.resumeLocked(shift, attendeeID, now)
	snap := shift.Clone()
	r.mu.Unlock()

	r.notifyChanged(ctx, snap)
}
