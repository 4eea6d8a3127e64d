package attendance

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultGraceWindow is how long an involuntary disconnect is tolerated.
const DefaultGraceWindow = 5 * time.Minute

// Registry owns every shift and attendee record of the process. All mutation
// goes through its methods. Calls to collaborators (sink, authorizer, presence
// checker) happen outside the lock, so state is re-validated afterwards.
type Registry struct {
	mu     sync.Mutex
	shifts map[string]*Shift
	graces *graceBook

	sink     Sink
	auth     Authorizer
	presence PresenceChecker
	now      func() time.Time
	newID    func() string
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithScheduler replaces the timer-backed scheduler used for grace periods.
func WithScheduler(s Scheduler) Option {
	return func(r *Registry) { r.graces.scheduler = s }
}

// WithGraceWindow overrides DefaultGraceWindow.
func WithGraceWindow(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.graces.window = d
		}
	}
}

// WithIDGenerator replaces the shift id generator.
func WithIDGenerator(gen func() string) Option {
	return func(r *Registry) { r.newID = gen }
}

// NewRegistry creates an empty registry. Nil collaborators are replaced by
// inert defaults: no presentation, no elevated roles, nobody present.
func NewRegistry(sink Sink, auth Authorizer, presence PresenceChecker, opts ...Option) *Registry {
	if sink == nil {
		sink = nopSink{}
	}
	if auth == nil {
		auth = denyAll{}
	}
	if presence == nil {
		presence = absentAll{}
	}
	r := &Registry{
		shifts:   make(map[string]*Shift),
		graces:   newGraceBook(TimerScheduler{}, DefaultGraceWindow),
		sink:     sink,
		auth:     auth,
		presence: presence,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create opens a new active shift and returns its id.
func (r *Registry) Create(ctx context.Context, params CreateParams) (string, error) {
	if params.MinAttendance < 0 || params.MinAttendance > 1 {
		return "", ErrInvalidMinAttendance
	}

	r.mu.Lock()
	id := r.newID()
	for {
		if _, taken := r.shifts[id]; !taken {
			break
		}
		id = r.newID()
	}
	shift := &Shift{
		ID:            id,
		GuildID:       params.GuildID,
		HostID:        params.HostID,
		Title:         params.Title,
		ChannelID:     params.ChannelID,
		MinAttendance: params.MinAttendance,
		StartTime:     r.now(),
		State:         StateActive,
		Attendees:     make(map[string]*AttendeeRecord),
	}
	r.shifts[id] = shift
	r.mu.Unlock()

	log.Printf("attendance: shift %s (%q) created by %s on channel %s", id, params.Title, params.HostID, params.ChannelID)
	return id, nil
}

// Shift returns a snapshot of the shift.
func (r *Registry) Shift(shiftID string) (*Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	shift, ok := r.shifts[shiftID]
	if !ok {
		return nil, ErrShiftNotFound
	}
	return shift.Clone(), nil
}

// InGrace reports whether attendeeID has a pending grace period for shiftID.
func (r *Registry) InGrace(attendeeID, shiftID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.graces.get(attendeeID)
	return ok && g.shiftID == shiftID
}

// Attendees lists the attendee ids of a shift in a stable order.
func (r *Registry) Attendees(shiftID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	shift, ok := r.shifts[shiftID]
	if !ok {
		return nil, ErrShiftNotFound
	}
	if len(shift.Attendees) == 0 {
		return nil, ErrNoAttendees
	}
	ids := make([]string, 0, len(shift.Attendees))
	for id := range shift.Attendees {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// IsAuthorized reports whether userID is the host of the shift or holds the
// elevated role.
func (r *Registry) IsAuthorized(ctx context.Context, shiftID, userID string) (bool, error) {
	r.mu.Lock()
	shift, ok := r.shifts[shiftID]
	if !ok {
		r.mu.Unlock()
		return false, ErrShiftNotFound
	}
	hostID, guildID := shift.HostID, shift.GuildID
	r.mu.Unlock()

	if userID == hostID {
		return true, nil
	}
	return r.auth.HasElevatedRole(ctx, guildID, userID), nil
}

func (r *Registry) authorize(ctx context.Context, shiftID, userID string) error {
	ok, err := r.IsAuthorized(ctx, shiftID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}

// Finalize ends the shift, resolves its grace periods, closes every open
// session and emits the report. Only the first caller that observes the
// shift active does this work; later callers get ErrAlreadyEnded.
func (r *Registry) Finalize(ctx context.Context, shiftID, actorID string) (*Report, error) {
	if err := r.authorize(ctx, shiftID, actorID); err != nil {
		return nil, err
	}

	r.mu.Lock()
	shift, ok := r.shifts[shiftID]
	if !ok {
		r.mu.Unlock()
		return nil, ErrShiftNotFound
	}
	if shift.Ended() {
		r.mu.Unlock()
		return nil, ErrAlreadyEnded
	}

	now := r.now()
	shift.State = StateEnded
	shift.EndTime = timePtr(now)

	r.forceResolveLocked(shift)

	for _, rec := range shift.Attendees {
		if rec.Present() {
			at := now
			if rec.LeftAt != nil && rec.LeftAt.Before(now) {
				at = *rec.LeftAt
			}
			rec.closeSession(at)
		}
		if rec.LeftAt == nil {
			rec.LeftAt = timePtr(now)
		}
	}

	report := BuildReport(shift)
	snap := shift.Clone()
	r.mu.Unlock()

	log.Printf("attendance: shift %s finalized by %s (%d passed, %d failed)",
		shiftID, actorID, len(report.Passed), len(report.Failed))

	r.notifyChanged(ctx, snap)
	if err := r.sink.OnReport(ctx, snap, report); err != nil {
		log.Printf("attendance: report for shift %s not delivered: %v", shiftID, err)
	}
	if err := r.sink.OnActionsClosed(ctx, snap); err != nil {
		log.Printf("attendance: closing actions of shift %s failed: %v", shiftID, err)
	}
	return report, nil
}

// Delete removes the shift in any state. Pending grace periods for it are dropped.
func (r *Registry) Delete(ctx context.Context, shiftID, actorID string) error {
	if err := r.authorize(ctx, shiftID, actorID); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.shifts[shiftID]; !ok {
		return ErrShiftNotFound
	}
	r.graces.cancelShift(shiftID)
	delete(r.shifts, shiftID)

	log.Printf("attendance: shift %s deleted by %s", shiftID, actorID)
	return nil
}

// RemoveAttendee discards the record of targetID, history included.
func (r *Registry) RemoveAttendee(ctx context.Context, shiftID, actorID, targetID string) error {
	if err := r.authorize(ctx, shiftID, actorID); err != nil {
		return err
	}

	r.mu.Lock()
	shift, ok := r.shifts[shiftID]
	if !ok {
		r.mu.Unlock()
		return ErrShiftNotFound
	}
	if _, ok := shift.Attendees[targetID]; !ok {
		r.mu.Unlock()
		return ErrNotRegistered
	}
	delete(shift.Attendees, targetID)
	r.graces.cancelFor(targetID, shiftID)
	snap := shift.Clone()
	r.mu.Unlock()

	log.Printf("attendance: %s removed %s from shift %s", actorID, targetID, shiftID)
	r.notifyChanged(ctx, snap)
	return nil
}

// Close stops every pending grace timer. The registry stays usable.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.graces.cancelAll()
}

func (r *Registry) notifyChanged(ctx context.Context, snaps ...*Shift) {
	for _, snap := range snaps {
		if err := r.sink.OnStateChanged(ctx, snap); err != nil {
			log.Printf("attendance: state update for shift %s failed: %v", snap.ID, err)
		}
	}
}
