package attendance

import "context"

// Sink receives shift events for presentation. Every call is best-effort:
// returned errors are logged and never undo the state change that caused them.
type Sink interface {
	// OnStateChanged is called with a snapshot after any mutation of a shift.
	OnStateChanged(ctx context.Context, shift *Shift) error
	// OnReport is called once per shift, after it was finalized.
	OnReport(ctx context.Context, shift *Shift, report *Report) error
	// OnActionsClosed tells the sink the shift accepts no further interaction.
	OnActionsClosed(ctx context.Context, shift *Shift) error
	// OnGraceExpired notifies an attendee that their absence was recorded.
	OnGraceExpired(ctx context.Context, attendeeID, shiftTitle string) error
}

// Authorizer is the external role lookup consulted for privileged actions.
type Authorizer interface {
	HasElevatedRole(ctx context.Context, guildID, userID string) bool
}

// PresenceChecker reports live voice presence.
type PresenceChecker interface {
	InVoiceChannel(ctx context.Context, guildID, channelID, userID string) (bool, error)
}

type nopSink struct{}

func (nopSink) OnStateChanged(context.Context, *Shift) error         { return nil }
func (nopSink) OnReport(context.Context, *Shift, *Report) error      { return nil }
func (nopSink) OnActionsClosed(context.Context, *Shift) error        { return nil }
func (nopSink) OnGraceExpired(context.Context, string, string) error { return nil }

type denyAll struct{}

func (denyAll) HasElevatedRole(context.Context, string, string) bool { return false }

type absentAll struct{}

func (absentAll) InVoiceChannel(context.Context, string, string, string) (bool, error) {
	return false, nil
}
