package attendance

import "errors"

// Error kinds returned by registry, ledger and router operations. All of them
// are recoverable at the call site; compare with errors.Is.
var (
	ErrShiftNotFound           = errors.New("shift not found")
	ErrAlreadyEnded            = errors.New("shift already ended")
	ErrNotPresentInChannel     = errors.New("not present in the monitored voice channel")
	ErrAlreadyRegistered       = errors.New("already registered in shift")
	ErrNotRegistered           = errors.New("not registered in shift")
	ErrUnauthorized            = errors.New("not authorized for this shift")
	ErrNoAttendees             = errors.New("shift has no attendees")
	ErrVoiceChannelUnavailable = errors.New("voice channel unavailable")
	ErrInvalidMinAttendance    = errors.New("minimum attendance must be between 0 and 1")
)
