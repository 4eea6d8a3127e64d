package attendance

import "time"

// minShiftSpan is the smallest shift length used as a divisor.
const minShiftSpan = time.Second

// Presence sums the part of each session that falls inside [start, end].
// Open sessions count up to end. The sum never exceeds the shift length.
func Presence(sessions []Session, start, end time.Time) time.Duration {
	if end.Before(start) {
		end = start.Add(minShiftSpan)
	}

	var total time.Duration
	for _, s := range sessions {
		from := s.Start
		if from.Before(start) {
			from = start
		}
		to := end
		if s.End != nil && s.End.Before(end) {
			to = *s.End
		}
		if from.After(to) {
			continue
		}
		total += to.Sub(from)
	}

	if span := end.Sub(start); total > span {
		total = span
	}
	return total
}

// Fraction returns presence over [start, end] as a share of the shift length.
func Fraction(sessions []Session, start, end time.Time) float64 {
	if end.Before(start) {
		end = start.Add(minShiftSpan)
	}
	span := end.Sub(start)
	if span < minShiftSpan {
		span = minShiftSpan
	}
	return float64(Presence(sessions, start, end)) / float64(span)
}

// Quantize rounds a presence fraction to the nearest quartile using
// half-open thresholds.
func Quantize(fraction float64) float64 {
	switch {
	case fraction >= 0.875:
		return 1.0
	case fraction >= 0.625:
		return 0.75
	case fraction >= 0.375:
		return 0.5
	case fraction >= 0.125:
		return 0.25
	default:
		return 0.0
	}
}

// Score is the quantized attendance of sessions over [start, end].
func Score(sessions []Session, start, end time.Time) float64 {
	return Quantize(Fraction(sessions, start, end))
}

// Passes reports whether a quantized attendance meets the minimum (inclusive).
func Passes(attendance, minAttendance float64) bool {
	return attendance >= minAttendance
}
