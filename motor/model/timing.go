package model

import "time"

// Event classifies the entry and carries its timing.
type Event struct {
	Kind     string
	Category []string
	Type     []string
	Dataset  string

	// Original is the raw request text, kept for audit
	Original string

	// Start is when the request was seen
	Start time.Time

	// End is Start plus Duration, nil when no duration was reported
	End *time.Time

	// Duration of the exchange, nil when the agent did not observe completion
	Duration *time.Duration
}

// SetDuration records a duration and the matching end time.
func (e *Event) SetDuration(d time.Duration) {
	end := e.Start.Add(d)
	e.Duration = &d
	e.End = &end
}
