// Package audit provides audit logging for controller changes made
// through the CLI.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Event records one mutating command and its outcome.
type Event struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	User      string        `json:"user"`
	Operation string        `json:"operation"`
	Network   string        `json:"network,omitempty"`
	Member    string        `json:"member,omitempty"`
	Detail    string        `json:"detail,omitempty"` // alias, CIDR or address argument
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Filter defines criteria for querying audit events
type Filter struct {
	User        string
	Operation   string
	Network     string
	Member      string
	StartTime   time.Time
	EndTime     time.Time
	SuccessOnly bool
	FailureOnly bool
	Limit       int
	Offset      int
}

// NewEvent creates a new audit event
func NewEvent(user, operation string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		User:      user,
		Operation: operation,
	}
}

// WithNetwork sets the network identifier
func (e *Event) WithNetwork(networkID string) *Event {
	e.Network = networkID
	return e
}

// WithMember sets the member identifier
func (e *Event) WithMember(memberID string) *Event {
	e.Member = memberID
	return e
}

// WithDetail sets the command argument
func (e *Event) WithDetail(detail string) *Event {
	e.Detail = detail
	return e
}

// WithSuccess marks the event as successful
func (e *Event) WithSuccess() *Event {
	e.Success = true
	return e
}

// WithError marks the event as failed
func (e *Event) WithError(err error) *Event {
	e.Success = false
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WithDuration sets the operation duration
func (e *Event) WithDuration(d time.Duration) *Event {
	e.Duration = d
	return e
}

// Finish marks the event with the outcome of err and the time elapsed
// since the event was created.
func (e *Event) Finish(err error) *Event {
	if err != nil {
		e.WithError(err)
	} else {
		e.WithSuccess()
	}
	return e.WithDuration(time.Since(e.Timestamp))
}
