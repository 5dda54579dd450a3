// Package events carries park activity to live subscribers such as the
// websocket stream in internal/api.
package events

import "time"

// Type is the kind of rider activity.
type Type string

const (
	RiderWalking  Type = "rider_walking"
	RiderRiding   Type = "rider_riding"
	RiderReturned Type = "rider_returned"
	RiderStopped  Type = "rider_stopped"
)

// Event is one rider state change.
type Event struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Rider     int       `json:"rider"`
	Car       int       `json:"car,omitempty"`
	Duration  string    `json:"duration,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// New stamps an event with the current time.
func New(t Type, rider, car int) Event {
	return Event{Type: t, Timestamp: time.Now(), Rider: rider, Car: car}
}

// WithDuration attaches how long the walk or ride will take.
func (e Event) WithDuration(d time.Duration) Event {
	e.Duration = d.String()
	return e
}

// WithError attaches a failure message.
func (e Event) WithError(err error) Event {
	if err != nil {
		e.Error = err.Error()
	}
	return e
}
