// File: services/realtime/publisher.go
package realtime

import "sync"

// Channel names. Per-driver and per-booking channels carry events for one
// party; the shared drivers channel carries open ride requests.
const DriversChannel = "drivers"

func DriverChannel(driverID string) string { return "driver:" + driverID }

func BookingChannel(bookingID string) string { return "booking:" + bookingID }

// Publisher delivers an event to every subscriber of a channel. Delivery is
// best effort; dispatch state never depends on it.
type Publisher interface {
	Publish(channel, event string, payload interface{})
}

// Recorded is one captured Publish call.
type Recorded struct {
	Channel string
	Event   string
	Payload interface{}
}

// Recorder is a Publisher that captures events, for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Recorded
}

func (r *Recorder) Publish(channel, event string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Recorded{Channel: channel, Event: event, Payload: payload})
}

// Events returns a snapshot of everything published so far.
func (r *Recorder) Events() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Recorded, len(r.events))
	copy(out, r.events)
	return out
}
