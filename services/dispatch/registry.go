// File: services/dispatch/registry.go
package dispatch

import (
	"sync"
	"time"

	"voicecab/models"
)

// Registry is the in-memory driver pool. Heartbeats keep a driver eligible;
// claims are compare-and-set under the registry lock, so two concurrent
// assignments can never land on the same driver.
type Registry struct {
	mu            sync.Mutex
	drivers       map[string]*models.Driver
	inactiveAfter time.Duration
	now           func() time.Time
}

// NewRegistry creates a registry that considers a driver stale after
// inactiveAfter without a heartbeat.
func NewRegistry(inactiveAfter time.Duration) *Registry {
	return &Registry{
		drivers:       make(map[string]*models.Driver),
		inactiveAfter: inactiveAfter,
		now:           time.Now,
	}
}

// Heartbeat upserts the driver with a fresh position and marks it active. A
// swept driver comes back eligible on its next heartbeat.
func (r *Registry) Heartbeat(driverID string, location models.LatLng) *models.Driver {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.drivers[driverID]
	if !ok {
		d = &models.Driver{ID: driverID}
		r.drivers[driverID] = d
	}
	d.Location = location
	d.Active = true
	d.LastSeenAt = r.now()

	copy := *d
	return &copy
}

// Get returns a snapshot of one driver.
func (r *Registry) Get(driverID string) (*models.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drivers[driverID]
	if !ok {
		return nil, ErrDriverNotFound
	}
	copy := *d
	return &copy, nil
}

// TryClaim atomically assigns the booking to the driver. It fails when the
// driver is missing, inactive, or already holds an assignment.
func (r *Registry) TryClaim(driverID, bookingID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.drivers[driverID]
	if !ok || !d.Active || d.CurrentAssignment != "" {
		return false
	}
	d.CurrentAssignment = bookingID
	return true
}

// Release clears the driver's assignment, but only if it still points at the
// given booking.
func (r *Registry) Release(driverID, bookingID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.drivers[driverID]
	if ok && d.CurrentAssignment == bookingID {
		d.CurrentAssignment = ""
	}
}

// EligibleSnapshot returns copies of every active, unassigned driver.
func (r *Registry) EligibleSnapshot() []models.Driver {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Driver, 0, len(r.drivers))
	for _, d := range r.drivers {
		if d.Active && d.CurrentAssignment == "" {
			out = append(out, *d)
		}
	}
	return out
}

// Sweep deactivates drivers whose last heartbeat is older than the staleness
// window. Drivers holding an assignment are left alone regardless of age; a
// mid-ride driver is not hailing and may legitimately go quiet. Returns the
// ids that were deactivated.
func (r *Registry) Sweep() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.inactiveAfter)
	var swept []string
	for id, d := range r.drivers {
		if !d.Active || d.CurrentAssignment != "" {
			continue
		}
		if d.LastSeenAt.Before(cutoff) {
			d.Active = false
			swept = append(swept, id)
		}
	}
	return swept
}
