package dispatch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	bookingRepo "voicecab/database/repository/booking"
	"voicecab/models"
	"voicecab/services/realtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBookings struct {
	mu    sync.Mutex
	items map[string]*models.Booking
}

func newMemBookings(bookings ...*models.Booking) *memBookings {
	m := &memBookings{items: make(map[string]*models.Booking)}
	for _, b := range bookings {
		clone := *b
		m.items[b.ID] = &clone
	}
	return m
}

func (m *memBookings) Create(b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *b
	m.items[b.ID] = &clone
	return nil
}

func (m *memBookings) GetByID(id string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("booking with id %s not found", id)
	}
	clone := *b
	return &clone, nil
}

func (m *memBookings) UpdateStatus(id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.items[id]
	if !ok {
		return fmt.Errorf("booking with id %s not found", id)
	}
	b.Status = status
	return nil
}

func (m *memBookings) SetAssignedDriver(id, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.items[id]
	if !ok {
		return fmt.Errorf("booking with id %s not found", id)
	}
	if b.AssignedDriverID != "" {
		return bookingRepo.ErrDriverAlreadySet
	}
	b.AssignedDriverID = driverID
	return nil
}

func (m *memBookings) ClearAssignedDriver(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.items[id]
	if !ok {
		return fmt.Errorf("booking with id %s not found", id)
	}
	b.AssignedDriverID = ""
	return nil
}

func (m *memBookings) ListRecent(limit int64) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Booking, 0, len(m.items))
	for _, b := range m.items {
		out = append(out, *b)
	}
	return out, nil
}

func confirmedBooking(id string, lat, lng float64) *models.Booking {
	return &models.Booking{
		ID:     id,
		Status: models.BookingStatusConfirmed,
		Details: models.BookingDetails{
			Passengers:      2,
			PickupLocation:  "Pickup",
			PickupLat:       lat,
			PickupLng:       lng,
			DropoffLocation: "Dropoff",
		},
		CreatedAt: time.Now(),
	}
}

func eventNames(events []realtime.Recorded, channel string) []string {
	var out []string
	for _, e := range events {
		if e.Channel == channel {
			out = append(out, e.Event)
		}
	}
	return out
}

func TestAssignPicksNearestActiveDriver(t *testing.T) {
	registry := NewRegistry(2 * time.Minute)
	pickup := models.LatLng{Lat: 51.5000, Lng: -0.1000}

	registry.Heartbeat("driver-far", models.LatLng{Lat: 51.6000, Lng: -0.1000})
	registry.Heartbeat("driver-near", models.LatLng{Lat: 51.5050, Lng: -0.1000})
	registry.Heartbeat("driver-nearest-stale", models.LatLng{Lat: 51.5010, Lng: -0.1000})

	// The closest driver went quiet and got swept; it must not be chosen.
	registry.now = func() time.Time { return time.Now().Add(5 * time.Minute) }
	registry.Sweep()
	registry.now = time.Now
	registry.Heartbeat("driver-far", models.LatLng{Lat: 51.6000, Lng: -0.1000})
	registry.Heartbeat("driver-near", models.LatLng{Lat: 51.5050, Lng: -0.1000})

	bookings := newMemBookings(confirmedBooking("b-1", pickup.Lat, pickup.Lng))
	recorder := &realtime.Recorder{}
	coordinator := NewCoordinator(registry, bookings, recorder)

	require.NoError(t, coordinator.Assign("b-1"))

	booking, err := bookings.GetByID("b-1")
	require.NoError(t, err)
	assert.Equal(t, "driver-near", booking.AssignedDriverID)

	driver, err := registry.Get("driver-near")
	require.NoError(t, err)
	assert.Equal(t, "b-1", driver.CurrentAssignment)

	assert.Equal(t, []string{models.EventNewRideRequest}, eventNames(recorder.Events(), realtime.DriversChannel))
	assert.Equal(t, []string{models.EventDriverAssigned}, eventNames(recorder.Events(), realtime.DriverChannel("driver-near")))
	assert.Equal(t, []string{models.EventDriverAssigned}, eventNames(recorder.Events(), realtime.BookingChannel("b-1")))
}

func TestAssignFallsThroughClaimedDriver(t *testing.T) {
	registry := NewRegistry(2 * time.Minute)
	registry.Heartbeat("driver-a", models.LatLng{Lat: 51.5010, Lng: -0.1000})
	registry.Heartbeat("driver-b", models.LatLng{Lat: 51.5100, Lng: -0.1000})

	// The nearest driver already holds a ride.
	require.True(t, registry.TryClaim("driver-a", "other-booking"))

	bookings := newMemBookings(confirmedBooking("b-2", 51.5000, -0.1000))
	coordinator := NewCoordinator(registry, bookings, &realtime.Recorder{})

	require.NoError(t, coordinator.Assign("b-2"))

	booking, err := bookings.GetByID("b-2")
	require.NoError(t, err)
	assert.Equal(t, "driver-b", booking.AssignedDriverID)
}

func TestAssignNoEligibleDriver(t *testing.T) {
	registry := NewRegistry(2 * time.Minute)
	bookings := newMemBookings(confirmedBooking("b-3", 51.5, -0.1))
	coordinator := NewCoordinator(registry, bookings, &realtime.Recorder{})

	err := coordinator.Assign("b-3")
	assert.ErrorIs(t, err, ErrNoEligibleDriver)

	booking, err := bookings.GetByID("b-3")
	require.NoError(t, err)
	assert.Empty(t, booking.AssignedDriverID)
	assert.Equal(t, models.BookingStatusConfirmed, booking.Status)
}

func TestAssignGuards(t *testing.T) {
	registry := NewRegistry(2 * time.Minute)
	registry.Heartbeat("driver-a", models.LatLng{Lat: 51.5, Lng: -0.1})

	assigned := confirmedBooking("b-4", 51.5, -0.1)
	assigned.AssignedDriverID = "driver-x"
	pending := confirmedBooking("b-5", 51.5, -0.1)
	pending.Status = models.BookingStatusCancelled

	bookings := newMemBookings(assigned, pending)
	coordinator := NewCoordinator(registry, bookings, &realtime.Recorder{})

	assert.ErrorIs(t, coordinator.Assign("b-4"), ErrAlreadyAssigned)
	assert.ErrorIs(t, coordinator.Assign("b-5"), ErrNotAssignable)
	assert.Error(t, coordinator.Assign("b-missing"))
}

func TestConcurrentAssignSingleWinner(t *testing.T) {
	registry := NewRegistry(2 * time.Minute)
	registry.Heartbeat("driver-solo", models.LatLng{Lat: 51.5, Lng: -0.1})

	bookings := newMemBookings(
		confirmedBooking("race-1", 51.5, -0.1),
		confirmedBooking("race-2", 51.5, -0.1),
	)
	coordinator := NewCoordinator(registry, bookings, &realtime.Recorder{})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{"race-1", "race-2"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			errs[i] = coordinator.Assign(id)
		}(i, id)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		switch err {
		case nil:
			won++
		case ErrNoEligibleDriver:
			lost++
		default:
			t.Fatalf("unexpected assign error: %v", err)
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, lost)
}

func TestConcurrentAssignSameBookingSingleClaim(t *testing.T) {
	// Two attempts for the same booking race (a queued retry against a manual
	// assign). Exactly one may win; the loser must hand its driver back.
	for i := 0; i < 50; i++ {
		registry := NewRegistry(2 * time.Minute)
		registry.Heartbeat("driver-a", models.LatLng{Lat: 51.5010, Lng: -0.1000})
		registry.Heartbeat("driver-b", models.LatLng{Lat: 51.5100, Lng: -0.1000})

		bookings := newMemBookings(confirmedBooking("dup", 51.5, -0.1))
		coordinator := NewCoordinator(registry, bookings, &realtime.Recorder{})

		start := make(chan struct{})
		var wg sync.WaitGroup
		errs := make([]error, 2)
		for j := 0; j < 2; j++ {
			wg.Add(1)
			go func(j int) {
				defer wg.Done()
				<-start
				errs[j] = coordinator.Assign("dup")
			}(j)
		}
		close(start)
		wg.Wait()

		var won int
		for _, err := range errs {
			switch err {
			case nil:
				won++
			case ErrAlreadyAssigned:
			default:
				t.Fatalf("unexpected assign error: %v", err)
			}
		}
		require.Equal(t, 1, won)

		booking, err := bookings.GetByID("dup")
		require.NoError(t, err)
		require.NotEmpty(t, booking.AssignedDriverID)

		// Only the winning driver holds a claim on this booking.
		var holders, free int
		for _, id := range []string{"driver-a", "driver-b"} {
			d, err := registry.Get(id)
			require.NoError(t, err)
			switch d.CurrentAssignment {
			case booking.ID:
				holders++
			case "":
				free++
			default:
				t.Fatalf("driver %s claims unexpected booking %q", id, d.CurrentAssignment)
			}
		}
		require.Equal(t, 1, holders)
		require.Equal(t, 1, free)
	}
}

func TestAssignWithoutCoordinatesRanksByRecency(t *testing.T) {
	registry := NewRegistry(2 * time.Minute)
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	registry.now = func() time.Time { return base }
	registry.Heartbeat("driver-old", models.LatLng{Lat: 51.50, Lng: -0.10})
	registry.now = func() time.Time { return base.Add(30 * time.Second) }
	registry.Heartbeat("driver-recent", models.LatLng{Lat: 51.60, Lng: -0.20})

	// A booking gathered without geocoding carries no pickup coordinates.
	bookings := newMemBookings(confirmedBooking("no-geo", 0, 0))
	coordinator := NewCoordinator(registry, bookings, &realtime.Recorder{})

	require.NoError(t, coordinator.Assign("no-geo"))

	booking, err := bookings.GetByID("no-geo")
	require.NoError(t, err)
	assert.Equal(t, "driver-recent", booking.AssignedDriverID)
}

func TestStatusLadder(t *testing.T) {
	registry := NewRegistry(2 * time.Minute)
	registry.Heartbeat("driver-a", models.LatLng{Lat: 51.5, Lng: -0.1})

	bookings := newMemBookings(confirmedBooking("b-6", 51.5, -0.1))
	recorder := &realtime.Recorder{}
	coordinator := NewCoordinator(registry, bookings, recorder)
	require.NoError(t, coordinator.Assign("b-6"))

	// Reports from a driver that is not assigned are rejected.
	assert.ErrorIs(t, coordinator.MarkEnRoute("b-6", "driver-impostor"), ErrNotAssignedDriver)

	// Steps cannot be skipped.
	assert.ErrorIs(t, coordinator.MarkArrived("b-6", "driver-a"), ErrInvalidTransition)
	assert.ErrorIs(t, coordinator.Complete("b-6", "driver-a"), ErrInvalidTransition)

	require.NoError(t, coordinator.MarkEnRoute("b-6", "driver-a"))
	assert.ErrorIs(t, coordinator.MarkEnRoute("b-6", "driver-a"), ErrInvalidTransition)
	require.NoError(t, coordinator.MarkArrived("b-6", "driver-a"))
	require.NoError(t, coordinator.Complete("b-6", "driver-a"))

	booking, err := bookings.GetByID("b-6")
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCompleted, booking.Status)

	// Completion frees the driver for the next ride.
	driver, err := registry.Get("driver-a")
	require.NoError(t, err)
	assert.Empty(t, driver.CurrentAssignment)

	assert.Equal(t,
		[]string{models.EventDriverAssigned, models.EventDriverEnRoute, models.EventDriverArrived, models.EventRideCompleted},
		eventNames(recorder.Events(), realtime.BookingChannel("b-6")))
}

func TestCancelReleasesDriver(t *testing.T) {
	registry := NewRegistry(2 * time.Minute)
	registry.Heartbeat("driver-a", models.LatLng{Lat: 51.5, Lng: -0.1})

	bookings := newMemBookings(confirmedBooking("b-7", 51.5, -0.1))
	recorder := &realtime.Recorder{}
	coordinator := NewCoordinator(registry, bookings, recorder)
	require.NoError(t, coordinator.Assign("b-7"))

	require.NoError(t, coordinator.Cancel("b-7"))

	booking, err := bookings.GetByID("b-7")
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, booking.Status)
	assert.Empty(t, booking.AssignedDriverID)

	driver, err := registry.Get("driver-a")
	require.NoError(t, err)
	assert.Empty(t, driver.CurrentAssignment)

	// Terminal bookings stay terminal.
	assert.ErrorIs(t, coordinator.Cancel("b-7"), ErrInvalidTransition)
}

func TestSweepSkipsAssignedAndRecentDrivers(t *testing.T) {
	registry := NewRegistry(2 * time.Minute)
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	registry.now = func() time.Time { return base }
	registry.Heartbeat("driver-stale", models.LatLng{Lat: 51.5, Lng: -0.1})
	registry.Heartbeat("driver-busy", models.LatLng{Lat: 51.5, Lng: -0.1})
	require.True(t, registry.TryClaim("driver-busy", "b-8"))

	registry.now = func() time.Time { return base.Add(90 * time.Second) }
	registry.Heartbeat("driver-fresh", models.LatLng{Lat: 51.5, Lng: -0.1})

	registry.now = func() time.Time { return base.Add(3 * time.Minute) }
	swept := registry.Sweep()
	assert.Equal(t, []string{"driver-stale"}, swept)

	stale, err := registry.Get("driver-stale")
	require.NoError(t, err)
	assert.False(t, stale.Active)

	// A claimed driver is never swept, no matter how old the heartbeat.
	busy, err := registry.Get("driver-busy")
	require.NoError(t, err)
	assert.True(t, busy.Active)
	assert.Equal(t, "b-8", busy.CurrentAssignment)

	fresh, err := registry.Get("driver-fresh")
	require.NoError(t, err)
	assert.True(t, fresh.Active)

	// The swept driver comes back on its next heartbeat.
	registry.Heartbeat("driver-stale", models.LatLng{Lat: 51.5, Lng: -0.1})
	stale, err = registry.Get("driver-stale")
	require.NoError(t, err)
	assert.True(t, stale.Active)

	// Nothing left to sweep.
	assert.Empty(t, registry.Sweep())
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	registry := NewRegistry(time.Minute)
	sweeper := NewSweeper(registry, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after context cancellation")
	}
}
