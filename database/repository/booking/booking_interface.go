package bookingRepo

import (
	"errors"

	"voicecab/models"
)

// ErrDriverAlreadySet is returned by SetAssignedDriver when the booking
// already carries a driver. The claim is conditional so two dispatch attempts
// racing on one booking cannot both win.
var ErrDriverAlreadySet = errors.New("booking already has an assigned driver")

// BookingRepository defines persistence operations for booking records.
type BookingRepository interface {
	Create(booking *models.Booking) error
	GetByID(id string) (*models.Booking, error)
	UpdateStatus(id, status string) error
	SetAssignedDriver(id, driverID string) error
	ClearAssignedDriver(id string) error
	ListRecent(limit int64) ([]models.Booking, error)
}
