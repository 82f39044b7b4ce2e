package userRepo

import "voicecab/models"

// UserRepository defines persistence operations for caller accounts.
type UserRepository interface {
	FindOrCreateByPhone(phone string) (*models.User, error)
}
