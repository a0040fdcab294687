package models

import (
	"safaribuddy/src/types"
	"time"
)

type User struct {
	ID           uint             `gorm:"primarykey" json:"id"`
	FullName     string           `json:"full_name,omitempty"`
	Email        string           `gorm:"uniqueIndex" json:"email,omitempty"`
	Phone        string           `gorm:"uniqueIndex" json:"phone,omitempty"`
	PasswordHash string           `json:"-"`
	Role         types.UserRole   `gorm:"default:'tourist'" json:"role,omitempty"`
	Status       types.UserStatus `gorm:"default:'active'" json:"status,omitempty"`
	VerifiedAt   *time.Time       `json:"verified_at,omitempty"`
	LastActive   *time.Time       `json:"last_active,omitempty"`
	Metadata     *types.Metadata  `gorm:"type:jsonb" json:"-"`

	Bookings []Booking `gorm:"foreignKey:user_id" json:"bookings,omitempty"`
	Tours    []Tour    `gorm:"foreignKey:provider_id" json:"tours,omitempty"`

	types.Timestamps
}

// IsProvider reports whether the user can own tours.
func (u *User) IsProvider() bool {
	return u.Role == types.ROLE_GUIDE || u.Role == types.ROLE_COMPANY
}
