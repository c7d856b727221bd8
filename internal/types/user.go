package types

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TelegramID  int64      `gorm:"uniqueIndex;not null;column:telegram_id" json:"telegram_id"`
	FirstName   string     `gorm:"column:first_name" json:"first_name"`
	LastName    string     `gorm:"column:last_name" json:"last_name"`
	Username    string     `gorm:"column:username" json:"username"`
	IsAdmin     bool       `gorm:"not null;default:false;column:is_admin" json:"is_admin"`
	AccessUntil *time.Time `gorm:"column:access_until" json:"access_until,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (User) TableName() string {
	return "user"
}

// HasAccess reports whether the paid-access gate is open at the given time.
// Admins always pass.
func (u *User) HasAccess(now time.Time) bool {
	if u.IsAdmin {
		return true
	}
	return u.AccessUntil != nil && u.AccessUntil.After(now)
}
