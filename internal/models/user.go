package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Username  string         `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Email     string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Role      string         `gorm:"size:20;not null;index;default:'USER'" json:"role"` // USER | ADMIN
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Referral attributes. ReferralCode is assigned lazily on first request and
	// immutable once set. ReferredByUserID is written at most once and is never
	// the user's own id.
	ReferralCode        *string    `gorm:"uniqueIndex;size:20" json:"referral_code,omitempty"`
	ReferredByUserID    *uint      `gorm:"index" json:"referred_by_user_id,omitempty"`
	ReferralCompletedAt *time.Time `json:"referral_completed_at,omitempty"`

	// Activity tracking. ActiveDaysCount increases by at most 1 per distinct
	// UTC calendar day; LastActiveDay ("YYYY-MM-DD") is the marker that makes
	// the increment idempotent.
	LastActiveAt    *time.Time `json:"last_active_at,omitempty"`
	ActiveDaysCount int        `gorm:"not null;default:0" json:"active_days_count"`
	LastActiveDay   *string    `gorm:"size:10" json:"-"`
}

func (User) TableName() string { return "users" }

func (u *User) HasReferrer() bool { return u.ReferredByUserID != nil }

func (u *User) ReferralCompleted() bool { return u.ReferralCompletedAt != nil }
