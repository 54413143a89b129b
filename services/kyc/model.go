package kyc

import "time"

const (
	StatusPending  = "pending"
	StatusVerified = "verified"
	StatusRejected = "rejected"
)

// Profile mirrors the verification state owned by the upstream KYC system.
// This service only reads it; verification itself happens elsewhere.
type Profile struct {
	ID         string     `gorm:"column:id" json:"profile_id"`
	UserID     string     `gorm:"column:user_id" json:"user_id"`
	Status     string     `gorm:"column:status" json:"status"`
	VerifiedAt *time.Time `gorm:"column:verified_at" json:"verified_at,omitempty"`
	ExpiresAt  *time.Time `gorm:"column:expires_at" json:"expires_at,omitempty"`
	CreatedAt  time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (Profile) TableName() string {
	return "kyc_profiles"
}
