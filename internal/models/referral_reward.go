package models

import "time"

// ReferralReward is the ledger entry earned by a referrer when someone they
// invited converts. Amount and currency are fixed at creation; only the status
// and the status-specific timestamp/method fields ever change afterwards.
//
// Lifecycle: PENDING -> AVAILABLE -> REDEEMED, or {PENDING,AVAILABLE} -> EXPIRED.
// REDEEMED and EXPIRED are terminal. Rows are never deleted - redeemed and
// expired entries are retained for audit.
type ReferralReward struct {
	ID                string     `gorm:"primaryKey;size:36" json:"id"`
	BeneficiaryUserID uint       `gorm:"not null;index:idx_rewards_beneficiary_status" json:"beneficiary_user_id"`
	ReferredUserID    uint       `gorm:"uniqueIndex;not null" json:"referred_user_id"` // one reward per referred user
	RewardType        string     `gorm:"size:20;not null" json:"reward_type"`          // CASH | CREDIT | DISCOUNT | BONUS
	Amount            float64    `gorm:"not null" json:"amount"`
	Currency          string     `gorm:"size:3;not null" json:"currency"`
	Status            string     `gorm:"size:20;not null;index:idx_rewards_beneficiary_status" json:"status"`
	RedemptionMethod  string     `gorm:"size:30" json:"redemption_method,omitempty"`
	RedemptionDetails string     `gorm:"type:text" json:"redemption_details,omitempty"` // JSON payload, known keys documented per method
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	RedeemedAt        *time.Time `json:"redeemed_at,omitempty"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	ExpiredAt         *time.Time `json:"expired_at,omitempty"`

	Beneficiary  User `gorm:"foreignKey:BeneficiaryUserID" json:"-"`
	ReferredUser User `gorm:"foreignKey:ReferredUserID" json:"-"`
}

func (ReferralReward) TableName() string { return "referral_rewards" }
