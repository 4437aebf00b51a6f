package domain

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

const (
	RewardStatusPending   = "PENDING"
	RewardStatusAvailable = "AVAILABLE"
	RewardStatusRedeemed  = "REDEEMED"
	RewardStatusExpired   = "EXPIRED"
)

const (
	RewardTypeCash     = "CASH"
	RewardTypeCredit   = "CREDIT"
	RewardTypeDiscount = "DISCOUNT"
	RewardTypeBonus    = "BONUS"
)

const (
	RedemptionMethodBankTransfer = "bank_transfer"
	RedemptionMethodMobileMoney  = "mobile_money"
	RedemptionMethodWalletCredit = "wallet_credit"
)

const (
	NotifTypeRewardEarned   = "REWARD_EARNED"
	NotifTypeRewardRedeemed = "REWARD_REDEEMED"
	NotifTypeRewardExpired  = "REWARD_EXPIRED"
)

// Settings keys (admin-tunable overrides for referral config defaults).
const (
	SettingRewardAmount        = "referral.reward_amount"
	SettingRewardCurrency      = "referral.reward_currency"
	SettingCompletionThreshold = "referral.completion_threshold"
)

// ActiveDayFormat is the calendar-day key for the activity counter.
// Days are bucketed in UTC regardless of where the activity was observed.
const ActiveDayFormat = "2006-01-02"

// RewardStatuses lists every valid reward status, for filter validation.
var RewardStatuses = []string{
	RewardStatusPending,
	RewardStatusAvailable,
	RewardStatusRedeemed,
	RewardStatusExpired,
}

func ValidRewardStatus(s string) bool {
	for _, v := range RewardStatuses {
		if s == v {
			return true
		}
	}
	return false
}
