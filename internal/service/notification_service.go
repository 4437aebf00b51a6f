package service

import (
	"encoding/json"
	"fmt"

	"referly/internal/domain"
	"referly/internal/models"
	"referly/internal/repository"
)

// NotificationService records reward lifecycle notifications. Delivery beyond
// the notifications table (push, email) belongs to the messaging collaborator.
type NotificationService struct {
	repo *repository.NotificationRepository
}

func NewNotificationService(repo *repository.NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo}
}

func (s *NotificationService) Notify(userID uint, notifType, title, body string, data map[string]interface{}) error {
	var dataJSON string
	if data != nil {
		b, _ := json.Marshal(data)
		dataJSON = string(b)
	}
	return s.repo.Create(&models.Notification{
		UserID: userID,
		Type:   notifType,
		Title:  title,
		Body:   body,
		Data:   dataJSON,
	})
}

func (s *NotificationService) NotifyRewardEarned(beneficiaryID uint, referredUsername string, reward *models.ReferralReward) {
	_ = s.Notify(beneficiaryID, domain.NotifTypeRewardEarned, "Referral reward earned",
		fmt.Sprintf("%s is now active - your %.2f %s reward is ready to redeem", referredUsername, reward.Amount, reward.Currency),
		map[string]interface{}{"reward_id": reward.ID, "amount": reward.Amount, "currency": reward.Currency})
}

func (s *NotificationService) NotifyRewardRedeemed(userID uint, total float64, currency, settlementRef string) {
	_ = s.Notify(userID, domain.NotifTypeRewardRedeemed, "Rewards redeemed",
		fmt.Sprintf("Your redemption of %.2f %s was accepted", total, currency),
		map[string]interface{}{"total_amount": total, "currency": currency, "settlement_ref": settlementRef})
}

func (s *NotificationService) NotifyRewardExpired(userID uint, rewardID string) {
	_ = s.Notify(userID, domain.NotifTypeRewardExpired, "Reward expired",
		"One of your referral rewards has expired",
		map[string]interface{}{"reward_id": rewardID})
}
