package service

import (
	"encoding/json"
	"log"
	"time"

	"referly/config"
	"referly/internal/models"
	"referly/internal/repository"

	"github.com/google/uuid"
)

// RewardService owns the redeemable side of the ledger: listing, batch
// redemption and the expiration sweep.
type RewardService struct {
	rewardRepo *repository.RewardRepository
	notifSvc   *NotificationService
	cfg        *config.ReferralConfig
}

func NewRewardService(rewardRepo *repository.RewardRepository, notifSvc *NotificationService, cfg *config.ReferralConfig) *RewardService {
	return &RewardService{rewardRepo: rewardRepo, notifSvc: notifSvc, cfg: cfg}
}

type RewardList struct {
	Items      []models.ReferralReward    `json:"items"`
	Summary    []repository.StatusSummary `json:"summary"`
	Pagination Pagination                 `json:"pagination"`
}

func (s *RewardService) ListRewards(userID uint, page, limit int, status string) (*RewardList, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	items, total, err := s.rewardRepo.ListByBeneficiary(userID, status, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	summary, err := s.rewardRepo.SummarizeByBeneficiary(userID)
	if err != nil {
		return nil, err
	}
	return &RewardList{
		Items:   items,
		Summary: summary,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: int((total + int64(limit) - 1) / int64(limit)),
		},
	}, nil
}

// Settlement summarizes an approved redemption. Actual fund transfer is the
// payment collaborator's job; the ledger only records the authorization.
type Settlement struct {
	TotalAmount   float64   `json:"total_amount"`
	Currency      string    `json:"currency"`
	Count         int       `json:"count"`
	SettlementRef string    `json:"settlement_ref"`
	RedeemedAt    time.Time `json:"redeemed_at"`
}

// Redeem moves the listed rewards to REDEEMED as one unit. A batch with any
// ineligible id, or mixing currencies, is rejected whole - no partial
// redemption. Repeated ids collapse to one redemption of that reward.
// Details is an open key/value bag; only presence is recorded here, known
// keys are per redemption method.
func (s *RewardService) Redeem(userID uint, rewardIDs []string, method string, details map[string]interface{}) (*Settlement, error) {
	ids := dedupeIDs(rewardIDs)

	detailsJSON := ""
	if details != nil {
		b, _ := json.Marshal(details)
		detailsJSON = string(b)
	}

	redeemedAt := time.Now()
	total, currency, err := s.rewardRepo.RedeemBatch(userID, ids, method, detailsJSON, redeemedAt)
	if err != nil {
		return nil, err
	}

	settlement := &Settlement{
		TotalAmount:   total,
		Currency:      currency,
		Count:         len(ids),
		SettlementRef: uuid.NewString(),
		RedeemedAt:    redeemedAt,
	}
	if s.notifSvc != nil {
		s.notifSvc.NotifyRewardRedeemed(userID, settlement.TotalAmount, settlement.Currency, settlement.SettlementRef)
	}
	log.Printf("[redeem] user %d redeemed %d reward(s), %.2f %s, ref %s",
		userID, settlement.Count, total, currency, settlement.SettlementRef)
	return settlement, nil
}

// ExpireStale ages out rewards older than the configured TTL and notifies
// each beneficiary. Only AVAILABLE rewards expire unless ExpirePending is
// configured; a PENDING reward whose referred user never converted then stays
// on the books indefinitely.
func (s *RewardService) ExpireStale() (int64, error) {
	cutoff := time.Now().Add(-s.cfg.RewardTTL)
	expired, err := s.rewardRepo.ExpireOlderThan(cutoff, s.cfg.ExpirePending, time.Now())
	if err != nil {
		return 0, err
	}
	s.notifyExpired(expired)
	if len(expired) > 0 {
		log.Printf("[sweep] expired %d reward(s) older than %s", len(expired), cutoff.Format(time.RFC3339))
	}
	return int64(len(expired)), nil
}

// ExpireByIDs is the administrative override: expires the given rewards
// regardless of age. Terminal entries are left untouched.
func (s *RewardService) ExpireByIDs(ids []string) (int64, error) {
	expired, err := s.rewardRepo.ExpireByIDs(ids, s.cfg.ExpirePending, time.Now())
	if err != nil {
		return 0, err
	}
	s.notifyExpired(expired)
	log.Printf("[sweep] admin expired %d of %d reward(s)", len(expired), len(ids))
	return int64(len(expired)), nil
}

func (s *RewardService) notifyExpired(expired []models.ReferralReward) {
	if s.notifSvc == nil {
		return
	}
	for _, rw := range expired {
		s.notifSvc.NotifyRewardExpired(rw.BeneficiaryUserID, rw.ID)
	}
}

// dedupeIDs drops repeated ids, keeping first-seen order.
func dedupeIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
