package repository

import (
	"errors"
	"fmt"
	"time"

	"referly/internal/domain"
	"referly/internal/models"

	"gorm.io/gorm"
)

// ErrMixedCurrencies rejects redemption batches whose rewards do not share a
// single currency.
var ErrMixedCurrencies = errors.New("rewards in a redemption batch must share a currency")

// RewardNotAvailableError names the first reward in a redemption batch that is
// missing, owned by someone else, or not in AVAILABLE status. The whole batch
// is rejected; nothing is redeemed.
type RewardNotAvailableError struct {
	RewardID string
}

func (e *RewardNotAvailableError) Error() string {
	return fmt.Sprintf("reward %s is not available for redemption", e.RewardID)
}

type RewardRepository struct {
	db *gorm.DB
}

func NewRewardRepository(db *gorm.DB) *RewardRepository {
	return &RewardRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *RewardRepository) WithTx(tx *gorm.DB) *RewardRepository {
	return &RewardRepository{db: tx}
}

func (r *RewardRepository) Create(reward *models.ReferralReward) error {
	return r.db.Create(reward).Error
}

func (r *RewardRepository) GetByReferredUser(referredUserID uint) (*models.ReferralReward, error) {
	var reward models.ReferralReward
	err := r.db.Where("referred_user_id = ?", referredUserID).First(&reward).Error
	if err != nil {
		return nil, err
	}
	return &reward, nil
}

// ListByBeneficiary pages through a referrer's ledger entries, newest first,
// optionally filtered by status.
func (r *RewardRepository) ListByBeneficiary(beneficiaryID uint, status string, limit, offset int) ([]models.ReferralReward, int64, error) {
	q := r.db.Model(&models.ReferralReward{}).Where("beneficiary_user_id = ?", beneficiaryID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rewards []models.ReferralReward
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&rewards).Error
	return rewards, total, err
}

// StatusSummary is one row of the per-status rollup for a beneficiary.
type StatusSummary struct {
	Status string  `json:"status"`
	Count  int64   `json:"count"`
	Amount float64 `json:"amount"`
}

func (r *RewardRepository) SummarizeByBeneficiary(beneficiaryID uint) ([]StatusSummary, error) {
	var rows []StatusSummary
	err := r.db.Model(&models.ReferralReward{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount").
		Where("beneficiary_user_id = ?", beneficiaryID).
		Group("status").
		Find(&rows).Error
	return rows, err
}

// DayBucket is one day/status cell of the stats time series.
type DayBucket struct {
	Day    string  `json:"day"`
	Status string  `json:"status"`
	Count  int64   `json:"count"`
	Amount float64 `json:"amount"`
}

// TimeSeries groups a beneficiary's rewards created in [since, until) by
// calendar day and status. A zero until means no upper bound.
func (r *RewardRepository) TimeSeries(beneficiaryID uint, since, until time.Time) ([]DayBucket, error) {
	q := r.db.Model(&models.ReferralReward{}).
		Select("DATE(created_at) AS day, status, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount").
		Where("beneficiary_user_id = ? AND created_at >= ?", beneficiaryID, since)
	if !until.IsZero() {
		q = q.Where("created_at < ?", until)
	}
	var rows []DayBucket
	err := q.Group("DATE(created_at), status").
		Order("day ASC").
		Find(&rows).Error
	return rows, err
}

// MarkAvailable flips the PENDING reward for a (beneficiary, referred) pair to
// AVAILABLE. The status precondition makes re-triggering a no-op: 0 rows
// updated means the reward already left PENDING (or never existed).
func (r *RewardRepository) MarkAvailable(beneficiaryID, referredUserID uint) (int64, error) {
	res := r.db.Model(&models.ReferralReward{}).
		Where("beneficiary_user_id = ? AND referred_user_id = ? AND status = ?",
			beneficiaryID, referredUserID, domain.RewardStatusPending).
		Update("status", domain.RewardStatusAvailable)
	return res.RowsAffected, res.Error
}

// RedeemBatch atomically moves every listed reward from AVAILABLE to REDEEMED
// on behalf of the owner. All-or-nothing: if any id is missing, owned by
// someone else, not AVAILABLE, or in a different currency, the transaction
// rolls back and no reward changes.
//
// The final guarded UPDATE re-checks status inside the transaction, so a
// concurrent expiration sweep that wins the race on one of the rows causes a
// rollback here instead of a half-redeemed batch.
func (r *RewardRepository) RedeemBatch(beneficiaryID uint, ids []string, method, detailsJSON string, redeemedAt time.Time) (float64, string, error) {
	var total float64
	var currency string

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var rewards []models.ReferralReward
		if err := tx.
			Where("id IN ? AND beneficiary_user_id = ? AND status = ?",
				ids, beneficiaryID, domain.RewardStatusAvailable).
			Find(&rewards).Error; err != nil {
			return err
		}

		if len(rewards) < len(ids) {
			loaded := make(map[string]bool, len(rewards))
			for _, rw := range rewards {
				loaded[rw.ID] = true
			}
			for _, id := range ids {
				if !loaded[id] {
					return &RewardNotAvailableError{RewardID: id}
				}
			}
		}

		for _, rw := range rewards {
			if currency == "" {
				currency = rw.Currency
			} else if rw.Currency != currency {
				return ErrMixedCurrencies
			}
			total += rw.Amount
		}

		res := tx.Model(&models.ReferralReward{}).
			Where("id IN ? AND beneficiary_user_id = ? AND status = ?",
				ids, beneficiaryID, domain.RewardStatusAvailable).
			Updates(map[string]interface{}{
				"status":             domain.RewardStatusRedeemed,
				"redeemed_at":        redeemedAt,
				"redemption_method":  method,
				"redemption_details": detailsJSON,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != int64(len(ids)) {
			// A concurrent transition (e.g. expiration) claimed a row between
			// the read and the write. No partial redemption.
			return &RewardNotAvailableError{RewardID: ids[0]}
		}
		return nil
	})
	if err != nil {
		return 0, "", err
	}
	return total, currency, nil
}

// ExpireOlderThan ages out rewards created before the cutoff and returns the
// rows it expired, so the caller can notify each beneficiary. AVAILABLE
// rewards always qualify; PENDING rewards only when includePending is set.
// Each row transitions via the same status precondition that redemption uses,
// so a reward can never be both redeemed and expired; a row that loses that
// race is not part of the result.
func (r *RewardRepository) ExpireOlderThan(cutoff time.Time, includePending bool, expiredAt time.Time) ([]models.ReferralReward, error) {
	statuses := []string{domain.RewardStatusAvailable}
	if includePending {
		statuses = append(statuses, domain.RewardStatusPending)
	}
	var candidates []models.ReferralReward
	if err := r.db.Where("status IN ? AND created_at < ?", statuses, cutoff).
		Find(&candidates).Error; err != nil {
		return nil, err
	}
	return r.expireEach(candidates, expiredAt)
}

// ExpireByIDs is the administrative override: expires the listed rewards
// regardless of age and returns the rows it expired. Terminal rows are
// untouched by the status precondition.
func (r *RewardRepository) ExpireByIDs(ids []string, includePending bool, expiredAt time.Time) ([]models.ReferralReward, error) {
	statuses := []string{domain.RewardStatusAvailable}
	if includePending {
		statuses = append(statuses, domain.RewardStatusPending)
	}
	var candidates []models.ReferralReward
	if err := r.db.Where("id IN ? AND status IN ?", ids, statuses).
		Find(&candidates).Error; err != nil {
		return nil, err
	}
	return r.expireEach(candidates, expiredAt)
}

func (r *RewardRepository) expireEach(candidates []models.ReferralReward, expiredAt time.Time) ([]models.ReferralReward, error) {
	var expired []models.ReferralReward
	for _, rw := range candidates {
		res := r.db.Model(&models.ReferralReward{}).
			Where("id = ? AND status = ?", rw.ID, rw.Status).
			Updates(map[string]interface{}{
				"status":     domain.RewardStatusExpired,
				"expired_at": expiredAt,
			})
		if res.Error != nil {
			return expired, res.Error
		}
		if res.RowsAffected == 1 {
			rw.Status = domain.RewardStatusExpired
			rw.ExpiredAt = &expiredAt
			expired = append(expired, rw)
		}
	}
	return expired, nil
}
