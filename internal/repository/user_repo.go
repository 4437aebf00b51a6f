package repository

import (
	"strings"
	"time"

	"referly/internal/models"

	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{db: tx}
}

func (r *UserRepository) GetByID(id uint) (*models.User, error) {
	var u models.User
	err := r.db.First(&u, id).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByReferralCode(code string) (*models.User, error) {
	var u models.User
	err := r.db.Where("referral_code = ?", code).First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SetReferralCode assigns a code to a user that does not have one yet.
// Returns the number of rows updated: 0 means the user already has a code
// (codes are immutable once set). A unique-index violation on the code column
// surfaces as an error and means the candidate collided with another user.
func (r *UserRepository) SetReferralCode(userID uint, code string) (int64, error) {
	res := r.db.Model(&models.User{}).
		Where("id = ? AND referral_code IS NULL", userID).
		Update("referral_code", code)
	return res.RowsAffected, res.Error
}

// AttachReferrer records who referred the user. The write is guarded on the
// column being null so the relationship can never be overwritten; 0 rows
// updated means the user was already referred.
func (r *UserRepository) AttachReferrer(userID, referrerID uint) (int64, error) {
	res := r.db.Model(&models.User{}).
		Where("id = ? AND referred_by_user_id IS NULL", userID).
		Update("referred_by_user_id", referrerID)
	return res.RowsAffected, res.Error
}

func (r *UserRepository) TouchLastActive(userID uint, t time.Time) error {
	return r.db.Model(&models.User{}).
		Where("id = ?", userID).
		Update("last_active_at", t).Error
}

// MarkActiveDay bumps the active-day counter if the given day ("YYYY-MM-DD",
// UTC) has not been counted yet. The single conditional UPDATE is what makes
// concurrent activity pings for the same day safe: only one of them matches
// the precondition. Returns rows updated (0 = day already counted).
func (r *UserRepository) MarkActiveDay(userID uint, day string) (int64, error) {
	res := r.db.Model(&models.User{}).
		Where("id = ? AND (last_active_day IS NULL OR last_active_day < ?)", userID, day).
		Updates(map[string]interface{}{
			"active_days_count": gorm.Expr("active_days_count + 1"),
			"last_active_day":   day,
		})
	return res.RowsAffected, res.Error
}

// CompletionCandidates returns referred users that have reached the activity
// threshold but are not marked completed yet.
func (r *UserRepository) CompletionCandidates(threshold int) ([]models.User, error) {
	var users []models.User
	err := r.db.
		Where("referred_by_user_id IS NOT NULL").
		Where("referral_completed_at IS NULL").
		Where("active_days_count >= ?", threshold).
		Find(&users).Error
	return users, err
}

// MarkReferralCompleted stamps referral_completed_at, guarded on it being
// null so a re-run of the completion sweep cannot move the timestamp.
func (r *UserRepository) MarkReferralCompleted(userID uint, at time.Time) (int64, error) {
	res := r.db.Model(&models.User{}).
		Where("id = ? AND referral_completed_at IS NULL", userID).
		Update("referral_completed_at", at)
	return res.RowsAffected, res.Error
}

func (r *UserRepository) CountReferredBy(referrerID uint) (int64, error) {
	var n int64
	err := r.db.Model(&models.User{}).
		Where("referred_by_user_id = ?", referrerID).
		Count(&n).Error
	return n, err
}

func (r *UserRepository) CountCompletedBy(referrerID uint) (int64, error) {
	var n int64
	err := r.db.Model(&models.User{}).
		Where("referred_by_user_id = ? AND referral_completed_at IS NOT NULL", referrerID).
		Count(&n).Error
	return n, err
}

// ListReferredBy pages through the users a referrer has invited.
// status filters on completion state ("completed" / "pending"), search matches
// the referred username, sort is "newest" or "oldest".
func (r *UserRepository) ListReferredBy(referrerID uint, status, search, sort string, limit, offset int) ([]models.User, int64, error) {
	q := r.db.Model(&models.User{}).Where("referred_by_user_id = ?", referrerID)
	switch status {
	case "completed":
		q = q.Where("referral_completed_at IS NOT NULL")
	case "pending":
		q = q.Where("referral_completed_at IS NULL")
	}
	if s := strings.TrimSpace(search); s != "" {
		q = q.Where("username LIKE ?", "%"+s+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at DESC"
	if sort == "oldest" {
		order = "created_at ASC"
	}
	var users []models.User
	err := q.Order(order).Limit(limit).Offset(offset).Find(&users).Error
	return users, total, err
}
