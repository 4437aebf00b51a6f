package service

import (
	"fmt"
	"testing"
	"time"

	"referly/config"
	"referly/internal/database"
	"referly/internal/domain"
	"referly/internal/models"
	"referly/internal/repository"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Per-test in-memory database to avoid cross-test interference
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	// Single connection: in-memory sqlite does not tolerate concurrent writers.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db))
	return db
}

func testReferralCfg() *config.ReferralConfig {
	return &config.ReferralConfig{
		RewardAmount:        10,
		RewardCurrency:      "USD",
		CompletionThreshold: 7,
		RewardTTL:           365 * 24 * time.Hour,
		ShareURLBase:        "https://referly.app/r/",
		MaxCodeAttempts:     10,
	}
}

func newReferralService(t *testing.T, db *gorm.DB) *ReferralService {
	t.Helper()
	return NewReferralService(
		db,
		repository.NewUserRepository(db),
		repository.NewRewardRepository(db),
		repository.NewSettingRepository(db),
		testReferralCfg(),
	)
}

func createUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	u := &models.User{Username: username, Email: username + "@example.com", Role: domain.RoleUser}
	require.NoError(t, db.Create(u).Error)
	return u
}

func TestApplyReferralCreatesPendingReward(t *testing.T) {
	db := newTestDB(t)
	svc := newReferralService(t, db)

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	code, err := svc.GenerateReferralCode(alice.ID)
	require.NoError(t, err)
	require.Equal(t, "ALICE", code)

	summary, err := svc.ApplyReferral(bob.ID, code)
	require.NoError(t, err)
	require.Equal(t, "alice", summary.Username)

	var gotBob models.User
	require.NoError(t, db.First(&gotBob, bob.ID).Error)
	require.NotNil(t, gotBob.ReferredByUserID)
	require.Equal(t, alice.ID, *gotBob.ReferredByUserID)

	var reward models.ReferralReward
	require.NoError(t, db.Where("referred_user_id = ?", bob.ID).First(&reward).Error)
	require.Equal(t, alice.ID, reward.BeneficiaryUserID)
	require.Equal(t, domain.RewardStatusPending, reward.Status)
	require.Equal(t, float64(10), reward.Amount)
	require.Equal(t, "USD", reward.Currency)
	require.NotNil(t, reward.ExpiresAt)
}

func TestApplyReferralRejectsSelfReferral(t *testing.T) {
	db := newTestDB(t)
	svc := newReferralService(t, db)

	alice := createUser(t, db, "alice")
	code, err := svc.GenerateReferralCode(alice.ID)
	require.NoError(t, err)

	_, err = svc.ApplyReferral(alice.ID, code)
	require.ErrorIs(t, err, ErrSelfReferral)
}

func TestApplyReferralRejectsDoubleReferral(t *testing.T) {
	db := newTestDB(t)
	svc := newReferralService(t, db)

	alice := createUser(t, db, "alice")
	carol := createUser(t, db, "carol")
	bob := createUser(t, db, "bob")

	codeA, err := svc.GenerateReferralCode(alice.ID)
	require.NoError(t, err)
	codeC, err := svc.GenerateReferralCode(carol.ID)
	require.NoError(t, err)

	_, err = svc.ApplyReferral(bob.ID, codeA)
	require.NoError(t, err)

	_, err = svc.ApplyReferral(bob.ID, codeC)
	require.ErrorIs(t, err, ErrAlreadyReferred)

	// Still exactly one reward for bob's conversion.
	var n int64
	require.NoError(t, db.Model(&models.ReferralReward{}).Where("referred_user_id = ?", bob.ID).Count(&n).Error)
	require.EqualValues(t, 1, n)
}

func TestApplyReferralRejectsUnknownCode(t *testing.T) {
	db := newTestDB(t)
	svc := newReferralService(t, db)

	bob := createUser(t, db, "bob")
	_, err := svc.ApplyReferral(bob.ID, "NOSUCHCODE")
	require.ErrorIs(t, err, ErrInvalidCode)
}

func TestGenerateReferralCodeIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := newReferralService(t, db)

	alice := createUser(t, db, "alice")
	first, err := svc.GenerateReferralCode(alice.ID)
	require.NoError(t, err)
	second, err := svc.GenerateReferralCode(alice.ID)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestGenerateReferralCodeDisambiguatesCollisions(t *testing.T) {
	db := newTestDB(t)
	svc := newReferralService(t, db)

	// Usernames that normalize to the same candidate base.
	a := createUser(t, db, "sam-jones")
	b := createUser(t, db, "sam.jones")

	codeA, err := svc.GenerateReferralCode(a.ID)
	require.NoError(t, err)
	codeB, err := svc.GenerateReferralCode(b.ID)
	require.NoError(t, err)

	require.Equal(t, "SAMJONES", codeA)
	require.Equal(t, "SAMJONES1", codeB)

	// Repeated calls stay stable for both users.
	againA, err := svc.GenerateReferralCode(a.ID)
	require.NoError(t, err)
	require.Equal(t, codeA, againA)
	againB, err := svc.GenerateReferralCode(b.ID)
	require.NoError(t, err)
	require.Equal(t, codeB, againB)
}

func TestSetCustomCode(t *testing.T) {
	db := newTestDB(t)
	svc := newReferralService(t, db)

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	code, err := svc.SetCustomCode(alice.ID, "golden")
	require.NoError(t, err)
	require.Equal(t, "GOLDEN", code)

	// Taken by another user.
	_, err = svc.SetCustomCode(bob.ID, "GOLDEN")
	require.ErrorIs(t, err, ErrDuplicateCustomCode)

	// Immutable once set.
	_, err = svc.SetCustomCode(alice.ID, "SILVER")
	require.ErrorIs(t, err, ErrCodeAlreadySet)

	// Bad format.
	_, err = svc.SetCustomCode(bob.ID, "x")
	require.ErrorIs(t, err, ErrInvalidCode)
}

func TestValidateCode(t *testing.T) {
	db := newTestDB(t)
	svc := newReferralService(t, db)

	alice := createUser(t, db, "alice")
	code, err := svc.GenerateReferralCode(alice.ID)
	require.NoError(t, err)

	result, err := svc.ValidateCode(code)
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Equal(t, "alice", result.Referrer.Username)

	// Nonexistent and malformed codes are indistinguishable.
	for _, bad := range []string{"NOPE123", "!!", ""} {
		result, err := svc.ValidateCode(bad)
		require.NoError(t, err)
		require.False(t, result.Valid)
		require.Nil(t, result.Referrer)
	}
}

func TestGetMyReferralCodeCounts(t *testing.T) {
	db := newTestDB(t)
	svc := newReferralService(t, db)

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	carol := createUser(t, db, "carol")

	code, err := svc.GenerateReferralCode(alice.ID)
	require.NoError(t, err)
	_, err = svc.ApplyReferral(bob.ID, code)
	require.NoError(t, err)
	_, err = svc.ApplyReferral(carol.ID, code)
	require.NoError(t, err)

	// Mark bob completed.
	now := time.Now()
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", bob.ID).
		Update("referral_completed_at", now).Error)

	info, err := svc.GetMyReferralCode(alice.ID)
	require.NoError(t, err)
	require.Equal(t, code, info.Code)
	require.Equal(t, "https://referly.app/r/"+code, info.ShareURL)
	require.EqualValues(t, 2, info.TotalReferrals)
	require.EqualValues(t, 1, info.SuccessfulReferrals)
	require.EqualValues(t, 1, info.PendingReferrals)
	require.InDelta(t, 50.0, info.ConversionRate, 0.01)
}

func TestGetHistoryFiltersAndPaginates(t *testing.T) {
	db := newTestDB(t)
	svc := newReferralService(t, db)

	alice := createUser(t, db, "alice")
	code, err := svc.GenerateReferralCode(alice.ID)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		u := createUser(t, db, fmt.Sprintf("friend%d", i))
		_, err := svc.ApplyReferral(u.ID, code)
		require.NoError(t, err)
	}

	history, err := svc.GetHistory(alice.ID, 1, 2, "", "", "")
	require.NoError(t, err)
	require.Len(t, history.Items, 2)
	require.EqualValues(t, 5, history.Pagination.Total)
	require.Equal(t, 3, history.Pagination.TotalPages)

	pending, err := svc.GetHistory(alice.ID, 1, 10, "pending", "", "")
	require.NoError(t, err)
	require.Len(t, pending.Items, 5)

	completed, err := svc.GetHistory(alice.ID, 1, 10, "completed", "", "")
	require.NoError(t, err)
	require.Empty(t, completed.Items)

	searched, err := svc.GetHistory(alice.ID, 1, 10, "", "friend3", "")
	require.NoError(t, err)
	require.Len(t, searched.Items, 1)
	require.Equal(t, "friend3", searched.Items[0].ReferredUsername)
}

func TestGetStatsOverview(t *testing.T) {
	db := newTestDB(t)
	svc := newReferralService(t, db)

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	code, err := svc.GenerateReferralCode(alice.ID)
	require.NoError(t, err)
	_, err = svc.ApplyReferral(bob.ID, code)
	require.NoError(t, err)

	stats, err := svc.GetStats(alice.ID, "30d", "", "")
	require.NoError(t, err)
	require.EqualValues(t, 1, stats.Overview.TotalReferrals)
	require.EqualValues(t, 0, stats.Overview.SuccessfulReferrals)
	require.Len(t, stats.Overview.Rewards, 1)
	require.Equal(t, domain.RewardStatusPending, stats.Overview.Rewards[0].Status)
	require.NotEmpty(t, stats.TimeSeries)
}

func TestGetStatsExplicitDateRange(t *testing.T) {
	db := newTestDB(t)
	svc := newReferralService(t, db)

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	code, err := svc.GenerateReferralCode(alice.ID)
	require.NoError(t, err)
	_, err = svc.ApplyReferral(bob.ID, code)
	require.NoError(t, err)

	// Age the reward ten days so the preset and range windows differ.
	require.NoError(t, db.Model(&models.ReferralReward{}).
		Where("referred_user_id = ?", bob.ID).
		Update("created_at", time.Now().AddDate(0, 0, -10)).Error)

	day := func(offset int) string {
		return time.Now().AddDate(0, 0, offset).Format("2006-01-02")
	}

	// A range covering the reward sees it; the range overrides the preset.
	stats, err := svc.GetStats(alice.ID, "7d", day(-15), day(-5))
	require.NoError(t, err)
	require.Len(t, stats.TimeSeries, 1)

	// A range that ends before the reward excludes it.
	stats, err = svc.GetStats(alice.ID, "", day(-30), day(-20))
	require.NoError(t, err)
	require.Empty(t, stats.TimeSeries)
}
