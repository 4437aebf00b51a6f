package service

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"referly/config"
	"referly/internal/domain"
	"referly/internal/models"
	"referly/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReferralService owns attribution: resolving codes to referrers, linking a
// new user to their referrer, and creating the initial PENDING reward.
type ReferralService struct {
	db          *gorm.DB
	userRepo    *repository.UserRepository
	rewardRepo  *repository.RewardRepository
	settingRepo *repository.SettingRepository
	cfg         *config.ReferralConfig
}

func NewReferralService(
	db *gorm.DB,
	userRepo *repository.UserRepository,
	rewardRepo *repository.RewardRepository,
	settingRepo *repository.SettingRepository,
	cfg *config.ReferralConfig,
) *ReferralService {
	return &ReferralService{
		db:          db,
		userRepo:    userRepo,
		rewardRepo:  rewardRepo,
		settingRepo: settingRepo,
		cfg:         cfg,
	}
}

// ReferrerSummary is the public view of a referrer returned by code
// validation and successful attribution.
type ReferrerSummary struct {
	Username            string `json:"username"`
	SuccessfulReferrals int64  `json:"successful_referrals"`
}

// ApplyReferral links newUserID to the owner of the given code and creates the
// PENDING reward, both inside one transaction: no reward without the
// attribution link and vice versa.
func (s *ReferralService) ApplyReferral(newUserID uint, code string) (*ReferrerSummary, error) {
	referrer, err := s.userRepo.GetByReferralCode(normalizeCode(code))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, err
	}
	if referrer.ID == newUserID {
		return nil, ErrSelfReferral
	}

	newUser, err := s.userRepo.GetByID(newUserID)
	if err != nil {
		return nil, err
	}
	if newUser.HasReferrer() {
		return nil, ErrAlreadyReferred
	}

	amount := s.settingFloat(domain.SettingRewardAmount, s.cfg.RewardAmount)
	currency := s.settingString(domain.SettingRewardCurrency, s.cfg.RewardCurrency)
	expiresAt := time.Now().Add(s.cfg.RewardTTL)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		rows, err := s.userRepo.WithTx(tx).AttachReferrer(newUserID, referrer.ID)
		if err != nil {
			return err
		}
		if rows == 0 {
			// Lost a race with a concurrent apply for the same user.
			return ErrAlreadyReferred
		}
		return s.rewardRepo.WithTx(tx).Create(&models.ReferralReward{
			ID:                uuid.NewString(),
			BeneficiaryUserID: referrer.ID,
			ReferredUserID:    newUserID,
			RewardType:        domain.RewardTypeCash,
			Amount:            amount,
			Currency:          currency,
			Status:            domain.RewardStatusPending,
			ExpiresAt:         &expiresAt,
		})
	})
	if err != nil {
		return nil, err
	}

	return s.summarize(referrer)
}

// codeCharset strips everything that is not an uppercase letter or digit.
var codeCharset = regexp.MustCompile(`[^A-Z0-9]`)

const codeMaxLen = 12

// GenerateReferralCode returns the user's code, deriving one from their
// username on first call. Candidate collisions with other users' codes get a
// numeric disambiguator appended; attempts are bounded.
func (s *ReferralService) GenerateReferralCode(userID uint) (string, error) {
	u, err := s.userRepo.GetByID(userID)
	if err != nil {
		return "", err
	}
	if u.ReferralCode != nil {
		return *u.ReferralCode, nil
	}

	base := codeCharset.ReplaceAllString(strings.ToUpper(u.Username), "")
	if len(base) > codeMaxLen {
		base = base[:codeMaxLen]
	}
	if len(base) < 4 {
		base = "REF" + strconv.FormatUint(uint64(u.ID), 10)
	}

	for attempt := 0; attempt < s.cfg.MaxCodeAttempts; attempt++ {
		candidate := base
		if attempt > 0 {
			candidate = base + strconv.Itoa(attempt)
		}

		owner, err := s.userRepo.GetByReferralCode(candidate)
		if err == nil {
			if owner.ID == userID {
				return candidate, nil
			}
			continue // taken by someone else, disambiguate
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return "", err
		}

		rows, err := s.userRepo.SetReferralCode(userID, candidate)
		if err != nil {
			// Unique-index race with another user claiming the same candidate.
			continue
		}
		if rows == 0 {
			// A concurrent call already assigned this user a code.
			u, err := s.userRepo.GetByID(userID)
			if err != nil {
				return "", err
			}
			if u.ReferralCode != nil {
				return *u.ReferralCode, nil
			}
			continue
		}
		return candidate, nil
	}
	return "", ErrCodeGenerationExhausted
}

var customCodeFormat = regexp.MustCompile(`^[A-Z0-9]{4,16}$`)

// SetCustomCode assigns a vanity code. Only allowed while the user has no code
// yet; codes are immutable once set.
func (s *ReferralService) SetCustomCode(userID uint, code string) (string, error) {
	code = normalizeCode(code)
	if !customCodeFormat.MatchString(code) {
		return "", ErrInvalidCode
	}

	u, err := s.userRepo.GetByID(userID)
	if err != nil {
		return "", err
	}
	if u.ReferralCode != nil {
		if *u.ReferralCode == code {
			return code, nil
		}
		return "", ErrCodeAlreadySet
	}

	if owner, err := s.userRepo.GetByReferralCode(code); err == nil && owner.ID != userID {
		return "", ErrDuplicateCustomCode
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	rows, err := s.userRepo.SetReferralCode(userID, code)
	if err != nil {
		return "", ErrDuplicateCustomCode
	}
	if rows == 0 {
		return "", ErrCodeAlreadySet
	}
	return code, nil
}

// CodeValidation is the public answer to "is this code usable".
type CodeValidation struct {
	Valid    bool             `json:"valid"`
	Referrer *ReferrerSummary `json:"referrer,omitempty"`
}

// ValidateCode is a pure read. Any lookup miss answers valid=false with no
// further detail.
func (s *ReferralService) ValidateCode(code string) (*CodeValidation, error) {
	referrer, err := s.userRepo.GetByReferralCode(normalizeCode(code))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &CodeValidation{Valid: false}, nil
		}
		return nil, err
	}
	summary, err := s.summarize(referrer)
	if err != nil {
		return nil, err
	}
	return &CodeValidation{Valid: true, Referrer: summary}, nil
}

// ReferralCodeInfo is the dashboard payload for GET /me/referral-code.
type ReferralCodeInfo struct {
	Code                string  `json:"code"`
	ShareURL            string  `json:"share_url"`
	TotalReferrals      int64   `json:"total_referrals"`
	SuccessfulReferrals int64   `json:"successful_referrals"`
	PendingReferrals    int64   `json:"pending_referrals"`
	ConversionRate      float64 `json:"conversion_rate"`
}

func (s *ReferralService) GetMyReferralCode(userID uint) (*ReferralCodeInfo, error) {
	code, err := s.GenerateReferralCode(userID)
	if err != nil {
		return nil, err
	}
	total, err := s.userRepo.CountReferredBy(userID)
	if err != nil {
		return nil, err
	}
	successful, err := s.userRepo.CountCompletedBy(userID)
	if err != nil {
		return nil, err
	}
	info := &ReferralCodeInfo{
		Code:                code,
		ShareURL:            s.cfg.ShareURLBase + code,
		TotalReferrals:      total,
		SuccessfulReferrals: successful,
		PendingReferrals:    total - successful,
	}
	if total > 0 {
		info.ConversionRate = math.Round(float64(successful)/float64(total)*10000) / 100
	}
	return info, nil
}

// Stats bundles the overview and a per-day time series for a referrer.
type Stats struct {
	Overview   StatsOverview          `json:"overview"`
	TimeSeries []repository.DayBucket `json:"time_series"`
}

type StatsOverview struct {
	TotalReferrals      int64                      `json:"total_referrals"`
	SuccessfulReferrals int64                      `json:"successful_referrals"`
	PendingReferrals    int64                      `json:"pending_referrals"`
	ConversionRate      float64                    `json:"conversion_rate"`
	Rewards             []repository.StatusSummary `json:"rewards"`
}

// GetStats aggregates a referrer's performance. The window is either a preset
// period ("7d", "30d", "90d", "all") or an explicit from/to date range
// ("2006-01-02", to inclusive); a parseable from wins over the preset.
func (s *ReferralService) GetStats(userID uint, period, from, to string) (*Stats, error) {
	since, until := statsWindow(period, from, to)

	total, err := s.userRepo.CountReferredBy(userID)
	if err != nil {
		return nil, err
	}
	successful, err := s.userRepo.CountCompletedBy(userID)
	if err != nil {
		return nil, err
	}
	summary, err := s.rewardRepo.SummarizeByBeneficiary(userID)
	if err != nil {
		return nil, err
	}
	series, err := s.rewardRepo.TimeSeries(userID, since, until)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		Overview: StatsOverview{
			TotalReferrals:      total,
			SuccessfulReferrals: successful,
			PendingReferrals:    total - successful,
			Rewards:             summary,
		},
		TimeSeries: series,
	}
	if total > 0 {
		stats.Overview.ConversionRate = math.Round(float64(successful)/float64(total)*10000) / 100
	}
	return stats, nil
}

// HistoryItem is one referred user in the referrer's history listing.
type HistoryItem struct {
	ReferredUsername string     `json:"referred_username"`
	Status           string     `json:"status"` // completed | pending
	ActiveDays       int        `json:"active_days"`
	JoinedAt         time.Time  `json:"joined_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

type History struct {
	Items      []HistoryItem `json:"items"`
	Pagination Pagination    `json:"pagination"`
}

func (s *ReferralService) GetHistory(userID uint, page, limit int, status, search, sort string) (*History, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	users, total, err := s.userRepo.ListReferredBy(userID, status, search, sort, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}

	items := make([]HistoryItem, 0, len(users))
	for _, u := range users {
		st := "pending"
		if u.ReferralCompleted() {
			st = "completed"
		}
		items = append(items, HistoryItem{
			ReferredUsername: u.Username,
			Status:           st,
			ActiveDays:       u.ActiveDaysCount,
			JoinedAt:         u.CreatedAt,
			CompletedAt:      u.ReferralCompletedAt,
		})
	}
	return &History{
		Items: items,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: int((total + int64(limit) - 1) / int64(limit)),
		},
	}, nil
}

func (s *ReferralService) summarize(referrer *models.User) (*ReferrerSummary, error) {
	successful, err := s.userRepo.CountCompletedBy(referrer.ID)
	if err != nil {
		return nil, err
	}
	return &ReferrerSummary{Username: referrer.Username, SuccessfulReferrals: successful}, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

const statsDateFormat = "2006-01-02"

// statsWindow resolves the stats bounds. An explicit from date overrides the
// preset; to, when present, is inclusive of its whole day. A zero until means
// no upper bound.
func statsWindow(period, from, to string) (since, until time.Time) {
	if f, err := time.Parse(statsDateFormat, from); err == nil {
		since = f
		if t, err := time.Parse(statsDateFormat, to); err == nil {
			until = t.AddDate(0, 0, 1)
		}
		return since, until
	}
	switch period {
	case "7d":
		since = time.Now().AddDate(0, 0, -7)
	case "90d":
		since = time.Now().AddDate(0, 0, -90)
	case "all":
		// zero time: everything
	default: // "30d"
		since = time.Now().AddDate(0, 0, -30)
	}
	return since, until
}

func (s *ReferralService) settingFloat(key string, fallback float64) float64 {
	val, err := s.settingRepo.Get(key)
	if err != nil || val == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return f
}

func (s *ReferralService) settingString(key, fallback string) string {
	val, err := s.settingRepo.Get(key)
	if err != nil || val == "" {
		return fallback
	}
	return val
}
