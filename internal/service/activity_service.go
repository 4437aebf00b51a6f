package service

import (
	"log"
	"strconv"
	"time"

	"referly/config"
	"referly/internal/domain"
	"referly/internal/repository"
)

// ActivityService tracks daily activity for referred users and runs the
// completion gate that turns a referral into an earned reward.
type ActivityService struct {
	userRepo    *repository.UserRepository
	rewardRepo  *repository.RewardRepository
	settingRepo *repository.SettingRepository
	notifSvc    *NotificationService
	cfg         *config.ReferralConfig
}

func NewActivityService(
	userRepo *repository.UserRepository,
	rewardRepo *repository.RewardRepository,
	settingRepo *repository.SettingRepository,
	notifSvc *NotificationService,
	cfg *config.ReferralConfig,
) *ActivityService {
	return &ActivityService{
		userRepo:    userRepo,
		rewardRepo:  rewardRepo,
		settingRepo: settingRepo,
		notifSvc:    notifSvc,
		cfg:         cfg,
	}
}

// RecordActivity notes that the user was seen active at observedAt. The
// active-day counter moves at most once per UTC calendar day no matter how
// many pings arrive; the conditional update in the repository carries the
// idempotence, so this is safe to call concurrently.
func (s *ActivityService) RecordActivity(userID uint, observedAt time.Time) error {
	if err := s.userRepo.TouchLastActive(userID, observedAt); err != nil {
		return err
	}
	day := observedAt.UTC().Format(domain.ActiveDayFormat)
	_, err := s.userRepo.MarkActiveDay(userID, day)
	return err
}

// CompleteReferrals is the daily completion sweep: every referred user who
// reached the active-day threshold gets referral_completed_at stamped and
// their referrer's PENDING reward flipped to AVAILABLE. One bad record never
// aborts the run; failures are logged and counted. Re-running is harmless -
// both writes are preconditioned and simply no-op the second time.
func (s *ActivityService) CompleteReferrals() (completed, failed int, err error) {
	threshold := s.completionThreshold()
	candidates, err := s.userRepo.CompletionCandidates(threshold)
	if err != nil {
		return 0, 0, err
	}

	now := time.Now()
	for _, u := range candidates {
		rows, err := s.userRepo.MarkReferralCompleted(u.ID, now)
		if err != nil {
			log.Printf("[completion] user %d: mark completed: %v", u.ID, err)
			failed++
			continue
		}
		if rows == 0 {
			// Another run got here first.
			continue
		}

		referrerID := *u.ReferredByUserID
		rows, err = s.rewardRepo.MarkAvailable(referrerID, u.ID)
		if err != nil {
			log.Printf("[completion] user %d: promote reward: %v", u.ID, err)
			failed++
			continue
		}
		if rows == 0 {
			log.Printf("[completion] user %d: no PENDING reward for referrer %d", u.ID, referrerID)
		} else if s.notifSvc != nil {
			if reward, err := s.rewardRepo.GetByReferredUser(u.ID); err == nil {
				s.notifSvc.NotifyRewardEarned(referrerID, u.Username, reward)
			}
		}
		completed++
	}

	if completed > 0 || failed > 0 {
		log.Printf("[completion] sweep done: %d completed, %d failed (threshold %d)", completed, failed, threshold)
	}
	return completed, failed, nil
}

func (s *ActivityService) completionThreshold() int {
	if s.settingRepo != nil {
		if val, err := s.settingRepo.Get(domain.SettingCompletionThreshold); err == nil && val != "" {
			if n, err := strconv.Atoi(val); err == nil && n > 0 {
				return n
			}
		}
	}
	return s.cfg.CompletionThreshold
}
