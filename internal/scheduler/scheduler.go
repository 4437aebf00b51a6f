package scheduler

import (
	"errors"
	"log"
	"sync"
	"time"

	"referly/config"
	"referly/internal/service"

	"github.com/go-co-op/gocron/v2"
)

var ErrUnknownJob = errors.New("unknown scheduler job")

// Job is a named batch task with a cron cadence. Disabled jobs stay
// registered (visible in status, runnable by hand) but are never scheduled.
type Job struct {
	Name        string
	Description string
	Cadence     string
	Enabled     bool
	run         func() error
}

// Scheduler drives the referral batch jobs: the daily completion sweep and
// the weekly expiration sweep. Every job is individually disable-able and
// manually triggerable.
type Scheduler struct {
	cfg  *config.SchedulerConfig
	env  string
	cron gocron.Scheduler

	mu      sync.Mutex
	jobs    []*Job
	lastRun map[string]time.Time
}

func New(cfg *config.SchedulerConfig, env string, activitySvc *service.ActivityService, rewardSvc *service.RewardService) *Scheduler {
	s := &Scheduler{
		cfg:     cfg,
		env:     env,
		lastRun: make(map[string]time.Time),
	}
	s.jobs = []*Job{
		{
			Name:        "referral-completion",
			Description: "promote referrals that reached the active-day threshold",
			Cadence:     cfg.CompletionCadence,
			Enabled:     cfg.CompletionEnabled,
			run: func() error {
				_, _, err := activitySvc.CompleteReferrals()
				return err
			},
		},
		{
			Name:        "reward-expiration",
			Description: "expire stale rewards past their age limit",
			Cadence:     cfg.ExpirationCadence,
			Enabled:     cfg.ExpirationEnabled,
			run: func() error {
				_, err := rewardSvc.ExpireStale()
				return err
			},
		},
	}
	return s
}

// Start registers enabled jobs with gocron and begins scheduling. A fully
// disabled scheduler still answers status queries and manual triggers.
func (s *Scheduler) Start() error {
	if !s.cfg.Enabled {
		log.Printf("[scheduler] disabled (env %s)", s.env)
		return nil
	}
	cron, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	s.cron = cron

	for _, job := range s.jobs {
		if !job.Enabled {
			log.Printf("[scheduler] job %s disabled", job.Name)
			continue
		}
		job := job
		_, err := cron.NewJob(
			gocron.CronJob(job.Cadence, false),
			gocron.NewTask(func() { s.execute(job) }),
			gocron.WithName(job.Name),
		)
		if err != nil {
			return err
		}
		log.Printf("[scheduler] job %s registered (%s)", job.Name, job.Cadence)
	}

	cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		_ = s.cron.Shutdown()
	}
}

// RunJob triggers a job by name immediately, regardless of its enabled flag.
// Operational re-runs are safe: every job body is idempotent.
func (s *Scheduler) RunJob(name string) error {
	for _, job := range s.jobs {
		if job.Name == name {
			return s.execute(job)
		}
	}
	return ErrUnknownJob
}

func (s *Scheduler) execute(job *Job) error {
	start := time.Now()
	err := job.run()
	s.mu.Lock()
	s.lastRun[job.Name] = start
	s.mu.Unlock()
	if err != nil {
		log.Printf("[scheduler] job %s failed after %s: %v", job.Name, time.Since(start), err)
		return err
	}
	log.Printf("[scheduler] job %s finished in %s", job.Name, time.Since(start))
	return nil
}

type JobStatus struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Cadence     string     `json:"cadence"`
	Enabled     bool       `json:"enabled"`
	LastRun     *time.Time `json:"last_run,omitempty"`
}

type Status struct {
	Enabled     bool        `json:"enabled"`
	Environment string      `json:"environment"`
	Jobs        []JobStatus `json:"jobs"`
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{Enabled: s.cfg.Enabled, Environment: s.env}
	for _, job := range s.jobs {
		js := JobStatus{
			Name:        job.Name,
			Description: job.Description,
			Cadence:     job.Cadence,
			Enabled:     s.cfg.Enabled && job.Enabled,
		}
		if t, ok := s.lastRun[job.Name]; ok {
			last := t
			js.LastRun = &last
		}
		st.Jobs = append(st.Jobs, js)
	}
	return st
}
