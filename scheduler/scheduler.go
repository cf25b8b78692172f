// Package scheduler provides automated directory refresh scheduling and
// health monitoring for the perfusion API. It coordinates hospital
// dataset reloads with the directory container using dependency injection.
package scheduler

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/perfusionpro/perfusion-api/directory"
	"github.com/perfusionpro/perfusion-api/interfaces"
	"github.com/perfusionpro/perfusion-api/logging"
	"github.com/perfusionpro/perfusion-api/metrics"
	"github.com/perfusionpro/perfusion-api/registry/entities"
)

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// Scheduler handles directory refreshes and health monitoring using dependency injection
type Scheduler struct {
	store     interfaces.DirectoryStore
	parser    interfaces.HospitalParser
	source    interfaces.HospitalSource
	scheduler *gocron.Scheduler
}

// NewScheduler creates a new scheduler instance with injected dependencies
func NewScheduler(store interfaces.DirectoryStore, parser interfaces.HospitalParser, source interfaces.HospitalSource) *Scheduler {
	return &Scheduler{
		store:     store,
		parser:    parser,
		source:    source,
		scheduler: gocron.NewScheduler(time.Local),
	}
}

// Start performs the initial directory load and schedules daily refreshes.
// The initial load never fails the startup: when the source is unreachable
// the built-in seed dataset is published instead and the error is retained
// for the status endpoint.
func (s *Scheduler) Start() error {
	s.refreshDirectory()

	// Refresh once a day at 05:00, before the morning shift
	_, err := s.scheduler.Every(1).Days().At("05:00").Do(func() {
		s.refreshDirectory()
	})

	if err != nil {
		logging.Error("Failed to schedule directory refresh", "error", err)
		return fmt.Errorf("failed to schedule directory refresh: %w", err)
	}

	s.scheduler.StartAsync()

	// Start health monitoring
	s.startHealthMonitoring()

	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// Refresh triggers one directory reload outside the daily schedule.
func (s *Scheduler) Refresh() {
	s.refreshDirectory()
}

// refreshDirectory loads the hospital dataset from the configured source
// and atomically swaps it into the directory container. A load failure
// falls back to the seed dataset when no directory has been published yet,
// so the app is never without hospitals to show.
func (s *Scheduler) refreshDirectory() {
	// Prevent concurrent refreshes
	if !s.store.BeginLoad() {
		logging.Info("Directory refresh already in progress, skipping...")
		return
	}
	defer s.store.EndLoad()

	logging.Info("Starting hospital directory refresh", "source", s.source.Name())
	start := time.Now()

	hospitals, err := s.loadFromSource()
	if err != nil {
		logging.Error("Failed to load hospital directory", "source", s.source.Name(), "error", err)
		metrics.DirectoryLoadsTotal.WithLabelValues("fallback").Inc()

		// Keep whatever directory is already published; seed only when
		// there is nothing at all to show. The error is recorded after
		// the publish because UpdateData resets the error state.
		if len(s.store.GetHospitals()) == 0 {
			seed := directory.SeedHospitals()
			s.store.UpdateData(seed)
			metrics.DirectoryHospitals.Set(float64(len(seed)))
			logging.Warn("Published seed hospital dataset", "count", len(seed))
		}
		s.store.SetLoadError(err.Error())
		return
	}

	s.store.UpdateData(hospitals)
	metrics.DirectoryLoadsTotal.WithLabelValues("ok").Inc()
	metrics.DirectoryHospitals.Set(float64(len(hospitals)))

	elapsed := time.Since(start)
	logging.Info("Hospital directory refresh completed",
		"duration", elapsed.String(),
		"hospital_count", len(hospitals),
	)
}

func (s *Scheduler) loadFromSource() ([]entities.Hospital, error) {
	r, err := s.source.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", s.source.Name(), err)
	}
	defer r.Close()

	hospitals, err := s.parser.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.source.Name(), err)
	}
	if len(hospitals) == 0 {
		return nil, fmt.Errorf("no hospitals found in %s", s.source.Name())
	}
	return hospitals, nil
}

// startHealthMonitoring monitors the freshness of the directory data
func (s *Scheduler) startHealthMonitoring() {
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		for range ticker.C {
			lastUpdate := s.store.GetLastUpdated()
			if time.Since(lastUpdate) > 25*time.Hour {
				logging.Warn("Hospital directory hasn't been refreshed in over 25 hours")
			}
		}
	}()
}
