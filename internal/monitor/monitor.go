// Package monitor periodically reports co-simulation progress.
package monitor

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Snapshot is the progress sample collected from the driver.
type Snapshot struct {
	Step        int
	SimTime     float64
	TerrainWall time.Duration
	TireWall    time.Duration
}

// Service logs a progress line at a fixed interval.
type Service struct {
	log      zerolog.Logger
	interval time.Duration
	sample   func() Snapshot

	mu        sync.Mutex
	isRunning bool
	stopChan  chan struct{}
}

// NewService creates a monitor that calls sample every interval.
func NewService(log zerolog.Logger, interval time.Duration, sample func() Snapshot) *Service {
	return &Service{
		log:      log,
		interval: interval,
		sample:   sample,
		stopChan: make(chan struct{}),
	}
}

// Start launches the reporting goroutine. Starting twice is a no-op.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return
	}
	s.isRunning = true

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		start := time.Now()
		lastStep := 0
		for {
			select {
			case <-ticker.C:
				snap := s.sample()
				rate := float64(snap.Step-lastStep) / s.interval.Seconds()
				lastStep = snap.Step
				s.log.Info().
					Int("step", snap.Step).
					Float64("simTime", snap.SimTime).
					Float64("stepsPerSec", rate).
					Dur("terrainWall", snap.TerrainWall).
					Dur("tireWall", snap.TireWall).
					Dur("elapsed", time.Since(start).Round(time.Second)).
					Msg("progress")
			case <-s.stopChan:
				return
			}
		}
	}()
}

// Stop terminates the reporting goroutine.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return
	}
	s.isRunning = false
	close(s.stopChan)
}

// IsRunning reports whether the monitor is active.
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}
