// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package registry

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SweeperConfig holds the background maintenance settings.
type SweeperConfig struct {
	// Interval is how often the sweep runs. Default: 5 minutes.
	Interval time.Duration

	// StaleAfter is the idle threshold after which a session is reaped.
	// Default: 30 minutes.
	StaleAfter time.Duration

	// Ping enables the connectivity probe broadcast on each sweep.
	Ping bool
}

// DefaultSweeperConfig returns production defaults.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval:   5 * time.Minute,
		StaleAfter: 30 * time.Minute,
		Ping:       true,
	}
}

// Sweeper periodically reaps stale sessions and pings live ones. The
// registry itself never self-schedules; the sweeper is the external
// trigger, using the ticker + done channel pattern for clean shutdown.
type Sweeper struct {
	registry *Registry
	config   SweeperConfig
	done     chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewSweeper creates a sweeper for r. Call Start to begin sweeping.
func NewSweeper(r *Registry, config SweeperConfig) *Sweeper {
	if config.Interval <= 0 {
		config.Interval = DefaultSweeperConfig().Interval
	}
	if config.StaleAfter <= 0 {
		config.StaleAfter = DefaultSweeperConfig().StaleAfter
	}
	return &Sweeper{
		registry: r,
		config:   config,
	}
}

// Start launches the sweep loop. Starting a running sweeper is an error;
// a stopped sweeper can be started again.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("sweeper already running")
	}
	s.running = true
	// Fresh channel per run so a restart is not killed by an old close.
	s.done = make(chan struct{})

	go s.loop(s.done)
	slog.Info("Connection sweeper started",
		"interval", s.config.Interval, "stale_after", s.config.StaleAfter)
	return nil
}

// Stop signals the loop to exit. Safe to call on a stopped sweeper.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.done)
	slog.Info("Connection sweeper stopped")
}

func (s *Sweeper) loop(done <-chan struct{}) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			removed := s.registry.CleanupStale(s.config.StaleAfter)
			if removed > 0 {
				slog.Info("Stale sweep complete", "removed", removed)
			}
			if s.config.Ping {
				s.registry.Ping()
			}
		}
	}
}
