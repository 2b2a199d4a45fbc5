package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/streamprice-crawler/internal/crawler"
)

// RunStore provides an in-memory implementation of crawler.RunStore.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]crawler.Run
}

// NewRunStore constructs a RunStore.
func NewRunStore() *RunStore {
	return &RunStore{runs: make(map[string]crawler.Run)}
}

// CreateRun stores a new run.
func (s *RunStore) CreateRun(_ context.Context, run crawler.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return errors.New("run already exists")
	}
	if run.Status == "" {
		run.Status = crawler.RunStatusQueued
	}
	run.Countries = append([]string(nil), run.Countries...)
	s.runs[run.ID] = run
	return nil
}

// UpdateRun applies a status transition and its results.
func (s *RunStore) UpdateRun(_ context.Context, id string, update crawler.RunUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, crawler.ErrRunNotFound)
	}
	at := update.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	run.Status = update.Status
	if update.Status == crawler.RunStatusRunning && run.Started == nil {
		run.Started = pointerTime(at)
	}
	if update.Status.Terminal() {
		run.Finished = pointerTime(at)
		run.Failed = append([]string(nil), update.Failed...)
		run.Plans = update.Plans
		run.LatestURI = update.LatestURI
		run.ArchiveURI = update.ArchiveURI
		run.Error = update.Error
	}
	s.runs[id] = run
	return nil
}

// GetRun fetches a run by ID.
func (s *RunStore) GetRun(_ context.Context, id string) (crawler.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return crawler.Run{}, fmt.Errorf("%s: %w", id, crawler.ErrRunNotFound)
	}
	run.Countries = append([]string(nil), run.Countries...)
	run.Failed = append([]string(nil), run.Failed...)
	return run, nil
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}
