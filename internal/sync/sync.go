// Package sync exports specifications and their stored values as JSONL and
// pushes the export to S3 or git on a schedule.
package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/specs/internal/store"
)

// Destination receives complete exports.
type Destination interface {
	Write(ctx context.Context, data []byte) error
	// String names the destination in logs and errors.
	String() string
}

// Scheduler exports the store to every destination once at start and then
// every interval until stopped.
type Scheduler struct {
	store        store.Store
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(s store.Store, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:        s,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
	}
}

// Start runs the schedule in the background until ctx is done or Stop is
// called.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			if err := s.Run(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("sync failed", "error", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop ends the schedule and waits for an in-flight sync to return. It is
// a no-op on a scheduler that was never started.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

// Run exports once and writes the export to every destination. A failing
// destination does not stop the others; their errors are joined.
func (s *Scheduler) Run(ctx context.Context) error {
	var buf bytes.Buffer
	if err := ExportJSONL(ctx, s.store, &buf); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	var errs []error
	for _, dest := range s.destinations {
		start := time.Now()
		if err := dest.Write(ctx, buf.Bytes()); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", dest, err))
			continue
		}
		s.logger.Debug("synced", "destination", dest.String(), "bytes", buf.Len(), "duration", time.Since(start))
	}
	return errors.Join(errs...)
}
