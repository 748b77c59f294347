package watcher

import (
	"context"
	"time"

	"github.com/klarvik/schemascope/pkg/logging"
)

// Debouncer batches rapid file system events to avoid excessive cache
// rebuilds: one rebuild per quiet period, with a hard cap on how long a
// noisy burst can defer the flush.
type Debouncer struct {
	input       <-chan ChangeEvent
	output      chan ChangeEvent
	quietPeriod time.Duration
	maxWait     time.Duration
}

// NewDebouncer creates a new event debouncer
func NewDebouncer(input <-chan ChangeEvent, quietPeriod, maxWait time.Duration) *Debouncer {
	return &Debouncer{
		input:       input,
		output:      make(chan ChangeEvent, 10),
		quietPeriod: quietPeriod,
		maxWait:     maxWait,
	}
}

// Events returns the debounced event channel.
func (d *Debouncer) Events() <-chan ChangeEvent {
	return d.output
}

// Start begins processing events with debouncing
func (d *Debouncer) Start(ctx context.Context) {
	go d.run(ctx)
}

func (d *Debouncer) run(ctx context.Context) {
	var (
		quietTimer *time.Timer
		maxTimer   *time.Timer
		quietC     <-chan time.Time
		maxC       <-chan time.Time
		pending    []string
	)

	stopTimers := func() {
		if quietTimer != nil {
			quietTimer.Stop()
			quietTimer, quietC = nil, nil
		}
		if maxTimer != nil {
			maxTimer.Stop()
			maxTimer, maxC = nil, nil
		}
	}

	flush := func() {
		if len(pending) == 0 {
			return
		}
		logging.Debug("flushing accumulated changes", "count", len(pending))
		d.output <- ChangeEvent{Paths: pending, Timestamp: time.Now()}
		pending = nil
		stopTimers()
	}

	for {
		select {
		case <-ctx.Done():
			stopTimers()
			return

		case event, ok := <-d.input:
			if !ok {
				flush()
				close(d.output)
				return
			}
			pending = append(pending, event.Paths...)

			if quietTimer == nil {
				quietTimer = time.NewTimer(d.quietPeriod)
			} else {
				quietTimer.Stop()
				quietTimer.Reset(d.quietPeriod)
			}
			quietC = quietTimer.C

			if maxTimer == nil {
				maxTimer = time.NewTimer(d.maxWait)
				maxC = maxTimer.C
			}

		case <-quietC:
			flush()

		case <-maxC:
			flush()
		}
	}
}
