package presence

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/optiflow/jarvis/internal/observability"
)

// Watchdog polls the presence service for one session and signals termination
// after a sustained inactivity window. It owns the inactivity clock
// exclusively; the event loop never reads or writes it. The only outward
// communication is the Timeout channel, closed at most once.
type Watchdog struct {
	checker         Checker
	userID          string
	pollInterval    time.Duration
	inactivityLimit time.Duration
	metrics         *observability.Metrics
	logger          zerolog.Logger

	now        func() time.Time
	lastActive time.Time

	signalOnce sync.Once
	timedOut   chan struct{}
}

func NewWatchdog(
	checker Checker,
	userID string,
	pollInterval time.Duration,
	inactivityLimit time.Duration,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Watchdog {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	if inactivityLimit <= 0 {
		inactivityLimit = 10 * time.Minute
	}
	return &Watchdog{
		checker:         checker,
		userID:          userID,
		pollInterval:    pollInterval,
		inactivityLimit: inactivityLimit,
		metrics:         metrics,
		logger:          logger,
		now:             time.Now,
		timedOut:        make(chan struct{}),
	}
}

// Timeout is closed exactly once when the inactivity limit is exceeded.
func (w *Watchdog) Timeout() <-chan struct{} { return w.timedOut }

// Run polls until the context is cancelled or the inactivity limit fires.
// Poll failures carry no information: they neither reset nor advance the
// inactivity clock.
func (w *Watchdog) Run(ctx context.Context) {
	w.lastActive = w.now()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if w.poll(ctx) {
				return
			}
		}
	}
}

// poll runs one presence check; it reports true when the watchdog signaled
// termination and the loop should stop.
func (w *Watchdog) poll(ctx context.Context) bool {
	start := w.now()
	inactive, err := w.checker.CheckPresence(ctx, w.userID)
	if w.metrics != nil {
		w.metrics.ObserveStage("presence_poll", float64(time.Since(start).Milliseconds()))
	}
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		w.logger.Error().Err(err).Str("user_id", w.userID).Msg("presence poll failed")
		w.countPoll("error")
		return false
	}

	if !inactive {
		w.lastActive = w.now()
		w.countPoll("active")
		return false
	}

	w.countPoll("inactive")
	if w.now().Sub(w.lastActive) > w.inactivityLimit {
		w.logger.Info().
			Str("user_id", w.userID).
			Dur("inactive_for", w.now().Sub(w.lastActive)).
			Msg("inactivity limit exceeded, signaling termination")
		w.signal()
		return true
	}
	return false
}

// signal is idempotent: further polls after signaling are no-ops.
func (w *Watchdog) signal() {
	w.signalOnce.Do(func() {
		w.countPoll("timeout")
		close(w.timedOut)
	})
}

func (w *Watchdog) countPoll(outcome string) {
	if w.metrics != nil {
		w.metrics.WatchdogPolls.WithLabelValues(outcome).Inc()
	}
}
