// Package scheduler implements C1, the Clock/Scheduler: a minute-boundary
// tick loop and a once-daily metadata-refresh tick, modeled on the
// background-service start/stop convention cmd/tr-engine/main.go uses for
// its storage and uploader services.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// MinuteFunc handles one minute tick. minuteStart/minuteEnd bound the
// 60-second window the tick covers.
type MinuteFunc func(ctx context.Context, minuteStart, minuteEnd time.Time)

// DailyFunc handles the once-per-day metadata-refresh tick.
type DailyFunc func(ctx context.Context, day time.Time)

// Scheduler drives two independent loops off the wall clock: a minute
// tick with up to 1s of jitter, and a daily tick fired at UTC 00:00.
// Overlapping minute ticks are never queued — if the previous minute's
// work has not returned by the next boundary, that tick is skipped and
// counted, preserving minute-idempotence (§4.1).
type Scheduler struct {
	onMinute MinuteFunc
	onDaily  DailyFunc
	log      zerolog.Logger

	running atomic.Bool
	ticks   atomic.Int64
	skips   atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	lastTick atomic.Value // time.Time
}

// New returns a Scheduler. onMinute and onDaily must not be nil.
func New(onMinute MinuteFunc, onDaily DailyFunc, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		onMinute: onMinute,
		onDaily:  onDaily,
		log:      log.With().Str("component", "scheduler").Logger(),
		stop:     make(chan struct{}),
	}
}

// Start launches both loops in the background.
func (s *Scheduler) Start() {
	s.wg.Add(2)
	go s.minuteLoop()
	go s.dailyLoop()
}

// Stop signals both loops to exit and waits for them to return.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
}

// Ticks returns the number of minute ticks dispatched so far.
func (s *Scheduler) Ticks() int64 { return s.ticks.Load() }

// Skips returns the number of minute ticks skipped because the previous
// tick's work was still running.
func (s *Scheduler) Skips() int64 { return s.skips.Load() }

// LastTick returns the wall-clock time the most recent minute tick was
// dispatched at, or the zero time if none has fired yet.
func (s *Scheduler) LastTick() time.Time {
	if v, ok := s.lastTick.Load().(time.Time); ok {
		return v
	}
	return time.Time{}
}

func (s *Scheduler) minuteLoop() {
	defer s.wg.Done()

	for {
		next := nextMinuteBoundary(time.Now().UTC())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-timer.C:
			s.fireMinuteTick(next)
		case <-s.stop:
			timer.Stop()
			return
		}
	}
}

func (s *Scheduler) fireMinuteTick(firedAt time.Time) {
	if !s.running.CompareAndSwap(false, true) {
		s.skips.Add(1)
		s.log.Warn().Time("boundary", firedAt).Int64("total_skips", s.skips.Load()).
			Msg("minute tick skipped: previous tick still running")
		return
	}
	defer s.running.Store(false)

	s.ticks.Add(1)
	s.lastTick.Store(firedAt)

	// firedAt carries up to 999ms of jitter (nextMinuteBoundary fires the
	// timer up to 999ms late on purpose); truncating gets back the clean minute
	// boundary this tick covers. onMinute's minuteEnd becomes the log
	// store's minute label, which must land exactly on the boundary or
	// every tick writes a duplicate minute (§8.1).
	minuteEnd := firedAt.Truncate(time.Minute)
	minuteStart := minuteEnd.Add(-time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Second)
	defer cancel()
	s.onMinute(ctx, minuteStart, minuteEnd)
}

func (s *Scheduler) dailyLoop() {
	defer s.wg.Done()

	for {
		next := nextMidnight(time.Now().UTC())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-timer.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			s.onDaily(ctx, next)
			cancel()
		case <-s.stop:
			timer.Stop()
			return
		}
	}
}

// nextMinuteBoundary returns the next UTC minute boundary strictly after
// now, jittered by up to 1 second so many deployments don't all wake at
// exactly :00.000.
func nextMinuteBoundary(now time.Time) time.Time {
	boundary := now.Truncate(time.Minute).Add(time.Minute)
	jitter := time.Duration(pseudoJitterMillis(now)) * time.Millisecond
	return boundary.Add(jitter)
}

// pseudoJitterMillis derives a deterministic 0-999ms offset from the
// current time so restarts don't all jitter identically, without
// reaching for math/rand.
func pseudoJitterMillis(now time.Time) int64 {
	return now.UnixNano() % 1000
}

func nextMidnight(now time.Time) time.Time {
	year, month, day := now.Date()
	midnight := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if !midnight.After(now) {
		midnight = midnight.AddDate(0, 0, 1)
	}
	return midnight
}
