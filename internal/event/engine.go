// Package event implements the Event Engine (spec §4.3): a
// single-threaded cooperative timer multiplexer driving Schedule and
// Suppression lifecycles. The teacher's internal/scheduler carries the
// same "fixed clock for tests, AfterFunc timers feeding a single
// dispatch loop" shape; this package keeps that shape and adds the
// three-timer-handle (start/trigger/fire) model and calendar bitset
// matching the daemon's Event variants require.
package event

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/lmap-agent/lmapd/internal/logger"
	"github.com/lmap-agent/lmapd/internal/model"
)

// Firing is delivered to the Runner for every Event that fires.
type Firing struct {
	Event       *model.Event
	At          time.Time
	CycleNumber *time.Time
}

// Engine arms and fires Events. Timer state is guarded by mu and is
// changed both by Arm and by the timer callbacks; firings are queued
// on a channel and handled one at a time by the goroutine running
// Dispatch.
type Engine struct {
	log         logger.Logger
	randCeiling uint32
	rng         *rand.Rand

	mu     sync.Mutex
	timers map[string]*time.Timer
	lastCalendarFire map[string]time.Time

	firings chan Firing
}

// New returns an Engine that reports firings on the channel returned
// by Firings(). randCeiling bounds the platform RAND_MAX analogue used
// for random_spread rejection sampling.
func New(log logger.Logger, randCeiling uint32) *Engine {
	return &Engine{
		log:              log,
		randCeiling:      randCeiling,
		rng:              rand.New(rand.NewSource(time.Now().UnixNano())),
		timers:           make(map[string]*time.Timer),
		lastCalendarFire: make(map[string]time.Time),
		firings:          make(chan Firing, 64),
	}
}

// Firings returns the channel the Runner's event loop should select on.
func (e *Engine) Firings() <-chan Firing { return e.firings }

// Arm installs the initial timer handle(s) for ev per §4.3's arming
// rules. referenced Events not reachable from any Schedule/Suppression
// start/end must be skipped by the caller before calling Arm.
func (e *Engine) Arm(ev *model.Event) {
	t := now()

	switch ev.Type {
	case model.EventPeriodic:
		e.armPeriodic(ev, t)
	case model.EventCalendar:
		e.armCalendarStart(ev)
	case model.EventOneOff:
		e.armOneOff(ev, t)
	case model.EventImmediate, model.EventStartup:
		e.armFireNow(ev)
	case model.EventControllerLost, model.EventControllerConnected:
		// Arm is a no-op for these; no timer is installed for them.
	}
}

func (e *Engine) armPeriodic(ev *model.Event, t time.Time) {
	if ev.EndEpoch != nil && t.After(*ev.EndEpoch) {
		return
	}
	var delay time.Duration
	interval := time.Duration(ev.Interval) * time.Second
	switch {
	case ev.StartEpoch != nil && t.After(*ev.StartEpoch):
		elapsed := t.Sub(*ev.StartEpoch)
		n := elapsed/interval + 1
		next := ev.StartEpoch.Add(n * interval)
		delay = next.Sub(t)
	case ev.StartEpoch != nil:
		delay = ev.StartEpoch.Sub(t)
	default:
		delay = 0
	}
	e.setTimer(ev.Name+":start", delay, func() {
		e.fireOnce(ev, nil)
		e.setPeriodicTrigger(ev, interval)
	})
}

func (e *Engine) setPeriodicTrigger(ev *model.Event, interval time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := ev.Name + ":trigger"
	if old, ok := e.timers[key]; ok {
		old.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(interval, func() {
		n := now()
		if ev.EndEpoch != nil && n.After(*ev.EndEpoch) {
			e.mu.Lock()
			delete(e.timers, key)
			e.mu.Unlock()
			return
		}
		e.fireOnce(ev, nil)
		e.mu.Lock()
		t.Reset(interval)
		e.mu.Unlock()
	})
	e.timers[key] = t
}

func (e *Engine) armCalendarStart(ev *model.Event) {
	e.setTimer(ev.Name+":start", 0, func() {
		e.scheduleCalendarTick(ev)
	})
}

// scheduleCalendarTick installs a one-second re-check timer that
// fires ev exactly once per matching second.
func (e *Engine) scheduleCalendarTick(ev *model.Event) {
	e.mu.Lock()
	key := ev.Name + ":trigger"
	if old, ok := e.timers[key]; ok {
		old.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(time.Second, func() {
		n := now()
		if ev.EndEpoch != nil && n.After(*ev.EndEpoch) {
			e.mu.Lock()
			delete(e.timers, key)
			e.mu.Unlock()
			return
		}
		if CalendarMatches(ev, n) {
			e.mu.Lock()
			last, fired := e.lastCalendarFire[ev.Name]
			alreadyFiredThisSecond := fired && last.Truncate(time.Second).Equal(n.Truncate(time.Second))
			if !alreadyFiredThisSecond {
				e.lastCalendarFire[ev.Name] = n
			}
			e.mu.Unlock()
			if !alreadyFiredThisSecond {
				e.fireOnce(ev, nil)
			}
		}
		e.mu.Lock()
		t.Reset(time.Second)
		e.mu.Unlock()
	})
	e.timers[key] = t
	e.mu.Unlock()
}

func (e *Engine) armOneOff(ev *model.Event, t time.Time) {
	if ev.Start == nil {
		return
	}
	if ev.Start.Before(t) {
		return
	}
	delay := ev.Start.Sub(t)
	delay += e.spreadDelay(ev)
	e.setTimer(ev.Name+":fire", delay, func() {
		e.fireOnce(ev, nil)
	})
}

func (e *Engine) armFireNow(ev *model.Event) {
	delay := e.spreadDelay(ev)
	e.setTimer(ev.Name+":fire", delay, func() {
		e.fireOnce(ev, nil)
	})
}

func (e *Engine) spreadDelay(ev *model.Event) time.Duration {
	if ev.RandomSpread == 0 {
		return 0
	}
	e.mu.Lock()
	offset := randomSpread(e.rng, ev.RandomSpread, e.randCeiling)
	e.mu.Unlock()
	return time.Duration(offset) * time.Second
}

func (e *Engine) setTimer(key string, delay time.Duration, fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if old, ok := e.timers[key]; ok {
		old.Stop()
	}
	if delay <= 0 {
		// clamp to a 1ns timer so fn still runs on its own AfterFunc
		// goroutine, matching every other arming path.
		delay = time.Nanosecond
	}
	e.timers[key] = time.AfterFunc(delay, fn)
}

// fireOnce computes a cycle number (if configured) and enqueues a Firing.
func (e *Engine) fireOnce(ev *model.Event, cycleNumber *time.Time) {
	t := now()
	if cycleNumber == nil && ev.CycleInterval > 0 {
		interval := int64(ev.CycleInterval)
		bucket := (t.Unix() / interval) * interval
		ct := time.Unix(bucket, 0).UTC()
		cycleNumber = &ct
	}
	select {
	case e.firings <- Firing{Event: ev, At: t, CycleNumber: cycleNumber}:
	default:
		e.log.Warn("event: firing channel full, dropping firing", "event", ev.Name)
	}
}

// StopAll cancels every live timer, used on shutdown/reload.
func (e *Engine) StopAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for k, t := range e.timers {
		t.Stop()
		delete(e.timers, k)
	}
}

// Dispatch runs the single-consumer loop delivering Firings to handle
// until ctx is cancelled. This is the "cooperative event loop" from
// §4.5: handle runs to completion before the next Firing is read.
func (e *Engine) Dispatch(ctx context.Context, handle func(Firing)) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-e.firings:
			handle(f)
		}
	}
}
