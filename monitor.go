// Copyright 2025-2026 The ai-token-exo-bridge Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package exobridge

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math/rand"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zebadiee/ai-token-exo-bridge/eventlog"
	"github.com/zebadiee/ai-token-exo-bridge/health"
	"github.com/zebadiee/ai-token-exo-bridge/internal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Monitor periodically probes a set of registered targets, keeps a
// health.TargetState per target and records everything that happens in an
// event log. All methods are safe for concurrent use.
//
// A Monitor does nothing in the background until Start is called, and its
// goroutine is gone once Stop returns. ForceCheck, Snapshot and the other
// read methods work whether or not the monitor is running.
type Monitor struct {
	prober       health.Prober
	log          *eventlog.Log
	logger       *zap.Logger
	metrics      *monitorMetrics
	clock        internal.Clock
	autoRecovery bool
	recovery     RecoveryHandler
	concurrency  int
	jitter       time.Duration

	// flight makes sure a target is never probed twice at the same time,
	// whether the probe comes from the loop or from ForceCheck.
	flight singleflight.Group
	// wake is signaled when a target is registered so that the loop can
	// schedule it without waiting for the current sleep to end.
	wake    chan struct{}
	running atomic.Bool

	lifecycleMu sync.Mutex
	// +checklocks:lifecycleMu
	cancel context.CancelFunc
	// +checklocks:lifecycleMu
	doneSignal chan struct{}

	// mu guards the registered targets. When both are needed, mu is
	// acquired before the event log's own lock.
	mu sync.RWMutex
	// +checklocks:mu
	entries map[string]*entry
	// +checklocks:mu
	rnd *rand.Rand
}

type entry struct {
	state *health.TargetState
	// due is when the background loop probes the target next.
	due time.Time
}

// NewMonitor creates a monitor that probes targets with the given prober.
// It panics if prober is nil.
func NewMonitor(prober health.Prober, options ...MonitorOption) *Monitor {
	if prober == nil {
		panic("exobridge: NewMonitor called with nil prober")
	}
	opts := monitorOptions{autoRecovery: true}
	for _, opt := range options {
		opt.applyToMonitor(&opts)
	}
	opts.applyDefaults()
	return &Monitor{
		prober:       prober,
		log:          opts.log,
		logger:       opts.logger,
		metrics:      newMonitorMetrics(opts.registerer),
		clock:        opts.clock,
		autoRecovery: opts.autoRecovery,
		recovery:     opts.recovery,
		concurrency:  opts.concurrency,
		jitter:       opts.jitter,
		wake:         make(chan struct{}, 1),
		entries:      map[string]*entry{},
		rnd:          internal.NewRand(),
	}
}

// Events returns the log the monitor records into.
func (m *Monitor) Events() *eventlog.Log {
	return m.log
}

// Register adds a target. The target is validated as given; use
// health.Target.WithDefaults to fill in unset fields first. It returns a
// *DuplicateTargetError if a target with the same name exists.
func (m *Monitor) Register(target health.Target) error {
	if err := target.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[target.Name]; ok {
		return &DuplicateTargetError{Name: target.Name}
	}
	now := m.clock.Now()
	m.entries[target.Name] = &entry{
		state: health.NewTargetState(target),
		due:   now.Add(internal.Jitter(m.rnd, m.jitter)),
	}
	m.log.Append(eventlog.Event{
		Time:   now,
		Kind:   eventlog.KindTargetAdded,
		Target: target.Name,
		Detail: map[string]any{"endpoint": target.Endpoint, "local": target.Local},
	})
	m.metrics.setStatus(target.Name, health.StatusHealthy)
	m.logger.Info("target registered", zap.String("target", target.Name), zap.String("endpoint", target.Endpoint))
	select {
	case m.wake <- struct{}{}:
	default:
	}
	return nil
}

// OnDiscover registers every discovered target that is not registered yet.
// Targets that fail validation are logged and skipped.
func (m *Monitor) OnDiscover(targets []health.Target) {
	for _, target := range targets {
		err := m.Register(target)
		var duplicate *DuplicateTargetError
		switch {
		case err == nil, errors.As(err, &duplicate):
		default:
			m.logger.Warn("ignoring discovered target", zap.String("target", target.Name), zap.Error(err))
		}
	}
}

// Remove unregisters a target and drops its state. Removing a target that
// is not registered does nothing.
func (m *Monitor) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[name]; !ok {
		return
	}
	delete(m.entries, name)
	m.log.Append(eventlog.Event{Time: m.clock.Now(), Kind: eventlog.KindTargetRemoved, Target: name})
	m.metrics.forget(name)
	m.logger.Info("target removed", zap.String("target", name))
}

// Snapshot returns a copy of the state of the named target.
func (m *Monitor) Snapshot(name string) (health.TargetState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[name]
	if !ok {
		return health.TargetState{}, false
	}
	return entry.state.Snapshot(), true
}

// SnapshotAll returns a copy of the state of every registered target, keyed
// by name.
func (m *Monitor) SnapshotAll() map[string]health.TargetState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snapshots := make(map[string]health.TargetState, len(m.entries))
	for name, entry := range m.entries {
		snapshots[name] = entry.state.Snapshot()
	}
	return snapshots
}

// EventsSince returns the events recorded after t, oldest first.
func (m *Monitor) EventsSince(t time.Time) []eventlog.Event {
	return m.log.Since(t)
}

// Summary is an overview of a monitor.
type Summary struct {
	Running      bool                  `json:"running"`
	AutoRecovery bool                  `json:"auto_recovery"`
	Targets      int                   `json:"targets"`
	Counts       map[health.Status]int `json:"counts"`
	// Routable is the number of targets a router would call.
	Routable int `json:"routable"`
	Events   int `json:"events"`
}

// Status summarizes the monitor: whether it runs and how many targets are
// in each status.
func (m *Monitor) Status() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	summary := Summary{
		Running:      m.running.Load(),
		AutoRecovery: m.autoRecovery,
		Targets:      len(m.entries),
		Counts:       make(map[health.Status]int, len(health.AllStatuses())),
		Events:       m.log.Len(),
	}
	for _, status := range health.AllStatuses() {
		summary.Counts[status] = 0
	}
	for _, entry := range m.entries {
		summary.Counts[entry.state.Status]++
		if entry.state.Status.Routable() {
			summary.Routable++
		}
	}
	return summary
}

// Start launches the background probe loop. Calling Start on a running
// monitor logs a warning and does nothing else.
func (m *Monitor) Start() {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()
	if m.cancel != nil {
		m.logger.Warn("monitor already started")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.doneSignal = make(chan struct{})
	m.running.Store(true)
	m.log.Append(eventlog.Event{Time: m.clock.Now(), Kind: eventlog.KindManagerStarted})
	m.logger.Info("monitor started")
	go m.run(ctx, m.doneSignal)
}

// Stop stops the background loop and waits for it to exit. Probes already
// in flight are allowed to complete. Stop does nothing if the monitor is
// not running; a stopped monitor may be started again.
func (m *Monitor) Stop() {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.doneSignal
	m.cancel = nil
	m.doneSignal = nil
	m.running.Store(false)
	m.log.Append(eventlog.Event{Time: m.clock.Now(), Kind: eventlog.KindManagerStopped})
	m.logger.Info("monitor stopped")
}

// ForceCheck probes the named targets right away, or every target if no
// name is given, and returns their updated states. It blocks until all the
// probes complete. A *UnknownTargetError is returned if a named target is
// not registered.
func (m *Monitor) ForceCheck(ctx context.Context, names ...string) (map[string]health.TargetState, error) {
	all := len(names) == 0
	m.mu.RLock()
	if all {
		names = slices.Sorted(maps.Keys(m.entries))
	} else {
		for _, name := range names {
			if _, ok := m.entries[name]; !ok {
				m.mu.RUnlock()
				return nil, &UnknownTargetError{Name: name}
			}
		}
	}
	m.mu.RUnlock()

	var (
		resultsMu sync.Mutex
		results   = make(map[string]health.TargetState, len(names))
		group     errgroup.Group
	)
	group.SetLimit(m.concurrency)
	for _, name := range names {
		group.Go(func() error {
			state, err := m.check(ctx, name)
			if err != nil {
				var unknown *UnknownTargetError
				if all && errors.As(err, &unknown) {
					// Removed while the check was pending.
					return nil
				}
				return err
			}
			resultsMu.Lock()
			defer resultsMu.Unlock()
			results[name] = state
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func (m *Monitor) run(ctx context.Context, doneSignal chan<- struct{}) {
	defer close(doneSignal)

	timer := m.clock.NewTimer(0)
	internal.StopTimer(timer)

	for ctx.Err() == nil {
		due, next, scheduled := m.dueTargets(m.clock.Now())
		if len(due) > 0 {
			m.probeAll(ctx, due)
			continue
		}
		if scheduled {
			timer.Reset(next)
		}
		select {
		case <-ctx.Done():
			internal.StopTimer(timer)
			return
		case <-m.wake:
			internal.StopTimer(timer)
		case <-timer.Chan():
		}
	}
}

// dueTargets returns the names of the targets whose probe is due, and
// schedules their next probe. Otherwise it reports how long to wait until
// the next target is due, if any.
func (m *Monitor) dueTargets(now time.Time) (due []string, wait time.Duration, scheduled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var next time.Time
	for name, entry := range m.entries {
		if !entry.due.After(now) {
			due = append(due, name)
			entry.due = now.Add(entry.state.Target.CheckInterval)
		}
		if next.IsZero() || entry.due.Before(next) {
			next = entry.due
		}
	}
	slices.Sort(due)
	if next.IsZero() {
		return due, 0, false
	}
	return due, next.Sub(now), true
}

func (m *Monitor) probeAll(ctx context.Context, names []string) {
	var group errgroup.Group
	group.SetLimit(m.concurrency)
	for _, name := range names {
		group.Go(func() error {
			// A probe that has started finishes even if the loop is
			// stopped; its timeout bounds how long Stop waits.
			if _, err := m.check(context.WithoutCancel(ctx), name); err != nil {
				m.logger.Debug("skipping check", zap.String("target", name), zap.Error(err))
			}
			return nil
		})
	}
	_ = group.Wait()
}

type checkResult struct {
	state      health.TargetState
	transition health.Transition
}

// check probes one target and applies the result. Concurrent checks of the
// same target share a single probe.
func (m *Monitor) check(ctx context.Context, name string) (health.TargetState, error) {
	value, err, _ := m.flight.Do(name, func() (any, error) {
		m.mu.RLock()
		current, ok := m.entries[name]
		var target health.Target
		if ok {
			target = current.state.Target
		}
		m.mu.RUnlock()
		if !ok {
			return nil, &UnknownTargetError{Name: name}
		}

		result := m.probe(ctx, target)
		checked, err := m.apply(current, result)
		if err != nil {
			return nil, err
		}
		if m.autoRecovery && checked.transition.Entered(health.StatusRecovering) {
			m.attemptRecovery(ctx, target)
		}
		return checked, nil
	})
	if err != nil {
		return health.TargetState{}, err
	}
	return value.(checkResult).state, nil //nolint:forcetypeassert // only checkResult is stored
}

// probe runs the prober, turning a panic into a failed result.
func (m *Monitor) probe(ctx context.Context, target health.Target) (result health.ProbeResult) {
	start := m.clock.Now()
	defer func() {
		if recovered := recover(); recovered != nil {
			m.logger.Error("prober panicked", zap.String("target", target.Name), zap.Any("panic", recovered))
			result = health.ProbeResult{
				Err:    fmt.Sprintf("probe panicked: %v", recovered),
				Reason: health.ReasonUnknown,
			}
		}
		result.Target = target.Name
		result.Time = start
		if !result.Success && result.Err == "" {
			result.Err = "probe failed"
		}
	}()
	return m.prober.Probe(ctx, target)
}

// apply folds a probe result into the state of the entry it was taken for
// and records the resulting events.
func (m *Monitor) apply(current *entry, result health.ProbeResult) (checkResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name := result.Target
	if m.entries[name] != current {
		// Removed, and possibly registered again, while probing.
		return checkResult{}, &UnknownTargetError{Name: name}
	}
	state := current.state
	previousFailures := state.ConsecutiveFailures
	transition := state.Apply(result)
	now := m.clock.Now()
	logger := m.logger.With(zap.String("target", name))
	m.metrics.observeProbe(result)

	if result.Success {
		if previousFailures > 0 {
			m.log.Append(eventlog.Event{
				Time:   now,
				Kind:   eventlog.KindProbeSuccess,
				Target: name,
				Detail: map[string]any{
					"latency_ms":            result.Latency.Milliseconds(),
					"consecutive_successes": state.ConsecutiveSuccesses,
				},
			})
		}
	} else {
		detail := map[string]any{
			"error":                result.Err,
			"consecutive_failures": state.ConsecutiveFailures,
		}
		if result.Reason != health.ReasonNone {
			detail["reason"] = string(result.Reason)
		}
		if result.StatusCode != 0 {
			detail["status_code"] = result.StatusCode
		}
		m.log.Append(eventlog.Event{Time: now, Kind: eventlog.KindProbeFailure, Target: name, Detail: detail})
		logger.Debug("probe failed", zap.String("error", result.Err), zap.Int("consecutive_failures", state.ConsecutiveFailures))
	}

	from := transition.From
	for _, to := range transition.Path {
		m.log.Append(eventlog.Event{
			Time:   now,
			Kind:   eventlog.KindStatusChanged,
			Target: name,
			Detail: map[string]any{"from": from.String(), "to": to.String()},
		})
		logger.Info("status changed", zap.Stringer("from", from), zap.Stringer("to", to))
		from = to
	}
	if transition.Changed() {
		m.metrics.transitioned(name, transition.Path)
		m.metrics.setStatus(name, transition.To)
	}

	if transition.Entered(health.StatusOffline) {
		m.log.Append(eventlog.Event{
			Time:   now,
			Kind:   eventlog.KindFailoverTriggered,
			Target: name,
			Detail: map[string]any{
				"consecutive_failures": state.ConsecutiveFailures,
				"error":                result.Err,
			},
		})
		logger.Warn("target offline, failing over", zap.String("error", result.Err))
	}
	if m.autoRecovery && transition.Entered(health.StatusRecovering) {
		m.log.Append(eventlog.Event{
			Time:   now,
			Kind:   eventlog.KindRecoveryAttempted,
			Target: name,
			Detail: map[string]any{"action": string(recoveryActionType(state.Target))},
		})
	}
	if transition.Recovered() {
		if m.autoRecovery {
			m.log.Append(eventlog.Event{
				Time:   now,
				Kind:   eventlog.KindRecoverySucceeded,
				Target: name,
				Detail: map[string]any{"consecutive_successes": state.ConsecutiveSuccesses},
			})
		}
		m.log.Record(eventlog.RecoveryAction{
			Time:    now,
			Action:  recoveryActionType(state.Target),
			Target:  name,
			Success: true,
		})
		logger.Info("target recovered")
	}
	return checkResult{state: state.Snapshot(), transition: transition}, nil
}

// attemptRecovery runs the recovery handler for a target that started
// recovering and records the outcome. It is called without holding mu.
func (m *Monitor) attemptRecovery(ctx context.Context, target health.Target) {
	var err error
	if m.recovery != nil {
		err = m.runRecoveryHandler(ctx, target)
	}
	action := eventlog.RecoveryAction{
		Time:    m.clock.Now(),
		Action:  recoveryActionType(target),
		Target:  target.Name,
		Success: err == nil,
	}
	if err != nil {
		action.Err = err.Error()
		action.Reason = health.Classify(0, err)
		m.logger.Warn("recovery action failed", zap.String("target", target.Name), zap.Error(err))
	}
	m.log.Record(action)
	if err != nil {
		m.log.Append(eventlog.Event{
			Time:   action.Time,
			Kind:   eventlog.KindRecoveryFailed,
			Target: target.Name,
			Detail: map[string]any{"error": action.Err, "action": string(action.Action)},
		})
	}
}

func (m *Monitor) runRecoveryHandler(ctx context.Context, target health.Target) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("recovery handler panicked: %v", recovered)
		}
	}()
	return m.recovery(ctx, target)
}

// recoveryActionType is failover for local nodes, whose traffic moves to
// their peers, and reset for cloud providers.
func recoveryActionType(target health.Target) eventlog.ActionType {
	if target.Local {
		return eventlog.ActionFailover
	}
	return eventlog.ActionReset
}
