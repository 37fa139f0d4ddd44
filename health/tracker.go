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

package health

import (
	"slices"
	"time"

	"github.com/zebadiee/ai-token-exo-bridge/internal/ring"
)

// RecentWindow is the number of probe outcomes kept per target for the
// success rate and latency statistics.
const RecentWindow = 20

// Outcome is the part of a ProbeResult retained in a target's history.
type Outcome struct {
	Time    time.Time
	Success bool
	Latency time.Duration
}

// TargetState is the health state machine and rolling statistics of one
// target. The zero value is not usable; create one with NewTargetState.
type TargetState struct {
	Target               Target
	Status               Status
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	LastCheck            time.Time
	LastLatency          time.Duration
	LastError            string
	LastReason           FailureReason
	TotalChecks          int

	recent *ring.Buffer[Outcome]
}

// NewTargetState returns the initial state of a freshly registered target:
// healthy, with zeroed counters.
func NewTargetState(target Target) *TargetState {
	return &TargetState{
		Target: target,
		Status: StatusHealthy,
		recent: ring.New[Outcome](RecentWindow),
	}
}

// Transition describes the effect of applying one probe result.
type Transition struct {
	From Status
	To   Status
	// Path lists every status entered while applying the result, in order.
	// It is empty when the status did not change. With a recovery
	// threshold of one, an offline target that succeeds enters both
	// StatusRecovering and StatusHealthy in a single step.
	Path []Status
}

// Changed reports whether the status changed.
func (t Transition) Changed() bool {
	return len(t.Path) > 0
}

// Entered reports whether the transition entered the given status.
func (t Transition) Entered(status Status) bool {
	return slices.Contains(t.Path, status)
}

// Recovered reports whether the transition completed a recovery, i.e.
// entered StatusHealthy while coming from StatusOffline or
// StatusRecovering.
func (t Transition) Recovered() bool {
	return (t.From == StatusOffline || t.From == StatusRecovering) && t.To == StatusHealthy
}

// Apply folds a probe result into the state and reports the resulting
// transition. Statistics are updated for every result, whether or not the
// status changes.
func (s *TargetState) Apply(result ProbeResult) Transition {
	s.LastCheck = result.Time
	s.LastLatency = result.Latency
	s.LastError = result.Err
	s.LastReason = result.Reason
	s.TotalChecks++
	s.recent.Push(Outcome{Time: result.Time, Success: result.Success, Latency: result.Latency})

	from := s.Status
	var path []Status
	if result.Success {
		s.ConsecutiveSuccesses++
		s.ConsecutiveFailures = 0
		switch from {
		case StatusOffline, StatusRecovering:
			if from == StatusOffline {
				path = append(path, StatusRecovering)
			}
			if s.ConsecutiveSuccesses >= s.Target.RecoveryThreshold {
				path = append(path, StatusHealthy)
			}
		case StatusHealthy:
		default:
			path = append(path, StatusHealthy)
		}
	} else {
		s.ConsecutiveFailures++
		s.ConsecutiveSuccesses = 0
		var next Status
		switch {
		case s.ConsecutiveFailures >= s.Target.FailureThreshold:
			next = StatusOffline
		case from == StatusRecovering:
			// A recovering target restarts its success count and stays
			// unroutable until it recovers or goes offline again.
			next = StatusRecovering
		case s.ConsecutiveFailures == 1:
			next = StatusDegraded
		default:
			next = StatusFailing
		}
		if next != from {
			path = append(path, next)
		}
	}
	if len(path) > 0 {
		s.Status = path[len(path)-1]
	}
	return Transition{From: from, To: s.Status, Path: path}
}

// Snapshot returns a deep copy of the state that shares nothing with s.
func (s *TargetState) Snapshot() TargetState {
	snapshot := *s
	if s.recent != nil {
		snapshot.recent = s.recent.Clone()
	}
	return snapshot
}

// Recent returns the retained probe outcomes, oldest first.
func (s TargetState) Recent() []Outcome {
	if s.recent == nil {
		return nil
	}
	return s.recent.Slice()
}

// SuccessRate returns the fraction of retained outcomes that succeeded, in
// the range [0, 1]. It returns zero if the target was never probed.
func (s TargetState) SuccessRate() float64 {
	if s.recent == nil || s.recent.Len() == 0 {
		return 0
	}
	var successes int
	for i := range s.recent.Len() {
		if s.recent.At(i).Success {
			successes++
		}
	}
	return float64(successes) / float64(s.recent.Len())
}

// AverageLatency returns the mean latency of the retained outcomes.
func (s TargetState) AverageLatency() time.Duration {
	if s.recent == nil || s.recent.Len() == 0 {
		return 0
	}
	var total time.Duration
	for i := range s.recent.Len() {
		total += s.recent.At(i).Latency
	}
	return total / time.Duration(s.recent.Len())
}
