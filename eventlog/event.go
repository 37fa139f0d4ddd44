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

package eventlog

import (
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/zebadiee/ai-token-exo-bridge/health"
)

// Kind identifies what an Event records.
type Kind string

const (
	KindTargetAdded       Kind = "target_added"
	KindTargetRemoved     Kind = "target_removed"
	KindProbeFailure      Kind = "probe_failure"
	KindProbeSuccess      Kind = "probe_success"
	KindStatusChanged     Kind = "status_changed"
	KindFailoverTriggered Kind = "failover_triggered"
	KindRecoveryAttempted Kind = "recovery_attempted"
	KindRecoverySucceeded Kind = "recovery_succeeded"
	KindRecoveryFailed    Kind = "recovery_failed"
	KindManagerStarted    Kind = "manager_started"
	KindManagerStopped    Kind = "manager_stopped"

	// KindRecoveryAction tags an event carrying a RecoveryAction.
	KindRecoveryAction Kind = "recovery_action"
)

// Event is one entry of the log. Events are immutable once appended.
type Event struct {
	ID     uuid.UUID      `json:"id"`
	Time   time.Time      `json:"time"`
	Kind   Kind           `json:"kind"`
	Target string         `json:"target,omitempty"`
	Detail map[string]any `json:"detail,omitempty"`

	// Action is set only on events of kind KindRecoveryAction.
	Action *RecoveryAction `json:"action,omitempty"`
}

// clone returns a copy of e that shares no mutable state with it. Detail
// values are copied shallowly; the log only stores scalar values in them.
func (e Event) clone() Event {
	e.Detail = maps.Clone(e.Detail)
	if e.Action != nil {
		action := *e.Action
		e.Action = &action
	}
	return e
}

// ActionType is the kind of corrective step a RecoveryAction records.
type ActionType string

const (
	ActionFailover    ActionType = "failover"
	ActionReset       ActionType = "reset"
	ActionManualRetry ActionType = "manual_retry"
)

// RecoveryAction records an attempt to route around or repair a failing
// target.
type RecoveryAction struct {
	Time    time.Time            `json:"time"`
	Action  ActionType           `json:"action"`
	Target  string               `json:"target"`
	Success bool                 `json:"success"`
	Err     string               `json:"error,omitempty"`
	Reason  health.FailureReason `json:"reason,omitempty"`
}
