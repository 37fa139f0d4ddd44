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

import "fmt"

// Status represents the health status of a target. Their natural ordering is
// for "better" states to be before "worse" states, with the exception of
// StatusRecovering, which sorts last because it is only reachable from
// StatusOffline.
type Status int

const (
	StatusHealthy = Status(iota)
	StatusDegraded
	StatusFailing
	StatusOffline
	StatusRecovering
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusFailing:
		return "failing"
	case StatusOffline:
		return "offline"
	case StatusRecovering:
		return "recovering"
	default:
		return fmt.Sprintf("Status(%d)", s)
	}
}

// Routable reports whether a target in this status may be sent requests.
func (s Status) Routable() bool {
	switch s {
	case StatusHealthy, StatusDegraded, StatusFailing:
		return true
	default:
		return false
	}
}

// MarshalText encodes the status as its lowercase name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a lowercase status name.
func (s *Status) UnmarshalText(text []byte) error {
	for candidate := StatusHealthy; candidate <= StatusRecovering; candidate++ {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown health status %q", text)
}

// AllStatuses lists every status in declaration order.
func AllStatuses() []Status {
	return []Status{StatusHealthy, StatusDegraded, StatusFailing, StatusOffline, StatusRecovering}
}
