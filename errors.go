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
	"errors"
	"fmt"
	"strings"

	"github.com/zebadiee/ai-token-exo-bridge/health"
)

// ErrProviderSkipped is wrapped by the error of an Attempt for a candidate
// that was not called because its target was offline or recovering.
var ErrProviderSkipped = errors.New("provider skipped")

// DuplicateTargetError is returned by Monitor.Register when a target with
// the same name is already registered.
type DuplicateTargetError struct {
	Name string
}

func (e *DuplicateTargetError) Error() string {
	return fmt.Sprintf("target %q is already registered", e.Name)
}

// UnknownTargetError is returned when an operation names a target that is
// not registered.
type UnknownTargetError struct {
	Name string
}

func (e *UnknownTargetError) Error() string {
	return fmt.Sprintf("target %q is not registered", e.Name)
}

// Attempt records what happened to one candidate during a dispatch.
type Attempt struct {
	Provider string
	// Skipped is true if the candidate was not called.
	Skipped bool
	// Status is the monitored status of a skipped candidate.
	Status health.Status
	Err    error
	Reason health.FailureReason
}

func (a Attempt) String() string {
	return a.Provider + ": " + a.Err.Error()
}

// AllProvidersUnavailableError is returned by Dispatch when every candidate
// was skipped or failed. Attempts lists each candidate in the order given.
type AllProvidersUnavailableError struct {
	Attempts []Attempt
}

func (e *AllProvidersUnavailableError) Error() string {
	if len(e.Attempts) == 0 {
		return "all providers unavailable: no candidates given"
	}
	var builder strings.Builder
	builder.WriteString("all providers unavailable: ")
	for i, attempt := range e.Attempts {
		if i > 0 {
			builder.WriteString("; ")
		}
		builder.WriteString(attempt.String())
	}
	return builder.String()
}

// Unwrap returns the error of every attempt, so that errors.Is can match a
// context cancellation or ErrProviderSkipped.
func (e *AllProvidersUnavailableError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, attempt := range e.Attempts {
		if attempt.Err != nil {
			errs = append(errs, attempt.Err)
		}
	}
	return errs
}
