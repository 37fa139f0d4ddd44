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

	"github.com/zebadiee/ai-token-exo-bridge/eventlog"
	"github.com/zebadiee/ai-token-exo-bridge/health"
	"github.com/zebadiee/ai-token-exo-bridge/internal"
	"github.com/zebadiee/ai-token-exo-bridge/priority"
	"go.uber.org/zap"
)

// StatusReader gives the router the monitored state of a provider. It is
// implemented by *Monitor.
type StatusReader interface {
	Snapshot(name string) (health.TargetState, bool)
}

// Router dispatches requests to the first usable provider of an ordered
// candidate list, failing over to the next one when a provider is offline,
// recovering, or returns an error. Use Dispatch to send a request through a
// Router. It is safe for concurrent use.
type Router struct {
	reader  StatusReader
	log     *eventlog.Log
	logger  *zap.Logger
	metrics *routerMetrics
	clock   internal.Clock
}

// NewRouter creates a router that consults reader for provider health and
// records failovers in log. If log is nil, the router keeps its own. It
// panics if reader is nil.
func NewRouter(reader StatusReader, log *eventlog.Log, options ...RouterOption) *Router {
	if reader == nil {
		panic("exobridge: NewRouter called with nil status reader")
	}
	var opts routerOptions
	for _, opt := range options {
		opt.applyToRouter(&opts)
	}
	opts.applyDefaults()
	if log == nil {
		log = eventlog.New(0)
	}
	return &Router{
		reader:  reader,
		log:     log,
		logger:  opts.logger,
		metrics: newRouterMetrics(opts.registerer),
		clock:   opts.clock,
	}
}

// Events returns the log failovers are recorded in.
func (r *Router) Events() *eventlog.Log {
	return r.log
}

// Candidates returns the members of group in priority order, ready to be
// passed to Dispatch.
func (r *Router) Candidates(group *priority.Group) []string {
	return group.Ordered()
}

// Usable reports whether the router would call the named provider: it is
// either not monitored or in a routable status.
func (r *Router) Usable(provider string) bool {
	state, ok := r.reader.Snapshot(provider)
	return !ok || state.Status.Routable()
}

// Dispatch sends req to the candidates in order until one of them succeeds,
// and returns its response along with the name of the provider that
// produced it.
//
// A candidate whose monitored status is offline or recovering is skipped
// without being called. A candidate that is not monitored is assumed to be
// healthy. Every failed call is recorded in the router's event log as a
// failover recovery action before the next candidate is tried. Candidates
// are never called concurrently.
//
// If no candidate succeeds, the error is an *AllProvidersUnavailableError
// listing every candidate in order along with why it was skipped or what it
// failed with. Once ctx is done no further candidate is called; those left
// are listed with the context's error.
func Dispatch[Req, Resp any](
	ctx context.Context,
	router *Router,
	req Req,
	candidates []string,
	dispatch func(ctx context.Context, provider string, req Req) (Resp, error),
) (Resp, string, error) {
	var zero Resp
	attempts := make([]Attempt, 0, len(candidates))
	for i, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			for _, remaining := range candidates[i:] {
				attempts = append(attempts, Attempt{
					Provider: remaining,
					Err:      err,
					Reason:   health.Classify(0, err),
				})
			}
			break
		}
		if state, ok := router.reader.Snapshot(candidate); ok && !state.Status.Routable() {
			attempts = append(attempts, Attempt{
				Provider: candidate,
				Skipped:  true,
				Status:   state.Status,
				Err:      &skippedError{status: state.Status},
				Reason:   state.LastReason,
			})
			router.metrics.attempt(candidate, "skipped")
			router.logger.Debug("skipping provider", zap.String("provider", candidate), zap.Stringer("status", state.Status))
			continue
		}
		resp, err := dispatch(ctx, candidate, req)
		if err == nil {
			router.metrics.attempt(candidate, "success")
			return resp, candidate, nil
		}
		reason := health.Classify(0, err)
		attempts = append(attempts, Attempt{Provider: candidate, Err: err, Reason: reason})
		router.metrics.attempt(candidate, "failure")
		router.log.Record(eventlog.RecoveryAction{
			Time:   router.clock.Now(),
			Action: eventlog.ActionFailover,
			Target: candidate,
			Err:    err.Error(),
			Reason: reason,
		})
		router.logger.Warn(
			"provider failed, failing over",
			zap.String("provider", candidate),
			zap.String("reason", string(reason)),
			zap.Error(err),
		)
	}
	return zero, "", &AllProvidersUnavailableError{Attempts: attempts}
}

type skippedError struct {
	status health.Status
}

func (e *skippedError) Error() string {
	return "skipped: target is " + e.status.String()
}

func (e *skippedError) Unwrap() error {
	return ErrProviderSkipped
}
