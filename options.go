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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/zebadiee/ai-token-exo-bridge/eventlog"
	"github.com/zebadiee/ai-token-exo-bridge/health"
	"github.com/zebadiee/ai-token-exo-bridge/internal"
	"go.uber.org/zap"
)

// defaultProbeConcurrency bounds how many targets the monitor probes at
// once when no limit is configured.
const defaultProbeConcurrency = 8

// RecoveryHandler is invoked by the monitor when an offline target starts
// recovering and auto-recovery is enabled. It runs outside of the monitor's
// lock. A nil error is recorded as a successful recovery action.
type RecoveryHandler func(ctx context.Context, target health.Target) error

// MonitorOption is an option used to customize the behavior of a Monitor.
type MonitorOption interface {
	applyToMonitor(*monitorOptions)
}

// RouterOption is an option used to customize the behavior of a Router.
type RouterOption interface {
	applyToRouter(*routerOptions)
}

// Option is an option that applies to both a Monitor and a Router.
type Option interface {
	MonitorOption
	RouterOption
}

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(logger *zap.Logger) Option {
	return &loggerOption{logger: logger}
}

// WithMetrics registers Prometheus collectors on the given registerer and
// keeps them up to date. A Monitor and a Router may share a registerer.
func WithMetrics(registerer prometheus.Registerer) Option {
	return &metricsOption{registerer: registerer}
}

// WithEventLog makes the monitor append to the given log instead of
// creating its own. Use this to share one history between a Monitor and
// other producers.
func WithEventLog(log *eventlog.Log) MonitorOption {
	return monitorOptionFunc(func(opts *monitorOptions) {
		opts.log = log
	})
}

// WithEventCapacity sets the capacity of the event log created by the
// monitor. It has no effect when combined with WithEventLog. The default is
// eventlog.DefaultCapacity.
func WithEventCapacity(capacity int) MonitorOption {
	return monitorOptionFunc(func(opts *monitorOptions) {
		opts.eventCapacity = capacity
	})
}

// WithAutoRecovery enables or disables recovery actions when a target
// crosses from offline into recovering. It is enabled by default.
func WithAutoRecovery(enabled bool) MonitorOption {
	return monitorOptionFunc(func(opts *monitorOptions) {
		opts.autoRecovery = enabled
	})
}

// WithRecoveryHandler sets the function run when auto-recovery kicks in for
// a target. Without one, entering recovery is recorded as a successful
// action with nothing else done.
func WithRecoveryHandler(handler RecoveryHandler) MonitorOption {
	return monitorOptionFunc(func(opts *monitorOptions) {
		opts.recovery = handler
	})
}

// WithProbeConcurrency limits how many targets are probed at the same time
// by the background loop and by ForceCheck. Values below one mean the
// default of 8.
func WithProbeConcurrency(limit int) MonitorOption {
	return monitorOptionFunc(func(opts *monitorOptions) {
		opts.concurrency = limit
	})
}

// WithStartupJitter delays the first probe of each newly registered target
// by a random duration below limit, to avoid probing every target at the
// same instant. The default is zero: new targets are probed right away.
func WithStartupJitter(limit time.Duration) MonitorOption {
	return monitorOptionFunc(func(opts *monitorOptions) {
		opts.jitter = limit
	})
}

type monitorOptionFunc func(*monitorOptions)

func (f monitorOptionFunc) applyToMonitor(opts *monitorOptions) {
	f(opts)
}

type monitorOptions struct {
	logger        *zap.Logger
	registerer    prometheus.Registerer
	clock         internal.Clock
	log           *eventlog.Log
	eventCapacity int
	autoRecovery  bool
	recovery      RecoveryHandler
	concurrency   int
	jitter        time.Duration
}

func (opts *monitorOptions) applyDefaults() {
	if opts.logger == nil {
		opts.logger = zap.NewNop()
	}
	if opts.clock == nil {
		opts.clock = internal.NewRealClock()
	}
	if opts.log == nil {
		opts.log = eventlog.New(opts.eventCapacity)
	}
	if opts.concurrency < 1 {
		opts.concurrency = defaultProbeConcurrency
	}
}

type routerOptions struct {
	logger     *zap.Logger
	registerer prometheus.Registerer
	clock      internal.Clock
}

func (opts *routerOptions) applyDefaults() {
	if opts.logger == nil {
		opts.logger = zap.NewNop()
	}
	if opts.clock == nil {
		opts.clock = internal.NewRealClock()
	}
}

type loggerOption struct {
	logger *zap.Logger
}

func (o *loggerOption) applyToMonitor(opts *monitorOptions) {
	opts.logger = o.logger
}

func (o *loggerOption) applyToRouter(opts *routerOptions) {
	opts.logger = o.logger
}

type metricsOption struct {
	registerer prometheus.Registerer
}

func (o *metricsOption) applyToMonitor(opts *monitorOptions) {
	opts.registerer = o.registerer
}

func (o *metricsOption) applyToRouter(opts *routerOptions) {
	opts.registerer = o.registerer
}

// clockOption replaces the clock. It is only used by tests.
type clockOption struct {
	clock internal.Clock
}

func withClock(clock internal.Clock) Option {
	return &clockOption{clock: clock}
}

func (o *clockOption) applyToMonitor(opts *monitorOptions) {
	opts.clock = o.clock
}

func (o *clockOption) applyToRouter(opts *routerOptions) {
	opts.clock = o.clock
}
