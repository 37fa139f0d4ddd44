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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/zebadiee/ai-token-exo-bridge/health"
)

// monitorMetrics are the collectors updated by a Monitor. A nil
// *monitorMetrics records nothing.
type monitorMetrics struct {
	probes       *prometheus.CounterVec
	probeLatency *prometheus.HistogramVec
	status       *prometheus.GaugeVec
	transitions  *prometheus.CounterVec
}

func newMonitorMetrics(registerer prometheus.Registerer) *monitorMetrics {
	if registerer == nil {
		return nil
	}
	factory := promauto.With(registerer)
	return &monitorMetrics{
		probes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exobridge_probes_total",
				Help: "Total number of health probes by target and result",
			},
			[]string{"target", "result"},
		),
		probeLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "exobridge_probe_duration_seconds",
				Help:    "Latency of health probes",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"target"},
		),
		status: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "exobridge_target_status",
				Help: "Current status of each target, one series per status set to 1 for the current one",
			},
			[]string{"target", "status"},
		),
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exobridge_status_transitions_total",
				Help: "Total number of status changes by target and entered status",
			},
			[]string{"target", "status"},
		),
	}
}

func (m *monitorMetrics) observeProbe(result health.ProbeResult) {
	if m == nil {
		return
	}
	outcome := "success"
	if !result.Success {
		outcome = "failure"
	}
	m.probes.WithLabelValues(result.Target, outcome).Inc()
	m.probeLatency.WithLabelValues(result.Target).Observe(result.Latency.Seconds())
}

func (m *monitorMetrics) setStatus(target string, current health.Status) {
	if m == nil {
		return
	}
	for _, status := range health.AllStatuses() {
		var value float64
		if status == current {
			value = 1
		}
		m.status.WithLabelValues(target, status.String()).Set(value)
	}
}

func (m *monitorMetrics) transitioned(target string, path []health.Status) {
	if m == nil {
		return
	}
	for _, status := range path {
		m.transitions.WithLabelValues(target, status.String()).Inc()
	}
}

func (m *monitorMetrics) forget(target string) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{"target": target}
	m.probes.DeletePartialMatch(labels)
	m.probeLatency.DeletePartialMatch(labels)
	m.status.DeletePartialMatch(labels)
	m.transitions.DeletePartialMatch(labels)
}

// routerMetrics are the collectors updated by a Router. A nil
// *routerMetrics records nothing.
type routerMetrics struct {
	attempts *prometheus.CounterVec
}

func newRouterMetrics(registerer prometheus.Registerer) *routerMetrics {
	if registerer == nil {
		return nil
	}
	return &routerMetrics{
		attempts: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "exobridge_dispatch_attempts_total",
				Help: "Total number of dispatch attempts by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
	}
}

func (m *routerMetrics) attempt(provider, outcome string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(provider, outcome).Inc()
}
