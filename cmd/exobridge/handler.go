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

package main

import (
	"encoding/json"
	"errors"
	"maps"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	exobridge "github.com/zebadiee/ai-token-exo-bridge"
	"github.com/zebadiee/ai-token-exo-bridge/eventlog"
	"github.com/zebadiee/ai-token-exo-bridge/health"
	"github.com/zebadiee/ai-token-exo-bridge/priority"
	"go.uber.org/zap"
)

type targetView struct {
	Name                 string               `json:"name"`
	Endpoint             string               `json:"endpoint"`
	Local                bool                 `json:"local"`
	Status               health.Status        `json:"status"`
	ConsecutiveFailures  int                  `json:"consecutive_failures"`
	ConsecutiveSuccesses int                  `json:"consecutive_successes"`
	LastCheck            time.Time            `json:"last_check"`
	LastLatencyMillis    float64              `json:"last_latency_ms"`
	LastError            string               `json:"last_error,omitempty"`
	LastReason           health.FailureReason `json:"last_reason,omitempty"`
	TotalChecks          int                  `json:"total_checks"`
	SuccessRate          float64              `json:"success_rate"`
	AverageLatencyMillis float64              `json:"average_latency_ms"`
}

type candidateView struct {
	Name   string `json:"name"`
	Rank   int    `json:"rank"`
	Usable bool   `json:"usable"`
}

type statusView struct {
	Summary    exobridge.Summary `json:"summary"`
	Targets    []targetView      `json:"targets"`
	Candidates []candidateView   `json:"candidates"`
}

type handler struct {
	monitor *exobridge.Monitor
	router  *exobridge.Router
	group   *priority.Group
	logger  *zap.Logger
}

// newHandler serves the status, event history and metrics of a monitor.
func newHandler(
	monitor *exobridge.Monitor,
	router *exobridge.Router,
	group *priority.Group,
	gatherer prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	h := &handler{monitor: monitor, router: router, group: group, logger: logger}
	mux := chi.NewRouter()
	mux.Get("/status", h.status)
	mux.Get("/events", h.events)
	mux.Post("/targets/{name}/check", h.check)
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}

func (h *handler) status(w http.ResponseWriter, _ *http.Request) {
	snapshots := h.monitor.SnapshotAll()
	view := statusView{
		Summary: h.monitor.Status(),
		Targets: make([]targetView, 0, len(snapshots)),
	}
	for _, name := range slices.Sorted(maps.Keys(snapshots)) {
		view.Targets = append(view.Targets, newTargetView(snapshots[name]))
	}
	for _, member := range h.group.Members() {
		view.Candidates = append(view.Candidates, candidateView{
			Name:   member.Name,
			Rank:   member.Rank,
			Usable: h.router.Usable(member.Name),
		})
	}
	h.writeJSON(w, http.StatusOK, view)
}

func (h *handler) events(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "since must be an RFC 3339 timestamp")
			return
		}
		since = parsed
	}
	events := h.monitor.EventsSince(since)
	if kind := r.URL.Query().Get("kind"); kind != "" {
		events = slices.DeleteFunc(events, func(event eventlog.Event) bool {
			return event.Kind != eventlog.Kind(kind)
		})
	}
	if events == nil {
		events = []eventlog.Event{}
	}
	h.writeJSON(w, http.StatusOK, events)
}

func (h *handler) check(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	states, err := h.monitor.ForceCheck(r.Context(), name)
	var unknown *exobridge.UnknownTargetError
	switch {
	case errors.As(err, &unknown):
		h.writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, newTargetView(states[name]))
}

func (h *handler) writeJSON(w http.ResponseWriter, code int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(value); err != nil {
		h.logger.Debug("failed to write response", zap.Error(err))
	}
}

func (h *handler) writeError(w http.ResponseWriter, code int, message string) {
	h.writeJSON(w, code, map[string]string{"error": message})
}

func newTargetView(state health.TargetState) targetView {
	return targetView{
		Name:                 state.Target.Name,
		Endpoint:             state.Target.Endpoint,
		Local:                state.Target.Local,
		Status:               state.Status,
		ConsecutiveFailures:  state.ConsecutiveFailures,
		ConsecutiveSuccesses: state.ConsecutiveSuccesses,
		LastCheck:            state.LastCheck,
		LastLatencyMillis:    millis(state.LastLatency),
		LastError:            state.LastError,
		LastReason:           state.LastReason,
		TotalChecks:          state.TotalChecks,
		SuccessRate:          state.SuccessRate(),
		AverageLatencyMillis: millis(state.AverageLatency()),
	}
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
