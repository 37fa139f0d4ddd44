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

// Package exobridge monitors the health of inference backends and routes
// requests around the ones that are down. Backends are local cluster nodes
// (such as an Exo node on localhost) and cloud providers; local nodes are
// usually preferred because they are free.
//
// A [Monitor] owns a set of [health.Target] values. Once started, it probes
// each target every CheckInterval from a single background goroutine and
// keeps a [health.TargetState] per target. Every probe failure, status
// change, failover and recovery is appended to an [eventlog.Log]. Probes of
// different targets run concurrently; probes of the same target never
// overlap, whether they come from the background loop or from
// [Monitor.ForceCheck].
//
// A [Router] consults a monitor to decide which providers to call. Use
// [Dispatch] to send a request to an ordered list of candidates: providers
// that are offline or recovering are skipped, failures fall through to the
// next candidate, and the first success wins. When nothing succeeds, the
// returned [AllProvidersUnavailableError] says what happened to each
// candidate. Dispatch runs in the caller's process, next to the code that
// talks to the providers; the exobridge daemon only monitors and reports.
//
// A typical setup looks like this:
//
//	monitor := exobridge.NewMonitor(
//	    health.NewHTTPProber(),
//	    exobridge.WithLogger(logger),
//	)
//	_ = monitor.Register(health.Target{
//	    Name:     "exo-local",
//	    Endpoint: "http://localhost:8000",
//	    Local:    true,
//	}.WithDefaults())
//	monitor.Start()
//	defer monitor.Stop()
//
//	router := exobridge.NewRouter(monitor, monitor.Events())
//	resp, provider, err := exobridge.Dispatch(
//	    ctx, router, req, []string{"exo-local", "openrouter"}, send,
//	)
//
// # Events
//
// The event log is bounded: the oldest events are evicted once it is full.
// Consumers that need every event as it happens can use
// [eventlog.Log.Subscribe], which delivers on a channel and never blocks the
// monitor; a consumer that falls behind loses events and can see how many
// with [eventlog.Subscription.Dropped].
//
// # Lifecycle
//
// [Monitor.Start] and [Monitor.Stop] are the only way to control the
// background loop. Stop waits for the loop to exit. Signal handling is left
// to the program embedding the monitor, which should call Stop itself.
package exobridge
