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

// Package health models the health of monitored inference backends.
//
// A [Target] describes one backend (a local cluster node or a cloud
// provider) and how to probe it. A [Prober] performs a single bounded check
// and always reports the outcome as a [ProbeResult]: probe failures are an
// expected outcome, never an error. The default prober, [HTTPProber], issues
// a GET to the target's probe path and also understands "h2c" endpoints
// (HTTP/2 over plaintext), which local inference clusters commonly expose.
//
// A [TargetState] folds probe results into a five-state machine:
//
//	HEALTHY -> DEGRADED -> FAILING -> OFFLINE -> RECOVERING -> HEALTHY
//
// HEALTHY, DEGRADED and FAILING targets may receive traffic. OFFLINE and
// RECOVERING targets may not. A target only returns to HEALTHY from OFFLINE
// after RecoveryThreshold consecutive successes, passing through RECOVERING
// on the way. A failure while RECOVERING restarts the count; the target goes
// back to OFFLINE once FailureThreshold failures accumulate.
//
// Types in this package are not safe for concurrent mutation. The monitor
// that owns them serializes all calls to [TargetState.Apply] and hands out
// copies made with [TargetState.Snapshot].
package health
