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

// Package eventlog provides the bounded, append-only history of health
// events and recovery actions.
//
// A [Log] keeps the most recent entries in a ring buffer (1000 by default)
// and silently evicts the oldest entry on overflow. Entries are kept in time
// order: an event whose timestamp is older than the newest entry is clamped
// forward to it. [Log.Query] returns a lazy iterator that copies the
// matching entries each time it is ranged over, so it can be restarted and
// never observes a half-written entry.
//
// Instead of callbacks, interested parties call [Log.Subscribe] and drain a
// channel. Delivery never blocks the appender: when a subscriber's buffer is
// full the event is dropped for that subscriber and counted.
package eventlog
