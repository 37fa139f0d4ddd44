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

package eventlog_test

import (
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zebadiee/ai-token-exo-bridge/eventlog"
	"github.com/zebadiee/ai-token-exo-bridge/health"
)

var epoch = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

func at(seconds int) time.Time {
	return epoch.Add(time.Duration(seconds) * time.Second)
}

func TestLogAppendStampsAndOrders(t *testing.T) {
	t.Parallel()

	log := eventlog.New(10)
	first := log.Append(eventlog.Event{Kind: eventlog.KindManagerStarted})
	assert.NotEqual(t, uuid.Nil, first.ID)
	assert.False(t, first.Time.IsZero())

	late := log.Append(eventlog.Event{Time: first.Time.Add(-time.Hour), Kind: eventlog.KindTargetAdded})
	assert.Equal(t, first.Time, late.Time, "out of order timestamp must be clamped")

	events := log.Since(time.Time{})
	require.Len(t, events, 2)
	assert.Equal(t, eventlog.KindManagerStarted, events[0].Kind)
	assert.Equal(t, eventlog.KindTargetAdded, events[1].Kind)
}

func TestLogEvictsOldest(t *testing.T) {
	t.Parallel()

	log := eventlog.New(3)
	for i := range 5 {
		log.Append(eventlog.Event{Time: at(i), Kind: eventlog.KindProbeFailure, Target: fmt.Sprint(i)})
	}
	assert.Equal(t, 3, log.Len())
	assert.Equal(t, uint64(2), log.Evicted())
	var targets []string
	for event := range log.Query(time.Time{}, time.Time{}) {
		targets = append(targets, event.Target)
	}
	assert.Equal(t, []string{"2", "3", "4"}, targets)
}

func TestLogQueryRange(t *testing.T) {
	t.Parallel()

	log := eventlog.New(0)
	for i := range 10 {
		log.Append(eventlog.Event{Time: at(i), Kind: eventlog.KindProbeSuccess, Target: fmt.Sprint(i)})
	}

	query := log.Query(at(2), at(5))
	collect := func() []string {
		var targets []string
		for event := range query {
			targets = append(targets, event.Target)
		}
		return targets
	}
	// since is exclusive, until inclusive.
	assert.Equal(t, []string{"3", "4", "5"}, collect())
	// The sequence is restartable and sees later appends within range.
	assert.Equal(t, []string{"3", "4", "5"}, collect())

	var first []eventlog.Event
	for event := range log.Query(time.Time{}, time.Time{}) {
		first = append(first, event)
		break
	}
	require.Len(t, first, 1)
	assert.Equal(t, "0", first[0].Target)
	assert.Len(t, log.Since(at(7)), 2)
	assert.Equal(t, 10, log.Len(), "queries must not mutate the log")
}

func TestLogRecordActions(t *testing.T) {
	t.Parallel()

	log := eventlog.New(0)
	log.Append(eventlog.Event{Time: at(0), Kind: eventlog.KindStatusChanged, Target: "openrouter"})
	log.Record(eventlog.RecoveryAction{
		Time:   at(1),
		Action: eventlog.ActionFailover,
		Target: "openrouter",
		Err:    "HTTP 429",
		Reason: health.ReasonRateLimit,
	})
	log.Record(eventlog.RecoveryAction{Time: at(2), Action: eventlog.ActionReset, Target: "together", Success: true})

	actions := log.Actions(time.Time{})
	require.Len(t, actions, 2)
	assert.Equal(t, eventlog.ActionFailover, actions[0].Action)
	assert.False(t, actions[0].Success)
	assert.Equal(t, health.ReasonRateLimit, actions[0].Reason)
	assert.True(t, actions[1].Success)

	events := log.Since(at(0))
	require.Len(t, events, 2)
	assert.Equal(t, eventlog.KindRecoveryAction, events[0].Kind)
	assert.Equal(t, "failover", events[0].Detail["action"])
	assert.Equal(t, "HTTP 429", events[0].Detail["error"])
}

func TestLogHistoryIsImmutable(t *testing.T) {
	t.Parallel()

	log := eventlog.New(0)
	detail := map[string]any{"error": "HTTP 503"}
	stored := log.Append(eventlog.Event{Time: at(0), Kind: eventlog.KindProbeFailure, Detail: detail})
	log.Record(eventlog.RecoveryAction{Time: at(1), Action: eventlog.ActionReset, Target: "together"})
	sub := log.Subscribe(1)
	log.Append(eventlog.Event{Time: at(2), Kind: eventlog.KindStatusChanged, Detail: map[string]any{"to": "offline"}})

	detail["error"] = "changed by caller"
	stored.Detail["error"] = "changed through the returned event"
	got := log.Since(time.Time{})
	require.Len(t, got, 3)
	got[0].Detail["error"] = "changed through a query"
	got[1].Action.Success = true
	delivered := <-sub.C()
	delivered.Detail["to"] = "changed by a subscriber"
	for event := range log.Query(time.Time{}, time.Time{}) {
		event.Detail["extra"] = true
	}

	got = log.Since(time.Time{})
	require.Len(t, got, 3)
	assert.Equal(t, map[string]any{"error": "HTTP 503"}, got[0].Detail)
	require.NotNil(t, got[1].Action)
	assert.False(t, got[1].Action.Success)
	assert.False(t, log.Actions(time.Time{})[0].Success)
	assert.Equal(t, map[string]any{"to": "offline"}, got[2].Detail)
	sub.Close()
}

func TestLogSubscribe(t *testing.T) {
	t.Parallel()

	log := eventlog.New(0)
	sub := log.Subscribe(2)
	for i := range 3 {
		log.Append(eventlog.Event{Time: at(i), Kind: eventlog.KindProbeFailure})
	}
	assert.Equal(t, uint64(1), sub.Dropped())
	assert.Equal(t, at(0), (<-sub.C()).Time)
	assert.Equal(t, at(1), (<-sub.C()).Time)

	sub.Close()
	sub.Close()
	_, open := <-sub.C()
	assert.False(t, open)
	// Appending after close must not panic or deliver.
	log.Append(eventlog.Event{Time: at(4), Kind: eventlog.KindProbeFailure})
}

func TestLogConcurrentAppendKeepsOrder(t *testing.T) {
	t.Parallel()

	log := eventlog.New(500)
	var wg sync.WaitGroup
	for worker := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				log.Append(eventlog.Event{Kind: eventlog.KindProbeSuccess, Target: fmt.Sprint(worker)})
			}
		}()
	}
	wg.Wait()

	events := log.Since(time.Time{})
	assert.Len(t, events, 500)
	assert.True(t, slices.IsSortedFunc(events, func(a, b eventlog.Event) int {
		return a.Time.Compare(b.Time)
	}))
}
