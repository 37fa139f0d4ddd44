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

package eventlog

import (
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/zebadiee/ai-token-exo-bridge/internal/ring"
)

// DefaultCapacity is the capacity used when New is given a non-positive one.
const DefaultCapacity = 1000

// Log is a bounded, time-ordered, append-only event history. It is safe for
// concurrent use.
type Log struct {
	mu sync.Mutex
	// +checklocks:mu
	events *ring.Buffer[Event]
	// +checklocks:mu
	subscriptions map[*Subscription]struct{}
	// +checklocks:mu
	evicted uint64
}

// New returns an empty log holding at most capacity events.
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		events:        ring.New[Event](capacity),
		subscriptions: map[*Subscription]struct{}{},
	}
}

// Append adds an event and returns it as stored. A missing ID or time is
// filled in, and a time older than the newest entry is moved forward to it.
// The log keeps its own copy of the event, so later changes to the caller's
// Detail map or Action have no effect on the history, and neither do changes
// to events returned by the log.
func (l *Log) Append(event Event) Event {
	event = event.clone()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Time.IsZero() {
		event.Time = time.Now()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if last, ok := l.events.Last(); ok && event.Time.Before(last.Time) {
		event.Time = last.Time
	}
	if l.events.Push(event) {
		l.evicted++
	}
	for sub := range l.subscriptions {
		select {
		case sub.ch <- event.clone():
		default:
			sub.dropped.Add(1)
		}
	}
	return event.clone()
}

// Record appends a recovery action, tagged with KindRecoveryAction.
func (l *Log) Record(action RecoveryAction) Event {
	if action.Time.IsZero() {
		action.Time = time.Now()
	}
	detail := map[string]any{
		"action":  string(action.Action),
		"success": action.Success,
	}
	if action.Err != "" {
		detail["error"] = action.Err
	}
	if action.Reason != "" {
		detail["reason"] = string(action.Reason)
	}
	return l.Append(Event{
		Time:   action.Time,
		Kind:   KindRecoveryAction,
		Target: action.Target,
		Detail: detail,
		Action: &action,
	})
}

// Query returns the events with since < Time <= until, oldest first. A zero
// until means no upper bound. The returned sequence takes a consistent copy
// of the matching events every time it is iterated and does not hold any
// lock while yielding.
func (l *Log) Query(since, until time.Time) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for _, event := range l.collect(since, until) {
			if !yield(event) {
				return
			}
		}
	}
}

// Since returns the events recorded after t, oldest first.
func (l *Log) Since(t time.Time) []Event {
	return l.collect(t, time.Time{})
}

// Actions returns the recovery actions recorded after t, oldest first.
func (l *Log) Actions(since time.Time) []RecoveryAction {
	var actions []RecoveryAction
	for event := range l.Query(since, time.Time{}) {
		if event.Kind == KindRecoveryAction && event.Action != nil {
			actions = append(actions, *event.Action)
		}
	}
	return actions
}

// Len returns the number of retained events.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.events.Len()
}

// Evicted returns how many events were dropped to make room for newer ones.
func (l *Log) Evicted() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.evicted
}

func (l *Log) collect(since, until time.Time) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for i := range l.events.Len() {
		event := l.events.At(i)
		if !event.Time.After(since) {
			continue
		}
		if !until.IsZero() && event.Time.After(until) {
			break
		}
		out = append(out, event.clone())
	}
	return out
}

// Subscribe registers a subscription receiving every event appended from
// now on. buffer is the channel capacity; events that do not fit are
// dropped for this subscriber.
func (l *Log) Subscribe(buffer int) *Subscription {
	if buffer < 0 {
		buffer = 0
	}
	sub := &Subscription{log: l, ch: make(chan Event, buffer)}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subscriptions[sub] = struct{}{}
	return sub
}

// Subscription delivers appended events on a channel.
type Subscription struct {
	log     *Log
	ch      chan Event
	dropped atomic.Uint64
	once    sync.Once
}

// C returns the channel events are delivered on. It is closed by Close.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Dropped returns how many events did not fit in the channel buffer.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close stops delivery and closes the channel. It is safe to call more than
// once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.log.mu.Lock()
		defer s.log.mu.Unlock()
		delete(s.log.subscriptions, s)
		close(s.ch)
	})
}
