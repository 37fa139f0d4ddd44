// Copyright 2025-2026 The ai-token-exo-bridge Authors
//
// Portions derived from github.com/bufbuild/httplb,
// Copyright 2023-2025 Buf Technologies, Inc.
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

// Package clocktest adapts the Clockwork fake clock to the internal.Clock
// interface. Go interface compatibility is nominal for method signatures that
// mention other interfaces, so NewTimer has to re-box the clockwork.Timer it
// gets back as an internal.Timer.
package clocktest

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/zebadiee/ai-token-exo-bridge/internal"
)

// FakeClock is a clock that only moves when Advance is called.
type FakeClock interface {
	internal.Clock
	Advance(d time.Duration)
	BlockUntilContext(ctx context.Context, waiters int) error
}

// NewFakeClock creates a new FakeClock using Clockwork.
func NewFakeClock() FakeClock {
	return fakeClock{clockwork.NewFakeClock()}
}

type fakeClock struct {
	*clockwork.FakeClock
}

var _ FakeClock = fakeClock{}

// NewTimer implements internal.Clock. A zero duration timer is stopped and
// drained before it is returned, matching the pre-1.23 timer behavior that
// callers rely on (see https://github.com/jonboulle/clockwork/issues/98).
func (f fakeClock) NewTimer(d time.Duration) internal.Timer {
	timer := f.FakeClock.NewTimer(d)
	if d == 0 {
		if !timer.Stop() {
			<-timer.Chan()
		}
	}
	return timer
}
