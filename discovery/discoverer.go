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

package discovery

import (
	"context"
	"io"
	"time"

	"github.com/zebadiee/ai-token-exo-bridge/health"
	"github.com/zebadiee/ai-token-exo-bridge/internal"
	"go.uber.org/zap"
)

// Receiver is given the targets found by every scan.
type Receiver interface {
	OnDiscover(targets []health.Target)
}

// ReceiverFunc adapts a function to the Receiver interface.
type ReceiverFunc func(targets []health.Target)

// OnDiscover implements Receiver.
func (f ReceiverFunc) OnDiscover(targets []health.Target) {
	f(targets)
}

// Discoverer periodically runs a Scanner.
type Discoverer struct {
	scanner  *Scanner
	interval time.Duration
	logger   *zap.Logger
	clock    internal.Clock
}

// NewDiscoverer creates a discoverer that scans every interval. A nil
// logger discards log output.
func NewDiscoverer(scanner *Scanner, interval time.Duration, logger *zap.Logger) *Discoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discoverer{
		scanner:  scanner,
		interval: interval,
		logger:   logger,
		clock:    internal.NewRealClock(),
	}
}

// Start scans right away and then every interval, until ctx is done or the
// returned Closer is closed. Receiving on refresh triggers an immediate
// scan. Scans that find nothing are not reported to the receiver.
func (d *Discoverer) Start(ctx context.Context, receiver Receiver, refresh <-chan struct{}) io.Closer {
	ctx, cancel := context.WithCancel(ctx)
	task := &discoveryTask{
		cancel:     cancel,
		doneSignal: make(chan struct{}),
		refreshCh:  refresh,
		discoverer: d,
	}
	go task.run(ctx, receiver)
	return task
}

type discoveryTask struct {
	cancel     context.CancelFunc
	doneSignal chan struct{}
	refreshCh  <-chan struct{}
	discoverer *Discoverer
}

func (task *discoveryTask) Close() error {
	task.cancel()
	<-task.doneSignal
	return nil
}

func (task *discoveryTask) run(ctx context.Context, receiver Receiver) {
	defer close(task.doneSignal)
	defer task.cancel()

	timer := task.discoverer.clock.NewTimer(0)
	internal.StopTimer(timer)

	for {
		nodes, err := task.discoverer.scanner.Scan(ctx)
		if err != nil {
			return
		}
		task.discoverer.logger.Debug("scan complete", zap.Int("nodes", len(nodes)))
		if len(nodes) > 0 {
			targets := make([]health.Target, len(nodes))
			for i, node := range nodes {
				targets[i] = node.Target()
			}
			receiver.OnDiscover(targets)
		}

		timer.Reset(task.discoverer.interval)
		select {
		case <-ctx.Done():
			internal.StopTimer(timer)
			return
		case <-task.refreshCh:
			internal.StopTimer(timer)
		case <-timer.Chan():
		}
	}
}
