// Copyright 2025 The LiteOS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ipi

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/gitwillsky/liteos/pkg/syserror"
)

// barrier is a single-use rendezvous for a fixed set of cores. Arrival
// flags are per-core so a double arrival from one core cannot complete
// the barrier on behalf of a missing participant.
type barrier struct {
	id       uint64
	expected int
	deadline int64

	mu      sync.Mutex
	arrived map[CoreID]bool

	complete atomic.Bool
	torn     atomic.Bool
}

// arrive records self's arrival and reports whether it was the last one
// expected.
func (b *barrier) arrive(self CoreID) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.arrived[self]; !ok {
		return false, fmt.Errorf("%w: core %d is not a participant", syserror.ErrInvalidArgument, self)
	}
	b.arrived[self] = true
	n := 0
	for _, a := range b.arrived {
		if a {
			n++
		}
	}
	return n == b.expected, nil
}

// CreateBarrier allocates a rendezvous for the given cores and returns its
// id. The timeout starts at creation, not at first wait: the barrier
// sequences a phase with a wall deadline, not each waiter individually.
func (m *Manager) CreateBarrier(participants []CoreID, timeout time.Duration) (uint64, error) {
	if len(participants) == 0 {
		return 0, fmt.Errorf("%w: empty participant set", syserror.ErrInvalidArgument)
	}
	if timeout <= 0 {
		return 0, fmt.Errorf("%w: non-positive timeout", syserror.ErrInvalidArgument)
	}
	arrived := make(map[CoreID]bool, len(participants))
	for _, core := range participants {
		if !m.validCore(core) {
			return 0, fmt.Errorf("%w: core %d", syserror.ErrInvalidArgument, core)
		}
		arrived[core] = false
	}
	b := &barrier{
		id:       m.nextBarrierID.Add(1),
		expected: len(arrived),
		deadline: m.clock.NowMillis() + timeout.Milliseconds(),
		arrived:  arrived,
	}
	m.barriersMu.Lock()
	m.barriers[b.id] = b
	m.barriersMu.Unlock()
	return b.id, nil
}

// WaitAtBarrier arrives at barrier id and spins until every participant
// has arrived or the deadline passes. All waiters of a timed-out barrier
// get ErrTimeout; whoever first observes completion or timeout removes the
// barrier from the table, so a straggler arriving afterward gets
// ErrNoSuchBarrier.
func (m *Manager) WaitAtBarrier(id uint64, self CoreID) error {
	m.barriersMu.Lock()
	b, ok := m.barriers[id]
	m.barriersMu.Unlock()
	if !ok {
		return syserror.ErrNoSuchBarrier
	}

	last, err := b.arrive(self)
	if err != nil {
		return err
	}
	if last {
		b.complete.Store(true)
	}

	for !b.complete.Load() {
		if m.clock.NowMillis() >= b.deadline {
			m.teardownBarrier(b)
			m.log.Warn("barrier timed out",
				zap.Uint64("barrier", b.id),
				zap.Int("core", int(self)))
			return syserror.ErrTimeout
		}
		spinYield()
	}
	m.teardownBarrier(b)
	return nil
}

// teardownBarrier removes b from the table. Idempotent: every waiter calls
// it on the way out, the first one does the work.
func (m *Manager) teardownBarrier(b *barrier) {
	if !b.torn.CompareAndSwap(false, true) {
		return
	}
	m.barriersMu.Lock()
	delete(m.barriers, b.id)
	m.barriersMu.Unlock()
}
