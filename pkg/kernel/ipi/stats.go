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
	"sync/atomic"
)

// stats tracks one core's IPI counters.
type stats struct {
	sent          atomic.Uint64
	received      atomic.Uint64
	reschedules   atomic.Uint64
	tlbFlushes    atomic.Uint64
	functionCalls atomic.Uint64
	sendFailures  atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of one core's IPI counters.
type StatsSnapshot struct {
	// Sent counts IPIs this core successfully handed to the hardware.
	Sent uint64

	// Received counts interrupts this core drained its mailbox for.
	Received uint64

	// Reschedules, TLBFlushes and FunctionCalls count executed effects.
	Reschedules   uint64
	TLBFlushes    uint64
	FunctionCalls uint64

	// SendFailures counts enqueue rejections and exhausted hardware
	// retries on the sending side.
	SendFailures uint64

	// Dropped counts messages lost to mailbox overflow on the receiving
	// side; DroppedByClass breaks the count down by the victim's
	// priority class.
	Dropped        uint64
	DroppedByClass [4]uint64

	// QueueLen is the current mailbox depth.
	QueueLen uint64
}

// Stats returns a snapshot of the counters for core.
func (m *Manager) Stats(core CoreID) StatsSnapshot {
	if !m.validCore(core) {
		return StatsSnapshot{}
	}
	s := &m.stats[core]
	q := m.queues[core]
	return StatsSnapshot{
		Sent:           s.sent.Load(),
		Received:       s.received.Load(),
		Reschedules:    s.reschedules.Load(),
		TLBFlushes:     s.tlbFlushes.Load(),
		FunctionCalls:  s.functionCalls.Load(),
		SendFailures:   s.sendFailures.Load(),
		Dropped:        q.droppedCount(),
		DroppedByClass: q.droppedCounts(),
		QueueLen:       uint64(q.len()),
	}
}
