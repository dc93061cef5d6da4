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
	"time"
)

// Platform is the hardware interrupt-send primitive. It carries no
// payload; message content travels through the target's mailbox.
type Platform interface {
	// InterruptCore raises an inter-processor interrupt on target. The
	// call is fallible; the transport retries a bounded number of times.
	InterruptCore(target CoreID) error
}

// Clock is a monotonic millisecond clock. Deadlines for sync calls and
// barriers are computed against it.
type Clock interface {
	// NowMillis returns milliseconds from an arbitrary fixed origin.
	NowMillis() int64
}

// MonotonicClock is the default Clock, backed by the runtime's monotonic
// reading.
type MonotonicClock struct {
	origin time.Time
}

// NewMonotonicClock returns a MonotonicClock with its origin at the call.
func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{origin: time.Now()}
}

// NowMillis implements Clock.NowMillis.
func (c *MonotonicClock) NowMillis() int64 {
	return time.Since(c.origin).Milliseconds()
}

// Hooks bind message effects to the rest of the kernel. A nil hook makes
// the corresponding message a no-op. Hooks run on the core that received
// the interrupt and must not block.
type Hooks struct {
	// Reschedule is invoked for KindReschedule on the receiving core.
	Reschedule func(core CoreID)

	// TLBFlush is invoked for KindTLBFlush. all requests a full flush.
	TLBFlush func(core CoreID, addr, asid uint64, all bool)

	// Stop is invoked for KindStop before the core is marked offline.
	Stop func(core CoreID)

	// WakeUp is invoked for KindWakeUp.
	WakeUp func(core CoreID)

	// Generic is invoked for KindGeneric; its result becomes the sync
	// response when the message is correlated.
	Generic func(core CoreID, typ, data uint64) uint64
}
