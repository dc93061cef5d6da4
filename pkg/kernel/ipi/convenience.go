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

// SendReschedule asks target to reschedule.
func (m *Manager) SendReschedule(self, target CoreID) error {
	return m.Send(self, target, NewReschedule())
}

// BroadcastReschedule asks every other online core to reschedule and
// returns the number of cores reached.
func (m *Manager) BroadcastReschedule(self CoreID) int {
	return m.Broadcast(self, NewReschedule(), true)
}

// SendTLBFlush flushes one address translation on target.
func (m *Manager) SendTLBFlush(self, target CoreID, addr, asid uint64) error {
	return m.Send(self, target, NewTLBFlush(addr, asid))
}

// BroadcastTLBFlush flushes one address translation on every other online
// core. TLB shootdown for a shared mapping.
func (m *Manager) BroadcastTLBFlush(self CoreID, addr, asid uint64) int {
	return m.Broadcast(self, NewTLBFlush(addr, asid), true)
}

// BroadcastTLBFlushAll flushes every translation on every other online
// core.
func (m *Manager) BroadcastTLBFlushAll(self CoreID) int {
	return m.Broadcast(self, NewTLBFlushAll(), true)
}

// CallOn runs fn on target and waits for its result.
func (m *Manager) CallOn(self, target CoreID, fn func() uint64, timeout time.Duration) (uint64, error) {
	return m.SendSync(self, target, NewFunctionCall(fn), timeout)
}

// SendStop halts target.
func (m *Manager) SendStop(self, target CoreID) error {
	return m.Send(self, target, NewStop())
}

// BroadcastStop halts every other online core. Used for coordinated
// shutdown; the caller stops itself last.
func (m *Manager) BroadcastStop(self CoreID) int {
	return m.Broadcast(self, NewStop(), true)
}

// SendWakeUp wakes target from idle.
func (m *Manager) SendWakeUp(self, target CoreID) error {
	return m.Send(self, target, NewWakeUp())
}
