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

package kernel

import (
	"sync"

	"github.com/gitwillsky/liteos/pkg/abi"
)

// SignalState is a task's signal bookkeeping: pending and blocked sets,
// the handler table, and the single-level handler-nesting mask snapshot.
// It is owned by its task; the manager locks it per-task and never holds
// two tasks' locks at once.
type SignalState struct {
	mu sync.Mutex

	// pending is the set of delivered-but-unhandled signals. Signals are
	// not queued; a second instance of a pending signal is lost.
	pending abi.SignalSet

	// blocked is the set of signals whose delivery is deferred. SIGKILL
	// and SIGSTOP never appear in it.
	blocked abi.SignalSet

	// handlers maps signals to installed dispositions; a missing entry
	// means the signal's default.
	handlers map[abi.Signal]abi.Disposition

	// inHandler is set while a user handler runs; savedMask is the
	// blocked set snapshot taken on first handler entry. Nesting is
	// bounded to one level: re-entrant entries only extend blocked.
	inHandler bool
	savedMask abi.SignalSet

	// needsTrapContext is set when a deliverable signal has a user
	// handler and delivery must wait for a live trap context.
	needsTrapContext bool
}

// NewSignalState returns an empty SignalState.
func NewSignalState() *SignalState {
	return &SignalState{handlers: make(map[abi.Signal]abi.Disposition)}
}

// AddPending marks sig pending. Idempotent.
func (ss *SignalState) AddPending(sig abi.Signal) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.pending.Add(sig)
}

// Pending returns the pending set.
func (ss *SignalState) Pending() abi.SignalSet {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.pending
}

// Blocked returns the blocked set.
func (ss *SignalState) Blocked() abi.SignalSet {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.blocked
}

// SetBlocked replaces the blocked set. SIGKILL and SIGSTOP are stripped;
// they can never be blocked.
func (ss *SignalState) SetBlocked(set abi.SignalSet) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.blocked = set.Difference(abi.UncatchableSignals)
}

// NextDeliverable returns the lowest-numbered signal that is pending and
// not blocked, without removing it.
func (ss *SignalState) NextDeliverable() (abi.Signal, bool) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.pending.Difference(ss.blocked).First()
}

// TakeDeliverable removes and returns the lowest-numbered deliverable
// signal. Lowest-number-first is the tie-break among simultaneously
// deliverable signals, not insertion order.
func (ss *SignalState) TakeDeliverable() (abi.Signal, bool) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	sig, ok := ss.pending.Difference(ss.blocked).First()
	if ok {
		ss.pending.Remove(sig)
	}
	return sig, ok
}

// Disposition returns the reaction configured for sig, or the signal's
// default when none is installed. SIGKILL and SIGSTOP always resolve to
// their defaults regardless of the handler table.
func (ss *SignalState) Disposition(sig abi.Signal) abi.Disposition {
	if sig.IsUncatchable() {
		return abi.DefaultDisposition(sig)
	}
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if d, ok := ss.handlers[sig]; ok {
		return d
	}
	return abi.DefaultDisposition(sig)
}

// SetDisposition installs d for sig and returns the previous disposition.
func (ss *SignalState) SetDisposition(sig abi.Signal, d abi.Disposition) abi.Disposition {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	old, ok := ss.handlers[sig]
	if !ok {
		old = abi.DefaultDisposition(sig)
	}
	ss.handlers[sig] = d
	return old
}

// ClearDisposition restores sig to its default reaction and returns the
// previous disposition.
func (ss *SignalState) ClearDisposition(sig abi.Signal) abi.Disposition {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	old, ok := ss.handlers[sig]
	delete(ss.handlers, sig)
	if !ok {
		old = abi.DefaultDisposition(sig)
	}
	return old
}

// EnterHandler records handler entry. On first entry the current blocked
// mask is snapshotted; extra (stripped of SIGKILL/SIGSTOP) is then OR'd
// into blocked. Re-entrant calls while already inside a handler only
// extend the mask; nesting is bounded to one level.
func (ss *SignalState) EnterHandler(extra abi.SignalSet) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if !ss.inHandler {
		ss.savedMask = ss.blocked
		ss.inHandler = true
	}
	ss.blocked = ss.blocked.Union(extra.Difference(abi.UncatchableSignals))
}

// ExitHandler restores the mask snapshotted by the first EnterHandler and
// clears the in-handler flag. No-op outside a handler.
func (ss *SignalState) ExitHandler() {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if !ss.inHandler {
		return
	}
	ss.blocked = ss.savedMask
	ss.savedMask = 0
	ss.inHandler = false
}

// InHandler returns whether the task is inside a user handler.
func (ss *SignalState) InHandler() bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.inHandler
}

// SetNeedsTrapContext flags that a pending signal needs a live trap
// context to deliver.
func (ss *SignalState) SetNeedsTrapContext(v bool) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.needsTrapContext = v
}

// NeedsTrapContext reports whether delivery is waiting for a trap context.
func (ss *SignalState) NeedsTrapContext() bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.needsTrapContext
}

// ResetForExec clears all signal state for exec: pending, blocked, the
// handler table, and handler-nesting state.
func (ss *SignalState) ResetForExec() {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.pending = 0
	ss.blocked = 0
	ss.handlers = make(map[abi.Signal]abi.Disposition)
	ss.inHandler = false
	ss.savedMask = 0
	ss.needsTrapContext = false
}

// CloneForFork returns the child's signal state: empty pending, copied
// blocked mask and handler table, reset nesting state.
func (ss *SignalState) CloneForFork() *SignalState {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	child := NewSignalState()
	child.blocked = ss.blocked
	for sig, d := range ss.handlers {
		child.handlers[sig] = d
	}
	return child
}
