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

// Package abi describes the application binary interface of the kernel:
// signal numbers, signal sets, and signal dispositions as user space sees
// them.
package abi

import (
	"fmt"

	"github.com/gitwillsky/liteos/pkg/bits"
)

const (
	// SignalMaximum is the highest valid signal number.
	SignalMaximum = 31

	// FirstSignal is the lowest valid signal number.
	FirstSignal = 1
)

// Signal is a signal number.
type Signal int32

// IsValid returns true if s is a valid signal. (0 is not considered valid;
// interfaces special-casing signal number 0 should check for 0 first before
// asserting validity.)
func (s Signal) IsValid() bool {
	return s >= FirstSignal && s <= SignalMaximum
}

// Index returns the index for signal s into arrays of signals (e.g. signal
// masks, handler tables).
//
// Preconditions: s.IsValid().
func (s Signal) Index() int {
	return int(s - 1)
}

// Signals.
const (
	SIGHUP    = Signal(1)
	SIGINT    = Signal(2)
	SIGQUIT   = Signal(3)
	SIGILL    = Signal(4)
	SIGTRAP   = Signal(5)
	SIGABRT   = Signal(6)
	SIGBUS    = Signal(7)
	SIGFPE    = Signal(8)
	SIGKILL   = Signal(9)
	SIGUSR1   = Signal(10)
	SIGSEGV   = Signal(11)
	SIGUSR2   = Signal(12)
	SIGPIPE   = Signal(13)
	SIGALRM   = Signal(14)
	SIGTERM   = Signal(15)
	SIGSTKFLT = Signal(16)
	SIGCHLD   = Signal(17)
	SIGCONT   = Signal(18)
	SIGSTOP   = Signal(19)
	SIGTSTP   = Signal(20)
	SIGTTIN   = Signal(21)
	SIGTTOU   = Signal(22)
	SIGURG    = Signal(23)
	SIGXCPU   = Signal(24)
	SIGXFSZ   = Signal(25)
	SIGVTALRM = Signal(26)
	SIGPROF   = Signal(27)
	SIGWINCH  = Signal(28)
	SIGIO     = Signal(29)
	SIGPWR    = Signal(30)
	SIGSYS    = Signal(31)
)

// IsUncatchable returns true if s cannot be caught, blocked, or ignored.
func (s Signal) IsUncatchable() bool {
	return s == SIGKILL || s == SIGSTOP
}

// IsStopSignal returns true if s stops the task by default.
func (s Signal) IsStopSignal() bool {
	switch s {
	case SIGSTOP, SIGTSTP, SIGTTIN, SIGTTOU:
		return true
	}
	return false
}

// IsContinueSignal returns true if s continues a stopped task.
func (s Signal) IsContinueSignal() bool {
	return s == SIGCONT
}

// DefaultAction returns the action taken for s when no handler is installed.
func (s Signal) DefaultAction() SignalAction {
	switch s {
	case SIGCHLD, SIGURG, SIGWINCH:
		return SignalActionIgnore
	case SIGSTOP, SIGTSTP, SIGTTIN, SIGTTOU:
		return SignalActionStop
	case SIGCONT:
		return SignalActionContinue
	default:
		return SignalActionTerminate
	}
}

// DefaultExitCode returns the exit code reported when s terminates a task by
// default action. The convention is the signal number itself.
func (s Signal) DefaultExitCode() int32 {
	return int32(s)
}

// String implements fmt.Stringer.String.
func (s Signal) String() string {
	if !s.IsValid() {
		return fmt.Sprintf("signal %d", int32(s))
	}
	return signalNames[s.Index()]
}

var signalNames = [SignalMaximum]string{
	"SIGHUP", "SIGINT", "SIGQUIT", "SIGILL", "SIGTRAP", "SIGABRT",
	"SIGBUS", "SIGFPE", "SIGKILL", "SIGUSR1", "SIGSEGV", "SIGUSR2",
	"SIGPIPE", "SIGALRM", "SIGTERM", "SIGSTKFLT", "SIGCHLD", "SIGCONT",
	"SIGSTOP", "SIGTSTP", "SIGTTIN", "SIGTTOU", "SIGURG", "SIGXCPU",
	"SIGXFSZ", "SIGVTALRM", "SIGPROF", "SIGWINCH", "SIGIO", "SIGPWR",
	"SIGSYS",
}

// SignalSet is a signal mask with a bit corresponding to each signal.
type SignalSet uint64

// MakeSignalSet returns a SignalSet with the bit corresponding to each of
// the given signals set.
func MakeSignalSet(sigs ...Signal) SignalSet {
	indices := make([]int, len(sigs))
	for i, sig := range sigs {
		indices[i] = sig.Index()
	}
	return SignalSet(bits.Mask64(indices...))
}

// SignalSetOf returns a SignalSet with a single signal set.
func SignalSetOf(sig Signal) SignalSet {
	return SignalSet(bits.MaskOf64(sig.Index()))
}

// UncatchableSignals is the set of signals that may not be blocked, caught,
// or ignored.
var UncatchableSignals = MakeSignalSet(SIGKILL, SIGSTOP)

// StopSignals is the set of signals whose default action stops the task.
var StopSignals = MakeSignalSet(SIGSTOP, SIGTSTP, SIGTTIN, SIGTTOU)

// Contains returns true if sig is in the set.
func (s SignalSet) Contains(sig Signal) bool {
	return bits.IsAnyOn64(uint64(s), bits.MaskOf64(sig.Index()))
}

// Add adds sig to the set.
func (s *SignalSet) Add(sig Signal) {
	*s |= SignalSetOf(sig)
}

// Remove removes sig from the set.
func (s *SignalSet) Remove(sig Signal) {
	*s &^= SignalSetOf(sig)
}

// Empty returns true if no signal is in the set.
func (s SignalSet) Empty() bool {
	return s == 0
}

// Union returns the set of signals in either s or other.
func (s SignalSet) Union(other SignalSet) SignalSet {
	return s | other
}

// Intersection returns the set of signals in both s and other.
func (s SignalSet) Intersection(other SignalSet) SignalSet {
	return s & other
}

// Difference returns the set of signals in s but not in other.
func (s SignalSet) Difference(other SignalSet) SignalSet {
	return s &^ other
}

// First returns the lowest-numbered signal in the set, if any. The
// lowest-number-first order is the delivery tie-break for simultaneously
// deliverable signals.
func (s SignalSet) First() (Signal, bool) {
	if s == 0 {
		return 0, false
	}
	return Signal(bits.TrailingZeros64(uint64(s)) + 1), true
}

// Pop removes and returns the lowest-numbered signal in the set.
func (s *SignalSet) Pop() (Signal, bool) {
	sig, ok := s.First()
	if ok {
		s.Remove(sig)
	}
	return sig, ok
}

// ForEachSignal invokes f for each signal in the given set, lowest first.
func ForEachSignal(mask SignalSet, f func(sig Signal)) {
	bits.ForEachSetBit64(uint64(mask), func(i int) {
		f(Signal(i + 1))
	})
}
