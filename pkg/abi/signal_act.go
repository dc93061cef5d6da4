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

package abi

// SignalAction is the reaction taken when a signal is delivered.
type SignalAction int

const (
	// SignalActionIgnore discards the signal.
	SignalActionIgnore SignalAction = iota

	// SignalActionTerminate terminates the task.
	SignalActionTerminate

	// SignalActionStop stops the task until it is continued.
	SignalActionStop

	// SignalActionContinue resumes a stopped task.
	SignalActionContinue

	// SignalActionHandler transfers control to a user handler.
	SignalActionHandler
)

// String implements fmt.Stringer.String.
func (a SignalAction) String() string {
	switch a {
	case SignalActionIgnore:
		return "ignore"
	case SignalActionTerminate:
		return "terminate"
	case SignalActionStop:
		return "stop"
	case SignalActionContinue:
		return "continue"
	case SignalActionHandler:
		return "handler"
	default:
		return "unknown"
	}
}

// Disposition is the configured reaction for one (task, signal) pair,
// equivalent to struct sigaction. A signal with no disposition installed
// takes the signal's default.
type Disposition struct {
	// Action selects the reaction. Handler is valid only when Action is
	// SignalActionHandler.
	Action SignalAction

	// Handler is the user handler address.
	Handler uint64

	// Mask is additionally blocked while the handler runs.
	Mask SignalSet

	// Flags holds SA_* bits.
	Flags uint32
}

// DefaultDisposition returns the disposition taken for sig when none is
// installed.
func DefaultDisposition(sig Signal) Disposition {
	return Disposition{Action: sig.DefaultAction()}
}

// 'how' values for sigprocmask.
const (
	// SIG_BLOCK adds the signals in the set to the blocked mask.
	SIG_BLOCK = 0

	// SIG_UNBLOCK removes the signals in the set from the blocked mask.
	SIG_UNBLOCK = 1

	// SIG_SETMASK replaces the blocked mask with the set.
	SIG_SETMASK = 2
)

// Special handler values for sigaction.
const (
	// SIG_DFL performs the default action.
	SIG_DFL = 0

	// SIG_IGN ignores the signal.
	SIG_IGN = 1
)

// Signal action flags for sigaction.
const (
	SA_NOCLDSTOP = 0x00000001
	SA_NOCLDWAIT = 0x00000002
	SA_SIGINFO   = 0x00000004
	SA_ONSTACK   = 0x08000000
	SA_RESTART   = 0x10000000
	SA_NODEFER   = 0x40000000
	SA_RESETHAND = 0x80000000
)
