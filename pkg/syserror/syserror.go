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

// Package syserror contains the error values returned by the signal and IPI
// subsystems, exported as error interface values. This allows for fast
// comparison with errors.Is when the comparand or return value is of type
// error.
package syserror

import (
	"errors"
)

var (
	// ErrProcessNotFound is returned when the target PID does not resolve
	// to a live task.
	ErrProcessNotFound = errors.New("process not found")

	// ErrInvalidProcess is returned for a task handle that is no longer
	// usable (e.g. mid-teardown).
	ErrInvalidProcess = errors.New("invalid process")

	// ErrInvalidSignal is returned for signal numbers outside 1..31.
	ErrInvalidSignal = errors.New("invalid signal")

	// ErrPermissionDenied is returned when an operation is not permitted
	// for the signal, such as installing a handler for SIGKILL.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidArgument is returned for malformed parameters (bad core
	// number, non-positive timeout, unknown sigprocmask how value).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrQueueFull is returned when a core's IPI mailbox is at capacity
	// and the message is not eligible for eviction-based admission. It is
	// never auto-retried: pending-signal state is set before transport is
	// attempted, so a full queue delays delivery but cannot lose it.
	ErrQueueFull = errors.New("IPI queue full")

	// ErrHardwareSend is returned when the platform interrupt primitive
	// keeps failing after bounded retry.
	ErrHardwareSend = errors.New("hardware IPI send failed")

	// ErrCoreOffline is returned when the target core is not online.
	ErrCoreOffline = errors.New("target core is not online")

	// ErrTimeout is a distinguished outcome, not a failure: a synchronous
	// IPI call or barrier wait reached its deadline with the remote side's
	// state unknown. It is never wrapped together with transport errors.
	ErrTimeout = errors.New("deadline elapsed")

	// ErrNoSuchBarrier is returned when a barrier ID does not resolve,
	// including after a completed or timed-out barrier has been torn down.
	ErrNoSuchBarrier = errors.New("no such barrier")

	// ErrBadAddress is returned when a user address falls outside the
	// sane user window.
	ErrBadAddress = errors.New("bad user address")

	// ErrBadFrame is returned by sigreturn for a malformed signal frame.
	// Callers fail closed: the task receives SIGSEGV rather than having
	// attacker-controlled stack content trusted.
	ErrBadFrame = errors.New("malformed signal frame")
)
