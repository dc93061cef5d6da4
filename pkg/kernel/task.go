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

// Package kernel implements multi-core signal delivery: per-task signal
// state, the signal manager's routing and delivery paths, and the glue
// binding them to the IPI transport and the event bus.
package kernel

import (
	"fmt"

	"github.com/gitwillsky/liteos/pkg/arch"
	"github.com/gitwillsky/liteos/pkg/refs"
)

// TaskID identifies a task (a PID).
type TaskID int32

// TaskStatus is a task's scheduling state.
type TaskStatus int

const (
	// TaskReady means the task is runnable but not running.
	TaskReady TaskStatus = iota

	// TaskRunning means the task is executing on some core.
	TaskRunning

	// TaskSleeping means the task is blocked waiting for an event.
	TaskSleeping

	// TaskStopped means the task was stopped by a stop signal and waits
	// for SIGCONT.
	TaskStopped

	// TaskZombie means the task has exited and awaits reaping.
	TaskZombie
)

// String implements fmt.Stringer.String.
func (s TaskStatus) String() string {
	switch s {
	case TaskReady:
		return "ready"
	case TaskRunning:
		return "running"
	case TaskSleeping:
		return "sleeping"
	case TaskStopped:
		return "stopped"
	case TaskZombie:
		return "zombie"
	default:
		return fmt.Sprintf("TaskStatus(%d)", int(s))
	}
}

// Task is the signal subsystem's view of a task. Implementations embed
// refs.AtomicRefCount; the manager reaches tasks only through counted
// handles, with weak references for notification-only links such as a
// core's current-task slot.
type Task interface {
	refs.RefCounter

	// ID returns the task's PID.
	ID() TaskID

	// Status returns the task's scheduling state.
	Status() TaskStatus

	// Wakeup interrupts the task's sleep, if any.
	Wakeup()

	// SignalState returns the task's signal state. The returned pointer
	// is valid for the task's lifetime.
	SignalState() *SignalState

	// Memory returns the task's user address space.
	Memory() arch.Memory
}

// Scheduler is the external scheduling collaborator. The signal subsystem
// never manipulates run queues itself; every status transition goes through
// SetTaskStatus.
type Scheduler interface {
	// FindTaskByID returns the task with one reference taken, or
	// syserror.ErrProcessNotFound.
	FindTaskByID(id TaskID) (Task, error)

	// SetTaskStatus moves t between scheduler queues.
	SetTaskStatus(t Task, status TaskStatus)
}
