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
	"github.com/gitwillsky/liteos/pkg/abi"
	"github.com/gitwillsky/liteos/pkg/kernel/ipi"
)

// TaskCreatedEvent is published when a task becomes known to the kernel.
type TaskCreatedEvent struct {
	PID  TaskID
	Core ipi.CoreID
}

// EventName implements events.Event.EventName.
func (TaskCreatedEvent) EventName() string { return "task-created" }

// TaskStatusChangedEvent is published by the manager's status choke point
// on every transition.
type TaskStatusChangedEvent struct {
	PID TaskID
	Old TaskStatus
	New TaskStatus

	// Core is the core the task runs on when New is TaskRunning;
	// otherwise it is the last core recorded for the task.
	Core ipi.CoreID
}

// EventName implements events.Event.EventName.
func (TaskStatusChangedEvent) EventName() string { return "task-status-changed" }

// TaskExitedEvent is published when a task terminates.
type TaskExitedEvent struct {
	PID      TaskID
	ExitCode int32
}

// EventName implements events.Event.EventName.
func (TaskExitedEvent) EventName() string { return "task-exited" }

// SignalDeliveredEvent is published when a signal's disposition has been
// acted on (not when it is merely marked pending).
type SignalDeliveredEvent struct {
	PID    TaskID
	Signal abi.Signal
	Action abi.SignalAction
}

// EventName implements events.Event.EventName.
func (SignalDeliveredEvent) EventName() string { return "signal-delivered" }
