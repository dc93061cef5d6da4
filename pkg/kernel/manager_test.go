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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitwillsky/liteos/pkg/abi"
	"github.com/gitwillsky/liteos/pkg/kernel/ipi"
	"github.com/gitwillsky/liteos/pkg/syserror"
)

func TestSendSignalValidation(t *testing.T) {
	m, sched, _ := newTestKernel(t, 1)

	err := m.SendSignal(0, 7, abi.Signal(0))
	assert.ErrorIs(t, err, syserror.ErrInvalidSignal)
	err = m.SendSignal(0, 7, abi.Signal(42))
	assert.ErrorIs(t, err, syserror.ErrInvalidSignal)

	err = m.SendSignal(0, 7, abi.SIGTERM)
	assert.ErrorIs(t, err, syserror.ErrProcessNotFound)

	task := addTask(m, sched, 7, TaskZombie, 0)
	defer task.DecRef()
	err = m.SendSignal(0, 7, abi.SIGTERM)
	assert.ErrorIs(t, err, syserror.ErrInvalidProcess)
}

func TestStopThenContinueRestoresPriorStatus(t *testing.T) {
	m, sched, _ := newTestKernel(t, 1)
	task := addTask(m, sched, 7, TaskRunning, 0)
	defer task.DecRef()

	require.NoError(t, m.SendSignal(0, 7, abi.SIGSTOP))
	assert.Equal(t, TaskStopped, task.Status())

	require.NoError(t, m.SendSignal(0, 7, abi.SIGCONT))
	res := m.HandleSignalsSafe(task)
	assert.True(t, res.Keep)
	assert.Equal(t, TaskRunning, task.Status(), "SIGCONT restores exactly the prior status")
}

func TestDoubleStopKeepsFirstPriorStatus(t *testing.T) {
	m, sched, _ := newTestKernel(t, 1)
	task := addTask(m, sched, 7, TaskSleeping, 0)
	defer task.DecRef()

	require.NoError(t, m.SendSignal(0, 7, abi.SIGSTOP))
	require.NoError(t, m.SendSignal(0, 7, abi.SIGSTOP))
	assert.Equal(t, TaskStopped, task.Status())

	require.NoError(t, m.SendSignal(0, 7, abi.SIGCONT))
	m.HandleSignalsSafe(task)
	assert.Equal(t, TaskSleeping, task.Status())
}

func TestSigkillTerminatesDefaultExitCode(t *testing.T) {
	m, sched, _ := newTestKernel(t, 1)
	task := addTask(m, sched, 7, TaskRunning, 0)
	defer task.DecRef()

	require.NoError(t, m.SendSignal(0, 7, abi.SIGKILL))
	assert.True(t, task.SignalState().Pending().Contains(abi.SIGKILL))

	res := m.HandleSignalsSafe(task)
	assert.False(t, res.Keep)
	assert.True(t, res.Terminated)
	assert.Equal(t, int32(9), res.ExitCode)
	assert.Equal(t, TaskZombie, task.Status())
}

func TestSigkillReachesStoppedTask(t *testing.T) {
	m, sched, _ := newTestKernel(t, 1)
	task := addTask(m, sched, 7, TaskRunning, 0)
	defer task.DecRef()

	require.NoError(t, m.SendSignal(0, 7, abi.SIGSTOP))
	require.NoError(t, m.SendSignal(0, 7, abi.SIGKILL))
	assert.True(t, task.SignalState().Pending().Contains(abi.SIGKILL))

	res := m.HandleSignalsSafe(task)
	assert.True(t, res.Terminated)
	assert.Equal(t, int32(9), res.ExitCode)
}

func TestSigkillWakesSleeper(t *testing.T) {
	m, sched, _ := newTestKernel(t, 1)
	task := addTask(m, sched, 7, TaskSleeping, 0)
	defer task.DecRef()

	require.NoError(t, m.SendSignal(0, 7, abi.SIGKILL))
	assert.Equal(t, 1, task.wakeupCount())
}

func TestSleepingWakePolicy(t *testing.T) {
	m, sched, _ := newTestKernel(t, 1)
	task := addTask(m, sched, 7, TaskSleeping, 0)
	defer task.DecRef()

	// A stop-class signal leaves the sleeper asleep.
	require.NoError(t, m.SendSignal(0, 7, abi.SIGTSTP))
	assert.Equal(t, 0, task.wakeupCount())
	assert.Equal(t, TaskSleeping, task.Status())

	require.NoError(t, m.SendSignal(0, 7, abi.SIGTERM))
	assert.Equal(t, 1, task.wakeupCount())
}

func TestStoppedTaskQueuePolicy(t *testing.T) {
	m, sched, _ := newTestKernel(t, 1)
	task := addTask(m, sched, 7, TaskRunning, 0)
	defer task.DecRef()

	require.NoError(t, m.SendSignal(0, 7, abi.SIGSTOP))

	// A handled signal stays queued while the task is stopped.
	task.SignalState().SetDisposition(abi.SIGUSR1, abi.Disposition{
		Action:  abi.SignalActionHandler,
		Handler: 0x11000,
	})
	require.NoError(t, m.SendSignal(0, 7, abi.SIGUSR1))
	assert.Equal(t, TaskStopped, task.Status())
	assert.True(t, task.SignalState().Pending().Contains(abi.SIGUSR1))

	// A default-terminate signal brings the task back to act on it.
	require.NoError(t, m.SendSignal(0, 7, abi.SIGTERM))
	assert.Equal(t, TaskRunning, task.Status())
}

func TestCrossCoreNotification(t *testing.T) {
	m, sched, _ := newTestKernel(t, 2)
	task := addTask(m, sched, 7, TaskRunning, 1)
	defer task.DecRef()

	require.NoError(t, m.SendSignal(0, 7, abi.SIGTERM))
	assert.True(t, m.NeedsSignalCheck(1), "remote core must be flagged via reschedule IPI")
	assert.False(t, m.NeedsSignalCheck(0))
}

func TestSameCoreNotification(t *testing.T) {
	m, sched, _ := newTestKernel(t, 2)
	task := addTask(m, sched, 7, TaskRunning, 0)
	defer task.DecRef()

	require.NoError(t, m.SendSignal(0, 7, abi.SIGTERM))
	assert.True(t, m.NeedsSignalCheck(0))
}

func TestTaskCoreCacheFollowsEvents(t *testing.T) {
	m, _, _ := newTestKernel(t, 2)

	m.bus.Publish(TaskCreatedEvent{PID: 7, Core: 0})
	core, ok := m.FindTaskCore(7)
	require.True(t, ok)
	assert.Equal(t, ipi.CoreID(0), core)

	m.bus.Publish(TaskStatusChangedEvent{PID: 7, Old: TaskReady, New: TaskRunning, Core: 1})
	core, ok = m.FindTaskCore(7)
	require.True(t, ok)
	assert.Equal(t, ipi.CoreID(1), core)

	// Non-running transitions do not move the cache entry.
	m.bus.Publish(TaskStatusChangedEvent{PID: 7, Old: TaskRunning, New: TaskSleeping, Core: 0})
	core, ok = m.FindTaskCore(7)
	require.True(t, ok)
	assert.Equal(t, ipi.CoreID(1), core)

	m.bus.Publish(TaskExitedEvent{PID: 7, ExitCode: 0})
	_, ok = m.FindTaskCore(7)
	assert.False(t, ok)
}

func TestCurrentTaskWeakSlot(t *testing.T) {
	m, sched, _ := newTestKernel(t, 1)
	task := addTask(m, sched, 7, TaskRunning, 0)

	m.SetCurrentTask(0, task)
	got := m.CurrentTask(0)
	require.NotNil(t, got)
	assert.Equal(t, TaskID(7), got.ID())
	got.DecRef()

	// Dropping the last strong reference empties the slot; the weak
	// reference must not have kept the task alive.
	task.DecRef()
	assert.Nil(t, m.CurrentTask(0))

	m.ClearCurrentTask(0)
	assert.Nil(t, m.CurrentTask(0))
}

func TestCheckAndHandleSignalsUsesCurrentTask(t *testing.T) {
	m, sched, _ := newTestKernel(t, 1)
	task := addTask(m, sched, 7, TaskRunning, 0)
	defer task.DecRef()
	m.SetCurrentTask(0, task)
	defer m.ClearCurrentTask(0)

	_, ok := m.CheckAndHandleSignals(0)
	assert.True(t, ok)

	require.NoError(t, m.SendSignal(0, 7, abi.SIGKILL))
	res, ok := m.CheckAndHandleSignals(0)
	require.True(t, ok)
	assert.True(t, res.Terminated)
	assert.False(t, m.NeedsSignalCheck(0), "the check flag is consumed")
}

func TestDefaultIgnoreConsumed(t *testing.T) {
	m, sched, _ := newTestKernel(t, 1)
	task := addTask(m, sched, 7, TaskRunning, 0)
	defer task.DecRef()

	require.NoError(t, m.SendSignal(0, 7, abi.SIGCHLD))
	res := m.HandleSignalsSafe(task)
	assert.True(t, res.Keep)
	assert.Equal(t, abi.SignalSet(0), task.SignalState().Pending())
}
