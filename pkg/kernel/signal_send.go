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
	"fmt"

	"go.uber.org/zap"

	"github.com/gitwillsky/liteos/pkg/abi"
	"github.com/gitwillsky/liteos/pkg/kernel/ipi"
	"github.com/gitwillsky/liteos/pkg/syserror"
)

// SendSignal posts sig to the task identified by pid. from is the sending
// core; it decides whether cross-core notification is needed.
//
// The pending bit is always set before any transport is attempted, so a
// lost or delayed IPI delays delivery but never loses it: the target picks
// the signal up at its next safe-context check.
func (m *Manager) SendSignal(from ipi.CoreID, pid TaskID, sig abi.Signal) error {
	if !sig.IsValid() {
		return fmt.Errorf("%w: %d", syserror.ErrInvalidSignal, int32(sig))
	}
	t, err := m.sched.FindTaskByID(pid)
	if err != nil {
		return err
	}
	defer t.DecRef()
	if t.Status() == TaskZombie {
		return fmt.Errorf("%w: task %d has exited", syserror.ErrInvalidProcess, pid)
	}

	// Uncatchable fast paths. SIGKILL only marks pending and wakes the
	// target; actual termination flows through the ordinary delivery
	// loop so cleanup stays centralized. SIGSTOP transitions status
	// directly, recording what to restore.
	switch sig {
	case abi.SIGKILL:
		t.SignalState().AddPending(sig)
		switch t.Status() {
		case TaskSleeping:
			t.Wakeup()
		case TaskStopped:
			m.continueTask(t)
		}
		m.notifyTask(from, t)
		return nil
	case abi.SIGSTOP:
		m.stopTask(t)
		return nil
	}

	t.SignalState().AddPending(sig)

	switch t.Status() {
	case TaskRunning:
		m.notifyTask(from, t)
	case TaskSleeping:
		// A stop-class signal leaves a sleeper asleep; it stops when
		// it wakes naturally.
		if !sig.IsStopSignal() {
			t.Wakeup()
		}
	case TaskStopped:
		// Only a continue-class or default-terminate signal brings a
		// stopped task back; everything else stays queued until then.
		d := t.SignalState().Disposition(sig)
		if sig.IsContinueSignal() || d.Action == abi.SignalActionTerminate {
			m.continueTask(t)
		}
	}
	return nil
}

// notifyTask nudges the core a running task occupies so it checks signals
// at its next safe point. Transport failure is logged, not propagated:
// pending state is already set and delivery is merely delayed.
func (m *Manager) notifyTask(from ipi.CoreID, t Task) {
	core, ok := m.FindTaskCore(t.ID())
	if !ok {
		return
	}
	if core == from {
		m.MarkSignalCheck(from)
		return
	}
	if err := m.transport.SendReschedule(from, core); err != nil {
		m.log.Warn("signal notification IPI failed",
			zap.Int32("pid", int32(t.ID())),
			zap.Int("core", int(core)),
			zap.Error(err))
	}
}
