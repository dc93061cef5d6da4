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
	"github.com/gitwillsky/liteos/pkg/arch"
	"github.com/gitwillsky/liteos/pkg/kernel/ipi"
	"github.com/gitwillsky/liteos/pkg/syserror"
)

// DeliveryResult reports what the delivery loop decided for a task.
type DeliveryResult struct {
	// Keep is true if the task may keep running. It is false after a
	// terminate or stop disposition.
	Keep bool

	// Terminated is true if the task was terminated; ExitCode is valid
	// only then.
	Terminated bool
	ExitCode   int32
}

// HandleSignalsSafe runs the delivery loop in a safe context (scheduler
// tick, syscall return without a trap handle). Handler dispositions cannot
// be serviced here: the signal is re-queued and the needs-trap-context
// flag set, deferring to HandleSignalsWithContext on the next trap return.
func (m *Manager) HandleSignalsSafe(t Task) DeliveryResult {
	return m.deliverLoop(t, nil)
}

// HandleSignalsWithContext runs the delivery loop on trap return, with the
// live register context. Handler dispositions are fully serviced: the
// signal frame is pushed and tc is rewritten to enter the handler.
func (m *Manager) HandleSignalsWithContext(t Task, tc *arch.TrapContext) DeliveryResult {
	t.SignalState().SetNeedsTrapContext(false)
	return m.deliverLoop(t, tc)
}

func (m *Manager) deliverLoop(t Task, tc *arch.TrapContext) DeliveryResult {
	ss := t.SignalState()
	for {
		sig, ok := ss.TakeDeliverable()
		if !ok {
			return DeliveryResult{Keep: true}
		}
		d := ss.Disposition(sig)

		switch d.Action {
		case abi.SignalActionIgnore:
			continue

		case abi.SignalActionTerminate:
			m.terminateTask(t, sig.DefaultExitCode())
			m.publishDelivered(t, sig, d.Action)
			return DeliveryResult{Terminated: true, ExitCode: sig.DefaultExitCode()}

		case abi.SignalActionStop:
			m.stopTask(t)
			m.publishDelivered(t, sig, d.Action)
			return DeliveryResult{}

		case abi.SignalActionContinue:
			m.continueTask(t)
			m.publishDelivered(t, sig, d.Action)
			continue

		case abi.SignalActionHandler:
			if tc == nil {
				// Register-file rewriting needs a live trap
				// context; defer to the trap-return path.
				ss.AddPending(sig)
				ss.SetNeedsTrapContext(true)
				return DeliveryResult{Keep: true}
			}
			if err := m.setupHandler(t, tc, sig, d); err != nil {
				m.log.Warn("signal handler setup failed",
					zap.Int32("pid", int32(t.ID())),
					zap.Stringer("sig", sig),
					zap.Error(err))
				m.terminateTask(t, abi.SIGSEGV.DefaultExitCode())
				return DeliveryResult{Terminated: true, ExitCode: abi.SIGSEGV.DefaultExitCode()}
			}
			m.publishDelivered(t, sig, d.Action)
			return DeliveryResult{Keep: true}
		}
	}
}

// setupHandler builds the signal frame on the user stack and rewrites tc
// so the task resumes inside the handler.
func (m *Manager) setupHandler(t Task, tc *arch.TrapContext, sig abi.Signal, d abi.Disposition) error {
	frame := &arch.SignalFrame{
		Regs:       tc.Regs,
		PC:         tc.PC,
		Status:     tc.Status,
		Signo:      uint32(sig),
		ReturnAddr: m.cfg.SigreturnTrampoline,
	}
	addr, err := arch.PushSignalFrame(t.Memory(), tc.StackPointer(), frame)
	if err != nil {
		return err
	}

	extra := d.Mask
	if d.Flags&abi.SA_NODEFER == 0 {
		extra.Add(sig)
	}
	ss := t.SignalState()
	ss.EnterHandler(extra)
	if d.Flags&abi.SA_RESETHAND != 0 {
		ss.ClearDisposition(sig)
	}

	tc.PC = d.Handler
	tc.SetStackPointer(addr)
	tc.Regs[arch.RegA0] = uint64(sig)
	tc.Regs[arch.RegRA] = m.cfg.SigreturnTrampoline
	return nil
}

// Sigreturn restores the register context saved by setupHandler from the
// frame at the current stack pointer and exits the handler. A malformed
// frame is rejected outright and the task receives SIGSEGV; corrupted
// stack content is never trusted.
func (m *Manager) Sigreturn(t Task, tc *arch.TrapContext) error {
	frame, err := arch.LoadSignalFrame(t.Memory(), tc.StackPointer())
	if err != nil {
		m.log.Warn("rejecting malformed signal frame",
			zap.Int32("pid", int32(t.ID())),
			zap.Error(err))
		t.SignalState().AddPending(abi.SIGSEGV)
		return fmt.Errorf("%w: sigreturn for task %d", syserror.ErrBadFrame, t.ID())
	}

	tc.Regs = frame.Regs
	tc.PC = frame.PC
	tc.Status = (tc.Status &^ arch.StatusRestoreMask) | (frame.Status & arch.StatusRestoreMask)
	t.SignalState().ExitHandler()
	return nil
}

// CheckAndHandleSignals is the safe-context poll for core's current task,
// called at scheduler tick or yield. It clears the core's check flag and
// runs the safe delivery loop. The bool result is false when the core has
// no current task.
func (m *Manager) CheckAndHandleSignals(core ipi.CoreID) (DeliveryResult, bool) {
	m.clearSignalCheck(core)
	t := m.CurrentTask(core)
	if t == nil {
		return DeliveryResult{Keep: true}, false
	}
	defer t.DecRef()
	return m.HandleSignalsSafe(t), true
}

// CheckAndHandleSignalsWithContext is the trap-return poll, called before
// resuming user mode with the live register context.
func (m *Manager) CheckAndHandleSignalsWithContext(core ipi.CoreID, tc *arch.TrapContext) (DeliveryResult, bool) {
	m.clearSignalCheck(core)
	t := m.CurrentTask(core)
	if t == nil {
		return DeliveryResult{Keep: true}, false
	}
	defer t.DecRef()
	return m.HandleSignalsWithContext(t, tc), true
}

func (m *Manager) clearSignalCheck(core ipi.CoreID) {
	if int(core) >= 0 && int(core) < len(m.needsCheck) {
		m.needsCheck[core].Store(false)
	}
}

func (m *Manager) publishDelivered(t Task, sig abi.Signal, action abi.SignalAction) {
	m.bus.Publish(SignalDeliveredEvent{PID: t.ID(), Signal: sig, Action: action})
}
