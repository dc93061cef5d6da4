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
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/gitwillsky/liteos/pkg/kernel/events"
	"github.com/gitwillsky/liteos/pkg/kernel/ipi"
	"github.com/gitwillsky/liteos/pkg/refs"
)

// DefaultSigreturnTrampoline is the user address handlers return to when
// no trampoline is configured. It must be mapped with a sigreturn stub in
// every user address space.
const DefaultSigreturnTrampoline = uint64(0x7ffff000)

// Config parameterizes a Manager.
type Config struct {
	// Cores is the number of physical cores.
	Cores int

	// SigreturnTrampoline is the return address written into signal
	// frames. Zero selects DefaultSigreturnTrampoline.
	SigreturnTrampoline uint64
}

// Manager is the global signal routing and delivery policy. It is
// constructed once by explicit init during boot and reached through a
// narrow method surface so tests can substitute an instance.
type Manager struct {
	cfg       Config
	log       *zap.Logger
	sched     Scheduler
	transport *ipi.Manager
	bus       *events.Bus

	// mu guards the task-location cache and the prior-status records.
	// It is never held while a task's SignalState lock is held.
	mu sync.Mutex

	// taskCores caches which core each task last ran on, maintained by
	// the event-bus listener. It is advisory: a stale entry costs one
	// misdirected IPI, nothing more.
	taskCores map[TaskID]ipi.CoreID

	// prevStatus records the status a task had before a stop signal
	// transitioned it to Stopped, so SIGCONT can restore it exactly.
	prevStatus map[TaskID]TaskStatus

	// needsCheck is the per-core "check signals at next safe point"
	// flag, set by the reschedule IPI effect.
	needsCheck []atomic.Bool

	// current holds each core's current-task slot as a weak reference:
	// the slot must reach the task without extending its lifetime.
	current []currentSlot

	unsubscribe func()
}

type currentSlot struct {
	mu  sync.Mutex
	ref *refs.WeakRef
}

// NewManager returns a Manager wired to the given collaborators and
// subscribes its task-location listener on bus.
func NewManager(cfg Config, sched Scheduler, transport *ipi.Manager, bus *events.Bus, log *zap.Logger) *Manager {
	if cfg.Cores <= 0 {
		cfg.Cores = transport.Cores()
	}
	if cfg.SigreturnTrampoline == 0 {
		cfg.SigreturnTrampoline = DefaultSigreturnTrampoline
	}
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		cfg:        cfg,
		log:        log,
		sched:      sched,
		transport:  transport,
		bus:        bus,
		taskCores:  make(map[TaskID]ipi.CoreID),
		prevStatus: make(map[TaskID]TaskStatus),
		needsCheck: make([]atomic.Bool, cfg.Cores),
		current:    make([]currentSlot, cfg.Cores),
	}
	m.unsubscribe = bus.Subscribe(m.onEvent)
	return m
}

// Close unsubscribes the manager from the event bus and drops the per-core
// current-task references.
func (m *Manager) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	for core := range m.current {
		m.ClearCurrentTask(ipi.CoreID(core))
	}
}

// onEvent maintains the task→core cache from published lifecycle events.
func (m *Manager) onEvent(e events.Event) {
	switch ev := e.(type) {
	case TaskCreatedEvent:
		m.UpdateTaskOnCore(ev.PID, ev.Core)
	case TaskStatusChangedEvent:
		if ev.New == TaskRunning {
			m.UpdateTaskOnCore(ev.PID, ev.Core)
		}
	case TaskExitedEvent:
		m.ClearTaskOnCore(ev.PID)
	}
}

// UpdateTaskOnCore records that pid runs on core.
func (m *Manager) UpdateTaskOnCore(pid TaskID, core ipi.CoreID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.taskCores[pid] = core
}

// ClearTaskOnCore forgets pid's core, along with any recorded
// prior-to-stop status.
func (m *Manager) ClearTaskOnCore(pid TaskID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.taskCores, pid)
	delete(m.prevStatus, pid)
}

// FindTaskCore returns the core pid last ran on.
func (m *Manager) FindTaskCore(pid TaskID) (ipi.CoreID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	core, ok := m.taskCores[pid]
	return core, ok
}

// SetCurrentTask points core's current-task slot at t. The slot holds a
// weak reference only.
func (m *Manager) SetCurrentTask(core ipi.CoreID, t Task) {
	if int(core) < 0 || int(core) >= len(m.current) {
		return
	}
	s := &m.current[core]
	s.mu.Lock()
	old := s.ref
	s.ref = refs.NewWeakRef(t, nil)
	s.mu.Unlock()
	if old != nil {
		old.Drop()
	}
}

// ClearCurrentTask empties core's current-task slot.
func (m *Manager) ClearCurrentTask(core ipi.CoreID) {
	if int(core) < 0 || int(core) >= len(m.current) {
		return
	}
	s := &m.current[core]
	s.mu.Lock()
	old := s.ref
	s.ref = nil
	s.mu.Unlock()
	if old != nil {
		old.Drop()
	}
}

// CurrentTask returns core's current task with one reference taken, or nil
// if the slot is empty or the task is already gone.
func (m *Manager) CurrentTask(core ipi.CoreID) Task {
	if int(core) < 0 || int(core) >= len(m.current) {
		return nil
	}
	s := &m.current[core]
	s.mu.Lock()
	ref := s.ref
	s.mu.Unlock()
	if ref == nil {
		return nil
	}
	rc := ref.Get()
	if rc == nil {
		return nil
	}
	return rc.(Task)
}

// MarkSignalCheck flags core to run a signal check at its next safe point.
// It is the reschedule IPI's effect; wire it into ipi.Hooks.Reschedule.
func (m *Manager) MarkSignalCheck(core ipi.CoreID) {
	if int(core) >= 0 && int(core) < len(m.needsCheck) {
		m.needsCheck[core].Store(true)
	}
}

// NeedsSignalCheck reports whether core has a signal check outstanding.
func (m *Manager) NeedsSignalCheck(core ipi.CoreID) bool {
	return int(core) >= 0 && int(core) < len(m.needsCheck) && m.needsCheck[core].Load()
}

// setTaskStatus is the single status-update choke point: every transition
// the signal subsystem initiates goes through it so scheduler queues and
// event subscribers stay consistent.
func (m *Manager) setTaskStatus(t Task, status TaskStatus) {
	old := t.Status()
	if old == status {
		return
	}
	m.sched.SetTaskStatus(t, status)
	core, _ := m.FindTaskCore(t.ID())
	m.bus.Publish(TaskStatusChangedEvent{PID: t.ID(), Old: old, New: status, Core: core})
	m.log.Debug("task status changed",
		zap.Int32("pid", int32(t.ID())),
		zap.Stringer("old", old),
		zap.Stringer("new", status))
}

// stopTask transitions t to Stopped, recording the status to restore on
// SIGCONT. Stopping an already-stopped task keeps the original record.
func (m *Manager) stopTask(t Task) {
	old := t.Status()
	if old == TaskStopped {
		return
	}
	m.mu.Lock()
	if _, ok := m.prevStatus[t.ID()]; !ok {
		m.prevStatus[t.ID()] = old
	}
	m.mu.Unlock()
	m.setTaskStatus(t, TaskStopped)
}

// continueTask restores a stopped task to exactly the status it had before
// it was stopped, defaulting to Ready when no record exists. No-op for a
// task that is not stopped.
func (m *Manager) continueTask(t Task) {
	if t.Status() != TaskStopped {
		return
	}
	m.mu.Lock()
	prev, ok := m.prevStatus[t.ID()]
	delete(m.prevStatus, t.ID())
	m.mu.Unlock()
	if !ok {
		prev = TaskReady
	}
	m.setTaskStatus(t, prev)
}

// terminateTask transitions t to Zombie and publishes its exit.
func (m *Manager) terminateTask(t Task, exitCode int32) {
	m.setTaskStatus(t, TaskZombie)
	m.bus.Publish(TaskExitedEvent{PID: t.ID(), ExitCode: exitCode})
	m.log.Info("task terminated by signal",
		zap.Int32("pid", int32(t.ID())),
		zap.Int32("exitCode", exitCode))
}
