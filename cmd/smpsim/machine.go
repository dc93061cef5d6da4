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

package main

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gitwillsky/liteos/pkg/arch"
	"github.com/gitwillsky/liteos/pkg/kernel"
	"github.com/gitwillsky/liteos/pkg/kernel/events"
	"github.com/gitwillsky/liteos/pkg/kernel/ipi"
	"github.com/gitwillsky/liteos/pkg/refs"
	"github.com/gitwillsky/liteos/pkg/syserror"
)

// simTask is a simulated user task: signal state plus a flat user memory
// region for its stack.
type simTask struct {
	refs.AtomicRefCount

	id kernel.TaskID
	ss *kernel.SignalState

	mu      sync.Mutex
	status  kernel.TaskStatus
	wakeups int

	mem *arch.FlatMemory
}

func newSimTask(id kernel.TaskID) *simTask {
	return &simTask{
		id:     id,
		ss:     kernel.NewSignalState(),
		status: kernel.TaskReady,
		mem:    arch.NewFlatMemory(arch.UserWindowMin, 0x10000),
	}
}

// ID implements kernel.Task.ID.
func (t *simTask) ID() kernel.TaskID { return t.id }

// Status implements kernel.Task.Status.
func (t *simTask) Status() kernel.TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Wakeup implements kernel.Task.Wakeup.
func (t *simTask) Wakeup() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.wakeups++
	if t.status == kernel.TaskSleeping {
		t.status = kernel.TaskReady
	}
}

// SignalState implements kernel.Task.SignalState.
func (t *simTask) SignalState() *kernel.SignalState { return t.ss }

// Memory implements kernel.Task.Memory.
func (t *simTask) Memory() arch.Memory { return t.mem }

// trapContext returns a plausible user register context with the stack
// pointer in the task's memory region.
func (t *simTask) trapContext() *arch.TrapContext {
	tc := &arch.TrapContext{PC: 0x12000, Status: arch.StatusSPIE}
	tc.SetStackPointer(arch.UserWindowMin + 0x8000)
	return tc
}

// simScheduler is the machine's task table.
type simScheduler struct {
	mu    sync.Mutex
	tasks map[kernel.TaskID]*simTask
}

func newSimScheduler() *simScheduler {
	return &simScheduler{tasks: make(map[kernel.TaskID]*simTask)}
}

func (s *simScheduler) add(t *simTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.id] = t
}

// FindTaskByID implements kernel.Scheduler.FindTaskByID.
func (s *simScheduler) FindTaskByID(id kernel.TaskID) (kernel.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: pid %d", syserror.ErrProcessNotFound, id)
	}
	t.IncRef()
	return t, nil
}

// SetTaskStatus implements kernel.Scheduler.SetTaskStatus.
func (s *simScheduler) SetTaskStatus(t kernel.Task, status kernel.TaskStatus) {
	st := t.(*simTask)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.status = status
}

// machine is the simulated SMP machine: one goroutine per core draining
// its mailbox, connected by per-core interrupt lines.
type machine struct {
	cfg       config
	log       *zap.Logger
	sched     *simScheduler
	bus       *events.Bus
	transport *ipi.Manager
	manager   *kernel.Manager

	// irq carries hardware interrupts to the core loops. The line is
	// level-triggered: one pending edge is enough, extra edges coalesce.
	irq []chan struct{}
}

// InterruptCore implements ipi.Platform.InterruptCore.
func (mc *machine) InterruptCore(target ipi.CoreID) error {
	if int(target) < 0 || int(target) >= len(mc.irq) {
		return fmt.Errorf("%w: core %d", syserror.ErrCoreOffline, target)
	}
	select {
	case mc.irq[target] <- struct{}{}:
	default:
	}
	return nil
}

func newMachine(cfg config, log *zap.Logger) *machine {
	mc := &machine{
		cfg:   cfg,
		log:   log,
		sched: newSimScheduler(),
		bus:   events.NewBus(log.Named("bus")),
		irq:   make([]chan struct{}, cfg.Cores),
	}
	for i := range mc.irq {
		mc.irq[i] = make(chan struct{}, 1)
	}
	mc.transport = ipi.New(ipi.Config{
		Cores:         cfg.Cores,
		QueueCapacity: cfg.QueueCapacity,
		SendRetries:   cfg.SendRetries,
	}, mc, nil, log.Named("ipi"))
	mc.manager = kernel.NewManager(kernel.Config{Cores: cfg.Cores}, mc.sched, mc.transport, mc.bus, log.Named("signal"))
	mc.transport.SetHooks(ipi.Hooks{
		Reschedule: mc.manager.MarkSignalCheck,
		TLBFlush: func(core ipi.CoreID, addr, asid uint64, all bool) {
			log.Debug("tlb flush", zap.Int("core", int(core)), zap.Uint64("addr", addr), zap.Bool("all", all))
		},
		WakeUp: func(core ipi.CoreID) {
			log.Debug("wakeup", zap.Int("core", int(core)))
		},
	})
	for c := 0; c < cfg.Cores; c++ {
		mc.transport.SetOnline(ipi.CoreID(c), true)
	}
	return mc
}

// start launches one loop per core on g. The loops drain interrupts and run
// the safe-context signal check until ctx is canceled.
func (mc *machine) start(ctx context.Context, g *errgroup.Group) {
	for c := 0; c < mc.cfg.Cores; c++ {
		core := ipi.CoreID(c)
		g.Go(func() error {
			return mc.coreLoop(ctx, core)
		})
	}
}

func (mc *machine) coreLoop(ctx context.Context, core ipi.CoreID) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-mc.irq[core]:
			mc.transport.HandleInterrupt(core)
			if mc.manager.NeedsSignalCheck(core) {
				if res, ok := mc.manager.CheckAndHandleSignals(core); ok && res.Terminated {
					mc.log.Info("core reaped current task",
						zap.Int("core", int(core)),
						zap.Int32("exitCode", res.ExitCode))
					mc.manager.ClearCurrentTask(core)
				}
			}
		}
	}
}

// spawnTask creates a task, registers it, and pins it as core's current
// running task.
func (mc *machine) spawnTask(id kernel.TaskID, core ipi.CoreID) *simTask {
	t := newSimTask(id)
	mc.sched.add(t)
	mc.sched.SetTaskStatus(t, kernel.TaskRunning)
	mc.bus.Publish(kernel.TaskCreatedEvent{PID: id, Core: core})
	mc.manager.SetCurrentTask(core, t)
	return t
}

func (mc *machine) close() {
	mc.manager.Close()
}
