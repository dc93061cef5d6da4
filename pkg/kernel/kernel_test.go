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
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/gitwillsky/liteos/pkg/arch"
	"github.com/gitwillsky/liteos/pkg/kernel/events"
	"github.com/gitwillsky/liteos/pkg/kernel/ipi"
	"github.com/gitwillsky/liteos/pkg/refs"
	"github.com/gitwillsky/liteos/pkg/syserror"
)

// testTask is a minimal Task backed by flat memory.
type testTask struct {
	refs.AtomicRefCount

	id TaskID
	ss *SignalState

	mu      sync.Mutex
	status  TaskStatus
	wakeups int

	mem *arch.FlatMemory
}

func newTestTask(id TaskID, status TaskStatus) *testTask {
	return &testTask{
		id:     id,
		ss:     NewSignalState(),
		status: status,
		// One 64 KiB page-aligned region at the bottom of the user
		// window; user stacks in tests point into it.
		mem: arch.NewFlatMemory(arch.UserWindowMin, 0x10000),
	}
}

func (t *testTask) ID() TaskID { return t.id }

func (t *testTask) Status() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *testTask) setStatus(s TaskStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = s
}

func (t *testTask) Wakeup() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.wakeups++
}

func (t *testTask) wakeupCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.wakeups
}

func (t *testTask) SignalState() *SignalState { return t.ss }

func (t *testTask) Memory() arch.Memory { return t.mem }

// testSched is an in-memory Scheduler.
type testSched struct {
	mu    sync.Mutex
	tasks map[TaskID]*testTask
}

func newTestSched() *testSched {
	return &testSched{tasks: make(map[TaskID]*testTask)}
}

func (s *testSched) add(t *testTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.id] = t
}

func (s *testSched) FindTaskByID(id TaskID) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: pid %d", syserror.ErrProcessNotFound, id)
	}
	t.IncRef()
	return t, nil
}

func (s *testSched) SetTaskStatus(t Task, status TaskStatus) {
	t.(*testTask).setStatus(status)
}

// loopbackPlatform drains the target's mailbox inline, standing in for an
// instantly-responsive remote core.
type loopbackPlatform struct {
	tr *ipi.Manager
}

func (p *loopbackPlatform) InterruptCore(target ipi.CoreID) error {
	p.tr.HandleInterrupt(target)
	return nil
}

// newTestKernel wires a manager, scheduler, transport and bus with the
// reschedule hook installed, all cores online.
func newTestKernel(tb testing.TB, cores int) (*Manager, *testSched, *ipi.Manager) {
	tb.Helper()
	p := &loopbackPlatform{}
	tr := ipi.New(ipi.Config{Cores: cores, QueueCapacity: 16}, p, nil, nil)
	p.tr = tr
	for c := 0; c < cores; c++ {
		tr.SetOnline(ipi.CoreID(c), true)
	}
	sched := newTestSched()
	m := NewManager(Config{Cores: cores}, sched, tr, events.NewBus(nil), zap.NewNop())
	tr.SetHooks(ipi.Hooks{Reschedule: m.MarkSignalCheck})
	tb.Cleanup(m.Close)
	return m, sched, tr
}

// addTask registers a task with the scheduler and records its core.
func addTask(m *Manager, sched *testSched, id TaskID, status TaskStatus, core ipi.CoreID) *testTask {
	t := newTestTask(id, status)
	sched.add(t)
	m.UpdateTaskOnCore(id, core)
	return t
}
