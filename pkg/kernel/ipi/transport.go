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

package ipi

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/gitwillsky/liteos/pkg/syserror"
)

// Config parameterizes a Manager.
type Config struct {
	// Cores is the number of cores served.
	Cores int

	// QueueCapacity bounds each core's mailbox. Zero selects
	// DefaultQueueCapacity.
	QueueCapacity int

	// SendRetries is how many times a failed hardware interrupt is
	// retried before the send is reported as failed. Zero selects
	// DefaultSendRetries.
	SendRetries int
}

// DefaultSendRetries is the default bound on hardware-send retries.
const DefaultSendRetries = 3

func (c *Config) applyDefaults() {
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = DefaultQueueCapacity
	}
	if c.SendRetries <= 0 {
		c.SendRetries = DefaultSendRetries
	}
}

// syncCall is one pending synchronous IPI call, parked in the correlation
// table while its sender spins.
type syncCall struct {
	id       uint64
	done     atomic.Bool
	response atomic.Uint64
}

// Manager is the IPI transport for all cores. It is constructed once by
// explicit init during boot; there is no lazy construction racing
// multi-core startup.
type Manager struct {
	cfg      Config
	platform Platform
	clock    Clock
	log      *zap.Logger

	hooks Hooks

	queues []*queue
	stats  []stats
	online []atomic.Bool

	// calls is the global sync-call correlation table. Its lock is held
	// only for lookup/insert/remove, never across a spin-wait.
	callsMu    sync.Mutex
	calls      map[uint64]*syncCall
	nextCallID atomic.Uint64

	barriersMu    sync.Mutex
	barriers      map[uint64]*barrier
	nextBarrierID atomic.Uint64
}

// New returns a Manager for cfg.Cores cores, all initially offline. clock
// may be nil to use the monotonic default.
func New(cfg Config, platform Platform, clock Clock, log *zap.Logger) *Manager {
	cfg.applyDefaults()
	if clock == nil {
		clock = NewMonotonicClock()
	}
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		cfg:      cfg,
		platform: platform,
		clock:    clock,
		log:      log,
		queues:   make([]*queue, cfg.Cores),
		stats:    make([]stats, cfg.Cores),
		online:   make([]atomic.Bool, cfg.Cores),
		calls:    make(map[uint64]*syncCall),
		barriers: make(map[uint64]*barrier),
	}
	for i := range m.queues {
		m.queues[i] = newQueue(cfg.QueueCapacity)
	}
	return m
}

// SetHooks binds message effects. Must be called before the cores it
// affects come online.
func (m *Manager) SetHooks(h Hooks) {
	m.hooks = h
}

// Cores returns the number of cores served.
func (m *Manager) Cores() int {
	return m.cfg.Cores
}

func (m *Manager) validCore(core CoreID) bool {
	return core >= 0 && int(core) < m.cfg.Cores
}

// SetOnline marks core as online or offline.
func (m *Manager) SetOnline(core CoreID, online bool) {
	if m.validCore(core) {
		m.online[core].Store(online)
	}
}

// Online returns whether core is online.
func (m *Manager) Online(core CoreID) bool {
	return m.validCore(core) && m.online[core].Load()
}

// Send delivers msg to target. A self-targeted message runs its effect in
// place with no interrupt. Otherwise the message is enqueued into the
// target's mailbox and a hardware interrupt is raised with bounded retry.
//
// Both enqueue failure and exhausted retry surface as errors; callers treat
// IPI as best-effort, since any pending-signal state was set before
// transport was attempted.
func (m *Manager) Send(self, target CoreID, msg Message) error {
	if !m.validCore(target) {
		return fmt.Errorf("%w: core %d", syserror.ErrInvalidArgument, target)
	}
	if !m.online[target].Load() {
		return fmt.Errorf("%w: core %d", syserror.ErrCoreOffline, target)
	}
	if self == target {
		m.deliver(self, msg)
		return nil
	}

	if err := m.queues[target].push(msg); err != nil {
		// Queue-full is reported immediately, no retry: retrying
		// into a full mailbox only compounds backpressure.
		m.stats[self].sendFailures.Add(1)
		return err
	}

	if err := m.interruptWithRetry(target); err != nil {
		m.stats[self].sendFailures.Add(1)
		// The message stays queued; the target will drain it on its
		// next interrupt.
		m.log.Warn("hardware IPI send failed",
			zap.Int("target", int(target)),
			zap.Stringer("msg", &msg),
			zap.Error(err))
		return err
	}

	m.stats[self].sent.Add(1)
	return nil
}

func (m *Manager) interruptWithRetry(target CoreID) error {
	var err error
	for attempt := 0; attempt <= m.cfg.SendRetries; attempt++ {
		if err = m.platform.InterruptCore(target); err == nil {
			return nil
		}
		spinYield()
	}
	return fmt.Errorf("%w: %v", syserror.ErrHardwareSend, err)
}

// Broadcast sends msg to every online core, optionally excluding the
// sender, and returns the number of successful sends. Function-call
// messages are not broadcast: the closure is consumed once.
func (m *Manager) Broadcast(self CoreID, msg Message, excludeSelf bool) int {
	if msg.Kind == KindFunctionCall {
		m.log.Warn("dropping function-call broadcast; closures are consumed once")
		return 0
	}
	sent := 0
	for core := CoreID(0); int(core) < m.cfg.Cores; core++ {
		if excludeSelf && core == self {
			continue
		}
		if !m.online[core].Load() {
			continue
		}
		if err := m.Send(self, core, msg); err == nil {
			sent++
		}
	}
	return sent
}

// SendSync delivers msg to target and spins until the target's handler
// writes a response or timeout elapses. A self-targeted call resolves
// immediately, bypassing the correlation table. ErrTimeout is a
// distinguished outcome, not a transport failure: the remote may still act
// on the message after the sender gives up waiting.
func (m *Manager) SendSync(self, target CoreID, msg Message, timeout time.Duration) (uint64, error) {
	if timeout <= 0 {
		return 0, fmt.Errorf("%w: non-positive timeout", syserror.ErrInvalidArgument)
	}
	if !m.validCore(target) {
		return 0, fmt.Errorf("%w: core %d", syserror.ErrInvalidArgument, target)
	}
	if self == target {
		return m.execute(self, msg), nil
	}

	call := &syncCall{id: m.nextCallID.Add(1)}
	m.callsMu.Lock()
	m.calls[call.id] = call
	m.callsMu.Unlock()
	defer func() {
		m.callsMu.Lock()
		delete(m.calls, call.id)
		m.callsMu.Unlock()
	}()

	msg.CallID = call.id
	if err := m.Send(self, target, msg); err != nil {
		return 0, err
	}

	// Bounded spin: cross-core round trips are microseconds, not
	// milliseconds.
	deadline := m.clock.NowMillis() + timeout.Milliseconds()
	for !call.done.Load() {
		if m.clock.NowMillis() >= deadline {
			return 0, syserror.ErrTimeout
		}
		spinYield()
	}
	return call.response.Load(), nil
}

// completeCall writes resp into the correlation table, releasing a blocked
// SendSync. Unknown ids are ignored: the caller may have timed out and
// removed the entry already.
func (m *Manager) completeCall(id, resp uint64) {
	m.callsMu.Lock()
	call, ok := m.calls[id]
	m.callsMu.Unlock()
	if !ok {
		return
	}
	call.response.Store(resp)
	call.done.Store(true)
}

// HandleInterrupt is the remote interrupt handler: it drains the core's
// mailbox fully (FIFO within priority), executing each effect. It is
// called by the platform's interrupt entry path on the interrupted core.
func (m *Manager) HandleInterrupt(self CoreID) {
	if !m.validCore(self) {
		return
	}
	m.stats[self].received.Add(1)
	for {
		msg, ok := m.queues[self].pop()
		if !ok {
			return
		}
		m.deliver(self, msg)
	}
}

// deliver executes msg on self and, if the message is correlated, writes
// its response into the table before returning toward user context.
func (m *Manager) deliver(self CoreID, msg Message) {
	resp := m.execute(self, msg)
	if msg.CallID != 0 && msg.Kind != KindSyncResponse {
		m.completeCall(msg.CallID, resp)
	}
}

// execute runs one message's effect on self and returns its response
// value.
func (m *Manager) execute(self CoreID, msg Message) uint64 {
	switch msg.Kind {
	case KindReschedule:
		m.stats[self].reschedules.Add(1)
		if m.hooks.Reschedule != nil {
			m.hooks.Reschedule(self)
		}
	case KindTLBFlush:
		m.stats[self].tlbFlushes.Add(1)
		if m.hooks.TLBFlush != nil {
			m.hooks.TLBFlush(self, msg.Addr, msg.ASID, msg.FlushAll)
		}
	case KindFunctionCall:
		m.stats[self].functionCalls.Add(1)
		if msg.Func != nil {
			return msg.Func()
		}
	case KindStop:
		m.log.Info("core received stop request", zap.Int("core", int(self)))
		if m.hooks.Stop != nil {
			m.hooks.Stop(self)
		}
		m.online[self].Store(false)
	case KindWakeUp:
		if m.hooks.WakeUp != nil {
			m.hooks.WakeUp(self)
		}
	case KindGeneric:
		if m.hooks.Generic != nil {
			return m.hooks.Generic(self, msg.Type, msg.Data)
		}
	case KindSyncResponse:
		m.completeCall(msg.CallID, msg.Response)
	}
	return 0
}

// QueueLen returns the current depth of core's mailbox.
func (m *Manager) QueueLen(core CoreID) int {
	if !m.validCore(core) {
		return 0
	}
	return m.queues[core].len()
}

func spinYield() {
	runtime.Gosched()
}
