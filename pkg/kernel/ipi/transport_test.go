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
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/gitwillsky/liteos/pkg/syserror"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// echoPlatform simulates an instantly-responsive remote core: the
// "hardware" interrupt drains the target's mailbox inline.
type echoPlatform struct {
	m *Manager
}

func (p *echoPlatform) InterruptCore(target CoreID) error {
	p.m.HandleInterrupt(target)
	return nil
}

// deafPlatform accepts interrupts but the target never drains; the model
// of a wedged or non-acking core.
type deafPlatform struct{}

func (deafPlatform) InterruptCore(CoreID) error { return nil }

// brokenPlatform fails every hardware send.
type brokenPlatform struct {
	attempts atomic.Int64
}

func (p *brokenPlatform) InterruptCore(CoreID) error {
	p.attempts.Add(1)
	return errors.New("sbi call failed")
}

// fakeClock advances a fixed step on every reading, so deadline spins
// terminate deterministically without real sleeping.
type fakeClock struct {
	now  atomic.Int64
	step int64
}

func (c *fakeClock) NowMillis() int64 {
	return c.now.Add(c.step)
}

func newTestManager(t *testing.T, cores int, clock Clock) (*Manager, *echoPlatform) {
	t.Helper()
	p := &echoPlatform{}
	m := New(Config{Cores: cores, QueueCapacity: 16}, p, clock, nil)
	p.m = m
	for core := CoreID(0); int(core) < cores; core++ {
		m.SetOnline(core, true)
	}
	return m, p
}

func TestSendValidation(t *testing.T) {
	m, _ := newTestManager(t, 2, nil)

	err := m.Send(0, 5, NewReschedule())
	assert.ErrorIs(t, err, syserror.ErrInvalidArgument)

	m.SetOnline(1, false)
	err = m.Send(0, 1, NewReschedule())
	assert.ErrorIs(t, err, syserror.ErrCoreOffline)
}

func TestSendSelfRunsInPlace(t *testing.T) {
	p := &brokenPlatform{}
	m := New(Config{Cores: 1}, p, nil, nil)
	m.SetOnline(0, true)

	ran := false
	m.SetHooks(Hooks{Reschedule: func(core CoreID) { ran = true }})

	require.NoError(t, m.Send(0, 0, NewReschedule()))
	assert.True(t, ran)
	// Self delivery never touches the hardware or the mailbox.
	assert.Equal(t, int64(0), p.attempts.Load())
	assert.Equal(t, 0, m.QueueLen(0))
}

func TestSendHardwareRetryExhaustion(t *testing.T) {
	p := &brokenPlatform{}
	m := New(Config{Cores: 2, SendRetries: 3}, p, nil, nil)
	m.SetOnline(0, true)
	m.SetOnline(1, true)

	err := m.Send(0, 1, NewReschedule())
	require.ErrorIs(t, err, syserror.ErrHardwareSend)
	assert.Equal(t, int64(4), p.attempts.Load())

	// The message stayed queued for a later drain.
	assert.Equal(t, 1, m.QueueLen(1))
	assert.Equal(t, uint64(1), m.Stats(0).SendFailures)
}

func TestSendQueueFullNoRetry(t *testing.T) {
	m := New(Config{Cores: 2, QueueCapacity: 2}, deafPlatform{}, nil, nil)
	m.SetOnline(0, true)
	m.SetOnline(1, true)

	require.NoError(t, m.Send(0, 1, NewGeneric(0, 0)))
	require.NoError(t, m.Send(0, 1, NewGeneric(0, 1)))
	err := m.Send(0, 1, NewGeneric(0, 2))
	require.ErrorIs(t, err, syserror.ErrQueueFull)
	assert.Equal(t, uint64(1), m.Stats(1).Dropped)
}

func TestHandleInterruptDrainsByPriority(t *testing.T) {
	m := New(Config{Cores: 2}, deafPlatform{}, nil, nil)
	m.SetOnline(0, true)
	m.SetOnline(1, true)

	var order []Kind
	m.SetHooks(Hooks{
		Reschedule: func(CoreID) { order = append(order, KindReschedule) },
		Generic: func(core CoreID, typ, data uint64) uint64 {
			order = append(order, KindGeneric)
			return 0
		},
		Stop: func(CoreID) { order = append(order, KindStop) },
	})

	require.NoError(t, m.Send(0, 1, NewGeneric(0, 0)))
	require.NoError(t, m.Send(0, 1, NewReschedule()))
	require.NoError(t, m.Send(0, 1, NewStop()))

	m.HandleInterrupt(1)
	assert.Equal(t, []Kind{KindStop, KindReschedule, KindGeneric}, order)
	assert.False(t, m.Online(1), "stop must take the core offline")
	assert.Equal(t, 0, m.QueueLen(1))
}

func TestBroadcastSkipsOfflineAndSelf(t *testing.T) {
	m, _ := newTestManager(t, 4, nil)
	m.SetOnline(3, false)

	var mu sync.Mutex
	got := make(map[CoreID]int)
	m.SetHooks(Hooks{Reschedule: func(core CoreID) {
		mu.Lock()
		got[core]++
		mu.Unlock()
	}})

	sent := m.Broadcast(0, NewReschedule(), true)
	assert.Equal(t, 2, sent)
	assert.Equal(t, map[CoreID]int{1: 1, 2: 1}, got)

	sent = m.Broadcast(0, NewReschedule(), false)
	assert.Equal(t, 3, sent)
}

func TestBroadcastRefusesFunctionCall(t *testing.T) {
	m, _ := newTestManager(t, 2, nil)
	sent := m.Broadcast(0, NewFunctionCall(func() uint64 { return 0 }), false)
	assert.Equal(t, 0, sent)
}

func TestSendSyncSelfBypassesTable(t *testing.T) {
	p := &brokenPlatform{}
	m := New(Config{Cores: 1}, p, nil, nil)
	m.SetOnline(0, true)

	resp, err := m.SendSync(0, 0, NewFunctionCall(func() uint64 { return 42 }), time.Second)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), resp)

	m.callsMu.Lock()
	defer m.callsMu.Unlock()
	assert.Empty(t, m.calls)
}

func TestSendSyncRoundTrip(t *testing.T) {
	m, _ := newTestManager(t, 2, nil)
	m.SetHooks(Hooks{Generic: func(core CoreID, typ, data uint64) uint64 {
		return data + 1
	}})

	resp, err := m.SendSync(0, 1, NewGeneric(0, 41), time.Second)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), resp)
}

func TestSendSyncFunctionCallResult(t *testing.T) {
	m, _ := newTestManager(t, 2, nil)

	resp, err := m.SendSync(0, 1, NewFunctionCall(func() uint64 { return 7 }), time.Second)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), resp)
	assert.Equal(t, uint64(1), m.Stats(1).FunctionCalls)
}

func TestSendSyncTimeoutOnDeafCore(t *testing.T) {
	clock := &fakeClock{step: 1}
	m := New(Config{Cores: 2}, deafPlatform{}, clock, nil)
	m.SetOnline(0, true)
	m.SetOnline(1, true)

	resp, err := m.SendSync(0, 1, NewGeneric(0, 0), 50*time.Millisecond)
	require.ErrorIs(t, err, syserror.ErrTimeout)
	assert.Equal(t, uint64(0), resp)

	// The timed-out entry must not leak in the correlation table.
	m.callsMu.Lock()
	defer m.callsMu.Unlock()
	assert.Empty(t, m.calls)
}

func TestSendSyncRejectsBadTimeout(t *testing.T) {
	m, _ := newTestManager(t, 2, nil)
	_, err := m.SendSync(0, 1, NewGeneric(0, 0), 0)
	assert.ErrorIs(t, err, syserror.ErrInvalidArgument)
}

func TestSyncResponseMessageCompletesCall(t *testing.T) {
	m := New(Config{Cores: 2}, deafPlatform{}, nil, nil)
	m.SetOnline(0, true)
	m.SetOnline(1, true)

	// Park a call by hand, then deliver the response the way a remote
	// core would: a SyncResponse message drained from the mailbox.
	call := &syncCall{id: 99}
	m.callsMu.Lock()
	m.calls[call.id] = call
	m.callsMu.Unlock()

	require.NoError(t, m.Send(1, 0, NewSyncResponse(99, 1234)))
	m.HandleInterrupt(0)

	require.True(t, call.done.Load())
	assert.Equal(t, uint64(1234), call.response.Load())

	m.callsMu.Lock()
	delete(m.calls, call.id)
	m.callsMu.Unlock()
}

func TestCompleteCallIgnoresUnknownID(t *testing.T) {
	m, _ := newTestManager(t, 2, nil)
	// A late response after the sender timed out and removed its entry.
	m.completeCall(12345, 1)
}

func TestStatsCounters(t *testing.T) {
	m, _ := newTestManager(t, 2, nil)
	m.SetHooks(Hooks{
		TLBFlush: func(CoreID, uint64, uint64, bool) {},
	})

	require.NoError(t, m.Send(0, 1, NewTLBFlushAll()))
	require.NoError(t, m.Send(0, 1, NewReschedule()))

	s := m.Stats(0)
	assert.Equal(t, uint64(2), s.Sent)

	s = m.Stats(1)
	assert.Equal(t, uint64(1), s.TLBFlushes)
	assert.Equal(t, uint64(1), s.Reschedules)
	assert.Equal(t, uint64(0), s.QueueLen)
}
