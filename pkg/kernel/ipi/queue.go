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
	"sync"

	"github.com/gitwillsky/liteos/pkg/syserror"
)

// DefaultQueueCapacity is the default bound on one core's mailbox. The
// bound prevents unbounded growth from a signal/IPI storm.
const DefaultQueueCapacity = 64

// queue is one core's mailbox: four FIFOs by priority under a shared
// capacity bound.
type queue struct {
	mu sync.Mutex

	// classes is indexed by Priority; within one class messages are
	// FIFO.
	classes [numPriorities][]Message

	// capacity bounds the total number of queued messages.
	capacity int

	// size is the current total.
	size int

	// dropped counts messages lost to overflow rejection or Critical
	// eviction, total and by the victim's class.
	dropped        uint64
	droppedByClass [numPriorities]uint64
}

func newQueue(capacity int) *queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &queue{capacity: capacity}
}

// push appends m to its priority class. At capacity, a Critical message is
// admitted by evicting the oldest message from the lowest non-empty lower
// class; any other priority fails QueueFull directly. The eviction target
// is a heuristic, not a fairness guarantee: it just ensures Stop is never
// starved by lower traffic.
func (q *queue) push(m Message) error {
	p := m.Priority()
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size >= q.capacity {
		if p != PriorityCritical {
			q.dropped++
			q.droppedByClass[p]++
			return fmt.Errorf("%w: %v at %v", syserror.ErrQueueFull, m.Kind, p)
		}
		if !q.evictLowerLocked() {
			q.dropped++
			q.droppedByClass[p]++
			return fmt.Errorf("%w: no lower-class message to evict for %v", syserror.ErrQueueFull, m.Kind)
		}
	}

	q.classes[p] = append(q.classes[p], m)
	q.size++
	return nil
}

// evictLowerLocked drops the oldest message from the lowest non-empty
// class below Critical, returning false if all of them are empty.
func (q *queue) evictLowerLocked() bool {
	for p := PriorityLow; p < PriorityCritical; p++ {
		if len(q.classes[p]) > 0 {
			q.classes[p] = q.classes[p][1:]
			q.size--
			q.dropped++
			q.droppedByClass[p]++
			return true
		}
	}
	return false
}

// pop removes and returns the oldest message from the highest non-empty
// class.
func (q *queue) pop() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for p := PriorityCritical; p >= PriorityLow; p-- {
		if c := q.classes[p]; len(c) > 0 {
			m := c[0]
			q.classes[p] = c[1:]
			q.size--
			return m, true
		}
	}
	return Message{}, false
}

// len returns the total number of queued messages.
func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// droppedCount returns the number of messages lost to overflow.
func (q *queue) droppedCount() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// droppedCounts returns per-class loss counts, indexed by Priority.
func (q *queue) droppedCounts() [numPriorities]uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.droppedByClass
}
