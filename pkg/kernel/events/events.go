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

// Package events provides the bus that decouples task lifecycle
// notifications from their consumers. Producers publish typed events;
// subscribers (such as the signal manager's task-location cache) react
// without a direct dependency on the producer.
package events

import (
	"sync"

	"go.uber.org/zap"
)

// Event is a notification published on a Bus. Concrete event types are
// defined by their producers.
type Event interface {
	// EventName identifies the event type in logs.
	EventName() string
}

// Listener consumes events. Listeners run synchronously on the publisher's
// goroutine and must not block.
type Listener func(Event)

// Bus fans events out to registered listeners.
type Bus struct {
	log *zap.Logger

	mu        sync.RWMutex
	nextID    int
	listeners map[int]Listener
}

// NewBus returns an empty Bus.
func NewBus(log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{
		log:       log,
		listeners: make(map[int]Listener),
	}
}

// Subscribe registers l and returns a function that removes the
// subscription.
func (b *Bus) Subscribe(l Listener) (cancel func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = l
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

// Publish delivers e to every subscribed listener. Delivery order between
// listeners is unspecified; listeners must not rely on it.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	ls := make([]Listener, 0, len(b.listeners))
	for _, l := range b.listeners {
		ls = append(ls, l)
	}
	b.mu.RUnlock()

	b.log.Debug("publishing event", zap.String("event", e.EventName()))
	for _, l := range ls {
		l(e)
	}
}
