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

package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type testEvent struct {
	n int
}

func (testEvent) EventName() string { return "test" }

func TestPublishReachesAllListeners(t *testing.T) {
	b := NewBus(zap.NewNop())
	var a, c []int
	b.Subscribe(func(e Event) { a = append(a, e.(testEvent).n) })
	b.Subscribe(func(e Event) { c = append(c, e.(testEvent).n) })

	b.Publish(testEvent{1})
	b.Publish(testEvent{2})

	assert.Equal(t, []int{1, 2}, a)
	assert.Equal(t, []int{1, 2}, c)
}

func TestCancelStopsDelivery(t *testing.T) {
	b := NewBus(nil)
	var got []int
	cancel := b.Subscribe(func(e Event) { got = append(got, e.(testEvent).n) })

	b.Publish(testEvent{1})
	cancel()
	b.Publish(testEvent{2})

	assert.Equal(t, []int{1}, got)
}

func TestPublishWithNoListeners(t *testing.T) {
	b := NewBus(nil)
	assert.NotPanics(t, func() { b.Publish(testEvent{}) })
}
