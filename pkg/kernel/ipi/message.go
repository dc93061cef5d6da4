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

// Package ipi provides inter-processor interrupt transport: per-core
// priority-ordered bounded mailboxes, a hardware-notify send path with
// bounded retry, synchronous call correlation, and barrier rendezvous.
package ipi

import (
	"fmt"
)

// CoreID identifies one physical core (a RISC-V hart).
type CoreID int

// Kind discriminates the Message variants.
type Kind int

const (
	// KindReschedule requests that the target core reschedule.
	KindReschedule Kind = iota

	// KindTLBFlush requests a TLB flush on the target core.
	KindTLBFlush

	// KindFunctionCall executes a closure on the target core.
	KindFunctionCall

	// KindStop halts the target core.
	KindStop

	// KindWakeUp wakes the target core from idle.
	KindWakeUp

	// KindGeneric carries an application-defined type and payload.
	KindGeneric

	// KindSyncResponse completes a pending synchronous call on the
	// sender's side.
	KindSyncResponse
)

// String implements fmt.Stringer.String.
func (k Kind) String() string {
	switch k {
	case KindReschedule:
		return "Reschedule"
	case KindTLBFlush:
		return "TlbFlush"
	case KindFunctionCall:
		return "FunctionCall"
	case KindStop:
		return "Stop"
	case KindWakeUp:
		return "WakeUp"
	case KindGeneric:
		return "Generic"
	case KindSyncResponse:
		return "SyncResponse"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Priority classifies a message into one of the mailbox's four classes.
type Priority int

// Priorities, lowest first. Within one class delivery is FIFO; across
// classes higher always drains first.
const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical

	numPriorities = 4
)

// String implements fmt.Stringer.String.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return fmt.Sprintf("Priority(%d)", int(p))
	}
}

// Message is one IPI payload. It is a tagged variant: Kind selects which
// fields are meaningful. Messages are ephemeral and consumed exactly once.
type Message struct {
	// Kind is the variant tag.
	Kind Kind

	// Addr and ASID scope a TLB flush; FlushAll requests a full flush.
	Addr     uint64
	ASID     uint64
	FlushAll bool

	// Func is executed on the target core for KindFunctionCall; its
	// result becomes the sync response when the message is correlated.
	Func func() uint64

	// Type and Data are the KindGeneric payload.
	Type uint64
	Data uint64

	// CallID correlates the message with a pending synchronous call.
	// Zero means uncorrelated.
	CallID uint64

	// Response is the reply value for KindSyncResponse.
	Response uint64
}

// Priority returns the mailbox class for the message. Stop is the only
// Critical producer; starvation of lower classes under a Stop storm is an
// accepted non-risk.
func (m *Message) Priority() Priority {
	switch m.Kind {
	case KindStop:
		return PriorityCritical
	case KindReschedule, KindTLBFlush, KindSyncResponse:
		return PriorityHigh
	case KindFunctionCall, KindWakeUp:
		return PriorityNormal
	default:
		return PriorityLow
	}
}

// CorrelationID returns the sync-call correlation id, or zero if the
// message is uncorrelated.
func (m *Message) CorrelationID() uint64 {
	return m.CallID
}

// String implements fmt.Stringer.String.
func (m *Message) String() string {
	switch m.Kind {
	case KindTLBFlush:
		if m.FlushAll {
			return "TlbFlush{all}"
		}
		return fmt.Sprintf("TlbFlush{addr: %#x, asid: %d}", m.Addr, m.ASID)
	case KindGeneric:
		return fmt.Sprintf("Generic{type: %d, data: %#x}", m.Type, m.Data)
	case KindSyncResponse:
		return fmt.Sprintf("SyncResponse{call: %d}", m.CallID)
	default:
		return m.Kind.String()
	}
}

// NewReschedule returns a reschedule request.
func NewReschedule() Message {
	return Message{Kind: KindReschedule}
}

// NewTLBFlush returns a single-address TLB flush request.
func NewTLBFlush(addr, asid uint64) Message {
	return Message{Kind: KindTLBFlush, Addr: addr, ASID: asid}
}

// NewTLBFlushAll returns a full TLB flush request.
func NewTLBFlushAll() Message {
	return Message{Kind: KindTLBFlush, FlushAll: true}
}

// NewFunctionCall returns a message executing fn on the target core.
func NewFunctionCall(fn func() uint64) Message {
	return Message{Kind: KindFunctionCall, Func: fn}
}

// NewStop returns a halt request.
func NewStop() Message {
	return Message{Kind: KindStop}
}

// NewWakeUp returns a wakeup request.
func NewWakeUp() Message {
	return Message{Kind: KindWakeUp}
}

// NewGeneric returns an application-defined message.
func NewGeneric(typ, data uint64) Message {
	return Message{Kind: KindGeneric, Type: typ, Data: data}
}

// NewSyncResponse returns a reply completing the call identified by callID.
func NewSyncResponse(callID, response uint64) Message {
	return Message{Kind: KindSyncResponse, CallID: callID, Response: response}
}
