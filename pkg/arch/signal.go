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

package arch

import (
	"encoding/binary"
	"fmt"

	"github.com/gitwillsky/liteos/pkg/abi"
	"github.com/gitwillsky/liteos/pkg/syserror"
)

// SignalFrame is the fixed packed record written below the user stack
// pointer during signal delivery. Any user-space sigreturn trampoline must
// match this layout exactly.
//
// Wire layout (little endian):
//
//	offset 0    regs[32]    32 x uint64
//	offset 256  pc          uint64
//	offset 264  status      uint64
//	offset 272  signo       uint32
//	offset 276  (pad)       uint32
//	offset 280  returnAddr  uint64
type SignalFrame struct {
	// Regs is the saved register file.
	Regs [32]uint64

	// PC is the saved program counter.
	PC uint64

	// Status is the saved status register.
	Status uint64

	// Signo is the delivered signal number.
	Signo uint32

	// ReturnAddr is the sigreturn trampoline the handler returns to.
	ReturnAddr uint64
}

// SignalFrameSize is the size in bytes of a marshaled SignalFrame. It is a
// multiple of the 16-byte stack alignment.
const SignalFrameSize = 32*8 + 8 + 8 + 4 + 4 + 8

// MarshalBytes serializes f into the first SignalFrameSize bytes of b.
func (f *SignalFrame) MarshalBytes(b []byte) {
	for i, r := range f.Regs {
		binary.LittleEndian.PutUint64(b[i*8:], r)
	}
	binary.LittleEndian.PutUint64(b[256:], f.PC)
	binary.LittleEndian.PutUint64(b[264:], f.Status)
	binary.LittleEndian.PutUint32(b[272:], f.Signo)
	binary.LittleEndian.PutUint32(b[276:], 0)
	binary.LittleEndian.PutUint64(b[280:], f.ReturnAddr)
}

// UnmarshalBytes deserializes f from the first SignalFrameSize bytes of b.
func (f *SignalFrame) UnmarshalBytes(b []byte) {
	for i := range f.Regs {
		f.Regs[i] = binary.LittleEndian.Uint64(b[i*8:])
	}
	f.PC = binary.LittleEndian.Uint64(b[256:])
	f.Status = binary.LittleEndian.Uint64(b[264:])
	f.Signo = binary.LittleEndian.Uint32(b[272:])
	f.ReturnAddr = binary.LittleEndian.Uint64(b[280:])
}

// PushSignalFrame writes f to user memory below sp, 16-byte aligned, and
// returns the frame address (the handler's new stack pointer).
func PushSignalFrame(m Memory, sp uint64, f *SignalFrame) (uint64, error) {
	if sp < SignalFrameSize {
		return 0, fmt.Errorf("%w: stack pointer %#x", syserror.ErrBadAddress, sp)
	}
	addr := (sp - SignalFrameSize) &^ 15
	if !InUserWindow(addr, SignalFrameSize) {
		return 0, fmt.Errorf("%w: signal frame at %#x", syserror.ErrBadAddress, addr)
	}
	var buf [SignalFrameSize]byte
	f.MarshalBytes(buf[:])
	if err := m.WriteBytes(addr, buf[:]); err != nil {
		return 0, err
	}
	return addr, nil
}

// LoadSignalFrame reads and validates a SignalFrame at addr. The frame is
// rejected outright if the address is outside the user window or the signal
// number is out of range; corrupted or attacker-controlled stack content
// must not be trusted.
func LoadSignalFrame(m Memory, addr uint64) (*SignalFrame, error) {
	if !InUserWindow(addr, SignalFrameSize) {
		return nil, fmt.Errorf("%w: signal frame at %#x", syserror.ErrBadFrame, addr)
	}
	var buf [SignalFrameSize]byte
	if err := m.ReadBytes(addr, buf[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", syserror.ErrBadFrame, err)
	}
	var f SignalFrame
	f.UnmarshalBytes(buf[:])
	if !abi.Signal(f.Signo).IsValid() {
		return nil, fmt.Errorf("%w: signal number %d", syserror.ErrBadFrame, f.Signo)
	}
	return &f, nil
}
