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

// Package arch provides the machine-dependent view of a task: the register
// context captured at trap entry and the signal frame layout written to the
// user stack during signal delivery (RISC-V 64).
package arch

// General-purpose register indices into TrapContext.Regs.
const (
	// RegRA is the return address register (x1).
	RegRA = 1

	// RegSP is the stack pointer register (x2).
	RegSP = 2

	// RegA0 is the first argument register (x10).
	RegA0 = 10
)

// sstatus bits preserved across a signal handler. Only these three are
// restored by sigreturn; the rest of the status register is owned by the
// kernel.
const (
	// StatusSIE is the supervisor interrupt enable bit.
	StatusSIE = uint64(1) << 1

	// StatusSPIE is the previous interrupt enable bit.
	StatusSPIE = uint64(1) << 5

	// StatusSPP is the previous privilege mode bit.
	StatusSPP = uint64(1) << 8

	// StatusRestoreMask covers the bits sigreturn restores.
	StatusRestoreMask = StatusSIE | StatusSPIE | StatusSPP
)

// TrapContext is the register file exposed to the kernel on trap entry. It
// is rewritten in place to redirect a task into a signal handler and
// restored by sigreturn.
type TrapContext struct {
	// Regs holds x0..x31. x0 is hardwired zero; writes to it are
	// meaningless but harmless.
	Regs [32]uint64

	// PC is the user program counter (sepc).
	PC uint64

	// Status is the user-visible status register (sstatus).
	Status uint64
}

// StackPointer returns the user stack pointer.
func (tc *TrapContext) StackPointer() uint64 {
	return tc.Regs[RegSP]
}

// SetStackPointer sets the user stack pointer.
func (tc *TrapContext) SetStackPointer(sp uint64) {
	tc.Regs[RegSP] = sp
}
