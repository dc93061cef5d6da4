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
	"fmt"

	"github.com/gitwillsky/liteos/pkg/syserror"
)

// The sane user window. User stacks live below the kernel half; addresses
// outside this window are rejected before any access is attempted.
const (
	// UserWindowMin is the lowest address treated as user memory.
	UserWindowMin = uint64(0x10000)

	// UserWindowMax is one past the highest address treated as user
	// memory.
	UserWindowMax = uint64(0x80000000)
)

// InUserWindow returns true if [addr, addr+length) lies entirely inside the
// user window.
func InUserWindow(addr, length uint64) bool {
	return addr >= UserWindowMin && addr < UserWindowMax && length <= UserWindowMax-addr
}

// Memory provides access to a task's user address space. Implementations
// are expected to fail with an error, not fault, for unmapped addresses.
type Memory interface {
	// ReadBytes fills b from user memory at addr.
	ReadBytes(addr uint64, b []byte) error

	// WriteBytes copies b into user memory at addr.
	WriteBytes(addr uint64, b []byte) error
}

// FlatMemory is a contiguous, bounds-checked Memory. It backs simulated
// tasks in tests and in cmd/smpsim; a real address space would translate
// through page tables instead.
type FlatMemory struct {
	base uint64
	data []byte
}

// NewFlatMemory returns a FlatMemory spanning [base, base+size).
func NewFlatMemory(base, size uint64) *FlatMemory {
	return &FlatMemory{base: base, data: make([]byte, size)}
}

func (m *FlatMemory) slice(addr uint64, length int) ([]byte, error) {
	if addr < m.base || addr-m.base+uint64(length) > uint64(len(m.data)) {
		return nil, fmt.Errorf("%w: %#x+%d outside [%#x, %#x)", syserror.ErrBadAddress, addr, length, m.base, m.base+uint64(len(m.data)))
	}
	off := addr - m.base
	return m.data[off : off+uint64(length)], nil
}

// ReadBytes implements Memory.ReadBytes.
func (m *FlatMemory) ReadBytes(addr uint64, b []byte) error {
	src, err := m.slice(addr, len(b))
	if err != nil {
		return err
	}
	copy(b, src)
	return nil
}

// WriteBytes implements Memory.WriteBytes.
func (m *FlatMemory) WriteBytes(addr uint64, b []byte) error {
	dst, err := m.slice(addr, len(b))
	if err != nil {
		return err
	}
	copy(dst, b)
	return nil
}
