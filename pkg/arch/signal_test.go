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
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gitwillsky/liteos/pkg/syserror"
)

func testFrame() *SignalFrame {
	f := &SignalFrame{
		PC:         0x40000,
		Status:     StatusSPIE | StatusSIE,
		Signo:      10,
		ReturnAddr: 0x5000,
	}
	for i := range f.Regs {
		f.Regs[i] = uint64(i) * 0x1111
	}
	return f
}

func TestSignalFrameRoundTrip(t *testing.T) {
	f := testFrame()
	mem := NewFlatMemory(0x10000, 0x10000)

	addr, err := PushSignalFrame(mem, 0x20000, f)
	if err != nil {
		t.Fatalf("PushSignalFrame: %v", err)
	}
	if addr%16 != 0 {
		t.Errorf("frame address %#x is not 16-byte aligned", addr)
	}
	if addr >= 0x20000 || 0x20000-addr < SignalFrameSize {
		t.Errorf("frame address %#x does not sit below sp 0x20000", addr)
	}

	got, err := LoadSignalFrame(mem, addr)
	if err != nil {
		t.Fatalf("LoadSignalFrame: %v", err)
	}
	if diff := cmp.Diff(f, got); diff != "" {
		t.Errorf("frame mismatch (-want +got):\n%s", diff)
	}
}

func TestPushSignalFrameAlignsUnalignedStack(t *testing.T) {
	mem := NewFlatMemory(0x10000, 0x10000)
	addr, err := PushSignalFrame(mem, 0x20007, testFrame())
	if err != nil {
		t.Fatalf("PushSignalFrame: %v", err)
	}
	if addr%16 != 0 {
		t.Errorf("frame address %#x is not 16-byte aligned", addr)
	}
}

func TestPushSignalFrameRejectsBadStack(t *testing.T) {
	mem := NewFlatMemory(0x10000, 0x10000)
	for _, sp := range []uint64{0, 0x100, UserWindowMin} {
		if _, err := PushSignalFrame(mem, sp, testFrame()); !errors.Is(err, syserror.ErrBadAddress) {
			t.Errorf("PushSignalFrame(sp=%#x) = %v, want ErrBadAddress", sp, err)
		}
	}
}

func TestLoadSignalFrameRejectsBadAddress(t *testing.T) {
	mem := NewFlatMemory(0x10000, 0x10000)
	for _, addr := range []uint64{0, UserWindowMin - 16, UserWindowMax - 8} {
		if _, err := LoadSignalFrame(mem, addr); !errors.Is(err, syserror.ErrBadFrame) {
			t.Errorf("LoadSignalFrame(%#x) = %v, want ErrBadFrame", addr, err)
		}
	}
}

func TestLoadSignalFrameRejectsBadSignal(t *testing.T) {
	mem := NewFlatMemory(0x10000, 0x10000)
	for _, signo := range []uint32{0, 32, 64} {
		f := testFrame()
		f.Signo = signo
		addr, err := PushSignalFrame(mem, 0x20000, f)
		if err != nil {
			t.Fatalf("PushSignalFrame: %v", err)
		}
		if _, err := LoadSignalFrame(mem, addr); !errors.Is(err, syserror.ErrBadFrame) {
			t.Errorf("LoadSignalFrame with signo %d = %v, want ErrBadFrame", signo, err)
		}
	}
}

func TestFlatMemoryBounds(t *testing.T) {
	mem := NewFlatMemory(0x10000, 0x100)
	var b [8]byte
	if err := mem.ReadBytes(0x10000, b[:]); err != nil {
		t.Errorf("in-bounds read failed: %v", err)
	}
	if err := mem.ReadBytes(0x100fc, b[:]); !errors.Is(err, syserror.ErrBadAddress) {
		t.Errorf("straddling read = %v, want ErrBadAddress", err)
	}
	if err := mem.WriteBytes(0xfff8, b[:]); !errors.Is(err, syserror.ErrBadAddress) {
		t.Errorf("below-base write = %v, want ErrBadAddress", err)
	}
}
