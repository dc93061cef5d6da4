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

package kernel

import (
	"fmt"

	"github.com/gitwillsky/liteos/pkg/abi"
	"github.com/gitwillsky/liteos/pkg/arch"
	"github.com/gitwillsky/liteos/pkg/syserror"
)

// SetSignalAction installs act as sig's disposition for t, returning the
// previous one. A nil act only queries. SIGKILL and SIGSTOP cannot be
// reconfigured.
func (m *Manager) SetSignalAction(t Task, sig abi.Signal, act *abi.Disposition) (abi.Disposition, error) {
	if !sig.IsValid() {
		return abi.Disposition{}, fmt.Errorf("%w: %d", syserror.ErrInvalidSignal, int32(sig))
	}
	ss := t.SignalState()
	if act == nil {
		return ss.Disposition(sig), nil
	}
	if sig.IsUncatchable() {
		return abi.Disposition{}, fmt.Errorf("%w: %v cannot be caught or ignored", syserror.ErrPermissionDenied, sig)
	}
	if act.Action == abi.SignalActionHandler && !arch.InUserWindow(act.Handler, 4) {
		return abi.Disposition{}, fmt.Errorf("%w: handler at %#x", syserror.ErrBadAddress, act.Handler)
	}
	return ss.SetDisposition(sig, *act), nil
}

// SetSignalHandler is the classic signal(2) shape: it installs a bare
// handler address for sig, resolving the SIG_DFL and SIG_IGN special
// values, and returns the previous handler value in the same encoding.
func (m *Manager) SetSignalHandler(t Task, sig abi.Signal, handler uint64) (uint64, error) {
	if !sig.IsValid() {
		return 0, fmt.Errorf("%w: %d", syserror.ErrInvalidSignal, int32(sig))
	}
	if sig.IsUncatchable() {
		return 0, fmt.Errorf("%w: %v cannot be caught or ignored", syserror.ErrPermissionDenied, sig)
	}
	ss := t.SignalState()

	var old abi.Disposition
	switch handler {
	case abi.SIG_DFL:
		old = ss.ClearDisposition(sig)
	case abi.SIG_IGN:
		old = ss.SetDisposition(sig, abi.Disposition{Action: abi.SignalActionIgnore})
	default:
		if !arch.InUserWindow(handler, 4) {
			return 0, fmt.Errorf("%w: handler at %#x", syserror.ErrBadAddress, handler)
		}
		old = ss.SetDisposition(sig, abi.Disposition{
			Action:  abi.SignalActionHandler,
			Handler: handler,
		})
	}

	switch old.Action {
	case abi.SignalActionHandler:
		return old.Handler, nil
	case abi.SignalActionIgnore:
		return abi.SIG_IGN, nil
	default:
		return abi.SIG_DFL, nil
	}
}

// SetSignalMask updates t's blocked set per how (SIG_BLOCK, SIG_UNBLOCK,
// SIG_SETMASK) and returns the previous mask. Bits for SIGKILL and SIGSTOP
// are silently dropped; those signals can never be blocked.
func (m *Manager) SetSignalMask(t Task, how int, set abi.SignalSet) (abi.SignalSet, error) {
	ss := t.SignalState()
	old := ss.Blocked()
	var next abi.SignalSet
	switch how {
	case abi.SIG_BLOCK:
		next = old.Union(set)
	case abi.SIG_UNBLOCK:
		next = old.Difference(set)
	case abi.SIG_SETMASK:
		next = set
	default:
		return old, fmt.Errorf("%w: sigprocmask how %d", syserror.ErrInvalidArgument, how)
	}
	ss.SetBlocked(next)
	return old, nil
}
