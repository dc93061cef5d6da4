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

// Package refs defines an interface for reference counted objects and
// provides weak references for notification-only links that must not extend
// an object's lifetime (e.g. a core's current-task slot).
package refs

import (
	"sync"
	"sync/atomic"
)

// RefCounter is the interface to be implemented by objects that are
// reference counted.
type RefCounter interface {
	// IncRef increments the reference counter on the object.
	IncRef()

	// DecRef decrements the reference counter on the object.
	DecRef()

	// TryIncRef attempts to increase the reference counter on the
	// object, but may fail if all references have already been dropped.
	// This should be used only in special circumstances, such as
	// WeakRefs.
	TryIncRef() bool

	// addWeakRef adds the given weak reference. The caller must hold a
	// reference to the object.
	addWeakRef(*WeakRef)

	// dropWeakRef drops the given weak reference. The caller must hold a
	// reference to the object.
	dropWeakRef(*WeakRef)
}

// A WeakRefUser is notified when the last non-weak reference is dropped.
type WeakRefUser interface {
	// WeakRefGone is called when the last non-weak reference is dropped.
	WeakRefGone()
}

// WeakRef is a weak reference: it reaches the object while it is live but
// does not keep it alive.
type WeakRef struct {
	mu sync.Mutex

	// obj is nil once the counted object has been destroyed.
	obj RefCounter

	// user is notified when obj is zapped. May be nil.
	user WeakRefUser
}

// NewWeakRef acquires a weak reference for the given object.
//
// An optional user will be notified when the last non-weak reference is
// dropped.
//
// Preconditions: the caller holds a reference to rc.
func NewWeakRef(rc RefCounter, u WeakRefUser) *WeakRef {
	w := &WeakRef{obj: rc, user: u}
	rc.addWeakRef(w)
	return w
}

// Get attempts to get a normal reference to the underlying object, and
// returns the object with one reference taken. If the object has already
// been destroyed, nil is returned.
func (w *WeakRef) Get() RefCounter {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.obj == nil || !w.obj.TryIncRef() {
		return nil
	}
	return w.obj
}

// Drop drops this weak reference. Following this call, the weak reference
// is invalid and must not be used again.
func (w *WeakRef) Drop() {
	w.mu.Lock()
	rc := w.obj
	w.obj = nil
	w.user = nil
	w.mu.Unlock()
	if rc != nil && rc.TryIncRef() {
		rc.dropWeakRef(w)
		rc.DecRef()
	}
}

// zap makes this weak reference return nil and notifies the user. Called
// with the object already unreachable through strong references.
func (w *WeakRef) zap() {
	w.mu.Lock()
	u := w.user
	w.obj = nil
	w.user = nil
	w.mu.Unlock()
	if u != nil {
		u.WeakRefGone()
	}
}

// AtomicRefCount keeps a reference count using atomic operations and calls
// a destructor when the count reaches zero. The zero value holds a single
// reference, so it can be embedded without initialization.
type AtomicRefCount struct {
	// refCount is the count minus one, so the zero value is one
	// reference.
	refCount atomic.Int64

	mu       sync.Mutex
	weakRefs map[*WeakRef]struct{}
}

// ReadRefs returns the current number of references.
func (r *AtomicRefCount) ReadRefs() int64 {
	return r.refCount.Load() + 1
}

// IncRef implements RefCounter.IncRef.
//
// Precondition: the caller must hold a reference.
func (r *AtomicRefCount) IncRef() {
	if v := r.refCount.Add(1); v <= 0 {
		panic("refs: IncRef on destroyed object")
	}
}

// TryIncRef implements RefCounter.TryIncRef.
func (r *AtomicRefCount) TryIncRef() bool {
	for {
		v := r.refCount.Load()
		if v < 0 {
			return false
		}
		if r.refCount.CompareAndSwap(v, v+1) {
			return true
		}
	}
}

// addWeakRef implements RefCounter.addWeakRef.
func (r *AtomicRefCount) addWeakRef(w *WeakRef) {
	r.mu.Lock()
	if r.weakRefs == nil {
		r.weakRefs = make(map[*WeakRef]struct{})
	}
	r.weakRefs[w] = struct{}{}
	r.mu.Unlock()
}

// dropWeakRef implements RefCounter.dropWeakRef.
func (r *AtomicRefCount) dropWeakRef(w *WeakRef) {
	r.mu.Lock()
	delete(r.weakRefs, w)
	r.mu.Unlock()
}

// DecRefWithDestructor decrements the reference count and, on reaching
// zero, zaps all weak references and calls destroy (which may be nil).
func (r *AtomicRefCount) DecRefWithDestructor(destroy func()) {
	switch v := r.refCount.Add(-1); {
	case v < -1:
		panic("refs: DecRef on destroyed object")
	case v == -1:
		r.mu.Lock()
		weak := r.weakRefs
		r.weakRefs = nil
		r.mu.Unlock()
		for w := range weak {
			w.zap()
		}
		if destroy != nil {
			destroy()
		}
	}
}

// DecRef implements RefCounter.DecRef for objects without destructors.
// Types with a destructor must implement their own DecRef calling
// DecRefWithDestructor.
func (r *AtomicRefCount) DecRef() {
	r.DecRefWithDestructor(nil)
}
