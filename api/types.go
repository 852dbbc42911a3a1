// File: api/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Shared type declarations for the async I/O core: handles, interests,
// descriptors and readiness events exchanged between the registry, the
// reactor and its poll backends.

package api

import (
	"fmt"
	"time"
)

// Handle is an opaque identifier for a registered resource. It packs a
// 32-bit slot index and a 32-bit generation tag; the generation is bumped
// every time the underlying slot is released, so a handle held past the
// resource's lifetime can never silently alias a new occupant.
//
// The zero Handle is never valid: generations of live slots are always odd
// and start at 1.
type Handle uint64

// NewHandle packs a slot index and generation tag into a Handle.
func NewHandle(index, gen uint32) Handle {
	return Handle(uint64(index)<<32 | uint64(gen))
}

// Index returns the slot index part of the handle.
func (h Handle) Index() uint32 { return uint32(h >> 32) }

// Generation returns the generation tag part of the handle.
func (h Handle) Generation() uint32 { return uint32(h) }

// IsZero reports whether h is the invalid zero handle.
func (h Handle) IsZero() bool { return h == 0 }

func (h Handle) String() string {
	return fmt.Sprintf("handle(%d:%d)", h.Index(), h.Generation())
}

// Interest is a bit set of readiness conditions a resource can be armed for.
type Interest uint8

const (
	// InterestReadable arms read-readiness notifications.
	InterestReadable Interest = 1 << iota
	// InterestWritable arms write-readiness notifications.
	InterestWritable
	// InterestError reports error or hangup conditions; it is always
	// delivered regardless of the armed set.
	InterestError
)

// Has reports whether all bits of other are set in i.
func (i Interest) Has(other Interest) bool { return i&other == other }

func (i Interest) String() string {
	s := ""
	if i.Has(InterestReadable) {
		s += "r"
	}
	if i.Has(InterestWritable) {
		s += "w"
	}
	if i.Has(InterestError) {
		s += "e"
	}
	if s == "" {
		return "none"
	}
	return s
}

// DescriptorKind tells the reactor how a descriptor is armed: against the
// OS poll backend, against the internal timer wheel, or synthetically by a
// test backend.
type DescriptorKind uint8

const (
	KindFd DescriptorKind = iota
	KindTimer
	KindVirtual
)

// Descriptor names an OS-level or virtual resource that can be registered
// with the reactor. Callers supply a concrete descriptor; the core never
// inspects it beyond Kind dispatch.
type Descriptor interface {
	Kind() DescriptorKind
}

// FdDescriptor wraps a raw OS file descriptor.
type FdDescriptor struct {
	Fd int
}

func (FdDescriptor) Kind() DescriptorKind { return KindFd }

// TimerDescriptor arms a one-shot timeout on the reactor's timer wheel.
// Expiry is delivered as readable-readiness for the timer's handle.
type TimerDescriptor struct {
	Duration time.Duration
}

func (TimerDescriptor) Kind() DescriptorKind { return KindTimer }

// VirtualDescriptor names a synthetic resource, used with test backends
// that inject readiness manually.
type VirtualDescriptor struct {
	ID uint64
}

func (VirtualDescriptor) Kind() DescriptorKind { return KindVirtual }

// BackendEvent is one readiness notification produced by a poll backend.
// Token round-trips the value passed at arm time (the resource Handle).
type BackendEvent struct {
	Token uint64
	Ready Interest
}
