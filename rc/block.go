package rc

import (
	"reflect"

	"go.uber.org/zap"

	"github.com/wippyai/ownership"
	"github.com/wippyai/ownership/errors"
)

// controlBlock is the type-erased bookkeeping record shared by every handle
// derived from one origin.
type controlBlock interface {
	counts() refCounts
	// destroyPayload runs the destruction strategy. Called exactly once.
	destroyPayload()
	// releaseBlock returns the block's storage to its memory source.
	// Called exactly once, after destroyPayload.
	releaseBlock()
	// orphaned reports a weak-only block whose payload was never destroyed.
	orphaned() bool
}

// header is the part common to both block variants.
type header struct {
	refs      refCounts
	alloc     ownership.Allocator
	observer  Observer
	goType    string
	addr      uint32
	size      uint32
	align     uint32
	kind      BlockKind
	weakOnly  bool
	destroyed bool
}

func (h *header) counts() refCounts { return h.refs }

func (h *header) orphaned() bool { return h.weakOnly && !h.destroyed }

// reserve takes block storage from the memory source and sets up the counts.
func (h *header) reserve(opts Options, phase errors.Phase, size, align uint32, strong, weak int) error {
	alloc := opts.allocator()
	addr, err := alloc.Alloc(size, align)
	if err != nil {
		Logger().Debug("control block allocation failed",
			zap.String("type", h.goType),
			zap.Uint32("size", size),
			zap.Error(err))
		e := errors.AllocationFailed(phase, size, align, err)
		e.GoType = h.goType
		return e
	}

	h.alloc = alloc
	h.observer = opts.Observer
	h.addr = addr
	h.size = size
	h.align = align
	h.weakOnly = strong == 0
	h.refs = newCounts(opts.Synchronized, strong, weak)
	h.emit(EventAllocated)
	return nil
}

func (h *header) markDestroyed() {
	h.destroyed = true
	h.emit(EventPayloadDestroyed)
}

// free returns the storage. The header is unusable afterwards.
func (h *header) free() {
	alloc := h.alloc
	if alloc == nil {
		return
	}
	h.alloc = nil
	alloc.Free(h.addr, h.size, h.align)
	h.emit(EventBlockReleased)
}

func (h *header) emit(t EventType) {
	if ce := Logger().Check(zap.DebugLevel, "control block "+t.String()); ce != nil {
		ce.Write(
			zap.String("type", h.goType),
			zap.Stringer("kind", h.kind),
			zap.Uint32("addr", h.addr),
			zap.Uint32("size", h.size))
	}
	if h.observer != nil {
		h.observer.OnBlockEvent(Event{
			GoType: h.goType,
			Addr:   h.addr,
			Size:   h.size,
			Type:   t,
			Kind:   h.kind,
		})
	}
}

// pointerBlock owns a payload allocated elsewhere together with the
// strategy that knows how to destroy it.
type pointerBlock[T any] struct {
	header
	ptr     *T
	deleter Deleter[T]
}

func (b *pointerBlock[T]) destroyPayload() {
	p := b.ptr
	b.ptr = nil
	self := detachSelf(p, controlBlock(b))
	b.deleter(p)
	b.markDestroyed()
	if self != nil {
		self.Release()
	}
}

func (b *pointerBlock[T]) releaseBlock() {
	b.deleter = nil
	b.free()
}

// objectBlock embeds the payload, so value and bookkeeping share one
// allocation.
type objectBlock[T any] struct {
	header
	value T
}

func (b *objectBlock[T]) destroyPayload() {
	self := detachSelf(&b.value, controlBlock(b))
	dropValue(&b.value)
	var zero T
	b.value = zero
	b.markDestroyed()
	if self != nil {
		self.Release()
	}
}

func (b *objectBlock[T]) releaseBlock() {
	b.free()
}

// releaseStrong drops one strong reference and runs whatever the drop
// makes due: payload destruction on the last strong owner, then block
// release if no weak handle remains.
func releaseStrong(b controlBlock) {
	c := b.counts()
	if !c.release() {
		return
	}
	b.destroyPayload()
	if c.dropImplicit() {
		b.releaseBlock()
	}
}

// releaseWeakRef drops one weak reference, releasing the block when it was
// the last reference of any kind.
func releaseWeakRef(b controlBlock) {
	if !b.counts().releaseWeak() {
		return
	}
	if b.orphaned() {
		b.destroyPayload()
	}
	b.releaseBlock()
}

func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}
