// Copyright The NRI Plugins Authors. All Rights Reserved.
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

package memkind

import (
	"fmt"
	"math/bits"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	logger "github.com/intel/hbwmalloc/pkg/log"
)

var (
	log = logger.Get("memkind")
)

const (
	// DefaultAvailable is the set of kinds available in a Heap by default.
	DefaultAvailable = KindMaskDefault | KindMaskHugeTLB
	// Unlimited is the capacity of a kind without a configured limit.
	Unlimited int64 = -1
	// DefaultMaxAllocation is the default limit for a single allocation,
	// alignment padding included.
	DefaultMaxAllocation int64 = 4 << 30
)

// Heap is an Allocator backed by the Go heap. It keeps track of the kind
// and size of every live block, so that blocks can be freed without
// knowing which kind they were allocated from.
type Heap struct {
	mu        sync.Mutex
	available KindMask
	capacity  map[Kind]int64
	usage     map[Kind]int64
	maxAlloc  int64
	blocks    map[uintptr]*block
}

// block is a live allocation.
type block struct {
	kind Kind
	data []byte // slice handed out to the caller
	buf  []byte // underlying buffer, possibly with alignment padding
}

var _ Allocator = &Heap{}

// HeapOption is an opaque option for a Heap.
type HeapOption func(*Heap) error

// WithAvailableKinds is an option to set the kinds available for allocation.
// Kinds not listed are unavailable.
func WithAvailableKinds(kinds ...Kind) HeapOption {
	return func(h *Heap) error {
		for _, k := range kinds {
			if !k.IsValid() {
				return fmt.Errorf("%w: %d", ErrInvalidKind, k)
			}
		}
		h.available = NewKindMask(kinds...)
		return nil
	}
}

// WithAvailableMask is an option to set the kinds available for allocation
// as a KindMask.
func WithAvailableMask(mask KindMask) HeapOption {
	return func(h *Heap) error {
		if unknown := mask &^ KindMaskAll; unknown != 0 {
			return fmt.Errorf("%w: unknown kind bits 0x%x", ErrInvalidKind, int(unknown))
		}
		h.available = mask
		return nil
	}
}

// WithCapacity is an option to limit the amount of memory that can be
// allocated from a kind.
func WithCapacity(kind Kind, capacity int64) HeapOption {
	return func(h *Heap) error {
		if !kind.IsValid() {
			return fmt.Errorf("%w: %d", ErrInvalidKind, kind)
		}
		if capacity < 0 {
			return fmt.Errorf("invalid negative capacity %d for %s", capacity, kind)
		}
		h.capacity[kind] = capacity
		return nil
	}
}

// WithMaxAllocation is an option to limit the size of a single allocation,
// including any padding needed for alignment. Larger requests fail.
func WithMaxAllocation(limit int64) HeapOption {
	return func(h *Heap) error {
		if limit <= 0 {
			return fmt.Errorf("invalid allocation limit %d", limit)
		}
		h.maxAlloc = limit
		return nil
	}
}

// NewHeap creates a new Heap and configures it with the given options.
func NewHeap(options ...HeapOption) (*Heap, error) {
	h := &Heap{
		available: DefaultAvailable,
		capacity:  make(map[Kind]int64),
		usage:     make(map[Kind]int64),
		maxAlloc:  DefaultMaxAllocation,
		blocks:    make(map[uintptr]*block),
	}

	for _, o := range options {
		if err := o(h); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFailedOption, err)
		}
	}

	log.Debug("created heap, available kinds %s", h.available)

	return h, nil
}

// IsAvailable returns true if the given kind is available for allocation.
func (h *Heap) IsAvailable(kind Kind) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.available.Contains(kind)
}

// Malloc allocates size bytes of the given kind.
func (h *Heap) Malloc(kind Kind, size int) []byte {
	if size <= 0 {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	b, err := h.allocate(kind, size, 0)
	if err != nil {
		log.Debug("malloc(%s, %d) failed: %v", kind, size, err)
		return nil
	}

	return b
}

// Calloc allocates zeroed memory for count elements of size bytes.
func (h *Heap) Calloc(kind Kind, count, size int) []byte {
	if count <= 0 || size <= 0 {
		return nil
	}

	hi, total := bits.Mul(uint(count), uint(size))
	if hi != 0 || total > uint(maxSize) {
		log.Debug("calloc(%s, %d, %d) overflows", kind, count, size)
		return nil
	}

	return h.Malloc(kind, int(total))
}

// PosixMemalign allocates size bytes of the given kind with the given
// alignment. The alignment must be a power of two and a multiple of the
// size of a pointer.
func (h *Heap) PosixMemalign(kind Kind, alignment, size int) ([]byte, error) {
	if !validAlignment(alignment) {
		return nil, unix.EINVAL
	}

	if size == 0 {
		return nil, nil
	}
	if size < 0 {
		return nil, unix.ENOMEM
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	b, err := h.allocate(kind, size, alignment)
	if err != nil {
		log.Debug("posix_memalign(%s, %d, %d) failed: %v", kind, alignment, size, err)
		return nil, unix.ENOMEM
	}

	return b, nil
}

// Realloc resizes the given block, allocating the new block from the
// given kind.
func (h *Heap) Realloc(kind Kind, b []byte, size int) []byte {
	if b == nil {
		return h.Malloc(kind, size)
	}

	if size == 0 {
		h.Free(kind, b)
		return nil
	}

	if size < 0 {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	old, ok := h.blocks[address(b)]
	if !ok {
		log.Warn("realloc(%s) of unknown block %p", kind, unsafe.SliceData(b))
		return nil
	}

	nb, err := h.allocate(kind, size, 0)
	if err != nil {
		log.Debug("realloc(%s, %d) failed: %v", kind, size, err)
		return nil
	}

	copy(nb, old.data)
	h.release(old)

	return nb
}

// Free frees the given block. The kind argument is ignored, the block is
// returned to the kind it was allocated from.
func (h *Heap) Free(kind Kind, b []byte) {
	if b == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	blk, ok := h.blocks[address(b)]
	if !ok {
		log.Warn("free(%s) of unknown block %p", kind, unsafe.SliceData(b))
		return
	}

	h.release(blk)
}

// Owner returns the kind the given block was allocated from.
func (h *Heap) Owner(b []byte) (Kind, bool) {
	if b == nil {
		return 0, false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if blk, ok := h.blocks[address(b)]; ok {
		return blk.kind, true
	}
	return 0, false
}

// Usage returns the number of bytes currently allocated from the kind.
func (h *Heap) Usage(kind Kind) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.usage[kind]
}

// Capacity returns the capacity limit of the kind, or Unlimited.
func (h *Heap) Capacity(kind Kind) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.capacity[kind]; ok {
		return c
	}
	return Unlimited
}

// MaxAllocation returns the limit for a single allocation.
func (h *Heap) MaxAllocation() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.maxAlloc
}

// Blocks returns the number of live blocks.
func (h *Heap) Blocks() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.blocks)
}

const maxSize = int(^uint(0) >> 1)

func (h *Heap) allocate(kind Kind, size, alignment int) ([]byte, error) {
	if !h.available.Contains(kind) {
		return nil, fmt.Errorf("kind %s is not available", kind)
	}

	if c, ok := h.capacity[kind]; ok && h.usage[kind]+int64(size) > c {
		return nil, fmt.Errorf("kind %s exhausted (%d/%d bytes in use)", kind, h.usage[kind], c)
	}

	if alignment > maxSize-size {
		return nil, fmt.Errorf("size %d with alignment %d is too large", size, alignment)
	}
	if total := int64(size) + int64(alignment); total > h.maxAlloc {
		return nil, fmt.Errorf("allocation of %d bytes exceeds limit %d", total, h.maxAlloc)
	}

	buf := make([]byte, size+alignment)
	off := 0
	if alignment > 0 {
		addr := uintptr(unsafe.Pointer(&buf[0]))
		off = int((uintptr(alignment) - addr%uintptr(alignment)) % uintptr(alignment))
	}

	data := buf[off : off+size : off+size]
	h.blocks[address(data)] = &block{
		kind: kind,
		data: data,
		buf:  buf,
	}
	h.usage[kind] += int64(size)

	return data, nil
}

func (h *Heap) release(blk *block) {
	delete(h.blocks, address(blk.data))
	h.usage[blk.kind] -= int64(len(blk.data))
}

func address(b []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}

func validAlignment(alignment int) bool {
	if alignment <= 0 || alignment&(alignment-1) != 0 {
		return false
	}
	return alignment%int(unsafe.Sizeof(uintptr(0))) == 0
}
