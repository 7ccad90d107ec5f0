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

package hbwmalloc

import (
	"fmt"
	"sync/atomic"

	"github.com/intel/hbwmalloc/pkg/memkind"
)

// the process-wide default resolver, created on first use
var std atomic.Pointer[Resolver]

// Default returns the process-wide default Resolver. Unless SetAllocator
// has been called, it allocates from a memkind.Heap without HBW.
func Default() *Resolver {
	if r := std.Load(); r != nil {
		return r
	}

	h, err := memkind.NewHeap()
	if err != nil {
		panic(fmt.Errorf("hbwmalloc: failed to create default heap: %w", err))
	}

	std.CompareAndSwap(nil, NewResolver(h))
	return std.Load()
}

// SetAllocator sets up the default Resolver to use the given allocator.
// It fails with ErrAlreadyInitialized if the default Resolver is already
// in use.
func SetAllocator(alloc memkind.Allocator, options ...Option) error {
	if alloc == nil {
		return fmt.Errorf("hbwmalloc: nil allocator")
	}
	if !std.CompareAndSwap(nil, NewResolver(alloc, options...)) {
		return ErrAlreadyInitialized
	}
	return nil
}

// GetPolicy returns the current process-wide policy.
func GetPolicy() Policy {
	return Default().GetPolicy()
}

// SetPolicy pins the process-wide policy, unless it has already been pinned.
func SetPolicy(p Policy) {
	Default().SetPolicy(p)
}

// IsAvailable returns true if high-bandwidth memory is available.
func IsAvailable() bool {
	return Default().IsAvailable()
}

// Malloc allocates size bytes according to the process-wide policy.
func Malloc(size int) []byte {
	return Default().Malloc(size)
}

// Calloc allocates zeroed memory for count elements of size bytes according
// to the process-wide policy.
func Calloc(count, size int) []byte {
	return Default().Calloc(count, size)
}

// PosixMemalign allocates aligned memory according to the process-wide policy.
func PosixMemalign(alignment, size int) ([]byte, error) {
	return Default().PosixMemalign(alignment, size)
}

// PosixMemalignPsize allocates aligned memory backed by pages of the given
// size according to the process-wide policy.
func PosixMemalignPsize(alignment, size int, ps PageSize) ([]byte, error) {
	return Default().PosixMemalignPsize(alignment, size, ps)
}

// Realloc resizes a block according to the process-wide policy.
func Realloc(b []byte, size int) []byte {
	return Default().Realloc(b, size)
}

// Free frees a block. Freeing nil is a no-op.
func Free(b []byte) {
	Default().Free(b)
}
