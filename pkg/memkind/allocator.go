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

// Allocator is the interface of an allocator capable of allocating memory
// of different kinds.
type Allocator interface {
	// Malloc allocates size bytes of the given kind. It returns nil on failure.
	Malloc(kind Kind, size int) []byte
	// Calloc allocates zeroed memory for count elements of size bytes.
	// It returns nil on failure.
	Calloc(kind Kind, count, size int) []byte
	// PosixMemalign allocates size bytes of the given kind aligned to the
	// given alignment. On failure it returns unix.EINVAL if the alignment
	// is invalid and unix.ENOMEM if memory could not be allocated.
	PosixMemalign(kind Kind, alignment, size int) ([]byte, error)
	// Realloc resizes a block, allocating the new block from the given
	// kind. A nil block is allocated anew. Resizing to 0 frees the block.
	// It returns nil on failure, in which case the original block is left
	// intact.
	Realloc(kind Kind, b []byte, size int) []byte
	// Free frees a block. The owning kind of the block is determined from
	// the block itself, so any kind can be passed. Freeing nil is a no-op.
	Free(kind Kind, b []byte)
	// IsAvailable returns true if memory of the given kind can be allocated.
	IsAvailable(kind Kind) bool
}
