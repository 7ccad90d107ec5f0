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

// Package memkind describes the contract hbwmalloc expects from a
// heterogeneous memory allocator, and provides Heap, a reference
// implementation of that contract on top of the Go heap.
//
// # Kinds
//
// A Kind identifies one class of allocatable memory: ordinary memory,
// high-bandwidth memory (HBW), and variants of these backed by 2M or 1G
// huge pages. The set of kinds is fixed. An allocator decides which of
// the kinds are available on the host.
//
// # Allocator
//
// Allocator is the minimal capability set used for allocation. Blocks
// are passed around as byte slices. An Allocator must be able to tell
// which kind a block was allocated from by looking at the block alone,
// since blocks are always freed using the Default kind. Aligned
// allocation reports failures with status codes, unix.EINVAL for an
// invalid alignment and unix.ENOMEM for running out of memory.
//
// # Heap
//
// Heap tracks the owning kind and size of each block in a side table
// keyed by block address. It can be configured with the set of
// available kinds and with per-kind capacity limits, which makes it
// usable both for tests and on hosts without native support for
// high-bandwidth memory.
package memkind
