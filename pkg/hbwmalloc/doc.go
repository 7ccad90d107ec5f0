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

// Package hbwmalloc allocates memory from high-bandwidth memory (HBW)
// according to a process-wide policy.
//
// # Policies
//
// With PolicyPreferred, which is the default, memory is allocated from
// HBW when it is available and from ordinary memory otherwise. With
// PolicyBind, memory is always allocated from HBW and allocation fails
// if that is not possible.
//
// The policy can be set only once. The first SetPolicy call, or the
// first allocation if that comes earlier, pins the policy for the rest
// of the lifetime of the process. Later SetPolicy calls with a different
// policy leave the pinned policy intact and emit a warning.
//
// # Page Sizes
//
// Aligned allocations can ask for memory backed by 2M or 1G pages. A 2M
// request uses the huge page variant of the kind the policy selects.
// A 1G request always uses preferred HBW on 1G pages, regardless of the
// policy, since there is no bound variant of that kind.
//
// # Allocators
//
// The actual allocation is done by a memkind.Allocator. Package level
// functions use a default Resolver. Use SetAllocator before any other
// call to choose its allocator, or create a Resolver with NewResolver.
package hbwmalloc
