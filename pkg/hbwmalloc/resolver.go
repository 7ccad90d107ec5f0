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
	"sync"
	"sync/atomic"

	logger "github.com/intel/hbwmalloc/pkg/log"
	"github.com/intel/hbwmalloc/pkg/memkind"
)

var (
	log = logger.Get("hbwmalloc")
)

// Resolver selects memory kinds for allocations according to a policy,
// then allocates memory of the selected kind using an allocator.
type Resolver struct {
	alloc   memkind.Allocator
	once    sync.Once
	policy  atomic.Int32 // 0 until pinned
	diag    func(format string, args ...interface{})
	metrics *Metrics
}

// Option is an opaque option for a Resolver.
type Option func(*Resolver)

// WithDiagnostics is an option to set the function used to report policy
// conflicts. By default conflicts are logged as warnings.
func WithDiagnostics(fn func(format string, args ...interface{})) Option {
	return func(r *Resolver) {
		if fn != nil {
			r.diag = fn
		}
	}
}

// WithMetrics is an option to collect allocation statistics into the
// given metrics instead of ones created for the resolver.
func WithMetrics(m *Metrics) Option {
	return func(r *Resolver) {
		if m != nil {
			r.metrics = m
		}
	}
}

// NewResolver creates a new Resolver allocating memory with the given
// allocator.
func NewResolver(alloc memkind.Allocator, options ...Option) *Resolver {
	r := &Resolver{
		alloc:   alloc,
		diag:    log.Warn,
		metrics: NewMetrics(),
	}

	for _, o := range options {
		o(r)
	}

	return r
}

// Allocator returns the allocator used by the resolver.
func (r *Resolver) Allocator() memkind.Allocator {
	return r.alloc
}

// Metrics returns the allocation statistics of the resolver.
func (r *Resolver) Metrics() *Metrics {
	return r.metrics
}

// GetPolicy returns the current policy. If no policy has been pinned yet,
// it returns the default policy without pinning it.
func (r *Resolver) GetPolicy() Policy {
	if p := Policy(r.policy.Load()); p != 0 {
		return p
	}
	return DefaultPolicy
}

// IsPinned returns true if the policy has been pinned.
func (r *Resolver) IsPinned() bool {
	return r.policy.Load() != 0
}

// SetPolicy pins the policy, unless it has already been pinned. Setting
// a policy different from an already pinned one has no effect other than
// emitting a diagnostic message.
func (r *Resolver) SetPolicy(p Policy) {
	if !p.IsValid() {
		r.diag("SetPolicy() called with invalid policy %d, ignored", int(p))
		return
	}

	r.pin(p)

	if pinned := Policy(r.policy.Load()); pinned != p {
		r.metrics.conflict()
		r.diag("SetPolicy(%s) called with policy already set to %s, only first call heeded",
			p, pinned)
	}
}

// IsAvailable returns true if high-bandwidth memory is available.
func (r *Resolver) IsAvailable() bool {
	return r.alloc.IsAvailable(memkind.HBW)
}

// ResolveKind returns the memory kind to allocate from for the given
// page size. It pins the default policy if no policy has been pinned.
func (r *Resolver) ResolveKind(ps PageSize) memkind.Kind {
	policy := r.pinned()

	// There is no bound variant for 1G pages.
	if ps == PageSize1GB {
		return memkind.HBWPreferredGBTLB
	}

	if policy == PolicyBind {
		if ps == PageSize2MB {
			return memkind.HBWHugeTLB
		}
		return memkind.HBW
	}

	if ps == PageSize2MB {
		return r.preferred(memkind.HBWPreferredHugeTLB, memkind.HugeTLB)
	}
	return r.preferred(memkind.HBWPreferred, memkind.Default)
}

// Malloc allocates size bytes. It returns nil on failure.
func (r *Resolver) Malloc(size int) []byte {
	kind := r.ResolveKind(PageSize4KB)
	b := r.alloc.Malloc(kind, size)
	r.metrics.observe(opMalloc, kind, b != nil || size == 0)
	return b
}

// Calloc allocates zeroed memory for count elements of size bytes.
// It returns nil on failure.
func (r *Resolver) Calloc(count, size int) []byte {
	kind := r.ResolveKind(PageSize4KB)
	b := r.alloc.Calloc(kind, count, size)
	r.metrics.observe(opCalloc, kind, b != nil || count == 0 || size == 0)
	return b
}

// PosixMemalign allocates size bytes aligned to alignment, which must be
// a power of two multiple of the size of a pointer. It returns ErrAlignment
// for an invalid alignment and ErrAllocation if memory runs out.
func (r *Resolver) PosixMemalign(alignment, size int) ([]byte, error) {
	return r.memalign(alignment, size, PageSize4KB)
}

// PosixMemalignPsize is like PosixMemalign but allocates memory backed by
// pages of the given size.
func (r *Resolver) PosixMemalignPsize(alignment, size int, ps PageSize) ([]byte, error) {
	return r.memalign(alignment, size, ps)
}

// Realloc resizes the given block, or allocates a new one for nil. It
// returns nil on failure, leaving the original block intact. The block
// must have been allocated by the resolver.
func (r *Resolver) Realloc(b []byte, size int) []byte {
	kind := r.ResolveKind(PageSize4KB)
	nb := r.alloc.Realloc(kind, b, size)
	r.metrics.observe(opRealloc, kind, nb != nil || size == 0)
	return nb
}

// Free frees a block allocated by the resolver. Freeing nil is a no-op.
func (r *Resolver) Free(b []byte) {
	if b == nil {
		return
	}
	r.alloc.Free(memkind.Default, b)
}

func (r *Resolver) memalign(alignment, size int, ps PageSize) ([]byte, error) {
	kind := r.ResolveKind(ps)
	b, err := r.alloc.PosixMemalign(kind, alignment, size)
	r.metrics.observe(opPosixMemalign, kind, err == nil)
	return b, remapError(err)
}

// pinned pins the default policy unless a policy is pinned already, then
// returns the pinned policy.
func (r *Resolver) pinned() Policy {
	if p := Policy(r.policy.Load()); p != 0 {
		return p
	}
	r.pin(DefaultPolicy)
	return Policy(r.policy.Load())
}

func (r *Resolver) pin(p Policy) {
	r.once.Do(func() {
		r.policy.Store(int32(p))
		log.Debug("pinned policy %s", p)
	})
}

func (r *Resolver) preferred(kind, fallback memkind.Kind) memkind.Kind {
	if r.alloc.IsAvailable(kind) {
		return kind
	}

	r.metrics.fallback(kind, fallback)
	if log.DebugEnabled() {
		log.Debug("%s not available, falling back to %s", kind, fallback)
	}

	return fallback
}
