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

package hbwmalloc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	. "github.com/intel/hbwmalloc/pkg/hbwmalloc"
	"github.com/intel/hbwmalloc/pkg/memkind"
)

// This is the only test using the process-wide default resolver.
func TestDefaultResolver(t *testing.T) {
	h := newHeap(t, memkind.Default, memkind.HBW, memkind.HBWPreferred)
	d := &diagnostics{}

	require.Error(t, SetAllocator(nil))
	require.NoError(t, SetAllocator(h, WithDiagnostics(d.report)))
	require.ErrorIs(t, SetAllocator(h), ErrAlreadyInitialized)
	require.Equal(t, memkind.Allocator(h), Default().Allocator())

	require.Equal(t, PolicyPreferred, GetPolicy())
	require.True(t, IsAvailable())
	require.False(t, Default().IsPinned())

	SetPolicy(PolicyBind)
	SetPolicy(PolicyPreferred)
	require.Equal(t, PolicyBind, GetPolicy())
	require.Equal(t, int32(1), d.count.Load())

	b := Malloc(100)
	require.Len(t, b, 100)
	owner, _ := h.Owner(b)
	require.Equal(t, memkind.HBW, owner)

	b = Realloc(b, 200)
	require.Len(t, b, 200)
	Free(b)

	b = Calloc(10, 10)
	require.Len(t, b, 100)
	Free(b)

	b, err := PosixMemalign(64, 100)
	require.NoError(t, err)
	Free(b)

	_, err = PosixMemalign(3, 100)
	require.ErrorIs(t, err, ErrAlignment)

	_, err = PosixMemalignPsize(64, 100, PageSize2MB)
	require.ErrorIs(t, err, ErrAllocation)

	Free(nil)
	require.Zero(t, h.Blocks())
}
