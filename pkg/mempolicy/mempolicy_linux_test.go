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

//go:build linux

package mempolicy

import (
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestSetGetMempolicy(t *testing.T) {
	type testCase struct {
		name string
		mode uint
	}

	for _, tc := range []*testCase{
		{name: "bind", mode: MPOL_BIND},
		{name: "preferred", mode: MPOL_PREFERRED},
	} {
		t.Run(tc.name, func(t *testing.T) {
			// memory policies are per thread
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()

			mode, _, err := GetMempolicy()
			if errors.Is(err, unix.EPERM) || errors.Is(err, unix.ENOSYS) {
				t.Skipf("memory policies not permitted: %v", err)
			}
			require.NoError(t, err)
			if mode != MPOL_DEFAULT {
				t.Skipf("thread already has memory policy %s", ModeString(mode))
			}

			err = SetMempolicy(tc.mode, []int{0})
			if errors.Is(err, unix.EPERM) {
				t.Skipf("setting memory policy not permitted: %v", err)
			}
			require.NoError(t, err)
			defer func() {
				require.NoError(t, SetMempolicy(MPOL_DEFAULT, nil))
			}()

			mode, nodes, err := GetMempolicy()
			require.NoError(t, err)
			require.Equal(t, tc.mode, mode, "got %s", ModeString(mode))
			require.Equal(t, []int{0}, nodes)
		})
	}
}
