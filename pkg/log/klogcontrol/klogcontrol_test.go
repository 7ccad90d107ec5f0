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

package klogcontrol_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	cfgapi "github.com/intel/hbwmalloc/pkg/apis/config/v1alpha1/log/klogcontrol"
	"github.com/intel/hbwmalloc/pkg/log/klogcontrol"
)

func TestVerbosity(t *testing.T) {
	ctl := klogcontrol.Get()

	old, ok := ctl.Value("v")
	require.True(t, ok)
	defer func() {
		require.NoError(t, ctl.Set("v", old))
	}()

	require.NoError(t, ctl.SetVerbosity(4))
	v, ok := ctl.Value("v")
	require.True(t, ok)
	require.Equal(t, "4", v)

	require.Error(t, ctl.SetVerbosity(-1))
	v, _ = ctl.Value("v")
	require.Equal(t, "4", v)

	level := 2
	require.NoError(t, ctl.Configure(&cfgapi.Config{V: &level}))
	v, _ = ctl.Value("v")
	require.Equal(t, "2", v)

	_, ok = ctl.Value("no-such-flag")
	require.False(t, ok)
}
