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

package log

import (
	"testing"

	"github.com/stretchr/testify/require"

	cfgapi "github.com/intel/hbwmalloc/pkg/apis/config/v1alpha1/log"
)

func TestSrcmapParse(t *testing.T) {
	type testCase struct {
		name    string
		value   string
		result  srcmap
		str     string
		invalid bool
	}

	for _, tc := range []*testCase{
		{
			name:   "empty",
			value:  "",
			result: srcmap{},
			str:    "",
		},
		{
			name:   "implicit on",
			value:  "hbwmalloc,memkind",
			result: srcmap{"hbwmalloc": true, "memkind": true},
			str:    "on:hbwmalloc,memkind",
		},
		{
			name:   "all",
			value:  "all",
			result: srcmap{"*": true},
			str:    "on:*",
		},
		{
			name:   "mixed states",
			value:  "on:hbwmalloc,off:memkind,config",
			result: srcmap{"hbwmalloc": true, "memkind": false, "config": false},
			str:    "on:hbwmalloc,off:config,memkind",
		},
		{
			name:    "invalid state",
			value:   "maybe:hbwmalloc",
			invalid: true,
		},
		{
			name:    "invalid spec",
			value:   "on:off:hbwmalloc",
			invalid: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m := make(srcmap)
			err := m.parse(tc.value)
			if tc.invalid {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.result, m)
			require.Equal(t, tc.str, m.String())

			again := make(srcmap)
			require.NoError(t, again.parse(m.String()))
			require.Equal(t, m, again)
		})
	}
}

func TestSrcmapEnabled(t *testing.T) {
	m := srcmap{"*": true, "memkind": false}
	require.True(t, m.enabled("hbwmalloc"))
	require.False(t, m.enabled("memkind"))
	require.False(t, srcmap{}.enabled("hbwmalloc"))
}

func TestConfigure(t *testing.T) {
	defer func() {
		require.NoError(t, Configure(&cfgapi.Config{}))
	}()

	l := Get("log-test")
	require.Equal(t, "log-test", l.Source())

	require.NoError(t, Configure(&cfgapi.Config{Debug: []string{"log-test"}}))
	require.True(t, l.DebugEnabled())
	require.False(t, Get("other-source").DebugEnabled())

	require.NoError(t, Configure(&cfgapi.Config{Debug: []string{"all,off:log-test"}}))
	require.False(t, l.DebugEnabled())
	require.True(t, Get("other-source").DebugEnabled())

	require.Error(t, Configure(&cfgapi.Config{Debug: []string{"bogus:log-test"}}))

	require.NoError(t, Configure(&cfgapi.Config{}))
	require.False(t, l.EnableDebug(true))
	require.True(t, l.DebugEnabled())
}
