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

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	logcfg "github.com/intel/hbwmalloc/pkg/apis/config/v1alpha1/log"
	"github.com/intel/hbwmalloc/pkg/config"
	"github.com/intel/hbwmalloc/pkg/hbwmalloc"
	"github.com/intel/hbwmalloc/pkg/memkind"
)

const sampleConfig = `
policy: bind
available:
  - MEMKIND_DEFAULT
  - MEMKIND_HBW
  - hbw_preferred
capacity:
  MEMKIND_HBW: 16Ki
  MEMKIND_HBW_PREFERRED: 1Mi
maxAllocation: 64Mi
log:
  debug:
    - hbwmalloc
  source: true
`

func TestParse(t *testing.T) {
	cfg, err := config.Parse([]byte(sampleConfig))
	require.NoError(t, err)

	expected := &config.Config{
		Policy:    "bind",
		Available: []string{"MEMKIND_DEFAULT", "MEMKIND_HBW", "hbw_preferred"},
		Log: logcfg.Config{
			Debug:     []string{"hbwmalloc"},
			LogSource: true,
		},
	}
	if diff := cmp.Diff(expected, cfg, cmpopts.IgnoreFields(config.Config{}, "Capacity", "MaxAllocation")); diff != "" {
		t.Errorf("unexpected configuration (-want +got):\n%s", diff)
	}

	hbw := cfg.Capacity["MEMKIND_HBW"]
	require.Equal(t, int64(16<<10), hbw.Value())
	pref := cfg.Capacity["MEMKIND_HBW_PREFERRED"]
	require.Equal(t, int64(1<<20), pref.Value())
	require.NotNil(t, cfg.MaxAllocation)
	require.Equal(t, int64(64<<20), cfg.MaxAllocation.Value())

	policy, err := cfg.GetPolicy()
	require.NoError(t, err)
	require.Equal(t, hbwmalloc.PolicyBind, policy)
}

func TestParseDefaults(t *testing.T) {
	cfg, err := config.Parse([]byte("{}"))
	require.NoError(t, err)

	policy, err := cfg.GetPolicy()
	require.NoError(t, err)
	require.Equal(t, hbwmalloc.PolicyPreferred, policy)

	h, err := cfg.NewHeap()
	require.NoError(t, err)
	require.True(t, h.IsAvailable(memkind.Default))
	require.False(t, h.IsAvailable(memkind.HBW))
	require.Equal(t, memkind.DefaultMaxAllocation, h.MaxAllocation())
}

func TestParseErrors(t *testing.T) {
	type testCase struct {
		name   string
		config string
		errors int
	}

	for _, tc := range []*testCase{
		{
			name:   "unknown field",
			config: "policy: bind\nfoo: bar\n",
			errors: -1,
		},
		{
			name:   "invalid policy",
			config: "policy: interleave\n",
			errors: 1,
		},
		{
			name:   "zero allocation limit",
			config: "maxAllocation: 0\n",
			errors: 1,
		},
		{
			name:   "multiple problems",
			config: "policy: interleave\navailable: [MEMKIND_PMEM, MEMKIND_HBW]\ncapacity:\n  MEMKIND_FOO: 1Gi\n  MEMKIND_HBW: -1Gi\n",
			errors: 4,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tc.config))
			require.Error(t, err)
			if tc.errors < 0 {
				return
			}
			merr, ok := err.(*multierror.Error)
			require.True(t, ok, "expected a multierror, got %T", err)
			require.Len(t, merr.Errors, tc.errors)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hbwmalloc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "bind", cfg.Policy)

	_, err = config.Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	require.True(t, os.IsNotExist(errors.Cause(err)))
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		config.PolicyEnvVar:    "BIND",
		config.AvailableEnvVar: "MEMKIND_DEFAULT, MEMKIND_HBW,",
	}
	lookup := func(name string) (string, bool) {
		value, ok := env[name]
		return value, ok
	}

	cfg := config.Default()
	require.NoError(t, cfg.ApplyEnv(lookup))
	require.Equal(t, "BIND", cfg.Policy)
	require.Equal(t, []string{"MEMKIND_DEFAULT", "MEMKIND_HBW"}, cfg.Available)

	env[config.PolicyEnvVar] = "sometimes"
	require.Error(t, config.Default().ApplyEnv(lookup))

	cfg = config.Default()
	require.NoError(t, cfg.ApplyEnv(func(string) (string, bool) { return "", false }))
	require.Equal(t, "preferred", cfg.Policy)
	require.Nil(t, cfg.Available)
}

func TestNewHeap(t *testing.T) {
	cfg, err := config.Parse([]byte(sampleConfig))
	require.NoError(t, err)

	h, err := cfg.NewHeap()
	require.NoError(t, err)

	require.True(t, h.IsAvailable(memkind.HBW))
	require.True(t, h.IsAvailable(memkind.HBWPreferred))
	require.False(t, h.IsAvailable(memkind.HugeTLB))
	require.Equal(t, int64(16<<10), h.Capacity(memkind.HBW))
	require.Equal(t, int64(64<<20), h.MaxAllocation())
	require.Nil(t, h.Malloc(memkind.HBWPreferred, 64<<20+1))

	require.NotNil(t, h.Malloc(memkind.HBW, 16<<10))
	require.Nil(t, h.Malloc(memkind.HBW, 1))
}
