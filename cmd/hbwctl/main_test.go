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

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestParseSizes(t *testing.T) {
	type testCase struct {
		name    string
		value   string
		sizes   []int
		invalid bool
	}

	for _, tc := range []*testCase{
		{name: "empty", value: "", sizes: nil},
		{name: "plain", value: "1,4096", sizes: []int{1, 4096}},
		{name: "suffixed", value: "4Ki, 1Mi,", sizes: []int{4096, 1 << 20}},
		{name: "invalid", value: "1,lots", invalid: true},
		{name: "negative", value: "-1", invalid: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			sizes, err := parseSizes(tc.value)
			if tc.invalid {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.sizes, sizes)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	log = logrus.New()

	path := filepath.Join(t.TempDir(), "hbw.yaml")
	require.NoError(t, os.WriteFile(path, []byte("policy: bind\navailable: [MEMKIND_HBW]\n"), 0644))

	cfg, err := loadConfig(path, "", "")
	require.NoError(t, err)
	require.Equal(t, "bind", cfg.Policy)
	require.Equal(t, []string{"MEMKIND_HBW"}, cfg.Available)

	cfg, err = loadConfig(path, "preferred", "MEMKIND_DEFAULT,MEMKIND_HBW_PREFERRED")
	require.NoError(t, err)
	require.Equal(t, "preferred", cfg.Policy)
	require.Equal(t, []string{"MEMKIND_DEFAULT", "MEMKIND_HBW_PREFERRED"}, cfg.Available)

	_, err = loadConfig(path, "always", "")
	require.Error(t, err)
}

func TestParseNodes(t *testing.T) {
	type testCase struct {
		name    string
		value   string
		nodes   []int
		invalid bool
	}

	for _, tc := range []*testCase{
		{name: "single", value: "1", nodes: []int{1}},
		{name: "list and range", value: "0,2-4", nodes: []int{0, 2, 3, 4}},
		{name: "empty", value: "", invalid: true},
		{name: "invalid", value: "1-x", invalid: true},
		{name: "reversed range", value: "3-1", invalid: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			nodes, err := parseNodes(tc.value)
			if tc.invalid {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.nodes, nodes)
		})
	}
}
