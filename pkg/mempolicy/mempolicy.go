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

// Package mempolicy provides the Linux kernel memory policy modes and
// flags, and functions to set and get the default memory policy of the
// calling thread using the set_mempolicy and get_mempolicy syscalls.
package mempolicy

import (
	"fmt"
	"sort"
	"strings"
)

const (
	MPOL_DEFAULT = iota
	MPOL_PREFERRED
	MPOL_BIND
	MPOL_INTERLEAVE
	MPOL_LOCAL
	MPOL_PREFERRED_MANY
	MPOL_WEIGHTED_INTERLEAVE

	MPOL_F_STATIC_NODES   uint = (1 << 15)
	MPOL_F_RELATIVE_NODES uint = (1 << 14)
	MPOL_F_NUMA_BALANCING uint = (1 << 13)

	MAX_NUMA_NODES = 1024
)

var Modes = map[string]uint{
	"MPOL_DEFAULT":             MPOL_DEFAULT,
	"MPOL_PREFERRED":           MPOL_PREFERRED,
	"MPOL_BIND":                MPOL_BIND,
	"MPOL_INTERLEAVE":          MPOL_INTERLEAVE,
	"MPOL_LOCAL":               MPOL_LOCAL,
	"MPOL_PREFERRED_MANY":      MPOL_PREFERRED_MANY,
	"MPOL_WEIGHTED_INTERLEAVE": MPOL_WEIGHTED_INTERLEAVE,
}

var Flags = map[string]uint{
	"MPOL_F_STATIC_NODES":   MPOL_F_STATIC_NODES,
	"MPOL_F_RELATIVE_NODES": MPOL_F_RELATIVE_NODES,
	"MPOL_F_NUMA_BALANCING": MPOL_F_NUMA_BALANCING,
}

var ModeNames map[uint]string

var FlagNames map[uint]string

// ModeString returns a symbolic representation of a mode with flags,
// for instance MPOL_BIND|MPOL_F_STATIC_NODES.
func ModeString(mode uint) string {
	var flags []string
	for value, name := range FlagNames {
		if mode&value != 0 {
			flags = append(flags, name)
			mode &^= value
		}
	}
	sort.Strings(flags)

	modeStr, ok := ModeNames[mode]
	if !ok {
		modeStr = fmt.Sprintf("MPOL_UNKNOWN(%d)", mode)
	}

	return strings.Join(append([]string{modeStr}, flags...), "|")
}

func nodesToMask(nodes []int) ([]uint64, error) {
	maxNode := 0
	for _, node := range nodes {
		if node < 0 {
			return nil, fmt.Errorf("node %d out of range", node)
		}
		if node > maxNode {
			maxNode = node
		}
	}
	if maxNode >= MAX_NUMA_NODES {
		return nil, fmt.Errorf("node %d out of range", maxNode)
	}
	mask := make([]uint64, (maxNode/64)+1)
	for _, node := range nodes {
		mask[node/64] |= (1 << (node % 64))
	}
	return mask, nil
}

func maskToNodes(mask []uint64) []int {
	nodes := make([]int, 0)
	for i := 0; i < len(mask)*64 && i < MAX_NUMA_NODES; i++ {
		if (mask[i/64] & (1 << (i % 64))) != 0 {
			nodes = append(nodes, i)
		}
	}
	return nodes
}

func init() {
	ModeNames = make(map[uint]string)
	for k, v := range Modes {
		ModeNames[v] = k
	}
	FlagNames = make(map[uint]string)
	for k, v := range Flags {
		FlagNames[v] = k
	}
}
