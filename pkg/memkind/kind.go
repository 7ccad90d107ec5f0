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

package memkind

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind identifies a statically known kind of memory.
type Kind int

const (
	Default             Kind = iota // ordinary memory, 4K pages
	HBW                             // high-bandwidth memory, no fallback
	HBWPreferred                    // high-bandwidth memory, falls back to ordinary memory
	HBWHugeTLB                      // high-bandwidth memory on 2M pages, no fallback
	HBWPreferredHugeTLB             // high-bandwidth memory on 2M pages, falls back to ordinary memory
	HBWPreferredGBTLB               // high-bandwidth memory on 1G pages, falls back to ordinary memory
	HugeTLB                         // ordinary memory on 2M pages

	kindCount
)

const (
	PageSize4K = 4 << 10
	PageSize2M = 2 << 20
	PageSize1G = 1 << 30
)

var (
	kindToString = map[Kind]string{
		Default:             "MEMKIND_DEFAULT",
		HBW:                 "MEMKIND_HBW",
		HBWPreferred:        "MEMKIND_HBW_PREFERRED",
		HBWHugeTLB:          "MEMKIND_HBW_HUGETLB",
		HBWPreferredHugeTLB: "MEMKIND_HBW_PREFERRED_HUGETLB",
		HBWPreferredGBTLB:   "MEMKIND_HBW_PREFERRED_GBTLB",
		HugeTLB:             "MEMKIND_HUGETLB",
	}
	stringToKind map[string]Kind
)

// Kinds returns all known kinds.
func Kinds() []Kind {
	kinds := make([]Kind, 0, kindCount)
	for k := Default; k < kindCount; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// ParseKind parses the given string into a kind. Both full names, like
// MEMKIND_HBW_PREFERRED, and names without the MEMKIND_ prefix, like
// hbw_preferred, are accepted.
func ParseKind(str string) (Kind, error) {
	name := strings.ToUpper(strings.TrimSpace(str))
	if !strings.HasPrefix(name, "MEMKIND_") {
		name = "MEMKIND_" + name
	}
	if k, ok := stringToKind[name]; ok {
		return k, nil
	}

	return 0, fmt.Errorf("%w: %q", ErrInvalidKind, str)
}

// MustParseKind parses the given string into a kind.
// It panicks on failure.
func MustParseKind(str string) Kind {
	k, err := ParseKind(str)
	if err == nil {
		return k
	}

	panic(err)
}

// IsValid returns true if the kind is known.
func (k Kind) IsValid() bool {
	return k >= Default && k < kindCount
}

// IsHBW returns true if the kind is backed by high-bandwidth memory.
func (k Kind) IsHBW() bool {
	switch k {
	case HBW, HBWPreferred, HBWHugeTLB, HBWPreferredHugeTLB, HBWPreferredGBTLB:
		return true
	}
	return false
}

// IsPreferred returns true if the kind falls back to ordinary memory
// when high-bandwidth memory is exhausted.
func (k Kind) IsPreferred() bool {
	switch k {
	case HBWPreferred, HBWPreferredHugeTLB, HBWPreferredGBTLB:
		return true
	}
	return false
}

// PageSize returns the size of the pages backing the kind.
func (k Kind) PageSize() int {
	switch k {
	case HBWHugeTLB, HBWPreferredHugeTLB, HugeTLB:
		return PageSize2M
	case HBWPreferredGBTLB:
		return PageSize1G
	}
	return PageSize4K
}

// Mask returns the KindMask for the kind.
func (k Kind) Mask() KindMask {
	return KindMask(1 << k)
}

// String returns a string representation of the kind.
func (k Kind) String() string {
	if str, ok := kindToString[k]; ok {
		return str
	}

	return fmt.Sprintf("%%!(memkind:Bad-Kind %d)", k)
}

// MarshalJSON is the json.Marshaller for Kind.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON is the json.Unmarshaller for Kind.
func (k *Kind) UnmarshalJSON(data []byte) error {
	str := ""
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidKind, err)
	}

	parsed, err := ParseKind(str)
	if err != nil {
		return err
	}

	*k = parsed
	return nil
}

// KindMask represents a set of kinds as a bit mask.
type KindMask int

const (
	KindMaskDefault KindMask = 1 << Default
	KindMaskHugeTLB KindMask = 1 << HugeTLB
	KindMaskHBW     KindMask = (1 << HBW) | (1 << HBWPreferred) | (1 << HBWHugeTLB) |
		(1 << HBWPreferredHugeTLB) | (1 << HBWPreferredGBTLB)
	KindMaskAll KindMask = (1 << kindCount) - 1
)

// NewKindMask returns a KindMask containing the given kinds.
func NewKindMask(kinds ...Kind) KindMask {
	return KindMask(0).Set(kinds...)
}

// ParseKindMask parses a comma-separated list of kinds into a KindMask.
func ParseKindMask(str string) (KindMask, error) {
	m := KindMask(0)
	if strings.TrimSpace(str) == "" {
		return m, nil
	}
	for _, s := range strings.Split(str, ",") {
		k, err := ParseKind(s)
		if err != nil {
			return 0, err
		}
		m |= k.Mask()
	}
	return m, nil
}

// Set returns a KindMask with the original and the given kinds added.
func (m KindMask) Set(kinds ...Kind) KindMask {
	for _, k := range kinds {
		if k.IsValid() {
			m |= k.Mask()
		}
	}
	return m
}

// Clear returns a KindMask with the given kinds removed.
func (m KindMask) Clear(kinds ...Kind) KindMask {
	for _, k := range kinds {
		m &^= k.Mask()
	}
	return m
}

// Contains returns true if all the given kinds are present in the KindMask.
func (m KindMask) Contains(kinds ...Kind) bool {
	for _, k := range kinds {
		if !k.IsValid() || m&k.Mask() == 0 {
			return false
		}
	}
	return true
}

// Slice returns the kinds present in the KindMask.
func (m KindMask) Slice() []Kind {
	var kinds []Kind
	for _, k := range Kinds() {
		if m&k.Mask() != 0 {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// String returns a string representation of the KindMask.
func (m KindMask) String() string {
	names := make([]string, 0, kindCount)
	for _, k := range m.Slice() {
		names = append(names, k.String())
	}
	return strings.Join(names, ",")
}

func init() {
	stringToKind = make(map[string]Kind, len(kindToString))
	for k, str := range kindToString {
		stringToKind[str] = k
	}
}
