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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/intel/hbwmalloc/pkg/memkind"
	"github.com/intel/hbwmalloc/pkg/mempolicy"
)

// Policy is the policy for allocating high-bandwidth memory.
type Policy int32

const (
	// PolicyBind requires memory to be allocated from HBW.
	PolicyBind Policy = 1
	// PolicyPreferred allocates from HBW if possible, from ordinary memory otherwise.
	PolicyPreferred Policy = 2

	// DefaultPolicy is used unless another policy is set.
	DefaultPolicy = PolicyPreferred
)

var (
	policyToString = map[Policy]string{
		PolicyBind:      "BIND",
		PolicyPreferred: "PREFERRED",
	}
	stringToPolicy = map[string]Policy{
		"BIND":                 PolicyBind,
		"HBW_POLICY_BIND":      PolicyBind,
		"PREFERRED":            PolicyPreferred,
		"HBW_POLICY_PREFERRED": PolicyPreferred,
	}
)

// ParsePolicy parses the given string into a policy.
func ParsePolicy(str string) (Policy, error) {
	if p, ok := stringToPolicy[strings.ToUpper(strings.TrimSpace(str))]; ok {
		return p, nil
	}
	return 0, fmt.Errorf("hbwmalloc: invalid policy %q", str)
}

// IsValid returns true if the policy is known.
func (p Policy) IsValid() bool {
	_, ok := policyToString[p]
	return ok
}

// Mempolicy returns the kernel memory policy mode corresponding to the policy.
func (p Policy) Mempolicy() uint {
	switch p {
	case PolicyBind:
		return mempolicy.MPOL_BIND
	case PolicyPreferred:
		return mempolicy.MPOL_PREFERRED
	}
	return mempolicy.MPOL_DEFAULT
}

// String returns a string representation of the policy.
func (p Policy) String() string {
	if str, ok := policyToString[p]; ok {
		return str
	}
	return fmt.Sprintf("%%!(hbwmalloc:Bad-Policy %d)", p)
}

// MarshalJSON is the json.Marshaller for Policy.
func (p Policy) MarshalJSON() ([]byte, error) {
	return json.Marshal(strings.ToLower(p.String()))
}

// UnmarshalJSON is the json.Unmarshaller for Policy.
func (p *Policy) UnmarshalJSON(data []byte) error {
	str := ""
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("hbwmalloc: invalid policy: %w", err)
	}

	parsed, err := ParsePolicy(str)
	if err != nil {
		return err
	}

	*p = parsed
	return nil
}

// PageSize is a hint for the size of the pages backing an allocation.
type PageSize int

const (
	// PageSize4KB requests memory backed by ordinary 4KB pages.
	PageSize4KB PageSize = iota + 1
	// PageSize2MB requests memory backed by 2MB huge pages.
	PageSize2MB
	// PageSize1GB requests memory backed by 1GB gigantic pages.
	PageSize1GB
)

var (
	pageSizeToString = map[PageSize]string{
		PageSize4KB: "4KB",
		PageSize2MB: "2MB",
		PageSize1GB: "1GB",
	}
	stringToPageSize = map[string]PageSize{
		"4K":               PageSize4KB,
		"4KB":              PageSize4KB,
		"HBW_PAGESIZE_4KB": PageSize4KB,
		"2M":               PageSize2MB,
		"2MB":              PageSize2MB,
		"HBW_PAGESIZE_2MB": PageSize2MB,
		"1G":               PageSize1GB,
		"1GB":              PageSize1GB,
		"HBW_PAGESIZE_1GB": PageSize1GB,
	}
)

// PageSizes returns all known page sizes.
func PageSizes() []PageSize {
	return []PageSize{PageSize4KB, PageSize2MB, PageSize1GB}
}

// ParsePageSize parses the given string into a page size.
func ParsePageSize(str string) (PageSize, error) {
	if ps, ok := stringToPageSize[strings.ToUpper(strings.TrimSpace(str))]; ok {
		return ps, nil
	}
	return 0, fmt.Errorf("hbwmalloc: invalid page size %q", str)
}

// Bytes returns the page size in bytes. Unknown page sizes are 4K.
func (ps PageSize) Bytes() int {
	switch ps {
	case PageSize2MB:
		return memkind.PageSize2M
	case PageSize1GB:
		return memkind.PageSize1G
	}
	return memkind.PageSize4K
}

// String returns a string representation of the page size.
func (ps PageSize) String() string {
	if str, ok := pageSizeToString[ps]; ok {
		return str
	}
	return fmt.Sprintf("%%!(hbwmalloc:Bad-PageSize %d)", ps)
}
