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
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

var (
	ErrAlignment          = fmt.Errorf("hbwmalloc: invalid alignment")
	ErrAllocation         = fmt.Errorf("hbwmalloc: memory allocation failed")
	ErrAlreadyInitialized = fmt.Errorf("hbwmalloc: default resolver already initialized")
)

// allocator status codes we translate to our own errors
var statusToError = map[unix.Errno]error{
	unix.EINVAL: ErrAlignment,
	unix.ENOMEM: ErrAllocation,
}

// remapError translates an aligned allocation status from the allocator.
// Statuses without a translation are returned as such.
func remapError(err error) error {
	if err == nil {
		return nil
	}

	var errno unix.Errno
	if errors.As(err, &errno) {
		if mapped, ok := statusToError[errno]; ok {
			return mapped
		}
	}

	return err
}
