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

package klogcontrol

import (
	"strconv"
)

// Config provides runtime configuration for klog.
// Field names follow the klog command line flags they correspond to.
type Config struct {
	// +optional
	Add_dir_header *bool `json:"add_dir_header,omitempty"`
	// +optional
	Alsologtostderr *bool `json:"alsologtostderr,omitempty"`
	// +optional
	Log_file string `json:"log_file,omitempty"`
	// +optional
	Logtostderr *bool `json:"logtostderr,omitempty"`
	// +optional
	One_output *bool `json:"one_output,omitempty"`
	// +optional
	Skip_headers *bool `json:"skip_headers,omitempty"`
	// +optional
	Skip_log_headers *bool `json:"skip_log_headers,omitempty"`
	// +optional
	Stderrthreshold *int `json:"stderrthreshold,omitempty"`
	// +optional
	V *int `json:"v,omitempty"`
	// +optional
	Vmodule string `json:"vmodule,omitempty"`
}

// GetByFlag returns the configured value for the given klog flag, if any.
func (c *Config) GetByFlag(name string) (string, bool) {
	if c == nil {
		return "", false
	}

	switch name {
	case "add_dir_header":
		return boolValue(c.Add_dir_header)
	case "alsologtostderr":
		return boolValue(c.Alsologtostderr)
	case "log_file":
		return c.Log_file, c.Log_file != ""
	case "logtostderr":
		return boolValue(c.Logtostderr)
	case "one_output":
		return boolValue(c.One_output)
	case "skip_headers":
		return boolValue(c.Skip_headers)
	case "skip_log_headers":
		return boolValue(c.Skip_log_headers)
	case "stderrthreshold":
		return intValue(c.Stderrthreshold)
	case "v":
		return intValue(c.V)
	case "vmodule":
		return c.Vmodule, c.Vmodule != ""
	}

	return "", false
}

func boolValue(b *bool) (string, bool) {
	if b == nil {
		return "", false
	}
	return strconv.FormatBool(*b), true
}

func intValue(i *int) (string, bool) {
	if i == nil {
		return "", false
	}
	return strconv.Itoa(*i), true
}
