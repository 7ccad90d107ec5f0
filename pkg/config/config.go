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

// Package config implements loading and validation of the hbwmalloc
// configuration: the allocation policy, the memory kinds available for
// allocation, per-kind capacity limits, and logging.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	"sigs.k8s.io/yaml"

	logcfg "github.com/intel/hbwmalloc/pkg/apis/config/v1alpha1/log"
	"github.com/intel/hbwmalloc/pkg/hbwmalloc"
	logger "github.com/intel/hbwmalloc/pkg/log"
	"github.com/intel/hbwmalloc/pkg/memkind"
)

const (
	// PolicyEnvVar overrides the configured policy.
	PolicyEnvVar = "HBW_POLICY"
	// AvailableEnvVar overrides the configured available kinds.
	AvailableEnvVar = "HBW_AVAILABLE_KINDS"
)

var (
	log = logger.Get("config")
)

// Config is the hbwmalloc configuration.
type Config struct {
	// Policy is the allocation policy, preferred or bind.
	// +optional
	Policy string `json:"policy,omitempty"`
	// Available lists the memory kinds available for allocation. If
	// omitted, only ordinary memory is available.
	// +optional
	Available []string `json:"available,omitempty"`
	// Capacity limits the amount of memory allocated from memory kinds.
	// +optional
	Capacity map[string]resource.Quantity `json:"capacity,omitempty"`
	// MaxAllocation limits the size of a single allocation. Defaults to
	// memkind.DefaultMaxAllocation.
	// +optional
	MaxAllocation *resource.Quantity `json:"maxAllocation,omitempty"`
	// Log configures logging.
	// +optional
	Log logcfg.Config `json:"log,omitempty"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Policy: strings.ToLower(hbwmalloc.DefaultPolicy.String()),
	}
}

// Load reads the configuration from the given file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read configuration file %q", path)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid configuration file %q", path)
	}

	log.Debug("loaded configuration from %q", path)

	return cfg, nil
}

// Parse parses and validates the given YAML or JSON configuration.
// Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv overrides configuration with values from the environment,
// looked up using the given function, typically os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if value, ok := lookup(PolicyEnvVar); ok && value != "" {
		log.Info("policy overridden by $%s: %s", PolicyEnvVar, value)
		c.Policy = value
	}

	if value, ok := lookup(AvailableEnvVar); ok {
		log.Info("available kinds overridden by $%s: %s", AvailableEnvVar, value)
		c.Available = nil
		for _, name := range strings.Split(value, ",") {
			if name = strings.TrimSpace(name); name != "" {
				c.Available = append(c.Available, name)
			}
		}
	}

	return c.Validate()
}

// Validate checks the configuration, reporting all problems found.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Policy != "" {
		if _, err := hbwmalloc.ParsePolicy(c.Policy); err != nil {
			result = multierror.Append(result, err)
		}
	}

	for _, name := range c.Available {
		if _, err := memkind.ParseKind(name); err != nil {
			result = multierror.Append(result, err)
		}
	}

	for name, q := range c.Capacity {
		if _, err := memkind.ParseKind(name); err != nil {
			result = multierror.Append(result, fmt.Errorf("capacity: %w", err))
			continue
		}
		if q.Sign() < 0 {
			result = multierror.Append(result, fmt.Errorf("capacity: negative capacity %s for %s",
				q.String(), name))
		}
	}

	if q := c.MaxAllocation; q != nil && q.Sign() <= 0 {
		result = multierror.Append(result, fmt.Errorf("maxAllocation: invalid limit %s", q.String()))
	}

	return result.ErrorOrNil()
}

// GetPolicy returns the configured policy.
func (c *Config) GetPolicy() (hbwmalloc.Policy, error) {
	if c.Policy == "" {
		return hbwmalloc.DefaultPolicy, nil
	}
	return hbwmalloc.ParsePolicy(c.Policy)
}

// HeapOptions returns the memkind.Heap options corresponding to the
// configuration.
func (c *Config) HeapOptions() ([]memkind.HeapOption, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	var opts []memkind.HeapOption

	if len(c.Available) > 0 {
		mask, err := memkind.ParseKindMask(strings.Join(c.Available, ","))
		if err != nil {
			return nil, err
		}
		opts = append(opts, memkind.WithAvailableMask(mask))
	}

	for name, q := range c.Capacity {
		kind := memkind.MustParseKind(name)
		opts = append(opts, memkind.WithCapacity(kind, q.Value()))
	}

	if c.MaxAllocation != nil {
		opts = append(opts, memkind.WithMaxAllocation(c.MaxAllocation.Value()))
	}

	return opts, nil
}

// NewHeap creates a memkind.Heap set up according to the configuration.
func (c *Config) NewHeap() (*memkind.Heap, error) {
	opts, err := c.HeapOptions()
	if err != nil {
		return nil, err
	}

	h, err := memkind.NewHeap(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create heap")
	}

	return h, nil
}

// ConfigureLogging applies the logging configuration.
func (c *Config) ConfigureLogging() error {
	return logger.Configure(&c.Log)
}
