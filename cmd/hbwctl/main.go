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

// hbwctl shows how allocations are resolved to memory kinds under a
// high-bandwidth memory policy, and optionally runs probe allocations.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/api/resource"
	"k8s.io/utils/cpuset"

	"github.com/intel/hbwmalloc/pkg/config"
	"github.com/intel/hbwmalloc/pkg/hbwmalloc"
	logger "github.com/intel/hbwmalloc/pkg/log"
	"github.com/intel/hbwmalloc/pkg/log/klogcontrol"
	"github.com/intel/hbwmalloc/pkg/memkind"
	"github.com/intel/hbwmalloc/pkg/mempolicy"
)

type logrusFormatter struct{}

func (f *logrusFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	return fmt.Appendf(nil, "hbwctl: %s %s\n", entry.Level, entry.Message), nil
}

var (
	log *logrus.Logger
)

// parseSizes parses a comma-separated list of sizes, like 1,4Ki,1Mi.
func parseSizes(str string) ([]int, error) {
	var sizes []int
	for _, s := range strings.Split(str, ",") {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		q, err := resource.ParseQuantity(s)
		if err != nil {
			return nil, fmt.Errorf("invalid size %q: %w", s, err)
		}
		if q.Sign() < 0 {
			return nil, fmt.Errorf("invalid negative size %q", s)
		}
		sizes = append(sizes, int(q.Value()))
	}
	return sizes, nil
}

// parseNodes parses a node list, like 0,2-3.
func parseNodes(str string) ([]int, error) {
	nodes, err := cpuset.Parse(str)
	if err != nil {
		return nil, fmt.Errorf("invalid node list %q: %w", str, err)
	}
	if nodes.IsEmpty() {
		return nil, fmt.Errorf("empty node list %q", str)
	}
	return nodes.List(), nil
}

func loadConfig(path, policy, available string) (*config.Config, error) {
	var (
		cfg = config.Default()
		err error
	)

	if path != "" {
		log.Debugf("reading configuration from %q", path)
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	if err = cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if policy != "" {
		cfg.Policy = policy
	}
	if available != "" {
		cfg.Available = strings.Split(available, ",")
	}

	return cfg, cfg.Validate()
}

func showResolution(r *hbwmalloc.Resolver) {
	policy := r.GetPolicy()
	fmt.Printf("Policy: %s (kernel equivalent %s)\n", policy, mempolicy.ModeString(policy.Mempolicy()))
	fmt.Printf("High-bandwidth memory available: %v\n", r.IsAvailable())
	fmt.Printf("Kind resolution:\n")
	for _, ps := range hbwmalloc.PageSizes() {
		kind := r.ResolveKind(ps)
		fallback := "no fallback"
		if kind.IsPreferred() {
			fallback = "falls back to ordinary memory"
		}
		fmt.Printf("  %-4s pages => %s (%s)\n", ps, kind, fallback)
	}
}

func probe(r *hbwmalloc.Resolver, h *memkind.Heap, sizes []int, alignment int, ps hbwmalloc.PageSize) int {
	failures := 0
	fmt.Printf("Probe allocations:\n")
	for _, size := range sizes {
		b := r.Malloc(size)
		if b == nil && size > 0 {
			fmt.Printf("  malloc(%d): failed\n", size)
			failures++
		} else {
			kind, _ := h.Owner(b)
			fmt.Printf("  malloc(%d): %s\n", size, kind)
			r.Free(b)
		}

		b, err := r.PosixMemalignPsize(alignment, size, ps)
		if err != nil {
			fmt.Printf("  posix_memalign(%d, %d, %s): %v\n", alignment, size, ps, err)
			failures++
		} else {
			kind, _ := h.Owner(b)
			fmt.Printf("  posix_memalign(%d, %d, %s): %s\n", alignment, size, ps, kind)
			r.Free(b)
		}
	}
	return failures
}

// applyMempolicy sets the kernel memory policy matching the HBW policy for
// the given nodes. The policy applies to the calling thread, which stays
// locked to the main goroutine.
func applyMempolicy(policy hbwmalloc.Policy, nodes []int) error {
	runtime.LockOSThread()
	mode := policy.Mempolicy()
	log.Debugf("setting memory policy: %s (%d), nodes: %s", mempolicy.ModeString(mode), mode,
		cpuset.New(nodes...).String())
	return mempolicy.SetMempolicy(mode, nodes)
}

func showMempolicy() {
	mode, nodes, err := mempolicy.GetMempolicy()
	if err != nil {
		log.Errorf("GetMempolicy failed: %v", err)
		return
	}
	fmt.Printf("Current memory policy: %s (%d), nodes: %s\n", mempolicy.ModeString(mode), mode,
		cpuset.New(nodes...).String())
}

func dumpMetrics(reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(os.Stdout, mf); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	log = logrus.StandardLogger()
	log.SetFormatter(&logrusFormatter{})

	configFlag := flag.String("config", "", "configuration file")
	policyFlag := flag.String("policy", "", "HBW policy, preferred or bind, overrides configuration")
	availableFlag := flag.String("available", "", "Comma-separated list of available memory kinds, e.g. MEMKIND_HBW,MEMKIND_HBW_PREFERRED")
	allocFlag := flag.String("alloc", "", "Comma-separated list of probe allocation sizes, e.g. 1,4Ki,1Mi")
	alignFlag := flag.Int("alignment", 64, "alignment for probe aligned allocations")
	pageSizeFlag := flag.String("pagesize", "4KB", "page size for probe aligned allocations: 4KB, 2MB or 1GB")
	mempolicyFlag := flag.Bool("show-mempolicy", false, "show the current kernel memory policy")
	applyFlag := flag.Bool("apply-mempolicy", false, "set the kernel memory policy matching the HBW policy for -nodes")
	nodesFlag := flag.String("nodes", "", "Comma-separated list of high-bandwidth memory nodes, e.g. 1,2-3")
	metricsFlag := flag.Bool("metrics", false, "dump allocation metrics when done")
	metricsAddrFlag := flag.String("metrics-addr", "", "serve allocation metrics on this address when done, e.g. :8891")
	verboseFlag := flag.Bool("v", false, "Enable verbose logging")
	veryVerboseFlag := flag.Bool("vv", false, "Enable very verbose logging")
	flag.Parse()

	log.SetLevel(logrus.InfoLevel)
	if *verboseFlag {
		log.SetLevel(logrus.DebugLevel)
	}
	if *veryVerboseFlag {
		log.SetLevel(logrus.TraceLevel)
	}

	cfg, err := loadConfig(*configFlag, *policyFlag, *availableFlag)
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	log.Debugf("configuration: %+v", cfg)

	if err := cfg.ConfigureLogging(); err != nil {
		log.Fatalf("failed to configure logging: %v", err)
	}
	if *veryVerboseFlag {
		logger.EnableDebug("hbwmalloc")
		logger.EnableDebug("memkind")
		ctl := klogcontrol.Get()
		if err := ctl.SetVerbosity(4); err != nil {
			log.Warnf("%v", err)
		}
		if v, ok := ctl.Value("v"); ok {
			log.Tracef("klog verbosity set to %s", v)
		}
	}

	sizes, err := parseSizes(*allocFlag)
	if err != nil {
		log.Fatalf("invalid -alloc: %v", err)
	}
	pageSize, err := hbwmalloc.ParsePageSize(*pageSizeFlag)
	if err != nil {
		log.Fatalf("invalid -pagesize: %v", err)
	}

	heap, err := cfg.NewHeap()
	if err != nil {
		log.Fatalf("failed to create allocator: %v", err)
	}
	if err := hbwmalloc.SetAllocator(heap); err != nil {
		log.Fatalf("failed to set allocator: %v", err)
	}

	policy, err := cfg.GetPolicy()
	if err != nil {
		log.Fatalf("invalid policy: %v", err)
	}
	log.Debugf("setting policy %s", policy)
	hbwmalloc.SetPolicy(policy)

	if *applyFlag {
		if *nodesFlag == "" {
			log.Fatalf("-apply-mempolicy needs -nodes")
		}
		nodes, err := parseNodes(*nodesFlag)
		if err != nil {
			log.Fatalf("invalid -nodes: %v", err)
		}
		if err := applyMempolicy(policy, nodes); err != nil {
			log.Fatalf("SetMempolicy failed: %v", err)
		}
	}

	r := hbwmalloc.Default()
	showResolution(r)

	failures := 0
	if len(sizes) > 0 {
		failures = probe(r, heap, sizes, *alignFlag, pageSize)
	}

	if *mempolicyFlag {
		showMempolicy()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(r.Metrics())

	if *metricsFlag {
		if err := dumpMetrics(reg); err != nil {
			log.Errorf("failed to dump metrics: %v", err)
		}
	}

	if *metricsAddrFlag != "" {
		http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		log.Infof("serving metrics on %s", *metricsAddrFlag)
		if err := http.ListenAndServe(*metricsAddrFlag, nil); err != nil {
			log.Fatalf("metrics server failed: %v", err)
		}
	}

	if failures > 0 {
		os.Exit(1)
	}
}
