// Package device probes host capabilities once and exposes them as an
// immutable value consumed by the orchestrator. No other package may
// branch on platform details directly.
package device

import (
	"os"
	"runtime"
	"strconv"
	"sync"
)

// Tier buckets the host into a coarse performance class that selects
// the orchestrator's execution strategy.
type Tier int

const (
	TierLow Tier = iota
	TierMedium
	TierHigh
)

func (t Tier) String() string {
	switch t {
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	default:
		return "low"
	}
}

// ParseTier converts a tier name ("low"/"medium"/"high") to a Tier.
func ParseTier(s string) (Tier, bool) {
	switch s {
	case "low":
		return TierLow, true
	case "medium":
		return TierMedium, true
	case "high":
		return TierHigh, true
	}
	return TierLow, false
}

// Capabilities describes what the host can do. Computed once per
// process; treat as read-only afterwards.
type Capabilities struct {
	GPUSupported   bool
	NNAPISupported bool
	AvailableMemMB int
	Tier           Tier
}

var (
	probeOnce sync.Once
	probed    Capabilities
)

// Probe returns the host capabilities, computing them on first call.
// Environment overrides (SCRAPWEIGH_TIER, SCRAPWEIGH_GPU) exist for
// constrained deployments and for reproducing device-specific behavior.
func Probe() Capabilities {
	probeOnce.Do(func() {
		probed = probe()
	})
	return probed
}

func probe() Capabilities {
	caps := Capabilities{
		AvailableMemMB: estimateMemMB(),
	}

	switch cpus := runtime.NumCPU(); {
	case cpus >= 8:
		caps.Tier = TierHigh
	case cpus >= 4:
		caps.Tier = TierMedium
	default:
		caps.Tier = TierLow
	}

	// Memory pressure demotes one tier. A many-core device with little
	// free memory still cannot afford full concurrent inference.
	if caps.AvailableMemMB > 0 && caps.AvailableMemMB < 512 && caps.Tier > TierLow {
		caps.Tier--
	}

	if v, ok := ParseTier(os.Getenv("SCRAPWEIGH_TIER")); ok {
		caps.Tier = v
	}
	if b, err := strconv.ParseBool(os.Getenv("SCRAPWEIGH_GPU")); err == nil {
		caps.GPUSupported = b
		caps.NNAPISupported = b
	}

	return caps
}

// estimateMemMB returns a conservative view of usable memory. Sysinfo
// is not portable across the targets we build for, so derive a budget
// from the runtime instead and let the env override handle outliers.
func estimateMemMB() int {
	if v, err := strconv.Atoi(os.Getenv("SCRAPWEIGH_MEM_MB")); err == nil && v > 0 {
		return v
	}

	// Assume each logical CPU is backed by at least 512MB on anything
	// we realistically run on.
	return runtime.NumCPU() * 512
}
