// Package experiment holds the experiment configuration, the experiment
// manifest and helpers for the per-run results directory.
package experiment

import (
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Architecture is one of the deployment topologies under comparison.
type Architecture string

// The closed set of supported architectures.
const (
	Faas          Architecture = "faas"
	Microservices Architecture = "microservices"
	Monolith      Architecture = "monolith"
)

// Architectures lists all valid architecture keys.
var Architectures = []Architecture{Faas, Microservices, Monolith}

// AuthStrategy selects how the deployed application authenticates requests.
type AuthStrategy string

// The closed set of supported auth strategies.
const (
	AuthNone    AuthStrategy = "none"
	AuthJWT     AuthStrategy = "jwt"
	AuthSession AuthStrategy = "session"
)

// AuthStrategies lists all valid auth strategy keys.
var AuthStrategies = []AuthStrategy{AuthNone, AuthJWT, AuthSession}

// Memory bounds for the deployed functions/containers in MB.
const (
	MinMemoryMB = 128
	MaxMemoryMB = 3008
)

// Config is the resolved experiment configuration. It is immutable once
// returned by Resolve.
type Config struct {
	Name         string
	Architecture Architecture
	AuthStrategy AuthStrategy
	MemoryMB     int

	// WorkloadFile drives the baseline phase. Resolve fills it from the
	// manifest (or DefaultWorkload) when empty.
	WorkloadFile string

	// ManifestFile overrides the manifest location. Empty means
	// <ExperimentsDir>/<Name>/experiment.json.
	ManifestFile string

	// BundleAll packages every known function instead of only those the
	// manifest references. Only meaningful for the faas architecture.
	BundleAll bool

	StressScaling bool
	StressAuth    bool
	Cooldown      time.Duration

	// LookbackBuffer is subtracted from the phase start time so early
	// initialization log lines are not excluded by downstream log-time
	// filters.
	LookbackBuffer time.Duration

	DestroyOnCompletion bool

	BuildOnly     bool
	DeployOnly    bool
	DestroyOnly   bool
	SkipBenchmark bool
	SkipMetrics   bool

	// ExperimentsDir is the root directory holding experiment definitions.
	ExperimentsDir string

	// OutputDir is unique per run unless explicitly overridden.
	OutputDir string
}

// Dir returns the directory holding the experiment definition.
func (c Config) Dir() string {
	return path.Join(c.ExperimentsDir, c.Name)
}

// ManifestPath returns the path of the experiment manifest.
func (c Config) ManifestPath() string {
	if c.ManifestFile != "" {
		return c.ManifestFile
	}
	return path.Join(c.Dir(), ManifestFilename)
}

// DefaultWorkload is used when neither the configuration nor the manifest
// names a workload file.
const DefaultWorkload = "workload.yml"

// Resolve validates the raw configuration, loads the experiment manifest and
// computes derived fields. Validation order: required fields, enum
// membership, numeric range, experiment definition present on disk.
// The returned config is complete; callers must not mutate it further.
func Resolve(raw Config, now time.Time) (Config, *Manifest, error) {
	if raw.Name == "" {
		return Config{}, nil, errors.New("experiment name is required")
	}
	if raw.Architecture == "" {
		return Config{}, nil, errors.New("architecture is required")
	}
	if raw.AuthStrategy == "" {
		return Config{}, nil, errors.New("auth strategy is required")
	}

	if !validArchitecture(raw.Architecture) {
		return Config{}, nil, errors.Errorf("unknown architecture %q, expected one of %v", raw.Architecture, Architectures)
	}
	if !validAuthStrategy(raw.AuthStrategy) {
		return Config{}, nil, errors.Errorf("unknown auth strategy %q, expected one of %v", raw.AuthStrategy, AuthStrategies)
	}

	if raw.MemoryMB < MinMemoryMB || raw.MemoryMB > MaxMemoryMB {
		return Config{}, nil, errors.Errorf("memory %d MB out of range [%d, %d]", raw.MemoryMB, MinMemoryMB, MaxMemoryMB)
	}

	if _, err := os.Stat(raw.Dir()); err != nil {
		return Config{}, nil, errors.Wrapf(err, "experiment %q not found in %q", raw.Name, raw.ExperimentsDir)
	}

	manifest, err := LoadManifest(raw.ManifestPath())
	if err != nil {
		return Config{}, nil, err
	}

	resolved := raw
	if resolved.WorkloadFile == "" {
		resolved.WorkloadFile = manifest.Workload
		if resolved.WorkloadFile == "" {
			resolved.WorkloadFile = DefaultWorkload
		}
	}
	if resolved.OutputDir == "" {
		resolved.OutputDir = defaultOutputDir(resolved, now)
	}

	return resolved, manifest, nil
}

func validArchitecture(architecture Architecture) bool {
	for _, known := range Architectures {
		if architecture == known {
			return true
		}
	}
	return false
}

func validAuthStrategy(strategy AuthStrategy) bool {
	for _, known := range AuthStrategies {
		if strategy == known {
			return true
		}
	}
	return false
}

// defaultOutputDir synthesizes a per-run directory from architecture, auth,
// memory and a millisecond timestamp. ':' and '.' are not filesystem safe
// everywhere, so they are substituted.
func defaultOutputDir(c Config, now time.Time) string {
	timestamp := now.Format("2006-01-02T15:04:05.000Z07:00")
	timestamp = strings.NewReplacer(":", "-", ".", "-").Replace(timestamp)
	run := fmt.Sprintf("%s_%s_%dmb_%s", c.Architecture, c.AuthStrategy, c.MemoryMB, timestamp)
	return path.Join("results", c.Name, run)
}
