// Package architecture provides the build/deploy/destroy strategies for the
// deployment topologies under comparison.
package architecture

import (
	"github.com/pkg/errors"

	"github.com/JakobPriesner/BeFaaS-framework/pkg/conf"
	"github.com/JakobPriesner/BeFaaS-framework/pkg/experiment"
)

var infraDirFlag = conf.NewStringFlag(
	"infra_dir",
	"Root directory holding the terraform definitions per architecture",
	"infrastructure",
)

var registryFlag = conf.NewStringFlag(
	"registry",
	"Container registry prefix for microservices and monolith images",
	"befaas",
)

// BundleMode selects which functions the faas build packages.
type BundleMode string

const (
	// BundleAll packages every known function.
	BundleAll BundleMode = "all"
	// BundleReferenced packages only functions referenced by the active
	// experiment manifest.
	BundleReferenced BundleMode = "referenced"
)

// Strategy is the capability interface every deployment topology implements.
// All operations invoke external provisioning tools and propagate their
// failures to the caller after console diagnostics.
type Strategy interface {
	// Build produces deployable artifacts below the run's output directory
	// and returns the build directory.
	Build(cfg experiment.Config, mode BundleMode) (buildDir string, err error)
	// Deploy provisions infrastructure for the experiment and returns the
	// ordered list of health-checkable endpoint URLs.
	Deploy(cfg experiment.Config, buildDir string) ([]string, error)
	// Destroy tears down everything Deploy provisioned. It re-derives state
	// from the terraform state on disk, so it needs no deployment handle.
	Destroy(cfg experiment.Config) error
}

// registry maps every architecture key to its strategy. The supervisor never
// branches on the key itself.
var strategies = map[experiment.Architecture]Strategy{
	experiment.Faas:          &faasStrategy{},
	experiment.Microservices: &containerStrategy{architecture: experiment.Microservices},
	experiment.Monolith:      &containerStrategy{architecture: experiment.Monolith},
}

// For returns the strategy registered for the given architecture.
func For(architecture experiment.Architecture) (Strategy, error) {
	strategy, ok := strategies[architecture]
	if !ok {
		return nil, errors.Errorf("no strategy registered for architecture %q", architecture)
	}
	return strategy, nil
}
