package architecture

import (
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	multierror "github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/JakobPriesner/BeFaaS-framework/pkg/executor"
	"github.com/JakobPriesner/BeFaaS-framework/pkg/experiment"
)

// functionsDir holds one source directory per logical function.
const functionsDir = "functions"

// faasStrategy deploys every function to the provider the manifest assigns
// it to, behind provider-managed HTTP triggers.
type faasStrategy struct{}

// Build packages one artifact per function. BundleReferenced packages only
// the functions the manifest declares, BundleAll everything under
// functionsDir.
func (s *faasStrategy) Build(cfg experiment.Config, mode BundleMode) (string, error) {
	functions, err := s.functionsToBundle(cfg, mode)
	if err != nil {
		return "", err
	}

	buildDir := path.Join(cfg.OutputDir, "build")
	if err := os.MkdirAll(buildDir, 0755); err != nil {
		return "", errors.Wrapf(err, "cannot create build directory %q", buildDir)
	}

	for _, function := range functions {
		artifact, err := filepath.Abs(path.Join(buildDir, function+".zip"))
		if err != nil {
			return "", errors.Wrap(err, "cannot resolve artifact path")
		}

		log.Infof("Packaging function %q", function)
		err = executor.Run(executor.Command{
			Path: "zip",
			Args: []string{"-r", "-q", artifact, "."},
			Dir:  path.Join(functionsDir, function),
		})
		if err != nil {
			return "", errors.Wrapf(err, "packaging function %q failed", function)
		}
	}

	return buildDir, nil
}

func (s *faasStrategy) functionsToBundle(cfg experiment.Config, mode BundleMode) ([]string, error) {
	if mode == BundleReferenced {
		manifest, err := experiment.LoadManifest(cfg.ManifestPath())
		if err != nil {
			return nil, err
		}

		functions := []string{}
		for _, names := range manifest.FunctionsByProvider() {
			functions = append(functions, names...)
		}
		return functions, nil
	}

	entries, err := os.ReadDir(functionsDir)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot list functions in %q", functionsDir)
	}

	functions := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			functions = append(functions, entry.Name())
		}
	}
	return functions, nil
}

// Deploy provisions the shared infrastructure once, then one terraform
// module per provider the manifest references. Every "endpoint"/"url"
// output across the provider deployments is collected.
func (s *faasStrategy) Deploy(cfg experiment.Config, buildDir string) ([]string, error) {
	manifest, err := experiment.LoadManifest(cfg.ManifestPath())
	if err != nil {
		return nil, err
	}

	absBuildDir, err := filepath.Abs(buildDir)
	if err != nil {
		return nil, errors.Wrap(err, "cannot resolve build directory")
	}

	shared := terraformModule{dir: path.Join(infraDirFlag.Value(), "faas", "shared")}
	if err := shared.apply(map[string]string{"experiment": cfg.Name}); err != nil {
		return nil, err
	}

	endpoints := []string{}
	byProvider := manifest.FunctionsByProvider()
	for _, provider := range manifest.Providers() {
		module := terraformModule{dir: path.Join(infraDirFlag.Value(), "faas", provider)}
		err := module.apply(map[string]string{
			"experiment":    cfg.Name,
			"functions":     strings.Join(byProvider[provider], ","),
			"build_dir":     absBuildDir,
			"memory_mb":     strconv.Itoa(cfg.MemoryMB),
			"auth_strategy": string(cfg.AuthStrategy),
		})
		if err != nil {
			return nil, err
		}

		outputs, err := module.outputs()
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, outputs.endpoints()...)
	}

	if len(endpoints) == 0 {
		return nil, errors.New("faas deployment produced no endpoints")
	}

	log.Infof("Deployed %d function endpoints", len(endpoints))
	return endpoints, nil
}

// Destroy tears down every provider module plus the shared infrastructure.
// It keeps going on individual failures so one stuck provider does not leave
// the rest provisioned.
func (s *faasStrategy) Destroy(cfg experiment.Config) error {
	var combined *multierror.Error

	providers := []string{}
	manifest, err := experiment.LoadManifest(cfg.ManifestPath())
	if err != nil {
		log.Warnf("Could not load manifest during destroy, tearing down shared infrastructure only: %v", err)
	} else {
		providers = manifest.Providers()
	}

	for _, provider := range providers {
		module := terraformModule{dir: path.Join(infraDirFlag.Value(), "faas", provider)}
		if err := module.destroy(map[string]string{"experiment": cfg.Name}); err != nil {
			combined = multierror.Append(combined, err)
		}
	}

	shared := terraformModule{dir: path.Join(infraDirFlag.Value(), "faas", "shared")}
	if err := shared.destroy(map[string]string{"experiment": cfg.Name}); err != nil {
		combined = multierror.Append(combined, err)
	}

	return combined.ErrorOrNil()
}
