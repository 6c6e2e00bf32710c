// Package pipeline drives a full experiment run through its states and
// guarantees teardown on any failure after provisioning started.
package pipeline

import (
	"os"
	"path"
	"time"

	multierror "github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/JakobPriesner/BeFaaS-framework/pkg/analysis"
	"github.com/JakobPriesner/BeFaaS-framework/pkg/architecture"
	"github.com/JakobPriesner/BeFaaS-framework/pkg/benchmark"
	"github.com/JakobPriesner/BeFaaS-framework/pkg/experiment"
	"github.com/JakobPriesner/BeFaaS-framework/pkg/healthcheck"
	"github.com/JakobPriesner/BeFaaS-framework/pkg/metrics"
	"github.com/JakobPriesner/BeFaaS-framework/pkg/upload"
)

// State is one stage of the pipeline state machine.
type State string

// Pipeline states in order. Failed is reachable from any state.
const (
	StateValidating     State = "Validating"
	StateCleaning       State = "Cleaning"
	StateBuilding       State = "Building"
	StateDeploying      State = "Deploying"
	StateStabilizing    State = "Stabilizing"
	StateHealthChecking State = "HealthChecking"
	StateBenchmarking   State = "Benchmarking"
	StateDestroying     State = "Destroying"
	StateUploading      State = "Uploading"
	StateDone           State = "Done"
	StateFailed         State = "Failed"
)

// Stabilization sleeps per architecture. Container-orchestrated backends
// need materially longer than faas to reach steady state.
var stabilizationDelays = map[experiment.Architecture]time.Duration{
	experiment.Faas:          30 * time.Second,
	experiment.Microservices: 120 * time.Second,
	experiment.Monolith:      120 * time.Second,
}

// HealthChecker awaits endpoint readiness. Satisfied by *healthcheck.Engine.
type HealthChecker interface {
	Await(endpoints []string) error
}

// Scheduler runs the benchmark phases. Satisfied by *benchmark.Scheduler.
type Scheduler interface {
	Run() ([]benchmark.PhaseResult, error)
}

// ResultSyncer uploads the output directory. Satisfied by *upload.Uploader.
type ResultSyncer interface {
	Sync(cfg experiment.Config) bool
}

// Supervisor sequences one experiment run. Collaborators are exported so
// tests can substitute stubs; New wires the production set.
type Supervisor struct {
	Config    experiment.Config
	Strategy  architecture.Strategy
	Health    HealthChecker
	Scheduler Scheduler
	Syncer    ResultSyncer
	// Sleep is replaceable in tests. Nil means time.Sleep.
	Sleep func(d time.Duration)

	state State
}

// New wires a supervisor with the production collaborators for the config's
// architecture.
func New(cfg experiment.Config) (*Supervisor, error) {
	strategy, err := architecture.For(cfg.Architecture)
	if err != nil {
		return nil, err
	}

	runner := &benchmark.PhaseRunner{
		Config:    cfg,
		Session:   &benchmark.Session{},
		Generator: benchmark.ArtilleryGenerator{},
		Collector: &metrics.Collector{},
		Analyzer:  &analysis.Analyzer{},
	}

	return &Supervisor{
		Config:   cfg,
		Strategy: strategy,
		Health:   healthcheck.DefaultEngine(),
		Scheduler: &benchmark.Scheduler{
			Config:    cfg,
			Runner:    runner,
			Aggregate: benchmark.AggregateAdapter,
		},
		Syncer: &upload.Uploader{},
	}, nil
}

func (s *Supervisor) enter(state State) {
	s.state = state
	log.Infof("========== %s ==========", state)
}

// State returns the state the supervisor is currently in.
func (s *Supervisor) State() State {
	return s.state
}

func (s *Supervisor) sleep(d time.Duration) {
	if s.Sleep != nil {
		s.Sleep(d)
		return
	}
	time.Sleep(d)
}

// Run drives the pipeline to completion. Exactly one error funnel wraps
// everything after validation: any fatal error triggers best-effort destroy
// plus artifact cleanup, and the error is returned for a non-zero exit.
// Upload failure never affects the returned error.
func (s *Supervisor) Run() error {
	err := s.run()
	if err != nil {
		s.enter(StateFailed)
		log.Errorf("Pipeline failed: %v", err)
		log.Debugf("%+v", err)
		log.Error("Attempting cleanup of provisioned infrastructure")
		s.cleanup()
		return err
	}

	s.enter(StateDone)
	return nil
}

func (s *Supervisor) run() error {
	s.enter(StateCleaning)
	if err := s.clean(); err != nil {
		return err
	}

	if s.Config.DestroyOnly {
		s.enter(StateDestroying)
		return s.Strategy.Destroy(s.Config)
	}

	s.enter(StateBuilding)
	buildDir, err := s.Strategy.Build(s.Config, s.bundleMode())
	if err != nil {
		return errors.Wrap(err, "build failed")
	}

	if s.Config.BuildOnly {
		log.Infof("Build-only run complete, artifacts in %q", buildDir)
		return nil
	}

	s.enter(StateDeploying)
	endpoints, err := s.Strategy.Deploy(s.Config, buildDir)
	if err != nil {
		return errors.Wrap(err, "deploy failed")
	}
	log.Infof("Deployed endpoints: %v", endpoints)

	s.enter(StateStabilizing)
	delay := stabilizationDelays[s.Config.Architecture]
	log.Infof("Waiting %s for the deployment to stabilize", delay)
	s.sleep(delay)

	s.enter(StateHealthChecking)
	if err := s.Health.Await(endpoints); err != nil {
		return errors.Wrap(err, "health check failed")
	}

	if s.Config.DeployOnly {
		log.Info("Deploy-only run complete, leaving infrastructure up")
		return nil
	}

	if s.Config.SkipBenchmark {
		log.Info("Benchmark disabled, skipping")
	} else {
		s.enter(StateBenchmarking)
		if _, err := s.Scheduler.Run(); err != nil {
			return errors.Wrap(err, "benchmark failed")
		}
	}

	if s.Config.DestroyOnCompletion {
		s.enter(StateDestroying)
		if err := s.Strategy.Destroy(s.Config); err != nil {
			// Destroy failure must not prevent the upload of results.
			log.Errorf("Destroy failed, infrastructure may still be running: %v", err)
		}
	}

	s.enter(StateUploading)
	if !s.Syncer.Sync(s.Config) {
		log.Warn("Results upload failed; run results remain on local disk")
	}

	return nil
}

func (s *Supervisor) bundleMode() architecture.BundleMode {
	if s.Config.BundleAll {
		return architecture.BundleAll
	}
	return architecture.BundleReferenced
}

// clean removes leftover artifacts of previous runs sharing the output
// directory and resets the load generator state.
func (s *Supervisor) clean() error {
	buildDir := path.Join(s.Config.OutputDir, "build")
	if err := os.RemoveAll(buildDir); err != nil {
		return errors.Wrapf(err, "could not clean build directory %q", buildDir)
	}

	session := &benchmark.Session{}
	return session.Reset()
}

// cleanup is the single best-effort teardown path for fatal errors. Its own
// failures are only logged.
func (s *Supervisor) cleanup() {
	var combined *multierror.Error

	if err := s.Strategy.Destroy(s.Config); err != nil {
		combined = multierror.Append(combined, errors.Wrap(err, "destroy during cleanup failed"))
	}

	buildDir := path.Join(s.Config.OutputDir, "build")
	if err := os.RemoveAll(buildDir); err != nil {
		combined = multierror.Append(combined, errors.Wrapf(err, "could not remove %q", buildDir))
	}

	if err := combined.ErrorOrNil(); err != nil {
		log.Errorf("Cleanup incomplete: %v", err)
	} else {
		log.Info("Cleanup finished")
	}
}
