package pipeline

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/JakobPriesner/BeFaaS-framework/pkg/architecture"
	"github.com/JakobPriesner/BeFaaS-framework/pkg/benchmark"
	"github.com/JakobPriesner/BeFaaS-framework/pkg/experiment"
)

// callLog records collaborator invocations in order so tests can assert the
// pipeline sequencing.
type callLog struct {
	calls []string
}

func (l *callLog) record(call string) {
	l.calls = append(l.calls, call)
}

type stubStrategy struct {
	log        *callLog
	buildErr   error
	deployErr  error
	destroyErr error
	endpoints  []string
	destroys   int
}

func (s *stubStrategy) Build(cfg experiment.Config, mode architecture.BundleMode) (string, error) {
	s.log.record("build")
	return "build-dir", s.buildErr
}

func (s *stubStrategy) Deploy(cfg experiment.Config, buildDir string) ([]string, error) {
	s.log.record("deploy")
	return s.endpoints, s.deployErr
}

func (s *stubStrategy) Destroy(cfg experiment.Config) error {
	s.log.record("destroy")
	s.destroys++
	return s.destroyErr
}

type stubHealth struct {
	log *callLog
	err error
}

func (h *stubHealth) Await(endpoints []string) error {
	h.log.record("health")
	return h.err
}

type stubScheduler struct {
	log   *callLog
	err   error
	calls int
}

func (s *stubScheduler) Run() ([]benchmark.PhaseResult, error) {
	s.log.record("benchmark")
	s.calls++
	return nil, s.err
}

type stubSyncer struct {
	log   *callLog
	ok    bool
	calls int
}

func (s *stubSyncer) Sync(cfg experiment.Config) bool {
	s.log.record("sync")
	s.calls++
	return s.ok
}

func newTestSupervisor(t *testing.T) (*Supervisor, *callLog, *stubStrategy, *stubHealth, *stubScheduler, *stubSyncer) {
	log := &callLog{}
	strategy := &stubStrategy{log: log, endpoints: []string{"http://localhost:8080"}}
	health := &stubHealth{log: log}
	scheduler := &stubScheduler{log: log}
	syncer := &stubSyncer{log: log, ok: true}

	supervisor := &Supervisor{
		Config: experiment.Config{
			Name:                "webservice",
			Architecture:        experiment.Monolith,
			AuthStrategy:        experiment.AuthNone,
			MemoryMB:            512,
			OutputDir:           t.TempDir(),
			DestroyOnCompletion: true,
		},
		Strategy:  strategy,
		Health:    health,
		Scheduler: scheduler,
		Syncer:    syncer,
		Sleep:     func(d time.Duration) { log.record("sleep") },
	}

	return supervisor, log, strategy, health, scheduler, syncer
}

func TestSupervisor(t *testing.T) {
	Convey("While supervising an experiment run", t, func() {
		supervisor, log, strategy, health, scheduler, syncer := newTestSupervisor(t)

		Convey("A full run sequences build, deploy, health, benchmark, destroy, upload", func() {
			So(supervisor.Run(), ShouldBeNil)
			So(log.calls, ShouldResemble,
				[]string{"build", "deploy", "sleep", "health", "benchmark", "destroy", "sync"})
			So(supervisor.State(), ShouldEqual, StateDone)
		})

		Convey("A health check failure", func() {
			health.err = errors.New("endpoints never came up")
			err := supervisor.Run()

			Convey("fails the run and triggers exactly one cleanup destroy", func() {
				So(err, ShouldNotBeNil)
				So(strategy.destroys, ShouldEqual, 1)
				So(supervisor.State(), ShouldEqual, StateFailed)
			})

			Convey("skips benchmark and upload entirely", func() {
				So(scheduler.calls, ShouldEqual, 0)
				So(syncer.calls, ShouldEqual, 0)
			})
		})

		Convey("A benchmark failure still destroys during cleanup", func() {
			scheduler.err = errors.New("phase crashed")
			err := supervisor.Run()

			So(err, ShouldNotBeNil)
			So(strategy.destroys, ShouldEqual, 1)
			So(syncer.calls, ShouldEqual, 0)
		})

		Convey("A destroy failure after a successful benchmark does not fail the run", func() {
			strategy.destroyErr = errors.New("terraform state locked")

			So(supervisor.Run(), ShouldBeNil)
			So(syncer.calls, ShouldEqual, 1)
		})

		Convey("An upload failure never fails the run", func() {
			syncer.ok = false
			So(supervisor.Run(), ShouldBeNil)
		})

		Convey("Build-only runs stop after build", func() {
			supervisor.Config.BuildOnly = true

			So(supervisor.Run(), ShouldBeNil)
			So(log.calls, ShouldResemble, []string{"build"})
		})

		Convey("Deploy-only runs stop after the health check and leave infrastructure up", func() {
			supervisor.Config.DeployOnly = true

			So(supervisor.Run(), ShouldBeNil)
			So(log.calls, ShouldResemble, []string{"build", "deploy", "sleep", "health"})
			So(strategy.destroys, ShouldEqual, 0)
		})

		Convey("Destroy-only runs only destroy", func() {
			supervisor.Config.DestroyOnly = true

			So(supervisor.Run(), ShouldBeNil)
			So(log.calls, ShouldResemble, []string{"destroy"})
		})

		Convey("Skipping the benchmark still destroys and uploads", func() {
			supervisor.Config.SkipBenchmark = true

			So(supervisor.Run(), ShouldBeNil)
			So(log.calls, ShouldResemble, []string{"build", "deploy", "sleep", "health", "destroy", "sync"})
		})

		Convey("Keeping the deployment skips the destroy stage", func() {
			supervisor.Config.DestroyOnCompletion = false

			So(supervisor.Run(), ShouldBeNil)
			So(strategy.destroys, ShouldEqual, 0)
			So(syncer.calls, ShouldEqual, 1)
		})
	})
}
