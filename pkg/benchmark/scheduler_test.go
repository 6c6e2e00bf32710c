package benchmark

import (
	"os"
	"path"
	"testing"
	"time"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/JakobPriesner/BeFaaS-framework/pkg/experiment"
)

type recordedRun struct {
	phase    string
	workload string
	phaseDir string
}

type stubRunner struct {
	runs    []recordedRun
	failOn  string
	failErr error
}

func (r *stubRunner) Run(phase, workload, phaseDir string) (PhaseResult, error) {
	r.runs = append(r.runs, recordedRun{phase: phase, workload: workload, phaseDir: phaseDir})
	if phase == r.failOn {
		return PhaseResult{Phase: phase}, r.failErr
	}
	return PhaseResult{Phase: phase, OutputDir: phaseDir}, nil
}

func TestScheduler(t *testing.T) {
	Convey("While scheduling benchmark phases", t, func() {
		outputDir := t.TempDir()
		cfg := experiment.Config{
			Name:         "webservice",
			Architecture: experiment.Faas,
			AuthStrategy: experiment.AuthJWT,
			MemoryMB:     512,
			WorkloadFile: "workload.yml",
			Cooldown:     3 * time.Minute,
			OutputDir:    outputDir,
		}

		runner := &stubRunner{}
		waits := []time.Duration{}
		aggregations := 0

		scheduler := &Scheduler{
			Config: cfg,
			Runner: runner,
			Aggregate: func(dir string, phases []string, c experiment.Config) error {
				aggregations++
				return nil
			},
			Wait: func(d time.Duration) { waits = append(waits, d) },
		}

		Convey("With no stress phases configured", func() {
			results, err := scheduler.Run()
			So(err, ShouldBeNil)

			Convey("Only the baseline runs, straight into the run root", func() {
				So(runner.runs, ShouldHaveLength, 1)
				So(runner.runs[0].phase, ShouldEqual, PhaseBaseline)
				So(runner.runs[0].workload, ShouldEqual, "workload.yml")
				So(runner.runs[0].phaseDir, ShouldEqual, outputDir)
				So(results, ShouldHaveLength, 1)
			})

			Convey("No cool-down, summary or aggregation happens", func() {
				So(waits, ShouldBeEmpty)
				So(aggregations, ShouldEqual, 0)

				_, err := os.Stat(path.Join(outputDir, SummaryFilename))
				So(os.IsNotExist(err), ShouldBeTrue)
			})
		})

		Convey("With both stress phases configured", func() {
			cfg.StressScaling = true
			cfg.StressAuth = true
			scheduler.Config = cfg

			results, err := scheduler.Run()
			So(err, ShouldBeNil)

			Convey("Phases run in fixed order into per-phase directories", func() {
				So(runner.runs, ShouldHaveLength, 3)
				So(runner.runs[0].phase, ShouldEqual, PhaseBaseline)
				So(runner.runs[1].phase, ShouldEqual, PhaseScaling)
				So(runner.runs[2].phase, ShouldEqual, PhaseStressAuth)

				So(runner.runs[1].workload, ShouldEqual, "stress_scaling.yml")
				So(runner.runs[2].workload, ShouldEqual, "stress_auth.yml")

				So(runner.runs[1].phaseDir, ShouldEqual, path.Join(outputDir, PhaseScaling))
				So(runner.runs[2].phaseDir, ShouldEqual, path.Join(outputDir, PhaseStressAuth))
				So(results, ShouldHaveLength, 3)
			})

			Convey("A cool-down precedes every phase after the first", func() {
				So(waits, ShouldResemble, []time.Duration{3 * time.Minute, 3 * time.Minute})
			})

			Convey("The run summary is written and aggregation runs once", func() {
				So(aggregations, ShouldEqual, 1)

				_, err := os.Stat(path.Join(outputDir, SummaryFilename))
				So(err, ShouldBeNil)
			})
		})

		Convey("When a stress phase fails", func() {
			cfg.StressScaling = true
			scheduler.Config = cfg
			runner.failOn = PhaseScaling
			runner.failErr = errors.New("load generator crashed")

			results, err := scheduler.Run()

			Convey("The error names the phase and later work is skipped", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, PhaseScaling)
				So(results, ShouldHaveLength, 1)
				So(aggregations, ShouldEqual, 0)
			})
		})

		Convey("Aggregation failure does not fail the run", func() {
			cfg.StressAuth = true
			scheduler.Config = cfg
			scheduler.Aggregate = func(dir string, phases []string, c experiment.Config) error {
				return errors.New("no insights anywhere")
			}

			results, err := scheduler.Run()
			So(err, ShouldBeNil)
			So(results, ShouldHaveLength, 2)
		})
	})
}
