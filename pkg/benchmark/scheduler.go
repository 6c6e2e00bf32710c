package benchmark

import (
	"path"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	pb "gopkg.in/cheggaaa/pb.v1"

	"github.com/JakobPriesner/BeFaaS-framework/pkg/experiment"
	"github.com/JakobPriesner/BeFaaS-framework/pkg/insights"
)

// Fixed phase names in scheduling order.
const (
	PhaseBaseline   = "baseline"
	PhaseScaling    = "scaling"
	PhaseStressAuth = "stress-auth"
)

// Fixed workload descriptors for the stress phases.
const (
	scalingWorkload    = "stress_scaling.yml"
	stressAuthWorkload = "stress_auth.yml"
)

// elapsedLogInterval is how often the cool-down wait logs liveness.
const elapsedLogInterval = 30 * time.Second

type phaseSpec struct {
	name     string
	workload string
}

// Runner executes one phase. Satisfied by *PhaseRunner.
type Runner interface {
	Run(phase, workload, phaseDir string) (PhaseResult, error)
}

// Aggregator merges per-phase insights after a multi-phase run. Satisfied by
// insights.Aggregate via AggregateAdapter.
type Aggregator func(outputDir string, phaseNames []string, cfg experiment.Config) error

// AggregateAdapter adapts insights.Aggregate to the Aggregator signature.
func AggregateAdapter(outputDir string, phaseNames []string, cfg experiment.Config) error {
	_, err := insights.Aggregate(outputDir, phaseNames, cfg)
	return err
}

// Scheduler sequences the baseline phase and any configured stress phases
// with cool-down waits in between.
type Scheduler struct {
	Config    experiment.Config
	Runner    Runner
	Aggregate Aggregator
	// Wait is replaceable in tests. Nil means the progress-bar cool-down.
	Wait func(d time.Duration)
}

func (s *Scheduler) phases() []phaseSpec {
	specs := []phaseSpec{{name: PhaseBaseline, workload: s.Config.WorkloadFile}}
	if s.Config.StressScaling {
		specs = append(specs, phaseSpec{name: PhaseScaling, workload: scalingWorkload})
	}
	if s.Config.StressAuth {
		specs = append(specs, phaseSpec{name: PhaseStressAuth, workload: stressAuthWorkload})
	}
	return specs
}

func (s *Scheduler) wait(d time.Duration) {
	if s.Wait != nil {
		s.Wait(d)
		return
	}
	cooldownWait(d)
}

// Run executes all configured phases. A single-phase configuration runs the
// baseline straight into the top-level output directory with no multi-phase
// bookkeeping; multi-phase runs get per-phase directories, a run summary and
// combined insights.
func (s *Scheduler) Run() ([]PhaseResult, error) {
	specs := s.phases()

	if len(specs) == 1 {
		result, err := s.Runner.Run(PhaseBaseline, s.Config.WorkloadFile, s.Config.OutputDir)
		if err != nil {
			return nil, err
		}
		return []PhaseResult{result}, nil
	}

	results := make([]PhaseResult, 0, len(specs))
	for i, spec := range specs {
		if i > 0 {
			log.Infof("Cooling down %s before phase %q", s.Config.Cooldown, spec.name)
			s.wait(s.Config.Cooldown)
		}

		result, err := s.Runner.Run(spec.name, spec.workload, path.Join(s.Config.OutputDir, spec.name))
		if err != nil {
			return results, errors.Wrapf(err, "phase %q failed", spec.name)
		}
		results = append(results, result)
	}

	phaseNames := make([]string, len(results))
	for i, result := range results {
		phaseNames[i] = result.Phase
	}

	if err := writeSummary(s.Config, phaseNames); err != nil {
		return results, err
	}

	if s.Aggregate != nil {
		if err := s.Aggregate(s.Config.OutputDir, phaseNames, s.Config); err != nil {
			// Aggregation failure does not void the collected phase results.
			log.Warnf("Insight aggregation failed: %v", err)
		}
	}

	return results, nil
}

// cooldownWait sleeps for the full duration, rendering a progress bar and
// logging elapsed time in fixed intervals so a human watching the console
// sees liveness.
func cooldownWait(d time.Duration) {
	if d <= 0 {
		return
	}

	seconds := int(d / time.Second)
	if seconds == 0 {
		time.Sleep(d)
		return
	}

	bar := pb.StartNew(seconds)
	bar.ShowCounters = false
	bar.ShowTimeLeft = true

	for elapsed := 1; elapsed <= seconds; elapsed++ {
		time.Sleep(time.Second)
		bar.Increment()

		if time.Duration(elapsed)*time.Second%elapsedLogInterval == 0 {
			log.Infof("Cool-down: %ds of %ds elapsed", elapsed, seconds)
		}
	}
	bar.Finish()

	time.Sleep(d - time.Duration(seconds)*time.Second)
}
