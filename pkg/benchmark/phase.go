package benchmark

import (
	"fmt"
	"os"
	"path"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/JakobPriesner/BeFaaS-framework/pkg/analysis"
	"github.com/JakobPriesner/BeFaaS-framework/pkg/experiment"
)

// StartMarkerFilename persists the phase start time inside the phase
// directory, as both epoch millis and ISO-8601.
const StartMarkerFilename = "experiment_start_time.txt"

// WorkloadLogFilename captures the load generator's combined output.
const WorkloadLogFilename = "workload.log"

// PhaseResult is one benchmark phase's record. It is immutable once
// returned by the runner.
type PhaseResult struct {
	Phase string
	// StartTime is the wall-clock phase start with the lookback buffer
	// already applied.
	StartTime time.Time
	OutputDir string
	// InsightsPath points at the generated insights document. Empty when
	// metrics collection or analysis was skipped or failed.
	InsightsPath string
}

// Collector pulls provider logs for a finished phase.
type Collector interface {
	Collect(cfg experiment.Config, phaseDir string, phaseStart time.Time) error
}

// Analyzer turns harvested logs into statistics documents.
type Analyzer interface {
	Analyze(phaseDir string) error
}

// PhaseRunner executes a single benchmark phase.
type PhaseRunner struct {
	Config    experiment.Config
	Session   *Session
	Generator LoadGenerator
	Collector Collector
	Analyzer  Analyzer
	// Clock is replaceable in tests. Nil means time.Now.
	Clock func() time.Time
}

func (r *PhaseRunner) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now()
}

// Run executes one phase: reset shared state, run the load generator,
// collect metrics, analyze results. Load generation failures abort the
// phase; metrics and analysis are best-effort.
func (r *PhaseRunner) Run(phase, workload, phaseDir string) (PhaseResult, error) {
	log.Infof("=== Phase %q ===", phase)

	result := PhaseResult{Phase: phase, OutputDir: phaseDir}

	if err := os.MkdirAll(phaseDir, 0755); err != nil {
		return result, errors.Wrapf(err, "cannot create phase directory %q", phaseDir)
	}

	// The lookback buffer guarantees early initialization log lines are not
	// excluded by downstream log-time filters.
	result.StartTime = r.now().Add(-r.Config.LookbackBuffer)
	if err := writeStartMarker(phaseDir, result.StartTime); err != nil {
		return result, err
	}

	if err := r.Session.Reset(); err != nil {
		return result, err
	}

	if err := r.runWorkload(workload, phaseDir); err != nil {
		return result, err
	}

	if r.Config.SkipMetrics {
		log.Info("Metrics collection disabled, skipping")
		return result, nil
	}

	if err := r.Collector.Collect(r.Config, phaseDir, result.StartTime); err != nil {
		log.Warnf("Metrics collection for phase %q failed: %v", phase, err)
	}

	if err := r.Analyzer.Analyze(phaseDir); err != nil {
		log.Warnf("Analysis for phase %q failed: %v", phase, err)
	}

	insightsPath := analysis.InsightsPath(phaseDir)
	if _, err := os.Stat(insightsPath); err == nil {
		result.InsightsPath = insightsPath
	}

	return result, nil
}

func (r *PhaseRunner) runWorkload(workload, phaseDir string) error {
	logPath := path.Join(phaseDir, WorkloadLogFilename)
	logFile, err := os.Create(logPath)
	if err != nil {
		return errors.Wrapf(err, "could not create workload log %q", logPath)
	}
	defer logFile.Close()

	return r.Generator.Generate(r.Config, workload, logFile)
}

func writeStartMarker(phaseDir string, start time.Time) error {
	markerPath := path.Join(phaseDir, StartMarkerFilename)
	marker := fmt.Sprintf("%d\n%s\n", start.UnixMilli(), start.Format(time.RFC3339))

	if err := os.WriteFile(markerPath, []byte(marker), 0644); err != nil {
		return errors.Wrapf(err, "could not write start marker %q", markerPath)
	}
	return nil
}
