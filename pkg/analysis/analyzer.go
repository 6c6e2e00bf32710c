package analysis

import (
	"os"
	"path"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/JakobPriesner/BeFaaS-framework/pkg/conf"
	"github.com/JakobPriesner/BeFaaS-framework/pkg/executor"
)

var analysisScriptFlag = conf.NewStringFlag(
	"analysis_script",
	"Analysis script invoked per phase to turn harvested logs into dump.json and insights.json",
	"scripts/analyze.js",
)

// Exit codes the analysis tool uses for "completed with warnings", e.g.
// requests it could not pair or unparsable log lines. These are caveats,
// not failures.
var warningExitCodes = map[int]string{
	3: "some requests could not be paired",
	4: "some log lines were unparsable",
}

// AnalysisDirname is the per-phase directory the tool writes into.
const AnalysisDirname = "analysis"

// InsightsFilename is the structured statistics document per phase.
const InsightsFilename = "insights.json"

// Analyzer runs the external analysis tool against a phase directory.
type Analyzer struct {
	// Script overrides the analysis script path. Empty means the flag value.
	Script string
}

func (a *Analyzer) script() string {
	if a.Script != "" {
		return a.Script
	}
	return analysisScriptFlag.Value()
}

// Analyze invokes the analysis tool for one phase. The tool consumes the
// harvested logs below phaseDir and writes dump.json and insights.json into
// the phase's analysis directory.
func (a *Analyzer) Analyze(phaseDir string) error {
	analysisDir := path.Join(phaseDir, AnalysisDirname)
	if err := os.MkdirAll(analysisDir, 0755); err != nil {
		return errors.Wrapf(err, "cannot create analysis directory %q", analysisDir)
	}

	log.Infof("Analyzing results in %q", phaseDir)

	err := executor.Run(executor.Command{
		Path: "node",
		Args: []string{a.script(), "--logs", path.Join(phaseDir, "logs"), "--out", analysisDir},
	})
	if err != nil {
		if code, ok := executor.ExitCode(err); ok {
			if caveat, warning := warningExitCodes[code]; warning {
				log.Warnf("Analysis completed with warnings (%s)", caveat)
				return nil
			}
		}
		return errors.Wrapf(err, "analysis of %q failed", phaseDir)
	}

	return nil
}

// InsightsPath returns where the analysis tool left the insights document
// for the given phase directory.
func InsightsPath(phaseDir string) string {
	return path.Join(phaseDir, AnalysisDirname, InsightsFilename)
}
