package benchmark

import (
	"io"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/JakobPriesner/BeFaaS-framework/pkg/conf"
	"github.com/JakobPriesner/BeFaaS-framework/pkg/executor"
	"github.com/JakobPriesner/BeFaaS-framework/pkg/experiment"
)

var workloadScriptFlag = conf.NewStringFlag(
	"workload_script",
	"Load-generation script driving artillery against the deployed endpoints",
	"scripts/run_workload.js",
)

// LoadGenerator drives one load-test against the deployed application.
type LoadGenerator interface {
	// Generate runs the workload for the experiment, mirroring the tool's
	// combined output into sink. A non-zero exit is an error.
	Generate(cfg experiment.Config, workload string, sink io.Writer) error
}

// ArtilleryGenerator invokes the external artillery-based workload script.
// The experiment identifier is the tool's sole required argument.
type ArtilleryGenerator struct{}

// Generate implements LoadGenerator.
func (g ArtilleryGenerator) Generate(cfg experiment.Config, workload string, sink io.Writer) error {
	log.Infof("Running workload %q against experiment %q", workload, cfg.Name)

	err := executor.Run(executor.Command{
		Path: "node",
		Args: []string{workloadScriptFlag.Value(), cfg.Name, "--workload", workload},
	}, executor.WithCombinedSink(sink))
	if err != nil {
		return errors.Wrap(err, "load generation failed")
	}

	return nil
}
