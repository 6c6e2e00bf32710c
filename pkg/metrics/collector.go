// Package metrics invokes the external log-harvesting tooling and copies
// the harvested logs into the phase's output directory.
package metrics

import (
	"path"
	"strconv"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/JakobPriesner/BeFaaS-framework/pkg/conf"
	"github.com/JakobPriesner/BeFaaS-framework/pkg/executor"
	"github.com/JakobPriesner/BeFaaS-framework/pkg/experiment"
	"github.com/JakobPriesner/BeFaaS-framework/pkg/utils/fsutil"
)

var harvestScriptFlag = conf.NewStringFlag(
	"logs_script",
	"Log-harvesting script invoked per phase to pull provider logs",
	"scripts/get_logs.js",
)

// StartTimeEnv carries the phase start time (epoch millis) to the harvesting
// tool, which uses it as a log-filter lower bound.
const StartTimeEnv = "BEFAAS_EXPERIMENT_START_TIME"

// LogsDirname is where harvested logs land inside a phase directory.
const LogsDirname = "logs"

// Collector pulls provider logs for one benchmark phase.
type Collector struct {
	// Script overrides the harvesting script path. Empty means the flag value.
	Script string
}

func (c *Collector) script() string {
	if c.Script != "" {
		return c.Script
	}
	return harvestScriptFlag.Value()
}

// harvestCommand builds the harvesting tool invocation. The start time is
// passed as epoch millis, the unit the tool's log-time filter expects.
func (c *Collector) harvestCommand(cfg experiment.Config, phaseStart time.Time) executor.Command {
	return executor.Command{
		Path: "node",
		Args: []string{c.script(), cfg.Name, experiment.ManifestFilename},
		Env: map[string]string{
			StartTimeEnv: strconv.FormatInt(phaseStart.UnixMilli(), 10),
		},
	}
}

// Collect invokes the harvesting tool with the phase start time as filter
// lower bound, then copies the harvested logs into the phase directory.
func (c *Collector) Collect(cfg experiment.Config, phaseDir string, phaseStart time.Time) error {
	log.Infof("Collecting logs for %q since %s", cfg.Name, phaseStart.Format(time.RFC3339))

	err := executor.Run(c.harvestCommand(cfg, phaseStart))
	if err != nil {
		return errors.Wrap(err, "log harvesting failed")
	}

	// The harvesting tool writes below the experiment definition directory.
	harvested := path.Join(cfg.Dir(), LogsDirname)
	target := path.Join(phaseDir, LogsDirname)

	if err := fsutil.CopyTree(harvested, target); err != nil {
		return errors.Wrapf(err, "could not copy harvested logs from %q", harvested)
	}

	log.Infof("Harvested logs copied to %q", target)
	return nil
}
