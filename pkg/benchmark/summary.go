package benchmark

import (
	"encoding/json"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/JakobPriesner/BeFaaS-framework/pkg/experiment"
)

// SummaryFilename is the run summary written after a multi-phase run.
const SummaryFilename = "benchmark_summary.json"

type runSummary struct {
	Experiment   string   `json:"experiment"`
	Architecture string   `json:"architecture"`
	AuthStrategy string   `json:"auth_strategy"`
	MemoryMB     int      `json:"memory_mb"`
	Workload     string   `json:"workload"`
	Phases       []string `json:"phases"`
	CompletedAt  string   `json:"completed_at"`
}

func writeSummary(cfg experiment.Config, phaseNames []string) error {
	summary := runSummary{
		Experiment:   cfg.Name,
		Architecture: string(cfg.Architecture),
		AuthStrategy: string(cfg.AuthStrategy),
		MemoryMB:     cfg.MemoryMB,
		Workload:     cfg.WorkloadFile,
		Phases:       phaseNames,
		CompletedAt:  time.Now().Format(time.RFC3339),
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return errors.Wrap(err, "could not serialize run summary")
	}

	summaryPath := path.Join(cfg.OutputDir, SummaryFilename)
	if err := os.WriteFile(summaryPath, data, 0644); err != nil {
		return errors.Wrapf(err, "could not write run summary %q", summaryPath)
	}

	renderSummaryTable(summary)
	log.Infof("Run summary written to %q", summaryPath)
	return nil
}

func renderSummaryTable(summary runSummary) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Experiment", "Architecture", "Auth", "Memory", "Phases"})
	table.Append([]string{
		summary.Experiment,
		summary.Architecture,
		summary.AuthStrategy,
		strconv.Itoa(summary.MemoryMB) + " MB",
		strings.Join(summary.Phases, ", "),
	})
	table.Render()
}
