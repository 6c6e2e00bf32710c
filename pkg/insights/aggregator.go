// Package insights merges per-phase statistics documents into one
// cross-phase comparison document.
package insights

import (
	"encoding/json"
	"os"
	"path"
	"sort"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/JakobPriesner/BeFaaS-framework/pkg/analysis"
	"github.com/JakobPriesner/BeFaaS-framework/pkg/experiment"
)

// CombinedFilename is the cross-phase document written at the run root.
const CombinedFilename = "insights.json"

// Combined is the cross-phase comparison document.
type Combined struct {
	GeneratedAt string         `json:"generated_at"`
	Experiment  ExperimentMeta `json:"experiment"`
	// Phases preserves the scheduling order, including phases for which no
	// insights document could be loaded.
	Phases        []string                              `json:"phases"`
	PhaseInsights map[string]*analysis.InsightsDocument `json:"phase_insights"`
	Comparison    Comparison                            `json:"comparison"`
}

// ExperimentMeta identifies the run the document belongs to.
type ExperimentMeta struct {
	Name         string `json:"name"`
	Architecture string `json:"architecture"`
	AuthStrategy string `json:"auth_strategy"`
	MemoryMB     int    `json:"memory_mb"`
}

// Comparison holds the cross-phase sub-mappings. The maps are populated only
// when two or more phases produced an insights document; otherwise they are
// empty but present.
type Comparison struct {
	Overall    map[string]OverallEntry               `json:"overall"`
	Endpoints  map[string]map[string]BreakdownEntry  `json:"endpoints"`
	Categories map[string]map[string]BreakdownEntry  `json:"categories"`
	Spread     map[string]SpreadEntry                `json:"spread"`
}

// OverallEntry carries the overall scalars compared across phases.
type OverallEntry struct {
	TotalRequests float64 `json:"total_requests"`
	MeanMs        float64 `json:"mean_ms"`
	MedianMs      float64 `json:"median_ms"`
	P95Ms         float64 `json:"p95_ms"`
	P99Ms         float64 `json:"p99_ms"`
}

// BreakdownEntry carries the per-endpoint and per-category scalars compared
// across phases.
type BreakdownEntry struct {
	RequestCount float64 `json:"request_count"`
	MeanMs       float64 `json:"mean_ms"`
	P95Ms        float64 `json:"p95_ms"`
}

// SpreadEntry summarizes how endpoint mean latencies are distributed within
// one phase.
type SpreadEntry struct {
	MinMs    float64 `json:"min_ms"`
	MaxMs    float64 `json:"max_ms"`
	MedianMs float64 `json:"median_ms"`
	StddevMs float64 `json:"stddev_ms"`
}

// Aggregate loads every phase's insights document below outputDir, builds
// the combined comparison document and writes it to the run root. Phases
// whose document is missing or unparsable are logged and skipped, never
// fatal.
func Aggregate(outputDir string, phaseNames []string, cfg experiment.Config) (*Combined, error) {
	combined := &Combined{
		GeneratedAt: time.Now().Format(time.RFC3339),
		Experiment: ExperimentMeta{
			Name:         cfg.Name,
			Architecture: string(cfg.Architecture),
			AuthStrategy: string(cfg.AuthStrategy),
			MemoryMB:     cfg.MemoryMB,
		},
		Phases:        append([]string{}, phaseNames...),
		PhaseInsights: map[string]*analysis.InsightsDocument{},
		Comparison: Comparison{
			Overall:    map[string]OverallEntry{},
			Endpoints:  map[string]map[string]BreakdownEntry{},
			Categories: map[string]map[string]BreakdownEntry{},
			Spread:     map[string]SpreadEntry{},
		},
	}

	for _, phase := range phaseNames {
		insightsPath := analysis.InsightsPath(path.Join(outputDir, phase))
		document, err := analysis.LoadInsights(insightsPath)
		if err != nil {
			// A phase that never ran and a phase whose analysis failed look
			// the same here; the log line carries the distinction.
			log.Warnf("Skipping phase %q in aggregation: %v", phase, err)
			continue
		}
		combined.PhaseInsights[phase] = document
	}

	if len(combined.PhaseInsights) >= 2 {
		buildComparison(combined, phaseNames)
	}

	if err := writeCombined(outputDir, combined); err != nil {
		return nil, err
	}

	return combined, nil
}

func buildComparison(combined *Combined, phaseNames []string) {
	for _, phase := range phaseNames {
		document, ok := combined.PhaseInsights[phase]
		if !ok {
			continue
		}

		combined.Comparison.Overall[phase] = OverallEntry{
			TotalRequests: document.Overall.Requests(),
			MeanMs:        document.Overall.MeanMs,
			MedianMs:      document.Overall.MedianMs,
			P95Ms:         document.Overall.P95Ms,
			P99Ms:         document.Overall.P99Ms,
		}

		if entry, ok := spreadOf(document); ok {
			combined.Comparison.Spread[phase] = entry
		}
	}

	combined.Comparison.Endpoints = buildBreakdown(combined, phaseNames,
		func(d *analysis.InsightsDocument) map[string]analysis.Stats { return d.Endpoints })
	combined.Comparison.Categories = buildBreakdown(combined, phaseNames,
		func(d *analysis.InsightsDocument) map[string]analysis.Stats { return d.Categories })
}

// buildBreakdown computes the union of identifiers across all loaded phases
// and, for each identifier, a per-phase sub-map present only for phases that
// actually reported it.
func buildBreakdown(
	combined *Combined,
	phaseNames []string,
	section func(*analysis.InsightsDocument) map[string]analysis.Stats,
) map[string]map[string]BreakdownEntry {

	union := map[string]bool{}
	for _, document := range combined.PhaseInsights {
		for identifier := range section(document) {
			union[identifier] = true
		}
	}

	identifiers := make([]string, 0, len(union))
	for identifier := range union {
		identifiers = append(identifiers, identifier)
	}
	sort.Strings(identifiers)

	breakdown := map[string]map[string]BreakdownEntry{}
	for _, identifier := range identifiers {
		perPhase := map[string]BreakdownEntry{}
		for _, phase := range phaseNames {
			document, ok := combined.PhaseInsights[phase]
			if !ok {
				continue
			}
			entry, reported := section(document)[identifier]
			if !reported {
				continue
			}
			perPhase[phase] = BreakdownEntry{
				RequestCount: entry.Requests(),
				MeanMs:       entry.MeanMs,
				P95Ms:        entry.P95Ms,
			}
		}
		breakdown[identifier] = perPhase
	}

	return breakdown
}

// spreadOf summarizes the distribution of per-endpoint mean latencies of one
// phase.
func spreadOf(document *analysis.InsightsDocument) (SpreadEntry, bool) {
	means := make([]float64, 0, len(document.Endpoints))
	for _, entry := range document.Endpoints {
		means = append(means, entry.MeanMs)
	}
	if len(means) == 0 {
		return SpreadEntry{}, false
	}

	min, _ := stats.Min(means)
	max, _ := stats.Max(means)
	median, _ := stats.Median(means)
	stddev, _ := stats.StandardDeviation(means)

	return SpreadEntry{MinMs: min, MaxMs: max, MedianMs: median, StddevMs: stddev}, true
}

func writeCombined(outputDir string, combined *Combined) error {
	data, err := json.MarshalIndent(combined, "", "  ")
	if err != nil {
		return errors.Wrap(err, "could not serialize combined insights")
	}

	combinedPath := path.Join(outputDir, CombinedFilename)
	if err := os.WriteFile(combinedPath, data, 0644); err != nil {
		return errors.Wrapf(err, "could not write combined insights to %q", combinedPath)
	}

	log.Infof("Combined insights written to %q", combinedPath)
	return nil
}
