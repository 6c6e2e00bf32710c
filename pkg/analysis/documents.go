// Package analysis invokes the external analysis tooling and models the
// statistics documents it produces.
package analysis

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// Stats is one aggregate latency/throughput statistics entry as produced by
// the analysis tool. Older tool versions emit total_requests, newer ones
// request_count; both are accepted.
type Stats struct {
	TotalRequests float64 `json:"total_requests,omitempty"`
	RequestCount  float64 `json:"request_count,omitempty"`
	MeanMs        float64 `json:"mean_ms"`
	MedianMs      float64 `json:"median_ms"`
	P95Ms         float64 `json:"p95_ms"`
	P99Ms         float64 `json:"p99_ms"`
}

// Requests returns the request count regardless of which field the tool
// emitted.
func (s Stats) Requests() float64 {
	if s.TotalRequests != 0 {
		return s.TotalRequests
	}
	return s.RequestCount
}

// InsightsDocument is the structured statistics object produced per phase.
// The orchestrator treats the schema as a contract but does not validate
// deep structure.
type InsightsDocument struct {
	Overall    Stats            `json:"overall"`
	Endpoints  map[string]Stats `json:"endpoints"`
	Categories map[string]Stats `json:"categories"`
}

// LoadInsights reads and parses an insights document from disk.
func LoadInsights(insightsPath string) (*InsightsDocument, error) {
	data, err := os.ReadFile(insightsPath)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read insights document %q", insightsPath)
	}

	document := &InsightsDocument{}
	if err := json.Unmarshal(data, document); err != nil {
		return nil, errors.Wrapf(err, "could not parse insights document %q", insightsPath)
	}

	return document, nil
}
