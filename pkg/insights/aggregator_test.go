package insights

import (
	"encoding/json"
	"os"
	"path"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/JakobPriesner/BeFaaS-framework/pkg/analysis"
	"github.com/JakobPriesner/BeFaaS-framework/pkg/experiment"
)

func writePhaseInsights(outputDir, phase string, document string) error {
	analysisDir := path.Join(outputDir, phase, analysis.AnalysisDirname)
	if err := os.MkdirAll(analysisDir, 0755); err != nil {
		return err
	}
	return os.WriteFile(path.Join(analysisDir, analysis.InsightsFilename), []byte(document), 0644)
}

func readCombined(outputDir string) (*Combined, error) {
	data, err := os.ReadFile(path.Join(outputDir, CombinedFilename))
	if err != nil {
		return nil, err
	}
	combined := &Combined{}
	return combined, json.Unmarshal(data, combined)
}

func TestAggregate(t *testing.T) {
	Convey("While aggregating per-phase insights", t, func() {
		outputDir := t.TempDir()
		cfg := experiment.Config{
			Name:         "webservice",
			Architecture: experiment.Microservices,
			AuthStrategy: experiment.AuthSession,
			MemoryMB:     1024,
			OutputDir:    outputDir,
		}

		Convey("With no loadable phase documents", func() {
			combined, err := Aggregate(outputDir, []string{"baseline", "scaling"}, cfg)
			So(err, ShouldBeNil)

			Convey("The combined document still carries run metadata", func() {
				So(combined.Experiment.Name, ShouldEqual, "webservice")
				So(combined.Experiment.Architecture, ShouldEqual, "microservices")
				So(combined.Phases, ShouldResemble, []string{"baseline", "scaling"})
				So(combined.GeneratedAt, ShouldNotBeEmpty)
			})

			Convey("The comparison maps are empty but present", func() {
				So(combined.Comparison.Overall, ShouldBeEmpty)
				So(combined.Comparison.Endpoints, ShouldBeEmpty)
				So(combined.Comparison.Categories, ShouldBeEmpty)
				So(combined.Comparison.Spread, ShouldBeEmpty)
			})

			Convey("The document is written to the run root regardless", func() {
				onDisk, err := readCombined(outputDir)
				So(err, ShouldBeNil)
				So(onDisk.Phases, ShouldResemble, []string{"baseline", "scaling"})
			})
		})

		Convey("With a single loadable phase", func() {
			So(writePhaseInsights(outputDir, "baseline", `{
				"overall": {"total_requests": 100, "mean_ms": 50}
			}`), ShouldBeNil)

			combined, err := Aggregate(outputDir, []string{"baseline", "scaling"}, cfg)
			So(err, ShouldBeNil)

			Convey("The phase document is kept but no comparison is built", func() {
				So(combined.PhaseInsights, ShouldContainKey, "baseline")
				So(combined.Comparison.Overall, ShouldBeEmpty)
			})
		})

		Convey("With two loadable phases", func() {
			So(writePhaseInsights(outputDir, "baseline", `{
				"overall": {"total_requests": 100, "mean_ms": 50, "median_ms": 40, "p95_ms": 90, "p99_ms": 120},
				"endpoints": {
					"/cart": {"request_count": 60, "mean_ms": 45, "p95_ms": 80},
					"/checkout": {"request_count": 40, "mean_ms": 70, "p95_ms": 130}
				},
				"categories": {
					"read": {"request_count": 60, "mean_ms": 45}
				}
			}`), ShouldBeNil)
			So(writePhaseInsights(outputDir, "scaling", `{
				"overall": {"request_count": 500, "mean_ms": 80, "median_ms": 60, "p95_ms": 150, "p99_ms": 220},
				"endpoints": {
					"/cart": {"request_count": 500, "mean_ms": 80, "p95_ms": 150}
				}
			}`), ShouldBeNil)

			combined, err := Aggregate(outputDir, []string{"baseline", "scaling"}, cfg)
			So(err, ShouldBeNil)

			Convey("Overall scalars are compared per phase", func() {
				So(combined.Comparison.Overall, ShouldHaveLength, 2)
				So(combined.Comparison.Overall["baseline"].TotalRequests, ShouldEqual, 100)
				// request_count feeds total_requests when the older field is absent.
				So(combined.Comparison.Overall["scaling"].TotalRequests, ShouldEqual, 500)
				So(combined.Comparison.Overall["scaling"].P99Ms, ShouldEqual, 220)
			})

			Convey("Endpoint breakdown is the union, populated per reporting phase", func() {
				So(combined.Comparison.Endpoints, ShouldHaveLength, 2)

				cart := combined.Comparison.Endpoints["/cart"]
				So(cart, ShouldHaveLength, 2)
				So(cart["baseline"].MeanMs, ShouldEqual, 45)
				So(cart["scaling"].MeanMs, ShouldEqual, 80)

				checkout := combined.Comparison.Endpoints["/checkout"]
				So(checkout, ShouldHaveLength, 1)
				So(checkout, ShouldContainKey, "baseline")
			})

			Convey("Categories missing from a phase do not break the breakdown", func() {
				read := combined.Comparison.Categories["read"]
				So(read, ShouldHaveLength, 1)
				So(read["baseline"].RequestCount, ShouldEqual, 60)
			})

			Convey("Spread summarizes endpoint means within each phase", func() {
				baseline := combined.Comparison.Spread["baseline"]
				So(baseline.MinMs, ShouldEqual, 45)
				So(baseline.MaxMs, ShouldEqual, 70)
				So(baseline.MedianMs, ShouldEqual, 57.5)

				scaling := combined.Comparison.Spread["scaling"]
				So(scaling.MinMs, ShouldEqual, 80)
				So(scaling.MaxMs, ShouldEqual, 80)
			})
		})

		Convey("An unparsable phase document is skipped, not fatal", func() {
			So(writePhaseInsights(outputDir, "baseline", `{not json`), ShouldBeNil)

			combined, err := Aggregate(outputDir, []string{"baseline"}, cfg)
			So(err, ShouldBeNil)
			So(combined.PhaseInsights, ShouldBeEmpty)
		})
	})
}
