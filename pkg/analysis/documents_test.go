package analysis

import (
	"os"
	"path"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestStats(t *testing.T) {
	Convey("While reading request counts from statistics entries", t, func() {
		Convey("total_requests wins when present", func() {
			So(Stats{TotalRequests: 10, RequestCount: 99}.Requests(), ShouldEqual, 10)
		})

		Convey("request_count is the fallback", func() {
			So(Stats{RequestCount: 42}.Requests(), ShouldEqual, 42)
		})

		Convey("an empty entry reports zero", func() {
			So(Stats{}.Requests(), ShouldEqual, 0)
		})
	})
}

func TestLoadInsights(t *testing.T) {
	Convey("While loading insights documents", t, func() {
		dir := t.TempDir()
		insightsPath := path.Join(dir, InsightsFilename)

		Convey("A well-formed document parses into all sections", func() {
			document := `{
				"overall": {"total_requests": 120, "mean_ms": 55.5, "p95_ms": 110},
				"endpoints": {"/cart": {"request_count": 80, "mean_ms": 40}},
				"categories": {"write": {"request_count": 40, "mean_ms": 85}}
			}`
			So(os.WriteFile(insightsPath, []byte(document), 0644), ShouldBeNil)

			loaded, err := LoadInsights(insightsPath)
			So(err, ShouldBeNil)
			So(loaded.Overall.Requests(), ShouldEqual, 120)
			So(loaded.Overall.MeanMs, ShouldEqual, 55.5)
			So(loaded.Endpoints["/cart"].MeanMs, ShouldEqual, 40)
			So(loaded.Categories["write"].Requests(), ShouldEqual, 40)
		})

		Convey("A missing document is an error naming the path", func() {
			_, err := LoadInsights(insightsPath)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, insightsPath)
		})

		Convey("Malformed JSON is an error", func() {
			So(os.WriteFile(insightsPath, []byte("{oops"), 0644), ShouldBeNil)
			_, err := LoadInsights(insightsPath)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestInsightsPath(t *testing.T) {
	Convey("The insights path lives below the phase's analysis directory", t, func() {
		So(InsightsPath("results/run/baseline"),
			ShouldEqual, "results/run/baseline/analysis/insights.json")
	})
}
