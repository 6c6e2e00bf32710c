package metrics

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/JakobPriesner/BeFaaS-framework/pkg/experiment"
)

func TestHarvestCommand(t *testing.T) {
	Convey("While building the log-harvesting invocation", t, func() {
		collector := &Collector{Script: "tools/get_logs.js"}
		cfg := experiment.Config{Name: "webservice"}
		phaseStart := time.Date(2024, 5, 17, 12, 0, 0, 0, time.UTC)

		command := collector.harvestCommand(cfg, phaseStart)

		Convey("The start time is passed as epoch millis", func() {
			So(command.Env[StartTimeEnv], ShouldEqual, "1715947200000")
		})

		Convey("The tool gets the experiment and manifest filename", func() {
			So(command.Path, ShouldEqual, "node")
			So(command.Args, ShouldResemble,
				[]string{"tools/get_logs.js", "webservice", experiment.ManifestFilename})
		})

		Convey("Sub-second start times do not lose precision", func() {
			command := collector.harvestCommand(cfg, phaseStart.Add(250*time.Millisecond))
			So(command.Env[StartTimeEnv], ShouldEqual, "1715947200250")
		})
	})
}
