package healthcheck

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func countingServer(status func() int, probes *int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(probes, 1)
		w.WriteHeader(status())
	}))
}

func TestHealthCheck(t *testing.T) {
	Convey("While awaiting endpoint health", t, func() {
		engine := &Engine{
			MaxRetries:     3,
			Delay:          time.Millisecond,
			RequestTimeout: time.Second,
		}

		Convey("An empty endpoint list trivially succeeds", func() {
			So(engine.Await(nil), ShouldBeNil)
		})

		Convey("Endpoints healthy on the first attempt are probed exactly once", func() {
			var firstProbes, secondProbes int32
			first := countingServer(func() int { return http.StatusOK }, &firstProbes)
			defer first.Close()
			second := countingServer(func() int { return http.StatusNoContent }, &secondProbes)
			defer second.Close()

			So(engine.Await([]string{first.URL, second.URL}), ShouldBeNil)
			So(atomic.LoadInt32(&firstProbes), ShouldEqual, 1)
			So(atomic.LoadInt32(&secondProbes), ShouldEqual, 1)
		})

		Convey("An endpoint becoming healthy within the budget succeeds", func() {
			var probes int32
			server := countingServer(func() int {
				if atomic.LoadInt32(&probes) < 2 {
					return http.StatusServiceUnavailable
				}
				return http.StatusOK
			}, &probes)
			defer server.Close()

			So(engine.Await([]string{server.URL}), ShouldBeNil)
			So(atomic.LoadInt32(&probes), ShouldEqual, 2)
		})

		Convey("A never-healthy endpoint exhausts the retry budget", func() {
			var sickProbes, healthyProbes int32
			sick := countingServer(func() int { return http.StatusInternalServerError }, &sickProbes)
			defer sick.Close()
			healthy := countingServer(func() int { return http.StatusOK }, &healthyProbes)
			defer healthy.Close()

			err := engine.Await([]string{healthy.URL, sick.URL})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, sick.URL)
			So(err.Error(), ShouldNotContainSubstring, healthy.URL)

			// The sick endpoint is probed on every attempt; the healthy
			// sibling only on the first.
			So(atomic.LoadInt32(&sickProbes), ShouldEqual, 3)
			So(atomic.LoadInt32(&healthyProbes), ShouldEqual, 1)
		})

		Convey("An unreachable endpoint counts as unhealthy", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			server.Close()

			err := engine.Await([]string{server.URL})
			So(err, ShouldNotBeNil)
		})
	})
}
