// Package healthcheck polls deployed endpoints until all of them answer
// HTTP requests successfully or the retry budget is exhausted.
package healthcheck

import (
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultEngine returns an engine with the retry budget used by full runs.
func DefaultEngine() *Engine {
	return &Engine{
		MaxRetries:     30,
		Delay:          10 * time.Second,
		RequestTimeout: 5 * time.Second,
	}
}

// Engine is the health check retry engine. It performs a fixed number of
// attempts with a fixed delay in between: no backoff, no circuit breaking.
type Engine struct {
	// MaxRetries is the total number of probe attempts per endpoint.
	MaxRetries uint
	// Delay is the fixed wait between two attempts.
	Delay time.Duration
	// RequestTimeout bounds each individual probe request.
	RequestTimeout time.Duration
	// Client is used for probing. A default client honoring RequestTimeout
	// is constructed when nil.
	Client *http.Client
}

// Await blocks until every endpoint answered one request with a 2xx status
// or the retry budget is exhausted. An endpoint that became healthy on a
// previous attempt is never probed again. An empty endpoint list trivially
// succeeds.
func (e *Engine) Await(endpoints []string) error {
	if len(endpoints) == 0 {
		log.Debug("No endpoints to health check")
		return nil
	}

	client := e.Client
	if client == nil {
		client = &http.Client{Timeout: e.RequestTimeout}
	}

	healthy := make([]bool, len(endpoints))

	err := retry.Do(
		func() error {
			e.probeUnhealthy(client, endpoints, healthy)

			if remaining := unhealthyEndpoints(endpoints, healthy); len(remaining) > 0 {
				return errors.Errorf("%d of %d endpoints not healthy yet", len(remaining), len(endpoints))
			}
			return nil
		},
		retry.Attempts(e.MaxRetries),
		retry.Delay(e.Delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)

	if err != nil {
		remaining := unhealthyEndpoints(endpoints, healthy)
		return errors.Errorf("endpoints did not become healthy after %d attempts: %s",
			e.MaxRetries, strings.Join(remaining, ", "))
	}

	log.Infof("All %d endpoints healthy", len(endpoints))
	return nil
}

// probeUnhealthy issues one GET per not-yet-healthy endpoint, all probes of
// one attempt running concurrently. Each goroutine writes only its own slot
// of the healthy slice.
func (e *Engine) probeUnhealthy(client *http.Client, endpoints []string, healthy []bool) {
	done := make(chan struct{})
	probes := 0

	for index, endpoint := range endpoints {
		if healthy[index] {
			continue
		}
		probes++

		go func(index int, endpoint string) {
			defer func() { done <- struct{}{} }()

			response, err := client.Get(endpoint)
			if err != nil {
				log.Debugf("Endpoint %q not reachable: %v", endpoint, err)
				return
			}
			defer response.Body.Close()

			if response.StatusCode >= 200 && response.StatusCode < 300 {
				log.Debugf("Endpoint %q healthy (%d)", endpoint, response.StatusCode)
				healthy[index] = true
			} else {
				log.Debugf("Endpoint %q returned %d", endpoint, response.StatusCode)
			}
		}(index, endpoint)
	}

	for i := 0; i < probes; i++ {
		<-done
	}
}

func unhealthyEndpoints(endpoints []string, healthy []bool) []string {
	remaining := []string{}
	for index, endpoint := range endpoints {
		if !healthy[index] {
			remaining = append(remaining, endpoint)
		}
	}
	return remaining
}
