// Package metadata records run metadata (flags, environment, outcome) in a
// Cassandra cluster so long benchmark campaigns can be audited later.
// Recording is optional: without a configured cluster address every
// operation is a no-op.
package metadata

import (
	"os"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/JakobPriesner/BeFaaS-framework/pkg/conf"
)

const addressDisabled = "none"

var (
	cassandraAddressFlag = conf.NewStringFlag(
		"cassandra_address",
		"Cassandra cluster address for run metadata; 'none' disables recording",
		addressDisabled,
	)
	cassandraTimeoutFlag = conf.NewDurationFlag(
		"cassandra_timeout",
		"Connection timeout for the metadata cluster",
		5*time.Second,
	)
	envPrefixesFlag = conf.NewSliceFlag(
		"metadata_env_prefixes",
		"Environment variable prefixes recorded with the run metadata",
		"BEFAAS_",
	)
)

// Kinds of recorded metadata maps.
const (
	kindFlags   = "flags"
	kindEnviron = "environ"
	kindOutcome = "outcome"
)

// Recorder keeps the Cassandra session alive and tags every record with the
// run ID. A nil Recorder is valid and records nothing.
type Recorder struct {
	runID   string
	session *gocql.Session
}

// NewRecorder connects to the configured metadata cluster. It returns
// (nil, nil) when recording is disabled.
func NewRecorder(runID string) (*Recorder, error) {
	address := cassandraAddressFlag.Value()
	if address == addressDisabled {
		log.Debug("Run metadata recording disabled")
		return nil, nil
	}

	cluster := gocql.NewCluster(address)
	cluster.Consistency = gocql.LocalOne
	cluster.ProtoVersion = 4
	cluster.Timeout = cassandraTimeoutFlag.Value()

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, errors.Wrapf(err, "could not connect to metadata cluster at %q", address)
	}

	recorder := &Recorder{runID: runID, session: session}
	if err := recorder.ensureSchema(); err != nil {
		session.Close()
		return nil, err
	}

	return recorder, nil
}

func (r *Recorder) ensureSchema() error {
	err := r.session.Query(`CREATE KEYSPACE IF NOT EXISTS befaas WITH REPLICATION = {'class': 'SimpleStrategy', 'replication_factor': 1};`).Exec()
	if err != nil {
		return errors.Wrap(err, "could not create metadata keyspace")
	}

	err = r.session.Query(`CREATE TABLE IF NOT EXISTS befaas.runs (run_id text, kind text, time timestamp, timeuuid TIMEUUID, metadata map<text,text>, PRIMARY KEY ((run_id), timeuuid)) WITH CLUSTERING ORDER BY (timeuuid DESC);`).Exec()
	if err != nil {
		return errors.Wrap(err, "could not create metadata table")
	}

	return nil
}

func (r *Recorder) record(kind string, metadata map[string]string) error {
	if r == nil {
		return nil
	}

	return r.session.Query(
		`INSERT INTO befaas.runs (run_id, kind, time, timeuuid, metadata) VALUES (?, ?, ?, ?, ?)`,
		r.runID, kind, time.Now(), gocql.TimeUUID(), metadata,
	).Exec()
}

// RecordFlags saves the whole flag-based configuration of the run.
func (r *Recorder) RecordFlags() error {
	return r.record(kindFlags, conf.GetFlags())
}

// RecordEnv saves all environment variables matching the configured
// prefixes.
func (r *Recorder) RecordEnv() error {
	return r.record(kindEnviron, environMetadata(os.Environ(), envPrefixesFlag.Value()))
}

func environMetadata(environ, prefixes []string) map[string]string {
	metadata := map[string]string{}
	for _, env := range environ {
		for _, prefix := range prefixes {
			if strings.HasPrefix(env, prefix) {
				fields := strings.SplitN(env, "=", 2)
				metadata[fields[0]] = fields[1]
				break
			}
		}
	}
	return metadata
}

// RecordOutcome saves the final status of the run.
func (r *Recorder) RecordOutcome(status string) error {
	return r.record(kindOutcome, map[string]string{"status": status})
}

// Close tears down the Cassandra session.
func (r *Recorder) Close() {
	if r == nil {
		return
	}
	r.session.Close()
}
