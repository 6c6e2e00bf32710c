// Package benchmark executes the load-test phases of a run: it drives the
// external load generator, triggers metrics collection and analysis per
// phase, and sequences multiple phases with cool-down waits.
package benchmark

import (
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/JakobPriesner/BeFaaS-framework/pkg/conf"
)

var userStateDirFlag = conf.NewStringFlag(
	"user_state_dir",
	"Directory holding the load generator's registered-users state",
	".befaas-users",
)

// Session owns the shared authentication state the load generator builds up
// while registering users. It is an explicit object so state cannot leak
// between runs of a reused process.
type Session struct {
	// StateDir is the registered-users directory. Empty means the flag value.
	StateDir string
}

func (s *Session) stateDir() string {
	if s.StateDir != "" {
		return s.StateDir
	}
	return userStateDirFlag.Value()
}

// Reset wipes the registered-users state. It is idempotent: a state
// directory that does not exist is already reset.
func (s *Session) Reset() error {
	dir := s.stateDir()
	if err := os.RemoveAll(dir); err != nil {
		return errors.Wrapf(err, "could not reset user state in %q", dir)
	}

	log.Debugf("User state %q reset", dir)
	return nil
}
