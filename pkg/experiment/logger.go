package experiment

import (
	"io"
	"os"
	"path"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const masterLogFilename = "master.log"

// CreateRunDir creates the per-run output directory and opens the master
// log file inside it.
func CreateRunDir(outputDir string) (*os.File, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, errors.Wrapf(err, "cannot create run directory %q", outputDir)
	}

	logPath := path.Join(outputDir, masterLogFilename)
	logFile, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open log file %q", logPath)
	}

	return logFile, nil
}

// InitializeLogger configures logrus to write to both the console and the
// run's master log file through a single call site.
func InitializeLogger(runID string, logFile *os.File) {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05.000"})
	logrus.SetOutput(io.MultiWriter(logFile, os.Stderr))
	logrus.Info("Starting experiment run ", runID)
}
