package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/JakobPriesner/BeFaaS-framework/pkg/conf"
	"github.com/JakobPriesner/BeFaaS-framework/pkg/environment"
	"github.com/JakobPriesner/BeFaaS-framework/pkg/experiment"
	"github.com/JakobPriesner/BeFaaS-framework/pkg/metadata"
	"github.com/JakobPriesner/BeFaaS-framework/pkg/pipeline"
	"github.com/JakobPriesner/BeFaaS-framework/pkg/utils/errutil"
)

var (
	experimentFlag = conf.NewStringFlag(
		"experiment", "Experiment to run", "webservice")
	architectureFlag = conf.NewStringFlag(
		"architecture", "Deployment topology: faas, microservices, monolith", "")
	authFlag = conf.NewStringFlag(
		"auth", "Auth strategy baked into the deployment: none, jwt, session", "")
	memoryFlag = conf.NewIntFlag(
		"memory", "Function/container memory in MB", 512)
	workloadFlag = conf.NewStringFlag(
		"workload", "Workload file for the baseline phase; defaults to the manifest's workload", "")
	outputDirFlag = conf.NewStringFlag(
		"output_dir", "Output directory for run results; defaults to a timestamped directory under results/", "")
	experimentsDirFlag = conf.NewStringFlag(
		"experiments_dir", "Root directory holding experiment definitions", "experiments")
	manifestFlag = conf.NewFileFlag(
		"manifest", "Manifest file overriding <experiments_dir>/<experiment>/experiment.json", "")

	stressScalingFlag = conf.NewBoolFlag(
		"stress_scaling", "Run the scaling stress phase after the baseline", false)
	stressAuthFlag = conf.NewBoolFlag(
		"stress_auth", "Run the auth stress phase after the baseline", false)
	cooldownFlag = conf.NewDurationFlag(
		"cooldown", "Cool-down wait between benchmark phases", 3*time.Minute)
	lookbackFlag = conf.NewDurationFlag(
		"lookback", "Buffer subtracted from the phase start time for log filtering", time.Minute)

	destroyFlag = conf.NewBoolFlag(
		"destroy", "Destroy provisioned infrastructure after the run", true)
	buildOnlyFlag = conf.NewBoolFlag(
		"build_only", "Stop after building artifacts", false)
	deployOnlyFlag = conf.NewBoolFlag(
		"deploy_only", "Stop after deploy and health check, leaving infrastructure up", false)
	destroyOnlyFlag = conf.NewBoolFlag(
		"destroy_only", "Only destroy infrastructure of a previous run", false)
	skipBenchmarkFlag = conf.NewBoolFlag(
		"skip_benchmark", "Deploy and health check but run no benchmark phases", false)
	skipMetricsFlag = conf.NewBoolFlag(
		"skip_metrics", "Skip metrics collection and analysis after each phase", false)
	bundleAllFlag = conf.NewBoolFlag(
		"bundle_all", "Package every known function instead of only those in the manifest (faas only)", false)

	configDumpFlag = conf.NewBoolFlag(
		"config_dump", "Print the whole configuration as environment variables and exit", false)
)

func main() {
	conf.SetAppName("befaas")
	conf.SetHelp(`BeFaaS runs one end-to-end benchmark experiment: it builds and deploys the
application in the selected topology, waits for it to stabilize, drives one
or more load-test phases against it, collects and analyzes telemetry, and
tears the infrastructure down again.`)

	errutil.Check(conf.ParseFlags())
	logrus.SetLevel(conf.LogLevel())

	if configDumpFlag.Value() {
		fmt.Println(conf.DumpConfig())
		return
	}

	logrus.Info("========== Validating ==========")
	cfg, manifest, err := experiment.Resolve(experiment.Config{
		Name:                experimentFlag.Value(),
		Architecture:        experiment.Architecture(architectureFlag.Value()),
		AuthStrategy:        experiment.AuthStrategy(authFlag.Value()),
		MemoryMB:            memoryFlag.Value(),
		WorkloadFile:        workloadFlag.Value(),
		ManifestFile:        manifestFlag.Value(),
		BundleAll:           bundleAllFlag.Value(),
		StressScaling:       stressScalingFlag.Value(),
		StressAuth:          stressAuthFlag.Value(),
		Cooldown:            cooldownFlag.Value(),
		LookbackBuffer:      lookbackFlag.Value(),
		DestroyOnCompletion: destroyFlag.Value(),
		BuildOnly:           buildOnlyFlag.Value(),
		DeployOnly:          deployOnlyFlag.Value(),
		DestroyOnly:         destroyOnlyFlag.Value(),
		SkipBenchmark:       skipBenchmarkFlag.Value(),
		SkipMetrics:         skipMetricsFlag.Value(),
		ExperimentsDir:      experimentsDirFlag.Value(),
		OutputDir:           outputDirFlag.Value(),
	}, time.Now())
	errutil.CheckWithContext(err, "Invalid configuration")

	errutil.CheckWithContext(environment.Validate(manifest), "Environment validation failed")
	environment.ProbeRegistryIdentity()

	runID := uuid.New().String()
	logFile, err := experiment.CreateRunDir(cfg.OutputDir)
	errutil.CheckWithContext(err, "Cannot create run directory")
	experiment.InitializeLogger(runID, logFile)
	fmt.Println(runID)

	recorder, err := metadata.NewRecorder(runID)
	if err != nil {
		logrus.Warnf("Run metadata recording unavailable: %v", err)
	}
	defer recorder.Close()
	if err := recorder.RecordFlags(); err != nil {
		logrus.Warnf("Could not record flags: %v", err)
	}
	if err := recorder.RecordEnv(); err != nil {
		logrus.Warnf("Could not record environment: %v", err)
	}

	supervisor, err := pipeline.New(cfg)
	errutil.Check(err)

	if err := supervisor.Run(); err != nil {
		if recordErr := recorder.RecordOutcome("failed"); recordErr != nil {
			logrus.Warnf("Could not record outcome: %v", recordErr)
		}
		errutil.Check(err)
	}

	if err := recorder.RecordOutcome("success"); err != nil {
		logrus.Warnf("Could not record outcome: %v", err)
	}
	logrus.Infof("Experiment run complete, results in %q", cfg.OutputDir)
}
