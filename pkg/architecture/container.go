package architecture

import (
	"fmt"
	"os"
	"path"
	"strconv"

	"github.com/google/uuid"
	multierror "github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/JakobPriesner/BeFaaS-framework/pkg/executor"
	"github.com/JakobPriesner/BeFaaS-framework/pkg/experiment"
	"github.com/JakobPriesner/BeFaaS-framework/pkg/utils/fsutil"
)

// servicesDir holds one container build context per service, plus the
// monolith context bundling the whole application.
const servicesDir = "services"

const monolithContext = "monolith"

// containerStrategy covers both container topologies. The monolith deploys
// one image, microservices one image per service; everything else (shared
// network/cache infrastructure, image tagging, compute provisioning) is
// identical.
type containerStrategy struct {
	architecture experiment.Architecture
}

// Build stages the container build contexts below the run's output
// directory. The auth strategy is baked into every context as a build-time
// env file so images carry their authentication mode.
func (s *containerStrategy) Build(cfg experiment.Config, _ BundleMode) (string, error) {
	contexts, err := s.contexts()
	if err != nil {
		return "", err
	}

	buildDir := path.Join(cfg.OutputDir, "build")
	for _, context := range contexts {
		staged := path.Join(buildDir, context)

		log.Infof("Staging build context %q", context)
		if err := fsutil.CopyTree(path.Join(servicesDir, context), staged); err != nil {
			return "", errors.Wrapf(err, "staging build context %q failed", context)
		}

		authEnv := fmt.Sprintf("AUTH_STRATEGY=%s\nMEMORY_MB=%d\n", cfg.AuthStrategy, cfg.MemoryMB)
		if err := os.WriteFile(path.Join(staged, "auth.env"), []byte(authEnv), 0644); err != nil {
			return "", errors.Wrapf(err, "writing auth.env into %q failed", staged)
		}
	}

	return buildDir, nil
}

func (s *containerStrategy) contexts() ([]string, error) {
	if s.architecture == experiment.Monolith {
		return []string{monolithContext}, nil
	}

	entries, err := os.ReadDir(servicesDir)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot list services in %q", servicesDir)
	}

	contexts := []string{}
	for _, entry := range entries {
		if entry.IsDir() && entry.Name() != monolithContext {
			contexts = append(contexts, entry.Name())
		}
	}

	if len(contexts) == 0 {
		return nil, errors.Errorf("no service build contexts found in %q", servicesDir)
	}
	return contexts, nil
}

// Deploy provisions the shared network/cache infrastructure, builds and
// pushes the image(s) under a freshly generated tag, then provisions the
// compute layer referencing that tag. It returns the single public
// health-check URL.
func (s *containerStrategy) Deploy(cfg experiment.Config, buildDir string) ([]string, error) {
	contexts, err := s.contexts()
	if err != nil {
		return nil, err
	}

	infraRoot := path.Join(infraDirFlag.Value(), string(s.architecture))

	shared := terraformModule{dir: path.Join(infraRoot, "shared")}
	if err := shared.apply(map[string]string{"experiment": cfg.Name}); err != nil {
		return nil, err
	}

	// A fresh tag per deploy so compute always rolls onto the images built
	// for this run.
	tag := uuid.New().String()[:8]
	for _, context := range contexts {
		image := fmt.Sprintf("%s/%s-%s:%s", registryFlag.Value(), cfg.Name, context, tag)
		if err := buildAndPush(image, path.Join(buildDir, context)); err != nil {
			return nil, err
		}
	}

	compute := terraformModule{dir: path.Join(infraRoot, "compute")}
	err = compute.apply(map[string]string{
		"experiment":    cfg.Name,
		"registry":      registryFlag.Value(),
		"image_tag":     tag,
		"memory_mb":     strconv.Itoa(cfg.MemoryMB),
		"auth_strategy": string(cfg.AuthStrategy),
	})
	if err != nil {
		return nil, err
	}

	outputs, err := compute.outputs()
	if err != nil {
		return nil, err
	}

	if url, ok := outputs.value("public_url"); ok {
		return []string{url}, nil
	}

	endpoints := outputs.endpoints()
	if len(endpoints) == 0 {
		return nil, errors.Errorf("%s deployment exposed no public URL", s.architecture)
	}
	return endpoints[:1], nil
}

// Destroy tears down compute first, then the shared infrastructure, keeping
// going on individual failures.
func (s *containerStrategy) Destroy(cfg experiment.Config) error {
	var combined *multierror.Error

	infraRoot := path.Join(infraDirFlag.Value(), string(s.architecture))

	compute := terraformModule{dir: path.Join(infraRoot, "compute")}
	if err := compute.destroy(map[string]string{"experiment": cfg.Name}); err != nil {
		combined = multierror.Append(combined, err)
	}

	shared := terraformModule{dir: path.Join(infraRoot, "shared")}
	if err := shared.destroy(map[string]string{"experiment": cfg.Name}); err != nil {
		combined = multierror.Append(combined, err)
	}

	return combined.ErrorOrNil()
}

func buildAndPush(image, contextDir string) error {
	log.Infof("Building image %q", image)
	err := executor.Run(executor.Command{
		Path: "docker",
		Args: []string{"build", "-t", image, contextDir},
	})
	if err != nil {
		return errors.Wrapf(err, "building image %q failed", image)
	}

	log.Infof("Pushing image %q", image)
	err = executor.Run(executor.Command{
		Path: "docker",
		Args: []string{"push", image},
	})
	if err != nil {
		return errors.Wrapf(err, "pushing image %q failed", image)
	}

	return nil
}
