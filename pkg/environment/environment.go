// Package environment validates that the credentials required by an
// experiment's providers are present before anything is provisioned.
package environment

import (
	"os"
	"sort"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/JakobPriesner/BeFaaS-framework/pkg/executor"
	"github.com/JakobPriesner/BeFaaS-framework/pkg/experiment"
)

// DockerUserEnv is exported for downstream tooling when a registry identity
// could be probed from the local container runtime.
const DockerUserEnv = "BEFAAS_DOCKER_USER"

type awsCredentials struct {
	AccessKeyID     string `envconfig:"AWS_ACCESS_KEY_ID" required:"true"`
	SecretAccessKey string `envconfig:"AWS_SECRET_ACCESS_KEY" required:"true"`
	Region          string `envconfig:"AWS_DEFAULT_REGION" default:"us-east-1"`
}

type googleCredentials struct {
	CredentialsFile string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS" required:"true"`
	Project         string `envconfig:"GOOGLE_CLOUD_PROJECT" required:"true"`
}

type azureCredentials struct {
	SubscriptionID string `envconfig:"ARM_SUBSCRIPTION_ID" required:"true"`
	ClientID       string `envconfig:"ARM_CLIENT_ID" required:"true"`
	ClientSecret   string `envconfig:"ARM_CLIENT_SECRET" required:"true"`
	TenantID       string `envconfig:"ARM_TENANT_ID" required:"true"`
}

// Validate checks that every provider referenced by the manifest has its
// required environment variables set. Providers without a required
// credential set (tinyfaas, openfaas and other self-hosted backends) are
// tolerated without configuration.
func Validate(manifest *experiment.Manifest) error {
	for _, provider := range manifest.Providers() {
		switch provider {
		case "aws":
			credentials := awsCredentials{}
			if err := envconfig.Process("", &credentials); err != nil {
				return errors.Wrap(err, "aws credentials incomplete")
			}
			err := rejectEmpty("aws", map[string]string{
				"AWS_ACCESS_KEY_ID":     credentials.AccessKeyID,
				"AWS_SECRET_ACCESS_KEY": credentials.SecretAccessKey,
			})
			if err != nil {
				return err
			}
			// Terraform and the AWS CLI both accept AWS_REGION; derive it so
			// downstream tooling agrees on one region.
			if os.Getenv("AWS_REGION") == "" {
				os.Setenv("AWS_REGION", credentials.Region)
			}
		case "google":
			credentials := googleCredentials{}
			if err := envconfig.Process("", &credentials); err != nil {
				return errors.Wrap(err, "google credentials incomplete")
			}
			err := rejectEmpty("google", map[string]string{
				"GOOGLE_APPLICATION_CREDENTIALS": credentials.CredentialsFile,
				"GOOGLE_CLOUD_PROJECT":           credentials.Project,
			})
			if err != nil {
				return err
			}
		case "azure":
			credentials := azureCredentials{}
			if err := envconfig.Process("", &credentials); err != nil {
				return errors.Wrap(err, "azure credentials incomplete")
			}
			err := rejectEmpty("azure", map[string]string{
				"ARM_SUBSCRIPTION_ID": credentials.SubscriptionID,
				"ARM_CLIENT_ID":       credentials.ClientID,
				"ARM_CLIENT_SECRET":   credentials.ClientSecret,
				"ARM_TENANT_ID":       credentials.TenantID,
			})
			if err != nil {
				return err
			}
		default:
			log.Debugf("Provider %q needs no credentials, skipping", provider)
		}
	}

	return nil
}

// rejectEmpty fails validation for required variables whose value is empty.
// envconfig treats a variable that is set but empty as present, so required
// tags alone do not catch `VAR=""`.
func rejectEmpty(provider string, required map[string]string) error {
	empty := []string{}
	for name, value := range required {
		if value == "" {
			empty = append(empty, name)
		}
	}
	if len(empty) == 0 {
		return nil
	}

	sort.Strings(empty)
	return errors.Errorf("%s credentials incomplete: %s not set", provider, strings.Join(empty, ", "))
}

// ProbeRegistryIdentity asks the local container runtime for an
// authenticated registry user and, when found, exports it for downstream
// tooling. Probe failure is not fatal: image pushes will simply use whatever
// identity the runtime has.
func ProbeRegistryIdentity() {
	out, err := executor.Output(executor.Command{Path: "docker", Args: []string{"info"}})
	if err != nil {
		log.Warnf("Could not probe docker registry identity: %v", err)
		return
	}

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Username:") {
			user := strings.TrimSpace(strings.TrimPrefix(line, "Username:"))
			if user != "" {
				log.Infof("Using registry identity %q", user)
				os.Setenv(DockerUserEnv, user)
			}
			return
		}
	}

	log.Debug("No authenticated registry identity found")
}
