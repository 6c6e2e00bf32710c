package architecture

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/JakobPriesner/BeFaaS-framework/pkg/executor"
)

// terraformModule wraps one terraform root directory.
type terraformModule struct {
	dir string
}

func (t terraformModule) run(args []string, vars map[string]string) error {
	for _, key := range sortedKeys(vars) {
		args = append(args, "-var", fmt.Sprintf("%s=%s", key, vars[key]))
	}

	return executor.Run(executor.Command{Path: "terraform", Args: args, Dir: t.dir})
}

// apply initializes the module and applies it without interaction.
func (t terraformModule) apply(vars map[string]string) error {
	log.Infof("Applying terraform module %q", t.dir)

	if err := executor.Run(executor.Command{
		Path: "terraform",
		Args: []string{"init", "-input=false"},
		Dir:  t.dir,
	}); err != nil {
		return errors.Wrapf(err, "terraform init failed in %q", t.dir)
	}

	if err := t.run([]string{"apply", "-auto-approve", "-input=false"}, vars); err != nil {
		return errors.Wrapf(err, "terraform apply failed in %q", t.dir)
	}

	return nil
}

// destroy tears the module down based on the state on disk.
func (t terraformModule) destroy(vars map[string]string) error {
	log.Infof("Destroying terraform module %q", t.dir)

	if err := t.run([]string{"destroy", "-auto-approve", "-input=false"}, vars); err != nil {
		return errors.Wrapf(err, "terraform destroy failed in %q", t.dir)
	}

	return nil
}

// terraformOutput is one entry of `terraform output -json`.
type terraformOutput struct {
	Sensitive bool        `json:"sensitive"`
	Value     interface{} `json:"value"`
}

type terraformOutputs map[string]terraformOutput

// outputs reads the module's structured outputs.
func (t terraformModule) outputs() (terraformOutputs, error) {
	raw, err := executor.Output(executor.Command{
		Path: "terraform",
		Args: []string{"output", "-json"},
		Dir:  t.dir,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "terraform output failed in %q", t.dir)
	}

	outputs := terraformOutputs{}
	if err := json.Unmarshal([]byte(raw), &outputs); err != nil {
		return nil, errors.Wrapf(err, "could not parse terraform outputs of %q", t.dir)
	}

	return outputs, nil
}

// endpoints returns every string output whose key contains "endpoint" or
// "url", ordered by key. These are the candidate deployed endpoints.
func (o terraformOutputs) endpoints() []string {
	values := stringValues(o)

	endpoints := []string{}
	for _, key := range sortedKeys(values) {
		lower := strings.ToLower(key)
		if strings.Contains(lower, "endpoint") || strings.Contains(lower, "url") {
			endpoints = append(endpoints, values[key])
		}
	}
	return endpoints
}

// value returns a named string output.
func (o terraformOutputs) value(key string) (string, bool) {
	output, ok := o[key]
	if !ok {
		return "", false
	}
	value, ok := output.Value.(string)
	return value, ok
}

func stringValues(o terraformOutputs) map[string]string {
	values := map[string]string{}
	for key, output := range o {
		if value, ok := output.Value.(string); ok {
			values[key] = value
		}
	}
	return values
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
