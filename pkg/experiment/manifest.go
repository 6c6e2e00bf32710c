package experiment

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/pkg/errors"
)

// ManifestFilename is the experiment definition file inside the experiment
// directory.
const ManifestFilename = "experiment.json"

// FunctionSpec describes one logical function of the application.
type FunctionSpec struct {
	// Provider is the backend the function targets (aws, google, azure,
	// tinyfaas, openfaas).
	Provider string `json:"provider"`
}

// Manifest is the experiment definition read from experiment.json.
type Manifest struct {
	// Functions maps logical function names to their target backends.
	Functions map[string]FunctionSpec `json:"functions"`
	// Workload is the default workload file name for this experiment.
	Workload string `json:"workload,omitempty"`
}

// LoadManifest reads and parses the manifest at the given path.
func LoadManifest(manifestPath string) (*Manifest, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read experiment manifest %q", manifestPath)
	}

	manifest := &Manifest{}
	if err := json.Unmarshal(data, manifest); err != nil {
		return nil, errors.Wrapf(err, "could not parse experiment manifest %q", manifestPath)
	}

	if len(manifest.Functions) == 0 {
		return nil, errors.Errorf("experiment manifest %q declares no functions", manifestPath)
	}

	return manifest, nil
}

// Providers returns the distinct set of providers referenced by the
// manifest, sorted for deterministic iteration.
func (m *Manifest) Providers() []string {
	seen := map[string]bool{}
	for _, function := range m.Functions {
		seen[function.Provider] = true
	}

	providers := make([]string, 0, len(seen))
	for provider := range seen {
		providers = append(providers, provider)
	}
	sort.Strings(providers)
	return providers
}

// FunctionsByProvider groups function names by their target provider.
// Function names within a provider are sorted.
func (m *Manifest) FunctionsByProvider() map[string][]string {
	grouped := map[string][]string{}
	for name, function := range m.Functions {
		grouped[function.Provider] = append(grouped[function.Provider], name)
	}
	for _, names := range grouped {
		sort.Strings(names)
	}
	return grouped
}
