package inventory

import (
	"os"

	"github.com/goccy/go-yaml"

	"github.com/seisio/stationsync/pkg/errors"
)

// providerFile is the on-disk shape of a provider registry.
type providerFile struct {
	Providers []Provider `yaml:"providers"`
}

// LoadProviders reads a YAML provider registry. Provider ids must be unique
// and every provider needs a station query endpoint.
func LoadProviders(path string) ([]Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}
	return ParseProviders(data, path)
}

// ParseProviders parses and validates a YAML provider registry document.
func ParseProviders(data []byte, path string) ([]Provider, error) {
	var file providerFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}
	if len(file.Providers) == 0 {
		return nil, &errors.ValidationError{
			Field:   "providers",
			Message: "provider registry is empty",
		}
	}

	seen := make(map[ProviderID]struct{}, len(file.Providers))
	for _, p := range file.Providers {
		if p.ID <= 0 {
			return nil, &errors.ValidationError{
				Field:   "providers.id",
				Value:   p.ID,
				Message: "provider id must be positive",
			}
		}
		if _, dup := seen[p.ID]; dup {
			return nil, &errors.ValidationError{
				Field:   "providers.id",
				Value:   p.ID,
				Message: "duplicate provider id",
			}
		}
		seen[p.ID] = struct{}{}
		if p.StationURL == "" {
			return nil, &errors.ValidationError{
				Field:   "providers.station_url",
				Value:   p.Name,
				Message: "station query endpoint is required",
			}
		}
	}
	return file.Providers, nil
}
