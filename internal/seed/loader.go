package seed

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader handles loading and parsing of the listings seed file
type Loader struct {
	filePath string
}

// NewLoader creates a new seed loader
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
	}
}

// Load reads and parses the listings.yaml file
func (l *Loader) Load() (Config, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read seed file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("failed to parse seed yaml: %w", err)
	}

	return config, nil
}
