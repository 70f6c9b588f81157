package config

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML file at path on top of Default and validates the
// result.
func Load(path string) (*Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config file '%s': %w", path, err)
	}
	return cfg, nil
}

// readFile is Load without the validation.
func readFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open config file '%s': %w", path, err)
	}
	defer f.Close()

	cfg := Default()
	if err := decode(f, cfg); err != nil {
		return nil, fmt.Errorf("unable to load config file '%s': %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader is Load for an arbitrary reader. Unknown keys are
// rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decode(r, cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	err := dec.Decode(cfg)
	switch {
	case err == nil, err == io.EOF:
		return nil
	default:
		return fmt.Errorf("unable to decode YAML: %w", err)
	}
}
