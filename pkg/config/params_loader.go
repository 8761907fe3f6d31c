package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/optoutdao/engine/pkg/engine"
)

// LoadParams loads an engine parameter profile from a YAML file. Fields
// missing from the file keep their defaults. An empty path returns the
// defaults untouched.
func LoadParams(path string) (engine.Params, error) {
	params := engine.DefaultParams()
	if path == "" {
		return params, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return params, fmt.Errorf("load params %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &params); err != nil {
		return params, fmt.Errorf("parse params %q: %w", path, err)
	}
	if err := params.Validate(); err != nil {
		return params, fmt.Errorf("invalid params %q: %w", path, err)
	}
	return params, nil
}
