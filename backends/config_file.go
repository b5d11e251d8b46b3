package backends

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// FileConfig is the layout of backends.yaml:
//
//	backends:
//	  - type: sdapi
//	    settings:
//	      address: http://gpu-box:7860
//	  - type: openai
//	    settings:
//	      api_key: ${OPENAI_API_KEY}
type FileConfig struct {
	Backends []FileBackend `yaml:"backends"`
}

// FileBackend is one backend entry of backends.yaml.
type FileBackend struct {
	Type     string   `yaml:"type"`
	Settings Settings `yaml:"settings"`
}

// ParseFileConfig decodes YAML and expands ${VAR} references in setting
// values from the environment.
func ParseFileConfig(data []byte) (FileConfig, error) {
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse backends config: %w", err)
	}
	for i, b := range cfg.Backends {
		if b.Type == "" {
			return FileConfig{}, fmt.Errorf("parse backends config: entry %d has no type", i)
		}
		for k, v := range b.Settings {
			b.Settings[k] = os.ExpandEnv(v)
		}
	}
	return cfg, nil
}

// LoadFile registers every backend listed in path. A missing file is not an
// error; it yields zero backends. Entries that fail to initialize are still
// registered as invalid.
func (p *Pool) LoadFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read backends config: %w", err)
	}

	cfg, err := ParseFileConfig(data)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, b := range cfg.Backends {
		if _, err := p.Add(b.Type, b.Settings); err != nil {
			return added, fmt.Errorf("backend %d (%s): %w", added+1, b.Type, err)
		}
		added++
	}
	return added, nil
}
