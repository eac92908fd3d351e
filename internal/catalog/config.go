package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads a catalog override file. The file may declare extra tools,
// aliases, and groups; merged entries replace same-named built-ins. A typical
// file:
//
//	tools:
//	  - deploy
//	  - rollback
//	aliases:
//	  ship: deploy
//	groups:
//	  release: [deploy, rollback]
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("LoadConfig: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("LoadConfig: parse %s: %w", path, err)
	}
	return cfg, nil
}
