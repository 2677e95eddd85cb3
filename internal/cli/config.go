package cli

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/heatgrid/heatgrid/pkg/pipeline"
)

// fileConfig is the on-disk TOML configuration. Flags override whatever
// the file sets.
//
//	[pipeline]
//	trunk_mode = "street-plus-spurs"
//	weighted_plant = true
//
//	[cache]
//	url = "redis://localhost:6379/0"
//	project = "north-side"
type fileConfig struct {
	Pipeline pipeline.Options `toml:"pipeline"`
	Cache    struct {
		URL     string `toml:"url"`
		Project string `toml:"project"`
	} `toml:"cache"`
}

// loadConfig reads a TOML config file. An empty path yields zero values,
// leaving every setting at its pipeline default.
func loadConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}
