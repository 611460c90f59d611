package configs

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

//go:embed config.example.yaml
var embeddedDefaults string

// ReadDefaults loads the embedded config.example.yaml into v. A config file read
// afterwards with MergeInConfig overrides these values.
func ReadDefaults(v *viper.Viper) error {
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(embeddedDefaults)); err != nil {
		return fmt.Errorf("failed to read embedded config.example.yaml: %w", err)
	}
	return nil
}

// DefaultConfig decodes the embedded defaults into a new Config. Each call
// returns its own copy, so callers may change slices such as Compile.Contracts.
func DefaultConfig() (Config, error) {
	v := viper.New()
	if err := ReadDefaults(v); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode embedded config.example.yaml: %w", err)
	}
	return cfg, nil
}
