package main

import (
	"fmt"

	"github.com/creasty/defaults"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// config holds CLI-wide defaults. A config file is optional: most
// invocations only need the flag-level defaults below, applied with
// creasty/defaults the same way pixie's own config does.
type config struct {
	// ExpectedHeadersSize is the fixed early-header size every opened
	// image is checked against.
	ExpectedHeadersSize int `mapstructure:"expected_headers_size" default:"4096"`

	// EmitOrder names an .rsrc sibling order: "insertion" (default,
	// bit-exact with what was decoded) or "spec" (name-then-id, sorted).
	// It is loaded and defaulted, but no subcommand re-encodes .rsrc, so
	// nothing reads it.
	EmitOrder string `mapstructure:"emit_order" default:"insertion"`

	// Parallelism bounds concurrent extraction workers for `rsrc
	// extract-all`.
	Parallelism int `mapstructure:"parallelism" default:"4"`

	// ExtractTypeOptions maps a top-level resource type segment (e.g.
	// "3" for RT_ICON, or a named type) to per-type extraction options,
	// remaining loosely typed here so a config file can describe only
	// the types it cares about; decodeExtractOptions below resolves one
	// entry at a time into extractTypeOptions.
	ExtractTypeOptions map[string]map[string]interface{} `mapstructure:"extract_type_options"`
}

// extractTypeOptions configures how `rsrc extract-all` names files
// belonging to a given top-level resource type.
type extractTypeOptions struct {
	Extension string `mapstructure:"extension" default:".bin"`
}

// decodeExtractOptions resolves the options for resource type typeSeg
// (the first path segment of an extracted entry), mirroring the
// teacher's decodeProviderConfig[T]'s default-then-decode shape.
func decodeExtractOptions(cfg *config, typeSeg string) (*extractTypeOptions, error) {
	opts := &extractTypeOptions{}
	if err := defaults.Set(opts); err != nil {
		return nil, fmt.Errorf("failed to set default extract options: %w", err)
	}

	raw, ok := cfg.ExtractTypeOptions[typeSeg]
	if !ok {
		return opts, nil
	}

	if err := mapstructure.Decode(raw, opts); err != nil {
		return nil, fmt.Errorf("failed to parse extract options for resource type %q: %w", typeSeg, err)
	}

	return opts, nil
}

func loadConfig(path string) (*config, error) {
	cfg := &config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("failed to set config defaults: %w", err)
	}

	if path == "" {
		return cfg, nil
	}

	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config from '%s': %w", path, err)
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}
