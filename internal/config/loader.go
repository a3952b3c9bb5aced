package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// OverlayPath returns the local overlay for a config file:
// sim.yaml -> sim.local.yaml.
func OverlayPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".local" + ext
}

// Load reads path, merges its optional overlay on top, fills defaults and
// validates the result.
func Load(path string) (Config, error) {
	base, err := readYAML(path)
	if err != nil {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}
	overlay, err := readYAML(OverlayPath(path)) // overlay is optional
	if err != nil {
		return Config{}, fmt.Errorf("read overlay: %w", err)
	}
	cfg := WithDefaults(Merge(base, overlay))
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// readYAML loads a YAML file into Config. Missing files return zero cfg, no error.
func readYAML(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Merge overlays b on a: set fields of b win, slices are replaced whole.
func Merge(a, b Config) Config {
	out := a

	if b.Version != "" {
		out.Version = b.Version
	}
	if b.HTTP.Listen != "" {
		out.HTTP.Listen = b.HTTP.Listen
	}
	if b.GRPC.Listen != "" {
		out.GRPC.Listen = b.GRPC.Listen
	}
	if b.Storage.Driver != "" {
		out.Storage.Driver = b.Storage.Driver
	}
	if b.Storage.Path != "" {
		out.Storage.Path = b.Storage.Path
	}

	// ledger
	if b.Ledger.Sequence != nil {
		out.Ledger.Sequence = b.Ledger.Sequence
	}
	if b.Ledger.Timestamp != nil {
		out.Ledger.Timestamp = b.Ledger.Timestamp
	}
	if b.Ledger.CloseSecs != nil {
		out.Ledger.CloseSecs = b.Ledger.CloseSecs
	}

	if b.Generator.Algorithm != "" {
		out.Generator.Algorithm = b.Generator.Algorithm
	}
	if b.Log.Level != "" {
		out.Log.Level = b.Log.Level
	}
	if len(b.Contracts) > 0 {
		out.Contracts = append([]string(nil), b.Contracts...)
	}

	// gacha
	switch {
	case out.Gacha == nil && b.Gacha != nil:
		c := *b.Gacha
		out.Gacha = &c
	case out.Gacha != nil && b.Gacha != nil:
		g := *out.Gacha
		if b.Gacha.Pity != nil {
			g.Pity = b.Gacha.Pity
		}
		switch {
		case g.Soft == nil && b.Gacha.Soft != nil:
			s := *b.Gacha.Soft
			g.Soft = &s
		case g.Soft != nil && b.Gacha.Soft != nil:
			s := *g.Soft
			if b.Gacha.Soft.StartAt != nil {
				s.StartAt = b.Gacha.Soft.StartAt
			}
			if b.Gacha.Soft.StartPct != nil {
				s.StartPct = b.Gacha.Soft.StartPct
			}
			if b.Gacha.Soft.Target != nil {
				s.Target = b.Gacha.Soft.Target
			}
			if b.Gacha.Soft.Easing != "" {
				s.Easing = b.Gacha.Soft.Easing
			}
			g.Soft = &s
		}
		out.Gacha = &g
	}

	return out
}

// WithDefaults fills unset fields.
func WithDefaults(cfg Config) Config {
	if cfg.HTTP.Listen == "" && cfg.GRPC.Listen == "" {
		cfg.HTTP.Listen = DefaultHTTPListen
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DefaultDriver
	}
	if cfg.Generator.Algorithm == "" {
		cfg.Generator.Algorithm = DefaultAlgorithm
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Ledger.Sequence == nil {
		var seq uint32 = 1
		cfg.Ledger.Sequence = &seq
	}
	if cfg.Ledger.Timestamp == nil {
		var ts uint64
		cfg.Ledger.Timestamp = &ts
	}
	if cfg.Ledger.CloseSecs == nil {
		var secs uint64 = DefaultCloseSecs
		cfg.Ledger.CloseSecs = &secs
	}
	if len(cfg.Contracts) == 0 {
		cfg.Contracts = append([]string(nil), DefaultContracts...)
	}
	if cfg.Gacha == nil {
		cfg.Gacha = &GachaConfig{}
	}
	if cfg.Gacha.Pity == nil {
		pity := DefaultPity
		cfg.Gacha.Pity = &pity
	}
	return cfg
}
