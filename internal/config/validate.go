package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/xtding233/contract-rng/internal/contract"
	"github.com/xtding233/contract-rng/internal/rng"
)

// Validate checks semantic constraints of a defaulted Config.
func Validate(cfg Config) error {
	var errs []string

	switch cfg.Storage.Driver {
	case "memory":
	case "leveldb":
		if cfg.Storage.Path == "" {
			errs = append(errs, "storage.path is required for driver=leveldb")
		}
	default:
		errs = append(errs, "storage.driver must be one of: memory, leveldb")
	}

	if _, err := Algorithm(cfg.Generator.Algorithm); err != nil {
		errs = append(errs, err.Error())
	}
	if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, "log.level: "+err.Error())
	}

	seen := make(map[string]bool)
	for i, name := range cfg.Contracts {
		if name == "" {
			errs = append(errs, fmt.Sprintf("contracts[%d] must not be empty", i))
		}
		if seen[name] {
			errs = append(errs, fmt.Sprintf("contracts[%d] %q is listed twice", i, name))
		}
		seen[name] = true
	}

	if cfg.Gacha != nil {
		if _, err := GachaRules(*cfg.Gacha); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Algorithm maps generator.algorithm to an rng.Algorithm.
func Algorithm(name string) (rng.Algorithm, error) {
	switch name {
	case "pcg", "":
		return rng.PCG, nil
	case "xoshiro":
		return rng.Xoshiro, nil
	default:
		return nil, fmt.Errorf("generator.algorithm must be one of: pcg, xoshiro (got %q)", name)
	}
}

// GachaParams are the resolved arguments of contract.NewGacha.
type GachaParams struct {
	Pity int
	Soft *contract.SoftPityConfig
}

// GachaRules resolves the gacha section into pity and soft ramp parameters.
// start_pct is converted to a start index against pity.
func GachaRules(g GachaConfig) (GachaParams, error) {
	var errs []string
	p := GachaParams{}
	if g.Pity != nil {
		p.Pity = *g.Pity
	}
	if p.Pity < 0 {
		errs = append(errs, "gacha.pity must be >= 0")
	}

	if s := g.Soft; s != nil {
		if p.Pity <= 1 {
			errs = append(errs, "gacha.soft requires pity > 1")
		}
		if s.Target == nil {
			errs = append(errs, "gacha.soft.target is required")
		} else if *s.Target <= 0 || *s.Target >= 1 {
			errs = append(errs, "gacha.soft.target must be in (0,1)")
		}
		if s.StartAt == nil && s.StartPct == nil {
			errs = append(errs, "gacha.soft.start_at or start_pct is required")
		}
		if s.StartPct != nil && (*s.StartPct < 0 || *s.StartPct > 1) {
			errs = append(errs, "gacha.soft.start_pct must be in [0,1]")
		}
		if s.StartAt != nil && (*s.StartAt < 0 || *s.StartAt >= p.Pity-1) {
			errs = append(errs, "gacha.soft.start_at must satisfy 0 <= start_at < pity-1")
		}
		switch contract.Easing(s.Easing) {
		case "", contract.EaseLinear, contract.EaseOutQuad, contract.EaseInOutCubic:
		default:
			errs = append(errs, "gacha.soft.easing must be one of: linear, easeOutQuad, easeInOutCubic")
		}

		if len(errs) == 0 {
			var startAt int
			if s.StartAt != nil {
				startAt = *s.StartAt
			} else {
				startAt = int(math.Ceil(*s.StartPct * float64(p.Pity)))
				if startAt >= p.Pity-1 {
					startAt = p.Pity - 2
				}
			}
			p.Soft = &contract.SoftPityConfig{
				StartAt:    startAt,
				TargetProb: *s.Target,
				Easing:     contract.Easing(s.Easing),
			}
		}
	}

	if len(errs) > 0 {
		return GachaParams{}, fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return p, nil
}
