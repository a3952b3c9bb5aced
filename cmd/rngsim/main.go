package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/xtding233/contract-rng/internal/config"
	"github.com/xtding233/contract-rng/internal/ledger"
	"github.com/xtding233/contract-rng/internal/sim"
)

var flagConfig string

var rootCmd = &cobra.Command{
	Use:           "rngsim",
	Short:         "Deterministic contract randomness simulator",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&flagConfig,
		"config",
		"configs/rngsim.yaml",
		"path to the YAML config; <name>.local.yaml next to it is merged on top",
	)
	rootCmd.AddCommand(serveCmd, rollCmd, seedCmd)
}

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("rngsim failed")
		os.Exit(1)
	}
}

// loadConfig reads the config and applies its log level to the global logger.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return config.Config{}, err
	}
	lvl, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		return config.Config{}, err
	}
	log.Logger = log.Logger.Level(lvl)
	return cfg, nil
}

func openBackend(cfg config.Config) (ledger.Backend, error) {
	if cfg.Storage.Driver == "leveldb" {
		return ledger.OpenLevelBackend(cfg.Storage.Path)
	}
	return ledger.NewMemoryBackend(), nil
}

// newSimulator builds the host, attaches every configured contract with its
// stored state intact and wraps it in a Simulator.
func newSimulator(cfg config.Config) (*sim.Simulator, error) {
	backend, err := openBackend(cfg)
	if err != nil {
		return nil, err
	}
	l := ledger.NewLedger(ledger.Info{Sequence: *cfg.Ledger.Sequence, Timestamp: *cfg.Ledger.Timestamp})
	host := ledger.NewHost(backend, l, log.Logger)
	for _, name := range cfg.Contracts {
		host.Attach(name)
	}

	algo, err := config.Algorithm(cfg.Generator.Algorithm)
	if err != nil {
		_ = host.Close()
		return nil, err
	}
	rules, err := config.GachaRules(*cfg.Gacha)
	if err != nil {
		_ = host.Close()
		return nil, err
	}
	s, err := sim.New(host, sim.Options{
		Algorithm: algo,
		GachaPity: rules.Pity,
		GachaSoft: rules.Soft,
		CloseSecs: *cfg.Ledger.CloseSecs,
		Logger:    log.Logger,
	})
	if err != nil {
		_ = host.Close()
		return nil, err
	}
	return s, nil
}
