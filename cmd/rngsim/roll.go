package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/xtding233/contract-rng/internal/contract"
)

var (
	flagContract string
	flagSides    uint32
	flagTimes    int
)

var rollCmd = &cobra.Command{
	Use:   "roll",
	Short: "Roll a die on a contract, persisting the nonce in the configured storage",
	RunE:  runRoll,
}

func init() {
	rollCmd.Flags().StringVar(
		&flagContract,
		"contract",
		"dice",
		"contract to invoke",
	)
	rollCmd.Flags().Uint32Var(
		&flagSides,
		"sides",
		contract.DefaultSides,
		"number of die faces",
	)
	rollCmd.Flags().IntVar(
		&flagTimes,
		"times",
		1,
		"number of invocations",
	)
}

func runRoll(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := newSimulator(cfg)
	if err != nil {
		return err
	}
	defer s.Host().Close()

	for i := 0; i < flagTimes; i++ {
		face, err := s.Roll(flagContract, flagSides)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), face)
	}
	nonce, err := s.Nonce(flagContract)
	if err != nil {
		return err
	}
	log.Debug().Str("contract", flagContract).Uint32("next_nonce", nonce).Msg("rolled")
	return nil
}
