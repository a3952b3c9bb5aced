package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xtding233/contract-rng/internal/ledger"
	"github.com/xtding233/contract-rng/internal/rng"
)

var (
	flagID        string
	flagName      string
	flagTimestamp uint64
	flagSequence  uint32
	flagNonce     uint32
	flagSalt      uint32
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Print the seed derived from a context snapshot, without touching storage",
	RunE:  runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&flagID, "id", "", "contract identifier, hex (at least 32 bytes)")
	seedCmd.Flags().StringVar(&flagName, "name", "", "contract name; the identifier is derived as at deployment")
	seedCmd.Flags().Uint64Var(&flagTimestamp, "timestamp", 0, "ledger timestamp")
	seedCmd.Flags().Uint32Var(&flagSequence, "sequence", 0, "ledger sequence number")
	seedCmd.Flags().Uint32Var(&flagNonce, "nonce", 1, "stored nonce")
	seedCmd.Flags().Uint32Var(&flagSalt, "salt", 0, "salt")
	seedCmd.MarkFlagsMutuallyExclusive("id", "name")
}

func runSeed(cmd *cobra.Command, _ []string) error {
	var id []byte
	switch {
	case flagName != "":
		id = ledger.ContractIDFor(flagName).Bytes()
	default:
		var err error
		if id, err = hex.DecodeString(flagID); err != nil {
			return fmt.Errorf("decode --id: %w", err)
		}
	}
	seed, err := rng.DeriveSeed(rng.SeedInputs{
		ContractID: id,
		Timestamp:  flagTimestamp,
		Sequence:   flagSequence,
		Nonce:      flagNonce,
		Salt:       flagSalt,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), seed)
	return nil
}
