// types.go
package config

// Config is the simulator configuration as read from YAML. Pointer fields
// distinguish "not set" from zero so overlays only override what they name.
type Config struct {
	Version   string          `yaml:"version"`
	HTTP      ListenConfig    `yaml:"http"`
	GRPC      ListenConfig    `yaml:"grpc"`
	Storage   StorageConfig   `yaml:"storage"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Generator GeneratorConfig `yaml:"generator"`
	Gacha     *GachaConfig    `yaml:"gacha,omitempty"`
	Contracts []string        `yaml:"contracts,omitempty"`
	Log       LogConfig       `yaml:"log"`
}

type ListenConfig struct {
	Listen string `yaml:"listen"` // empty disables the transport
}

type StorageConfig struct {
	Driver string `yaml:"driver"` // "memory" | "leveldb"
	Path   string `yaml:"path,omitempty"`
}

type LedgerConfig struct {
	Sequence  *uint32 `yaml:"sequence,omitempty"`
	Timestamp *uint64 `yaml:"timestamp,omitempty"`
	CloseSecs *uint64 `yaml:"close_secs,omitempty"` // default step for a ledger close
}

type GeneratorConfig struct {
	Algorithm string `yaml:"algorithm"` // "pcg" | "xoshiro"
}

type GachaConfig struct {
	Pity *int     `yaml:"pity"`
	Soft *SoftCfg `yaml:"soft,omitempty"`
}

type SoftCfg struct {
	StartAt  *int     `yaml:"start_at,omitempty"`
	StartPct *float64 `yaml:"start_pct,omitempty"`
	Target   *float64 `yaml:"target,omitempty"`
	Easing   string   `yaml:"easing,omitempty"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Defaults used for anything a config file leaves unset.
const (
	DefaultHTTPListen = ":8080"
	DefaultDriver     = "memory"
	DefaultAlgorithm  = "pcg"
	DefaultLogLevel   = "info"
	DefaultCloseSecs  = 5
	DefaultPity       = 90
)

// DefaultContracts are deployed when the config names none.
var DefaultContracts = []string{"dice", "gacha"}
