package evm

import (
	"time"

	"github.com/knotx/relayer/pkg/types"
)

// NetworkConfig describes one EVM network carrying a knotx gateway.
// RPC endpoints are not part of this file based config; they come from the
// environment as comma-separated url/key lists (see config.EndpointsFor).
type NetworkConfig struct {
	Chain      string        `mapstructure:"chain" json:"chain" validate:"required"`
	EvmChainID uint64        `mapstructure:"evm_chain_id" json:"evm_chain_id" validate:"required"`
	Gateway    string        `mapstructure:"gateway" json:"gateway" validate:"required"`
	Finality   uint64        `mapstructure:"finality" json:"finality"`
	StartBlock uint64        `mapstructure:"start_block" json:"start_block"`
	BlockTime  time.Duration `mapstructure:"block_time" json:"block_time"`
	GasLimit   uint64        `mapstructure:"gas_limit" json:"gas_limit"`
	PrivateKey string        `mapstructure:"private_key" json:"private_key"`
}

func (c *NetworkConfig) ChainID() (types.ChainID, error) {
	return types.ChainIDFromName(c.Chain)
}

// ApplyDefaults fills the optional knobs the same way for listener and
// sender construction.
func (c *NetworkConfig) ApplyDefaults() {
	if c.BlockTime == 0 {
		c.BlockTime = 12 * time.Second
	} else if c.BlockTime < time.Millisecond*10 {
		// JSON configs carry block time in seconds.
		c.BlockTime = c.BlockTime * time.Second
	}
	if c.GasLimit == 0 {
		c.GasLimit = 300000
	}
}
