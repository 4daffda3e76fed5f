package casper

import "time"

// NetworkConfig describes the Casper network carrying the knotx gateway.
// RPC endpoints come from the environment as comma-separated url/key lists.
type NetworkConfig struct {
	Chain         string        `mapstructure:"chain" json:"chain" validate:"required"`
	ChainName     string        `mapstructure:"chain_name" json:"chain_name" validate:"required"`
	Gateway       string        `mapstructure:"gateway" json:"gateway" validate:"required"`
	BlockTime     time.Duration `mapstructure:"block_time" json:"block_time"`
	StartHeight   uint64        `mapstructure:"start_height" json:"start_height"`
	PrivateKey    string        `mapstructure:"private_key" json:"private_key"`
	PaymentAmount string        `mapstructure:"payment_amount" json:"payment_amount"`
	DeployTTL     time.Duration `mapstructure:"deploy_ttl" json:"deploy_ttl"`
	GasPrice      uint64        `mapstructure:"gas_price" json:"gas_price"`
}

func (c *NetworkConfig) ApplyDefaults() {
	if c.BlockTime == 0 {
		c.BlockTime = 16 * time.Second
	} else if c.BlockTime < time.Millisecond*10 {
		c.BlockTime = c.BlockTime * time.Second
	}
	if c.PaymentAmount == "" {
		c.PaymentAmount = "5000000000"
	}
	if c.DeployTTL == 0 {
		c.DeployTTL = 30 * time.Minute
	}
	if c.GasPrice == 0 {
		c.GasPrice = 1
	}
}
