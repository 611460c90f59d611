package configs

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var Values Config

type (
	DeploymentTarget string

	Config struct {
		Log        Log        `mapstructure:"log"`
		Network    Network    `mapstructure:"network"`
		Wallet     Wallet     `mapstructure:"wallet"`
		Paths      Paths      `mapstructure:"paths"`
		Deployment Deployment `mapstructure:"deployment"`
		Compile    Compile    `mapstructure:"compile"`
		Devnet     Devnet     `mapstructure:"devnet"`
	}

	Log struct {
		Level string `mapstructure:"level"`
	}

	Network struct {
		RPCURL              string        `mapstructure:"rpc-url"`
		ChainID             uint64        `mapstructure:"chain-id"`
		RPCWaitAttempts     uint          `mapstructure:"rpc-wait-attempts"`
		RPCWaitDelay        time.Duration `mapstructure:"rpc-wait-delay"`
		ConfirmationTimeout time.Duration `mapstructure:"confirmation-timeout"`
		WaitForConfirmation bool          `mapstructure:"wait-for-confirmation"`
	}

	Wallet struct {
		PrivateKey string `mapstructure:"private-key"`
		Address    string `mapstructure:"address"`
	}

	Paths struct {
		BuildDir     string `mapstructure:"build-dir"`
		StateDir     string `mapstructure:"state-dir"`
		OutputDir    string `mapstructure:"output-dir"`
		ContractsDir string `mapstructure:"contracts-dir"`
	}

	Deployment struct {
		Target      DeploymentTarget `mapstructure:"target"`
		GasLimit    uint64           `mapstructure:"gas-limit"`
		GasPriceWei string           `mapstructure:"gas-price-wei"`
	}

	Compile struct {
		Contracts []string `mapstructure:"contracts"`
	}

	Devnet struct {
		Image         string `mapstructure:"image"`
		ContainerName string `mapstructure:"container-name"`
		Port          int    `mapstructure:"port"`
		ChainID       uint64 `mapstructure:"chain-id"`
	}
)

const (
	DeploymentTargetLive     DeploymentTarget = "live"
	DeploymentTargetCalldata DeploymentTarget = "calldata"
)

// Validate checks the settings needed to run migrations against a network
func (c *Config) Validate() error {
	var errs []error

	if c.Network.RPCURL == "" {
		errs = append(errs, errors.New("network.rpc-url is required"))
	}
	if c.Network.ChainID == 0 {
		errs = append(errs, errors.New("network.chain-id is required"))
	}
	if c.Network.RPCWaitAttempts == 0 {
		errs = append(errs, errors.New("network.rpc-wait-attempts must be greater than zero"))
	}
	if c.Network.ConfirmationTimeout <= 0 {
		errs = append(errs, errors.New("network.confirmation-timeout must be positive"))
	}
	if c.Paths.BuildDir == "" {
		errs = append(errs, errors.New("paths.build-dir is required"))
	}
	if c.Paths.StateDir == "" {
		errs = append(errs, errors.New("paths.state-dir is required"))
	}
	if c.Paths.OutputDir == "" {
		errs = append(errs, errors.New("paths.output-dir is required"))
	}

	switch c.Deployment.Target {
	case "":
		errs = append(errs, errors.New("deployment.target is required"))
	case DeploymentTargetLive:
		if c.Wallet.PrivateKey == "" {
			errs = append(errs, errors.New("wallet.private-key is required for the live target"))
		}
	case DeploymentTargetCalldata:
		if c.Wallet.Address == "" && c.Wallet.PrivateKey == "" {
			errs = append(errs, errors.New("wallet.address or wallet.private-key is required for the calldata target"))
		}
	default:
		errs = append(errs, errors.New("deployment.target must be either 'live' or 'calldata'"))
	}

	if c.Wallet.Address != "" && !common.IsHexAddress(c.Wallet.Address) {
		errs = append(errs, fmt.Errorf("wallet.address '%s' is not a valid address", c.Wallet.Address))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %w", errors.Join(errs...))
	}

	return nil
}

// Validate checks the settings needed to run the local node
func (d *Devnet) Validate() error {
	var errs []error

	if d.Image == "" {
		errs = append(errs, errors.New("devnet.image is required"))
	}
	if d.ContainerName == "" {
		errs = append(errs, errors.New("devnet.container-name is required"))
	}
	if d.Port <= 0 || d.Port > 65535 {
		errs = append(errs, fmt.Errorf("devnet.port %d is out of range", d.Port))
	}
	if d.ChainID == 0 {
		errs = append(errs, errors.New("devnet.chain-id is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("devnet configuration validation failed: %w", errors.Join(errs...))
	}

	return nil
}

// ValidateCompile checks the settings needed to compile artifacts
func (c *Config) ValidateCompile() error {
	var errs []error

	if c.Paths.ContractsDir == "" {
		errs = append(errs, errors.New("paths.contracts-dir is required"))
	}
	if c.Paths.BuildDir == "" {
		errs = append(errs, errors.New("paths.build-dir is required"))
	}
	if len(c.Compile.Contracts) == 0 {
		errs = append(errs, errors.New("compile.contracts must list at least one contract"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("compile configuration validation failed: %w", errors.Join(errs...))
	}

	return nil
}
