package migrate

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagDef defines a command-line flag with its configuration.
type (
	flagType interface {
		string | int | bool
	}

	flagDef[T flagType] struct {
		name         string
		viperKey     string
		defaultValue T
		description  string
	}
)

// Defaults come from the embedded config.example.yaml, so flags only override
// values that were set explicitly.
var (
	stringFlags = []flagDef[string]{
		// Network
		{"rpc-url", "network.rpc-url", "", "JSON-RPC URL of the target network"},

		// Wallet
		{"wallet-private-key", "wallet.private-key", "", "Deployer wallet private key"},
		{"wallet-address", "wallet.address", "", "Deployer wallet address (calldata target)"},

		// Paths
		{"build-dir", "paths.build-dir", "", "Directory holding contract artifacts"},
		{"state-dir", "paths.state-dir", "", "Directory holding migration and devnet state"},
		{"output-dir", "paths.output-dir", "", "Directory receiving output.yaml and calldata"},
		{"contracts-dir", "paths.contracts-dir", "", "Foundry project compiled by the compile command"},

		// Deployment
		{"deployment-target", "deployment.target", "", "Deployment target (live or calldata)"},
		{"gas-price-wei", "deployment.gas-price-wei", "", "Fixed legacy gas price in wei"},

		// Logging
		{"log-level", "log.level", "", "Log level (debug, info, warn, error)"},
	}

	intFlags = []flagDef[int]{
		{"chain-id", "network.chain-id", 0, "Expected chain ID of the target network"},
		{"gas-limit", "deployment.gas-limit", 0, "Fixed gas limit per deployment, 0 estimates"},
	}

	boolFlags = []flagDef[bool]{
		{"wait-for-confirmation", "network.wait-for-confirmation", true, "Wait for each deployment receipt"},
	}
)

// DeclareFlags declares the configuration flags on flags and binds them to viper keys
func DeclareFlags(flags *pflag.FlagSet) error {
	if err := declareFlags(flags, stringFlags); err != nil {
		return err
	}
	if err := declareFlags(flags, intFlags); err != nil {
		return err
	}
	return declareFlags(flags, boolFlags)
}

// declareFlags declares multiple flags and binds them to viper configuration keys.
func declareFlags[T flagType](flags *pflag.FlagSet, defs []flagDef[T]) error {
	for _, def := range defs {
		if err := declareFlag(flags, def.name, def.viperKey, def.defaultValue, def.description); err != nil {
			return err
		}
	}
	return nil
}

// declareFlag declares a single flag and binds it to a viper configuration key.
// The type parameter T determines the flag type (string, int, or bool).
func declareFlag[T flagType](flags *pflag.FlagSet, flagName, viperKey string, defaultValue T, description string) error {
	var zero T
	switch any(zero).(type) {
	case string:
		flags.String(flagName, any(defaultValue).(string), description)
	case int:
		flags.Int(flagName, any(defaultValue).(int), description)
	case bool:
		flags.Bool(flagName, any(defaultValue).(bool), description)
	}
	return viper.BindPFlag(viperKey, flags.Lookup(flagName))
}
