package migrate

import (
	"fmt"
	"log/slog"

	"github.com/compose-network/contract-migrations/configs"
	"github.com/compose-network/contract-migrations/internal/migrations"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var CMD = &cobra.Command{
	Use:   "run",
	Short: "Run pending contract migrations against the configured network",
	RunE: func(cmd *cobra.Command, args []string) error {
		slog.Info("starting migrations. Validating config", slog.Any("network", configs.Values.Network))

		if err := configs.Values.Validate(); err != nil {
			return err
		}

		opts, err := runOptions(cmd)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		client, err := ethclient.DialContext(ctx, configs.Values.Network.RPCURL)
		if err != nil {
			return fmt.Errorf("failed to connect to '%s': %w", configs.Values.Network.RPCURL, err)
		}
		defer client.Close()

		summary, err := NewService(configs.Values, afero.NewOsFs(), client).Run(ctx, opts)
		if err != nil {
			return fmt.Errorf("error occurred running migrations: %w", err)
		}

		for _, deployment := range summary.Deployed {
			slog.With("contract", deployment.Name).With("address", deployment.Address.Hex()).Info("deployed contract")
		}
		slog.With("output", summary.OutputPath).With("completed", summary.Result.Completed).Info("migrations completed successfully")

		return nil
	},
}

func init() {
	CMD.Flags().Bool("reset", false, "Run all migrations from the beginning")
	CMD.Flags().Int("from", 0, "Run migrations starting at this ID, ignoring recorded progress")
	CMD.Flags().Int("to", 0, "Stop after the migration with this ID")
}

func runOptions(cmd *cobra.Command) (migrations.RunOptions, error) {
	var (
		opts migrations.RunOptions
		err  error
	)

	if opts.Reset, err = cmd.Flags().GetBool("reset"); err != nil {
		return opts, err
	}
	if opts.From, err = cmd.Flags().GetInt("from"); err != nil {
		return opts, err
	}
	if opts.To, err = cmd.Flags().GetInt("to"); err != nil {
		return opts, err
	}

	return opts, nil
}
