package migrate

import (
	"fmt"
	"log/slog"

	"github.com/compose-network/contract-migrations/configs"
	"github.com/compose-network/contract-migrations/internal/artifacts"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var CompileCMD = &cobra.Command{
	Use:   "compile",
	Short: "Compile contracts with forge into the build directory",
	Long:  "Runs forge in the contracts directory and writes one artifact file per configured contract, keeping recorded deployments",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := configs.Values
		if err := cfg.ValidateCompile(); err != nil {
			return err
		}

		store, err := artifacts.NewStore(afero.NewOsFs(), cfg.Paths.BuildDir)
		if err != nil {
			return fmt.Errorf("failed to load artifacts: %w", err)
		}

		slog.Info("starting contract compilation", "contracts", cfg.Compile.Contracts)
		compiler := artifacts.NewCompiler(cfg.Paths.ContractsDir, store)
		if err := compiler.Compile(cmd.Context(), cfg.Compile.Contracts); err != nil {
			return fmt.Errorf("contract compilation failed: %w", err)
		}

		slog.Info("contract compilation completed successfully")

		return nil
	},
}
