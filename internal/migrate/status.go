package migrate

import (
	"errors"
	"fmt"

	"github.com/compose-network/contract-migrations/configs"
	"github.com/compose-network/contract-migrations/internal/artifacts"
	"github.com/compose-network/contract-migrations/internal/status"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var StatusCMD = &cobra.Command{
	Use:   "status",
	Short: "Show recorded deployments for the configured chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := configs.Values
		if cfg.Network.ChainID == 0 {
			return errors.New("network.chain-id is required")
		}

		store, err := artifacts.NewStore(afero.NewOsFs(), cfg.Paths.BuildDir)
		if err != nil {
			return fmt.Errorf("failed to load artifacts: %w", err)
		}

		status.Render(cmd.OutOrStdout(), store, cfg.Network.ChainID)

		return nil
	},
}
