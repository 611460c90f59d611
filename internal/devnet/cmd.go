package devnet

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/compose-network/contract-migrations/configs"
	"github.com/compose-network/contract-migrations/internal/deployer"
	"github.com/compose-network/contract-migrations/internal/infra/docker"
	"github.com/compose-network/contract-migrations/internal/infra/filesystem/json"
	"github.com/compose-network/contract-migrations/internal/migrations"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var CMD = &cobra.Command{
	Use:   "devnet",
	Short: "Commands for running a local anvil node in docker",
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Start the local anvil node",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(service *Service) error {
			state, err := service.Up(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to start devnet: %w", err)
			}
			slog.With("rpc_url", state.RPCURL).With("chain_id", state.ChainID).Info("devnet is ready")
			return nil
		})
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Stop and remove the local anvil node",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(service *Service) error {
			if err := service.Down(cmd.Context()); err != nil {
				return fmt.Errorf("failed to stop devnet: %w", err)
			}
			return nil
		})
	},
}

func init() {
	CMD.AddCommand(upCmd)
	CMD.AddCommand(downCmd)
}

func withService(fn func(*Service) error) error {
	cfg := configs.Values
	if err := cfg.Devnet.Validate(); err != nil {
		return err
	}

	client, err := docker.New()
	if err != nil {
		return fmt.Errorf("failed to create docker client: %w", err)
	}
	defer client.Close()

	fs := afero.NewOsFs()
	reader, writer := json.NewReader(fs), json.NewWriter(fs)
	progress := migrations.NewStateManager(cfg.Paths.StateDir, reader, writer)
	service := NewService(cfg.Devnet, cfg.Paths.StateDir, client, reader, writer, progress,
		rpcReadiness(cfg.Network.RPCWaitAttempts, cfg.Network.RPCWaitDelay))

	return fn(service)
}

func rpcReadiness(attempts uint, delay time.Duration) readinessCheck {
	return func(ctx context.Context, rpcURL string) error {
		client, err := ethclient.DialContext(ctx, rpcURL)
		if err != nil {
			return fmt.Errorf("failed to dial '%s': %w", rpcURL, err)
		}
		defer client.Close()

		return deployer.WaitReady(ctx, client, max(attempts, 1), delay)
	}
}
