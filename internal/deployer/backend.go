package deployer

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
)

type (
	// Backend is the chain access needed to deploy contracts. Both *ethclient.Client
	// and the simulated backend client satisfy it.
	Backend interface {
		bind.ContractBackend
		bind.DeployBackend
		ChainID(ctx context.Context) (*big.Int, error)
		BlockNumber(ctx context.Context) (uint64, error)
	}

	blockNumberReader interface {
		BlockNumber(ctx context.Context) (uint64, error)
	}
)

// WaitReady blocks until the node answers eth_blockNumber or attempts run out
func WaitReady(ctx context.Context, client blockNumberReader, attempts uint, delay time.Duration) error {
	err := retry.Do(
		func() error {
			_, err := client.BlockNumber(ctx)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("timed out waiting for RPC after %d attempts: %w", attempts, err)
	}

	return nil
}
