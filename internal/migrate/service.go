package migrate

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"path/filepath"

	"github.com/compose-network/contract-migrations/configs"
	"github.com/compose-network/contract-migrations/internal/artifacts"
	"github.com/compose-network/contract-migrations/internal/crypto"
	"github.com/compose-network/contract-migrations/internal/deployer"
	"github.com/compose-network/contract-migrations/internal/infra/filesystem/json"
	"github.com/compose-network/contract-migrations/internal/logger"
	"github.com/compose-network/contract-migrations/internal/migrations"
	"github.com/compose-network/contract-migrations/internal/output"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/afero"
)

const calldataFile = "calldata.json"

type (
	// Summary describes a finished migration run
	Summary struct {
		ChainID    uint64
		Result     migrations.RunResult
		Deployed   []output.Deployment
		OutputPath string
	}

	Service struct {
		cfg        configs.Config
		fs         afero.Fs
		backend    deployer.Backend
		migrations []migrations.Migration
		confirmer  deployer.Confirmer
		logger     *slog.Logger
	}

	Option func(*Service)
)

// WithConfirmer replaces receipt polling on the live target
func WithConfirmer(confirmer deployer.Confirmer) Option {
	return func(s *Service) {
		s.confirmer = confirmer
	}
}

// WithMigrations replaces the registered migrations
func WithMigrations(list []migrations.Migration) Option {
	return func(s *Service) {
		s.migrations = list
	}
}

func NewService(cfg configs.Config, fs afero.Fs, backend deployer.Backend, opts ...Option) *Service {
	s := &Service{
		cfg:        cfg,
		fs:         fs,
		backend:    backend,
		migrations: migrations.Registry,
		logger:     logger.Named("migrate"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run deploys pending migrations to the configured network and writes output.yaml
func (s *Service) Run(ctx context.Context, opts migrations.RunOptions) (Summary, error) {
	network := s.cfg.Network

	s.logger.With("rpc_url", network.RPCURL).Info("waiting for RPC")
	if err := deployer.WaitReady(ctx, s.backend, network.RPCWaitAttempts, network.RPCWaitDelay); err != nil {
		return Summary{}, err
	}

	chainID, err := s.backend.ChainID(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to get chain id: %w", err)
	}
	if !chainID.IsUint64() || chainID.Uint64() != network.ChainID {
		return Summary{}, fmt.Errorf("connected to chain %s but network.chain-id is %d", chainID, network.ChainID)
	}

	genesis, err := s.backend.HeaderByNumber(ctx, big.NewInt(0))
	if err != nil {
		return Summary{}, fmt.Errorf("failed to get genesis block: %w", err)
	}

	store, err := artifacts.NewStore(s.fs, s.cfg.Paths.BuildDir)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to load artifacts: %w", err)
	}

	if err := s.dropStaleRecords(ctx, store, network.ChainID); err != nil {
		return Summary{}, err
	}

	target, err := s.target(chainID)
	if err != nil {
		return Summary{}, err
	}

	handle := deployer.New(target, store, network.ChainID, network.ConfirmationTimeout)
	state := migrations.NewStateManager(s.cfg.Paths.StateDir, json.NewReader(s.fs), json.NewWriter(s.fs))

	runner, err := migrations.NewRunner(s.migrations, handle, store, state)
	if err != nil {
		return Summary{}, err
	}

	// progress is only kept when deployments actually reach the chain
	opts.Persist = target.Broadcasts()
	opts.Genesis = genesis.Hash()

	result, err := runner.Run(ctx, network.ChainID, opts)
	if err != nil {
		return Summary{ChainID: network.ChainID, Result: result}, err
	}

	summary := Summary{
		ChainID:  network.ChainID,
		Result:   result,
		Deployed: s.deployments(handle, store, target.Broadcasts()),
	}

	generator := output.NewGenerator(s.cfg.Paths.OutputDir, output.Network{
		ChainID: network.ChainID,
		RPCURL:  network.RPCURL,
		Target:  string(s.cfg.Deployment.Target),
	}, store, json.NewWriter(s.fs))

	summary.OutputPath, err = generator.Generate(summary.Deployed)
	if err != nil {
		return summary, err
	}

	s.logger.
		With("chain_id", network.ChainID).
		With("completed", result.Completed).
		With("deployed", len(summary.Deployed)).
		Info("migrations finished")

	return summary, nil
}

func (s *Service) target(chainID *big.Int) (deployer.Target, error) {
	wallet := s.cfg.Wallet

	switch s.cfg.Deployment.Target {
	case configs.DeploymentTargetLive:
		privateKey, err := crypto.ParsePrivateKey(wallet.PrivateKey)
		if err != nil {
			return nil, err
		}

		opts := []deployer.LiveOption{deployer.WithGasLimit(s.cfg.Deployment.GasLimit)}
		if s.cfg.Deployment.GasPriceWei != "" {
			gasPrice, ok := new(big.Int).SetString(s.cfg.Deployment.GasPriceWei, 10)
			if !ok {
				return nil, fmt.Errorf("invalid deployment.gas-price-wei '%s'", s.cfg.Deployment.GasPriceWei)
			}
			opts = append(opts, deployer.WithGasPrice(gasPrice))
		}
		switch {
		case !s.cfg.Network.WaitForConfirmation:
			opts = append(opts, deployer.WithConfirmer(nil))
		case s.confirmer != nil:
			opts = append(opts, deployer.WithConfirmer(s.confirmer))
		}

		return deployer.NewLiveTarget(s.backend, privateKey, chainID, opts...), nil

	case configs.DeploymentTargetCalldata:
		from, err := s.sender()
		if err != nil {
			return nil, err
		}
		path := filepath.Join(s.cfg.Paths.OutputDir, calldataFile)
		return deployer.NewCalldataTarget(s.backend, from, path, json.NewWriter(s.fs)), nil

	default:
		return nil, fmt.Errorf("unsupported deployment target '%s'", s.cfg.Deployment.Target)
	}
}

func (s *Service) sender() (common.Address, error) {
	if s.cfg.Wallet.Address != "" {
		return common.HexToAddress(s.cfg.Wallet.Address), nil
	}
	return crypto.AddressFromPrivateKey(s.cfg.Wallet.PrivateKey)
}

// dropStaleRecords forgets recorded deployments whose address holds no code, so
// a restarted local chain is not mistaken for the one the records were made on.
func (s *Service) dropStaleRecords(ctx context.Context, store *artifacts.Store, chainID uint64) error {
	for _, artifact := range store.All() {
		record, ok := artifact.Deployment(chainID)
		if !ok {
			continue
		}

		code, err := s.backend.CodeAt(ctx, record.Address, nil)
		if err != nil {
			return fmt.Errorf("failed to check code of %s at %s: %w", artifact.Name, record.Address.Hex(), err)
		}
		if len(code) > 0 {
			continue
		}

		s.logger.
			With("contract", artifact.Name).
			With("address", record.Address.Hex()).
			Warn("recorded deployment has no code on chain, dropping record")

		if err := store.Forget(artifact.Name, chainID); err != nil {
			return err
		}
	}

	return nil
}

func (s *Service) deployments(handle *deployer.Deployer, store *artifacts.Store, broadcast bool) []output.Deployment {
	order := handle.DeploymentOrder()
	list := make([]output.Deployment, 0, len(order))

	for _, name := range order {
		address, _ := handle.Address(name)
		deployment := output.Deployment{Name: name, Address: address}
		if record, ok := store.Lookup(name, handle.ChainID()); ok && broadcast {
			deployment.TxHash = record.TransactionHash
			deployment.Links = record.Links
		}
		list = append(list, deployment)
	}

	return list
}
