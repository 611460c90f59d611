package deployer

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/compose-network/contract-migrations/internal/logger"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var ErrDeploymentReverted = errors.New("contract deployment reverted")

type (
	// Request is a single contract creation with fully linked bytecode
	Request struct {
		Contract string
		ABI      abi.ABI
		Bytecode []byte
		Args     []any
	}

	// Result identifies the created contract and the transaction that created it
	Result struct {
		Address common.Address
		TxHash  common.Hash
	}

	// Target submits contract creations somewhere: a live chain or a calldata file.
	Target interface {
		Submit(ctx context.Context, req Request) (Result, error)
		// Broadcasts reports whether submissions reach the chain.
		Broadcasts() bool
	}

	// Confirmer blocks until a transaction is mined
	Confirmer interface {
		Confirm(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
	}

	// LiveTarget signs and broadcasts contract creations
	LiveTarget struct {
		backend    Backend
		privateKey *ecdsa.PrivateKey
		chainID    *big.Int
		gasLimit   uint64
		gasPrice   *big.Int
		confirmer  Confirmer
		logger     *slog.Logger
	}

	LiveOption func(*LiveTarget)

	minedConfirmer struct {
		backend bind.DeployBackend
	}
)

// WithGasLimit fixes the gas limit instead of estimating it
func WithGasLimit(gasLimit uint64) LiveOption {
	return func(t *LiveTarget) {
		t.gasLimit = gasLimit
	}
}

// WithGasPrice sends legacy transactions at a fixed price
func WithGasPrice(gasPrice *big.Int) LiveOption {
	return func(t *LiveTarget) {
		t.gasPrice = gasPrice
	}
}

// WithConfirmer replaces the receipt polling used to wait for deployments.
// A nil confirmer disables waiting.
func WithConfirmer(confirmer Confirmer) LiveOption {
	return func(t *LiveTarget) {
		t.confirmer = confirmer
	}
}

// NewLiveTarget creates a target deploying to the chain behind backend
func NewLiveTarget(backend Backend, privateKey *ecdsa.PrivateKey, chainID *big.Int, opts ...LiveOption) *LiveTarget {
	t := &LiveTarget{
		backend:    backend,
		privateKey: privateKey,
		chainID:    chainID,
		confirmer:  NewMinedConfirmer(backend),
		logger:     logger.Named("live_target"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewMinedConfirmer waits for receipts by polling the backend
func NewMinedConfirmer(backend bind.DeployBackend) Confirmer {
	return minedConfirmer{backend: backend}
}

func (c minedConfirmer) Confirm(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return bind.WaitMined(ctx, c.backend, tx)
}

func (t *LiveTarget) Broadcasts() bool {
	return true
}

func (t *LiveTarget) Submit(ctx context.Context, req Request) (Result, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(t.privateKey, t.chainID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create transactor: %w", err)
	}

	auth.Context = ctx
	auth.GasLimit = t.gasLimit
	auth.GasPrice = t.gasPrice

	address, tx, _, err := bind.DeployContract(auth, req.ABI, req.Bytecode, t.backend, req.Args...)
	if err != nil {
		return Result{}, fmt.Errorf("failed to deploy contract: %w", err)
	}

	t.logger.
		With("contract", req.Contract).
		With("address", address).
		With("tx_hash", tx.Hash().Hex()).
		Info("contract deployment transaction sent")

	if t.confirmer != nil {
		receipt, err := t.confirmer.Confirm(ctx, tx)
		if err != nil {
			return Result{}, fmt.Errorf("failed to wait for transaction: %w", err)
		}

		if receipt.Status != types.ReceiptStatusSuccessful {
			return Result{}, fmt.Errorf("%w: %s with status %d", ErrDeploymentReverted, req.Contract, receipt.Status)
		}

		t.logger.
			With("contract", req.Contract).
			With("block", receipt.BlockNumber).
			With("gas_used", receipt.GasUsed).
			Debug("contract deployment confirmed")
	}

	return Result{Address: address, TxHash: tx.Hash()}, nil
}
