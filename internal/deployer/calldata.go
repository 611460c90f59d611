package deployer

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/compose-network/contract-migrations/internal/infra/filesystem"
	"github.com/compose-network/contract-migrations/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

type (
	nonceReader interface {
		PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	}

	// CalldataTx is an unsigned contract creation written by the calldata target
	CalldataTx struct {
		Contract         string         `json:"contract"`
		From             common.Address `json:"from"`
		Nonce            uint64         `json:"nonce"`
		PredictedAddress common.Address `json:"predictedAddress"`
		Data             hexutil.Bytes  `json:"data"`
	}

	// CalldataTarget records contract creations instead of broadcasting them.
	// Addresses are predicted from the sender and its pending nonce.
	CalldataTarget struct {
		nonces nonceReader
		from   common.Address
		path   string
		writer filesystem.Writer
		next   *uint64
		txs    []CalldataTx
		logger *slog.Logger
	}
)

// NewCalldataTarget creates a target writing creations for from into path
func NewCalldataTarget(nonces nonceReader, from common.Address, path string, writer filesystem.Writer) *CalldataTarget {
	return &CalldataTarget{
		nonces: nonces,
		from:   from,
		path:   path,
		writer: writer,
		logger: logger.Named("calldata_target"),
	}
}

func (t *CalldataTarget) Broadcasts() bool {
	return false
}

func (t *CalldataTarget) Submit(ctx context.Context, req Request) (Result, error) {
	if t.next == nil {
		nonce, err := t.nonces.PendingNonceAt(ctx, t.from)
		if err != nil {
			return Result{}, fmt.Errorf("failed to fetch nonce for %s: %w", t.from.Hex(), err)
		}
		t.next = &nonce
	}

	constructorArgs, err := req.ABI.Pack("", req.Args...)
	if err != nil {
		return Result{}, fmt.Errorf("failed to pack constructor arguments: %w", err)
	}

	nonce := *t.next
	tx := CalldataTx{
		Contract:         req.Contract,
		From:             t.from,
		Nonce:            nonce,
		PredictedAddress: crypto.CreateAddress(t.from, nonce),
		Data:             append(slices.Clone(req.Bytecode), constructorArgs...),
	}

	txs := append(slices.Clone(t.txs), tx)
	if err := t.writer.WriteJSON(t.path, txs); err != nil {
		return Result{}, fmt.Errorf("failed to write calldata: %w", err)
	}

	t.txs = txs
	*t.next = nonce + 1

	t.logger.
		With("contract", req.Contract).
		With("nonce", nonce).
		With("predicted_address", tx.PredictedAddress.Hex()).
		Info("contract deployment calldata written")

	return Result{Address: tx.PredictedAddress}, nil
}

// Transactions returns the creations recorded so far
func (t *CalldataTarget) Transactions() []CalldataTx {
	return slices.Clone(t.txs)
}
