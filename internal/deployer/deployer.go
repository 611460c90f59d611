// Package deployer implements the deployer handle migrations run against.
//
// A Deployer is bound to one chain and one target. It resolves library links
// recorded with Link when a dependent contract is deployed, refuses bytecode
// with unresolved placeholders, and records every broadcast deployment.
// Calls are sequential; a Deployer must not be shared between goroutines.
package deployer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/compose-network/contract-migrations/internal/artifacts"
	"github.com/compose-network/contract-migrations/internal/linker"
	"github.com/compose-network/contract-migrations/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/samber/lo"
)

var (
	ErrLibraryNotDeployed = errors.New("library is not deployed")
	ErrLinkTargetMismatch = errors.New("contract does not reference library")
	ErrUnlinkedLibraries  = errors.New("contract has unlinked libraries")
	ErrNoBytecode         = errors.New("artifact has no bytecode")
)

type (
	recordStore interface {
		Record(name string, chainID uint64, record artifacts.NetworkRecord) error
		Lookup(name string, chainID uint64) (artifacts.NetworkRecord, bool)
	}

	// Deployer deploys and links artifacts on a single chain
	Deployer struct {
		target   Target
		records  recordStore
		chainID  uint64
		timeout  time.Duration
		links    map[string]map[string]linker.Library
		deployed map[string]common.Address
		order    []string
		now      func() time.Time
		logger   *slog.Logger
	}
)

// New creates a deployer handle. timeout bounds each deployment, zero disables it.
func New(target Target, records recordStore, chainID uint64, timeout time.Duration) *Deployer {
	return &Deployer{
		target:   target,
		records:  records,
		chainID:  chainID,
		timeout:  timeout,
		links:    make(map[string]map[string]linker.Library),
		deployed: make(map[string]common.Address),
		now:      time.Now,
		logger:   logger.Named("deployer"),
	}
}

// ChainID returns the chain the handle deploys to
func (d *Deployer) ChainID() uint64 {
	return d.chainID
}

// Deploy links, submits and records a contract creation, returning the contract address
func (d *Deployer) Deploy(ctx context.Context, artifact *artifacts.Artifact, args ...any) (common.Address, error) {
	d.logger.With("contract", artifact.Name).Info("deploying contract")

	libraries := lo.Values(d.links[artifact.Name])
	code, err := linker.Link(artifact.Bytecode, artifact.LinkReferences, libraries)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to link %s: %w", artifact.Name, err)
	}

	if unresolved := linker.Unresolved(code); len(unresolved) > 0 {
		labels := lo.Uniq(lo.Map(unresolved, func(p linker.Placeholder, _ int) string { return p.Label }))
		return common.Address{}, fmt.Errorf("%w: %s requires %s to be deployed and linked first", ErrUnlinkedLibraries, artifact.Name, strings.Join(labels, ", "))
	}

	bytecode, err := hexutil.Decode(code)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid bytecode for %s: %w", artifact.Name, err)
	}
	if len(bytecode) == 0 {
		return common.Address{}, fmt.Errorf("%w: %s", ErrNoBytecode, artifact.Name)
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	result, err := d.target.Submit(ctx, Request{
		Contract: artifact.Name,
		ABI:      artifact.ABI,
		Bytecode: bytecode,
		Args:     args,
	})
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to deploy %s: %w", artifact.Name, err)
	}

	if _, ok := d.deployed[artifact.Name]; !ok {
		d.order = append(d.order, artifact.Name)
	}
	d.deployed[artifact.Name] = result.Address

	if d.target.Broadcasts() {
		record := artifacts.NetworkRecord{
			Address:         result.Address,
			TransactionHash: result.TxHash,
			DeployedAt:      d.now().UTC(),
		}
		if len(libraries) > 0 {
			record.Links = make(map[string]common.Address, len(libraries))
			for _, lib := range libraries {
				record.Links[lib.Name] = lib.Address
			}
		}

		if err := d.records.Record(artifact.Name, d.chainID, record); err != nil {
			return common.Address{}, fmt.Errorf("failed to record deployment of %s: %w", artifact.Name, err)
		}
	}

	d.logger.
		With("contract", artifact.Name).
		With("address", result.Address.Hex()).
		Info("deployed")

	return result.Address, nil
}

// Link makes dependent use the deployed address of library. It only records the
// link; the bytecode is patched when dependent is deployed.
func (d *Deployer) Link(_ context.Context, library, dependent *artifacts.Artifact) error {
	address, ok := d.addressOf(library.Name)
	if !ok {
		return fmt.Errorf("%w: %s must be deployed on chain %d before linking into %s", ErrLibraryNotDeployed, library.Name, d.chainID, dependent.Name)
	}

	lib := library.Library(address)
	if !linker.Refers(dependent.Bytecode, dependent.LinkReferences, lib) {
		return fmt.Errorf("%w: %s has no placeholder for %s", ErrLinkTargetMismatch, dependent.Name, library.Name)
	}

	if d.links[dependent.Name] == nil {
		d.links[dependent.Name] = make(map[string]linker.Library)
	}
	d.links[dependent.Name][library.Name] = lib

	d.logger.
		With("library", library.Name).
		With("address", address.Hex()).
		With("contract", dependent.Name).
		Info("linked library")

	return nil
}

// Address returns the address of a contract deployed in this run or recorded
// for this chain by an earlier run.
func (d *Deployer) Address(name string) (common.Address, bool) {
	return d.addressOf(name)
}

// DeploymentOrder returns contract names in the order they were first deployed
func (d *Deployer) DeploymentOrder() []string {
	return append([]string(nil), d.order...)
}

func (d *Deployer) addressOf(name string) (common.Address, bool) {
	if address, ok := d.deployed[name]; ok {
		return address, true
	}

	if record, ok := d.records.Lookup(name, d.chainID); ok {
		return record.Address, true
	}

	return common.Address{}, false
}
