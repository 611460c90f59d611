package migrations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/compose-network/contract-migrations/internal/logger"
	"github.com/ethereum/go-ethereum/common"
)

type (
	stateStore interface {
		Load(chainID uint64) (ChainState, error)
		Save(chainID uint64, state ChainState) error
	}

	// RunOptions selects which migrations run
	RunOptions struct {
		// Reset runs every migration regardless of recorded progress.
		Reset bool
		// From and To bound migration IDs, zero means unbounded.
		From int
		To   int
		// Persist records progress after each migration.
		Persist bool
		// Genesis is the genesis block hash of the connected chain. Progress
		// recorded on a different genesis belongs to a chain that no longer
		// exists and is ignored. A zero hash skips the check.
		Genesis common.Hash
	}

	// RunResult lists migration IDs by outcome
	RunResult struct {
		Completed []int
		Skipped   []int
	}

	// Runner executes migrations in order against one deployer handle
	Runner struct {
		migrations []Migration
		deployer   Deployer
		provider   ArtifactProvider
		state      stateStore
		now        func() time.Time
		logger     *slog.Logger
	}
)

// NewRunner creates a runner. Migrations are sorted by ID; duplicate IDs are rejected.
func NewRunner(migrations []Migration, deployer Deployer, provider ArtifactProvider, state stateStore) (*Runner, error) {
	sorted := slices.Clone(migrations)
	slices.SortFunc(sorted, func(a, b Migration) int { return a.ID - b.ID })

	for i, migration := range sorted {
		if migration.ID <= 0 {
			return nil, fmt.Errorf("migration %s has invalid id %d", migration.Name, migration.ID)
		}
		if migration.Run == nil {
			return nil, fmt.Errorf("migration %d_%s has no run function", migration.ID, migration.Name)
		}
		if i > 0 && sorted[i-1].ID == migration.ID {
			return nil, fmt.Errorf("duplicate migration id %d", migration.ID)
		}
	}

	return &Runner{
		migrations: sorted,
		deployer:   deployer,
		provider:   provider,
		state:      state,
		now:        time.Now,
		logger:     logger.Named("migration_runner"),
	}, nil
}

// Run executes pending migrations for chainID and stops at the first failure.
// Progress up to the failed migration is kept.
func (r *Runner) Run(ctx context.Context, chainID uint64, opts RunOptions) (RunResult, error) {
	var result RunResult

	if opts.From > 0 && opts.To > 0 && opts.From > opts.To {
		return result, fmt.Errorf("invalid migration range %d..%d", opts.From, opts.To)
	}

	state, err := r.state.Load(chainID)
	if err != nil {
		return result, fmt.Errorf("failed to load migration state: %w", err)
	}

	if opts.Genesis != (common.Hash{}) && state.LastCompleted > 0 && state.Genesis != opts.Genesis {
		r.logger.
			With("chain_id", chainID).
			With("recorded_genesis", state.Genesis.Hex()).
			With("genesis", opts.Genesis.Hex()).
			Warn("chain was reset since progress was recorded, running all migrations")
		state = ChainState{}
	}

	r.logger.
		With("chain_id", chainID).
		With("last_completed", state.LastCompleted).
		With("reset", opts.Reset).
		Info("running migrations")

	for _, migration := range r.migrations {
		if !r.selected(migration, state, opts) {
			result.Skipped = append(result.Skipped, migration.ID)
			continue
		}

		if err := ctx.Err(); err != nil {
			return result, err
		}

		log := r.logger.With("migration", migration.ID).With("name", migration.Name)
		log.Info("running migration")

		if err := migration.Run(ctx, r.deployer, r.provider); err != nil {
			log.With("err", err.Error()).Error("migration failed")
			return result, errors.Join(fmt.Errorf("migration %d_%s failed", migration.ID, migration.Name), err)
		}

		result.Completed = append(result.Completed, migration.ID)

		if opts.Persist {
			state = ChainState{LastCompleted: migration.ID, Genesis: opts.Genesis, UpdatedAt: r.now().UTC()}
			if err := r.state.Save(chainID, state); err != nil {
				return result, fmt.Errorf("failed to save migration state: %w", err)
			}
		}

		log.Info("migration completed")
	}

	return result, nil
}

func (r *Runner) selected(migration Migration, state ChainState, opts RunOptions) bool {
	if opts.From > 0 && migration.ID < opts.From {
		return false
	}
	if opts.To > 0 && migration.ID > opts.To {
		return false
	}
	if opts.Reset || opts.From > 0 {
		return true
	}
	return migration.ID > state.LastCompleted
}
