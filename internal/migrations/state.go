package migrations

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/compose-network/contract-migrations/internal/infra/filesystem"
	"github.com/compose-network/contract-migrations/internal/logger"
	"github.com/ethereum/go-ethereum/common"
)

const stateFile = "migrations.json"

type (
	// ChainState is the migration progress on one chain. Genesis identifies the
	// chain instance the progress was made on.
	ChainState struct {
		LastCompleted int         `json:"lastCompleted"`
		Genesis       common.Hash `json:"genesis"`
		UpdatedAt     time.Time   `json:"updatedAt"`
	}

	stateDocument struct {
		Chains map[string]ChainState `json:"chains"`
	}

	// StateManager persists migration progress (migrations.json)
	StateManager struct {
		stateDir string
		reader   filesystem.Reader
		writer   filesystem.Writer
		logger   *slog.Logger
	}
)

// NewStateManager creates a new state manager
func NewStateManager(stateDir string, reader filesystem.Reader, writer filesystem.Writer) *StateManager {
	return &StateManager{
		stateDir: stateDir,
		reader:   reader,
		writer:   writer,
		logger:   logger.Named("migration_state"),
	}
}

// Load returns the progress for chainID. A chain without state has completed nothing.
func (s *StateManager) Load(chainID uint64) (ChainState, error) {
	document, err := s.read()
	if err != nil {
		return ChainState{}, err
	}

	return document.Chains[strconv.FormatUint(chainID, 10)], nil
}

// Save stores the progress for chainID, keeping other chains untouched
func (s *StateManager) Save(chainID uint64, state ChainState) error {
	document, err := s.read()
	if err != nil {
		return err
	}

	document.Chains[strconv.FormatUint(chainID, 10)] = state
	if err := s.writer.WriteJSON(s.path(), document); err != nil {
		return fmt.Errorf("failed to write '%s': %w", stateFile, err)
	}

	s.logger.With("chain_id", chainID).With("last_completed", state.LastCompleted).Debug("migration state saved")

	return nil
}

// Reset forgets the progress for chainID
func (s *StateManager) Reset(chainID uint64) error {
	document, err := s.read()
	if err != nil {
		return err
	}

	key := strconv.FormatUint(chainID, 10)
	if _, ok := document.Chains[key]; !ok {
		return nil
	}

	delete(document.Chains, key)
	if err := s.writer.WriteJSON(s.path(), document); err != nil {
		return fmt.Errorf("failed to write '%s': %w", stateFile, err)
	}

	s.logger.With("chain_id", chainID).Info("migration state reset")

	return nil
}

func (s *StateManager) read() (stateDocument, error) {
	document := stateDocument{Chains: make(map[string]ChainState)}

	exists, err := s.reader.Exists(s.path())
	if err != nil {
		return document, fmt.Errorf("failed to stat '%s': %w", stateFile, err)
	}
	if !exists {
		return document, nil
	}

	if err := s.reader.ReadJSON(s.path(), &document); err != nil {
		return document, fmt.Errorf("failed to read '%s': %w", stateFile, err)
	}
	if document.Chains == nil {
		document.Chains = make(map[string]ChainState)
	}

	return document, nil
}

func (s *StateManager) path() string {
	return filepath.Join(s.stateDir, stateFile)
}
