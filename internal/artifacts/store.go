package artifacts

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/compose-network/contract-migrations/internal/infra/filesystem"
	"github.com/compose-network/contract-migrations/internal/infra/filesystem/json"
	"github.com/compose-network/contract-migrations/internal/logger"
	"github.com/samber/lo"
	"github.com/spf13/afero"
)

const artifactExtension = ".json"

// Store keeps the artifacts of a build directory and persists deployment records
// back into their files.
type Store struct {
	fs        afero.Fs
	dir       string
	reader    filesystem.Reader
	writer    filesystem.Writer
	artifacts map[string]*Artifact
	paths     map[string]string
	logger    *slog.Logger
}

// NewStore loads every artifact file found in dir
func NewStore(fs afero.Fs, dir string) (*Store, error) {
	s := &Store{
		fs:        fs,
		dir:       dir,
		reader:    json.NewReader(fs),
		writer:    json.NewWriter(fs),
		artifacts: make(map[string]*Artifact),
		paths:     make(map[string]string),
		logger:    logger.Named("artifact_store"),
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Store) load() error {
	exists, err := afero.DirExists(s.fs, s.dir)
	if err != nil {
		return fmt.Errorf("failed to stat artifacts directory: %w", err)
	}
	if !exists {
		s.logger.With("dir", s.dir).Warn("artifacts directory not found, starting empty")
		return nil
	}

	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return fmt.Errorf("failed to list artifacts directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != artifactExtension {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		var file artifactFile
		if err := s.reader.ReadJSON(path, &file); err != nil {
			return fmt.Errorf("failed to read artifact %s: %w", path, err)
		}

		artifact, err := decodeArtifact(file)
		if err != nil {
			return fmt.Errorf("failed to decode artifact %s: %w", path, err)
		}

		if previous, ok := s.paths[artifact.Name]; ok {
			return fmt.Errorf("contract %s is defined by both %s and %s", artifact.Name, previous, path)
		}

		s.artifacts[artifact.Name] = artifact
		s.paths[artifact.Name] = path
	}

	s.logger.With("dir", s.dir).With("len", len(s.artifacts)).Debug("artifacts loaded")

	return nil
}

// Require returns the artifact of a contract. References such as "./StringUtils.sol"
// resolve to the contract named after the file.
func (s *Store) Require(name string) (*Artifact, error) {
	name = normalizeName(name)

	artifact, ok := s.artifacts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s (build directory %s)", ErrArtifactNotFound, name, s.dir)
	}

	return artifact, nil
}

// All returns the artifacts sorted by contract name
func (s *Store) All() []*Artifact {
	names := lo.Keys(s.artifacts)
	slices.Sort(names)

	return lo.Map(names, func(name string, _ int) *Artifact {
		return s.artifacts[name]
	})
}

// Lookup returns the persisted deployment of a contract on chainID
func (s *Store) Lookup(name string, chainID uint64) (NetworkRecord, bool) {
	artifact, ok := s.artifacts[normalizeName(name)]
	if !ok {
		return NetworkRecord{}, false
	}

	return artifact.Deployment(chainID)
}

// Record stores a deployment of a contract on chainID and writes it to disk
func (s *Store) Record(name string, chainID uint64, record NetworkRecord) error {
	artifact, err := s.Require(name)
	if err != nil {
		return err
	}

	updated := artifact.withDeployment(chainID, record)
	if err := s.write(updated); err != nil {
		return err
	}

	s.logger.
		With("contract", updated.Name).
		With("chain_id", chainID).
		With("address", record.Address.Hex()).
		Debug("deployment recorded")

	return nil
}

// Forget drops the deployment of a contract on chainID, used when the recorded
// address no longer holds code.
func (s *Store) Forget(name string, chainID uint64) error {
	artifact, err := s.Require(name)
	if err != nil {
		return err
	}
	if _, ok := artifact.Deployment(chainID); !ok {
		return nil
	}

	if err := s.write(artifact.withoutDeployment(chainID)); err != nil {
		return err
	}

	s.logger.With("contract", artifact.Name).With("chain_id", chainID).Debug("deployment record dropped")

	return nil
}

// Save writes a freshly compiled artifact, keeping deployment records of the
// previous version of the same contract.
func (s *Store) Save(artifact *Artifact) error {
	updated := *artifact
	if previous, ok := s.artifacts[artifact.Name]; ok && len(artifact.Networks) == 0 {
		updated.Networks = previous.Networks
	}

	return s.write(&updated)
}

func (s *Store) write(artifact *Artifact) error {
	path, ok := s.paths[artifact.Name]
	if !ok {
		path = filepath.Join(s.dir, artifact.Name+artifactExtension)
	}

	if err := s.writer.WriteJSON(path, encodeArtifact(artifact)); err != nil {
		return fmt.Errorf("failed to write artifact %s: %w", artifact.Name, err)
	}

	s.artifacts[artifact.Name] = artifact
	s.paths[artifact.Name] = path

	return nil
}

// normalizeName accepts "Name", "./Name.sol" and compiler identifiers such as
// "src/Name.sol:Name".
func normalizeName(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndex(name, ":"); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(filepath.Base(name), ".sol")
}
