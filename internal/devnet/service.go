package devnet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/compose-network/contract-migrations/configs"
	"github.com/compose-network/contract-migrations/internal/infra/docker"
	"github.com/compose-network/contract-migrations/internal/infra/filesystem"
	"github.com/compose-network/contract-migrations/internal/logger"
)

const (
	stateFile = "devnet.json"
	rpcPort   = 8545
)

var ErrNotRunning = errors.New("devnet is not running")

type (
	dockerClient interface {
		ImageExists(ctx context.Context, imageName string) (bool, error)
		PullImage(ctx context.Context, imageName string) error
		StartContainer(ctx context.Context, spec docker.ContainerSpec) (string, error)
		ContainerRunning(ctx context.Context, id string) (bool, error)
		RemoveContainer(ctx context.Context, id string) error
	}

	progressResetter interface {
		Reset(chainID uint64) error
	}

	// readinessCheck blocks until the node at rpcURL answers
	readinessCheck func(ctx context.Context, rpcURL string) error

	// State is the running devnet recorded in devnet.json
	State struct {
		ContainerID string    `json:"containerId"`
		Name        string    `json:"name"`
		Image       string    `json:"image"`
		RPCURL      string    `json:"rpcUrl"`
		ChainID     uint64    `json:"chainId"`
		StartedAt   time.Time `json:"startedAt"`
	}

	Service struct {
		cfg      configs.Devnet
		stateDir string
		docker   dockerClient
		reader   filesystem.Reader
		writer   filesystem.Writer
		progress progressResetter
		ready    readinessCheck
		now      func() time.Time
		logger   *slog.Logger
	}
)

// NewService creates the devnet service. progress is reset for the devnet chain
// whenever a new node is started, since a fresh anvil has none of the contracts.
func NewService(cfg configs.Devnet, stateDir string, docker dockerClient, reader filesystem.Reader, writer filesystem.Writer, progress progressResetter, ready readinessCheck) *Service {
	return &Service{
		cfg:      cfg,
		stateDir: stateDir,
		docker:   docker,
		reader:   reader,
		writer:   writer,
		progress: progress,
		ready:    ready,
		now:      time.Now,
		logger:   logger.Named("devnet"),
	}
}

// Up starts an anvil container unless one recorded in the state is still running
func (s *Service) Up(ctx context.Context) (State, error) {
	current, err := s.load()
	if err != nil {
		return State{}, err
	}
	if current != nil {
		running, err := s.docker.ContainerRunning(ctx, current.ContainerID)
		if err != nil {
			return State{}, fmt.Errorf("failed to inspect devnet container: %w", err)
		}
		if running {
			s.logger.With("id", current.ContainerID).With("rpc_url", current.RPCURL).Info("devnet already running")
			return *current, nil
		}
		s.logger.With("id", current.ContainerID).Warn("recorded devnet container is gone, starting a new one")
		if err := s.docker.RemoveContainer(ctx, current.ContainerID); err != nil {
			return State{}, err
		}
	}

	exists, err := s.docker.ImageExists(ctx, s.cfg.Image)
	if err != nil {
		return State{}, fmt.Errorf("failed to check image '%s': %w", s.cfg.Image, err)
	}
	if !exists {
		if err := s.docker.PullImage(ctx, s.cfg.Image); err != nil {
			return State{}, err
		}
	}

	// a container left over without devnet.json still holds the name
	if err := s.docker.RemoveContainer(ctx, s.cfg.ContainerName); err != nil {
		return State{}, err
	}

	id, err := s.docker.StartContainer(ctx, docker.ContainerSpec{
		Name:       s.cfg.ContainerName,
		Image:      s.cfg.Image,
		Entrypoint: []string{"anvil"},
		Cmd: []string{
			"--host", "0.0.0.0",
			"--port", strconv.Itoa(rpcPort),
			"--chain-id", strconv.FormatUint(s.cfg.ChainID, 10),
		},
		ContainerPort: rpcPort,
		HostPort:      s.cfg.Port,
	})
	if err != nil {
		return State{}, err
	}

	state := State{
		ContainerID: id,
		Name:        s.cfg.ContainerName,
		Image:       s.cfg.Image,
		RPCURL:      fmt.Sprintf("http://127.0.0.1:%d", s.cfg.Port),
		ChainID:     s.cfg.ChainID,
		StartedAt:   s.now().UTC(),
	}

	if err := s.ready(ctx, state.RPCURL); err != nil {
		return State{}, errors.Join(s.docker.RemoveContainer(ctx, id), fmt.Errorf("devnet did not become ready: %w", err))
	}

	if err := s.writer.WriteJSON(s.path(), state); err != nil {
		return State{}, fmt.Errorf("failed to write '%s': %w", stateFile, err)
	}

	if err := s.progress.Reset(s.cfg.ChainID); err != nil {
		return State{}, fmt.Errorf("failed to reset migration progress: %w", err)
	}

	s.logger.With("id", id).With("rpc_url", state.RPCURL).With("chain_id", state.ChainID).Info("devnet started")

	return state, nil
}

// Down removes the recorded container and its state
func (s *Service) Down(ctx context.Context) error {
	current, err := s.load()
	if err != nil {
		return err
	}
	if current == nil {
		return ErrNotRunning
	}

	if err := s.docker.RemoveContainer(ctx, current.ContainerID); err != nil {
		return err
	}

	if err := s.writer.Remove(s.path()); err != nil {
		return fmt.Errorf("failed to remove '%s': %w", stateFile, err)
	}

	s.logger.With("id", current.ContainerID).Info("devnet stopped")

	return nil
}

func (s *Service) load() (*State, error) {
	exists, err := s.reader.Exists(s.path())
	if err != nil {
		return nil, fmt.Errorf("failed to stat '%s': %w", stateFile, err)
	}
	if !exists {
		return nil, nil
	}

	var state State
	if err := s.reader.ReadJSON(s.path(), &state); err != nil {
		return nil, fmt.Errorf("failed to read '%s': %w", stateFile, err)
	}

	return &state, nil
}

func (s *Service) path() string {
	return filepath.Join(s.stateDir, stateFile)
}
