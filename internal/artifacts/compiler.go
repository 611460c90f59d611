package artifacts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/compose-network/contract-migrations/internal/logger"
	"github.com/ethereum/go-ethereum/accounts/abi"
)

type (
	commandRunner func(ctx context.Context, dir string, name string, args ...string) ([]byte, error)

	artifactSaver interface {
		Save(artifact *Artifact) error
	}

	// Compiler compiles Solidity contracts with forge and saves them as artifacts
	Compiler struct {
		contractsRootDir string
		store            artifactSaver
		run              commandRunner
		logger           *slog.Logger
	}
)

// NewCompiler creates a new contract compiler
func NewCompiler(contractsRootDir string, store artifactSaver) *Compiler {
	return &Compiler{
		contractsRootDir: contractsRootDir,
		store:            store,
		run:              runCommand,
		logger:           logger.Named("contracts_compiler"),
	}
}

// Compile builds the project and saves an artifact per identifier. Identifiers
// are either "Name" or "path/to/File.sol:Name".
func (c *Compiler) Compile(ctx context.Context, identifiers []string) error {
	c.logger.
		With("contracts_dir", c.contractsRootDir).
		Info("starting contract compilation")

	if _, err := c.run(ctx, c.contractsRootDir, "forge", "build"); err != nil {
		return fmt.Errorf("forge build failed: %w", err)
	}

	for _, identifier := range identifiers {
		c.logger.With("contract", identifier).Info("compiling contract")

		artifact, err := c.compileContract(ctx, identifier)
		if err != nil {
			return fmt.Errorf("failed to compile %s: %w", identifier, err)
		}

		if err := c.store.Save(artifact); err != nil {
			return fmt.Errorf("failed to save artifact for %s: %w", identifier, err)
		}

		if unlinked := artifact.Unlinked(); len(unlinked) > 0 {
			c.logger.With("contract", artifact.Name).With("libraries", unlinked).Info("artifact requires library linking")
		}
	}

	c.logger.Info("contracts compiled successfully")

	return nil
}

func (c *Compiler) compileContract(ctx context.Context, identifier string) (*Artifact, error) {
	sourcePath, name := splitIdentifier(identifier)

	abiOutput, err := c.run(ctx, c.contractsRootDir, "forge", "inspect", identifier, "abi", "--json")
	if err != nil {
		return nil, fmt.Errorf("failed to get ABI: %w", err)
	}

	rawABI := strings.TrimSpace(string(abiOutput))
	parsedABI, err := abi.JSON(strings.NewReader(rawABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}

	bytecodeOutput, err := c.run(ctx, c.contractsRootDir, "forge", "inspect", identifier, "bytecode")
	if err != nil {
		return nil, fmt.Errorf("failed to get bytecode: %w", err)
	}

	bytecode := strings.TrimSpace(string(bytecodeOutput))
	if !strings.HasPrefix(bytecode, "0x") {
		bytecode = "0x" + bytecode
	}

	return &Artifact{
		Name:       name,
		SourcePath: sourcePath,
		ABI:        parsedABI,
		RawABI:     rawABI,
		Bytecode:   bytecode,
	}, nil
}

func splitIdentifier(identifier string) (string, string) {
	if idx := strings.LastIndex(identifier, ":"); idx >= 0 {
		return identifier[:idx], identifier[idx+1:]
	}
	return "", identifier
}

func runCommand(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stderr = os.Stderr

	return cmd.Output()
}
