package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/compose-network/contract-migrations/internal/artifacts"
	"github.com/compose-network/contract-migrations/internal/infra/filesystem"
	"github.com/compose-network/contract-migrations/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

const FileName = "output.yaml"

type (
	artifactProvider interface {
		Require(name string) (*artifacts.Artifact, error)
	}

	// Deployment is one contract deployed during the run
	Deployment struct {
		Name    string
		Address common.Address
		TxHash  common.Hash
		Links   map[string]common.Address
	}

	Generator struct {
		dir       string
		network   Network
		artifacts artifactProvider
		writer    filesystem.Writer
		logger    *slog.Logger
	}
)

func NewGenerator(dir string, network Network, provider artifactProvider, writer filesystem.Writer) *Generator {
	return &Generator{
		dir:       dir,
		network:   network,
		artifacts: provider,
		writer:    writer,
		logger:    logger.Named("output"),
	}
}

// Generate writes output.yaml with the address and ABI of every deployment
func (g *Generator) Generate(deployments []Deployment) (string, error) {
	model := &Model{
		Network:   g.network,
		Contracts: make(map[string]ContractConfig, len(deployments)),
	}

	for _, deployment := range deployments {
		artifact, err := g.artifacts.Require(deployment.Name)
		if err != nil {
			return "", fmt.Errorf("could not load artifact for output: %w", err)
		}

		model.Contracts[strings.ToLower(deployment.Name)] = ContractConfig{
			Address: deployment.Address,
			TxHash:  deployment.TxHash,
			Links:   deployment.Links,
			ABI:     SingleQuotedString(compactJSON(artifact.RawABI)),
		}
	}

	data, err := yaml.Marshal(model)
	if err != nil {
		return "", fmt.Errorf("could not marshal output model: %w", err)
	}

	path := filepath.Join(g.dir, FileName)
	if err := g.writer.WriteBytes(path, data); err != nil {
		return "", fmt.Errorf("could not write output file: %w", err)
	}

	g.logger.With("path", path).With("contracts", len(deployments)).Info("output written")

	return path, nil
}

func compactJSON(jsonStr string) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(jsonStr)); err != nil {
		return jsonStr
	}
	return buf.String()
}
