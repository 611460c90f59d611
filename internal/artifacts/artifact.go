package artifacts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strconv"
	"time"

	"github.com/compose-network/contract-migrations/internal/linker"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var ErrArtifactNotFound = errors.New("artifact not found")

type (
	// NetworkRecord is the deployment of an artifact on one chain.
	NetworkRecord struct {
		Address         common.Address            `json:"address"`
		TransactionHash common.Hash               `json:"transactionHash"`
		Links           map[string]common.Address `json:"links,omitempty"`
		DeployedAt      time.Time                 `json:"deployedAt"`
	}

	// Artifact is a compiled contract. Values handed out by a Store are never
	// modified afterwards; recording a deployment replaces the stored value.
	Artifact struct {
		Name           string
		SourcePath     string
		ABI            abi.ABI
		RawABI         string
		Bytecode       string
		LinkReferences linker.References
		Networks       map[uint64]NetworkRecord
	}

	artifactFile struct {
		ContractName   string                   `json:"contractName"`
		SourcePath     string                   `json:"sourcePath,omitempty"`
		ABI            json.RawMessage          `json:"abi"`
		Bytecode       string                   `json:"bytecode"`
		LinkReferences linker.References        `json:"linkReferences,omitempty"`
		Networks       map[string]NetworkRecord `json:"networks"`
	}
)

// Library describes the artifact as a linkable library deployed at address.
func (a *Artifact) Library(address common.Address) linker.Library {
	return linker.Library{
		Name:       a.Name,
		SourcePath: a.SourcePath,
		Address:    address,
	}
}

// Deployment returns the recorded deployment on chainID, if any.
func (a *Artifact) Deployment(chainID uint64) (NetworkRecord, bool) {
	record, ok := a.Networks[chainID]
	return record, ok
}

// Unlinked lists the labels of library placeholders left in the bytecode.
func (a *Artifact) Unlinked() []string {
	var labels []string
	for _, placeholder := range linker.Unresolved(a.Bytecode) {
		labels = append(labels, placeholder.Label)
	}
	return labels
}

func (a *Artifact) withDeployment(chainID uint64, record NetworkRecord) *Artifact {
	clone := *a
	clone.Networks = maps.Clone(a.Networks)
	if clone.Networks == nil {
		clone.Networks = make(map[uint64]NetworkRecord)
	}
	clone.Networks[chainID] = record
	return &clone
}

func (a *Artifact) withoutDeployment(chainID uint64) *Artifact {
	clone := *a
	clone.Networks = maps.Clone(a.Networks)
	delete(clone.Networks, chainID)
	return &clone
}

func decodeArtifact(file artifactFile) (*Artifact, error) {
	if file.ContractName == "" {
		return nil, errors.New("artifact has no contractName")
	}

	rawABI := bytes.TrimSpace(file.ABI)
	if len(rawABI) == 0 || string(rawABI) == "null" {
		rawABI = []byte("[]")
	}

	parsedABI, err := abi.JSON(bytes.NewReader(rawABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI for %s: %w", file.ContractName, err)
	}

	networks := make(map[uint64]NetworkRecord, len(file.Networks))
	for key, record := range file.Networks {
		chainID, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid network id '%s' in %s: %w", key, file.ContractName, err)
		}
		networks[chainID] = record
	}

	return &Artifact{
		Name:           file.ContractName,
		SourcePath:     file.SourcePath,
		ABI:            parsedABI,
		RawABI:         string(rawABI),
		Bytecode:       file.Bytecode,
		LinkReferences: file.LinkReferences,
		Networks:       networks,
	}, nil
}

func encodeArtifact(a *Artifact) artifactFile {
	networks := make(map[string]NetworkRecord, len(a.Networks))
	for chainID, record := range a.Networks {
		networks[strconv.FormatUint(chainID, 10)] = record
	}

	rawABI := a.RawABI
	if rawABI == "" {
		rawABI = "[]"
	}

	return artifactFile{
		ContractName:   a.Name,
		SourcePath:     a.SourcePath,
		ABI:            json.RawMessage(rawABI),
		Bytecode:       a.Bytecode,
		LinkReferences: a.LinkReferences,
		Networks:       networks,
	}
}
