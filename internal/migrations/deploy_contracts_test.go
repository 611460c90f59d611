package migrations

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/compose-network/contract-migrations/internal/artifacts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type (
	recordingDeployer struct {
		calls   []string
		failOn  string
		failErr error
	}

	mapProvider map[string]*artifacts.Artifact
)

func (r *recordingDeployer) Deploy(_ context.Context, artifact *artifacts.Artifact, _ ...any) (common.Address, error) {
	call := "deploy(" + artifact.Name + ")"
	r.calls = append(r.calls, call)
	if call == r.failOn {
		return common.Address{}, r.failErr
	}
	return common.BytesToAddress([]byte(artifact.Name)), nil
}

func (r *recordingDeployer) Link(_ context.Context, library, dependent *artifacts.Artifact) error {
	call := fmt.Sprintf("link(%s,%s)", library.Name, dependent.Name)
	r.calls = append(r.calls, call)
	if call == r.failOn {
		return r.failErr
	}
	return nil
}

func (m mapProvider) Require(name string) (*artifacts.Artifact, error) {
	artifact, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", artifacts.ErrArtifactNotFound, name)
	}
	return artifact, nil
}

func allArtifacts() mapProvider {
	provider := mapProvider{}
	for _, name := range []string{ContractStringUtils, ContractSiteDeface, ContractPublicLeaks, ContractKeyTheft} {
		provider[name] = &artifacts.Artifact{Name: name}
	}
	return provider
}

func TestDeployContractsOrder(t *testing.T) {
	deployer := &recordingDeployer{}

	require.NoError(t, DeployContracts(context.Background(), deployer, allArtifacts()))

	assert.Equal(t, []string{
		"deploy(StringUtils)",
		"link(StringUtils,SiteDeface)",
		"deploy(SiteDeface)",
		"deploy(PublicLeaks)",
		"deploy(KeyTheft)",
	}, deployer.calls)
}

func TestDeployContractsLinksBeforeDependentDeploy(t *testing.T) {
	deployer := &recordingDeployer{}
	require.NoError(t, DeployContracts(context.Background(), deployer, allArtifacts()))

	index := func(call string) int {
		for i, c := range deployer.calls {
			if c == call {
				return i
			}
		}
		return -1
	}

	assert.Less(t, index("deploy(StringUtils)"), index("link(StringUtils,SiteDeface)"))
	assert.Less(t, index("link(StringUtils,SiteDeface)"), index("deploy(SiteDeface)"))
	assert.Equal(t, 1, countOf(deployer.calls, "deploy(SiteDeface)"))
}

func TestDeployContractsFailFast(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name   string
		failOn string
		calls  int
	}{
		{name: "library deploy", failOn: "deploy(StringUtils)", calls: 1},
		{name: "link", failOn: "link(StringUtils,SiteDeface)", calls: 2},
		{name: "dependent deploy", failOn: "deploy(SiteDeface)", calls: 3},
		{name: "independent deploy", failOn: "deploy(PublicLeaks)", calls: 4},
		{name: "last deploy", failOn: "deploy(KeyTheft)", calls: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deployer := &recordingDeployer{failOn: tt.failOn, failErr: boom}

			err := DeployContracts(context.Background(), deployer, allArtifacts())

			require.ErrorIs(t, err, boom)
			assert.Len(t, deployer.calls, tt.calls)
			assert.Equal(t, tt.failOn, deployer.calls[len(deployer.calls)-1])
		})
	}
}

func TestDeployContractsMissingArtifact(t *testing.T) {
	for _, missing := range []string{ContractStringUtils, ContractSiteDeface, ContractPublicLeaks, ContractKeyTheft} {
		t.Run(missing, func(t *testing.T) {
			provider := allArtifacts()
			delete(provider, missing)
			deployer := &recordingDeployer{}

			err := DeployContracts(context.Background(), deployer, provider)

			require.ErrorIs(t, err, artifacts.ErrArtifactNotFound)
			assert.Empty(t, deployer.calls)
		})
	}
}

func countOf(calls []string, call string) int {
	count := 0
	for _, c := range calls {
		if c == call {
			count++
		}
	}
	return count
}
