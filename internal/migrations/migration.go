package migrations

import (
	"context"

	"github.com/compose-network/contract-migrations/internal/artifacts"
	"github.com/ethereum/go-ethereum/common"
)

type (
	// Deployer is the handle a migration deploys and links through
	Deployer interface {
		Deploy(ctx context.Context, artifact *artifacts.Artifact, args ...any) (common.Address, error)
		Link(ctx context.Context, library, dependent *artifacts.Artifact) error
	}

	// ArtifactProvider resolves compiled contracts by name
	ArtifactProvider interface {
		Require(name string) (*artifacts.Artifact, error)
	}

	// Migration is one numbered deployment step. Migrations run in ascending ID order.
	Migration struct {
		ID   int
		Name string
		Run  func(ctx context.Context, deployer Deployer, provider ArtifactProvider) error
	}
)

// Registry lists the project migrations
var Registry = []Migration{
	{ID: 2, Name: "deploy_contracts", Run: DeployContracts},
}
