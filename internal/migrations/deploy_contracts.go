package migrations

import (
	"context"
	"fmt"

	"github.com/compose-network/contract-migrations/internal/artifacts"
)

const (
	ContractStringUtils = "StringUtils"
	ContractSiteDeface  = "SiteDeface"
	ContractPublicLeaks = "PublicLeaks"
	ContractKeyTheft    = "KeyTheft"
)

// DeployContracts deploys StringUtils, links it into SiteDeface, then deploys
// SiteDeface, PublicLeaks and KeyTheft. The first failure stops the sequence.
func DeployContracts(ctx context.Context, deployer Deployer, provider ArtifactProvider) error {
	stringUtils, err := provider.Require(ContractStringUtils)
	if err != nil {
		return err
	}
	siteDeface, err := provider.Require(ContractSiteDeface)
	if err != nil {
		return err
	}
	publicLeaks, err := provider.Require(ContractPublicLeaks)
	if err != nil {
		return err
	}
	keyTheft, err := provider.Require(ContractKeyTheft)
	if err != nil {
		return err
	}

	if _, err := deployer.Deploy(ctx, stringUtils); err != nil {
		return fmt.Errorf("failed to deploy %s: %w", ContractStringUtils, err)
	}

	if err := deployer.Link(ctx, stringUtils, siteDeface); err != nil {
		return fmt.Errorf("failed to link %s into %s: %w", ContractStringUtils, ContractSiteDeface, err)
	}

	for _, artifact := range []*artifacts.Artifact{siteDeface, publicLeaks, keyTheft} {
		if _, err := deployer.Deploy(ctx, artifact); err != nil {
			return fmt.Errorf("failed to deploy %s: %w", artifact.Name, err)
		}
	}

	return nil
}
