package deployer

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/compose-network/contract-migrations/internal/artifacts"
	"github.com/compose-network/contract-migrations/internal/linker"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/require"
)

const (
	// Creation code whose runtime returns 42.
	answerCode = "0x600a600c600039600a6000f3602a60005260206000f3"
	// Creation code whose runtime returns the address linked at the placeholder.
	dependentPrefix = "0x601d600c600039601d6000f373"
	dependentSuffix = "60005260206000f3"
	// Creation code that reverts.
	revertCode = "0x60006000fd"
)

type (
	simulatedChain struct {
		backend *simulated.Backend
		client  simulated.Client
		key     *ecdsa.PrivateKey
		from    common.Address
		chainID *big.Int
	}

	commitConfirmer struct {
		chain *simulatedChain
	}
)

func newSimulatedChain(t *testing.T) *simulatedChain {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	from := crypto.PubkeyToAddress(key.PublicKey)

	balance := new(big.Int).Mul(big.NewInt(1000), big.NewInt(params.Ether))
	backend := simulated.NewBackend(types.GenesisAlloc{from: {Balance: balance}})
	t.Cleanup(func() { _ = backend.Close() })

	client := backend.Client()
	chainID, err := client.ChainID(context.Background())
	require.NoError(t, err)

	return &simulatedChain{backend: backend, client: client, key: key, from: from, chainID: chainID}
}

func (c *simulatedChain) liveTarget(opts ...LiveOption) *LiveTarget {
	opts = append([]LiveOption{WithConfirmer(commitConfirmer{chain: c})}, opts...)
	return NewLiveTarget(c.client, c.key, c.chainID, opts...)
}

func (c commitConfirmer) Confirm(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	c.chain.backend.Commit()
	return bind.WaitMined(ctx, c.chain.client, tx)
}

func dependentCode(placeholder string) string {
	return dependentPrefix + placeholder + dependentSuffix
}

func testArtifact(t *testing.T, name, sourcePath, bytecode string) *artifacts.Artifact {
	t.Helper()

	return &artifacts.Artifact{
		Name:       name,
		SourcePath: sourcePath,
		RawABI:     "[]",
		Bytecode:   bytecode,
	}
}

func stringUtilsArtifact(t *testing.T) *artifacts.Artifact {
	return testArtifact(t, "StringUtils", "contracts/StringUtils.sol", answerCode)
}

func siteDefaceArtifact(t *testing.T) *artifacts.Artifact {
	return testArtifact(t, "SiteDeface", "contracts/SiteDeface.sol", dependentCode(linker.LegacyPlaceholder("StringUtils")))
}
