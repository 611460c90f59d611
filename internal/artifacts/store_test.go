package artifacts

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/compose-network/contract-migrations/internal/linker"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeArtifactFile(t, fs, "/build/StringUtils.json", map[string]any{
		"contractName": "StringUtils",
		"sourcePath":   "contracts/StringUtils.sol",
		"abi":          json.RawMessage(emptyABI),
		"bytecode":     "0x6060",
	})
	writeArtifactFile(t, fs, "/build/SiteDeface.json", map[string]any{
		"contractName": "SiteDeface",
		"abi":          json.RawMessage(`[{"type":"constructor","inputs":[],"stateMutability":"nonpayable"}]`),
		"bytecode":     "0x73" + linker.LegacyPlaceholder("StringUtils"),
		"networks": map[string]any{
			"1337": map[string]any{
				"address":         "0x0000000000000000000000000000000000000001",
				"transactionHash": common.Hash{1}.Hex(),
				"deployedAt":      time.Unix(0, 0).UTC(),
			},
		},
	})
	require.NoError(t, afero.WriteFile(fs, "/build/README.md", []byte("ignored"), 0644))

	store, err := NewStore(fs, "/build")
	require.NoError(t, err)

	all := store.All()
	require.Len(t, all, 2)
	assert.Equal(t, "SiteDeface", all[0].Name)
	assert.Equal(t, "StringUtils", all[1].Name)

	t.Run("require by name and path", func(t *testing.T) {
		byName, err := store.Require("StringUtils")
		require.NoError(t, err)
		byPath, err := store.Require("./StringUtils.sol")
		require.NoError(t, err)
		assert.Same(t, byName, byPath)

		for _, identifier := range []string{"src/StringUtils.sol:StringUtils", "StringUtils.sol:StringUtils", "contracts/StringUtils.sol"} {
			byIdentifier, err := store.Require(identifier)
			require.NoError(t, err, identifier)
			assert.Same(t, byName, byIdentifier, identifier)
		}
		assert.Equal(t, "contracts/StringUtils.sol", byName.SourcePath)
	})

	t.Run("missing artifact", func(t *testing.T) {
		_, err := store.Require("KeyTheft")
		require.ErrorIs(t, err, ErrArtifactNotFound)
	})

	t.Run("persisted deployment", func(t *testing.T) {
		record, ok := store.Lookup("SiteDeface", 1337)
		require.True(t, ok)
		assert.Equal(t, common.HexToAddress("0x01"), record.Address)

		_, ok = store.Lookup("SiteDeface", 1)
		assert.False(t, ok)
	})

	t.Run("unlinked libraries", func(t *testing.T) {
		siteDeface, err := store.Require("SiteDeface")
		require.NoError(t, err)
		assert.Equal(t, []string{"StringUtils"}, siteDeface.Unlinked())
	})
}

func TestStoreLoadErrors(t *testing.T) {
	t.Run("missing directory starts empty", func(t *testing.T) {
		store, err := NewStore(afero.NewMemMapFs(), "/nowhere")
		require.NoError(t, err)
		assert.Empty(t, store.All())
	})

	t.Run("duplicate contract", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		file := map[string]any{"contractName": "KeyTheft", "abi": json.RawMessage(emptyABI), "bytecode": "0x00"}
		writeArtifactFile(t, fs, "/build/a.json", file)
		writeArtifactFile(t, fs, "/build/b.json", file)

		_, err := NewStore(fs, "/build")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "KeyTheft is defined by both")
	})

	t.Run("invalid abi", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writeArtifactFile(t, fs, "/build/a.json", map[string]any{"contractName": "KeyTheft", "abi": json.RawMessage(`{"x":1}`), "bytecode": "0x00"})

		_, err := NewStore(fs, "/build")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse ABI for KeyTheft")
	})

	t.Run("missing contract name", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writeArtifactFile(t, fs, "/build/a.json", map[string]any{"abi": json.RawMessage(emptyABI)})

		_, err := NewStore(fs, "/build")
		require.Error(t, err)
	})
}

func TestStoreRecord(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeArtifactFile(t, fs, "/build/PublicLeaks.json", map[string]any{
		"contractName": "PublicLeaks",
		"abi":          json.RawMessage(emptyABI),
		"bytecode":     "0x6060",
	})

	store, err := NewStore(fs, "/build")
	require.NoError(t, err)

	before, err := store.Require("PublicLeaks")
	require.NoError(t, err)

	record := NetworkRecord{
		Address:         common.HexToAddress("0xabc"),
		TransactionHash: common.Hash{2},
		DeployedAt:      time.Unix(100, 0).UTC(),
	}
	require.NoError(t, store.Record("PublicLeaks", 1337, record))

	_, ok := before.Deployment(1337)
	assert.False(t, ok, "previously returned artifact must not change")

	got, ok := store.Lookup("PublicLeaks", 1337)
	require.True(t, ok)
	assert.Equal(t, record.Address, got.Address)

	reloaded, err := NewStore(fs, "/build")
	require.NoError(t, err)
	persisted, ok := reloaded.Lookup("PublicLeaks", 1337)
	require.True(t, ok)
	assert.Equal(t, record.Address, persisted.Address)
	assert.Equal(t, record.TransactionHash, persisted.TransactionHash)
	assert.True(t, record.DeployedAt.Equal(persisted.DeployedAt))

	require.ErrorIs(t, store.Record("Unknown", 1337, record), ErrArtifactNotFound)
}

func TestStoreForget(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeArtifactFile(t, fs, "/build/StringUtils.json", map[string]any{
		"contractName": "StringUtils",
		"abi":          json.RawMessage(emptyABI),
		"bytecode":     "0x6060",
		"networks": map[string]any{
			"1":    map[string]any{"address": "0x0000000000000000000000000000000000000001"},
			"1337": map[string]any{"address": "0x0000000000000000000000000000000000000002"},
		},
	})

	store, err := NewStore(fs, "/build")
	require.NoError(t, err)

	before, err := store.Require("StringUtils")
	require.NoError(t, err)

	require.NoError(t, store.Forget("StringUtils", 1337))
	require.NoError(t, store.Forget("StringUtils", 5), "chain without a record")
	require.ErrorIs(t, store.Forget("KeyTheft", 1337), ErrArtifactNotFound)

	_, ok := store.Lookup("StringUtils", 1337)
	assert.False(t, ok)
	_, ok = before.Deployment(1337)
	assert.True(t, ok, "previously returned artifact must not change")

	reloaded, err := NewStore(fs, "/build")
	require.NoError(t, err)
	_, ok = reloaded.Lookup("StringUtils", 1337)
	assert.False(t, ok)
	kept, ok := reloaded.Lookup("StringUtils", 1)
	require.True(t, ok)
	assert.Equal(t, common.HexToAddress("0x01"), kept.Address)
}

func TestStoreSaveKeepsNetworks(t *testing.T) {
	fs := afero.NewMemMapFs()
	store, err := NewStore(fs, "/build")
	require.NoError(t, err)

	require.NoError(t, store.Save(&Artifact{Name: "KeyTheft", RawABI: emptyABI, Bytecode: "0x01"}))
	require.NoError(t, store.Record("KeyTheft", 5, NetworkRecord{Address: common.HexToAddress("0x05")}))
	require.NoError(t, store.Save(&Artifact{Name: "KeyTheft", RawABI: emptyABI, Bytecode: "0x02"}))

	artifact, err := store.Require("KeyTheft")
	require.NoError(t, err)
	assert.Equal(t, "0x02", artifact.Bytecode)
	_, ok := artifact.Deployment(5)
	assert.True(t, ok)

	exists, err := afero.Exists(fs, "/build/KeyTheft.json")
	require.NoError(t, err)
	assert.True(t, exists)
}
