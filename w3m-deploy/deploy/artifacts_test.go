package deploy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestArtifactsHardhatLayout(t *testing.T) {
	arts := NewArtifacts("testdata/artifacts")

	token, err := arts.Artifact("W3MToken")
	require.NoError(t, err)
	require.Equal(t, "W3MToken", token.ContractName)
	require.Equal(t, "contracts/W3MToken.sol", token.SourceName)
	require.Contains(t, token.ABI.Methods, "transfer")
	require.Contains(t, token.ABI.Methods, "balanceOf")
	require.Equal(t, []byte{0x60, 0x80, 0x60, 0x40}, token.Bytecode[:4])

	// the debug file next to the artifact is not picked up
	staking, err := arts.Artifact("StakingContract")
	require.NoError(t, err)
	for _, m := range []string{"updateW3MTokenAddress", "addToWhiteList", "transferOwnership"} {
		require.Contains(t, staking.ABI.Methods, m)
	}
}

func TestArtifactsFlatLayout(t *testing.T) {
	arts := NewArtifacts("testdata/flat")

	vault, err := arts.Artifact("Vault")
	require.NoError(t, err)
	require.Len(t, vault.ABI.Constructor.Inputs, 2)
	// bytecode without 0x prefix
	require.Equal(t, []byte{0x60, 0x80, 0x60, 0x40, 0x52, 0x60, 0x00}, vault.Bytecode)

	_, err = arts.Artifact("Interface")
	require.ErrorIs(t, err, ErrNoBytecode)
}

func TestArtifactsNotFound(t *testing.T) {
	_, err := NewArtifacts("testdata/artifacts").Artifact("Greeter")
	require.ErrorIs(t, err, ErrArtifactNotFound)

	_, err = NewArtifacts(filepath.Join(t.TempDir(), "missing")).Artifact("W3MToken")
	require.ErrorIs(t, err, ErrArtifactNotFound)
}

func writeArtifact(t *testing.T, path, contents string) {
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

const tokenJSON = `{"contractName": "Token", "abi": [], "bytecode": "0x6080"}`

func TestArtifactsAmbiguous(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, filepath.Join(dir, "contracts", "A.sol", "Token.json"), tokenJSON)
	writeArtifact(t, filepath.Join(dir, "contracts", "B.sol", "Token.json"), tokenJSON)

	_, err := NewArtifacts(dir).Artifact("Token")
	require.ErrorContains(t, err, "ambiguous artifact Token")
}

func TestArtifactsNameMismatch(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, filepath.Join(dir, "Coin.json"), tokenJSON)

	_, err := NewArtifacts(dir).Artifact("Coin")
	require.ErrorContains(t, err, `holds contract "Token"`)
}

func TestArtifactsInvalidBytecode(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, filepath.Join(dir, "Token.json"), `{"contractName": "Token", "abi": [], "bytecode": "0x608"}`)

	_, err := NewArtifacts(dir).Artifact("Token")
	require.ErrorContains(t, err, "invalid bytecode")
}

func TestArtifactsSkipsBuildInfo(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, filepath.Join(dir, "build-info", "Token.json"), `{"id": "abc"}`)
	writeArtifact(t, filepath.Join(dir, "contracts", "Token.sol", "Token.json"), tokenJSON)

	art, err := NewArtifacts(dir).Artifact("Token")
	require.NoError(t, err)
	require.Equal(t, "Token", art.ContractName)
}

func TestArtifactsCached(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Token.json")
	writeArtifact(t, path, tokenJSON)

	arts := NewArtifacts(dir)
	first, err := arts.Artifact("Token")
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))
	second, err := arts.Artifact("Token")
	require.NoError(t, err)
	require.Same(t, first, second)
}

func TestReadArtifactRejectsDebugFile(t *testing.T) {
	_, err := ReadArtifact("testdata/artifacts/contracts/StakingContract.sol/StakingContract.dbg.json")
	require.ErrorContains(t, err, "debug file")
}
