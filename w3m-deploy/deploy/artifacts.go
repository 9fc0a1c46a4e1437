package deploy

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Artifact is a compiled contract as written by the hardhat compiler.
type Artifact struct {
	ContractName string
	SourceName   string
	ABI          abi.ABI
	Bytecode     []byte
}

type artifactJSON struct {
	ContractName string          `json:"contractName"`
	SourceName   string          `json:"sourceName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     string          `json:"bytecode"`
}

// ArtifactSource resolves contract names to compiled artifacts.
type ArtifactSource interface {
	Artifact(name string) (*Artifact, error)
}

// Artifacts loads artifacts from a hardhat artifacts directory. Both the
// artifacts/contracts/<File>.sol/<Name>.json layout and flat <Name>.json
// files are found. Loaded artifacts are cached.
type Artifacts struct {
	dir string

	mu    sync.Mutex
	cache map[string]*Artifact
}

func NewArtifacts(dir string) *Artifacts {
	return &Artifacts{
		dir:   dir,
		cache: make(map[string]*Artifact),
	}
}

func (a *Artifacts) Dir() string {
	return a.dir
}

func (a *Artifacts) Artifact(name string) (*Artifact, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if art, ok := a.cache[name]; ok {
		return art, nil
	}

	path, err := a.find(name)
	if err != nil {
		return nil, err
	}
	art, err := ReadArtifact(path)
	if err != nil {
		return nil, err
	}
	if art.ContractName != "" && art.ContractName != name {
		return nil, fmt.Errorf("artifact %s holds contract %q, not %q", path, art.ContractName, name)
	}
	a.cache[name] = art
	return art, nil
}

func (a *Artifacts) find(name string) (string, error) {
	var matches []string
	err := filepath.WalkDir(a.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// build-info holds compiler input, never contract artifacts
			if d.Name() == "build-info" {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == name+".json" {
			matches = append(matches, path)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: artifacts directory %s does not exist", ErrArtifactNotFound, a.dir)
	} else if err != nil {
		return "", fmt.Errorf("failed to search artifacts: %w", err)
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s in %s", ErrArtifactNotFound, name, a.dir)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("ambiguous artifact %s: %s", name, strings.Join(matches, ", "))
	}
}

// ReadArtifact parses a single hardhat artifact file.
func ReadArtifact(path string) (*Artifact, error) {
	if strings.HasSuffix(path, ".dbg.json") {
		return nil, fmt.Errorf("%s is a debug file, not an artifact", path)
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	var raw artifactJSON
	if err := json.Unmarshal(blob, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode artifact %s: %w", path, err)
	}
	parsed, err := abi.JSON(strings.NewReader(string(raw.ABI)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse abi of %s: %w", path, err)
	}
	code, err := hexutil.Decode("0x" + strings.TrimPrefix(strings.TrimSpace(raw.Bytecode), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid bytecode in %s: %w", path, err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoBytecode, path)
	}
	return &Artifact{
		ContractName: raw.ContractName,
		SourceName:   raw.SourceName,
		ABI:          parsed,
		Bytecode:     code,
	}, nil
}
