package osx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/aragon/admin-plugin-deployments/chain/evm"
)

var ErrEmptyBytecode = errors.New("artifact has no bytecode")

// Artifact is a compiled contract as written by hardhat or forge.
type Artifact struct {
	ContractName string
	ABI          abi.ABI
	Bytecode     []byte
}

type artifactJSON struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	// hardhat writes a hex string, forge an object with the hex string in "object".
	Bytecode json.RawMessage `json:"bytecode"`
}

// LoadArtifact reads a compiled contract artifact from path.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", path, err)
	}

	a, err := ParseArtifact(data)
	if err != nil {
		return nil, fmt.Errorf("artifact %s: %w", path, err)
	}

	return a, nil
}

// ParseArtifact decodes an artifact from its JSON form.
func ParseArtifact(data []byte) (*Artifact, error) {
	var raw artifactJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal artifact: %w", err)
	}

	if len(raw.ABI) == 0 {
		return nil, errors.New("artifact has no abi")
	}
	parsed, err := abi.JSON(strings.NewReader(string(raw.ABI)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse abi: %w", err)
	}

	hexCode, err := bytecodeHex(raw.Bytecode)
	if err != nil {
		return nil, err
	}
	if hexCode == "" || hexCode == "0x" {
		return nil, ErrEmptyBytecode
	}
	if !strings.HasPrefix(hexCode, "0x") {
		hexCode = "0x" + hexCode
	}
	code, err := hexutil.Decode(hexCode)
	if err != nil {
		return nil, fmt.Errorf("failed to decode bytecode: %w", err)
	}

	return &Artifact{
		ContractName: raw.ContractName,
		ABI:          parsed,
		Bytecode:     code,
	}, nil
}

func bytecodeHex(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var obj struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", fmt.Errorf("unsupported bytecode format: %w", err)
	}

	return obj.Object, nil
}

// CodeHash returns the keccak256 hash of the creation bytecode.
func (a *Artifact) CodeHash() common.Hash {
	return crypto.Keccak256Hash(a.Bytecode)
}

// DeployResult describes a confirmed contract creation.
type DeployResult struct {
	Address common.Address
	Tx      *types.Transaction
	Receipt *types.Receipt
}

// Deploy creates the contract on chain with the given constructor args and waits for the receipt.
func (a *Artifact) Deploy(ctx context.Context, chain evm.Chain, args ...any) (DeployResult, error) {
	if chain.DeployerKey == nil {
		return DeployResult{}, fmt.Errorf("no deployer key for %s", chain)
	}

	opts := *chain.DeployerKey
	opts.Context = ctx

	addr, tx, _, err := bind.DeployContract(&opts, a.ABI, a.Bytecode, chain.Client, args...)
	if err != nil {
		return DeployResult{}, fmt.Errorf("failed to deploy %s on %s: %w", a.ContractName, chain, err)
	}

	receipt, err := chain.Confirm(tx)
	if err != nil {
		return DeployResult{}, fmt.Errorf("failed to confirm %s deployment on %s: %w", a.ContractName, chain, err)
	}

	return DeployResult{Address: addr, Tx: tx, Receipt: receipt}, nil
}
