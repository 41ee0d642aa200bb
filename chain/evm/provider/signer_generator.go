package provider

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignerGenerator creates the *bind.TransactOpts used to sign deployment transactions.
type SignerGenerator interface {
	Generate(chainID *big.Int) (*bind.TransactOpts, error)
}

var (
	_ SignerGenerator = (*transactorFromRaw)(nil)
	_ SignerGenerator = (*transactorRandom)(nil)
	_ SignerGenerator = (*transactorFromKMSSigner)(nil)
)

type GeneratorOptions struct {
	gasLimit uint64
}

type GeneratorOption func(*GeneratorOptions)

// WithGasLimit fixes the gas limit instead of estimating it per transaction.
func WithGasLimit(gasLimit uint64) GeneratorOption {
	return func(opts *GeneratorOptions) {
		opts.gasLimit = gasLimit
	}
}

// TransactorFromRaw returns a generator which creates a transactor from a hex private key. A 0x
// prefix is accepted.
func TransactorFromRaw(privKey string, opts ...GeneratorOption) SignerGenerator {
	o := &GeneratorOptions{}
	for _, opt := range opts {
		opt(o)
	}

	return &transactorFromRaw{
		privKey:  strings.TrimPrefix(privKey, "0x"),
		gasLimit: o.gasLimit,
	}
}

type transactorFromRaw struct {
	privKey  string
	gasLimit uint64
}

func (g *transactorFromRaw) Generate(chainID *big.Int) (*bind.TransactOpts, error) {
	privKey, err := crypto.HexToECDSA(g.privKey)
	if err != nil {
		return nil, fmt.Errorf("failed to convert private key to ECDSA: %w", err)
	}

	transactor, err := bind.NewKeyedTransactorWithChainID(privKey, chainID)
	if err != nil {
		return nil, err
	}
	if g.gasLimit > 0 {
		transactor.GasLimit = g.gasLimit
	}

	return transactor, nil
}

// TransactorRandom returns a generator with a random key. The key is created on the first call
// and reused afterwards.
func TransactorRandom() SignerGenerator {
	return &transactorRandom{}
}

type transactorRandom struct {
	privKey *ecdsa.PrivateKey
}

func (g *transactorRandom) Generate(chainID *big.Int) (*bind.TransactOpts, error) {
	if g.privKey == nil {
		privKey, err := crypto.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("failed to generate random private key: %w", err)
		}
		g.privKey = privKey
	}

	return bind.NewKeyedTransactorWithChainID(g.privKey, chainID)
}

// TransactorFromKMS returns a generator that signs with an AWS KMS key. When awsProfileName is
// empty the default AWS credential chain is used.
func TransactorFromKMS(keyID, keyRegion, awsProfileName string) (SignerGenerator, error) {
	signer, err := NewKMSSigner(keyID, keyRegion, awsProfileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create KMS signer: %w", err)
	}

	return &transactorFromKMSSigner{signer: signer}, nil
}

// TransactorFromKMSSigner wraps an existing KMSSigner.
func TransactorFromKMSSigner(signer *KMSSigner) SignerGenerator {
	return &transactorFromKMSSigner{signer: signer}
}

type transactorFromKMSSigner struct {
	signer *KMSSigner
}

func (g *transactorFromKMSSigner) Generate(chainID *big.Int) (*bind.TransactOpts, error) {
	transactor, err := g.signer.GetTransactOpts(context.Background(), chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to get transact opts from KMS signer: %w", err)
	}

	return transactor, nil
}
