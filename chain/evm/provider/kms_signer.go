package provider

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	kmslib "github.com/aws/aws-sdk-go/service/kms"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/aragon/admin-plugin-deployments/chain/internal/kms"
)

// KMSSigner signs EVM transactions with an asymmetric secp256k1 key held in AWS KMS.
type KMSSigner struct {
	client   kms.Client
	kmsKeyID string

	mu     sync.Mutex
	pubKey *ecdsa.PublicKey
}

// NewKMSSigner creates a KMSSigner. Leave awsProfile empty to use the default credential chain.
func NewKMSSigner(keyID, keyRegion, awsProfile string) (*KMSSigner, error) {
	client, err := kms.NewClient(kms.ClientConfig{
		KeyID:      keyID,
		KeyRegion:  keyRegion,
		AWSProfile: awsProfile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize KMS Client: %w", err)
	}

	return newKMSSignerWithClient(client, keyID), nil
}

func newKMSSignerWithClient(client kms.Client, keyID string) *KMSSigner {
	return &KMSSigner{client: client, kmsKeyID: keyID}
}

// GetECDSAPublicKey fetches the public key from KMS once and caches it.
func (s *KMSSigner) GetECDSAPublicKey() (*ecdsa.PublicKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pubKey != nil {
		return s.pubKey, nil
	}

	out, err := s.client.GetPublicKey(&kmslib.GetPublicKeyInput{
		KeyId: aws.String(s.kmsKeyID),
	})
	if err != nil {
		return nil, fmt.Errorf("cannot get public key from KMS for KeyId=%s: %w", s.kmsKeyID, err)
	}

	var spki kms.SPKI
	if _, err = asn1.Unmarshal(out.PublicKey, &spki); err != nil {
		return nil, fmt.Errorf("cannot parse asn1 public key for KeyId=%s: %w", s.kmsKeyID, err)
	}

	pubKey, err := crypto.UnmarshalPubkey(spki.SubjectPublicKey.Bytes)
	if err != nil {
		return nil, fmt.Errorf("cannot unmarshal public key bytes: %w", err)
	}
	s.pubKey = pubKey

	return pubKey, nil
}

// GetAddress returns the EVM address of the KMS key.
func (s *KMSSigner) GetAddress() (common.Address, error) {
	pubKey, err := s.GetECDSAPublicKey()
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to get public key: %w", err)
	}

	return crypto.PubkeyToAddress(*pubKey), nil
}

// GetTransactOpts returns transact opts whose Signer calls KMS.
func (s *KMSSigner) GetTransactOpts(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error) {
	if chainID == nil {
		return nil, errors.New("chainID is required")
	}

	pubKey, err := s.GetECDSAPublicKey()
	if err != nil {
		return nil, err
	}

	return &bind.TransactOpts{
		From:    crypto.PubkeyToAddress(*pubKey),
		Signer:  s.signerFunc(pubKey, chainID),
		Context: ctx,
	}, nil
}

func (s *KMSSigner) signerFunc(
	pubKey *ecdsa.PublicKey, chainID *big.Int,
) bind.SignerFn {
	pubKeyBytes := crypto.FromECDSAPub(pubKey)
	keyAddr := crypto.PubkeyToAddress(*pubKey)
	signer := types.LatestSignerForChainID(chainID)

	return func(address common.Address, tx *types.Transaction) (*types.Transaction, error) {
		if address != keyAddr {
			return nil, bind.ErrNotAuthorized
		}

		txHash := signer.Hash(tx).Bytes()
		sig, err := s.signDigest(txHash, pubKeyBytes)
		if err != nil {
			return nil, err
		}

		return tx.WithSignature(signer, sig)
	}
}

// SignHash signs a 32 byte digest and returns a 65 byte [R || S || V] signature with V in {0, 1}.
func (s *KMSSigner) SignHash(hash []byte) ([]byte, error) {
	pubKey, err := s.GetECDSAPublicKey()
	if err != nil {
		return nil, err
	}

	return s.signDigest(hash, crypto.FromECDSAPub(pubKey))
}

func (s *KMSSigner) signDigest(digest, pubKeyBytes []byte) ([]byte, error) {
	out, err := s.client.Sign(&kmslib.SignInput{
		KeyId:            aws.String(s.kmsKeyID),
		SigningAlgorithm: aws.String(kmslib.SigningAlgorithmSpecEcdsaSha256),
		MessageType:      aws.String(kmslib.MessageTypeDigest),
		Message:          digest,
	})
	if err != nil {
		return nil, fmt.Errorf("call to kms.Sign() failed: %w", err)
	}

	sig, err := kmsToEVMSig(out.Signature, pubKeyBytes, digest)
	if err != nil {
		return nil, fmt.Errorf("failed to convert KMS signature to Ethereum signature: %w", err)
	}

	return sig, nil
}

var (
	secp256k1N     = crypto.S256().Params().N
	secp256k1HalfN = new(big.Int).Div(secp256k1N, big.NewInt(2))
)

// kmsToEVMSig converts a DER signature from KMS into an EVM signature. S is normalized to the
// lower half of the curve order (EIP-2) and V is found by recovering the public key.
func kmsToEVMSig(kmsSig, ecdsaPubKeyBytes, hash []byte) ([]byte, error) {
	var ecdsaSig kms.ECDSASig
	if _, err := asn1.Unmarshal(kmsSig, &ecdsaSig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal KMS signature: %w", err)
	}

	rBytes := ecdsaSig.R.Bytes
	sBytes := ecdsaSig.S.Bytes

	sBigInt := new(big.Int).SetBytes(sBytes)
	if sBigInt.Cmp(secp256k1HalfN) > 0 {
		sBytes = new(big.Int).Sub(secp256k1N, sBigInt).Bytes()
	}

	return recoverEVMSignature(ecdsaPubKeyBytes, hash, rBytes, sBytes)
}

func recoverEVMSignature(expectedPublicKey, hash, r, s []byte) ([]byte, error) {
	rsSig := append(padTo32Bytes(r), padTo32Bytes(s)...)

	for _, v := range []byte{0, 1} {
		evmSig := append(append([]byte{}, rsSig...), v)

		recovered, err := crypto.Ecrecover(hash, evmSig)
		if err != nil {
			return nil, fmt.Errorf("failed to recover signature with v=%d: %w", v, err)
		}
		if bytes.Equal(recovered, expectedPublicKey) {
			return evmSig, nil
		}
	}

	return nil, errors.New("cannot reconstruct public key from sig")
}

// padTo32Bytes left pads buffer with zeros to 32 bytes after trimming leading zeros.
func padTo32Bytes(buffer []byte) []byte {
	buffer = bytes.TrimLeft(buffer, "\x00")
	if len(buffer) >= 32 {
		return buffer
	}

	out := make([]byte, 32)
	copy(out[32-len(buffer):], buffer)

	return out
}
